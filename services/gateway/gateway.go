// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway provides the HTTP service for MeridianFOSS.
//
// This package contains the main gateway type that coordinates all
// components of the service: HTTP routing, LLM clients, the analysis
// pipelines, run and analytics stores, dataset tooling, session
// memory, and observability infrastructure.
//
// # Enterprise Integration
//
// The gateway supports dependency injection via extensions.ServiceOptions,
// enabling MeridianEnterprise to provide custom implementations of:
//   - AuthProvider: Custom authentication (JWT, API keys)
//   - AuditLogger: Compliance audit logging
//   - MessageFilter: PII detection and redaction
//
// # Usage
//
// Open source (uses no-op defaults):
//
//	cfg := gateway.Config{Port: 12400}
//	svc, err := gateway.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
//
// Enterprise (with custom implementations):
//
//	opts := &extensions.ServiceOptions{
//	    AuthProvider: enterpriseAuth,
//	    AuditLogger:  enterpriseAudit,
//	}
//	svc, err := gateway.New(cfg, opts)
//
// # Import Path
//
// Enterprise imports this package as:
//
//	import "github.com/MeridianAI/MeridianFOSS/services/gateway"
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/MeridianAI/MeridianFOSS/pkg/extensions"
	"github.com/MeridianAI/MeridianFOSS/pkg/telemetry"
	"github.com/MeridianAI/MeridianFOSS/services/agents"
	"github.com/MeridianAI/MeridianFOSS/services/analytics"
	"github.com/MeridianAI/MeridianFOSS/services/datasets"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/handlers"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/observability"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/routes"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/sessions"
	"github.com/MeridianAI/MeridianFOSS/services/llm"
	"github.com/MeridianAI/MeridianFOSS/services/reports"
	"github.com/MeridianAI/MeridianFOSS/services/runstore"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the gateway service.
//
// # Description
//
// Service abstracts the gateway lifecycle, enabling testing and
// alternative implementations. The interface follows the minimal surface
// area principle - only essential lifecycle methods are exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
//
// # Limitations
//
//   - No graceful shutdown method yet (planned for future)
//   - Run() blocks until server error
//
// # Assumptions
//
//   - Service is fully initialized before Run() is called
//   - Run() is called at most once per Service instance
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	//
	// # Description
	//
	// Starts the Gin HTTP server on the configured port. This method
	// blocks until the server stops (due to error or shutdown signal).
	//
	// # Outputs
	//
	//   - error: Non-nil if server fails to start or encounters fatal error
	//
	// # Examples
	//
	//   if err := svc.Run(); err != nil {
	//       log.Fatalf("server error: %v", err)
	//   }
	//
	// # Assumptions
	//
	//   - Service was successfully created via New()
	//   - Port is available and not in use
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// # Description
	//
	// Provides access to the configured Gin router, primarily for
	// integration testing where direct HTTP calls are needed.
	//
	// # Outputs
	//
	//   - *gin.Engine: The configured router with all routes registered
	//
	// # Limitations
	//
	//   - Should not be used to modify routes after construction
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds gateway configuration options.
//
// # Description
//
// Config centralizes all configuration for the gateway service.
// Values can be populated from environment variables, config files,
// or programmatically for testing.
//
// # Required Fields
//
// None - all fields have sensible defaults.
//
// # Examples
//
//	// Minimal config (uses all defaults)
//	cfg := Config{}
//
//	// Custom port and LLM backend
//	cfg := Config{
//	    Port:       8080,
//	    LLMBackend: "openai",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 12400
	Port int

	// DataDir is the root directory for everything the gateway persists:
	// raw/ and cleaned/ dataset directories, runs/ (run traces),
	// reports/, and analytics.db. Default: "./data"
	DataDir string

	// LLMBackend specifies the LLM provider.
	// Valid values: "ollama", "openai", "anthropic", "mock"
	// Default: "ollama"
	LLMBackend string

	// AuthToken, when set, protects /v1 with static bearer-token auth.
	// Empty means every request is accepted as the local user.
	AuthToken string

	// RedisAddr selects the Redis session backend ("host:port").
	// Empty keeps sessions in process memory.
	RedisAddr string

	// RedisPassword is the Redis AUTH password. Optional.
	RedisPassword string

	// RedisDB is the Redis database number. Default: 0
	RedisDB int

	// SessionTTL is how long an idle conversation session survives.
	// Default: 30 minutes
	SessionTTL time.Duration

	// MaxRevisions caps the analyst/checker revision loop per run.
	// Zero uses the built-in default.
	MaxRevisions int

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: OTEL_EXPORTER_OTLP_ENDPOINT or "localhost:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service is the main implementation that coordinates:
//   - HTTP routing via Gin
//   - LLM client management
//   - The triangle and hub analysis pipelines
//   - Run trace persistence (BadgerDB) and analytics (SQLite)
//   - Dataset catalog, ETL, and quality scanner
//   - Conversation sessions (memory or Redis)
//   - OpenTelemetry tracing and Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
//
// # Limitations
//
//   - No hot-reload of configuration
//   - Single LLM backend per instance
type service struct {
	config Config
	opts   extensions.ServiceOptions
	router *gin.Engine

	llmClient llm.Client
	triangle  *agents.Pipeline
	hub       *agents.Pipeline
	metrics   *telemetry.Metrics

	runDB    *runstore.DB
	runs     *runstore.Store
	stats    *analytics.Store
	influx   *analytics.StepExporter
	reports  *reports.Exporter
	catalog  *datasets.DirCatalog
	etl      *datasets.ETL
	scanner  *datasets.Scanner
	sessions sessions.Store
	events   *handlers.EventHub

	telemetryShutdown func(context.Context) error
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new gateway Service with the given configuration.
//
// # Description
//
// New initializes all gateway components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing and metrics
//  3. Initializes Prometheus request metrics
//  4. Opens the run, analytics, report, and dataset stores
//  5. Creates the LLM client based on backend type
//  6. Builds the triangle and hub pipelines
//  7. Creates the session store (memory or Redis)
//  8. Sets up HTTP routes with extension options
//
// If opts is nil, DefaultOptions() is used (no-op implementations).
// Store failures are not fatal: the affected endpoints answer 503 and
// the rest of the service keeps working. LLM and pipeline failures are
// fatal because nothing useful can run without them.
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//   - opts: Extension options for enterprise features. May be nil.
//
// # Outputs
//
//   - Service: Ready-to-run gateway service
//   - error: Non-nil if initialization fails
//
// # Examples
//
//	// Open source usage (no-op extensions)
//	cfg := Config{Port: 12400, LLMBackend: "ollama"}
//	svc, err := New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
//
// # Assumptions
//
//   - Environment variables are set for LLM providers (API keys, URLs)
//   - DataDir is writable
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	// Apply extension options (use defaults if nil)
	if opts != nil {
		s.opts = opts.Normalize()
	} else {
		s.opts = extensions.DefaultOptions()
	}
	if s.config.AuthToken != "" {
		provider, err := extensions.NewStaticTokenProvider(s.config.AuthToken)
		if err != nil {
			return nil, fmt.Errorf("failed to configure auth: %w", err)
		}
		s.opts = s.opts.WithAuth(provider)
		slog.Info("Bearer-token auth enabled for /v1")
	}

	// Initialize OpenTelemetry tracing and metrics
	if err := s.initTelemetry(); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// Initialize Prometheus request metrics
	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the gateway")
	}

	// Open stores. Each is optional; failures degrade the matching
	// endpoints to 503 instead of refusing to start.
	s.initStores()

	// Initialize LLM client
	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	// Build the analysis pipelines
	if err := s.initPipelines(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to build pipelines: %w", err)
	}

	// Conversation sessions
	s.initSessions()

	// Setup HTTP router
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting gateway server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12400
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "ollama"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	// EnableMetrics defaults to true (zero value is false, so we need explicit check)
	// We'll handle this by always enabling unless explicitly disabled via a setter
	cfg.EnableMetrics = true

	return cfg
}

// initTelemetry initializes OpenTelemetry tracing and metrics through
// pkg/telemetry. Degraded mode is allowed: a missing collector means
// no-op telemetry, not a dead gateway.
func (s *service) initTelemetry() error {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceName = "meridian-gateway"
	tcfg.ServiceVersion = handlers.ServiceVersion
	tcfg.AllowDegraded = true
	if s.config.OTelEndpoint != "" {
		tcfg.OTLPEndpoint = s.config.OTelEndpoint
	}
	if !s.config.EnableMetrics {
		tcfg.MetricExporter = "none"
	}

	shutdown, err := telemetry.Init(context.Background(), tcfg)
	if err != nil {
		return err
	}
	s.telemetryShutdown = shutdown
	return nil
}

// initStores opens every persistence component under DataDir. Each
// failure logs a warning and leaves that component nil; the handlers
// answer 503 for the affected endpoints.
func (s *service) initStores() {
	logger := slog.Default()

	rawDir := filepath.Join(s.config.DataDir, "raw")
	cleanedDir := filepath.Join(s.config.DataDir, "cleaned")
	for _, dir := range []string{rawDir, cleanedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Warn("Failed to create data directory", "dir", dir, "error", err)
		}
	}

	// Run traces (BadgerDB)
	runCfg := runstore.DefaultConfig()
	runCfg.Path = filepath.Join(s.config.DataDir, "runs")
	db, err := runstore.Open(runCfg)
	if err != nil {
		slog.Warn("Run store unavailable, /v1/runs disabled", "error", err)
	} else {
		s.runDB = db
		s.runs = runstore.NewStore(db, logger)
	}

	// Analytics rollups (SQLite)
	s.stats, err = analytics.NewStore(filepath.Join(s.config.DataDir, "analytics.db"), logger)
	if err != nil {
		slog.Warn("Analytics store unavailable, /v1/stats disabled", "error", err)
		s.stats = nil
	}

	// Optional InfluxDB step-timing exporter, configured via the
	// INFLUXDB_* environment variables.
	influxCfg := analytics.InfluxConfigFromEnv()
	if influxCfg.Enabled() {
		s.influx, err = analytics.NewStepExporter(influxCfg, logger)
		if err != nil {
			slog.Warn("InfluxDB exporter unavailable", "error", err)
			s.influx = nil
		} else {
			slog.Info("InfluxDB step exporter enabled", "url", influxCfg.URL)
		}
	}

	// Markdown reports
	s.reports, err = reports.NewExporter(filepath.Join(s.config.DataDir, "reports"), logger)
	if err != nil {
		slog.Warn("Report exporter unavailable, /v1/reports disabled", "error", err)
		s.reports = nil
	}

	// Dataset catalog, cleaner, and scanner
	s.catalog = datasets.NewDirCatalog(cleanedDir, logger)
	s.scanner = datasets.NewScanner(logger)
	s.etl, err = datasets.NewETL(datasets.ETLConfig{CleanedDir: cleanedDir}, logger)
	if err != nil {
		slog.Warn("Dataset cleaner unavailable, /v1/datasets/clean disabled", "error", err)
		s.etl = nil
	}
}

// initLLMClient initializes the LLM provider client.
//
// # Description
//
// Creates the appropriate LLM client based on the configured backend
// type. The "mock" backend exists for tests and demos; it answers every
// prompt with canned text and costs nothing.
//
// The "ollama" backend has two shapes. With OLLAMA_PREMIUM_MODEL set,
// both tiers get their own model held resident via keep_alive, and the
// models pre-load in the background so the first run is not a cold
// start. Without it, a single model serves both tiers.
//
// # Outputs
//
//   - error: Non-nil if LLM client creation fails
//
// # Assumptions
//
//   - Required environment variables are set for the chosen provider
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient(llm.OpenAIConfig{})
		slog.Info("Using OpenAI LLM backend")
	case "anthropic":
		s.llmClient, err = llm.NewAnthropicClient(llm.AnthropicConfig{})
		slog.Info("Using Anthropic LLM backend")
	case "mock":
		s.llmClient = llm.NewMockClient()
		slog.Info("Using mock LLM backend")
	case "ollama":
		s.llmClient, err = s.newOllamaClient()
	default:
		slog.Warn("Unknown LLM backend, defaulting to ollama", "backend", s.config.LLMBackend)
		s.llmClient, err = s.newOllamaClient()
	}

	return err
}

// newOllamaClient picks between the single-model and tiered Ollama
// clients and kicks off the warmup for the tiered one.
func (s *service) newOllamaClient() (llm.Client, error) {
	if os.Getenv("OLLAMA_PREMIUM_MODEL") == "" {
		slog.Info("Using Ollama LLM backend")
		return llm.NewOllamaClient()
	}

	tiered, err := llm.NewTieredOllamaClient()
	if err != nil {
		return nil, err
	}
	slog.Info("Using tiered Ollama LLM backend")

	// Warm in the background; a failure costs only first-request latency.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := tiered.Warm(ctx); err != nil {
			slog.Warn("Ollama model warmup failed", "error", err)
		}
	}()
	return tiered, nil
}

// initPipelines builds the triangle and hub pipelines over the shared
// LLM client, wiring in metrics, the step-event hub, and the revision
// policy.
func (s *service) initPipelines() error {
	s.events = handlers.NewEventHub()

	m, err := telemetry.NewMetrics(otel.Meter("meridian"))
	if err != nil {
		slog.Warn("Pipeline metrics unavailable", "error", err)
	} else {
		s.metrics = m
	}

	// A nil *DirCatalog or *Exporter must stay a nil interface, or the
	// pipelines would see a non-nil interface holding a nil pointer.
	var catalog agents.Catalog
	if s.catalog != nil {
		catalog = s.catalog
	}
	var exporter agents.ReportExporter
	if s.reports != nil {
		exporter = s.reports
	}

	opts := []agents.PipelineOption{
		agents.WithObserver(s.events.Observer()),
	}
	if s.metrics != nil {
		opts = append(opts, agents.WithMetrics(s.metrics))
	}
	if s.config.MaxRevisions > 0 {
		opts = append(opts, agents.WithPolicy(agents.RevisionPolicy{MaxRevisions: s.config.MaxRevisions}))
	}

	s.triangle, err = agents.NewTrianglePipeline(s.llmClient, catalog, opts...)
	if err != nil {
		return fmt.Errorf("triangle pipeline: %w", err)
	}
	s.hub, err = agents.NewHubPipeline(s.llmClient, catalog, exporter, opts...)
	if err != nil {
		return fmt.Errorf("hub pipeline: %w", err)
	}
	return nil
}

// initSessions creates the conversation session store. Redis when an
// address is configured, process memory otherwise.
func (s *service) initSessions() {
	if s.config.RedisAddr != "" {
		s.sessions = sessions.NewRedisStore(
			s.config.RedisAddr, s.config.RedisPassword, s.config.RedisDB,
			sessions.WithTTL(s.config.SessionTTL),
			sessions.WithMaxTurns(sessions.DefaultMemoryConfig().MaxTurns),
		)
		slog.Info("Using Redis session store", "addr", s.config.RedisAddr)
		return
	}

	memCfg := sessions.DefaultMemoryConfig()
	memCfg.TTL = s.config.SessionTTL
	s.sessions = sessions.NewMemoryStore(memCfg, slog.Default())
	slog.Info("Using in-memory session store", "ttl", memCfg.TTL.String())
}

// initRouter sets up the Gin HTTP router with all routes.
//
// # Description
//
// Creates the Gin engine, applies middleware, and registers all routes.
// Routes are configured based on available dependencies.
// ServiceOptions are passed through to enable enterprise extensions.
//
// # Assumptions
//
//   - All dependencies (LLM, pipelines, stores) are initialized
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("meridian-gateway"))

	h := handlers.NewHandlers(slog.Default()).
		WithPipelines(s.triangle, s.hub).
		WithSessions(s.sessions).
		WithStores(s.runs, s.stats).
		WithStepExporter(s.influx).
		WithReports(s.reports).
		WithDatasets(s.catalog, s.etl, s.scanner, filepath.Join(s.config.DataDir, "raw")).
		WithEvents(s.events).
		WithOptions(s.opts)

	routes.SetupRoutes(s.router, h, s.opts.AuthProvider)
}

// cleanup releases all resources held by the service.
//
// # Description
//
// Called when Run() exits or on initialization failure. Closes the
// session store, stores, and telemetry in dependency order.
func (s *service) cleanup() {
	if s.sessions != nil {
		if err := s.sessions.Close(); err != nil {
			slog.Warn("Session store close error", "error", err)
		}
	}

	if s.influx != nil {
		s.influx.Close()
	}

	if s.stats != nil {
		if err := s.stats.Close(); err != nil {
			slog.Warn("Analytics store close error", "error", err)
		}
	}

	if s.runDB != nil {
		if err := s.runDB.Close(); err != nil {
			slog.Warn("Run store close error", "error", err)
		}
	}

	if s.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.telemetryShutdown(ctx); err != nil {
			slog.Error("failed to shutdown telemetry", "error", err)
		}
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
