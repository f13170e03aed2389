// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MeridianAI/MeridianFOSS/pkg/telemetry"
	"github.com/MeridianAI/MeridianFOSS/services/llm"
)

const tracerName = "meridian.agents"

// internalErrorAnswer is returned when a run fails for reasons the caller
// cannot act on.
const internalErrorAnswer = "Something went wrong while processing your query. Please try again."

// ceilingAnswer is returned when a run exceeds its step ceiling.
const ceilingAnswer = "The analysis workflow could not converge on an answer within its step budget. " +
	"Please rephrase the query and try again."

// ExecutorConfig carries everything an Executor needs. Metrics and
// Observer are optional; the rest is required.
type ExecutorConfig struct {
	// Graph is the workflow to drive.
	Graph *Graph

	// Policy bounds the checker's revision loop.
	Policy RevisionPolicy

	// Logger receives run and step logs.
	Logger *slog.Logger

	// Metrics, when set, receives step counters and durations.
	Metrics *telemetry.Metrics

	// Observer, when set, is called after every merged step.
	Observer StepObserver
}

// Validate checks the configuration for required fields.
func (c *ExecutorConfig) Validate() error {
	if c.Graph == nil {
		return fmt.Errorf("graph is required")
	}
	if len(c.Graph.Steps) == 0 {
		return fmt.Errorf("graph %q has no steps", c.Graph.Name)
	}
	if _, ok := c.Graph.Steps[c.Graph.Entry]; !ok {
		return fmt.Errorf("graph %q entry role %q has no step", c.Graph.Name, c.Graph.Entry)
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Policy.MaxRevisions < 0 {
		return fmt.Errorf("max revisions must not be negative")
	}
	return nil
}

// Executor drives one session to termination: look up the current role's
// step, execute it, merge the returned delta, and repeat until the routing
// function reports the terminal sink.
//
// # Description
//
// The executor owns the session state exclusively for the duration of a
// run. Steps convert their own model failures into fallback routes or
// explanatory terminal answers, so a step error reaching the executor is a
// programming error; the executor still ends such a run gracefully with an
// error answer rather than crashing.
//
// # Thread Safety
//
// An Executor is immutable after construction and safe for concurrent
// Run calls, each over its own SessionState.
type Executor struct {
	graph    *Graph
	policy   RevisionPolicy
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	observer StepObserver
}

// NewExecutor creates an Executor from a validated configuration.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid executor config: %w", err)
	}
	return &Executor{
		graph:    cfg.Graph,
		policy:   cfg.Policy,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		observer: cfg.Observer,
	}, nil
}

// MaxSteps returns the hard step ceiling for this executor's graph. The
// revision policy terminates every well-behaved run well below it; the
// ceiling only trips when a step mis-routes.
func (e *Executor) MaxSteps() int {
	return e.graph.RoleCount() * (e.policy.MaxRevisions + 2)
}

// Run drives the state to termination and returns the number of steps
// taken. It returns ErrIterationCeiling if the ceiling trips, or the
// context error if the caller cancels; every other failure mode ends the
// run gracefully with a terminal answer and a nil error.
func (e *Executor) Run(ctx context.Context, state *SessionState) (int, error) {
	logger := telemetry.LoggerWithSession(ctx, e.logger, state.RunID)
	maxSteps := e.MaxSteps()
	steps := 0

	for {
		role := Route(state)
		if role == RoleTerminal {
			logger.Debug("Run terminated", "steps", steps, "revisions", state.RevisionCount)
			return steps, nil
		}
		if steps >= maxSteps {
			return steps, fmt.Errorf("%w: %d steps without a final answer in workflow %s",
				ErrIterationCeiling, steps, e.graph.Name)
		}
		if err := ctx.Err(); err != nil {
			return steps, err
		}

		step, ok := e.graph.Steps[role]
		if !ok {
			return steps, fmt.Errorf("%w: %q has no step in workflow %s",
				ErrUnknownRole, role, e.graph.Name)
		}

		stepCtx, span := telemetry.StartSpan(ctx, tracerName, "Executor.Step",
			trace.WithAttributes(
				attribute.String("workflow", e.graph.Name),
				attribute.String("role", string(role)),
				attribute.Int("step_index", steps),
			),
		)
		start := time.Now()
		delta, stepErr := step.Execute(stepCtx, state)
		elapsed := time.Since(start)
		if stepErr != nil {
			telemetry.RecordError(span, stepErr)
		} else {
			telemetry.SetSpanOK(span)
		}
		span.End()

		if stepErr != nil {
			logger.Error("Step failed, ending run with error answer",
				"role", role, "error", stepErr)
			if e.metrics != nil {
				e.metrics.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(
					attribute.String("component", string(role)),
					attribute.String("type", "step_failure"),
				))
			}
			delta = StateDelta{
				FinalAnswer: internalErrorAnswer,
				History: []Exchange{
					exchange(role, "error", fmt.Sprintf("step failed: %v", stepErr)),
				},
			}
		}

		prevRevisions := state.RevisionCount
		Merge(state, delta, role == e.graph.RevisionWriter)
		steps++

		if e.metrics != nil {
			e.metrics.StepsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("workflow", e.graph.Name),
				attribute.String("role", string(role)),
			))
			e.metrics.StepDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
				attribute.String("role", string(role)),
			))
			if state.RevisionCount > prevRevisions {
				e.metrics.RevisionsTotal.Add(ctx, 1, metric.WithAttributes(
					attribute.String("workflow", e.graph.Name),
				))
			}
			if delta.ReviewFeedback != nil && delta.ReviewFeedback.ForcedAcceptance {
				e.metrics.ForcedAcceptancesTotal.Add(ctx, 1, metric.WithAttributes(
					attribute.String("workflow", e.graph.Name),
				))
			}
		}
		if e.observer != nil {
			e.observer(role, state, delta, stepErr)
		}
	}
}

// meteredClient wraps the backend client and tallies completed calls by
// tier, so each run reports an exact cost estimate.
type meteredClient struct {
	inner llm.Client

	mu     sync.Mutex
	ledger CostLedger
}

var _ llm.Client = (*meteredClient)(nil)

func (m *meteredClient) Generate(ctx context.Context, system, user string, params llm.GenerationParams) (string, error) {
	out, err := m.inner.Generate(ctx, system, user, params)
	if err == nil {
		m.mu.Lock()
		m.ledger.Record(params.Tier)
		m.mu.Unlock()
	}
	return out, err
}

func (m *meteredClient) snapshot() CostLedger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger
}

// GraphBuilder constructs a workflow graph over the given client. The
// pipeline builds a fresh graph around a metered client on every run, so
// the run's cost tally is exact.
type GraphBuilder func(client llm.Client, policy RevisionPolicy, logger *slog.Logger) *Graph

// Pipeline is the outward face of the orchestration core: it turns a
// query into a RunResult, and ProcessQuery turns one into displayable
// text under all failure modes.
//
// # Thread Safety
//
// A Pipeline is immutable after construction and safe for concurrent use;
// every run gets its own state and graph.
type Pipeline struct {
	client   llm.Client
	builder  GraphBuilder
	policy   RevisionPolicy
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	observer StepObserver
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger for the pipeline and its steps.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithPolicy overrides the default revision policy.
func WithPolicy(policy RevisionPolicy) PipelineOption {
	return func(p *Pipeline) { p.policy = policy }
}

// WithMetrics attaches telemetry instruments to every run.
func WithMetrics(m *telemetry.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithObserver attaches a per-step observer to every run.
func WithObserver(fn StepObserver) PipelineOption {
	return func(p *Pipeline) { p.observer = fn }
}

// NewPipeline creates a Pipeline over a backend client and a graph
// builder. Callers normally use NewTrianglePipeline or NewHubPipeline.
func NewPipeline(client llm.Client, builder GraphBuilder, opts ...PipelineOption) (*Pipeline, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if builder == nil {
		return nil, fmt.Errorf("graph builder is required")
	}
	p := &Pipeline{
		client:  client,
		builder: builder,
		policy:  DefaultRevisionPolicy(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes the workflow for one query and returns the full result,
// including partial results when the run errors.
func (p *Pipeline) Run(ctx context.Context, query string) (*RunResult, error) {
	metered := &meteredClient{inner: p.client}
	graph := p.builder(metered, p.policy, p.logger)
	state := NewSessionState(query, graph.Entry)

	ctx, span := telemetry.StartSpan(ctx, tracerName, "Pipeline.Run",
		trace.WithAttributes(
			attribute.String("workflow", graph.Name),
			attribute.String("run_id", state.RunID),
		),
	)
	defer span.End()

	if p.metrics != nil {
		p.metrics.ActiveSessions.Add(ctx, 1)
		defer p.metrics.ActiveSessions.Add(ctx, -1)
	}

	exec, err := NewExecutor(ExecutorConfig{
		Graph:    graph,
		Policy:   p.policy,
		Logger:   p.logger,
		Metrics:  p.metrics,
		Observer: p.observer,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	start := time.Now()
	steps, runErr := exec.Run(ctx, state)
	elapsed := time.Since(start)
	ledger := metered.snapshot()

	result := &RunResult{
		RunID:            state.RunID,
		Query:            query,
		Answer:           state.FinalAnswer,
		Workflow:         graph.Name,
		Steps:            steps,
		RevisionCount:    state.RevisionCount,
		ForcedAcceptance: state.ReviewFeedback != nil && state.ReviewFeedback.ForcedAcceptance,
		Duration:         elapsed,
		Cost:             ledger,
		History:          state.History,
	}

	outcome := "ok"
	if runErr != nil {
		outcome = "error"
		telemetry.RecordError(span, runErr)
	} else {
		telemetry.SetSpanOK(span)
	}
	if p.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("workflow", graph.Name))
		p.metrics.QueriesTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("workflow", graph.Name),
			attribute.String("outcome", outcome),
		))
		p.metrics.QueryDuration.Record(ctx, elapsed.Seconds(), attrs)
		if ledger.StandardCalls > 0 {
			p.metrics.LLMCostUSD.Add(ctx, float64(ledger.StandardCalls)*standardCallCostUSD,
				metric.WithAttributes(attribute.String("tier", string(llm.TierStandard))))
		}
		if ledger.PremiumCalls > 0 {
			p.metrics.LLMCostUSD.Add(ctx, float64(ledger.PremiumCalls)*premiumCallCostUSD,
				metric.WithAttributes(attribute.String("tier", string(llm.TierPremium))))
		}
	}

	p.logger.Info("Query run finished",
		"run_id", state.RunID,
		"workflow", graph.Name,
		"outcome", outcome,
		"steps", steps,
		"revisions", state.RevisionCount,
		"llm_calls", ledger.TotalCalls(),
		"estimated_cost_usd", ledger.EstimatedUSD(),
		"duration", elapsed,
	)

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

// ProcessQuery runs the workflow and always returns displayable text: a
// genuine answer or a user-facing explanation. It never panics and never
// returns an empty string.
func (p *Pipeline) ProcessQuery(ctx context.Context, query string) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Workflow panicked", "panic", r)
			answer = internalErrorAnswer
		}
	}()

	result, err := p.Run(ctx, query)
	switch {
	case errors.Is(err, ErrIterationCeiling):
		return ceilingAnswer
	case err != nil:
		return internalErrorAnswer
	case result == nil || absent(result.Answer):
		return internalErrorAnswer
	}
	return result.Answer
}
