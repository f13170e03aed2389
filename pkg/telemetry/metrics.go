// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the Meridian orchestrator.
//
// Description:
//
//	Provides standard counters and histograms for query workflows, agent
//	steps, LLM calls, and dataset operations. All metrics use the
//	"meridian_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Workflow Metrics ---

	// QueriesTotal counts processed queries by workflow and outcome.
	QueriesTotal metric.Int64Counter

	// QueryDuration records end-to-end query duration in seconds.
	QueryDuration metric.Float64Histogram

	// StepsTotal counts agent steps by role.
	StepsTotal metric.Int64Counter

	// StepDuration records per-step duration in seconds by role.
	StepDuration metric.Float64Histogram

	// RevisionsTotal counts checker-requested analyst revisions.
	RevisionsTotal metric.Int64Counter

	// ForcedAcceptancesTotal counts answers accepted after the revision
	// budget was exhausted.
	ForcedAcceptancesTotal metric.Int64Counter

	// --- LLM Metrics ---

	// LLMCallsTotal counts LLM generations by model tier and status.
	LLMCallsTotal metric.Int64Counter

	// LLMCallDuration records LLM generation duration in seconds.
	LLMCallDuration metric.Float64Histogram

	// LLMTokensTotal counts tokens consumed by direction (prompt, completion).
	LLMTokensTotal metric.Int64Counter

	// LLMCostUSD accumulates estimated spend in US dollars by tier.
	LLMCostUSD metric.Float64Counter

	// --- Dataset Metrics ---

	// DatasetScansTotal counts dataset quality scans by status.
	DatasetScansTotal metric.Int64Counter

	// DatasetCleanDuration records ETL pipeline duration in seconds.
	DatasetCleanDuration metric.Float64Histogram

	// --- Session Metrics ---

	// ActiveSessions tracks currently live conversation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- Error Metrics ---

	// ErrorsTotal counts total errors by type and component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all instruments registered.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all counters and histograms initialized.
//	error - Non-nil if metric registration fails.
//
// Example:
//
//	meter := otel.Meter("meridian")
//	metrics, err := telemetry.NewMetrics(meter)
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
//	metrics.QueriesTotal.Add(ctx, 1, ...)
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// --- Workflow Metrics ---
	m.QueriesTotal, err = meter.Int64Counter(
		"meridian_queries_total",
		metric.WithDescription("Total queries processed"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create queries_total: %w", err)
	}

	m.QueryDuration, err = meter.Float64Histogram(
		"meridian_query_duration_seconds",
		metric.WithDescription("End-to-end query duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, fmt.Errorf("create query_duration: %w", err)
	}

	m.StepsTotal, err = meter.Int64Counter(
		"meridian_agent_steps_total",
		metric.WithDescription("Total agent steps executed"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create agent_steps_total: %w", err)
	}

	m.StepDuration, err = meter.Float64Histogram(
		"meridian_agent_step_duration_seconds",
		metric.WithDescription("Agent step duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("create agent_step_duration: %w", err)
	}

	m.RevisionsTotal, err = meter.Int64Counter(
		"meridian_revisions_total",
		metric.WithDescription("Total analyst revisions requested by the checker"),
		metric.WithUnit("{revision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create revisions_total: %w", err)
	}

	m.ForcedAcceptancesTotal, err = meter.Int64Counter(
		"meridian_forced_acceptances_total",
		metric.WithDescription("Answers accepted after the revision budget was exhausted"),
		metric.WithUnit("{answer}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create forced_acceptances_total: %w", err)
	}

	// --- LLM Metrics ---
	m.LLMCallsTotal, err = meter.Int64Counter(
		"meridian_llm_calls_total",
		metric.WithDescription("Total LLM generations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm_calls_total: %w", err)
	}

	m.LLMCallDuration, err = meter.Float64Histogram(
		"meridian_llm_call_duration_seconds",
		metric.WithDescription("LLM generation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm_call_duration: %w", err)
	}

	m.LLMTokensTotal, err = meter.Int64Counter(
		"meridian_llm_tokens_total",
		metric.WithDescription("Total LLM tokens by direction"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm_tokens_total: %w", err)
	}

	m.LLMCostUSD, err = meter.Float64Counter(
		"meridian_llm_cost_usd_total",
		metric.WithDescription("Estimated LLM spend in US dollars"),
		metric.WithUnit("USD"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm_cost_usd: %w", err)
	}

	// --- Dataset Metrics ---
	m.DatasetScansTotal, err = meter.Int64Counter(
		"meridian_dataset_scans_total",
		metric.WithDescription("Total dataset quality scans"),
		metric.WithUnit("{scan}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create dataset_scans_total: %w", err)
	}

	m.DatasetCleanDuration, err = meter.Float64Histogram(
		"meridian_dataset_clean_duration_seconds",
		metric.WithDescription("Dataset ETL pipeline duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("create dataset_clean_duration: %w", err)
	}

	// --- Session Metrics ---
	m.ActiveSessions, err = meter.Int64UpDownCounter(
		"meridian_active_sessions",
		metric.WithDescription("Currently live conversation sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create active_sessions: %w", err)
	}

	// --- Error Metrics ---
	m.ErrorsTotal, err = meter.Int64Counter(
		"meridian_errors_total",
		metric.WithDescription("Total errors by type and component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}

// RegisterQueueDepth registers a callback gauge reporting pending workflow
// queue depth. The callback is invoked each time metrics are scraped.
func (m *Metrics) RegisterQueueDepth(meter metric.Meter, depthFunc func() int64) (metric.Registration, error) {
	gauge, err := meter.Int64ObservableGauge(
		"meridian_workflow_queue_depth",
		metric.WithDescription("Pending queries waiting for a workflow slot"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create workflow_queue_depth: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, depthFunc())
		return nil
	}, gauge)
}
