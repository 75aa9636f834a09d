// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for pipeline runs.
var (
	tracer = otel.Tracer("aleutian.covgen")
	meter  = otel.Meter("aleutian.covgen")
)

// Metrics for pipeline runs.
var (
	runLatency       metric.Float64Histogram
	runTotal         metric.Int64Counter
	testsSynthesized metric.Int64Counter
	fixAttemptTotal  metric.Int64Counter
	coverageGain     metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"covgen_run_duration_seconds",
			metric.WithDescription("Duration of coverage improvement runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"covgen_run_total",
			metric.WithDescription("Total number of coverage improvement runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		testsSynthesized, err = meter.Int64Counter(
			"covgen_tests_synthesized_total",
			metric.WithDescription("Total number of synthesized test files"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fixAttemptTotal, err = meter.Int64Counter(
			"covgen_fix_attempts_total",
			metric.WithDescription("Total number of repair fix attempts"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		coverageGain, err = meter.Float64Histogram(
			"covgen_coverage_gain_percent",
			metric.WithDescription("Coverage delta per run in percentage points"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRunSpan creates the span covering one pipeline run.
func startRunSpan(ctx context.Context, session, language string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Orchestrator.Run",
		trace.WithAttributes(
			attribute.String("covgen.session", session),
			attribute.String("covgen.language", language),
		),
	)
}

// setRunSpanResult sets the outcome attributes on a run span.
func setRunSpanResult(span trace.Span, success bool, repairState string, testCount, fixCount int) {
	span.SetAttributes(
		attribute.Bool("covgen.success", success),
		attribute.String("covgen.repair_state", repairState),
		attribute.Int("covgen.tests_synthesized", testCount),
		attribute.Int("covgen.fix_attempts", fixCount),
	)
}

// recordRunMetrics records the instruments for one completed run.
func recordRunMetrics(ctx context.Context, language string, duration time.Duration, success bool, testCount, fixCount int, gain float64) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	)

	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
	testsSynthesized.Add(ctx, int64(testCount), attrs)
	fixAttemptTotal.Add(ctx, int64(fixCount), attrs)
	coverageGain.Record(ctx, gain, attrs)
}
