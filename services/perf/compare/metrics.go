// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compare

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OpenTelemetry instruments recorded by a Comparator.
//
// Thread Safety: Safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	// ScenarioExecutions counts executions by scenario, variant and outcome.
	ScenarioExecutions metric.Int64Counter

	// ScenarioDuration records execution wall time in milliseconds.
	ScenarioDuration metric.Float64Histogram

	// Regressions counts significant regressions by scenario and metric.
	Regressions metric.Int64Counter

	// Runs counts finished comparison runs by verdict.
	Runs metric.Int64Counter
}

// NewMetrics registers the comparator instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	executions, err := meter.Int64Counter(
		"perf_scenario_executions_total",
		metric.WithDescription("Scenario executions by variant and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating executions counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"perf_scenario_execution_duration_ms",
		metric.WithDescription("Wall time of one scenario execution"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	regressions, err := meter.Int64Counter(
		"perf_regressions_total",
		metric.WithDescription("Significant regressions detected"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating regressions counter: %w", err)
	}

	runs, err := meter.Int64Counter(
		"perf_comparison_runs_total",
		metric.WithDescription("Completed comparison runs by verdict"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating runs counter: %w", err)
	}

	return &Metrics{
		ScenarioExecutions: executions,
		ScenarioDuration:   duration,
		Regressions:        regressions,
		Runs:               runs,
	}, nil
}

func (m *Metrics) recordExecution(ctx context.Context, scenario string, variant Variant, ms float64, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("scenario", scenario),
		attribute.String("variant", variant.String()),
		attribute.String("outcome", outcome),
	)
	m.ScenarioExecutions.Add(ctx, 1, attrs)
	m.ScenarioDuration.Record(ctx, ms, attrs)
}

func (m *Metrics) recordRun(ctx context.Context, result *ComparisonResult) {
	if m == nil {
		return
	}
	for _, s := range result.Scenarios {
		for _, c := range s.MetricComparisons {
			if c.IsSignificantRegression {
				m.Regressions.Add(ctx, 1, metric.WithAttributes(
					attribute.String("scenario", s.ScenarioName),
					attribute.String("metric", c.MetricName),
				))
			}
		}
	}
	verdict := "pass"
	if !result.Passed() {
		verdict = "fail"
	}
	m.Runs.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
}
