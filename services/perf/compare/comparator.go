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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianPerf/services/perf/stats"
)

// ScenarioExecutor measures one scenario against one variant.
//
// Implementations choose the target from the variant (baseURL for
// VariantBase, treatmentURL for VariantTreatment) and return the metrics
// observed during that single execution.
type ScenarioExecutor interface {
	ExecuteScenario(ctx context.Context, scenario TestScenario, variant Variant, baseURL, treatmentURL string) (MetricCollection, error)
}

// ExecutorFunc adapts a function to ScenarioExecutor.
type ExecutorFunc func(ctx context.Context, scenario TestScenario, variant Variant, baseURL, treatmentURL string) (MetricCollection, error)

// ExecuteScenario calls f.
func (f ExecutorFunc) ExecuteScenario(ctx context.Context, scenario TestScenario, variant Variant, baseURL, treatmentURL string) (MetricCollection, error) {
	return f(ctx, scenario, variant, baseURL, treatmentURL)
}

// Comparator runs baseline-versus-treatment comparisons.
//
// Thread Safety: A Comparator may be shared. Each RunComparison call works
// on its own merged configuration and measurement buffers.
type Comparator struct {
	config   ComparisonConfig
	executor ScenarioExecutor
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// ComparatorOption configures a Comparator.
type ComparatorOption func(*Comparator)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) ComparatorOption {
	return func(c *Comparator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the instruments to record into.
func WithMetrics(m *Metrics) ComparatorOption {
	return func(c *Comparator) { c.metrics = m }
}

// NewComparator builds a Comparator from a base configuration.
//
// Description:
//
//	The configuration is not validated here; RunComparison validates the
//	configuration merged with its per-run overrides. executor may be nil
//	when every scenario carries its own Execute hook.
func NewComparator(config ComparisonConfig, executor ScenarioExecutor, opts ...ComparatorOption) *Comparator {
	c := &Comparator{
		config:   config,
		executor: executor,
		logger:   slog.Default(),
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the comparator's base configuration.
func (c *Comparator) Config() ComparisonConfig {
	return c.config
}

// RunComparison measures every scenario against both variants and analyzes
// the results.
//
// Description:
//
//	Rounds alternate strictly between the base and the treatment, starting
//	with the base. Within a round scenarios run in configuration order, one
//	at a time. A pause of RoundDelay separates consecutive rounds. Analysis
//	then runs per scenario, in parallel, and results keep scenario order.
//
// Inputs:
//   - ctx: Cancels measurement, including the pause between rounds.
//   - baseURL, treatmentURL: Passed through to the executor.
//   - overrides: Applied on top of the base configuration for this run.
//
// Outputs:
//   - *ComparisonResult: The complete result.
//   - error: ErrNoScenarios/ErrInvalidConfig for a bad configuration,
//     ErrNilExecutor when a scenario cannot be executed,
//     ErrInsufficientMeasurements when a scenario lacks either variant,
//     or the context error.
func (c *Comparator) RunComparison(ctx context.Context, baseURL, treatmentURL string, overrides ...ComparisonOption) (*ComparisonResult, error) {
	cfg := c.config
	for _, opt := range overrides {
		opt(&cfg)
	}

	ctx, span := otel.Tracer("perf.compare").Start(ctx, "compare.Comparator.RunComparison",
		trace.WithAttributes(
			attribute.Int("iterations", cfg.Iterations),
			attribute.Int("scenarios", len(cfg.Scenarios)),
		),
	)
	defer span.End()

	result, err := c.run(ctx, cfg, baseURL, treatmentURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("run_id", result.RunID),
		attribute.Int("regressions", result.Summary.SignificantRegressions),
		attribute.Int("improvements", result.Summary.SignificantImprovements),
		attribute.String("severity", result.OverallAssessment.Severity.String()),
	)
	c.metrics.recordRun(ctx, result)
	return result, nil
}

func (c *Comparator) run(ctx context.Context, cfg ComparisonConfig, baseURL, treatmentURL string) (*ComparisonResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c.executor == nil {
		for _, s := range cfg.Scenarios {
			if s.Execute == nil {
				return nil, fmt.Errorf("%w: scenario %q has no Execute hook", ErrNilExecutor, s.Name)
			}
		}
	}

	start := c.now()
	runID := uuid.NewString()
	logger := c.logger.With(slog.String("run_id", runID))
	logger.Info("starting performance comparison",
		slog.String("base_url", baseURL),
		slog.String("treatment_url", treatmentURL),
		slog.Int("iterations", cfg.Iterations),
		slog.Int("scenarios", len(cfg.Scenarios)),
	)

	measurements, err := c.collect(ctx, logger, cfg, baseURL, treatmentURL)
	if err != nil {
		return nil, err
	}

	scenarios, err := c.analyzeAll(ctx, logger, cfg, measurements)
	if err != nil {
		return nil, err
	}

	result := &ComparisonResult{
		RunID:              runID,
		Summary:            calculateSummary(scenarios),
		Scenarios:          scenarios,
		OverallAssessment:  calculateOverallAssessment(scenarios),
		Config:             cfg,
		BaseURL:            baseURL,
		TreatmentURL:       treatmentURL,
		Timestamp:          start,
		TotalExecutionTime: c.now().Sub(start),
	}

	logger.Info("performance comparison finished",
		slog.Int("regressions", result.Summary.SignificantRegressions),
		slog.Int("improvements", result.Summary.SignificantImprovements),
		slog.String("severity", result.OverallAssessment.Severity.String()),
		slog.Duration("elapsed", result.TotalExecutionTime),
	)
	return result, nil
}

// -----------------------------------------------------------------------------
// Measurement
// -----------------------------------------------------------------------------

type scenarioMeasurements struct {
	base      []MeasurementPoint
	treatment []MeasurementPoint
	elapsed   time.Duration
}

func (c *Comparator) collect(ctx context.Context, logger *slog.Logger, cfg ComparisonConfig, baseURL, treatmentURL string) ([]*scenarioMeasurements, error) {
	out := make([]*scenarioMeasurements, len(cfg.Scenarios))
	for i := range out {
		out[i] = &scenarioMeasurements{}
	}

	variant := VariantBase
	for round := 0; round < cfg.Iterations; round++ {
		logger.Info("starting round",
			slog.Int("round", round+1),
			slog.String("variant", variant.String()),
		)

		for i, scenario := range cfg.Scenarios {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("comparison cancelled: %w", err)
			}

			execStart := c.now()
			metrics, err := c.execute(ctx, scenario, variant, baseURL, treatmentURL)
			elapsed := c.now().Sub(execStart)
			out[i].elapsed += elapsed
			c.metrics.recordExecution(ctx, scenario.Name, variant, float64(elapsed.Microseconds())/1000, err)

			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return nil, fmt.Errorf("comparison cancelled: %w", err)
				}
				logger.Warn("scenario execution failed",
					slog.String("scenario", scenario.Name),
					slog.String("variant", variant.String()),
					slog.Int("round", round+1),
					slog.String("error", err.Error()),
				)
				continue
			}

			point := MeasurementPoint{
				Timestamp: execStart,
				Metrics:   metrics,
				Metadata: MeasurementMetadata{
					Iteration: round,
					Variant:   variant,
					Scenario:  scenario.Name,
				},
			}
			if variant == VariantBase {
				out[i].base = append(out[i].base, point)
			} else {
				out[i].treatment = append(out[i].treatment, point)
			}
		}

		if round < cfg.Iterations-1 {
			if err := c.sleep(ctx, cfg.RoundDelay); err != nil {
				return nil, fmt.Errorf("comparison cancelled: %w", err)
			}
		}
		variant = variant.Next()
	}
	return out, nil
}

func (c *Comparator) execute(ctx context.Context, scenario TestScenario, variant Variant, baseURL, treatmentURL string) (MetricCollection, error) {
	if scenario.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, scenario.Timeout)
		defer cancel()
	}
	if scenario.Execute != nil {
		return scenario.Execute(ctx, variant)
	}
	return c.executor.ExecuteScenario(ctx, scenario, variant, baseURL, treatmentURL)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// -----------------------------------------------------------------------------
// Analysis
// -----------------------------------------------------------------------------

func (c *Comparator) analyzeAll(ctx context.Context, logger *slog.Logger, cfg ComparisonConfig, measurements []*scenarioMeasurements) ([]ScenarioComparisonResult, error) {
	analyzer, err := stats.NewAnalyzer(cfg.analysisOptions(),
		stats.WithOutlierRemoval(stats.TrimOutliers(cfg.OutlierRemovalCount)),
		stats.WithMetricPolarity(cfg.MetricPolarity),
		stats.WithAnalyzerLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	results := make([]ScenarioComparisonResult, len(cfg.Scenarios))
	g, gctx := errgroup.WithContext(ctx)
	if cfg.AnalysisParallelism > 0 {
		g.SetLimit(cfg.AnalysisParallelism)
	}
	for i, scenario := range cfg.Scenarios {
		g.Go(func() error {
			r, err := analyzeScenario(gctx, analyzer, scenario, measurements[i])
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		logger.Info("scenario analyzed",
			slog.String("scenario", r.ScenarioName),
			slog.String("severity", r.Assessment.Severity.String()),
			slog.String("summary", r.Assessment.Summary),
		)
	}
	return results, nil
}

func analyzeScenario(ctx context.Context, analyzer *stats.Analyzer, scenario TestScenario, m *scenarioMeasurements) (ScenarioComparisonResult, error) {
	if len(m.base) == 0 || len(m.treatment) == 0 {
		return ScenarioComparisonResult{}, fmt.Errorf("%w: Insufficient measurements for scenario: %s",
			ErrInsufficientMeasurements, scenario.Name)
	}

	names := m.base[0].Metrics.Names()
	comparisons := make([]stats.Comparison, 0, len(names))
	diagnostics := make(map[string]OutlierDiagnostics, len(names))
	for _, name := range names {
		baseline := metricValues(m.base, name)
		treatment := metricValues(m.treatment, name)
		if len(treatment) == 0 {
			continue
		}

		cmp, err := analyzer.Analyze(ctx, name, baseline, treatment)
		if err != nil {
			return ScenarioComparisonResult{}, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		comparisons = append(comparisons, cmp)
		diagnostics[name] = OutlierDiagnostics{
			Baseline:  stats.GetOutlierStatistics(baseline),
			Treatment: stats.GetOutlierStatistics(treatment),
		}
	}

	return ScenarioComparisonResult{
		ScenarioName:          scenario.Name,
		Description:           scenario.Description,
		MetricComparisons:     comparisons,
		Assessment:            calculateScenarioAssessment(comparisons),
		OutlierDiagnostics:    diagnostics,
		BaseMeasurements:      m.base,
		TreatmentMeasurements: m.treatment,
		ExecutionTime:         m.elapsed,
		Timestamp:             m.base[0].Timestamp,
	}, nil
}

// metricValues extracts one metric; points without it are skipped.
func metricValues(points []MeasurementPoint, name string) []float64 {
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if v, ok := p.Metrics[name]; ok {
			values = append(values, v)
		}
	}
	return values
}
