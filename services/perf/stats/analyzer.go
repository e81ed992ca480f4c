// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// -----------------------------------------------------------------------------
// Polarity
// -----------------------------------------------------------------------------

// Polarity states which direction of change counts as a regression.
type Polarity int

const (
	// HigherIsWorse treats an increased treatment mean as a regression.
	// This is the default and suits latencies, sizes and counts.
	HigherIsWorse Polarity = iota

	// LowerIsWorse treats a decreased treatment mean as a regression.
	// Use it for throughput-style metrics such as frames per second.
	LowerIsWorse
)

// String returns the polarity name.
func (p Polarity) String() string {
	switch p {
	case HigherIsWorse:
		return "higher_is_worse"
	case LowerIsWorse:
		return "lower_is_worse"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Polarity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePolarity converts "higher_is_worse" or "lower_is_worse".
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "higher_is_worse", "higher-is-worse":
		return HigherIsWorse, nil
	case "lower_is_worse", "lower-is-worse":
		return LowerIsWorse, nil
	default:
		return 0, fmt.Errorf("%w: unknown polarity %q", ErrInvalidOptions, s)
	}
}

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// AnalysisOptions configures AnalyzeRegression.
type AnalysisOptions struct {
	// SignificanceThreshold is the p-value cutoff for significance.
	// Default: 0.05
	SignificanceThreshold float64 `json:"significanceThreshold"`

	// EffectSizeThreshold is the |Cohen's d| a change must exceed.
	// Default: 0.5
	EffectSizeThreshold float64 `json:"effectSizeThreshold"`

	// ConfidenceLevel for the interval of the mean difference.
	// Default: 0.95
	ConfidenceLevel float64 `json:"confidenceLevel"`

	// Polarity decides which direction is a regression.
	// Default: HigherIsWorse
	Polarity Polarity `json:"polarity"`
}

// DefaultAnalysisOptions returns the conventional thresholds.
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		SignificanceThreshold: 0.05,
		EffectSizeThreshold:   0.5,
		ConfidenceLevel:       0.95,
		Polarity:              HigherIsWorse,
	}
}

// Validate checks that thresholds are usable.
func (o AnalysisOptions) Validate() error {
	if o.SignificanceThreshold <= 0 || o.SignificanceThreshold > 1 {
		return fmt.Errorf("%w: significance threshold %v not in (0, 1]", ErrInvalidOptions, o.SignificanceThreshold)
	}
	if o.EffectSizeThreshold < 0 {
		return fmt.Errorf("%w: effect size threshold %v is negative", ErrInvalidOptions, o.EffectSizeThreshold)
	}
	if o.ConfidenceLevel <= 0 || o.ConfidenceLevel >= 1 {
		return fmt.Errorf("%w: %v", ErrInvalidConfidenceLevel, o.ConfidenceLevel)
	}
	if o.Polarity != HigherIsWorse && o.Polarity != LowerIsWorse {
		return fmt.Errorf("%w: polarity %d", ErrInvalidOptions, int(o.Polarity))
	}
	return nil
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// SampleStatistics is a snapshot of one cleaned sample.
type SampleStatistics struct {
	Mean              float64   `json:"mean"`
	Median            float64   `json:"median"`
	StandardDeviation float64   `json:"standardDeviation"`
	Variance          float64   `json:"variance"`
	Min               float64   `json:"min"`
	Max               float64   `json:"max"`
	SampleSize        int       `json:"sampleSize"`
	OutliersRemoved   int       `json:"outliersRemoved"`
	RawValues         []float64 `json:"rawValues"`
	CleanedValues     []float64 `json:"cleanedValues"`
}

// Comparison is the verdict for one metric across baseline and treatment.
type Comparison struct {
	MetricName     string           `json:"metricName"`
	BaselineStats  SampleStatistics `json:"baselineStats"`
	TreatmentStats SampleStatistics `json:"treatmentStats"`

	// PValue comes from the Mann-Whitney test on the cleaned samples.
	PValue float64 `json:"pValue"`

	// EffectSize is Cohen's d, positive when the treatment is higher.
	EffectSize float64 `json:"effectSize"`

	// PercentageChange of the means, baseline to treatment. May be ±Inf
	// when the baseline mean is zero.
	PercentageChange float64 `json:"percentageChange"`

	// AbsoluteDifference is treatment mean minus baseline mean.
	AbsoluteDifference float64 `json:"absoluteDifference"`

	// IsSignificantRegression and IsSignificantImprovement are never both true.
	IsSignificantRegression  bool `json:"isSignificantRegression"`
	IsSignificantImprovement bool `json:"isSignificantImprovement"`

	// ConfidenceInterval bounds the difference of means.
	ConfidenceInterval [2]float64 `json:"confidenceInterval"`

	// MannWhitney is the full rank-test result, including its diagnostic flag.
	MannWhitney MannWhitneyResult `json:"mannWhitney"`

	// Polarity used for the verdict.
	Polarity Polarity `json:"polarity"`
}

// MarshalJSON encodes infinite percentage changes as "Infinity"/"-Infinity".
func (c Comparison) MarshalJSON() ([]byte, error) {
	type plain Comparison
	return json.Marshal(struct {
		plain
		PercentageChange any `json:"percentageChange"`
	}{
		plain:            plain(c),
		PercentageChange: jsonNumber(c.PercentageChange),
	})
}

func jsonNumber(v float64) any {
	switch {
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case math.IsNaN(v):
		return "NaN"
	default:
		return v
	}
}

// -----------------------------------------------------------------------------
// Analysis
// -----------------------------------------------------------------------------

// AnalyzeRegression compares baseline and treatment samples of one metric.
//
// Description:
//
//	When outlierOpts is non-nil both samples are cleaned independently;
//	otherwise the raw samples are used. All downstream math runs on the
//	cleaned values: Mann-Whitney p-value, Cohen's d, percentage and
//	absolute change of means, and a normal-approximation interval for the
//	mean difference using sqrt(var1/n1 + var2/n2). The interval collapses
//	to [diff, diff] when either cleaned sample has at most one value.
//
//	The change is significant when p < SignificanceThreshold and
//	|d| > EffectSizeThreshold. Direction follows opts.Polarity.
//
// Inputs:
//   - baseline, treatment: Raw samples. Not modified.
//   - metricName: Name carried into the result.
//   - opts: Thresholds and polarity.
//   - outlierOpts: Optional cleaning policy. Nil disables cleaning.
//
// Outputs:
//   - Comparison: The verdict.
//   - error: Non-nil for invalid options or an unknown outlier method.
//
// Example:
//
//	cmp, err := stats.AnalyzeRegression(base, treat, "lcp",
//	    stats.DefaultAnalysisOptions(), stats.TrimOutliers(1))
//	if err != nil {
//	    return err
//	}
//	if cmp.IsSignificantRegression {
//	    // fail the build
//	}
func AnalyzeRegression(
	baseline, treatment []float64,
	metricName string,
	opts AnalysisOptions,
	outlierOpts *OutlierRemovalOptions,
) (Comparison, error) {
	if err := opts.Validate(); err != nil {
		return Comparison{}, err
	}

	cleanBase := baseline
	cleanTreat := treatment
	var baseRemoved, treatRemoved int
	if outlierOpts != nil {
		b, err := RemoveOutliers(baseline, *outlierOpts)
		if err != nil {
			return Comparison{}, err
		}
		t, err := RemoveOutliers(treatment, *outlierOpts)
		if err != nil {
			return Comparison{}, err
		}
		cleanBase, cleanTreat = b.CleanedValues, t.CleanedValues
		baseRemoved, treatRemoved = len(b.RemovedValues), len(t.RemovedValues)
	}

	baseStats := sampleStatistics(baseline, cleanBase, baseRemoved)
	treatStats := sampleStatistics(treatment, cleanTreat, treatRemoved)

	mw := MannWhitneyUTest(cleanBase, cleanTreat)
	effect := CohensD(cleanBase, cleanTreat)
	diff := treatStats.Mean - baseStats.Mean

	significant := mw.PValue < opts.SignificanceThreshold
	largeEffect := math.Abs(effect) > opts.EffectSizeThreshold

	worse, better := diff > 0, diff < 0
	if opts.Polarity == LowerIsWorse {
		worse, better = better, worse
	}

	return Comparison{
		MetricName:               metricName,
		BaselineStats:            baseStats,
		TreatmentStats:           treatStats,
		PValue:                   mw.PValue,
		EffectSize:               effect,
		PercentageChange:         PercentageChange(baseStats.Mean, treatStats.Mean),
		AbsoluteDifference:       diff,
		IsSignificantRegression:  significant && largeEffect && worse,
		IsSignificantImprovement: significant && largeEffect && better,
		ConfidenceInterval:       differenceInterval(cleanBase, cleanTreat, opts.ConfidenceLevel),
		MannWhitney:              mw,
		Polarity:                 opts.Polarity,
	}, nil
}

func sampleStatistics(raw, cleaned []float64, removed int) SampleStatistics {
	lo, hi := minMax(cleaned)
	rawCopy := make([]float64, len(raw))
	copy(rawCopy, raw)
	cleanCopy := make([]float64, len(cleaned))
	copy(cleanCopy, cleaned)

	return SampleStatistics{
		Mean:              Mean(cleaned),
		Median:            Median(cleaned),
		StandardDeviation: StandardDeviation(cleaned),
		Variance:          Variance(cleaned),
		Min:               lo,
		Max:               hi,
		SampleSize:        len(cleaned),
		OutliersRemoved:   removed,
		RawValues:         rawCopy,
		CleanedValues:     cleanCopy,
	}
}

// differenceInterval bounds (mean2 - mean1) with a normal approximation.
func differenceInterval(sample1, sample2 []float64, level float64) [2]float64 {
	diff := Mean(sample2) - Mean(sample1)
	n1, n2 := len(sample1), len(sample2)
	if n1 <= 1 || n2 <= 1 {
		return [2]float64{diff, diff}
	}
	se := math.Sqrt(Variance(sample1)/float64(n1) + Variance(sample2)/float64(n2))
	margin := zForConfidence(level) * se
	return [2]float64{diff - margin, diff + margin}
}

// -----------------------------------------------------------------------------
// Analyzer
// -----------------------------------------------------------------------------

// Analyzer applies fixed analysis and outlier options to many metrics.
//
// Description:
//
//	Analyzer wraps AnalyzeRegression with tracing and debug logging so
//	orchestration code can analyze every metric of a scenario with the same
//	policy. Per-metric polarity overrides the default from the options.
//
// Thread Safety: Safe for concurrent use. All fields are read-only after
// construction.
type Analyzer struct {
	opts     AnalysisOptions
	outliers *OutlierRemovalOptions
	polarity map[string]Polarity
	logger   *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithOutlierRemoval sets the cleaning policy. Nil disables cleaning.
func WithOutlierRemoval(opts *OutlierRemovalOptions) AnalyzerOption {
	return func(a *Analyzer) {
		a.outliers = opts
	}
}

// WithMetricPolarity overrides the polarity of individual metrics.
func WithMetricPolarity(polarity map[string]Polarity) AnalyzerOption {
	return func(a *Analyzer) {
		for name, p := range polarity {
			a.polarity[name] = p
		}
	}
}

// WithAnalyzerLogger sets the logger.
func WithAnalyzerLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAnalyzer validates opts and builds an Analyzer.
func NewAnalyzer(opts AnalysisOptions, options ...AnalyzerOption) (*Analyzer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{
		opts:     opts,
		polarity: make(map[string]Polarity),
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// Options returns the analysis options in use.
func (a *Analyzer) Options() AnalysisOptions {
	return a.opts
}

// Analyze compares one metric.
//
// Inputs:
//   - ctx: Context for tracing.
//   - metricName: The metric; selects a polarity override if configured.
//   - baseline, treatment: Raw samples.
//
// Outputs:
//   - Comparison: The verdict.
//   - error: Non-nil if the outlier policy is invalid.
func (a *Analyzer) Analyze(ctx context.Context, metricName string, baseline, treatment []float64) (Comparison, error) {
	_, span := otel.Tracer("perf.stats").Start(ctx, "stats.Analyzer.Analyze",
		trace.WithAttributes(
			attribute.String("metric", metricName),
			attribute.Int("baseline_n", len(baseline)),
			attribute.Int("treatment_n", len(treatment)),
		),
	)
	defer span.End()

	opts := a.opts
	if p, ok := a.polarity[metricName]; ok {
		opts.Polarity = p
	}

	cmp, err := AnalyzeRegression(baseline, treatment, metricName, opts, a.outliers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Comparison{}, fmt.Errorf("analyze %s: %w", metricName, err)
	}

	span.SetAttributes(
		attribute.Float64("p_value", cmp.PValue),
		attribute.Float64("effect_size", cmp.EffectSize),
		attribute.Bool("regression", cmp.IsSignificantRegression),
		attribute.Bool("improvement", cmp.IsSignificantImprovement),
	)

	a.logger.Debug("metric analyzed",
		slog.String("metric", metricName),
		slog.Float64("p_value", cmp.PValue),
		slog.Float64("effect_size", cmp.EffectSize),
		slog.Float64("pct_change", cmp.PercentageChange),
		slog.Bool("regression", cmp.IsSignificantRegression),
		slog.Bool("improvement", cmp.IsSignificantImprovement),
	)

	return cmp, nil
}
