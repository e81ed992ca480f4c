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
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianPerf/services/perf/stats"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInsufficientMeasurements indicates a scenario has no base or no
	// treatment measurements after collection.
	ErrInsufficientMeasurements = errors.New("insufficient measurements")

	// ErrNilExecutor indicates a scenario has no Execute hook and the
	// comparator has no ScenarioExecutor.
	ErrNilExecutor = errors.New("no scenario executor")

	// ErrNoScenarios indicates the configuration lists no scenarios.
	ErrNoScenarios = errors.New("no scenarios configured")

	// ErrInvalidConfig indicates the comparison configuration is invalid.
	ErrInvalidConfig = errors.New("invalid comparison config")
)

// -----------------------------------------------------------------------------
// Variants
// -----------------------------------------------------------------------------

// Variant identifies which system a measurement was taken against.
type Variant int

const (
	// VariantBase is the baseline (control).
	VariantBase Variant = iota

	// VariantTreatment is the candidate under test.
	VariantTreatment
)

// String returns "base" or "treatment".
func (v Variant) String() string {
	switch v {
	case VariantBase:
		return "base"
	case VariantTreatment:
		return "treatment"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Next returns the variant measured in the following round.
func (v Variant) Next() Variant {
	if v == VariantBase {
		return VariantTreatment
	}
	return VariantBase
}

// VariantForRound returns the variant measured in round i (0-based).
// Even rounds measure the base, odd rounds the treatment.
func VariantForRound(i int) Variant {
	if i%2 == 0 {
		return VariantBase
	}
	return VariantTreatment
}

// -----------------------------------------------------------------------------
// Measurements
// -----------------------------------------------------------------------------

// MetricCollection maps metric names to one measured value.
type MetricCollection map[string]float64

// Names returns the metric names in lexical order.
func (m MetricCollection) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MeasurementMetadata records where a measurement came from.
type MeasurementMetadata struct {
	Iteration int     `json:"iteration"`
	Variant   Variant `json:"variant"`
	Scenario  string  `json:"scenario"`
}

// MeasurementPoint is one execution of one scenario against one variant.
// It is not modified after creation.
type MeasurementPoint struct {
	Timestamp time.Time           `json:"timestamp"`
	Metrics   MetricCollection    `json:"metrics"`
	Metadata  MeasurementMetadata `json:"metadata"`
}

// ScenarioFunc measures a scenario against one variant.
type ScenarioFunc func(ctx context.Context, variant Variant) (MetricCollection, error)

// TestScenario is a named, repeatable unit of measurement.
type TestScenario struct {
	// Name identifies the scenario. Must be unique within a run.
	Name string `json:"name"`

	// Description is free-form text for reports.
	Description string `json:"description,omitempty"`

	// Path is appended to the variant URL by URL-driven executors.
	Path string `json:"path,omitempty"`

	// Timeout bounds one execution. Zero means no per-execution bound.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Execute, when set, measures the scenario instead of the comparator's
	// ScenarioExecutor.
	Execute ScenarioFunc `json:"-"`
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// ComparisonConfig controls a comparison run. It is read-only during a run.
type ComparisonConfig struct {
	// Iterations is the total number of rounds across both variants.
	// Default: 10
	Iterations int `json:"iterations"`

	// OutlierRemovalCount values are trimmed from each tail of every sample.
	// Default: 1
	OutlierRemovalCount int `json:"outlierRemovalCount"`

	// SignificanceThreshold is the p-value cutoff.
	// Default: 0.05
	SignificanceThreshold float64 `json:"significanceThreshold"`

	// EffectSizeThreshold is the |Cohen's d| cutoff.
	// Default: 0.5
	EffectSizeThreshold float64 `json:"effectSizeThreshold"`

	// ConfidenceLevel for difference intervals.
	// Default: 0.95
	ConfidenceLevel float64 `json:"confidenceLevel"`

	// Scenarios to run, in order.
	Scenarios []TestScenario `json:"scenarios"`

	// RoundDelay is the pause between rounds, not after the last.
	// Default: 1s
	RoundDelay time.Duration `json:"roundDelay"`

	// MetricPolarity overrides the higher-is-worse default per metric.
	MetricPolarity map[string]stats.Polarity `json:"metricPolarity,omitempty"`

	// AnalysisParallelism bounds concurrent scenario analysis.
	// Default: 4
	AnalysisParallelism int `json:"analysisParallelism"`
}

// DefaultComparisonConfig returns defaults with no scenarios.
func DefaultComparisonConfig() ComparisonConfig {
	return ComparisonConfig{
		Iterations:            10,
		OutlierRemovalCount:   1,
		SignificanceThreshold: 0.05,
		EffectSizeThreshold:   0.5,
		ConfidenceLevel:       0.95,
		RoundDelay:            time.Second,
		AnalysisParallelism:   4,
	}
}

// Validate checks the configuration.
//
// Outputs:
//   - error: ErrNoScenarios when empty, otherwise ErrInvalidConfig
//     wrapping the first problem found.
func (c ComparisonConfig) Validate() error {
	if len(c.Scenarios) == 0 {
		return ErrNoScenarios
	}
	if c.Iterations < 2 {
		return fmt.Errorf("%w: iterations must be at least 2, got %d", ErrInvalidConfig, c.Iterations)
	}
	if c.OutlierRemovalCount < 0 {
		return fmt.Errorf("%w: outlier removal count is negative", ErrInvalidConfig)
	}
	if c.RoundDelay < 0 {
		return fmt.Errorf("%w: round delay is negative", ErrInvalidConfig)
	}
	if err := c.analysisOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	seen := make(map[string]bool, len(c.Scenarios))
	for i, s := range c.Scenarios {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("%w: scenario %d has no name", ErrInvalidConfig, i)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate scenario %q", ErrInvalidConfig, name)
		}
		seen[name] = true
	}
	return nil
}

func (c ComparisonConfig) analysisOptions() stats.AnalysisOptions {
	opts := stats.DefaultAnalysisOptions()
	opts.SignificanceThreshold = c.SignificanceThreshold
	opts.EffectSizeThreshold = c.EffectSizeThreshold
	opts.ConfidenceLevel = c.ConfidenceLevel
	return opts
}

// ComparisonOption adjusts a ComparisonConfig, either at construction or as
// a per-run override.
type ComparisonOption func(*ComparisonConfig)

// WithIterations sets the number of rounds.
func WithIterations(n int) ComparisonOption {
	return func(c *ComparisonConfig) { c.Iterations = n }
}

// WithOutlierRemovalCount sets the per-tail trim count.
func WithOutlierRemovalCount(n int) ComparisonOption {
	return func(c *ComparisonConfig) { c.OutlierRemovalCount = n }
}

// WithSignificanceThreshold sets the p-value cutoff.
func WithSignificanceThreshold(p float64) ComparisonOption {
	return func(c *ComparisonConfig) { c.SignificanceThreshold = p }
}

// WithEffectSizeThreshold sets the |d| cutoff.
func WithEffectSizeThreshold(d float64) ComparisonOption {
	return func(c *ComparisonConfig) { c.EffectSizeThreshold = d }
}

// WithScenarios replaces the scenario list.
func WithScenarios(scenarios ...TestScenario) ComparisonOption {
	return func(c *ComparisonConfig) { c.Scenarios = scenarios }
}

// WithRoundDelay sets the pause between rounds.
func WithRoundDelay(d time.Duration) ComparisonOption {
	return func(c *ComparisonConfig) { c.RoundDelay = d }
}

// WithMetricPolarity sets a polarity override for one metric.
func WithMetricPolarity(metric string, p stats.Polarity) ComparisonOption {
	return func(c *ComparisonConfig) {
		merged := make(map[string]stats.Polarity, len(c.MetricPolarity)+1)
		for k, v := range c.MetricPolarity {
			merged[k] = v
		}
		merged[metric] = p
		c.MetricPolarity = merged
	}
}

// WithAnalysisParallelism bounds concurrent scenario analysis.
func WithAnalysisParallelism(n int) ComparisonOption {
	return func(c *ComparisonConfig) { c.AnalysisParallelism = n }
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// Severity grades a regression assessment.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMinor
	SeverityModerate
	SeveritySevere
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityMinor:
		return "minor"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ImpactSeverity grades a metric across all scenarios.
type ImpactSeverity int

const (
	ImpactLow ImpactSeverity = iota
	ImpactMedium
	ImpactHigh
)

// String returns the impact name.
func (s ImpactSeverity) String() string {
	switch s {
	case ImpactLow:
		return "low"
	case ImpactMedium:
		return "medium"
	case ImpactHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ImpactSeverity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RegressionAssessment summarizes significant regressions.
type RegressionAssessment struct {
	Severity        Severity `json:"severity"`
	Confidence      float64  `json:"confidence"`
	AffectedMetrics []string `json:"affectedMetrics"`
	Summary         string   `json:"summary"`
}

// OutlierDiagnostics reports outlier counts of the raw samples of a metric.
type OutlierDiagnostics struct {
	Baseline  stats.OutlierStatistics `json:"baseline"`
	Treatment stats.OutlierStatistics `json:"treatment"`
}

// ScenarioComparisonResult is the analysis of one scenario.
type ScenarioComparisonResult struct {
	ScenarioName          string                        `json:"scenarioName"`
	Description           string                        `json:"description,omitempty"`
	MetricComparisons     []stats.Comparison            `json:"metricComparisons"`
	Assessment            RegressionAssessment          `json:"assessment"`
	OutlierDiagnostics    map[string]OutlierDiagnostics `json:"outlierDiagnostics,omitempty"`
	BaseMeasurements      []MeasurementPoint            `json:"baseMeasurements"`
	TreatmentMeasurements []MeasurementPoint            `json:"treatmentMeasurements"`
	ExecutionTime         time.Duration                 `json:"executionTime"`
	Timestamp             time.Time                     `json:"timestamp"`
}

// MetricImpact aggregates one metric across scenarios.
type MetricImpact struct {
	MetricName        string         `json:"metricName"`
	RegressionCount   int            `json:"regressionCount"`
	ImprovementCount  int            `json:"improvementCount"`
	AverageEffectSize float64        `json:"averageEffectSize"`
	MaxEffectSize     float64        `json:"maxEffectSize"`
	Severity          ImpactSeverity `json:"severity"`
}

// ComparisonSummary holds run-level counts and rates.
type ComparisonSummary struct {
	TotalScenarios          int `json:"totalScenarios"`
	TotalMetrics            int `json:"totalMetrics"`
	SignificantRegressions  int `json:"significantRegressions"`
	SignificantImprovements int `json:"significantImprovements"`
	NeutralChanges          int `json:"neutralChanges"`

	// RegressionRate and ImprovementRate are percentages of TotalMetrics.
	RegressionRate  float64 `json:"regressionRate"`
	ImprovementRate float64 `json:"improvementRate"`

	// MostImpactedMetrics holds at most five metrics by max |d|.
	MostImpactedMetrics []MetricImpact `json:"mostImpactedMetrics"`
}

// ComparisonResult is the immutable output of one run.
type ComparisonResult struct {
	RunID              string                     `json:"runId"`
	Summary            ComparisonSummary          `json:"summary"`
	Scenarios          []ScenarioComparisonResult `json:"scenarios"`
	OverallAssessment  RegressionAssessment       `json:"overallAssessment"`
	Config             ComparisonConfig           `json:"config"`
	BaseURL            string                     `json:"baseUrl,omitempty"`
	TreatmentURL       string                     `json:"treatmentUrl,omitempty"`
	Timestamp          time.Time                  `json:"timestamp"`
	TotalExecutionTime time.Duration              `json:"totalExecutionTime"`
}

// Passed reports whether the run found no significant regression.
func (r *ComparisonResult) Passed() bool {
	return r.Summary.SignificantRegressions == 0
}
