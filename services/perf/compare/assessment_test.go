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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPerf/services/perf/stats"
)

func regression(name string, d, p float64) stats.Comparison {
	return stats.Comparison{MetricName: name, EffectSize: d, PValue: p, IsSignificantRegression: true}
}

func improvement(name string, d float64) stats.Comparison {
	return stats.Comparison{MetricName: name, EffectSize: d, PValue: 0.01, IsSignificantImprovement: true}
}

func neutral(name string, d float64) stats.Comparison {
	return stats.Comparison{MetricName: name, EffectSize: d, PValue: 0.5}
}

func TestSeverityForEffect(t *testing.T) {
	tests := []struct {
		effect float64
		want   Severity
	}{
		{0.6, SeverityMinor},
		{1.0, SeverityMinor},
		{1.01, SeverityModerate},
		{1.5, SeverityModerate},
		{1.51, SeveritySevere},
	}
	for _, tt := range tests {
		if got := severityForEffect(tt.effect); got != tt.want {
			t.Errorf("severityForEffect(%v) = %v, want %v", tt.effect, got, tt.want)
		}
	}
}

func TestCalculateScenarioAssessment(t *testing.T) {
	tests := []struct {
		name        string
		comparisons []stats.Comparison
		severity    Severity
		summary     string
		confidence  float64
	}{
		{
			name:        "nothing significant",
			comparisons: []stats.Comparison{neutral("lcp", 0.1)},
			severity:    SeverityNone,
			summary:     "No significant changes detected",
		},
		{
			name:        "improvements only",
			comparisons: []stats.Comparison{improvement("lcp", -2), improvement("tbt", -1)},
			severity:    SeverityNone,
			summary:     "2 metric(s) improved significantly",
		},
		{
			name:        "regressions only",
			comparisons: []stats.Comparison{regression("lcp", 1.2, 0.01), regression("tbt", -0.7, 0.04)},
			severity:    SeverityModerate,
			summary:     "2 metric(s) regressed significantly",
			confidence:  0.96,
		},
		{
			name:        "mixed",
			comparisons: []stats.Comparison{regression("lcp", 2, 0.001), improvement("tbt", -1)},
			severity:    SeveritySevere,
			summary:     "1 regression(s), 1 improvement(s)",
			confidence:  0.999,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateScenarioAssessment(tt.comparisons)
			assert.Equal(t, tt.severity, got.Severity)
			assert.Equal(t, tt.summary, got.Summary)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-12)
			assert.NotNil(t, got.AffectedMetrics)
		})
	}
}

func TestCalculateOverallAssessment(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		got := calculateOverallAssessment([]ScenarioComparisonResult{
			{MetricComparisons: []stats.Comparison{neutral("lcp", 0)}},
		})
		assert.Equal(t, SeverityNone, got.Severity)
		assert.Zero(t, got.Confidence)
		assert.Equal(t, "No significant performance regressions detected", got.Summary)
	})

	t.Run("deduplicates metrics", func(t *testing.T) {
		got := calculateOverallAssessment([]ScenarioComparisonResult{
			{MetricComparisons: []stats.Comparison{regression("lcp", 0.8, 0.03)}},
			{MetricComparisons: []stats.Comparison{regression("lcp", 1.7, 0.002), regression("tbt", 0.9, 0.04)}},
		})
		assert.Equal(t, SeveritySevere, got.Severity)
		assert.Equal(t, []string{"lcp", "tbt"}, got.AffectedMetrics)
		assert.InDelta(t, 0.998, got.Confidence, 1e-12)
		assert.Equal(t, "3 significant regression(s) across 2 metric(s)", got.Summary)
	})
}

func TestClassifyMetricSeverity(t *testing.T) {
	tests := []struct {
		regressions int
		maxEffect   float64
		want        ImpactSeverity
	}{
		{0, 5, ImpactLow},
		{1, 0.6, ImpactLow},
		{1, 1.2, ImpactMedium},
		{2, 0.6, ImpactMedium},
		{1, 1.6, ImpactHigh},
		{3, 0.6, ImpactHigh},
	}
	for _, tt := range tests {
		if got := classifyMetricSeverity(tt.regressions, tt.maxEffect); got != tt.want {
			t.Errorf("classifyMetricSeverity(%d, %v) = %v, want %v",
				tt.regressions, tt.maxEffect, got, tt.want)
		}
	}
}

func TestCalculateSummary(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := calculateSummary(nil)
		assert.Zero(t, got.TotalMetrics)
		assert.Zero(t, got.RegressionRate)
		assert.Zero(t, got.ImprovementRate)
		assert.Empty(t, got.MostImpactedMetrics)
	})

	t.Run("top five by max effect", func(t *testing.T) {
		var comparisons []stats.Comparison
		for i := 0; i < 7; i++ {
			comparisons = append(comparisons, neutral(fmt.Sprintf("m%d", i), float64(i)/10))
		}
		comparisons = append(comparisons, regression("m1", -3, 0.01))

		got := calculateSummary([]ScenarioComparisonResult{
			{MetricComparisons: comparisons[:4]},
			{MetricComparisons: comparisons[4:]},
		})

		assert.Equal(t, 2, got.TotalScenarios)
		assert.Equal(t, 8, got.TotalMetrics)
		assert.Equal(t, 1, got.SignificantRegressions)
		assert.Equal(t, 7, got.NeutralChanges)
		assert.InDelta(t, 12.5, got.RegressionRate, 1e-12)

		require.Len(t, got.MostImpactedMetrics, 5)
		first := got.MostImpactedMetrics[0]
		assert.Equal(t, "m1", first.MetricName)
		assert.Equal(t, 3.0, first.MaxEffectSize)
		assert.InDelta(t, 1.55, first.AverageEffectSize, 1e-12)
		assert.Equal(t, 1, first.RegressionCount)
		assert.Equal(t, ImpactHigh, first.Severity)

		names := make([]string, 0, 5)
		for _, m := range got.MostImpactedMetrics {
			names = append(names, m.MetricName)
		}
		assert.Equal(t, []string{"m1", "m6", "m5", "m4", "m3"}, names)
	})
}
