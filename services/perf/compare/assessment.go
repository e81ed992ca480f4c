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
	"math"
	"sort"

	"github.com/AleutianAI/AleutianPerf/services/perf/stats"
)

const (
	// severeEffectSize and moderateEffectSize grade the largest |d| among
	// significant regressions.
	severeEffectSize   = 1.5
	moderateEffectSize = 1.0

	// mostImpactedLimit bounds ComparisonSummary.MostImpactedMetrics.
	mostImpactedLimit = 5
)

// severityForEffect grades the largest absolute effect size of a set of
// significant regressions.
func severityForEffect(maxEffect float64) Severity {
	switch {
	case maxEffect > severeEffectSize:
		return SeveritySevere
	case maxEffect > moderateEffectSize:
		return SeverityModerate
	default:
		return SeverityMinor
	}
}

func regressionsOf(comparisons []stats.Comparison) []stats.Comparison {
	var out []stats.Comparison
	for _, c := range comparisons {
		if c.IsSignificantRegression {
			out = append(out, c)
		}
	}
	return out
}

// calculateScenarioAssessment grades one scenario.
//
// Confidence is the smallest 1-p over its significant regressions.
func calculateScenarioAssessment(comparisons []stats.Comparison) RegressionAssessment {
	regressions := regressionsOf(comparisons)
	improvements := 0
	for _, c := range comparisons {
		if c.IsSignificantImprovement {
			improvements++
		}
	}

	if len(regressions) == 0 {
		summary := "No significant changes detected"
		if improvements > 0 {
			summary = fmt.Sprintf("%d metric(s) improved significantly", improvements)
		}
		return RegressionAssessment{
			Severity:        SeverityNone,
			Confidence:      0,
			AffectedMetrics: []string{},
			Summary:         summary,
		}
	}

	maxEffect := 0.0
	confidence := 1.0
	affected := make([]string, 0, len(regressions))
	for _, r := range regressions {
		maxEffect = math.Max(maxEffect, math.Abs(r.EffectSize))
		confidence = math.Min(confidence, 1-r.PValue)
		affected = append(affected, r.MetricName)
	}

	summary := fmt.Sprintf("%d metric(s) regressed significantly", len(regressions))
	if improvements > 0 {
		summary = fmt.Sprintf("%d regression(s), %d improvement(s)", len(regressions), improvements)
	}

	return RegressionAssessment{
		Severity:        severityForEffect(maxEffect),
		Confidence:      confidence,
		AffectedMetrics: affected,
		Summary:         summary,
	}
}

// calculateOverallAssessment grades the whole run.
//
// Confidence is 1 minus the smallest p-value over all significant
// regressions. Affected metrics are deduplicated in first-seen order.
func calculateOverallAssessment(scenarios []ScenarioComparisonResult) RegressionAssessment {
	var regressions []stats.Comparison
	for _, s := range scenarios {
		regressions = append(regressions, regressionsOf(s.MetricComparisons)...)
	}

	if len(regressions) == 0 {
		return RegressionAssessment{
			Severity:        SeverityNone,
			Confidence:      0,
			AffectedMetrics: []string{},
			Summary:         "No significant performance regressions detected",
		}
	}

	maxEffect := 0.0
	minP := 1.0
	seen := make(map[string]bool)
	affected := make([]string, 0, len(regressions))
	for _, r := range regressions {
		maxEffect = math.Max(maxEffect, math.Abs(r.EffectSize))
		minP = math.Min(minP, r.PValue)
		if !seen[r.MetricName] {
			seen[r.MetricName] = true
			affected = append(affected, r.MetricName)
		}
	}

	return RegressionAssessment{
		Severity:        severityForEffect(maxEffect),
		Confidence:      1 - minP,
		AffectedMetrics: affected,
		Summary: fmt.Sprintf("%d significant regression(s) across %d metric(s)",
			len(regressions), len(affected)),
	}
}

// calculateSummary aggregates counts, rates and the most impacted metrics.
func calculateSummary(scenarios []ScenarioComparisonResult) ComparisonSummary {
	summary := ComparisonSummary{TotalScenarios: len(scenarios)}

	type impact struct {
		effects      []float64
		regressions  int
		improvements int
	}
	impacts := make(map[string]*impact)
	var order []string

	for _, s := range scenarios {
		for _, c := range s.MetricComparisons {
			summary.TotalMetrics++
			switch {
			case c.IsSignificantRegression:
				summary.SignificantRegressions++
			case c.IsSignificantImprovement:
				summary.SignificantImprovements++
			default:
				summary.NeutralChanges++
			}

			im, ok := impacts[c.MetricName]
			if !ok {
				im = &impact{}
				impacts[c.MetricName] = im
				order = append(order, c.MetricName)
			}
			im.effects = append(im.effects, math.Abs(c.EffectSize))
			if c.IsSignificantRegression {
				im.regressions++
			}
			if c.IsSignificantImprovement {
				im.improvements++
			}
		}
	}

	if summary.TotalMetrics > 0 {
		total := float64(summary.TotalMetrics)
		summary.RegressionRate = float64(summary.SignificantRegressions) / total * 100
		summary.ImprovementRate = float64(summary.SignificantImprovements) / total * 100
	}

	metrics := make([]MetricImpact, 0, len(order))
	for _, name := range order {
		im := impacts[name]
		maxEffect := 0.0
		for _, e := range im.effects {
			maxEffect = math.Max(maxEffect, e)
		}
		metrics = append(metrics, MetricImpact{
			MetricName:        name,
			RegressionCount:   im.regressions,
			ImprovementCount:  im.improvements,
			AverageEffectSize: stats.Mean(im.effects),
			MaxEffectSize:     maxEffect,
			Severity:          classifyMetricSeverity(im.regressions, maxEffect),
		})
	}
	sort.SliceStable(metrics, func(i, j int) bool {
		return metrics[i].MaxEffectSize > metrics[j].MaxEffectSize
	})
	if len(metrics) > mostImpactedLimit {
		metrics = metrics[:mostImpactedLimit]
	}
	summary.MostImpactedMetrics = metrics
	return summary
}

// classifyMetricSeverity grades a metric from its regression count and its
// largest absolute effect size. Metrics that never regressed are low.
func classifyMetricSeverity(regressions int, maxEffect float64) ImpactSeverity {
	switch {
	case regressions == 0:
		return ImpactLow
	case regressions >= 3 || maxEffect > severeEffectSize:
		return ImpactHigh
	case regressions >= 2 || maxEffect > moderateEffectSize:
		return ImpactMedium
	default:
		return ImpactLow
	}
}
