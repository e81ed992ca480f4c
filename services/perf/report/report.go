// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report turns a compare.ComparisonResult into CI artifacts: JSON,
// Markdown and terminal tables, a pass/fail gate and a short step summary.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/AleutianAI/AleutianPerf/services/perf/compare"
	"github.com/AleutianAI/AleutianPerf/services/perf/stats"
)

// ErrUnknownFormat is returned for an unsupported report format.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names a report encoding.
type Format string

// Supported formats.
const (
	JSON     Format = "json"
	Markdown Format = "markdown"
	Text     Format = "text"
)

// ParseFormat accepts json, markdown (or md) and text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "markdown", "md":
		return Markdown, nil
	case "text", "table":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ReportOptions controls Format.
type ReportOptions struct {
	// Format of the content. Default: markdown.
	Format Format

	// Title replaces the Markdown heading.
	Title string
}

// FormattedReport is a rendered report plus the CI verdict.
type FormattedReport struct {
	Content    string `json:"content"`
	Format     Format `json:"format"`
	ShouldFail bool   `json:"shouldFail"`
}

// ShouldFail reports whether CI should fail: true iff any significant
// regression was found.
func ShouldFail(result *compare.ComparisonResult) bool {
	return result.Summary.SignificantRegressions > 0
}

// FormatResult renders result according to opts.
func FormatResult(result *compare.ComparisonResult, opts ReportOptions) (FormattedReport, error) {
	if opts.Format == "" {
		opts.Format = Markdown
	}

	var (
		content string
		err     error
	)
	switch opts.Format {
	case JSON:
		content, err = FormatJSON(result)
	case Markdown:
		content = formatMarkdown(result, opts.Title)
	case Text:
		content = FormatText(result)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
	if err != nil {
		return FormattedReport{}, err
	}
	return FormattedReport{
		Content:    content,
		Format:     opts.Format,
		ShouldFail: ShouldFail(result),
	}, nil
}

// FormatJSON encodes the full result with two-space indentation.
func FormatJSON(result *compare.ComparisonResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	return string(data) + "\n", nil
}

// FormatMarkdown renders the full Markdown report.
func FormatMarkdown(result *compare.ComparisonResult) string {
	return formatMarkdown(result, "")
}

func formatMarkdown(result *compare.ComparisonResult, title string) string {
	if title == "" {
		title = "Performance Comparison Report"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	if ShouldFail(result) {
		sb.WriteString("**Status: FAIL**\n\n")
	} else {
		sb.WriteString("**Status: PASS**\n\n")
	}

	sb.WriteString(fmt.Sprintf("Run: %s\n", result.RunID))
	sb.WriteString(fmt.Sprintf("Timestamp: %s\n", result.Timestamp.Format(time.RFC3339)))
	if result.BaseURL != "" || result.TreatmentURL != "" {
		sb.WriteString(fmt.Sprintf("Base: %s\nTreatment: %s\n", result.BaseURL, result.TreatmentURL))
	}
	sb.WriteString(fmt.Sprintf("Iterations: %d, duration: %s\n\n",
		result.Config.Iterations, result.TotalExecutionTime.Round(time.Millisecond)))

	s := result.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Scenarios | Metrics | Regressions | Improvements | Neutral | Regression Rate | Improvement Rate |\n")
	sb.WriteString("|-----------|---------|-------------|--------------|---------|-----------------|------------------|\n")
	sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d | %.1f%% | %.1f%% |\n\n",
		s.TotalScenarios, s.TotalMetrics, s.SignificantRegressions, s.SignificantImprovements,
		s.NeutralChanges, s.RegressionRate, s.ImprovementRate))

	a := result.OverallAssessment
	sb.WriteString("## Overall Assessment\n\n")
	sb.WriteString(fmt.Sprintf("- **Severity**: %s\n", a.Severity))
	sb.WriteString(fmt.Sprintf("- **Confidence**: %.1f%%\n", a.Confidence*100))
	if len(a.AffectedMetrics) > 0 {
		sb.WriteString(fmt.Sprintf("- **Affected metrics**: %s\n", strings.Join(a.AffectedMetrics, ", ")))
	}
	sb.WriteString(fmt.Sprintf("- %s\n", a.Summary))

	if len(s.MostImpactedMetrics) > 0 {
		sb.WriteString("\n## Most Impacted Metrics\n\n")
		sb.WriteString("| Metric | Regressions | Improvements | Avg \\|d\\| | Max \\|d\\| | Severity |\n")
		sb.WriteString("|--------|-------------|--------------|-----------|-----------|----------|\n")
		for _, m := range s.MostImpactedMetrics {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.2f | %.2f | %s |\n",
				m.MetricName, m.RegressionCount, m.ImprovementCount,
				m.AverageEffectSize, m.MaxEffectSize, m.Severity))
		}
	}

	for _, sc := range result.Scenarios {
		writeScenario(&sb, sc, result.Config.ConfidenceLevel)
	}
	return sb.String()
}

func writeScenario(sb *strings.Builder, sc compare.ScenarioComparisonResult, level float64) {
	sb.WriteString(fmt.Sprintf("\n## Scenario: %s\n\n", sc.ScenarioName))
	if sc.Description != "" {
		sb.WriteString(sc.Description + "\n\n")
	}
	sb.WriteString(fmt.Sprintf("%s (severity: %s, samples: %d base / %d treatment)\n\n",
		sc.Assessment.Summary, sc.Assessment.Severity,
		len(sc.BaseMeasurements), len(sc.TreatmentMeasurements)))

	sb.WriteString(fmt.Sprintf("| Metric | Baseline | Treatment | Change | p-value | Effect Size | %.0f%% CI | Verdict |\n", level*100))
	sb.WriteString("|--------|----------|-----------|--------|---------|-------------|--------|---------|\n")
	for _, c := range sc.MetricComparisons {
		sb.WriteString(fmt.Sprintf("| %s | %.2f | %.2f | %s | %.4f | %+.2f | [%.2f, %.2f] | %s |\n",
			c.MetricName, c.BaselineStats.Mean, c.TreatmentStats.Mean,
			formatChange(c.PercentageChange), c.PValue, c.EffectSize,
			c.ConfidenceInterval[0], c.ConfidenceInterval[1], Verdict(c)))
	}

	var flagged []string
	for _, c := range sc.MetricComparisons {
		d, ok := sc.OutlierDiagnostics[c.MetricName]
		if !ok || d.Baseline.IQROutliers+d.Baseline.ZScoreOutliers+d.Treatment.IQROutliers+d.Treatment.ZScoreOutliers == 0 {
			continue
		}
		flagged = append(flagged, fmt.Sprintf("| %s | %d (%.0f%%) | %d (%.0f%%) | %d (%.0f%%) | %d (%.0f%%) |\n",
			c.MetricName,
			d.Baseline.IQROutliers, d.Baseline.PercentageIQR,
			d.Baseline.ZScoreOutliers, d.Baseline.PercentageZScore,
			d.Treatment.IQROutliers, d.Treatment.PercentageIQR,
			d.Treatment.ZScoreOutliers, d.Treatment.PercentageZScore))
	}
	if len(flagged) > 0 {
		sb.WriteString("\n### Outliers in raw samples\n\n")
		sb.WriteString("| Metric | Baseline IQR | Baseline z-score | Treatment IQR | Treatment z-score |\n")
		sb.WriteString("|--------|--------------|------------------|---------------|-------------------|\n")
		for _, row := range flagged {
			sb.WriteString(row)
		}
	}
}

// Verdict labels one comparison.
func Verdict(c stats.Comparison) string {
	switch {
	case c.IsSignificantRegression:
		return "regression"
	case c.IsSignificantImprovement:
		return "improvement"
	default:
		return "neutral"
	}
}

func formatChange(pct float64) string {
	switch {
	case math.IsInf(pct, 1):
		return "+∞%"
	case math.IsInf(pct, -1):
		return "-∞%"
	default:
		return fmt.Sprintf("%+.1f%%", pct)
	}
}

// StepSummary renders a short Markdown block for CI step summaries.
func StepSummary(result *compare.ComparisonResult) string {
	var sb strings.Builder
	status := "✅ No significant performance regressions"
	if ShouldFail(result) {
		status = fmt.Sprintf("❌ %d significant regression(s), severity %s",
			result.Summary.SignificantRegressions, result.OverallAssessment.Severity)
	}
	sb.WriteString(fmt.Sprintf("### Performance: %s\n\n", status))
	sb.WriteString(fmt.Sprintf("%d scenario(s), %d metric(s): %d regressed, %d improved, %d neutral.\n",
		result.Summary.TotalScenarios, result.Summary.TotalMetrics,
		result.Summary.SignificantRegressions, result.Summary.SignificantImprovements,
		result.Summary.NeutralChanges))

	for _, sc := range result.Scenarios {
		for _, c := range sc.MetricComparisons {
			if c.IsSignificantRegression {
				sb.WriteString(fmt.Sprintf("- `%s` / `%s`: %s (d=%.2f, p=%.4f)\n",
					sc.ScenarioName, c.MetricName, formatChange(c.PercentageChange), c.EffectSize, c.PValue))
			}
		}
	}
	return sb.String()
}

// FormatText renders one table row per scenario metric for terminals.
func FormatText(result *compare.ComparisonResult) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Scenario", "Metric", "Baseline", "Treatment", "Change", "p", "d", "Verdict"})
	for _, sc := range result.Scenarios {
		for _, c := range sc.MetricComparisons {
			table.Append([]string{
				sc.ScenarioName,
				c.MetricName,
				fmt.Sprintf("%.2f", c.BaselineStats.Mean),
				fmt.Sprintf("%.2f", c.TreatmentStats.Mean),
				formatChange(c.PercentageChange),
				fmt.Sprintf("%.4f", c.PValue),
				fmt.Sprintf("%+.2f", c.EffectSize),
				Verdict(c),
			})
		}
	}
	table.Render()

	fmt.Fprintf(&buf, "\n%s (severity %s, confidence %.1f%%)\n",
		result.OverallAssessment.Summary, result.OverallAssessment.Severity,
		result.OverallAssessment.Confidence*100)
	return buf.String()
}
