// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianPerf/services/perf/report"
	"github.com/AleutianAI/AleutianPerf/services/perf/stats"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// errNoValues is returned when a sample flag yields no numbers.
var errNoValues = errors.New("no sample values")

type analyzeOptions struct {
	metric          string
	baseline        string
	treatment       string
	baselineFile    string
	treatmentFile   string
	outlierMethod   string
	outlierRemoval  int
	zscoreThreshold float64
	significance    float64
	effectSize      float64
	confidence      float64
	polarity        string
	format          string
	noFail          bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	defaults := stats.DefaultAnalysisOptions()
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Test two samples of one metric for a significant regression",
		Long: `analyze runs the regression analysis on two samples you already have,
for example benchmark timings collected elsewhere. Values are separated by
commas or whitespace; files hold the same format.`,
		Example: `  perfcheck analyze --metric p95 --baseline 101,99,104,98 --treatment 120,118,125,119
  perfcheck analyze --baseline-file main.txt --treatment-file pr.txt --outlier-method iqr`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = a.runE(func(cmd *cobra.Command, _ []string) error {
		return a.runAnalyze(opts)
	})

	f := cmd.Flags()
	f.StringVarP(&opts.metric, "metric", "m", "value", "Metric name used in the output")
	f.StringVar(&opts.baseline, "baseline", "", "Baseline values")
	f.StringVar(&opts.treatment, "treatment", "", "Treatment values")
	f.StringVar(&opts.baselineFile, "baseline-file", "", "File with baseline values")
	f.StringVar(&opts.treatmentFile, "treatment-file", "", "File with treatment values")
	f.StringVar(&opts.outlierMethod, "outlier-method", "trim", "Outlier removal: trim, iqr, zscore")
	f.IntVar(&opts.outlierRemoval, "outlier-removal", 0, "Values trimmed from each tail (trim method)")
	f.Float64Var(&opts.zscoreThreshold, "zscore-threshold", stats.DefaultZScoreThreshold, "|z| cutoff (zscore method)")
	f.Float64Var(&opts.significance, "significance", defaults.SignificanceThreshold, "p-value threshold")
	f.Float64Var(&opts.effectSize, "effect-size", defaults.EffectSizeThreshold, "Minimum |Cohen's d|")
	f.Float64Var(&opts.confidence, "confidence", defaults.ConfidenceLevel, "Confidence level of the interval")
	f.StringVar(&opts.polarity, "polarity", defaults.Polarity.String(), "higher_is_worse or lower_is_worse")
	f.StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	f.BoolVar(&opts.noFail, "no-fail", false, "Exit 0 even when the metric regressed")
	return cmd
}

func (a *app) runAnalyze(opts *analyzeOptions) error {
	baseline, err := sampleValues("baseline", opts.baseline, opts.baselineFile)
	if err != nil {
		return err
	}
	treatment, err := sampleValues("treatment", opts.treatment, opts.treatmentFile)
	if err != nil {
		return err
	}

	polarity, err := stats.ParsePolarity(opts.polarity)
	if err != nil {
		return err
	}
	analysis := stats.AnalysisOptions{
		SignificanceThreshold: opts.significance,
		EffectSizeThreshold:   opts.effectSize,
		ConfidenceLevel:       opts.confidence,
		Polarity:              polarity,
	}
	outlierOpts, err := outlierOptions(opts)
	if err != nil {
		return err
	}

	a.logger.Debug("analyzing samples",
		"metric", opts.metric,
		"baseline_n", len(baseline),
		"treatment_n", len(treatment),
	)
	cmp, err := stats.AnalyzeRegression(baseline, treatment, opts.metric, analysis, outlierOpts)
	if err != nil {
		return err
	}

	var out []byte
	switch strings.ToLower(opts.format) {
	case "json":
		out, err = json.MarshalIndent(cmp, "", "  ")
		if err != nil {
			return err
		}
		out = append(out, '\n')
	case "text", "":
		out = []byte(formatComparison(cmp))
	default:
		return fmt.Errorf("%w: %q", report.ErrUnknownFormat, opts.format)
	}
	if err := a.writeOutput("", out); err != nil {
		return err
	}

	a.printer.Info(fmt.Sprintf("%s: %s", cmp.MetricName, a.printer.Verdict(report.Verdict(cmp))))
	if cmp.IsSignificantRegression && !opts.noFail {
		return errRegressionFound
	}
	return nil
}

// outlierOptions returns nil when no outlier removal was requested.
func outlierOptions(opts *analyzeOptions) (*stats.OutlierRemovalOptions, error) {
	method, err := stats.ParseOutlierMethod(opts.outlierMethod)
	if err != nil {
		return nil, err
	}
	switch method {
	case stats.OutlierMethodTrim:
		if opts.outlierRemoval <= 0 {
			return nil, nil
		}
		return stats.TrimOutliers(opts.outlierRemoval), nil
	case stats.OutlierMethodZScore:
		return &stats.OutlierRemovalOptions{Method: method, ZScoreThreshold: opts.zscoreThreshold}, nil
	default:
		return &stats.OutlierRemovalOptions{Method: method}, nil
	}
}

// sampleValues reads values from inline text or, when file is set, a file.
func sampleValues(name, inline, file string) ([]float64, error) {
	text := inline
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s values: %w", name, err)
		}
		text = string(data)
	}
	values, err := parseValues(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s", errNoValues, name)
	}
	return values, nil
}

// parseValues splits on commas, semicolons and whitespace.
func parseValues(text string) ([]float64, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	values := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", field, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func formatComparison(c stats.Comparison) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Sample", "n", "Removed", "Mean", "Median", "StdDev", "Min", "Max"})
	for _, row := range []struct {
		name string
		s    stats.SampleStatistics
	}{{"baseline", c.BaselineStats}, {"treatment", c.TreatmentStats}} {
		table.Append([]string{
			row.name,
			strconv.Itoa(row.s.SampleSize),
			strconv.Itoa(row.s.OutliersRemoved),
			fmt.Sprintf("%.3f", row.s.Mean),
			fmt.Sprintf("%.3f", row.s.Median),
			fmt.Sprintf("%.3f", row.s.StandardDeviation),
			fmt.Sprintf("%.3f", row.s.Min),
			fmt.Sprintf("%.3f", row.s.Max),
		})
	}
	table.Render()

	fmt.Fprintf(&buf, "\nmetric:     %s (%s)\n", c.MetricName, c.Polarity)
	fmt.Fprintf(&buf, "change:     %+.2f%% (%+.3f)\n", c.PercentageChange, c.AbsoluteDifference)
	fmt.Fprintf(&buf, "p-value:    %.4f (%s)\n", c.PValue, c.MannWhitney.Approximation)
	fmt.Fprintf(&buf, "effect d:   %+.3f\n", c.EffectSize)
	fmt.Fprintf(&buf, "interval:   [%.3f, %.3f]\n", c.ConfidenceInterval[0], c.ConfidenceInterval[1])
	fmt.Fprintf(&buf, "verdict:    %s\n", report.Verdict(c))
	return buf.String()
}
