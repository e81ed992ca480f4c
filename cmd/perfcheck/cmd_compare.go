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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/AleutianPerf/pkg/ux"
	"github.com/AleutianAI/AleutianPerf/services/perf/compare"
	"github.com/AleutianAI/AleutianPerf/services/perf/config"
	"github.com/AleutianAI/AleutianPerf/services/perf/report"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

type compareOptions struct {
	configPath     string
	scenarios      []string
	iterations     int
	outlierRemoval int
	significance   float64
	effectSize     float64
	baseURL        string
	treatmentURL   string
	format         string
	output         string
	title          string
	stepSummary    string
	noFail         bool
}

func newCompareCmd(a *app) *cobra.Command {
	opts := &compareOptions{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Measure baseline and treatment in alternating rounds and report regressions",
		Long: `compare runs every scenario against the baseline and the treatment,
alternating variants each round, then tests every metric with a Mann-Whitney
U test and Cohen's d. Scenarios come from --config, from --scenario flags,
or both. The command exits with status 1 when any metric regressed
significantly.`,
		Example: `  perfcheck compare --config perf.yaml
  perfcheck compare --scenario home=/ --scenario search=/search?q=x \
      --base-url http://localhost:8080 --treatment-url http://localhost:8081 -n 20`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = a.runE(func(cmd *cobra.Command, _ []string) error {
		return a.runCompare(cmd, opts)
	})

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML run configuration")
	f.StringArrayVar(&opts.scenarios, "scenario", nil, "HTTP scenario as name=path (repeatable)")
	f.IntVarP(&opts.iterations, "iterations", "n", 0, "Measurement rounds per variant")
	f.IntVar(&opts.outlierRemoval, "outlier-removal", 0, "Values trimmed from each tail before analysis")
	f.Float64Var(&opts.significance, "significance", 0, "p-value threshold for significance")
	f.Float64Var(&opts.effectSize, "effect-size", 0, "Minimum |Cohen's d| for a significant change")
	f.StringVar(&opts.baseURL, "base-url", "", "Baseline deployment URL")
	f.StringVar(&opts.treatmentURL, "treatment-url", "", "Treatment deployment URL")
	f.StringVarP(&opts.format, "format", "f", "auto", "Report format: auto, json, markdown, text")
	f.StringVarP(&opts.output, "output", "o", "", "Write the report to this file instead of stdout")
	f.StringVar(&opts.title, "title", "", "Markdown report heading")
	f.StringVar(&opts.stepSummary, "step-summary", os.Getenv("GITHUB_STEP_SUMMARY"), "Append a short Markdown summary to this file")
	f.BoolVar(&opts.noFail, "no-fail", false, "Exit 0 even when regressions are found")
	return cmd
}

func (a *app) runCompare(cmd *cobra.Command, opts *compareOptions) error {
	file, err := loadRunFile(opts.configPath)
	if err != nil {
		return err
	}
	if err := applyCompareFlags(cmd, file, opts); err != nil {
		return err
	}

	cfg, err := file.ComparisonConfig()
	if err != nil {
		return err
	}
	logger := a.logger.Slog()
	executor, err := file.Executor(logger)
	if err != nil {
		return err
	}
	metrics, err := compare.NewMetrics(otel.Meter("perf.compare"))
	if err != nil {
		return err
	}
	comparator := compare.NewComparator(cfg, executor,
		compare.WithLogger(logger),
		compare.WithMetrics(metrics),
	)

	var result *compare.ComparisonResult
	msg := fmt.Sprintf("Comparing %d scenario(s) over %d rounds", len(cfg.Scenarios), cfg.Iterations)
	err = a.printer.WithSpinner(msg, func() error {
		var runErr error
		result, runErr = comparator.RunComparison(cmd.Context(), file.BaseURL, file.TreatmentURL)
		return runErr
	})
	if err != nil {
		return err
	}

	format, err := resolveFormat(opts.format, opts.output, a.stdout)
	if err != nil {
		return err
	}
	rep, err := report.FormatResult(result, report.ReportOptions{Format: format, Title: opts.title})
	if err != nil {
		return err
	}
	if err := a.writeOutput(opts.output, []byte(rep.Content)); err != nil {
		return err
	}
	if opts.stepSummary != "" {
		if err := appendFile(opts.stepSummary, report.StepSummary(result)); err != nil {
			a.printer.Warning(fmt.Sprintf("step summary not written: %v", err))
		}
	}

	printRegressions(a.printer, result)
	a.printer.RunSummary(result.Summary.SignificantRegressions, result.Summary.SignificantImprovements,
		result.Summary.NeutralChanges, result.Passed())

	if rep.ShouldFail && !opts.noFail {
		return errRegressionFound
	}
	return nil
}

// loadRunFile reads path, or starts from the defaults when path is empty.
func loadRunFile(path string) (*config.File, error) {
	if path == "" {
		f := config.Default()
		return &f, nil
	}
	return config.Load(path)
}

// applyCompareFlags overrides file values with the flags the user set and
// revalidates the result.
func applyCompareFlags(cmd *cobra.Command, file *config.File, opts *compareOptions) error {
	flags := cmd.Flags()
	if flags.Changed("iterations") {
		file.Iterations = opts.iterations
	}
	if flags.Changed("outlier-removal") {
		file.OutlierRemovalCount = opts.outlierRemoval
	}
	if flags.Changed("significance") {
		file.SignificanceThreshold = opts.significance
	}
	if flags.Changed("effect-size") {
		file.EffectSizeThreshold = opts.effectSize
	}
	if opts.baseURL != "" {
		file.BaseURL = opts.baseURL
	}
	if opts.treatmentURL != "" {
		file.TreatmentURL = opts.treatmentURL
	}

	for _, raw := range opts.scenarios {
		name, path, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: --scenario %q must be name=path", config.ErrInvalidConfig, raw)
		}
		file.Scenarios = append(file.Scenarios, config.Scenario{
			Name: strings.TrimSpace(name),
			Kind: config.KindHTTP,
			Path: strings.TrimSpace(path),
		})
	}

	if err := file.Validate(); err != nil {
		return err
	}
	for _, s := range file.Scenarios {
		if s.Kind == config.KindHTTP && (file.BaseURL == "" || file.TreatmentURL == "") {
			return fmt.Errorf("%w: http scenario %s needs --base-url and --treatment-url", config.ErrInvalidConfig, s.Name)
		}
	}
	return nil
}

// resolveFormat maps "auto" to Markdown for terminals and .md files and to
// JSON otherwise.
func resolveFormat(raw, output string, stdout io.Writer) (report.Format, error) {
	if strings.ToLower(strings.TrimSpace(raw)) != "auto" {
		return report.ParseFormat(raw)
	}
	if output != "" && output != "-" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".md", ".markdown":
			return report.Markdown, nil
		case ".txt":
			return report.Text, nil
		default:
			return report.JSON, nil
		}
	}
	if ux.IsTerminal(stdout) {
		return report.Markdown, nil
	}
	return report.JSON, nil
}

func printRegressions(p *ux.Printer, result *compare.ComparisonResult) {
	for _, sc := range result.Scenarios {
		for _, c := range sc.MetricComparisons {
			verdict := report.Verdict(c)
			if verdict == "neutral" {
				continue
			}
			p.Info(fmt.Sprintf("%s %s/%s: %+.1f%% (p=%.4f, d=%+.2f)",
				p.Verdict(verdict), sc.ScenarioName, c.MetricName, c.PercentageChange, c.PValue, c.EffectSize))
		}
	}
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
