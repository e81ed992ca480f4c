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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AleutianAI/AleutianPerf/pkg/logging"
	"github.com/AleutianAI/AleutianPerf/pkg/ux"
	"github.com/AleutianAI/AleutianPerf/services/perf/telemetry"
	"github.com/spf13/cobra"
)

// errRegressionFound makes the process exit with exitRegression.
var errRegressionFound = errors.New("significant performance regression detected")

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	logLevel      string
	logJSON       bool
	logDir        string
	metricsAddr   string
	traceExporter string
}

// app carries what the persistent pre-run sets up for a command.
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	printer *ux.Printer
	logger  *logging.Logger

	opts     globalOptions
	cleanups []func(context.Context) error
}

// newRootCmd builds a fresh command tree writing to stdout and stderr.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "perfcheck",
		Short: "Statistical performance regression checks and flamechart rendering",
		Long: `perfcheck measures a baseline and a treatment deployment in alternating
rounds, tests every metric for a significant change, and fails CI on
regressions. It also renders pprof profiles as flamechart PNGs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd.Context()); err != nil {
				_ = a.teardown(context.WithoutCancel(cmd.Context()))
				return err
			}
			return nil
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.BoolVar(&a.opts.logJSON, "log-json", false, "Write console logs as JSON")
	pf.StringVar(&a.opts.logDir, "log-dir", "", "Also write JSON logs to a daily file in this directory")
	pf.StringVar(&a.opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	pf.StringVar(&a.opts.traceExporter, "trace-exporter", "", "Trace exporter: otlp, stdout or none (default from OTEL_TRACES_EXPORTER)")

	rootCmd.AddCommand(
		newCompareCmd(a),
		newAnalyzeCmd(a),
		newRenderCmd(a),
		newSandwichCmd(a),
		newTopCmd(a),
	)
	return rootCmd
}

// setup builds the logger, printer and telemetry for one invocation.
func (a *app) setup(ctx context.Context) error {
	level, err := logging.ParseLevel(a.opts.logLevel)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		JSON:    a.opts.logJSON,
		LogDir:  a.opts.logDir,
		Service: "perfcheck",
		Output:  a.stderr,
	})
	a.cleanups = append(a.cleanups, func(context.Context) error { return a.logger.Close() })

	a.printer = &ux.Printer{Out: a.stderr, Err: a.stderr, Mode: ux.DetectMode(a.stderr)}

	cfg := telemetry.DefaultConfig()
	if a.opts.traceExporter != "" {
		cfg.TraceExporter = strings.ToLower(a.opts.traceExporter)
	}
	if a.opts.metricsAddr != "" {
		cfg.MetricExporter = telemetry.ExporterPrometheus
	}
	shutdown, err := telemetry.Init(ctx, cfg)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.cleanups = append(a.cleanups, shutdown)

	if a.opts.metricsAddr != "" {
		stop, _, err := telemetry.ServeMetrics(ctx, a.opts.metricsAddr, a.logger.Slog())
		if err != nil {
			return fmt.Errorf("metrics endpoint: %w", err)
		}
		a.cleanups = append(a.cleanups, stop)
	}
	return nil
}

// runE wraps a command body so teardown runs even when the body fails.
// Cobra skips post-run hooks after an error.
func (a *app) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if terr := a.teardown(context.WithoutCancel(cmd.Context())); terr != nil && err == nil {
			err = terr
		}
		return err
	}
}

// teardown runs the cleanups in reverse order.
func (a *app) teardown(ctx context.Context) error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}

// writeOutput writes content to path, or to stdout when path is "" or "-".
func (a *app) writeOutput(path string, content []byte) error {
	if path == "" || path == "-" {
		_, err := a.stdout.Write(content)
		return err
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
