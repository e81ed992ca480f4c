// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianPerf/services/perf/compare"
)

// ErrNoCommand is returned when no command is configured for a scenario.
var ErrNoCommand = errors.New("no command configured")

// Environment variables set for every command execution.
const (
	EnvTargetURL = "PERF_TARGET_URL"
	EnvVariant   = "PERF_VARIANT"
	EnvScenario  = "PERF_SCENARIO"
)

// CommandExecutor runs an external command per execution.
//
// Description:
//
//	The command for a scenario is looked up by scenario name, falling back
//	to the default command. It runs with PERF_TARGET_URL, PERF_VARIANT and
//	PERF_SCENARIO added to the environment. The wall time is reported as
//	"duration" and the process CPU time as "userCpu" and "systemCpu", all
//	in milliseconds. When stdout holds a JSON object of numbers those are
//	merged into the metrics; keys in the output win.
//
// Thread Safety: Safe for concurrent use after construction.
type CommandExecutor struct {
	defaultCommand []string
	commands       map[string][]string
	dir            string
	logger         *slog.Logger
}

// CommandOption configures a CommandExecutor.
type CommandOption func(*CommandExecutor)

// WithScenarioCommand sets the argv for one scenario.
func WithScenarioCommand(scenario string, argv ...string) CommandOption {
	return func(e *CommandExecutor) { e.commands[scenario] = argv }
}

// WithWorkDir sets the working directory of executed commands.
func WithWorkDir(dir string) CommandOption {
	return func(e *CommandExecutor) { e.dir = dir }
}

// WithCommandLogger sets the logger.
func WithCommandLogger(logger *slog.Logger) CommandOption {
	return func(e *CommandExecutor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewCommandExecutor creates a CommandExecutor. defaultCommand may be empty
// when every scenario has its own command.
func NewCommandExecutor(defaultCommand []string, opts ...CommandOption) *CommandExecutor {
	e := &CommandExecutor{
		defaultCommand: defaultCommand,
		commands:       make(map[string][]string),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteScenario runs the scenario's command against the variant URL.
func (e *CommandExecutor) ExecuteScenario(
	ctx context.Context,
	scenario compare.TestScenario,
	variant compare.Variant,
	baseURL, treatmentURL string,
) (compare.MetricCollection, error) {
	argv, ok := e.commands[scenario.Name]
	if !ok {
		argv = e.defaultCommand
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: scenario %s", ErrNoCommand, scenario.Name)
	}

	target := baseURL
	if variant == compare.VariantTreatment {
		target = treatmentURL
	}
	target = JoinURL(target, scenario.Path)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.dir
	cmd.Env = append(os.Environ(),
		EnvTargetURL+"="+target,
		EnvVariant+"="+variant.String(),
		EnvScenario+"="+scenario.Name,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("running %s: %w: %s", argv[0], err, strings.TrimSpace(stderr.String()))
	}

	metrics := compare.MetricCollection{
		MetricDuration:  durationMillis(elapsed),
		MetricUserCPU:   durationMillis(cmd.ProcessState.UserTime()),
		MetricSystemCPU: durationMillis(cmd.ProcessState.SystemTime()),
	}
	if out := bytes.TrimSpace(stdout.Bytes()); len(out) > 0 && out[0] == '{' {
		var reported map[string]float64
		if err := json.Unmarshal(out, &reported); err != nil {
			return nil, fmt.Errorf("parsing metrics from %s: %w", argv[0], err)
		}
		for name, v := range reported {
			metrics[name] = v
		}
	}

	e.logger.Debug("command scenario executed",
		slog.String("scenario", scenario.Name),
		slog.String("variant", variant.String()),
		slog.Duration("elapsed", elapsed),
		slog.Int("metrics", len(metrics)),
	)
	return metrics, nil
}

func durationMillis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
