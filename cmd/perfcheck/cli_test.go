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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianPerf/services/perf/config"
	"github.com/AleutianAI/AleutianPerf/services/perf/profile"
	"github.com/AleutianAI/AleutianPerf/services/perf/report"
	pprof "github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CI", "true")
	t.Setenv("OTEL_TRACES_EXPORTER", "none")
	t.Setenv("OTEL_METRICS_EXPORTER", "none")
	t.Setenv("GITHUB_STEP_SUMMARY", "")

	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// =============================================================================
// Helpers
// =============================================================================

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitRegression, exitCode(fmt.Errorf("wrapped: %w", errRegressionFound)))
	assert.Equal(t, exitError, exitCode(errors.New("boom")))
}

func TestParseValues(t *testing.T) {
	values, err := parseValues("1, 2.5;3\n4\t5e1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 3, 4, 50}, values)

	values, err = parseValues("  ")
	require.NoError(t, err)
	assert.Empty(t, values)

	_, err = parseValues("1,x")
	assert.Error(t, err)
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		raw, output string
		want        report.Format
	}{
		{"auto", "", report.JSON},
		{"auto", "-", report.JSON},
		{"auto", "out/report.md", report.Markdown},
		{"auto", "report.txt", report.Text},
		{"auto", "report.json", report.JSON},
		{"md", "", report.Markdown},
		{"text", "report.json", report.Text},
	}
	for _, tt := range tests {
		got, err := resolveFormat(tt.raw, tt.output, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "raw=%s output=%s", tt.raw, tt.output)
	}

	_, err := resolveFormat("yaml", "", &bytes.Buffer{})
	assert.ErrorIs(t, err, report.ErrUnknownFormat)
}

// =============================================================================
// analyze
// =============================================================================

func TestAnalyze_Regression(t *testing.T) {
	stdout, stderr, err := execute(t, "analyze",
		"--metric", "p95",
		"--baseline", "10,11,12,10,11,12,10,11,12,10",
		"--treatment", "20,21,22,20,21,22,20,21,22,20",
		"--format", "json",
	)
	require.ErrorIs(t, err, errRegressionFound)

	var cmp map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &cmp))
	assert.Equal(t, "p95", cmp["metricName"])
	assert.Equal(t, true, cmp["isSignificantRegression"])
	assert.Contains(t, stderr, "p95: ▲ regression")
}

func TestAnalyze_NoFailAndText(t *testing.T) {
	stdout, _, err := execute(t, "analyze",
		"--baseline", "10,11,12,10,11,12,10,11,12,10",
		"--treatment", "20,21,22,20,21,22,20,21,22,20",
		"--no-fail",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "verdict:    regression")
	assert.Contains(t, stdout, "baseline")
}

func TestAnalyze_LowerIsWorseImprovement(t *testing.T) {
	stdout, _, err := execute(t, "analyze",
		"--metric", "fps",
		"--polarity", "lower_is_worse",
		"--baseline", "10,11,12,10,11,12,10,11,12,10",
		"--treatment", "20,21,22,20,21,22,20,21,22,20",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "verdict:    improvement")
}

func TestAnalyze_FromFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.txt")
	treat := filepath.Join(dir, "treat.txt")
	require.NoError(t, os.WriteFile(base, []byte("5\n5\n6\n6\n5\n6\n5\n6\n"), 0600))
	require.NoError(t, os.WriteFile(treat, []byte("5\n6\n5\n6\n5\n6\n6\n5\n"), 0600))

	stdout, _, err := execute(t, "analyze", "--baseline-file", base, "--treatment-file", treat)
	require.NoError(t, err)
	assert.Contains(t, stdout, "verdict:    neutral")
}

func TestAnalyze_Errors(t *testing.T) {
	_, _, err := execute(t, "analyze", "--baseline", "1,2", "--treatment", "")
	assert.ErrorIs(t, err, errNoValues)

	_, _, err = execute(t, "analyze", "--baseline", "1,2", "--treatment", "3,4", "--outlier-method", "magic")
	assert.Error(t, err)

	_, _, err = execute(t, "analyze", "--baseline", "1,2", "--treatment", "3,4", "--format", "xml")
	assert.ErrorIs(t, err, report.ErrUnknownFormat)

	_, _, err = execute(t, "analyze", "--baseline", "1,2", "--treatment", "3,4", "--log-level", "loud")
	assert.Error(t, err)
}

// =============================================================================
// compare
// =============================================================================

func newSleepServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(delay)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeRunFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "perf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestCompare_DetectsSlowTreatment(t *testing.T) {
	base := newSleepServer(t, 0)
	treat := newSleepServer(t, 40*time.Millisecond)
	runFile := writeRunFile(t, `
iterations: 10
round_delay: 0s
scenarios:
  - name: home
    path: /
`)
	summary := filepath.Join(t.TempDir(), "summary.md")

	stdout, stderr, err := execute(t, "compare",
		"--config", runFile,
		"--base-url", base.URL,
		"--treatment-url", treat.URL,
		"--step-summary", summary,
	)
	require.ErrorIs(t, err, errRegressionFound)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.NotEmpty(t, result["runId"])
	assert.Contains(t, stderr, "SUMMARY: status=fail")
	assert.Contains(t, stderr, "PROGRESS: Comparing 1 scenario(s) over 10 rounds")

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	assert.Contains(t, string(data), "### Performance: ❌")
}

func TestCompare_ScenarioFlagsAndMarkdownFile(t *testing.T) {
	base := newSleepServer(t, 0)
	treat := newSleepServer(t, 40*time.Millisecond)
	out := filepath.Join(t.TempDir(), "report.md")
	runFile := writeRunFile(t, `
iterations: 4
round_delay: 0s
scenarios:
  - name: root
    path: /
`)

	_, _, err := execute(t, "compare",
		"--config", runFile,
		"--scenario", "health=/healthz",
		"--iterations", "6",
		"--base-url", base.URL,
		"--treatment-url", treat.URL,
		"--output", out,
		"--no-fail",
	)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "health")
	assert.Contains(t, string(data), "root")
}

func TestCompare_ConfigErrors(t *testing.T) {
	_, _, err := execute(t, "compare")
	assert.ErrorIs(t, err, config.ErrInvalidConfig, "no scenarios")

	_, _, err = execute(t, "compare", "--scenario", "home=/")
	assert.ErrorIs(t, err, config.ErrInvalidConfig, "missing URLs")

	_, _, err = execute(t, "compare", "--scenario", "=/", "--base-url", "http://a", "--treatment-url", "http://b")
	assert.ErrorIs(t, err, config.ErrInvalidConfig, "missing name")

	_, _, err = execute(t, "compare", "--scenario", "home=/", "--iterations", "1",
		"--base-url", "http://a", "--treatment-url", "http://b")
	assert.ErrorIs(t, err, config.ErrInvalidConfig, "too few iterations")

	_, _, err = execute(t, "compare", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// =============================================================================
// render, sandwich, top
// =============================================================================

func writePprof(t *testing.T) string {
	t.Helper()
	mainFn := &pprof.Function{ID: 1, Name: "main.main", Filename: "main.go", StartLine: 5}
	workFn := &pprof.Function{ID: 2, Name: "main.work", Filename: "work.go", StartLine: 12}
	hashFn := &pprof.Function{ID: 3, Name: "crypto.hash", Filename: "hash.go", StartLine: 40}

	mainLoc := &pprof.Location{ID: 1, Address: 0x10, Line: []pprof.Line{{Function: mainFn, Line: 7}}}
	workLoc := &pprof.Location{ID: 2, Address: 0x20, Line: []pprof.Line{{Function: workFn, Line: 14}}}
	hashLoc := &pprof.Location{ID: 3, Address: 0x30, Line: []pprof.Line{{Function: hashFn, Line: 41}}}

	p := &pprof.Profile{
		SampleType:        []*pprof.ValueType{{Type: "samples", Unit: "count"}, {Type: "cpu", Unit: "nanoseconds"}},
		DefaultSampleType: "cpu",
		Sample: []*pprof.Sample{
			{Location: []*pprof.Location{hashLoc, workLoc, mainLoc}, Value: []int64{6, 6_000_000}},
			{Location: []*pprof.Location{workLoc, mainLoc}, Value: []int64{3, 3_000_000}},
			{Location: []*pprof.Location{mainLoc}, Value: []int64{1, 1_000_000}},
		},
		Location: []*pprof.Location{mainLoc, workLoc, hashLoc},
		Function: []*pprof.Function{mainFn, workFn, hashFn},
	}

	path := filepath.Join(t.TempDir(), "cpu.pprof")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, p.Write(f))
	require.NoError(t, f.Close())
	return path
}

func decodePNG(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestRender(t *testing.T) {
	prof := writePprof(t)
	out := filepath.Join(t.TempDir(), "cpu.png")

	_, stderr, err := execute(t, "render", prof, "--output", out, "--width", "600", "--mode", "dark", "--theme", "fire")
	require.NoError(t, err)
	assert.Contains(t, stderr, "OK: wrote "+out)

	w, h := decodePNG(t, out)
	assert.Equal(t, 600, w)
	assert.Positive(t, h)
}

func TestRender_ToStdout(t *testing.T) {
	prof := writePprof(t)
	stdout, _, err := execute(t, "render", prof, "--output", "-", "--start-ms", "1", "--end-ms", "5")
	require.NoError(t, err)
	_, err = png.Decode(strings.NewReader(stdout))
	require.NoError(t, err)
}

func TestRender_Errors(t *testing.T) {
	prof := writePprof(t)
	_, _, err := execute(t, "render", prof, "--mode", "neon")
	assert.Error(t, err)

	_, _, err = execute(t, "render", prof, "--width", "10")
	assert.Error(t, err)

	_, _, err = execute(t, "render", prof, "--sample-index", "7", "-o", filepath.Join(t.TempDir(), "x.png"))
	assert.ErrorIs(t, err, profile.ErrInvalidQuery)

	_, _, err = execute(t, "render")
	assert.Error(t, err)
}

func TestSandwich(t *testing.T) {
	prof := writePprof(t)
	out := filepath.Join(t.TempDir(), "work.png")

	_, _, err := execute(t, "sandwich", prof, "--frame", "main.work", "--output", out, "--caller-height", "60", "--callee-height", "60")
	require.NoError(t, err)

	w, h := decodePNG(t, out)
	assert.Equal(t, 1200, w)
	assert.Equal(t, 140, h)

	_, _, err = execute(t, "sandwich", prof)
	assert.Error(t, err, "--frame is required")
}

func TestTop(t *testing.T) {
	prof := writePprof(t)

	stdout, _, err := execute(t, "top", prof, "--sort", "self", "--limit", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Displaying functions 1 to 2 (sorted by self time):", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1. crypto.hash (hash.go:40)"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "2. main.work (work.go:12)"), lines[2])

	stdout, _, err = execute(t, "top", prof, "--sample-index", "0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1. main.main (main.go:5)")

	_, _, err = execute(t, "top", prof, "--sort", "median")
	assert.Error(t, err)
}
