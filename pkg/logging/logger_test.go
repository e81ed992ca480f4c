// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{"warning", LevelWarn},
		{" Warn ", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("verbose"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("expected ErrUnknownLevel, got %v", err)
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	if LevelDebug.toSlogLevel() != slog.LevelDebug {
		t.Error("debug mismatch")
	}
	if Level(99).toSlogLevel() != slog.LevelInfo {
		t.Error("unknown level should map to info")
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below Warn leaked: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("expected warn and error messages, got %q", out)
	}
}

func TestLogger_ServiceAndJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "perfcheck", JSON: true, Output: &buf})
	logger.Info("scenario done", "scenario", "login")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["service"] != "perfcheck" {
		t.Errorf("service = %v, want perfcheck", rec["service"])
	}
	if rec["scenario"] != "login" {
		t.Errorf("scenario = %v, want login", rec["scenario"])
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf}).With("run_id", "abc")
	logger.Info("hello")

	if !strings.Contains(buf.String(), "run_id=abc") {
		t.Errorf("expected run_id attribute, got %q", buf.String())
	}
}

func TestLogger_TraceAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0xaa},
		SpanID:  trace.SpanID{0xbb},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.Slog().InfoContext(ctx, "traced")
	logger.Slog().InfoContext(context.Background(), "untraced")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "trace_id="+sc.TraceID().String()) {
		t.Errorf("expected trace_id on traced line, got %q", lines[0])
	}
	if !strings.Contains(lines[0], "span_id="+sc.SpanID().String()) {
		t.Errorf("expected span_id on traced line, got %q", lines[0])
	}
	if strings.Contains(lines[1], "trace_id") {
		t.Errorf("unexpected trace_id on untraced line: %q", lines[1])
	}
}

func TestLogger_QuietDiscardsConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Quiet: true, Output: &buf})
	logger.Error("nobody hears this")
	if buf.Len() != 0 {
		t.Errorf("expected no console output, got %q", buf.String())
	}
}

// =============================================================================
// File Logging Tests
// =============================================================================

func TestLogger_FileContent(t *testing.T) {
	tmpDir := t.TempDir()
	var console bytes.Buffer
	logger := New(Config{LogDir: tmpDir, Service: "bench", Output: &console})

	logger.Info("written", "iterations", 10)
	path := logger.FilePath()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if filepath.Dir(path) != tmpDir || !strings.HasPrefix(filepath.Base(path), "bench_") {
		t.Errorf("unexpected log path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("file log is not JSON: %v", err)
	}
	if rec["msg"] != "written" || rec["iterations"] != float64(10) {
		t.Errorf("unexpected record %v", rec)
	}
	if !strings.Contains(console.String(), "written") {
		t.Error("expected console copy of the record")
	}
}

func TestLogger_DefaultServiceFileName(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{LogDir: tmpDir, Quiet: true})
	defer logger.Close()

	if !strings.HasPrefix(filepath.Base(logger.FilePath()), "perfcheck_") {
		t.Errorf("unexpected file name %q", logger.FilePath())
	}
}

func TestLogger_InvalidLogDir(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := New(Config{LogDir: filepath.Join(blocker, "logs"), Output: &buf})
	defer logger.Close()

	if logger.FilePath() != "" {
		t.Errorf("expected no file, got %q", logger.FilePath())
	}
	if !strings.Contains(buf.String(), "file logging disabled") {
		t.Errorf("expected warning on console, got %q", buf.String())
	}
}

func TestLogger_CloseTwice(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Quiet: true})
	if err := logger.Close(); err != nil {
		t.Errorf("first Close() error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	var buf safeBuffer
	logger := New(Config{Output: &buf})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.With("worker", n).Info("tick")
		}(i)
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "tick"); got != 10 {
		t.Errorf("expected 10 records, got %d", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
