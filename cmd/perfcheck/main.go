// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command perfcheck compares the performance of two deployments and
// renders flamecharts from pprof profiles.
//
//	perfcheck compare --config perf.yaml --base-url http://main --treatment-url http://pr
//	perfcheck analyze --baseline 10,11,12 --treatment 14,15,16
//	perfcheck render cpu.pprof --output cpu.png
//	perfcheck sandwich cpu.pprof --frame runtime.mallocgc --output malloc.png
//	perfcheck top cpu.pprof --sort self
//
// Exit status is 0 on success, 1 when a significant regression was found,
// and 2 for any other error.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes.
const (
	exitOK         = 0
	exitRegression = 1
	exitError      = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	root := newRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errRegressionFound) {
		fmt.Fprintf(os.Stderr, "perfcheck: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRegressionFound):
		return exitRegression
	default:
		return exitError
	}
}
