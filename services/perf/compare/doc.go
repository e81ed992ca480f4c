// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compare orchestrates baseline-versus-treatment performance runs.
//
// # Overview
//
// A Comparator executes every configured TestScenario once per round,
// alternating the variant strictly (base, treatment, base, ...). After all
// rounds it analyzes each metric of each scenario with stats.Analyzer and
// aggregates per-scenario assessments, a run-level summary and a run-level
// assessment into a ComparisonResult.
//
// Measurement is delegated to a ScenarioExecutor supplied by the caller,
// for example the HTTP and command executors in the executors subpackage.
//
// # Concurrency
//
// Measurement is strictly sequential: one scenario at a time, one round at
// a time, so executions never compete for the system under test. Analysis
// is pure and runs per scenario on a bounded errgroup.
//
// # Failure Model
//
// A failed execution of one scenario in one round is logged and skipped.
// A scenario that ends with no base or no treatment measurement fails the
// run with ErrInsufficientMeasurements. Cancelling the context aborts the
// run, including the pause between rounds.
package compare
