// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stats provides the statistical core used to decide whether a
// treatment variant regressed against a baseline.
//
// # Overview
//
// The package is layered:
//
//   - Primitives (math.go): Mean, Median, Variance, StandardDeviation,
//     PooledStandardDeviation, CohensD, ZScore, InterquartileRange,
//     Percentile, ConfidenceInterval, PercentageChange.
//   - OutlierDetector (outliers.go): trim / IQR / z-score cleaning and
//     non-destructive classification.
//   - MannWhitneyUTest (mannwhitney.go): tie-aware rank test.
//   - Analyzer (analyzer.go): runs the above on two samples of one metric
//     and produces a Comparison verdict.
//
// # Conventions
//
// Variance and standard deviation are population forms (divide by N).
// Empty inputs produce zero rather than NaN. A positive effect size means
// the treatment mean is higher than the baseline mean.
//
// # Thread Safety
//
// Every function in this package is a pure transformation over its inputs.
// Analyzer holds only immutable configuration and is safe for concurrent
// use, so callers may analyze metrics or scenarios in parallel.
package stats
