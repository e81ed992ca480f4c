// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executors provides compare.ScenarioExecutor implementations that
// measure real systems: HTTP endpoints and external commands.
package executors

// Metric names shared by executors and browser-driven harnesses. Timings
// are milliseconds, sizes are bytes, counts are plain numbers.
const (
	// Core web vitals.
	MetricLCP  = "lcp"
	MetricCLS  = "cls"
	MetricTBT  = "tbt"
	MetricTTFB = "ttfb"

	// Navigation timing.
	MetricDNSLookup        = "dnsLookup"
	MetricTCPConnection    = "tcpConnection"
	MetricTLSHandshake     = "tlsHandshake"
	MetricRequestResponse  = "requestResponse"
	MetricDOMInteractive   = "domInteractive"
	MetricDOMContentLoaded = "domContentLoaded"
	MetricLoadEvent        = "loadEvent"
	MetricTotalLoadTime    = "totalLoadTime"

	// Paint timing.
	MetricFirstPaint           = "fp"
	MetricFirstContentfulPaint = "fcp"

	// Resource timing.
	MetricResourceCount           = "resourceCount"
	MetricTotalResourceSize       = "totalResourceSize"
	MetricAverageResourceLoadTime = "averageResourceLoadTime"
	MetricLargestResourceSize     = "largestResourceSize"
	MetricSlowestResourceLoadTime = "slowestResourceLoadTime"

	// Long tasks.
	MetricLongTaskCount       = "longTaskCount"
	MetricTotalBlockingTime   = "totalBlockingTime"
	MetricLongestTaskDuration = "longestTaskDuration"

	// Command execution: wall time and CPU time of the process.
	MetricDuration  = "duration"
	MetricUserCPU   = "userCpu"
	MetricSystemCPU = "systemCpu"
)

// CommandMetrics lists the names CommandExecutor always reports.
var CommandMetrics = []string{MetricDuration, MetricUserCPU, MetricSystemCPU}

// CommonMetrics lists the browser metric names in report order.
var CommonMetrics = []string{
	MetricLCP, MetricCLS, MetricTBT, MetricTTFB,
	MetricDNSLookup, MetricTCPConnection, MetricRequestResponse,
	MetricDOMInteractive, MetricDOMContentLoaded, MetricLoadEvent, MetricTotalLoadTime,
	MetricFirstPaint, MetricFirstContentfulPaint,
	MetricResourceCount, MetricTotalResourceSize, MetricAverageResourceLoadTime,
	MetricLargestResourceSize, MetricSlowestResourceLoadTime,
	MetricLongTaskCount, MetricTotalBlockingTime, MetricLongestTaskDuration,
}

// HTTPMetrics lists the names HTTPExecutor reports.
var HTTPMetrics = []string{
	MetricTTFB, MetricDNSLookup, MetricTCPConnection, MetricTLSHandshake,
	MetricRequestResponse, MetricTotalLoadTime, MetricTotalResourceSize,
}

func millis(start, end int64) float64 {
	if start == 0 || end == 0 || end < start {
		return 0
	}
	return float64(end-start) / 1e6
}
