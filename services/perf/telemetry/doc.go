// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry initializes OpenTelemetry tracing and metrics for the
// perf tooling.
//
// Library packages never configure providers. They call otel.Tracer and
// otel.Meter, which stay no-op until Init installs real providers. The CLI
// calls Init once at startup and, when a metrics address is set, serves the
// Prometheus registry with ServeMetrics.
//
// # Exporters
//
// Traces: "otlp" (gRPC), "stdout" or "none". Metrics: "prometheus",
// "stdout" or "none". Standard environment variables override the
// defaults:
//
//   - OTEL_TRACES_EXPORTER
//   - OTEL_METRICS_EXPORTER
//   - OTEL_EXPORTER_OTLP_ENDPOINT
//   - PERF_ENV: deployment environment (default: development)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
