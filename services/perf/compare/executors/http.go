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
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianPerf/services/perf/compare"
)

// ErrUnexpectedStatus is returned when a response status is 400 or above.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// HTTPExecutor measures one HTTP request per execution.
//
// Description:
//
//	The target is baseURL or treatmentURL (by variant) joined with the
//	scenario's Path. Connection phases are timed with net/http/httptrace
//	and the body is read to completion. Keep-alives are disabled by
//	default so every execution pays for DNS and connection setup.
//
// Thread Safety: Safe for concurrent use.
type HTTPExecutor struct {
	client  *http.Client
	timeout time.Duration
	method  string
	headers http.Header
	logger  *slog.Logger
	clock   func() time.Time
}

// HTTPOption configures an HTTPExecutor.
type HTTPOption func(*HTTPExecutor)

// WithHTTPClient replaces the client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(e *HTTPExecutor) {
		if client != nil {
			e.client = client
		}
	}
}

// WithTimeout bounds each request including the body read. It applies to
// a copy of the client, so a client passed to WithHTTPClient is not
// modified.
func WithTimeout(d time.Duration) HTTPOption {
	return func(e *HTTPExecutor) { e.timeout = d }
}

// WithMethod sets the request method. Default: GET.
func WithMethod(method string) HTTPOption {
	return func(e *HTTPExecutor) { e.method = strings.ToUpper(method) }
}

// WithHeader adds a request header.
func WithHeader(key, value string) HTTPOption {
	return func(e *HTTPExecutor) { e.headers.Add(key, value) }
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(e *HTTPExecutor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewHTTPExecutor creates an HTTPExecutor.
func NewHTTPExecutor(opts ...HTTPOption) *HTTPExecutor {
	e := &HTTPExecutor{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: otelhttp.NewTransport(&http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			}),
		},
		method:  http.MethodGet,
		headers: make(http.Header),
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.timeout > 0 {
		client := *e.client
		client.Timeout = e.timeout
		e.client = &client
	}
	return e
}

// phaseTimes holds monotonic nanosecond offsets from the request start.
type phaseTimes struct {
	dnsStart, dnsDone         atomic.Int64
	connectStart, connectDone atomic.Int64
	tlsStart, tlsDone         atomic.Int64
	wroteRequest, firstByte   atomic.Int64
}

// ExecuteScenario performs the request and returns HTTPMetrics.
func (e *HTTPExecutor) ExecuteScenario(
	ctx context.Context,
	scenario compare.TestScenario,
	variant compare.Variant,
	baseURL, treatmentURL string,
) (compare.MetricCollection, error) {
	target := baseURL
	if variant == compare.VariantTreatment {
		target = treatmentURL
	}
	target = JoinURL(target, scenario.Path)

	ctx, span := otel.Tracer("perf.executors").Start(ctx, "executors.HTTPExecutor.ExecuteScenario",
		trace.WithAttributes(
			attribute.String("scenario", scenario.Name),
			attribute.String("variant", variant.String()),
			attribute.String("url", target),
		),
	)
	defer span.End()

	metrics, err := e.measure(ctx, scenario, variant, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Float64("ttfb_ms", metrics[MetricTTFB]))
	return metrics, nil
}

func (e *HTTPExecutor) measure(
	ctx context.Context,
	scenario compare.TestScenario,
	variant compare.Variant,
	target string,
) (compare.MetricCollection, error) {
	// Offsets are shifted by 1ns so zero always means "phase not seen".
	start := e.clock()
	since := func() int64 { return int64(e.clock().Sub(start)) + 1 }

	var phases phaseTimes
	clientTrace := &httptrace.ClientTrace{
		DNSStart:             func(httptrace.DNSStartInfo) { phases.dnsStart.Store(since()) },
		DNSDone:              func(httptrace.DNSDoneInfo) { phases.dnsDone.Store(since()) },
		ConnectStart:         func(string, string) { phases.connectStart.CompareAndSwap(0, since()) },
		ConnectDone:          func(string, string, error) { phases.connectDone.Store(since()) },
		TLSHandshakeStart:    func() { phases.tlsStart.Store(since()) },
		TLSHandshakeDone:     func(tls.ConnectionState, error) { phases.tlsDone.Store(since()) },
		WroteRequest:         func(httptrace.WroteRequestInfo) { phases.wroteRequest.Store(since()) },
		GotFirstResponseByte: func() { phases.firstByte.Store(since()) },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, clientTrace), e.method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", scenario.Name, err)
	}
	req.Header = e.headers.Clone()

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", target, err)
	}
	defer resp.Body.Close()

	size, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", target, err)
	}
	end := since()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, target, resp.StatusCode)
	}

	requestStart := phases.wroteRequest.Load()
	metrics := compare.MetricCollection{
		MetricDNSLookup:         millis(phases.dnsStart.Load(), phases.dnsDone.Load()),
		MetricTCPConnection:     millis(phases.connectStart.Load(), phases.connectDone.Load()),
		MetricTLSHandshake:      millis(phases.tlsStart.Load(), phases.tlsDone.Load()),
		MetricTTFB:              millis(requestStart, phases.firstByte.Load()),
		MetricRequestResponse:   millis(requestStart, end),
		MetricTotalLoadTime:     millis(1, end),
		MetricTotalResourceSize: float64(size),
	}

	e.logger.Debug("http scenario executed",
		slog.String("scenario", scenario.Name),
		slog.String("variant", variant.String()),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Float64("ttfb_ms", metrics[MetricTTFB]),
	)
	return metrics, nil
}

// JoinURL appends path to base with exactly one separating slash.
func JoinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
