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
	"fmt"

	"github.com/AleutianAI/AleutianPerf/services/perf/compare"
)

// Router dispatches each scenario to the executor registered for its name.
type Router struct {
	routes   map[string]compare.ScenarioExecutor
	fallback compare.ScenarioExecutor
}

// NewRouter creates a Router. Scenarios without a route fail with
// compare.ErrNilExecutor unless a fallback is set.
func NewRouter(routes map[string]compare.ScenarioExecutor) *Router {
	copied := make(map[string]compare.ScenarioExecutor, len(routes))
	for name, e := range routes {
		copied[name] = e
	}
	return &Router{routes: copied}
}

// WithFallback returns a copy of r that sends unrouted scenarios to e.
func (r *Router) WithFallback(e compare.ScenarioExecutor) *Router {
	return &Router{routes: r.routes, fallback: e}
}

// ExecuteScenario forwards to the routed executor.
func (r *Router) ExecuteScenario(
	ctx context.Context,
	scenario compare.TestScenario,
	variant compare.Variant,
	baseURL, treatmentURL string,
) (compare.MetricCollection, error) {
	e, ok := r.routes[scenario.Name]
	if !ok {
		e = r.fallback
	}
	if e == nil {
		return nil, fmt.Errorf("%w: no route for scenario %s", compare.ErrNilExecutor, scenario.Name)
	}
	return e.ExecuteScenario(ctx, scenario, variant, baseURL, treatmentURL)
}

// TargetFunc measures one execution against an already resolved target URL.
type TargetFunc func(ctx context.Context, target string, variant compare.Variant) (compare.MetricCollection, error)

// FuncExecutor adapts a TargetFunc, resolving the target from the variant
// and the scenario path.
type FuncExecutor struct {
	fn TargetFunc
}

// NewFuncExecutor wraps fn.
func NewFuncExecutor(fn TargetFunc) *FuncExecutor {
	return &FuncExecutor{fn: fn}
}

// ExecuteScenario resolves the target and calls the wrapped function.
func (f *FuncExecutor) ExecuteScenario(
	ctx context.Context,
	scenario compare.TestScenario,
	variant compare.Variant,
	baseURL, treatmentURL string,
) (compare.MetricCollection, error) {
	target := baseURL
	if variant == compare.VariantTreatment {
		target = treatmentURL
	}
	return f.fn(ctx, JoinURL(target, scenario.Path), variant)
}
