// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flamechart

import (
	"fmt"
	"math"

	"github.com/AleutianAI/AleutianPerf/services/perf/profile"
)

// -----------------------------------------------------------------------------
// Flamechart
// -----------------------------------------------------------------------------

// Frame is one call placed on the chart. Start and End are in profile
// weight units.
type Frame struct {
	Node  *profile.CallTreeNode
	Start float64
	End   float64
	Depth int
}

// Flamechart is the layered layout of a profile's grouped call tree.
// Children are laid out left to right from their parent's start, heaviest
// first.
type Flamechart struct {
	profile *profile.Profile
	layers  [][]Frame
}

// NewFlamechart lays out p.
func NewFlamechart(p *profile.Profile) *Flamechart {
	fc := &Flamechart{profile: p}
	var visit func(n *profile.CallTreeNode, start float64, depth int)
	visit = func(n *profile.CallTreeNode, start float64, depth int) {
		if len(fc.layers) <= depth {
			fc.layers = append(fc.layers, nil)
		}
		fc.layers[depth] = append(fc.layers[depth], Frame{
			Node:  n,
			Start: start,
			End:   start + n.TotalWeight(),
			Depth: depth,
		})
		child := start
		for _, c := range n.Children {
			visit(c, child, depth+1)
			child += c.TotalWeight()
		}
	}
	start := 0.0
	for _, c := range p.CallTree().Children {
		visit(c, start, 0)
		start += c.TotalWeight()
	}
	return fc
}

// Layers returns frames grouped by depth.
func (fc *Flamechart) Layers() [][]Frame { return fc.layers }

// TotalWeight is the profile's total weight.
func (fc *Flamechart) TotalWeight() float64 { return fc.profile.TotalWeight() }

// FormatValue formats a weight in the profile's unit.
func (fc *Flamechart) FormatValue(v float64) string { return fc.profile.FormatValue(v) }

// Profile returns the laid-out profile.
func (fc *Flamechart) Profile() *profile.Profile { return fc.profile }

// visibleLayers drops the layers above startDepth.
func (fc *Flamechart) visibleLayers(startDepth int) [][]Frame {
	if startDepth >= len(fc.layers) {
		return nil
	}
	return fc.layers[startDepth:]
}

// -----------------------------------------------------------------------------
// Render range
// -----------------------------------------------------------------------------

// RangeStatus says how a RenderRange was derived.
type RangeStatus int

const (
	// RangeFull is the whole profile; no window was requested.
	RangeFull RangeStatus = iota
	// RangeWindowed is the requested window, clamped to the profile.
	RangeWindowed
	// RangeFellBack is the whole profile because the window was empty.
	RangeFellBack
	// RangeIgnoredNonTimeUnit is the whole profile because the unit has no
	// time scale.
	RangeIgnoredNonTimeUnit
)

// String returns the status name.
func (s RangeStatus) String() string {
	switch s {
	case RangeWindowed:
		return "windowed"
	case RangeFellBack:
		return "fell_back"
	case RangeIgnoredNonTimeUnit:
		return "ignored_non_time_unit"
	default:
		return "full"
	}
}

// RenderRange is the visible weight interval and its pixel scale.
type RenderRange struct {
	StartWeight   float64
	EndWeight     float64
	VisibleWeight float64
	// XFactor is pixels per weight unit.
	XFactor float64
	// IsValidTimeRange is false only when a requested window was rejected.
	IsValidTimeRange bool
	Status           RangeStatus
	Reason           string
}

// CalculateRenderRange resolves the visible window. Millisecond bounds are
// converted to weight units and clamped to [0, totalWeight]. A window that
// ends at or before its start falls back to the full range, and a window on
// a profile without a time unit is ignored.
func CalculateRenderRange(unit profile.WeightUnit, totalWeight, canvasWidth float64, startMs, endMs *float64) RenderRange {
	r := RenderRange{
		StartWeight:      0,
		EndWeight:        totalWeight,
		IsValidTimeRange: true,
		Status:           RangeFull,
	}

	requested := startMs != nil || endMs != nil
	factor, timed := unit.MillisecondFactor()
	switch {
	case requested && timed:
		if startMs != nil {
			r.StartWeight = math.Max(0, *startMs*factor)
		}
		if endMs != nil {
			r.EndWeight = math.Min(totalWeight, *endMs*factor)
		}
		if r.StartWeight >= r.EndWeight {
			r.Reason = fmt.Sprintf("start weight %g is not before end weight %g", r.StartWeight, r.EndWeight)
			r.StartWeight, r.EndWeight = 0, totalWeight
			r.IsValidTimeRange = false
			r.Status = RangeFellBack
		} else {
			r.Status = RangeWindowed
		}
	case requested:
		r.Status = RangeIgnoredNonTimeUnit
		r.Reason = fmt.Sprintf("profile unit %s is not time based", unit)
	}

	r.VisibleWeight = r.EndWeight - r.StartWeight
	visible := r.VisibleWeight
	if visible <= 0 {
		visible = 1
	}
	r.XFactor = canvasWidth / visible
	return r
}

// CalculateFinalCanvasHeight caps the requested (or estimated) height at
// widthCap and never returns less than one axis plus two frames.
func CalculateFinalCanvasHeight(requested, widthCap, estimated, axisHeight, frameHeight int) int {
	h := estimated
	if requested > 0 {
		h = requested
	}
	h = min(h, widthCap)
	return max(h, axisHeight+2*frameHeight)
}

// estimatedHeight leaves one spare row under the deepest layer.
func estimatedHeight(numLayers, frameHeight int) int {
	rows := 2
	if numLayers > 0 {
		rows = numLayers + 1
	}
	return AxisHeightPx + rows*frameHeight
}

// niceInterval snaps target down to 1, 2 or 5 times a power of ten. It
// returns 0 for non-positive or non-finite targets.
func niceInterval(target float64) float64 {
	if target <= 0 || math.IsInf(target, 0) || math.IsNaN(target) {
		return 0
	}
	interval := math.Pow(10, math.Floor(math.Log10(target)))
	switch ratio := target / interval; {
	case ratio >= 5:
		interval *= 5
	case ratio >= 2:
		interval *= 2
	}
	return interval
}
