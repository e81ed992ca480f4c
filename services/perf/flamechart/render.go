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
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianPerf/services/perf/profile"
)

var tracer = otel.Tracer("perf.flamechart")

// RenderOutcome says what a render produced.
type RenderOutcome int

const (
	// OutcomeRendered is a charted profile.
	OutcomeRendered RenderOutcome = iota
	// OutcomeEmptyGroup is a placeholder for a group without a usable
	// profile.
	OutcomeEmptyGroup
	// OutcomeZeroWeight is a message for a profile without weight.
	OutcomeZeroWeight
	// OutcomeEmptyRange is a message for an empty visible window.
	OutcomeEmptyRange
	// OutcomeFrameNotFound is a placeholder for an unknown sandwich frame.
	OutcomeFrameNotFound
	// OutcomeNoSandwichData is a placeholder for a frame with neither
	// callers nor callees.
	OutcomeNoSandwichData
)

// String returns the outcome name.
func (o RenderOutcome) String() string {
	switch o {
	case OutcomeRendered:
		return "rendered"
	case OutcomeEmptyGroup:
		return "empty_group"
	case OutcomeZeroWeight:
		return "zero_weight"
	case OutcomeEmptyRange:
		return "empty_range"
	case OutcomeFrameNotFound:
		return "frame_not_found"
	case OutcomeNoSandwichData:
		return "no_sandwich_data"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RenderResult is a painted surface and how it was produced.
type RenderResult struct {
	Surface Surface
	Outcome RenderOutcome
	// Range is the main chart's range; zero for placeholders.
	Range  RenderRange
	Width  int
	Height int
}

// -----------------------------------------------------------------------------
// Left-heavy
// -----------------------------------------------------------------------------

// RenderLeftHeavyFlamechart renders the group's active profile, with
// recursion flattened, as a left-heavy flamechart and encodes it as PNG.
//
// Outputs:
//
//	[]byte - PNG bytes. Empty groups and windows yield a placeholder image.
//	error - ErrInvalidConfig or ErrEncode.
func RenderLeftHeavyFlamechart(ctx context.Context, group *profile.Group, cfg RenderConfig) ([]byte, error) {
	var raster *RasterSurface
	if _, err := RenderLeftHeavy(ctx, group, cfg, func(w, h int) Surface {
		raster = NewRasterSurface(w, h)
		return raster
	}); err != nil {
		return nil, err
	}
	return encode(raster)
}

// RenderLeftHeavy paints the left-heavy flamechart onto a surface created
// by newSurface.
func RenderLeftHeavy(ctx context.Context, group *profile.Group, cfg RenderConfig, newSurface SurfaceFactory) (RenderResult, error) {
	_, span := tracer.Start(ctx, "flamechart.RenderLeftHeavy",
		trace.WithAttributes(
			attribute.Int("width", cfg.Width),
			attribute.Int("height", cfg.Height),
			attribute.String("mode", cfg.Mode.String()),
		),
	)
	defer span.End()

	if err := cfg.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid config")
		return RenderResult{}, err
	}
	logger := cfg.logger()
	theme := composeLogged(cfg.Mode, cfg.FlamegraphTheme, logger)

	active, err := group.Active()
	if err != nil {
		msg := "Profile group empty."
		if group != nil && len(group.Profiles) > 0 {
			msg = "Active profile not found."
		}
		logger.Warn("cannot render flamechart", slog.String("error", err.Error()))
		res := placeholder(newSurface, 300, 100, msg, theme, OutcomeEmptyGroup)
		span.SetAttributes(attribute.String("outcome", res.Outcome.String()))
		return res, nil
	}

	p := active.FlattenRecursion()
	fontSpec, _ := ParseFont(cfg.Font)
	fc := NewFlamechart(p)
	areaWidth := cfg.Width - DepthAxisWidthPx
	height := CalculateFinalCanvasHeight(cfg.Height, areaWidth,
		estimatedHeight(len(fc.Layers()), cfg.FrameHeight), AxisHeightPx, cfg.FrameHeight)

	logger.Info("rendering flamechart",
		slog.String("profile", p.Name()),
		slog.String("mode", cfg.Mode.String()),
		slog.String("theme", theme.Name),
		slog.Int("width", cfg.Width),
		slog.Int("height", height),
	)

	surf := newSurface(cfg.Width, height)
	surf.FillRect(Rect{W: float64(cfg.Width), H: float64(height)}, theme.BgPrimary)

	rng := CalculateRenderRange(p.WeightUnit(), fc.TotalWeight(), float64(areaWidth), cfg.StartTimeMs, cfg.EndTimeMs)
	logRange(logger, rng)

	s := &section{
		chart:        fc,
		theme:        theme,
		buckets:      NewColorBuckets(p),
		font:         fontSpec,
		width:        float64(cfg.Width),
		height:       float64(height),
		frameHeight:  float64(cfg.FrameHeight),
		startDepth:   cfg.StartDepth,
		rng:          rng,
		withTimeAxis: true,
		orientation:  TopDown,
	}
	outcome := s.draw(surf)
	if outcome != OutcomeRendered {
		logger.Warn("flamechart has nothing to draw", slog.String("outcome", outcome.String()))
	}

	span.SetAttributes(
		attribute.String("outcome", outcome.String()),
		attribute.String("range_status", rng.Status.String()),
		attribute.Int("layers", len(fc.Layers())),
	)
	return RenderResult{Surface: surf, Outcome: outcome, Range: rng, Width: cfg.Width, Height: height}, nil
}

// -----------------------------------------------------------------------------
// Sandwich
// -----------------------------------------------------------------------------

// RenderSandwichFlamechart renders the callers and callees of the frame
// named frameName in the group's active profile and encodes it as PNG.
func RenderSandwichFlamechart(ctx context.Context, group *profile.Group, frameName string, cfg SandwichConfig) ([]byte, error) {
	var raster *RasterSurface
	if _, err := RenderSandwich(ctx, group, frameName, cfg, func(w, h int) Surface {
		raster = NewRasterSurface(w, h)
		return raster
	}); err != nil {
		return nil, err
	}
	return encode(raster)
}

// RenderSandwich paints a sandwich view: the inverted callers chart on top
// growing upward, a time axis scoped to the frame's total weight, and the
// callees chart below. Both charts carry grid lines on the central axis
// range. The frame is the heaviest one named frameName.
func RenderSandwich(ctx context.Context, group *profile.Group, frameName string, cfg SandwichConfig, newSurface SurfaceFactory) (RenderResult, error) {
	_, span := tracer.Start(ctx, "flamechart.RenderSandwich",
		trace.WithAttributes(
			attribute.String("frame", frameName),
			attribute.Int("width", cfg.Width),
		),
	)
	defer span.End()

	if err := cfg.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid config")
		return RenderResult{}, err
	}
	logger := cfg.logger()
	theme := composeLogged(cfg.Mode, cfg.FlamegraphTheme, logger)

	mainProfile, err := group.Active()
	if err != nil {
		logger.Warn("cannot render sandwich", slog.String("error", err.Error()))
		return placeholder(newSurface, 300, 100, "Main profile missing.", theme, OutcomeEmptyGroup), nil
	}
	focal, err := mainProfile.FindFrame(frameName)
	if frameName == "" || err != nil {
		logger.Warn("sandwich frame not found", slog.String("frame", frameName))
		return placeholder(newSurface, 300, 100, "Selected frame missing.", theme, OutcomeFrameNotFound), nil
	}

	callers := mainProfile.CallersOf(focal).FlattenRecursion()
	callees := mainProfile.CalleesOf(focal).FlattenRecursion()
	hasCallers, hasCallees := callers.TotalWeight() > 0, callees.TotalWeight() > 0
	if !hasCallers {
		logger.Warn("no caller data for frame", slog.String("frame", frameName))
	}
	if !hasCallees {
		logger.Warn("no callee data for frame", slog.String("frame", frameName))
	}
	if !hasCallers && !hasCallees {
		msg := fmt.Sprintf("No caller or callee data for %q", focal.Name)
		return placeholder(newSurface, 400, 100, msg, theme, OutcomeNoSandwichData), nil
	}

	buckets := NewColorBuckets(mainProfile)
	fontSpec, _ := ParseFont(cfg.Font)
	renderWidth := cfg.Width - cfg.SidebarWidth
	barsWidth := renderWidth - DepthAxisWidthPx

	callerChart, calleeChart := NewFlamechart(callers), NewFlamechart(callees)
	callerH, calleeH := cfg.CallerHeight, cfg.CalleeHeight
	if cfg.Height > 0 {
		per := max(DefaultFrameHeight*3, (cfg.Height-cfg.CentralAxisHeight)/2)
		if callerH == 0 {
			callerH = per
		}
		if calleeH == 0 {
			calleeH = per
		}
	} else {
		estimate := func(fc *Flamechart) int {
			n := len(fc.visibleLayers(cfg.StartDepth))
			return CalculateFinalCanvasHeight(0, barsWidth, estimatedHeight(n, cfg.FrameHeight), AxisHeightPx, cfg.FrameHeight)
		}
		if callerH == 0 {
			callerH = estimate(callerChart)
		}
		if calleeH == 0 {
			calleeH = estimate(calleeChart)
		}
	}
	totalH := callerH + cfg.CentralAxisHeight + calleeH

	logger.Info("rendering sandwich",
		slog.String("frame", focal.Name),
		slog.Int("caller_height", callerH),
		slog.Int("callee_height", calleeH),
	)

	surf := newSurface(cfg.Width, totalH)
	surf.FillRect(Rect{W: float64(cfg.Width), H: float64(totalH)}, theme.BgSecondary)

	central := CalculateRenderRange(mainProfile.WeightUnit(), focal.TotalWeight(), float64(barsWidth), cfg.StartTimeMs, cfg.EndTimeMs)
	logRange(logger, central)

	drawPart := func(fc *Flamechart, top, height int, o Orientation) {
		p := fc.Profile()
		s := &section{
			chart:       fc,
			theme:       theme,
			buckets:     buckets,
			font:        fontSpec,
			width:       float64(renderWidth),
			height:      float64(height),
			frameHeight: float64(cfg.FrameHeight),
			startDepth:  cfg.StartDepth,
			rng:         CalculateRenderRange(p.WeightUnit(), p.TotalWeight(), float64(barsWidth), cfg.StartTimeMs, cfg.EndTimeMs),
			grid:        &central,
			orientation: o,
		}
		s.draw(Translate(surf, float64(cfg.SidebarWidth), float64(top)))
	}
	if hasCallers {
		drawPart(callerChart, 0, callerH, BottomUp)
	}
	if hasCallees {
		drawPart(calleeChart, callerH+cfg.CentralAxisHeight, calleeH, TopDown)
	}

	axis := Translate(surf, float64(cfg.SidebarWidth+DepthAxisWidthPx), float64(callerH))
	drawTimeAxis(axis, float64(barsWidth), float64(cfg.CentralAxisHeight), central, theme, mainProfile.FormatValue)

	label := TextStyle{
		Font:     sidebarFont,
		Color:    theme.FgPrimary,
		Align:    AlignCenter,
		Baseline: BaselineMiddle,
		Rotate:   RotateCCW,
	}
	sidebarX := float64(cfg.SidebarWidth) / 2
	if hasCallers {
		surf.FillText("Callers", sidebarX, float64(callerH)/2, label)
	}
	if hasCallees {
		surf.FillText("Callees", sidebarX, float64(callerH+cfg.CentralAxisHeight)+float64(calleeH)/2, label)
	}

	span.SetAttributes(attribute.String("outcome", OutcomeRendered.String()))
	return RenderResult{Surface: surf, Outcome: OutcomeRendered, Range: central, Width: cfg.Width, Height: totalH}, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func placeholder(newSurface SurfaceFactory, w, h int, msg string, theme Theme, outcome RenderOutcome) RenderResult {
	surf := newSurface(w, h)
	surf.FillRect(Rect{W: float64(w), H: float64(h)}, theme.BgPrimary)
	drawMessage(surf, msg, float64(w)/2, float64(h)/2, theme)
	return RenderResult{Surface: surf, Outcome: outcome, Width: w, Height: h}
}

func composeLogged(mode Mode, name string, logger *slog.Logger) Theme {
	if !IsKnownTheme(name) {
		logger.Warn("unknown flamegraph theme, using base palette",
			slog.String("theme", name),
			slog.Any("known", FlamegraphThemeNames()),
		)
	}
	return ComposeTheme(mode, name)
}

func logRange(logger *slog.Logger, rng RenderRange) {
	switch rng.Status {
	case RangeFellBack:
		logger.Warn("invalid time range, rendering full chart", slog.String("reason", rng.Reason))
	case RangeIgnoredNonTimeUnit:
		logger.Warn("ignoring time range", slog.String("reason", rng.Reason))
	case RangeWindowed:
		logger.Debug("rendering weight range",
			slog.Float64("start_weight", rng.StartWeight),
			slog.Float64("end_weight", rng.EndWeight),
		)
	}
}

func encode(s *RasterSurface) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nothing was rendered", ErrEncode)
	}
	var buf bytes.Buffer
	if err := s.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
