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
	"math"
	"strconv"
)

// Orientation places layers vertically.
type Orientation int

const (
	// TopDown puts the root layer at the top.
	TopDown Orientation = iota
	// BottomUp puts the root layer at the bottom.
	BottomUp
)

// String returns "top-down" or "bottom-up".
func (o Orientation) String() string {
	if o == BottomUp {
		return "bottom-up"
	}
	return "top-down"
}

// section is one flamechart drawn into a rectangle whose origin is the
// surface origin: a depth axis gutter on the left, an optional time axis on
// top, and the frame area.
type section struct {
	chart       *Flamechart
	theme       Theme
	buckets     ColorBuckets
	font        FontSpec
	width       float64
	height      float64
	frameHeight float64
	startDepth  int
	rng         RenderRange
	// grid, when set, draws vertical guides on this range instead of a time
	// axis.
	grid         *RenderRange
	withTimeAxis bool
	orientation  Orientation
}

func (s *section) areaWidth() float64 { return s.width - DepthAxisWidthPx }

func (s *section) timeAxisHeight() float64 {
	if s.withTimeAxis {
		return AxisHeightPx
	}
	return 0
}

// layerY returns the top of the i-th visible layer.
func (s *section) layerY(i int) float64 {
	if s.orientation == BottomUp {
		return s.height - float64(i+1)*s.frameHeight
	}
	return s.timeAxisHeight() + float64(i)*s.frameHeight
}

// draw paints the section and reports whether anything was charted.
func (s *section) draw(surf Surface) RenderOutcome {
	if s.chart.TotalWeight() <= 0 {
		drawMessage(surf, "Profile is empty or has zero total weight.", s.width/2, s.height/2, s.theme)
		return OutcomeZeroWeight
	}
	if s.rng.VisibleWeight <= 0 && s.rng.IsValidTimeRange {
		drawMessage(surf, "Selected time range is empty or too small.", s.width/2, s.height/2, s.theme)
		return OutcomeEmptyRange
	}

	layers := s.chart.visibleLayers(s.startDepth)
	maxDepth := s.startDepth
	if n := len(s.chart.Layers()); n > 0 {
		maxDepth = s.startDepth + n - 1
	}
	s.drawDepthAxis(surf, maxDepth)

	area := Translate(surf, DepthAxisWidthPx, 0)
	if s.withTimeAxis {
		drawTimeAxis(area, s.areaWidth(), AxisHeightPx, s.rng, s.theme, s.chart.FormatValue)
	}
	if s.grid != nil {
		s.drawGrid(area, *s.grid)
	}

	for i, layer := range layers {
		y := s.layerY(i)
		if y+s.frameHeight < s.timeAxisHeight() || y > s.height {
			continue
		}
		for _, f := range layer {
			s.drawFrame(area, f, y)
		}
	}
	return OutcomeRendered
}

// drawFrame paints one frame clipped to the visible range. Frames entirely
// outside the range or narrower than MinFrameWidthPx are not drawn.
func (s *section) drawFrame(surf Surface, f Frame, y float64) {
	if f.End <= s.rng.StartWeight || f.Start >= s.rng.EndWeight {
		return
	}
	visStart := math.Max(f.Start, s.rng.StartWeight)
	visEnd := math.Min(f.End, s.rng.EndWeight)
	if visEnd-visStart <= 0 {
		return
	}
	x := (visStart - s.rng.StartWeight) * s.rng.XFactor
	w := (visEnd - visStart) * s.rng.XFactor
	if w < MinFrameWidthPx {
		return
	}

	r := Rect{X: x, Y: y, W: w, H: s.frameHeight}
	t := float64(s.buckets.Bucket(f.Node.Frame)) / 255
	surf.FillRect(r, s.theme.ColorForBucket(t))
	surf.StrokeRect(r, s.theme.BgPrimary, 0.5)

	if w <= MinTextWidthPx {
		return
	}
	label := fitLabel(surf, f.Node.Frame.Name, w-2*TextPaddingPx, s.font)
	if label == "" {
		return
	}
	surf.FillText(label, x+TextPaddingPx, y+s.frameHeight/2, TextStyle{
		Font:     s.font,
		Color:    s.theme.FrameText(),
		Align:    AlignLeft,
		Baseline: BaselineMiddle,
	})
}

// fitLabel truncates name with "..." until it fits maxWidth. It returns ""
// when even a single character does not fit.
func fitLabel(surf Surface, name string, maxWidth float64, spec FontSpec) string {
	if surf.MeasureText(name, spec) <= maxWidth {
		return name
	}
	runes := []rune(name)
	n := len(runes)
	for n > 1 && surf.MeasureText(string(runes[:n])+"...", spec) > maxWidth {
		n--
	}
	label := string(runes[:n])
	if n < len(runes) {
		label += "..."
	}
	if label == "" || surf.MeasureText(label, spec) > maxWidth {
		return ""
	}
	return label
}

func (s *section) drawDepthAxis(surf Surface, maxDepth int) {
	surf.FillRect(Rect{W: DepthAxisWidthPx, H: s.height}, s.theme.BgPrimary)
	surf.FillRect(Rect{X: DepthAxisWidthPx - 1, W: 1, H: s.height}, s.theme.FgSecondary)

	style := TextStyle{
		Font:     axisFont,
		Color:    s.theme.FgPrimary,
		Align:    AlignRight,
		Baseline: BaselineMiddle,
	}
	top := s.timeAxisHeight()
	for depth := s.startDepth; depth <= maxDepth; depth++ {
		if depth%DepthLabelInterval != 0 && depth != s.startDepth {
			continue
		}
		y := s.layerY(depth-s.startDepth) + s.frameHeight/2
		if y < top || y > s.height {
			continue
		}
		surf.FillText(strconv.Itoa(depth), DepthAxisWidthPx-TextPaddingPx-2, y, style)
	}
}

// drawGrid draws vertical guides at a nice interval of grid across the
// section height.
func (s *section) drawGrid(surf Surface, grid RenderRange) {
	interval := niceInterval(GridLineSpacing / grid.XFactor)
	if interval <= 0 {
		return
	}
	c := s.theme.FgSecondary.WithAlpha(0.5)
	forEachTick(grid.StartWeight, grid.EndWeight, interval, maxTicks(s.width, GridLineSpacing), func(w float64) {
		x := (w - grid.StartWeight) * grid.XFactor
		surf.FillRect(Rect{X: x - 0.5, W: 1, H: s.height}, c)
	})
}

// drawTimeAxis draws a labeled axis across width at a nice tick interval.
// Ticks are at multiples of the interval inside the range.
func drawTimeAxis(surf Surface, width, height float64, rng RenderRange, theme Theme, format func(float64) string) {
	surf.FillRect(Rect{W: width, H: height}, theme.BgPrimary)
	surf.FillRect(Rect{Y: height - 1, W: width, H: 1}, theme.FgSecondary)

	interval := niceInterval(TimeAxisTickSpacing / rng.XFactor)
	if interval <= 0 {
		return
	}
	style := TextStyle{
		Font:     axisFont,
		Color:    theme.FgPrimary,
		Align:    AlignCenter,
		Baseline: BaselineBottom,
	}
	forEachTick(rng.StartWeight, rng.EndWeight, interval, maxTicks(width, TimeAxisTickSpacing), func(w float64) {
		x := (w - rng.StartWeight) * rng.XFactor
		surf.FillRect(Rect{X: x - 0.5, W: 1, H: height - 1}, theme.FgSecondary)
		surf.FillText(format(w), x, height-2, style)
	})
}

// maxTicks bounds the tick count for a span of width pixels. niceInterval
// rounds down, so ticks can sit up to twice as dense as spacing.
func maxTicks(width, spacing float64) int {
	return int(2*width/spacing) + 2
}

// forEachTick calls fn for each multiple of interval in [start, end), at
// most limit times. It stops early once the weight no longer advances,
// which happens when interval is below the float64 resolution at start.
func forEachTick(start, end, interval float64, limit int, fn func(w float64)) {
	first := math.Ceil(start / interval)
	prev := math.Inf(-1)
	for i := 0; i < limit; i++ {
		w := (first + float64(i)) * interval
		if w >= end || w <= prev {
			return
		}
		fn(w)
		prev = w
	}
}

func drawMessage(surf Surface, msg string, x, y float64, theme Theme) {
	surf.FillText(msg, x, y, TextStyle{
		Font:     placeholderFont,
		Color:    theme.FgPrimary,
		Align:    AlignCenter,
		Baseline: BaselineAlphabetic,
	})
}
