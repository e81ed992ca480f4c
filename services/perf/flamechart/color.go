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
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianPerf/services/perf/profile"
)

// Color is a straight-alpha RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return c.NRGBA().RGBA()
}

// NRGBA converts to an 8-bit non-premultiplied color.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{
		R: channel(c.R),
		G: channel(c.G),
		B: channel(c.B),
		A: channel(c.A),
	}
}

// WithAlpha returns c with alpha replaced.
func (c Color) WithAlpha(a float64) Color {
	c.A = clamp01(a)
	return c
}

// Hex returns "#rrggbb".
func (c Color) Hex() string {
	n := c.NRGBA()
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}

func channel(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// MustParseHex parses "#rrggbb" and panics on malformed input. It is meant
// for palette literals.
func MustParseHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseHex parses "#rrggbb" or "rrggbb".
func ParseHex(s string) (Color, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return Color{
		R: float64(v>>16&0xff) / 255,
		G: float64(v>>8&0xff) / 255,
		B: float64(v&0xff) / 255,
		A: 1,
	}, nil
}

// FromLumaChromaHue converts luma, chroma and hue (degrees) to RGB using
// Rec. 601 luma weights.
func FromLumaChromaHue(l, c, h float64) Color {
	hp := math.Mod(h, 360) / 60
	if hp < 0 {
		hp += 6
	}
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))

	var r1, g1, b1 float64
	switch {
	case hp < 1:
		r1, g1, b1 = c, x, 0
	case hp < 2:
		r1, g1, b1 = x, c, 0
	case hp < 3:
		r1, g1, b1 = 0, c, x
	case hp < 4:
		r1, g1, b1 = 0, x, c
	case hp < 5:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}
	m := l - (0.30*r1 + 0.59*g1 + 0.11*b1)
	return Color{R: clamp01(r1 + m), G: clamp01(g1 + m), B: clamp01(b1 + m), A: 1}
}

// triangle is a unit triangle wave: 1 at integers, 0 at half-integers.
func triangle(x float64) float64 {
	return 2 * math.Abs(x-math.Floor(x)-0.5)
}

// -----------------------------------------------------------------------------
// Color buckets
// -----------------------------------------------------------------------------

// ColorBuckets maps frame keys to a bucket in [0, 255].
type ColorBuckets map[string]int

// NewColorBuckets spreads buckets evenly over the profile's frames sorted
// by file then name, so that distinct functions get distinct and stable
// colors.
func NewColorBuckets(p *profile.Profile) ColorBuckets {
	frames := append([]*profile.Frame(nil), p.Frames()...)
	key := func(f *profile.Frame) string { return f.File + f.Name }
	sort.SliceStable(frames, func(i, j int) bool { return key(frames[i]) < key(frames[j]) })

	n := len(frames)
	out := make(ColorBuckets, n)
	for i, f := range frames {
		out[f.Key] = 255 * i / n
	}
	return out
}

// Bucket returns the frame's bucket, or 0 for unknown frames.
func (b ColorBuckets) Bucket(f *profile.Frame) int {
	if f == nil {
		return 0
	}
	return b[f.Key]
}
