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
	"sort"
	"strings"
)

// Mode is the base light or dark palette.
type Mode int

const (
	ModeLight Mode = iota
	ModeDark
)

// String returns "light" or "dark".
func (m Mode) String() string {
	if m == ModeDark {
		return "dark"
	}
	return "light"
}

// ParseMode accepts "light", "dark" or an empty string (light).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "light":
		return ModeLight, nil
	case "dark":
		return ModeDark, nil
	default:
		return ModeLight, fmt.Errorf("%w: mode %q", ErrInvalidConfig, s)
	}
}

// SystemTheme selects the base palette's own frame colors.
const SystemTheme = "system"

// BucketColorFunc maps t in [0, 1] to a frame color.
type BucketColorFunc func(t float64) Color

// Theme is a resolved palette.
type Theme struct {
	Name              string
	FgPrimary         Color
	FgSecondary       Color
	BgPrimary         Color
	BgSecondary       Color
	ColorForBucket    BucketColorFunc
	FrameTextColor    Color
	HasFrameTextColor bool
}

// FrameText returns the label color for frames.
func (t Theme) FrameText() Color {
	if t.HasFrameTextColor {
		return t.FrameTextColor
	}
	return t.FgPrimary
}

// FlamegraphTheme overrides frame colors of a base palette.
type FlamegraphTheme struct {
	ColorForBucket BucketColorFunc
	// TextColor is optional; nil keeps the base foreground.
	TextColor *Color
}

// FlamegraphThemeVariants holds the light and dark flavor of a theme.
type FlamegraphThemeVariants struct {
	Light FlamegraphTheme
	Dark  FlamegraphTheme
}

// hcl describes a triangle-wave palette in luma/chroma/hue space.
type hcl struct {
	hMin, hRange, hWiggle float64
	cBase, cVar           float64
	lBase, lVar           float64
}

func (p hcl) bucketColor(t float64) Color {
	t = clamp01(t)
	x := triangle(30 * t)
	h := p.hMin + p.hRange*t + p.hWiggle*(x-0.5)
	c := p.cBase + p.cVar*(x-0.5)*2
	l := p.lBase + p.lVar*(0.5-x)
	return FromLumaChromaHue(l, c, h)
}

func textColor(hex string) *Color {
	c := MustParseHex(hex)
	return &c
}

var (
	lightTheme = Theme{
		Name:        "light",
		FgPrimary:   MustParseHex("#000000"),
		FgSecondary: MustParseHex("#bdbdbd"),
		BgPrimary:   MustParseHex("#ffffff"),
		BgSecondary: MustParseHex("#f6f6f6"),
		ColorForBucket: func(t float64) Color {
			x := triangle(30 * t)
			return FromLumaChromaHue(0.80-0.15*x, 0.25+0.2*x, 360*0.9*t)
		},
	}

	darkTheme = Theme{
		Name:        "dark",
		FgPrimary:   MustParseHex("#bdbdbd"),
		FgSecondary: MustParseHex("#666666"),
		BgPrimary:   MustParseHex("#121212"),
		BgSecondary: MustParseHex("#222222"),
		ColorForBucket: func(t float64) Color {
			x := triangle(30 * t)
			return FromLumaChromaHue(0.20+0.1*x, 0.20+0.1*x, 360*0.9*t)
		},
	}

	flamegraphThemes = map[string]FlamegraphThemeVariants{
		"fire": {
			Light: FlamegraphTheme{
				ColorForBucket: hcl{10, 50, 10, 0.90, 0.05, 0.50, 0.15}.bucketColor,
			},
			Dark: FlamegraphTheme{
				ColorForBucket: hcl{5, 40, 5, 0.58, 0.03, 0.20, 0.09}.bucketColor,
				TextColor:      textColor("#ffffff"),
			},
		},
		"peach": {
			Light: FlamegraphTheme{
				ColorForBucket: hcl{5, 40, 10, 0.90, 0.08, 0.55, 0.25}.bucketColor,
			},
			Dark: FlamegraphTheme{
				ColorForBucket: hcl{5, 40, 10, 0.45, 0.03, 0.25, 0.04}.bucketColor,
				TextColor:      textColor("#ffffff"),
			},
		},
		"ice": {
			Light: FlamegraphTheme{
				ColorForBucket: hcl{20, 80, 20, 0.15, 0.12, 0.70, 0.05}.bucketColor,
				TextColor:      textColor("#000000"),
			},
			Dark: FlamegraphTheme{
				ColorForBucket: hcl{20, 80, 20, 0.15, 0.12, 0.20, 0.05}.bucketColor,
				TextColor:      textColor("#ffffff"),
			},
		},
	}
)

// FlamegraphThemeNames lists the registered flamegraph themes, sorted.
func FlamegraphThemeNames() []string {
	names := make([]string, 0, len(flamegraphThemes))
	for n := range flamegraphThemes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsKnownTheme reports whether name is "system" or a registered theme.
func IsKnownTheme(name string) bool {
	if name == "" || name == SystemTheme {
		return true
	}
	_, ok := flamegraphThemes[name]
	return ok
}

// ComposeTheme picks the base palette for mode and applies the named
// flamegraph theme over it. "system", empty and unregistered names leave
// the base untouched.
func ComposeTheme(mode Mode, flamegraphTheme string) Theme {
	base := lightTheme
	if mode == ModeDark {
		base = darkTheme
	}
	if flamegraphTheme == "" || flamegraphTheme == SystemTheme {
		return base
	}
	variants, ok := flamegraphThemes[flamegraphTheme]
	if !ok {
		return base
	}
	override := variants.Light
	if mode == ModeDark {
		override = variants.Dark
	}

	out := base
	out.Name = flamegraphTheme + "-" + base.Name
	if override.ColorForBucket != nil {
		out.ColorForBucket = override.ColorForBucket
	}
	if override.TextColor != nil {
		out.FrameTextColor = *override.TextColor
		out.HasFrameTextColor = true
	}
	return out
}
