// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flamechart lays out and rasterizes flamecharts.
//
// A Flamechart is built from a profile's grouped call tree: each call
// occupies the weight interval of its samples and sits one layer below its
// caller. Rendering is written against the Surface interface so that the
// same drawing code serves the PNG rasterizer and the recording surface used
// in tests.
//
// Data problems never fail a render. An empty group, a profile without
// weight or an invalid time window produce a placeholder or a full-range
// image, and the Render*Surface helpers report what happened as a
// RenderOutcome. Only encoding failures are returned as errors.
package flamechart

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidConfig indicates render configuration that cannot be used.
	ErrInvalidConfig = errors.New("invalid render config")

	// ErrEncode indicates the image could not be encoded.
	ErrEncode = errors.New("image encoding failed")
)

// -----------------------------------------------------------------------------
// Layout constants
// -----------------------------------------------------------------------------

const (
	DefaultWidth        = 1200
	DefaultFrameHeight  = 18
	DefaultFont         = "10px Arial"
	AxisHeightPx        = 20
	DepthAxisWidthPx    = 30
	TextPaddingPx       = 3
	MinTextWidthPx      = 20
	MinFrameWidthPx     = 0.1
	TimeAxisTickSpacing = 150
	GridLineSpacing     = 200
	DepthLabelInterval  = 5

	DefaultSidebarWidth      = 20
	DefaultCentralAxisHeight = AxisHeightPx
)

// -----------------------------------------------------------------------------
// Fonts
// -----------------------------------------------------------------------------

// FontSpec is a parsed CSS-style font shorthand such as "bold 10px Arial".
// The family is kept for reference; rasterization uses the Go fonts.
type FontSpec struct {
	SizePx float64
	Bold   bool
	Family string
}

// String renders the shorthand back.
func (f FontSpec) String() string {
	s := strconv.FormatFloat(f.SizePx, 'f', -1, 64) + "px"
	if f.Family != "" {
		s += " " + f.Family
	}
	if f.Bold {
		s = "bold " + s
	}
	return s
}

// ParseFont parses "[bold] <n>px [family...]".
func ParseFont(s string) (FontSpec, error) {
	var spec FontSpec
	var family []string
	for _, tok := range strings.Fields(s) {
		switch {
		case tok == "bold":
			spec.Bold = true
		case spec.SizePx == 0 && strings.HasSuffix(tok, "px"):
			v, err := strconv.ParseFloat(strings.TrimSuffix(tok, "px"), 64)
			if err != nil || v <= 0 {
				return FontSpec{}, fmt.Errorf("%w: font size %q", ErrInvalidConfig, tok)
			}
			spec.SizePx = v
		default:
			family = append(family, tok)
		}
	}
	if spec.SizePx == 0 {
		return FontSpec{}, fmt.Errorf("%w: font %q has no pixel size", ErrInvalidConfig, s)
	}
	spec.Family = strings.Join(family, " ")
	return spec, nil
}

var (
	axisFont        = FontSpec{SizePx: 10, Family: "Arial"}
	placeholderFont = FontSpec{SizePx: 16, Family: "Arial"}
	sidebarFont     = FontSpec{SizePx: 10, Bold: true, Family: "Arial"}
)

// -----------------------------------------------------------------------------
// Render configuration
// -----------------------------------------------------------------------------

// RenderConfig controls a flamechart render.
type RenderConfig struct {
	// Width is the full canvas width including the depth axis.
	Width int

	// Height of zero estimates the height from the number of layers. Any
	// height is capped at the flamechart area width.
	Height int

	FrameHeight int
	Font        string

	// StartTimeMs and EndTimeMs restrict the visible window for time-based
	// profiles. Nil means the profile edge.
	StartTimeMs *float64
	EndTimeMs   *float64

	Mode            Mode
	FlamegraphTheme string

	// StartDepth hides the layers above it.
	StartDepth int

	Logger *slog.Logger
}

// DefaultRenderConfig returns the defaults.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Width:           DefaultWidth,
		FrameHeight:     DefaultFrameHeight,
		Font:            DefaultFont,
		Mode:            ModeLight,
		FlamegraphTheme: SystemTheme,
	}
}

// Validate checks the configuration.
func (c RenderConfig) Validate() error {
	if c.Width <= DepthAxisWidthPx {
		return fmt.Errorf("%w: width must exceed %d, got %d", ErrInvalidConfig, DepthAxisWidthPx, c.Width)
	}
	if c.Height < 0 {
		return fmt.Errorf("%w: height must be non-negative, got %d", ErrInvalidConfig, c.Height)
	}
	if c.FrameHeight <= 0 {
		return fmt.Errorf("%w: frame height must be positive, got %d", ErrInvalidConfig, c.FrameHeight)
	}
	if c.StartDepth < 0 {
		return fmt.Errorf("%w: start depth must be non-negative, got %d", ErrInvalidConfig, c.StartDepth)
	}
	if _, err := ParseFont(c.Font); err != nil {
		return err
	}
	return nil
}

func (c RenderConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// RenderOption modifies a RenderConfig.
type RenderOption func(*RenderConfig)

// WithSize sets the canvas width and requested height.
func WithSize(width, height int) RenderOption {
	return func(c *RenderConfig) {
		c.Width = width
		c.Height = height
	}
}

// WithFrameHeight sets the height of one layer in pixels.
func WithFrameHeight(px int) RenderOption {
	return func(c *RenderConfig) { c.FrameHeight = px }
}

// WithFont sets the frame label font.
func WithFont(font string) RenderOption {
	return func(c *RenderConfig) { c.Font = font }
}

// WithTimeRange sets the visible window in milliseconds. Nil bounds are
// left open.
func WithTimeRange(startMs, endMs *float64) RenderOption {
	return func(c *RenderConfig) {
		c.StartTimeMs = startMs
		c.EndTimeMs = endMs
	}
}

// WithMode selects the light or dark palette.
func WithMode(m Mode) RenderOption {
	return func(c *RenderConfig) { c.Mode = m }
}

// WithFlamegraphTheme selects a frame color theme.
func WithFlamegraphTheme(name string) RenderOption {
	return func(c *RenderConfig) { c.FlamegraphTheme = name }
}

// WithStartDepth hides layers above depth.
func WithStartDepth(depth int) RenderOption {
	return func(c *RenderConfig) { c.StartDepth = depth }
}

// WithRenderLogger sets the logger.
func WithRenderLogger(l *slog.Logger) RenderOption {
	return func(c *RenderConfig) { c.Logger = l }
}

// NewRenderConfig applies opts over the defaults.
func NewRenderConfig(opts ...RenderOption) RenderConfig {
	c := DefaultRenderConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// SandwichConfig extends RenderConfig with the sandwich layout.
type SandwichConfig struct {
	RenderConfig

	SidebarWidth      int
	CentralAxisHeight int

	// CallerHeight and CalleeHeight fix a section height; zero derives it.
	CallerHeight int
	CalleeHeight int
}

// DefaultSandwichConfig returns the defaults.
func DefaultSandwichConfig() SandwichConfig {
	return SandwichConfig{
		RenderConfig:      DefaultRenderConfig(),
		SidebarWidth:      DefaultSidebarWidth,
		CentralAxisHeight: DefaultCentralAxisHeight,
	}
}

// Validate checks the configuration.
func (c SandwichConfig) Validate() error {
	if err := c.RenderConfig.Validate(); err != nil {
		return err
	}
	if c.SidebarWidth < 0 || c.CentralAxisHeight < 0 || c.CallerHeight < 0 || c.CalleeHeight < 0 {
		return fmt.Errorf("%w: sandwich dimensions must be non-negative", ErrInvalidConfig)
	}
	if c.Width-c.SidebarWidth <= DepthAxisWidthPx {
		return fmt.Errorf("%w: width %d leaves no room after a %dpx sidebar", ErrInvalidConfig, c.Width, c.SidebarWidth)
	}
	return nil
}
