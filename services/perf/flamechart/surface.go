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
	"image"
)

// Rect is a rectangle in canvas pixels.
type Rect struct {
	X, Y, W, H float64
}

// TextAlign positions text horizontally relative to its anchor.
type TextAlign int

const (
	AlignLeft TextAlign = iota
	AlignCenter
	AlignRight
)

// TextBaseline positions text vertically relative to its anchor.
type TextBaseline int

const (
	BaselineAlphabetic TextBaseline = iota
	BaselineMiddle
	BaselineBottom
)

// Rotation turns text about its anchor.
type Rotation int

const (
	RotateNone Rotation = iota
	// RotateCCW turns text a quarter turn counterclockwise so it reads
	// bottom to top.
	RotateCCW
)

// TextStyle describes how FillText draws.
type TextStyle struct {
	Font     FontSpec
	Color    Color
	Align    TextAlign
	Baseline TextBaseline
	Rotate   Rotation
}

// Surface is the 2D drawing capability the renderer paints on.
//
// Thread Safety: Implementations need not be safe for concurrent use.
type Surface interface {
	// Size returns the canvas size in pixels.
	Size() (width, height int)

	FillRect(r Rect, c Color)

	// StrokeRect outlines r with a line of the given width.
	StrokeRect(r Rect, c Color, lineWidth float64)

	// FillText draws text anchored at (x, y).
	FillText(text string, x, y float64, style TextStyle)

	// MeasureText returns the advance width of text in pixels.
	MeasureText(text string, font FontSpec) float64

	// DrawImage composites img with its top-left corner at (x, y).
	DrawImage(img image.Image, x, y float64)
}

// SurfaceFactory creates a blank surface once the canvas size is known.
type SurfaceFactory func(width, height int) Surface

// Translate returns a view of s whose origin is moved to (dx, dy).
func Translate(s Surface, dx, dy float64) Surface {
	if t, ok := s.(*translated); ok {
		return &translated{Surface: t.Surface, dx: t.dx + dx, dy: t.dy + dy}
	}
	return &translated{Surface: s, dx: dx, dy: dy}
}

type translated struct {
	Surface
	dx, dy float64
}

func (t *translated) FillRect(r Rect, c Color) {
	r.X += t.dx
	r.Y += t.dy
	t.Surface.FillRect(r, c)
}

func (t *translated) StrokeRect(r Rect, c Color, lineWidth float64) {
	r.X += t.dx
	r.Y += t.dy
	t.Surface.StrokeRect(r, c, lineWidth)
}

func (t *translated) FillText(text string, x, y float64, style TextStyle) {
	t.Surface.FillText(text, x+t.dx, y+t.dy, style)
}

func (t *translated) DrawImage(img image.Image, x, y float64) {
	t.Surface.DrawImage(img, x+t.dx, y+t.dy)
}
