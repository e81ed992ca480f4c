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
	"strings"
)

// recordingSurface logs draw calls. Text is measured at a fixed 6px per
// rune.
type recordingSurface struct {
	width, height int
	fills         []Rect
	strokes       []Rect
	texts         []recordedText
	images        int
}

type recordedText struct {
	text  string
	x, y  float64
	style TextStyle
}

func newRecordingSurface(w, h int) *recordingSurface {
	return &recordingSurface{width: w, height: h}
}

func recordingFactory(out **recordingSurface) SurfaceFactory {
	return func(w, h int) Surface {
		*out = newRecordingSurface(w, h)
		return *out
	}
}

func (s *recordingSurface) Size() (int, int) { return s.width, s.height }

func (s *recordingSurface) FillRect(r Rect, _ Color) { s.fills = append(s.fills, r) }

func (s *recordingSurface) StrokeRect(r Rect, _ Color, _ float64) {
	s.strokes = append(s.strokes, r)
}

func (s *recordingSurface) FillText(text string, x, y float64, style TextStyle) {
	s.texts = append(s.texts, recordedText{text: text, x: x, y: y, style: style})
}

func (s *recordingSurface) MeasureText(text string, _ FontSpec) float64 {
	return float64(len([]rune(text))) * 6
}

func (s *recordingSurface) DrawImage(image.Image, float64, float64) { s.images++ }

func (s *recordingSurface) textStrings() []string {
	out := make([]string, 0, len(s.texts))
	for _, t := range s.texts {
		out = append(out, t.text)
	}
	return out
}

func (s *recordingSurface) hasText(sub string) bool {
	for _, t := range s.texts {
		if strings.Contains(t.text, sub) {
			return true
		}
	}
	return false
}
