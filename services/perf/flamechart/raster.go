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
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// parsedFonts holds the Go fonts, parsed once per process.
var parsedFonts = sync.OnceValues(func() (map[bool]*opentype.Font, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing bold font: %w", err)
	}
	return map[bool]*opentype.Font{false: regular, true: bold}, nil
})

type faceKey struct {
	size float64
	bold bool
}

// RasterSurface paints onto an RGBA image.
//
// Thread Safety: Not safe for concurrent use; font faces keep glyph
// buffers.
type RasterSurface struct {
	img   *image.RGBA
	faces map[faceKey]font.Face
}

// NewRasterSurface allocates a transparent canvas.
func NewRasterSurface(width, height int) *RasterSurface {
	return &RasterSurface{
		img:   image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1))),
		faces: make(map[faceKey]font.Face),
	}
}

// Image returns the backing image.
func (s *RasterSurface) Image() *image.RGBA { return s.img }

// Size implements Surface.
func (s *RasterSurface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// EncodePNG writes the canvas as PNG.
func (s *RasterSurface) EncodePNG(w io.Writer) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, s.img); err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return nil
}

// pixelRect snaps r to whole pixels. Anything with positive size covers at
// least one pixel.
func pixelRect(r Rect) image.Rectangle {
	x0, x1 := math.Round(r.X), math.Round(r.X+r.W)
	y0, y1 := math.Round(r.Y), math.Round(r.Y+r.H)
	if x1 <= x0 && r.W > 0 {
		x1 = x0 + 1
	}
	if y1 <= y0 && r.H > 0 {
		y1 = y0 + 1
	}
	return image.Rect(int(x0), int(y0), int(x1), int(y1))
}

// FillRect implements Surface.
func (s *RasterSurface) FillRect(r Rect, c Color) {
	rect := pixelRect(r).Intersect(s.img.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(s.img, rect, image.NewUniform(c.NRGBA()), image.Point{}, draw.Over)
}

// StrokeRect implements Surface. Sub-pixel line widths are drawn one pixel
// wide with proportionally reduced opacity.
func (s *RasterSurface) StrokeRect(r Rect, c Color, lineWidth float64) {
	if lineWidth <= 0 {
		return
	}
	if lineWidth < 1 {
		c = c.WithAlpha(c.A * lineWidth)
	}
	w := math.Max(1, math.Round(lineWidth))
	s.FillRect(Rect{X: r.X, Y: r.Y, W: r.W, H: w}, c)
	s.FillRect(Rect{X: r.X, Y: r.Y + r.H - w, W: r.W, H: w}, c)
	s.FillRect(Rect{X: r.X, Y: r.Y + w, W: w, H: r.H - 2*w}, c)
	s.FillRect(Rect{X: r.X + r.W - w, Y: r.Y + w, W: w, H: r.H - 2*w}, c)
}

// DrawImage implements Surface.
func (s *RasterSurface) DrawImage(img image.Image, x, y float64) {
	b := img.Bounds()
	at := image.Pt(int(math.Round(x)), int(math.Round(y)))
	dst := image.Rectangle{Min: at, Max: at.Add(b.Size())}
	draw.Draw(s.img, dst, img, b.Min, draw.Over)
}

func (s *RasterSurface) face(spec FontSpec) font.Face {
	k := faceKey{size: spec.SizePx, bold: spec.Bold}
	if f, ok := s.faces[k]; ok {
		return f
	}
	var face font.Face = basicfont.Face7x13
	if fonts, err := parsedFonts(); err == nil {
		// At 72 DPI one point is one pixel.
		if f, err := opentype.NewFace(fonts[spec.Bold], &opentype.FaceOptions{
			Size:    spec.SizePx,
			DPI:     72,
			Hinting: font.HintingFull,
		}); err == nil {
			face = f
		}
	}
	s.faces[k] = face
	return face
}

// MeasureText implements Surface.
func (s *RasterSurface) MeasureText(text string, spec FontSpec) float64 {
	return fixedToFloat(font.MeasureString(s.face(spec), text))
}

// FillText implements Surface.
func (s *RasterSurface) FillText(text string, x, y float64, style TextStyle) {
	if text == "" {
		return
	}
	face := s.face(style.Font)
	m := face.Metrics()
	ascent, descent := fixedToFloat(m.Ascent), fixedToFloat(m.Descent)
	width := fixedToFloat(font.MeasureString(face, text))

	// Offset of the text box's top-left corner from the anchor, before
	// rotation.
	var ox, oy float64
	switch style.Align {
	case AlignCenter:
		ox = -width / 2
	case AlignRight:
		ox = -width
	}
	switch style.Baseline {
	case BaselineMiddle:
		oy = -(ascent + descent) / 2
	case BaselineBottom:
		oy = -(ascent + descent)
	default:
		oy = -ascent
	}

	src := image.NewUniform(style.Color.NRGBA())
	if style.Rotate == RotateNone {
		d := font.Drawer{
			Dst:  s.img,
			Src:  src,
			Face: face,
			Dot:  fixed.P(int(math.Round(x+ox)), int(math.Round(y+oy+ascent))),
		}
		d.DrawString(text)
		return
	}

	w, h := int(math.Ceil(width)), int(math.Ceil(ascent+descent))
	if w <= 0 || h <= 0 {
		return
	}
	tmp := image.NewRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{Dst: tmp, Src: src, Face: face, Dot: fixed.P(0, int(math.Round(ascent)))}
	d.DrawString(text)

	rot := image.NewRGBA(image.Rect(0, 0, h, w))
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			rot.SetRGBA(py, w-1-px, tmp.RGBAAt(px, py))
		}
	}
	// A counterclockwise quarter turn maps offset (u, v) to (v, -u).
	s.DrawImage(rot, x+oy, y-ox-width)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
