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
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPerf/services/perf/profile"
)

func sampleGroup() *profile.Group {
	return &profile.Group{Name: "test", Profiles: []*profile.Profile{sampleProfile()}}
}

func TestRenderLeftHeavy(t *testing.T) {
	var surf *recordingSurface
	res, err := RenderLeftHeavy(context.Background(), sampleGroup(), DefaultRenderConfig(), recordingFactory(&surf))
	require.NoError(t, err)

	assert.Equal(t, OutcomeRendered, res.Outcome)
	assert.Equal(t, 1200, res.Width)
	assert.Equal(t, 20+4*18, res.Height)
	assert.Equal(t, RangeFull, res.Range.Status)
	assert.Equal(t, 1200, surf.width)

	assert.Len(t, surf.strokes, 4)
	for _, name := range []string{"main", "a", "b", "c"} {
		assert.Contains(t, surf.textStrings(), name)
	}
	assert.Contains(t, surf.textStrings(), "0", "depth axis")
}

func TestRenderLeftHeavy_StartDepthHidesRoot(t *testing.T) {
	var surf *recordingSurface
	cfg := NewRenderConfig(WithStartDepth(1))
	_, err := RenderLeftHeavy(context.Background(), sampleGroup(), cfg, recordingFactory(&surf))
	require.NoError(t, err)

	assert.Len(t, surf.strokes, 3)
	assert.NotContains(t, surf.textStrings(), "main")
	assert.Contains(t, surf.textStrings(), "1")
}

func TestRenderLeftHeavy_FlattensRecursion(t *testing.T) {
	b := profile.NewBuilder("rec", profile.UnitMilliseconds)
	b.AppendSample([]profile.FrameInfo{fi("main"), fi("r"), fi("r"), fi("r")}, 1)
	group := &profile.Group{Profiles: []*profile.Profile{b.Build()}}

	var surf *recordingSurface
	res, err := RenderLeftHeavy(context.Background(), group, DefaultRenderConfig(), recordingFactory(&surf))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRendered, res.Outcome)
	assert.Len(t, surf.strokes, 2)
}

func TestRenderLeftHeavy_Placeholders(t *testing.T) {
	tests := []struct {
		name  string
		group *profile.Group
		text  string
	}{
		{"nil group", nil, "Profile group empty."},
		{"no profiles", &profile.Group{}, "Profile group empty."},
		{"bad index", &profile.Group{Profiles: []*profile.Profile{sampleProfile()}, IndexToView: 4}, "Active profile not found."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var surf *recordingSurface
			res, err := RenderLeftHeavy(context.Background(), tt.group, DefaultRenderConfig(), recordingFactory(&surf))
			require.NoError(t, err)
			assert.Equal(t, OutcomeEmptyGroup, res.Outcome)
			assert.Equal(t, 300, surf.width)
			assert.Equal(t, 100, surf.height)
			assert.Equal(t, []string{tt.text}, surf.textStrings())
			assert.Equal(t, 150.0, surf.texts[0].x)
		})
	}
}

func TestRenderLeftHeavy_ZeroWeight(t *testing.T) {
	group := &profile.Group{Profiles: []*profile.Profile{profile.NewBuilder("empty", profile.UnitNone).Build()}}
	var surf *recordingSurface
	res, err := RenderLeftHeavy(context.Background(), group, DefaultRenderConfig(), recordingFactory(&surf))
	require.NoError(t, err)
	assert.Equal(t, OutcomeZeroWeight, res.Outcome)
	assert.True(t, surf.hasText("Profile is empty or has zero total weight."))
}

func TestRenderLeftHeavy_InvalidWindowFallsBack(t *testing.T) {
	cfg := NewRenderConfig(WithTimeRange(ptr(2), ptr(2)))
	var surf *recordingSurface
	res, err := RenderLeftHeavy(context.Background(), sampleGroup(), cfg, recordingFactory(&surf))
	require.NoError(t, err)

	assert.Equal(t, OutcomeRendered, res.Outcome)
	assert.Equal(t, RangeFellBack, res.Range.Status)
	assert.False(t, res.Range.IsValidTimeRange)
	assert.Len(t, surf.strokes, 4)
}

func TestRenderLeftHeavy_NarrowWindowOnLargeProfile(t *testing.T) {
	b := profile.NewBuilder("big", profile.UnitNanoseconds)
	b.AppendSample([]profile.FrameInfo{{Key: "main", Name: "main"}}, 2e13)
	group := &profile.Group{Name: "big", Profiles: []*profile.Profile{b.Build()}}
	cfg := NewRenderConfig(WithTimeRange(ptr(1e7), ptr(1e7+3e-9)))

	type outcome struct {
		res RenderResult
		err error
	}
	done := make(chan outcome, 1)
	var surf *recordingSurface
	go func() {
		res, err := RenderLeftHeavy(context.Background(), group, cfg, recordingFactory(&surf))
		done <- outcome{res, err}
	}()

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.Equal(t, RangeWindowed, got.res.Range.Status)
		assert.Equal(t, OutcomeRendered, got.res.Outcome)
		assert.NotNil(t, surf)
	case <-time.After(5 * time.Second):
		t.Fatal("render did not return")
	}
}

func TestRenderLeftHeavy_InvalidConfig(t *testing.T) {
	var surf *recordingSurface
	_, err := RenderLeftHeavy(context.Background(), sampleGroup(), NewRenderConfig(WithSize(10, 0)), recordingFactory(&surf))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, surf)

	_, err = RenderLeftHeavy(context.Background(), sampleGroup(), NewRenderConfig(WithFont("Arial")), recordingFactory(&surf))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRenderSandwich(t *testing.T) {
	var surf *recordingSurface
	res, err := RenderSandwich(context.Background(), sampleGroup(), "a", DefaultSandwichConfig(), recordingFactory(&surf))
	require.NoError(t, err)

	assert.Equal(t, OutcomeRendered, res.Outcome)
	// Two layers in each section.
	assert.Equal(t, 74+DefaultCentralAxisHeight+74, res.Height)
	assert.Equal(t, 4.0, res.Range.EndWeight)

	var rotated []string
	for _, txt := range surf.texts {
		if txt.style.Rotate == RotateCCW {
			rotated = append(rotated, txt.text)
			assert.Equal(t, float64(DefaultSidebarWidth)/2, txt.x)
		}
	}
	assert.Equal(t, []string{"Callers", "Callees"}, rotated)
	assert.Contains(t, surf.textStrings(), "main")
	assert.Contains(t, surf.textStrings(), "b")
}

func TestRenderSandwich_FixedHeight(t *testing.T) {
	cfg := DefaultSandwichConfig()
	cfg.Height = 300

	var surf *recordingSurface
	res, err := RenderSandwich(context.Background(), sampleGroup(), "a", cfg, recordingFactory(&surf))
	require.NoError(t, err)
	assert.Equal(t, 300, res.Height)

	cfg.Height = 40
	cfg.CallerHeight = 100
	res, err = RenderSandwich(context.Background(), sampleGroup(), "a", cfg, recordingFactory(&surf))
	require.NoError(t, err)
	assert.Equal(t, 100+20+54, res.Height)
}

func TestRenderSandwich_Placeholders(t *testing.T) {
	var surf *recordingSurface

	res, err := RenderSandwich(context.Background(), &profile.Group{}, "a", DefaultSandwichConfig(), recordingFactory(&surf))
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmptyGroup, res.Outcome)
	assert.Equal(t, []string{"Main profile missing."}, surf.textStrings())

	res, err = RenderSandwich(context.Background(), sampleGroup(), "nope", DefaultSandwichConfig(), recordingFactory(&surf))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFrameNotFound, res.Outcome)
	assert.Equal(t, []string{"Selected frame missing."}, surf.textStrings())

	res, err = RenderSandwich(context.Background(), sampleGroup(), "", DefaultSandwichConfig(), recordingFactory(&surf))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFrameNotFound, res.Outcome)
}

func TestRenderSandwich_InvalidConfig(t *testing.T) {
	cfg := DefaultSandwichConfig()
	cfg.SidebarWidth = cfg.Width
	var surf *recordingSurface
	_, err := RenderSandwich(context.Background(), sampleGroup(), "a", cfg, recordingFactory(&surf))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRenderLeftHeavyFlamechart_PNG(t *testing.T) {
	data, err := RenderLeftHeavyFlamechart(context.Background(), sampleGroup(), DefaultRenderConfig())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1200, img.Bounds().Dx())
	assert.Equal(t, 92, img.Bounds().Dy())

	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	assert.Equal(t, white, color.NRGBAModel.Convert(img.At(1199, 91)))
	assert.NotEqual(t, white, color.NRGBAModel.Convert(img.At(630, 29)), "root frame")
}

func TestRenderFlamechart_PNGPlaceholders(t *testing.T) {
	data, err := RenderLeftHeavyFlamechart(context.Background(), &profile.Group{}, NewRenderConfig(WithMode(ModeDark)))
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 100, cfg.Height)
}

func TestRenderSandwichFlamechart_PNG(t *testing.T) {
	cfg := DefaultSandwichConfig()
	cfg.FlamegraphTheme = "ice"
	data, err := RenderSandwichFlamechart(context.Background(), sampleGroup(), "a", cfg)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1200, img.Bounds().Dx())
	assert.Equal(t, 168, img.Bounds().Dy())
}

func TestRenderOutcome_String(t *testing.T) {
	assert.Equal(t, "rendered", OutcomeRendered.String())
	assert.Equal(t, "no_sandwich_data", OutcomeNoSandwichData.String())
	assert.Equal(t, "outcome(42)", RenderOutcome(42).String())
}
