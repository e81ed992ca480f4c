// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopFunctions_ByTotal(t *testing.T) {
	p := testProfile(t)
	q := TopFunctionsQuery{Offset: 1, Limit: 2}

	stats, err := TopFunctions(p, q)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 2, stats[0].Rank)
	assert.Equal(t, "a", stats[0].Frame.Name)
	assert.InDelta(t, 400.0/7, stats[0].TotalPercent, 1e-9)

	want := "Displaying functions 2 to 3 (sorted by total time):\n" +
		"2. a (a.go:10): Total: 4.00ms (57%), Self: 1000.00µs (14%)\n" +
		"3. b: Total: 3.00ms (43%), Self: 3.00ms (43%)"
	assert.Equal(t, want, FormatTopFunctions(p, stats, q))
}

func TestTopFunctions_BySelfIsStable(t *testing.T) {
	stats, err := TopFunctions(testProfile(t), TopFunctionsQuery{SortBy: SortBySelf})
	require.NoError(t, err)

	var names []string
	for _, s := range stats {
		names = append(names, s.Frame.Name)
	}
	assert.Equal(t, []string{"b", "c", "a", "r", "main"}, names)
}

func TestTopFunctions_ExcludesSyntheticRoots(t *testing.T) {
	b := NewBuilder("cpu", UnitNone)
	b.AppendSample([]FrameInfo{fi("[root]"), fi("work")}, 2)
	b.AppendSample([]FrameInfo{fi("(speedscope root)"), fi("work")}, 1)

	stats, err := TopFunctions(b.Build(), TopFunctionsQuery{})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "work", stats[0].Frame.Name)
	assert.Equal(t, 100.0, stats[0].TotalPercent)
}

func TestTopFunctions_Errors(t *testing.T) {
	p := testProfile(t)

	_, err := TopFunctions(p, TopFunctionsQuery{Offset: -1})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = TopFunctions(p, TopFunctionsQuery{Limit: -2})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = TopFunctions(p, TopFunctionsQuery{Offset: 50})
	assert.ErrorIs(t, err, ErrEmptyProfile)

	_, err = TopFunctions(NewBuilder("empty", UnitNone).Build(), TopFunctionsQuery{})
	assert.ErrorIs(t, err, ErrEmptyProfile)
}

func TestParseSortBy(t *testing.T) {
	s, err := ParseSortBy("")
	require.NoError(t, err)
	assert.Equal(t, SortByTotal, s)

	s, err = ParseSortBy("SELF")
	require.NoError(t, err)
	assert.Equal(t, SortBySelf, s)

	_, err = ParseSortBy("wall")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		frame FrameInfo
		want  string
	}{
		{FrameInfo{Name: "f", File: "f.go", Line: 3}, "f (f.go:3)"},
		{FrameInfo{Name: "f", File: "f.go"}, "f (f.go)"},
		{FrameInfo{Name: "f"}, "f"},
		{FrameInfo{}, "(unknown)"},
	}
	for _, tt := range tests {
		s := FunctionStat{Frame: &Frame{FrameInfo: tt.frame}}
		assert.Equal(t, tt.want, s.DisplayName())
	}
}
