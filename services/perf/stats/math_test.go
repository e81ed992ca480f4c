// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

// =============================================================================
// Descriptive Statistics Tests
// =============================================================================

func TestMean(t *testing.T) {
	t.Run("empty is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Mean(nil))
		assert.Equal(t, 0.0, Mean([]float64{}))
	})

	t.Run("single value", func(t *testing.T) {
		assert.Equal(t, 42.5, Mean([]float64{42.5}))
	})

	t.Run("order invariant", func(t *testing.T) {
		a := Mean([]float64{3, 1, 4, 1, 5, 9, 2, 6})
		b := Mean([]float64{9, 6, 5, 4, 3, 2, 1, 1})
		assert.InDelta(t, a, b, tolerance)
		assert.InDelta(t, 3.875, a, tolerance)
	})
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"odd", []float64{1, 2, 3}, 2},
		{"even averages middle", []float64{1, 2, 3, 4}, 2.5},
		{"unsorted input", []float64{4, 1, 3, 2}, 2.5},
		{"single", []float64{7}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Median(tt.values))
		})
	}
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestVariance_PopulationForm(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 4.0, Variance(values), tolerance)
	assert.InDelta(t, 2.0, StandardDeviation(values), tolerance)
	assert.Equal(t, 0.0, Variance(nil))
	assert.Equal(t, 0.0, Variance([]float64{5}))
}

func TestStandardDeviation_SquaredEqualsVariance(t *testing.T) {
	samples := [][]float64{
		{1},
		{1, 2},
		{100, 102, 98, 101, 99, 100, 103, 97},
		{0.001, 1000, -50, 3.3},
	}
	for _, s := range samples {
		sd := StandardDeviation(s)
		assert.InDelta(t, Variance(s), sd*sd, 1e-6)
	}
}

func TestPooledStandardDeviation(t *testing.T) {
	t.Run("degenerate samples", func(t *testing.T) {
		assert.Equal(t, 0.0, PooledStandardDeviation([]float64{1}, []float64{1, 2, 3}))
		assert.Equal(t, 0.0, PooledStandardDeviation([]float64{1, 2}, nil))
	})

	t.Run("weights population variances by n-1", func(t *testing.T) {
		s1 := []float64{100, 102, 98, 101, 99, 100, 103, 97}
		s2 := []float64{150, 152, 148, 151, 149, 150, 153, 147}
		// Both population variances are 3.5.
		assert.InDelta(t, math.Sqrt(3.5), PooledStandardDeviation(s1, s2), tolerance)
	})
}

func TestCohensD(t *testing.T) {
	t.Run("identical samples have zero effect", func(t *testing.T) {
		s := []float64{3, 5, 8, 13, 21}
		assert.Equal(t, 0.0, CohensD(s, s))
	})

	t.Run("sign follows treatment", func(t *testing.T) {
		base := []float64{1, 2, 3, 4}
		higher := []float64{5, 6, 7, 8}
		assert.Greater(t, CohensD(base, higher), 0.0)
		assert.Less(t, CohensD(higher, base), 0.0)
	})

	t.Run("zero pooled spread", func(t *testing.T) {
		assert.Equal(t, 0.0, CohensD([]float64{1, 1}, []float64{2, 2}))
	})
}

func TestZScore(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 2.0, ZScore(9, data), tolerance)
	assert.InDelta(t, -1.5, ZScore(2, data), tolerance)
	assert.Equal(t, 0.0, ZScore(10, []float64{3, 3, 3}))
}

func TestInterquartileRange(t *testing.T) {
	q := InterquartileRange([]float64{8, 7, 6, 5, 4, 3, 2, 1})
	assert.Equal(t, 3.0, q.Q1)
	assert.Equal(t, 7.0, q.Q3)
	assert.Equal(t, 4.0, q.IQR)
	assert.Equal(t, -3.0, q.LowerFence())
	assert.Equal(t, 13.0, q.UpperFence())

	assert.Equal(t, Quartiles{}, InterquartileRange(nil))
}

func TestPercentile(t *testing.T) {
	values := []float64{4, 1, 3, 2}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 2.5},
		{100, 4},
		{25, 1.75},
	}
	for _, tt := range tests {
		got, err := Percentile(values, tt.p)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, tolerance, "p=%v", tt.p)
	}

	t.Run("empty", func(t *testing.T) {
		got, err := Percentile(nil, 50)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("out of range", func(t *testing.T) {
		for _, p := range []float64{-1, 100.5, math.NaN()} {
			_, err := Percentile(values, p)
			assert.True(t, errors.Is(err, ErrInvalidPercentile), "p=%v", p)
		}
	})
}

func TestConfidenceInterval(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	se := 2 / math.Sqrt(8)

	tests := []struct {
		level float64
		z     float64
	}{
		{0.95, 1.96},
		{0.99, 2.576},
		{0.90, 1.645},
	}
	for _, tt := range tests {
		ci, err := ConfidenceInterval(values, tt.level)
		require.NoError(t, err)
		assert.InDelta(t, 5-tt.z*se, ci[0], 1e-9, "level=%v", tt.level)
		assert.InDelta(t, 5+tt.z*se, ci[1], 1e-9, "level=%v", tt.level)
	}

	t.Run("empty sample", func(t *testing.T) {
		ci, err := ConfidenceInterval(nil, 0.95)
		require.NoError(t, err)
		assert.Equal(t, [2]float64{0, 0}, ci)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := ConfidenceInterval(values, 1.0)
		assert.ErrorIs(t, err, ErrInvalidConfidenceLevel)
	})
}

func TestPercentageChange(t *testing.T) {
	assert.Equal(t, 0.0, PercentageChange(0, 0))
	assert.True(t, math.IsInf(PercentageChange(0, 5), 1))
	assert.True(t, math.IsInf(PercentageChange(0, -5), -1))
	assert.InDelta(t, 50.0, PercentageChange(100, 150), tolerance)
	assert.InDelta(t, -25.0, PercentageChange(100, 75), tolerance)
	// Negative baselines use |old| so direction is preserved.
	assert.InDelta(t, 50.0, PercentageChange(-100, -50), tolerance)
}
