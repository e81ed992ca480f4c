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
	"math"
	"testing"
)

func TestMannWhitneyUTest_EmptySample(t *testing.T) {
	got := MannWhitneyUTest(nil, []float64{1, 2, 3})
	if got.UStatistic != 0 || got.PValue != 1 || got.IsSignificant {
		t.Errorf("empty sample result = %+v, want U=0 p=1 not significant", got)
	}
	if got.Approximation != ApproximationNone {
		t.Errorf("Approximation = %v, want none", got.Approximation)
	}
}

func TestMannWhitneyUTest_IdenticalSamples(t *testing.T) {
	tests := []struct {
		name   string
		sample []float64
	}{
		{"small", []float64{3, 1, 2}},
		{"large", []float64{100, 102, 98, 101, 99, 100, 103, 97, 105, 95}},
		{"all ties", []float64{10, 10, 10, 10, 10, 10, 10, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			copySample := append([]float64(nil), tt.sample...)
			got := MannWhitneyUTest(tt.sample, copySample)
			if got.IsSignificant {
				t.Errorf("identical samples flagged significant: %+v", got)
			}
			if got.PValue < MannWhitneyDiagnosticAlpha {
				t.Errorf("PValue = %v, want >= %v", got.PValue, MannWhitneyDiagnosticAlpha)
			}
		})
	}
}

func TestMannWhitneyUTest_Symmetry(t *testing.T) {
	pairs := [][2][]float64{
		{{1, 2, 3}, {4, 5, 6, 7}},
		{{100, 102, 98, 101, 99, 100, 103, 97}, {150, 152, 148, 151, 149, 150, 153, 147}},
		{{1, 1, 2, 3, 5, 8, 13, 21, 34}, {2, 3, 3, 4, 6, 8, 10, 12, 14}},
	}

	for i, p := range pairs {
		ab := MannWhitneyUTest(p[0], p[1])
		ba := MannWhitneyUTest(p[1], p[0])
		if ab.UStatistic != ba.UStatistic {
			t.Errorf("pair %d: U differs after swap: %v vs %v", i, ab.UStatistic, ba.UStatistic)
		}
		if ab.IsSignificant != ba.IsSignificant {
			t.Errorf("pair %d: significance differs after swap", i)
		}
		if math.Abs(ab.PValue-ba.PValue) > 1e-12 {
			t.Errorf("pair %d: p differs after swap: %v vs %v", i, ab.PValue, ba.PValue)
		}
	}
}

func TestMannWhitneyUTest_CompleteSeparation(t *testing.T) {
	t.Run("large samples use normal approximation", func(t *testing.T) {
		base := []float64{100, 102, 98, 101, 99, 100, 103, 97}
		treat := []float64{150, 152, 148, 151, 149, 150, 153, 147}
		got := MannWhitneyUTest(base, treat)

		if got.UStatistic != 0 {
			t.Errorf("U = %v, want 0", got.UStatistic)
		}
		if got.Approximation != ApproximationNormal {
			t.Errorf("Approximation = %v, want normal", got.Approximation)
		}
		if got.PValue >= 0.01 || !got.IsSignificant {
			t.Errorf("PValue = %v, want < 0.01 and significant", got.PValue)
		}
	})

	t.Run("small samples use clamped heuristic", func(t *testing.T) {
		got := MannWhitneyUTest([]float64{1, 2, 3}, []float64{10, 11, 12})
		if got.Approximation != ApproximationHeuristic {
			t.Errorf("Approximation = %v, want heuristic", got.Approximation)
		}
		if got.PValue != SmallSamplePMin {
			t.Errorf("PValue = %v, want %v", got.PValue, SmallSamplePMin)
		}
	})
}

func TestSmallSampleP_DecreasesWithSeparation(t *testing.T) {
	tests := []struct {
		name string
		u    float64
		want float64
	}{
		{"no separation", 4.5, SmallSamplePMax},
		{"partial", 2.25, 0.5},
		{"complete", 0, SmallSamplePMin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := smallSampleP(tt.u, 3, 3); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("smallSampleP(%v, 3, 3) = %v, want %v", tt.u, got, tt.want)
			}
		})
	}

	got := MannWhitneyUTest([]float64{3, 1, 2}, []float64{1, 2, 3})
	if got.PValue != SmallSamplePMax {
		t.Errorf("identical small samples: PValue = %v, want %v", got.PValue, SmallSamplePMax)
	}
}

func TestMannWhitneyUTest_TiesShareAverageRank(t *testing.T) {
	// Merged order: 1(a) 2(a) 2(b) 3(b); the tied 2s share rank 2.5.
	r1, r2 := rankSums([]float64{1, 2}, []float64{2, 3})
	if r1 != 3.5 || r2 != 6.5 {
		t.Errorf("rank sums = (%v, %v), want (3.5, 6.5)", r1, r2)
	}
}

func TestNormalCDF(t *testing.T) {
	tests := []struct {
		z    float64
		want float64
	}{
		{0, 0.5},
		{1.96, 0.975},
		{-1.96, 0.025},
		{3, 0.99865},
	}
	for _, tt := range tests {
		if got := normalCDF(tt.z); math.Abs(got-tt.want) > 1e-4 {
			t.Errorf("normalCDF(%v) = %v, want ~%v", tt.z, got, tt.want)
		}
	}
}
