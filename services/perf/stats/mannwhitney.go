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
	"sort"
)

const (
	// SmallSampleThreshold is the group size below which MannWhitneyUTest
	// uses the coarse heuristic p-value instead of the normal approximation.
	SmallSampleThreshold = 8

	// SmallSamplePMin and SmallSamplePMax clamp the heuristic p-value.
	SmallSamplePMin = 0.01
	SmallSamplePMax = 0.99

	// MannWhitneyDiagnosticAlpha is the fixed cutoff behind
	// MannWhitneyResult.IsSignificant. It is unrelated to the caller's
	// AnalysisOptions.SignificanceThreshold, which alone drives verdicts.
	MannWhitneyDiagnosticAlpha = 0.05
)

// Approximation names the method used to derive a Mann-Whitney p-value.
type Approximation int

const (
	// ApproximationNone marks the degenerate empty-sample result.
	ApproximationNone Approximation = iota

	// ApproximationHeuristic is the small-sample distance heuristic. It is
	// not an exact or permutation p-value.
	ApproximationHeuristic

	// ApproximationNormal is the large-sample normal approximation.
	ApproximationNormal
)

// String returns the approximation name.
func (a Approximation) String() string {
	switch a {
	case ApproximationNone:
		return "none"
	case ApproximationHeuristic:
		return "heuristic"
	case ApproximationNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Approximation) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// MannWhitneyResult holds the outcome of MannWhitneyUTest.
type MannWhitneyResult struct {
	// UStatistic is min(U1, U2).
	UStatistic float64 `json:"uStatistic"`

	// PValue is the two-tailed p-value, never above 1.
	PValue float64 `json:"pValue"`

	// IsSignificant reports PValue < MannWhitneyDiagnosticAlpha. It is a
	// diagnostic flag only.
	IsSignificant bool `json:"isSignificant"`

	// Approximation records how PValue was obtained.
	Approximation Approximation `json:"approximation"`
}

// MannWhitneyUTest runs a two-sided Mann-Whitney U test.
//
// Description:
//
//	Both samples are merged and ranked; tied values share the average rank
//	of their run. U1 = R1 - n1(n1+1)/2, U2 = R2 - n2(n2+1)/2, U = min.
//
//	When either group has fewer than SmallSampleThreshold values the
//	p-value is a heuristic: 1 - 2*|U - n1n2/2|/(n1n2), clamped to
//	[SmallSamplePMin, SmallSamplePMax]. Treat it as a rough indicator; it is
//	not an exact small-sample test. Larger groups use the normal
//	approximation with an Abramowitz-Stegun CDF.
//
//	An empty group yields U=0, p=1, not significant.
//
// Inputs:
//   - sample1, sample2: Independent samples. Not modified.
//
// Outputs:
//   - MannWhitneyResult: The statistic and p-value.
//
// Thread Safety: Safe for concurrent use.
func MannWhitneyUTest(sample1, sample2 []float64) MannWhitneyResult {
	n1, n2 := len(sample1), len(sample2)
	if n1 == 0 || n2 == 0 {
		return MannWhitneyResult{UStatistic: 0, PValue: 1, Approximation: ApproximationNone}
	}

	r1, r2 := rankSums(sample1, sample2)
	fn1, fn2 := float64(n1), float64(n2)
	u1 := r1 - fn1*(fn1+1)/2
	u2 := r2 - fn2*(fn2+1)/2
	u := math.Min(u1, u2)

	var (
		p      float64
		method Approximation
	)
	if n1 < SmallSampleThreshold || n2 < SmallSampleThreshold {
		p = smallSampleP(u, fn1, fn2)
		method = ApproximationHeuristic
	} else {
		meanU := fn1 * fn2 / 2
		stdU := math.Sqrt(fn1 * fn2 * (fn1 + fn2 + 1) / 12)
		z := math.Abs(u-meanU) / stdU
		p = 2 * (1 - normalCDF(z))
		method = ApproximationNormal
	}

	return MannWhitneyResult{
		UStatistic:    u,
		PValue:        math.Min(p, 1),
		IsSignificant: p < MannWhitneyDiagnosticAlpha,
		Approximation: method,
	}
}

// rankSums returns the mid-rank sums of each group in the merged ordering.
func rankSums(sample1, sample2 []float64) (float64, float64) {
	type tagged struct {
		value float64
		first bool
	}
	combined := make([]tagged, 0, len(sample1)+len(sample2))
	for _, v := range sample1 {
		combined = append(combined, tagged{value: v, first: true})
	}
	for _, v := range sample2 {
		combined = append(combined, tagged{value: v})
	}
	sort.SliceStable(combined, func(i, j int) bool { return combined[i].value < combined[j].value })

	var r1, r2 float64
	for i := 0; i < len(combined); {
		j := i
		for j+1 < len(combined) && combined[j+1].value == combined[i].value {
			j++
		}
		// Ranks are 1-based; the tie run i..j shares the average rank.
		avgRank := float64(i+1+j+1) / 2
		for k := i; k <= j; k++ {
			if combined[k].first {
				r1 += avgRank
			} else {
				r2 += avgRank
			}
		}
		i = j + 1
	}
	return r1, r2
}

// smallSampleP maps the normalized distance of U from its expectation onto
// a clamped p-value. Distance 0 (no separation) gives the maximum.
func smallSampleP(u, n1, n2 float64) float64 {
	deviation := math.Abs(u-n1*n2/2) / (n1 * n2)
	p := 1 - 2*deviation
	return math.Max(SmallSamplePMin, math.Min(SmallSamplePMax, p))
}

// normalCDF approximates the standard normal CDF (Abramowitz and Stegun
// 26.2.17).
func normalCDF(z float64) float64 {
	t := 1 / (1 + 0.2316419*math.Abs(z))
	d := 0.3989423 * math.Exp(-z*z/2)
	prob := d * t * (0.3193815 + t*(-0.3565638+t*(1.781478+t*(-1.821256+t*1.330274))))
	if z > 0 {
		prob = 1 - prob
	}
	return prob
}
