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
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidPercentile indicates a percentile outside [0, 100].
	ErrInvalidPercentile = errors.New("percentile must be between 0 and 100")

	// ErrInvalidConfidenceLevel indicates a confidence level outside (0, 1).
	ErrInvalidConfidenceLevel = errors.New("confidence level must be between 0 and 1 exclusive")

	// ErrUnknownOutlierMethod indicates an unsupported outlier removal method.
	ErrUnknownOutlierMethod = errors.New("unknown outlier removal method")

	// ErrUnknownDetectionMethod indicates an unsupported outlier detection method.
	ErrUnknownDetectionMethod = errors.New("unknown outlier detection method")

	// ErrInvalidOptions indicates analysis options failed validation.
	ErrInvalidOptions = errors.New("invalid analysis options")
)

// -----------------------------------------------------------------------------
// Descriptive Statistics
// -----------------------------------------------------------------------------

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Median returns the middle value of values. Even-length inputs average
// the two central values. Returns 0 for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := sortedCopy(values)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Variance returns the population variance of values (divides by N).
//
// Description:
//
//	This is the population form. PooledStandardDeviation weights these
//	population variances by (n-1) separately; the two must not be
//	confused. Returns 0 for an empty slice.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.PopVariance(values, nil)
}

// StandardDeviation returns the population standard deviation of values.
func StandardDeviation(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// PooledStandardDeviation returns the pooled standard deviation of two samples.
//
// Description:
//
//	sqrt(((n1-1)*var1 + (n2-1)*var2) / (n1+n2-2)) where var1 and var2 are
//	population variances. Returns 0 when either sample has at most one value.
func PooledStandardDeviation(sample1, sample2 []float64) float64 {
	n1, n2 := len(sample1), len(sample2)
	if n1 <= 1 || n2 <= 1 {
		return 0
	}

	var1 := Variance(sample1)
	var2 := Variance(sample2)
	pooled := (float64(n1-1)*var1 + float64(n2-1)*var2) / float64(n1+n2-2)
	return math.Sqrt(pooled)
}

// CohensD returns the standardized mean difference (mean2 - mean1) / pooled.
//
// Description:
//
//	Positive values mean sample2 (the treatment) is higher than sample1
//	(the baseline). Returns 0 when the pooled standard deviation is 0.
//
// Example:
//
//	d := stats.CohensD(baseline, treatment)
//	if math.Abs(d) > 0.8 {
//	    // large effect
//	}
func CohensD(sample1, sample2 []float64) float64 {
	pooled := PooledStandardDeviation(sample1, sample2)
	if pooled == 0 {
		return 0
	}
	return (Mean(sample2) - Mean(sample1)) / pooled
}

// ZScore returns how many population standard deviations value lies from
// the mean of dataset. Returns 0 when the dataset has no spread.
func ZScore(value float64, dataset []float64) float64 {
	std := StandardDeviation(dataset)
	if std == 0 {
		return 0
	}
	return (value - Mean(dataset)) / std
}

// Quartiles holds the floor-indexed first and third quartiles.
type Quartiles struct {
	Q1  float64 `json:"q1"`
	Q3  float64 `json:"q3"`
	IQR float64 `json:"iqr"`
}

// LowerFence returns Q1 - 1.5*IQR.
func (q Quartiles) LowerFence() float64 {
	return q.Q1 - 1.5*q.IQR
}

// UpperFence returns Q3 + 1.5*IQR.
func (q Quartiles) UpperFence() float64 {
	return q.Q3 + 1.5*q.IQR
}

// InterquartileRange returns Q1, Q3 and their difference.
//
// Description:
//
//	Quartiles are taken at sorted[floor(n*0.25)] and sorted[floor(n*0.75)]
//	without interpolation. Returns the zero value for an empty slice.
func InterquartileRange(values []float64) Quartiles {
	if len(values) == 0 {
		return Quartiles{}
	}
	sorted := sortedCopy(values)
	n := float64(len(sorted))
	q1 := sorted[int(math.Floor(n*0.25))]
	q3 := sorted[int(math.Floor(n*0.75))]
	return Quartiles{Q1: q1, Q3: q3, IQR: q3 - q1}
}

// Percentile returns the linearly interpolated p-th percentile of values.
//
// Inputs:
//   - values: The sample. Not modified.
//   - p: Percentile in [0, 100].
//
// Outputs:
//   - float64: The percentile, or 0 for an empty slice.
//   - error: ErrInvalidPercentile if p is out of range.
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	if p < 0 || p > 100 || math.IsNaN(p) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidPercentile, p)
	}

	sorted := sortedCopy(values)
	idx := p / 100 * float64(len(sorted)-1)
	lower := math.Floor(idx)
	upper := math.Ceil(idx)
	if lower == upper {
		return sorted[int(idx)], nil
	}
	weight := idx - lower
	return sorted[int(lower)]*(1-weight) + sorted[int(upper)]*weight, nil
}

// ConfidenceInterval returns a normal-approximation interval for the mean.
//
// Description:
//
//	mean ± z * std / sqrt(n), with z taken from zForConfidence. This uses a
//	z-score rather than a t-distribution and is optimistic for small n.
//	Returns [0, 0] for an empty slice.
//
// Inputs:
//   - values: The sample.
//   - level: Confidence level in (0, 1), e.g. 0.95.
//
// Outputs:
//   - [2]float64: Lower and upper bounds.
//   - error: ErrInvalidConfidenceLevel if level is out of range.
func ConfidenceInterval(values []float64, level float64) ([2]float64, error) {
	if level <= 0 || level >= 1 || math.IsNaN(level) {
		return [2]float64{}, fmt.Errorf("%w: got %v", ErrInvalidConfidenceLevel, level)
	}
	if len(values) == 0 {
		return [2]float64{0, 0}, nil
	}

	avg := Mean(values)
	se := StandardDeviation(values) / math.Sqrt(float64(len(values)))
	margin := zForConfidence(level) * se
	return [2]float64{avg - margin, avg + margin}, nil
}

// PercentageChange returns the change from oldValue to newValue in percent.
//
// Description:
//
//	(new-old)/|old| * 100. When oldValue is 0 the result is 0 if newValue
//	is also 0, otherwise +Inf or -Inf following the sign of newValue.
func PercentageChange(oldValue, newValue float64) float64 {
	if oldValue == 0 {
		switch {
		case newValue == 0:
			return 0
		case newValue < 0:
			return math.Inf(-1)
		default:
			return math.Inf(1)
		}
	}
	return (newValue - oldValue) / math.Abs(oldValue) * 100
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// zForConfidence maps a two-sided confidence level to its z critical value.
func zForConfidence(level float64) float64 {
	return zForProbability(1 - (1-level)/2)
}

// zForProbability approximates the inverse standard normal CDF at p for
// the common confidence levels, falling back to sqrt(-2 ln(1-p)).
func zForProbability(p float64) float64 {
	// Tolerance absorbs rounding in 1-(1-level)/2.
	const eps = 1e-9
	switch {
	case p >= 0.995-eps:
		return 2.576
	case p >= 0.975-eps:
		return 1.96
	case p >= 0.9-eps:
		return 1.645
	default:
		return math.Sqrt(-2 * math.Log(1-p))
	}
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
