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
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultZScoreThreshold is the |z| above which a value is an outlier when
// no threshold is configured.
const DefaultZScoreThreshold = 2.5

// -----------------------------------------------------------------------------
// Outlier Methods
// -----------------------------------------------------------------------------

// OutlierMethod selects how outliers are removed from a sample.
type OutlierMethod int

const (
	// OutlierMethodTrim removes a fixed count from each tail.
	OutlierMethodTrim OutlierMethod = iota

	// OutlierMethodIQR removes values outside the Tukey fences.
	OutlierMethodIQR

	// OutlierMethodZScore removes values whose |z| exceeds a threshold.
	OutlierMethodZScore
)

// String returns the configuration name of the method.
func (m OutlierMethod) String() string {
	switch m {
	case OutlierMethodTrim:
		return "trim"
	case OutlierMethodIQR:
		return "iqr"
	case OutlierMethodZScore:
		return "zscore"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m OutlierMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseOutlierMethod converts a configuration name into an OutlierMethod.
//
// Outputs:
//   - OutlierMethod: The parsed method.
//   - error: ErrUnknownOutlierMethod for anything other than trim, iqr, zscore.
func ParseOutlierMethod(s string) (OutlierMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trim":
		return OutlierMethodTrim, nil
	case "iqr":
		return OutlierMethodIQR, nil
	case "zscore", "z-score":
		return OutlierMethodZScore, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOutlierMethod, s)
	}
}

// OutlierRemovalOptions configures RemoveOutliers.
type OutlierRemovalOptions struct {
	// Method selects the removal strategy.
	Method OutlierMethod `json:"method"`

	// RemoveCount is the number of values stripped from each tail by
	// OutlierMethodTrim. Ignored by the other methods.
	RemoveCount int `json:"removeCount"`

	// ZScoreThreshold is the |z| cutoff for OutlierMethodZScore.
	// Zero means DefaultZScoreThreshold.
	ZScoreThreshold float64 `json:"zScoreThreshold,omitempty"`
}

// TrimOutliers returns options that trim n values from each tail.
func TrimOutliers(n int) *OutlierRemovalOptions {
	return &OutlierRemovalOptions{Method: OutlierMethodTrim, RemoveCount: n}
}

// OutlierRemovalResult is the outcome of RemoveOutliers.
type OutlierRemovalResult struct {
	// CleanedValues are the retained values. Trim returns them in ascending
	// order; IQR and z-score keep the input order.
	CleanedValues []float64 `json:"cleanedValues"`

	// RemovedValues are the discarded values.
	RemovedValues []float64 `json:"removedValues"`

	// RemovalIndices are the input positions of RemovedValues.
	RemovalIndices []int `json:"removalIndices"`
}

// OutlierIdentification classifies every value without removing any.
type OutlierIdentification struct {
	OutlierIndices []int     `json:"outlierIndices"`
	OutlierValues  []float64 `json:"outlierValues"`
	IsOutlier      []bool    `json:"isOutlier"`
}

// OutlierStatistics reports how many values each detector would flag.
type OutlierStatistics struct {
	IQROutliers      int     `json:"iqrOutliers"`
	ZScoreOutliers   int     `json:"zScoreOutliers"`
	PercentageIQR    float64 `json:"percentageIQR"`
	PercentageZScore float64 `json:"percentageZScore"`
}

// -----------------------------------------------------------------------------
// Removal
// -----------------------------------------------------------------------------

// RemoveOutliers cleans values according to opts.
//
// Description:
//
//	Trim sorts (value, index) pairs and strips the lowest and highest
//	RemoveCount entries; it is a no-op when RemoveCount <= 0 or
//	len(values) <= 2*RemoveCount. IQR removes everything outside
//	[Q1-1.5*IQR, Q3+1.5*IQR]. Z-score removes values whose |z| against the
//	whole sample exceeds the threshold.
//
// Inputs:
//   - values: The raw sample. Not modified.
//   - opts: Removal options.
//
// Outputs:
//   - OutlierRemovalResult: Cleaned and removed values.
//   - error: ErrUnknownOutlierMethod for an unsupported method.
//
// Example:
//
//	res, err := stats.RemoveOutliers(samples, stats.OutlierRemovalOptions{
//	    Method:      stats.OutlierMethodTrim,
//	    RemoveCount: 2,
//	})
func RemoveOutliers(values []float64, opts OutlierRemovalOptions) (OutlierRemovalResult, error) {
	switch opts.Method {
	case OutlierMethodTrim:
		return trimOutliers(values, opts.RemoveCount), nil
	case OutlierMethodIQR:
		return removeIQROutliers(values), nil
	case OutlierMethodZScore:
		return removeZScoreOutliers(values, zThresholdOrDefault(opts.ZScoreThreshold)), nil
	default:
		return OutlierRemovalResult{}, fmt.Errorf("%w: %v", ErrUnknownOutlierMethod, int(opts.Method))
	}
}

func trimOutliers(values []float64, removeCount int) OutlierRemovalResult {
	if removeCount <= 0 || len(values) <= removeCount*2 {
		cleaned := make([]float64, len(values))
		copy(cleaned, values)
		return OutlierRemovalResult{
			CleanedValues:  cleaned,
			RemovedValues:  []float64{},
			RemovalIndices: []int{},
		}
	}

	type indexed struct {
		value float64
		index int
	}
	pairs := make([]indexed, len(values))
	for i, v := range values {
		pairs[i] = indexed{value: v, index: i}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].value < pairs[j].value })

	removed := make([]indexed, 0, removeCount*2)
	removed = append(removed, pairs[:removeCount]...)
	removed = append(removed, pairs[len(pairs)-removeCount:]...)
	kept := pairs[removeCount : len(pairs)-removeCount]

	result := OutlierRemovalResult{
		CleanedValues:  make([]float64, len(kept)),
		RemovedValues:  make([]float64, len(removed)),
		RemovalIndices: make([]int, len(removed)),
	}
	for i, p := range kept {
		result.CleanedValues[i] = p.value
	}
	for i, p := range removed {
		result.RemovedValues[i] = p.value
		result.RemovalIndices[i] = p.index
	}
	return result
}

func removeIQROutliers(values []float64) OutlierRemovalResult {
	q := InterquartileRange(values)
	lower, upper := q.LowerFence(), q.UpperFence()
	return partition(values, func(v float64) bool {
		return v < lower || v > upper
	})
}

func removeZScoreOutliers(values []float64, threshold float64) OutlierRemovalResult {
	avg := Mean(values)
	std := StandardDeviation(values)
	return partition(values, func(v float64) bool {
		if std == 0 {
			return false
		}
		return math.Abs((v-avg)/std) > threshold
	})
}

// partition splits values by the outlier predicate, keeping input order.
func partition(values []float64, isOutlier func(float64) bool) OutlierRemovalResult {
	result := OutlierRemovalResult{
		CleanedValues:  make([]float64, 0, len(values)),
		RemovedValues:  []float64{},
		RemovalIndices: []int{},
	}
	for i, v := range values {
		if isOutlier(v) {
			result.RemovedValues = append(result.RemovedValues, v)
			result.RemovalIndices = append(result.RemovalIndices, i)
			continue
		}
		result.CleanedValues = append(result.CleanedValues, v)
	}
	return result
}

func zThresholdOrDefault(threshold float64) float64 {
	if threshold <= 0 {
		return DefaultZScoreThreshold
	}
	return threshold
}

// -----------------------------------------------------------------------------
// Identification
// -----------------------------------------------------------------------------

// IdentifyOutliers flags outliers without removing them.
//
// Inputs:
//   - values: The sample.
//   - method: OutlierMethodIQR or OutlierMethodZScore. Trim is not a
//     detection method and is rejected.
//   - threshold: |z| cutoff for z-score. Zero means DefaultZScoreThreshold.
//
// Outputs:
//   - OutlierIdentification: Indices, values and a per-position flag.
//   - error: ErrUnknownDetectionMethod for unsupported methods.
func IdentifyOutliers(values []float64, method OutlierMethod, threshold float64) (OutlierIdentification, error) {
	var removal OutlierRemovalResult
	switch method {
	case OutlierMethodIQR:
		removal = removeIQROutliers(values)
	case OutlierMethodZScore:
		removal = removeZScoreOutliers(values, zThresholdOrDefault(threshold))
	default:
		return OutlierIdentification{}, fmt.Errorf("%w: %s", ErrUnknownDetectionMethod, method)
	}

	flags := make([]bool, len(values))
	for _, idx := range removal.RemovalIndices {
		flags[idx] = true
	}
	return OutlierIdentification{
		OutlierIndices: removal.RemovalIndices,
		OutlierValues:  removal.RemovedValues,
		IsOutlier:      flags,
	}, nil
}

// GetOutlierStatistics counts IQR and z-score outliers for diagnostics.
//
// Description:
//
//	Both detectors run regardless of which method is applied before
//	analysis. Percentages are 0 for an empty sample.
func GetOutlierStatistics(values []float64) OutlierStatistics {
	iqr, _ := IdentifyOutliers(values, OutlierMethodIQR, 0)
	z, _ := IdentifyOutliers(values, OutlierMethodZScore, 0)

	out := OutlierStatistics{
		IQROutliers:    len(iqr.OutlierIndices),
		ZScoreOutliers: len(z.OutlierIndices),
	}
	if n := len(values); n > 0 {
		out.PercentageIQR = float64(out.IQROutliers) / float64(n) * 100
		out.PercentageZScore = float64(out.ZScoreOutliers) / float64(n) * 100
	}
	return out
}
