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
	"fmt"
	"sort"
	"strings"
)

// DefaultTopLimit is the number of functions returned when no limit is set.
const DefaultTopLimit = 15

// SortBy selects the weight that ranks functions.
type SortBy int

const (
	// SortByTotal ranks by inclusive weight.
	SortByTotal SortBy = iota
	// SortBySelf ranks by exclusive weight.
	SortBySelf
)

// String returns "total" or "self".
func (s SortBy) String() string {
	if s == SortBySelf {
		return "self"
	}
	return "total"
}

// ParseSortBy accepts "total", "self" or an empty string (total).
func ParseSortBy(s string) (SortBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "total":
		return SortByTotal, nil
	case "self":
		return SortBySelf, nil
	default:
		return SortByTotal, fmt.Errorf("%w: sort by %q", ErrInvalidQuery, s)
	}
}

// TopFunctionsQuery selects a page of ranked functions.
type TopFunctionsQuery struct {
	SortBy SortBy
	Offset int
	// Limit of zero means DefaultTopLimit.
	Limit int
}

func (q TopFunctionsQuery) normalized() (TopFunctionsQuery, error) {
	if q.Offset < 0 {
		return q, fmt.Errorf("%w: offset must be non-negative, got %d", ErrInvalidQuery, q.Offset)
	}
	if q.Limit < 0 {
		return q, fmt.Errorf("%w: limit must be non-negative, got %d", ErrInvalidQuery, q.Limit)
	}
	if q.Limit == 0 {
		q.Limit = DefaultTopLimit
	}
	return q, nil
}

// FunctionStat is one ranked function.
type FunctionStat struct {
	// Rank is 1-based across the whole ranking, not the page.
	Rank         int
	Frame        *Frame
	TotalWeight  float64
	SelfWeight   float64
	TotalPercent float64
	SelfPercent  float64
}

// DisplayName returns "name (file:line)", "name (file)" or the bare name.
func (s FunctionStat) DisplayName() string {
	name := s.Frame.Name
	if name == "" {
		name = "(unknown)"
	}
	switch {
	case s.Frame.File != "" && s.Frame.Line > 0:
		return fmt.Sprintf("%s (%s:%d)", name, s.Frame.File, s.Frame.Line)
	case s.Frame.File != "":
		return fmt.Sprintf("%s (%s)", name, s.Frame.File)
	default:
		return name
	}
}

// TopFunctions ranks the profile's frames by total or self weight and
// returns the requested page. Synthetic root frames are excluded.
// Percentages are relative to the non-idle weight.
//
// Outputs:
//
//	[]FunctionStat - The page, heaviest first.
//	error - ErrInvalidQuery for bad paging, ErrEmptyProfile when the page is
//	        empty.
func TopFunctions(p *Profile, q TopFunctionsQuery) ([]FunctionStat, error) {
	q, err := q.normalized()
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: nil profile", ErrEmptyProfile)
	}

	frames := make([]*Frame, 0, len(p.frames))
	for _, f := range p.frames {
		if !IsSyntheticRoot(f.Name) {
			frames = append(frames, f)
		}
	}
	weight := func(f *Frame) float64 {
		if q.SortBy == SortBySelf {
			return f.selfWeight
		}
		return f.totalWeight
	}
	sort.SliceStable(frames, func(i, j int) bool {
		return weight(frames[i]) > weight(frames[j])
	})

	if q.Offset >= len(frames) {
		return nil, fmt.Errorf("%w: no functions at offset %d", ErrEmptyProfile, q.Offset)
	}
	end := q.Offset + q.Limit
	if end > len(frames) {
		end = len(frames)
	}

	total := p.nonIdle
	pct := func(v float64) float64 {
		if total == 0 {
			return 0
		}
		return v / total * 100
	}

	out := make([]FunctionStat, 0, end-q.Offset)
	for i := q.Offset; i < end; i++ {
		f := frames[i]
		out = append(out, FunctionStat{
			Rank:         i + 1,
			Frame:        f,
			TotalWeight:  f.totalWeight,
			SelfWeight:   f.selfWeight,
			TotalPercent: pct(f.totalWeight),
			SelfPercent:  pct(f.selfWeight),
		})
	}
	return out, nil
}

// FormatTopFunctions renders a page from TopFunctions as plain text.
func FormatTopFunctions(p *Profile, stats []FunctionStat, q TopFunctionsQuery) string {
	if len(stats) == 0 {
		return ""
	}
	lines := make([]string, 0, len(stats))
	for _, s := range stats {
		lines = append(lines, fmt.Sprintf("%d. %s: Total: %s (%s), Self: %s (%s)",
			s.Rank, s.DisplayName(),
			p.FormatValue(s.TotalWeight), FormatPercent(s.TotalPercent),
			p.FormatValue(s.SelfWeight), FormatPercent(s.SelfPercent)))
	}
	return fmt.Sprintf("Displaying functions %d to %d (sorted by %s time):\n%s",
		stats[0].Rank, stats[len(stats)-1].Rank, q.SortBy, strings.Join(lines, "\n"))
}
