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
	"io"
	"os"

	pprof "github.com/google/pprof/profile"
)

// ParsePprof reads a pprof profile, gzipped or not, and converts every
// sample type into a Profile. IndexToView points at the default sample
// type when the profile names one.
func ParsePprof(name string, r io.Reader) (*Group, error) {
	pp, err := pprof.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing pprof profile: %w", err)
	}
	return GroupFromPprof(name, pp)
}

// LoadPprof opens and parses a pprof file.
func LoadPprof(path string) (*Group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile: %w", err)
	}
	defer f.Close()
	return ParsePprof(path, f)
}

// GroupFromPprof converts an already parsed pprof profile.
func GroupFromPprof(name string, pp *pprof.Profile) (*Group, error) {
	if pp == nil || len(pp.SampleType) == 0 {
		return nil, fmt.Errorf("%w: pprof profile has no sample types", ErrEmptyProfile)
	}
	g := &Group{Name: name}
	for i, st := range pp.SampleType {
		p, err := FromPprof(pp, i)
		if err != nil {
			return nil, err
		}
		g.Profiles = append(g.Profiles, p)
		if pp.DefaultSampleType != "" && st.Type == pp.DefaultSampleType {
			g.IndexToView = i
		}
	}
	return g, nil
}

// FromPprof converts one sample type of a pprof profile. pprof stacks are
// leaf first and inlined frames are listed innermost first within a
// location; both are reversed to root-first order.
func FromPprof(pp *pprof.Profile, sampleIndex int) (*Profile, error) {
	if pp == nil || sampleIndex < 0 || sampleIndex >= len(pp.SampleType) {
		return nil, fmt.Errorf("%w: sample index %d out of range", ErrInvalidQuery, sampleIndex)
	}
	st := pp.SampleType[sampleIndex]
	b := NewBuilder(st.Type, pprofUnit(st.Unit))

	for _, s := range pp.Sample {
		if sampleIndex >= len(s.Value) {
			continue
		}
		var stack []FrameInfo
		for i := len(s.Location) - 1; i >= 0; i-- {
			stack = append(stack, locationFrames(s.Location[i])...)
		}
		b.AppendSample(stack, float64(s.Value[sampleIndex]))
	}
	return b.Build(), nil
}

func locationFrames(loc *pprof.Location) []FrameInfo {
	if len(loc.Line) == 0 {
		name := fmt.Sprintf("0x%x", loc.Address)
		return []FrameInfo{{Key: name, Name: name}}
	}
	out := make([]FrameInfo, 0, len(loc.Line))
	for j := len(loc.Line) - 1; j >= 0; j-- {
		ln := loc.Line[j]
		if ln.Function == nil {
			continue
		}
		fn := ln.Function
		out = append(out, FrameInfo{
			Key:  fn.Name + "\x00" + fn.Filename,
			Name: fn.Name,
			File: fn.Filename,
			Line: int(fn.StartLine),
		})
	}
	return out
}

func pprofUnit(u string) WeightUnit {
	switch u {
	case "nanoseconds":
		return UnitNanoseconds
	case "microseconds":
		return UnitMicroseconds
	case "milliseconds":
		return UnitMilliseconds
	case "seconds":
		return UnitSeconds
	case "bytes":
		return UnitBytes
	default:
		return UnitNone
	}
}
