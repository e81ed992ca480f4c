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

// FlattenRecursion returns a profile where every sample keeps only the
// outermost occurrence of each frame. Weights are preserved.
func (p *Profile) FlattenRecursion() *Profile {
	b := NewBuilder(p.name, p.unit)
	for _, s := range p.samples {
		seen := make(map[*Frame]bool, len(s.Stack))
		stack := make([]*Frame, 0, len(s.Stack))
		for _, f := range s.Stack {
			if seen[f] {
				continue
			}
			seen[f] = true
			stack = append(stack, f)
		}
		b.appendFrames(stack, s.Weight)
	}
	return b.Build()
}

// CallersOf returns an inverted profile rooted at focal. Each sample that
// contains focal contributes the path from its outermost focal occurrence
// back to the stack root, focal first, with the sample's weight.
func (p *Profile) CallersOf(focal *Frame) *Profile {
	b := NewBuilder(p.name, p.unit)
	for _, s := range p.samples {
		i := indexOf(s.Stack, focal)
		if i < 0 {
			continue
		}
		stack := make([]*Frame, 0, i+1)
		for j := i; j >= 0; j-- {
			stack = append(stack, s.Stack[j])
		}
		b.appendFrames(stack, s.Weight)
	}
	return b.Build()
}

// CalleesOf returns a profile rooted at focal holding everything called
// beneath its outermost occurrence in each sample.
func (p *Profile) CalleesOf(focal *Frame) *Profile {
	b := NewBuilder(p.name, p.unit)
	for _, s := range p.samples {
		i := indexOf(s.Stack, focal)
		if i < 0 {
			continue
		}
		b.appendFrames(s.Stack[i:], s.Weight)
	}
	return b.Build()
}

// indexOf matches by key so frames from a derived profile still resolve.
func indexOf(stack []*Frame, focal *Frame) int {
	if focal == nil {
		return -1
	}
	for i, f := range stack {
		if f == focal || f.Key == focal.Key {
			return i
		}
	}
	return -1
}
