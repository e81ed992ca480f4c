// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package profile models sampled call-stack profiles for flamechart
// rendering and hot-function queries.
//
// A Profile is built from samples: a root-first stack of frames plus a
// weight. From the samples it derives per-frame self and total weight and a
// grouped call tree whose children are ordered heaviest first. Profiles are
// immutable after Build; transformations such as FlattenRecursion, CallersOf
// and CalleesOf return new profiles.
package profile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrEmptyProfile indicates a profile or group without usable data.
	ErrEmptyProfile = errors.New("empty profile")

	// ErrFrameNotFound indicates no frame matched a lookup.
	ErrFrameNotFound = errors.New("frame not found")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query")
)

// RootFrameNames are synthetic frames that importers insert above real roots.
var RootFrameNames = []string{"[root]", "(speedscope root)"}

// IsSyntheticRoot reports whether name is a synthetic root frame.
func IsSyntheticRoot(name string) bool {
	for _, r := range RootFrameNames {
		if name == r {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Weight units
// -----------------------------------------------------------------------------

// WeightUnit is the unit of sample weights.
type WeightUnit int

const (
	UnitNone WeightUnit = iota
	UnitNanoseconds
	UnitMicroseconds
	UnitMilliseconds
	UnitSeconds
	UnitBytes
)

// String returns the unit name.
func (u WeightUnit) String() string {
	switch u {
	case UnitNanoseconds:
		return "nanoseconds"
	case UnitMicroseconds:
		return "microseconds"
	case UnitMilliseconds:
		return "milliseconds"
	case UnitSeconds:
		return "seconds"
	case UnitBytes:
		return "bytes"
	default:
		return "none"
	}
}

// ParseWeightUnit maps a unit name to a WeightUnit. Unknown names map to
// UnitNone.
func ParseWeightUnit(s string) WeightUnit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nanoseconds", "ns":
		return UnitNanoseconds
	case "microseconds", "us", "µs":
		return UnitMicroseconds
	case "milliseconds", "ms":
		return UnitMilliseconds
	case "seconds", "s":
		return UnitSeconds
	case "bytes", "b":
		return UnitBytes
	default:
		return UnitNone
	}
}

// MillisecondFactor returns how many weight units make one millisecond.
// ok is false for units that are not time based.
func (u WeightUnit) MillisecondFactor() (factor float64, ok bool) {
	switch u {
	case UnitNanoseconds:
		return 1e6, true
	case UnitMicroseconds:
		return 1e3, true
	case UnitMilliseconds:
		return 1, true
	case UnitSeconds:
		return 1e-3, true
	default:
		return 0, false
	}
}

// -----------------------------------------------------------------------------
// Frames and call tree
// -----------------------------------------------------------------------------

// FrameInfo identifies a function.
type FrameInfo struct {
	// Key is the stable identity. When empty it is derived from name, file
	// and line.
	Key  string
	Name string
	File string
	Line int
	Col  int
}

func (f FrameInfo) key() string {
	if f.Key != "" {
		return f.Key
	}
	return fmt.Sprintf("%s\x00%s:%d:%d", f.Name, f.File, f.Line, f.Col)
}

// Frame is a function with aggregate weights across the profile.
type Frame struct {
	FrameInfo
	selfWeight  float64
	totalWeight float64
}

// SelfWeight is the weight of samples whose leaf is this frame.
func (f *Frame) SelfWeight() float64 { return f.selfWeight }

// TotalWeight is the weight of samples containing this frame, counted once
// per sample even under recursion.
func (f *Frame) TotalWeight() float64 { return f.totalWeight }

// CallTreeNode is one call path in the grouped call tree.
type CallTreeNode struct {
	Frame    *Frame
	Parent   *CallTreeNode
	Children []*CallTreeNode

	selfWeight  float64
	totalWeight float64
}

// SelfWeight is the weight of samples ending at this node.
func (n *CallTreeNode) SelfWeight() float64 { return n.selfWeight }

// TotalWeight is the weight of samples passing through this node.
func (n *CallTreeNode) TotalWeight() float64 { return n.totalWeight }

// IsRoot reports whether n is the synthetic tree root.
func (n *CallTreeNode) IsRoot() bool { return n.Parent == nil }

// Sample is one weighted root-first stack.
type Sample struct {
	Stack  []*Frame
	Weight float64
}

// -----------------------------------------------------------------------------
// Profile
// -----------------------------------------------------------------------------

// Profile is an immutable sampled profile.
//
// Thread Safety: Safe for concurrent reads.
type Profile struct {
	name        string
	unit        WeightUnit
	totalWeight float64
	nonIdle     float64
	frames      []*Frame
	samples     []Sample
	root        *CallTreeNode
	depth       int
}

// Name returns the profile name.
func (p *Profile) Name() string { return p.name }

// WeightUnit returns the unit of weights.
func (p *Profile) WeightUnit() WeightUnit { return p.unit }

// TotalWeight returns the sum of all sample weights.
func (p *Profile) TotalWeight() float64 { return p.totalWeight }

// TotalNonIdleWeight returns the weight of samples with a non-empty stack.
func (p *Profile) TotalNonIdleWeight() float64 { return p.nonIdle }

// Frames returns frames in first-seen order. The slice must not be modified.
func (p *Profile) Frames() []*Frame { return p.frames }

// ForEachFrame calls fn for every frame in first-seen order.
func (p *Profile) ForEachFrame(fn func(*Frame)) {
	for _, f := range p.frames {
		fn(f)
	}
}

// Samples returns the samples in append order. The slice must not be modified.
func (p *Profile) Samples() []Sample { return p.samples }

// CallTree returns the synthetic root of the grouped call tree. Children at
// every level are ordered by total weight, heaviest first.
func (p *Profile) CallTree() *CallTreeNode { return p.root }

// MaxDepth returns the length of the deepest stack.
func (p *Profile) MaxDepth() int { return p.depth }

// FindFrame returns the frame named name with the largest total weight.
func (p *Profile) FindFrame(name string) (*Frame, error) {
	var best *Frame
	for _, f := range p.frames {
		if f.Name == name && (best == nil || f.totalWeight > best.totalWeight) {
			best = f
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %q", ErrFrameNotFound, name)
	}
	return best, nil
}

// Group holds the profiles of one trace, one of which is shown.
type Group struct {
	Name        string
	Profiles    []*Profile
	IndexToView int
}

// Active returns the profile at IndexToView.
func (g *Group) Active() (*Profile, error) {
	if g == nil || len(g.Profiles) == 0 {
		return nil, fmt.Errorf("%w: group has no profiles", ErrEmptyProfile)
	}
	if g.IndexToView < 0 || g.IndexToView >= len(g.Profiles) || g.Profiles[g.IndexToView] == nil {
		return nil, fmt.Errorf("%w: no profile at index %d", ErrEmptyProfile, g.IndexToView)
	}
	return g.Profiles[g.IndexToView], nil
}

// -----------------------------------------------------------------------------
// Builder
// -----------------------------------------------------------------------------

// Builder accumulates samples into a Profile. It is not safe for
// concurrent use.
type Builder struct {
	name    string
	unit    WeightUnit
	frames  map[string]*Frame
	order   []*Frame
	samples []Sample
}

// NewBuilder starts a profile.
func NewBuilder(name string, unit WeightUnit) *Builder {
	return &Builder{
		name:   name,
		unit:   unit,
		frames: make(map[string]*Frame),
	}
}

func (b *Builder) frame(info FrameInfo) *Frame {
	k := info.key()
	if f, ok := b.frames[k]; ok {
		return f
	}
	info.Key = k
	f := &Frame{FrameInfo: info}
	b.frames[k] = f
	b.order = append(b.order, f)
	return f
}

// AppendSample records a root-first stack with a weight. Non-positive
// weights are ignored.
func (b *Builder) AppendSample(stack []FrameInfo, weight float64) {
	if weight <= 0 {
		return
	}
	frames := make([]*Frame, len(stack))
	for i, info := range stack {
		frames[i] = b.frame(info)
	}
	b.samples = append(b.samples, Sample{Stack: frames, Weight: weight})
}

// appendFrames records a stack of frames that may belong to another
// profile; frames are re-interned by key.
func (b *Builder) appendFrames(stack []*Frame, weight float64) {
	infos := make([]FrameInfo, len(stack))
	for i, f := range stack {
		infos[i] = f.FrameInfo
	}
	b.AppendSample(infos, weight)
}

// Build computes weights and the grouped call tree.
func (b *Builder) Build() *Profile {
	p := &Profile{
		name:    b.name,
		unit:    b.unit,
		frames:  b.order,
		samples: b.samples,
		root:    &CallTreeNode{},
	}

	// Weights are recomputed from scratch so Build may be called twice.
	for _, f := range b.order {
		f.selfWeight, f.totalWeight = 0, 0
	}

	for _, s := range b.samples {
		p.totalWeight += s.Weight
		p.root.totalWeight += s.Weight
		if len(s.Stack) == 0 {
			p.root.selfWeight += s.Weight
			continue
		}
		p.nonIdle += s.Weight
		if len(s.Stack) > p.depth {
			p.depth = len(s.Stack)
		}

		seen := make(map[*Frame]bool, len(s.Stack))
		node := p.root
		for _, f := range s.Stack {
			if !seen[f] {
				seen[f] = true
				f.totalWeight += s.Weight
			}
			node = node.child(f)
			node.totalWeight += s.Weight
		}
		node.selfWeight += s.Weight
		s.Stack[len(s.Stack)-1].selfWeight += s.Weight
	}

	sortChildren(p.root)
	return p
}

func (n *CallTreeNode) child(f *Frame) *CallTreeNode {
	for _, c := range n.Children {
		if c.Frame == f {
			return c
		}
	}
	c := &CallTreeNode{Frame: f, Parent: n}
	n.Children = append(n.Children, c)
	return c
}

func sortChildren(n *CallTreeNode) {
	sort.SliceStable(n.Children, func(i, j int) bool {
		return n.Children[i].totalWeight > n.Children[j].totalWeight
	})
	for _, c := range n.Children {
		sortChildren(c)
	}
}
