// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianPerf/services/perf/flamechart"
	"github.com/AleutianAI/AleutianPerf/services/perf/profile"
	"github.com/spf13/cobra"
)

// renderOptions are the flags shared by render and sandwich.
type renderOptions struct {
	sampleIndex int
	output      string
	width       int
	height      int
	frameHeight int
	font        string
	startMs     float64
	endMs       float64
	mode        string
	theme       string
	startDepth  int
}

func addRenderFlags(cmd *cobra.Command, opts *renderOptions, defaultOutput string) {
	f := cmd.Flags()
	f.IntVar(&opts.sampleIndex, "sample-index", -1, "Sample type to render (default: the profile's default sample type)")
	f.StringVarP(&opts.output, "output", "o", defaultOutput, "PNG output path, - for stdout")
	f.IntVar(&opts.width, "width", flamechart.DefaultWidth, "Canvas width in pixels")
	f.IntVar(&opts.height, "height", 0, "Canvas height in pixels (0 derives it from the profile)")
	f.IntVar(&opts.frameHeight, "frame-height", flamechart.DefaultFrameHeight, "Height of one stack layer")
	f.StringVar(&opts.font, "font", flamechart.DefaultFont, "Label font, e.g. \"10px Arial\" or \"bold 12px sans-serif\"")
	f.Float64Var(&opts.startMs, "start-ms", 0, "Start of the visible window in milliseconds (time profiles only)")
	f.Float64Var(&opts.endMs, "end-ms", 0, "End of the visible window in milliseconds (time profiles only)")
	f.StringVar(&opts.mode, "mode", flamechart.ModeLight.String(), "Palette: light or dark")
	f.StringVar(&opts.theme, "theme", flamechart.SystemTheme,
		"Frame colors: system, "+strings.Join(flamechart.FlamegraphThemeNames(), ", "))
	f.IntVar(&opts.startDepth, "start-depth", 0, "Hide layers above this depth")
}

// renderConfig builds a RenderConfig from the flags the user set.
func (a *app) renderConfig(cmd *cobra.Command, opts *renderOptions) (flamechart.RenderConfig, error) {
	mode, err := flamechart.ParseMode(opts.mode)
	if err != nil {
		return flamechart.RenderConfig{}, err
	}
	var startMs, endMs *float64
	if cmd.Flags().Changed("start-ms") {
		startMs = &opts.startMs
	}
	if cmd.Flags().Changed("end-ms") {
		endMs = &opts.endMs
	}
	cfg := flamechart.NewRenderConfig(
		flamechart.WithSize(opts.width, opts.height),
		flamechart.WithFrameHeight(opts.frameHeight),
		flamechart.WithFont(opts.font),
		flamechart.WithTimeRange(startMs, endMs),
		flamechart.WithMode(mode),
		flamechart.WithFlamegraphTheme(opts.theme),
		flamechart.WithStartDepth(opts.startDepth),
		flamechart.WithRenderLogger(a.logger.Slog()),
	)
	return cfg, cfg.Validate()
}

// loadGroup parses a pprof file and selects the sample type to view.
func loadGroup(path string, sampleIndex int) (*profile.Group, error) {
	group, err := profile.LoadPprof(path)
	if err != nil {
		return nil, err
	}
	if sampleIndex >= 0 {
		if sampleIndex >= len(group.Profiles) {
			return nil, fmt.Errorf("%w: sample index %d, profile has %d sample types",
				profile.ErrInvalidQuery, sampleIndex, len(group.Profiles))
		}
		group.IndexToView = sampleIndex
	}
	return group, nil
}

func newRenderCmd(a *app) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <profile.pprof>",
		Short: "Render a left-heavy flamechart of a pprof profile as PNG",
		Example: `  perfcheck render cpu.pprof -o cpu.png
  perfcheck render cpu.pprof --mode dark --theme fire --start-ms 100 --end-ms 250`,
		Args: cobra.ExactArgs(1),
	}
	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		cfg, err := a.renderConfig(cmd, opts)
		if err != nil {
			return err
		}
		group, err := loadGroup(args[0], opts.sampleIndex)
		if err != nil {
			return err
		}
		png, err := flamechart.RenderLeftHeavyFlamechart(cmd.Context(), group, cfg)
		if err != nil {
			return err
		}
		if err := a.writeOutput(opts.output, png); err != nil {
			return err
		}
		if opts.output != "-" {
			a.printer.Success(fmt.Sprintf("wrote %s", opts.output))
		}
		return nil
	})
	addRenderFlags(cmd, opts, "flamechart.png")
	return cmd
}

type sandwichOptions struct {
	renderOptions
	frame        string
	sidebarWidth int
	callerHeight int
	calleeHeight int
}

func newSandwichCmd(a *app) *cobra.Command {
	opts := &sandwichOptions{}
	cmd := &cobra.Command{
		Use:   "sandwich <profile.pprof>",
		Short: "Render the callers and callees of one function as PNG",
		Long: `sandwich draws the callers of a function above a time axis scoped to its
total weight and its callees below. The heaviest frame with the given name
is selected.`,
		Example: `  perfcheck sandwich cpu.pprof --frame encoding/json.Marshal -o marshal.png`,
		Args:    cobra.ExactArgs(1),
	}
	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		base, err := a.renderConfig(cmd, &opts.renderOptions)
		if err != nil {
			return err
		}
		cfg := flamechart.DefaultSandwichConfig()
		cfg.RenderConfig = base
		cfg.SidebarWidth = opts.sidebarWidth
		cfg.CallerHeight = opts.callerHeight
		cfg.CalleeHeight = opts.calleeHeight
		if err := cfg.Validate(); err != nil {
			return err
		}

		group, err := loadGroup(args[0], opts.sampleIndex)
		if err != nil {
			return err
		}
		png, err := flamechart.RenderSandwichFlamechart(cmd.Context(), group, opts.frame, cfg)
		if err != nil {
			return err
		}
		if err := a.writeOutput(opts.output, png); err != nil {
			return err
		}
		if opts.output != "-" {
			a.printer.Success(fmt.Sprintf("wrote %s", opts.output))
		}
		return nil
	})
	addRenderFlags(cmd, &opts.renderOptions, "sandwich.png")
	f := cmd.Flags()
	f.StringVar(&opts.frame, "frame", "", "Function name to center on")
	f.IntVar(&opts.sidebarWidth, "sidebar-width", flamechart.DefaultSidebarWidth, "Width of the label sidebar")
	f.IntVar(&opts.callerHeight, "caller-height", 0, "Fixed height of the callers section")
	f.IntVar(&opts.calleeHeight, "callee-height", 0, "Fixed height of the callees section")
	_ = cmd.MarkFlagRequired("frame")
	return cmd
}

type topOptions struct {
	sampleIndex int
	sortBy      string
	offset      int
	limit       int
}

func newTopCmd(a *app) *cobra.Command {
	opts := &topOptions{}
	cmd := &cobra.Command{
		Use:     "top <profile.pprof>",
		Short:   "List the heaviest functions of a pprof profile",
		Example: `  perfcheck top cpu.pprof --sort self --limit 20`,
		Args:    cobra.ExactArgs(1),
	}
	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		sortBy, err := profile.ParseSortBy(opts.sortBy)
		if err != nil {
			return err
		}
		group, err := loadGroup(args[0], opts.sampleIndex)
		if err != nil {
			return err
		}
		p, err := group.Active()
		if err != nil {
			return err
		}

		q := profile.TopFunctionsQuery{SortBy: sortBy, Offset: opts.offset, Limit: opts.limit}
		stats, err := profile.TopFunctions(p, q)
		if err != nil {
			return err
		}
		return a.writeOutput("", []byte(profile.FormatTopFunctions(p, stats, q)+"\n"))
	})

	f := cmd.Flags()
	f.IntVar(&opts.sampleIndex, "sample-index", -1, "Sample type to rank (default: the profile's default sample type)")
	f.StringVar(&opts.sortBy, "sort", profile.SortByTotal.String(), "Rank by total or self weight")
	f.IntVar(&opts.offset, "offset", 0, "Skip this many functions")
	f.IntVarP(&opts.limit, "limit", "n", profile.DefaultTopLimit, "Number of functions to list")
	return cmd
}
