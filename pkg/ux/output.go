// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders human-facing terminal output for perfcheck: status
// lines, verdict badges and run summaries.
//
// Reports themselves come from the report package. This package only
// decorates what the CLI prints around them.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette. Deep-ocean teals for chrome, conventional colors for verdicts.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#2C4A54")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style

	Regression  lipgloss.Style
	Improvement lipgloss.Style
	Neutral     lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),

	Regression:  lipgloss.NewStyle().Bold(true).Foreground(ColorError),
	Improvement: lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess),
	Neutral:     lipgloss.NewStyle().Foreground(ColorMuted),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconUp      Icon = "▲"
	IconDown    Icon = "▼"
)

// Render returns the icon with its style.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// =============================================================================
// Output modes
// =============================================================================

// Mode selects how much decoration a Printer adds.
type Mode int

const (
	// ModeStyled uses colors, icons and boxes.
	ModeStyled Mode = iota

	// ModePlain keeps icons but drops colors and boxes.
	ModePlain

	// ModeMachine prints "LEVEL: text" lines for log scrapers.
	ModeMachine
)

// String returns "styled", "plain", or "machine".
func (m Mode) String() string {
	switch m {
	case ModeStyled:
		return "styled"
	case ModePlain:
		return "plain"
	case ModeMachine:
		return "machine"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectMode picks ModeStyled for terminals, ModeMachine when CI is set,
// and ModePlain otherwise. NO_COLOR forces ModePlain on a terminal.
func DetectMode(w io.Writer) Mode {
	switch {
	case os.Getenv("CI") != "":
		return ModeMachine
	case !IsTerminal(w):
		return ModePlain
	case os.Getenv("NO_COLOR") != "":
		return ModePlain
	default:
		return ModeStyled
	}
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes decorated lines to Out (status) and Err (problems).
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	Out  io.Writer
	Err  io.Writer
	Mode Mode
}

// NewPrinter returns a Printer for out and errOut with a detected mode.
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut, Mode: DetectMode(out)}
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if p.Mode != ModeStyled {
		return text
	}
	return s.Render(text)
}

func (p *Printer) icon(i Icon) string {
	if p.Mode != ModeStyled {
		return string(i)
	}
	return i.Render()
}

// Title prints a heading. Machine mode prints nothing.
func (p *Printer) Title(text string) {
	if p.Mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.Out, p.style(Styles.Title, text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	if p.Mode == ModeMachine {
		fmt.Fprintf(p.Out, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", p.icon(IconSuccess), p.style(Styles.Success, text))
}

// Warning prints a warning line to Err.
func (p *Printer) Warning(text string) {
	if p.Mode == ModeMachine {
		fmt.Fprintf(p.Err, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.Err, "%s %s\n", p.icon(IconWarning), p.style(Styles.Warning, text))
}

// Error prints an error line to Err.
func (p *Printer) Error(text string) {
	if p.Mode == ModeMachine {
		fmt.Fprintf(p.Err, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.Err, "%s %s\n", p.icon(IconError), p.style(Styles.Error, text))
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.Mode == ModeMachine {
		fmt.Fprintln(p.Out, text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", p.style(Styles.Muted, "│"), text)
}

// Box prints content under a title, boxed in styled mode.
func (p *Printer) Box(title, content string) {
	switch p.Mode {
	case ModeMachine:
		fmt.Fprintf(p.Out, "%s: %s\n", title, strings.ReplaceAll(content, "\n", "; "))
	case ModePlain:
		fmt.Fprintf(p.Out, "%s\n%s\n", title, content)
	default:
		fmt.Fprintln(p.Out, Styles.Box.Width(60).Render(Styles.Title.Render(title)+"\n"+content))
	}
}

// Verdict renders a comparison verdict label ("regression", "improvement"
// or anything else as neutral).
func (p *Printer) Verdict(label string) string {
	switch label {
	case "regression":
		return p.icon(IconUp) + " " + p.style(Styles.Regression, label)
	case "improvement":
		return p.icon(IconDown) + " " + p.style(Styles.Improvement, label)
	default:
		return p.style(Styles.Neutral, label)
	}
}

// RunSummary prints the regressed/improved/neutral counts and the overall
// status of a comparison run.
func (p *Printer) RunSummary(regressed, improved, neutral int, passed bool) {
	if p.Mode == ModeMachine {
		status := "pass"
		if !passed {
			status = "fail"
		}
		fmt.Fprintf(p.Out, "SUMMARY: status=%s regressed=%d improved=%d neutral=%d\n",
			status, regressed, improved, neutral)
		return
	}

	fmt.Fprintf(p.Out, "\n%s %s  %s %s  %s %s\n",
		p.style(Styles.Error, fmt.Sprintf("%d", regressed)), p.style(Styles.Muted, "regressed"),
		p.style(Styles.Success, fmt.Sprintf("%d", improved)), p.style(Styles.Muted, "improved"),
		p.style(Styles.Bold, fmt.Sprintf("%d", neutral)), p.style(Styles.Muted, "neutral"),
	)
	if passed {
		p.Success("no significant performance regressions")
	} else {
		p.Error(fmt.Sprintf("%d significant regression(s)", regressed))
	}
}

// ProgressBar renders current/total as a bar of the given width.
func (p *Printer) ProgressBar(current, total, width int) string {
	if p.Mode == ModeMachine || total <= 0 {
		return fmt.Sprintf("%d/%d", current, total)
	}
	pct := float64(current) / float64(total)
	pct = max(0, min(1, pct))
	filled := int(pct * float64(width))

	bar := p.style(Styles.Success, strings.Repeat("█", filled)) +
		p.style(Styles.Muted, strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}
