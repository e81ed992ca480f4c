// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestPrinter(mode Mode) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &Printer{Out: &out, Err: &errOut, Mode: mode}, &out, &errOut
}

func TestIcon_Render(t *testing.T) {
	for _, i := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconArrow} {
		assert.Contains(t, i.Render(), string(i))
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "styled", ModeStyled.String())
	assert.Equal(t, "plain", ModePlain.String())
	assert.Equal(t, "machine", ModeMachine.String())
	assert.Equal(t, "unknown", Mode(9).String())
}

func TestDetectMode(t *testing.T) {
	t.Setenv("CI", "")
	assert.Equal(t, ModePlain, DetectMode(&bytes.Buffer{}))
	assert.False(t, IsTerminal(&bytes.Buffer{}))

	t.Setenv("CI", "true")
	assert.Equal(t, ModeMachine, DetectMode(&bytes.Buffer{}))
}

func TestPrinter_MachineMode(t *testing.T) {
	p, out, errOut := newTestPrinter(ModeMachine)

	p.Title("ignored")
	p.Success("done")
	p.Info("scenario login")
	p.Warning("slow baseline")
	p.Error("boom")

	assert.Equal(t, "OK: done\nscenario login\n", out.String())
	assert.Equal(t, "WARN: slow baseline\nERROR: boom\n", errOut.String())
}

func TestPrinter_PlainMode(t *testing.T) {
	p, out, errOut := newTestPrinter(ModePlain)

	p.Title("Perf")
	p.Success("done")
	p.Error("boom")

	assert.Equal(t, "Perf\n✓ done\n", out.String())
	assert.Equal(t, "✗ boom\n", errOut.String())
}

func TestPrinter_StyledKeepsText(t *testing.T) {
	p, out, _ := newTestPrinter(ModeStyled)
	p.Box("Result", "all good")
	assert.Contains(t, out.String(), "Result")
	assert.Contains(t, out.String(), "all good")
}

func TestPrinter_Box(t *testing.T) {
	p, out, _ := newTestPrinter(ModeMachine)
	p.Box("Regressions", "a\nb")
	assert.Equal(t, "Regressions: a; b\n", out.String())
}

func TestPrinter_Verdict(t *testing.T) {
	p, _, _ := newTestPrinter(ModePlain)
	assert.Equal(t, "▲ regression", p.Verdict("regression"))
	assert.Equal(t, "▼ improvement", p.Verdict("improvement"))
	assert.Equal(t, "neutral", p.Verdict("neutral"))
}

func TestPrinter_RunSummary(t *testing.T) {
	t.Run("machine pass", func(t *testing.T) {
		p, out, _ := newTestPrinter(ModeMachine)
		p.RunSummary(0, 2, 5, true)
		assert.Equal(t, "SUMMARY: status=pass regressed=0 improved=2 neutral=5\n", out.String())
	})

	t.Run("plain fail", func(t *testing.T) {
		p, out, errOut := newTestPrinter(ModePlain)
		p.RunSummary(3, 0, 1, false)
		assert.Contains(t, out.String(), "3 regressed  0 improved  1 neutral")
		assert.Equal(t, "✗ 3 significant regression(s)\n", errOut.String())
	})
}

func TestPrinter_ProgressBar(t *testing.T) {
	p, _, _ := newTestPrinter(ModePlain)
	bar := p.ProgressBar(5, 10, 10)
	assert.Equal(t, strings.Repeat("█", 5)+strings.Repeat("░", 5)+"  50%", bar)

	assert.Equal(t, strings.Repeat("█", 4)+" 100%", p.ProgressBar(12, 10, 4))

	m, _, _ := newTestPrinter(ModeMachine)
	assert.Equal(t, "3/10", m.ProgressBar(3, 10, 20))
	assert.Equal(t, "0/0", p.ProgressBar(0, 0, 20))
}
