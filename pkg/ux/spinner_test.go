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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinner_MachineMode(t *testing.T) {
	p, _, errOut := newTestPrinter(ModeMachine)
	s := p.Spinner("running comparison")
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
	assert.Equal(t, "PROGRESS: running comparison\n", errOut.String())
}

func TestSpinner_PlainMode(t *testing.T) {
	p, _, errOut := newTestPrinter(ModePlain)
	s := p.Spinner("rendering")
	s.Start()
	s.Stop()
	assert.Equal(t, "rendering...\n", errOut.String())
}

func TestSpinner_StyledAnimates(t *testing.T) {
	p, _, errOut := newTestPrinter(ModeStyled)
	s := p.Spinner("working")
	s.interval = time.Millisecond
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.UpdateMessage("still working")
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	out := errOut.String()
	assert.Contains(t, out, "working")
	assert.True(t, strings.HasSuffix(out, "\r\033[K"), "line should be cleared on stop")
}

func TestPrinter_WithSpinner(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p, out, _ := newTestPrinter(ModeMachine)
		require.NoError(t, p.WithSpinner("compare", func() error { return nil }))
		assert.Empty(t, out.String())
	})

	t.Run("error", func(t *testing.T) {
		p, _, errOut := newTestPrinter(ModeMachine)
		boom := errors.New("boom")
		err := p.WithSpinner("compare", func() error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, errOut.String(), "ERROR: compare: boom")
	})
}
