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
	"fmt"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a message on the Printer's Err stream. Only styled mode
// animates; other modes print the message once when started.
type Spinner struct {
	p        *Printer
	message  string
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	running  bool
	frame    int
}

// Spinner returns a stopped spinner for message.
func (p *Printer) Spinner(message string) *Spinner {
	return &Spinner{
		p:        p,
		message:  message,
		interval: 80 * time.Millisecond,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the animation. Calling Start twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	message := s.message
	s.mu.Unlock()

	switch s.p.Mode {
	case ModeMachine:
		fmt.Fprintf(s.p.Err, "PROGRESS: %s\n", message)
		close(s.done)
		return
	case ModePlain:
		fmt.Fprintf(s.p.Err, "%s...\n", message)
		close(s.done)
		return
	}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				fmt.Fprint(s.p.Err, "\r\033[K")
				close(s.done)
				return
			case <-ticker.C:
				s.mu.Lock()
				frame := Styles.Highlight.Render(spinnerFrames[s.frame])
				s.frame = (s.frame + 1) % len(spinnerFrames)
				msg := s.message
				s.mu.Unlock()
				fmt.Fprintf(s.p.Err, "\r%s %s", frame, msg)
			}
		}
	}()
}

// Stop halts the animation and clears the line. Safe to call more than once.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	if s.p.Mode == ModeStyled {
		close(s.stop)
	}
	<-s.done
}

// UpdateMessage changes the message while running.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs fn behind a spinner and reports its outcome.
func (p *Printer) WithSpinner(message string, fn func() error) error {
	spin := p.Spinner(message)
	spin.Start()
	err := fn()
	spin.Stop()

	if err != nil {
		p.Error(fmt.Sprintf("%s: %v", message, err))
		return err
	}
	if p.Mode == ModeStyled {
		p.Success(message)
	}
	return nil
}
