// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package progress renders a multi-stage terminal status line for a
simulate run: one spinner per pipeline stage (parsing/simulating, then
report rendering), each showing its own free-text status.
*/
package progress

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

var spinChars = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// StageUpdateFunc matches StageTracker.SetStatus, for callers that want to
// pass the update function around without the tracker itself.
type StageUpdateFunc func(string, string) error

type stageState struct {
	name        string
	status      string
	statusIsNew bool
	spinIndex   int
}

// StageTracker draws one line per registered stage, each with its own
// spinner glyph and free-text status, redrawn on a fixed tick while
// running (spec §7 progress reporting).
type StageTracker struct {
	stages  []stageState
	ticker  *time.Ticker
	done    chan bool
	running bool
}

// NewStageTracker creates an empty tracker; call AddStage for each pipeline
// stage before Start.
func NewStageTracker() *StageTracker {
	return &StageTracker{done: make(chan bool)}
}

// AddStage registers a named stage. Names must be unique.
func (t *StageTracker) AddStage(name string) error {
	for _, s := range t.stages {
		if s.name == name {
			return fmt.Errorf("stage %q already exists", name)
		}
	}
	t.stages = append(t.stages, stageState{name: name, status: "?"})
	return nil
}

// Start draws the initial frame and begins the redraw ticker.
func (t *StageTracker) Start() {
	t.draw(true)
	t.ticker = time.NewTicker(250 * time.Millisecond)
	t.running = true
	go t.onTick()
}

// Finish stops the ticker and draws a final frame.
func (t *StageTracker) Finish() {
	if t.running {
		t.ticker.Stop()
		t.done <- true
		t.draw(false)
		t.running = false
	}
}

// SetStatus updates a stage's free-text status, redrawn on the next tick.
func (t *StageTracker) SetStatus(name, status string) error {
	for i, s := range t.stages {
		if s.name == name {
			if status != s.status {
				t.stages[i].status = status
				t.stages[i].statusIsNew = true
			}
			return nil
		}
	}
	return fmt.Errorf("no such stage %q", name)
}

func (t *StageTracker) onTick() {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			t.draw(true)
		}
	}
}

func (t *StageTracker) draw(goUp bool) {
	for i, s := range t.stages {
		if !term.IsTerminal(int(os.Stderr.Fd())) && !s.statusIsNew {
			continue
		}
		fmt.Fprintf(os.Stderr, "%-20s  %s  %-40s\n", s.name, spinChars[s.spinIndex], s.status)
		t.stages[i].statusIsNew = false
		t.stages[i].spinIndex++
		if t.stages[i].spinIndex >= len(spinChars) {
			t.stages[i].spinIndex = 0
		}
	}
	if goUp && term.IsTerminal(int(os.Stderr.Fd())) {
		for range t.stages {
			fmt.Fprintf(os.Stderr, "\x1b[1A")
		}
	}
}
