// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package progress

import (
	"testing"
)

func TestNewStageTracker(t *testing.T) {
	tr := NewStageTracker()
	if tr == nil {
		t.Fatal("failed to create a tracker")
	}
}

func TestStageTracker(t *testing.T) {
	tr := NewStageTracker()
	if tr == nil {
		t.Fatal("failed to create a tracker")
	}
	if tr.AddStage("parse") != nil {
		t.Fatal("failed to add stage")
	}
	if tr.AddStage("report") != nil {
		t.Fatal("failed to add stage")
	}
	if tr.AddStage("parse") == nil {
		t.Fatal("added stage with same name")
	}
	tr.Start()

	if tr.SetStatus("parse", "FOO") != nil {
		t.Fatal("failed to update stage status")
	}
	if tr.SetStatus("report", "BAR") != nil {
		t.Fatal("failed to update stage status")
	}
	if tr.SetStatus("missing", "WOOPS") == nil {
		t.Fatal("updated status of non-existent stage")
	}
	tr.Finish()
}
