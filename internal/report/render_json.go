// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package report

import "encoding/json"

// RenderJSON marshals a Report to the stable schema of spec §6.
func RenderJSON(r Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ErrorReport is the shape emitted on stdout when a configuration error
// prevents a run from starting (spec §7 "when --json is requested").
type ErrorReport struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// RenderError marshals an ErrorReport.
func RenderError(summary string, err error) ([]byte, error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return json.MarshalIndent(ErrorReport{Error: summary, Details: details}, "", "  ")
}
