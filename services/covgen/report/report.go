// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report defines the final record of a coverage improvement run.
//
// A RunReport captures everything a reviewer needs after the fact: what was
// measured before and after, which tests were synthesized, which repairs were
// attempted (with diffs), and how the repair loop terminated. Reports are
// serialized as JSON for the run journal and for file output.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/covgen/services/covgen/repair"
	"github.com/AleutianAI/covgen/services/covgen/synth"
)

// TrendPoint is one sample of the coverage trajectory across a run.
type TrendPoint struct {
	// Label names the phase that produced the sample ("baseline",
	// "repair-1", "final").
	Label string `json:"label"`

	// Percent is line coverage at that point.
	Percent float64 `json:"percent"`
}

// RunReport is the final record of one coverage improvement run.
type RunReport struct {
	// Session is the short run identifier.
	Session string `json:"session"`

	// Language is the target language name.
	Language string `json:"language"`

	// Model is the oracle model the run used.
	Model string `json:"model"`

	// StartedAt and FinishedAt bound the run in UTC.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// BeforePercent is baseline line coverage, AfterPercent the final
	// measurement (or the baseline again when no later measurement ran).
	BeforePercent float64 `json:"before_percent"`
	AfterPercent  float64 `json:"after_percent"`

	// RepairState is the terminal state of the repair loop.
	RepairState repair.State `json:"repair_state"`

	// Trend is the ordered coverage trajectory: baseline, one point per
	// productive repair round, final.
	Trend []TrendPoint `json:"trend"`

	// Tests are the synthesized test files that were accepted.
	Tests []synth.GeneratedTest `json:"synthesized_tests"`

	// Attempts are the individual fix attempts, diffs included.
	Attempts []repair.FixAttempt `json:"fix_attempts"`
}

// Improvement returns the coverage delta in percentage points.
func (r *RunReport) Improvement() float64 {
	return r.AfterPercent - r.BeforePercent
}

// Duration returns the wall-clock length of the run.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FixesApplied returns the number of successful fix attempts.
func (r *RunReport) FixesApplied() int {
	n := 0
	for _, a := range r.Attempts {
		if a.Success {
			n++
		}
	}
	return n
}

// JSON serializes the report with indentation for journaling and file output.
func (r *RunReport) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode run report: %w", err)
	}
	return data, nil
}

// Load parses a report previously serialized with JSON.
func Load(data []byte) (*RunReport, error) {
	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse run report: %w", err)
	}
	return &r, nil
}

// Summary renders a short human-readable block for terminal output.
//
// Description:
//
//	Produces a fixed-width summary of the run: session, model, duration,
//	coverage movement, test and fix counts, and the repair terminal state.
//	Intended for CLI display; the JSON form remains the record of truth.
//
// Outputs:
//
//	string - Multi-line summary, no trailing newline.
func (r *RunReport) Summary() string {
	failed := len(r.Attempts) - r.FixesApplied()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s (%s)\n", r.Session, r.Language)
	fmt.Fprintf(&sb, "  model:    %s\n", r.Model)
	fmt.Fprintf(&sb, "  duration: %s\n", r.Duration().Round(time.Second))
	fmt.Fprintf(&sb, "  coverage: %.1f%% -> %.1f%% (%+.1f)\n",
		r.BeforePercent, r.AfterPercent, r.Improvement())
	fmt.Fprintf(&sb, "  tests:    %d synthesized\n", len(r.Tests))
	fmt.Fprintf(&sb, "  fixes:    %d applied, %d failed\n", r.FixesApplied(), failed)
	fmt.Fprintf(&sb, "  state:    %s", r.RepairState)
	return sb.String()
}
