// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repair

import (
	"github.com/AleutianAI/covgen/services/covgen/coverage"
)

// =============================================================================
// STATES
// =============================================================================

// State is the repair loop's run state. A run starts RUNNING and ends in
// one of the two terminal states.
type State string

const (
	// StateRunning means the loop has more work to do.
	StateRunning State = "RUNNING"

	// StateConverged means the suite produced no error output, or no
	// actionable error could be extracted from it.
	StateConverged State = "CONVERGED"

	// StateExhausted means the loop stopped without converging: either
	// a round landed zero fixes or the iteration budget ran out.
	StateExhausted State = "EXHAUSTED"
)

// =============================================================================
// DATA MODEL
// =============================================================================

// DiagnosedError is one root-cause error extracted from suite output.
type DiagnosedError struct {
	// FilePath locates the error. Empty for global errors such as
	// missing dependencies.
	FilePath string `json:"file_path"`

	// LineStart is the 1-based first line of the reported range.
	LineStart int `json:"line_start"`

	// LineEnd is the 1-based last line, inclusive.
	LineEnd int `json:"line_end"`

	// Message is the error text.
	Message string `json:"message"`
}

// FixKind discriminates the oracle's fix proposals.
type FixKind string

const (
	// FixKindCode replaces the error window with corrected source.
	FixKindCode FixKind = "code"

	// FixKindCommand runs shell commands, e.g. dependency installs.
	FixKindCommand FixKind = "command"

	// FixKindUnfixable marks an error the oracle declined to fix.
	FixKindUnfixable FixKind = "unfixable"
)

// FixAttempt records one attempted repair of one diagnosed error.
type FixAttempt struct {
	// FilePath is the diagnosed file.
	FilePath string `json:"file_path"`

	// LineStart and LineEnd are the diagnosed range, not the widened
	// context window.
	LineStart int `json:"line_start"`
	LineEnd   int `json:"line_end"`

	// Kind is the fix the oracle proposed. Attempts that failed before
	// a proposal arrived carry FixKindUnfixable.
	Kind FixKind `json:"fix_type"`

	// OriginalCode is the context window before the fix.
	OriginalCode string `json:"original_code,omitempty"`

	// FixedCode is the replacement window for a code fix.
	FixedCode string `json:"fixed_code,omitempty"`

	// Language tags the fixed code.
	Language string `json:"language,omitempty"`

	// Commands are the shell commands of a command fix, in order.
	Commands []string `json:"commands,omitempty"`

	// Description is the oracle's summary of a command fix.
	Description string `json:"description,omitempty"`

	// Diff is a unified diff of the window replacement, rendered for
	// reports. Empty for command fixes.
	Diff string `json:"diff,omitempty"`

	// Success reports whether the fix was fully applied.
	Success bool `json:"success"`

	// ErrorMessage explains a failed attempt.
	ErrorMessage string `json:"error_message,omitempty"`
}

// IterationRecord is one productive repair round: at least one fix
// landed and coverage was re-measured afterwards.
type IterationRecord struct {
	// Iteration is the 1-based round number.
	Iteration int `json:"iteration"`

	// ErrorsFound is how many root-cause errors were diagnosed.
	ErrorsFound int `json:"errors_found"`

	// ErrorsFixed is how many attempts succeeded.
	ErrorsFixed int `json:"errors_fixed"`

	// Snapshot is the post-fix coverage measurement.
	Snapshot *coverage.Snapshot `json:"coverage"`
}

// Outcome is the result of one repair run.
type Outcome struct {
	// State is the terminal state the loop reached.
	State State `json:"state"`

	// Attempts are all fix attempts across all rounds, in order.
	Attempts []FixAttempt `json:"fix_attempts,omitempty"`

	// Iterations are the productive rounds, in order.
	Iterations []IterationRecord `json:"iterations,omitempty"`

	// Final is the run's final coverage: the last iteration's snapshot,
	// or the last pre-fix measurement when no round was productive.
	Final *coverage.Snapshot `json:"final_coverage,omitempty"`
}

// Fixed counts the successful attempts.
func (o *Outcome) Fixed() int {
	n := 0
	for _, a := range o.Attempts {
		if a.Success {
			n++
		}
	}
	return n
}
