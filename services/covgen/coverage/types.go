// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coverage normalizes raw coverage artifacts into uniform
// per-file uncovered-line records and snapshots. Ingestion never fails:
// malformed or missing artifacts degrade to an empty zero-coverage
// snapshot so the pipeline can keep going.
package coverage

import (
	"strconv"
	"strings"
)

// =============================================================================
// COVERAGE KINDS
// =============================================================================

// Kind distinguishes what a coverage gap measures.
type Kind string

const (
	// KindLine marks an unexecuted statement line.
	KindLine Kind = "LINE"

	// KindBranch marks a line whose branch outcomes were not all taken.
	KindBranch Kind = "BRANCH"
)

// =============================================================================
// DATA MODEL
// =============================================================================

// FileRecord is one file's uncovered-line record, the shape the preferred
// structured artifact carries per file.
type FileRecord struct {
	// FilePath is the source file path, relative to the project root.
	FilePath string `json:"file_path"`

	// Code is the file's full source text.
	Code string `json:"code"`

	// UncoveredLines are 1-based line numbers not executed.
	UncoveredLines []int `json:"uncovered_lines"`
}

// UncoveredSegment is a contiguous run of meaningful uncovered lines.
// Immutable once produced.
type UncoveredSegment struct {
	// FilePath is the source file path.
	FilePath string `json:"file_path"`

	// LineStart is the 1-based first uncovered line.
	LineStart int `json:"line_start"`

	// LineEnd is the 1-based last uncovered line, inclusive.
	LineEnd int `json:"line_end"`

	// CodeSnippet is the uncovered lines' text, newline-joined. Empty
	// when the artifact carried no source text.
	CodeSnippet string `json:"code_snippet"`

	// Kind is what the gap measures.
	Kind Kind `json:"coverage_kind"`

	// EnclosingFunction names the function containing the segment,
	// best-effort and possibly empty.
	EnclosingFunction string `json:"enclosing_function,omitempty"`
}

// Snapshot is one coverage measurement. Snapshots are superseded, never
// mutated; the pipeline keeps one per iteration for trend reporting.
type Snapshot struct {
	// Language is the measured language.
	Language string `json:"language"`

	// Records are the per-file uncovered-line records after filtering,
	// in artifact order.
	Records []FileRecord `json:"records"`

	// Segments are the file-grouped uncovered segments derived from
	// Records.
	Segments []UncoveredSegment `json:"segments"`

	// Percentage is the line coverage in [0,100], carried verbatim from
	// the coverage summary artifact.
	Percentage float64 `json:"coverage_percentage"`

	// RawTestOutput is the combined suite output from the measurement
	// run.
	RawTestOutput string `json:"raw_test_output,omitempty"`
}

// Empty reports whether the snapshot carries no uncovered records.
func (s *Snapshot) Empty() bool {
	return len(s.Records) == 0
}

// UncoveredLineCount sums uncovered lines across all records.
func (s *Snapshot) UncoveredLineCount() int {
	n := 0
	for _, rec := range s.Records {
		n += len(rec.UncoveredLines)
	}
	return n
}

// Files returns the distinct file paths with uncovered lines, in record
// order.
func (s *Snapshot) Files() []string {
	out := make([]string, 0, len(s.Records))
	seen := make(map[string]bool, len(s.Records))
	for _, rec := range s.Records {
		if !seen[rec.FilePath] {
			seen[rec.FilePath] = true
			out = append(out, rec.FilePath)
		}
	}
	return out
}

// DescribeLines renders a record's uncovered lines for humans and
// prompts, e.g. "2, 5-7, 12".
func DescribeLines(lines []int) string {
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	start, prev := lines[0], lines[0]
	flush := func() {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		if start == prev {
			b.WriteString(strconv.Itoa(start))
		} else {
			b.WriteString(strconv.Itoa(start) + "-" + strconv.Itoa(prev))
		}
	}
	for _, n := range lines[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		flush()
		start, prev = n, n
	}
	flush()
	return b.String()
}

// CountSegments reports how many contiguous runs a sorted line list
// forms, e.g. [2, 5, 6, 7, 12] has three.
func CountSegments(lines []int) int {
	n := 0
	for i, line := range lines {
		if i == 0 || line != lines[i-1]+1 {
			n++
		}
	}
	return n
}
