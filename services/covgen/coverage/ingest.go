// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coverage

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/covgen/pkg/logging"
	"github.com/AleutianAI/covgen/services/covgen/lang"
)

// =============================================================================
// INGESTOR
// =============================================================================

// Artifacts are the raw inputs of one coverage measurement.
type Artifacts struct {
	// UncoveredJSON is the preferred structured artifact: a JSON array
	// of {file_path, code, uncovered_lines} records.
	UncoveredJSON []byte

	// CoverageJSON is the summary artifact whose coverage_LINE field
	// carries the line coverage percentage.
	CoverageJSON []byte

	// CoberturaXML is the lower-fidelity fallback report, consulted
	// only when UncoveredJSON is absent or unparseable.
	CoberturaXML []byte

	// TestOutput is the combined suite output from the measurement run.
	TestOutput string

	// ReadFile, when set, lets the XML fallback attach source text to
	// its records. Optional.
	ReadFile func(path string) (string, error)
}

// Ingestor normalizes raw artifacts into snapshots for one language.
//
// Description:
//
//	Ingest is a pure function of its artifact input: the same artifacts
//	always produce the same snapshot, and ingesting a snapshot's own
//	records again reproduces it. It never fails; every degradation path
//	lands on an empty zero-coverage snapshot.
//
// Thread Safety: Safe for concurrent use.
type Ingestor struct {
	lang *lang.Config
	log  *logging.Logger
}

// NewIngestor creates an ingestor for the language.
func NewIngestor(langCfg *lang.Config, log *logging.Logger) *Ingestor {
	if log == nil {
		log = logging.Default()
	}
	return &Ingestor{lang: langCfg, log: log}
}

// Ingest normalizes the artifacts into a snapshot.
//
// Inputs:
//
//	arts - Raw measurement artifacts. Zero values are fine.
//
// Outputs:
//
//	*Snapshot - The normalized snapshot. Never nil.
func (i *Ingestor) Ingest(arts Artifacts) *Snapshot {
	records, branches, xmlPct, usedXML := i.loadRecords(arts)
	records = i.filterRecords(records)

	pct, ok := i.percentage(arts.CoverageJSON)
	if !ok && usedXML {
		pct = xmlPct
	}

	return &Snapshot{
		Language:      i.lang.Name,
		Records:       records,
		Segments:      i.buildSegments(records, branches),
		Percentage:    pct,
		RawTestOutput: arts.TestOutput,
	}
}

// loadRecords applies the preference rule: the structured artifact wins
// when it parses, the Cobertura report is the fallback, and nothing
// usable yields an empty record list.
func (i *Ingestor) loadRecords(arts Artifacts) (records []FileRecord, branches map[string]map[int]bool, xmlPct float64, usedXML bool) {
	if len(arts.UncoveredJSON) > 0 {
		var recs []FileRecord
		if err := json.Unmarshal(arts.UncoveredJSON, &recs); err == nil {
			return recs, nil, 0, false
		}
		i.log.Warn("uncovered-lines artifact unparseable, trying fallback",
			slog.String("language", i.lang.Name))
	}

	if len(arts.CoberturaXML) > 0 {
		files, pct, err := parseCobertura(arts.CoberturaXML, i.lang)
		if err != nil {
			i.log.Warn("cobertura artifact unparseable",
				slog.String("language", i.lang.Name),
				slog.Any("error", err))
			return nil, nil, 0, false
		}
		branches = make(map[string]map[int]bool, len(files))
		records = make([]FileRecord, 0, len(files))
		for _, f := range files {
			code := ""
			if arts.ReadFile != nil {
				if text, rerr := arts.ReadFile(f.Path); rerr == nil {
					code = text
				}
			}
			records = append(records, FileRecord{FilePath: f.Path, Code: code, UncoveredLines: f.Uncovered})
			branches[f.Path] = f.BranchLines
		}
		return records, branches, pct, true
	}

	return nil, nil, 0, false
}

// filterRecords drops meaningless uncovered lines (blank, no-op,
// comment, doc delimiter) and the records left with none. Line numbers
// come out sorted and deduplicated.
func (i *Ingestor) filterRecords(records []FileRecord) []FileRecord {
	out := make([]FileRecord, 0, len(records))
	for _, rec := range records {
		lines := splitLines(rec.Code)

		nums := append([]int(nil), rec.UncoveredLines...)
		sort.Ints(nums)
		nums = dedupeInts(nums)

		var kept []int
		for _, n := range nums {
			if n < 1 {
				continue
			}
			if text, ok := lineText(lines, n); ok && i.lang.MeaninglessLine(text) {
				continue
			}
			kept = append(kept, n)
		}
		if len(kept) == 0 {
			continue
		}
		out = append(out, FileRecord{FilePath: rec.FilePath, Code: rec.Code, UncoveredLines: kept})
	}
	return out
}

// buildSegments merges each record's uncovered lines into contiguous
// runs with snippet text and a best-effort enclosing function.
func (i *Ingestor) buildSegments(records []FileRecord, branches map[string]map[int]bool) []UncoveredSegment {
	var segs []UncoveredSegment
	for _, rec := range records {
		lines := splitLines(rec.Code)
		branchLines := branches[rec.FilePath]

		nums := rec.UncoveredLines
		for start := 0; start < len(nums); {
			end := start
			for end+1 < len(nums) && nums[end+1] == nums[end]+1 {
				end++
			}
			segs = append(segs, i.segment(rec.FilePath, lines, branchLines, nums[start], nums[end]))
			start = end + 1
		}
	}
	return segs
}

func (i *Ingestor) segment(path string, lines []string, branchLines map[int]bool, first, last int) UncoveredSegment {
	var snippet []string
	kind := KindLine
	for n := first; n <= last; n++ {
		if text, ok := lineText(lines, n); ok {
			snippet = append(snippet, text)
		}
		if branchLines[n] {
			kind = KindBranch
		}
	}
	return UncoveredSegment{
		FilePath:          path,
		LineStart:         first,
		LineEnd:           last,
		CodeSnippet:       strings.Join(snippet, "\n"),
		Kind:              kind,
		EnclosingFunction: enclosingFunction(i.lang.Name, lines, first-1),
	}
}

// percentage reads the coverage_LINE field of the summary artifact.
func (i *Ingestor) percentage(data []byte) (float64, bool) {
	if len(data) == 0 {
		return 0, false
	}
	var summary map[string]any
	if err := json.Unmarshal(data, &summary); err != nil {
		i.log.Warn("coverage summary unparseable",
			slog.String("language", i.lang.Name))
		return 0, false
	}
	switch v := summary["coverage_LINE"].(type) {
	case float64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// =============================================================================
// LINE HELPERS
// =============================================================================

// splitLines splits source text into lines, nil for empty text.
func splitLines(code string) []string {
	if code == "" {
		return nil
	}
	return strings.Split(code, "\n")
}

// lineText returns the 1-based line's text. ok is false when the text is
// unavailable, in which case the caller must keep the line rather than
// judge it.
func lineText(lines []string, n int) (string, bool) {
	if n < 1 || n > len(lines) {
		return "", false
	}
	return lines[n-1], true
}

// enclosingFunction scans upward from idx for the nearest definition
// line. Best-effort; unknown languages yield "".
func enclosingFunction(language string, lines []string, idx int) string {
	if idx >= len(lines) {
		idx = len(lines) - 1
	}
	for i := idx; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		switch language {
		case "python":
			decl := strings.TrimPrefix(trimmed, "async ")
			if rest, ok := strings.CutPrefix(decl, "def "); ok {
				if name, _, found := strings.Cut(rest, "("); found {
					return strings.TrimSpace(name)
				}
			}
		case "go":
			if rest, ok := strings.CutPrefix(trimmed, "func "); ok {
				if strings.HasPrefix(rest, "(") {
					// Method: skip past the receiver.
					if _, after, found := strings.Cut(rest, ") "); found {
						rest = after
					}
				}
				if name, _, found := strings.Cut(rest, "("); found {
					return strings.TrimSpace(name)
				}
			}
		default:
			return ""
		}
	}
	return ""
}
