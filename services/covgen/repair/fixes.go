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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/covgen/services/covgen/oracle"
)

// =============================================================================
// RESPONSE PARSING
// =============================================================================

type diagnosedErrorsResponse struct {
	Errors []struct {
		FilePath string `json:"file_path"`
		Range    []int  `json:"range"`
		Message  string `json:"message"`
	} `json:"errors"`
}

// parseDiagnosedErrors extracts the error list from an analysis
// response. Entries repeating an earlier (file, range) pair are dropped
// so each location is fixed once; the oracle's priority order is kept.
// A missing or short range defaults to [1,1] rather than discarding the
// batch.
func parseDiagnosedErrors(response string) []DiagnosedError {
	var out diagnosedErrorsResponse
	if err := json.Unmarshal([]byte(oracle.ExtractJSONPayload(response)), &out); err != nil {
		return nil
	}

	seen := make(map[string]bool, len(out.Errors))
	diagnosed := make([]DiagnosedError, 0, len(out.Errors))
	for _, e := range out.Errors {
		start, end := 1, 1
		switch {
		case len(e.Range) >= 2:
			start, end = e.Range[0], e.Range[1]
		case len(e.Range) == 1:
			start, end = e.Range[0], e.Range[0]
		}
		key := fmt.Sprintf("%s:%d-%d", e.FilePath, start, end)
		if seen[key] {
			continue
		}
		seen[key] = true
		diagnosed = append(diagnosed, DiagnosedError{
			FilePath:  e.FilePath,
			LineStart: start,
			LineEnd:   end,
			Message:   e.Message,
		})
	}
	return diagnosed
}

type fixResponse struct {
	FixType     string   `json:"fix_type"`
	FixedCode   string   `json:"fixed_code"`
	Language    string   `json:"language"`
	Commands    []string `json:"commands"`
	Description string   `json:"description"`
	Reason      string   `json:"reason"`
}

// parseFix decodes a discriminated fix response. ok is false when the
// payload is not valid JSON or names no fix type.
func parseFix(response string) (*fixResponse, bool) {
	var out fixResponse
	if err := json.Unmarshal([]byte(oracle.ExtractJSONPayload(response)), &out); err != nil {
		return nil, false
	}
	if strings.TrimSpace(out.FixType) == "" {
		return nil, false
	}
	return &out, true
}

// =============================================================================
// DIFF RENDERING
// =============================================================================

// renderWindowDiff renders a window replacement as a unified diff for
// reports. The whole window is rewritten, so the diff is one hunk
// removing the original lines and adding the fixed ones. Rendering
// failures degrade to an empty diff.
func renderWindowDiff(filePath string, startLine int, originalLines, fixedLines []string) string {
	var body strings.Builder
	for _, line := range originalLines {
		body.WriteString("-")
		body.WriteString(line)
		body.WriteString("\n")
	}
	for _, line := range fixedLines {
		body.WriteString("+")
		body.WriteString(line)
		body.WriteString("\n")
	}

	fd := &diff.FileDiff{
		OrigName: "a/" + filePath,
		NewName:  "b/" + filePath,
		Hunks: []*diff.Hunk{{
			OrigStartLine: int32(startLine),
			OrigLines:     int32(len(originalLines)),
			NewStartLine:  int32(startLine),
			NewLines:      int32(len(fixedLines)),
			Body:          []byte(body.String()),
		}},
	}

	rendered, err := diff.PrintFileDiff(fd)
	if err != nil {
		return ""
	}
	return string(rendered)
}
