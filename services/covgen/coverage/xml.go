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
	"encoding/xml"
	"sort"

	"github.com/AleutianAI/covgen/services/covgen/lang"
)

// =============================================================================
// COBERTURA FALLBACK
// =============================================================================

// Cobertura XML shape, reduced to the parts the fallback reads:
// package/classes/class[@filename]/lines/line[@number,@hits,@branch].
type coberturaReport struct {
	XMLName  xml.Name           `xml:"coverage"`
	LineRate float64            `xml:"line-rate,attr"`
	Packages []coberturaPackage `xml:"packages>package"`
}

type coberturaPackage struct {
	Classes []coberturaClass `xml:"classes>class"`
}

type coberturaClass struct {
	Filename string          `xml:"filename,attr"`
	Lines    []coberturaLine `xml:"lines>line"`
}

type coberturaLine struct {
	Number int    `xml:"number,attr"`
	Hits   int    `xml:"hits,attr"`
	Branch string `xml:"branch,attr"`
}

// xmlFileCoverage is one file's fallback coverage: which lines went
// unexecuted and which of those carry branching.
type xmlFileCoverage struct {
	Path        string
	Uncovered   []int
	BranchLines map[int]bool
}

// parseCobertura extracts per-file uncovered lines from a Cobertura
// report. Only files carrying the language's source extension count, and
// hits == 0 marks a line uncovered.
func parseCobertura(data []byte, langCfg *lang.Config) ([]xmlFileCoverage, float64, error) {
	var report coberturaReport
	if err := xml.Unmarshal(data, &report); err != nil {
		return nil, 0, err
	}

	byPath := make(map[string]*xmlFileCoverage)
	var order []string

	for _, pkg := range report.Packages {
		for _, class := range pkg.Classes {
			if !langCfg.HasExtension(class.Filename) {
				continue
			}
			fc, ok := byPath[class.Filename]
			if !ok {
				fc = &xmlFileCoverage{Path: class.Filename, BranchLines: make(map[int]bool)}
				byPath[class.Filename] = fc
				order = append(order, class.Filename)
			}
			for _, line := range class.Lines {
				if line.Hits != 0 {
					continue
				}
				fc.Uncovered = append(fc.Uncovered, line.Number)
				if line.Branch == "true" {
					fc.BranchLines[line.Number] = true
				}
			}
		}
	}

	out := make([]xmlFileCoverage, 0, len(order))
	for _, path := range order {
		fc := byPath[path]
		sort.Ints(fc.Uncovered)
		fc.Uncovered = dedupeInts(fc.Uncovered)
		if len(fc.Uncovered) > 0 {
			out = append(out, *fc)
		}
	}

	return out, report.LineRate * 100, nil
}

// dedupeInts removes adjacent duplicates from a sorted slice.
func dedupeInts(nums []int) []int {
	if len(nums) < 2 {
		return nums
	}
	out := nums[:1]
	for _, n := range nums[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}
