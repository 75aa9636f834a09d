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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/covgen/services/covgen/lang"
)

func pythonIngestor(t *testing.T) *Ingestor {
	t.Helper()
	cfg, ok := lang.Get("python")
	require.True(t, ok)
	return NewIngestor(cfg, nil)
}

func TestIngest_StructuredArtifact(t *testing.T) {
	ing := pythonIngestor(t)

	snap := ing.Ingest(Artifacts{
		UncoveredJSON: []byte(`[{"file_path":"a.py","code":"def f():\n    return 1\n","uncovered_lines":[2]}]`),
		CoverageJSON:  []byte(`{"coverage_LINE": 42.0}`),
		TestOutput:    "1 passed",
	})

	require.Len(t, snap.Records, 1)
	assert.Equal(t, "a.py", snap.Records[0].FilePath)
	assert.Equal(t, []int{2}, snap.Records[0].UncoveredLines)

	require.Len(t, snap.Segments, 1)
	seg := snap.Segments[0]
	assert.Equal(t, "a.py", seg.FilePath)
	assert.Equal(t, 2, seg.LineStart)
	assert.Equal(t, 2, seg.LineEnd)
	assert.Equal(t, "    return 1", seg.CodeSnippet)
	assert.Equal(t, KindLine, seg.Kind)
	assert.Equal(t, "f", seg.EnclosingFunction)

	assert.Equal(t, 42.0, snap.Percentage, "coverage_LINE must be preserved verbatim")
	assert.Equal(t, "1 passed", snap.RawTestOutput)
	assert.Equal(t, "python", snap.Language)
}

func TestIngest_IsPure(t *testing.T) {
	ing := pythonIngestor(t)
	arts := Artifacts{
		UncoveredJSON: []byte(`[{"file_path":"a.py","code":"def f():\n    x = 1\n    return x\n","uncovered_lines":[3,2]}]`),
		CoverageJSON:  []byte(`{"coverage_LINE": 10.5}`),
	}

	first := ing.Ingest(arts)
	second := ing.Ingest(arts)
	assert.Equal(t, first, second)

	// Re-ingesting the normalized records reproduces the snapshot.
	normalized, err := json.Marshal(first.Records)
	require.NoError(t, err)
	third := ing.Ingest(Artifacts{UncoveredJSON: normalized, CoverageJSON: arts.CoverageJSON})
	assert.Equal(t, first, third)
}

func TestIngest_FiltersMeaninglessLines(t *testing.T) {
	ing := pythonIngestor(t)

	code := "def f():\n" + // line 1
		"    pass\n" + // line 2: no-op
		"\n" + // line 3: blank
		"# comment\n" + // line 4
		"    \"\"\"doc\"\"\"\n" + // line 5: doc delimiter
		"    return 1\n" // line 6: meaningful

	snap := ing.Ingest(Artifacts{
		UncoveredJSON: mustRecords(t, []FileRecord{{FilePath: "a.py", Code: code, UncoveredLines: []int{2, 3, 4, 5, 6}}}),
	})

	require.Len(t, snap.Records, 1)
	assert.Equal(t, []int{6}, snap.Records[0].UncoveredLines)
	require.Len(t, snap.Segments, 1)
	assert.Equal(t, "    return 1", snap.Segments[0].CodeSnippet)
}

func TestIngest_DropsFullyMeaninglessRecords(t *testing.T) {
	ing := pythonIngestor(t)

	snap := ing.Ingest(Artifacts{
		UncoveredJSON: mustRecords(t, []FileRecord{
			{FilePath: "empty.py", Code: "pass\n\n", UncoveredLines: []int{1, 2}},
			{FilePath: "real.py", Code: "x = 1\n", UncoveredLines: []int{1}},
		}),
	})

	require.Len(t, snap.Records, 1)
	assert.Equal(t, "real.py", snap.Records[0].FilePath)
}

func TestIngest_MergesConsecutiveRuns(t *testing.T) {
	ing := pythonIngestor(t)

	code := "a = 1\nb = 2\nc = 3\nd = 4\ne = 5\nf = 6\ng = 7\n"
	snap := ing.Ingest(Artifacts{
		UncoveredJSON: mustRecords(t, []FileRecord{{FilePath: "m.py", Code: code, UncoveredLines: []int{2, 3, 4, 7}}}),
	})

	require.Len(t, snap.Segments, 2)
	assert.Equal(t, 2, snap.Segments[0].LineStart)
	assert.Equal(t, 4, snap.Segments[0].LineEnd)
	assert.Equal(t, "b = 2\nc = 3\nd = 4", snap.Segments[0].CodeSnippet)
	assert.Equal(t, 7, snap.Segments[1].LineStart)
	assert.Equal(t, 7, snap.Segments[1].LineEnd)
}

func TestIngest_SortsAndDeduplicatesLines(t *testing.T) {
	ing := pythonIngestor(t)

	code := "a = 1\nb = 2\nc = 3\n"
	snap := ing.Ingest(Artifacts{
		UncoveredJSON: mustRecords(t, []FileRecord{{FilePath: "m.py", Code: code, UncoveredLines: []int{3, 1, 3, 2, 1}}}),
	})

	require.Len(t, snap.Records, 1)
	assert.Equal(t, []int{1, 2, 3}, snap.Records[0].UncoveredLines)
	require.Len(t, snap.Segments, 1)
}

func TestIngest_KeepsLinesWithoutSourceText(t *testing.T) {
	ing := pythonIngestor(t)

	// No code means no basis for the meaningless filter.
	snap := ing.Ingest(Artifacts{
		UncoveredJSON: mustRecords(t, []FileRecord{{FilePath: "m.py", UncoveredLines: []int{4, 5}}}),
	})

	require.Len(t, snap.Records, 1)
	assert.Equal(t, []int{4, 5}, snap.Records[0].UncoveredLines)
	require.Len(t, snap.Segments, 1)
	assert.Empty(t, snap.Segments[0].CodeSnippet)
}

func TestIngest_MalformedArtifactsDegradeToEmpty(t *testing.T) {
	ing := pythonIngestor(t)

	snap := ing.Ingest(Artifacts{
		UncoveredJSON: []byte(`{"not":"an array"`),
		CoberturaXML:  []byte(`<coverage><broken`),
		CoverageJSON:  []byte(`also broken`),
		TestOutput:    "suite exploded",
	})

	assert.True(t, snap.Empty())
	assert.Zero(t, snap.Percentage)
	assert.Equal(t, "suite exploded", snap.RawTestOutput)
}

func TestIngest_NoArtifacts(t *testing.T) {
	ing := pythonIngestor(t)
	snap := ing.Ingest(Artifacts{})
	assert.True(t, snap.Empty())
	assert.Empty(t, snap.Segments)
	assert.Zero(t, snap.Percentage)
}

const coberturaSample = `<?xml version="1.0"?>
<coverage line-rate="0.8">
  <packages>
    <package name="app">
      <classes>
        <class filename="app/calc.py">
          <lines>
            <line number="1" hits="3" branch="false"/>
            <line number="2" hits="0" branch="false"/>
            <line number="3" hits="0" branch="true"/>
            <line number="5" hits="0" branch="false"/>
          </lines>
        </class>
        <class filename="app/readme.txt">
          <lines>
            <line number="1" hits="0" branch="false"/>
          </lines>
        </class>
      </classes>
    </package>
  </packages>
</coverage>`

func TestIngest_CoberturaFallback(t *testing.T) {
	ing := pythonIngestor(t)

	snap := ing.Ingest(Artifacts{
		UncoveredJSON: []byte(`not json at all`),
		CoberturaXML:  []byte(coberturaSample),
	})

	require.Len(t, snap.Records, 1, "non-python files must be ignored")
	assert.Equal(t, "app/calc.py", snap.Records[0].FilePath)
	assert.Equal(t, []int{2, 3, 5}, snap.Records[0].UncoveredLines)

	require.Len(t, snap.Segments, 2)
	assert.Equal(t, KindBranch, snap.Segments[0].Kind, "a branch line in the run marks the segment")
	assert.Equal(t, KindLine, snap.Segments[1].Kind)

	assert.InDelta(t, 80.0, snap.Percentage, 0.001, "XML line-rate backs the percentage when no summary exists")
}

func TestIngest_CoberturaReadFileHook(t *testing.T) {
	ing := pythonIngestor(t)

	snap := ing.Ingest(Artifacts{
		CoberturaXML: []byte(coberturaSample),
		ReadFile: func(path string) (string, error) {
			return "def add(a, b):\n    return a + b\n    raise ValueError\n\nx = 1\n", nil
		},
	})

	require.Len(t, snap.Records, 1)
	assert.NotEmpty(t, snap.Records[0].Code)
	require.NotEmpty(t, snap.Segments)
	assert.Equal(t, "add", snap.Segments[0].EnclosingFunction)
}

func TestIngest_SummaryPercentagePreferred(t *testing.T) {
	ing := pythonIngestor(t)

	snap := ing.Ingest(Artifacts{
		CoberturaXML: []byte(coberturaSample),
		CoverageJSON: []byte(`{"coverage_LINE": 55.5}`),
	})
	assert.Equal(t, 55.5, snap.Percentage, "summary wins over XML line-rate")
}

func TestIngest_SummaryPercentageStringForm(t *testing.T) {
	ing := pythonIngestor(t)
	snap := ing.Ingest(Artifacts{CoverageJSON: []byte(`{"coverage_LINE": "42.5"}`)})
	assert.Equal(t, 42.5, snap.Percentage)
}

func TestEnclosingFunction_Go(t *testing.T) {
	goCfg, ok := lang.Get("go")
	require.True(t, ok)
	ing := NewIngestor(goCfg, nil)

	code := "package ledger\n\nfunc (l *Ledger) Apply(tx Tx) error {\n\tif tx.Amount == 0 {\n\t\treturn errNoop\n\t}\n\treturn nil\n}\n"
	snap := ing.Ingest(Artifacts{
		UncoveredJSON: mustRecords(t, []FileRecord{{FilePath: "ledger.go", Code: code, UncoveredLines: []int{5}}}),
	})

	require.Len(t, snap.Segments, 1)
	assert.Equal(t, "Apply", snap.Segments[0].EnclosingFunction)
}

func TestDescribeLines(t *testing.T) {
	assert.Equal(t, "", DescribeLines(nil))
	assert.Equal(t, "4", DescribeLines([]int{4}))
	assert.Equal(t, "2-4, 7", DescribeLines([]int{2, 3, 4, 7}))
	assert.Equal(t, "1, 3, 5", DescribeLines([]int{1, 3, 5}))
}

func TestCountSegments(t *testing.T) {
	assert.Equal(t, 0, CountSegments(nil))
	assert.Equal(t, 1, CountSegments([]int{4}))
	assert.Equal(t, 2, CountSegments([]int{2, 3, 4, 7}))
	assert.Equal(t, 3, CountSegments([]int{2, 5, 6, 7, 12}))
}

func TestSnapshot_Accessors(t *testing.T) {
	snap := &Snapshot{
		Records: []FileRecord{
			{FilePath: "a.py", UncoveredLines: []int{1, 2}},
			{FilePath: "b.py", UncoveredLines: []int{9}},
			{FilePath: "a.py", UncoveredLines: []int{5}},
		},
	}
	assert.False(t, snap.Empty())
	assert.Equal(t, 4, snap.UncoveredLineCount())
	assert.Equal(t, []string{"a.py", "b.py"}, snap.Files())
}

func mustRecords(t *testing.T, recs []FileRecord) []byte {
	t.Helper()
	data, err := json.Marshal(recs)
	require.NoError(t, err)
	return data
}
