// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// seed_journal writes a synthetic finished run into a covgen journal so
// report rendering and the status endpoints can be exercised without a
// target container or oracle credentials.
//
// Usage:
//
//	go run scripts/seed_journal.go -journal /tmp/covgen-journal -session demo0001
//	covgen report --journal /tmp/covgen-journal demo0001
//	covgen report --journal /tmp/covgen-journal demo0001 --iterations
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/AleutianAI/covgen/services/covgen/coverage"
	"github.com/AleutianAI/covgen/services/covgen/repair"
	"github.com/AleutianAI/covgen/services/covgen/report"
	"github.com/AleutianAI/covgen/services/covgen/store"
	"github.com/AleutianAI/covgen/services/covgen/synth"
)

func main() {
	journalPath := flag.String("journal", "/tmp/covgen-journal", "journal directory to seed")
	session := flag.String("session", "demo0001", "session id for the seeded run")
	flag.Parse()

	if err := seed(*journalPath, *session); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded run %s into %s\n", *session, *journalPath)
}

func seed(path, session string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return err
	}
	journal, err := store.Open(store.DefaultConfig(path))
	if err != nil {
		return err
	}
	defer journal.Close()

	ctx := context.Background()
	started := time.Now().UTC().Add(-7 * time.Minute)

	rep := &report.RunReport{
		Session:       session,
		Language:      "python",
		Model:         "gpt-4o-mini",
		StartedAt:     started,
		FinishedAt:    started.Add(6 * time.Minute),
		BeforePercent: 61.4,
		AfterPercent:  72.9,
		RepairState:   repair.StateConverged,
		Trend: []report.TrendPoint{
			{Label: "baseline", Percent: 61.4},
			{Label: "repair-1", Percent: 66.8},
			{Label: "repair-2", Percent: 72.9},
			{Label: "final", Percent: 72.9},
		},
		Tests: []synth.GeneratedTest{
			{
				SourceFile:   "app/billing.py",
				TestFilePath: "tests/test_billing.py",
				TestCode:     demoTest,
				SegmentCount: 4,
			},
		},
		Attempts: []repair.FixAttempt{
			{
				FilePath:  "tests/test_billing.py",
				LineStart: 12,
				LineEnd:   12,
				Kind:      repair.FixKindCode,
				Success:   true,
				Diff:      demoDiff,
			},
			{
				FilePath:    "tests/test_billing.py",
				Kind:        repair.FixKindCommand,
				Commands:    []string{"pip install freezegun"},
				Description: "install the missing test dependency",
				Success:     true,
			},
		},
	}
	if err := journal.SaveReport(ctx, rep); err != nil {
		return err
	}

	iterations := []repair.IterationRecord{
		{Iteration: 1, ErrorsFound: 3, ErrorsFixed: 2,
			Snapshot: &coverage.Snapshot{Language: "python", Percentage: 66.8}},
		{Iteration: 2, ErrorsFound: 1, ErrorsFixed: 1,
			Snapshot: &coverage.Snapshot{Language: "python", Percentage: 72.9}},
	}
	for i := range iterations {
		if err := journal.SaveIteration(ctx, session, &iterations[i]); err != nil {
			return err
		}
	}
	return nil
}

const demoTest = `import pytest

from app.billing import apply_credit


def test_apply_credit_reduces_balance():
    assert apply_credit(100.0, 25.0) == 75.0


def test_apply_credit_rejects_negative():
    with pytest.raises(ValueError):
        apply_credit(100.0, -5.0)
`

const demoDiff = `--- a/tests/test_billing.py
+++ b/tests/test_billing.py
@@ -12,1 +12,1 @@
-    assert apply_credit(100.0, 25.0) == 80.0
+    assert apply_credit(100.0, 25.0) == 75.0
`
