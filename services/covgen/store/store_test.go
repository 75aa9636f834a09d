// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/covgen/services/covgen/coverage"
	"github.com/AleutianAI/covgen/services/covgen/repair"
	"github.com/AleutianAI/covgen/services/covgen/report"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, j.Close())
	})
	return j
}

func testReport(session string, after float64) *report.RunReport {
	started := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	return &report.RunReport{
		Session:       session,
		Language:      "python",
		Model:         "qwen2.5-coder:32b",
		StartedAt:     started,
		FinishedAt:    started.Add(2 * time.Minute),
		BeforePercent: 60.0,
		AfterPercent:  after,
		RepairState:   repair.StateConverged,
	}
}

func iteration(n int, pct float64) *repair.IterationRecord {
	return &repair.IterationRecord{
		Iteration:   n,
		ErrorsFound: 2,
		ErrorsFixed: 1,
		Snapshot:    &coverage.Snapshot{Language: "python", Percentage: pct},
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.ErrorIs(t, err, ErrEmptyPath)
}

func TestOpen_OnDisk(t *testing.T) {
	j, err := Open(DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, j.SaveReport(context.Background(), testReport("disk0001", 70)))
	require.NoError(t, j.Close())
}

func TestSaveAndLoadReport(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	rep := testReport("a1b2c3d4", 78.4)
	require.NoError(t, j.SaveReport(ctx, rep))

	got, err := j.LoadReport(ctx, "a1b2c3d4")
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3d4", got.Session)
	assert.Equal(t, 78.4, got.AfterPercent)
	assert.Equal(t, repair.StateConverged, got.RepairState)
	assert.True(t, got.StartedAt.Equal(rep.StartedAt))
}

func TestLoadReport_NotFound(t *testing.T) {
	j := newTestJournal(t)

	_, err := j.LoadReport(context.Background(), "missing1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveReport_Validation(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.ErrorIs(t, j.SaveReport(ctx, nil), ErrNilReport)
	require.ErrorIs(t, j.SaveReport(ctx, testReport("  ", 50)), ErrEmptySession)
	//nolint:staticcheck // nil context is the case under test
	require.ErrorIs(t, j.SaveReport(nil, testReport("ok", 50)), ErrNilContext)
}

func TestSessions(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.SaveReport(ctx, testReport("bbbb0002", 70)))
	require.NoError(t, j.SaveReport(ctx, testReport("aaaa0001", 65)))

	sessions, err := j.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa0001", "bbbb0002"}, sessions)
}

func TestSessions_EmptyJournal(t *testing.T) {
	j := newTestJournal(t)

	sessions, err := j.Sessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestIterations_OrderedByIteration(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	// Saved out of order; key padding must restore iteration order.
	require.NoError(t, j.SaveIteration(ctx, "a1b2c3d4", iteration(2, 72.0)))
	require.NoError(t, j.SaveIteration(ctx, "a1b2c3d4", iteration(1, 66.0)))
	require.NoError(t, j.SaveIteration(ctx, "a1b2c3d4", iteration(3, 78.4)))

	records, err := j.Iterations(ctx, "a1b2c3d4")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, want := range []float64{66.0, 72.0, 78.4} {
		assert.Equal(t, i+1, records[i].Iteration)
		require.NotNil(t, records[i].Snapshot)
		assert.Equal(t, want, records[i].Snapshot.Percentage)
	}
}

func TestIterations_ScopedToSession(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.SaveIteration(ctx, "run1aaaa", iteration(1, 50.0)))
	require.NoError(t, j.SaveIteration(ctx, "run2bbbb", iteration(1, 90.0)))

	records, err := j.Iterations(ctx, "run1aaaa")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 50.0, records[0].Snapshot.Percentage)
}

func TestIterations_EmptyWhenNone(t *testing.T) {
	j := newTestJournal(t)

	records, err := j.Iterations(context.Background(), "a1b2c3d4")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveIteration_Validation(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.ErrorIs(t, j.SaveIteration(ctx, "", iteration(1, 50.0)), ErrEmptySession)
	require.ErrorIs(t, j.SaveIteration(ctx, "a1b2c3d4", nil), ErrNilReport)
}
