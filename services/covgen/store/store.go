// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists run journals in an embedded Badger database.
//
// The journal holds per-round iteration records and final run reports keyed
// by session. It exists so that a run's history survives the process: the
// report command and the status server read from it after (or during) a run.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/covgen/pkg/logging"
	"github.com/AleutianAI/covgen/services/covgen/repair"
	"github.com/AleutianAI/covgen/services/covgen/report"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNilContext indicates a nil context was passed.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrEmptyPath indicates an on-disk journal was requested without a path.
	ErrEmptyPath = errors.New("journal path cannot be empty")

	// ErrNotFound indicates no record exists for the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrNilReport indicates a nil report was passed to SaveReport.
	ErrNilReport = errors.New("report cannot be nil")

	// ErrEmptySession indicates a record was missing its session identifier.
	ErrEmptySession = errors.New("session cannot be empty")
)

// Key prefixes. Sessions never contain ':' (they are short hex IDs), so the
// terminator keeps one session's records from matching another's prefix.
const (
	reportPrefix    = "report:"
	iterationPrefix = "iter:"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds journal database settings.
type Config struct {
	// Path is the directory for the Badger database. Required unless
	// InMemory is set.
	Path string

	// InMemory runs the database entirely in memory. Used by tests and
	// throwaway runs.
	InMemory bool

	// SyncWrites forces fsync on every write. Slower, but a crashed run
	// keeps its journal.
	SyncWrites bool

	// Logger receives Badger's internal log output. Nil silences it.
	Logger *logging.Logger
}

// DefaultConfig returns settings for an on-disk journal at the given path.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns settings for an in-memory journal.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts the service logger to Badger's logging interface.
type badgerLogger struct {
	log *logging.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// =============================================================================
// JOURNAL
// =============================================================================

// Journal is a session-keyed run journal backed by Badger.
//
// Thread Safety: Safe for concurrent use. Badger transactions provide
// isolation; the Journal itself holds no mutable state beyond the DB handle.
type Journal struct {
	db  *badger.DB
	log *logging.Logger
}

// Open opens (or creates) a journal with the given configuration.
//
// Description:
//
//	Builds Badger options from the config and opens the database. On-disk
//	journals keep a single version per key; value-log GC is left to Badger's
//	defaults since journal databases are small and short-lived.
//
// Inputs:
//
//	cfg - Journal configuration.
//
// Outputs:
//
//	*Journal - Open journal. Call Close when done.
//	error - ErrEmptyPath for a pathless on-disk config, or the Badger open
//	error.
func Open(cfg Config) (*Journal, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, ErrEmptyPath
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{log: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}
	return &Journal{db: db, log: log}, nil
}

// OpenInMemory opens a throwaway in-memory journal.
func OpenInMemory() (*Journal, error) {
	return Open(InMemoryConfig())
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return nil
}

// =============================================================================
// REPORTS
// =============================================================================

// SaveReport writes the final report for its session.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	rep - Completed run report. Must carry a session.
//
// Outputs:
//
//	error - Validation or storage failure.
func (j *Journal) SaveReport(ctx context.Context, rep *report.RunReport) error {
	if ctx == nil {
		return ErrNilContext
	}
	if rep == nil {
		return ErrNilReport
	}
	if strings.TrimSpace(rep.Session) == "" {
		return ErrEmptySession
	}

	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return txn.Set(reportKey(rep.Session), data)
	})
	if err != nil {
		return fmt.Errorf("save report %s: %w", rep.Session, err)
	}
	return nil
}

// LoadReport reads the final report for a session.
//
// Outputs:
//
//	*report.RunReport - The stored report.
//	error - ErrNotFound when the session has no report.
func (j *Journal) LoadReport(ctx context.Context, session string) (*report.RunReport, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if strings.TrimSpace(session) == "" {
		return nil, ErrEmptySession
	}

	var data []byte
	err := j.db.View(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, err := txn.Get(reportKey(session))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", session, err)
	}
	return report.Load(data)
}

// Sessions lists every session with a stored report, in key order.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var sessions []string
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(reportPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(it.Item().Key())
			sessions = append(sessions, strings.TrimPrefix(key, reportPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// =============================================================================
// ITERATIONS
// =============================================================================

// SaveIteration journals one repair-round record for a session.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	session - Run identifier.
//	rec - Iteration record; rec.Iteration orders records within the session.
func (j *Journal) SaveIteration(ctx context.Context, session string, rec *repair.IterationRecord) error {
	if ctx == nil {
		return ErrNilContext
	}
	if strings.TrimSpace(session) == "" {
		return ErrEmptySession
	}
	if rec == nil {
		return fmt.Errorf("%w: iteration record", ErrNilReport)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode iteration: %w", err)
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return txn.Set(iterationKey(session, rec.Iteration), data)
	})
	if err != nil {
		return fmt.Errorf("save iteration %s/%d: %w", session, rec.Iteration, err)
	}
	return nil
}

// Iterations returns a session's journaled repair rounds in iteration order.
// A session with no journaled rounds yields an empty slice, not an error.
func (j *Journal) Iterations(ctx context.Context, session string) ([]repair.IterationRecord, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if strings.TrimSpace(session) == "" {
		return nil, ErrEmptySession
	}

	var records []repair.IterationRecord
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(iterationPrefix + session + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec repair.IterationRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list iterations %s: %w", session, err)
	}
	return records, nil
}

// =============================================================================
// KEYS
// =============================================================================

func reportKey(session string) []byte {
	return []byte(reportPrefix + session)
}

// iterationKey zero-pads the sequence so Badger's lexicographic key order is
// also iteration order.
func iterationKey(session string, iteration int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", iterationPrefix, session, iteration))
}
