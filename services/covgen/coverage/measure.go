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
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AleutianAI/covgen/pkg/logging"
	"github.com/AleutianAI/covgen/services/covgen/lang"
	"github.com/AleutianAI/covgen/services/covgen/sandbox"
)

// exportTimeout bounds the post-suite artifact export command.
const exportTimeout = 2 * time.Minute

// =============================================================================
// CONFIGURATION
// =============================================================================

// ArtifactPaths are the environment-relative locations measurement
// artifacts are collected from.
type ArtifactPaths struct {
	// UncoveredJSON is the preferred structured artifact path.
	// Default: "uncovered_lines.json"
	UncoveredJSON string

	// CoverageJSON is the coverage summary path.
	// Default: "coverage.json"
	CoverageJSON string

	// CoberturaXML is the fallback report path.
	// Default: "coverage.xml"
	CoberturaXML string
}

// Config holds measurement settings.
type Config struct {
	// SuiteTimeout bounds one full suite run.
	// Default: 10m
	SuiteTimeout time.Duration

	// Paths locate the artifacts after a run.
	Paths ArtifactPaths
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SuiteTimeout: 10 * time.Minute,
		Paths: ArtifactPaths{
			UncoveredJSON: "uncovered_lines.json",
			CoverageJSON:  "coverage.json",
			CoberturaXML:  "coverage.xml",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SuiteTimeout < time.Second {
		c.SuiteTimeout = 10 * time.Minute
	}
	if c.Paths.UncoveredJSON == "" {
		c.Paths.UncoveredJSON = "uncovered_lines.json"
	}
	if c.Paths.CoverageJSON == "" {
		c.Paths.CoverageJSON = "coverage.json"
	}
	if c.Paths.CoberturaXML == "" {
		c.Paths.CoberturaXML = "coverage.xml"
	}
	return nil
}

// =============================================================================
// MEASURER
// =============================================================================

// Measurer runs the instrumented suite in the environment and ingests
// whatever artifacts the run left behind.
//
// Thread Safety: Safe for concurrent use; the pipeline calls it
// sequentially.
type Measurer struct {
	env  sandbox.Environment
	lang *lang.Config
	cfg  *Config
	ing  *Ingestor
	log  *logging.Logger
}

// NewMeasurer creates a measurer.
//
// Inputs:
//
//	env - The execution environment.
//	langCfg - The target language.
//	cfg - Measurement configuration. Nil uses DefaultConfig.
//	log - Logger. Nil uses the default logger.
func NewMeasurer(env sandbox.Environment, langCfg *lang.Config, cfg *Config, log *logging.Logger) *Measurer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	if log == nil {
		log = logging.Default()
	}
	return &Measurer{
		env:  env,
		lang: langCfg,
		cfg:  cfg,
		ing:  NewIngestor(langCfg, log),
		log:  log,
	}
}

// Measure runs the suite under coverage instrumentation and returns the
// normalized snapshot.
//
// Description:
//
//	Suite failure, export failure, and missing artifacts all degrade to
//	an empty zero-coverage snapshot carrying whatever output the run
//	produced. The only error returned is an unreachable environment,
//	which aborts the run.
//
// Outputs:
//
//	*Snapshot - The measurement. Never nil when error is nil.
//	error - Non-nil only when the environment is unreachable.
func (m *Measurer) Measure(ctx context.Context) (*Snapshot, error) {
	output := ""
	res, err := m.env.Run(ctx, sandbox.CommandSpec{Argv: m.lang.SuiteArgv, Timeout: m.cfg.SuiteTimeout})
	if err != nil {
		if errors.Is(err, sandbox.ErrUnreachable) {
			return nil, err
		}
		m.log.Warn("coverage suite run failed",
			slog.String("language", m.lang.Name),
			slog.Any("error", err))
	}
	if res != nil {
		output = res.Combined()
	}

	if len(m.lang.CoverageExportArgv) > 0 {
		eres, eerr := m.env.Run(ctx, sandbox.CommandSpec{Argv: m.lang.CoverageExportArgv, Timeout: exportTimeout})
		if eerr != nil {
			if errors.Is(eerr, sandbox.ErrUnreachable) {
				return nil, eerr
			}
			m.log.Warn("coverage export failed", slog.Any("error", eerr))
		} else if !eres.OK() {
			m.log.Warn("coverage export exited non-zero",
				slog.Int("exit_code", eres.ExitCode))
		}
	}

	arts := Artifacts{
		TestOutput: output,
		ReadFile: func(path string) (string, error) {
			return m.env.ReadFile(ctx, path)
		},
	}
	if data, err := m.collect(ctx, m.cfg.Paths.UncoveredJSON); err != nil {
		return nil, err
	} else {
		arts.UncoveredJSON = data
	}
	if data, err := m.collect(ctx, m.cfg.Paths.CoverageJSON); err != nil {
		return nil, err
	} else {
		arts.CoverageJSON = data
	}
	if data, err := m.collect(ctx, m.cfg.Paths.CoberturaXML); err != nil {
		return nil, err
	} else {
		arts.CoberturaXML = data
	}

	snap := m.ing.Ingest(arts)
	m.log.Info("coverage measured",
		slog.String("language", snap.Language),
		slog.Float64("percentage", snap.Percentage),
		slog.Int("files", len(snap.Files())),
		slog.Int("uncovered_lines", snap.UncoveredLineCount()))
	return snap, nil
}

// collect reads an artifact, distinguishing "not there" (fine, nil data)
// from "environment gone" (aborts).
func (m *Measurer) collect(ctx context.Context, path string) ([]byte, error) {
	text, err := m.env.ReadFile(ctx, path)
	if err != nil {
		if errors.Is(err, sandbox.ErrUnreachable) {
			return nil, err
		}
		return nil, nil
	}
	return []byte(text), nil
}
