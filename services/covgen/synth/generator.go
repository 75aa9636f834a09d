// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package synth turns coverage gaps into new test files. For every file
// record in a snapshot it gathers related-code context, asks the oracle
// for a test targeting the uncovered lines, and validates the structured
// response before accepting it. A single record failing never aborts the
// loop; only credential failures and an unreachable environment do.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/AleutianAI/covgen/pkg/logging"
	"github.com/AleutianAI/covgen/services/covgen/coverage"
	"github.com/AleutianAI/covgen/services/covgen/lang"
	"github.com/AleutianAI/covgen/services/covgen/oracle"
	"github.com/AleutianAI/covgen/services/covgen/sandbox"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config controls test synthesis.
type Config struct {
	// ContextDepth is how many dependency hops the resolver follows when
	// gathering related code. 0 limits context to the target file.
	ContextDepth int

	// MaxContextChars bounds the related-code section of the prompt.
	// Oversized context is split at file boundaries and truncated.
	MaxContextChars int

	// SyntaxCheck rejects generated tests that do not parse under the
	// language's grammar.
	SyntaxCheck bool
}

// DefaultConfig returns the standard synthesis configuration.
func DefaultConfig() *Config {
	return &Config{
		ContextDepth:    4,
		MaxContextChars: 24000,
		SyntaxCheck:     true,
	}
}

// Validate clamps out-of-range values to their defaults.
func (c *Config) Validate() error {
	if c.ContextDepth < 0 {
		c.ContextDepth = 4
	}
	if c.MaxContextChars < 1 {
		c.MaxContextChars = 24000
	}
	return nil
}

// =============================================================================
// GENERATOR
// =============================================================================

// ContextResolver supplies related-code context for a target file.
// A nil resolver degrades synthesis to empty context rather than
// failing it.
type ContextResolver interface {
	Resolve(ctx context.Context, targetFile string, maxDepth int) (string, error)
}

// Completer is the oracle surface the generator needs.
type Completer interface {
	Complete(ctx context.Context, messages []oracle.Message) (string, error)
}

// GeneratedTest records one synthesized test file.
type GeneratedTest struct {
	SourceFile   string `json:"source_file"`
	TestFilePath string `json:"test_file_path"`
	TestCode     string `json:"test_code"`
	SegmentCount int    `json:"segment_count"`

	// PathCollision marks a test whose path collided with an earlier
	// record in the same run. Default paths are renamed with a numeric
	// suffix; oracle-chosen paths overwrite the earlier entry.
	PathCollision bool `json:"path_collision"`
}

// Generator synthesizes tests for the uncovered records of a snapshot.
//
// Thread Safety: Safe for concurrent use; each Synthesize call keeps its
// own state.
type Generator struct {
	oracle   Completer
	resolver ContextResolver
	lang     *lang.Config
	cfg      *Config
	log      *logging.Logger
}

// NewGenerator creates a test generator.
//
// Inputs:
//
//	completer - The oracle client.
//	resolver - Related-code resolver. Nil means synthesis runs with
//	    empty context.
//	langCfg - The target language.
//	cfg - Synthesis configuration. Nil uses DefaultConfig.
//	log - Logger. Nil uses the default logger.
func NewGenerator(completer Completer, resolver ContextResolver, langCfg *lang.Config, cfg *Config, log *logging.Logger) *Generator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	if log == nil {
		log = logging.Default()
	}
	return &Generator{
		oracle:   completer,
		resolver: resolver,
		lang:     langCfg,
		cfg:      cfg,
		log:      log,
	}
}

// Synthesize generates tests for every uncovered record in the snapshot.
//
// Description:
//
//	Records are processed in snapshot order. A record with no source
//	code is skipped. Oracle failures, malformed responses, and rejected
//	syntax skip the record and continue; the mapping holds whatever the
//	loop managed to produce. When two records resolve to the same
//	default test path, the later one is written under a numbered
//	suffix; an oracle-chosen path that collides overwrites the earlier
//	entry. Either way the collision is recorded on the GeneratedTest.
//
// Outputs:
//
//	map[string]string - Test file path to test code.
//	[]GeneratedTest - Per-record detail in generation order.
//	error - Non-nil only for invalid input, credential failure, or an
//	    unreachable environment.
func (g *Generator) Synthesize(ctx context.Context, snap *coverage.Snapshot) (map[string]string, []GeneratedTest, error) {
	if ctx == nil {
		return nil, nil, ErrNilContext
	}
	if snap == nil {
		return nil, nil, ErrNilSnapshot
	}

	tests := make(map[string]string)
	var generated []GeneratedTest

	for _, rec := range snap.Records {
		if strings.TrimSpace(rec.Code) == "" {
			g.log.Debug("skipping record without source code",
				slog.String("file", rec.FilePath))
			continue
		}

		related, err := g.relatedContext(ctx, rec.FilePath)
		if err != nil {
			return nil, nil, err
		}

		testPath, testCode, err := g.generateOne(ctx, rec, snap.Segments, related)
		if err != nil {
			return nil, nil, err
		}
		if testCode == "" {
			continue
		}

		explicit := testPath != ""
		if !explicit {
			testPath = g.lang.DefaultTestPath(rec.FilePath)
		}
		collided := false
		if _, taken := tests[testPath]; taken {
			collided = true
			if explicit {
				// An explicit oracle path is honored even when it
				// collides; the later test wins.
				g.log.Warn("oracle test path overwrites an earlier test",
					slog.String("path", testPath),
					slog.String("source", rec.FilePath))
			} else {
				renamed := uniqueTestPath(testPath, tests)
				g.log.Warn("test path collision",
					slog.String("path", testPath),
					slog.String("renamed", renamed))
				testPath = renamed
			}
		}

		segs := coverage.CountSegments(rec.UncoveredLines)
		tests[testPath] = testCode
		generated = append(generated, GeneratedTest{
			SourceFile:    rec.FilePath,
			TestFilePath:  testPath,
			TestCode:      testCode,
			SegmentCount:  segs,
			PathCollision: collided,
		})
		g.log.Info("synthesized test",
			slog.String("source", rec.FilePath),
			slog.String("test", testPath),
			slog.Int("segments", segs))
	}

	return tests, generated, nil
}

// relatedContext resolves dependency context for one file, degrading to
// empty context on anything short of a credential failure or an
// unreachable environment.
func (g *Generator) relatedContext(ctx context.Context, filePath string) (string, error) {
	if g.resolver == nil {
		g.log.Debug("context resolver not configured, using empty context",
			slog.String("file", filePath))
		return "", nil
	}

	related, err := g.resolver.Resolve(ctx, filePath, g.cfg.ContextDepth)
	if err != nil {
		if errors.Is(err, oracle.ErrNoCredential) || errors.Is(err, sandbox.ErrUnreachable) {
			return "", err
		}
		g.log.Warn("context resolution failed, proceeding without it",
			slog.String("file", filePath),
			slog.Any("error", err))
		return "", nil
	}
	return g.trimContext(related, filePath), nil
}

// trimContext keeps related code inside the prompt budget. Oversized
// context is split at blank-line boundaries, which separate the
// assembled file blocks, and refilled chunk by chunk until the budget
// is spent.
func (g *Generator) trimContext(related, filePath string) string {
	if len(related) <= g.cfg.MaxContextChars {
		return related
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(g.cfg.MaxContextChars/4),
		textsplitter.WithChunkOverlap(0),
	)
	chunks, err := splitter.SplitText(related)
	if err != nil || len(chunks) == 0 {
		return related[:g.cfg.MaxContextChars]
	}

	var sb strings.Builder
	for _, chunk := range chunks {
		if sb.Len()+len(chunk) > g.cfg.MaxContextChars {
			break
		}
		sb.WriteString(chunk)
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return related[:g.cfg.MaxContextChars]
	}

	g.log.Warn("related context truncated to budget",
		slog.String("file", filePath),
		slog.Int("original_chars", len(related)),
		slog.Int("kept_chars", sb.Len()))
	return strings.TrimSuffix(sb.String(), "\n")
}

// generateOne runs a single synthesis request and validates the response.
// An empty returned test code means the record should be skipped.
func (g *Generator) generateOne(ctx context.Context, rec coverage.FileRecord, segments []coverage.UncoveredSegment, related string) (string, string, error) {
	prompt := buildSynthesisPrompt(g.lang.Name, rec.FilePath, rec.Code, describeUncovered(rec, segments), related)
	resp, err := g.oracle.Complete(ctx, []oracle.Message{
		oracle.System(synthesisSystemPrompt(g.lang.Name)),
		oracle.User(prompt),
	})
	if err != nil {
		if errors.Is(err, oracle.ErrNoCredential) {
			return "", "", err
		}
		g.log.Warn("synthesis request failed",
			slog.String("file", rec.FilePath),
			slog.Any("error", err))
		return "", "", nil
	}

	testPath, testCode := parseGeneratedTest(resp)
	if strings.TrimSpace(testCode) == "" {
		g.log.Warn("oracle returned no usable test",
			slog.String("file", rec.FilePath))
		return "", "", nil
	}

	if g.cfg.SyntaxCheck {
		valid, serr := g.lang.CheckSyntax(ctx, testCode)
		if serr != nil {
			g.log.Warn("syntax gate inconclusive",
				slog.String("file", rec.FilePath),
				slog.Any("error", serr))
		}
		if !valid {
			g.log.Warn("rejecting syntactically invalid test",
				slog.String("file", rec.FilePath))
			return "", "", nil
		}
	}

	return testPath, testCode, nil
}

// =============================================================================
// RESPONSE PARSING
// =============================================================================

type generatedTestResponse struct {
	TestFilePath string `json:"test_file_path"`
	TestCode     string `json:"test_code"`
}

// parseGeneratedTest pulls the test path and code out of a synthesis
// response. Malformed JSON yields an empty test, never an error.
func parseGeneratedTest(response string) (string, string) {
	var out generatedTestResponse
	if err := json.Unmarshal([]byte(oracle.ExtractJSONPayload(response)), &out); err != nil {
		return "", ""
	}
	return strings.TrimSpace(out.TestFilePath), out.TestCode
}
