// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package deps discovers the files a coverage target depends on and
// assembles their relevant code into a single context blob for test
// generation prompts.
//
// Discovery is a breadth-first, depth-bounded walk: the oracle names the
// files each file imports, the environment confirms they exist, and for
// every file other than the target the oracle extracts only the code the
// target actually invokes. Files whose extraction comes back empty
// contribute nothing and are not traversed further.
package deps

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/AleutianAI/covgen/pkg/logging"
	"github.com/AleutianAI/covgen/services/covgen/lang"
	"github.com/AleutianAI/covgen/services/covgen/oracle"
	"github.com/AleutianAI/covgen/services/covgen/sandbox"
)

// =============================================================================
// RESOLVER
// =============================================================================

// Completer is the oracle surface the resolver needs.
type Completer interface {
	Complete(ctx context.Context, messages []oracle.Message) (string, error)
}

// Resolver walks a project's import graph outward from a target file.
//
// Thread Safety: Safe for concurrent use; all traversal state is local
// to each Resolve call.
type Resolver struct {
	env    sandbox.Environment
	oracle Completer
	lang   *lang.Config
	log    *logging.Logger
}

// queueItem is one pending file in the breadth-first walk.
type queueItem struct {
	path  string
	depth int
}

// NewResolver creates a dependency resolver.
//
// Inputs:
//
//	env - The execution environment holding the project.
//	completer - The oracle used for discovery and extraction queries.
//	langCfg - The target language.
//	log - Logger. Nil uses the default logger.
func NewResolver(env sandbox.Environment, completer Completer, langCfg *lang.Config, log *logging.Logger) *Resolver {
	if log == nil {
		log = logging.Default()
	}
	return &Resolver{
		env:    env,
		oracle: completer,
		lang:   langCfg,
		log:    log,
	}
}

// Resolve returns a dependency-ordered context blob for targetFile.
//
// Description:
//
//	Runs a breadth-first walk seeded with (targetFile, depth 0). Each
//	file is read from the environment, reduced to the code the target
//	invokes (the target itself is kept verbatim), and asked for its own
//	dependencies, which are enqueued one level deeper when they exist.
//	A file's dependencies are expanded exactly once, at the depth where
//	it was first discovered; later references to the same file are
//	no-ops, which is what breaks import cycles. The final text emits
//	every extracted file behind a "# File: {path}" header, dependencies
//	before dependents.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	targetFile - Path of the file under test, relative to the project root.
//	maxDepth - How many import hops to follow. 0 returns only the
//	    target's own content. Negative values are treated as 0.
//
// Outputs:
//
//	string - The assembled context. Empty when the target is unreadable
//	    or nothing was extracted.
//	error - Non-nil for invalid input, an unreachable environment, or a
//	    credential failure. Oracle errors and malformed oracle output
//	    degrade to smaller context instead of failing.
func (r *Resolver) Resolve(ctx context.Context, targetFile string, maxDepth int) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	targetFile = strings.TrimSpace(targetFile)
	if targetFile == "" {
		return "", ErrEmptyTarget
	}
	if maxDepth < 0 {
		maxDepth = 0
	}

	tree := r.projectTree(ctx)
	reexports := r.reexportInfo(ctx)

	visited := make(map[string]bool)
	extracted := make(map[string]string)
	edges := make(map[string][]string)

	queue := []queueItem{{path: targetFile, depth: 0}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if visited[item.path] || item.depth > maxDepth {
			continue
		}
		visited[item.path] = true

		content, err := r.env.ReadFile(ctx, item.path)
		if err != nil {
			if errors.Is(err, sandbox.ErrUnreachable) {
				return "", err
			}
			r.log.Warn("skipping unreadable file",
				slog.String("file", item.path),
				slog.Any("error", err))
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		r.log.Debug("resolving file",
			slog.String("file", item.path),
			slog.Int("depth", item.depth))

		if item.path == targetFile {
			extracted[item.path] = content
		} else {
			snippet, err := r.extractInvoked(ctx, extracted[targetFile], item.path, content)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(snippet) == "" {
				// Nothing in this file is used by the target, so its
				// own imports are irrelevant too.
				r.log.Debug("no invoked code found", slog.String("file", item.path))
				continue
			}
			extracted[item.path] = snippet
		}

		depFiles, err := r.dependentFiles(ctx, item.path, content, tree, reexports)
		if err != nil {
			return "", err
		}
		if len(depFiles) == 0 {
			continue
		}
		edges[item.path] = depFiles

		for _, dep := range depFiles {
			if visited[dep] {
				continue
			}
			exists, eerr := r.env.PathExists(ctx, dep)
			if eerr != nil {
				if errors.Is(eerr, sandbox.ErrUnreachable) {
					return "", eerr
				}
				continue
			}
			if !exists {
				r.log.Warn("dropping missing dependency",
					slog.String("file", item.path),
					slog.String("dependency", dep))
				continue
			}
			queue = append(queue, queueItem{path: dep, depth: item.depth + 1})
		}
	}

	if len(extracted) == 0 {
		return "", nil
	}
	return assemble(targetFile, extracted, edges, maxDepth), nil
}

// =============================================================================
// ORACLE QUERIES
// =============================================================================

// dependentFiles asks the oracle which project files filePath imports.
// Oracle failures and unparseable responses degrade to no dependencies;
// only a credential failure propagates.
func (r *Resolver) dependentFiles(ctx context.Context, filePath, content, tree, reexports string) ([]string, error) {
	prompt := buildDependentFilesPrompt(tree, filePath, content, r.lang.Name, reexports)
	resp, err := r.oracle.Complete(ctx, []oracle.Message{
		oracle.System(dependentFilesSystemPrompt),
		oracle.User(prompt),
	})
	if err != nil {
		if errors.Is(err, oracle.ErrNoCredential) {
			return nil, err
		}
		r.log.Warn("dependent-files query failed",
			slog.String("file", filePath),
			slog.Any("error", err))
		return nil, nil
	}
	return parseDependentFiles(resp), nil
}

// extractInvoked asks the oracle for the subset of content that codeQuery
// actually uses. Same degradation policy as dependentFiles.
func (r *Resolver) extractInvoked(ctx context.Context, codeQuery, filePath, content string) (string, error) {
	prompt := buildInvokedCodePrompt(codeQuery, content, r.lang.Name)
	resp, err := r.oracle.Complete(ctx, []oracle.Message{
		oracle.System(invokedCodeSystemPrompt),
		oracle.User(prompt),
	})
	if err != nil {
		if errors.Is(err, oracle.ErrNoCredential) {
			return "", err
		}
		r.log.Warn("invoked-code query failed",
			slog.String("file", filePath),
			slog.Any("error", err))
		return "", nil
	}
	return parseInvokedCode(resp), nil
}

// =============================================================================
// RESPONSE PARSING
// =============================================================================

type dependentFilesResponse struct {
	DependentFiles []string `json:"dependent_files"`
}

type invokedCodeResponse struct {
	InvokedCodeSnippet string `json:"invoked_code_snippet"`
}

func parseDependentFiles(response string) []string {
	var out dependentFilesResponse
	if err := json.Unmarshal([]byte(oracle.ExtractJSONPayload(response)), &out); err != nil {
		return nil
	}
	files := out.DependentFiles[:0]
	for _, f := range out.DependentFiles {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}

func parseInvokedCode(response string) string {
	var out invokedCodeResponse
	if err := json.Unmarshal([]byte(oracle.ExtractJSONPayload(response)), &out); err != nil {
		return ""
	}
	return out.InvokedCodeSnippet
}
