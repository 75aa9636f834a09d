// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deps

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/covgen/services/covgen/lang"
	"github.com/AleutianAI/covgen/services/covgen/sandbox"
)

// listTimeout bounds the directory listing commands. A project tree is
// cheap; anything slower than this is a stuck environment.
const listTimeout = 30 * time.Second

// projectTree returns a language-filtered listing of the project files,
// preferring the tree command and falling back to find when tree is not
// installed in the environment. Both failing yields an empty listing,
// which the discovery prompt tolerates.
func (r *Resolver) projectTree(ctx context.Context) string {
	res, err := r.env.Run(ctx, sandbox.CommandSpec{Argv: treeArgv(r.lang), Timeout: listTimeout})
	if err == nil && res.OK() && strings.TrimSpace(res.Stdout) != "" {
		return strings.TrimSpace(res.Stdout)
	}
	return r.findListing(ctx)
}

func (r *Resolver) findListing(ctx context.Context) string {
	res, err := r.env.Run(ctx, sandbox.CommandSpec{Argv: findArgv(r.lang), Timeout: listTimeout})
	if err != nil || !res.OK() {
		return ""
	}
	return formatListing(strings.Split(res.Stdout, "\n"))
}

func treeArgv(cfg *lang.Config) []string {
	if len(cfg.Extensions) == 0 {
		return []string{"tree"}
	}
	patterns := make([]string, 0, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		patterns = append(patterns, "*"+ext)
	}
	return []string{"tree", "-P", strings.Join(patterns, "|"), "--prune"}
}

func findArgv(cfg *lang.Config) []string {
	if len(cfg.Extensions) == 0 {
		return []string{"find", ".", "-type", "f", "-not", "-path", "./.git/*"}
	}
	argv := []string{"find", ".", "-type", "f", "("}
	for i, ext := range cfg.Extensions {
		if i > 0 {
			argv = append(argv, "-o")
		}
		argv = append(argv, "-name", "*"+ext)
	}
	return append(argv, ")")
}

// formatListing renders a flat path list as an indented tree, ordered by
// depth then name, with duplicates removed.
func formatListing(paths []string) string {
	clean := make([]string, 0, len(paths))
	seen := make(map[string]bool)
	for _, p := range paths {
		p = strings.TrimPrefix(strings.TrimSpace(p), "./")
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		clean = append(clean, p)
	}
	if len(clean) == 0 {
		return ""
	}

	sort.Slice(clean, func(i, j int) bool {
		di, dj := strings.Count(clean[i], "/"), strings.Count(clean[j], "/")
		if di != dj {
			return di < dj
		}
		return clean[i] < clean[j]
	})

	var sb strings.Builder
	sb.WriteString("Project Structure:")
	for _, p := range clean {
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("  ", strings.Count(p, "/")))
		sb.WriteString("├── ")
		sb.WriteString(path.Base(p))
	}
	return sb.String()
}

// reexportInfo collects the import lines of the language's package
// re-export files (for python, every __init__.py in the project). The
// discovery prompt uses them to follow symbols exposed through a package
// rather than defined in it.
func (r *Resolver) reexportInfo(ctx context.Context) string {
	if len(r.lang.ReexportFiles) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, name := range r.lang.ReexportFiles {
		for _, p := range r.findByName(ctx, name) {
			content, err := r.env.ReadFile(ctx, p)
			if err != nil {
				continue
			}
			imports := importLines(content, r.lang.ImportPrefixes)
			if len(imports) == 0 {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("File: ")
			sb.WriteString(p)
			sb.WriteString("\n")
			sb.WriteString(strings.Join(imports, "\n"))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (r *Resolver) findByName(ctx context.Context, name string) []string {
	res, err := r.env.Run(ctx, sandbox.CommandSpec{
		Argv:    []string{"find", ".", "-name", name, "-type", "f"},
		Timeout: listTimeout,
	})
	if err != nil || !res.OK() {
		return nil
	}
	var out []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimPrefix(strings.TrimSpace(line), "./")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func importLines(content string, prefixes []string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range prefixes {
			if strings.HasPrefix(trimmed, prefix) {
				out = append(out, trimmed)
				break
			}
		}
	}
	return out
}
