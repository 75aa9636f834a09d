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

import "strings"

// assemble renders the extracted code in dependency order: a post-order
// walk from the start file emits each file's dependencies before the file
// itself, so definitions precede their uses in the final text.
//
// Description:
//
//	The walk keeps its own visited set, independent of the discovery
//	walk's, and applies the same depth bound. Files reachable along
//	multiple paths are emitted exactly once; cycles recorded in edges
//	terminate because a visited file is never re-entered.
func assemble(start string, codes map[string]string, edges map[string][]string, maxDepth int) string {
	var sb strings.Builder
	visited := make(map[string]bool)

	var emit func(path string, depth int)
	emit = func(path string, depth int) {
		if visited[path] || depth > maxDepth {
			return
		}
		code, ok := codes[path]
		if !ok {
			return
		}
		visited[path] = true

		for _, dep := range edges[path] {
			emit(dep, depth+1)
		}

		if strings.TrimSpace(code) == "" {
			return
		}
		sb.WriteString("# File: ")
		sb.WriteString(path)
		sb.WriteString("\n")
		sb.WriteString(code)
		sb.WriteString("\n\n")
	}

	emit(start, 0)
	return strings.TrimSuffix(sb.String(), "\n")
}
