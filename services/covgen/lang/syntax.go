// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lang

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// =============================================================================
// SYNTAX GATE
// =============================================================================

// Grammar returns the tree-sitter grammar bundled for this language, or
// nil when none is.
func (c *Config) Grammar() *sitter.Language {
	switch c.Name {
	case "python":
		return python.GetLanguage()
	case "java":
		return java.GetLanguage()
	case "go":
		return golang.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "rust":
		return rust.GetLanguage()
	default:
		return nil
	}
}

// CheckSyntax reports whether code parses without syntax errors under the
// language's grammar.
//
// Description:
//
//	Used as a cheap gate before oracle-produced code is written into the
//	environment. Languages without a bundled grammar always pass, and a
//	parser failure (cancellation, out of memory) reports the code as
//	acceptable alongside the error so the gate never blocks the pipeline
//	on its own malfunction.
//
// Outputs:
//
//	bool - True when the code is syntactically valid or the gate cannot judge.
//	error - The parser failure, if any.
func (c *Config) CheckSyntax(ctx context.Context, code string) (bool, error) {
	grammar := c.Grammar()
	if grammar == nil {
		return true, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, []byte(code))
	if err != nil {
		return true, err
	}
	defer tree.Close()

	return !tree.RootNode().HasError(), nil
}
