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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSyntax_ValidPython(t *testing.T) {
	cfg, ok := Get("python")
	require.True(t, ok)

	valid, err := cfg.CheckSyntax(context.Background(), "def f():\n    return 1\n")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestCheckSyntax_InvalidPython(t *testing.T) {
	cfg, ok := Get("python")
	require.True(t, ok)

	valid, err := cfg.CheckSyntax(context.Background(), "def f(:\n    return\n")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestCheckSyntax_ValidGo(t *testing.T) {
	cfg, ok := Get("go")
	require.True(t, ok)

	valid, err := cfg.CheckSyntax(context.Background(), "package x\n\nfunc F() int { return 1 }\n")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestCheckSyntax_InvalidJava(t *testing.T) {
	cfg, ok := Get("java")
	require.True(t, ok)

	valid, err := cfg.CheckSyntax(context.Background(), "public class X { void f( { } }")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestCheckSyntax_UnknownLanguagePasses(t *testing.T) {
	cfg := &Config{Name: "cobol", Extensions: []string{".cbl"}}

	valid, err := cfg.CheckSyntax(context.Background(), "MOVE A TO B.")
	require.NoError(t, err)
	assert.True(t, valid, "languages without a grammar must not be gated")
}
