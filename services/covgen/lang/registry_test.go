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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()

	cfg, ok := r.Get("python")
	require.True(t, ok)
	assert.Equal(t, "python", cfg.Name)
	assert.Contains(t, cfg.Extensions, ".py")

	cfg, ok = r.Get("PYTHON")
	require.True(t, ok, "lookup should be case-insensitive")
	assert.Equal(t, "python", cfg.Name)

	_, ok = r.Get("cobol")
	assert.False(t, ok)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register(&Config{
		Name:       "kotlin",
		Extensions: []string{".kt"},
	})

	cfg, ok := r.Get("kotlin")
	require.True(t, ok)
	assert.Equal(t, []string{".kt"}, cfg.Extensions)

	// Nil and unnamed configs are ignored.
	before := len(r.Names())
	r.Register(nil)
	r.Register(&Config{Extensions: []string{".x"}})
	assert.Len(t, r.Names(), before)
}

func TestRegistry_ForFile(t *testing.T) {
	r := NewRegistry()

	cfg, ok := r.ForFile("src/app/service.py")
	require.True(t, ok)
	assert.Equal(t, "python", cfg.Name)

	cfg, ok = r.ForFile("web/index.tsx")
	require.True(t, ok)
	assert.Equal(t, "typescript", cfg.Name)

	_, ok = r.ForFile("README.md")
	assert.False(t, ok)
}

func TestConfig_DefaultTestPath(t *testing.T) {
	tests := []struct {
		name   string
		lang   string
		source string
		want   string
	}{
		{"python module", "python", "src/billing/invoice.py", "tests/test_invoice_extra.py"},
		{"python root file", "python", "app.py", "tests/test_app_extra.py"},
		{"java class", "java", "src/main/java/com/acme/OrderService.java", "src/test/java/OrderServiceExtraTest.java"},
		{"java snake name", "java", "src/order_service.java", "src/test/java/OrderServiceExtraTest.java"},
		{"go package file", "go", "internal/ledger/ledger.go", "internal/ledger/ledger_extra_test.go"},
		{"go root file", "go", "main.go", "main_extra_test.go"},
		{"typescript module", "typescript", "src/lib/parse.ts", "tests/test_parse_extra.ts"},
		{"javascript module", "javascript", "lib/util.js", "tests/test_util_extra.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, ok := Get(tt.lang)
			require.True(t, ok)
			assert.Equal(t, tt.want, cfg.DefaultTestPath(tt.source))
		})
	}
}

func TestConfig_MeaninglessLine(t *testing.T) {
	cfg, ok := Get("python")
	require.True(t, ok)

	meaningless := []string{
		"",
		"   ",
		"pass",
		"  pass  ",
		"...",
		"# a comment",
		"   # indented comment",
		`"""Docstring opener.`,
		"'''",
	}
	for _, line := range meaningless {
		assert.True(t, cfg.MeaninglessLine(line), "line %q should be meaningless", line)
	}

	meaningful := []string{
		"return balance",
		"x = compute()",
		"if ready:",
		"raise ValueError(msg)",
	}
	for _, line := range meaningful {
		assert.False(t, cfg.MeaninglessLine(line), "line %q should be meaningful", line)
	}
}

func TestConfig_HasExtension(t *testing.T) {
	cfg, ok := Get("typescript")
	require.True(t, ok)

	assert.True(t, cfg.HasExtension("a/b.ts"))
	assert.True(t, cfg.HasExtension("a/b.tsx"))
	assert.False(t, cfg.HasExtension("a/b.js"))
}
