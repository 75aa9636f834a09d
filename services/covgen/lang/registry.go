// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lang holds per-language settings shared by the coverage pipeline:
// source extensions, conventional test-file layout, suite commands, and the
// line filters used when deciding whether an uncovered line is meaningful.
package lang

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
)

// =============================================================================
// LANGUAGE CONFIGURATION
// =============================================================================

// Config defines pipeline settings for one language.
type Config struct {
	// Name is the language identifier (e.g., "python", "go").
	Name string

	// Extensions are source file extensions including the dot.
	Extensions []string

	// TestDir is the conventional directory for generated tests,
	// relative to the project root. Empty means "next to the source".
	TestDir string

	// SuiteArgv runs the full test suite under coverage instrumentation.
	// Executed through the sandbox; no placeholders.
	SuiteArgv []string

	// CoverageExportArgv converts collected coverage data into the
	// artifacts the ingestor reads. Empty when the suite command
	// already produces them.
	CoverageExportArgv []string

	// ReexportFiles are package files whose import lines re-export
	// symbols (e.g., __init__.py). Their contents inform dependency
	// discovery prompts.
	ReexportFiles []string

	// ImportPrefixes mark lines that declare imports or module wiring.
	// Used to pull the relevant lines out of ReexportFiles.
	ImportPrefixes []string

	// CommentPrefixes mark whole-line comments.
	CommentPrefixes []string

	// DocDelimiters open or close documentation strings.
	DocDelimiters []string

	// NoOpLines are statements with no executable effect.
	NoOpLines []string
}

// DefaultTestPath returns the conventional path for a generated test file
// covering sourcePath.
//
// Description:
//
//	Mirrors the layout each ecosystem expects: pytest discovers
//	tests/test_*.py, JUnit expects src/test/java/*Test.java, Go test
//	files live beside the code they cover. Unknown languages fall back
//	to a tests/ directory with the source extension preserved.
//
// Inputs:
//
//	sourcePath - Path of the file the test targets.
//
// Outputs:
//
//	string - Relative path for the generated test file.
func (c *Config) DefaultTestPath(sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	base := strings.TrimSuffix(filepath.Base(sourcePath), ext)

	switch c.Name {
	case "python":
		return fmt.Sprintf("tests/test_%s_extra.py", base)
	case "java":
		return fmt.Sprintf("src/test/java/%sExtraTest.java", upperCamel(base))
	case "go":
		dir := filepath.Dir(sourcePath)
		if dir == "." {
			return fmt.Sprintf("%s_extra_test.go", base)
		}
		return filepath.Join(dir, fmt.Sprintf("%s_extra_test.go", base))
	default:
		if ext == "" {
			ext = c.primaryExtension()
		}
		return fmt.Sprintf("tests/test_%s_extra%s", base, ext)
	}
}

// MeaninglessLine reports whether a trimmed source line carries no
// executable meaning for coverage purposes: blank lines, no-op statements,
// comments, and doc-string delimiters.
func (c *Config) MeaninglessLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	for _, noop := range c.NoOpLines {
		if trimmed == noop {
			return true
		}
	}
	for _, prefix := range c.CommentPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	for _, delim := range c.DocDelimiters {
		if strings.HasPrefix(trimmed, delim) {
			return true
		}
	}
	return false
}

// HasExtension reports whether path carries one of the language's source
// extensions.
func (c *Config) HasExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range c.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (c *Config) primaryExtension() string {
	if len(c.Extensions) > 0 {
		return c.Extensions[0]
	}
	return ""
}

func upperCamel(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	var b strings.Builder
	for _, p := range parts {
		runes := []rune(p)
		if len(runes) == 0 {
			continue
		}
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps language names to configurations.
//
// Thread Safety: Safe for concurrent reads after initialization.
// Register should only be called during setup.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*Config
}

// NewRegistry creates a registry preloaded with the built-in languages.
func NewRegistry() *Registry {
	r := &Registry{configs: make(map[string]*Config)}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.configs["python"] = &Config{
		Name:       "python",
		Extensions: []string{".py"},
		TestDir:    "tests",
		SuiteArgv: []string{
			"coverage", "run", "--source=.",
			"--omit=**/tests/**,**/test/**,**/*_test.py,**/conftest.py",
			"-m", "pytest", "--continue-on-collection-errors",
		},
		CoverageExportArgv: []string{"coverage", "json", "-o", "coverage.json"},
		ReexportFiles:      []string{"__init__.py"},
		ImportPrefixes:     []string{"import ", "from "},
		CommentPrefixes:    []string{"#"},
		DocDelimiters:      []string{`"""`, "'''"},
		NoOpLines:          []string{"pass", "..."},
	}

	r.configs["java"] = &Config{
		Name:            "java",
		Extensions:      []string{".java"},
		TestDir:         "src/test/java",
		SuiteArgv:       []string{"mvn", "-q", "test", "jacoco:report"},
		ImportPrefixes:  []string{"import ", "package "},
		CommentPrefixes: []string{"//", "*", "/*"},
		NoOpLines:       []string{";", "{", "}"},
	}

	r.configs["go"] = &Config{
		Name:            "go",
		Extensions:      []string{".go"},
		SuiteArgv:       []string{"go", "test", "-coverprofile=coverage.out", "./..."},
		ImportPrefixes:  []string{"import ", "package "},
		CommentPrefixes: []string{"//"},
		NoOpLines:       []string{"{", "}"},
	}

	r.configs["typescript"] = &Config{
		Name:            "typescript",
		Extensions:      []string{".ts", ".tsx"},
		TestDir:         "tests",
		SuiteArgv:       []string{"npx", "jest", "--coverage", "--passWithNoTests"},
		ReexportFiles:   []string{"index.ts"},
		ImportPrefixes:  []string{"import ", "export "},
		CommentPrefixes: []string{"//", "*", "/*"},
		NoOpLines:       []string{"{", "}", ";"},
	}

	r.configs["javascript"] = &Config{
		Name:            "javascript",
		Extensions:      []string{".js", ".jsx", ".mjs"},
		TestDir:         "tests",
		SuiteArgv:       []string{"npx", "jest", "--coverage", "--passWithNoTests"},
		ReexportFiles:   []string{"index.js"},
		ImportPrefixes:  []string{"import ", "export "},
		CommentPrefixes: []string{"//", "*", "/*"},
		NoOpLines:       []string{"{", "}", ";"},
	}

	r.configs["rust"] = &Config{
		Name:            "rust",
		Extensions:      []string{".rs"},
		TestDir:         "tests",
		SuiteArgv:       []string{"cargo", "tarpaulin", "--out", "Xml"},
		ImportPrefixes:  []string{"use ", "mod "},
		CommentPrefixes: []string{"//"},
		NoOpLines:       []string{"{", "}"},
	}
}

// Get returns the configuration for a language name.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Get(name string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[strings.ToLower(name)]
	return cfg, ok
}

// Register adds or replaces a language configuration.
//
// Thread Safety: Safe for concurrent use, intended for setup time.
func (r *Registry) Register(cfg *Config) {
	if cfg == nil || cfg.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[strings.ToLower(cfg.Name)] = cfg
}

// Names returns all registered language names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	return names
}

// ForFile returns the language owning the file's extension, if any.
func (r *Registry) ForFile(path string) (*Config, bool) {
	ext := filepath.Ext(path)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cfg := range r.configs {
		for _, e := range cfg.Extensions {
			if e == ext {
				return cfg, true
			}
		}
	}
	return nil, false
}

// =============================================================================
// DEFAULT REGISTRY
// =============================================================================

// Defaults is the shared language registry.
var Defaults = NewRegistry()

// Get is a convenience lookup on the default registry.
func Get(name string) (*Config, bool) {
	return Defaults.Get(name)
}
