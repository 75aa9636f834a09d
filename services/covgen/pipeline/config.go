// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"strings"

	"github.com/AleutianAI/covgen/services/covgen/coverage"
	"github.com/AleutianAI/covgen/services/covgen/repair"
	"github.com/AleutianAI/covgen/services/covgen/synth"
)

// Config holds run-level settings plus the per-phase configurations that
// Assemble hands to the components it builds.
type Config struct {
	// Session fixes the run identifier. Empty means generate one.
	Session string `json:"session" yaml:"session"`

	// Language is the target language name ("python").
	Language string `json:"language" yaml:"language"`

	// Model names the oracle model for the report. Empty means take it
	// from the oracle client.
	Model string `json:"model" yaml:"model"`

	// Synthesis configures test generation.
	Synthesis *synth.Config `json:"synthesis" yaml:"synthesis"`

	// Repair configures the fix loop.
	Repair *repair.Config `json:"repair" yaml:"repair"`

	// Coverage configures measurement.
	Coverage *coverage.Config `json:"coverage" yaml:"coverage"`
}

// DefaultConfig returns a Python-targeted configuration with per-phase
// defaults.
func DefaultConfig() *Config {
	return &Config{
		Language:  "python",
		Synthesis: synth.DefaultConfig(),
		Repair:    repair.DefaultConfig(),
		Coverage:  coverage.DefaultConfig(),
	}
}

// Validate normalizes the configuration in place, filling missing sub-configs
// with defaults.
func (c *Config) Validate() error {
	c.Session = strings.TrimSpace(c.Session)
	c.Model = strings.TrimSpace(c.Model)
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	if c.Language == "" {
		c.Language = "python"
	}
	if c.Synthesis == nil {
		c.Synthesis = synth.DefaultConfig()
	}
	if err := c.Synthesis.Validate(); err != nil {
		return err
	}
	if c.Repair == nil {
		c.Repair = repair.DefaultConfig()
	}
	if err := c.Repair.Validate(); err != nil {
		return err
	}
	if c.Coverage == nil {
		c.Coverage = coverage.DefaultConfig()
	}
	return c.Coverage.Validate()
}
