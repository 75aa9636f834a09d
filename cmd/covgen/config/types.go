// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

// CovgenConfig is the on-disk CLI configuration. Every field has a
// working default, so a partial file only overrides what it names.
type CovgenConfig struct {
	// Oracle: the completion endpoint the pipeline talks to
	Oracle OracleConfig `yaml:"oracle"`

	// Sandbox: command execution inside the target environment
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Run: pipeline behavior knobs
	Run RunConfig `yaml:"run"`

	// Journal: where run reports are persisted
	Journal JournalConfig `yaml:"journal"`

	// Telemetry: trace and metric exporters
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type OracleConfig struct {
	Endpoint          string `yaml:"endpoint,omitempty"`       // e.g. https://api.openai.com/v1
	Model             string `yaml:"model"`                    // e.g. gpt-4o-mini
	IntegrationID     string `yaml:"integration_id,omitempty"` // sent as X-Integration-Id
	Scope             string `yaml:"scope,omitempty"`          // sent as X-Auth-Scope
	TimeoutSeconds    int    `yaml:"timeout_seconds"`          // per-attempt budget
	MaxRetries        int    `yaml:"max_retries"`              // retries after the first attempt
	RequestsPerMinute int    `yaml:"requests_per_minute"`      // 0 disables pacing
	EnableBreaker     bool   `yaml:"enable_breaker"`           // circuit-break persistent failures
}

type SandboxConfig struct {
	Workdir               string `yaml:"workdir"`                 // repository root inside the container
	CommandTimeoutSeconds int    `yaml:"command_timeout_seconds"` // default timeout per command
	MaxOutputKB           int    `yaml:"max_output_kb"`           // captured output cap per stream
}

type RunConfig struct {
	Language            string `yaml:"language"`              // e.g. python
	MaxFixIterations    int    `yaml:"max_fix_iterations"`    // diagnose-fix-measure rounds
	AllowCommands       bool   `yaml:"allow_commands"`        // let the oracle propose shell fixes
	ContextDepth        int    `yaml:"context_depth"`         // dependency hops for prompt context
	SuiteTimeoutSeconds int    `yaml:"suite_timeout_seconds"` // full test suite budget
}

type JournalConfig struct {
	Path string `yaml:"path"` // e.g. ~/.covgen/journal
}

type TelemetryConfig struct {
	// Environment tags exported telemetry: development, staging, production.
	Environment string `yaml:"environment"`

	// TraceExporter can be "none", "otlp", or "stdout".
	TraceExporter string `yaml:"trace_exporter"`

	// MetricExporter can be "none", "prometheus", or "stdout".
	MetricExporter string `yaml:"metric_exporter"`

	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"` // e.g. localhost:4317
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() CovgenConfig {
	return CovgenConfig{
		Oracle: OracleConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 300,
			MaxRetries:     3,
		},
		Sandbox: SandboxConfig{
			Workdir:               "/app",
			CommandTimeoutSeconds: 300,
			MaxOutputKB:           1024,
		},
		Run: RunConfig{
			Language:            "python",
			MaxFixIterations:    3,
			AllowCommands:       true,
			ContextDepth:        4,
			SuiteTimeoutSeconds: 600,
		},
		Journal: JournalConfig{
			Path: "~/.covgen/journal",
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
		},
	}
}
