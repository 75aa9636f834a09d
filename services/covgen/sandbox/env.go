// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sandbox is the execution-environment boundary of the coverage
// pipeline. The pipeline only ever asks an Environment for four things:
// run a command, read a file, write a file, check a path. Two
// implementations exist, a local working tree and a Docker container;
// the pipeline never assumes which one it is talking to.
package sandbox

import (
	"context"
	"time"
)

// =============================================================================
// COMMAND MODEL
// =============================================================================

// CommandSpec is a structured command: explicit argv, working directory,
// and timeout. Commands cross the environment boundary as argument
// vectors, never as interpolated shell strings.
type CommandSpec struct {
	// Argv is the program and its arguments. Must not be empty.
	Argv []string `json:"argv"`

	// Workdir is the working directory, relative to the environment
	// root unless absolute. Empty runs at the root.
	Workdir string `json:"workdir,omitempty"`

	// Timeout bounds the execution. Zero uses the environment default.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ShellCommand wraps a raw shell string in an explicit argv. Oracle
// command fixes arrive as shell strings; everything the pipeline builds
// itself should pass explicit argv instead.
func ShellCommand(command string) CommandSpec {
	return CommandSpec{Argv: []string{"/bin/sh", "-c", command}}
}

// ExecResult captures one command execution.
type ExecResult struct {
	// Stdout is the captured standard output, possibly truncated.
	Stdout string `json:"stdout"`

	// Stderr is the captured standard error, possibly truncated.
	Stderr string `json:"stderr"`

	// ExitCode is the process exit code, -1 when the process did not
	// exit normally.
	ExitCode int `json:"exit_code"`

	// TimedOut reports whether the timeout expired.
	TimedOut bool `json:"timed_out"`

	// Truncated reports whether output capture hit the size limit.
	Truncated bool `json:"truncated"`

	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"duration"`
}

// Combined returns stdout followed by stderr, the form the repair loop
// feeds to error diagnosis.
func (r *ExecResult) Combined() string {
	return r.Stdout + r.Stderr
}

// OK reports whether the command exited zero without timing out.
func (r *ExecResult) OK() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// =============================================================================
// ENVIRONMENT INTERFACE
// =============================================================================

// Environment is the boundary to the workspace whose coverage is being
// improved. All pipeline file access and command execution goes through
// it.
//
// Implementations treat the workspace as a single shared mutable
// resource; the pipeline is its sole writer within a run.
type Environment interface {
	// Run executes spec and captures its output. A non-zero exit is not
	// an error; err is reserved for the environment itself failing
	// (timeout, unreachable, spawn failure).
	Run(ctx context.Context, spec CommandSpec) (*ExecResult, error)

	// ReadFile returns the file's content.
	ReadFile(ctx context.Context, path string) (string, error)

	// WriteFile replaces the file's content, creating parent
	// directories as needed.
	WriteFile(ctx context.Context, path string, content string) error

	// PathExists reports whether the path exists.
	PathExists(ctx context.Context, path string) (bool, error)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds settings shared by environment implementations.
type Config struct {
	// CommandTimeout bounds commands whose spec carries no timeout.
	// Default: 5m
	CommandTimeout time.Duration

	// MaxOutputBytes caps captured output per stream. Output beyond
	// this is discarded and the result is flagged truncated.
	// Default: 1MB
	MaxOutputBytes int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CommandTimeout: 5 * time.Minute,
		MaxOutputBytes: 1 << 20,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.CommandTimeout < time.Second {
		c.CommandTimeout = 5 * time.Minute
	}
	if c.MaxOutputBytes < 1024 {
		c.MaxOutputBytes = 1 << 20
	}
	return nil
}
