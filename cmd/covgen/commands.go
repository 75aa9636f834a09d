// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/covgen/cmd/covgen/config"
	"github.com/AleutianAI/covgen/pkg/logging"
	"github.com/AleutianAI/covgen/services/covgen/oracle"
	"github.com/AleutianAI/covgen/services/covgen/pipeline"
	"github.com/AleutianAI/covgen/services/covgen/sandbox"
	"github.com/AleutianAI/covgen/services/covgen/store"
	"github.com/AleutianAI/covgen/services/covgen/telemetry"
)

// Version is the CLI version.
const Version = "0.1.0"

// --- Global Command Variables ---
var (
	cfgFile          string // Path to an alternate config file
	verbose          bool   // Enable debug logging
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	rootCmd = &cobra.Command{
		Use:   "covgen",
		Short: "A cli to raise test coverage of a repository with an LLM in the loop",
		Long: `Covgen measures the test coverage of a target repository, asks a
completion model to synthesize tests for the least-covered files,
applies them inside a sandboxed environment, and repairs failing
tests until the suite passes or the fix budget runs out. Every run
is journaled and reported.`,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run one coverage improvement pipeline against a target",
		Args:  cobra.NoArgs,
		Run:   runRunCommand, // Defined in cmd_run.go
	}

	batchCmd = &cobra.Command{
		Use:   "batch",
		Short: "Run the pipeline against a roster of targets from a CSV file",
		Args:  cobra.NoArgs,
		Run:   runBatchCommand, // Defined in cmd_batch.go
	}

	reportCmd = &cobra.Command{
		Use:   "report [session]",
		Short: "Show a journaled run report",
		Args:  cobra.MaximumNArgs(1),
		Run:   runReportCommand, // Defined in cmd_report.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the covgen version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("covgen " + Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Path to the config file (default ~/.covgen/covgen.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output personality level: full, standard, minimal, or machine")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(envCmd) // Defined in cmd_env.go
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// newLogger builds the CLI logger, honoring the verbose flag.
func newLogger(service string) *logging.Logger {
	cfg := logging.Config{Service: service}
	if verbose {
		cfg.Level = logging.LevelDebug
	}
	return logging.New(cfg)
}

// expandHome resolves a leading ~ against the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}

// oracleConfig maps the CLI config onto the oracle client configuration.
// modelOverride, when non-empty, wins over the configured model.
func oracleConfig(modelOverride string) *oracle.Config {
	src := config.Global.Oracle
	cfg := oracle.DefaultConfig()
	if src.Endpoint != "" {
		cfg.Endpoint = src.Endpoint
	}
	if src.Model != "" {
		cfg.Model = src.Model
	}
	if modelOverride != "" {
		cfg.Model = modelOverride
	}
	cfg.IntegrationID = src.IntegrationID
	cfg.Scope = src.Scope
	if src.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(src.TimeoutSeconds) * time.Second
	}
	if src.MaxRetries > 0 {
		cfg.MaxRetries = src.MaxRetries
	}
	cfg.RequestsPerMinute = src.RequestsPerMinute
	cfg.EnableBreaker = src.EnableBreaker
	return cfg
}

// sandboxConfig maps the CLI config onto the sandbox configuration.
func sandboxConfig() *sandbox.Config {
	src := config.Global.Sandbox
	cfg := sandbox.DefaultConfig()
	if src.CommandTimeoutSeconds > 0 {
		cfg.CommandTimeout = time.Duration(src.CommandTimeoutSeconds) * time.Second
	}
	if src.MaxOutputKB > 0 {
		cfg.MaxOutputBytes = src.MaxOutputKB * 1024
	}
	return cfg
}

// pipelineConfig maps the CLI config onto the pipeline configuration.
// Flag overrides win over the file. The model is left empty; the
// orchestrator fills it from the oracle client.
func pipelineConfig(language, session string) *pipeline.Config {
	run := config.Global.Run
	cfg := pipeline.DefaultConfig()
	if run.Language != "" {
		cfg.Language = run.Language
	}
	if language != "" {
		cfg.Language = language
	}
	cfg.Session = session
	if run.MaxFixIterations > 0 {
		cfg.Repair.MaxFixIterations = run.MaxFixIterations
	}
	cfg.Repair.AllowCommands = run.AllowCommands
	if run.ContextDepth > 0 {
		cfg.Synthesis.ContextDepth = run.ContextDepth
	}
	if run.SuiteTimeoutSeconds > 0 {
		cfg.Coverage.SuiteTimeout = time.Duration(run.SuiteTimeoutSeconds) * time.Second
	}
	return cfg
}

// telemetryConfig maps the CLI config onto the telemetry configuration.
func telemetryConfig() telemetry.Config {
	src := config.Global.Telemetry
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "covgen"
	cfg.ServiceVersion = Version
	if src.Environment != "" {
		cfg.Environment = src.Environment
	}
	if src.TraceExporter != "" {
		cfg.TraceExporter = src.TraceExporter
	}
	if src.MetricExporter != "" {
		cfg.MetricExporter = src.MetricExporter
	}
	if src.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = src.OTLPEndpoint
	}
	return cfg
}

// openJournal opens the run journal at the given path, falling back to
// the configured path and then to ~/.covgen/journal.
func openJournal(path string, log *logging.Logger) (*store.Journal, error) {
	if path == "" {
		path = config.Global.Journal.Path
	}
	if path == "" {
		path = "~/.covgen/journal"
	}
	path = expandHome(path)
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	cfg := store.DefaultConfig(path)
	cfg.Logger = log
	return store.Open(cfg)
}
