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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/covgen/cmd/covgen/config"
	"github.com/AleutianAI/covgen/pkg/logging"
	"github.com/AleutianAI/covgen/pkg/ux"
	"github.com/AleutianAI/covgen/pkg/validation"
	"github.com/AleutianAI/covgen/services/covgen/oracle"
	"github.com/AleutianAI/covgen/services/covgen/pipeline"
	"github.com/AleutianAI/covgen/services/covgen/sandbox"
	"github.com/AleutianAI/covgen/services/covgen/status"
	"github.com/AleutianAI/covgen/services/covgen/store"
	"github.com/AleutianAI/covgen/services/covgen/telemetry"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	runContainer string // Target container name
	runDir       string // Local directory target (instead of a container)
	runWorkdir   string // Repository root inside the container
	runLanguage  string // Override the configured language
	runModel     string // Override the configured oracle model
	runSession   string // Fixed session id (default: generated)
	runJournal   string // Journal path override
	runServeAddr string // Serve live status on this address during the run
	runJSONOut   bool   // Print the final report as JSON
	runNoJournal bool   // Skip journaling
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	runCmd.Flags().StringVar(&runContainer, "container", "",
		"Name of the running target container")
	runCmd.Flags().StringVar(&runDir, "dir", "",
		"Local directory to target instead of a container")
	runCmd.Flags().StringVar(&runWorkdir, "workdir", "",
		"Repository root inside the container (default from config)")
	runCmd.Flags().StringVarP(&runLanguage, "language", "l", "",
		"Target language (e.g. python)")
	runCmd.Flags().StringVarP(&runModel, "model", "m", "",
		"Oracle model override")
	runCmd.Flags().StringVar(&runSession, "session", "",
		"Session id for the run (default: generated)")
	runCmd.Flags().StringVar(&runJournal, "journal", "",
		"Journal path override")
	runCmd.Flags().StringVar(&runServeAddr, "serve", "",
		"Serve live run status on this address (e.g. :8080)")
	runCmd.Flags().BoolVar(&runJSONOut, "json", false,
		"Print the final report as JSON")
	runCmd.Flags().BoolVar(&runNoJournal, "no-journal", false,
		"Do not journal this run")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runRunCommand executes one coverage improvement run.
//
// # Description
//
// Assembles the pipeline against the flagged target, runs it to
// completion, and prints the final report. A status server is started
// for the duration of the run when --serve is set.
//
// # Inputs
//
//   - cmd: Cobra command (unused)
//   - args: Command arguments (unused)
//
// # Outputs
//
// Prints the run report to stdout. Exits with code 1 on failure.
func runRunCommand(cmd *cobra.Command, args []string) {
	if code := executeRun(); code != 0 {
		os.Exit(code)
	}
}

// executeRun carries the run so deferred cleanup survives the exit path.
func executeRun() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runSession != "" {
		if err := validation.ValidateSessionID(runSession); err != nil {
			ux.Error("%v", err)
			return 1
		}
	}

	log := newLogger("cli")
	defer log.Close()

	shutdown, err := telemetry.Init(ctx, telemetryConfig())
	if err != nil {
		ux.Error("Telemetry init failed: %v", err)
		return 1
	}
	defer func() { _ = shutdown(context.Background()) }()

	env, err := buildEnvironment(log)
	if err != nil {
		ux.Error("%v", err)
		return 1
	}

	client, err := oracle.NewClient(oracleConfig(runModel), oracle.DefaultCredentials(), log)
	if err != nil {
		ux.Error("Oracle client failed: %v", err)
		return 1
	}

	orch, err := pipeline.Assemble(env, client, pipelineConfig(runLanguage, runSession), log)
	if err != nil {
		ux.Error("Pipeline assembly failed: %v", err)
		return 1
	}

	if !runJSONOut {
		ux.Title("Coverage run")
		target := runContainer
		if target == "" {
			target = runDir
		}
		ux.Info("Target: %s", target)
		ux.Info("Model: %s", client.Model())
	}

	var journal *store.Journal
	if !runNoJournal {
		journal, err = openJournal(runJournal, log)
		if err != nil {
			// The run is still useful without a journal.
			ux.Warning("Journal unavailable, continuing without it: %v", err)
		} else {
			defer journal.Close()
			orch.WithJournal(journal)
		}
	}

	if runServeAddr != "" {
		deps := status.Deps{Progress: orch.Tracker(), Oracle: client}
		if journal != nil {
			deps.Reports = journal
		}
		srv := status.NewServer(deps, log)
		go func() {
			if err := srv.Run(ctx, runServeAddr); err != nil {
				log.Error("Status server failed", "error", err)
			}
		}()
		if !runJSONOut {
			ux.Info("Status server on %s", runServeAddr)
		}
	}

	rep, err := orch.Run(ctx)
	if err != nil {
		ux.Error("Run failed: %v", err)
		return 1
	}

	if runJSONOut {
		data, err := rep.JSON()
		if err != nil {
			ux.Error("Failed to encode report: %v", err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		ux.Success("Run %s complete", rep.Session)
		fmt.Println(rep.Summary())
	}
	return 0
}

// buildEnvironment picks the sandbox from the target flags.
func buildEnvironment(log *logging.Logger) (sandbox.Environment, error) {
	switch {
	case runContainer != "" && runDir != "":
		return nil, fmt.Errorf("--container and --dir are mutually exclusive")
	case runContainer != "":
		if err := validation.ValidateContainerName(runContainer); err != nil {
			return nil, err
		}
		workdir := runWorkdir
		if workdir == "" {
			workdir = config.Global.Sandbox.Workdir
		}
		if workdir == "" {
			workdir = "/app"
		}
		return sandbox.NewDockerEnv(runContainer, workdir, sandboxConfig(), log), nil
	case runDir != "":
		return sandbox.NewLocalEnv(expandHome(runDir), sandboxConfig(), log)
	default:
		return nil, fmt.Errorf("a target is required: --container <name> or --dir <path>")
	}
}
