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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/covgen/pkg/logging"
	"github.com/AleutianAI/covgen/pkg/ux"
	"github.com/AleutianAI/covgen/pkg/validation"
	"github.com/AleutianAI/covgen/services/covgen/oracle"
	"github.com/AleutianAI/covgen/services/covgen/pipeline"
	"github.com/AleutianAI/covgen/services/covgen/sandbox"
	"github.com/AleutianAI/covgen/services/covgen/store"
	"github.com/AleutianAI/covgen/services/covgen/telemetry"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	batchFile     string // CSV roster of targets
	batchParallel int    // Concurrent pipelines
	batchModel    string // Oracle model override
	batchJournal  string // Journal path override
	batchKeep     bool   // Keep started containers after their run
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "",
		"CSV roster: name,image,workdir,language (image and later columns optional)")
	batchCmd.Flags().IntVarP(&batchParallel, "parallel", "p", 2,
		"Number of targets to process concurrently")
	batchCmd.Flags().StringVarP(&batchModel, "model", "m", "",
		"Oracle model override")
	batchCmd.Flags().StringVar(&batchJournal, "journal", "",
		"Journal path override")
	batchCmd.Flags().BoolVar(&batchKeep, "keep", false,
		"Keep containers started by the batch after their run")
	_ = batchCmd.MarkFlagRequired("file")
}

// =============================================================================
// ROSTER PARSING
// =============================================================================

// batchTarget is one row of the roster.
type batchTarget struct {
	Name     string // Container name
	Image    string // Image to start the container from; empty means already running
	Workdir  string // Repository root inside the container
	Language string // Target language; empty uses the configured default
}

// parseBatchFile reads the CSV roster.
//
// Columns: name,image,workdir,language. Only name is required. A header
// row naming the first column "name" and lines starting with # are
// skipped.
func parseBatchFile(path string) ([]batchTarget, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	r.TrimLeadingSpace = true

	var targets []batchTarget
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse roster: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		raw := strings.TrimSpace(record[0])
		if raw == "" || strings.EqualFold(raw, "name") {
			continue
		}
		name, err := validation.SanitizeContainerName(raw)
		if err != nil {
			return nil, fmt.Errorf("roster %s: %w", path, err)
		}
		tgt := batchTarget{Name: name}
		if len(record) > 1 {
			tgt.Image = strings.TrimSpace(record[1])
			if tgt.Image != "" {
				if err := validation.ValidateImageRef(tgt.Image); err != nil {
					return nil, fmt.Errorf("roster %s: %w", path, err)
				}
			}
		}
		if len(record) > 2 {
			tgt.Workdir = strings.TrimSpace(record[2])
		}
		if len(record) > 3 {
			tgt.Language = strings.TrimSpace(record[3])
		}
		if tgt.Workdir == "" {
			tgt.Workdir = "/app"
		}
		targets = append(targets, tgt)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("roster %s names no targets", path)
	}
	return targets, nil
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// batchResult is the outcome of one roster row.
type batchResult struct {
	Target  string
	Session string
	Before  float64
	After   float64
	State   string
	Err     error
}

// runBatchCommand processes every roster row, a bounded number at a time.
//
// # Description
//
// Each target gets its own sandbox environment and pipeline; the oracle
// client and journal are shared. A failing target is recorded and does
// not stop the rest of the roster.
//
// # Inputs
//
//   - cmd: Cobra command (unused)
//   - args: Command arguments (unused)
//
// # Outputs
//
// Prints a per-target summary table. Exits with code 1 if any target
// failed.
func runBatchCommand(cmd *cobra.Command, args []string) {
	if code := executeBatch(); code != 0 {
		os.Exit(code)
	}
}

func executeBatch() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger("batch")
	defer log.Close()

	shutdown, err := telemetry.Init(ctx, telemetryConfig())
	if err != nil {
		ux.Error("Telemetry init failed: %v", err)
		return 1
	}
	defer func() { _ = shutdown(context.Background()) }()

	targets, err := parseBatchFile(batchFile)
	if err != nil {
		ux.Error("%v", err)
		return 1
	}

	client, err := oracle.NewClient(oracleConfig(batchModel), oracle.DefaultCredentials(), log)
	if err != nil {
		ux.Error("Oracle client failed: %v", err)
		return 1
	}

	journal, err := openJournal(batchJournal, log)
	if err != nil {
		ux.Warning("Journal unavailable, continuing without it: %v", err)
		journal = nil
	} else {
		defer journal.Close()
	}

	manager := sandbox.NewDockerManager(sandboxConfig(), log)

	ux.Title("Batch coverage run")
	ux.Info("Processing %d targets (%d at a time)", len(targets), batchParallel)

	var (
		mu      sync.Mutex
		results []batchResult
	)
	if batchParallel < 1 {
		batchParallel = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(batchParallel)
	for _, tgt := range targets {
		g.Go(func() error {
			res := runTarget(ctx, tgt, client, journal, manager, log)
			mu.Lock()
			results = append(results, res)
			icon, detail := ux.IconSuccess, fmt.Sprintf("%.1f%% (%+.1f%%)", res.After, res.After-res.Before)
			if res.Err != nil {
				icon, detail = ux.IconError, res.Err.Error()
			}
			ux.TargetStatus(res.Target, icon, detail)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	printBatchSummary(results)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	ux.Summary(len(results)-failed, failed)
	if failed > 0 {
		return 1
	}
	return 0
}

// runTarget runs one pipeline against one roster row.
func runTarget(ctx context.Context, tgt batchTarget, client *oracle.Client,
	journal *store.Journal, manager *sandbox.DockerManager, log *logging.Logger) batchResult {

	res := batchResult{Target: tgt.Name}

	if tgt.Image != "" {
		if err := manager.EnsureRunning(ctx, tgt.Name, tgt.Image); err != nil {
			res.Err = fmt.Errorf("start environment: %w", err)
			return res
		}
		if !batchKeep {
			// Background context so cleanup survives a canceled run.
			defer func() {
				if err := manager.Remove(context.Background(), tgt.Name); err != nil {
					log.Warn("Failed to remove batch container", "container", tgt.Name, "error", err)
				}
			}()
		}
	}

	env := sandbox.NewDockerEnv(tgt.Name, tgt.Workdir, sandboxConfig(), log)
	orch, err := pipeline.Assemble(env, client, pipelineConfig(tgt.Language, ""), log)
	if err != nil {
		res.Err = err
		return res
	}
	if journal != nil {
		orch.WithJournal(journal)
	}

	rep, err := orch.Run(ctx)
	if err != nil {
		res.Err = err
		return res
	}

	res.Session = rep.Session
	res.Before = rep.BeforePercent
	res.After = rep.AfterPercent
	res.State = string(rep.RepairState)
	return res
}

// printBatchSummary renders the per-target table, sorted by target name.
func printBatchSummary(results []batchResult) {
	sort.Slice(results, func(i, j int) bool { return results[i].Target < results[j].Target })

	fmt.Printf("\n%-24s %-10s %8s %8s %8s  %s\n",
		"TARGET", "SESSION", "BEFORE", "AFTER", "GAIN", "STATE")
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("%-24s %-10s %8s %8s %8s  ERROR: %v\n",
				res.Target, "-", "-", "-", "-", res.Err)
			continue
		}
		fmt.Printf("%-24s %-10s %7.1f%% %7.1f%% %+7.1f%%  %s\n",
			res.Target, res.Session, res.Before, res.After, res.After-res.Before, res.State)
	}
}
