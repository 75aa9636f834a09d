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
	"time"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	reportJournal    string // Journal path override
	reportJSON       bool   // Print the report as JSON
	reportIterations bool   // Include the per-iteration coverage trail
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	reportCmd.Flags().StringVar(&reportJournal, "journal", "",
		"Journal path override")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false,
		"Print the report as JSON")
	reportCmd.Flags().BoolVar(&reportIterations, "iterations", false,
		"Include the per-iteration coverage trail")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runReportCommand shows a journaled run, or lists sessions when no
// session is named.
//
// # Description
//
// With a session argument, loads that run's report from the journal and
// prints it. Without one, lists every journaled session.
//
// # Inputs
//
//   - cmd: Cobra command (unused)
//   - args: Optional session id
//
// # Outputs
//
// Prints the report or session list to stdout. Exits with code 1 when
// the journal cannot be opened or the session is unknown.
func runReportCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log := newLogger("cli")
	defer log.Close()

	journal, err := openJournal(reportJournal, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		os.Exit(1)
	}
	defer journal.Close()

	if len(args) == 0 {
		sessions, err := journal.Sessions(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list sessions: %v\n", err)
			os.Exit(1)
		}
		if len(sessions) == 0 {
			fmt.Println("No journaled runs.")
			return
		}
		for _, session := range sessions {
			fmt.Println(session)
		}
		return
	}

	session := args[0]
	rep, err := journal.LoadReport(ctx, session)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load report for %s: %v\n", session, err)
		os.Exit(1)
	}

	if reportJSON {
		data, err := rep.JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode report: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	fmt.Println(rep.Summary())

	if reportIterations {
		records, err := journal.Iterations(ctx, session)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load iterations: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Println("  no repair iterations recorded")
			return
		}
		for _, rec := range records {
			pct := "-"
			if rec.Snapshot != nil {
				pct = fmt.Sprintf("%.1f%%", rec.Snapshot.Percentage)
			}
			fmt.Printf("  iteration %d: %d errors found, %d fixed, coverage %s\n",
				rec.Iteration, rec.ErrorsFound, rec.ErrorsFixed, pct)
		}
	}
}
