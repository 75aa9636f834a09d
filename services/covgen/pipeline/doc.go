// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline sequences a complete coverage improvement run.
//
// The Orchestrator drives four phases against one sandboxed project:
//
//  1. Measure - run the suite, ingest coverage artifacts, build the baseline
//     snapshot of uncovered code.
//  2. Synthesize - ask the oracle for new tests targeting uncovered lines.
//  3. Apply - write the accepted tests into the environment.
//  4. Repair - iteratively diagnose and fix failures the new tests
//     introduced, re-measuring after each productive round.
//
// Every run ends with a report.RunReport: before/after coverage, the full
// trend, synthesized tests, and each fix attempt with its diff. When a
// journal is attached, iteration records and the report are persisted under
// the run's session ID.
//
// # Failure Policy
//
// Component failures degrade locally (a record is skipped, an attempt is
// marked failed) and the run still reports. Only two conditions abort a run:
// the oracle credential terminally failing and the environment becoming
// unreachable. Those surface as errors from Run.
//
// # Concurrency
//
// A run is strictly sequential; the environment is a single shared mutable
// resource with the pipeline as its only writer. Never share one environment
// between concurrent runs. The batch runner parallelizes across
// environments, one pipeline each.
//
// # Usage
//
//	orch, err := pipeline.Assemble(env, client, cfg, log)
//	if err != nil {
//	    return err
//	}
//	rep, err := orch.WithJournal(journal).Run(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(rep.Summary())
package pipeline
