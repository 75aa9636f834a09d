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
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/covgen/pkg/logging"
	"github.com/AleutianAI/covgen/services/covgen/coverage"
	"github.com/AleutianAI/covgen/services/covgen/deps"
	"github.com/AleutianAI/covgen/services/covgen/lang"
	"github.com/AleutianAI/covgen/services/covgen/oracle"
	"github.com/AleutianAI/covgen/services/covgen/repair"
	"github.com/AleutianAI/covgen/services/covgen/report"
	"github.com/AleutianAI/covgen/services/covgen/sandbox"
	"github.com/AleutianAI/covgen/services/covgen/synth"
)

// =============================================================================
// COMPONENT INTERFACES
// =============================================================================

// Measurer produces coverage snapshots of the environment's current state.
type Measurer interface {
	Measure(ctx context.Context) (*coverage.Snapshot, error)
}

// Synthesizer generates test files for a snapshot's uncovered code.
type Synthesizer interface {
	Synthesize(ctx context.Context, snap *coverage.Snapshot) (map[string]string, []synth.GeneratedTest, error)
}

// Repairer runs the iterative fix loop against the environment.
type Repairer interface {
	Repair(ctx context.Context) (*repair.Outcome, error)
}

// RunJournal persists iteration records and the final report.
type RunJournal interface {
	SaveIteration(ctx context.Context, session string, rec *repair.IterationRecord) error
	SaveReport(ctx context.Context, rep *report.RunReport) error
}

// =============================================================================
// PROGRESS TRACKING
// =============================================================================

// Phase identifies where a run currently is.
type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhaseMeasuring    Phase = "MEASURING"
	PhaseSynthesizing Phase = "SYNTHESIZING"
	PhaseApplying     Phase = "APPLYING"
	PhaseRepairing    Phase = "REPAIRING"
	PhaseReporting    Phase = "REPORTING"
	PhaseDone         Phase = "DONE"
	PhaseFailed       Phase = "FAILED"
)

// Progress is a point-in-time view of a run, shaped for the status server.
type Progress struct {
	Session      string              `json:"session"`
	Phase        Phase               `json:"phase"`
	StartedAt    time.Time           `json:"started_at"`
	Coverage     float64             `json:"coverage"`
	TestsWritten int                 `json:"tests_written"`
	FixesApplied int                 `json:"fixes_applied"`
	RepairState  repair.State        `json:"repair_state,omitempty"`
	Trend        []report.TrendPoint `json:"trend,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Tracker publishes run progress to concurrent readers.
//
// Thread Safety: Safe for concurrent use. The orchestrator writes; the
// status server reads via Snapshot.
type Tracker struct {
	mu sync.RWMutex
	p  Progress
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{p: Progress{Phase: PhaseIdle}}
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p := t.p
	p.Trend = append([]report.TrendPoint(nil), t.p.Trend...)
	return p
}

func (t *Tracker) update(fn func(*Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.p)
}

func (t *Tracker) begin(session string, at time.Time) {
	t.update(func(p *Progress) {
		*p = Progress{Session: session, Phase: PhaseMeasuring, StartedAt: at}
	})
}

func (t *Tracker) setPhase(phase Phase) {
	t.update(func(p *Progress) { p.Phase = phase })
}

func (t *Tracker) observe(point report.TrendPoint) {
	t.update(func(p *Progress) {
		p.Coverage = point.Percent
		p.Trend = append(p.Trend, point)
	})
}

func (t *Tracker) setTests(n int) {
	t.update(func(p *Progress) { p.TestsWritten = n })
}

func (t *Tracker) setFixes(n int) {
	t.update(func(p *Progress) { p.FixesApplied = n })
}

func (t *Tracker) fail(err error) {
	t.update(func(p *Progress) {
		p.Phase = PhaseFailed
		p.Error = err.Error()
	})
}

func (t *Tracker) finish(state repair.State) {
	t.update(func(p *Progress) {
		p.Phase = PhaseDone
		p.RepairState = state
	})
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Deps are the components an Orchestrator drives.
type Deps struct {
	// Env is the sandboxed project. Required.
	Env sandbox.Environment

	// Measurer produces coverage snapshots. Required.
	Measurer Measurer

	// Synthesizer generates tests. Required.
	Synthesizer Synthesizer

	// Repairer runs the fix loop. Required.
	Repairer Repairer

	// Journal persists the run. Optional; nil disables journaling.
	Journal RunJournal

	// Tracker publishes progress. Optional; one is created when nil.
	Tracker *Tracker

	// Log is the run logger. Optional.
	Log *logging.Logger
}

// Orchestrator sequences one coverage improvement run.
//
// Thread Safety: NOT safe for concurrent use. One orchestrator, one
// environment, one run at a time.
type Orchestrator struct {
	env      sandbox.Environment
	measurer Measurer
	synth    Synthesizer
	repairer Repairer
	journal  RunJournal
	tracker  *Tracker
	cfg      *Config
	log      *logging.Logger
}

// NewOrchestrator builds an orchestrator from pre-wired components.
//
// Inputs:
//
//	d - Component set. Env, Measurer, Synthesizer, and Repairer are required.
//	cfg - Run configuration. Nil means DefaultConfig.
//
// Outputs:
//
//	*Orchestrator - Ready to Run.
//	error - ErrMissingDependency naming the first missing component.
func NewOrchestrator(d Deps, cfg *Config) (*Orchestrator, error) {
	switch {
	case d.Env == nil:
		return nil, fmt.Errorf("%w: environment", ErrMissingDependency)
	case d.Measurer == nil:
		return nil, fmt.Errorf("%w: measurer", ErrMissingDependency)
	case d.Synthesizer == nil:
		return nil, fmt.Errorf("%w: synthesizer", ErrMissingDependency)
	case d.Repairer == nil:
		return nil, fmt.Errorf("%w: repairer", ErrMissingDependency)
	}

	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.Log == nil {
		d.Log = logging.Default()
	}
	if d.Tracker == nil {
		d.Tracker = NewTracker()
	}

	return &Orchestrator{
		env:      d.Env,
		measurer: d.Measurer,
		synth:    d.Synthesizer,
		repairer: d.Repairer,
		journal:  d.Journal,
		tracker:  d.Tracker,
		cfg:      cfg,
		log:      d.Log,
	}, nil
}

// Assemble builds a fully wired orchestrator from an environment and an
// oracle client: measurer, dependency resolver, test generator, and repair
// controller, each configured from cfg.
func Assemble(env sandbox.Environment, client *oracle.Client, cfg *Config, log *logging.Logger) (*Orchestrator, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: environment", ErrMissingDependency)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: oracle client", ErrMissingDependency)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Default()
	}

	langCfg, ok := lang.Get(cfg.Language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, cfg.Language)
	}
	if cfg.Model == "" {
		cfg.Model = client.Model()
	}

	measurer := coverage.NewMeasurer(env, langCfg, cfg.Coverage, log)
	resolver := deps.NewResolver(env, client, langCfg, log)
	generator := synth.NewGenerator(client, resolver, langCfg, cfg.Synthesis, log)
	controller := repair.NewController(env, client, measurer, langCfg, cfg.Repair, log)

	return NewOrchestrator(Deps{
		Env:         env,
		Measurer:    measurer,
		Synthesizer: generator,
		Repairer:    controller,
		Log:         log,
	}, cfg)
}

// WithJournal attaches a run journal. Returns the orchestrator for chaining.
func (o *Orchestrator) WithJournal(j RunJournal) *Orchestrator {
	o.journal = j
	return o
}

// Tracker returns the progress tracker for status reporting.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// NewSessionID returns a short run identifier: the first eight hex characters
// of a UUID.
func NewSessionID() string {
	return uuid.NewString()[:8]
}

// Run executes one full coverage improvement run.
//
// Description:
//
//	Measures baseline coverage, synthesizes tests for uncovered code,
//	writes them into the environment, runs the repair loop, and emits the
//	final report. Iteration records and the report are journaled when a
//	journal is attached; journal failures are logged, never fatal.
//
// Inputs:
//
//	ctx - Context for cancellation. Applies to every oracle call and
//	command execution in the run.
//
// Outputs:
//
//	*report.RunReport - The completed run record.
//	error - Only terminal conditions: credential failure, unreachable
//	environment, or cancellation.
func (o *Orchestrator) Run(ctx context.Context) (*report.RunReport, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	session := o.cfg.Session
	if session == "" {
		session = NewSessionID()
	}

	ctx, span := startRunSpan(ctx, session, o.cfg.Language)
	defer span.End()

	started := time.Now().UTC()
	rep := &report.RunReport{
		Session:   session,
		Language:  o.cfg.Language,
		Model:     o.cfg.Model,
		StartedAt: started,
	}
	o.tracker.begin(session, started)

	o.log.Info("Measuring baseline coverage", "session", session, "language", o.cfg.Language)
	before, err := o.measurer.Measure(ctx)
	if err != nil {
		return nil, o.abort(ctx, span, rep, fmt.Errorf("baseline measurement: %w", err))
	}
	rep.BeforePercent = before.Percentage
	o.observe(rep, report.TrendPoint{Label: "baseline", Percent: before.Percentage})
	o.log.Info("Baseline measured",
		"session", session,
		"coverage", before.Percentage,
		"uncovered_files", len(before.Records))

	o.tracker.setPhase(PhaseSynthesizing)
	files, tests, err := o.synth.Synthesize(ctx, before)
	if err != nil {
		return nil, o.abort(ctx, span, rep, fmt.Errorf("test synthesis: %w", err))
	}
	rep.Tests = tests

	o.tracker.setPhase(PhaseApplying)
	written, err := o.writeTests(ctx, files)
	if err != nil {
		return nil, o.abort(ctx, span, rep, fmt.Errorf("apply tests: %w", err))
	}
	o.tracker.setTests(written)

	o.tracker.setPhase(PhaseRepairing)
	outcome, err := o.repairer.Repair(ctx)
	if err != nil {
		return nil, o.abort(ctx, span, rep, fmt.Errorf("repair loop: %w", err))
	}
	rep.RepairState = outcome.State
	rep.Attempts = outcome.Attempts
	o.tracker.setFixes(outcome.Fixed())
	for _, round := range outcome.Iterations {
		if round.Snapshot == nil {
			continue
		}
		o.observe(rep, report.TrendPoint{
			Label:   fmt.Sprintf("repair-%d", round.Iteration),
			Percent: round.Snapshot.Percentage,
		})
	}

	// No measurement after the baseline means coverage did not move.
	rep.AfterPercent = rep.BeforePercent
	if outcome.Final != nil {
		rep.AfterPercent = outcome.Final.Percentage
	}
	o.observe(rep, report.TrendPoint{Label: "final", Percent: rep.AfterPercent})
	rep.FinishedAt = time.Now().UTC()

	o.tracker.setPhase(PhaseReporting)
	o.journalRun(ctx, rep, outcome)

	setRunSpanResult(span, true, string(outcome.State), len(rep.Tests), len(rep.Attempts))
	recordRunMetrics(ctx, o.cfg.Language, rep.Duration(), true, len(rep.Tests), len(rep.Attempts), rep.Improvement())
	o.tracker.finish(outcome.State)

	o.log.Info("Run complete",
		"session", session,
		"before", rep.BeforePercent,
		"after", rep.AfterPercent,
		"state", string(outcome.State),
		"duration", rep.Duration().Round(time.Second).String())
	return rep, nil
}

// observe appends a trend point to both the report and the tracker.
func (o *Orchestrator) observe(rep *report.RunReport, point report.TrendPoint) {
	rep.Trend = append(rep.Trend, point)
	o.tracker.observe(point)
}

// abort records the failure on the span, the run metrics, and the
// tracker, and returns err.
func (o *Orchestrator) abort(ctx context.Context, span trace.Span, rep *report.RunReport, err error) error {
	span.RecordError(err)
	setRunSpanResult(span, false, string(PhaseFailed), len(rep.Tests), len(rep.Attempts))
	recordRunMetrics(ctx, o.cfg.Language, time.Since(rep.StartedAt), false, len(rep.Tests), len(rep.Attempts), 0)
	o.tracker.fail(err)
	o.log.Error("Run aborted", "session", rep.Session, "error", err)
	return err
}

// writeTests writes synthesized files into the environment in path order.
// Individual write failures skip the file; an unreachable environment
// aborts.
func (o *Orchestrator) writeTests(ctx context.Context, files map[string]string) (int, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	written := 0
	for _, path := range paths {
		if err := o.env.WriteFile(ctx, path, files[path]); err != nil {
			if errors.Is(err, sandbox.ErrUnreachable) {
				return written, err
			}
			o.log.Warn("Skipping synthesized test after write failure", "path", path, "error", err)
			continue
		}
		written++
		o.log.Info("Wrote synthesized test", "path", path)
	}
	return written, nil
}

// journalRun persists the outcome best-effort. The report the caller holds
// is the source of truth either way.
func (o *Orchestrator) journalRun(ctx context.Context, rep *report.RunReport, outcome *repair.Outcome) {
	if o.journal == nil {
		return
	}
	for i := range outcome.Iterations {
		if err := o.journal.SaveIteration(ctx, rep.Session, &outcome.Iterations[i]); err != nil {
			o.log.Warn("Journal write failed for iteration",
				"session", rep.Session,
				"iteration", outcome.Iterations[i].Iteration,
				"error", err)
		}
	}
	if err := o.journal.SaveReport(ctx, rep); err != nil {
		o.log.Warn("Journal write failed for report", "session", rep.Session, "error", err)
	}
}
