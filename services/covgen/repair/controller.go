// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package repair drives the diagnose-fix-measure loop that runs after
// synthesized tests land. Each round re-runs the suite, extracts
// root-cause errors from its output via the oracle, and applies code or
// command fixes. The loop stops when the suite is clean, when no fix
// lands, or when the round budget runs out.
package repair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/covgen/pkg/logging"
	"github.com/AleutianAI/covgen/services/covgen/coverage"
	"github.com/AleutianAI/covgen/services/covgen/lang"
	"github.com/AleutianAI/covgen/services/covgen/oracle"
	"github.com/AleutianAI/covgen/services/covgen/sandbox"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config controls the repair loop.
type Config struct {
	// MaxFixIterations bounds the diagnose-fix-measure rounds.
	MaxFixIterations int

	// AllowCommands permits command fixes. When false the oracle is
	// offered the code-or-unfixable protocol only, and a command
	// proposal that arrives anyway is rejected.
	AllowCommands bool
}

// DefaultConfig returns the standard repair configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxFixIterations: 3,
		AllowCommands:    true,
	}
}

// Validate clamps out-of-range values to their defaults.
func (c *Config) Validate() error {
	if c.MaxFixIterations < 1 {
		c.MaxFixIterations = 3
	}
	return nil
}

// windowContext is how many lines the fix window extends beyond the
// diagnosed range on each side.
const windowContext = 2

// =============================================================================
// CONTROLLER
// =============================================================================

// Completer is the oracle surface the repair loop needs.
type Completer interface {
	Complete(ctx context.Context, messages []oracle.Message) (string, error)
}

// Measurer runs the suite under coverage and produces a snapshot whose
// RawTestOutput carries the combined suite output.
type Measurer interface {
	Measure(ctx context.Context) (*coverage.Snapshot, error)
}

// Controller runs the repair loop against one environment.
//
// Thread Safety: Not safe for concurrent use. The environment is a
// single shared mutable resource and the controller must be its sole
// writer during a run.
type Controller struct {
	env      sandbox.Environment
	oracle   Completer
	measurer Measurer
	lang     *lang.Config
	cfg      *Config
	log      *logging.Logger
}

// NewController creates a repair controller.
//
// Inputs:
//
//	env - The execution environment holding the project under repair.
//	completer - The oracle client.
//	measurer - Coverage measurer for the same environment.
//	langCfg - The target language.
//	cfg - Repair configuration. Nil uses DefaultConfig.
//	log - Logger. Nil uses the default logger.
func NewController(env sandbox.Environment, completer Completer, measurer Measurer, langCfg *lang.Config, cfg *Config, log *logging.Logger) *Controller {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	if log == nil {
		log = logging.Default()
	}
	return &Controller{
		env:      env,
		oracle:   completer,
		measurer: measurer,
		lang:     langCfg,
		cfg:      cfg,
		log:      log,
	}
}

// Repair runs the bounded repair loop.
//
// Description:
//
//	Each round measures the suite, extracts root-cause errors from the
//	combined output, and attempts one fix per diagnosed error in
//	priority order. Clean output or an empty extraction converges the
//	run; a round where no fix lands, or running out of rounds, exhausts
//	it. After a productive round the coverage is re-measured and
//	recorded.
//
// Outputs:
//
//	*Outcome - Terminal state, every fix attempt, per-round records, and
//	    the final coverage snapshot.
//	error - Non-nil only for invalid input, credential failure, or an
//	    unreachable environment.
func (c *Controller) Repair(ctx context.Context) (*Outcome, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	out := &Outcome{State: StateRunning}
	var lastProbe *coverage.Snapshot

	for iter := 1; iter <= c.cfg.MaxFixIterations; iter++ {
		c.log.Info("starting repair iteration",
			slog.Int("iteration", iter),
			slog.Int("max_iterations", c.cfg.MaxFixIterations))

		probe, err := c.measurer.Measure(ctx)
		if err != nil {
			return nil, err
		}
		lastProbe = probe

		if strings.TrimSpace(probe.RawTestOutput) == "" {
			c.log.Info("suite produced no error output, converged")
			out.State = StateConverged
			break
		}

		diagnosed, err := c.diagnose(ctx, probe.RawTestOutput)
		if err != nil {
			return nil, err
		}
		if len(diagnosed) == 0 {
			c.log.Info("no actionable errors extracted, converged")
			out.State = StateConverged
			break
		}
		c.log.Info("diagnosed root-cause errors", slog.Int("count", len(diagnosed)))

		fixed := 0
		for i, diag := range diagnosed {
			c.log.Info("fixing error",
				slog.Int("index", i+1),
				slog.Int("total", len(diagnosed)),
				slog.String("file", diag.FilePath),
				slog.Int("line_start", diag.LineStart),
				slog.Int("line_end", diag.LineEnd))

			attempt, err := c.fixOne(ctx, diag)
			if err != nil {
				return nil, err
			}
			out.Attempts = append(out.Attempts, attempt)
			if attempt.Success {
				fixed++
				c.log.Info("fix applied",
					slog.String("file", diag.FilePath),
					slog.String("fix_type", string(attempt.Kind)))
			} else {
				c.log.Warn("fix attempt failed",
					slog.String("file", diag.FilePath),
					slog.String("reason", attempt.ErrorMessage))
			}
		}

		if fixed == 0 {
			c.log.Warn("no fix landed this iteration, exhausted")
			out.State = StateExhausted
			break
		}

		snap, err := c.measurer.Measure(ctx)
		if err != nil {
			return nil, err
		}
		out.Iterations = append(out.Iterations, IterationRecord{
			Iteration:   iter,
			ErrorsFound: len(diagnosed),
			ErrorsFixed: fixed,
			Snapshot:    snap,
		})
		c.log.Info("repair iteration complete",
			slog.Int("iteration", iter),
			slog.Int("errors_fixed", fixed),
			slog.Float64("coverage", snap.Percentage))
	}

	// Productive rounds all the way to the budget still end exhausted;
	// only a clean or unactionable suite converges.
	if out.State == StateRunning {
		out.State = StateExhausted
	}

	if n := len(out.Iterations); n > 0 {
		out.Final = out.Iterations[n-1].Snapshot
	} else {
		out.Final = lastProbe
	}
	return out, nil
}

// diagnose asks the oracle for the root-cause errors in suite output.
// Oracle transport failures degrade to an empty extraction; credential
// failures propagate.
func (c *Controller) diagnose(ctx context.Context, errorLog string) ([]DiagnosedError, error) {
	resp, err := c.oracle.Complete(ctx, []oracle.Message{
		oracle.System(errorAnalysisSystemPrompt),
		oracle.User(buildErrorAnalysisPrompt(errorLog)),
	})
	if err != nil {
		if errors.Is(err, oracle.ErrNoCredential) {
			return nil, err
		}
		c.log.Warn("error analysis failed", slog.Any("error", err))
		return nil, nil
	}
	return parseDiagnosedErrors(resp), nil
}

// fixOne attempts one fix for one diagnosed error. Attempt-level
// failures are recorded on the returned FixAttempt; the error return is
// reserved for credential failures and an unreachable environment.
func (c *Controller) fixOne(ctx context.Context, diag DiagnosedError) (FixAttempt, error) {
	attempt := FixAttempt{
		FilePath:  diag.FilePath,
		LineStart: diag.LineStart,
		LineEnd:   diag.LineEnd,
		Kind:      FixKindUnfixable,
	}

	content, err := c.env.ReadFile(ctx, diag.FilePath)
	if err != nil {
		if errors.Is(err, sandbox.ErrUnreachable) {
			return attempt, err
		}
		attempt.ErrorMessage = "failed to read file content"
		return attempt, nil
	}
	if content == "" {
		attempt.ErrorMessage = "failed to read file content"
		return attempt, nil
	}

	lines := strings.Split(content, "\n")
	start, end := contextWindow(diag, len(lines))
	block := lines[start-1 : end]
	attempt.OriginalCode = strings.Join(block, "\n")

	resp, err := c.oracle.Complete(ctx, []oracle.Message{
		oracle.System(c.fixSystemPrompt()),
		oracle.User(buildFixPrompt(
			c.lang.Name,
			numberLines(content, 1),
			numberLines(attempt.OriginalCode, start),
			diag.Message,
		)),
	})
	if err != nil {
		if errors.Is(err, oracle.ErrNoCredential) {
			return attempt, err
		}
		attempt.ErrorMessage = fmt.Sprintf("fix request failed: %v", err)
		return attempt, nil
	}

	fix, ok := parseFix(resp)
	if !ok {
		attempt.ErrorMessage = "unparseable fix response"
		return attempt, nil
	}

	switch FixKind(fix.FixType) {
	case FixKindCode:
		return c.applyCodeFix(ctx, attempt, block, fix, start, end)
	case FixKindCommand:
		if !c.cfg.AllowCommands {
			attempt.ErrorMessage = "command fixes disabled"
			return attempt, nil
		}
		return c.applyCommandFix(ctx, attempt, fix)
	default:
		reason := strings.TrimSpace(fix.Reason)
		if reason == "" {
			reason = "error cannot be fixed"
		}
		attempt.ErrorMessage = reason
		return attempt, nil
	}
}

// applyCodeFix splices the fixed window into the file's current content
// at the original window boundaries and writes it back. The file is
// re-read first because an earlier fix this round may have touched it.
func (c *Controller) applyCodeFix(ctx context.Context, attempt FixAttempt, block []string, fix *fixResponse, start, end int) (FixAttempt, error) {
	fixed := strings.TrimSpace(fix.FixedCode)
	if fixed == "" {
		attempt.ErrorMessage = "oracle returned empty fix"
		return attempt, nil
	}

	attempt.Kind = FixKindCode
	attempt.FixedCode = fixed
	attempt.Language = fix.Language
	if attempt.Language == "" {
		attempt.Language = c.lang.Name
	}

	current, err := c.env.ReadFile(ctx, attempt.FilePath)
	if err != nil {
		if errors.Is(err, sandbox.ErrUnreachable) {
			return attempt, err
		}
		attempt.ErrorMessage = "failed to re-read file for fix"
		return attempt, nil
	}
	if current == "" {
		attempt.ErrorMessage = "failed to re-read file for fix"
		return attempt, nil
	}

	currentLines := strings.Split(current, "\n")
	lo, hi := start-1, end
	if lo > len(currentLines) {
		lo = len(currentLines)
	}
	if hi > len(currentLines) {
		hi = len(currentLines)
	}
	if hi < lo {
		hi = lo
	}

	fixedLines := strings.Split(fixed, "\n")
	merged := make([]string, 0, lo+len(fixedLines)+len(currentLines)-hi)
	merged = append(merged, currentLines[:lo]...)
	merged = append(merged, fixedLines...)
	merged = append(merged, currentLines[hi:]...)

	// Gate before the write so an invalid fix never lands in the file.
	if c.lang.HasExtension(attempt.FilePath) {
		valid, serr := c.lang.CheckSyntax(ctx, strings.Join(merged, "\n"))
		if serr != nil {
			c.log.Warn("syntax gate inconclusive",
				slog.String("file", attempt.FilePath),
				slog.Any("error", serr))
		}
		if !valid {
			attempt.ErrorMessage = "fixed content failed the syntax gate"
			return attempt, nil
		}
	}

	if err := c.env.WriteFile(ctx, attempt.FilePath, strings.Join(merged, "\n")); err != nil {
		if errors.Is(err, sandbox.ErrUnreachable) {
			return attempt, err
		}
		attempt.ErrorMessage = "failed to write fixed file"
		return attempt, nil
	}

	attempt.Diff = renderWindowDiff(attempt.FilePath, start, block, fixedLines)
	attempt.Success = true
	return attempt, nil
}

// applyCommandFix executes the proposed commands in order, failing the
// attempt on the first non-zero exit.
func (c *Controller) applyCommandFix(ctx context.Context, attempt FixAttempt, fix *fixResponse) (FixAttempt, error) {
	attempt.Kind = FixKindCommand
	attempt.Commands = fix.Commands
	attempt.Description = fix.Description

	if len(fix.Commands) == 0 {
		attempt.Kind = FixKindUnfixable
		attempt.ErrorMessage = "no commands provided"
		return attempt, nil
	}

	for _, cmdLine := range fix.Commands {
		c.log.Info("executing fix command", slog.String("command", cmdLine))
		res, err := c.env.Run(ctx, sandbox.ShellCommand(cmdLine))
		if err != nil {
			if errors.Is(err, sandbox.ErrUnreachable) {
				return attempt, err
			}
			attempt.ErrorMessage = fmt.Sprintf("command failed: %s: %v", cmdLine, err)
			return attempt, nil
		}
		if !res.OK() {
			attempt.ErrorMessage = fmt.Sprintf("command failed with exit code %d: %s", res.ExitCode, cmdLine)
			return attempt, nil
		}
	}

	attempt.Success = true
	return attempt, nil
}

func (c *Controller) fixSystemPrompt() string {
	if c.cfg.AllowCommands {
		return commandFixSystemPrompt
	}
	return codeFixSystemPrompt
}

// contextWindow widens the diagnosed range by windowContext lines on
// each side and clamps it to the file, returning 1-based inclusive
// bounds with end >= start.
func contextWindow(diag DiagnosedError, lineCount int) (int, int) {
	start := diag.LineStart - windowContext
	if start < 1 {
		start = 1
	}
	if start > lineCount {
		start = lineCount
	}
	end := diag.LineEnd + windowContext
	if end > lineCount {
		end = lineCount
	}
	if end < start {
		end = start
	}
	return start, end
}

// numberLines prefixes each line with its 1-based number, matching the
// format the fix prompts describe.
func numberLines(content string, start int) string {
	lines := strings.Split(content, "\n")
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%4d: %s", start+i, line)
	}
	return sb.String()
}
