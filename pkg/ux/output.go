// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ux renders human-facing CLI output. Every helper respects
// the active personality level, so one code path serves interactive
// terminals, minimal shells, and CI log collectors.
package ux

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// ===== COLOR PALETTE =====

var (
	// ColorTeal is the Aleutian brand accent.
	ColorTeal    = lipgloss.Color("#14b8a6")
	ColorSuccess = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#f59e0b")
	ColorError   = lipgloss.Color("#ef4444")
	ColorMuted   = lipgloss.Color("#6b7280")
)

// Styles holds the pre-configured lipgloss styles used across the CLI.
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTeal),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorMuted),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Bold(true).Foreground(ColorTeal),
}

// ===== ICONS =====

// Icon is a single status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with its semantic color applied when the
// active level allows color, the bare glyph otherwise.
func (i Icon) Render() string {
	if !ShouldShowColors() {
		return string(i)
	}
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return Styles.Muted.Render(string(i))
	}
}

// ===== PRINT HELPERS =====

// Title prints a section heading. Suppressed at machine level so piped
// output stays parseable.
func Title(text string) {
	switch CurrentLevel() {
	case PersonalityMachine:
		return
	case PersonalityMinimal:
		fmt.Println(text)
	case PersonalityFull:
		fmt.Println(Styles.Title.Render(text))
		fmt.Println(Styles.Muted.Render(rule(utf8.RuneCountInString(text))))
	default:
		fmt.Println(Styles.Title.Render(text))
	}
}

// Info prints a contextual echo line, such as the target or model in
// use. Suppressed at machine level; the structured log carries the
// same facts there.
func Info(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch CurrentLevel() {
	case PersonalityMachine:
		return
	case PersonalityMinimal:
		fmt.Println(msg)
	default:
		fmt.Printf("%s %s\n", IconArrow.Render(), msg)
	}
}

// Success prints a completion line to stdout.
func Success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch CurrentLevel() {
	case PersonalityMachine:
		fmt.Printf("OK: %s\n", msg)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconSuccess, msg)
	default:
		fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(msg))
	}
}

// Warning prints a non-fatal problem to stderr.
func Warning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch CurrentLevel() {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "WARN: %s\n", msg)
	case PersonalityMinimal:
		fmt.Fprintf(os.Stderr, "%s %s\n", IconWarning, msg)
	default:
		fmt.Fprintf(os.Stderr, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(msg))
	}
}

// Error prints a failure to stderr.
func Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch CurrentLevel() {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", msg)
	case PersonalityMinimal:
		fmt.Fprintf(os.Stderr, "%s %s\n", IconError, msg)
	default:
		fmt.Fprintf(os.Stderr, "%s %s\n", IconError.Render(), Styles.Error.Render(msg))
	}
}

// TargetStatus prints one per-target progress line, used by batch runs
// as each target finishes.
func TargetStatus(name string, icon Icon, detail string) {
	switch CurrentLevel() {
	case PersonalityMachine:
		fmt.Printf("%s: %s\n", name, detail)
	case PersonalityMinimal:
		fmt.Printf("  %s %s  %s\n", icon, name, detail)
	default:
		fmt.Printf("  %s %s  %s\n", icon.Render(), Styles.Bold.Render(name), Styles.Muted.Render(detail))
	}
}

// Summary prints the closing tally for a multi-target run.
func Summary(succeeded, failed int) {
	switch CurrentLevel() {
	case PersonalityMachine:
		fmt.Printf("RESULT: succeeded=%d failed=%d\n", succeeded, failed)
	case PersonalityMinimal:
		fmt.Printf("%s %d succeeded, %s %d failed\n", IconSuccess, succeeded, IconError, failed)
	default:
		line := fmt.Sprintf("%s %s", IconSuccess.Render(), Styles.Success.Render(fmt.Sprintf("%d succeeded", succeeded)))
		if failed > 0 {
			line += fmt.Sprintf(", %s %s", IconError.Render(), Styles.Error.Render(fmt.Sprintf("%d failed", failed)))
		}
		fmt.Println(line)
	}
}

func rule(width int) string {
	if width < 1 {
		width = 1
	}
	out := make([]rune, width)
	for i := range out {
		out[i] = '─'
	}
	return string(out)
}
