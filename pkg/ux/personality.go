// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package ux

import (
	"os"
	"strings"
	"sync"
)

// PersonalityLevel controls how much decoration CLI output carries.
type PersonalityLevel string

const (
	// PersonalityFull shows titles, icons, colors, and target echo lines.
	PersonalityFull PersonalityLevel = "full"
	// PersonalityStandard shows icons and colors without the banner lines.
	PersonalityStandard PersonalityLevel = "standard"
	// PersonalityMinimal shows plain text with simple icons, no color.
	PersonalityMinimal PersonalityLevel = "minimal"
	// PersonalityMachine emits parseable OK:/WARN:/ERROR: prefixes for
	// CI logs and pipes. Decorative output is suppressed entirely.
	PersonalityMachine PersonalityLevel = "machine"
)

var (
	personalityMu sync.RWMutex
	currentLevel  = PersonalityStandard
)

// CurrentLevel returns the active personality level.
func CurrentLevel() PersonalityLevel {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentLevel
}

// SetPersonalityLevel switches the active personality level.
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentLevel = level
}

// ParsePersonalityLevel maps user input to a level, accepting short
// aliases. Unrecognized input falls back to standard rather than
// erroring so a typo never blocks a run.
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "f":
		return PersonalityFull
	case "standard", "std", "s":
		return PersonalityStandard
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityStandard
	}
}

// InitPersonality picks the starting level. ALEUTIAN_PERSONALITY wins
// when set; otherwise machine when stdout is not a terminal, full when
// it is. Piped output therefore stays parseable without any flags.
func InitPersonality() {
	if env := os.Getenv("ALEUTIAN_PERSONALITY"); env != "" {
		SetPersonalityLevel(ParsePersonalityLevel(env))
		return
	}
	if !isTerminal() {
		SetPersonalityLevel(PersonalityMachine)
		return
	}
	SetPersonalityLevel(PersonalityFull)
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// ShouldShowColors reports whether styled output is appropriate at the
// active level.
func ShouldShowColors() bool {
	switch CurrentLevel() {
	case PersonalityFull, PersonalityStandard:
		return true
	default:
		return false
	}
}
