// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// subprocess calls or storage keys. Using these validators prevents argument
// injection into the container runtime and malformed journal keys.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// containerNamePattern matches valid container names.
// Same charset the container runtime accepts; the leading alphanumeric
// also guarantees a name can never be mistaken for a CLI flag.
var containerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.\-]{0,127}$`)

// imageRefPattern matches image references: registry/repo paths with an
// optional :tag or @digest. The leading alphanumeric blocks flag injection.
var imageRefPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.\-/:@]{0,255}$`)

// sessionIDPattern matches run session identifiers. Colons are excluded
// because the journal uses them as key separators.
var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-]{0,63}$`)

// ValidateContainerName validates a container name before it reaches the
// container runtime.
//
// Valid names:
//   - 1-128 characters
//   - Letters, digits, underscores, dots, hyphens
//   - Must start with a letter or digit (never a hyphen, so a name
//     cannot be parsed as a flag)
//
// Returns an error if the name is invalid.
//
// Example:
//
//	if err := validation.ValidateContainerName(name); err != nil {
//	    return fmt.Errorf("invalid container name: %w", err)
//	}
//	// Safe to pass to docker
func ValidateContainerName(name string) error {
	if name == "" {
		return fmt.Errorf("container name cannot be empty")
	}

	if !containerNamePattern.MatchString(name) {
		return fmt.Errorf("invalid container name: %q (must be 1-128 alphanumeric chars, underscores, dots, or hyphens, starting with an alphanumeric)", name)
	}

	return nil
}

// ValidateImageRef validates an image reference before it reaches the
// container runtime.
//
// Accepts registry paths, tags, and digests (e.g. python:3.12-slim,
// ghcr.io/acme/app@sha256:...). Rejects anything starting with a hyphen
// or containing whitespace.
func ValidateImageRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("image reference cannot be empty")
	}

	if !imageRefPattern.MatchString(ref) {
		return fmt.Errorf("invalid image reference: %q", ref)
	}

	return nil
}

// ValidateSessionID validates a run session identifier.
//
// Valid session ids:
//   - 1-64 characters
//   - Letters, digits, hyphens
//   - Must start with a letter or digit
//
// Colons are rejected so journal key prefixes stay unambiguous.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid session id: %q (must be 1-64 alphanumeric chars or hyphens, starting with an alphanumeric)", id)
	}

	return nil
}

// SanitizeContainerName normalizes and validates a container name.
// Returns the trimmed name if valid, or an error if invalid.
//
// Use this when the name comes from a roster file or flag:
//
//	safeName, err := validation.SanitizeContainerName(userInput)
//	if err != nil {
//	    return err
//	}
func SanitizeContainerName(name string) (string, error) {
	normalized := strings.TrimSpace(name)
	if err := ValidateContainerName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
