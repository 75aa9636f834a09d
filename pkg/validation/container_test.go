// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateContainerName(t *testing.T) {
	tests := []struct {
		name      string
		container string
		wantErr   bool
	}{
		// Valid names
		{"simple", "web-api", false},
		{"single char", "a", false},
		{"with digits", "worker2", false},
		{"with underscore", "target_app", false},
		{"with dot", "app.staging", false},
		{"max length", "a" + strings.Repeat("b", 127), false},

		// Invalid names - injection attempts
		{"empty", "", true},
		{"flag injection", "--privileged", true},
		{"leading hyphen", "-app", true},
		{"shell metachars", "app;rm -rf /", true},
		{"command substitution", "app$(whoami)", true},
		{"spaces", "my app", true},
		{"newline", "app\nevil", true},
		{"leading dot", ".app", true},
		{"too long", "a" + strings.Repeat("b", 128), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContainerName(tt.container)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateContainerName(%q) error = %v, wantErr %v", tt.container, err, tt.wantErr)
			}
		})
	}
}

func TestValidateImageRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		// Valid references
		{"bare", "python", false},
		{"tagged", "python:3.12-slim", false},
		{"registry path", "ghcr.io/acme/app:latest", false},
		{"digest", "python@sha256:0123456789abcdef", false},
		{"nested repo", "registry.local:5000/team/app:v1.2.3", false},

		// Invalid references
		{"empty", "", true},
		{"flag injection", "--volume=/:/host", true},
		{"leading hyphen", "-python", true},
		{"spaces", "python 3.12", true},
		{"shell metachars", "python;id", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImageRef(tt.ref)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImageRef(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid ids
		{"uuid prefix", "a1b2c3d4", false},
		{"with hyphen", "run-42", false},
		{"single char", "x", false},
		{"max length", strings.Repeat("a", 64), false},

		// Invalid ids
		{"empty", "", true},
		{"colon breaks journal keys", "run:1", true},
		{"leading hyphen", "-run", true},
		{"underscore", "run_1", true},
		{"spaces", "run 1", true},
		{"too long", strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeContainerName(t *testing.T) {
	got, err := SanitizeContainerName("  web-api  ")
	if err != nil {
		t.Fatalf("SanitizeContainerName() error = %v", err)
	}
	if got != "web-api" {
		t.Errorf("SanitizeContainerName() = %q, want %q", got, "web-api")
	}

	if _, err := SanitizeContainerName("  --privileged  "); err == nil {
		t.Error("SanitizeContainerName(--privileged) expected an error")
	}
}
