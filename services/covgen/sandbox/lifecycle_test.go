// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sandbox

import (
	"context"
	"testing"
)

// The rejection paths below never reach the container runtime, so they
// are safe to test without docker installed.

func TestDockerManager_RejectsBadNames(t *testing.T) {
	m := NewDockerManager(nil, nil)
	ctx := context.Background()

	if _, err := m.ContainerExists(ctx, "--privileged"); err == nil {
		t.Error("ContainerExists accepted a flag-shaped name")
	}
	if _, err := m.ContainerRunning(ctx, "app;id"); err == nil {
		t.Error("ContainerRunning accepted shell metacharacters")
	}
	if err := m.Start(ctx, ""); err == nil {
		t.Error("Start accepted an empty name")
	}
	if err := m.Remove(ctx, "-f"); err == nil {
		t.Error("Remove accepted a flag-shaped name")
	}
	if err := m.CopyFrom(ctx, "bad name", "/app/coverage.json", "out.json"); err == nil {
		t.Error("CopyFrom accepted a name with spaces")
	}
	if err := m.StartDetached(ctx, "-app", "python:3.12-slim"); err == nil {
		t.Error("StartDetached accepted a leading-hyphen name")
	}
}

func TestDockerManager_RejectsBadImages(t *testing.T) {
	m := NewDockerManager(nil, nil)
	ctx := context.Background()

	if _, err := m.ImageExists(ctx, "--volume=/:/host"); err == nil {
		t.Error("ImageExists accepted a flag-shaped image ref")
	}
	if err := m.Pull(ctx, "python 3.12"); err == nil {
		t.Error("Pull accepted an image ref with spaces")
	}
	if err := m.StartDetached(ctx, "target-app", ""); err == nil {
		t.Error("StartDetached accepted an empty image ref")
	}
	if err := m.EnsureRunning(ctx, "--privileged", "python:3.12-slim"); err == nil {
		t.Error("EnsureRunning accepted a flag-shaped name")
	}
}
