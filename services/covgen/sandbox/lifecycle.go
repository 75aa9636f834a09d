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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/covgen/pkg/logging"
	"github.com/AleutianAI/covgen/pkg/validation"
)

// pullTimeout bounds image pulls, which can be slow on cold caches.
const pullTimeout = 15 * time.Minute

// =============================================================================
// DOCKER LIFECYCLE
// =============================================================================

// DockerManager prepares target containers before a pipeline run: image
// checks and pulls, container start, and artifact extraction. It is the
// CLI's tool for `env up` style operations; the pipeline itself only
// talks to an Environment.
type DockerManager struct {
	cfg *Config
	log *logging.Logger
}

// NewDockerManager creates a lifecycle manager.
func NewDockerManager(cfg *Config, log *logging.Logger) *DockerManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	if log == nil {
		log = logging.Default()
	}
	return &DockerManager{cfg: cfg, log: log}
}

// ImageExists reports whether the image is present locally.
func (m *DockerManager) ImageExists(ctx context.Context, image string) (bool, error) {
	if err := validation.ValidateImageRef(image); err != nil {
		return false, err
	}
	res, err := m.docker(ctx, fileOpTimeout, "image", "inspect", image)
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// Pull fetches the image.
func (m *DockerManager) Pull(ctx context.Context, image string) error {
	if err := validation.ValidateImageRef(image); err != nil {
		return err
	}
	m.log.Info("pulling image", slog.String("image", image))
	res, err := m.docker(ctx, pullTimeout, "pull", image)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: pull %s: %s", ErrUnreachable, image, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// ContainerExists reports whether a container with the name exists,
// running or not.
func (m *DockerManager) ContainerExists(ctx context.Context, name string) (bool, error) {
	if err := validation.ValidateContainerName(name); err != nil {
		return false, err
	}
	res, err := m.docker(ctx, fileOpTimeout, "container", "inspect", name)
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// ContainerRunning reports whether the named container is running.
func (m *DockerManager) ContainerRunning(ctx context.Context, name string) (bool, error) {
	if err := validation.ValidateContainerName(name); err != nil {
		return false, err
	}
	res, err := m.docker(ctx, fileOpTimeout, "inspect", "-f", "{{.State.Running}}", name)
	if err != nil {
		return false, err
	}
	if res.ExitCode != 0 {
		return false, nil
	}
	return strings.TrimSpace(res.Stdout) == "true", nil
}

// StartDetached creates and starts a container under the given name with
// a keep-alive command, so the pipeline can exec into it repeatedly.
func (m *DockerManager) StartDetached(ctx context.Context, name, image string) error {
	if err := validation.ValidateContainerName(name); err != nil {
		return err
	}
	if err := validation.ValidateImageRef(image); err != nil {
		return err
	}
	m.log.Info("starting container",
		slog.String("name", name),
		slog.String("image", image))
	res, err := m.docker(ctx, m.cfg.CommandTimeout, "run", "-d", "--name", name, image, "tail", "-f", "/dev/null")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: run %s: %s", ErrUnreachable, name, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Start starts an existing stopped container.
func (m *DockerManager) Start(ctx context.Context, name string) error {
	if err := validation.ValidateContainerName(name); err != nil {
		return err
	}
	res, err := m.docker(ctx, m.cfg.CommandTimeout, "start", name)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: start %s: %s", ErrUnreachable, name, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Remove force-removes the container.
func (m *DockerManager) Remove(ctx context.Context, name string) error {
	if err := validation.ValidateContainerName(name); err != nil {
		return err
	}
	res, err := m.docker(ctx, m.cfg.CommandTimeout, "rm", "-f", name)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("remove %s: %s", name, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// CopyFrom copies a path out of the container to the host, used to pull
// coverage artifacts for archiving.
func (m *DockerManager) CopyFrom(ctx context.Context, name, src, dst string) error {
	if err := validation.ValidateContainerName(name); err != nil {
		return err
	}
	res, err := m.docker(ctx, m.cfg.CommandTimeout, "cp", name+":"+src, dst)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("copy %s:%s: %s", name, src, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// EnsureRunning makes the named container usable: already running is a
// no-op, a stopped container is started, and a missing one is created
// from the image (pulling it first when absent).
func (m *DockerManager) EnsureRunning(ctx context.Context, name, image string) error {
	running, err := m.ContainerRunning(ctx, name)
	if err != nil {
		return err
	}
	if running {
		return nil
	}

	exists, err := m.ContainerExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return m.Start(ctx, name)
	}

	present, err := m.ImageExists(ctx, image)
	if err != nil {
		return err
	}
	if !present {
		if err := m.Pull(ctx, image); err != nil {
			return err
		}
	}
	return m.StartDetached(ctx, name, image)
}

func (m *DockerManager) docker(ctx context.Context, timeout time.Duration, args ...string) (*ExecResult, error) {
	return runProcess(ctx, m.cfg, m.log, append([]string{"docker"}, args...), "", timeout, "")
}
