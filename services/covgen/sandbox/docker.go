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
	"path"
	"strings"
	"time"

	"github.com/AleutianAI/covgen/pkg/logging"
)

// fileOpTimeout bounds the small docker-exec calls behind file reads,
// writes, and existence checks.
const fileOpTimeout = 60 * time.Second

// =============================================================================
// DOCKER ENVIRONMENT
// =============================================================================

// DockerEnv runs commands and touches files inside a running container
// through the docker CLI. Commands cross into the container as argument
// vectors handed to `docker exec`, never as interpolated shell strings.
//
// Thread Safety: Safe for concurrent use; the pipeline calls it
// sequentially.
type DockerEnv struct {
	container string
	workdir   string
	cfg       *Config
	log       *logging.Logger
}

// NewDockerEnv creates an environment backed by a running container.
//
// Inputs:
//
//	container - The container name or ID.
//	workdir - The project root inside the container, e.g. "/app".
//	cfg - Sandbox configuration. Nil uses DefaultConfig.
//	log - Logger. Nil uses the default logger.
//
// Outputs:
//
//	*DockerEnv - The configured environment. Reachability is checked
//	lazily on first use, not here.
func NewDockerEnv(container, workdir string, cfg *Config, log *logging.Logger) *DockerEnv {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	if log == nil {
		log = logging.Default()
	}
	if workdir == "" {
		workdir = "/app"
	}
	return &DockerEnv{container: container, workdir: workdir, cfg: cfg, log: log}
}

// Container returns the container name.
func (d *DockerEnv) Container() string {
	return d.container
}

// Run implements Environment.
func (d *DockerEnv) Run(ctx context.Context, spec CommandSpec) (*ExecResult, error) {
	if len(spec.Argv) == 0 {
		return nil, ErrEmptyCommand
	}
	res, err := runProcess(ctx, d.cfg, d.log, d.execArgv(spec.Workdir, false, spec.Argv), "", spec.Timeout, "")
	if err != nil {
		return res, err
	}
	return res, d.checkReachable(res)
}

// ReadFile implements Environment.
func (d *DockerEnv) ReadFile(ctx context.Context, filePath string) (string, error) {
	argv := d.execArgv("", false, []string{"cat", "--", d.resolve(filePath)})
	res, err := runProcess(ctx, d.cfg, d.log, argv, "", fileOpTimeout, "")
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrReadFailed, filePath, err)
	}
	if err := d.checkReachable(res); err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%w: %s: %s", ErrReadFailed, filePath, strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

// WriteFile implements Environment. Content is streamed over stdin into
// `cat` inside the container; the file path never passes through an
// interpolated command line.
func (d *DockerEnv) WriteFile(ctx context.Context, filePath string, content string) error {
	target := d.resolve(filePath)
	script := fmt.Sprintf("mkdir -p %s && cat > %s", shellQuote(path.Dir(target)), shellQuote(target))
	argv := d.execArgv("", true, []string{"sh", "-c", script})

	res, err := runProcess(ctx, d.cfg, d.log, argv, "", fileOpTimeout, content)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteFailed, filePath, err)
	}
	if err := d.checkReachable(res); err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: %s: %s", ErrWriteFailed, filePath, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// PathExists implements Environment.
func (d *DockerEnv) PathExists(ctx context.Context, filePath string) (bool, error) {
	argv := d.execArgv("", false, []string{"test", "-e", d.resolve(filePath)})
	res, err := runProcess(ctx, d.cfg, d.log, argv, "", fileOpTimeout, "")
	if err != nil {
		return false, err
	}
	if err := d.checkReachable(res); err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// execArgv assembles the docker-CLI argument vector for one in-container
// command.
func (d *DockerEnv) execArgv(workdir string, stdin bool, argv []string) []string {
	out := []string{"docker", "exec"}
	if stdin {
		out = append(out, "-i")
	}
	out = append(out, "-w", d.resolveDir(workdir), d.container)
	return append(out, argv...)
}

// resolve anchors a relative file path at the in-container project root.
func (d *DockerEnv) resolve(filePath string) string {
	if path.IsAbs(filePath) {
		return path.Clean(filePath)
	}
	return path.Join(d.workdir, filePath)
}

// resolveDir anchors a relative working directory at the project root.
func (d *DockerEnv) resolveDir(workdir string) string {
	if workdir == "" {
		return d.workdir
	}
	return d.resolve(workdir)
}

// checkReachable upgrades docker-CLI failures that mean "the container
// is gone" into ErrUnreachable, which aborts the run.
func (d *DockerEnv) checkReachable(res *ExecResult) error {
	if res.ExitCode == 0 {
		return nil
	}
	stderr := res.Stderr
	if strings.Contains(stderr, "is not running") ||
		strings.Contains(stderr, "No such container") ||
		strings.Contains(stderr, "Cannot connect to the Docker daemon") {
		return fmt.Errorf("%w: container %s: %s", ErrUnreachable, d.container, strings.TrimSpace(stderr))
	}
	return nil
}

// shellQuote single-quotes s for POSIX sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
