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
	"os"
	"path/filepath"

	"github.com/AleutianAI/covgen/pkg/logging"
)

// =============================================================================
// LOCAL ENVIRONMENT
// =============================================================================

// LocalEnv runs commands and touches files in a directory on the host.
//
// Thread Safety: Safe for concurrent use; the pipeline calls it
// sequentially.
type LocalEnv struct {
	root string
	cfg  *Config
	log  *logging.Logger
}

// NewLocalEnv creates an environment rooted at dir.
//
// Inputs:
//
//	dir - The workspace root. Must exist.
//	cfg - Sandbox configuration. Nil uses DefaultConfig.
//	log - Logger. Nil uses the default logger.
//
// Outputs:
//
//	*LocalEnv - The configured environment.
//	error - Non-nil if dir is not a directory.
func NewLocalEnv(dir string, cfg *Config, log *logging.Logger) (*LocalEnv, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	if log == nil {
		log = logging.Default()
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnreachable, abs)
	}

	return &LocalEnv{root: abs, cfg: cfg, log: log}, nil
}

// Root returns the workspace root directory.
func (l *LocalEnv) Root() string {
	return l.root
}

// Run implements Environment.
func (l *LocalEnv) Run(ctx context.Context, spec CommandSpec) (*ExecResult, error) {
	return runProcess(ctx, l.cfg, l.log, spec.Argv, l.resolve(spec.Workdir), spec.Timeout, "")
}

// ReadFile implements Environment.
func (l *LocalEnv) ReadFile(ctx context.Context, path string) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	data, err := os.ReadFile(l.resolve(path))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrReadFailed, path, err)
	}
	return string(data), nil
}

// WriteFile implements Environment. The write is atomic: content lands
// in a temp file beside the target and is renamed into place, so a
// crashed run never leaves a half-written file.
func (l *LocalEnv) WriteFile(ctx context.Context, path string, content string) error {
	if ctx == nil {
		return ErrNilContext
	}
	target := l.resolve(path)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteFailed, path, err)
	}

	tmp := target + ".covgen.tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteFailed, path, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %s: %v", ErrWriteFailed, path, err)
	}
	return nil
}

// PathExists implements Environment.
func (l *LocalEnv) PathExists(ctx context.Context, path string) (bool, error) {
	if ctx == nil {
		return false, ErrNilContext
	}
	_, err := os.Stat(l.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// resolve anchors a relative path at the workspace root.
func (l *LocalEnv) resolve(path string) string {
	if path == "" {
		return l.root
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(l.root, path)
}
