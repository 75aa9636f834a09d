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
	"errors"
	"reflect"
	"testing"
)

func TestShellCommand(t *testing.T) {
	spec := ShellCommand("pip install -r requirements.txt")
	want := []string{"/bin/sh", "-c", "pip install -r requirements.txt"}
	if !reflect.DeepEqual(spec.Argv, want) {
		t.Errorf("Argv = %v, want %v", spec.Argv, want)
	}
}

func TestDockerEnv_ExecArgv(t *testing.T) {
	env := NewDockerEnv("cov-target", "/app", nil, nil)

	got := env.execArgv("", false, []string{"pytest", "-q"})
	want := []string{"docker", "exec", "-w", "/app", "cov-target", "pytest", "-q"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("argv = %v, want %v", got, want)
	}

	got = env.execArgv("src", false, []string{"ls"})
	want = []string{"docker", "exec", "-w", "/app/src", "cov-target", "ls"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("argv with workdir = %v, want %v", got, want)
	}

	got = env.execArgv("", true, []string{"sh", "-c", "cat > /app/x"})
	want = []string{"docker", "exec", "-i", "-w", "/app", "cov-target", "sh", "-c", "cat > /app/x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("argv with stdin = %v, want %v", got, want)
	}
}

func TestDockerEnv_Resolve(t *testing.T) {
	env := NewDockerEnv("cov-target", "/app", nil, nil)

	tests := []struct {
		in   string
		want string
	}{
		{"src/util.py", "/app/src/util.py"},
		{"/opt/other.py", "/opt/other.py"},
		{"./a/../b.py", "/app/b.py"},
	}
	for _, tt := range tests {
		if got := env.resolve(tt.in); got != tt.want {
			t.Errorf("resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if got := env.resolveDir(""); got != "/app" {
		t.Errorf("resolveDir(\"\") = %q, want /app", got)
	}
}

func TestNewDockerEnv_DefaultWorkdir(t *testing.T) {
	env := NewDockerEnv("c", "", nil, nil)
	if env.workdir != "/app" {
		t.Errorf("workdir = %q, want /app", env.workdir)
	}
	if env.Container() != "c" {
		t.Errorf("Container() = %q, want c", env.Container())
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"with space", "'with space'"},
		{"it's", `'it'\''s'`},
		{"$HOME", "'$HOME'"},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDockerEnv_CheckReachable(t *testing.T) {
	env := NewDockerEnv("cov-target", "/app", nil, nil)

	if err := env.checkReachable(&ExecResult{ExitCode: 0}); err != nil {
		t.Errorf("exit 0: %v", err)
	}

	// An in-container failure is the caller's business, not
	// unreachability.
	if err := env.checkReachable(&ExecResult{ExitCode: 1, Stderr: "pytest: error"}); err != nil {
		t.Errorf("command failure: %v", err)
	}

	err := env.checkReachable(&ExecResult{ExitCode: 1, Stderr: "Error response from daemon: No such container: cov-target"})
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("missing container: error = %v, want ErrUnreachable", err)
	}

	err = env.checkReachable(&ExecResult{ExitCode: 1, Stderr: "container cov-target is not running"})
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("stopped container: error = %v, want ErrUnreachable", err)
	}
}
