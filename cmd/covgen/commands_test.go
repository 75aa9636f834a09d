// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/covgen/cmd/covgen/config"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	if got := expandHome("~/.covgen/journal"); got != filepath.Join(home, ".covgen", "journal") {
		t.Errorf("expandHome(~/.covgen/journal) = %q", got)
	}
	if got := expandHome("~"); got != home {
		t.Errorf("expandHome(~) = %q", got)
	}
	if got := expandHome("/var/lib/covgen"); got != "/var/lib/covgen" {
		t.Errorf("expandHome(/var/lib/covgen) = %q, want unchanged", got)
	}
	if got := expandHome("relative/path"); got != "relative/path" {
		t.Errorf("expandHome(relative/path) = %q, want unchanged", got)
	}
}

func TestOracleConfig(t *testing.T) {
	config.Global = config.DefaultConfig()
	config.Global.Oracle.Endpoint = "http://localhost:8000/v1"
	config.Global.Oracle.TimeoutSeconds = 60
	config.Global.Oracle.EnableBreaker = true

	cfg := oracleConfig("")
	if cfg.Endpoint != "http://localhost:8000/v1" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want the configured default", cfg.Model)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.Timeout)
	}
	if !cfg.EnableBreaker {
		t.Error("EnableBreaker = false, want true")
	}
}

func TestOracleConfig_ModelOverride(t *testing.T) {
	config.Global = config.DefaultConfig()

	cfg := oracleConfig("qwen2.5-coder:32b")
	if cfg.Model != "qwen2.5-coder:32b" {
		t.Errorf("Model = %q, want the override", cfg.Model)
	}
}

func TestPipelineConfig(t *testing.T) {
	config.Global = config.DefaultConfig()
	config.Global.Run.Language = "go"
	config.Global.Run.MaxFixIterations = 7
	config.Global.Run.SuiteTimeoutSeconds = 120

	cfg := pipelineConfig("", "sess0001")
	if cfg.Language != "go" {
		t.Errorf("Language = %q, want go", cfg.Language)
	}
	if cfg.Session != "sess0001" {
		t.Errorf("Session = %q", cfg.Session)
	}
	if cfg.Repair.MaxFixIterations != 7 {
		t.Errorf("MaxFixIterations = %d, want 7", cfg.Repair.MaxFixIterations)
	}
	if cfg.Coverage.SuiteTimeout != 2*time.Minute {
		t.Errorf("SuiteTimeout = %v, want 2m", cfg.Coverage.SuiteTimeout)
	}
	if cfg.Model != "" {
		t.Errorf("Model = %q, want empty so the client's model wins", cfg.Model)
	}

	// The flag wins over the file.
	cfg = pipelineConfig("python", "")
	if cfg.Language != "python" {
		t.Errorf("Language = %q, want python", cfg.Language)
	}
}

func TestSandboxConfig(t *testing.T) {
	config.Global = config.DefaultConfig()
	config.Global.Sandbox.CommandTimeoutSeconds = 45
	config.Global.Sandbox.MaxOutputKB = 256

	cfg := sandboxConfig()
	if cfg.CommandTimeout != 45*time.Second {
		t.Errorf("CommandTimeout = %v, want 45s", cfg.CommandTimeout)
	}
	if cfg.MaxOutputBytes != 256*1024 {
		t.Errorf("MaxOutputBytes = %d, want 256KB", cfg.MaxOutputBytes)
	}
}

func TestTelemetryConfig(t *testing.T) {
	config.Global = config.DefaultConfig()
	config.Global.Telemetry.TraceExporter = "stdout"
	config.Global.Telemetry.Environment = "staging"

	cfg := telemetryConfig()
	if cfg.ServiceName != "covgen" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.ServiceVersion != Version {
		t.Errorf("ServiceVersion = %q, want %q", cfg.ServiceVersion, Version)
	}
	if cfg.TraceExporter != "stdout" {
		t.Errorf("TraceExporter = %q", cfg.TraceExporter)
	}
	if cfg.Environment != "staging" {
		t.Errorf("Environment = %q", cfg.Environment)
	}
}

func TestBuildEnvironment_RequiresTarget(t *testing.T) {
	config.Global = config.DefaultConfig()
	runContainer, runDir = "", ""

	if _, err := buildEnvironment(nil); err == nil {
		t.Fatal("expected an error when no target is flagged")
	}
}

func TestBuildEnvironment_MutuallyExclusive(t *testing.T) {
	config.Global = config.DefaultConfig()
	runContainer, runDir = "target-app", "/tmp/src"
	defer func() { runContainer, runDir = "", "" }()

	_, err := buildEnvironment(nil)
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("err = %v, want mutually exclusive", err)
	}
}
