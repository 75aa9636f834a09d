// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/AleutianAI/covgen/services/covgen/lang"
	"github.com/AleutianAI/covgen/services/covgen/oracle"
	"github.com/AleutianAI/covgen/services/covgen/sandbox"
)

// System prompt discriminators for the two query kinds.
const (
	discoverQuery = "resolving dependent files"
	extractQuery  = "internal code dependencies"
)

// oracleRule answers one query shape: it fires when the system prompt
// contains sys and the user prompt contains user.
type oracleRule struct {
	sys      string
	user     string
	response string
	hits     int
}

type fakeOracle struct {
	rules []*oracleRule
	calls int
	err   error
}

func (f *fakeOracle) Complete(_ context.Context, msgs []oracle.Message) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(msgs) != 2 {
		return "", fmt.Errorf("expected 2 messages, got %d", len(msgs))
	}
	sys, user := msgs[0].Content, msgs[1].Content
	for _, rule := range f.rules {
		if strings.Contains(sys, rule.sys) && strings.Contains(user, rule.user) {
			rule.hits++
			return rule.response, nil
		}
	}
	return "{}", nil
}

// discoverFor matches the dependent-files query for one file path.
func discoverFor(path string, deps ...string) *oracleRule {
	payload, _ := json.Marshal(map[string][]string{"dependent_files": deps})
	return &oracleRule{
		sys:      discoverQuery,
		user:     "### Target File Path\n```\n" + path + "\n```",
		response: string(payload),
	}
}

// extractFor matches the invoked-code query by a marker unique to the
// file's content.
func extractFor(contentMarker, snippet string) *oracleRule {
	payload, _ := json.Marshal(map[string]string{"invoked_code_snippet": snippet})
	return &oracleRule{
		sys:      extractQuery,
		user:     contentMarker,
		response: string(payload),
	}
}

type fakeEnv struct {
	files       map[string]string
	reads       []string
	unreachable bool
}

func (f *fakeEnv) Run(_ context.Context, spec sandbox.CommandSpec) (*sandbox.ExecResult, error) {
	if f.unreachable {
		return nil, sandbox.ErrUnreachable
	}
	if len(spec.Argv) > 0 && spec.Argv[0] == "tree" {
		return &sandbox.ExecResult{ExitCode: 127, Stderr: "sh: tree: not found"}, nil
	}
	pattern := ""
	for i, a := range spec.Argv {
		if a == "-name" && i+1 < len(spec.Argv) {
			pattern = spec.Argv[i+1]
			break
		}
	}
	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var sb strings.Builder
	for _, p := range paths {
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, filepath.Base(p)); !ok {
				continue
			}
		}
		sb.WriteString("./" + p + "\n")
	}
	return &sandbox.ExecResult{Stdout: sb.String()}, nil
}

func (f *fakeEnv) ReadFile(_ context.Context, path string) (string, error) {
	if f.unreachable {
		return "", fmt.Errorf("docker exec: %w", sandbox.ErrUnreachable)
	}
	f.reads = append(f.reads, path)
	content, ok := f.files[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", sandbox.ErrReadFailed, path)
	}
	return content, nil
}

func (f *fakeEnv) WriteFile(_ context.Context, path string, content string) error {
	f.files[path] = content
	return nil
}

func (f *fakeEnv) PathExists(_ context.Context, path string) (bool, error) {
	if f.unreachable {
		return false, fmt.Errorf("docker exec: %w", sandbox.ErrUnreachable)
	}
	_, ok := f.files[path]
	return ok, nil
}

func newResolver(t *testing.T, env *fakeEnv, orc *fakeOracle) *Resolver {
	t.Helper()
	cfg, ok := lang.Get("python")
	if !ok {
		t.Fatal("python language config missing")
	}
	return NewResolver(env, orc, cfg, nil)
}

func TestResolve_DepthZeroReturnsTargetOnly(t *testing.T) {
	env := &fakeEnv{files: map[string]string{
		"a.py": "import b\n",
		"b.py": "def helper():\n    return 1\n",
	}}
	orc := &fakeOracle{rules: []*oracleRule{
		discoverFor("a.py", "b.py"),
	}}
	r := newResolver(t, env, orc)

	got, err := r.Resolve(context.Background(), "a.py", 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := "# File: a.py\nimport b\n\n"
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
	if len(env.reads) != 1 || env.reads[0] != "a.py" {
		t.Errorf("reads = %v, want just the target", env.reads)
	}
}

func TestResolve_EmitsDependenciesBeforeDependents(t *testing.T) {
	env := &fakeEnv{files: map[string]string{
		"a.py":    "from util import helper\nhelper()\n",
		"util.py": "def helper():\n    return 1\n",
	}}
	orc := &fakeOracle{rules: []*oracleRule{
		discoverFor("a.py", "util.py"),
		discoverFor("util.py"),
		extractFor("def helper():", "def helper():\n    return 1"),
	}}
	r := newResolver(t, env, orc)

	got, err := r.Resolve(context.Background(), "a.py", 2)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	utilIdx := strings.Index(got, "# File: util.py")
	targetIdx := strings.Index(got, "# File: a.py")
	if utilIdx < 0 || targetIdx < 0 {
		t.Fatalf("Resolve() missing a header:\n%s", got)
	}
	if utilIdx > targetIdx {
		t.Errorf("dependency emitted after dependent:\n%s", got)
	}
}

func TestResolve_CycleTerminates(t *testing.T) {
	env := &fakeEnv{files: map[string]string{
		"a.py": "import b\n",
		"b.py": "import a\ndef g():\n    return 2\n",
	}}
	orc := &fakeOracle{rules: []*oracleRule{
		discoverFor("a.py", "b.py"),
		discoverFor("b.py", "a.py"),
		extractFor("def g():", "def g():\n    return 2"),
	}}
	r := newResolver(t, env, orc)

	got, err := r.Resolve(context.Background(), "a.py", 5)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if n := strings.Count(got, "# File: a.py"); n != 1 {
		t.Errorf("target emitted %d times, want 1", n)
	}
	if n := strings.Count(got, "# File: b.py"); n != 1 {
		t.Errorf("dependency emitted %d times, want 1", n)
	}
	// One discovery per file plus one extraction for b.
	if orc.calls != 3 {
		t.Errorf("oracle calls = %d, want 3", orc.calls)
	}
}

func TestResolve_EmptyExtractionStopsTraversal(t *testing.T) {
	env := &fakeEnv{files: map[string]string{
		"a.py": "import b\n",
		"b.py": "import c\ndef unused():\n    pass\n",
		"c.py": "def deep():\n    return 3\n",
	}}
	orc := &fakeOracle{rules: []*oracleRule{
		discoverFor("a.py", "b.py"),
		discoverFor("b.py", "c.py"),
		extractFor("def unused():", ""),
	}}
	r := newResolver(t, env, orc)

	got, err := r.Resolve(context.Background(), "a.py", 5)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if strings.Contains(got, "# File: b.py") {
		t.Errorf("file with empty extraction must not be emitted:\n%s", got)
	}
	for _, read := range env.reads {
		if read == "c.py" {
			t.Error("traversal continued through a file that contributed nothing")
		}
	}
}

func TestResolve_MissingDependencyDropped(t *testing.T) {
	env := &fakeEnv{files: map[string]string{
		"a.py": "import ghost\n",
	}}
	orc := &fakeOracle{rules: []*oracleRule{
		discoverFor("a.py", "ghost.py"),
	}}
	r := newResolver(t, env, orc)

	got, err := r.Resolve(context.Background(), "a.py", 3)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if strings.Contains(got, "ghost") {
		t.Errorf("missing dependency leaked into output:\n%s", got)
	}
	if len(env.reads) != 1 {
		t.Errorf("reads = %v, want just the target", env.reads)
	}
}

func TestResolve_MultiPathFileHandledOnce(t *testing.T) {
	env := &fakeEnv{files: map[string]string{
		"a.py": "import b\nimport c\n",
		"b.py": "import d\n# via-b\n",
		"c.py": "import d\n# via-c\n",
		"d.py": "# shared\ndef shared():\n    return 4\n",
	}}
	sharedRule := extractFor("# shared", "def shared():\n    return 4")
	orc := &fakeOracle{rules: []*oracleRule{
		discoverFor("a.py", "b.py", "c.py"),
		discoverFor("b.py", "d.py"),
		discoverFor("c.py", "d.py"),
		discoverFor("d.py"),
		extractFor("# via-b", "import d"),
		extractFor("# via-c", "import d"),
		sharedRule,
	}}
	r := newResolver(t, env, orc)

	got, err := r.Resolve(context.Background(), "a.py", 5)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if sharedRule.hits != 1 {
		t.Errorf("shared file extracted %d times, want 1", sharedRule.hits)
	}
	if n := strings.Count(got, "# File: d.py"); n != 1 {
		t.Errorf("shared file emitted %d times, want 1", n)
	}
}

func TestResolve_FencedResponsesParsed(t *testing.T) {
	env := &fakeEnv{files: map[string]string{
		"a.py": "import b\n",
		"b.py": "def fenced():\n    return 5\n",
	}}
	orc := &fakeOracle{rules: []*oracleRule{
		{
			sys:      discoverQuery,
			user:     "### Target File Path\n```\na.py\n```",
			response: "```json\n{\"dependent_files\": [\"b.py\"]}\n```",
		},
		{
			sys:      extractQuery,
			user:     "def fenced():",
			response: "```json\n{\"invoked_code_snippet\": \"def fenced():\\n    return 5\"}\n```",
		},
	}}
	r := newResolver(t, env, orc)

	got, err := r.Resolve(context.Background(), "a.py", 2)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !strings.Contains(got, "# File: b.py") {
		t.Errorf("fenced responses not honored:\n%s", got)
	}
}

func TestResolve_MalformedResponseDegrades(t *testing.T) {
	env := &fakeEnv{files: map[string]string{
		"a.py": "import b\n",
		"b.py": "def h():\n    return 6\n",
	}}
	orc := &fakeOracle{rules: []*oracleRule{
		{
			sys:      discoverQuery,
			user:     "### Target File Path\n```\na.py\n```",
			response: "sorry, no JSON today",
		},
	}}
	r := newResolver(t, env, orc)

	got, err := r.Resolve(context.Background(), "a.py", 2)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !strings.Contains(got, "# File: a.py") {
		t.Errorf("target content missing:\n%s", got)
	}
	if strings.Contains(got, "# File: b.py") {
		t.Errorf("dependencies discovered from malformed response:\n%s", got)
	}
}

func TestResolve_OracleFailureDegrades(t *testing.T) {
	env := &fakeEnv{files: map[string]string{"a.py": "x = 1\n"}}
	orc := &fakeOracle{err: errors.New("oracle down")}
	r := newResolver(t, env, orc)

	got, err := r.Resolve(context.Background(), "a.py", 3)
	if err != nil {
		t.Fatalf("Resolve() error = %v, want degraded result", err)
	}
	if !strings.Contains(got, "# File: a.py") {
		t.Errorf("target content missing after oracle failure:\n%s", got)
	}
}

func TestResolve_CredentialFailureAborts(t *testing.T) {
	env := &fakeEnv{files: map[string]string{"a.py": "x = 1\n"}}
	orc := &fakeOracle{err: fmt.Errorf("token fetch: %w", oracle.ErrNoCredential)}
	r := newResolver(t, env, orc)

	_, err := r.Resolve(context.Background(), "a.py", 3)
	if !errors.Is(err, oracle.ErrNoCredential) {
		t.Errorf("Resolve() error = %v, want ErrNoCredential", err)
	}
}

func TestResolve_UnreadableTargetYieldsEmpty(t *testing.T) {
	env := &fakeEnv{files: map[string]string{}}
	orc := &fakeOracle{}
	r := newResolver(t, env, orc)

	got, err := r.Resolve(context.Background(), "a.py", 3)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "" {
		t.Errorf("Resolve() = %q, want empty", got)
	}
	if orc.calls != 0 {
		t.Errorf("oracle consulted %d times for an unreadable target", orc.calls)
	}
}

func TestResolve_UnreachableEnvironmentFails(t *testing.T) {
	env := &fakeEnv{unreachable: true}
	orc := &fakeOracle{}
	r := newResolver(t, env, orc)

	_, err := r.Resolve(context.Background(), "a.py", 3)
	if !errors.Is(err, sandbox.ErrUnreachable) {
		t.Errorf("Resolve() error = %v, want ErrUnreachable", err)
	}
}

func TestResolve_InputValidation(t *testing.T) {
	env := &fakeEnv{files: map[string]string{}}
	r := newResolver(t, env, &fakeOracle{})

	//nolint:staticcheck // passing a nil context on purpose
	if _, err := r.Resolve(nil, "a.py", 1); !errors.Is(err, ErrNilContext) {
		t.Errorf("nil context error = %v, want ErrNilContext", err)
	}
	if _, err := r.Resolve(context.Background(), "   ", 1); !errors.Is(err, ErrEmptyTarget) {
		t.Errorf("blank target error = %v, want ErrEmptyTarget", err)
	}
}

func TestResolve_NegativeDepthTreatedAsZero(t *testing.T) {
	env := &fakeEnv{files: map[string]string{
		"a.py": "import b\n",
		"b.py": "def h():\n    return 7\n",
	}}
	orc := &fakeOracle{rules: []*oracleRule{
		discoverFor("a.py", "b.py"),
	}}
	r := newResolver(t, env, orc)

	got, err := r.Resolve(context.Background(), "a.py", -4)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if strings.Contains(got, "# File: b.py") {
		t.Errorf("negative depth expanded dependencies:\n%s", got)
	}
}
