// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// =============================================================================
// CREDENTIAL SOURCES
// =============================================================================

// CredentialSource produces a bearer token for one completion attempt.
//
// The client consults the source immediately before every request, so an
// implementation backed by a rotating token (env var rewritten by an
// agent, sidecar-refreshed file) is always read fresh. Implementations
// should be cheap; the client performs no caching of its own.
type CredentialSource interface {
	// Token returns the current bearer token.
	// Returns ErrNoCredential (possibly wrapped) when none is available.
	Token(ctx context.Context) (string, error)
}

// CredentialFunc adapts a function to the CredentialSource interface.
type CredentialFunc func(ctx context.Context) (string, error)

// Token implements CredentialSource.
func (f CredentialFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticCredential is a fixed token, useful for tests and long-lived keys.
type StaticCredential string

// Token implements CredentialSource.
func (s StaticCredential) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// EnvCredential reads the token from an environment variable on every
// call, picking up rotation without restart.
type EnvCredential struct {
	// Var is the environment variable name.
	Var string
}

// Token implements CredentialSource.
func (e EnvCredential) Token(_ context.Context) (string, error) {
	v := strings.TrimSpace(os.Getenv(e.Var))
	if v == "" {
		return "", fmt.Errorf("%w: environment variable %s is empty", ErrNoCredential, e.Var)
	}
	return v, nil
}

// FileCredential reads the token from a file on every call. This matches
// secret mounts that are refreshed in place by an external agent.
type FileCredential struct {
	// Path is the token file location.
	Path string
}

// Token implements CredentialSource.
func (f FileCredential) Token(_ context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrNoCredential, f.Path, err)
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoCredential, f.Path)
	}
	return v, nil
}

// ChainCredential tries each source in order and returns the first token.
type ChainCredential []CredentialSource

// Token implements CredentialSource.
func (c ChainCredential) Token(ctx context.Context) (string, error) {
	for _, src := range c {
		if tok, err := src.Token(ctx); err == nil {
			return tok, nil
		}
	}
	return "", ErrNoCredential
}

// DefaultCredentials returns the standard lookup chain: the ORACLE_TOKEN
// environment variable, then OPENAI_API_KEY, then the conventional
// container secret mount.
func DefaultCredentials() CredentialSource {
	return ChainCredential{
		EnvCredential{Var: "ORACLE_TOKEN"},
		EnvCredential{Var: "OPENAI_API_KEY"},
		FileCredential{Path: "/run/secrets/openai_api_key"},
	}
}
