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
	"errors"
	"net/url"
	"syscall"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

type fakeNetError struct {
	timeout bool
}

func (e *fakeNetError) Error() string   { return "fake net error" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func apiErr(status int) error {
	return &openai.APIError{HTTPStatusCode: status, Message: "boom"}
}

func TestClassify_HTTPStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  ErrorKind
		retryable bool
	}{
		{"429 rate limited", 429, KindRateLimited, true},
		{"500 server error", 500, KindServerError, true},
		{"502 bad gateway", 502, KindServerError, true},
		{"503 unavailable", 503, KindServerError, true},
		{"504 gateway timeout", 504, KindServerError, true},
		{"400 bad request", 400, KindInvalid, false},
		{"401 unauthorized", 401, KindInvalid, false},
		{"404 not found", 404, KindInvalid, false},
		{"501 not implemented", 501, KindInvalid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(apiErr(tt.status))
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.status)
			}
			if got.Retryable() != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", got.Retryable(), tt.retryable)
			}
		})
	}
}

func TestClassify_RequestErrorStatus(t *testing.T) {
	err := &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("unavailable")}
	got := Classify(err)
	if got.Kind != KindServerError {
		t.Errorf("Kind = %v, want server_error", got.Kind)
	}
}

func TestClassify_Timeouts(t *testing.T) {
	got := Classify(context.DeadlineExceeded)
	if got.Kind != KindTimeout {
		t.Errorf("deadline: Kind = %v, want timeout", got.Kind)
	}

	got = Classify(&fakeNetError{timeout: true})
	if got.Kind != KindTimeout {
		t.Errorf("net timeout: Kind = %v, want timeout", got.Kind)
	}

	got = Classify(&url.Error{Op: "Post", URL: "http://x", Err: &fakeNetError{timeout: true}})
	if got.Kind != KindTimeout {
		t.Errorf("url timeout: Kind = %v, want timeout", got.Kind)
	}
}

func TestClassify_ConnectionFailures(t *testing.T) {
	got := Classify(&url.Error{Op: "Post", URL: "http://x", Err: syscall.ECONNREFUSED})
	if got.Kind != KindConnection {
		t.Errorf("refused: Kind = %v, want connection", got.Kind)
	}

	got = Classify(syscall.ECONNRESET)
	if got.Kind != KindConnection {
		t.Errorf("reset: Kind = %v, want connection", got.Kind)
	}
}

func TestClassify_CancellationIsTerminal(t *testing.T) {
	got := Classify(context.Canceled)
	if got.Kind != KindInvalid {
		t.Errorf("Kind = %v, want invalid", got.Kind)
	}
	if got.Retryable() {
		t.Error("cancellation must not be retryable")
	}
}

func TestClassify_UnknownIsTerminal(t *testing.T) {
	got := Classify(errors.New("some programming error"))
	if got.Kind != KindInvalid {
		t.Errorf("Kind = %v, want invalid", got.Kind)
	}
	if got.Retryable() {
		t.Error("unclassified errors must not be retryable")
	}
}

func TestClassify_Idempotent(t *testing.T) {
	orig := &OracleError{Kind: KindRateLimited, StatusCode: 429, Err: errors.New("slow down")}
	got := Classify(orig)
	if got != orig {
		t.Error("Classify should return an already classified error unchanged")
	}
}

func TestIsRetryable_Nil(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil error must not be retryable")
	}
}

func TestRetryExhaustedError_Unwrap(t *testing.T) {
	inner := &OracleError{Kind: KindServerError, StatusCode: 500, Err: errors.New("boom")}
	err := &RetryExhaustedError{Attempts: 4, MaxAttempts: 4, LastErr: inner}

	var oerr *OracleError
	if !errors.As(err, &oerr) {
		t.Fatal("errors.As should reach the wrapped OracleError")
	}
	if oerr.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", oerr.StatusCode)
	}
}

func TestOracleError_Message(t *testing.T) {
	err := &OracleError{Kind: KindRateLimited, StatusCode: 429, Err: errors.New("slow down")}
	want := "oracle rate_limited (status 429): slow down"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err = &OracleError{Kind: KindConnection, Err: errors.New("refused")}
	want = "oracle connection: refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
