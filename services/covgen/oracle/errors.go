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
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"

	openai "github.com/sashabaranov/go-openai"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrEmptyRequest indicates a completion was requested with no messages.
	ErrEmptyRequest = errors.New("completion request must not be empty")

	// ErrNoCredential indicates the credential source produced no token.
	// Credential failures are never retried.
	ErrNoCredential = errors.New("no oracle credential available")

	// ErrCircuitOpen indicates the circuit breaker is rejecting requests.
	ErrCircuitOpen = errors.New("oracle circuit breaker open")
)

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// ErrorKind classifies a completion failure. The retryable kinds form a
// closed set; anything that does not classify is KindInvalid and terminal.
type ErrorKind int

const (
	// KindInvalid covers client bugs, auth failures, and any HTTP status
	// outside the retryable set. Never retried.
	KindInvalid ErrorKind = iota

	// KindRateLimited covers HTTP 429.
	KindRateLimited

	// KindServerError covers HTTP 500, 502, 503, and 504.
	KindServerError

	// KindTimeout covers per-request deadline expiry.
	KindTimeout

	// KindConnection covers transport-level failures before a status
	// line was received.
	KindConnection
)

// String returns the human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	default:
		return "invalid"
	}
}

// OracleError is a classified completion failure.
type OracleError struct {
	// Kind determines whether the failure is retryable.
	Kind ErrorKind

	// StatusCode is the HTTP status, 0 when no status was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *OracleError) Error() string {
	if e.StatusCode > 0 {
		return "oracle " + e.Kind.String() + " (status " + strconv.Itoa(e.StatusCode) + "): " + e.Err.Error()
	}
	return "oracle " + e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *OracleError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure kind is in the retryable set.
func (e *OracleError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServerError, KindTimeout, KindConnection:
		return true
	default:
		return false
	}
}

// Classify maps an arbitrary completion failure onto an OracleError.
//
// Description:
//
//	HTTP statuses map through the closed retryable set (429 and the four
//	server-side 5xx codes). Deadline expiry and net-level timeouts map to
//	KindTimeout. Connection-level failures (refused, reset, premature
//	close) map to KindConnection. Everything else, including context
//	cancellation and credential failures, is KindInvalid and terminal.
//
// Inputs:
//
//	err - The failure to classify. Must not be nil.
//
// Outputs:
//
//	*OracleError - The classified failure. Idempotent: an already
//	classified error is returned unchanged.
func Classify(err error) *OracleError {
	var oerr *OracleError
	if errors.As(err, &oerr) {
		return oerr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	// Cancellation is caller intent, not a transient fault.
	if errors.Is(err, context.Canceled) {
		return &OracleError{Kind: KindInvalid, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &OracleError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &OracleError{Kind: KindTimeout, Err: err}
	}

	if isConnectionError(err) {
		return &OracleError{Kind: KindConnection, Err: err}
	}

	return &OracleError{Kind: KindInvalid, Err: err}
}

// classifyStatus maps an HTTP status onto the closed retryable set.
func classifyStatus(status int, err error) *OracleError {
	switch status {
	case http.StatusTooManyRequests:
		return &OracleError{Kind: KindRateLimited, StatusCode: status, Err: err}
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return &OracleError{Kind: KindServerError, StatusCode: status, Err: err}
	default:
		return &OracleError{Kind: KindInvalid, StatusCode: status, Err: err}
	}
}

// isConnectionError reports whether err is a transport failure that
// occurred before any HTTP status was received.
func isConnectionError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// url.Error timeouts were handled above; what remains is
		// dial or transport failure.
		return true
	}
	return false
}

// IsRetryable reports whether the retry loop should attempt err again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable()
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// RetryExhaustedError is the terminal failure after the retry budget is
// spent on retryable errors. It embeds the last underlying cause.
type RetryExhaustedError struct {
	// Attempts is the number of attempts made.
	Attempts int

	// MaxAttempts is the configured attempt budget.
	MaxAttempts int

	// LastErr is the classified error from the final attempt.
	LastErr error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("oracle retries exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

// Unwrap returns the error from the final attempt.
func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}
