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
	"sync"
	"time"
)

// =============================================================================
// CIRCUIT BREAKER
// =============================================================================

// BreakerState represents the state of the circuit breaker.
type BreakerState int

const (
	// BreakerClosed allows requests through normally.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects all requests immediately.
	BreakerOpen

	// BreakerHalfOpen allows limited probe requests to test recovery.
	BreakerHalfOpen
)

// String returns the human-readable name for the breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before
	// opening. Default: 5
	FailureThreshold int

	// ResetTimeout is the wait before an open breaker admits probes.
	// Default: 30s
	ResetTimeout time.Duration

	// HalfOpenMaxProbes is the number of probe requests admitted while
	// half-open. Default: 2
	HalfOpenMaxProbes int

	// SuccessThreshold is the number of consecutive probe successes
	// needed to close. Default: 2
	SuccessThreshold int
}

// DefaultBreakerConfig returns sensible defaults for the breaker.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
		HalfOpenMaxProbes: 2,
		SuccessThreshold:  2,
	}
}

// Breaker sheds load from a failing completion endpoint. A long run of
// failures opens the breaker; after a cooldown a few probes are admitted,
// and sustained probe success closes it again.
//
// Thread Safety: Safe for concurrent use.
type Breaker struct {
	config BreakerConfig

	state       BreakerState
	failures    int
	successes   int
	probes      int
	lastFailure time.Time

	mu sync.Mutex
}

// NewBreaker creates a circuit breaker in the closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	if config.HalfOpenMaxProbes < 1 {
		config.HalfOpenMaxProbes = 1
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	return &Breaker{config: config, state: BreakerClosed}
}

// Allow reports whether a request may proceed. In the half-open state it
// also counts the admitted probe.
//
// Thread Safety: Safe for concurrent use.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.lastFailure) >= b.config.ResetTimeout {
			b.transition(BreakerHalfOpen)
			b.probes = 1
			return true
		}
		return false
	case BreakerHalfOpen:
		if b.probes < b.config.HalfOpenMaxProbes {
			b.probes++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful request. Enough consecutive probe
// successes close a half-open breaker.
//
// Thread Safety: Safe for concurrent use.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transition(BreakerClosed)
		}
	}
}

// RecordFailure records a failed request. Crossing the failure threshold
// opens the breaker; any half-open failure reopens it.
//
// Thread Safety: Safe for concurrent use.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	}
}

// State returns the current breaker state.
//
// Thread Safety: Safe for concurrent use.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed. Intended for tests and manual
// intervention.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(BreakerClosed)
	b.failures = 0
}

// transition changes state and clears per-state counters.
// Must be called with the lock held.
func (b *Breaker) transition(next BreakerState) {
	b.state = next
	b.successes = 0
	b.probes = 0
	if next == BreakerClosed {
		b.failures = 0
	}
}
