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

import "errors"

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrEmptyCommand indicates a CommandSpec with no argv.
	ErrEmptyCommand = errors.New("command argv must not be empty")

	// ErrCommandTimeout indicates the command exceeded its budget.
	ErrCommandTimeout = errors.New("sandbox command timeout")

	// ErrReadFailed indicates a file could not be read.
	ErrReadFailed = errors.New("sandbox file read failed")

	// ErrWriteFailed indicates a file could not be written.
	ErrWriteFailed = errors.New("sandbox file write failed")

	// ErrUnreachable indicates the environment cannot be talked to at
	// all, e.g. the container is gone. Aborts the run.
	ErrUnreachable = errors.New("sandbox environment unreachable")
)
