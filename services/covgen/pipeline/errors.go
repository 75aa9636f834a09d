// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import "errors"

var (
	// ErrNilContext indicates a nil context was passed.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrMissingDependency indicates a required component was nil. The
	// wrapped message names it.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrUnknownLanguage indicates the configured language has no registry
	// entry.
	ErrUnknownLanguage = errors.New("unknown language")
)
