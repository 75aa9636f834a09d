// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package synth

import (
	"fmt"
	"path/filepath"
	"strings"
)

// uniqueTestPath disambiguates a test path already claimed by an earlier
// record in the same run. The first collision gets a _2 suffix before the
// extension, the next _3, and so on. Silently overwriting an earlier
// file's tests would throw away coverage work.
func uniqueTestPath(path string, taken map[string]string) string {
	if _, exists := taken[path]; !exists {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
	}
}
