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
	"regexp"
	"strings"
)

// Completions are asked for bare JSON, but models routinely wrap the
// object in a markdown fence anyway. Every structured response in the
// pipeline goes through ExtractJSONPayload before unmarshalling.

var jsonFencePattern = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n\\s*```")

// ExtractJSONPayload returns the JSON text of a completion, unwrapping a
// ```json fence when one is present.
//
// Description:
//
//	Searches the response for the first ```json fenced block and returns
//	its body. Without a fence the trimmed response is returned as-is, so
//	callers can hand the result straight to json.Unmarshal either way.
//	No validation is performed here; a malformed payload surfaces as an
//	unmarshal error at the call site.
func ExtractJSONPayload(response string) string {
	trimmed := strings.TrimSpace(response)
	if m := jsonFencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}
