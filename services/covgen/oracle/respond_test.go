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

import "testing"

func TestExtractJSONPayload(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "bare object",
			response: `{"a": 1}`,
			want:     `{"a": 1}`,
		},
		{
			name:     "surrounding whitespace",
			response: "\n  {\"a\": 1}\n\n",
			want:     `{"a": 1}`,
		},
		{
			name:     "json fence",
			response: "```json\n{\"a\": 1}\n```",
			want:     `{"a": 1}`,
		},
		{
			name:     "fence with prose around it",
			response: "Here you go:\n```json\n{\"a\": 1}\n```\nLet me know!",
			want:     `{"a": 1}`,
		},
		{
			name:     "multiline object in fence",
			response: "```json\n{\n  \"a\": 1,\n  \"b\": \"x\"\n}\n```",
			want:     "{\n  \"a\": 1,\n  \"b\": \"x\"\n}",
		},
		{
			name:     "empty response",
			response: "",
			want:     "",
		},
		{
			name:     "plain prose stays as-is",
			response: "I could not produce JSON.",
			want:     "I could not produce JSON.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSONPayload(tt.response); got != tt.want {
				t.Errorf("ExtractJSONPayload(%q) = %q, want %q", tt.response, got, tt.want)
			}
		})
	}
}
