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
	"strings"

	"github.com/AleutianAI/covgen/services/covgen/coverage"
)

// =============================================================================
// PROMPTS
// =============================================================================

const pythonSynthesisSystemPrompt = `You are an expert Python test generator specializing in creating comprehensive unit tests for uncovered code segments.

Your task is to analyze uncovered code lines and generate pytest-based test cases that will execute these specific lines.

## Guidelines:
- Generate tests using the pytest framework
- Focus SPECIFICALLY on testing the uncovered lines mentioned
- Create test cases that will execute the uncovered code paths
- Include edge cases, boundary conditions, and error scenarios
- Use unittest.mock when mocking is necessary
- Generate complete, runnable test functions with descriptive names
- Include necessary imports and setup code

## Output Format:
1. Your output must be a single, complete, standard JSON object.
2. Do NOT wrap your output in triple quotes, markdown formatting, or any extra code blocks.
3. In the "test_code" field, escape all newlines as \n per JSON string requirements.
4. Only a valid JSON object starting with { and ending with }.

## Example output:
{
"test_file_path": "tests/test_adapters_extra.py",
"test_code": "import pytest\nfrom unittest.mock import Mock, patch\n# ...rest of your test code"
}

The test_file_path should be in the tests/ directory with an "extra" suffix to avoid conflicts with existing files.
Do NOT wrap test_code in triple quotes. No additional text or markdown formatting.`

const javaSynthesisSystemPrompt = `You are an expert Java test generator specializing in creating comprehensive unit tests for uncovered code segments.

Your task is to analyze uncovered code lines and generate JUnit 5-based test cases that will execute these specific lines.

## Guidelines:
- Generate tests using JUnit 5 (@Test, @BeforeEach, @AfterEach)
- Focus SPECIFICALLY on testing the uncovered lines mentioned
- Create test cases that will execute the uncovered code paths
- Include edge cases, boundary conditions, and error scenarios
- Use Mockito when mocking is necessary
- Generate complete, runnable test methods with descriptive names
- Include necessary imports and annotations

## Output Format:
Return your response as a single JSON object:
{
    "test_file_path": "src/test/java/<package_path>/<OriginalClassName>ExtraTest.java",
    "test_code": "<complete_java_test_code>"
}

IMPORTANT:
- The test class name MUST match the file name, with an "Extra" suffix to avoid conflicts with existing test files
- The package declaration in the test code must match the test_file_path
Do NOT wrap test_code in triple quotes. No additional text or markdown formatting.`

// synthesisSystemPrompt picks the instruction block for a language.
func synthesisSystemPrompt(language string) string {
	switch language {
	case "python":
		return pythonSynthesisSystemPrompt
	case "java":
		return javaSynthesisSystemPrompt
	default:
		return fmt.Sprintf(`You are an expert %s test generator. Generate comprehensive unit tests that execute the uncovered lines mentioned.

Return a single JSON object {"test_file_path": string, "test_code": string} with newlines in test_code escaped as \n. No markdown, no explanations.`, language)
	}
}

func buildSynthesisPrompt(language, filePath, content, uncoveredDesc, relatedCode string) string {
	var sb strings.Builder

	sb.WriteString("## Project Information\n")
	sb.WriteString(fmt.Sprintf("- **Language**: %s\n", language))
	sb.WriteString(fmt.Sprintf("- **Target File**: %s\n\n", filePath))

	sb.WriteString("## Target File Content\n")
	sb.WriteString(fmt.Sprintf("```%s\n", language))
	sb.WriteString(content)
	sb.WriteString("\n```\n\n")

	sb.WriteString("## Uncovered Code Lines to Test\n")
	sb.WriteString(uncoveredDesc)
	sb.WriteString("\n\n")

	sb.WriteString("## Related Code Context\n")
	sb.WriteString(fmt.Sprintf("```%s\n", language))
	sb.WriteString(relatedCode)
	sb.WriteString("\n```\n\n")

	sb.WriteString("## Test Generation Requirements\n")
	sb.WriteString("Generate comprehensive test cases that will specifically execute the uncovered lines mentioned above. ")
	sb.WriteString("Return a JSON response with test_file_path and test_code; the test code must be complete and runnable as-is.\n")

	return sb.String()
}

// describeUncovered renders the uncovered portions of one file record for
// the prompt: the overall line list, then each contiguous segment with
// its enclosing function and source text.
func describeUncovered(rec coverage.FileRecord, segments []coverage.UncoveredSegment) string {
	var sb strings.Builder
	sb.WriteString("Uncovered lines: ")
	sb.WriteString(coverage.DescribeLines(rec.UncoveredLines))

	for _, seg := range segments {
		if seg.FilePath != rec.FilePath {
			continue
		}
		sb.WriteString("\n\n")
		if seg.LineStart == seg.LineEnd {
			sb.WriteString(fmt.Sprintf("Line %d", seg.LineStart))
		} else {
			sb.WriteString(fmt.Sprintf("Lines %d-%d", seg.LineStart, seg.LineEnd))
		}
		if seg.EnclosingFunction != "" {
			sb.WriteString(fmt.Sprintf(" in %s", seg.EnclosingFunction))
		}
		sb.WriteString(":\n")
		sb.WriteString(seg.CodeSnippet)
	}

	return sb.String()
}
