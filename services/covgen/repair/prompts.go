// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repair

import (
	"fmt"
	"strings"
)

// =============================================================================
// PROMPTS
// =============================================================================

const errorAnalysisSystemPrompt = `You are a code error log analysis assistant. Your task is to extract all error messages from compiler or runtime outputs of programming projects (such as Python, Java, C#, TypeScript, etc.).

*Guidelines*:
 - Focus on identifying root cause errors only. Ignore cascade errors that occur as a consequence of other errors.
 - A root error is the original error that triggers other failures. For example, if a function has a syntax error, all errors from calling that function are cascade errors and should not be included.
 - Remove duplicate errors (the same error at the same file and location should only appear once).
 - Sort errors by priority:
   1. Global errors (e.g., missing dependencies, environment configuration issues) should be listed first
   2. Group errors from the same file together
   3. Within each file, sort errors by line number (ascending)
 - For each error, output a formatted JSON object containing:
   - "file_path": The file path where the error occurred
   - "range": The start and end line of the error
   - "message": The detailed error message

Return a JSON object with the following structure:
{
  "errors": [
    {
      "file_path": "<path/to/file>",
      "range": [start line, end line],
      "message": "<error message>"
    }
  ]
}
Do not include any explanations or extra text, just the JSON output.`

const commandFixSystemPrompt = `You are a code error fixing assistant. Your task is to analyze code errors and provide either fixed code or commands to resolve the issue.

*Guidelines*:
 - Analyze the provided error message and identify the root cause
 - Determine if the error can be fixed by modifying code or requires running commands
 - For code-fixable errors: provide the complete fixed code block
 - For command-fixable errors: provide the exact commands needed to resolve the issue (e.g., pip install, npm install, apt-get install)
 - Maintain the original code structure and style when providing fixes
 - Do not add unnecessary changes beyond fixing the reported error
 - **IMPORTANT**: Return fixed code WITHOUT line numbers, only clean code content

Return a JSON object with ONE of the following structures:

For code fixes:
{
  "fix_type": "code",
  "fixed_code": "[complete fixed code without line numbers]",
  "language": "[programming language]"
}

For command fixes:
{
  "fix_type": "command",
  "commands": ["command1", "command2"],
  "description": "Brief description of what these commands do"
}

If the error cannot be fixed, return:
{
  "fix_type": "unfixable",
  "reason": "Explanation of why the error cannot be fixed"
}`

const codeFixSystemPrompt = `You are a code error fixing assistant. Your task is to analyze code errors and provide complete fixed code.

*Guidelines*:
 - Analyze the provided error message and identify the root cause
 - Focus on the specific error block indicated, but consider the full code context
 - Only fix errors that can be resolved by modifying the provided error block
 - Provide the complete fixed code block, not just the changes
 - Maintain the original code structure and style
 - Do not add unnecessary changes beyond fixing the reported error
 - **IMPORTANT**: Return the fixed code WITHOUT line numbers, only clean code content

Return a JSON object with ONE of the following structures:

For code fixes:
{
  "fix_type": "code",
  "fixed_code": "[complete fixed code without line numbers]",
  "language": "[programming language]"
}

If the error cannot be fixed by modifying the error block (e.g., missing dependencies, external configuration issues), return:
{
  "fix_type": "unfixable",
  "reason": "Explanation of why the error cannot be fixed"
}`

func buildErrorAnalysisPrompt(errorLog string) string {
	var sb strings.Builder
	sb.WriteString("### Error Log\n```\n")
	sb.WriteString(errorLog)
	sb.WriteString("\n```\n")
	sb.WriteString("Please analyze the above error log and extract all unique error messages, ")
	sb.WriteString("including their file paths and line ranges. Format your response as specified in the system prompt.\n")
	return sb.String()
}

func buildFixPrompt(language, fullCode, errorBlock, errorMessage string) string {
	var sb strings.Builder

	sb.WriteString("### Full Code with Line Numbers\n")
	sb.WriteString(fmt.Sprintf("```%s\n", language))
	sb.WriteString(fullCode)
	sb.WriteString("\n```\n\n")

	sb.WriteString("### Error Block with Line Numbers\n")
	sb.WriteString(fmt.Sprintf("```%s\n", language))
	sb.WriteString(errorBlock)
	sb.WriteString("\n```\n\n")

	sb.WriteString("### Error Message\n```\n")
	sb.WriteString(errorMessage)
	sb.WriteString("\n```\n\n")

	sb.WriteString("Please analyze the error and provide the appropriate fix in JSON format. ")
	sb.WriteString("If the error can be fixed by modifying code, include the complete fixed code. ")
	sb.WriteString("If the error requires running commands (e.g., installing dependencies), provide the necessary commands.\n\n")
	sb.WriteString("**IMPORTANT**: Return the fixed code WITHOUT line numbers, only the clean code content.\n")

	return sb.String()
}
