// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deps

import (
	"fmt"
	"strings"
)

// =============================================================================
// PROMPTS
// =============================================================================

const dependentFilesSystemPrompt = `You are an assistant that specializes in resolving dependent files for a project.

Given:
    - The directory tree of the entire project.
    - The relative path (from project root) of a single source file (the "target file").
    - The code content in the target file.
    - For languages with package re-export files, the paths of those files and the import statements they contain.

Goal:
Your task is to analyze these inputs and identify all file paths, within the project, that contain code directly referenced (imported) by the target file.

*Guidelines*:
- First, read the code content of the target file to understand which imported symbols or modules are actually used.
- For each import statement used in the file, determine which files in the project tree implement or expose the corresponding code, taking re-export files into account.
- Respect the target file's relative path and the project's directory structure when resolving imports.
- If an import corresponds to multiple possible files (packages, submodules, re-exports), include all relevant file paths.
- Ignore external library imports.
- Return the relative paths only, in the specified JSON format, with no explanations.

Return a JSON object with the following structure:
` + "```json" + `
{
  "dependent_files": [
    "path/to/dependency1.py",
    "path/to/dependency2.py"
  ]
}
` + "```"

const invokedCodeSystemPrompt = `You are an assistant specialized in analyzing internal code dependencies within a single file, tasked with identifying exactly the sections of code (including relevant import statements) directly used or invoked by a provided code query snippet.

Given:
  - A snippet of code ("code query").
  - The complete code contents of a single file ("target file content").

Goal:
Return all portions of code from the provided file, including functions, classes, variables, constants, and relevant import statements, that are explicitly invoked, called, instantiated, referenced, or otherwise directly used by the code query.

*Guidelines*:
 - Identify exactly which functions, methods, classes, constants, or variables from the file content are referenced by the code query.
 - Return exactly these code sections, preserving their original relative order in the file.
 - Include import statements from the file if and only if they are needed by the returned sections.
 - Return one continuous snippet; do not separate imports from code.
 - Omit unrelated code and unused imports.
 - If nothing in the file is used by the code query, return an empty snippet.
 - No explanations or extra content.

Return the relevant code sections in the following JSON format:
` + "```json" + `
{
  "invoked_code_snippet": "<exact code from the file, in original relative order, with newlines escaped as \n>"
}
` + "```"

func buildDependentFilesPrompt(tree, filePath, content, language, reexports string) string {
	var sb strings.Builder

	sb.WriteString("### Project Tree Structure\n")
	sb.WriteString("```\n")
	sb.WriteString(tree)
	sb.WriteString("\n```\n\n")

	sb.WriteString("### Target File Path\n")
	sb.WriteString("```\n")
	sb.WriteString(filePath)
	sb.WriteString("\n```\n\n")

	sb.WriteString("### Code Content of Target File\n")
	sb.WriteString(fmt.Sprintf("```%s\n", language))
	sb.WriteString(content)
	sb.WriteString("\n```\n")

	if reexports != "" {
		sb.WriteString("\nImport statements from package re-export files:\n")
		sb.WriteString("```\n")
		sb.WriteString(reexports)
		sb.WriteString("\n```\n")
	}

	return sb.String()
}

func buildInvokedCodePrompt(codeQuery, content, language string) string {
	var sb strings.Builder

	sb.WriteString("### Code Query Snippet\n")
	sb.WriteString(fmt.Sprintf("```%s\n", language))
	sb.WriteString(codeQuery)
	sb.WriteString("\n```\n\n")

	sb.WriteString("### Target File Content\n")
	sb.WriteString(fmt.Sprintf("```%s\n", language))
	sb.WriteString(content)
	sb.WriteString("\n```\n")

	return sb.String()
}
