//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package codeexecutor provides the interface and helpers for executing
// model-generated code blocks.
package codeexecutor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// CodeExecutor is an interface for executing code blocks in different environments.
type CodeExecutor interface {
	// ExecuteCode executes the code blocks provided in the input and returns the result.
	ExecuteCode(context.Context, CodeExecutionInput) (CodeExecutionResult, error)
	// CodeBlockDelimiter returns the delimiters used for code blocks.
	CodeBlockDelimiter() CodeBlockDelimiter
}

// CodeExecutionInput represents the input for code execution.
type CodeExecutionInput struct {
	CodeBlocks []CodeBlock
	// InputFiles are data files made available to the executed code.
	InputFiles  []File
	ExecutionID string
}

// CodeExecutionResult represents the result of code execution, including
// output and any generated files.
type CodeExecutionResult struct {
	Output      string
	OutputFiles []File
}

// String formats the code execution result into a human-readable string.
func (r CodeExecutionResult) String() string {
	if r.Output != "" && len(r.OutputFiles) == 0 {
		return fmt.Sprintf("Code execution result:\n%s\n", r.Output)
	}
	if len(r.OutputFiles) != 0 {
		var fileNames []string
		for _, file := range r.OutputFiles {
			fileNames = append(fileNames, file.Name)
		}
		return "Code execution result:\n Saved artifacts:\n" + strings.Join(fileNames, "\n")
	}
	return "Code execution result: No output or errors."
}

// File represents a file consumed or generated during code execution.
type File struct {
	Name     string
	Content  string
	MIMEType string
}

// CodeBlock represents a single block of code to be executed.
type CodeBlock struct {
	Code     string
	Language string
}

// CodeBlockDelimiter defines the start and end delimiters for code blocks.
type CodeBlockDelimiter struct {
	Start string
	End   string
}

// ExtractCodeBlock extracts code blocks from the input string.
// A block is delimited text whose first line names the language:
// "```python\nprint('hi')\n```" yields {Code: "print('hi')\n", Language: "python"}.
func ExtractCodeBlock(input string, delimiter CodeBlockDelimiter) []CodeBlock {
	var blocks []CodeBlock

	startDelim := regexp.QuoteMeta(delimiter.Start)
	endDelim := regexp.QuoteMeta(delimiter.End)
	pattern := regexp.MustCompile(`(?s)` + startDelim + `([^\n]*)\n(.*?)` + endDelim)

	for _, match := range pattern.FindAllStringSubmatch(input, -1) {
		if len(match) >= 3 {
			blocks = append(blocks, CodeBlock{
				Code:     match[2],
				Language: strings.TrimSpace(match[1]),
			})
		}
	}
	return blocks
}
