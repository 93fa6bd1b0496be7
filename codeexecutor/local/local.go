//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package local provides a CodeExecutor that executes code blocks in the
// local environment. It supports Python and Bash scripts, executing them
// in the current local command line.
package local

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentflow-go/agentflow/codeexecutor"
	"github.com/agentflow-go/agentflow/log"
)

// CodeExecutor unsafely executes code in the current local command line.
type CodeExecutor struct {
	WorkDir        string        // Working directory for code execution.
	Timeout        time.Duration // Timeout for any single code block.
	CleanTempFiles bool          // Whether to clean temporary files after execution.
}

// Option configures the CodeExecutor.
type Option func(*CodeExecutor)

// WithWorkDir sets the working directory for code execution.
func WithWorkDir(workDir string) Option {
	return func(l *CodeExecutor) {
		l.WorkDir = workDir
	}
}

// WithTimeout sets the timeout for code execution.
func WithTimeout(timeout time.Duration) Option {
	return func(l *CodeExecutor) {
		l.Timeout = timeout
	}
}

// WithCleanTempFiles sets whether to clean temporary files after execution.
func WithCleanTempFiles(clean bool) Option {
	return func(l *CodeExecutor) {
		l.CleanTempFiles = clean
	}
}

// New creates a new CodeExecutor with the given options.
func New(options ...Option) *CodeExecutor {
	executor := &CodeExecutor{
		Timeout:        30 * time.Second,
		CleanTempFiles: true,
	}
	for _, option := range options {
		option(executor)
	}
	return executor
}

// ExecuteCode executes the code in the local environment and returns the result.
func (e *CodeExecutor) ExecuteCode(ctx context.Context, input codeexecutor.CodeExecutionInput) (codeexecutor.CodeExecutionResult, error) {
	var output strings.Builder

	var workDir string
	var shouldCleanup bool
	if e.WorkDir != "" {
		workDir = e.WorkDir
		if !filepath.IsAbs(workDir) {
			if abs, err := filepath.Abs(workDir); err == nil {
				workDir = abs
			}
		}
		if err := os.MkdirAll(workDir, 0755); err != nil {
			return codeexecutor.CodeExecutionResult{}, fmt.Errorf("failed to create work directory: %w", err)
		}
		// Never clean up user-specified work directories.
		shouldCleanup = false
	} else {
		tempDir, err := os.MkdirTemp("", "codeexec_"+input.ExecutionID)
		if err != nil {
			return codeexecutor.CodeExecutionResult{}, fmt.Errorf("failed to create temp directory: %w", err)
		}
		workDir = tempDir
		shouldCleanup = e.CleanTempFiles
	}

	if shouldCleanup {
		defer os.RemoveAll(workDir)
	}

	// Write input data files so executed code can read them by name.
	for _, file := range input.InputFiles {
		path := filepath.Join(workDir, filepath.Base(file.Name))
		if err := os.WriteFile(path, []byte(file.Content), 0644); err != nil {
			return codeexecutor.CodeExecutionResult{}, fmt.Errorf("failed to write input file %s: %w", file.Name, err)
		}
	}

	for i, block := range input.CodeBlocks {
		blockOutput, err := e.executeCodeBlock(ctx, workDir, block, i)
		if err != nil {
			output.WriteString(fmt.Sprintf("Error executing code block %d: %v\n", i, err))
			continue
		}
		if blockOutput != "" {
			output.WriteString(blockOutput)
		}
	}

	return codeexecutor.CodeExecutionResult{
		Output:      output.String(),
		OutputFiles: []codeexecutor.File{},
	}, nil
}

func (e *CodeExecutor) executeCodeBlock(ctx context.Context, workDir string, block codeexecutor.CodeBlock, blockIndex int) (string, error) {
	filePath, err := e.prepareCodeFile(workDir, block, blockIndex)
	if err != nil {
		return "", err
	}

	if e.CleanTempFiles {
		defer func() {
			if removeErr := os.Remove(filePath); removeErr != nil {
				log.Warnf("Failed to remove temp file %s: %v", filePath, removeErr)
			}
		}()
	}

	cmdArgs := e.buildCommandArgs(block.Language, filePath)
	if len(cmdArgs) == 0 {
		return "", fmt.Errorf("unsupported language: %s", block.Language)
	}
	return e.executeCommand(ctx, workDir, cmdArgs)
}

func (e *CodeExecutor) prepareCodeFile(workDir string, block codeexecutor.CodeBlock, blockIndex int) (string, error) {
	var filename string
	switch strings.ToLower(block.Language) {
	case "python", "py", "python3":
		filename = fmt.Sprintf("code_%d.py", blockIndex)
	case "bash", "sh":
		filename = fmt.Sprintf("code_%d.sh", blockIndex)
	default:
		return "", fmt.Errorf("unsupported language: %s", block.Language)
	}

	filePath := filepath.Join(workDir, filename)
	if err := os.WriteFile(filePath, []byte(block.Code), e.getFileMode(block.Language)); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", block.Language, err)
	}
	return filePath, nil
}

func (e *CodeExecutor) getFileMode(language string) os.FileMode {
	switch strings.ToLower(language) {
	case "bash", "sh":
		return 0755
	default:
		return 0644
	}
}

func (e *CodeExecutor) buildCommandArgs(language, filePath string) []string {
	switch strings.ToLower(language) {
	case "python", "py", "python3":
		return []string{"python3", filePath}
	case "bash", "sh":
		return []string{"bash", filePath}
	default:
		return nil
	}
}

func (e *CodeExecutor) executeCommand(ctx context.Context, workDir string, cmdArgs []string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, cmdArgs[0], cmdArgs[1:]...)
	cmd.Dir = workDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("command failed (cwd=%s, cmd=%s): %s: %w", workDir, strings.Join(cmdArgs, " "), string(output), err)
	}
	return string(output), nil
}

// CodeBlockDelimiter returns the code block delimiter used by the local executor.
func (e *CodeExecutor) CodeBlockDelimiter() codeexecutor.CodeBlockDelimiter {
	return codeexecutor.CodeBlockDelimiter{
		Start: "```",
		End:   "```",
	}
}
