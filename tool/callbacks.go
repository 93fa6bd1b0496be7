//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package tool

import (
	"context"
)

// BeforeToolCallback is called before a tool is executed.
// Returns (customResult, error).
// - customResult: if not nil, this result is used and tool execution is skipped.
// - error: if not nil, tool execution is stopped with this error.
type BeforeToolCallback func(ctx context.Context, toolName string, toolDeclaration *Declaration, jsonArgs *[]byte) (any, error)

// AfterToolCallback is called after a tool is executed.
// Returns (customResult, error).
// - customResult: if not nil, this result is used instead of the actual tool result.
// - error: if not nil, this error is returned.
type AfterToolCallback func(ctx context.Context, toolName string, toolDeclaration *Declaration, jsonArgs []byte, result any, runErr error) (any, error)

// OnToolErrorCallback is called when tool execution fails.
// Returns (customResult, error).
//   - customResult: if not nil, the failure is considered recovered and this
//     result is used as the tool response.
//   - error: if not nil, recovery stops and this error is surfaced.
type OnToolErrorCallback func(ctx context.Context, toolName string, toolDeclaration *Declaration, jsonArgs []byte, runErr error) (any, error)

// Callbacks holds callbacks for tool operations.
type Callbacks struct {
	// BeforeTool is a list of callbacks that are called before the tool is executed.
	BeforeTool []BeforeToolCallback
	// AfterTool is a list of callbacks that are called after the tool is executed.
	AfterTool []AfterToolCallback
	// OnToolError is a list of callbacks that are called when tool execution fails.
	OnToolError []OnToolErrorCallback
}

// NewCallbacks creates a new Callbacks instance for tool.
func NewCallbacks() *Callbacks {
	return &Callbacks{}
}

// RegisterBeforeTool registers a before tool callback.
func (c *Callbacks) RegisterBeforeTool(cb BeforeToolCallback) *Callbacks {
	c.BeforeTool = append(c.BeforeTool, cb)
	return c
}

// RegisterAfterTool registers an after tool callback.
func (c *Callbacks) RegisterAfterTool(cb AfterToolCallback) *Callbacks {
	c.AfterTool = append(c.AfterTool, cb)
	return c
}

// RegisterOnToolError registers an on tool error callback.
func (c *Callbacks) RegisterOnToolError(cb OnToolErrorCallback) *Callbacks {
	c.OnToolError = append(c.OnToolError, cb)
	return c
}

// RunBeforeTool runs all before tool callbacks in order.
// If any callback returns a custom result, stop and return it.
func (c *Callbacks) RunBeforeTool(
	ctx context.Context,
	toolName string,
	toolDeclaration *Declaration,
	jsonArgs *[]byte,
) (any, error) {
	for _, cb := range c.BeforeTool {
		customResult, err := cb(ctx, toolName, toolDeclaration, jsonArgs)
		if err != nil {
			return nil, err
		}
		if customResult != nil {
			return customResult, nil
		}
	}
	return nil, nil
}

// RunAfterTool runs all after tool callbacks in order.
// If any callback returns a custom result, stop and return it.
func (c *Callbacks) RunAfterTool(
	ctx context.Context,
	toolName string,
	toolDeclaration *Declaration,
	jsonArgs []byte,
	result any,
	runErr error,
) (any, error) {
	for _, cb := range c.AfterTool {
		customResult, err := cb(ctx, toolName, toolDeclaration, jsonArgs, result, runErr)
		if err != nil {
			return nil, err
		}
		if customResult != nil {
			return customResult, nil
		}
	}
	return nil, nil
}

// RunOnToolError runs all on tool error callbacks in order.
// If any callback returns a custom result, the failure is recovered.
func (c *Callbacks) RunOnToolError(
	ctx context.Context,
	toolName string,
	toolDeclaration *Declaration,
	jsonArgs []byte,
	runErr error,
) (any, error) {
	for _, cb := range c.OnToolError {
		customResult, err := cb(ctx, toolName, toolDeclaration, jsonArgs, runErr)
		if err != nil {
			return nil, err
		}
		if customResult != nil {
			return customResult, nil
		}
	}
	return nil, nil
}
