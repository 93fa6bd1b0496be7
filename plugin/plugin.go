//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package plugin provides cross-cutting hooks that observe and override
// model calls and tool calls across every agent in a runner.
package plugin

import (
	"context"

	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/tool"
)

// Plugin receives callbacks around model and tool execution. All methods
// may return (nil, nil) to decline; a non-nil first return value overrides
// the default result and stops the remaining plugins in the chain.
//
// Plugins always run before agent-level callbacks at the same extension
// point.
type Plugin interface {
	// Name returns the unique plugin name.
	Name() string

	// BeforeModel runs before a model call. A non-nil response skips the
	// model call entirely.
	BeforeModel(ctx context.Context, req *model.Request) (*model.Response, error)

	// AfterModel runs after each model response chunk. A non-nil response
	// replaces the chunk.
	AfterModel(ctx context.Context, req *model.Request, rsp *model.Response) (*model.Response, error)

	// OnModelError runs when the model call fails. A non-nil response
	// recovers the turn in place of the error.
	OnModelError(ctx context.Context, req *model.Request, modelErr error) (*model.Response, error)

	// BeforeTool runs before a tool call. It may rewrite jsonArgs in place.
	// A non-nil result skips tool execution.
	BeforeTool(ctx context.Context, toolName string, toolDeclaration *tool.Declaration, jsonArgs *[]byte) (any, error)

	// AfterTool runs after a tool call. A non-nil result replaces the
	// tool's result.
	AfterTool(ctx context.Context, toolName string, toolDeclaration *tool.Declaration, jsonArgs []byte, result any, runErr error) (any, error)

	// OnToolError runs when a tool call fails. A non-nil result recovers
	// the call in place of the error.
	OnToolError(ctx context.Context, toolName string, toolDeclaration *tool.Declaration, jsonArgs []byte, runErr error) (any, error)
}

// Base is a no-op Plugin implementation intended for embedding, so plugins
// only implement the hooks they care about.
type Base struct {
	// PluginName is returned by Name.
	PluginName string
}

// Name returns the plugin name.
func (b *Base) Name() string { return b.PluginName }

// BeforeModel declines to override.
func (b *Base) BeforeModel(ctx context.Context, req *model.Request) (*model.Response, error) {
	return nil, nil
}

// AfterModel declines to override.
func (b *Base) AfterModel(ctx context.Context, req *model.Request, rsp *model.Response) (*model.Response, error) {
	return nil, nil
}

// OnModelError declines to override.
func (b *Base) OnModelError(ctx context.Context, req *model.Request, modelErr error) (*model.Response, error) {
	return nil, nil
}

// BeforeTool declines to override.
func (b *Base) BeforeTool(ctx context.Context, toolName string, toolDeclaration *tool.Declaration, jsonArgs *[]byte) (any, error) {
	return nil, nil
}

// AfterTool declines to override.
func (b *Base) AfterTool(ctx context.Context, toolName string, toolDeclaration *tool.Declaration, jsonArgs []byte, result any, runErr error) (any, error) {
	return nil, nil
}

// OnToolError declines to override.
func (b *Base) OnToolError(ctx context.Context, toolName string, toolDeclaration *tool.Declaration, jsonArgs []byte, runErr error) (any, error) {
	return nil, nil
}
