//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package function provides generic function-backed tool implementations.
package function

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/agentflow-go/agentflow/internal/jsonschema"
	"github.com/agentflow-go/agentflow/tool"
)

// FunctionTool wraps a Go function as a CallableTool. The function's input
// type is unmarshalled from the JSON arguments and its output becomes the
// tool result.
type FunctionTool[I, O any] struct {
	name         string
	description  string
	inputSchema  *tool.Schema
	outputSchema *tool.Schema
	fn           func(ctx context.Context, in I) (O, error)
	longRunning  bool
}

// Option is a function that configures a function tool.
type Option func(*options)

type options struct {
	name        string
	description string
	longRunning bool
}

// WithName sets the name of the function tool.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithDescription sets the description of the function tool.
func WithDescription(description string) Option {
	return func(o *options) {
		o.description = description
	}
}

// WithLongRunning marks the tool as long-running. A long-running tool may
// return nil to indicate its result will arrive through another channel
// later; such a call produces no immediate function response.
func WithLongRunning(longRunning bool) Option {
	return func(o *options) {
		o.longRunning = longRunning
	}
}

// NewFunctionTool creates a new FunctionTool wrapping fn.
func NewFunctionTool[I, O any](fn func(ctx context.Context, in I) (O, error), opts ...Option) *FunctionTool[I, O] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var (
		emptyI I
		emptyO O
	)
	return &FunctionTool[I, O]{
		name:         o.name,
		description:  o.description,
		longRunning:  o.longRunning,
		fn:           fn,
		inputSchema:  jsonschema.Generate(reflect.TypeOf(emptyI)),
		outputSchema: jsonschema.Generate(reflect.TypeOf(emptyO)),
	}
}

// Call executes the function tool with the provided JSON arguments.
func (ft *FunctionTool[I, O]) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	var input I
	if len(jsonArgs) > 0 {
		if err := json.Unmarshal(jsonArgs, &input); err != nil {
			return nil, fmt.Errorf("unmarshal arguments for tool %s: %w", ft.name, err)
		}
	}
	return ft.fn(ctx, input)
}

// LongRunning reports whether the tool is expected to run for a long time.
func (ft *FunctionTool[I, O]) LongRunning() bool {
	return ft.longRunning
}

// Declaration returns the tool's metadata.
func (ft *FunctionTool[I, O]) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:         ft.name,
		Description:  ft.description,
		InputSchema:  ft.inputSchema,
		OutputSchema: ft.outputSchema,
	}
}

// StreamableFunctionTool wraps a function that produces a stream of values.
// It is used for streaming tools in live bidirectional sessions.
type StreamableFunctionTool[I any] struct {
	name        string
	description string
	inputSchema *tool.Schema
	fn          func(ctx context.Context, in I) (*tool.StreamReader, error)
	longRunning bool
}

// NewStreamableFunctionTool creates a new StreamableFunctionTool wrapping fn.
func NewStreamableFunctionTool[I any](
	fn func(ctx context.Context, in I) (*tool.StreamReader, error),
	opts ...Option,
) *StreamableFunctionTool[I] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var emptyI I
	return &StreamableFunctionTool[I]{
		name:        o.name,
		description: o.description,
		longRunning: o.longRunning,
		fn:          fn,
		inputSchema: jsonschema.Generate(reflect.TypeOf(emptyI)),
	}
}

// StreamableCall starts the streaming function and returns its reader.
func (t *StreamableFunctionTool[I]) StreamableCall(ctx context.Context, jsonArgs []byte) (*tool.StreamReader, error) {
	var input I
	if len(jsonArgs) > 0 {
		if err := json.Unmarshal(jsonArgs, &input); err != nil {
			return nil, fmt.Errorf("unmarshal arguments for tool %s: %w", t.name, err)
		}
	}
	return t.fn(ctx, input)
}

// LongRunning reports whether the tool is expected to run for a long time.
func (t *StreamableFunctionTool[I]) LongRunning() bool {
	return t.longRunning
}

// Declaration returns the tool's metadata.
func (t *StreamableFunctionTool[I]) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:        t.name,
		Description: t.description,
		InputSchema: t.inputSchema,
	}
}
