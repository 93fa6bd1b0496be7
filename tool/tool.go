//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package tool provides tool interfaces and implementations for the agent system.
package tool

import (
	"context"
)

// Tool is the interface implemented by all tools.
type Tool interface {
	// Declaration returns the metadata describing the tool.
	Declaration() *Declaration
}

// CallableTool defines the interface for tools that support calling operations.
type CallableTool interface {
	// Call calls the tool with the provided context and arguments.
	// Returns the result of execution or an error if the operation fails.
	Call(ctx context.Context, jsonArgs []byte) (any, error)

	Tool
}

// StreamableTool defines the interface for tools whose execution produces an
// ongoing sequence of values rather than one result. Such tools are used in
// live bidirectional sessions where each produced value is forwarded into
// the conversation as it arrives.
type StreamableTool interface {
	// StreamableCall initiates a streaming call. Returns a StreamReader for
	// consuming the produced values, or an error if the call fails to start.
	StreamableCall(ctx context.Context, jsonArgs []byte) (*StreamReader, error)

	Tool
}

// Declaration describes the metadata of a tool, such as its name, description, and expected arguments.
type Declaration struct {
	// Name is the unique identifier of the tool.
	Name string `json:"name"`

	// Description explains the tool's purpose and functionality.
	Description string `json:"description"`

	// InputSchema defines the expected input for the tool in JSON schema format.
	InputSchema *Schema `json:"inputSchema"`

	// OutputSchema defines the expected output for the tool in JSON schema format.
	OutputSchema *Schema `json:"outputSchema,omitempty"`
}

// Schema represents the structure of JSON Schema used for defining arguments and responses.
// It follows the JSON Schema standard, supporting various types, properties, and validation rules.
type Schema struct {
	// Type specifies the data type (e.g. "object", "array", "string", "number").
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    []string `json:"required,omitempty"`
	// Properties of the arguments, each with its own schema.
	Properties map[string]*Schema `json:"properties,omitempty"`
	// Items defines the schema of array elements for array types.
	Items *Schema `json:"items,omitempty"`
	// AdditionalProperties controls whether properties not defined in Properties are allowed.
	AdditionalProperties any `json:"additionalProperties,omitempty"`
}
