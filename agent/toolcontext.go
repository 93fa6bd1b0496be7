//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package agent

import (
	"context"

	"github.com/agentflow-go/agentflow/event"
)

// ToolContext is the context for a single tool call. It accumulates the
// actions a tool requests so the function-response event can carry them.
type ToolContext struct {
	*CallbackContext
	// FunctionCallID is the ID of the tool call being executed.
	FunctionCallID string
	// Actions collects state deltas, transfer and escalation requests made
	// by the tool during execution.
	Actions *event.EventActions
	// Confirmation holds the user's response for a tool that requested
	// confirmation, nil when no confirmation flow is in progress.
	Confirmation *event.ToolConfirmation
}

// NewToolContext creates a new ToolContext from the given context.
func NewToolContext(ctx context.Context) (*ToolContext, error) {
	cbCtx, err := NewCallbackContext(ctx)
	if err != nil {
		return nil, err
	}
	return &ToolContext{
		CallbackContext: cbCtx,
		Actions:         event.NewEventActions(),
	}, nil
}

type toolContextKey struct{}

// NewToolContextContext returns a context carrying the tool context, so
// tools can reach their per-call actions through context.
func NewToolContextContext(ctx context.Context, tc *ToolContext) context.Context {
	return context.WithValue(ctx, toolContextKey{}, tc)
}

// ToolContextFromContext returns the tool context from the context.
func ToolContextFromContext(ctx context.Context) (*ToolContext, bool) {
	tc, ok := ctx.Value(toolContextKey{}).(*ToolContext)
	return tc, ok
}
