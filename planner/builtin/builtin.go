//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package builtin implements the planner for models with native thinking
// capabilities. It does not generate explicit planning instructions but
// configures the model to use its internal thinking mechanisms.
package builtin

import (
	"context"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/planner"
)

var _ planner.Planner = (*Planner)(nil)

// Planner configures thinking-capable models to engage their internal
// reasoning rather than providing explicit planning prompts.
type Planner struct {
	reasoningEffort *string
	thinkingEnabled *bool
	thinkingTokens  *int
}

// Options contains configuration options for creating a Planner.
type Options struct {
	// ReasoningEffort limits the reasoning effort for reasoning models.
	// Supported values: "low", "medium", "high".
	ReasoningEffort *string
	// ThinkingEnabled enables thinking mode for models that support it.
	ThinkingEnabled *bool
	// ThinkingTokens controls the length of thinking.
	ThinkingTokens *int
}

// New creates a new Planner with the given options.
func New(opts Options) *Planner {
	return &Planner{
		reasoningEffort: opts.ReasoningEffort,
		thinkingEnabled: opts.ThinkingEnabled,
		thinkingTokens:  opts.ThinkingTokens,
	}
}

// BuildPlanningInstruction applies the thinking configuration to the model
// request and returns an empty instruction, as the model handles planning
// internally.
func (p *Planner) BuildPlanningInstruction(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
) string {
	if p.reasoningEffort != nil {
		llmRequest.ReasoningEffort = p.reasoningEffort
	}
	if p.thinkingEnabled != nil {
		llmRequest.ThinkingEnabled = p.thinkingEnabled
	}
	if p.thinkingTokens != nil {
		llmRequest.ThinkingTokens = p.thinkingTokens
	}
	return ""
}

// ProcessPlanningResponse returns nil; thinking-capable models integrate
// planning directly into their response generation.
func (p *Planner) ProcessPlanningResponse(
	ctx context.Context,
	invocation *agent.Invocation,
	response *model.Response,
) *model.Response {
	return nil
}
