//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package processor

import (
	"context"
	"strings"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/log"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/planner"
	"github.com/agentflow-go/agentflow/planner/builtin"
)

// PlanningRequestProcessor applies the configured planner to the request.
type PlanningRequestProcessor struct {
	// Planner is the planner to use for generating planning instructions.
	Planner planner.Planner
}

// NewPlanningRequestProcessor creates a new planning request processor.
func NewPlanningRequestProcessor(p planner.Planner) *PlanningRequestProcessor {
	return &PlanningRequestProcessor{
		Planner: p,
	}
}

// ProcessRequest implements the flow.RequestProcessor interface.
// For built-in planners it only applies the thinking configuration; for
// other planners it prepends the planning instruction.
func (p *PlanningRequestProcessor) ProcessRequest(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	ch chan<- *event.Event,
) {
	if req == nil {
		log.Errorf("Planning request processor: request is nil")
		return
	}
	if p.Planner == nil {
		return
	}

	if builtinPlanner, ok := p.Planner.(*builtin.Planner); ok {
		_ = builtinPlanner.BuildPlanningInstruction(ctx, invocation, req)
		return
	}

	planningInstruction := p.Planner.BuildPlanningInstruction(ctx, invocation, req)
	if planningInstruction != "" && !hasSystemMessage(req.Messages, planningInstruction) {
		instructionMsg := model.NewSystemMessage(planningInstruction)
		req.Messages = append([]model.Message{instructionMsg}, req.Messages...)
	}

	if invocation != nil {
		if err := agent.EmitEvent(ctx, invocation, ch, event.New(
			invocation.InvocationID,
			invocation.AgentName,
			event.WithObject(model.ObjectTypePreprocessingPlanning),
		)); err != nil {
			log.Debugf("Planning request processor: context cancelled")
		}
	}
}

// hasSystemMessage checks if a system message with the given content
// already exists. Only a content prefix is compared to keep this cheap for
// long instructions.
func hasSystemMessage(messages []model.Message, content string) bool {
	const maxContentPrefixLength = 100
	contentPrefix := content[:min(maxContentPrefixLength, len(content))]
	for _, msg := range messages {
		if msg.Role == model.RoleSystem && strings.Contains(msg.Content, contentPrefix) {
			return true
		}
	}
	return false
}

// PlanningResponseProcessor post-processes model responses with the planner.
type PlanningResponseProcessor struct {
	// Planner is the planner to use for processing planning responses.
	Planner planner.Planner
}

// NewPlanningResponseProcessor creates a new planning response processor.
func NewPlanningResponseProcessor(p planner.Planner) *PlanningResponseProcessor {
	return &PlanningResponseProcessor{
		Planner: p,
	}
}

// ProcessResponse implements the flow.ResponseProcessor interface.
func (p *PlanningResponseProcessor) ProcessResponse(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	rsp *model.Response,
	ch chan<- *event.Event,
) {
	if rsp == nil || p.Planner == nil || len(rsp.Choices) == 0 {
		return
	}

	// Built-in planners process responses inside the model; nothing to do.
	if _, ok := p.Planner.(*builtin.Planner); ok {
		return
	}

	processedResponse := p.Planner.ProcessPlanningResponse(ctx, invocation, rsp)
	if processedResponse != nil {
		*rsp = *processedResponse
	}

	if invocation != nil {
		if err := agent.EmitEvent(ctx, invocation, ch, event.New(
			invocation.InvocationID,
			invocation.AgentName,
			event.WithObject(model.ObjectTypePostprocessingPlanning),
		)); err != nil {
			log.Debugf("Planning response processor: context cancelled")
		}
	}
}
