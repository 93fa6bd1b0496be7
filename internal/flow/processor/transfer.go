//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/log"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/tool"
	"github.com/agentflow-go/agentflow/tool/transfer"
)

// TransferRequestProcessor registers the transfer_to_agent tool and tells
// the model which agents it can hand off to.
type TransferRequestProcessor struct {
	// Targets are the agents reachable from the current agent.
	Targets []agent.Info
}

// NewTransferRequestProcessor creates a new transfer request processor.
func NewTransferRequestProcessor(targets []agent.Info) *TransferRequestProcessor {
	return &TransferRequestProcessor{
		Targets: targets,
	}
}

// ProcessRequest implements the flow.RequestProcessor interface.
func (p *TransferRequestProcessor) ProcessRequest(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	ch chan<- *event.Event,
) {
	if req == nil || invocation == nil || len(p.Targets) == 0 {
		return
	}

	var descriptions []string
	for _, info := range p.Targets {
		descriptions = append(descriptions, fmt.Sprintf("- %s: %s", info.Name, info.Description))
	}
	instruction := "You can transfer the conversation to another agent when it is " +
		"better suited to handle the request. Available agents:\n" +
		strings.Join(descriptions, "\n") +
		"\nUse the " + transfer.ToolName + " tool to transfer."
	appendToSystemMessage(req, instruction)

	if req.Tools == nil {
		req.Tools = make(map[string]tool.Tool)
	}
	transferTool := transfer.New(p.Targets)
	req.Tools[transfer.ToolName] = transferTool
}

// TransferResponseProcessor handles agent transfer operations after model
// responses by running the target agent within the same invocation.
type TransferResponseProcessor struct{}

// NewTransferResponseProcessor creates a new transfer response processor.
func NewTransferResponseProcessor() *TransferResponseProcessor {
	return &TransferResponseProcessor{}
}

// ProcessResponse implements the flow.ResponseProcessor interface.
func (p *TransferResponseProcessor) ProcessResponse(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	rsp *model.Response,
	ch chan<- *event.Event,
) {
	if rsp == nil || invocation == nil {
		return
	}
	if invocation.TransferInfo == nil {
		return
	}

	transferInfo := invocation.TransferInfo
	targetAgentName := transferInfo.TargetAgentName

	// Look up the target in the whole agent tree, not just direct children.
	var targetAgent agent.Agent
	if invocation.Agent != nil {
		targetAgent = invocation.Agent.FindSubAgent(targetAgentName)
		if targetAgent == nil {
			targetAgent = agent.FindAgent(invocation.Agent, targetAgentName)
		}
	}

	if targetAgent == nil {
		log.Errorf("Target agent '%s' not found", targetAgentName)
		errorEvent := event.NewErrorEvent(
			invocation.InvocationID,
			invocation.AgentName,
			model.ErrorTypeFlowError,
			"Transfer failed: target agent '"+targetAgentName+"' not found",
		)
		agent.EmitEvent(ctx, invocation, ch, errorEvent)
		return
	}

	transferEvent := event.New(invocation.InvocationID, invocation.AgentName,
		event.WithObject(model.ObjectTypeTransfer))
	transferEvent.Response = &model.Response{
		ID:        "transfer-" + rsp.ID,
		Object:    model.ObjectTypeTransfer,
		Created:   rsp.Created,
		Model:     rsp.Model,
		Timestamp: rsp.Timestamp,
		Choices: []model.Choice{
			{
				Index: 0,
				Message: model.Message{
					Role:    model.RoleAssistant,
					Content: "Transferring control to agent: " + targetAgent.Info().Name,
				},
			},
		},
	}
	if err := agent.EmitEvent(ctx, invocation, ch, transferEvent); err != nil {
		return
	}

	targetInvocation := invocation.CreateBranchInvocation(targetAgent)
	targetInvocation.EndInvocation = transferInfo.EndInvocation
	targetInvocation.Model = invocation.Model
	if transferInfo.Message != "" {
		targetInvocation.Message = model.NewUserMessage(transferInfo.Message)
	}

	targetEventChan, err := targetAgent.Run(ctx, targetInvocation)
	if err != nil {
		log.Errorf("Failed to run target agent '%s': %v", targetAgent.Info().Name, err)
		errorEvent := event.NewErrorEvent(
			invocation.InvocationID,
			invocation.AgentName,
			model.ErrorTypeFlowError,
			"Transfer failed: "+err.Error(),
		)
		agent.EmitEvent(ctx, invocation, ch, errorEvent)
		return
	}

	for targetEvent := range targetEventChan {
		select {
		case ch <- targetEvent:
		case <-ctx.Done():
			return
		}
	}

	// The original agent's turn ends once control has been handed off.
	invocation.TransferInfo = nil
	invocation.Agent = targetAgent
	invocation.AgentName = targetAgent.Info().Name
	invocation.EndInvocation = true
}
