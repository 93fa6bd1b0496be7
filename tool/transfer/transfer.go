//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package transfer provides the transfer_to_agent tool implementation.
package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/tool"
)

const (
	// ToolName is the name of the transfer_to_agent tool.
	ToolName = "transfer_to_agent"
	// FieldAgentName is the name of the agent_name field.
	FieldAgentName = "agent_name"
	// FieldMessage is the name of the message field.
	FieldMessage = "message"
)

// Request represents the request structure for the transfer_to_agent tool.
type Request struct {
	// AgentName is the name of the target agent to transfer to.
	AgentName string `json:"agent_name"`
	// Message is the message to send to the target agent (optional).
	Message string `json:"message,omitempty"`
}

// Response represents the response from the transfer_to_agent tool.
type Response struct {
	// Success indicates if the transfer was successful.
	Success bool `json:"success"`
	// Message provides details about the transfer.
	Message string `json:"message"`
	// TargetAgent is the name of the agent control was transferred to.
	TargetAgent string `json:"target_agent,omitempty"`
	// TransferType indicates the type of transfer performed.
	TransferType string `json:"transfer_type"`
}

// Tool implements the transfer_to_agent functionality. Calling it records
// the transfer target on the current invocation; the flow performs the
// actual handoff after the tool response round.
type Tool struct {
	availableAgents []agent.Info
}

// New creates a new transfer_to_agent tool with the provided agent information.
func New(agents []agent.Info) *Tool {
	return &Tool{
		availableAgents: agents,
	}
}

func (t *Tool) findAgentInfo(name string) *agent.Info {
	for _, agentInfo := range t.availableAgents {
		if agentInfo.Name == name {
			return &agentInfo
		}
	}
	return nil
}

// Declaration implements the tool.Tool interface.
func (t *Tool) Declaration() *tool.Declaration {
	var agentDescriptions []string
	agentNames := make([]string, len(t.availableAgents))
	for i, agentInfo := range t.availableAgents {
		agentNames[i] = agentInfo.Name
		agentDescriptions = append(agentDescriptions,
			fmt.Sprintf("- %s: %s", agentInfo.Name, agentInfo.Description))
	}

	schema := &tool.Schema{
		Type: "object",
		Properties: map[string]*tool.Schema{
			FieldAgentName: {
				Type: "string",
				Description: fmt.Sprintf(
					"Name of the agent to transfer control to.\n\nAvailable agents:\n%s\n\nValid agent names: %v",
					strings.Join(agentDescriptions, "\n"), agentNames),
			},
			FieldMessage: {
				Type:        "string",
				Description: "Optional message to pass to the target agent",
			},
		},
		Required: []string{FieldAgentName},
	}

	return &tool.Declaration{
		Name:        ToolName,
		Description: "Transfer control to another agent. This will hand over the conversation to the specified agent.",
		InputSchema: schema,
	}
}

// Call implements the tool.CallableTool interface.
func (t *Tool) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	var req Request
	if err := json.Unmarshal(jsonArgs, &req); err != nil {
		return Response{
			Success:      false,
			Message:      fmt.Sprintf("Invalid request format: %v", err),
			TransferType: "error",
		}, nil
	}

	targetAgentInfo := t.findAgentInfo(req.AgentName)
	if targetAgentInfo == nil {
		availableAgents := make([]string, len(t.availableAgents))
		for i, agentInfo := range t.availableAgents {
			availableAgents[i] = agentInfo.Name
		}
		return Response{
			Success:      false,
			Message:      fmt.Sprintf("Agent '%s' not found. Available agents: %v", req.AgentName, availableAgents),
			TransferType: "error",
		}, nil
	}

	invocation, ok := agent.InvocationFromContext(ctx)
	if !ok || invocation == nil {
		return Response{
			Success:      false,
			Message:      "Transfer failed: no invocation context available",
			TransferType: "error",
		}, nil
	}

	invocation.TransferInfo = &agent.TransferInfo{
		TargetAgentName: targetAgentInfo.Name,
		Message:         req.Message,
	}

	return Response{
		Success:      true,
		Message:      fmt.Sprintf("Transfer initiated to agent '%s'", req.AgentName),
		TargetAgent:  req.AgentName,
		TransferType: "agent_handoff",
	}, nil
}
