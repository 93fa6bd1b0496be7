//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package agent provides the core agent functionality.
package agent

import (
	"context"

	"github.com/agentflow-go/agentflow/codeexecutor"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/tool"
)

// ErrorTypeAgentCallbackError is used for errors from agent callbacks.
const ErrorTypeAgentCallbackError = "agent_callback_error"

// ErrorTypeAgentContextCancelledError is the error type for context cancelled error.
const ErrorTypeAgentContextCancelledError = "agent_context_cancelled_error"

// Info contains basic information about an agent.
type Info struct {
	Name        string
	Description string
}

// Agent is the interface that all agents must implement.
type Agent interface {
	// Run executes the provided invocation within the given context and returns
	// a channel of events that represent the progress and results of the execution.
	Run(ctx context.Context, invocation *Invocation) (<-chan *event.Event, error)

	// Tools returns the list of tools that this agent has access to and can execute.
	Tools() []tool.Tool

	// Info returns the basic information about this agent.
	Info() Info

	// SubAgents returns the list of sub-agents available to this agent.
	SubAgents() []Agent

	// FindSubAgent finds a direct sub-agent by name.
	// Returns nil if no sub-agent with the given name is found.
	FindSubAgent(name string) Agent
}

// LiveAgent is implemented by agents that support bidirectional live
// streaming against a model connection.
type LiveAgent interface {
	Agent

	// RunLive executes the invocation against a live model connection,
	// consuming the invocation's LiveRequestQueue.
	RunLive(ctx context.Context, invocation *Invocation) (<-chan *event.Event, error)
}

// CodeExecutor is implemented by agents that can execute model-generated
// code blocks.
type CodeExecutor interface {
	// CodeExecutor returns the executor used for code blocks, nil when
	// code execution is disabled.
	CodeExecutor() codeexecutor.CodeExecutor
}

// FindAgent searches the agent tree rooted at root for an agent with the
// given name, depth first. Returns nil when no such agent exists.
func FindAgent(root Agent, name string) Agent {
	if root == nil {
		return nil
	}
	if root.Info().Name == name {
		return root
	}
	for _, sub := range root.SubAgents() {
		if found := FindAgent(sub, name); found != nil {
			return found
		}
	}
	return nil
}
