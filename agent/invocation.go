//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package agent

import (
	"github.com/agentflow-go/agentflow/artifact"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/plugin"
	"github.com/agentflow-go/agentflow/session"
	"github.com/agentflow-go/agentflow/tool"
)

// TransferInfo contains information about a pending agent transfer.
type TransferInfo struct {
	// TargetAgentName is the name of the agent to transfer control to.
	TargetAgentName string
	// Message is the message to send to the target agent.
	Message string
	// EndInvocation indicates whether to end the current invocation after transfer.
	EndInvocation bool
}

// Invocation represents the context for one agent turn execution.
type Invocation struct {
	// Agent is the agent that is being invoked.
	Agent Agent
	// AgentName is the name of the agent that is being invoked.
	AgentName string
	// InvocationID is the ID of the invocation.
	InvocationID string
	// Branch is the branch identifier for hierarchical event filtering.
	Branch string
	// EndInvocation is a flag that indicates if the invocation is complete.
	EndInvocation bool
	// Session is the session that is being used for the invocation.
	Session *session.Session
	// Model is the model that is being used for the invocation.
	Model model.Model
	// Message is the message that is being sent to the agent.
	Message model.Message
	// EventCompletionCh signals when events requiring completion are
	// written to the session. Carries the CompletionID of the appended event.
	EventCompletionCh <-chan string
	// RunOptions is the options for the Run method.
	RunOptions RunOptions
	// TransferInfo contains information about a pending agent transfer.
	TransferInfo *TransferInfo
	// AgentCallbacks contains callbacks for agent operations.
	AgentCallbacks *Callbacks
	// ModelCallbacks contains callbacks for model operations.
	ModelCallbacks *model.Callbacks
	// ToolCallbacks contains callbacks for tool operations.
	ToolCallbacks *tool.Callbacks
	// Plugins run before the agent-level callbacks at every extension point.
	Plugins *plugin.Manager
	// ArtifactService is the service for managing artifacts.
	ArtifactService artifact.Service
	// LiveRequestQueue carries the caller's live inputs in live mode.
	LiveRequestQueue *LiveRequestQueue
	// ActiveStreamingTools tracks streaming tool tasks in live mode.
	ActiveStreamingTools *StreamingToolRegistry
}

// RunOption is a function that configures a RunOptions.
type RunOption func(*RunOptions)

// WithRuntimeState sets the runtime state for the RunOptions.
func WithRuntimeState(state map[string]any) RunOption {
	return func(opts *RunOptions) {
		opts.RuntimeState = state
	}
}

// RunOptions is the options for the Run method.
type RunOptions struct {
	// RuntimeState contains key-value pairs merged into the initial state
	// for this specific run.
	RuntimeState map[string]any
	// ResumptionHandle holds the latest live-session resumption handle,
	// refreshed by the live flow as chunks arrive.
	ResumptionHandle string
}

// CreateBranchInvocation creates a new invocation for a branch agent.
// The new invocation shares the session and run options but carries no
// callback or transfer state of its own.
func (baseInvocation *Invocation) CreateBranchInvocation(branchAgent Agent) *Invocation {
	branchInvocation := Invocation{
		Agent:                branchAgent,
		AgentName:            branchAgent.Info().Name,
		InvocationID:         baseInvocation.InvocationID,
		Branch:               baseInvocation.Branch,
		Session:              baseInvocation.Session,
		Message:              baseInvocation.Message,
		EventCompletionCh:    baseInvocation.EventCompletionCh,
		RunOptions:           baseInvocation.RunOptions,
		Plugins:              baseInvocation.Plugins,
		ArtifactService:      baseInvocation.ArtifactService,
		LiveRequestQueue:     baseInvocation.LiveRequestQueue,
		ActiveStreamingTools: baseInvocation.ActiveStreamingTools,
	}
	return &branchInvocation
}
