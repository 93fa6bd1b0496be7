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
)

// IdentityRequestProcessor adds the agent's identity to the system prompt.
type IdentityRequestProcessor struct {
	// AgentName is the name of the agent.
	AgentName string
	// Description is the description of the agent.
	Description string
}

// NewIdentityRequestProcessor creates a new identity request processor.
func NewIdentityRequestProcessor(agentName, description string) *IdentityRequestProcessor {
	return &IdentityRequestProcessor{
		AgentName:   agentName,
		Description: description,
	}
}

// ProcessRequest implements the flow.RequestProcessor interface.
func (p *IdentityRequestProcessor) ProcessRequest(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	ch chan<- *event.Event,
) {
	if req == nil {
		log.Errorf("Identity request processor: request is nil")
		return
	}

	if req.Messages == nil {
		req.Messages = make([]model.Message, 0)
	}

	var identityContent string
	switch {
	case p.AgentName != "" && p.Description != "":
		identityContent = "You are " + p.AgentName + ". " + p.Description
	case p.AgentName != "":
		identityContent = "You are " + p.AgentName + "."
	case p.Description != "":
		identityContent = p.Description
	}

	if identityContent != "" {
		systemMsgIndex := findSystemMessageIndex(req.Messages)
		if systemMsgIndex >= 0 {
			if !strings.Contains(req.Messages[systemMsgIndex].Content, identityContent) {
				req.Messages[systemMsgIndex].Content = identityContent + "\n\n" + req.Messages[systemMsgIndex].Content
			}
		} else {
			identityMsg := model.NewSystemMessage(identityContent)
			req.Messages = append([]model.Message{identityMsg}, req.Messages...)
		}
	}

	if invocation != nil {
		if err := agent.EmitEvent(ctx, invocation, ch, event.New(
			invocation.InvocationID,
			invocation.AgentName,
			event.WithObject(model.ObjectTypePreprocessingIdentity),
		)); err != nil {
			log.Debugf("Identity request processor: context cancelled")
		}
	}
}

// findSystemMessageIndex returns the index of the first system message, -1
// when there is none.
func findSystemMessageIndex(messages []model.Message) int {
	for i, msg := range messages {
		if msg.Role == model.RoleSystem {
			return i
		}
	}
	return -1
}
