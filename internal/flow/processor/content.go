//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package processor

import (
	"context"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/log"
	"github.com/agentflow-go/agentflow/model"
)

// Values for ContentRequestProcessor.IncludeContents.
const (
	// IncludeContentsAll includes the full branch-scoped history.
	IncludeContentsAll = "all"
	// IncludeContentsNone includes only the current turn's message.
	IncludeContentsNone = "none"
)

// ContentRequestProcessor populates the request's conversation history from
// the session, scoped to the invocation's branch.
type ContentRequestProcessor struct {
	// IncludeContents controls how much history the request carries.
	IncludeContents string
}

// ContentOption configures the content request processor.
type ContentOption func(*ContentRequestProcessor)

// WithIncludeContents sets the history inclusion mode.
func WithIncludeContents(includeContents string) ContentOption {
	return func(p *ContentRequestProcessor) {
		p.IncludeContents = includeContents
	}
}

// NewContentRequestProcessor creates a new content request processor.
func NewContentRequestProcessor(opts ...ContentOption) *ContentRequestProcessor {
	p := &ContentRequestProcessor{
		IncludeContents: IncludeContentsAll,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessRequest implements the flow.RequestProcessor interface.
func (p *ContentRequestProcessor) ProcessRequest(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	ch chan<- *event.Event,
) {
	if req == nil {
		log.Errorf("Content request processor: request is nil")
		return
	}
	if invocation == nil {
		return
	}

	if req.Messages == nil {
		req.Messages = make([]model.Message, 0)
	}

	if p.IncludeContents != IncludeContentsNone && invocation.Session != nil {
		req.Messages = append(req.Messages, p.sessionMessages(invocation)...)
	}

	// Append the current user message unless the history already ends with it.
	if invocation.Message.Content != "" || len(invocation.Message.Files) > 0 {
		if n := len(req.Messages); n == 0 || !sameMessage(req.Messages[n-1], invocation.Message) {
			req.Messages = append(req.Messages, invocation.Message)
		}
	}

	if err := agent.EmitEvent(ctx, invocation, ch, event.New(
		invocation.InvocationID,
		invocation.AgentName,
		event.WithObject(model.ObjectTypePreprocessingContent),
	)); err != nil {
		log.Debugf("Content request processor: context cancelled")
	}
}

// sessionMessages converts the branch-visible session events into request
// messages, preserving tool call and tool response structure.
func (p *ContentRequestProcessor) sessionMessages(invocation *agent.Invocation) []model.Message {
	var messages []model.Message
	for _, evt := range invocation.Session.GetEvents() {
		e := evt
		if !e.MatchesBranch(invocation.Branch) {
			continue
		}
		if !p.hasValidContent(&e) {
			continue
		}
		for _, choice := range e.Response.Choices {
			msg := choice.Message
			if msg.Content == "" && len(msg.ToolCalls) == 0 && msg.ToolID == "" {
				continue
			}
			// Another agent's output reads as conversation context, not as
			// this agent's own words.
			if msg.Role == model.RoleAssistant && e.Author != invocation.AgentName && e.Author != "" {
				msg = model.NewUserMessage("For context: [" + e.Author + "] said: " + msg.Content)
			}
			messages = append(messages, msg)
		}
	}
	return messages
}

// hasValidContent reports whether the event carries conversation content.
func (p *ContentRequestProcessor) hasValidContent(e *event.Event) bool {
	return e.Response != nil && e.Response.IsValidContent()
}

func sameMessage(a, b model.Message) bool {
	return a.Role == b.Role && a.Content == b.Content
}
