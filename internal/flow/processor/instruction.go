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
	"github.com/agentflow-go/agentflow/internal/state"
	"github.com/agentflow-go/agentflow/log"
	"github.com/agentflow-go/agentflow/model"
)

// InstructionRequestProcessor assembles the agent's instructions into the
// request. The global and agent instructions go through state-placeholder
// substitution; the static instruction is sent verbatim so providers can
// cache it. When a static instruction is present, the agent instruction is
// routed into a synthetic user turn instead of the system message to keep
// the static content position-stable.
type InstructionRequestProcessor struct {
	// Instruction is the agent's own instruction.
	Instruction string
	// GlobalInstruction is the root agent's instruction, applied to every
	// agent in the tree.
	GlobalInstruction string
	// StaticInstruction is appended verbatim, with no substitution.
	StaticInstruction string
}

// InstructionOption configures the instruction request processor.
type InstructionOption func(*InstructionRequestProcessor)

// WithGlobalInstruction sets the root agent's global instruction.
func WithGlobalInstruction(instruction string) InstructionOption {
	return func(p *InstructionRequestProcessor) {
		p.GlobalInstruction = instruction
	}
}

// WithStaticInstruction sets the verbatim static instruction.
func WithStaticInstruction(instruction string) InstructionOption {
	return func(p *InstructionRequestProcessor) {
		p.StaticInstruction = instruction
	}
}

// NewInstructionRequestProcessor creates a new instruction request processor.
func NewInstructionRequestProcessor(instruction string, opts ...InstructionOption) *InstructionRequestProcessor {
	p := &InstructionRequestProcessor{
		Instruction: instruction,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessRequest implements the flow.RequestProcessor interface.
func (p *InstructionRequestProcessor) ProcessRequest(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	ch chan<- *event.Event,
) {
	if invocation == nil {
		return
	}
	if req == nil {
		log.Errorf("Instruction request processor: request is nil")
		return
	}

	globalInstruction := p.injectStateIntoContent(invocation, p.GlobalInstruction, "global instruction")
	agentInstruction := p.injectStateIntoContent(invocation, p.Instruction, "instruction")

	if globalInstruction != "" {
		appendToSystemMessage(req, globalInstruction)
	}
	if p.StaticInstruction != "" {
		// Verbatim, no substitution.
		appendToSystemMessage(req, p.StaticInstruction)
	}
	if agentInstruction != "" {
		if p.StaticInstruction != "" {
			// Keep the system prompt stable for provider-side caching and
			// carry the dynamic instruction as a user turn instead.
			req.Messages = append(req.Messages, model.NewUserMessage(agentInstruction))
		} else {
			appendToSystemMessage(req, agentInstruction)
		}
	}

	if err := agent.EmitEvent(ctx, invocation, ch, event.New(
		invocation.InvocationID,
		invocation.AgentName,
		event.WithObject(model.ObjectTypePreprocessingInstruction),
	)); err != nil {
		log.Debugf("Instruction request processor: context cancelled")
	}
}

func (p *InstructionRequestProcessor) injectStateIntoContent(
	invocation *agent.Invocation,
	content, contentType string,
) string {
	if content == "" {
		return content
	}
	processedContent, err := state.InjectSessionState(content, invocation)
	if err != nil {
		log.Errorf("Failed to inject session state into %s: %v", contentType, err)
		return content
	}
	return processedContent
}

// appendToSystemMessage appends content to the existing system message, or
// creates one at the head of the request. Content already present is not
// appended again.
func appendToSystemMessage(req *model.Request, content string) {
	systemMsgIndex := findSystemMessageIndex(req.Messages)
	if systemMsgIndex >= 0 {
		if !strings.Contains(req.Messages[systemMsgIndex].Content, content) {
			req.Messages[systemMsgIndex].Content += "\n\n" + content
		}
		return
	}
	systemMsg := model.NewSystemMessage(content)
	req.Messages = append([]model.Message{systemMsg}, req.Messages...)
}
