//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package processor

import (
	"context"
	"encoding/json"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/log"
	"github.com/agentflow-go/agentflow/model"
)

// ConfirmationFunctionName is the reserved function name through which a
// user answers a pending tool confirmation.
const ConfirmationFunctionName = "request_confirmation"

// ConfirmationRequestProcessor resumes tool calls that were paused waiting
// for user confirmation. It scans the session backward for the latest
// user-authored confirmation response, reconstructs the original calls and
// re-invokes the tool engine once for the still-unanswered ones.
type ConfirmationRequestProcessor struct {
	engine *FunctionCallResponseProcessor
}

// NewConfirmationRequestProcessor creates a new confirmation request processor.
func NewConfirmationRequestProcessor() *ConfirmationRequestProcessor {
	return &ConfirmationRequestProcessor{engine: NewFunctionCallResponseProcessor()}
}

// ProcessRequest implements the flow.RequestProcessor interface.
func (p *ConfirmationRequestProcessor) ProcessRequest(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	ch chan<- *event.Event,
) {
	if invocation == nil || invocation.Session == nil {
		return
	}
	events := invocation.Session.GetEvents()

	// Latest user event carrying confirmation responses, scanning backward.
	confirmIdx := -1
	var confirmations map[string]*event.ToolConfirmation
	for i := len(events) - 1; i >= 0; i-- {
		confirmations = extractConfirmations(&events[i])
		if len(confirmations) > 0 {
			confirmIdx = i
			break
		}
	}
	if confirmIdx < 0 {
		return
	}

	// Skip ids with a function response recorded after the confirmation.
	for i := confirmIdx + 1; i < len(events); i++ {
		if events[i].Response == nil {
			continue
		}
		for _, id := range events[i].Response.GetToolResultIDs() {
			delete(confirmations, id)
		}
	}
	if len(confirmations) == 0 {
		return
	}

	// The original function-call event precedes the confirmation response.
	callEvent := findOriginalCallEvent(events[:confirmIdx], confirmations)
	if callEvent == nil {
		log.Warnf("Confirmation response without a matching function call event, invocation %s",
			invocation.InvocationID)
		return
	}

	filterIDs := make(map[string]bool, len(confirmations))
	for id := range confirmations {
		filterIDs[id] = true
	}
	merged, err := p.engine.HandleFunctionCalls(
		ctx, invocation, callEvent.Response, req.Tools, ch, filterIDs, confirmations)
	if err != nil {
		log.Errorf("Confirmation resumption failed for invocation %s: %v", invocation.InvocationID, err)
		return
	}
	if merged == nil {
		return
	}
	// The resumed responses must reach the session before later stages
	// assemble the next model call from it.
	if err := p.engine.waitForCompletion(ctx, invocation, merged); err != nil {
		log.Errorf("Confirmation resumption interrupted for invocation %s: %v", invocation.InvocationID, err)
	}
}

// extractConfirmations returns the confirmation payloads of a user event,
// keyed by the original function-call id. A confirmation response is a tool
// message addressed to the reserved confirmation function.
func extractConfirmations(e *event.Event) map[string]*event.ToolConfirmation {
	if e == nil || e.Author != "user" || e.Response == nil {
		return nil
	}
	var out map[string]*event.ToolConfirmation
	for _, choice := range e.Response.Choices {
		msg := choice.Message
		if msg.Role != model.RoleTool || msg.ToolName != ConfirmationFunctionName || msg.ToolID == "" {
			continue
		}
		tc := &event.ToolConfirmation{}
		if msg.Content != "" {
			if err := json.Unmarshal([]byte(msg.Content), tc); err != nil {
				log.Warnf("Malformed confirmation payload for call %s: %v", msg.ToolID, err)
				continue
			}
		}
		if out == nil {
			out = make(map[string]*event.ToolConfirmation)
		}
		out[msg.ToolID] = tc
	}
	return out
}

// findOriginalCallEvent locates the most recent event whose tool calls
// include every confirmed id.
func findOriginalCallEvent(events []event.Event, confirmations map[string]*event.ToolConfirmation) *event.Event {
	for i := len(events) - 1; i >= 0; i-- {
		e := &events[i]
		if e.Response == nil || !e.Response.IsToolCallResponse() {
			continue
		}
		for _, tc := range e.Response.ToolCalls() {
			if _, ok := confirmations[tc.ID]; ok {
				return e
			}
		}
	}
	return nil
}
