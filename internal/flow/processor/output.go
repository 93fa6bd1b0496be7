//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package processor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/log"
	"github.com/agentflow-go/agentflow/model"
)

// OutputResponseProcessor persists the agent's final text output into
// session state under the configured output key.
type OutputResponseProcessor struct {
	outputKey    string
	outputSchema map[string]any
}

// NewOutputResponseProcessor creates a new instance of OutputResponseProcessor.
func NewOutputResponseProcessor(outputKey string, outputSchema map[string]any) *OutputResponseProcessor {
	return &OutputResponseProcessor{
		outputKey:    outputKey,
		outputSchema: outputSchema,
	}
}

// ProcessResponse implements the flow.ResponseProcessor interface. Only
// complete (non-partial) responses are considered.
func (p *OutputResponseProcessor) ProcessResponse(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	rsp *model.Response,
	ch chan<- *event.Event,
) {
	if invocation == nil || rsp == nil || rsp.IsPartial {
		return
	}
	if p.outputKey == "" && p.outputSchema == nil {
		return
	}

	content, ok := p.extractFinalContent(rsp)
	if !ok {
		return
	}

	result := content
	if p.outputSchema != nil {
		jsonObject, ok := extractFirstJSONObject(content)
		if !ok {
			return
		}
		var parsedJSON any
		if err := json.Unmarshal([]byte(jsonObject), &parsedJSON); err != nil {
			log.Warnf("Failed to parse output as JSON for output schema validation: %v", err)
			return
		}
		result = jsonObject
	}

	stateDelta := map[string][]byte{
		p.outputKey: []byte(result),
	}
	stateEvent := event.New(invocation.InvocationID, invocation.AgentName,
		event.WithObject(model.ObjectTypeStateUpdate),
		event.WithStateDelta(stateDelta),
	)
	stateEvent.RequiresCompletion = true
	stateEvent.CompletionID = stateEvent.ID

	if err := agent.EmitEvent(ctx, invocation, ch, stateEvent); err != nil {
		return
	}
	log.Debugf("Emitted state delta event with key %q", p.outputKey)
}

// extractFinalContent returns the final text content if the response is
// complete and carries non-blank text.
func (p *OutputResponseProcessor) extractFinalContent(rsp *model.Response) (string, bool) {
	if len(rsp.Choices) == 0 {
		return "", false
	}
	content := rsp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", false
	}
	return content, true
}

// extractFirstJSONObject tries to extract the first balanced top-level JSON
// object or array from s.
func extractFirstJSONObject(s string) (string, bool) {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			break
		}
	}
	if start == -1 {
		return "", false
	}
	return scanBalancedJSON(s, start)
}

func scanBalancedJSON(s string, start int) (string, bool) {
	stack := make([]byte, 0, 8)
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				return "", false
			}
			top := stack[len(stack)-1]
			if (top == '{' && c == '}') || (top == '[' && c == ']') {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					return s[start : i+1], true
				}
			} else {
				return "", false
			}
		}
	}
	return "", false
}
