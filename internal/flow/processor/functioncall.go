//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	itelemetry "github.com/agentflow-go/agentflow/internal/telemetry"
	"github.com/agentflow-go/agentflow/log"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/tool"
	"github.com/agentflow-go/agentflow/tool/function"
	"github.com/agentflow-go/agentflow/tool/transfer"
)

const (
	// ErrorToolNotFound is the error message for tool not found.
	ErrorToolNotFound = "Error: tool not found"
	// ErrorCallableToolExecution is the error message for callable tool execution failed.
	ErrorCallableToolExecution = "Error: callable tool execution failed"
	// ErrorMarshalResult is the error message for failed to marshal result.
	ErrorMarshalResult = "Error: failed to marshal result"

	// Timeout for event completion signaling.
	eventCompletionTimeout = 5 * time.Second
)

// summarizationSkipper is implemented by tools that can mark their
// tool.response as final for the turn, skipping the post-tool
// summarization model call.
type summarizationSkipper interface {
	SkipSummarization() bool
}

// toolResult holds the result of a single tool execution.
type toolResult struct {
	index int
	event *event.Event
}

// subAgentCall is the input shape used when a model calls a sub-agent name
// directly instead of transfer_to_agent.
type subAgentCall struct {
	Message string `json:"message,omitempty"`
}

// FunctionCallResponseProcessor executes the tool calls of a model response
// and emits the merged function-response event.
type FunctionCallResponseProcessor struct{}

// NewFunctionCallResponseProcessor creates a new function call response processor.
func NewFunctionCallResponseProcessor() *FunctionCallResponseProcessor {
	return &FunctionCallResponseProcessor{}
}

// ProcessResponse implements the flow.ResponseProcessor interface.
func (p *FunctionCallResponseProcessor) ProcessResponse(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	rsp *model.Response,
	ch chan<- *event.Event,
) {
	if rsp == nil || !rsp.IsToolCallResponse() {
		return
	}

	responseEvent, err := p.HandleFunctionCalls(ctx, invocation, rsp, req.Tools, ch, nil, nil)
	if err != nil || responseEvent == nil {
		return
	}
	if err := agent.CheckContextCancelled(ctx); err != nil {
		return
	}
	if err := p.waitForCompletion(ctx, invocation, responseEvent); err != nil {
		errorEvent := event.NewErrorEvent(
			invocation.InvocationID,
			invocation.AgentName,
			model.ErrorTypeFlowError,
			err.Error(),
		)
		_ = agent.EmitEvent(ctx, invocation, ch, errorEvent)
	}
}

// HandleFunctionCalls executes every tool call of the response concurrently,
// emits the merged function-response event and returns it. When filterIDs is
// non-empty only the calls whose id is in the set are executed; confirmations
// supplies per-call user confirmation payloads. Returns nil when no call
// produced an event.
func (p *FunctionCallResponseProcessor) HandleFunctionCalls(
	ctx context.Context,
	invocation *agent.Invocation,
	llmResponse *model.Response,
	tools map[string]tool.Tool,
	ch chan<- *event.Event,
	filterIDs map[string]bool,
	confirmations map[string]*event.ToolConfirmation,
) (*event.Event, error) {
	if llmResponse == nil || len(llmResponse.Choices) == 0 {
		return nil, nil
	}

	toolCalls := llmResponse.Choices[0].Message.ToolCalls
	if len(filterIDs) > 0 {
		filtered := make([]model.ToolCall, 0, len(toolCalls))
		for _, tc := range toolCalls {
			if filterIDs[tc.ID] {
				filtered = append(filtered, tc)
			}
		}
		toolCalls = filtered
	}
	if len(toolCalls) == 0 {
		return nil, nil
	}

	ctx = agent.NewInvocationContext(ctx, invocation)
	mergedEvent, err := p.executeToolCallsInParallel(
		ctx, invocation, llmResponse, toolCalls, tools, confirmations, ch)
	if err != nil {
		log.Errorf("Function call handling failed for agent %s: %v", invocation.AgentName, err)
		errorEvent := event.NewErrorEvent(
			invocation.InvocationID,
			invocation.AgentName,
			model.ErrorTypeFlowError,
			err.Error(),
		)
		_ = agent.EmitEvent(ctx, invocation, ch, errorEvent)
		return nil, err
	}
	if mergedEvent == nil {
		return nil, nil
	}

	// The flow must not issue the next model call before the tool responses
	// are written to the session.
	mergedEvent.RequiresCompletion = true
	mergedEvent.CompletionID = uuid.New().String()

	// Pending auth or confirmation requests surface as their own events
	// ahead of the function response that carries them.
	if err := p.emitPendingRequests(ctx, invocation, mergedEvent, ch); err != nil {
		return mergedEvent, err
	}
	if err := agent.EmitEvent(ctx, invocation, ch, mergedEvent); err != nil {
		return mergedEvent, err
	}
	return mergedEvent, nil
}

// emitPendingRequests synthesizes auth-request and confirmation-request
// events from the actions accumulated by the executed tools.
func (p *FunctionCallResponseProcessor) emitPendingRequests(
	ctx context.Context,
	invocation *agent.Invocation,
	mergedEvent *event.Event,
	ch chan<- *event.Event,
) error {
	if mergedEvent.Actions == nil {
		return nil
	}
	if len(mergedEvent.Actions.RequestedAuthConfigs) > 0 {
		authEvent := event.New(invocation.InvocationID, invocation.AgentName,
			event.WithBranch(invocation.Branch),
			event.WithObject(model.ObjectTypeAuthRequest),
			event.WithActions(&event.EventActions{
				RequestedAuthConfigs: mergedEvent.Actions.RequestedAuthConfigs,
			}))
		if err := agent.EmitEvent(ctx, invocation, ch, authEvent); err != nil {
			return err
		}
	}
	if len(mergedEvent.Actions.RequestedToolConfirmations) > 0 {
		confirmEvent := event.New(invocation.InvocationID, invocation.AgentName,
			event.WithBranch(invocation.Branch),
			event.WithObject(model.ObjectTypeConfirmationRequest),
			event.WithActions(&event.EventActions{
				RequestedToolConfirmations: mergedEvent.Actions.RequestedToolConfirmations,
			}))
		if err := agent.EmitEvent(ctx, invocation, ch, confirmEvent); err != nil {
			return err
		}
	}
	return nil
}

// executeToolCallsInParallel runs every tool call in its own goroutine. Each
// goroutine is isolated: a panic or error becomes an error payload for that
// call only.
func (p *FunctionCallResponseProcessor) executeToolCallsInParallel(
	ctx context.Context,
	invocation *agent.Invocation,
	llmResponse *model.Response,
	toolCalls []model.ToolCall,
	tools map[string]tool.Tool,
	confirmations map[string]*event.ToolConfirmation,
	ch chan<- *event.Event,
) (*event.Event, error) {
	resultChan := make(chan toolResult, len(toolCalls))
	var wg sync.WaitGroup

	for i, toolCall := range toolCalls {
		wg.Add(1)
		go func(index int, tc model.ToolCall) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("Tool execution panic for %s (index: %d, ID: %s, agent: %s): %v",
						tc.Function.Name, index, tc.ID, invocation.AgentName, r)
					errorChoice := createErrorChoice(index, tc.ID, fmt.Sprintf("tool execution panic: %v", r))
					errorChoice.Message.ToolName = tc.Function.Name
					errorEvent := newToolCallResponseEvent(invocation, llmResponse, []model.Choice{*errorChoice})
					select {
					case resultChan <- toolResult{index: index, event: errorEvent}:
					case <-ctx.Done():
					}
				}
			}()

			toolCtx, span := itelemetry.Tracer.Start(ctx,
				fmt.Sprintf("%s %s", itelemetry.SpanNamePrefixExecuteTool, tc.Function.Name))
			defer span.End()

			resultEvent, err := p.executeToolCall(
				toolCtx, invocation, tc, tools, confirmations[tc.ID], index, llmResponse, ch)
			if err != nil {
				log.Errorf("Tool execution error for %s (index: %d, ID: %s, agent: %s): %v",
					tc.Function.Name, index, tc.ID, invocation.AgentName, err)
				errorChoice := createErrorChoice(index, tc.ID, fmt.Sprintf("tool execution error: %v", err))
				errorChoice.Message.ToolName = tc.Function.Name
				resultEvent = newToolCallResponseEvent(invocation, llmResponse, []model.Choice{*errorChoice})
			}
			if resultEvent != nil {
				itelemetry.TraceToolCall(span, declarationFor(tools, tc.Function.Name), tc.Function.Arguments, resultEvent)
			}
			select {
			case resultChan <- toolResult{index: index, event: resultEvent}:
			case <-ctx.Done():
			}
		}(i, toolCall)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	events := collectParallelToolResults(ctx, resultChan, len(toolCalls))
	if len(events) == 0 {
		// Every call was long-running with no synchronous result.
		return nil, nil
	}

	merged := mergeParallelToolCallResponseEvents(events)
	if len(events) > 1 {
		_, span := itelemetry.Tracer.Start(ctx,
			fmt.Sprintf("%s (merged)", itelemetry.SpanNamePrefixExecuteTool))
		itelemetry.TraceMergedToolCalls(span, merged)
		span.End()
	}
	return merged, nil
}

// executeToolCall resolves and runs one tool call and returns its
// function-response event, or nil for a long-running tool without a
// synchronous result.
func (p *FunctionCallResponseProcessor) executeToolCall(
	ctx context.Context,
	invocation *agent.Invocation,
	toolCall model.ToolCall,
	tools map[string]tool.Tool,
	confirmation *event.ToolConfirmation,
	index int,
	llmResponse *model.Response,
	ch chan<- *event.Event,
) (*event.Event, error) {
	tl, exists := tools[toolCall.Function.Name]
	if !exists {
		// Models sometimes call a sub-agent name directly; map that to
		// transfer_to_agent when the tree permits.
		if mapped := findCompatibleTool(toolCall.Function.Name, tools, invocation); mapped != nil {
			if newArgs := convertToolArguments(
				toolCall.Function.Name, toolCall.Function.Arguments,
				mapped.Declaration().Name,
			); newArgs != nil {
				toolCall.Function.Name = mapped.Declaration().Name
				toolCall.Function.Arguments = newArgs
			}
			tl = mapped
		} else {
			log.Errorf("Tool %s not found (agent=%s)", toolCall.Function.Name, invocation.AgentName)
			choice := createErrorChoice(index, toolCall.ID, ErrorToolNotFound)
			choice.Message.ToolName = toolCall.Function.Name
			return newToolCallResponseEvent(invocation, llmResponse, []model.Choice{*choice}), nil
		}
	}

	toolCtx, err := agent.NewToolContext(ctx)
	if err != nil {
		return nil, err
	}
	toolCtx.FunctionCallID = toolCall.ID
	toolCtx.Confirmation = confirmation
	ctx = agent.NewToolContextContext(ctx, toolCtx)

	log.Debugf("Executing tool %s with args: %s", toolCall.Function.Name, string(toolCall.Function.Arguments))

	result, err := p.executeToolWithCallbacks(ctx, invocation, toolCall, tl, ch)
	if err != nil {
		choice := createErrorChoice(index, toolCall.ID, err.Error())
		choice.Message.ToolName = toolCall.Function.Name
		evt := newToolCallResponseEvent(invocation, llmResponse, []model.Choice{*choice})
		attachToolActions(evt, toolCtx.Actions, tl)
		return evt, nil
	}

	// Long-running tools may return nil to defer their result; no event then.
	if r, ok := tl.(function.LongRunner); ok && r.LongRunning() && result == nil {
		return nil, nil
	}

	payload := normalizeToolResult(result)
	resultBytes, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("Failed to marshal tool result for %s: %v", toolCall.Function.Name, err)
		choice := createErrorChoice(index, toolCall.ID, ErrorMarshalResult)
		choice.Message.ToolName = toolCall.Function.Name
		return newToolCallResponseEvent(invocation, llmResponse, []model.Choice{*choice}), nil
	}

	choice := model.Choice{
		Index: index,
		Message: model.Message{
			Role:     model.RoleTool,
			Content:  string(resultBytes),
			ToolID:   toolCall.ID,
			ToolName: toolCall.Function.Name,
		},
	}
	evt := newToolCallResponseEvent(invocation, llmResponse, []model.Choice{choice})
	attachToolActions(evt, toolCtx.Actions, tl)
	return evt, nil
}

// executeToolWithCallbacks runs the before chain, the tool and the after
// chain. Plugins precede the per-invocation callbacks at every point; the
// first non-nil override wins.
func (p *FunctionCallResponseProcessor) executeToolWithCallbacks(
	ctx context.Context,
	invocation *agent.Invocation,
	toolCall model.ToolCall,
	tl tool.Tool,
	ch chan<- *event.Event,
) (any, error) {
	declaration := tl.Declaration()
	args := toolCall.Function.Arguments

	custom, err := invocation.Plugins.RunBeforeTool(ctx, toolCall.Function.Name, declaration, &args)
	if err != nil {
		return nil, fmt.Errorf("tool plugin error: %w", err)
	}
	if custom == nil && invocation.ToolCallbacks != nil {
		custom, err = invocation.ToolCallbacks.RunBeforeTool(ctx, toolCall.Function.Name, declaration, &args)
		if err != nil {
			return nil, fmt.Errorf("tool callback error: %w", err)
		}
	}

	var result any
	var runErr error
	if custom != nil {
		result = custom
	} else {
		toolCall.Function.Arguments = args
		result, runErr = p.executeTool(ctx, invocation, toolCall, tl, ch)
		if runErr != nil {
			result, runErr = p.recoverToolError(ctx, invocation, toolCall, declaration, runErr)
			if runErr != nil {
				return nil, runErr
			}
		}
	}

	custom, err = invocation.Plugins.RunAfterTool(ctx, toolCall.Function.Name, declaration, args, result, runErr)
	if err != nil {
		return nil, fmt.Errorf("tool plugin error: %w", err)
	}
	if custom == nil && invocation.ToolCallbacks != nil {
		custom, err = invocation.ToolCallbacks.RunAfterTool(ctx, toolCall.Function.Name, declaration, args, result, runErr)
		if err != nil {
			return nil, fmt.Errorf("tool callback error: %w", err)
		}
	}
	if custom != nil {
		result = custom
	}
	return result, nil
}

// recoverToolError runs the error recovery chain. An unrecovered error
// becomes an error payload so one failing call never aborts the turn.
func (p *FunctionCallResponseProcessor) recoverToolError(
	ctx context.Context,
	invocation *agent.Invocation,
	toolCall model.ToolCall,
	declaration *tool.Declaration,
	runErr error,
) (any, error) {
	recovered, err := invocation.Plugins.RunOnToolError(
		ctx, toolCall.Function.Name, declaration, toolCall.Function.Arguments, runErr)
	if err != nil {
		return nil, err
	}
	if recovered != nil {
		return recovered, nil
	}
	if invocation.ToolCallbacks != nil {
		recovered, err = invocation.ToolCallbacks.RunOnToolError(
			ctx, toolCall.Function.Name, declaration, toolCall.Function.Arguments, runErr)
		if err != nil {
			return nil, err
		}
		if recovered != nil {
			return recovered, nil
		}
	}
	return map[string]any{"error": runErr.Error()}, nil
}

// executeTool dispatches on the tool's capabilities.
func (p *FunctionCallResponseProcessor) executeTool(
	ctx context.Context,
	invocation *agent.Invocation,
	toolCall model.ToolCall,
	tl tool.Tool,
	ch chan<- *event.Event,
) (any, error) {
	if streamable, ok := tl.(tool.StreamableTool); ok {
		return p.executeStreamableTool(ctx, invocation, toolCall, streamable, ch)
	}
	if callable, ok := tl.(tool.CallableTool); ok {
		result, err := callable.Call(ctx, toolCall.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ErrorCallableToolExecution, err)
		}
		return result, nil
	}
	return nil, fmt.Errorf("unsupported tool type: %T", tl)
}

// executeStreamableTool drains a streamable tool, emitting each produced
// value as a partial tool.response event, and returns the concatenation as
// the synchronous result.
func (p *FunctionCallResponseProcessor) executeStreamableTool(
	ctx context.Context,
	invocation *agent.Invocation,
	toolCall model.ToolCall,
	tl tool.StreamableTool,
	ch chan<- *event.Event,
) (any, error) {
	reader, err := tl.StreamableCall(ctx, toolCall.Function.Arguments)
	if err != nil {
		return nil, fmt.Errorf("streamable tool call failed: %w", err)
	}
	defer reader.Close()

	var parts []string
	for {
		chunk, err := reader.Recv()
		if err != nil {
			break
		}
		text := chunkText(chunk.Content)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		if ch == nil {
			continue
		}
		partial := event.New(
			invocation.InvocationID,
			invocation.AgentName,
			event.WithBranch(invocation.Branch),
			event.WithResponse(&model.Response{
				ID:      uuid.New().String(),
				Object:  model.ObjectTypeToolResponse,
				Created: time.Now().Unix(),
				Choices: []model.Choice{{
					Message: model.Message{Role: model.RoleTool, ToolID: toolCall.ID},
					Delta:   model.Message{Content: text},
				}},
				Timestamp: time.Now(),
				IsPartial: true,
			}),
		)
		if err := agent.EmitEvent(ctx, invocation, ch, partial); err != nil {
			return joinParts(parts), err
		}
	}
	return joinParts(parts), nil
}

func chunkText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		if bts, err := json.Marshal(v); err == nil {
			return string(bts)
		}
		return fmt.Sprintf("%v", v)
	}
}

func joinParts(parts []string) string {
	var out string
	for _, p := range parts {
		out += p
	}
	return out
}

// normalizeToolResult wraps non-object results so every tool response
// payload is a JSON object.
func normalizeToolResult(result any) any {
	if result == nil {
		return map[string]any{"result": nil}
	}
	bts, err := json.Marshal(result)
	if err != nil || len(bts) == 0 || bts[0] != '{' {
		return map[string]any{"result": result}
	}
	return result
}

// attachToolActions carries the actions a tool accumulated onto its
// function-response event.
func attachToolActions(evt *event.Event, actions *event.EventActions, tl tool.Tool) {
	if evt == nil {
		return
	}
	if actions != nil {
		evt.Actions = actions
	}
	if skipper, ok := tl.(summarizationSkipper); ok && skipper.SkipSummarization() {
		if evt.Actions == nil {
			evt.Actions = event.NewEventActions()
		}
		evt.Actions.SkipSummarization = true
	}
}

func declarationFor(tools map[string]tool.Tool, name string) *tool.Declaration {
	if tl, ok := tools[name]; ok {
		return tl.Declaration()
	}
	return &tool.Declaration{Name: "<not found>", Description: "<not found>"}
}

// waitForCompletion blocks until the runner signals that the event has been
// written to the session, bounded by eventCompletionTimeout.
func (p *FunctionCallResponseProcessor) waitForCompletion(
	ctx context.Context,
	invocation *agent.Invocation,
	lastEvent *event.Event,
) error {
	if !lastEvent.RequiresCompletion || invocation.EventCompletionCh == nil {
		return nil
	}
	for {
		select {
		case completedID := <-invocation.EventCompletionCh:
			if completedID == lastEvent.CompletionID {
				log.Debugf("Tool response event %s completed, proceeding with next model call", completedID)
				return nil
			}
		case <-time.After(eventCompletionTimeout):
			log.Warnf("Timeout waiting for completion of event %s", lastEvent.CompletionID)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// createErrorChoice creates an error choice for tool execution failures.
func createErrorChoice(index int, toolID, errorMsg string) *model.Choice {
	return &model.Choice{
		Index: index,
		Message: model.Message{
			Role:    model.RoleTool,
			Content: errorMsg,
			ToolID:  toolID,
		},
	}
}

// collectParallelToolResults drains the result channel, keeping original
// call order and dropping nil events. The channel close after wg.Wait is the
// only completion signal, so no finished result can be missed.
func collectParallelToolResults(
	ctx context.Context,
	resultChan <-chan toolResult,
	toolCallsCount int,
) []*event.Event {
	results := make([]*event.Event, toolCallsCount)
	record := func(result toolResult) {
		if result.index >= 0 && result.index < len(results) {
			results[result.index] = result.event
		} else {
			log.Errorf("Tool result index %d out of range [0, %d)", result.index, len(results))
		}
	}
	for {
		select {
		case result, ok := <-resultChan:
			if !ok {
				return filterNilEvents(results)
			}
			record(result)
		case <-ctx.Done():
			log.Warnf("Context cancelled while waiting for tool results")
			// Keep everything that already finished.
			for {
				select {
				case result, ok := <-resultChan:
					if !ok {
						return filterNilEvents(results)
					}
					record(result)
				default:
					return filterNilEvents(results)
				}
			}
		}
	}
}

func filterNilEvents(results []*event.Event) []*event.Event {
	filtered := make([]*event.Event, 0, len(results))
	for _, e := range results {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func newToolCallResponseEvent(
	invocation *agent.Invocation,
	functionCallResponse *model.Response,
	functionResponses []model.Choice,
) *event.Event {
	eventID := uuid.New().String()
	return &event.Event{
		Response: &model.Response{
			ID:        eventID,
			Object:    model.ObjectTypeToolResponse,
			Created:   time.Now().Unix(),
			Model:     functionCallResponse.Model,
			Choices:   functionResponses,
			Timestamp: time.Now(),
		},
		InvocationID: invocation.InvocationID,
		Author:       invocation.AgentName,
		ID:           eventID,
		Timestamp:    time.Now(),
		Branch:       invocation.Branch,
	}
}

// mergeParallelToolCallResponseEvents flattens the per-call events into one
// function-response event. Choices concatenate in call order; actions merge
// key-wise; invocation metadata comes from the first contributor.
func mergeParallelToolCallResponseEvents(es []*event.Event) *event.Event {
	if len(es) == 0 {
		return nil
	}
	if len(es) == 1 {
		return es[0]
	}

	totalChoices := 0
	for _, e := range es {
		if e != nil && e.Response != nil {
			totalChoices += len(e.Response.Choices)
		}
	}
	mergedChoices := make([]model.Choice, 0, totalChoices)
	for _, e := range es {
		if e != nil && e.Response != nil {
			mergedChoices = append(mergedChoices, e.Response.Choices...)
		}
	}

	base := es[0]
	eventID := uuid.New().String()
	merged := &event.Event{
		Response: &model.Response{
			ID:        eventID,
			Object:    model.ObjectTypeToolResponse,
			Created:   time.Now().Unix(),
			Model:     base.Response.Model,
			Choices:   mergedChoices,
			Timestamp: time.Now(),
		},
		InvocationID: base.InvocationID,
		Author:       base.Author,
		ID:           eventID,
		Timestamp:    base.Timestamp,
		Branch:       base.Branch,
	}
	for _, e := range es {
		if e == nil || e.Actions == nil {
			continue
		}
		if merged.Actions == nil {
			merged.Actions = event.NewEventActions()
		}
		merged.Actions.Merge(e.Actions)
	}
	return merged
}

// findCompatibleTool maps a missing tool name to transfer_to_agent when the
// requested name is a sub-agent of the current agent.
func findCompatibleTool(requested string, tools map[string]tool.Tool, invocation *agent.Invocation) tool.Tool {
	transferTool, ok := tools[transfer.ToolName]
	if !ok || invocation == nil || invocation.Agent == nil {
		return nil
	}
	for _, a := range invocation.Agent.SubAgents() {
		if a.Info().Name == requested {
			return transferTool
		}
	}
	return nil
}

// convertToolArguments rewrites sub-agent-name call arguments into a
// transfer_to_agent request.
func convertToolArguments(originalName string, originalArgs []byte, targetName string) []byte {
	if targetName != transfer.ToolName {
		return nil
	}
	var input subAgentCall
	if len(originalArgs) > 0 {
		if err := json.Unmarshal(originalArgs, &input); err != nil {
			log.Warnf("Failed to unmarshal sub-agent call arguments for %s: %v", originalName, err)
			return nil
		}
	}
	message := input.Message
	if message == "" {
		message = "Task delegated from coordinator"
	}
	req := &transfer.Request{
		AgentName: originalName,
		Message:   message,
	}
	b, err := json.Marshal(req)
	if err != nil {
		log.Warnf("Failed to marshal transfer request for %s: %v", originalName, err)
		return nil
	}
	return b
}
