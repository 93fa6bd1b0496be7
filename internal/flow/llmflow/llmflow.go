//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package llmflow drives one model-backed agent turn: request construction,
// the model call with its override chains, and response post-processing.
package llmflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/internal/flow"
	itelemetry "github.com/agentflow-go/agentflow/internal/telemetry"
	"github.com/agentflow-go/agentflow/log"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/tool"
	"github.com/agentflow-go/agentflow/tool/function"
)

const defaultChannelBufferSize = 256

// Options contains configuration options for creating a Flow.
type Options struct {
	// ChannelBufferSize is the buffer size for the event channel (default 256).
	ChannelBufferSize int
}

// Flow runs the request processors, the model and the response processors
// in a loop until a final response is produced.
type Flow struct {
	requestProcessors  []flow.RequestProcessor
	responseProcessors []flow.ResponseProcessor
	channelBufferSize  int
}

// New creates a new flow. The processor chains are immutable after creation.
func New(
	requestProcessors []flow.RequestProcessor,
	responseProcessors []flow.ResponseProcessor,
	opts Options,
) *Flow {
	channelBufferSize := opts.ChannelBufferSize
	if channelBufferSize <= 0 {
		channelBufferSize = defaultChannelBufferSize
	}
	return &Flow{
		requestProcessors:  requestProcessors,
		responseProcessors: responseProcessors,
		channelBufferSize:  channelBufferSize,
	}
}

// Run executes the flow in a loop until completion.
func (f *Flow) Run(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error) {
	eventChan := make(chan *event.Event, f.channelBufferSize)

	go func() {
		defer close(eventChan)

		for {
			lastEvent, err := f.runOneStep(ctx, invocation, eventChan)
			if err != nil {
				// Context cancellation is graceful termination: clients
				// commonly close the stream after the final event.
				if errors.Is(err, context.Canceled) {
					log.Debugf("Flow context canceled for agent %s; exiting without error", invocation.AgentName)
					return
				}
				log.Errorf("Flow step failed for agent %s: %v", invocation.AgentName, err)
				errorEvent := event.NewErrorEvent(
					invocation.InvocationID,
					invocation.AgentName,
					model.ErrorTypeFlowError,
					err.Error(),
				)
				_ = agent.EmitEvent(ctx, invocation, eventChan, errorEvent)
				return
			}

			// No events means there is nothing left to do; looping again
			// would busy-spin on the same request.
			if lastEvent == nil || invocation.EndInvocation {
				return
			}
			if lastEvent.Response != nil && lastEvent.Response.IsFinalResponse() {
				return
			}
			if lastEvent.Response != nil && lastEvent.Response.IsPartial {
				log.Warnf("Flow for agent %s ended on a partial response, treating as terminal",
					invocation.AgentName)
				return
			}
		}
	}()

	return eventChan, nil
}

// runOneStep executes one model call cycle and returns the last event
// generated, nil when the step produced none.
func (f *Flow) runOneStep(
	ctx context.Context,
	invocation *agent.Invocation,
	eventChan chan<- *event.Event,
) (*event.Event, error) {
	llmRequest := &model.Request{
		Tools: make(map[string]tool.Tool),
	}

	f.preprocess(ctx, invocation, llmRequest, eventChan)
	if invocation.EndInvocation {
		return nil, nil
	}

	modelName := ""
	if invocation.Model != nil {
		modelName = invocation.Model.Info().Name
	}
	spanCtx, span := itelemetry.Tracer.Start(ctx,
		fmt.Sprintf("%s %s", itelemetry.SpanNameCallModel, modelName))
	defer span.End()
	sessionID := ""
	if invocation.Session != nil {
		sessionID = invocation.Session.ID
	}
	itelemetry.TraceModelCall(span, invocation.InvocationID, sessionID, modelName, llmRequest)

	responseChan, err := f.callModel(spanCtx, invocation, llmRequest)
	if err != nil {
		return nil, err
	}

	return f.processStreamingResponses(ctx, invocation, llmRequest, responseChan, eventChan)
}

// preprocess runs the request processors in their fixed order, then installs
// the agent's tools into the request registry.
func (f *Flow) preprocess(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
	eventChan chan<- *event.Event,
) {
	for _, processor := range f.requestProcessors {
		processor.ProcessRequest(ctx, invocation, llmRequest, eventChan)
		if invocation.EndInvocation {
			return
		}
	}
	if invocation.Agent != nil {
		for _, t := range invocation.Agent.Tools() {
			llmRequest.Tools[t.Declaration().Name] = t
		}
	}
}

// callModel issues the model call behind the before-model override chain.
// Plugins run first; the first non-nil response replaces the model call.
func (f *Flow) callModel(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
) (<-chan *model.Response, error) {
	if invocation.Model == nil {
		return nil, errors.New("no model available for model call")
	}

	log.Debugf("Calling model for agent %s", invocation.AgentName)

	custom, err := invocation.Plugins.RunBeforeModel(ctx, llmRequest)
	if err != nil {
		return f.recoverModelError(ctx, invocation, llmRequest, err)
	}
	if custom == nil && invocation.ModelCallbacks != nil {
		custom, err = invocation.ModelCallbacks.RunBeforeModel(ctx, llmRequest)
		if err != nil {
			return f.recoverModelError(ctx, invocation, llmRequest, err)
		}
	}
	if custom != nil {
		responseChan := make(chan *model.Response, 1)
		responseChan <- custom
		close(responseChan)
		return responseChan, nil
	}

	responseChan, err := invocation.Model.GenerateContent(ctx, llmRequest)
	if err != nil {
		log.Errorf("Model call failed for agent %s: %v", invocation.AgentName, err)
		return f.recoverModelError(ctx, invocation, llmRequest, err)
	}
	return responseChan, nil
}

// recoverModelError routes a model failure through the recovery chain. An
// unrecovered failure becomes an error-carrying response rather than
// aborting the run, so a consuming UI can render it inline.
func (f *Flow) recoverModelError(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
	modelErr error,
) (<-chan *model.Response, error) {
	recovered, err := invocation.Plugins.RunOnModelError(ctx, llmRequest, modelErr)
	if err != nil {
		return nil, err
	}
	if recovered == nil && invocation.ModelCallbacks != nil {
		recovered, err = invocation.ModelCallbacks.RunOnModelError(ctx, llmRequest, modelErr)
		if err != nil {
			return nil, err
		}
	}
	if recovered == nil {
		recovered = errorResponseFromErr(modelErr)
	}
	responseChan := make(chan *model.Response, 1)
	responseChan <- recovered
	close(responseChan)
	return responseChan, nil
}

// structuredModelError is the shape some providers embed in error text.
type structuredModelError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// errorResponseFromErr synthesizes an error-coded response from a model
// failure, preferring a structured {error:{code,message}} payload embedded
// in the message text.
func errorResponseFromErr(modelErr error) *model.Response {
	code := model.ErrorCodeUnknown
	message := modelErr.Error()
	var structured structuredModelError
	if err := json.Unmarshal([]byte(message), &structured); err == nil && structured.Error.Code != "" {
		code = structured.Error.Code
		if structured.Error.Message != "" {
			message = structured.Error.Message
		}
	}
	return &model.Response{
		Object: model.ObjectTypeError,
		Done:   true,
		Error: &model.ResponseError{
			Type:    model.ErrorTypeAPIError,
			Code:    &code,
			Message: message,
		},
	}
}

// processStreamingResponses iterates the model's response stream, applying
// the after-model chain per chunk, yielding response events and running the
// response processors.
func (f *Flow) processStreamingResponses(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
	responseChan <-chan *model.Response,
	eventChan chan<- *event.Event,
) (*event.Event, error) {
	var lastEvent *event.Event

	for response := range responseChan {
		custom, err := f.runAfterModelChain(ctx, invocation, llmRequest, response)
		if err != nil {
			log.Errorf("After model callback failed for agent %s: %v", invocation.AgentName, err)
			_ = agent.EmitEvent(ctx, invocation, eventChan, event.NewErrorEvent(
				invocation.InvocationID,
				invocation.AgentName,
				model.ErrorTypeFlowError,
				err.Error(),
			))
			return lastEvent, nil
		}
		if custom != nil {
			response = custom
		}

		// Chunks with nothing to show are not emitted.
		if skipEmission(response) {
			continue
		}

		event.PopulateToolCallIDs(response)
		llmResponseEvent := f.newModelResponseEvent(invocation, response, llmRequest)
		if err := agent.EmitEvent(ctx, invocation, eventChan, llmResponseEvent); err != nil {
			return lastEvent, err
		}
		lastEvent = llmResponseEvent

		if err := agent.CheckContextCancelled(ctx); err != nil {
			return lastEvent, err
		}

		f.postprocess(ctx, invocation, llmRequest, response, eventChan)
		if err := agent.CheckContextCancelled(ctx); err != nil {
			return lastEvent, err
		}
	}

	return lastEvent, nil
}

// runAfterModelChain applies the after-model override chain to one chunk.
func (f *Flow) runAfterModelChain(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
	response *model.Response,
) (*model.Response, error) {
	custom, err := invocation.Plugins.RunAfterModel(ctx, llmRequest, response)
	if err != nil {
		return nil, err
	}
	if custom != nil {
		return custom, nil
	}
	if invocation.ModelCallbacks != nil {
		return invocation.ModelCallbacks.RunAfterModel(ctx, llmRequest, response)
	}
	return nil, nil
}

// skipEmission reports whether the chunk carries nothing worth yielding.
func skipEmission(rsp *model.Response) bool {
	if rsp == nil {
		return true
	}
	if rsp.Error != nil || rsp.Interrupted || rsp.TurnComplete {
		return false
	}
	return !rsp.IsValidContent()
}

// newModelResponseEvent wraps a model response chunk as an event, computing
// the long-running id set from the tool registry.
func (f *Flow) newModelResponseEvent(
	invocation *agent.Invocation,
	response *model.Response,
	llmRequest *model.Request,
) *event.Event {
	evt := event.New(invocation.InvocationID, invocation.AgentName,
		event.WithBranch(invocation.Branch),
		event.WithResponse(response))
	if calls := response.ToolCalls(); len(calls) > 0 {
		evt.LongRunningToolIDs = collectLongRunningToolIDs(calls, llmRequest.Tools)
	}
	return evt
}

func collectLongRunningToolIDs(toolCalls []model.ToolCall, tools map[string]tool.Tool) map[string]struct{} {
	longRunningToolIDs := make(map[string]struct{})
	for _, toolCall := range toolCalls {
		t, ok := tools[toolCall.Function.Name]
		if !ok {
			continue
		}
		runner, ok := t.(function.LongRunner)
		if !ok || !runner.LongRunning() {
			continue
		}
		longRunningToolIDs[toolCall.ID] = struct{}{}
	}
	return longRunningToolIDs
}

// postprocess runs the response processors over one model response.
func (f *Flow) postprocess(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
	llmResponse *model.Response,
	eventChan chan<- *event.Event,
) {
	if llmResponse == nil {
		return
	}
	for _, processor := range f.responseProcessors {
		processor.ProcessResponse(ctx, invocation, llmRequest, llmResponse, eventChan)
	}
}
