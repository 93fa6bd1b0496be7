//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package llmflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/log"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/tool"
	"github.com/agentflow-go/agentflow/tool/function"
	"github.com/agentflow-go/agentflow/tool/transfer"
)

const (
	// StopStreamingFunctionName is the reserved control call that stops a
	// running streaming tool.
	StopStreamingFunctionName = "stop_streaming"

	// stopStreamingTimeout bounds the wait for a cancelled streaming tool
	// to observe cancellation. Stopping is best-effort: only the request to
	// stop is guaranteed, not that the task has terminated.
	stopStreamingTimeout = time.Second
)

// stopStreamingArgs is the argument shape of the stop_streaming call.
type stopStreamingArgs struct {
	FunctionName string `json:"function_name"`
}

// RunLive executes a live bidirectional session: the request pipeline runs
// once, then a send loop and a receive loop share the model connection until
// the caller closes the queue or the model stream ends.
func (f *Flow) RunLive(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error) {
	liveModel, ok := invocation.Model.(model.LiveModel)
	if !ok {
		return nil, errors.New("model does not support live connections")
	}
	if invocation.LiveRequestQueue == nil {
		return nil, errors.New("live run requires a request queue")
	}
	if invocation.ActiveStreamingTools == nil {
		invocation.ActiveStreamingTools = agent.NewStreamingToolRegistry()
	}

	eventChan := make(chan *event.Event, f.channelBufferSize)

	go func() {
		defer close(eventChan)
		if err := f.runLive(ctx, invocation, liveModel, eventChan); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Errorf("Live flow failed for agent %s: %v", invocation.AgentName, err)
			_ = agent.EmitEvent(ctx, invocation, eventChan, event.NewErrorEvent(
				invocation.InvocationID,
				invocation.AgentName,
				model.ErrorTypeFlowError,
				err.Error(),
			))
		}
	}()

	return eventChan, nil
}

func (f *Flow) runLive(
	ctx context.Context,
	invocation *agent.Invocation,
	liveModel model.LiveModel,
	eventChan chan<- *event.Event,
) error {
	llmRequest := &model.Request{
		Tools: make(map[string]tool.Tool),
	}
	f.preprocess(ctx, invocation, llmRequest, eventChan)
	if invocation.EndInvocation {
		return nil
	}

	conn, err := liveModel.Connect(ctx, llmRequest)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer invocation.ActiveStreamingTools.CancelAll()

	if len(llmRequest.Messages) > 0 {
		if err := conn.SendHistory(ctx, llmRequest.Messages); err != nil {
			return err
		}
	}

	// The receive loop is the authoritative end of the turn: when it exits
	// the send loop abandons pending input rather than awaiting it.
	recvDone := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return f.liveSendLoop(gctx, invocation, conn, recvDone)
	})
	g.Go(func() error {
		defer close(recvDone)
		return f.liveReceiveLoop(gctx, invocation, llmRequest, conn, eventChan)
	})
	return g.Wait()
}

// liveSendLoop forwards caller input to the connection until the queue is
// closed or the receive loop exits.
func (f *Flow) liveSendLoop(
	ctx context.Context,
	invocation *agent.Invocation,
	conn model.LiveConnection,
	recvDone <-chan struct{},
) error {
	for {
		select {
		case req, ok := <-invocation.LiveRequestQueue.Requests():
			if !ok || req == nil || req.Close {
				return nil
			}
			var err error
			switch {
			case req.Content != nil:
				err = conn.SendContent(ctx, *req.Content)
			case req.Blob != nil:
				err = conn.SendRealtime(ctx, *req.Blob)
			}
			if err != nil {
				log.Warnf("Live send failed for agent %s: %v", invocation.AgentName, err)
				return err
			}
		case <-recvDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// liveReceiveLoop converts model output to events, dispatches function calls
// sequentially and forwards their responses back to the connection.
func (f *Flow) liveReceiveLoop(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
	conn model.LiveConnection,
	eventChan chan<- *event.Event,
) error {
	for {
		var response *model.Response
		select {
		case rsp, ok := <-conn.Receive():
			if !ok {
				return nil
			}
			response = rsp
		case <-ctx.Done():
			// The deferred conn.Close unblocks nothing here, so the loop
			// must observe cancellation itself.
			return ctx.Err()
		}
		if response == nil {
			continue
		}
		if response.SessionResumptionHandle != "" {
			// Refreshed as chunks arrive so a reconnect resumes from the
			// latest point.
			invocation.RunOptions.ResumptionHandle = response.SessionResumptionHandle
		}
		if skipEmission(response) {
			continue
		}

		event.PopulateToolCallIDs(response)
		evt := f.newModelResponseEvent(invocation, response, llmRequest)
		if err := agent.EmitEvent(ctx, invocation, eventChan, evt); err != nil {
			return err
		}

		calls := response.ToolCalls()
		if len(calls) == 0 {
			continue
		}
		transferRequested, err := f.executeLiveFunctionCalls(
			ctx, invocation, response, calls, llmRequest.Tools, conn, eventChan)
		if err != nil {
			return err
		}
		if transferRequested {
			// The parent runner performs the hand-off.
			return nil
		}
	}
}

// executeLiveFunctionCalls dispatches the turn's calls one at a time,
// forwarding each response to the connection. Reports whether an agent
// transfer was requested.
func (f *Flow) executeLiveFunctionCalls(
	ctx context.Context,
	invocation *agent.Invocation,
	llmResponse *model.Response,
	calls []model.ToolCall,
	tools map[string]tool.Tool,
	conn model.LiveConnection,
	eventChan chan<- *event.Event,
) (bool, error) {
	ctx = agent.NewInvocationContext(ctx, invocation)
	transferRequested := false
	for i, call := range calls {
		choice, err := f.executeSingleFunctionCallLive(ctx, invocation, call, tools, i)
		if err != nil {
			return transferRequested, err
		}
		if choice == nil {
			continue
		}
		responseEvent := event.New(invocation.InvocationID, invocation.AgentName,
			event.WithBranch(invocation.Branch),
			event.WithResponse(&model.Response{
				ID:        uuid.New().String(),
				Object:    model.ObjectTypeToolResponse,
				Created:   time.Now().Unix(),
				Model:     llmResponse.Model,
				Choices:   []model.Choice{*choice},
				Timestamp: time.Now(),
			}))
		if err := agent.EmitEvent(ctx, invocation, eventChan, responseEvent); err != nil {
			return transferRequested, err
		}
		if err := conn.SendContent(ctx, choice.Message); err != nil {
			log.Warnf("Forwarding tool response failed for agent %s: %v", invocation.AgentName, err)
		}
		if call.Function.Name == transfer.ToolName || invocation.TransferInfo != nil {
			transferRequested = true
		}
	}
	return transferRequested, nil
}

// executeSingleFunctionCallLive runs one live call: the stop_streaming
// control call, a streaming tool started as a background task, or a plain
// callable tool. Returns nil for a long-running tool with no synchronous
// result.
func (f *Flow) executeSingleFunctionCallLive(
	ctx context.Context,
	invocation *agent.Invocation,
	call model.ToolCall,
	tools map[string]tool.Tool,
	index int,
) (*model.Choice, error) {
	if call.Function.Name == StopStreamingFunctionName {
		status := f.stopStreamingTool(invocation, call.Function.Arguments)
		return liveResultChoice(index, call, map[string]any{"status": status})
	}

	tl, exists := tools[call.Function.Name]
	if !exists {
		choice := createLiveErrorChoice(index, call, "Error: tool not found")
		return choice, nil
	}

	toolCtx, err := agent.NewToolContext(ctx)
	if err != nil {
		return nil, err
	}
	toolCtx.FunctionCallID = call.ID
	ctx = agent.NewToolContextContext(ctx, toolCtx)

	declaration := tl.Declaration()
	args := call.Function.Arguments

	// Agent-level callbacks only in the live path.
	var result any
	if invocation.ToolCallbacks != nil {
		custom, cbErr := invocation.ToolCallbacks.RunBeforeTool(ctx, call.Function.Name, declaration, &args)
		if cbErr != nil {
			return createLiveErrorChoice(index, call, cbErr.Error()), nil
		}
		result = custom
	}

	if result == nil {
		if streamable, ok := tl.(tool.StreamableTool); ok {
			status := f.startStreamingTool(ctx, invocation, call, streamable, args)
			result = map[string]any{"status": status}
		} else if callable, ok := tl.(tool.CallableTool); ok {
			var runErr error
			result, runErr = callable.Call(ctx, args)
			if runErr != nil {
				result, runErr = f.recoverLiveToolError(ctx, invocation, call, declaration, args, runErr)
				if runErr != nil {
					return createLiveErrorChoice(index, call, runErr.Error()), nil
				}
			}
		} else {
			return createLiveErrorChoice(index, call, fmt.Sprintf("unsupported tool type: %T", tl)), nil
		}
	}

	if invocation.ToolCallbacks != nil {
		custom, cbErr := invocation.ToolCallbacks.RunAfterTool(ctx, call.Function.Name, declaration, args, result, nil)
		if cbErr != nil {
			return createLiveErrorChoice(index, call, cbErr.Error()), nil
		}
		if custom != nil {
			result = custom
		}
	}

	if r, ok := tl.(function.LongRunner); ok && r.LongRunning() && result == nil {
		return nil, nil
	}
	return liveResultChoice(index, call, result)
}

func (f *Flow) recoverLiveToolError(
	ctx context.Context,
	invocation *agent.Invocation,
	call model.ToolCall,
	declaration *tool.Declaration,
	args []byte,
	runErr error,
) (any, error) {
	if invocation.ToolCallbacks == nil {
		return map[string]any{"error": runErr.Error()}, nil
	}
	recovered, err := invocation.ToolCallbacks.RunOnToolError(ctx, call.Function.Name, declaration, args, runErr)
	if err != nil {
		return nil, err
	}
	if recovered != nil {
		return recovered, nil
	}
	return map[string]any{"error": runErr.Error()}, nil
}

// startStreamingTool launches a streaming tool as a detached task that
// forwards each produced value into the live queue as a synthetic user
// message, and registers it for stop_streaming. Returns immediately.
func (f *Flow) startStreamingTool(
	ctx context.Context,
	invocation *agent.Invocation,
	call model.ToolCall,
	tl tool.StreamableTool,
	args []byte,
) string {
	name := call.Function.Name
	toolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	active := &agent.ActiveStreamingTool{
		Name:   name,
		Cancel: cancel,
		Done:   make(chan struct{}),
	}
	invocation.ActiveStreamingTools.Register(active)

	go func() {
		defer close(active.Done)
		defer invocation.ActiveStreamingTools.Remove(name)

		reader, err := tl.StreamableCall(toolCtx, args)
		if err != nil {
			log.Errorf("Streaming tool %s failed to start: %v", name, err)
			return
		}
		defer reader.Close()
		for {
			select {
			case <-toolCtx.Done():
				return
			default:
			}
			chunk, err := reader.Recv()
			if err != nil {
				return
			}
			text := liveChunkText(chunk.Content)
			if text == "" {
				continue
			}
			invocation.LiveRequestQueue.SendContent(
				model.NewUserMessage(fmt.Sprintf("Function %s returned: %s", name, text)))
		}
	}()

	return fmt.Sprintf("The function %s is running asynchronously and the results are pending.", name)
}

// stopStreamingTool services the stop_streaming control call. It never
// fails: unknown names yield a not-found status.
func (f *Flow) stopStreamingTool(invocation *agent.Invocation, args []byte) string {
	var parsed stopStreamingArgs
	if err := json.Unmarshal(args, &parsed); err != nil || parsed.FunctionName == "" {
		return "No streaming function name was provided to stop."
	}
	active, ok := invocation.ActiveStreamingTools.Get(parsed.FunctionName)
	if !ok {
		return fmt.Sprintf("No active streaming function named %s was found.", parsed.FunctionName)
	}
	if active.Cancel != nil {
		active.Cancel()
	}
	select {
	case <-active.Done:
	case <-time.After(stopStreamingTimeout):
		log.Warnf("Streaming tool %s did not stop within %v", parsed.FunctionName, stopStreamingTimeout)
	}
	invocation.ActiveStreamingTools.Remove(parsed.FunctionName)
	return fmt.Sprintf("Successfully stopped streaming function %s.", parsed.FunctionName)
}

func liveResultChoice(index int, call model.ToolCall, result any) (*model.Choice, error) {
	payload := result
	if payload == nil {
		payload = map[string]any{"result": nil}
	}
	bts, err := json.Marshal(payload)
	if err != nil || len(bts) == 0 || bts[0] != '{' {
		bts, err = json.Marshal(map[string]any{"result": payload})
		if err != nil {
			return createLiveErrorChoice(index, call, "Error: failed to marshal result"), nil
		}
	}
	return &model.Choice{
		Index: index,
		Message: model.Message{
			Role:     model.RoleTool,
			Content:  string(bts),
			ToolID:   call.ID,
			ToolName: call.Function.Name,
		},
	}, nil
}

func createLiveErrorChoice(index int, call model.ToolCall, msg string) *model.Choice {
	return &model.Choice{
		Index: index,
		Message: model.Message{
			Role:     model.RoleTool,
			Content:  msg,
			ToolID:   call.ID,
			ToolName: call.Function.Name,
		},
	}
}

func liveChunkText(content any) string {
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
