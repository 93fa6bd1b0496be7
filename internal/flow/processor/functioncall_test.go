//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/plugin"
	"github.com/agentflow-go/agentflow/tool"
	"github.com/agentflow-go/agentflow/tool/function"
)

func newTestInvocation() *agent.Invocation {
	return &agent.Invocation{
		AgentName:    "test-agent",
		InvocationID: "inv-1",
	}
}

func toolCallResponse(calls ...model.ToolCall) *model.Response {
	return &model.Response{
		Model: "test-model",
		Choices: []model.Choice{{
			Message: model.Message{Role: model.RoleAssistant, ToolCalls: calls},
		}},
	}
}

type echoInput struct {
	Text string `json:"text"`
}

func echoTool(name string) tool.CallableTool {
	return function.NewFunctionTool(
		func(ctx context.Context, in echoInput) (map[string]any, error) {
			return map[string]any{"echo": in.Text}, nil
		},
		function.WithName(name),
	)
}

func drainEvents(ch chan *event.Event) []*event.Event {
	close(ch)
	var events []*event.Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func TestHandleFunctionCallsSingleTool(t *testing.T) {
	p := NewFunctionCallResponseProcessor()
	inv := newTestInvocation()
	tools := map[string]tool.Tool{"echo": echoTool("echo")}
	ch := make(chan *event.Event, 16)

	rsp := toolCallResponse(model.ToolCall{
		ID:       "call-1",
		Function: model.FunctionDefinitionParam{Name: "echo", Arguments: []byte(`{"text":"hi"}`)},
	})
	merged, err := p.HandleFunctionCalls(context.Background(), inv, rsp, tools, ch, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, merged)

	assert.True(t, merged.RequiresCompletion)
	assert.NotEmpty(t, merged.CompletionID)
	assert.Equal(t, model.ObjectTypeToolResponse, merged.Object)
	require.Len(t, merged.Choices, 1)
	choice := merged.Choices[0]
	assert.Equal(t, model.RoleTool, choice.Message.Role)
	assert.Equal(t, "call-1", choice.Message.ToolID)
	assert.Equal(t, "echo", choice.Message.ToolName)
	assert.JSONEq(t, `{"echo":"hi"}`, choice.Message.Content)
}

func TestHandleFunctionCallsWrapsNonObjectResult(t *testing.T) {
	p := NewFunctionCallResponseProcessor()
	inv := newTestInvocation()
	scalar := function.NewFunctionTool(
		func(ctx context.Context, in echoInput) (string, error) {
			return "plain string", nil
		},
		function.WithName("scalar"),
	)
	tools := map[string]tool.Tool{"scalar": scalar}
	ch := make(chan *event.Event, 16)

	rsp := toolCallResponse(model.ToolCall{
		ID:       "call-1",
		Function: model.FunctionDefinitionParam{Name: "scalar", Arguments: []byte(`{}`)},
	})
	merged, err := p.HandleFunctionCalls(context.Background(), inv, rsp, tools, ch, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.JSONEq(t, `{"result":"plain string"}`, merged.Choices[0].Message.Content)
}

func TestHandleFunctionCallsToolNotFound(t *testing.T) {
	p := NewFunctionCallResponseProcessor()
	inv := newTestInvocation()
	ch := make(chan *event.Event, 16)

	rsp := toolCallResponse(model.ToolCall{
		ID:       "call-1",
		Function: model.FunctionDefinitionParam{Name: "missing", Arguments: []byte(`{}`)},
	})
	merged, err := p.HandleFunctionCalls(context.Background(), inv, rsp, map[string]tool.Tool{}, ch, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, merged)
	require.Len(t, merged.Choices, 1)
	assert.Equal(t, ErrorToolNotFound, merged.Choices[0].Message.Content)
	assert.Equal(t, "missing", merged.Choices[0].Message.ToolName)
}

func TestHandleFunctionCallsPanicIsolation(t *testing.T) {
	p := NewFunctionCallResponseProcessor()
	inv := newTestInvocation()
	panicking := function.NewFunctionTool(
		func(ctx context.Context, in echoInput) (map[string]any, error) {
			panic("kaboom")
		},
		function.WithName("panicking"),
	)
	tools := map[string]tool.Tool{
		"panicking": panicking,
		"echo":      echoTool("echo"),
	}
	ch := make(chan *event.Event, 16)

	rsp := toolCallResponse(
		model.ToolCall{ID: "call-1", Function: model.FunctionDefinitionParam{Name: "panicking", Arguments: []byte(`{}`)}},
		model.ToolCall{ID: "call-2", Function: model.FunctionDefinitionParam{Name: "echo", Arguments: []byte(`{"text":"ok"}`)}},
	)
	merged, err := p.HandleFunctionCalls(context.Background(), inv, rsp, tools, ch, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, merged)

	// Choices keep the original call order; the panic hurt only its own call.
	require.Len(t, merged.Choices, 2)
	assert.Equal(t, "call-1", merged.Choices[0].Message.ToolID)
	assert.Contains(t, merged.Choices[0].Message.Content, "panic")
	assert.Equal(t, "call-2", merged.Choices[1].Message.ToolID)
	assert.JSONEq(t, `{"echo":"ok"}`, merged.Choices[1].Message.Content)
}

func TestHandleFunctionCallsKeepsEveryParallelResult(t *testing.T) {
	p := NewFunctionCallResponseProcessor()
	tools := make(map[string]tool.Tool, 5)
	calls := make([]model.ToolCall, 0, 5)
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("echo-%d", i)
		tools[name] = echoTool(name)
		calls = append(calls, model.ToolCall{
			ID:       fmt.Sprintf("call-%d", i),
			Function: model.FunctionDefinitionParam{Name: name, Arguments: []byte(`{"text":"ok"}`)},
		})
	}

	// Fast tools finish while collection is still draining; every merged
	// event must carry one choice per call.
	for i := 0; i < 500; i++ {
		inv := newTestInvocation()
		ch := make(chan *event.Event, 16)
		merged, err := p.HandleFunctionCalls(context.Background(), inv, toolCallResponse(calls...), tools, ch, nil, nil)
		require.NoError(t, err)
		require.NotNil(t, merged)
		require.Len(t, merged.Choices, 5)
		for j, choice := range merged.Choices {
			assert.Equal(t, fmt.Sprintf("call-%d", j), choice.Message.ToolID)
		}
	}
}

func TestHandleFunctionCallsErrorBecomesPayload(t *testing.T) {
	p := NewFunctionCallResponseProcessor()
	inv := newTestInvocation()
	failing := function.NewFunctionTool(
		func(ctx context.Context, in echoInput) (map[string]any, error) {
			return nil, errors.New("backend unreachable")
		},
		function.WithName("failing"),
	)
	tools := map[string]tool.Tool{"failing": failing}
	ch := make(chan *event.Event, 16)

	rsp := toolCallResponse(model.ToolCall{
		ID:       "call-1",
		Function: model.FunctionDefinitionParam{Name: "failing", Arguments: []byte(`{}`)},
	})
	merged, err := p.HandleFunctionCalls(context.Background(), inv, rsp, tools, ch, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, merged)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(merged.Choices[0].Message.Content), &payload))
	assert.Contains(t, payload["error"], "backend unreachable")
}

func TestHandleFunctionCallsLongRunningNilResult(t *testing.T) {
	p := NewFunctionCallResponseProcessor()
	inv := newTestInvocation()
	longRunning := function.NewFunctionTool(
		func(ctx context.Context, in echoInput) (any, error) {
			return nil, nil
		},
		function.WithName("bg"),
		function.WithLongRunning(true),
	)
	tools := map[string]tool.Tool{"bg": longRunning}
	ch := make(chan *event.Event, 16)

	rsp := toolCallResponse(model.ToolCall{
		ID:       "call-1",
		Function: model.FunctionDefinitionParam{Name: "bg", Arguments: []byte(`{}`)},
	})
	merged, err := p.HandleFunctionCalls(context.Background(), inv, rsp, tools, ch, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, merged)
	assert.Empty(t, drainEvents(ch))
}

func TestHandleFunctionCallsFilterIDs(t *testing.T) {
	p := NewFunctionCallResponseProcessor()
	inv := newTestInvocation()
	tools := map[string]tool.Tool{"echo": echoTool("echo")}
	ch := make(chan *event.Event, 16)

	rsp := toolCallResponse(
		model.ToolCall{ID: "call-1", Function: model.FunctionDefinitionParam{Name: "echo", Arguments: []byte(`{"text":"a"}`)}},
		model.ToolCall{ID: "call-2", Function: model.FunctionDefinitionParam{Name: "echo", Arguments: []byte(`{"text":"b"}`)}},
	)
	merged, err := p.HandleFunctionCalls(context.Background(), inv, rsp, tools, ch,
		map[string]bool{"call-2": true}, nil)
	require.NoError(t, err)
	require.NotNil(t, merged)
	require.Len(t, merged.Choices, 1)
	assert.Equal(t, "call-2", merged.Choices[0].Message.ToolID)
}

type overridePlugin struct {
	plugin.Base
	result any
}

func (p *overridePlugin) BeforeTool(ctx context.Context, name string, decl *tool.Declaration, args *[]byte) (any, error) {
	return p.result, nil
}

func TestHandleFunctionCallsPluginPrecedesCallbacks(t *testing.T) {
	manager, err := plugin.NewManager(&overridePlugin{
		Base:   plugin.Base{PluginName: "override"},
		result: map[string]any{"source": "plugin"},
	})
	require.NoError(t, err)

	var callbackCalled bool
	callbacks := tool.NewCallbacks().RegisterBeforeTool(
		func(ctx context.Context, name string, decl *tool.Declaration, args *[]byte) (any, error) {
			callbackCalled = true
			return map[string]any{"source": "callback"}, nil
		})

	inv := newTestInvocation()
	inv.Plugins = manager
	inv.ToolCallbacks = callbacks

	p := NewFunctionCallResponseProcessor()
	tools := map[string]tool.Tool{"echo": echoTool("echo")}
	ch := make(chan *event.Event, 16)

	rsp := toolCallResponse(model.ToolCall{
		ID:       "call-1",
		Function: model.FunctionDefinitionParam{Name: "echo", Arguments: []byte(`{"text":"hi"}`)},
	})
	merged, err := p.HandleFunctionCalls(context.Background(), inv, rsp, tools, ch, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.JSONEq(t, `{"source":"plugin"}`, merged.Choices[0].Message.Content)
	assert.False(t, callbackCalled)
}

func TestHandleFunctionCallsCallbackRecovery(t *testing.T) {
	callbacks := tool.NewCallbacks().RegisterOnToolError(
		func(ctx context.Context, name string, decl *tool.Declaration, args []byte, runErr error) (any, error) {
			return map[string]any{"recovered": true}, nil
		})

	inv := newTestInvocation()
	inv.ToolCallbacks = callbacks

	failing := function.NewFunctionTool(
		func(ctx context.Context, in echoInput) (map[string]any, error) {
			return nil, errors.New("boom")
		},
		function.WithName("failing"),
	)
	p := NewFunctionCallResponseProcessor()
	tools := map[string]tool.Tool{"failing": failing}
	ch := make(chan *event.Event, 16)

	rsp := toolCallResponse(model.ToolCall{
		ID:       "call-1",
		Function: model.FunctionDefinitionParam{Name: "failing", Arguments: []byte(`{}`)},
	})
	merged, err := p.HandleFunctionCalls(context.Background(), inv, rsp, tools, ch, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.JSONEq(t, `{"recovered":true}`, merged.Choices[0].Message.Content)
}

func TestHandleFunctionCallsConfirmationRequest(t *testing.T) {
	requester := function.NewFunctionTool(
		func(ctx context.Context, in echoInput) (any, error) {
			toolCtx, ok := agent.ToolContextFromContext(ctx)
			if !ok {
				return nil, errors.New("no tool context")
			}
			if toolCtx.Confirmation == nil {
				toolCtx.Actions.RequestedToolConfirmations = map[string]*event.ToolConfirmation{
					toolCtx.FunctionCallID: {Hint: "really delete?"},
				}
				return map[string]any{"status": "pending confirmation"}, nil
			}
			return map[string]any{"deleted": toolCtx.Confirmation.Confirmed}, nil
		},
		function.WithName("delete_all"),
	)

	p := NewFunctionCallResponseProcessor()
	inv := newTestInvocation()
	tools := map[string]tool.Tool{"delete_all": requester}
	ch := make(chan *event.Event, 16)

	rsp := toolCallResponse(model.ToolCall{
		ID:       "call-1",
		Function: model.FunctionDefinitionParam{Name: "delete_all", Arguments: []byte(`{}`)},
	})
	merged, err := p.HandleFunctionCalls(context.Background(), inv, rsp, tools, ch, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, merged)

	// The confirmation.request event precedes the function response.
	events := drainEvents(ch)
	require.Len(t, events, 2)
	assert.Equal(t, model.ObjectTypeConfirmationRequest, events[0].Object)
	require.Contains(t, events[0].Actions.RequestedToolConfirmations, "call-1")
	assert.Equal(t, model.ObjectTypeToolResponse, events[1].Object)

	// On resumption the user's answer reaches the tool.
	ch2 := make(chan *event.Event, 16)
	merged, err = p.HandleFunctionCalls(context.Background(), inv, rsp, tools, ch2,
		map[string]bool{"call-1": true},
		map[string]*event.ToolConfirmation{"call-1": {Confirmed: true}})
	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.JSONEq(t, `{"deleted":true}`, merged.Choices[0].Message.Content)
}

func TestProcessResponseWaitsForCompletion(t *testing.T) {
	p := NewFunctionCallResponseProcessor()
	completionCh := make(chan string, 4)
	inv := newTestInvocation()
	inv.EventCompletionCh = completionCh

	tools := map[string]tool.Tool{"echo": echoTool("echo")}
	req := &model.Request{Tools: tools}
	ch := make(chan *event.Event, 16)

	// Simulate the runner: acknowledge completion-requiring events.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			if e.RequiresCompletion {
				completionCh <- e.CompletionID
			}
		}
	}()

	rsp := toolCallResponse(model.ToolCall{
		ID:       "call-1",
		Function: model.FunctionDefinitionParam{Name: "echo", Arguments: []byte(`{"text":"hi"}`)},
	})
	p.ProcessResponse(context.Background(), inv, req, rsp, ch)
	close(ch)
	<-done
}

func TestProcessResponseIgnoresNonToolCall(t *testing.T) {
	p := NewFunctionCallResponseProcessor()
	inv := newTestInvocation()
	ch := make(chan *event.Event, 4)

	rsp := &model.Response{Choices: []model.Choice{{
		Message: model.NewAssistantMessage("just text"),
	}}}
	p.ProcessResponse(context.Background(), inv, &model.Request{}, rsp, ch)
	assert.Empty(t, drainEvents(ch))
}

func TestMergeParallelToolCallResponseEventsActions(t *testing.T) {
	inv := newTestInvocation()
	base := toolCallResponse()
	e1 := newToolCallResponseEvent(inv, base, []model.Choice{{Message: model.Message{ToolID: "a"}}})
	e1.Actions = &event.EventActions{StateDelta: map[string][]byte{"x": []byte("1")}}
	e2 := newToolCallResponseEvent(inv, base, []model.Choice{{Message: model.Message{ToolID: "b"}}})
	e2.Actions = &event.EventActions{Escalate: true}

	merged := mergeParallelToolCallResponseEvents([]*event.Event{e1, e2})
	require.NotNil(t, merged)
	require.Len(t, merged.Choices, 2)
	assert.Equal(t, "a", merged.Choices[0].Message.ToolID)
	assert.Equal(t, "b", merged.Choices[1].Message.ToolID)
	require.NotNil(t, merged.Actions)
	assert.Equal(t, []byte("1"), merged.Actions.StateDelta["x"])
	assert.True(t, merged.Actions.Escalate)
}
