//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package llmagent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/session"
	"github.com/agentflow-go/agentflow/tool"
	"github.com/agentflow-go/agentflow/tool/function"
)

// replayModel returns one scripted stream per GenerateContent call.
type replayModel struct {
	streams [][]*model.Response
	calls   int
}

func (m *replayModel) Info() model.Info {
	return model.Info{Name: "replay-model"}
}

func (m *replayModel) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	var stream []*model.Response
	if m.calls < len(m.streams) {
		stream = m.streams[m.calls]
	}
	m.calls++
	ch := make(chan *model.Response, len(stream))
	for _, rsp := range stream {
		ch <- rsp
	}
	close(ch)
	return ch, nil
}

func assistantDone(content string) *model.Response {
	return &model.Response{
		Object: model.ObjectTypeChatCompletion,
		Done:   true,
		Choices: []model.Choice{{
			Message: model.NewAssistantMessage(content),
		}},
	}
}

func newInvocation(sess *session.Session) *agent.Invocation {
	return &agent.Invocation{
		InvocationID: "inv-1",
		Session:      sess,
		Message:      model.NewUserMessage("hello"),
	}
}

func collectAgentEvents(t *testing.T, ch <-chan *event.Event) []*event.Event {
	t.Helper()
	var events []*event.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatal("timed out waiting for agent events")
		}
	}
}

func TestLLMAgentRun(t *testing.T) {
	m := &replayModel{streams: [][]*model.Response{{assistantDone("Hi there")}}}
	a := New("assistant",
		WithModel(m),
		WithDescription("A test assistant."),
		WithInstruction("Answer briefly."),
	)

	inv := newInvocation(&session.Session{ID: "sess-1", AppName: "app", UserID: "user"})
	ch, err := a.Run(context.Background(), inv)
	require.NoError(t, err)
	events := collectAgentEvents(t, ch)

	require.NotEmpty(t, events)
	final := events[len(events)-1]
	assert.True(t, final.Done)
	assert.Equal(t, "Hi there", final.Choices[0].Message.Content)

	// The agent fills in the invocation it runs.
	assert.Equal(t, "assistant", inv.AgentName)
	assert.Same(t, agent.Agent(a), inv.Agent)
	assert.NotNil(t, inv.Model)
}

func TestLLMAgentInfoAndTools(t *testing.T) {
	echo := function.NewFunctionTool(
		func(ctx context.Context, in struct{}) (string, error) { return "", nil },
		function.WithName("echo"),
	)
	a := New("assistant",
		WithDescription("A test assistant."),
		WithTools([]tool.Tool{echo}),
	)

	info := a.Info()
	assert.Equal(t, "assistant", info.Name)
	assert.Equal(t, "A test assistant.", info.Description)
	require.Len(t, a.Tools(), 1)
	assert.Equal(t, "echo", a.Tools()[0].Declaration().Name)
}

func TestLLMAgentSubAgents(t *testing.T) {
	sub := New("researcher", WithDescription("Finds sources."))
	a := New("root", WithSubAgents([]agent.Agent{sub}))

	require.Len(t, a.SubAgents(), 1)
	assert.Same(t, agent.Agent(sub), a.FindSubAgent("researcher"))
	assert.Nil(t, a.FindSubAgent("ghost"))
}

func TestLLMAgentBeforeCallbackShortCircuits(t *testing.T) {
	m := &replayModel{streams: [][]*model.Response{{assistantDone("from model")}}}
	callbacks := agent.NewCallbacks().RegisterBeforeAgent(
		func(ctx context.Context, invocation *agent.Invocation) (*model.Response, error) {
			return assistantDone("from callback"), nil
		})
	a := New("assistant", WithModel(m), WithAgentCallbacks(callbacks))

	inv := newInvocation(nil)
	ch, err := a.Run(context.Background(), inv)
	require.NoError(t, err)
	events := collectAgentEvents(t, ch)

	require.Len(t, events, 1)
	assert.Equal(t, "from callback", events[0].Choices[0].Message.Content)
	assert.Equal(t, 0, m.calls)
}

func TestLLMAgentBeforeCallbackError(t *testing.T) {
	callbacks := agent.NewCallbacks().RegisterBeforeAgent(
		func(ctx context.Context, invocation *agent.Invocation) (*model.Response, error) {
			return nil, errors.New("not allowed")
		})
	a := New("assistant", WithModel(&replayModel{}), WithAgentCallbacks(callbacks))

	_, err := a.Run(context.Background(), newInvocation(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
}

func TestLLMAgentAfterCallbackAppendsResponse(t *testing.T) {
	m := &replayModel{streams: [][]*model.Response{{assistantDone("model answer")}}}
	callbacks := agent.NewCallbacks().RegisterAfterAgent(
		func(ctx context.Context, invocation *agent.Invocation, runErr error) (*model.Response, error) {
			return assistantDone("postscript"), nil
		})
	a := New("assistant", WithModel(m), WithAgentCallbacks(callbacks))

	ch, err := a.Run(context.Background(), newInvocation(nil))
	require.NoError(t, err)
	events := collectAgentEvents(t, ch)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "postscript", last.Choices[0].Message.Content)
}

func TestLLMAgentAfterCallbackError(t *testing.T) {
	m := &replayModel{streams: [][]*model.Response{{assistantDone("model answer")}}}
	callbacks := agent.NewCallbacks().RegisterAfterAgent(
		func(ctx context.Context, invocation *agent.Invocation, runErr error) (*model.Response, error) {
			return nil, errors.New("after failed")
		})
	a := New("assistant", WithModel(m), WithAgentCallbacks(callbacks))

	ch, err := a.Run(context.Background(), newInvocation(nil))
	require.NoError(t, err)
	events := collectAgentEvents(t, ch)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.NotNil(t, last.Error)
	assert.Equal(t, agent.ErrorTypeAgentCallbackError, last.Error.Type)
	assert.Equal(t, "after failed", last.Error.Message)
}

func TestLLMAgentPreserversInvocationModel(t *testing.T) {
	agentModel := &replayModel{streams: [][]*model.Response{{assistantDone("agent model")}}}
	invModel := &replayModel{streams: [][]*model.Response{{assistantDone("invocation model")}}}
	a := New("assistant", WithModel(agentModel))

	inv := newInvocation(nil)
	inv.Model = invModel
	ch, err := a.Run(context.Background(), inv)
	require.NoError(t, err)
	events := collectAgentEvents(t, ch)

	require.NotEmpty(t, events)
	assert.Equal(t, "invocation model", events[len(events)-1].Choices[0].Message.Content)
	assert.Equal(t, 0, agentModel.calls)
}
