//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/session"
	"github.com/agentflow-go/agentflow/session/inmemory"
	"github.com/agentflow-go/agentflow/tool"
)

// scriptedAgent replays a fixed event list and records the invocation it ran.
type scriptedAgent struct {
	name   string
	events []*event.Event
	runErr error
	gotInv *agent.Invocation
}

func (a *scriptedAgent) Run(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error) {
	if a.runErr != nil {
		return nil, a.runErr
	}
	a.gotInv = invocation
	ch := make(chan *event.Event, len(a.events))
	for _, e := range a.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func (a *scriptedAgent) Tools() []tool.Tool              { return nil }
func (a *scriptedAgent) Info() agent.Info                { return agent.Info{Name: a.name} }
func (a *scriptedAgent) SubAgents() []agent.Agent        { return nil }
func (a *scriptedAgent) FindSubAgent(string) agent.Agent { return nil }

// scriptedLiveAgent adds a live entry point replaying the same events.
type scriptedLiveAgent struct {
	scriptedAgent
}

func (a *scriptedLiveAgent) RunLive(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error) {
	return a.scriptedAgent.Run(ctx, invocation)
}

func agentEvent(author, content string) *event.Event {
	return &event.Event{
		Response: &model.Response{
			Object: model.ObjectTypeChatCompletion,
			Done:   true,
			Choices: []model.Choice{{
				Message: model.NewAssistantMessage(content),
			}},
		},
		InvocationID: "inv-scripted",
		Author:       author,
		ID:           "evt-" + content,
		Timestamp:    time.Now(),
	}
}

func partialAgentEvent(author, content string) *event.Event {
	e := agentEvent(author, content)
	e.Response.Done = false
	e.Response.IsPartial = true
	e.Response.Object = model.ObjectTypeChatCompletionChunk
	return e
}

func collectRunnerEvents(t *testing.T, ch <-chan *event.Event) []*event.Event {
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
			t.Fatal("timed out waiting for runner events")
		}
	}
}

func TestRunnerRunAppendsCompletionEvent(t *testing.T) {
	a := &scriptedAgent{name: "assistant", events: []*event.Event{agentEvent("assistant", "done")}}
	r := NewRunner("test-app", a)

	ch, err := r.Run(context.Background(), "user-1", "sess-1", model.NewUserMessage("hi"))
	require.NoError(t, err)
	events := collectRunnerEvents(t, ch)

	require.Len(t, events, 2)
	assert.Equal(t, "done", events[0].Choices[0].Message.Content)

	completion := events[1]
	assert.Equal(t, model.ObjectTypeRunnerCompletion, completion.Object)
	assert.Equal(t, "test-app", completion.Author)
	assert.True(t, completion.Done)
	assert.True(t, strings.HasPrefix(completion.Response.ID, "runner-completion-"))
}

func TestRunnerRunPersistsUserMessageAndEvents(t *testing.T) {
	svc := inmemory.NewSessionService()
	a := &scriptedAgent{name: "assistant", events: []*event.Event{agentEvent("assistant", "answer")}}
	r := NewRunner("test-app", a, WithSessionService(svc))

	ch, err := r.Run(context.Background(), "user-1", "sess-1", model.NewUserMessage("question"))
	require.NoError(t, err)
	collectRunnerEvents(t, ch)

	sess, err := svc.GetSession(context.Background(), session.Key{
		AppName: "test-app", UserID: "user-1", SessionID: "sess-1",
	})
	require.NoError(t, err)
	require.NotNil(t, sess)

	// User message, agent answer, runner completion.
	require.Len(t, sess.Events, 3)
	assert.Equal(t, "user", sess.Events[0].Author)
	assert.Equal(t, "question", sess.Events[0].Choices[0].Message.Content)
	assert.Equal(t, "assistant", sess.Events[1].Author)
	assert.Equal(t, model.ObjectTypeRunnerCompletion, sess.Events[2].Object)
}

func TestRunnerRunForwardsPartialsWithoutPersisting(t *testing.T) {
	svc := inmemory.NewSessionService()
	a := &scriptedAgent{name: "assistant", events: []*event.Event{
		partialAgentEvent("assistant", "ans"),
		agentEvent("assistant", "answer"),
	}}
	r := NewRunner("test-app", a, WithSessionService(svc))

	ch, err := r.Run(context.Background(), "user-1", "sess-1", model.NewUserMessage("question"))
	require.NoError(t, err)
	events := collectRunnerEvents(t, ch)

	// The caller sees the partial.
	require.Len(t, events, 3)
	assert.True(t, events[0].IsPartial)

	// The session does not.
	sess, err := svc.GetSession(context.Background(), session.Key{
		AppName: "test-app", UserID: "user-1", SessionID: "sess-1",
	})
	require.NoError(t, err)
	require.Len(t, sess.Events, 3)
	for _, e := range sess.Events {
		assert.False(t, e.IsPartial)
	}
}

func TestRunnerRunSignalsCompletionIDs(t *testing.T) {
	waiting := agentEvent("assistant", "stored")
	waiting.RequiresCompletion = true
	waiting.CompletionID = "completion-42"

	a := &scriptedAgent{name: "assistant", events: []*event.Event{waiting}}
	r := NewRunner("test-app", a)

	ch, err := r.Run(context.Background(), "user-1", "sess-1", model.NewUserMessage("hi"))
	require.NoError(t, err)
	collectRunnerEvents(t, ch)

	require.NotNil(t, a.gotInv)
	select {
	case id := <-a.gotInv.EventCompletionCh:
		assert.Equal(t, "completion-42", id)
	case <-time.After(time.Second):
		t.Fatal("no completion notice received")
	}
}

func TestRunnerRunBuildsInvocation(t *testing.T) {
	a := &scriptedAgent{name: "assistant"}
	r := NewRunner("test-app", a)

	ch, err := r.Run(context.Background(), "user-1", "sess-1", model.NewUserMessage("hi"))
	require.NoError(t, err)
	collectRunnerEvents(t, ch)

	inv := a.gotInv
	require.NotNil(t, inv)
	assert.Equal(t, "assistant", inv.AgentName)
	assert.True(t, strings.HasPrefix(inv.InvocationID, "invocation-"))
	assert.Equal(t, "hi", inv.Message.Content)
	require.NotNil(t, inv.Session)
	assert.Equal(t, "sess-1", inv.Session.ID)
}

func TestRunnerRunAgentError(t *testing.T) {
	a := &scriptedAgent{name: "assistant", runErr: errors.New("agent exploded")}
	r := NewRunner("test-app", a)

	_, err := r.Run(context.Background(), "user-1", "sess-1", model.NewUserMessage("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent exploded")
}

func TestRunnerRunLiveRequiresLiveAgent(t *testing.T) {
	a := &scriptedAgent{name: "assistant"}
	r := NewRunner("test-app", a)

	_, err := r.RunLive(context.Background(), "user-1", "sess-1", agent.NewLiveRequestQueue())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support live runs")
}

func TestRunnerRunLive(t *testing.T) {
	a := &scriptedLiveAgent{scriptedAgent{name: "assistant", events: []*event.Event{
		agentEvent("assistant", "live answer"),
	}}}
	r := NewRunner("test-app", a)

	queue := agent.NewLiveRequestQueue()
	ch, err := r.RunLive(context.Background(), "user-1", "sess-1", queue)
	require.NoError(t, err)
	events := collectRunnerEvents(t, ch)

	require.Len(t, events, 2)
	assert.Equal(t, "live answer", events[0].Choices[0].Message.Content)
	assert.Equal(t, model.ObjectTypeRunnerCompletion, events[1].Object)

	inv := a.gotInv
	require.NotNil(t, inv)
	assert.Same(t, queue, inv.LiveRequestQueue)
	assert.NotNil(t, inv.ActiveStreamingTools)
}

func TestShouldPersist(t *testing.T) {
	tests := []struct {
		name string
		evt  *event.Event
		want bool
	}{
		{name: "nil event", evt: nil, want: false},
		{name: "no response", evt: &event.Event{}, want: false},
		{name: "partial", evt: partialAgentEvent("a", "x"), want: false},
		{name: "final with choices", evt: agentEvent("a", "x"), want: true},
		{
			name: "error response",
			evt: &event.Event{Response: &model.Response{
				Error: &model.ResponseError{Message: "boom"},
			}},
			want: true,
		},
		{
			name: "state delta only",
			evt: &event.Event{
				Response: &model.Response{},
				Actions:  &event.EventActions{StateDelta: map[string][]byte{"k": []byte(`"v"`)}},
			},
			want: true,
		},
		{name: "empty response", evt: &event.Event{Response: &model.Response{}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldPersist(tt.evt))
		})
	}
}
