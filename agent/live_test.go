//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/tool"
)

// stubAgent is a minimal Agent for tree traversal tests.
type stubAgent struct {
	name string
	subs []Agent
}

func (a *stubAgent) Run(ctx context.Context, invocation *Invocation) (<-chan *event.Event, error) {
	ch := make(chan *event.Event)
	close(ch)
	return ch, nil
}

func (a *stubAgent) Tools() []tool.Tool       { return nil }
func (a *stubAgent) Info() Info               { return Info{Name: a.name} }
func (a *stubAgent) SubAgents() []Agent       { return a.subs }
func (a *stubAgent) FindSubAgent(name string) Agent {
	for _, sub := range a.subs {
		if sub.Info().Name == name {
			return sub
		}
	}
	return nil
}

func TestLiveRequestQueueSendContent(t *testing.T) {
	q := NewLiveRequestQueue()
	q.SendContent(model.NewUserMessage("hello"))

	select {
	case req := <-q.Requests():
		require.NotNil(t, req.Content)
		assert.Equal(t, "hello", req.Content.Content)
		assert.Nil(t, req.Blob)
		assert.False(t, req.Close)
	case <-time.After(time.Second):
		t.Fatal("no request received")
	}
}

func TestLiveRequestQueueSendRealtime(t *testing.T) {
	q := NewLiveRequestQueue()
	q.SendRealtime(model.Blob{MimeType: "audio/pcm", Data: []byte{1, 2}})

	req := <-q.Requests()
	require.NotNil(t, req.Blob)
	assert.Equal(t, "audio/pcm", req.Blob.MimeType)
	assert.Nil(t, req.Content)
}

func TestLiveRequestQueueClose(t *testing.T) {
	q := NewLiveRequestQueue()
	q.SendContent(model.NewUserMessage("before"))
	q.Close()
	// Repeated closes are harmless.
	q.Close()

	first := <-q.Requests()
	require.NotNil(t, first.Content)

	marker := <-q.Requests()
	assert.True(t, marker.Close)
}

func TestLiveRequestQueueDropsSendsAfterClose(t *testing.T) {
	q := NewLiveRequestQueue()
	q.Close()
	q.SendContent(model.NewUserMessage("late"))

	marker := <-q.Requests()
	assert.True(t, marker.Close)

	select {
	case req := <-q.Requests():
		t.Fatalf("unexpected request after close: %+v", req)
	default:
	}
}

func TestStreamingToolRegistry(t *testing.T) {
	r := NewStreamingToolRegistry()

	first := &ActiveStreamingTool{Name: "ticker", Done: make(chan struct{})}
	r.Register(first)

	got, ok := r.Get("ticker")
	require.True(t, ok)
	assert.Same(t, first, got)

	// Same name replaces the entry.
	second := &ActiveStreamingTool{Name: "ticker", Done: make(chan struct{})}
	r.Register(second)
	got, ok = r.Get("ticker")
	require.True(t, ok)
	assert.Same(t, second, got)

	r.Register(&ActiveStreamingTool{Name: "monitor", Done: make(chan struct{})})
	assert.ElementsMatch(t, []string{"ticker", "monitor"}, r.Names())

	r.Remove("ticker")
	_, ok = r.Get("ticker")
	assert.False(t, ok)

	_, ok = r.Get("monitor")
	assert.True(t, ok)
}

func TestStreamingToolRegistryCancelAll(t *testing.T) {
	r := NewStreamingToolRegistry()

	cancelled := make(map[string]bool)
	for _, name := range []string{"a", "b"} {
		name := name
		r.Register(&ActiveStreamingTool{
			Name:   name,
			Cancel: func() { cancelled[name] = true },
			Done:   make(chan struct{}),
		})
	}

	r.CancelAll()

	assert.True(t, cancelled["a"])
	assert.True(t, cancelled["b"])
	assert.Empty(t, r.Names())
}

func TestFindAgent(t *testing.T) {
	leaf := &stubAgent{name: "leaf"}
	mid := &stubAgent{name: "mid", subs: []Agent{leaf}}
	root := &stubAgent{name: "root", subs: []Agent{mid}}

	assert.Same(t, Agent(root), FindAgent(root, "root"))
	assert.Same(t, Agent(leaf), FindAgent(root, "leaf"))
	assert.Nil(t, FindAgent(root, "missing"))
	assert.Nil(t, FindAgent(nil, "root"))
}
