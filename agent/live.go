//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package agent

import (
	"context"
	"sync"

	"github.com/agentflow-go/agentflow/model"
)

const defaultLiveQueueSize = 256

// LiveRequest is one item of live input: either a content message or a
// realtime blob. Close marks the end of the caller's input.
type LiveRequest struct {
	// Content is a turn-structured message, exclusive with Blob.
	Content *model.Message
	// Blob is a realtime media chunk, exclusive with Content.
	Blob *model.Blob
	// Close signals that the caller is done sending.
	Close bool
}

// LiveRequestQueue carries the caller's inputs to a live run. Sends after
// Close are dropped.
type LiveRequestQueue struct {
	ch        chan *LiveRequest
	closeOnce sync.Once
	done      chan struct{}
}

// NewLiveRequestQueue creates a new live request queue.
func NewLiveRequestQueue() *LiveRequestQueue {
	return &LiveRequestQueue{
		ch:   make(chan *LiveRequest, defaultLiveQueueSize),
		done: make(chan struct{}),
	}
}

// SendContent enqueues a content message.
func (q *LiveRequestQueue) SendContent(message model.Message) {
	q.send(&LiveRequest{Content: &message})
}

// SendRealtime enqueues a realtime blob.
func (q *LiveRequestQueue) SendRealtime(blob model.Blob) {
	q.send(&LiveRequest{Blob: &blob})
}

// Close marks the end of input. It is safe to call multiple times.
func (q *LiveRequestQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.send(&LiveRequest{Close: true})
	})
}

// Requests returns the receive side of the queue.
func (q *LiveRequestQueue) Requests() <-chan *LiveRequest {
	return q.ch
}

func (q *LiveRequestQueue) send(req *LiveRequest) {
	if req.Close {
		// The close marker must get through even when the queue is full.
		q.ch <- req
		return
	}
	select {
	case <-q.done:
	case q.ch <- req:
	}
}

// ActiveStreamingTool tracks one running streaming tool task in live mode.
type ActiveStreamingTool struct {
	// Name is the tool name.
	Name string
	// Cancel stops the tool's task.
	Cancel context.CancelFunc
	// Done is closed when the tool's task finishes.
	Done chan struct{}
}

// StreamingToolRegistry tracks the streaming tool tasks active in a live
// run, keyed by tool name. Safe for concurrent use.
type StreamingToolRegistry struct {
	mu    sync.Mutex
	tools map[string]*ActiveStreamingTool
}

// NewStreamingToolRegistry creates a new registry.
func NewStreamingToolRegistry() *StreamingToolRegistry {
	return &StreamingToolRegistry{
		tools: make(map[string]*ActiveStreamingTool),
	}
}

// Register records a running streaming tool, replacing any previous entry
// with the same name.
func (r *StreamingToolRegistry) Register(t *ActiveStreamingTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Get returns the active streaming tool with the given name.
func (r *StreamingToolRegistry) Get(name string) (*ActiveStreamingTool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	return t, ok
}

// Remove drops the entry with the given name.
func (r *StreamingToolRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Names returns the names of the active streaming tools.
func (r *StreamingToolRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// CancelAll cancels every active streaming tool and clears the registry.
func (r *StreamingToolRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, t := range r.tools {
		if t.Cancel != nil {
			t.Cancel()
		}
		delete(r.tools, name)
	}
}
