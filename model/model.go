//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package model provides interfaces for working with LLMs.
package model

import (
	"context"
)

// Info contains basic information about a model.
type Info struct {
	// Name is the model identifier sent to the backing service.
	Name string
}

// Model is the interface for LLM generation.
type Model interface {
	// Info returns basic information about the model.
	Info() Info

	// GenerateContent generates content for the given request.
	// The returned channel yields zero or more (possibly partial) responses
	// and is closed when generation finishes. Implementations must not send
	// on the channel after returning an error.
	GenerateContent(ctx context.Context, req *Request) (<-chan *Response, error)
}

// LiveModel is implemented by models that support bidirectional streaming
// sessions in addition to request/response generation.
type LiveModel interface {
	Model

	// Connect establishes a live bidirectional connection configured by req.
	Connect(ctx context.Context, req *Request) (LiveConnection, error)
}

// LiveConnection is a bidirectional streaming session with a model.
//
// Send operations and Receive may be used concurrently. Close releases the
// connection; after Close, Receive's channel is closed and sends fail.
type LiveConnection interface {
	// SendHistory sends prior conversation history to prime the session.
	SendHistory(ctx context.Context, messages []Message) error

	// SendContent sends one content message to the model.
	SendContent(ctx context.Context, message Message) error

	// SendRealtime sends a raw realtime blob (e.g. audio) to the model.
	SendRealtime(ctx context.Context, blob Blob) error

	// Receive returns the channel of model output. The channel is closed
	// when the connection terminates.
	Receive() <-chan *Response

	// Close terminates the connection.
	Close() error
}

// Blob is a chunk of raw realtime data exchanged over a live connection.
type Blob struct {
	// MimeType is the IANA MIME type of the data.
	MimeType string `json:"mime_type,omitempty"`
	// Data is the raw payload.
	Data []byte `json:"data,omitempty"`
}
