//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package flow provides the core flow functionality interfaces and types.
package flow

import (
	"context"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/model"
)

// Flow is the interface that all flows must implement.
type Flow interface {
	// Run executes the flow and yields events as they occur.
	// Returns the event channel and any setup error.
	Run(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error)
}

// LiveFlow is implemented by flows that support live bidirectional sessions.
type LiveFlow interface {
	Flow

	// RunLive executes the flow against a live model connection.
	RunLive(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error)
}

// RequestProcessor processes model requests before they are sent to the model.
type RequestProcessor interface {
	// ProcessRequest processes the request and sends events directly to the provided channel.
	ProcessRequest(ctx context.Context, invocation *agent.Invocation, req *model.Request, ch chan<- *event.Event)
}

// ResponseProcessor processes model responses after they are received from the model.
type ResponseProcessor interface {
	// ProcessResponse processes the response and sends events directly to the provided channel.
	ProcessResponse(ctx context.Context, invocation *agent.Invocation, req *model.Request, rsp *model.Response, ch chan<- *event.Event)
}
