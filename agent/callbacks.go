//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package agent

import (
	"context"

	"github.com/agentflow-go/agentflow/model"
)

// BeforeAgentCallback is called before the agent runs.
// A non-nil custom response is returned to the user and agent execution
// is skipped. A non-nil error stops the agent with that error.
type BeforeAgentCallback func(ctx context.Context, invocation *Invocation) (*model.Response, error)

// AfterAgentCallback is called after the agent runs.
// A non-nil custom response is appended in place of the agent's final
// output. A non-nil error is returned to the caller.
type AfterAgentCallback func(ctx context.Context, invocation *Invocation, runErr error) (*model.Response, error)

// Callbacks holds callbacks for agent operations.
type Callbacks struct {
	BeforeAgent []BeforeAgentCallback
	AfterAgent  []AfterAgentCallback
}

// NewCallbacks creates a new Callbacks instance.
func NewCallbacks() *Callbacks {
	return &Callbacks{}
}

// RegisterBeforeAgent registers a before agent callback.
func (c *Callbacks) RegisterBeforeAgent(cb BeforeAgentCallback) *Callbacks {
	c.BeforeAgent = append(c.BeforeAgent, cb)
	return c
}

// RegisterAfterAgent registers an after agent callback.
func (c *Callbacks) RegisterAfterAgent(cb AfterAgentCallback) *Callbacks {
	c.AfterAgent = append(c.AfterAgent, cb)
	return c
}

// RunBeforeAgent runs all before agent callbacks in order.
// If any callback returns a custom response, stop and return it.
func (c *Callbacks) RunBeforeAgent(ctx context.Context, invocation *Invocation) (*model.Response, error) {
	for _, cb := range c.BeforeAgent {
		customResponse, err := cb(ctx, invocation)
		if err != nil {
			return nil, err
		}
		if customResponse != nil {
			return customResponse, nil
		}
	}
	return nil, nil
}

// RunAfterAgent runs all after agent callbacks in order.
// If any callback returns a custom response, stop and return it.
func (c *Callbacks) RunAfterAgent(ctx context.Context, invocation *Invocation, runErr error) (*model.Response, error) {
	for _, cb := range c.AfterAgent {
		customResponse, err := cb(ctx, invocation, runErr)
		if err != nil {
			return nil, err
		}
		if customResponse != nil {
			return customResponse, nil
		}
	}
	return nil, nil
}
