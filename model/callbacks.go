//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package model

import (
	"context"
)

// BeforeModelCallback is called before the model is invoked. It can mutate the request.
// Returns (customResponse, error).
// - customResponse: if not nil, this response is used and the model call is skipped.
// - error: if not nil, the model call is stopped with this error.
type BeforeModelCallback func(ctx context.Context, req *Request) (*Response, error)

// AfterModelCallback is called after the model is invoked, once per response chunk.
// Returns (customResponse, error).
// - customResponse: if not nil, this response is used instead of the model's chunk.
// - error: if not nil, this error is returned.
type AfterModelCallback func(ctx context.Context, req *Request, rsp *Response) (*Response, error)

// OnModelErrorCallback is called when the model call fails.
// Returns (customResponse, error).
//   - customResponse: if not nil, the failure is considered recovered and this
//     response is used as the model output.
//   - error: if not nil, recovery stops and this error is surfaced.
type OnModelErrorCallback func(ctx context.Context, req *Request, modelErr error) (*Response, error)

// Callbacks holds callbacks for model operations.
type Callbacks struct {
	// BeforeModel callbacks run before the model call, in order.
	BeforeModel []BeforeModelCallback
	// AfterModel callbacks run per response chunk, in order.
	AfterModel []AfterModelCallback
	// OnModelError callbacks run when the model call fails, in order.
	OnModelError []OnModelErrorCallback
}

// NewCallbacks creates a new Callbacks instance for model operations.
func NewCallbacks() *Callbacks {
	return &Callbacks{}
}

// RegisterBeforeModel registers a before model callback.
func (c *Callbacks) RegisterBeforeModel(cb BeforeModelCallback) *Callbacks {
	c.BeforeModel = append(c.BeforeModel, cb)
	return c
}

// RegisterAfterModel registers an after model callback.
func (c *Callbacks) RegisterAfterModel(cb AfterModelCallback) *Callbacks {
	c.AfterModel = append(c.AfterModel, cb)
	return c
}

// RegisterOnModelError registers an on model error callback.
func (c *Callbacks) RegisterOnModelError(cb OnModelErrorCallback) *Callbacks {
	c.OnModelError = append(c.OnModelError, cb)
	return c
}

// RunBeforeModel runs all before model callbacks in order.
// If any callback returns a custom response, stop and return it.
func (c *Callbacks) RunBeforeModel(ctx context.Context, req *Request) (*Response, error) {
	for _, cb := range c.BeforeModel {
		customResponse, err := cb(ctx, req)
		if err != nil {
			return nil, err
		}
		if customResponse != nil {
			return customResponse, nil
		}
	}
	return nil, nil
}

// RunAfterModel runs all after model callbacks in order.
// If any callback returns a custom response, stop and return it.
func (c *Callbacks) RunAfterModel(ctx context.Context, req *Request, rsp *Response) (*Response, error) {
	for _, cb := range c.AfterModel {
		customResponse, err := cb(ctx, req, rsp)
		if err != nil {
			return nil, err
		}
		if customResponse != nil {
			return customResponse, nil
		}
	}
	return nil, nil
}

// RunOnModelError runs all on model error callbacks in order.
// If any callback returns a custom response, the failure is recovered.
func (c *Callbacks) RunOnModelError(ctx context.Context, req *Request, modelErr error) (*Response, error) {
	for _, cb := range c.OnModelError {
		customResponse, err := cb(ctx, req, modelErr)
		if err != nil {
			return nil, err
		}
		if customResponse != nil {
			return customResponse, nil
		}
	}
	return nil, nil
}
