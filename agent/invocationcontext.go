//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package agent

import (
	"context"
	"fmt"

	"github.com/agentflow-go/agentflow/event"
)

type invocationKey struct{}

// NewInvocationContext returns a context carrying the invocation.
func NewInvocationContext(ctx context.Context, invocation *Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, invocation)
}

// InvocationFromContext returns the invocation from the context.
func InvocationFromContext(ctx context.Context) (*Invocation, bool) {
	invocation, ok := ctx.Value(invocationKey{}).(*Invocation)
	return invocation, ok
}

// CheckContextCancelled returns a wrapped error when ctx is done.
func CheckContextCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", ErrorTypeAgentContextCancelledError, ctx.Err())
	default:
		return nil
	}
}

// EmitEvent sends evt on eventChan, stamping the invocation's branch when
// the event carries none. Returns the context error when ctx is cancelled
// before the send completes. A nil evt is ignored.
func EmitEvent(ctx context.Context, invocation *Invocation, eventChan chan<- *event.Event, evt *event.Event) error {
	if evt == nil {
		return nil
	}
	if evt.Branch == "" && invocation != nil {
		evt.Branch = invocation.Branch
	}
	select {
	case eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
