//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package event

import (
	"github.com/agentflow-go/agentflow/model"
)

// Option is a function that can be used to configure the Event.
type Option func(*Event)

// WithBranch sets the branch for the event.
func WithBranch(branch string) Option {
	return func(e *Event) {
		e.Branch = branch
	}
}

// WithResponse sets the response for the event.
func WithResponse(response *model.Response) Option {
	return func(e *Event) {
		e.Response = response
	}
}

// WithObject sets the object for the event.
func WithObject(o string) Option {
	return func(e *Event) {
		e.Object = o
	}
}

// WithActions sets the actions for the event.
func WithActions(actions *EventActions) Option {
	return func(e *Event) {
		e.Actions = actions
	}
}

// WithStateDelta sets a state delta on the event's actions.
func WithStateDelta(stateDelta map[string][]byte) Option {
	return func(e *Event) {
		if e.Actions == nil {
			e.Actions = NewEventActions()
		}
		e.Actions.StateDelta = stateDelta
	}
}

// WithSkipSummarization sets the SkipSummarization action on the event.
func WithSkipSummarization() Option {
	return func(e *Event) {
		if e.Actions == nil {
			e.Actions = NewEventActions()
		}
		e.Actions.SkipSummarization = true
	}
}
