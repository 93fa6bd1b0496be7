//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package event provides the event system for agent communication.
package event

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentflow-go/agentflow/model"
)

// BranchDelimiter separates agent names in hierarchical branch paths.
const BranchDelimiter = "."

// Event represents one step of a conversation between agents and users.
// Once an event has been yielded to a caller it must be treated as owned by
// that caller; the flow only stamps ID and Timestamp before the first yield.
type Event struct {
	// Response is the base struct for all LLM response functionality.
	*model.Response

	// InvocationID is the invocation ID of the event.
	InvocationID string `json:"invocationId"`

	// Author is the author of the event: an agent name or "user".
	Author string `json:"author"`

	// ID is the unique identifier of the event.
	ID string `json:"id"`

	// Timestamp is the timestamp of the event.
	Timestamp time.Time `json:"timestamp"`

	// Branch is the branch identifier for hierarchical event filtering.
	Branch string `json:"branch,omitempty"`

	// RequiresCompletion indicates if this event needs completion signaling
	// before the flow proceeds to the next model call.
	RequiresCompletion bool `json:"requiresCompletion,omitempty"`

	// CompletionID is used for completion signaling of this event.
	CompletionID string `json:"completionId,omitempty"`

	// LongRunningToolIDs is the set of ids of long running function calls.
	// Clients learn from this field which function call is long running.
	// Only valid for function call events.
	LongRunningToolIDs map[string]struct{} `json:"longRunningToolIDs,omitempty"`

	// Actions carry the side effects requested by this event.
	Actions *EventActions `json:"actions,omitempty"`
}

// New creates a new Event with generated ID and timestamp.
func New(invocationID, author string, opts ...Option) *Event {
	e := &Event{
		Response:     &model.Response{},
		ID:           uuid.New().String(),
		Timestamp:    time.Now(),
		InvocationID: invocationID,
		Author:       author,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewErrorEvent creates a new error Event with the specified error details.
func NewErrorEvent(invocationID, author, errorType, errorMessage string) *Event {
	return &Event{
		Response: &model.Response{
			Object: model.ObjectTypeError,
			Done:   true,
			Error: &model.ResponseError{
				Type:    errorType,
				Message: errorMessage,
			},
		},
		ID:           uuid.New().String(),
		Timestamp:    time.Now(),
		InvocationID: invocationID,
		Author:       author,
	}
}

// NewResponseEvent creates a new Event from a model Response.
func NewResponseEvent(invocationID, author string, response *model.Response) *Event {
	return &Event{
		Response:     response,
		ID:           uuid.New().String(),
		Timestamp:    time.Now(),
		InvocationID: invocationID,
		Author:       author,
	}
}

// Clone creates a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Response = e.Response.Clone()
	if e.LongRunningToolIDs != nil {
		clone.LongRunningToolIDs = make(map[string]struct{}, len(e.LongRunningToolIDs))
		for k := range e.LongRunningToolIDs {
			clone.LongRunningToolIDs[k] = struct{}{}
		}
	}
	clone.Actions = e.Actions.Clone()
	return &clone
}

// MatchesBranch reports whether the event is visible from the given branch.
// An event matches when its branch is empty or is a prefix path of branch.
func (e *Event) MatchesBranch(branch string) bool {
	if e.Branch == "" || e.Branch == branch {
		return true
	}
	return strings.HasPrefix(branch, e.Branch+BranchDelimiter)
}

// PopulateToolCallIDs assigns a fresh client-side id to every tool call in
// the response that lacks one. Calling it again is a no-op: every call
// already has an id.
func PopulateToolCallIDs(rsp *model.Response) {
	if rsp == nil {
		return
	}
	for ci := range rsp.Choices {
		calls := rsp.Choices[ci].Message.ToolCalls
		for ti := range calls {
			if calls[ti].ID == "" {
				calls[ti].ID = uuid.New().String()
			}
		}
	}
}
