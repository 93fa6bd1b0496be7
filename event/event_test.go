//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/model"
)

func TestNew(t *testing.T) {
	e := New("inv-1", "assistant")

	assert.NotEmpty(t, e.ID)
	assert.NotZero(t, e.Timestamp)
	assert.Equal(t, "inv-1", e.InvocationID)
	assert.Equal(t, "assistant", e.Author)
	require.NotNil(t, e.Response)
}

func TestNewWithOptions(t *testing.T) {
	rsp := &model.Response{Object: model.ObjectTypeChatCompletionChunk}
	e := New("inv-1", "assistant",
		WithResponse(rsp),
		WithBranch("root.child"),
		WithStateDelta(map[string][]byte{"k": []byte(`"v"`)}),
	)

	assert.Same(t, rsp, e.Response)
	assert.Equal(t, "root.child", e.Branch)
	require.NotNil(t, e.Actions)
	assert.Equal(t, []byte(`"v"`), e.Actions.StateDelta["k"])
}

func TestNewErrorEvent(t *testing.T) {
	e := NewErrorEvent("inv-1", "assistant", model.ErrorTypeFlowError, "boom")

	assert.Equal(t, model.ObjectTypeError, e.Object)
	assert.True(t, e.Done)
	require.NotNil(t, e.Error)
	assert.Equal(t, model.ErrorTypeFlowError, e.Error.Type)
	assert.Equal(t, "boom", e.Error.Message)
}

func TestMatchesBranch(t *testing.T) {
	tests := []struct {
		name        string
		eventBranch string
		viewBranch  string
		want        bool
	}{
		{name: "empty event branch matches anything", eventBranch: "", viewBranch: "a.b", want: true},
		{name: "equal branches match", eventBranch: "a.b", viewBranch: "a.b", want: true},
		{name: "ancestor matches descendant", eventBranch: "a", viewBranch: "a.b.c", want: true},
		{name: "descendant does not match ancestor", eventBranch: "a.b", viewBranch: "a", want: false},
		{name: "sibling does not match", eventBranch: "a.b", viewBranch: "a.c", want: false},
		{name: "prefix without delimiter does not match", eventBranch: "a.b", viewBranch: "a.bc", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New("inv-1", "assistant", WithBranch(tt.eventBranch))
			assert.Equal(t, tt.want, e.MatchesBranch(tt.viewBranch))
		})
	}
}

func TestPopulateToolCallIDs(t *testing.T) {
	rsp := &model.Response{
		Choices: []model.Choice{{
			Message: model.Message{
				Role: model.RoleAssistant,
				ToolCalls: []model.ToolCall{
					{Function: model.FunctionDefinitionParam{Name: "a"}},
					{ID: "existing", Function: model.FunctionDefinitionParam{Name: "b"}},
				},
			},
		}},
	}

	PopulateToolCallIDs(rsp)

	calls := rsp.Choices[0].Message.ToolCalls
	assert.NotEmpty(t, calls[0].ID)
	assert.Equal(t, "existing", calls[1].ID)

	// A second pass leaves every id untouched.
	generated := calls[0].ID
	PopulateToolCallIDs(rsp)
	assert.Equal(t, generated, rsp.Choices[0].Message.ToolCalls[0].ID)
}

func TestPopulateToolCallIDsNilResponse(t *testing.T) {
	assert.NotPanics(t, func() { PopulateToolCallIDs(nil) })
}

func TestClone(t *testing.T) {
	e := New("inv-1", "assistant",
		WithObject(model.ObjectTypeToolResponse),
		WithStateDelta(map[string][]byte{"k": []byte("1")}),
	)
	e.LongRunningToolIDs = map[string]struct{}{"call-1": {}}

	clone := e.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, e.ID, clone.ID)
	assert.NotSame(t, e.Response, clone.Response)

	// Mutating the clone must not leak back into the original.
	clone.Actions.StateDelta["k"][0] = '2'
	clone.LongRunningToolIDs["call-2"] = struct{}{}
	assert.Equal(t, []byte("1"), e.Actions.StateDelta["k"])
	assert.NotContains(t, e.LongRunningToolIDs, "call-2")
}

func TestCloneNil(t *testing.T) {
	var e *Event
	assert.Nil(t, e.Clone())
}
