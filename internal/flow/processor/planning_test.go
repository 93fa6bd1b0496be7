//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/planner/react"
)

func TestPlanningRequestProcessorPrependsInstruction(t *testing.T) {
	p := NewPlanningRequestProcessor(react.New())
	req := &model.Request{Messages: []model.Message{model.NewUserMessage("question")}}
	ch := make(chan *event.Event, 4)

	p.ProcessRequest(context.Background(), newTestInvocation(), req, ch)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, model.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, react.PlanningTag)
	assert.Contains(t, req.Messages[0].Content, react.FinalAnswerTag)

	// Running again must not stack a second copy.
	p.ProcessRequest(context.Background(), newTestInvocation(), req, ch)
	assert.Len(t, req.Messages, 2)
}

func TestPlanningRequestProcessorNilPlanner(t *testing.T) {
	p := NewPlanningRequestProcessor(nil)
	req := &model.Request{}
	ch := make(chan *event.Event, 4)

	p.ProcessRequest(context.Background(), newTestInvocation(), req, ch)
	assert.Empty(t, req.Messages)
	assert.Empty(t, drainEvents(ch))
}

func TestPlanningResponseProcessorStripsInternalSections(t *testing.T) {
	p := NewPlanningResponseProcessor(react.New())
	rsp := &model.Response{
		Done: true,
		Choices: []model.Choice{{
			Message: model.NewAssistantMessage(
				react.PlanningTag + " step 1, step 2 " +
					react.ReasoningTag + " looks done " +
					react.FinalAnswerTag + "42"),
		}},
	}
	ch := make(chan *event.Event, 4)

	p.ProcessResponse(context.Background(), newTestInvocation(), &model.Request{}, rsp, ch)

	assert.Equal(t, "42", rsp.Choices[0].Message.Content)
}

func TestPlanningResponseProcessorFiltersEmptyToolCalls(t *testing.T) {
	p := NewPlanningResponseProcessor(react.New())
	rsp := &model.Response{
		Choices: []model.Choice{{
			Message: model.Message{
				Role: model.RoleAssistant,
				ToolCalls: []model.ToolCall{
					{ID: "call-1", Function: model.FunctionDefinitionParam{Name: ""}},
					{ID: "call-2", Function: model.FunctionDefinitionParam{Name: "real_tool"}},
				},
			},
		}},
	}
	ch := make(chan *event.Event, 4)

	p.ProcessResponse(context.Background(), newTestInvocation(), &model.Request{}, rsp, ch)

	require.Len(t, rsp.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "call-2", rsp.Choices[0].Message.ToolCalls[0].ID)
}

func TestPlanningResponseProcessorContentWithoutFinalAnswerUntouched(t *testing.T) {
	p := NewPlanningResponseProcessor(react.New())
	rsp := &model.Response{
		Choices: []model.Choice{{
			Message: model.NewAssistantMessage("still working on it"),
		}},
	}
	ch := make(chan *event.Event, 4)

	p.ProcessResponse(context.Background(), newTestInvocation(), &model.Request{}, rsp, ch)
	assert.Equal(t, "still working on it", rsp.Choices[0].Message.Content)
}
