//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package react implements the planner that constrains the model to
// generate an explicit plan before any action, using structured tags for
// planning, reasoning, actions and the final answer.
package react

import (
	"context"
	"strings"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/planner"
)

// Tags used to structure the model response.
const (
	PlanningTag    = "/*PLANNING*/"
	ReplanningTag  = "/*REPLANNING*/"
	ReasoningTag   = "/*REASONING*/"
	ActionTag      = "/*ACTION*/"
	FinalAnswerTag = "/*FINAL_ANSWER*/"
)

var _ planner.Planner = (*Planner)(nil)

// Planner guides the model to plan first, interleave tool use with
// reasoning, and finish with a tagged final answer.
type Planner struct{}

// New creates a new react planner instance.
func New() *Planner {
	return &Planner{}
}

// BuildPlanningInstruction returns the planning instruction appended to
// the system prompt.
func (p *Planner) BuildPlanningInstruction(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
) string {
	return buildPlannerInstruction()
}

// ProcessPlanningResponse filters empty tool calls and strips internal
// planning sections so only the final answer reaches the user.
func (p *Planner) ProcessPlanningResponse(
	ctx context.Context,
	invocation *agent.Invocation,
	response *model.Response,
) *model.Response {
	if response == nil || len(response.Choices) == 0 {
		return nil
	}

	processedResponse := *response
	processedResponse.Choices = make([]model.Choice, len(response.Choices))

	for i, choice := range response.Choices {
		processedChoice := choice
		if len(choice.Message.ToolCalls) > 0 {
			var filtered []model.ToolCall
			for _, toolCall := range choice.Message.ToolCalls {
				if toolCall.Function.Name != "" {
					filtered = append(filtered, toolCall)
				}
			}
			processedChoice.Message.ToolCalls = filtered
		}
		if choice.Message.Content != "" {
			processedChoice.Message.Content = processTextContent(choice.Message.Content)
		}
		if choice.Delta.Content != "" {
			processedChoice.Delta.Content = processTextContent(choice.Delta.Content)
		}
		processedResponse.Choices[i] = processedChoice
	}
	return &processedResponse
}

func processTextContent(content string) string {
	if strings.Contains(content, FinalAnswerTag) {
		_, finalAnswer := splitByLastPattern(content, FinalAnswerTag)
		return finalAnswer
	}
	return content
}

// splitByLastPattern splits text by the last occurrence of a separator.
// The separator itself is not included in either returned part.
func splitByLastPattern(text, separator string) (string, string) {
	index := strings.LastIndex(text, separator)
	if index == -1 {
		return text, ""
	}
	return text[:index], text[index+len(separator):]
}

func buildPlannerInstruction() string {
	highLevelPreamble := strings.Join([]string{
		"When answering the question, try to leverage the available tools " +
			"to gather the information instead of your memorized knowledge.",
		"",
		"Follow this process when answering the question: (1) first come up " +
			"with a plan in natural language text format; (2) Then use tools to " +
			"execute the plan and provide reasoning between tool code snippets " +
			"to make a summary of current state and next step. Tool code " +
			"snippets and reasoning should be interleaved with each other. (3) " +
			"In the end, return one final answer.",
		"",
		"Follow this format when answering the question: (1) The planning " +
			"part should be under " + PlanningTag + ". (2) The tool code " +
			"snippets should be under " + ActionTag + ", and the reasoning " +
			"parts should be under " + ReasoningTag + ". (3) The final answer " +
			"part should be under " + FinalAnswerTag + ".",
	}, "\n")

	planningPreamble := strings.Join([]string{
		"Below are the requirements for the planning:",
		"The plan is made to answer the user query if following the plan. The plan " +
			"is coherent and covers all aspects of information from user query, and " +
			"only involves the tools that are accessible by the agent.",
		"The plan contains the decomposed steps as a numbered list where each step " +
			"should use one or multiple available tools.",
		"If the initial plan cannot be successfully executed, you should learn from " +
			"previous execution results and revise your plan. The revised plan should " +
			"be under " + ReplanningTag + ". Then use tools to follow the new plan.",
	}, "\n")

	reasoningPreamble := strings.Join([]string{
		"Below are the requirements for the reasoning:",
		"The reasoning makes a summary of the current trajectory based on the user " +
			"query and tool outputs.",
		"Based on the tool outputs and plan, the reasoning also comes up with " +
			"instructions to the next steps, making the trajectory closer to the " +
			"final answer.",
	}, "\n")

	finalAnswerPreamble := strings.Join([]string{
		"Below are the requirements for the final answer:",
		"The final answer should be precise and follow query formatting " +
			"requirements.",
		"Some queries may not be answerable with the available tools and " +
			"information. In those cases, inform the user why you cannot process " +
			"their query and ask for more information.",
	}, "\n")

	return strings.Join([]string{
		highLevelPreamble,
		planningPreamble,
		reasoningPreamble,
		finalAnswerPreamble,
	}, "\n\n")
}
