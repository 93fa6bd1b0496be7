//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package model

import (
	"time"
)

// Error type constants for ResponseError.Type field.
const (
	ErrorTypeStreamError = "stream_error"
	ErrorTypeAPIError    = "api_error"
	ErrorTypeFlowError   = "flow_error"
)

// ErrorCodeUnknown is used when a model failure carries no structured code.
const ErrorCodeUnknown = "UNKNOWN"

// Object type constants for Response.Object field.
const (
	ObjectTypeError = "error"
	// ObjectTypeToolResponse is the object type for tool response events.
	ObjectTypeToolResponse = "tool.response"
	// ObjectTypeAuthRequest is the object type for auth request events.
	ObjectTypeAuthRequest = "auth.request"
	// ObjectTypeConfirmationRequest is the object type for tool confirmation request events.
	ObjectTypeConfirmationRequest = "confirmation.request"
	// ObjectTypePreprocessingBasic is the object type for basic preprocessing events.
	ObjectTypePreprocessingBasic = "preprocessing.basic"
	// ObjectTypePreprocessingIdentity is the object type for identity preprocessing events.
	ObjectTypePreprocessingIdentity = "preprocessing.identity"
	// ObjectTypePreprocessingInstruction is the object type for instruction preprocessing events.
	ObjectTypePreprocessingInstruction = "preprocessing.instruction"
	// ObjectTypePreprocessingPlanning is the object type for planning preprocessing events.
	ObjectTypePreprocessingPlanning = "preprocessing.planning"
	// ObjectTypePreprocessingContent is the object type for content preprocessing events.
	ObjectTypePreprocessingContent = "preprocessing.content"
	// ObjectTypePostprocessingPlanning is the object type for planning postprocessing events.
	ObjectTypePostprocessingPlanning = "postprocessing.planning"
	// ObjectTypeCodeExecution is the object type for code execution trace events.
	ObjectTypeCodeExecution = "preprocessing.code_execution"
	// ObjectTypeCodeExecutionResult is the object type for code execution result events.
	ObjectTypeCodeExecutionResult = "preprocessing.code_execution_result"
	// ObjectTypeStateUpdate is the object type for state delta update events.
	ObjectTypeStateUpdate = "state.update"
	// ObjectTypeTransfer is the object type for agent transfer events.
	ObjectTypeTransfer = "agent.transfer"
	// ObjectTypeRunnerCompletion is the object type for runner completion events.
	ObjectTypeRunnerCompletion = "runner.completion"
	// ObjectTypeChatCompletionChunk is the object type for chat completion chunk events.
	ObjectTypeChatCompletionChunk = "chat.completion.chunk"
	// ObjectTypeChatCompletion is the object type for chat completion events.
	ObjectTypeChatCompletion = "chat.completion"
)

// Choice represents a single completion choice.
type Choice struct {
	// Index is the index of the choice.
	Index int `json:"index"`

	// Message is the complete message content.
	Message Message `json:"message,omitempty"`

	// Delta is the incremental message content for streaming responses.
	Delta Message `json:"delta,omitempty"`

	// FinishReason is the reason the choice was finished.
	// "stop", "length", "content_filter", etc.
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Usage represents token usage information.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens in the response.
	TotalTokens int `json:"total_tokens"`
}

// Response is the response from the model.
//
// The Error field represents API-level errors that occur after successful
// communication with the model service. This is different from function-level
// errors returned by GenerateContent, which indicate failures that prevent
// communication entirely.
type Response struct {
	// ID is the unique identifier for this response.
	ID string `json:"id"`

	// Object describes the type of object returned (e.g. "chat.completion").
	Object string `json:"object"`

	// Created is the Unix timestamp when the response was created.
	Created int64 `json:"created"`

	// Model is the model used to generate the response.
	Model string `json:"model"`

	// Choices contains the completion choices.
	Choices []Choice `json:"choices"`

	// Usage contains token usage information (may be nil for streaming responses).
	Usage *Usage `json:"usage,omitempty"`

	// Error contains API-level error information if the request failed.
	Error *ResponseError `json:"error,omitempty"`

	// Timestamp when this response chunk was received (for streaming).
	Timestamp time.Time `json:"timestamp"`

	// Done indicates if the flow should stop.
	Done bool `json:"done"`

	// IsPartial indicates if this is a partial response.
	IsPartial bool `json:"is_partial"`

	// TurnComplete signals end of a model turn on a live connection.
	TurnComplete bool `json:"turn_complete,omitempty"`

	// Interrupted signals that the model turn was interrupted by new input
	// on a live connection.
	Interrupted bool `json:"interrupted,omitempty"`

	// SessionResumptionHandle is an opaque handle for reconnecting a live
	// session, refreshed as chunks arrive.
	SessionResumptionHandle string `json:"session_resumption_handle,omitempty"`
}

// Clone creates a deep copy of the response.
func (rsp *Response) Clone() *Response {
	if rsp == nil {
		return nil
	}
	clone := *rsp
	clone.Choices = make([]Choice, len(rsp.Choices))
	copy(clone.Choices, rsp.Choices)
	if rsp.Usage != nil {
		u := *rsp.Usage
		clone.Usage = &u
	}
	if rsp.Error != nil {
		e := *rsp.Error
		clone.Error = &e
	}
	return &clone
}

// IsValidContent checks if the response has valid content for message generation.
func (rsp *Response) IsValidContent() bool {
	if rsp == nil {
		return false
	}
	if rsp.IsToolCallResponse() || rsp.IsToolResultResponse() {
		return true
	}
	for _, choice := range rsp.Choices {
		if choice.Message.Content != "" || choice.Delta.Content != "" {
			return true
		}
	}
	return false
}

// IsToolResultResponse checks if the response is a tool call result response.
func (rsp *Response) IsToolResultResponse() bool {
	return rsp != nil && len(rsp.Choices) > 0 && rsp.Choices[0].Message.ToolID != ""
}

// IsToolCallResponse checks if the response is related to tool calls.
func (rsp *Response) IsToolCallResponse() bool {
	return rsp != nil && len(rsp.Choices) > 0 && len(rsp.Choices[0].Message.ToolCalls) > 0
}

// ToolCalls returns the tool calls of the first choice, if any.
func (rsp *Response) ToolCalls() []ToolCall {
	if rsp == nil || len(rsp.Choices) == 0 {
		return nil
	}
	return rsp.Choices[0].Message.ToolCalls
}

// GetToolResultIDs gets the IDs of tool results from the response.
func (rsp *Response) GetToolResultIDs() []string {
	ids := make([]string, 0)
	if rsp == nil || len(rsp.Choices) == 0 {
		return ids
	}
	for _, choice := range rsp.Choices {
		if choice.Message.ToolID != "" {
			ids = append(ids, choice.Message.ToolID)
		}
	}
	return ids
}

// IsFinalResponse checks if the Response is a final response.
func (rsp *Response) IsFinalResponse() bool {
	if rsp == nil {
		return true
	}
	if rsp.IsPartial || rsp.IsToolCallResponse() {
		return false
	}
	return rsp.Done && (len(rsp.Choices) > 0 || rsp.Error != nil)
}

// ResponseError represents an error response from the API.
type ResponseError struct {
	// Message is the error message.
	Message string `json:"message"`

	// Type is the type of error.
	Type string `json:"type"`

	// Code is the error code.
	Code *string `json:"code,omitempty"`
}
