//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package model

import "github.com/agentflow-go/agentflow/tool"

// Role represents the role of a message author.
type Role string

// Role constants for message authors.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// File is a named data file attached to a message, typically tabular data
// that a code executor can explore.
type File struct {
	// Name is the filename of the attachment.
	Name string `json:"name"`
	// MimeType is the IANA MIME type of the data.
	MimeType string `json:"mime_type,omitempty"`
	// Data is the raw file content.
	Data []byte `json:"data,omitempty"`
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the role of the message author.
	Role Role `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// ReasoningContent carries model "thought" text, kept separate from
	// user-visible content.
	ReasoningContent string `json:"reasoning_content,omitempty"`
	// ToolID correlates a tool response with its originating tool call.
	ToolID string `json:"tool_id,omitempty"`
	// ToolName is the name of the tool that produced a tool response.
	ToolName string `json:"tool_name,omitempty"`
	// ToolCalls are the tool calls requested by the model.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// Files are data files attached to the message.
	Files []File `json:"files,omitempty"`
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// GenerationConfig contains configuration for text generation.
type GenerationConfig struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0).
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0).
	TopP *float64 `json:"top_p,omitempty"`

	// Stream indicates whether to stream the response.
	Stream bool `json:"stream"`

	// Stop sequences where the API will stop generating further tokens.
	Stop []string `json:"stop,omitempty"`

	// PresencePenalty penalizes new tokens based on their existing frequency.
	PresencePenalty *float64 `json:"presence_penalty,omitempty"`

	// FrequencyPenalty penalizes new tokens based on their frequency in the text so far.
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`

	// ReasoningEffort limits the reasoning effort for reasoning models.
	// Supported values: "low", "medium", "high".
	ReasoningEffort *string `json:"reasoning_effort,omitempty"`

	// ThinkingEnabled enables native thinking mode for models that support it.
	ThinkingEnabled *bool `json:"thinking_enabled,omitempty"`

	// ThinkingTokens controls the thinking budget for models that support it.
	ThinkingTokens *int `json:"thinking_tokens,omitempty"`
}

// LiveConnectConfig configures a live bidirectional session.
type LiveConnectConfig struct {
	// ResponseModalities selects the output modalities, e.g. "TEXT", "AUDIO".
	ResponseModalities []string `json:"response_modalities,omitempty"`
	// OutputAudioTranscription requests transcripts of audio output.
	OutputAudioTranscription bool `json:"output_audio_transcription,omitempty"`
	// SessionResumptionHandle resumes an earlier live session if set.
	SessionResumptionHandle string `json:"session_resumption_handle,omitempty"`
}

// Request is the request to the model.
type Request struct {
	// Model is the target model identifier.
	Model string `json:"model,omitempty"`

	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	// GenerationConfig contains the generation parameters.
	GenerationConfig `json:",inline"`

	// LiveConnectConfig configures live sessions; ignored for plain generation.
	LiveConnectConfig LiveConnectConfig `json:"live_connect_config,omitempty"`

	// Tools are not serialized, handled separately.
	Tools map[string]tool.Tool `json:"-"`
}

// ArgumentFragment is one incremental piece of a streamed tool call's
// arguments, addressed by a JSON path. String values are appended to the
// value at the path; other scalars replace it.
type ArgumentFragment struct {
	// Path is the JSON path of the value, e.g. "location.city".
	Path string `json:"path"`
	// String is the string piece to append, if the fragment is a string.
	String *string `json:"string,omitempty"`
	// Number replaces the value at the path, if set.
	Number *float64 `json:"number,omitempty"`
	// Bool replaces the value at the path, if set.
	Bool *bool `json:"bool,omitempty"`
	// Null replaces the value at the path with JSON null.
	Null bool `json:"null,omitempty"`
}

// ToolCall represents a call to a tool (function) in the model response.
type ToolCall struct {
	// Type of the tool. Currently, only `function` is supported.
	Type string `json:"type"`
	// Function holds the called function's name and arguments.
	Function FunctionDefinitionParam `json:"function,omitempty"`
	// ID correlates the call with its eventual response. May be empty in
	// model output; the flow synthesizes one before the call is observable.
	ID string `json:"id,omitempty"`
	// Index is the index of the tool call in the message for streaming responses.
	Index *int `json:"index,omitempty"`
	// Fragments are incremental argument pieces for streamed calls.
	Fragments []ArgumentFragment `json:"fragments,omitempty"`
	// WillContinue reports that more argument fragments follow. The call is
	// complete once a chunk arrives with this flag absent or false.
	WillContinue bool `json:"will_continue,omitempty"`
}

// FunctionDefinitionParam describes the function named by a tool call.
type FunctionDefinitionParam struct {
	// Name is the name of the function to be called.
	Name string `json:"name"`
	// Description of what the function does.
	Description string `json:"description,omitempty"`
	// Arguments to pass to the function, json-encoded.
	Arguments []byte `json:"arguments,omitempty"`
}
