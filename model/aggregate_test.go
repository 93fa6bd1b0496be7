//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textChunk(content string) *Response {
	return &Response{
		IsPartial: true,
		Choices:   []Choice{{Delta: Message{Content: content}}},
	}
}

func thoughtChunk(content string) *Response {
	return &Response{
		IsPartial: true,
		Choices:   []Choice{{Delta: Message{ReasoningContent: content}}},
	}
}

func TestAggregatorTextFragments(t *testing.T) {
	agg := NewAggregator()
	for _, piece := range []string{"Hel", "lo, ", "wor", "ld", "!"} {
		agg.Feed(textChunk(piece))
	}

	rsp, parts := agg.Close()
	require.Len(t, rsp.Choices, 1)
	assert.Equal(t, "Hello, world!", rsp.Choices[0].Message.Content)
	assert.Equal(t, RoleAssistant, rsp.Choices[0].Message.Role)
	assert.True(t, rsp.Done)
	assert.False(t, rsp.IsPartial)
	require.Len(t, parts, 1)
	assert.Equal(t, PartTypeText, parts[0].Type)
}

func TestAggregatorLegacyCoalescesTextAndThought(t *testing.T) {
	agg := NewAggregator()
	agg.Feed(thoughtChunk("think "))
	agg.Feed(textChunk("say "))
	agg.Feed(thoughtChunk("more"))
	agg.Feed(textChunk("words"))

	rsp, parts := agg.Close()
	assert.Equal(t, "say words", rsp.Choices[0].Message.Content)
	assert.Equal(t, "think more", rsp.Choices[0].Message.ReasoningContent)
	// Legacy mode emits at most one thought part and one text part.
	require.Len(t, parts, 2)
	assert.Equal(t, PartTypeThought, parts[0].Type)
	assert.Equal(t, PartTypeText, parts[1].Type)
}

func TestAggregatorProgressivePreservesOrder(t *testing.T) {
	agg := NewAggregator(WithProgressive())
	agg.Feed(textChunk("intro "))
	agg.Feed(thoughtChunk("hmm"))
	agg.Feed(textChunk("outro"))

	_, parts := agg.Close()
	require.Len(t, parts, 3)
	assert.Equal(t, PartTypeText, parts[0].Type)
	assert.Equal(t, "intro ", parts[0].Text)
	assert.Equal(t, PartTypeThought, parts[1].Type)
	assert.Equal(t, "hmm", parts[1].Text)
	assert.Equal(t, PartTypeText, parts[2].Type)
	assert.Equal(t, "outro", parts[2].Text)
}

func TestAggregatorClassicToolCallArguments(t *testing.T) {
	idx := 0
	agg := NewAggregator()
	agg.Feed(&Response{IsPartial: true, Choices: []Choice{{Delta: Message{ToolCalls: []ToolCall{{
		Index:        &idx,
		ID:           "call-1",
		Function:     FunctionDefinitionParam{Name: "get_weather"},
		WillContinue: true,
	}}}}}})
	agg.Feed(&Response{IsPartial: true, Choices: []Choice{{Delta: Message{ToolCalls: []ToolCall{{
		Index:        &idx,
		ID:           "call-1",
		Function:     FunctionDefinitionParam{Arguments: []byte(`{"city":"Lon`)},
		WillContinue: true,
	}}}}}})
	agg.Feed(&Response{IsPartial: true, Choices: []Choice{{Delta: Message{ToolCalls: []ToolCall{{
		Index:    &idx,
		ID:       "call-1",
		Function: FunctionDefinitionParam{Arguments: []byte(`don"}`)},
	}}}}}})

	rsp, _ := agg.Close()
	calls := rsp.Choices[0].Message.ToolCalls
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Function.Name)
	assert.Equal(t, `{"city":"London"}`, string(calls[0].Function.Arguments))
}

func TestAggregatorFragmentAssembly(t *testing.T) {
	str := func(s string) *string { return &s }
	num := func(f float64) *float64 { return &f }

	agg := NewAggregator(WithProgressive())
	agg.Feed(&Response{IsPartial: true, Choices: []Choice{{Delta: Message{ToolCalls: []ToolCall{{
		ID:       "call-1",
		Function: FunctionDefinitionParam{Name: "search"},
		Fragments: []ArgumentFragment{
			{Path: "query", String: str("golang ")},
		},
		WillContinue: true,
	}}}}}})
	agg.Feed(&Response{IsPartial: true, Choices: []Choice{{Delta: Message{ToolCalls: []ToolCall{{
		ID: "call-1",
		Fragments: []ArgumentFragment{
			{Path: "query", String: str("streams")},
			{Path: "limit", Number: num(5)},
		},
		WillContinue: true,
	}}}}}})
	agg.Feed(&Response{IsPartial: true, Choices: []Choice{{Delta: Message{ToolCalls: []ToolCall{{
		ID: "call-1",
	}}}}}})

	rsp, parts := agg.Close()
	calls := rsp.Choices[0].Message.ToolCalls
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"query":"golang streams","limit":5}`, string(calls[0].Function.Arguments))
	assert.Empty(t, calls[0].Fragments)
	assert.False(t, calls[0].WillContinue)

	require.Len(t, parts, 1)
	assert.Equal(t, PartTypeFunctionCall, parts[0].Type)
}

func TestAggregatorFlushesIncompleteCallOnClose(t *testing.T) {
	agg := NewAggregator()
	agg.Feed(&Response{IsPartial: true, Choices: []Choice{{Delta: Message{ToolCalls: []ToolCall{{
		ID:           "call-1",
		Function:     FunctionDefinitionParam{Name: "ping", Arguments: []byte(`{}`)},
		WillContinue: true,
	}}}}}})

	rsp, _ := agg.Close()
	require.Len(t, rsp.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "ping", rsp.Choices[0].Message.ToolCalls[0].Function.Name)
}

func TestAggregatorCarriesMetadata(t *testing.T) {
	finish := "stop"
	agg := NewAggregator()
	agg.Feed(&Response{ID: "rsp-1", Model: "test-model", IsPartial: true,
		Choices: []Choice{{Delta: Message{Content: "hi"}}}})
	agg.Feed(&Response{ID: "rsp-1", IsPartial: true,
		Usage:   &Usage{TotalTokens: 7},
		Choices: []Choice{{FinishReason: &finish}}})

	rsp, _ := agg.Close()
	assert.Equal(t, "rsp-1", rsp.ID)
	assert.Equal(t, "test-model", rsp.Model)
	require.NotNil(t, rsp.Usage)
	assert.Equal(t, 7, rsp.Usage.TotalTokens)
	require.NotNil(t, rsp.Choices[0].FinishReason)
	assert.Equal(t, "stop", *rsp.Choices[0].FinishReason)
}
