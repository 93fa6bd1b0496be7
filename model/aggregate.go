//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/agentflow-go/agentflow/log"
)

// PartType identifies the kind of an aggregated response part.
type PartType string

// Part type constants.
const (
	PartTypeText         PartType = "text"
	PartTypeThought      PartType = "thought"
	PartTypeFunctionCall PartType = "function_call"
)

// Part is one ordered piece of an aggregated model response.
type Part struct {
	// Type is the kind of the part.
	Type PartType `json:"type"`
	// Text is the part content for text and thought parts.
	Text string `json:"text,omitempty"`
	// ToolCall is the fully assembled call for function-call parts.
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

// Aggregator reassembles a stream of partial responses into complete parts.
//
// In the default (legacy) mode consecutive thought and regular text fragments
// are coalesced into at most two merged text blocks at stream end. In
// progressive mode the original relative ordering of interleaved text,
// thought and function-call parts is preserved, and a function call split
// across incremental JSON-path argument fragments is reconstructed into a
// single complete call.
type Aggregator struct {
	progressive bool

	textBuf    strings.Builder
	thoughtBuf strings.Builder
	// lastText tracks which buffer received the most recent fragment so a
	// type switch flushes the finished run in progressive mode.
	lastText PartType

	parts   []Part
	pending map[string]*pendingCall
	// pendingOrder preserves the arrival order of in-progress calls.
	pendingOrder []string

	id           string
	model        string
	finishReason *string
	usage        *Usage
}

type pendingCall struct {
	call ToolCall
	args []byte
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithProgressive enables progressive (order-preserving) aggregation.
func WithProgressive() AggregatorOption {
	return func(a *Aggregator) {
		a.progressive = true
	}
}

// NewAggregator creates a new stream aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{pending: make(map[string]*pendingCall)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Feed consumes one (possibly partial) response chunk.
func (a *Aggregator) Feed(rsp *Response) {
	if rsp == nil {
		return
	}
	if a.id == "" {
		a.id = rsp.ID
	}
	if a.model == "" {
		a.model = rsp.Model
	}
	if rsp.Usage != nil {
		a.usage = rsp.Usage
	}
	for _, choice := range rsp.Choices {
		if choice.FinishReason != nil {
			a.finishReason = choice.FinishReason
		}
		a.feedDelta(choice.Delta)
	}
}

func (a *Aggregator) feedDelta(delta Message) {
	if delta.ReasoningContent != "" {
		a.feedText(PartTypeThought, delta.ReasoningContent)
	}
	if delta.Content != "" {
		a.feedText(PartTypeText, delta.Content)
	}
	for _, tc := range delta.ToolCalls {
		a.feedToolCall(tc)
	}
}

func (a *Aggregator) feedText(kind PartType, text string) {
	if a.progressive && a.lastText != "" && a.lastText != kind {
		a.flushText()
	}
	a.lastText = kind
	if kind == PartTypeThought {
		a.thoughtBuf.WriteString(text)
		return
	}
	a.textBuf.WriteString(text)
}

// flushText moves buffered text runs into the ordered parts slice.
func (a *Aggregator) flushText() {
	if a.thoughtBuf.Len() > 0 {
		a.parts = append(a.parts, Part{Type: PartTypeThought, Text: a.thoughtBuf.String()})
		a.thoughtBuf.Reset()
	}
	if a.textBuf.Len() > 0 {
		a.parts = append(a.parts, Part{Type: PartTypeText, Text: a.textBuf.String()})
		a.textBuf.Reset()
	}
	a.lastText = ""
}

func (a *Aggregator) feedToolCall(tc ToolCall) {
	key := tc.ID
	if key == "" && tc.Index != nil {
		key = "#" + strconv.Itoa(*tc.Index)
	}
	pc, ok := a.pending[key]
	if !ok {
		pc = &pendingCall{call: tc, args: tc.Function.Arguments}
		if pc.args == nil {
			pc.args = []byte(`{}`)
		}
		a.pending[key] = pc
		a.pendingOrder = append(a.pendingOrder, key)
	} else if len(tc.Function.Arguments) > 0 {
		// Classic streaming: raw argument text accumulates by concatenation.
		pc.args = append(pc.args, tc.Function.Arguments...)
	}
	if tc.Function.Name != "" {
		pc.call.Function.Name = tc.Function.Name
	}
	for _, frag := range tc.Fragments {
		pc.args = applyFragment(pc.args, frag)
	}
	if !tc.WillContinue {
		a.completeCall(key)
	}
}

// applyFragment applies one JSON-path fragment to the accumulated arguments.
// String fragments append to the existing value at the path; other scalars
// replace it.
func applyFragment(args []byte, frag ArgumentFragment) []byte {
	var (
		out []byte
		err error
	)
	switch {
	case frag.String != nil:
		existing := gjson.GetBytes(args, frag.Path)
		value := *frag.String
		if existing.Type == gjson.String {
			value = existing.String() + value
		}
		out, err = sjson.SetBytes(args, frag.Path, value)
	case frag.Number != nil:
		out, err = sjson.SetBytes(args, frag.Path, *frag.Number)
	case frag.Bool != nil:
		out, err = sjson.SetBytes(args, frag.Path, *frag.Bool)
	case frag.Null:
		out, err = sjson.SetRawBytes(args, frag.Path, []byte("null"))
	default:
		return args
	}
	if err != nil {
		log.Warnf("Aggregator: failed to apply argument fragment at path %q: %v", frag.Path, err)
		return args
	}
	return out
}

func (a *Aggregator) completeCall(key string) {
	pc, ok := a.pending[key]
	if !ok {
		return
	}
	delete(a.pending, key)
	for i, k := range a.pendingOrder {
		if k == key {
			a.pendingOrder = append(a.pendingOrder[:i], a.pendingOrder[i+1:]...)
			break
		}
	}
	pc.call.Function.Arguments = pc.args
	pc.call.Fragments = nil
	pc.call.WillContinue = false
	if a.progressive {
		a.flushText()
		call := pc.call
		a.parts = append(a.parts, Part{Type: PartTypeFunctionCall, ToolCall: &call})
		return
	}
	call := pc.call
	a.parts = append(a.parts, Part{Type: PartTypeFunctionCall, ToolCall: &call})
}

// Close flushes any buffered text and in-progress calls and returns the
// final non-partial aggregate response together with the ordered parts.
func (a *Aggregator) Close() (*Response, []Part) {
	// Flush in-progress calls in arrival order.
	for _, key := range append([]string(nil), a.pendingOrder...) {
		a.completeCall(key)
	}
	a.flushText()

	var (
		content  strings.Builder
		thought  strings.Builder
		tcs      []ToolCall
	)
	for _, part := range a.parts {
		switch part.Type {
		case PartTypeText:
			content.WriteString(part.Text)
		case PartTypeThought:
			thought.WriteString(part.Text)
		case PartTypeFunctionCall:
			tcs = append(tcs, *part.ToolCall)
		}
	}

	rsp := &Response{
		ID:      a.id,
		Object:  ObjectTypeChatCompletion,
		Created: time.Now().Unix(),
		Model:   a.model,
		Choices: []Choice{{
			Index: 0,
			Message: Message{
				Role:             RoleAssistant,
				Content:          content.String(),
				ReasoningContent: thought.String(),
				ToolCalls:        tcs,
			},
			FinishReason: a.finishReason,
		}},
		Usage:     a.usage,
		Timestamp: time.Now(),
		Done:      true,
		IsPartial: false,
	}
	return rsp, a.parts
}
