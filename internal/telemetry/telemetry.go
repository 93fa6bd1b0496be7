//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package telemetry provides trace instrumentation for model calls and tool
// executions.
package telemetry

import (
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/tool"
)

const (
	// InstrumentName identifies this library to the tracer provider.
	InstrumentName = "agentflow"

	// SpanNameCallModel is the span name for a model call.
	SpanNameCallModel = "call_model"
	// SpanNamePrefixExecuteTool prefixes spans for tool executions.
	SpanNamePrefixExecuteTool = "execute_tool"
)

// Attribute keys.
const (
	KeyEventID      = "agentflow.event_id"
	KeySessionID    = "agentflow.session_id"
	KeyInvocationID = "agentflow.invocation_id"
	KeyModelRequest = "agentflow.model_request"
)

// Tracer is the tracer used by the flow and tool engine. It resolves
// through the global provider so applications control the exporter.
var Tracer = otel.Tracer(InstrumentName)

// TraceToolCall records a single tool execution on the span.
func TraceToolCall(span trace.Span, declaration *tool.Declaration, args []byte, rspEvent *event.Event) {
	span.SetAttributes(
		attribute.String("gen_ai.operation.name", "tool.execute"),
		attribute.String("gen_ai.tool.name", declaration.Name),
		attribute.String("gen_ai.tool.description", declaration.Description),
		attribute.String("agentflow.tool_call_args", string(args)),
	)
	if rspEvent == nil {
		return
	}
	span.SetAttributes(attribute.String(KeyEventID, rspEvent.ID))
	if bts, err := json.Marshal(rspEvent.Response); err == nil {
		span.SetAttributes(attribute.String("agentflow.tool_response", string(bts)))
	}
}

// TraceMergedToolCalls records a merged parallel tool result on the span.
func TraceMergedToolCalls(span trace.Span, rspEvent *event.Event) {
	span.SetAttributes(
		attribute.String("gen_ai.operation.name", "tool.execute"),
		attribute.String("gen_ai.tool.name", "(merged tools)"),
		attribute.String(KeyEventID, rspEvent.ID),
	)
	if bts, err := json.Marshal(rspEvent.Response); err == nil {
		span.SetAttributes(attribute.String("agentflow.tool_response", string(bts)))
	}
}

// TraceModelCall records a model call on the span.
func TraceModelCall(span trace.Span, invocationID, sessionID, modelName string, req *model.Request) {
	span.SetAttributes(
		attribute.String("gen_ai.operation.name", "chat"),
		attribute.String("gen_ai.request.model", modelName),
		attribute.String(KeyInvocationID, invocationID),
		attribute.String(KeySessionID, sessionID),
	)
	if bts, err := json.Marshal(req); err == nil {
		span.SetAttributes(attribute.String(KeyModelRequest, string(bts)))
	}
}
