//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package processor provides request and response processing functionality.
package processor

import (
	"context"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/log"
	"github.com/agentflow-go/agentflow/model"
)

// BasicRequestProcessor applies the generation configuration to the request.
type BasicRequestProcessor struct {
	// GenerationConfig contains the default generation configuration.
	GenerationConfig model.GenerationConfig
}

// BasicOption is a functional option for configuring the BasicRequestProcessor.
type BasicOption func(*BasicRequestProcessor)

// WithGenerationConfig sets the default generation configuration.
func WithGenerationConfig(config model.GenerationConfig) BasicOption {
	return func(p *BasicRequestProcessor) {
		p.GenerationConfig = config
	}
}

// NewBasicRequestProcessor creates a new basic request processor with default settings.
func NewBasicRequestProcessor(opts ...BasicOption) *BasicRequestProcessor {
	processor := &BasicRequestProcessor{
		GenerationConfig: model.GenerationConfig{
			Stream: true,
		},
	}
	for _, opt := range opts {
		opt(processor)
	}
	return processor
}

// ProcessRequest implements the flow.RequestProcessor interface.
func (p *BasicRequestProcessor) ProcessRequest(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	ch chan<- *event.Event,
) {
	if req == nil {
		log.Errorf("Basic request processor: request is nil")
		return
	}
	if invocation == nil {
		return
	}

	req.GenerationConfig = p.GenerationConfig

	if err := agent.EmitEvent(ctx, invocation, ch, event.New(
		invocation.InvocationID,
		invocation.AgentName,
		event.WithObject(model.ObjectTypePreprocessingBasic),
	)); err != nil {
		log.Debugf("Basic request processor: context cancelled")
	}
}
