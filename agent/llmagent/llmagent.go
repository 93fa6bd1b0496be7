//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package llmagent provides a model-backed agent implementation.
package llmagent

import (
	"context"
	"fmt"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/codeexecutor"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/internal/flow"
	"github.com/agentflow-go/agentflow/internal/flow/llmflow"
	"github.com/agentflow-go/agentflow/internal/flow/processor"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/planner"
	"github.com/agentflow-go/agentflow/tool"
)

const defaultChannelBufferSize = 256

// Option is a function that configures an LLMAgent.
type Option func(*Options)

// WithModel sets the model to use.
func WithModel(m model.Model) Option {
	return func(opts *Options) {
		opts.Model = m
	}
}

// WithDescription sets the description of the agent.
func WithDescription(description string) Option {
	return func(opts *Options) {
		opts.Description = description
	}
}

// WithInstruction sets the instruction of the agent.
func WithInstruction(instruction string) Option {
	return func(opts *Options) {
		opts.Instruction = instruction
	}
}

// WithGlobalInstruction sets the instruction shared by every agent in the
// tree. State placeholders are substituted before sending.
func WithGlobalInstruction(instruction string) Option {
	return func(opts *Options) {
		opts.GlobalInstruction = instruction
	}
}

// WithStaticInstruction sets the instruction sent verbatim, with no
// placeholder substitution, so providers can cache it.
func WithStaticInstruction(instruction string) Option {
	return func(opts *Options) {
		opts.StaticInstruction = instruction
	}
}

// WithGenerationConfig sets the generation configuration.
func WithGenerationConfig(config model.GenerationConfig) Option {
	return func(opts *Options) {
		opts.GenerationConfig = config
	}
}

// WithChannelBufferSize sets the buffer size for event channels.
func WithChannelBufferSize(size int) Option {
	return func(opts *Options) {
		opts.ChannelBufferSize = size
	}
}

// WithCodeExecutor sets the executor for model-generated code blocks.
func WithCodeExecutor(ce codeexecutor.CodeExecutor) Option {
	return func(opts *Options) {
		opts.codeExecutor = ce
	}
}

// WithOptimizeDataFiles extracts inline data files from user content and
// explores them with the code executor before the model sees them.
func WithOptimizeDataFiles(optimize bool) Option {
	return func(opts *Options) {
		opts.OptimizeDataFiles = optimize
	}
}

// WithTools sets the list of tools available to the agent.
func WithTools(tools []tool.Tool) Option {
	return func(opts *Options) {
		opts.Tools = tools
	}
}

// WithPlanner sets the planner to use for planning instructions.
func WithPlanner(p planner.Planner) Option {
	return func(opts *Options) {
		opts.Planner = p
	}
}

// WithSubAgents sets the list of sub-agents available to the agent.
func WithSubAgents(subAgents []agent.Agent) Option {
	return func(opts *Options) {
		opts.SubAgents = subAgents
	}
}

// WithAgentCallbacks sets the agent callbacks.
func WithAgentCallbacks(callbacks *agent.Callbacks) Option {
	return func(opts *Options) {
		opts.AgentCallbacks = callbacks
	}
}

// WithModelCallbacks sets the model callbacks.
func WithModelCallbacks(callbacks *model.Callbacks) Option {
	return func(opts *Options) {
		opts.ModelCallbacks = callbacks
	}
}

// WithToolCallbacks sets the tool callbacks.
func WithToolCallbacks(callbacks *tool.Callbacks) Option {
	return func(opts *Options) {
		opts.ToolCallbacks = callbacks
	}
}

// WithOutputKey stores the agent's final text output under this session
// state key.
func WithOutputKey(outputKey string) Option {
	return func(opts *Options) {
		opts.OutputKey = outputKey
	}
}

// WithOutputSchema sets the JSON schema the final output must satisfy.
func WithOutputSchema(schema map[string]any) Option {
	return func(opts *Options) {
		opts.OutputSchema = schema
	}
}

// WithIncludeContents controls how much history the model sees:
// "all" (default) or "none" for current-turn only.
func WithIncludeContents(includeContents string) Option {
	return func(opts *Options) {
		opts.IncludeContents = includeContents
	}
}

// Options contains configuration options for creating an LLMAgent.
type Options struct {
	// Model is the model to use for generating responses.
	Model model.Model
	// Description is a description of the agent.
	Description string
	// Instruction is the instruction for the agent.
	Instruction string
	// GlobalInstruction is shared by every agent in the tree.
	GlobalInstruction string
	// StaticInstruction is sent verbatim for provider-side caching.
	StaticInstruction string
	// GenerationConfig contains the generation configuration.
	GenerationConfig model.GenerationConfig
	// ChannelBufferSize is the buffer size for event channels (default 256).
	ChannelBufferSize int
	codeExecutor      codeexecutor.CodeExecutor
	// OptimizeDataFiles enables data-file extraction and exploration.
	OptimizeDataFiles bool
	// Tools is the list of tools available to the agent.
	Tools []tool.Tool
	// Planner is the planner to use for planning instructions.
	Planner planner.Planner
	// SubAgents is the list of sub-agents available to the agent.
	SubAgents []agent.Agent
	// AgentCallbacks contains callbacks for agent operations.
	AgentCallbacks *agent.Callbacks
	// ModelCallbacks contains callbacks for model operations.
	ModelCallbacks *model.Callbacks
	// ToolCallbacks contains callbacks for tool operations.
	ToolCallbacks *tool.Callbacks
	// OutputKey is the session state key for the agent's final output.
	OutputKey string
	// OutputSchema is the JSON schema the final output must satisfy.
	OutputSchema map[string]any
	// IncludeContents controls history visibility ("all" or "none").
	IncludeContents string
}

// LLMAgent is an agent that uses a model to generate responses.
type LLMAgent struct {
	name           string
	model          model.Model
	description    string
	flow           flow.LiveFlow
	tools          []tool.Tool
	codeExecutor   codeexecutor.CodeExecutor
	subAgents      []agent.Agent
	agentCallbacks *agent.Callbacks
	modelCallbacks *model.Callbacks
	toolCallbacks  *tool.Callbacks
}

// New creates a new LLMAgent with the given options.
//
// The request processor chain order is fixed: later stages depend on what
// earlier stages wrote to the request.
func New(name string, opts ...Option) *LLMAgent {
	options := Options{ChannelBufferSize: defaultChannelBufferSize}
	for _, opt := range opts {
		opt(&options)
	}

	var requestProcessors []flow.RequestProcessor

	requestProcessors = append(requestProcessors, processor.NewBasicRequestProcessor(
		processor.WithGenerationConfig(options.GenerationConfig),
	))

	if name != "" || options.Description != "" {
		requestProcessors = append(requestProcessors,
			processor.NewIdentityRequestProcessor(name, options.Description))
	}

	if options.Instruction != "" || options.GlobalInstruction != "" || options.StaticInstruction != "" {
		requestProcessors = append(requestProcessors, processor.NewInstructionRequestProcessor(
			options.Instruction,
			processor.WithGlobalInstruction(options.GlobalInstruction),
			processor.WithStaticInstruction(options.StaticInstruction),
		))
	}

	if options.Planner != nil {
		requestProcessors = append(requestProcessors,
			processor.NewPlanningRequestProcessor(options.Planner))
	}

	requestProcessors = append(requestProcessors, processor.NewConfirmationRequestProcessor())

	var contentOpts []processor.ContentOption
	if options.IncludeContents != "" {
		contentOpts = append(contentOpts, processor.WithIncludeContents(options.IncludeContents))
	}
	requestProcessors = append(requestProcessors, processor.NewContentRequestProcessor(contentOpts...))

	var codeRequestProcessor *processor.CodeExecutionRequestProcessor
	if options.codeExecutor != nil {
		codeRequestProcessor = processor.NewCodeExecutionRequestProcessor(options.OptimizeDataFiles)
		requestProcessors = append(requestProcessors, codeRequestProcessor)
	}

	subAgentInfos := make([]agent.Info, len(options.SubAgents))
	for i, sub := range options.SubAgents {
		subAgentInfos[i] = sub.Info()
	}
	if len(options.SubAgents) > 0 {
		requestProcessors = append(requestProcessors,
			processor.NewTransferRequestProcessor(subAgentInfos))
	}

	var responseProcessors []flow.ResponseProcessor

	if options.Planner != nil {
		responseProcessors = append(responseProcessors,
			processor.NewPlanningResponseProcessor(options.Planner))
	}
	if options.codeExecutor != nil {
		responseProcessors = append(responseProcessors,
			processor.NewCodeExecutionResponseProcessor(codeRequestProcessor))
	}
	responseProcessors = append(responseProcessors, processor.NewFunctionCallResponseProcessor())
	if options.OutputKey != "" || options.OutputSchema != nil {
		responseProcessors = append(responseProcessors,
			processor.NewOutputResponseProcessor(options.OutputKey, options.OutputSchema))
	}
	if len(options.SubAgents) > 0 {
		responseProcessors = append(responseProcessors,
			processor.NewTransferResponseProcessor())
	}

	llmFlow := llmflow.New(requestProcessors, responseProcessors, llmflow.Options{
		ChannelBufferSize: options.ChannelBufferSize,
	})

	return &LLMAgent{
		name:           name,
		model:          options.Model,
		description:    options.Description,
		flow:           llmFlow,
		tools:          options.Tools,
		codeExecutor:   options.codeExecutor,
		subAgents:      options.SubAgents,
		agentCallbacks: options.AgentCallbacks,
		modelCallbacks: options.ModelCallbacks,
		toolCallbacks:  options.ToolCallbacks,
	}
}

// Run implements the agent.Agent interface.
func (a *LLMAgent) Run(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error) {
	return a.run(ctx, invocation, a.flow.Run)
}

// RunLive implements the agent.LiveAgent interface.
func (a *LLMAgent) RunLive(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error) {
	return a.run(ctx, invocation, a.flow.RunLive)
}

type runFunc func(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error)

func (a *LLMAgent) run(ctx context.Context, invocation *agent.Invocation, flowRun runFunc) (<-chan *event.Event, error) {
	// Downstream components, such as transfer_to_agent, reach the invocation
	// through the context.
	a.prepareInvocation(invocation)
	ctx = agent.NewInvocationContext(ctx, invocation)

	if invocation.AgentCallbacks != nil {
		customResponse, err := invocation.AgentCallbacks.RunBeforeAgent(ctx, invocation)
		if err != nil {
			return nil, fmt.Errorf("before agent callback failed: %w", err)
		}
		if customResponse != nil {
			eventChan := make(chan *event.Event, 1)
			eventChan <- event.NewResponseEvent(invocation.InvocationID, invocation.AgentName, customResponse)
			close(eventChan)
			return eventChan, nil
		}
	}

	flowEventChan, err := flowRun(ctx, invocation)
	if err != nil {
		return nil, err
	}
	if invocation.AgentCallbacks != nil {
		return a.wrapEventChannel(ctx, invocation, flowEventChan), nil
	}
	return flowEventChan, nil
}

func (a *LLMAgent) prepareInvocation(invocation *agent.Invocation) {
	if invocation.Model == nil && a.model != nil {
		invocation.Model = a.model
	}
	if invocation.Agent == nil {
		invocation.Agent = a
	}
	if invocation.AgentName == "" {
		invocation.AgentName = a.name
	}
	if invocation.AgentCallbacks == nil && a.agentCallbacks != nil {
		invocation.AgentCallbacks = a.agentCallbacks
	}
	if invocation.ModelCallbacks == nil && a.modelCallbacks != nil {
		invocation.ModelCallbacks = a.modelCallbacks
	}
	if invocation.ToolCallbacks == nil && a.toolCallbacks != nil {
		invocation.ToolCallbacks = a.toolCallbacks
	}
}

// wrapEventChannel forwards flow events and runs the after-agent callbacks
// once the flow finishes.
func (a *LLMAgent) wrapEventChannel(
	ctx context.Context,
	invocation *agent.Invocation,
	originalChan <-chan *event.Event,
) <-chan *event.Event {
	wrappedChan := make(chan *event.Event, defaultChannelBufferSize)

	go func() {
		defer close(wrappedChan)

		for evt := range originalChan {
			select {
			case wrappedChan <- evt:
			case <-ctx.Done():
				return
			}
		}

		customResponse, err := invocation.AgentCallbacks.RunAfterAgent(ctx, invocation, nil)
		if err != nil {
			errorEvent := event.NewErrorEvent(
				invocation.InvocationID,
				invocation.AgentName,
				agent.ErrorTypeAgentCallbackError,
				err.Error(),
			)
			select {
			case wrappedChan <- errorEvent:
			case <-ctx.Done():
			}
			return
		}
		if customResponse != nil {
			customEvent := event.NewResponseEvent(invocation.InvocationID, invocation.AgentName, customResponse)
			select {
			case wrappedChan <- customEvent:
			case <-ctx.Done():
			}
		}
	}()

	return wrappedChan
}

// Info implements the agent.Agent interface.
func (a *LLMAgent) Info() agent.Info {
	return agent.Info{
		Name:        a.name,
		Description: a.description,
	}
}

// Tools implements the agent.Agent interface.
func (a *LLMAgent) Tools() []tool.Tool {
	return a.tools
}

// SubAgents returns the list of sub-agents for this agent.
func (a *LLMAgent) SubAgents() []agent.Agent {
	return a.subAgents
}

// FindSubAgent finds a direct sub-agent by name.
func (a *LLMAgent) FindSubAgent(name string) agent.Agent {
	for _, subAgent := range a.subAgents {
		if subAgent.Info().Name == name {
			return subAgent
		}
	}
	return nil
}

// CodeExecutor implements the agent.CodeExecutor interface.
func (a *LLMAgent) CodeExecutor() codeexecutor.CodeExecutor {
	return a.codeExecutor
}
