//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package runner ties an agent to its session and artifact services and
// drives one invocation per incoming message.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/artifact"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/log"
	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/plugin"
	"github.com/agentflow-go/agentflow/session"
	"github.com/agentflow-go/agentflow/session/inmemory"
)

const authorUser = "user"

// completionChBuffer sizes the completion-notice channel; sends never block
// longer than the context allows.
const completionChBuffer = 16

// Option is a function that configures a Runner.
type Option func(*Options)

// WithSessionService sets the session service to use.
func WithSessionService(service session.Service) Option {
	return func(opts *Options) {
		opts.sessionService = service
	}
}

// WithArtifactService sets the artifact service to use.
func WithArtifactService(service artifact.Service) Option {
	return func(opts *Options) {
		opts.artifactService = service
	}
}

// WithPlugins sets the plugin manager shared by every invocation.
func WithPlugins(plugins *plugin.Manager) Option {
	return func(opts *Options) {
		opts.plugins = plugins
	}
}

// Options is the options for the Runner.
type Options struct {
	sessionService  session.Service
	artifactService artifact.Service
	plugins         *plugin.Manager
}

// Runner is the interface for running agents.
type Runner interface {
	// Run executes one agent invocation for the given message.
	Run(
		ctx context.Context,
		userID string,
		sessionID string,
		message model.Message,
		runOpts ...agent.RunOption,
	) (<-chan *event.Event, error)

	// RunLive executes one live invocation fed from the given queue.
	RunLive(
		ctx context.Context,
		userID string,
		sessionID string,
		queue *agent.LiveRequestQueue,
		runOpts ...agent.RunOption,
	) (<-chan *event.Event, error)
}

type runner struct {
	appName         string
	agent           agent.Agent
	sessionService  session.Service
	artifactService artifact.Service
	plugins         *plugin.Manager
}

// NewRunner creates a new Runner.
func NewRunner(appName string, a agent.Agent, opts ...Option) Runner {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	if options.sessionService == nil {
		options.sessionService = inmemory.NewSessionService()
	}
	return &runner{
		appName:         appName,
		agent:           a,
		sessionService:  options.sessionService,
		artifactService: options.artifactService,
		plugins:         options.plugins,
	}
}

// Run runs the agent for one user message.
func (r *runner) Run(
	ctx context.Context,
	userID string,
	sessionID string,
	message model.Message,
	runOpts ...agent.RunOption,
) (<-chan *event.Event, error) {
	sess, invocation, completionCh, err := r.prepareInvocation(ctx, userID, sessionID, message, runOpts)
	if err != nil {
		return nil, err
	}
	ctx = agent.NewInvocationContext(ctx, invocation)
	agentEventCh, err := r.agent.Run(ctx, invocation)
	if err != nil {
		return nil, err
	}
	return r.consumeEvents(ctx, sess, invocation, agentEventCh, completionCh), nil
}

// RunLive runs a live bidirectional invocation fed from the given queue.
func (r *runner) RunLive(
	ctx context.Context,
	userID string,
	sessionID string,
	queue *agent.LiveRequestQueue,
	runOpts ...agent.RunOption,
) (<-chan *event.Event, error) {
	liveAgent, ok := r.agent.(agent.LiveAgent)
	if !ok {
		return nil, errors.New("agent does not support live runs")
	}
	sess, invocation, completionCh, err := r.prepareInvocation(ctx, userID, sessionID, model.Message{}, runOpts)
	if err != nil {
		return nil, err
	}
	invocation.LiveRequestQueue = queue
	invocation.ActiveStreamingTools = agent.NewStreamingToolRegistry()
	ctx = agent.NewInvocationContext(ctx, invocation)
	agentEventCh, err := liveAgent.RunLive(ctx, invocation)
	if err != nil {
		return nil, err
	}
	return r.consumeEvents(ctx, sess, invocation, agentEventCh, completionCh), nil
}

// prepareInvocation loads or creates the session, records the user message
// and builds the invocation.
func (r *runner) prepareInvocation(
	ctx context.Context,
	userID string,
	sessionID string,
	message model.Message,
	runOpts []agent.RunOption,
) (*session.Session, *agent.Invocation, chan string, error) {
	sessionKey := session.Key{
		AppName:   r.appName,
		UserID:    userID,
		SessionID: sessionID,
	}
	sess, err := r.sessionService.GetSession(ctx, sessionKey)
	if err != nil {
		return nil, nil, nil, err
	}
	if sess == nil {
		if sess, err = r.sessionService.CreateSession(ctx, sessionKey, session.StateMap{}); err != nil {
			return nil, nil, nil, err
		}
	}

	invocationID := "invocation-" + uuid.New().String()

	if message.Content != "" {
		userEvent := &event.Event{
			Response: &model.Response{
				Choices: []model.Choice{{Message: message}},
			},
			InvocationID: invocationID,
			Author:       authorUser,
			ID:           uuid.New().String(),
			Timestamp:    time.Now(),
		}
		if err := r.sessionService.AppendEvent(ctx, sess, userEvent); err != nil {
			return nil, nil, nil, err
		}
	}

	var ro agent.RunOptions
	for _, opt := range runOpts {
		opt(&ro)
	}

	completionCh := make(chan string, completionChBuffer)
	invocation := &agent.Invocation{
		Agent:             r.agent,
		AgentName:         r.agent.Info().Name,
		InvocationID:      invocationID,
		Session:           sess,
		Message:           message,
		EventCompletionCh: completionCh,
		RunOptions:        ro,
		Plugins:           r.plugins,
		ArtifactService:   r.artifactService,
	}
	return sess, invocation, completionCh, nil
}

// consumeEvents persists terminal agent events, signals completion notices
// and forwards everything to the caller, closing with a runner completion
// event.
func (r *runner) consumeEvents(
	ctx context.Context,
	sess *session.Session,
	invocation *agent.Invocation,
	agentEventCh <-chan *event.Event,
	completionCh chan string,
) <-chan *event.Event {
	processedEventCh := make(chan *event.Event)

	go func() {
		defer close(processedEventCh)

		for agentEvent := range agentEventCh {
			// Partial events stream to the caller but never persist.
			if shouldPersist(agentEvent) {
				if err := r.sessionService.AppendEvent(ctx, sess, agentEvent); err != nil {
					log.Errorf("Failed to append event to session: %v", err)
				}
			}

			if agentEvent.RequiresCompletion && agentEvent.CompletionID != "" {
				select {
				case completionCh <- agentEvent.CompletionID:
				case <-ctx.Done():
					return
				}
			}

			select {
			case processedEventCh <- agentEvent:
			case <-ctx.Done():
				return
			}
		}

		completionEvent := &event.Event{
			Response: &model.Response{
				ID:      "runner-completion-" + uuid.New().String(),
				Object:  model.ObjectTypeRunnerCompletion,
				Created: time.Now().Unix(),
				Done:    true,
			},
			InvocationID: invocation.InvocationID,
			Author:       r.appName,
			ID:           uuid.New().String(),
			Timestamp:    time.Now(),
		}
		if err := r.sessionService.AppendEvent(ctx, sess, completionEvent); err != nil {
			log.Errorf("Failed to append runner completion event to session: %v", err)
		}
		select {
		case processedEventCh <- completionEvent:
		case <-ctx.Done():
		}
	}()

	return processedEventCh
}

// shouldPersist reports whether an event belongs in durable session history.
func shouldPersist(e *event.Event) bool {
	if e == nil || e.Response == nil {
		return false
	}
	if e.Response.IsPartial {
		return false
	}
	if e.Actions != nil && len(e.Actions.StateDelta) > 0 {
		return true
	}
	return len(e.Response.Choices) > 0 || e.Response.Error != nil
}
