//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentflow-go/agentflow/artifact"
	"github.com/agentflow-go/agentflow/session"
)

// CallbackContext provides a typed wrapper around context with
// session-scoped operations like artifact management.
type CallbackContext struct {
	context.Context
	invocation *Invocation
	// State is the merged state of the current session.
	State session.StateMap
}

// NewCallbackContext creates a CallbackContext from a standard context.
// Returns an error if no invocation is found in the context.
func NewCallbackContext(ctx context.Context) (*CallbackContext, error) {
	invocation, ok := InvocationFromContext(ctx)
	if !ok || invocation == nil {
		return nil, errors.New("invocation not found in context")
	}
	state := make(session.StateMap)
	if invocation.Session != nil && invocation.Session.State != nil {
		state = invocation.Session.State
	}
	return &CallbackContext{
		Context:    ctx,
		invocation: invocation,
		State:      state,
	}, nil
}

// Invocation returns the invocation this context wraps.
func (cc *CallbackContext) Invocation() *Invocation {
	return cc.invocation
}

// SaveArtifact saves an artifact for the current session and returns its version.
func (cc *CallbackContext) SaveArtifact(filename string, artifact *artifact.Artifact) (int, error) {
	service, sessionInfo, err := cc.getArtifactServiceAndSessionInfo()
	if err != nil {
		return 0, err
	}
	return service.SaveArtifact(cc.Context, sessionInfo, filename, artifact)
}

// LoadArtifact loads an artifact attached to the current session.
// A nil version loads the latest.
func (cc *CallbackContext) LoadArtifact(filename string, version *int) (*artifact.Artifact, error) {
	service, sessionInfo, err := cc.getArtifactServiceAndSessionInfo()
	if err != nil {
		return nil, err
	}
	return service.LoadArtifact(cc.Context, sessionInfo, filename, version)
}

// ListArtifacts lists the filenames of the artifacts attached to the current session.
func (cc *CallbackContext) ListArtifacts() ([]string, error) {
	service, sessionInfo, err := cc.getArtifactServiceAndSessionInfo()
	if err != nil {
		return nil, err
	}
	return service.ListArtifactKeys(cc.Context, sessionInfo)
}

// DeleteArtifact deletes an artifact from the current session.
func (cc *CallbackContext) DeleteArtifact(filename string) error {
	service, sessionInfo, err := cc.getArtifactServiceAndSessionInfo()
	if err != nil {
		return err
	}
	return service.DeleteArtifact(cc.Context, sessionInfo, filename)
}

// ListArtifactVersions lists all versions of an artifact.
func (cc *CallbackContext) ListArtifactVersions(filename string) ([]int, error) {
	service, sessionInfo, err := cc.getArtifactServiceAndSessionInfo()
	if err != nil {
		return nil, err
	}
	return service.ListVersions(cc.Context, sessionInfo, filename)
}

func (cc *CallbackContext) getArtifactServiceAndSessionInfo() (artifact.Service, artifact.SessionInfo, error) {
	service := cc.invocation.ArtifactService
	if service == nil {
		return nil, artifact.SessionInfo{}, errors.New("artifact service is nil in invocation")
	}
	sess := cc.invocation.Session
	if sess == nil {
		return nil, artifact.SessionInfo{}, errors.New("invocation exists but no session available")
	}
	if sess.AppName == "" || sess.UserID == "" || sess.ID == "" {
		return nil, artifact.SessionInfo{}, fmt.Errorf(
			"session missing appName, userID or sessionID: appName=%s, userID=%s, sessionID=%s",
			sess.AppName, sess.UserID, sess.ID)
	}
	return service, artifact.SessionInfo{
		AppName:   sess.AppName,
		UserID:    sess.UserID,
		SessionID: sess.ID,
	}, nil
}
