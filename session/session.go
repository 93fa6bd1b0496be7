//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package session provides the core session functionality.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agentflow-go/agentflow/event"
)

// StateMap is a map of state key-value pairs.
type StateMap map[string][]byte

var (
	// ErrAppNameRequired is the error for app name required.
	ErrAppNameRequired = errors.New("appName is required")
	// ErrUserIDRequired is the error for user id required.
	ErrUserIDRequired = errors.New("userID is required")
	// ErrSessionIDRequired is the error for session id required.
	ErrSessionIDRequired = errors.New("sessionID is required")
	// ErrSessionNotFound is the error for a missing session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStaleSession is returned by AppendEvent when the caller's copy of
	// the session is older than the stored one.
	ErrStaleSession = errors.New("session is stale")
)

// Session holds the conversation state and event history for one
// app/user/session triple.
type Session struct {
	ID        string        `json:"id"`      // ID is the session id.
	AppName   string        `json:"appName"` // AppName is the app name.
	UserID    string        `json:"userID"`  // UserID is the user id.
	State     StateMap      `json:"state"`   // State is the merged session state.
	Events    []event.Event `json:"events"`  // Events is the session events.
	EventMu   sync.RWMutex  `json:"-"`
	UpdatedAt time.Time     `json:"updatedAt"` // UpdatedAt is the last update time.
	CreatedAt time.Time     `json:"createdAt"` // CreatedAt is the creation time.
}

// GetEvents returns a copy of the session events.
func (sess *Session) GetEvents() []event.Event {
	sess.EventMu.RLock()
	defer sess.EventMu.RUnlock()

	eventsCopy := make([]event.Event, len(sess.Events))
	copy(eventsCopy, sess.Events)
	return eventsCopy
}

// GetEventCount returns the session event count.
func (sess *Session) GetEventCount() int {
	sess.EventMu.RLock()
	defer sess.EventMu.RUnlock()

	return len(sess.Events)
}

// Options is the options for getting a session.
type Options struct {
	EventNum  int       // EventNum is the number of recent events.
	EventTime time.Time // EventTime is the after time.
}

// Option is the option for a session.
type Option func(*Options)

// WithEventNum is the option for the number of recent events.
func WithEventNum(num int) Option {
	return func(o *Options) {
		o.EventNum = num
	}
}

// WithEventTime is the option for the time of the recent events.
func WithEventTime(time time.Time) Option {
	return func(o *Options) {
		o.EventTime = time
	}
}

// Service is the interface that all session services must implement.
type Service interface {
	// CreateSession creates a new session.
	CreateSession(ctx context.Context, key Key, state StateMap, options ...Option) (*Session, error)

	// GetSession gets a session. Returns nil (no error) when absent.
	GetSession(ctx context.Context, key Key, options ...Option) (*Session, error)

	// ListSessions lists all sessions by user scope of session key.
	ListSessions(ctx context.Context, userKey UserKey, options ...Option) ([]*Session, error)

	// DeleteSession deletes a session.
	DeleteSession(ctx context.Context, key Key, options ...Option) error

	// UpdateAppState updates app-scoped state entries.
	UpdateAppState(ctx context.Context, appName string, state StateMap) error

	// DeleteAppState deletes an app-scoped state entry.
	DeleteAppState(ctx context.Context, appName string, key string) error

	// ListAppStates lists the app-scoped state entries.
	ListAppStates(ctx context.Context, appName string) (StateMap, error)

	// UpdateUserState updates user-scoped state entries.
	UpdateUserState(ctx context.Context, userKey UserKey, state StateMap) error

	// ListUserStates lists the user-scoped state entries.
	ListUserStates(ctx context.Context, userKey UserKey) (StateMap, error)

	// DeleteUserState deletes a user-scoped state entry.
	DeleteUserState(ctx context.Context, userKey UserKey, key string) error

	// AppendEvent appends an event to a session and applies its state delta.
	// Partial events are not persisted. Returns ErrStaleSession when the
	// caller's session copy is older than the stored one.
	AppendEvent(ctx context.Context, session *Session, event *event.Event, options ...Option) error

	// Close closes the service.
	Close() error
}

// Key is the key for a session.
type Key struct {
	AppName   string // app name
	UserID    string // user id
	SessionID string // session id
}

// CheckSessionKey checks if a session key is valid.
func (s *Key) CheckSessionKey() error {
	return checkSessionKey(s.AppName, s.UserID, s.SessionID)
}

// CheckUserKey checks if a user key is valid.
func (s *Key) CheckUserKey() error {
	return checkUserKey(s.AppName, s.UserID)
}

// UserKey is the key for a user.
type UserKey struct {
	AppName string // app name
	UserID  string // user id
}

// CheckUserKey checks if a user key is valid.
func (s *UserKey) CheckUserKey() error {
	return checkUserKey(s.AppName, s.UserID)
}

func checkSessionKey(appName, userID, sessionID string) error {
	if appName == "" {
		return ErrAppNameRequired
	}
	if userID == "" {
		return ErrUserIDRequired
	}
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	return nil
}

func checkUserKey(appName, userID string) error {
	if appName == "" {
		return ErrAppNameRequired
	}
	if userID == "" {
		return ErrUserIDRequired
	}
	return nil
}
