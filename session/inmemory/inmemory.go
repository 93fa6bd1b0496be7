//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package inmemory provides an in-memory session service implementation.
package inmemory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/session"
)

const defaultSessionEventLimit = 1000

var _ session.Service = (*SessionService)(nil)

// appSessions stores the sessions and scoped state of one app.
type appSessions struct {
	mu        sync.RWMutex
	sessions  map[string]map[string]*session.Session
	userState map[string]session.StateMap
	appState  session.StateMap
}

func newAppSessions() *appSessions {
	return &appSessions{
		sessions:  make(map[string]map[string]*session.Session),
		userState: make(map[string]session.StateMap),
		appState:  make(session.StateMap),
	}
}

type serviceOpts struct {
	sessionEventLimit int
}

// ServiceOpt is the option for the in-memory session service.
type ServiceOpt func(*serviceOpts)

// WithSessionEventLimit sets the limit of events retained per session.
func WithSessionEventLimit(limit int) ServiceOpt {
	return func(opts *serviceOpts) {
		opts.sessionEventLimit = limit
	}
}

// SessionService provides an in-memory implementation of session.Service.
type SessionService struct {
	mu   sync.RWMutex
	apps map[string]*appSessions
	opts serviceOpts
}

// NewSessionService creates a new in-memory session service.
func NewSessionService(options ...ServiceOpt) *SessionService {
	opts := serviceOpts{
		sessionEventLimit: defaultSessionEventLimit,
	}
	for _, option := range options {
		option(&opts)
	}
	return &SessionService{
		apps: make(map[string]*appSessions),
		opts: opts,
	}
}

func (s *SessionService) getAppSessions(appName string) (*appSessions, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[appName]
	return app, ok
}

func (s *SessionService) getOrCreateAppSessions(appName string) *appSessions {
	s.mu.RLock()
	app, ok := s.apps[appName]
	if ok {
		s.mu.RUnlock()
		return app
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok = s.apps[appName]
	if ok {
		return app
	}
	app = newAppSessions()
	s.apps[appName] = app
	return app
}

// CreateSession creates a new session with the given parameters.
func (s *SessionService) CreateSession(
	ctx context.Context,
	key session.Key,
	state session.StateMap,
	opts ...session.Option,
) (*session.Session, error) {
	if err := key.CheckUserKey(); err != nil {
		return nil, err
	}

	app := s.getOrCreateAppSessions(key.AppName)

	if key.SessionID == "" {
		key.SessionID = uuid.New().String()
	}

	now := time.Now()
	sess := &session.Session{
		ID:        key.SessionID,
		AppName:   key.AppName,
		UserID:    key.UserID,
		State:     make(session.StateMap),
		Events:    []event.Event{},
		UpdatedAt: now,
		CreatedAt: now,
	}
	for k, v := range state {
		sess.State[k] = v
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	if app.sessions[key.UserID] == nil {
		app.sessions[key.UserID] = make(map[string]*session.Session)
	}
	if app.userState[key.UserID] == nil {
		app.userState[key.UserID] = make(session.StateMap)
	}
	app.sessions[key.UserID][key.SessionID] = sess

	return withScopedState(app.appState, app.userState[key.UserID], copySession(sess)), nil
}

// GetSession retrieves a session by app name, user ID and session ID.
func (s *SessionService) GetSession(
	ctx context.Context,
	key session.Key,
	opts ...session.Option,
) (*session.Session, error) {
	if err := key.CheckSessionKey(); err != nil {
		return nil, err
	}
	opt := applyOptions(opts...)
	app, ok := s.getAppSessions(key.AppName)
	if !ok {
		return nil, nil
	}

	app.mu.RLock()
	defer app.mu.RUnlock()
	sess, ok := app.sessions[key.UserID][key.SessionID]
	if !ok {
		return nil, nil
	}

	copiedSess := copySession(sess)
	applyGetSessionOptions(copiedSess, opt)
	return withScopedState(app.appState, app.userState[key.UserID], copiedSess), nil
}

// ListSessions returns all sessions for a given app and user.
func (s *SessionService) ListSessions(
	ctx context.Context,
	userKey session.UserKey,
	opts ...session.Option,
) ([]*session.Session, error) {
	if err := userKey.CheckUserKey(); err != nil {
		return nil, err
	}
	opt := applyOptions(opts...)
	app, ok := s.getAppSessions(userKey.AppName)
	if !ok {
		return []*session.Session{}, nil
	}

	app.mu.RLock()
	defer app.mu.RUnlock()

	sessList := make([]*session.Session, 0, len(app.sessions[userKey.UserID]))
	for _, sess := range app.sessions[userKey.UserID] {
		copiedSess := copySession(sess)
		applyGetSessionOptions(copiedSess, opt)
		sessList = append(sessList, withScopedState(app.appState, app.userState[userKey.UserID], copiedSess))
	}
	return sessList, nil
}

// DeleteSession removes a session from storage.
func (s *SessionService) DeleteSession(
	ctx context.Context,
	key session.Key,
	opts ...session.Option,
) error {
	if err := key.CheckSessionKey(); err != nil {
		return err
	}

	app, ok := s.getAppSessions(key.AppName)
	if !ok {
		return nil
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	if _, ok := app.sessions[key.UserID][key.SessionID]; !ok {
		return nil
	}
	delete(app.sessions[key.UserID], key.SessionID)
	if len(app.sessions[key.UserID]) == 0 {
		delete(app.sessions, key.UserID)
	}
	return nil
}

// UpdateAppState updates the app-scoped state.
func (s *SessionService) UpdateAppState(ctx context.Context, appName string, state session.StateMap) error {
	if appName == "" {
		return session.ErrAppNameRequired
	}

	app := s.getOrCreateAppSessions(appName)

	app.mu.Lock()
	defer app.mu.Unlock()

	for k, v := range state {
		k = strings.TrimPrefix(k, session.StateAppPrefix)
		app.appState[k] = cloneBytes(v)
	}
	return nil
}

// DeleteAppState deletes an app-scoped state entry.
func (s *SessionService) DeleteAppState(ctx context.Context, appName string, key string) error {
	if appName == "" {
		return session.ErrAppNameRequired
	}

	app, ok := s.getAppSessions(appName)
	if !ok {
		return nil
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	delete(app.appState, strings.TrimPrefix(key, session.StateAppPrefix))
	return nil
}

// ListAppStates lists the app-scoped state entries.
func (s *SessionService) ListAppStates(ctx context.Context, appName string) (session.StateMap, error) {
	if appName == "" {
		return nil, session.ErrAppNameRequired
	}

	app, ok := s.getAppSessions(appName)
	if !ok {
		return make(session.StateMap), nil
	}

	app.mu.RLock()
	defer app.mu.RUnlock()
	return cloneStateMap(app.appState), nil
}

// UpdateUserState updates the user-scoped state.
func (s *SessionService) UpdateUserState(ctx context.Context, userKey session.UserKey, state session.StateMap) error {
	if err := userKey.CheckUserKey(); err != nil {
		return err
	}

	app := s.getOrCreateAppSessions(userKey.AppName)

	app.mu.Lock()
	defer app.mu.Unlock()

	if app.userState[userKey.UserID] == nil {
		app.userState[userKey.UserID] = make(session.StateMap)
	}

	for k := range state {
		if strings.HasPrefix(k, session.StateAppPrefix) || strings.HasPrefix(k, session.StateTempPrefix) {
			return fmt.Errorf("update user state: key %q is not user-scoped", k)
		}
	}
	for k, v := range state {
		k = strings.TrimPrefix(k, session.StateUserPrefix)
		app.userState[userKey.UserID][k] = cloneBytes(v)
	}
	return nil
}

// ListUserStates lists the user-scoped state entries.
func (s *SessionService) ListUserStates(ctx context.Context, userKey session.UserKey) (session.StateMap, error) {
	if err := userKey.CheckUserKey(); err != nil {
		return nil, err
	}
	app, ok := s.getAppSessions(userKey.AppName)
	if !ok {
		return make(session.StateMap), nil
	}

	app.mu.RLock()
	defer app.mu.RUnlock()
	userState, ok := app.userState[userKey.UserID]
	if !ok {
		return make(session.StateMap), nil
	}
	return cloneStateMap(userState), nil
}

// DeleteUserState deletes a user-scoped state entry.
func (s *SessionService) DeleteUserState(ctx context.Context, userKey session.UserKey, key string) error {
	if err := userKey.CheckUserKey(); err != nil {
		return err
	}

	app, ok := s.getAppSessions(userKey.AppName)
	if !ok {
		return nil
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	if app.userState[userKey.UserID] == nil {
		return nil
	}
	delete(app.userState[userKey.UserID], strings.TrimPrefix(key, session.StateUserPrefix))
	if len(app.userState[userKey.UserID]) == 0 {
		delete(app.userState, userKey.UserID)
	}
	return nil
}

// AppendEvent appends an event to a session, routing its state delta into
// the app, user and session scopes. Partial events are not persisted.
func (s *SessionService) AppendEvent(
	ctx context.Context,
	sess *session.Session,
	evt *event.Event,
	opts ...session.Option,
) error {
	key := session.Key{
		AppName:   sess.AppName,
		UserID:    sess.UserID,
		SessionID: sess.ID,
	}
	if err := key.CheckSessionKey(); err != nil {
		return err
	}
	if evt.Response != nil && evt.Response.IsPartial {
		return nil
	}

	app, ok := s.getAppSessions(key.AppName)
	if !ok {
		return fmt.Errorf("append event: %w: %s", session.ErrSessionNotFound, key.SessionID)
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	storedSession, ok := app.sessions[key.UserID][key.SessionID]
	if !ok {
		return fmt.Errorf("append event: %w: %s", session.ErrSessionNotFound, key.SessionID)
	}
	if sess.UpdatedAt.Before(storedSession.UpdatedAt) {
		return fmt.Errorf("append event: %w: caller %v stored %v",
			session.ErrStaleSession, sess.UpdatedAt, storedSession.UpdatedAt)
	}

	s.applyEvent(storedSession, evt)
	if evt.Actions != nil && len(evt.Actions.StateDelta) > 0 {
		appDelta, userDelta, sessDelta := session.ExtractStateDelta(evt.Actions.StateDelta)
		for k, v := range appDelta {
			app.appState[k] = cloneBytes(v)
		}
		if len(userDelta) > 0 {
			if app.userState[key.UserID] == nil {
				app.userState[key.UserID] = make(session.StateMap)
			}
			for k, v := range userDelta {
				app.userState[key.UserID][k] = cloneBytes(v)
			}
		}
		for k, v := range sessDelta {
			storedSession.State[k] = cloneBytes(v)
		}
	}

	// Keep the caller's copy current so subsequent appends are not stale.
	s.applyEvent(sess, evt)
	sess.UpdatedAt = storedSession.UpdatedAt
	return nil
}

// Close closes the service.
func (s *SessionService) Close() error {
	return nil
}

func (s *SessionService) applyEvent(sess *session.Session, evt *event.Event) {
	sess.EventMu.Lock()
	defer sess.EventMu.Unlock()
	sess.Events = append(sess.Events, *evt)
	if s.opts.sessionEventLimit > 0 && len(sess.Events) > s.opts.sessionEventLimit {
		sess.Events = sess.Events[len(sess.Events)-s.opts.sessionEventLimit:]
	}
	sess.UpdatedAt = time.Now()
}

func copySession(sess *session.Session) *session.Session {
	copiedSess := &session.Session{
		ID:        sess.ID,
		AppName:   sess.AppName,
		UserID:    sess.UserID,
		State:     cloneStateMap(sess.State),
		Events:    make([]event.Event, len(sess.Events)),
		UpdatedAt: sess.UpdatedAt,
		CreatedAt: sess.CreatedAt,
	}
	copy(copiedSess.Events, sess.Events)
	return copiedSess
}

func applyGetSessionOptions(sess *session.Session, opts *session.Options) {
	if opts.EventNum > 0 && len(sess.Events) > opts.EventNum {
		sess.Events = sess.Events[len(sess.Events)-opts.EventNum:]
	}
	if !opts.EventTime.IsZero() {
		var filtered []event.Event
		for _, e := range sess.Events {
			if !e.Timestamp.Before(opts.EventTime) {
				filtered = append(filtered, e)
			}
		}
		sess.Events = filtered
	}
}

// withScopedState overlays app-level and user-level state onto the session
// state with their scope prefixes.
func withScopedState(appState, userState session.StateMap, sess *session.Session) *session.Session {
	for k, v := range appState {
		sess.State[session.StateAppPrefix+k] = v
	}
	for k, v := range userState {
		sess.State[session.StateUserPrefix+k] = v
	}
	return sess
}

func applyOptions(opts ...session.Option) *session.Options {
	opt := &session.Options{}
	for _, o := range opts {
		o(opt)
	}
	return opt
}

func cloneBytes(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func cloneStateMap(m session.StateMap) session.StateMap {
	out := make(session.StateMap, len(m))
	for k, v := range m {
		out[k] = cloneBytes(v)
	}
	return out
}
