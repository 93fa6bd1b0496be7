//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package session

import "strings"

// State prefix constants for the different scope levels.
const (
	StateAppPrefix  = "app:"
	StateUserPrefix = "user:"
	StateTempPrefix = "temp:"
)

// State maintains the current value and the pending-commit delta.
type State struct {
	// Value stores the current committed state.
	Value StateMap `json:"value"`
	// Delta stores the pending changes that haven't been committed.
	Delta StateMap `json:"delta"`
}

// NewState creates a new empty State.
func NewState() *State {
	return &State{
		Value: make(StateMap),
		Delta: make(StateMap),
	}
}

// Set sets the value of a key in the state.
func (s *State) Set(key string, value []byte) {
	s.Value[key] = value
	s.Delta[key] = value
}

// Get gets the value of a key in the state.
// Will return the delta value if it exists, otherwise the value.
func (s *State) Get(key string) ([]byte, bool) {
	v, ok := s.Delta[key]
	if ok {
		return v, true
	}
	if v, ok = s.Value[key]; ok {
		return v, true
	}
	return nil, false
}

// ExtractStateDelta splits a state delta into app-scoped, user-scoped and
// session-scoped maps. Scope prefixes are stripped from the returned keys.
// Keys with the temp: prefix are dropped.
func ExtractStateDelta(delta StateMap) (app, user, sess StateMap) {
	app = make(StateMap)
	user = make(StateMap)
	sess = make(StateMap)
	for key, value := range delta {
		switch {
		case strings.HasPrefix(key, StateAppPrefix):
			app[strings.TrimPrefix(key, StateAppPrefix)] = value
		case strings.HasPrefix(key, StateUserPrefix):
			user[strings.TrimPrefix(key, StateUserPrefix)] = value
		case strings.HasPrefix(key, StateTempPrefix):
			// temp-scoped state lives only within an invocation.
		default:
			sess[key] = value
		}
	}
	return app, user, sess
}

// MergeState assembles the merged state view a session exposes: app-scoped
// and user-scoped entries re-prefixed, session-scoped entries as-is.
func MergeState(app, user, sess StateMap) StateMap {
	merged := make(StateMap, len(app)+len(user)+len(sess))
	for key, value := range app {
		merged[StateAppPrefix+key] = value
	}
	for key, value := range user {
		merged[StateUserPrefix+key] = value
	}
	for key, value := range sess {
		merged[key] = value
	}
	return merged
}
