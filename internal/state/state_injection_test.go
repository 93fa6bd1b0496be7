//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/session"
)

func invocationWithState(state session.StateMap) *agent.Invocation {
	return &agent.Invocation{
		Session: &session.Session{State: state},
	}
}

func TestInjectSessionState(t *testing.T) {
	inv := invocationWithState(session.StateMap{
		"name":       []byte(`"Alice"`),
		"user:lang":  []byte(`"en"`),
		"app:region": []byte(`"eu"`),
		"count":      []byte(`3`),
	})

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "plain variable", template: "Hello {name}", want: "Hello Alice"},
		{name: "namespaced user", template: "lang={user:lang}", want: "lang=en"},
		{name: "namespaced app", template: "region={app:region}", want: "region=eu"},
		{name: "numeric value", template: "n={count}", want: "n=3"},
		{name: "missing required stays verbatim", template: "x={missing}", want: "x={missing}"},
		{name: "missing optional becomes empty", template: "x={missing?}", want: "x="},
		{name: "present optional resolves", template: "x={name?}", want: "x=Alice"},
		{name: "invalid name untouched", template: "json {\"k\": 1}", want: "json {\"k\": 1}"},
		{name: "mustache form", template: "Hello {{name}}", want: "Hello Alice"},
		{name: "mustache optional", template: "x={{missing?}}", want: "x="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InjectSessionState(tt.template, inv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInjectSessionStateNonJSONValue(t *testing.T) {
	inv := invocationWithState(session.StateMap{"raw": []byte("not json")})
	got, err := InjectSessionState("v={raw}", inv)
	require.NoError(t, err)
	assert.Equal(t, "v=not json", got)
}

func TestInjectSessionStateNoSession(t *testing.T) {
	got, err := InjectSessionState("Hello {name?}", &agent.Invocation{})
	require.NoError(t, err)
	assert.Equal(t, "Hello ", got)

	got, err = InjectSessionState("Hello {name}", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello {name}", got)
}

func TestInjectSessionStateEmptyTemplate(t *testing.T) {
	got, err := InjectSessionState("", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
