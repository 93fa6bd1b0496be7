//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package event

// AuthConfig describes the credential a tool asked the client to obtain.
// The payload is opaque to the engine; it is forwarded to the client as-is.
type AuthConfig struct {
	// Scheme names the auth scheme, e.g. "oauth2", "apiKey".
	Scheme string `json:"scheme,omitempty"`
	// AuthURI is where the client should send the user to authorize.
	AuthURI string `json:"auth_uri,omitempty"`
	// Payload carries scheme-specific fields.
	Payload map[string]any `json:"payload,omitempty"`
}

// ToolConfirmation is the confirmation a tool requested from the user
// before (re-)executing, and the user's eventual answer.
type ToolConfirmation struct {
	// Hint tells the user what is being confirmed.
	Hint string `json:"hint,omitempty"`
	// Confirmed is the user's answer.
	Confirmed bool `json:"confirmed"`
	// Payload carries any structured data the user supplied alongside.
	Payload map[string]any `json:"payload,omitempty"`
}

// EventActions carry the side effects an event requests from its consumer.
type EventActions struct {
	// StateDelta contains state changes to be merged into the session.
	StateDelta map[string][]byte `json:"stateDelta,omitempty"`

	// ArtifactDelta maps filename to the version saved during this step.
	ArtifactDelta map[string]int `json:"artifactDelta,omitempty"`

	// TransferToAgent is the name of the agent to hand control to, if any.
	TransferToAgent string `json:"transferToAgent,omitempty"`

	// Escalate signals the enclosing control structure to stop iterating.
	Escalate bool `json:"escalate,omitempty"`

	// SkipSummarization marks the tool response as final for the turn.
	SkipSummarization bool `json:"skipSummarization,omitempty"`

	// RequestedAuthConfigs holds auth requests keyed by function call id.
	RequestedAuthConfigs map[string]AuthConfig `json:"requestedAuthConfigs,omitempty"`

	// RequestedToolConfirmations holds confirmation requests keyed by
	// function call id.
	RequestedToolConfirmations map[string]*ToolConfirmation `json:"requestedToolConfirmations,omitempty"`
}

// NewEventActions creates an empty EventActions.
func NewEventActions() *EventActions {
	return &EventActions{}
}

// Clone creates a deep copy of the actions.
func (a *EventActions) Clone() *EventActions {
	if a == nil {
		return nil
	}
	clone := *a
	if a.StateDelta != nil {
		clone.StateDelta = make(map[string][]byte, len(a.StateDelta))
		for k, v := range a.StateDelta {
			b := make([]byte, len(v))
			copy(b, v)
			clone.StateDelta[k] = b
		}
	}
	if a.ArtifactDelta != nil {
		clone.ArtifactDelta = make(map[string]int, len(a.ArtifactDelta))
		for k, v := range a.ArtifactDelta {
			clone.ArtifactDelta[k] = v
		}
	}
	if a.RequestedAuthConfigs != nil {
		clone.RequestedAuthConfigs = make(map[string]AuthConfig, len(a.RequestedAuthConfigs))
		for k, v := range a.RequestedAuthConfigs {
			clone.RequestedAuthConfigs[k] = v
		}
	}
	if a.RequestedToolConfirmations != nil {
		clone.RequestedToolConfirmations = make(map[string]*ToolConfirmation, len(a.RequestedToolConfirmations))
		for k, v := range a.RequestedToolConfirmations {
			clone.RequestedToolConfirmations[k] = v
		}
	}
	return &clone
}

// Merge folds other into a. Map fields are merged key-wise; scalar fields
// follow last-write-wins, where "last" is the argument.
func (a *EventActions) Merge(other *EventActions) {
	if other == nil {
		return
	}
	for k, v := range other.StateDelta {
		if a.StateDelta == nil {
			a.StateDelta = make(map[string][]byte)
		}
		a.StateDelta[k] = v
	}
	for k, v := range other.ArtifactDelta {
		if a.ArtifactDelta == nil {
			a.ArtifactDelta = make(map[string]int)
		}
		a.ArtifactDelta[k] = v
	}
	for k, v := range other.RequestedAuthConfigs {
		if a.RequestedAuthConfigs == nil {
			a.RequestedAuthConfigs = make(map[string]AuthConfig)
		}
		a.RequestedAuthConfigs[k] = v
	}
	for k, v := range other.RequestedToolConfirmations {
		if a.RequestedToolConfirmations == nil {
			a.RequestedToolConfirmations = make(map[string]*ToolConfirmation)
		}
		a.RequestedToolConfirmations[k] = v
	}
	if other.TransferToAgent != "" {
		a.TransferToAgent = other.TransferToAgent
	}
	if other.Escalate {
		a.Escalate = true
	}
	if other.SkipSummarization {
		a.SkipSummarization = true
	}
}
