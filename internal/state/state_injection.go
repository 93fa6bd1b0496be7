//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package state provides state injection functionality for instruction
// templates.
package state

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/session"
)

// mustachePlaceholderRE matches Mustache-style placeholders like {{key}},
// optionally allowing namespaces (user:, app:, temp:) and the optional
// suffix '?'. It restricts the allowed characters to avoid over-replacing
// in free text.
var mustachePlaceholderRE = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*:(?:[A-Za-z_][A-Za-z0-9_]*)|[A-Za-z_][A-Za-z0-9_]*)(\?)?\s*\}\}`)

// normalizePlaceholders converts Mustache-style placeholders to the native
// single-brace form before injection.
func normalizePlaceholders(s string) string {
	if s == "" {
		return s
	}
	return mustachePlaceholderRE.ReplaceAllString(s, `{$1$2}`)
}

var stateVarPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// InjectSessionState replaces state variables in the instruction template
// with their corresponding values from session state.
//
// Supported patterns:
//   - {variable_name}: replaced with the state value; left verbatim when
//     the key is missing so the model sees the unresolved variable.
//   - {variable_name?}: optional, replaced with empty string if not found.
//   - {app:key} / {user:key} / {temp:key}: namespaced lookups.
func InjectSessionState(template string, invocation *agent.Invocation) (string, error) {
	if template == "" {
		return template, nil
	}

	template = normalizePlaceholders(template)

	result := stateVarPattern.ReplaceAllStringFunc(template, func(match string) string {
		varName := strings.Trim(match, "{}")

		optional := false
		if strings.HasSuffix(varName, "?") {
			optional = true
			varName = strings.TrimSuffix(varName, "?")
		}

		if !isValidStateName(varName) {
			return match
		}

		if invocation != nil && invocation.Session != nil && invocation.Session.State != nil {
			if jsonBytes, exists := invocation.Session.State[varName]; exists {
				var jsonValue any
				if err := json.Unmarshal(jsonBytes, &jsonValue); err == nil {
					return fmt.Sprintf("%v", jsonValue)
				}
				return string(jsonBytes)
			}
		}

		if optional {
			return ""
		}
		return match
	})
	return result, nil
}

// isValidStateName checks if the variable name is a valid state name:
// either a plain identifier or an app:/user:/temp: prefixed identifier.
func isValidStateName(varName string) bool {
	if varName == "" {
		return false
	}
	if isIdentifier(varName) {
		return true
	}
	parts := strings.Split(varName, ":")
	if len(parts) == 2 {
		prefix := parts[0] + ":"
		switch prefix {
		case session.StateAppPrefix, session.StateUserPrefix, session.StateTempPrefix:
			return isIdentifier(parts[1])
		}
	}
	return false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	if !isLetterOrUnderscore(rune(s[0])) {
		return false
	}
	for _, r := range s[1:] {
		if !isLetterOrUnderscore(r) && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func isLetterOrUnderscore(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}
