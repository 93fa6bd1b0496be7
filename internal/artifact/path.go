//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package artifact provides internal utilities for artifact implementations.
package artifact

import (
	"fmt"
	"strings"

	"github.com/agentflow-go/agentflow/artifact"
)

// FileHasUserNamespace checks if the filename has a user namespace.
// Files with user namespace start with the "user:" prefix.
func FileHasUserNamespace(filename string) bool {
	return strings.HasPrefix(filename, "user:")
}

// BuildArtifactPath constructs the artifact path for storage.
// User-namespaced files map to {app}/{user}/user/{filename}; session-scoped
// files map to {app}/{user}/{session}/{filename}.
func BuildArtifactPath(sessionInfo artifact.SessionInfo, filename string) string {
	if FileHasUserNamespace(filename) {
		return fmt.Sprintf("%s/%s/user/%s", sessionInfo.AppName, sessionInfo.UserID, filename)
	}
	return fmt.Sprintf("%s/%s/%s/%s", sessionInfo.AppName, sessionInfo.UserID, sessionInfo.SessionID, filename)
}

// BuildSessionPrefix constructs the prefix for session-scoped artifacts.
func BuildSessionPrefix(sessionInfo artifact.SessionInfo) string {
	return fmt.Sprintf("%s/%s/%s/", sessionInfo.AppName, sessionInfo.UserID, sessionInfo.SessionID)
}

// BuildUserNamespacePrefix constructs the prefix for user-namespaced artifacts.
func BuildUserNamespacePrefix(sessionInfo artifact.SessionInfo) string {
	return fmt.Sprintf("%s/%s/user/", sessionInfo.AppName, sessionInfo.UserID)
}
