//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentflow-go/agentflow/artifact"
)

func TestBuildArtifactPath(t *testing.T) {
	info := artifact.SessionInfo{AppName: "app", UserID: "u1", SessionID: "s1"}

	assert.Equal(t, "app/u1/s1/report.txt", BuildArtifactPath(info, "report.txt"))
	assert.Equal(t, "app/u1/user/user:avatar.png", BuildArtifactPath(info, "user:avatar.png"))
}

func TestFileHasUserNamespace(t *testing.T) {
	assert.True(t, FileHasUserNamespace("user:avatar.png"))
	assert.False(t, FileHasUserNamespace("avatar.png"))
	assert.False(t, FileHasUserNamespace("users.txt"))
}

func TestPrefixes(t *testing.T) {
	info := artifact.SessionInfo{AppName: "app", UserID: "u1", SessionID: "s1"}
	assert.Equal(t, "app/u1/s1/", BuildSessionPrefix(info))
	assert.Equal(t, "app/u1/user/", BuildUserNamespacePrefix(info))
}
