//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package artifact

import "context"

// Service defines the interface for artifact storage and retrieval.
type Service interface {
	// SaveArtifact saves an artifact and returns its version. The first
	// version of an artifact is 0; each successful save increments it by 1.
	SaveArtifact(ctx context.Context, sessionInfo SessionInfo, filename string, artifact *Artifact) (int, error)

	// LoadArtifact gets an artifact. When version is nil the latest version
	// is returned. Returns nil when the artifact does not exist.
	LoadArtifact(ctx context.Context, sessionInfo SessionInfo, filename string, version *int) (*Artifact, error)

	// ListArtifactKeys lists all the artifact filenames within a session,
	// including user-namespaced files visible to the session.
	ListArtifactKeys(ctx context.Context, sessionInfo SessionInfo) ([]string, error)

	// DeleteArtifact deletes an artifact and all of its versions.
	DeleteArtifact(ctx context.Context, sessionInfo SessionInfo, filename string) error

	// ListVersions lists all versions of an artifact.
	ListVersions(ctx context.Context, sessionInfo SessionInfo, filename string) ([]int, error)
}
