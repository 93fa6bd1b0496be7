//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

// Package planner defines the interface that lets an agent generate a plan
// for a query before acting on it.
package planner

import (
	"context"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/model"
)

// Planner is the interface that all planners must implement.
type Planner interface {
	// BuildPlanningInstruction applies any necessary configuration to the
	// model request and builds the system instruction to be appended for
	// planning. Returns empty string if no instruction is needed.
	BuildPlanningInstruction(
		ctx context.Context,
		invocation *agent.Invocation,
		llmRequest *model.Request,
	) string

	// ProcessPlanningResponse processes the model response for planning.
	// Returns the processed response, or nil if no processing is needed.
	ProcessPlanningResponse(
		ctx context.Context,
		invocation *agent.Invocation,
		response *model.Response,
	) *model.Response
}
