//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package plugin

import (
	"context"
	"fmt"

	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/tool"
)

// Manager holds the registered plugins and runs them in registration order.
// The first plugin returning a non-nil override wins and stops the chain.
type Manager struct {
	plugins []Plugin
}

// NewManager creates a manager. Duplicate plugin names are rejected.
func NewManager(plugins ...Plugin) (*Manager, error) {
	seen := make(map[string]struct{}, len(plugins))
	for _, p := range plugins {
		if _, ok := seen[p.Name()]; ok {
			return nil, fmt.Errorf("duplicate plugin name: %s", p.Name())
		}
		seen[p.Name()] = struct{}{}
	}
	return &Manager{plugins: plugins}, nil
}

// Plugins returns the registered plugins in registration order.
func (m *Manager) Plugins() []Plugin {
	if m == nil {
		return nil
	}
	return m.plugins
}

// RunBeforeModel runs the before-model chain.
func (m *Manager) RunBeforeModel(ctx context.Context, req *model.Request) (*model.Response, error) {
	if m == nil {
		return nil, nil
	}
	for _, p := range m.plugins {
		rsp, err := p.BeforeModel(ctx, req)
		if err != nil {
			return nil, err
		}
		if rsp != nil {
			return rsp, nil
		}
	}
	return nil, nil
}

// RunAfterModel runs the after-model chain.
func (m *Manager) RunAfterModel(ctx context.Context, req *model.Request, rsp *model.Response) (*model.Response, error) {
	if m == nil {
		return nil, nil
	}
	for _, p := range m.plugins {
		custom, err := p.AfterModel(ctx, req, rsp)
		if err != nil {
			return nil, err
		}
		if custom != nil {
			return custom, nil
		}
	}
	return nil, nil
}

// RunOnModelError runs the model error recovery chain.
func (m *Manager) RunOnModelError(ctx context.Context, req *model.Request, modelErr error) (*model.Response, error) {
	if m == nil {
		return nil, nil
	}
	for _, p := range m.plugins {
		rsp, err := p.OnModelError(ctx, req, modelErr)
		if err != nil {
			return nil, err
		}
		if rsp != nil {
			return rsp, nil
		}
	}
	return nil, nil
}

// RunBeforeTool runs the before-tool chain.
func (m *Manager) RunBeforeTool(ctx context.Context, toolName string, toolDeclaration *tool.Declaration, jsonArgs *[]byte) (any, error) {
	if m == nil {
		return nil, nil
	}
	for _, p := range m.plugins {
		result, err := p.BeforeTool(ctx, toolName, toolDeclaration, jsonArgs)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// RunAfterTool runs the after-tool chain.
func (m *Manager) RunAfterTool(ctx context.Context, toolName string, toolDeclaration *tool.Declaration, jsonArgs []byte, result any, runErr error) (any, error) {
	if m == nil {
		return nil, nil
	}
	for _, p := range m.plugins {
		custom, err := p.AfterTool(ctx, toolName, toolDeclaration, jsonArgs, result, runErr)
		if err != nil {
			return nil, err
		}
		if custom != nil {
			return custom, nil
		}
	}
	return nil, nil
}

// RunOnToolError runs the tool error recovery chain.
func (m *Manager) RunOnToolError(ctx context.Context, toolName string, toolDeclaration *tool.Declaration, jsonArgs []byte, runErr error) (any, error) {
	if m == nil {
		return nil, nil
	}
	for _, p := range m.plugins {
		result, err := p.OnToolError(ctx, toolName, toolDeclaration, jsonArgs, runErr)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}
