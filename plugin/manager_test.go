//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/model"
	"github.com/agentflow-go/agentflow/tool"
)

// recordingPlugin overrides selected hooks and records invocation order.
type recordingPlugin struct {
	Base
	beforeModel func(ctx context.Context, req *model.Request) (*model.Response, error)
	beforeTool  func(ctx context.Context, name string, decl *tool.Declaration, args *[]byte) (any, error)
	onToolError func(ctx context.Context, name string, decl *tool.Declaration, args []byte, runErr error) (any, error)
}

func (p *recordingPlugin) BeforeModel(ctx context.Context, req *model.Request) (*model.Response, error) {
	if p.beforeModel != nil {
		return p.beforeModel(ctx, req)
	}
	return nil, nil
}

func (p *recordingPlugin) BeforeTool(ctx context.Context, name string, decl *tool.Declaration, args *[]byte) (any, error) {
	if p.beforeTool != nil {
		return p.beforeTool(ctx, name, decl, args)
	}
	return nil, nil
}

func (p *recordingPlugin) OnToolError(ctx context.Context, name string, decl *tool.Declaration, args []byte, runErr error) (any, error) {
	if p.onToolError != nil {
		return p.onToolError(ctx, name, decl, args, runErr)
	}
	return nil, nil
}

func TestNewManagerRejectsDuplicateNames(t *testing.T) {
	_, err := NewManager(
		&recordingPlugin{Base: Base{PluginName: "dup"}},
		&recordingPlugin{Base: Base{PluginName: "dup"}},
	)
	assert.Error(t, err)
}

func TestNewManagerAcceptsDistinctNames(t *testing.T) {
	m, err := NewManager(
		&recordingPlugin{Base: Base{PluginName: "a"}},
		&recordingPlugin{Base: Base{PluginName: "b"}},
	)
	require.NoError(t, err)
	assert.Len(t, m.Plugins(), 2)
}

func TestRunBeforeModelFirstOverrideWins(t *testing.T) {
	override := &model.Response{ID: "from-p2"}
	var thirdCalled bool
	m, err := NewManager(
		&recordingPlugin{Base: Base{PluginName: "p1"}},
		&recordingPlugin{
			Base: Base{PluginName: "p2"},
			beforeModel: func(ctx context.Context, req *model.Request) (*model.Response, error) {
				return override, nil
			},
		},
		&recordingPlugin{
			Base: Base{PluginName: "p3"},
			beforeModel: func(ctx context.Context, req *model.Request) (*model.Response, error) {
				thirdCalled = true
				return nil, nil
			},
		},
	)
	require.NoError(t, err)

	rsp, err := m.RunBeforeModel(context.Background(), &model.Request{})
	require.NoError(t, err)
	assert.Same(t, override, rsp)
	assert.False(t, thirdCalled)
}

func TestRunBeforeToolRewritesArgs(t *testing.T) {
	m, err := NewManager(&recordingPlugin{
		Base: Base{PluginName: "rewriter"},
		beforeTool: func(ctx context.Context, name string, decl *tool.Declaration, args *[]byte) (any, error) {
			*args = []byte(`{"rewritten":true}`)
			return nil, nil
		},
	})
	require.NoError(t, err)

	args := []byte(`{}`)
	result, err := m.RunBeforeTool(context.Background(), "t", &tool.Declaration{Name: "t"}, &args)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.JSONEq(t, `{"rewritten":true}`, string(args))
}

func TestRunOnToolErrorRecovery(t *testing.T) {
	m, err := NewManager(&recordingPlugin{
		Base: Base{PluginName: "recoverer"},
		onToolError: func(ctx context.Context, name string, decl *tool.Declaration, args []byte, runErr error) (any, error) {
			return map[string]any{"fallback": true}, nil
		},
	})
	require.NoError(t, err)

	result, err := m.RunOnToolError(context.Background(), "t", &tool.Declaration{Name: "t"}, []byte(`{}`), errors.New("boom"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"fallback": true}, result)
}

func TestNilManagerIsSafe(t *testing.T) {
	var m *Manager

	rsp, err := m.RunBeforeModel(context.Background(), &model.Request{})
	require.NoError(t, err)
	assert.Nil(t, rsp)

	args := []byte(`{}`)
	result, err := m.RunBeforeTool(context.Background(), "t", nil, &args)
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = m.RunOnToolError(context.Background(), "t", nil, args, errors.New("x"))
	require.NoError(t, err)
	assert.Nil(t, result)
}
