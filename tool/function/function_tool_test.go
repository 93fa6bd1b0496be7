//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package function

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/tool"
)

type addInput struct {
	A int `json:"a"`
	B int `json:"b,omitempty" description:"second addend"`
}

type addOutput struct {
	Sum int `json:"sum"`
}

func addTool() *FunctionTool[addInput, addOutput] {
	return NewFunctionTool(
		func(ctx context.Context, in addInput) (addOutput, error) {
			return addOutput{Sum: in.A + in.B}, nil
		},
		WithName("add"),
		WithDescription("adds two integers"),
	)
}

func TestFunctionToolCall(t *testing.T) {
	result, err := addTool().Call(context.Background(), []byte(`{"a":2,"b":3}`))
	require.NoError(t, err)
	assert.Equal(t, addOutput{Sum: 5}, result)
}

func TestFunctionToolCallEmptyArgs(t *testing.T) {
	result, err := addTool().Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, addOutput{Sum: 0}, result)
}

func TestFunctionToolCallBadJSON(t *testing.T) {
	_, err := addTool().Call(context.Background(), []byte(`{`))
	assert.Error(t, err)
}

func TestFunctionToolCallPropagatesError(t *testing.T) {
	wantErr := errors.New("unreachable")
	ft := NewFunctionTool(
		func(ctx context.Context, in addInput) (addOutput, error) {
			return addOutput{}, wantErr
		},
		WithName("failing"),
	)
	_, err := ft.Call(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, wantErr)
}

func TestFunctionToolDeclaration(t *testing.T) {
	decl := addTool().Declaration()
	assert.Equal(t, "add", decl.Name)
	assert.Equal(t, "adds two integers", decl.Description)

	require.NotNil(t, decl.InputSchema)
	assert.Equal(t, "object", decl.InputSchema.Type)
	require.Contains(t, decl.InputSchema.Properties, "a")
	require.Contains(t, decl.InputSchema.Properties, "b")
	assert.Equal(t, "integer", decl.InputSchema.Properties["a"].Type)
	assert.Equal(t, "second addend", decl.InputSchema.Properties["b"].Description)
	// Only the field without omitempty is required.
	assert.Equal(t, []string{"a"}, decl.InputSchema.Required)

	require.NotNil(t, decl.OutputSchema)
	assert.Contains(t, decl.OutputSchema.Properties, "sum")
}

func TestFunctionToolLongRunning(t *testing.T) {
	assert.False(t, addTool().LongRunning())

	lr := NewFunctionTool(
		func(ctx context.Context, in addInput) (addOutput, error) {
			return addOutput{}, nil
		},
		WithName("slow"),
		WithLongRunning(true),
	)
	assert.True(t, lr.LongRunning())

	var _ LongRunner = lr
}

func TestStreamableFunctionTool(t *testing.T) {
	st := NewStreamableFunctionTool(
		func(ctx context.Context, in addInput) (*tool.StreamReader, error) {
			stream := tool.NewStream(4)
			go func() {
				defer stream.Writer.Close()
				for i := 0; i < in.A; i++ {
					stream.Writer.Send(tool.StreamChunk{Content: "tick"}, nil)
				}
			}()
			return stream.Reader, nil
		},
		WithName("ticker"),
	)

	reader, err := st.StreamableCall(context.Background(), []byte(`{"a":3}`))
	require.NoError(t, err)
	defer reader.Close()

	var got int
	for {
		chunk, err := reader.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, "tick", chunk.Content)
		got++
	}
	assert.Equal(t, 3, got)

	decl := st.Declaration()
	assert.Equal(t, "ticker", decl.Name)
	assert.NotNil(t, decl.InputSchema)
}
