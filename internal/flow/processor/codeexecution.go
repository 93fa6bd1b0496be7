//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agentflow-go/agentflow/agent"
	"github.com/agentflow-go/agentflow/codeexecutor"
	"github.com/agentflow-go/agentflow/event"
	"github.com/agentflow-go/agentflow/log"
	"github.com/agentflow-go/agentflow/model"
)

// maxExplorationRetries bounds the data-exploration error retries per
// invocation.
const maxExplorationRetries = 2

// dataFileMimeTypes are the mime types treated as tabular data files.
var dataFileMimeTypes = map[string]bool{
	"text/csv": true,
}

// CodeExecutionRequestProcessor extracts inline data files from user
// content, replaces them with filename placeholders and runs exploration
// code for newly seen files.
type CodeExecutionRequestProcessor struct {
	// OptimizeDataFiles enables the data-file extraction and exploration.
	OptimizeDataFiles bool

	mu sync.Mutex
	// perInvocation tracks extracted files and retry budget by invocation ID.
	perInvocation map[string]*codeExecutionState
}

type codeExecutionState struct {
	inputFiles []codeexecutor.File
	explored   map[string]bool
	retries    int
}

// NewCodeExecutionRequestProcessor creates a new code execution request processor.
func NewCodeExecutionRequestProcessor(optimizeDataFiles bool) *CodeExecutionRequestProcessor {
	return &CodeExecutionRequestProcessor{
		OptimizeDataFiles: optimizeDataFiles,
		perInvocation:     make(map[string]*codeExecutionState),
	}
}

// ProcessRequest implements the flow.RequestProcessor interface.
func (p *CodeExecutionRequestProcessor) ProcessRequest(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	ch chan<- *event.Event,
) {
	if req == nil || invocation == nil {
		return
	}
	executor := executorFor(invocation)
	if executor == nil || !p.OptimizeDataFiles {
		return
	}

	state := p.stateFor(invocation.InvocationID)

	// Replace inline data files with filename placeholders.
	var newFiles []codeexecutor.File
	for i := range req.Messages {
		msg := &req.Messages[i]
		if msg.Role != model.RoleUser || len(msg.Files) == 0 {
			continue
		}
		var kept []model.File
		for _, file := range msg.Files {
			if !dataFileMimeTypes[file.MimeType] {
				kept = append(kept, file)
				continue
			}
			dataFile := codeexecutor.File{
				Name:     file.Name,
				Content:  string(file.Data),
				MIMEType: file.MimeType,
			}
			newFiles = append(newFiles, dataFile)
			msg.Content += fmt.Sprintf("\nAvailable data file: `%s`", file.Name)
		}
		msg.Files = kept
	}

	p.mu.Lock()
	state.inputFiles = append(state.inputFiles, newFiles...)
	p.mu.Unlock()

	// Run exploration code once per newly seen file.
	for _, file := range newFiles {
		p.mu.Lock()
		if state.explored[file.Name] || state.retries >= maxExplorationRetries {
			p.mu.Unlock()
			continue
		}
		state.explored[file.Name] = true
		p.mu.Unlock()

		code := explorationCode(file.Name)
		emitCodeEvent(ctx, invocation, ch, model.ObjectTypeCodeExecution, "```python\n"+code+"```")

		result, err := executor.ExecuteCode(ctx, codeexecutor.CodeExecutionInput{
			CodeBlocks:  []codeexecutor.CodeBlock{{Code: code, Language: "python"}},
			InputFiles:  state.inputFiles,
			ExecutionID: executionID(invocation),
		})
		if err != nil {
			p.mu.Lock()
			state.retries++
			p.mu.Unlock()
			log.Warnf("Data exploration for %s failed: %v", file.Name, err)
			emitCodeEvent(ctx, invocation, ch, model.ObjectTypeCodeExecutionResult,
				"Exploration failed: "+err.Error())
			continue
		}
		emitCodeEvent(ctx, invocation, ch, model.ObjectTypeCodeExecutionResult, result.String())
	}
}

// InputFiles returns the data files extracted so far for the invocation.
func (p *CodeExecutionRequestProcessor) InputFiles(invocationID string) []codeexecutor.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	if state, ok := p.perInvocation[invocationID]; ok {
		return state.inputFiles
	}
	return nil
}

func (p *CodeExecutionRequestProcessor) stateFor(invocationID string) *codeExecutionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.perInvocation[invocationID]
	if !ok {
		state = &codeExecutionState{explored: make(map[string]bool)}
		p.perInvocation[invocationID] = state
	}
	return state
}

func explorationCode(filename string) string {
	return strings.Join([]string{
		"import pandas as pd",
		fmt.Sprintf("df = pd.read_csv(%q)", filename),
		"print(df.head())",
		"print(df.dtypes)",
	}, "\n") + "\n"
}

// CodeExecutionResponseProcessor extracts code blocks from the model
// response, executes them and emits code and result events.
type CodeExecutionResponseProcessor struct {
	// Request, when set, supplies the data files extracted during
	// preprocessing.
	Request *CodeExecutionRequestProcessor
}

// NewCodeExecutionResponseProcessor creates a new code execution response processor.
func NewCodeExecutionResponseProcessor(request *CodeExecutionRequestProcessor) *CodeExecutionResponseProcessor {
	return &CodeExecutionResponseProcessor{Request: request}
}

// ProcessResponse implements the flow.ResponseProcessor interface. After a
// successful execution, the original text is cleared so the flow loops back
// to the model with the execution result in history.
func (p *CodeExecutionResponseProcessor) ProcessResponse(
	ctx context.Context,
	invocation *agent.Invocation,
	req *model.Request,
	rsp *model.Response,
	ch chan<- *event.Event,
) {
	if rsp == nil || invocation == nil || rsp.IsPartial || len(rsp.Choices) == 0 {
		return
	}
	executor := executorFor(invocation)
	if executor == nil {
		return
	}

	content := rsp.Choices[0].Message.Content
	codeBlocks := codeexecutor.ExtractCodeBlock(content, executor.CodeBlockDelimiter())
	if len(codeBlocks) == 0 {
		return
	}

	emitCodeEvent(ctx, invocation, ch, model.ObjectTypeCodeExecution, content)

	var inputFiles []codeexecutor.File
	if p.Request != nil {
		inputFiles = p.Request.InputFiles(invocation.InvocationID)
	}

	result, err := executor.ExecuteCode(ctx, codeexecutor.CodeExecutionInput{
		CodeBlocks:  codeBlocks,
		InputFiles:  inputFiles,
		ExecutionID: executionID(invocation),
	})
	if err != nil {
		emitCodeEvent(ctx, invocation, ch, model.ObjectTypeCodeExecutionResult,
			"Code execution failed: "+err.Error())
		return
	}
	emitCodeEvent(ctx, invocation, ch, model.ObjectTypeCodeExecutionResult, result.String())

	// Clear the content so the flow continues the generation loop.
	rsp.Choices[0].Message.Content = ""
}

func executorFor(invocation *agent.Invocation) codeexecutor.CodeExecutor {
	ce, ok := invocation.Agent.(agent.CodeExecutor)
	if !ok || ce == nil {
		return nil
	}
	return ce.CodeExecutor()
}

func executionID(invocation *agent.Invocation) string {
	if invocation.Session != nil {
		return invocation.Session.ID
	}
	return invocation.InvocationID
}

func emitCodeEvent(
	ctx context.Context,
	invocation *agent.Invocation,
	ch chan<- *event.Event,
	object, content string,
) {
	evt := event.New(invocation.InvocationID, invocation.AgentName,
		event.WithBranch(invocation.Branch),
		event.WithObject(object),
		event.WithResponse(&model.Response{
			Object: object,
			Choices: []model.Choice{
				{
					Message: model.Message{Role: model.RoleAssistant, Content: content},
				},
			},
		}))
	if err := agent.EmitEvent(ctx, invocation, ch, evt); err != nil {
		log.Debugf("Code execution processor: context cancelled")
	}
}
