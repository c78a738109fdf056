// Copyright 2025 The PODVOX Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command that asks the content-analysis vendor what is actually said in the
// best moment found by the previous stage.
//
// Logic Flow:
//  1. It receives the ranked moment list from the previous command and the
//     caller's request from the canonical request key.
//  2. It takes the first moment only. The vendor returns results ordered by
//     relevance, so the first entry is the best candidate and the remaining
//     moments are deliberately left unused.
//  3. It renders the analysis prompt from a Go template, substituting the
//     topic and the prospect's name, and submits an analysis job restricted
//     to the chosen moment's time range.
//  4. The vendor's answer, a prose summary of what the speakers cover in
//     that range, is placed into the context for the script writer.
package commands

import (
	"bytes"
	goctx "context"
	"fmt"
	"text/template"

	"github.com/podvox/podvox/internal/core/cor"
	"github.com/podvox/podvox/internal/core/model"
)

// RangeAnalyzer is the capability this command needs from a vendor client:
// answer a prompt about a bounded time range of a remote media file.
// *vendors.SieveClient satisfies it.
type RangeAnalyzer interface {
	AnalyzeRange(ctx goctx.Context, query model.AnalysisQuery) (*model.ContextAnalysis, error)
}

// ContextAnalyzer is the command that extracts the conversational context of
// the winning moment.
type ContextAnalyzer struct {
	cor.BaseCommand
	analyzer RangeAnalyzer      // The vendor client that answers the prompt.
	template *template.Template // The Go template for building the analysis prompt.
}

// NewContextAnalyzer is the constructor for the ContextAnalyzer command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - analyzer: The vendor client used to run the time-range analysis.
//   - template: A parsed Go template for the analysis prompt.
//
// Outputs:
//   - *ContextAnalyzer: A pointer to the newly instantiated command.
func NewContextAnalyzer(name string, analyzer RangeAnalyzer, template *template.Template) *ContextAnalyzer {
	return &ContextAnalyzer{
		BaseCommand: *cor.NewBaseCommand(name),
		analyzer:    analyzer,
		template:    template}
}

// GenerateParams creates the map of dynamic data to be injected into the
// analysis prompt template.
//
// Inputs:
//   - request: The caller's pipeline request.
//
// Outputs:
//   - map[string]string: A map of keys and values for template substitution.
func (t *ContextAnalyzer) GenerateParams(request *model.PipelineRequest) map[string]string {
	vocabulary := make(map[string]string)
	vocabulary["TOPIC"] = request.Topic
	vocabulary["PROSPECT_NAME"] = request.DisplayName
	return vocabulary
}

// IsExecutable checks that the previous stage produced at least one moment
// and that the caller's request is present.
func (t *ContextAnalyzer) IsExecutable(context cor.Context) bool {
	if context == nil || context.Get(GetPipelineRequestParameterName()) == nil {
		return false
	}
	moments, ok := context.Get(t.GetInputParam()).([]*model.Moment)
	return ok && len(moments) > 0
}

// Execute submits the analysis job for the best moment's time range.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (t *ContextAnalyzer) Execute(context cor.Context) {
	moments := context.Get(t.GetInputParam()).([]*model.Moment)
	request := context.Get(GetPipelineRequestParameterName()).(*model.PipelineRequest)

	// The search results arrive ranked, so the first moment wins.
	best := moments[0]

	var prompt bytes.Buffer
	if err := t.template.Execute(&prompt, t.GenerateParams(request)); err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), fmt.Errorf("failed to execute analysis prompt template: %w", err))
		return
	}

	analysis, err := t.analyzer.AnalyzeRange(context.GetContext(), model.AnalysisQuery{
		MediaURL:  request.MediaURL,
		Prompt:    prompt.String(),
		StartTime: best.StartTime,
		EndTime:   best.EndTime,
	})
	if err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), fmt.Errorf("context analysis failed: %w", err))
		return
	}

	t.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(t.GetOutputParam(), analysis)
	context.Add(cor.CtxOut, analysis)
}
