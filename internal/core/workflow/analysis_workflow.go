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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements
// the analysis workflow: the first two stages of the voicenote pipeline run
// on their own, for callers who want the mined context without a script or
// audio.
package workflow

import (
	goctx "context"
	"errors"
	"text/template"

	"github.com/podvox/podvox/internal/core/commands"
	"github.com/podvox/podvox/internal/core/cor"
	"github.com/podvox/podvox/internal/core/model"
	"github.com/podvox/podvox/internal/vendors"
)

// AnalysisWorkflow orchestrates the moment search and the content analysis
// of the winning moment, reusing the same two commands as the voicenote
// pipeline.
type AnalysisWorkflow struct {
	cor.BaseCommand
	config           *vendors.Config
	momentSource     commands.MomentSource
	analyzer         commands.RangeAnalyzer
	analysisTemplate *template.Template
	chain            cor.Chain // The underlying chain of commands to be executed.
}

// Execute runs the analysis workflow by invoking the underlying chain. Most
// callers should prefer Run.
//
// Inputs:
//   - context: The chain of responsibility context for this execution.
func (w *AnalysisWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// initializeChain builds the two-command chain. The commands, their stage
// names, and their output keys are identical to the voicenote pipeline's
// first two stages, so timing and error classification work the same way.
func (w *AnalysisWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	finder := commands.NewMomentFinder(StageFindMoments, w.momentSource, w.config.Pipeline.MinClipLength, w.config.Pipeline.WidenQueries)
	finder.BaseCommand.OutputParamName = momentsOutputParamName
	out.AddCommand(finder)

	analyzer := commands.NewContextAnalyzer(StageAnalyze, w.analyzer, w.analysisTemplate)
	analyzer.BaseCommand.OutputParamName = analysisOutputParamName
	out.AddCommand(analyzer)

	w.chain = out
}

// Run executes the search and analysis for one request.
//
// Inputs:
//   - ctx: The Go context carried through the vendor calls.
//   - request: The caller's request. Only MediaURL, Topic, DisplayName, and
//     ExtraQueries are consulted.
//
// Outputs:
//   - *model.ContextAnalysis: The vendor's answer for the best moment.
//   - int: How many moments the search returned.
//   - error: A NoMomentsFoundError or UpstreamServiceError on failure.
func (w *AnalysisWorkflow) Run(ctx goctx.Context, request *model.PipelineRequest) (*model.ContextAnalysis, int, error) {
	req := *request
	if req.DisplayName == "" {
		req.DisplayName = w.config.Pipeline.DefaultDisplayName
	}
	if req.DisplayName == "" {
		req.DisplayName = defaultDisplayName
	}

	corCtx := cor.NewBaseContext()
	defer corCtx.Close()
	corCtx.SetContext(ctx)
	corCtx.Add(commands.GetPipelineRequestParameterName(), &req)

	w.chain.Execute(corCtx)

	for stage, stageErr := range corCtx.GetErrors() {
		return nil, 0, &UpstreamServiceError{Stage: stage, Err: stageErr}
	}

	momentsFound, _ := corCtx.Get(commands.GetMomentCountParameterName()).(int)
	if momentsFound == 0 {
		return nil, 0, &NoMomentsFoundError{Topic: req.Topic, MediaURL: req.MediaURL}
	}

	analysis, _ := corCtx.Get(analysisOutputParamName).(*model.ContextAnalysis)
	if analysis == nil {
		return nil, momentsFound, &UpstreamServiceError{Stage: StageAnalyze, Err: errors.New("pipeline finished without an analysis")}
	}
	return analysis, momentsFound, nil
}

// NewAnalysisWorkflow is the constructor for the AnalysisWorkflow. It
// compiles the analysis prompt template and initializes the command chain.
//
// Inputs:
//   - config: The application's overall configuration.
//   - momentSource: The vendor client used for the moment search.
//   - analyzer: The vendor client used for time-range content analysis.
//
// Outputs:
//   - A pointer to a newly created and fully initialized AnalysisWorkflow.
func NewAnalysisWorkflow(
	config *vendors.Config,
	momentSource commands.MomentSource,
	analyzer commands.RangeAnalyzer) *AnalysisWorkflow {

	analysisTemplate, err := template.New("analysis-template").Parse(config.PromptTemplates.AnalysisPrompt)
	if err != nil {
		panic(err)
	}

	wf := &AnalysisWorkflow{
		BaseCommand:      *cor.NewBaseCommand("analysis-pipeline"),
		config:           config,
		momentSource:     momentSource,
		analyzer:         analyzer,
		analysisTemplate: analysisTemplate,
	}
	wf.initializeChain()
	return wf
}
