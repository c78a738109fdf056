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
// the primary voicenote workflow: four stages that turn a media URL and a
// topic into a personalized, synthesized outreach voicenote.
//
// The stages run as a Chain of Responsibility (cor.Chain):
//
//  1. find-moments: search the media for clips relevant to the topic.
//  2. analyze-context: ask the content vendor what is said in the best clip.
//  3. write-script: have a generative model write the outreach message.
//  4. synthesize-speech: voice the message and store it as a file.
//
// Stages one through three are fail-fast; a vendor error there fails the
// whole run. Stage four is wrapped in a recovery decorator: when synthesis
// fails the run still succeeds and the caller gets the script without audio.
// Each run also produces a per-stage wall-clock breakdown, captured by the
// chain around every command and rounded here so the stage values can never
// sum past the reported total.
package workflow

import (
	goctx "context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"text/template"
	"time"

	"github.com/podvox/podvox/internal/core/commands"
	"github.com/podvox/podvox/internal/core/cor"
	"github.com/podvox/podvox/internal/core/model"
	"github.com/podvox/podvox/internal/vendors"
)

// Stage names. They name the chain commands, key the captured timings, and
// identify the failing stage in UpstreamServiceError.
const (
	StageFindMoments = "find-moments"
	StageAnalyze     = "analyze-context"
	StageWriteScript = "write-script"
	StageSynthesize  = "synthesize-speech"
)

// Context keys for the named outputs of each stage. The workflow reads these
// after the chain finishes, so they live at file scope rather than inside
// the chain builder.
const (
	momentsOutputParamName   = "__moments_output__"
	analysisOutputParamName  = "__analysis_output__"
	scriptOutputParamName    = "__script_output__"
	voicenoteOutputParamName = "__voicenote_output__"
	synthesisNoteParamName   = "__synthesis_note__"
)

// defaultDisplayName is the prospect placeholder used when neither the
// request nor the configuration provides a name.
const defaultDisplayName = "there"

// VoicenoteWorkflow orchestrates the entire process of mining a podcast for
// a topic and producing a personalized voicenote. It is structured as a
// Chain of Responsibility (cor.Chain) executing the four stage commands in
// order, and is itself a Command so it can be composed into larger chains.
type VoicenoteWorkflow struct {
	cor.BaseCommand
	config           *vendors.Config
	momentSource     commands.MomentSource
	analyzer         commands.RangeAnalyzer
	scriptModel      commands.ScriptModel
	synthesizer      commands.SpeechSynthesizer
	sink             commands.VoicenoteSink
	analysisTemplate *template.Template
	scriptTemplate   *template.Template
	chain            cor.Chain // The underlying chain of commands to be executed.
}

// Execute runs the voicenote workflow by invoking the underlying chain. Most
// callers should prefer Run, which also builds the context and interprets
// the outcome.
//
// Inputs:
//   - context: The chain of responsibility context for this execution.
func (w *VoicenoteWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// initializeChain builds the sequence of commands that make up this
// workflow. Each command reads the caller's request from the canonical
// request key, and the output of each stage feeds the next through the
// chain's piping. This method is called by the constructor.
func (w *VoicenoteWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	// Stage 1: Search the media for moments relevant to the topic. The
	// command records the result count separately from the result list, so
	// Run can tell an empty search apart from a stage that never ran.
	finder := commands.NewMomentFinder(StageFindMoments, w.momentSource, w.config.Pipeline.MinClipLength, w.config.Pipeline.WidenQueries)
	finder.BaseCommand.OutputParamName = momentsOutputParamName
	out.AddCommand(finder)

	// Stage 2: Ask the vendor what is said in the best moment's time range.
	// The command only ever looks at the first moment of the ranked list.
	analyzer := commands.NewContextAnalyzer(StageAnalyze, w.analyzer, w.analysisTemplate)
	analyzer.BaseCommand.OutputParamName = analysisOutputParamName
	out.AddCommand(analyzer)

	// Stage 3: Write the outreach script. The system prompt travels with
	// the selected model's configuration so alternate models can carry
	// alternate personas.
	agent := w.config.ScriptModels[w.config.Pipeline.Agent]
	writer := commands.NewScriptWriter(
		StageWriteScript,
		w.scriptModel,
		agent.SystemInstructions,
		w.scriptTemplate,
		w.config.Pipeline.TargetLengthSeconds,
		w.config.Pipeline.Tone)
	writer.BaseCommand.OutputParamName = scriptOutputParamName
	out.AddCommand(writer)

	// Stage 4: Voice the script and store the audio. The recovery wrapper
	// absorbs any failure here into a note so the chain still ends clean
	// and the caller gets a script-only result.
	creator := commands.NewVoicenoteCreator(StageSynthesize, w.synthesizer, w.sink)
	creator.BaseCommand.OutputParamName = voicenoteOutputParamName
	out.AddCommand(cor.NewRecoverableCommand(creator, synthesisNoteParamName))

	w.chain = out
}

// Run executes the full pipeline for one request and interprets the chain's
// final state into either a result or a taxonomy error.
//
// Inputs:
//   - ctx: The Go context carried through every vendor call.
//   - request: The caller's pipeline request. MediaURL and Topic must be
//     set; the other fields default from configuration.
//
// Outputs:
//   - *model.PipelineResult: The aggregate outcome, including stage timing,
//     when the run produced a script.
//   - error: A NoMomentsFoundError or UpstreamServiceError when it did not.
func (w *VoicenoteWorkflow) Run(ctx goctx.Context, request *model.PipelineRequest) (*model.PipelineResult, error) {
	// Work on a copy so default filling never mutates the caller's value.
	req := *request
	if req.DisplayName == "" {
		req.DisplayName = w.config.Pipeline.DefaultDisplayName
	}
	if req.DisplayName == "" {
		req.DisplayName = defaultDisplayName
	}

	startTime := time.Now()

	corCtx := cor.NewBaseContext()
	defer corCtx.Close()
	corCtx.SetContext(ctx)
	corCtx.Add(commands.GetPipelineRequestParameterName(), &req)

	w.chain.Execute(corCtx)

	total := time.Since(startTime).Seconds()

	// Stage values round down and the total rounds up, so the breakdown can
	// never claim more time than the run took.
	timings := corCtx.GetTimings()
	stageTimes := model.StageTimes{
		FindMoments: floorSeconds(timings[StageFindMoments]),
		Analyze:     floorSeconds(timings[StageAnalyze]),
		WriteScript: floorSeconds(timings[StageWriteScript]),
		Synthesize:  floorSeconds(timings[StageSynthesize]),
		Total:       ceilSeconds(total),
	}

	// The chain is fail-fast, so at most one stage recorded an error, and
	// stage four's errors were already absorbed by the recovery wrapper.
	for stage, stageErr := range corCtx.GetErrors() {
		return nil, &UpstreamServiceError{Stage: stage, Err: stageErr}
	}

	momentsFound, _ := corCtx.Get(commands.GetMomentCountParameterName()).(int)
	if momentsFound == 0 {
		return nil, &NoMomentsFoundError{Topic: req.Topic, MediaURL: req.MediaURL}
	}

	moments, _ := corCtx.Get(momentsOutputParamName).([]*model.Moment)
	analysis, _ := corCtx.Get(analysisOutputParamName).(*model.ContextAnalysis)
	script, _ := corCtx.Get(scriptOutputParamName).(*model.Script)
	if len(moments) == 0 || analysis == nil || script == nil {
		return nil, &UpstreamServiceError{Stage: StageWriteScript, Err: errors.New("pipeline finished without a script")}
	}

	processingLog := make([]string, 0, 4)
	processingLog = append(processingLog,
		fmt.Sprintf("found %d moments, best runs %.1fs to %.1fs", momentsFound, moments[0].StartTime, moments[0].EndTime),
		fmt.Sprintf("analyzed context with backend %q", analysis.Backend),
		fmt.Sprintf("wrote %d-word script", script.WordCount))

	voicenote, _ := corCtx.Get(voicenoteOutputParamName).(*model.Voicenote)
	if voicenote != nil {
		processingLog = append(processingLog,
			fmt.Sprintf("synthesized voicenote %s, estimated %.1fs of audio", voicenote.Filename, voicenote.DurationEstimateSeconds))
	} else {
		synthErr := &SynthesisUnavailableError{}
		if note, ok := corCtx.Get(synthesisNoteParamName).(error); ok {
			synthErr.Err = note
		}
		slog.Warn("voicenote degraded to script-only result",
			"topic", req.Topic,
			"reason", synthErr.Error())
		processingLog = append(processingLog, fmt.Sprintf("voicenote skipped: %v", synthErr))
	}

	return &model.PipelineResult{
		Success:         true,
		Script:          script.Text,
		ScriptWordCount: script.WordCount,
		MomentsFound:    momentsFound,
		StageTimes:      stageTimes,
		ProcessingLog:   processingLog,
		Voicenote:       voicenote,
	}, nil
}

// floorSeconds rounds a stage duration down to two decimal places.
func floorSeconds(seconds float64) float64 {
	return math.Floor(seconds*100) / 100
}

// ceilSeconds rounds the total duration up to two decimal places.
func ceilSeconds(seconds float64) float64 {
	return math.Ceil(seconds*100) / 100
}

// NewVoicenotePipeline is the constructor for the VoicenoteWorkflow. It
// compiles the prompt templates, wires the four stage commands to the given
// capability implementations, and initializes the command chain.
//
// Inputs:
//   - config: The application's overall configuration.
//   - momentSource: The vendor client used for the moment search.
//   - analyzer: The vendor client used for time-range content analysis.
//   - scriptModel: The rate-limited generative model that writes scripts.
//   - synthesizer: The text-to-speech client. May be nil, in which case
//     every run degrades to a script-only result.
//   - sink: The store that persists synthesized audio files.
//
// Outputs:
//   - A pointer to a newly created and fully initialized VoicenoteWorkflow.
func NewVoicenotePipeline(
	config *vendors.Config,
	momentSource commands.MomentSource,
	analyzer commands.RangeAnalyzer,
	scriptModel commands.ScriptModel,
	synthesizer commands.SpeechSynthesizer,
	sink commands.VoicenoteSink) *VoicenoteWorkflow {

	// Parse the analysis prompt template from the configuration file.
	analysisTemplate, err := template.New("analysis-template").Parse(config.PromptTemplates.AnalysisPrompt)
	if err != nil {
		panic(err) // Panic on failure, as the app cannot run without valid templates.
	}
	// Parse the script user prompt template.
	scriptTemplate, err := template.New("script-template").Parse(config.PromptTemplates.ScriptUserPrompt)
	if err != nil {
		panic(err)
	}

	pipeline := &VoicenoteWorkflow{
		BaseCommand:      *cor.NewBaseCommand("voicenote-pipeline"),
		config:           config,
		momentSource:     momentSource,
		analyzer:         analyzer,
		scriptModel:      scriptModel,
		synthesizer:      synthesizer,
		sink:             sink,
		analysisTemplate: analysisTemplate,
		scriptTemplate:   scriptTemplate,
	}
	// Build the command chain for the new pipeline instance.
	pipeline.initializeChain()
	return pipeline
}
