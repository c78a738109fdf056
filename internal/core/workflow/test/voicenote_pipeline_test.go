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

package workflow_test

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/podvox/podvox/internal/core/model"
	"github.com/podvox/podvox/internal/core/workflow"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"
)

// TestVoicenotePipelineProducesVoicenote runs the full four-stage pipeline
// against the happy-path stubs and verifies the complete contract: what each
// stage received, what the aggregate result reports, and that the audio file
// really landed on disk.
func TestVoicenotePipelineProducesVoicenote(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "voicenote-pipeline-test")
	defer span.End()

	stubs := newHappyPathStubs()
	pipeline := newVoicenotePipeline(t, stubs)

	request := &model.PipelineRequest{
		MediaURL:    "https://cdn.example.com/episodes/42.mp3",
		Topic:       "founder led sales",
		DisplayName: "Jordan",
		PodcastName: "The Startup Pod",
	}
	result, err := pipeline.Run(traceCtx, request)

	// Validate the aggregate outcome.
	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.MomentsFound)

	// The model's wrapping quotes must be stripped before the script is used.
	assert.False(t, strings.HasPrefix(result.Script, `"`))
	assert.False(t, strings.HasSuffix(result.Script, `"`))
	assert.Equal(t, len(strings.Fields(result.Script)), result.ScriptWordCount)

	// Stage 1 searched the requested media, leading with the literal topic
	// and following with the configured widening phrase.
	assert.Equal(t, request.MediaURL, stubs.source.lastQuery.MediaURL)
	assert.Equal(t, config.Pipeline.MinClipLength, stubs.source.lastQuery.MinClipLength)
	if assert.Len(t, stubs.source.lastQuery.Queries, 2) {
		assert.Equal(t, "founder led sales", stubs.source.lastQuery.Queries[0])
		assert.Equal(t, "discussion about founder led sales", stubs.source.lastQuery.Queries[1])
	}

	// Stage 2 analyzed exactly the best-ranked moment's range with a prompt
	// personalized from the request.
	best := stubs.source.moments[0]
	assert.Equal(t, request.MediaURL, stubs.analyzer.lastQuery.MediaURL)
	assert.Equal(t, best.StartTime, stubs.analyzer.lastQuery.StartTime)
	assert.Equal(t, best.EndTime, stubs.analyzer.lastQuery.EndTime)
	assert.Contains(t, stubs.analyzer.lastQuery.Prompt, "founder led sales")
	assert.Contains(t, stubs.analyzer.lastQuery.Prompt, "Jordan")

	// Stage 3 received the configured persona and the mined context.
	assert.Equal(t, config.ScriptModels[config.Pipeline.Agent].SystemInstructions, stubs.scriptModel.lastSystem)
	assert.Contains(t, stubs.scriptModel.lastUser, "Jordan")
	assert.Contains(t, stubs.scriptModel.lastUser, "The Startup Pod")
	assert.Contains(t, stubs.scriptModel.lastUser, stubs.analyzer.analysis.Answer)

	// Stage 4 spoke the cleaned script with the synthesizer's default voice.
	assert.Equal(t, result.Script, stubs.synthesizer.lastText)
	assert.Equal(t, "test-voice", stubs.synthesizer.lastVoice)

	// The voicenote record points at a real file holding the stub audio.
	if assert.NotNil(t, result.Voicenote) {
		assert.True(t, strings.HasPrefix(result.Voicenote.Filename, "voicenote_jordan_"))
		assert.Equal(t, int64(len(stubs.synthesizer.audio)), result.Voicenote.SizeBytes)
		assert.Equal(t, "test-voice", result.Voicenote.VoiceID)
		written, readErr := os.ReadFile(result.Voicenote.Path)
		assert.NoError(t, readErr)
		assert.Equal(t, stubs.synthesizer.audio, written)
	}

	// The stage breakdown never claims more time than the whole run took.
	times := result.StageTimes
	assert.Positive(t, times.Total)
	stageSum := times.FindMoments + times.Analyze + times.WriteScript + times.Synthesize
	assert.LessOrEqual(t, stageSum, times.Total)

	// The processing log records one line per stage, in stage order.
	if assert.Len(t, result.ProcessingLog, 4) {
		assert.Equal(t, "found 2 moments, best runs 10.0s to 20.0s", result.ProcessingLog[0])
		assert.Equal(t, `analyzed context with backend "sieve-contextual"`, result.ProcessingLog[1])
		assert.Equal(t, fmt.Sprintf("wrote %d-word script", result.ScriptWordCount), result.ProcessingLog[2])
		assert.True(t, strings.HasPrefix(result.ProcessingLog[3], "synthesized voicenote "))
	}

	span.SetStatus(codes.Ok, "passed - voicenote-pipeline-test")
}

// TestVoicenotePipelineDegradesWhenSynthesisFails verifies the graceful
// degradation contract: a synthesis failure never fails the run. The caller
// still gets a successful script-only result, and the processing log says
// why the audio is missing.
func TestVoicenotePipelineDegradesWhenSynthesisFails(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "voicenote-degraded-test")
	defer span.End()

	stubs := newHappyPathStubs()
	stubs.synthesizer.err = errors.New("voice service melted down")
	pipeline := newVoicenotePipeline(t, stubs)

	result, err := pipeline.Run(traceCtx, &model.PipelineRequest{
		MediaURL:    "https://cdn.example.com/episodes/42.mp3",
		Topic:       "founder led sales",
		DisplayName: "Jordan",
	})

	// The run still succeeds, just without audio.
	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Nil(t, result.Voicenote)
	assert.NotEmpty(t, result.Script)

	// The synthesis stage ran and the log explains the degradation.
	if assert.Len(t, result.ProcessingLog, 4) {
		assert.True(t, strings.HasPrefix(result.ProcessingLog[3], "voicenote skipped:"))
		assert.Contains(t, result.ProcessingLog[3], "voice service melted down")
	}

	span.SetStatus(codes.Ok, "passed - voicenote-degraded-test")
}

// TestVoicenotePipelineDegradesWithoutSynthesizer verifies that a pipeline
// built with no speech synthesizer at all still produces script-only
// results instead of failing.
func TestVoicenotePipelineDegradesWithoutSynthesizer(t *testing.T) {
	stubs := newHappyPathStubs()
	stubs.synthesizer = nil
	pipeline := newVoicenotePipeline(t, stubs)

	result, err := pipeline.Run(ctx, &model.PipelineRequest{
		MediaURL: "https://cdn.example.com/episodes/42.mp3",
		Topic:    "founder led sales",
	})

	// Script-only success, with the missing synthesizer called out.
	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Nil(t, result.Voicenote)
	if assert.Len(t, result.ProcessingLog, 4) {
		assert.Contains(t, result.ProcessingLog[3], "no speech synthesizer")
	}
}

// TestVoicenotePipelineNoMomentsFound verifies that an empty search result
// stops the run at stage one with the dedicated error type, and that the
// later stages never execute.
func TestVoicenotePipelineNoMomentsFound(t *testing.T) {
	stubs := newHappyPathStubs()
	stubs.source.moments = nil
	pipeline := newVoicenotePipeline(t, stubs)

	result, err := pipeline.Run(ctx, &model.PipelineRequest{
		MediaURL: "https://cdn.example.com/episodes/42.mp3",
		Topic:    "obscure topic nobody discussed",
	})

	// The failure carries the topic so the transport layer can report it.
	assert.Nil(t, result)
	assert.True(t, workflow.IsNoMomentsFound(err))
	assert.False(t, workflow.IsUpstreamServiceError(err))
	var notFound *workflow.NoMomentsFoundError
	if assert.ErrorAs(t, err, &notFound) {
		assert.Equal(t, "obscure topic nobody discussed", notFound.Topic)
	}

	// Nothing past stage one ran.
	assert.Empty(t, stubs.analyzer.lastQuery.MediaURL)
	assert.Empty(t, stubs.scriptModel.lastUser)
	assert.Empty(t, stubs.synthesizer.lastText)
}

// TestVoicenotePipelineUpstreamFailureInSearch verifies that a vendor error
// during the moment search fails the whole run and is attributed to the
// first stage.
func TestVoicenotePipelineUpstreamFailureInSearch(t *testing.T) {
	stubs := newHappyPathStubs()
	stubs.source.err = errors.New("vendor outage")
	pipeline := newVoicenotePipeline(t, stubs)

	result, err := pipeline.Run(ctx, &model.PipelineRequest{
		MediaURL: "https://cdn.example.com/episodes/42.mp3",
		Topic:    "founder led sales",
	})

	// First-stage failures are fail-fast and name the stage.
	assert.Nil(t, result)
	assert.True(t, workflow.IsUpstreamServiceError(err))
	assert.False(t, workflow.IsNoMomentsFound(err))
	var upstream *workflow.UpstreamServiceError
	if assert.ErrorAs(t, err, &upstream) {
		assert.Equal(t, workflow.StageFindMoments, upstream.Stage)
	}
	assert.ErrorContains(t, err, "vendor outage")
}

// TestVoicenotePipelineUpstreamFailureInAnalysis verifies that a vendor
// error during content analysis is attributed to the second stage and that
// the script model and synthesizer are never consulted.
func TestVoicenotePipelineUpstreamFailureInAnalysis(t *testing.T) {
	stubs := newHappyPathStubs()
	stubs.analyzer.analysis = nil
	stubs.analyzer.err = errors.New("ask backend crashed")
	pipeline := newVoicenotePipeline(t, stubs)

	result, err := pipeline.Run(ctx, &model.PipelineRequest{
		MediaURL: "https://cdn.example.com/episodes/42.mp3",
		Topic:    "founder led sales",
	})

	// Second-stage failures also fail the run, attributed to analysis.
	assert.Nil(t, result)
	var upstream *workflow.UpstreamServiceError
	if assert.ErrorAs(t, err, &upstream) {
		assert.Equal(t, workflow.StageAnalyze, upstream.Stage)
	}
	assert.ErrorContains(t, err, "ask backend crashed")

	// The fail-fast chain skipped the remaining stages.
	assert.Empty(t, stubs.scriptModel.lastUser)
	assert.Empty(t, stubs.synthesizer.lastText)
}

// TestVoicenotePipelineDefaultsDisplayName verifies the prospect-name
// default: when the caller omits a display name the configured placeholder
// flows into the prompts and the output filename, and the caller's request
// value is never mutated.
func TestVoicenotePipelineDefaultsDisplayName(t *testing.T) {
	stubs := newHappyPathStubs()
	pipeline := newVoicenotePipeline(t, stubs)

	request := &model.PipelineRequest{
		MediaURL: "https://cdn.example.com/episodes/42.mp3",
		Topic:    "founder led sales",
	}
	result, err := pipeline.Run(ctx, request)

	assert.NoError(t, err)
	// The placeholder reached both rendered prompts.
	assert.Contains(t, stubs.analyzer.lastQuery.Prompt, "to there, the speaker")
	assert.Contains(t, stubs.scriptModel.lastUser, "Prospect Name: there")
	// And it named the output file.
	if assert.NotNil(t, result.Voicenote) {
		assert.True(t, strings.HasPrefix(result.Voicenote.Filename, "voicenote_there_"))
	}
	// The caller's request still has no display name.
	assert.Empty(t, request.DisplayName)
}

// TestVoicenotePipelineConcurrentRunsGetDistinctFilenames runs two pipelines
// against the same store at the same time and verifies the stored filenames
// never collide, even for the same prospect within the same clock second.
func TestVoicenotePipelineConcurrentRunsGetDistinctFilenames(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	results := make(chan *model.PipelineResult, 2)
	errs := make(chan error, 2)

	for i := 0; i < 2; i++ {
		stubs := newHappyPathStubs()
		pipeline := workflow.NewVoicenotePipeline(config, stubs.source, stubs.analyzer, stubs.scriptModel, stubs.synthesizer, store)
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := pipeline.Run(ctx, &model.PipelineRequest{
				MediaURL:    "https://cdn.example.com/episodes/42.mp3",
				Topic:       "founder led sales",
				DisplayName: "Jordan",
			})
			results <- result
			errs <- err
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	// Same prospect, same second, still two distinct files.
	filenames := make(map[string]bool)
	for result := range results {
		if assert.NotNil(t, result.Voicenote) {
			filenames[result.Voicenote.Filename] = true
		}
	}
	assert.Len(t, filenames, 2)
}
