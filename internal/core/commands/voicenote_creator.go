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
// final pipeline command: synthesizing the script into audio and storing it
// as a downloadable voicenote.
//
// Logic Flow:
//  1. It receives the finished script from the previous command and the
//     caller's request from the canonical request key.
//  2. It sends the script text to the text-to-speech vendor, using the
//     caller's voice when one was requested and the configured default voice
//     otherwise.
//  3. It hands the returned audio bytes to the voicenote store, which picks
//     a collision-free filename and writes the file to disk.
//  4. It places a `model.Voicenote` describing the stored file into the
//     context.
//
// The workflow wraps this command in a recovery decorator. Synthesis is the
// one stage the pipeline can survive: when it fails, the caller still gets
// the script, just no audio. Failing here therefore records a normal error
// into the context and lets the decorator downgrade it.
package commands

import (
	goctx "context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/podvox/podvox/internal/core/cor"
	"github.com/podvox/podvox/internal/core/model"
)

// SpeechSynthesizer is the capability this command needs from a
// text-to-speech vendor: turn text into audio bytes with a given voice.
// *vendors.ElevenLabsClient satisfies it.
type SpeechSynthesizer interface {
	Synthesize(ctx goctx.Context, text string, voiceID string) ([]byte, error)
	DefaultVoiceID() string
}

// VoicenoteSink is the capability this command needs from storage: persist
// audio bytes under a unique filename derived from the recipient's name.
// *services.VoicenoteStore satisfies it.
type VoicenoteSink interface {
	Save(audio []byte, displayName string) (filename string, path string, size int64, err error)
}

// VoicenoteCreator is the command that produces the downloadable voicenote.
type VoicenoteCreator struct {
	cor.BaseCommand
	synthesizer      SpeechSynthesizer   // The text-to-speech client, nil when synthesis is not configured.
	sink             VoicenoteSink       // The store that persists the audio file.
	audioByteCounter metric.Int64Counter // OTel counter for synthesized audio bytes.
}

// NewVoicenoteCreator is the constructor for the VoicenoteCreator command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - synthesizer: The text-to-speech client. A nil value is allowed and
//     makes every execution fail with an unconfigured error.
//   - sink: The store that persists synthesized audio.
//
// Outputs:
//   - *VoicenoteCreator: A pointer to the newly instantiated command.
func NewVoicenoteCreator(name string, synthesizer SpeechSynthesizer, sink VoicenoteSink) *VoicenoteCreator {
	out := &VoicenoteCreator{
		BaseCommand: *cor.NewBaseCommand(name),
		synthesizer: synthesizer,
		sink:        sink}

	out.audioByteCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.audio.bytes", out.GetName()))

	return out
}

// IsExecutable checks that the previous stage produced a script and that the
// caller's request is present. It deliberately does not check whether a
// synthesizer is configured: that case must reach Execute so the failure is
// recorded and the recovery decorator can report why audio is missing.
func (t *VoicenoteCreator) IsExecutable(context cor.Context) bool {
	if context == nil || context.Get(GetPipelineRequestParameterName()) == nil {
		return false
	}
	script, ok := context.Get(t.GetInputParam()).(*model.Script)
	return ok && script != nil
}

// Create synthesizes and stores a voicenote outside of a chain execution.
// The standalone synthesis endpoint uses it directly with caller-provided
// text.
//
// Inputs:
//   - ctx: The Go context for the vendor call.
//   - script: The script to speak.
//   - voiceID: The requested voice, or empty for the configured default.
//   - displayName: The recipient's name, used to derive the filename.
//
// Outputs:
//   - *model.Voicenote: A description of the stored audio file.
//   - error: Any failure from synthesis or storage.
func (t *VoicenoteCreator) Create(ctx goctx.Context, script *model.Script, voiceID string, displayName string) (*model.Voicenote, error) {
	if t.synthesizer == nil {
		return nil, errors.New("no speech synthesizer is configured")
	}

	if voiceID == "" {
		voiceID = t.synthesizer.DefaultVoiceID()
	}

	audio, err := t.synthesizer.Synthesize(ctx, script.Text, voiceID)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}

	filename, path, size, err := t.sink.Save(audio, displayName)
	if err != nil {
		return nil, fmt.Errorf("failed to store voicenote audio: %w", err)
	}

	return model.NewVoicenote(filename, path, size, voiceID, script.WordCount), nil
}

// Execute synthesizes the pipeline's script and records the stored file.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (t *VoicenoteCreator) Execute(context cor.Context) {
	script := context.Get(t.GetInputParam()).(*model.Script)
	request := context.Get(GetPipelineRequestParameterName()).(*model.PipelineRequest)

	voicenote, err := t.Create(context.GetContext(), script, request.VoiceID, request.DisplayName)
	if err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), err)
		return
	}

	t.GetSuccessCounter().Add(context.GetContext(), 1)
	t.audioByteCounter.Add(context.GetContext(), voicenote.SizeBytes)
	context.Add(t.GetOutputParam(), voicenote)
	context.Add(cor.CtxOut, voicenote)
}
