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
// command that turns the analyzed podcast context into a short, speakable
// outreach script.
//
// Logic Flow:
//  1. It receives the context analysis from the previous command and the
//     caller's request from the canonical request key.
//  2. It renders the user prompt from a Go template, substituting the
//     prospect's name, the podcast name, and the analyzed context.
//  3. It sends the configured system instructions and the rendered user
//     prompt to the generative model through its rate-limited wrapper.
//  4. The model's reply is cleaned up (surrounding whitespace and wrapping
//     quotes removed, since chat models like to quote the message they were
//     asked to write) and packaged as a `model.Script` for the synthesizer.
package commands

import (
	"bytes"
	goctx "context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/podvox/podvox/internal/core/cor"
	"github.com/podvox/podvox/internal/core/model"
)

// ScriptModel is the capability this command needs from a generative model:
// produce one completion for a system prompt and a user prompt.
// *vendors.QuotaAwareScriptModel satisfies it.
type ScriptModel interface {
	Generate(ctx goctx.Context, system string, user string) (string, error)
}

// ScriptWriter is the command that writes the outreach script.
type ScriptWriter struct {
	cor.BaseCommand
	model              ScriptModel        // The rate-limited generative model client.
	systemInstructions string             // The persona and constraints for the model, from configuration.
	template           *template.Template // The Go template for building the user prompt.
	targetLength       int                // The intended spoken length of the script, in seconds.
	tone               string             // The delivery tone recorded on the resulting script.
}

// NewScriptWriter is the constructor for the ScriptWriter command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - scriptModel: The rate-limited wrapper for the generative model client.
//   - systemInstructions: The system prompt establishing the outreach persona.
//   - template: A parsed Go template for the user prompt.
//   - targetLength: The intended spoken length of the script, in seconds.
//   - tone: The delivery tone recorded on the resulting script.
//
// Outputs:
//   - *ScriptWriter: A pointer to the newly instantiated command.
func NewScriptWriter(
	name string,
	scriptModel ScriptModel,
	systemInstructions string,
	template *template.Template,
	targetLength int,
	tone string) *ScriptWriter {

	return &ScriptWriter{
		BaseCommand:        *cor.NewBaseCommand(name),
		model:              scriptModel,
		systemInstructions: systemInstructions,
		template:           template,
		targetLength:       targetLength,
		tone:               tone}
}

// IsExecutable checks that the previous stage produced a context analysis
// and that the caller's request is present.
func (t *ScriptWriter) IsExecutable(context cor.Context) bool {
	if context == nil || context.Get(GetPipelineRequestParameterName()) == nil {
		return false
	}
	analysis, ok := context.Get(t.GetInputParam()).(*model.ContextAnalysis)
	return ok && analysis != nil
}

// Write generates a script outside of a chain execution. The standalone
// script endpoint uses it directly with caller-provided context.
//
// Inputs:
//   - ctx: The Go context for the model call.
//   - displayName: The prospect's name, substituted into the user prompt.
//   - podcastName: The podcast's name, substituted into the user prompt.
//   - podcastContext: The analyzed conversational context to reference.
//
// Outputs:
//   - *model.Script: The cleaned script with its word count and metadata.
//   - error: Any failure from template rendering or the model call.
func (t *ScriptWriter) Write(ctx goctx.Context, displayName string, podcastName string, podcastContext string) (*model.Script, error) {
	vocabulary := make(map[string]string)
	vocabulary["PROSPECT_NAME"] = displayName
	vocabulary["PODCAST_NAME"] = podcastName
	vocabulary["PODCAST_CONTEXT"] = podcastContext

	var prompt bytes.Buffer
	if err := t.template.Execute(&prompt, vocabulary); err != nil {
		return nil, fmt.Errorf("failed to execute script prompt template: %w", err)
	}

	text, err := t.model.Generate(ctx, t.systemInstructions, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("script generation failed: %w", err)
	}

	// Models regularly wrap the requested message in quotation marks.
	// Those would be read aloud by the synthesizer, so strip them.
	text = strings.Trim(strings.TrimSpace(text), `"`)
	if len(text) == 0 {
		return nil, errors.New("model returned an empty script")
	}

	return model.NewScript(text, t.tone, t.targetLength), nil
}

// Execute renders the prompt and writes the script for the pipeline run.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (t *ScriptWriter) Execute(context cor.Context) {
	analysis := context.Get(t.GetInputParam()).(*model.ContextAnalysis)
	request := context.Get(GetPipelineRequestParameterName()).(*model.PipelineRequest)

	script, err := t.Write(context.GetContext(), request.DisplayName, request.PodcastName, analysis.Answer)
	if err != nil {
		t.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(t.GetName(), err)
		return
	}

	t.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(t.GetOutputParam(), script)
	context.Add(cor.CtxOut, script)
}
