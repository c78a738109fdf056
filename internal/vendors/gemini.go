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

// Package vendors provides the external service clients and configuration.
// This file implements the alternate script-writing backend on Google's
// generative AI SDK, authenticated with a plain API key. Selecting it is a
// configuration change only; the pipeline sees the same ScriptBackend
// interface either way.
package vendors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiScriptBackend implements ScriptBackend using a Gemini model. The
// system instruction is attached to the model handle once at construction;
// Generate only sends the user message.
type GeminiScriptBackend struct {
	client *genai.Client          // The SDK client, closed by Close.
	model  *genai.GenerativeModel // The configured model handle.
}

// NewGeminiScriptBackend is the constructor for GeminiScriptBackend. It
// builds the SDK client and applies the configured generation parameters to
// the model handle.
//
// Inputs:
//   - ctx: The context governing client construction.
//   - config: the script model configuration holding the credential, model
//     name, and generation parameters.
//
// Outputs:
//   - *GeminiScriptBackend: the initialized adapter.
//   - error: an error when the configuration is unusable or the client
//     cannot be constructed.
func NewGeminiScriptBackend(ctx context.Context, config ScriptModelConfig) (*GeminiScriptBackend, error) {
	if config.APIKey == "" {
		return nil, errors.New("gemini api key missing; provide script_models api_key")
	}
	if config.Model == "" {
		return nil, errors.New("script model name is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := client.GenerativeModel(config.Model)
	model.SetTemperature(float32(config.Temperature))
	model.SetMaxOutputTokens(int32(config.MaxTokens))
	if config.SystemInstructions != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(config.SystemInstructions)},
		}
	}

	return &GeminiScriptBackend{client: client, model: model}, nil
}

// Generate produces one completion for the user message. The system
// parameter is accepted for interface compatibility; when it differs from
// the instruction configured on the model handle it is prepended to the
// user message so the intent is preserved.
//
// Inputs:
//   - ctx: The context for the request.
//   - system: The system instruction establishing the writing persona.
//   - user: The user message carrying the prospect name and podcast context.
//
// Outputs:
//   - string: The concatenated text content from the model's response.
//   - error: An error if the request fails or returns no candidates.
func (b *GeminiScriptBackend) Generate(ctx context.Context, system string, user string) (string, error) {
	prompt := user
	if system != "" && b.model.SystemInstruction == nil {
		prompt = system + "\n\n" + user
	}

	resp, err := b.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("content generation failed: %w", err)
	}

	// The response can have multiple candidates; concatenate the text parts
	// of each.
	var value strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				value.WriteString(string(text))
			}
		}
	}
	if value.Len() == 0 {
		return "", errors.New("content generation returned no text candidates")
	}
	return value.String(), nil
}

// Close shuts down the underlying SDK client.
func (b *GeminiScriptBackend) Close() error {
	return b.client.Close()
}
