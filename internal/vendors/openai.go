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
// This file implements the default script-writing backend on the official
// OpenAI Go SDK (chat completions). The adapter keeps the SDK types at this
// boundary; the rest of the system only sees the ScriptBackend interface.
package vendors

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIScriptBackend implements ScriptBackend using the OpenAI chat
// completions API. A BaseURL override allows pointing the same adapter at
// any OpenAI-compatible gateway.
type OpenAIScriptBackend struct {
	client      openai.Client // The SDK client, safe for concurrent use.
	model       string        // Vendor model name, e.g. "gpt-4".
	temperature float64       // Sampling temperature, fixed per configuration.
	maxTokens   int64         // Upper bound on generated tokens.
}

// NewOpenAIScriptBackend is the constructor for OpenAIScriptBackend.
//
// Inputs:
//   - config: the script model configuration holding the credential, model
//     name, and generation parameters.
//
// Outputs:
//   - *OpenAIScriptBackend: the initialized adapter.
//   - error: an error when the configuration is unusable.
func NewOpenAIScriptBackend(config ScriptModelConfig) (*OpenAIScriptBackend, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai api key missing; provide script_models api_key")
	}
	if config.Model == "" {
		return nil, errors.New("script model name is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return &OpenAIScriptBackend{
		client:      openai.NewClient(opts...),
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
	}, nil
}

// Generate produces one chat completion from a system instruction and a
// user message.
//
// Inputs:
//   - ctx: The context for the request, which controls cancellation and tracing.
//   - system: The system instruction establishing the writing persona.
//   - user: The user message carrying the prospect name and podcast context.
//
// Outputs:
//   - string: The completion text.
//   - error: An error if the request fails or the vendor returns no choices.
func (b *OpenAIScriptBackend) Generate(ctx context.Context, system string, user string) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(b.temperature),
		MaxTokens:   openai.Int(b.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Close satisfies ScriptBackend. The SDK client holds no connection state
// that needs explicit shutdown.
func (b *OpenAIScriptBackend) Close() error {
	return nil
}
