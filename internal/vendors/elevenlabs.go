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
// This file implements the client for the text-to-speech vendor. Synthesis
// is a single POST that streams back raw audio bytes; two small read-only
// endpoints expose the available voices. The entire capability is optional:
// when no credential is configured the client is never constructed and the
// pipeline falls back to script-only results.
package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/podvox/podvox/internal/core/model"
)

// Defaults applied when the configuration leaves a knob unset. The voice
// settings mirror the values the service has always synthesized with.
const (
	defaultSpeechBaseURL   = "https://api.elevenlabs.io/v1"
	defaultSpeechModelID   = "eleven_monolingual_v1"
	defaultOutputFormat    = "mp3"
	defaultStability       = 0.5
	defaultSimilarityBoost = 0.8
)

// ElevenLabsClient talks to the text-to-speech REST API. It is safe for
// concurrent use; all state is immutable after construction.
type ElevenLabsClient struct {
	baseURL       string        // API root without a trailing slash.
	apiKey        string        // Sent in the xi-api-key header on every call.
	voiceID       string        // Default voice when the caller does not pick one.
	modelID       string        // Vendor TTS model identifier.
	outputFormat  string        // File extension for the produced audio.
	voiceSettings voiceSettings // Fixed synthesis settings.
	httpClient    *http.Client  // Owns the per-request timeout.
}

// voiceSettings is the wire shape of the vendor's synthesis tuning block.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// synthesizeRequest is the wire shape of a text-to-speech call.
type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// NewElevenLabsClient is the constructor for ElevenLabsClient. It returns
// an error when the credential or default voice is missing, which callers
// treat as "synthesis not configured" rather than a fatal condition.
//
// Inputs:
//   - config: the vendor connection and voice settings.
//
// Outputs:
//   - *ElevenLabsClient: the initialized client.
//   - error: an error when the configuration is incomplete.
func NewElevenLabsClient(config SpeechConfig) (*ElevenLabsClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("speech api key missing")
	}
	if config.VoiceID == "" {
		return nil, errors.New("speech voice_id missing")
	}
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultSpeechBaseURL
	}
	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultSpeechModelID
	}
	outputFormat := strings.TrimPrefix(config.OutputFormat, ".")
	if outputFormat == "" {
		outputFormat = defaultOutputFormat
	}
	settings := voiceSettings{
		Stability:       config.Stability,
		SimilarityBoost: config.SimilarityBoost,
		Style:           config.Style,
		UseSpeakerBoost: config.UseSpeakerBoost,
	}
	if settings.Stability == 0 {
		settings.Stability = defaultStability
	}
	if settings.SimilarityBoost == 0 {
		settings.SimilarityBoost = defaultSimilarityBoost
	}
	requestTimeout := config.RequestTimeout
	if requestTimeout <= 0 {
		// Synthesis of a full script takes longer than a metadata call.
		requestTimeout = 120
	}
	return &ElevenLabsClient{
		baseURL:       baseURL,
		apiKey:        config.APIKey,
		voiceID:       config.VoiceID,
		modelID:       modelID,
		outputFormat:  outputFormat,
		voiceSettings: settings,
		httpClient:    &http.Client{Timeout: time.Duration(requestTimeout) * time.Second},
	}, nil
}

// DefaultVoiceID returns the voice used when a request does not pick one.
func (c *ElevenLabsClient) DefaultVoiceID() string {
	return c.voiceID
}

// OutputFormat returns the file extension of the audio the client produces.
func (c *ElevenLabsClient) OutputFormat() string {
	return c.outputFormat
}

// Synthesize converts text to speech and returns the raw audio bytes.
//
// Inputs:
//   - ctx: The context for the request.
//   - text: The script text to speak.
//   - voiceID: The voice to synthesize with. Empty selects the default.
//
// Outputs:
//   - []byte: the audio payload, typically MPEG.
//   - error: an error if the request fails or the vendor rejects it.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("cannot synthesize empty text")
	}
	if voiceID == "" {
		voiceID = c.voiceID
	}

	payload, err := json.Marshal(synthesizeRequest{
		Text:          text,
		ModelID:       c.modelID,
		VoiceSettings: c.voiceSettings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text-to-speech/"+voiceID, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesis request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("synthesis returned status %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("synthesis returned an empty audio payload")
	}
	return audio, nil
}

// voicesResponse is the wire shape of the voice listing endpoint.
type voicesResponse struct {
	Voices []*model.Voice `json:"voices"`
}

// ListVoices returns every voice the account can synthesize with.
//
// Inputs:
//   - ctx: The context for the request.
//
// Outputs:
//   - []*model.Voice: the available voices.
//   - error: an error if the request fails.
func (c *ElevenLabsClient) ListVoices(ctx context.Context) ([]*model.Voice, error) {
	var listed voicesResponse
	if err := c.getJSON(ctx, "/voices", &listed); err != nil {
		return nil, err
	}
	return listed.Voices, nil
}

// GetVoice returns the metadata for a single voice.
//
// Inputs:
//   - ctx: The context for the request.
//   - voiceID: The vendor identifier of the voice. Empty selects the default.
//
// Outputs:
//   - *model.Voice: the voice metadata.
//   - error: an error if the request fails.
func (c *ElevenLabsClient) GetVoice(ctx context.Context, voiceID string) (*model.Voice, error) {
	if voiceID == "" {
		voiceID = c.voiceID
	}
	voice := &model.Voice{}
	if err := c.getJSON(ctx, "/voices/"+voiceID, voice); err != nil {
		return nil, err
	}
	return voice, nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *ElevenLabsClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request for %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request for %s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", path, err)
	}
	return nil
}
