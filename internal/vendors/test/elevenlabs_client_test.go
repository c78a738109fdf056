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

// Package vendors_test contains the test suite for the external service
// clients. This file tests the text-to-speech client against a local HTTP
// stand-in for the vendor: synthesis with explicit and default voices, the
// fixed voice settings block, the voice listing endpoints, and the
// constructor's "not configured" signalling.
package vendors_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/podvox/podvox/internal/vendors"
	"github.com/stretchr/testify/assert"
)

// newSpeechConfig builds a complete vendor configuration pointed at the test
// server.
func newSpeechConfig(baseURL string) vendors.SpeechConfig {
	return vendors.SpeechConfig{
		BaseURL:         baseURL,
		APIKey:          "test-key",
		VoiceID:         "voice-default",
		ModelID:         "eleven_monolingual_v1",
		OutputFormat:    "mp3",
		Stability:       0.5,
		SimilarityBoost: 0.8,
		RequestTimeout:  5,
	}
}

// TestElevenLabsClientSynthesize verifies a synthesis call with an explicit
// voice: the voice travels in the URL path, the credential in the xi-api-key
// header, the text and tuning block in the JSON body, and the raw response
// bytes come back unchanged.
func TestElevenLabsClientSynthesize(t *testing.T) {
	audio := []byte("ID3-fake-mpeg-frames")

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/text-to-speech/voice-custom", func(w http.ResponseWriter, r *http.Request) {
		// Authentication and content negotiation headers.
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Text          string `json:"text"`
			ModelID       string `json:"model_id"`
			VoiceSettings struct {
				Stability       float64 `json:"stability"`
				SimilarityBoost float64 `json:"similarity_boost"`
			} `json:"voice_settings"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// The script text and the vendor model are submitted as-is.
		assert.Equal(t, "Hey Jordan, quick note about your episode.", body.Text)
		assert.Equal(t, "eleven_monolingual_v1", body.ModelID)
		// The fixed tuning block always rides along.
		assert.Equal(t, 0.5, body.VoiceSettings.Stability)
		assert.Equal(t, 0.8, body.VoiceSettings.SimilarityBoost)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := vendors.NewElevenLabsClient(newSpeechConfig(server.URL + "/v1"))
	assert.NoError(t, err)

	got, err := client.Synthesize(context.Background(), "Hey Jordan, quick note about your episode.", "voice-custom")
	assert.NoError(t, err)
	// The audio payload passes through byte for byte.
	assert.Equal(t, audio, got)
}

// TestElevenLabsClientSynthesizeDefaultVoice verifies that an empty voice ID
// falls back to the configured default voice.
func TestElevenLabsClientSynthesizeDefaultVoice(t *testing.T) {
	mux := http.NewServeMux()
	// Only the default voice's path is registered; any other voice would
	// 404 and fail the call.
	mux.HandleFunc("/v1/text-to-speech/voice-default", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("audio"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := vendors.NewElevenLabsClient(newSpeechConfig(server.URL + "/v1"))
	assert.NoError(t, err)

	got, err := client.Synthesize(context.Background(), "Hello there.", "")
	assert.NoError(t, err)
	assert.Equal(t, []byte("audio"), got)
}

// TestElevenLabsClientSynthesizeErrors verifies the two failure paths: an
// empty script is rejected before any network call, and a vendor rejection
// surfaces the status code and response body.
func TestElevenLabsClientSynthesizeErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/text-to-speech/voice-default", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "invalid api key"}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := vendors.NewElevenLabsClient(newSpeechConfig(server.URL + "/v1"))
	assert.NoError(t, err)

	// Whitespace-only text never reaches the vendor.
	_, err = client.Synthesize(context.Background(), "   ", "")
	assert.ErrorContains(t, err, "empty text")

	// A vendor rejection carries the status and the body for diagnosis.
	_, err = client.Synthesize(context.Background(), "Hello there.", "")
	assert.ErrorContains(t, err, "status 401")
	assert.ErrorContains(t, err, "invalid api key")
}

// TestElevenLabsClientVoices verifies the two read-only voice endpoints:
// listing every available voice and fetching one voice, including the
// default-voice fallback when no ID is given.
func TestElevenLabsClientVoices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/voices", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"voices": [
			{"voice_id": "narrator-1", "name": "Alice", "category": "premade", "labels": {"accent": "british"}},
			{"voice_id": "narrator-2", "name": "Brian", "category": "premade"}
		]}`))
	})
	mux.HandleFunc("/v1/voices/voice-default", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"voice_id": "voice-default", "name": "House Voice", "category": "cloned"}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := vendors.NewElevenLabsClient(newSpeechConfig(server.URL + "/v1"))
	assert.NoError(t, err)

	voices, err := client.ListVoices(context.Background())
	assert.NoError(t, err)
	assert.Len(t, voices, 2)
	// The vendor's voice metadata passes through untouched.
	assert.Equal(t, "narrator-1", voices[0].VoiceID)
	assert.Equal(t, "Alice", voices[0].Name)
	assert.Equal(t, "british", voices[0].Labels["accent"])

	// An empty ID resolves to the configured default voice.
	voice, err := client.GetVoice(context.Background(), "")
	assert.NoError(t, err)
	assert.Equal(t, "voice-default", voice.VoiceID)
	assert.Equal(t, "House Voice", voice.Name)
}

// TestNewElevenLabsClientRequiresCredentials verifies the constructor's
// contract with the startup path: an incomplete configuration returns an
// error, which callers treat as "synthesis not configured", while a complete
// one yields a working client with normalized settings.
func TestNewElevenLabsClientRequiresCredentials(t *testing.T) {
	// No API key means no client.
	config := newSpeechConfig("http://127.0.0.1:0/v1")
	config.APIKey = ""
	_, err := vendors.NewElevenLabsClient(config)
	assert.ErrorContains(t, err, "api key")

	// No default voice means no client either.
	config = newSpeechConfig("http://127.0.0.1:0/v1")
	config.VoiceID = ""
	_, err = vendors.NewElevenLabsClient(config)
	assert.ErrorContains(t, err, "voice_id")

	// A complete configuration builds a client exposing its defaults. A
	// leading dot on the output format is tolerated and stripped.
	config = newSpeechConfig("http://127.0.0.1:0/v1")
	config.OutputFormat = ".wav"
	client, err := vendors.NewElevenLabsClient(config)
	assert.NoError(t, err)
	assert.Equal(t, "voice-default", client.DefaultVoiceID())
	assert.Equal(t, "wav", client.OutputFormat())
}
