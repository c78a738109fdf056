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

// Package vendors defines the data structures for application configuration,
// loaded from TOML files, and the clients for the three external services the
// pipeline depends on: the moments/analysis vendor, the script-writing LLM,
// and the speech-synthesis vendor.
//
// This file centralizes all configuration-related structs, making it easy
// to understand and manage the application's configurable parameters.
//
// Structs:
//   - SieveConfig: Connection and job settings for the moments/analysis vendor.
//   - SpeechConfig: Connection and voice settings for the synthesis vendor.
//   - ScriptModelConfig: Configuration for one script-writing LLM.
//   - PromptTemplates: Holds the text templates rendered into vendor prompts.
//   - PipelineConfig: Defaults for the voicenote pipeline itself.
//   - StorageConfig: Output directory and retention settings for audio files.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that initializes a new Config object with empty maps.
package vendors

// SieveConfig holds the settings for the push/poll job vendor that backs
// both the moments search and the time-ranged ask capability.
type SieveConfig struct {
	BaseURL             string  `toml:"base_url"`                // Root of the vendor's v2 API, e.g. "https://mango.sievedata.com/v2".
	APIKey              string  `toml:"api_key"`                 // Credential sent in the X-API-Key header. Supports ${VAR} interpolation.
	Backend             string  `toml:"backend"`                 // Analysis backend name: "sieve-fast" or "sieve-contextual".
	PollIntervalSeconds float64 `toml:"poll_interval_seconds"`   // How often to poll a submitted job for completion.
	JobTimeoutSeconds   int     `toml:"job_timeout_seconds"`     // How long to wait for one job before giving up.
	RequestTimeout      int     `toml:"request_timeout_seconds"` // Per-HTTP-call timeout, owned by the client, not the pipeline.
}

// SpeechConfig holds the settings for the text-to-speech vendor. When the
// API key or voice ID is absent the synthesizer is simply not constructed
// and the pipeline degrades to script-only results.
type SpeechConfig struct {
	BaseURL         string  `toml:"base_url"`                // Root of the vendor's v1 API, e.g. "https://api.elevenlabs.io/v1".
	APIKey          string  `toml:"api_key"`                 // Credential sent in the xi-api-key header. Supports ${VAR} interpolation.
	VoiceID         string  `toml:"voice_id"`                // Default synthesis voice.
	ModelID         string  `toml:"model_id"`                // Vendor TTS model, e.g. "eleven_monolingual_v1".
	OutputFormat    string  `toml:"output_format"`           // File extension for written audio, e.g. "mp3".
	Stability       float64 `toml:"stability"`               // Voice setting: consistency of delivery.
	SimilarityBoost float64 `toml:"similarity_boost"`        // Voice setting: closeness to the cloned voice.
	Style           float64 `toml:"style"`                   // Voice setting: style exaggeration.
	UseSpeakerBoost bool    `toml:"use_speaker_boost"`       // Voice setting: vendor-side clarity boost.
	RequestTimeout  int     `toml:"request_timeout_seconds"` // Per-HTTP-call timeout.
}

// ScriptModelConfig represents the configuration for one script-writing
// large language model. Models are declared in a map so alternates can be
// configured side by side and selected per use.
type ScriptModelConfig struct {
	Provider           string  `toml:"provider"`            // Which adapter to build: "openai" or "gemini".
	Model              string  `toml:"model"`               // Vendor model name, e.g. "gpt-4" or "gemini-1.5-flash".
	APIKey             string  `toml:"api_key"`             // Credential for the provider. Supports ${VAR} interpolation.
	BaseURL            string  `toml:"base_url"`            // Optional endpoint override for OpenAI-compatible gateways.
	SystemInstructions string  `toml:"system_instructions"` // The system prompt sent with every request.
	Temperature        float64 `toml:"temperature"`         // Sampling temperature. Fixed per model for reproducibility.
	MaxTokens          int64   `toml:"max_tokens"`          // Upper bound on generated tokens.
	RateLimit          int     `toml:"rate_limit"`          // Requests per second allowed through the quota wrapper.
}

// PromptTemplates holds the templates for different types of prompts. The
// templates use Go text/template syntax with uppercase vocabulary keys,
// e.g. {{.TOPIC}} and {{.PROSPECT_NAME}}.
type PromptTemplates struct {
	AnalysisPrompt   string `toml:"analysis"`    // The question set sent to the content analyzer for the best moment.
	ScriptUserPrompt string `toml:"script_user"` // The user message template for the script writer.
}

// PipelineConfig holds the defaults the orchestrator applies when a
// request leaves them unset.
type PipelineConfig struct {
	Agent               string   `toml:"agent"`                 // Key into Config.ScriptModels naming the model that writes scripts.
	MinClipLength       float64  `toml:"min_clip_length"`       // Minimum acceptable moment length in seconds.
	DefaultDisplayName  string   `toml:"default_display_name"`  // Placeholder used when the caller omits a prospect name.
	TargetLengthSeconds int      `toml:"target_length_seconds"` // Spoken-length target mentioned in the script prompt.
	Tone                string   `toml:"tone"`                  // Tone requested from the script model.
	WidenQueries        []string `toml:"widen_queries"`         // Extra query phrasings, each a format string with one %s for the topic.
}

// StorageConfig holds the voicenote file store settings.
type StorageConfig struct {
	OutputDir            string `toml:"output_dir"`             // Directory where synthesized audio files are written.
	RetentionHours       int    `toml:"retention_hours"`        // Age after which the sweep removes files. Zero disables the sweep entirely.
	SweepIntervalMinutes int    `toml:"sweep_interval_minutes"` // How often the retention sweep runs when enabled.
}

// Config represents the overall configuration for the application, loaded
// from TOML files. It acts as the root container for all other
// configuration structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name    string `toml:"name"`    // The name of the application.
		Version string `toml:"version"` // Reported by the root and healthcheck endpoints.
		Port    int    `toml:"port"`    // TCP port the HTTP server listens on.
	} `toml:"application"`
	Sieve           SieveConfig                  `toml:"sieve"`            // Moments/analysis vendor configuration.
	Speech          SpeechConfig                 `toml:"speech"`           // Speech synthesis vendor configuration.
	ScriptModels    map[string]ScriptModelConfig `toml:"script_models"`    // A map of script LLMs, keyed by a logical name (e.g., "outreach").
	PromptTemplates PromptTemplates              `toml:"prompt_templates"` // Prompt templates configuration.
	Pipeline        PipelineConfig               `toml:"pipeline"`         // Orchestrator defaults.
	Storage         StorageConfig                `toml:"storage"`          // Voicenote store configuration.
}

// NewConfig is a constructor function that creates a new, initialized Config
// instance. It's important to initialize the maps within the struct to avoid
// nil pointer panics when the configuration loader tries to populate them.
//
// Outputs:
//   - *Config: A pointer to a new Config struct with its map fields initialized.
func NewConfig() *Config {
	return &Config{
		ScriptModels: make(map[string]ScriptModelConfig),
	}
}
