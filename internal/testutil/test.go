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

// Package test provides utility functions and canned data to support the
// application's test suite. It helps in setting up a consistent test
// environment, loading test-specific configurations, and providing sample
// vendor responses for workflows and commands.
package test

import (
	"log"
	"os"
	"testing"

	"github.com/podvox/podvox/internal/vendors"
)

// StateManager acts as a simple in-memory cache for the application configuration
// during test runs. This prevents the need to reload configuration files for every
// test, speeding up the test suite.
type StateManager struct {
	config *vendors.Config
}

// state is a package-level variable that holds the singleton instance of StateManager,
// ensuring that the configuration is loaded only once per test run.
var state = &StateManager{}

// HandleErr is a simple test helper function that checks if an error is not nil.
// If an error exists, it fails the test immediately by calling t.Errorf.
// This is a convenience function to reduce boilerplate error-checking code in tests.
//
// Inputs:
//   - err: The error to check.
//   - t: The *testing.T object from the current test.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// GetTestAnalysisAnswerText returns a canned content-analysis answer of the
// shape the vendor produces for the outreach question set. Workflow tests
// feed it through the script stage so prompts render against realistic text.
//
// Returns:
//   - A string containing a plausible multi-point analysis answer.
func GetTestAnalysisAnswerText() string {
	return `1. The speaker argues that early-stage startups should keep founders in the sales loop far longer than conventional wisdom suggests.
2. Hot take: most sales hires before product-market fit are "expensive ways to stop learning."
3. They tell a story about losing their first ten deals personally and how that reshaped the product roadmap.
4. Memorable quote: "every lost deal is a feature request with a price tag attached."`
}

// SetupOS configures the necessary environment variables that the configuration
// loader (`vendors.LoadConfig`) depends on. By setting these variables, we can
// direct the loader to use the test-specific configuration files (e.g.,
// `configs/.env.test.toml`) instead of production or development ones.
//
// Returns:
//   - An error if setting any environment variable fails.
func SetupOS() (err error) {
	// Set the directory where the configuration files are located.
	err = os.Setenv(vendors.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	// Set the runtime environment identifier to "test". This causes the loader
	// to look for a file named ".env.test.toml" for overrides.
	err = os.Setenv(vendors.EnvConfigRuntime, "test")
	return err
}

// GetConfig is a singleton accessor for the test configuration.
// It ensures that the configuration is loaded from TOML files only once and
// is cached in the package-level `state` variable for subsequent calls.
// This is the primary way tests should retrieve their configuration.
//
// Test packages run with their own directory as the working directory, where
// the repository's configs/ tree is not visible; the loader then leaves the
// config empty. applyTestDefaults fills every field the suites rely on, so
// the tests behave the same with or without the files.
//
// Returns:
//   - A pointer to the loaded and cached vendors.Config struct.
func GetConfig() *vendors.Config {
	// Check if the config is already cached.
	if state.config == nil {
		// If not cached, set up the OS environment for the test configuration.
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		// Create a new, empty config struct.
		config := vendors.NewConfig()
		// Load the configuration from the TOML files into the struct.
		// `LoadConfig` handles the hierarchical loading (base file + test override).
		vendors.LoadConfig(config)
		// Make the configuration self-contained regardless of the files found.
		applyTestDefaults(config)
		// Cache the loaded config in our state manager.
		state.config = config
	}
	// Return the cached configuration.
	return state.config
}

// applyTestDefaults fills any configuration field left empty by the loader
// with the same values the committed base file carries, plus dummy
// credentials. Fields already set by a discovered file are left alone.
func applyTestDefaults(config *vendors.Config) {
	if config.Application.Name == "" {
		config.Application.Name = "podvox-test"
	}
	if config.Application.Version == "" {
		config.Application.Version = "0.0.0-test"
	}

	if config.Sieve.BaseURL == "" {
		config.Sieve.BaseURL = "http://127.0.0.1:0/v2"
	}
	if config.Sieve.APIKey == "" {
		config.Sieve.APIKey = "test-key"
	}
	if config.Sieve.Backend == "" {
		config.Sieve.Backend = "sieve-contextual"
	}
	if config.Sieve.PollIntervalSeconds == 0 {
		config.Sieve.PollIntervalSeconds = 0.01
	}
	if config.Sieve.JobTimeoutSeconds == 0 {
		config.Sieve.JobTimeoutSeconds = 5
	}
	if config.Sieve.RequestTimeout == 0 {
		config.Sieve.RequestTimeout = 5
	}

	if config.Speech.BaseURL == "" {
		config.Speech.BaseURL = "http://127.0.0.1:0/v1"
	}
	if config.Speech.APIKey == "" {
		config.Speech.APIKey = "test-key"
	}
	if config.Speech.VoiceID == "" {
		config.Speech.VoiceID = "test-voice"
	}
	if config.Speech.ModelID == "" {
		config.Speech.ModelID = "eleven_monolingual_v1"
	}
	if config.Speech.OutputFormat == "" {
		config.Speech.OutputFormat = "mp3"
	}

	if _, ok := config.ScriptModels["outreach"]; !ok {
		config.ScriptModels["outreach"] = vendors.ScriptModelConfig{
			Provider:           "openai",
			Model:              "gpt-4",
			APIKey:             "test-key",
			SystemInstructions: "You write short, casual outreach voicenote scripts in the first person.",
			Temperature:        0.8,
			MaxTokens:          150,
			RateLimit:          2,
		}
	}

	if config.PromptTemplates.AnalysisPrompt == "" {
		config.PromptTemplates.AnalysisPrompt = `You are listening to a podcast segment where the speaker discusses {{.TOPIC}}.
Answer the following questions about this segment:

1. What specific points does the speaker make about {{.TOPIC}}?
2. What opinions or hot takes does the speaker share?
3. What personal experiences or stories does the speaker mention?
4. Are there any memorable quotes or phrases worth referencing?

Format the answers to help someone write a personalized outreach message
to {{.PROSPECT_NAME}}, the speaker.`
	}
	if config.PromptTemplates.ScriptUserPrompt == "" {
		config.PromptTemplates.ScriptUserPrompt = `Prospect Name: {{.PROSPECT_NAME}}
Podcast Context: {{.PODCAST_CONTEXT}}
Podcast Name: {{.PODCAST_NAME}}`
	}

	if config.Pipeline.Agent == "" {
		config.Pipeline.Agent = "outreach"
	}
	if config.Pipeline.MinClipLength == 0 {
		config.Pipeline.MinClipLength = 15.0
	}
	if config.Pipeline.DefaultDisplayName == "" {
		config.Pipeline.DefaultDisplayName = "there"
	}
	if config.Pipeline.TargetLengthSeconds == 0 {
		config.Pipeline.TargetLengthSeconds = 20
	}
	if config.Pipeline.Tone == "" {
		config.Pipeline.Tone = "casual"
	}
	if len(config.Pipeline.WidenQueries) == 0 {
		config.Pipeline.WidenQueries = []string{"discussion about %s"}
	}

	if config.Storage.OutputDir == "" {
		config.Storage.OutputDir = "test_output/voicenotes"
	}
	if config.Storage.SweepIntervalMinutes == 0 {
		config.Storage.SweepIntervalMinutes = 60
	}
}
