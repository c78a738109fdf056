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

// Package main contains the setup and initialization logic for the application's state.
// This file is responsible for creating and managing a centralized state manager
// that holds all shared dependencies: the configuration, the vendor service clients,
// the voicenote file store, and the pipeline workflows the API handlers invoke.
//
// It ensures that the application is configured correctly based on the environment,
// initializes every vendor client (moments/analysis, script model, speech), and
// starts the background retention sweep for stored audio files.
//
// Functions:
//   - SetupOS: Configures necessary environment variables for the application,
//     pointing to the correct configuration files.
//   - GetConfig: A singleton function that loads the application's configuration
//     from TOML files. It ensures the configuration is loaded only once.
//   - InitState: The core initialization function that creates all vendor clients,
//     builds the voicenote store and both pipeline workflows, and starts the
//     retention sweep.
package main

import (
	"context"
	"log"
	"os"
	"text/template"
	"time"

	"github.com/podvox/podvox/internal/core/commands"
	"github.com/podvox/podvox/internal/core/services"
	"github.com/podvox/podvox/internal/core/workflow"
	"github.com/podvox/podvox/internal/vendors"
)

// StateManager holds all the shared dependencies for the application, acting as a
// centralized container for vendor clients, the file store, and the workflows.
// This avoids the need for scattered global variables and makes dependency
// management cleaner.
type StateManager struct {
	config            *vendors.Config
	clients           *vendors.ServiceClients
	store             *services.VoicenoteStore
	voicenotePipeline *workflow.VoicenoteWorkflow
	analysisPipeline  *workflow.AnalysisWorkflow
	scriptWriter      *commands.ScriptWriter
	voicenoteCreator  *commands.VoicenoteCreator
	startTime         time.Time
}

// state is a package-level variable that holds the single instance of StateManager.
var state = &StateManager{}

// SetupOS sets the necessary environment variables that the configuration loader
// uses to find the correct TOML files.
//
// This function sets the prefix for the configuration directory and specifies
// the runtime environment (e.g., "local", "test", "prod"), allowing for
// environment-specific overrides of the base configuration.
//
// Outputs:
//   - error: An error if setting any of the environment variables fails.
func SetupOS() (err error) {
	// Set the directory where configuration files are located.
	err = os.Setenv(vendors.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	// Set the current runtime environment to "local". The config loader will
	// look for a ".env.local.toml" file to override base settings.
	err = os.Setenv(vendors.EnvConfigRuntime, "local")
	return err
}

// GetConfig provides a singleton instance of the application configuration.
// It ensures that the configuration is loaded from the file system only once.
// On the first call, it sets up the OS environment and loads the configuration
// from the TOML files. Subsequent calls return the cached configuration.
//
// Outputs:
//   - *vendors.Config: A pointer to the loaded application configuration struct.
func GetConfig() *vendors.Config {
	// If the config has not been loaded yet...
	if state.config == nil {
		// Set up the environment variables required for config loading.
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os environment: %v\n", err)
		}
		// Create a new, empty config struct.
		config := vendors.NewConfig()
		// Load the configuration from the .toml files into the struct.
		vendors.LoadConfig(config)
		// Store the loaded config in the state manager.
		state.config = config
	}
	// Return the cached config.
	return state.config
}

// InitState initializes the entire application state.
// It orchestrates the creation of all necessary services and clients based on the
// application configuration and wires them together.
//
// Inputs:
//   - ctx: The root context.Context for the application, used for managing
//     the lifecycle of client connections and background processes.
//
// This function performs the following steps:
//  1. Loads the application configuration.
//  2. Initializes the vendor service clients (moments/analysis, script
//     models, speech).
//  3. Creates the voicenote file store and starts its retention sweep.
//  4. Builds the full voicenote pipeline and the analysis-only pipeline.
//  5. Builds the standalone script writer and voicenote creator used by the
//     component endpoints.
func InitState(ctx context.Context) {
	// Get the application configuration.
	config := GetConfig()

	// Initialize all the vendor service clients. A missing speech credential
	// leaves clients.Speech nil; everything else is required.
	clients, err := vendors.NewServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}
	state.clients = clients

	// The audio file extension follows the speech vendor's output format so
	// downloads carry the right suffix even if the format is reconfigured.
	var extension string
	if clients.Speech != nil {
		extension = clients.Speech.OutputFormat()
	}
	store, err := services.NewVoicenoteStore(config.Storage, extension)
	if err != nil {
		panic(err)
	}
	state.store = store

	// The synthesizer interface must stay a true nil when the speech client
	// is absent. Assigning a nil *ElevenLabsClient directly would produce a
	// non-nil interface value and defeat every nil check downstream.
	var synthesizer commands.SpeechSynthesizer
	if clients.Speech != nil {
		synthesizer = clients.Speech
	}

	// The pipeline's script model is selected by name from the configured
	// set. A bad agent name is a configuration error, not a runtime one.
	scriptModel := clients.ScriptModels[config.Pipeline.Agent]
	if scriptModel == nil {
		log.Fatalf("script model %q named by pipeline.agent is not configured", config.Pipeline.Agent)
	}

	// Build the full four-stage pipeline and the analysis-only variant. Both
	// read the moments and analysis capabilities from the same vendor client.
	state.voicenotePipeline = workflow.NewVoicenotePipeline(config, clients.Sieve, clients.Sieve, scriptModel, synthesizer, store)
	state.analysisPipeline = workflow.NewAnalysisWorkflow(config, clients.Sieve, clients.Sieve)

	// The component endpoints drive single stages outside of a chain run, so
	// they get their own writer and creator instances wired to the same
	// dependencies as the pipeline's stages.
	agent := config.ScriptModels[config.Pipeline.Agent]
	scriptTemplate, err := template.New("script-template").Parse(config.PromptTemplates.ScriptUserPrompt)
	if err != nil {
		panic(err)
	}
	state.scriptWriter = commands.NewScriptWriter(
		workflow.StageWriteScript,
		scriptModel,
		agent.SystemInstructions,
		scriptTemplate,
		config.Pipeline.TargetLengthSeconds,
		config.Pipeline.Tone)
	state.voicenoteCreator = commands.NewVoicenoteCreator(workflow.StageSynthesize, synthesizer, store)

	// Start the background sweep that enforces the audio retention window.
	// When retention is disabled this logs once and does nothing.
	store.StartRetentionSweep()

	state.startTime = time.Now()
}
