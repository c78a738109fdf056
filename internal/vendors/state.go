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
// This file is central to the application's architecture: it initializes
// and holds every client object needed to talk to the external services.
// It acts as a dependency injection container, creating a single shared
// `ServiceClients` struct that is handed to the workflows at startup, so
// that no core package ever reaches for an ambient credential or global
// client.
//
// Logic Flow:
//  1. The `NewServiceClients` function is called at application startup.
//  2. It takes the application's configuration (`Config`) and a `context.Context`.
//  3. It constructs the moments/analysis client, then attempts the speech
//     client. A missing speech credential is NOT an error: the field stays
//     nil and the pipeline degrades to script-only results.
//  4. It then builds one script model per configured entry, selecting the
//     provider adapter and wrapping each in the quota-aware rate limiter.
//  5. All initialized clients are bundled into a single `ServiceClients`
//     struct used by workflows and API handlers.
//
// Structs:
//   - ServiceClients: A container struct holding all initialized vendor
//     clients, acting as a central state manager for external connections.
//
// Functions:
//   - Close: A convenience method to gracefully shut down all client connections.
//   - NewServiceClients: A factory function that creates and configures all
//     vendor clients based on the application's configuration.
package vendors

import (
	"context"
	"fmt"
	"log"
)

// ServiceClients is a struct that acts as a central container for all the
// clients that interact with external services. This pattern is a form of
// dependency injection, making it easy to manage and share these client
// connections across the entire application.
type ServiceClients struct {
	Sieve        *SieveClient                      // Client for the moments/analysis vendor.
	Speech       *ElevenLabsClient                 // Client for the synthesis vendor. Nil when not configured.
	ScriptModels map[string]*QuotaAwareScriptModel // Configured script LLMs, keyed by the logical name from the config.
}

// Close is a utility method to gracefully shut down the active client
// connections. The REST clients hold no persistent connections; only the
// script model backends may own resources that need explicit release.
func (c *ServiceClients) Close() {
	for name, scriptModel := range c.ScriptModels {
		if err := scriptModel.Close(); err != nil {
			log.Printf("failed to close script model '%s': %v", name, err)
		}
	}
}

// NewServiceClients is a factory function that initializes all required
// vendor clients based on the provided configuration. It serves as the main
// entry point for setting up the application's external dependencies.
//
// Inputs:
//   - ctx: The root context.Context for the application, used to manage the lifecycle of the clients.
//   - config: A pointer to the loaded application configuration (`Config`).
//
// Outputs:
//   - *ServiceClients: A pointer to the fully initialized ServiceClients struct.
//   - error: An error if a required client fails to initialize.
func NewServiceClients(ctx context.Context, config *Config) (*ServiceClients, error) {
	// The moments/analysis client is required; every pipeline run starts
	// with it.
	sieve := NewSieveClient(config.Sieve)

	// The speech client is optional. When it cannot be built the service
	// still runs; synthesis requests degrade to script-only.
	speech, err := NewElevenLabsClient(config.Speech)
	if err != nil {
		log.Printf("speech synthesis not configured (%v); voicenotes will degrade to script-only", err)
		speech = nil
	}

	// Build each configured script model, select its provider adapter, and
	// wrap it in the quota-aware rate limiter.
	scriptModels := make(map[string]*QuotaAwareScriptModel)
	for key, values := range config.ScriptModels {
		var backend ScriptBackend
		switch values.Provider {
		case "", "openai":
			backend, err = NewOpenAIScriptBackend(values)
		case "gemini":
			backend, err = NewGeminiScriptBackend(ctx, values)
		default:
			err = fmt.Errorf("unknown script model provider %q", values.Provider)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build script model '%s': %w", key, err)
		}
		scriptModels[key] = NewQuotaAwareModel(backend, values.Model, values.RateLimit)
	}

	return &ServiceClients{
		Sieve:        sieve,
		Speech:       speech,
		ScriptModels: scriptModels,
	}, nil
}
