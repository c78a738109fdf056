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
// This file contains general-purpose utility functions that support the
// package.
//
// Functions:
//   - fileExists: A simple helper to check if a file exists.
//   - LoadConfig: Implements a hierarchical configuration loader. It first reads a base
//     configuration file and then overwrites values with a second, environment-specific
//     file (e.g., .env.local.toml, .env.test.toml). The environment is determined by
//     an environment variable. A plain .env file, when present, is loaded into the
//     process environment first so credentials can be referenced from TOML values.
//   - ExpandCredentials: Interpolates ${VAR} references in credential and endpoint
//     fields from the process environment, so TOML files can be committed without
//     secrets in them.
package vendors

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Configuration constants define key strings and values used throughout the
// package, primarily for configuration loading and API interaction policies.
const (
	ConfigFileBaseName  = ".env"                  // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"                 // The file extension for configuration files.
	ConfigSeparator     = "."                     // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "PODVOX_CONFIG_PREFIX"  // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "PODVOX_RUNTIME"        // The environment variable for specifying the runtime context (e.g., "local", "test", "prod").
	MaxRetries          = 3                       // The maximum number of times to retry a failed API call.
)

// fileExists checks if a file or directory exists at the given path.
//
// Inputs:
//   - in: The path to the file or directory as a string.
//
// Outputs:
//   - bool: Returns true if the file exists, and false if it does not.
func fileExists(in string) bool {
	// os.Stat returns information about the file. If it returns an error,
	// the file likely doesn't exist.
	_, err := os.Stat(in)
	// We specifically check if the error is `os.ErrNotExist`.
	// If it is, we know the file is missing and return false. Otherwise, it exists.
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig provides a hierarchical configuration loading mechanism. It first
// loads a base configuration file and then merges or overwrites its values with
// an environment-specific configuration file. The paths and environment are
// determined by environment variables. Before any TOML is read, a plain .env
// file in the working directory (if one exists) is loaded into the process
// environment so that ${VAR} interpolation can see locally held credentials.
//
// Inputs:
//   - baseConfig: An interface{} representing a pointer to the target configuration struct
//     that will be populated from the TOML files.
func LoadConfig(baseConfig interface{}) {
	// Pull local credentials into the environment. Missing .env is the normal
	// case in deployed environments, so the error is ignored.
	_ = godotenv.Load()

	// Read the directory path for config files from an environment variable.
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	// Ensure the prefix ends with a path separator if it's not empty.
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	// Read the runtime environment (e.g., "local", "test") from an environment variable.
	// Default to "test" if the variable is not set.
	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	// Construct the path for the base configuration file (e.g., "configs/.env.toml").
	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	log.Printf("base configuration file: %s", baseConfigFileName)

	// Construct the path for the environment-specific override file (e.g., "configs/.env.test.toml").
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension
	log.Printf("environment configuration file: %s", envConfigFileName)

	// If the base configuration file exists, decode it into the baseConfig struct.
	if fileExists(baseConfigFileName) {
		_, err := toml.DecodeFile(baseConfigFileName, baseConfig)
		if err != nil {
			log.Fatalf("failed to decode base configuration file %s with error: %s", baseConfigFileName, err)
		}
	}

	// If the environment-specific configuration file exists, decode it.
	// Any values in this file will overwrite the values from the base config.
	if fileExists(envConfigFileName) {
		_, err := toml.DecodeFile(envConfigFileName, baseConfig)
		if err != nil {
			log.Fatalf("failed to decode environment configuration file: %s with error: %s", envConfigFileName, err)
		}
	}

	// Resolve ${VAR} references now that every layer has been applied.
	if cfg, ok := baseConfig.(*Config); ok {
		ExpandCredentials(cfg)
	}
}

// ExpandCredentials interpolates ${VAR} environment references in the
// credential and endpoint fields of the configuration. Committed TOML files
// carry placeholders like "${ELEVENLABS_API_KEY}"; the real values live in
// the environment or a local .env file. A reference to an unset variable
// expands to the empty string, which downstream constructors treat as
// "not configured".
//
// Inputs:
//   - config: The fully decoded configuration to expand in place.
func ExpandCredentials(config *Config) {
	config.Sieve.APIKey = os.ExpandEnv(config.Sieve.APIKey)
	config.Sieve.BaseURL = os.ExpandEnv(config.Sieve.BaseURL)
	config.Speech.APIKey = os.ExpandEnv(config.Speech.APIKey)
	config.Speech.VoiceID = os.ExpandEnv(config.Speech.VoiceID)
	config.Speech.BaseURL = os.ExpandEnv(config.Speech.BaseURL)
	for key, modelConfig := range config.ScriptModels {
		modelConfig.APIKey = os.ExpandEnv(modelConfig.APIKey)
		modelConfig.BaseURL = os.ExpandEnv(modelConfig.BaseURL)
		config.ScriptModels[key] = modelConfig
	}
}
