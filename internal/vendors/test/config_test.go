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
// clients and configuration. This file tests the hierarchical TOML loader:
// base file plus environment overlay, and the ${VAR} credential expansion
// that keeps secrets out of committed files.
package vendors_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/podvox/podvox/internal/vendors"
	"github.com/stretchr/testify/assert"
)

// TestLoadConfigLayersEnvironmentOverrides verifies the loader end to end:
// the base file is read first, the runtime-named overlay overwrites the
// fields it declares and leaves the rest alone, and credential placeholders
// are expanded from the process environment after both layers applied.
func TestLoadConfigLayersEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()

	// The committed base layer: full settings with ${VAR} placeholders in
	// place of real credentials.
	base := `[application]
name = "podvox"
port = 8080

[sieve]
base_url = "https://mango.sievedata.com/v2"
api_key = "${PODVOX_TEST_SIEVE_KEY}"

[script_models.outreach]
provider = "openai"
model = "gpt-4"
api_key = "${PODVOX_TEST_OPENAI_KEY}"
`
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(base), 0o644))

	// The environment overlay only touches the port.
	overlay := `[application]
port = 9090
`
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".env.unit.toml"), []byte(overlay), 0o644))

	// Point the loader at the scratch directory and the "unit" runtime, and
	// provide the credentials the placeholders reference.
	t.Setenv(vendors.EnvConfigFilePrefix, dir)
	t.Setenv(vendors.EnvConfigRuntime, "unit")
	t.Setenv("PODVOX_TEST_SIEVE_KEY", "sieve-secret")
	t.Setenv("PODVOX_TEST_OPENAI_KEY", "openai-secret")

	config := vendors.NewConfig()
	vendors.LoadConfig(config)

	// Base values not named by the overlay survive.
	assert.Equal(t, "podvox", config.Application.Name)
	assert.Equal(t, "https://mango.sievedata.com/v2", config.Sieve.BaseURL)
	// Overlay values win over the base.
	assert.Equal(t, 9090, config.Application.Port)
	// Placeholders were expanded from the environment, in the plain sections
	// and inside the model map alike.
	assert.Equal(t, "sieve-secret", config.Sieve.APIKey)
	assert.Equal(t, "openai-secret", config.ScriptModels["outreach"].APIKey)
	assert.Equal(t, "gpt-4", config.ScriptModels["outreach"].Model)
}

// TestLoadConfigMissingFilesLeavesConfigUntouched verifies the loader's
// behavior when no configuration files are present, which is how the test
// suites run: nothing is loaded, nothing crashes, and preset values stay.
func TestLoadConfigMissingFilesLeavesConfigUntouched(t *testing.T) {
	// An empty directory: neither the base file nor any overlay exists.
	t.Setenv(vendors.EnvConfigFilePrefix, t.TempDir())
	t.Setenv(vendors.EnvConfigRuntime, "unit")

	config := vendors.NewConfig()
	config.Application.Name = "preset"
	vendors.LoadConfig(config)

	// The preset value survives a loader run that found no files.
	assert.Equal(t, "preset", config.Application.Name)
}

// TestExpandCredentials verifies the placeholder expansion rules on their
// own: a reference to an unset variable becomes the empty string (the signal
// for "not configured"), literal values pass through untouched, and entries
// of the model map are written back after expansion.
func TestExpandCredentials(t *testing.T) {
	config := vendors.NewConfig()
	config.Sieve.APIKey = "${PODVOX_TEST_UNSET_CREDENTIAL}"
	config.Speech.APIKey = "literal-key"
	config.ScriptModels["outreach"] = vendors.ScriptModelConfig{
		APIKey: "${PODVOX_TEST_UNSET_CREDENTIAL}",
		Model:  "gpt-4",
	}

	vendors.ExpandCredentials(config)

	// Unset references collapse to empty, marking the vendor unconfigured.
	assert.Empty(t, config.Sieve.APIKey)
	// Values without placeholders are untouched.
	assert.Equal(t, "literal-key", config.Speech.APIKey)
	// Map entries are value types; expansion must write them back.
	assert.Empty(t, config.ScriptModels["outreach"].APIKey)
	assert.Equal(t, "gpt-4", config.ScriptModels["outreach"].Model)
}
