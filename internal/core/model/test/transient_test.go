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

// Package model_test contains unit tests for the data models defined in the
// model package. This file tests the constructors and hardcoded examples of
// the transient pipeline types (`Script` and `Moment`).
package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/podvox/podvox/internal/core/model"
	"github.com/stretchr/testify/assert"
)

// TestNewScript tests the constructor for the Script struct. It verifies
// that the word count is derived from the text itself, that the tone and
// target length are carried through unchanged, and that the creation
// timestamp is set to the current time in UTC.
func TestNewScript(t *testing.T) {
	// A small message with a known number of whitespace-separated words.
	text := "Hey Riley, your point about pricing experiments really landed with me."

	// Call the constructor with the sample text and metadata.
	script := model.NewScript(text, "casual", 20)

	// Assert that the text was stored verbatim.
	assert.Equal(t, text, script.Text)
	// Assert that the word count matches what strings.Fields reports.
	assert.Equal(t, len(strings.Fields(text)), script.WordCount)
	assert.Equal(t, 11, script.WordCount)
	// Assert that the tone and spoken-length target were carried through.
	assert.Equal(t, "casual", script.Tone)
	assert.Equal(t, 20, script.TargetLengthSeconds)
	// Assert that the creation date is very recent (within one second of now).
	assert.WithinDuration(t, time.Now(), script.CreatedAt, time.Second)
	// Assert that the timestamp was normalized to UTC.
	assert.Equal(t, time.UTC, script.CreatedAt.Location())
}

// TestNewScriptCountsIrregularWhitespace verifies that the word count is
// robust against the ragged spacing and newlines that generative models
// produce, since the count feeds the spoken-duration estimate.
func TestNewScriptCountsIrregularWhitespace(t *testing.T) {
	// Three words separated by a mix of spaces, tabs, and a newline.
	script := model.NewScript("one  \ttwo\nthree", "casual", 20)

	// strings.Fields collapses all whitespace runs, so the count is three.
	assert.Equal(t, 3, script.WordCount)
}

// TestGetExampleScript tests the canned script that backs the speech
// smoke-test endpoint. The sample must look like real pipeline output:
// non-empty, inside the word budget the system prompt asks for, and carrying
// the standard tone and target length.
func TestGetExampleScript(t *testing.T) {
	script := model.GetExampleScript()

	// The sample must be synthesizable, so it can never be empty.
	assert.NotEmpty(t, script.Text)
	// The persona instructions cap scripts at sixty words.
	assert.LessOrEqual(t, script.WordCount, 60)
	assert.Positive(t, script.WordCount)
	// The sample mirrors the configured pipeline defaults.
	assert.Equal(t, "casual", script.Tone)
	assert.Equal(t, 20, script.TargetLengthSeconds)
	// Wrapping quotes would be read aloud by the synthesizer; the sample
	// must be stored the way the script writer emits text, without them.
	assert.False(t, strings.HasPrefix(script.Text, `"`))
	assert.False(t, strings.HasSuffix(script.Text, `"`))
}

// TestGetExampleMoments tests the hardcoded ranked moment list used by the
// pipeline tests. The contract is that the slice arrives best-first, so the
// first entry must be the one consumers act on.
func TestGetExampleMoments(t *testing.T) {
	moments := model.GetExampleMoments()

	// The sample carries a winner and one lower-ranked entry.
	assert.Len(t, moments, 2)
	// The best moment is the first element of the slice.
	assert.Equal(t, 10.0, moments[0].StartTime)
	assert.Equal(t, 20.0, moments[0].EndTime)
	// Duration is a convenience field and must agree with the range bounds.
	for _, moment := range moments {
		assert.Equal(t, moment.EndTime-moment.StartTime, moment.Duration)
	}
}
