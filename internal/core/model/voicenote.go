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

// Package model defines the data structures for the application. This
// file holds the Voicenote type, the one object in the system that
// outlives a request: its audio bytes land on disk and are fetched
// later through the download endpoint. Only the file persists; the
// struct itself is rebuilt from the file name when needed.
package model

import (
	"time"

	"github.com/google/uuid"
)

// SpokenWordsPerSecond is the pace assumption used to estimate how long
// a synthesized script runs. Conversational speech lands close to 150
// words a minute.
const SpokenWordsPerSecond = 2.5

// Voicenote describes one synthesized audio file. Filename is the only
// key clients ever see; Path stays server-side.
type Voicenote struct {
	ID                      string    `json:"id"`                        // Deterministic UUIDv5 of the filename.
	Filename                string    `json:"filename"`                  // Unique name of the audio file, e.g. "voicenote_ai-thoughts_20250114T093012_4f3a2b.mp3".
	Path                    string    `json:"-"`                         // Absolute location on disk. Never serialized.
	DownloadURL             string    `json:"download_url,omitempty"`    // Relative URL to fetch the audio. Filled in by the HTTP layer.
	SizeBytes               int64     `json:"file_size_bytes"`           // Size of the written file.
	DurationEstimateSeconds float64   `json:"duration_estimate_seconds"` // Rough spoken length derived from the script's word count.
	VoiceID                 string    `json:"voice_id,omitempty"`        // Which synthesis voice produced the audio.
	CreatedAt               time.Time `json:"created_at"`                // Synthesis timestamp, UTC.
}

// NewVoicenote builds the metadata record for a freshly written audio
// file. The ID is a UUIDv5 hash of the filename so the same file always
// maps to the same identifier.
//
// Inputs:
//   - filename: the unique base name the store chose for the file.
//   - path: the absolute path the audio was written to.
//   - sizeBytes: the number of bytes written.
//   - voiceID: the synthesis voice used.
//   - wordCount: word count of the synthesized script, for the duration estimate.
//
// Outputs:
//   - *Voicenote: the populated record.
func NewVoicenote(filename string, path string, sizeBytes int64, voiceID string, wordCount int) *Voicenote {
	return &Voicenote{
		ID:                      uuid.NewSHA1(uuid.NameSpaceURL, []byte(filename)).String(),
		Filename:                filename,
		Path:                    path,
		SizeBytes:               sizeBytes,
		DurationEstimateSeconds: EstimateSpokenSeconds(wordCount),
		VoiceID:                 voiceID,
		CreatedAt:               time.Now().UTC(),
	}
}

// EstimateSpokenSeconds converts a word count into an approximate
// spoken duration at a conversational pace, rounded to one decimal.
func EstimateSpokenSeconds(wordCount int) float64 {
	if wordCount <= 0 {
		return 0
	}
	seconds := float64(wordCount) / SpokenWordsPerSecond
	return float64(int(seconds*10+0.5)) / 10
}

// Voice describes one synthesis voice offered by the speech vendor.
// Returned by the voices endpoints as an opaque passthrough.
type Voice struct {
	VoiceID     string            `json:"voice_id"`              // Vendor identifier for the voice.
	Name        string            `json:"name"`                  // Human-readable voice name.
	Category    string            `json:"category,omitempty"`    // Vendor grouping, e.g. "premade" or "cloned".
	Description string            `json:"description,omitempty"` // Vendor-supplied description, when present.
	Labels      map[string]string `json:"labels,omitempty"`      // Vendor tags such as accent or age.
}
