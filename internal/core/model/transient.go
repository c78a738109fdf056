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

// Package model defines the core data structures for the application.
// This file, `transient.go`, contains struct definitions for data that
// exists only for the duration of a single pipeline run. These objects
// are created by one stage, handed to the next through the chain
// context, and discarded when the HTTP response is written. Nothing in
// this file is persisted; each run owns its own copies and there are no
// concurrent writers.
package model

import (
	"strings"
	"time"
)

// Moment is a vendor-identified time range within a media file judged
// relevant to a query. Moments arrive ranked by the vendor; the first
// element of a returned slice is treated as the best match and the
// order is never changed locally.
type Moment struct {
	StartTime   float64 `json:"start_time"`            // Offset of the range start, in seconds from the beginning of the media.
	EndTime     float64 `json:"end_time"`              // Offset of the range end, in seconds.
	Duration    float64 `json:"duration"`              // Convenience field, EndTime - StartTime.
	ClipURL     string  `json:"clip_url,omitempty"`    // URL of a rendered clip. Only present when the search was run with rendering enabled.
	Description string  `json:"description,omitempty"` // Vendor-supplied relevance note for the range, when available.
}

// MomentQuery carries the inputs for a moments search. It is built by
// the orchestrator (or directly by the component endpoint) and consumed
// by the moments adapter.
type MomentQuery struct {
	MediaURL      string   `json:"media_url"`       // Public URL of the media file to search.
	Queries       []string `json:"queries"`         // Natural-language search phrases, tried in order.
	MinClipLength float64  `json:"min_clip_length"` // Minimum acceptable range length in seconds.
	StartTime     float64  `json:"start_time"`      // Lower bound of the search window in seconds. Zero means the beginning.
	EndTime       float64  `json:"end_time"`        // Upper bound of the search window. Negative means the end of the media.
	Render        bool     `json:"render"`          // When true the vendor also renders a clip per moment.
}

// AnalysisQuery carries the inputs for a time-ranged content question.
type AnalysisQuery struct {
	MediaURL  string  `json:"media_url"`  // Public URL of the media file.
	Prompt    string  `json:"prompt"`     // The question(s) to answer about the range.
	StartTime float64 `json:"start_time"` // Range start in seconds.
	EndTime   float64 `json:"end_time"`   // Range end in seconds. Negative means the end of the media.
	Backend   string  `json:"backend"`    // Vendor analysis backend name, e.g. "sieve-fast".
}

// ContextAnalysis holds the free-text answer produced for a moment's
// time range. It is produced once by the analysis stage and consumed
// once by the script writer.
type ContextAnalysis struct {
	Answer    string  `json:"answer"`             // The vendor's free-text answer.
	StartTime float64 `json:"context_start_time"` // Start of the analyzed range in seconds.
	EndTime   float64 `json:"context_end_time"`   // End of the analyzed range in seconds.
	Backend   string  `json:"backend_used"`       // Which analysis backend produced the answer.
}

// Script is the generated outreach message. The text targets a spoken
// length of roughly twenty seconds, which the system prompt enforces as
// a word budget rather than a hard limit.
type Script struct {
	Text                string    `json:"script"`                // The message text, first person, ready for synthesis.
	WordCount           int       `json:"word_count"`            // Number of whitespace-separated words in Text.
	TargetLengthSeconds int       `json:"target_length_seconds"` // Spoken-length target the prompt asked for.
	Tone                string    `json:"tone"`                  // Tone requested from the model, e.g. "casual".
	CreatedAt           time.Time `json:"created_at"`            // Generation timestamp, UTC.
}

// NewScript builds a Script from generated text, deriving the word
// count from the text itself.
//
// Inputs:
//   - text: the model output, already stripped of surrounding quotes.
//   - tone: the tone the prompt asked for.
//   - targetLengthSeconds: the spoken-length target used in the prompt.
//
// Outputs:
//   - *Script: the populated script value.
func NewScript(text string, tone string, targetLengthSeconds int) *Script {
	return &Script{
		Text:                text,
		WordCount:           len(strings.Fields(text)),
		TargetLengthSeconds: targetLengthSeconds,
		Tone:                tone,
		CreatedAt:           time.Now().UTC(),
	}
}

// StageTimes is the per-stage wall-clock breakdown of one pipeline run,
// in seconds rounded to two decimals. The individual fields are always
// non-negative and their sum never exceeds Total; stages that were
// skipped report zero.
type StageTimes struct {
	FindMoments float64 `json:"stage1_moments"` // Elapsed time of the moments search stage.
	Analyze     float64 `json:"stage2_ask"`     // Elapsed time of the content analysis stage.
	WriteScript float64 `json:"stage3_script"`  // Elapsed time of the script generation stage.
	Synthesize  float64 `json:"stage4_speech"`  // Elapsed time of the speech synthesis stage.
	Total       float64 `json:"total"`          // Wall-clock time of the whole run.
}

// PipelineRequest is the caller's input to a full voicenote run.
// MediaURL and Topic are mandatory; everything else has a sensible
// default.
type PipelineRequest struct {
	MediaURL     string   `json:"media_url" binding:"required"` // Public URL of the podcast media to mine.
	Topic        string   `json:"topic" binding:"required"`     // What to look for, e.g. "thoughts on AI".
	DisplayName  string   `json:"display_name"`                 // Prospect first name for personalization. Defaults to a generic placeholder.
	PodcastName  string   `json:"podcast_name"`                 // Podcast title mentioned in the script, when known.
	VoiceID      string   `json:"voice_id"`                     // Overrides the configured synthesis voice.
	ExtraQueries []string `json:"extra_queries"`                // Additional search phrasings tried alongside Topic.
}

// PipelineResult is the aggregate outcome of one run: the script, the
// stage timing breakdown, a human-readable processing log, and the
// voicenote reference when synthesis succeeded. It doubles as the HTTP
// response body for the pipeline endpoint.
type PipelineResult struct {
	Success         bool       `json:"success"`             // True when the script was produced, even if synthesis degraded.
	Script          string     `json:"script"`              // The generated message text.
	ScriptWordCount int        `json:"script_word_count"`   // Word count of Script.
	MomentsFound    int        `json:"moments_found"`       // How many moments stage 1 returned.
	StageTimes      StageTimes `json:"stage_times"`         // Per-stage elapsed seconds.
	ProcessingLog   []string   `json:"processing_log"`      // Ordered notes about what each stage did.
	Voicenote       *Voicenote `json:"voicenote,omitempty"` // Present only when stage 4 produced audio.
}
