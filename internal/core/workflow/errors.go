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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file defines the
// error taxonomy those pipelines report, so the transport layer can map each
// failure class onto a response without parsing message text.
//
// The taxonomy mirrors how the pipeline actually fails:
//
//   - NoMomentsFoundError: the vendor search worked but returned nothing
//     usable. The caller sent a valid request; the media simply does not
//     cover the topic.
//   - UpstreamServiceError: a vendor call in one of the fail-fast stages
//     (moment search, context analysis, script writing) broke. The wrapped
//     error carries the vendor detail, the Stage field says where.
//   - SynthesisUnavailableError: text-to-speech could not produce audio.
//     The main pipeline downgrades this to a script-only success, but the
//     standalone synthesis endpoint surfaces it directly.
package workflow

import (
	"errors"
	"fmt"
)

// NoMomentsFoundError reports that the moment search completed without
// returning a single usable clip for the requested topic. There is nothing
// to analyze, script, or voice, so the pipeline stops at stage one.
type NoMomentsFoundError struct {
	Topic    string // The topic the caller asked for.
	MediaURL string // The media that was searched.
}

func (e *NoMomentsFoundError) Error() string {
	return fmt.Sprintf("no moments found for topic %q in media %q", e.Topic, e.MediaURL)
}

// UpstreamServiceError wraps a vendor failure from one of the first three
// pipeline stages. These stages are fail-fast: the pipeline cannot produce a
// meaningful result without them, so the whole run is reported as failed.
type UpstreamServiceError struct {
	Stage string // The name of the pipeline stage that failed.
	Err   error  // The underlying vendor error.
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("upstream service failure in stage %q: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying vendor error to errors.Is and errors.As.
func (e *UpstreamServiceError) Unwrap() error {
	return e.Err
}

// SynthesisUnavailableError indicates the text-to-speech stage could not
// produce audio, either because no synthesizer is configured or because the
// vendor call failed. The voicenote pipeline treats this as recoverable and
// still returns the script.
type SynthesisUnavailableError struct {
	Err error // The underlying cause, may be nil when simply unconfigured.
}

func (e *SynthesisUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("speech synthesis unavailable: %v", e.Err)
	}
	return "speech synthesis unavailable"
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *SynthesisUnavailableError) Unwrap() error {
	return e.Err
}

// IsNoMomentsFound reports whether err, or anything it wraps, is a
// NoMomentsFoundError.
func IsNoMomentsFound(err error) bool {
	var target *NoMomentsFoundError
	return errors.As(err, &target)
}

// IsUpstreamServiceError reports whether err, or anything it wraps, is an
// UpstreamServiceError.
func IsUpstreamServiceError(err error) bool {
	var target *UpstreamServiceError
	return errors.As(err, &target)
}

// IsSynthesisUnavailable reports whether err, or anything it wraps, is a
// SynthesisUnavailableError.
func IsSynthesisUnavailable(err error) bool {
	var target *SynthesisUnavailableError
	return errors.As(err, &target)
}
