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
// file, `examples.go`, provides factory functions for hardcoded sample
// instances of the data models. The sample script backs the speech
// smoke-test endpoint, which synthesizes a known-good message without
// running the full pipeline, and the sample moments give tests a
// realistic ranked result set to work with.
package model

// GetExampleScript returns a canned outreach message of the shape the
// script writer is expected to produce: first person, name up front,
// one specific content reference, soft closing invitation, under the
// word budget.
//
// Outputs:
//   - *Script: a pointer to a hardcoded Script object.
func GetExampleScript() *Script {
	return NewScript(
		"Hey Steven, just listened to your take on founder mode versus manager mode "+
			"and your point about small teams shipping faster really stuck with me. "+
			"We're wrestling with exactly that right now. Would love to swap notes "+
			"sometime if you're up for it.",
		"casual",
		20,
	)
}

// GetExampleMoments returns a ranked two-element moment list. The first
// entry is the best match; consumers that honor the ranking must act on
// it and never on the second.
//
// Outputs:
//   - []*Moment: a slice of hardcoded Moment objects, best first.
func GetExampleMoments() []*Moment {
	return []*Moment{
		{
			StartTime:   10,
			EndTime:     20,
			Duration:    10,
			Description: "Host explains why founder-led sales still wins early on.",
		},
		{
			StartTime:   100,
			EndTime:     110,
			Duration:    10,
			Description: "Passing mention of the same theme during listener questions.",
		},
	}
}
