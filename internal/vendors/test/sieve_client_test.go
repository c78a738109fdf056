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
// clients. This file tests the push/poll job client against a local HTTP
// stand-in for the vendor: job submission and authentication, the poll loop,
// normalization of the vendor's varied output payload shapes, and error
// propagation from failed jobs.
package vendors_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/podvox/podvox/internal/core/model"
	"github.com/podvox/podvox/internal/vendors"
	"github.com/stretchr/testify/assert"
)

// newSieveClient builds a client pointed at the test server with a poll
// interval fast enough to keep the suite quick.
func newSieveClient(baseURL string) *vendors.SieveClient {
	return vendors.NewSieveClient(vendors.SieveConfig{
		BaseURL:             baseURL,
		APIKey:              "test-key",
		Backend:             "sieve-contextual",
		PollIntervalSeconds: 0.001,
		JobTimeoutSeconds:   5,
		RequestTimeout:      5,
	})
}

// TestSieveClientFindMoments runs a full moments search against the test
// server. It verifies the submitted function invocation (authentication
// header, phrase, clip floor, and the -1 spelling of "to the end of the
// media"), exercises the poll loop through one transient status, and checks
// that the list-form payload is normalized into ranked Moment values.
func TestSieveClientFindMoments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/push", func(w http.ResponseWriter, r *http.Request) {
		// Every call must authenticate with the account key header.
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		var pushed struct {
			Function string                 `json:"function"`
			Inputs   map[string]interface{} `json:"inputs"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&pushed))
		// The hosted moments function receives the caller's phrase and the
		// configured clip-length floor.
		assert.Equal(t, "sieve/moments", pushed.Function)
		assert.Equal(t, "founder led sales", pushed.Inputs["query"])
		assert.Equal(t, 15.0, pushed.Inputs["min_clip_length"])
		// An unset end time is submitted as -1, the vendor's spelling of
		// "search to the end of the media".
		assert.Equal(t, -1.0, pushed.Inputs["end_time"])
		// The media URL travels inside a video reference object.
		video, ok := pushed.Inputs["video"].(map[string]interface{})
		assert.True(t, ok)
		assert.Equal(t, "https://cdn.example.com/episode.mp3", video["url"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "job-42"}`))
	})

	// Report one transient status before finishing so the poll loop is
	// actually exercised.
	var polls atomic.Int32
	mux.HandleFunc("/v2/jobs/job-42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		if polls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"id": "job-42", "status": "processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"id": "job-42",
			"status": "finished",
			"outputs": [{"type": "list", "data": [
				{"start_time": 30, "end_time": 55, "description": "pricing digression"},
				{"start_time": 90, "end_time": 120}
			]}]
		}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newSieveClient(server.URL + "/v2")
	moments, err := client.FindMoments(context.Background(), model.MomentQuery{
		MediaURL:      "https://cdn.example.com/episode.mp3",
		Queries:       []string{"founder led sales"},
		MinClipLength: 15.0,
	})

	assert.NoError(t, err)
	assert.Len(t, moments, 2)
	// Wire metadata is normalized into Moment values, duration included.
	assert.Equal(t, 30.0, moments[0].StartTime)
	assert.Equal(t, 55.0, moments[0].EndTime)
	assert.Equal(t, 25.0, moments[0].Duration)
	assert.Equal(t, "pricing digression", moments[0].Description)
	// No rendering was requested, so no clip URL is present.
	assert.Empty(t, moments[0].ClipURL)
}

// TestSieveClientFindMomentsRenderedPair verifies the normalization of the
// rendered output shape, where each moment arrives as a [clip, metadata]
// pair instead of a bare metadata object.
func TestSieveClientFindMomentsRenderedPair(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/push", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "job-7"}`))
	})
	mux.HandleFunc("/v2/jobs/job-7", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "job-7",
			"status": "finished",
			"outputs": [{"type": "pair", "data": [
				{"url": "https://cdn.example.com/clip.mp4"},
				{"start_time": 5, "end_time": 25}
			]}]
		}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newSieveClient(server.URL + "/v2")
	moments, err := client.FindMoments(context.Background(), model.MomentQuery{
		MediaURL: "https://cdn.example.com/episode.mp3",
		Queries:  []string{"anything"},
		Render:   true,
	})

	assert.NoError(t, err)
	assert.Len(t, moments, 1)
	// The pair collapses into a single moment carrying the clip URL.
	assert.Equal(t, "https://cdn.example.com/clip.mp4", moments[0].ClipURL)
	assert.Equal(t, 5.0, moments[0].StartTime)
	assert.Equal(t, 25.0, moments[0].EndTime)
	assert.Equal(t, 20.0, moments[0].Duration)
}

// TestSieveClientFindMomentsEmptyResult verifies that a search finding
// nothing is a valid answer, not an error: the client returns an empty slice
// and leaves the interpretation to the orchestrator.
func TestSieveClientFindMomentsEmptyResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/push", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "job-0"}`))
	})
	mux.HandleFunc("/v2/jobs/job-0", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "job-0", "status": "finished", "outputs": [{"type": "list", "data": []}]}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newSieveClient(server.URL + "/v2")
	moments, err := client.FindMoments(context.Background(), model.MomentQuery{
		MediaURL: "https://cdn.example.com/episode.mp3",
		Queries:  []string{"topic nobody discussed"},
	})

	// An empty result set comes back as a usable empty slice.
	assert.NoError(t, err)
	assert.NotNil(t, moments)
	assert.Empty(t, moments)
}

// TestSieveClientJobFailure verifies that a job ending in the error status
// surfaces the vendor's message to the caller.
func TestSieveClientJobFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/push", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "job-9"}`))
	})
	mux.HandleFunc("/v2/jobs/job-9", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "job-9", "status": "error", "error": "GPU quota exceeded"}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newSieveClient(server.URL + "/v2")
	_, err := client.FindMoments(context.Background(), model.MomentQuery{
		MediaURL: "https://cdn.example.com/episode.mp3",
		Queries:  []string{"anything"},
	})

	// The failure names the phrase it was searching for and carries the
	// vendor's own message.
	assert.Error(t, err)
	assert.ErrorContains(t, err, "moments search for \"anything\"")
	assert.ErrorContains(t, err, "GPU quota exceeded")
}

// TestSieveClientAnalyzeRange runs a time-ranged ask job. It verifies that
// the prompt, the range bounds, and the client's default backend are
// submitted, and that a string-form answer payload is returned trimmed.
func TestSieveClientAnalyzeRange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/push", func(w http.ResponseWriter, r *http.Request) {
		var pushed struct {
			Function string                 `json:"function"`
			Inputs   map[string]interface{} `json:"inputs"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&pushed))
		assert.Equal(t, "sieve/ask", pushed.Function)
		assert.Equal(t, "What does the speaker say here?", pushed.Inputs["prompt"])
		assert.Equal(t, 10.0, pushed.Inputs["start_time"])
		assert.Equal(t, 20.0, pushed.Inputs["end_time"])
		// The query left the backend unset, so the client's default is used.
		assert.Equal(t, "sieve-contextual", pushed.Inputs["backend"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "job-ask"}`))
	})
	mux.HandleFunc("/v2/jobs/job-ask", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "job-ask",
			"status": "finished",
			"outputs": [{"type": "str", "data": "  The speaker argues for founder-led sales.  "}]
		}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newSieveClient(server.URL + "/v2")
	analysis, err := client.AnalyzeRange(context.Background(), model.AnalysisQuery{
		MediaURL:  "https://cdn.example.com/episode.mp3",
		Prompt:    "What does the speaker say here?",
		StartTime: 10,
		EndTime:   20,
	})

	assert.NoError(t, err)
	// The answer is trimmed and tagged with the range and backend used.
	assert.Equal(t, "The speaker argues for founder-led sales.", analysis.Answer)
	assert.Equal(t, 10.0, analysis.StartTime)
	assert.Equal(t, 20.0, analysis.EndTime)
	assert.Equal(t, "sieve-contextual", analysis.Backend)
}

// TestSieveClientAnalyzeRangeWrappedAnswer verifies the second answer shape
// seen in the wild, an object with an "answer" field, and that an output
// set with no usable answer is reported as an error rather than an empty
// analysis.
func TestSieveClientAnalyzeRangeWrappedAnswer(t *testing.T) {
	var jobPayload atomic.Value
	jobPayload.Store(`{
		"id": "job-ask",
		"status": "finished",
		"outputs": [{"type": "dict", "data": {"answer": "A wrapped answer."}}]
	}`)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/push", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "job-ask"}`))
	})
	mux.HandleFunc("/v2/jobs/job-ask", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(jobPayload.Load().(string)))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newSieveClient(server.URL + "/v2")
	query := model.AnalysisQuery{
		MediaURL:  "https://cdn.example.com/episode.mp3",
		Prompt:    "What does the speaker say here?",
		StartTime: 0,
		EndTime:   45,
	}

	analysis, err := client.AnalyzeRange(context.Background(), query)
	assert.NoError(t, err)
	// The object form unwraps to the same plain answer text.
	assert.Equal(t, "A wrapped answer.", analysis.Answer)

	// Rerun with a finished job that produced no outputs at all.
	jobPayload.Store(`{"id": "job-ask", "status": "finished", "outputs": []}`)
	_, err = client.AnalyzeRange(context.Background(), query)
	assert.Error(t, err)
	assert.ErrorContains(t, err, "empty answer")
}
