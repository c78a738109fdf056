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
// This file implements the client for the moments/analysis vendor, a
// push/poll job API: a function invocation is POSTed to /push, which
// returns a job ID, and the job is then polled until it reaches a terminal
// status. Two hosted functions are used: a "moments" search that returns
// ranked time ranges for a query, and an "ask" function that answers a
// free-text question about a time range.
//
// The vendor's output payloads are not uniform: a moments job returns
// either a bare metadata object per moment or, when rendering was
// requested, a [clip, metadata] pair. All of that variance is normalized
// here into `model.Moment` values so no caller ever branches on wire
// shapes.
package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/podvox/podvox/internal/core/model"
)

// Hosted function names and analysis backends offered by the vendor.
const (
	sieveFunctionMoments = "sieve/moments" // Time-range search ranked by relevance.
	sieveFunctionAsk     = "sieve/ask"     // Free-text QA over a time range.

	// BackendFast favors latency; BackendContextual favors answer depth.
	BackendFast       = "sieve-fast"
	BackendContextual = "sieve-contextual"
)

// Terminal and transient job states reported by the polling endpoint.
const (
	jobStatusQueued     = "queued"
	jobStatusProcessing = "processing"
	jobStatusFinished   = "finished"
	jobStatusError      = "error"
	jobStatusCancelled  = "cancelled"
)

// Defaults applied when the configuration leaves a knob unset.
const (
	defaultSieveBaseURL      = "https://mango.sievedata.com/v2"
	defaultPollInterval      = 2 * time.Second
	defaultJobTimeout        = 10 * time.Minute
	defaultRequestTimeoutSec = 30
)

// SieveClient talks to the push/poll job API. It is safe for concurrent
// use; all state is immutable after construction.
type SieveClient struct {
	baseURL      string        // API root without a trailing slash.
	apiKey       string        // Sent in the X-API-Key header on every call.
	backend      string        // Default analysis backend for ask jobs.
	pollInterval time.Duration // Delay between job status polls.
	jobTimeout   time.Duration // Upper bound on one job's total wait.
	httpClient   *http.Client  // Owns the per-request timeout.
}

// NewSieveClient is the constructor for SieveClient. Zero-valued settings
// fall back to the package defaults.
//
// Inputs:
//   - config: the vendor connection settings.
//
// Outputs:
//   - *SieveClient: the initialized client.
func NewSieveClient(config SieveConfig) *SieveClient {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultSieveBaseURL
	}
	backend := config.Backend
	if backend == "" {
		backend = BackendFast
	}
	pollInterval := time.Duration(config.PollIntervalSeconds * float64(time.Second))
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	jobTimeout := time.Duration(config.JobTimeoutSeconds) * time.Second
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	requestTimeout := config.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeoutSec
	}
	return &SieveClient{
		baseURL:      baseURL,
		apiKey:       config.APIKey,
		backend:      backend,
		pollInterval: pollInterval,
		jobTimeout:   jobTimeout,
		httpClient:   &http.Client{Timeout: time.Duration(requestTimeout) * time.Second},
	}
}

// Backend returns the configured default analysis backend.
func (c *SieveClient) Backend() string {
	return c.backend
}

// sievePushRequest is the wire format for submitting a function invocation.
type sievePushRequest struct {
	Function string                 `json:"function"` // Hosted function name, e.g. "sieve/moments".
	Inputs   map[string]interface{} `json:"inputs"`   // Function arguments.
}

// sievePushResponse carries the job handle returned by /push.
type sievePushResponse struct {
	ID string `json:"id"`
}

// sieveJob is the polled job record.
type sieveJob struct {
	ID      string           `json:"id"`
	Status  string           `json:"status"`
	Error   string           `json:"error,omitempty"`
	Outputs []sieveJobOutput `json:"outputs"`
}

// sieveJobOutput is one output entry of a finished job. Data is kept raw
// because its shape depends on the function and its arguments.
type sieveJobOutput struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// FindMoments runs one moments search per query phrase and returns the
// union of results in query order, preserving the vendor's ranking within
// each query. An empty result is returned as an empty slice, not an error;
// the orchestrator decides what that means.
//
// Inputs:
//   - ctx: The context for the calls.
//   - query: The media URL, query phrases, and search window.
//
// Outputs:
//   - []*model.Moment: the normalized, ranked moments.
//   - error: an error if any job submission, poll, or payload parse fails.
func (c *SieveClient) FindMoments(ctx context.Context, query model.MomentQuery) ([]*model.Moment, error) {
	endTime := query.EndTime
	if endTime == 0 {
		// Zero means "to the end of the media", which the vendor spells -1.
		endTime = -1
	}

	moments := make([]*model.Moment, 0)
	for _, phrase := range query.Queries {
		inputs := map[string]interface{}{
			"video":           map[string]string{"url": query.MediaURL},
			"query":           phrase,
			"min_clip_length": query.MinClipLength,
			"start_time":      query.StartTime,
			"end_time":        endTime,
			"render":          query.Render,
		}
		outputs, err := c.runJob(ctx, sieveFunctionMoments, inputs)
		if err != nil {
			return nil, fmt.Errorf("moments search for %q failed: %w", phrase, err)
		}
		for _, output := range outputs {
			parsed, err := normalizeMomentPayload(output.Data)
			if err != nil {
				return nil, fmt.Errorf("moments search for %q returned an unexpected shape: %w", phrase, err)
			}
			moments = append(moments, parsed...)
		}
	}
	return moments, nil
}

// AnalyzeRange asks the vendor a free-text question about a time range of
// the media and returns the answer.
//
// Inputs:
//   - ctx: The context for the calls.
//   - query: The media URL, question prompt, time range, and backend.
//
// Outputs:
//   - *model.ContextAnalysis: the answer tagged with the analyzed range.
//   - error: an error if the job fails or returns no usable answer.
func (c *SieveClient) AnalyzeRange(ctx context.Context, query model.AnalysisQuery) (*model.ContextAnalysis, error) {
	backend := query.Backend
	if backend == "" {
		backend = c.backend
	}
	endTime := query.EndTime
	if endTime == 0 {
		endTime = -1
	}

	inputs := map[string]interface{}{
		"video":      map[string]string{"url": query.MediaURL},
		"prompt":     query.Prompt,
		"start_time": query.StartTime,
		"end_time":   endTime,
		"backend":    backend,
	}
	outputs, err := c.runJob(ctx, sieveFunctionAsk, inputs)
	if err != nil {
		return nil, fmt.Errorf("content analysis failed: %w", err)
	}
	answer := normalizeAnswerPayload(outputs)
	if answer == "" {
		return nil, fmt.Errorf("content analysis returned an empty answer")
	}
	return &model.ContextAnalysis{
		Answer:    answer,
		StartTime: query.StartTime,
		EndTime:   endTime,
		Backend:   backend,
	}, nil
}

// runJob submits one function invocation and waits for its outputs.
func (c *SieveClient) runJob(ctx context.Context, function string, inputs map[string]interface{}) ([]sieveJobOutput, error) {
	jobID, err := c.submitJob(ctx, function, inputs)
	if err != nil {
		return nil, err
	}
	return c.awaitJob(ctx, jobID)
}

// submitJob POSTs a function invocation to /push and returns the job ID.
func (c *SieveClient) submitJob(ctx context.Context, function string, inputs map[string]interface{}) (string, error) {
	payload, err := json.Marshal(sievePushRequest{Function: function, Inputs: inputs})
	if err != nil {
		return "", fmt.Errorf("failed to encode job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/push", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build job request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("job submission failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("job submission returned status %d: %s", resp.StatusCode, string(body))
	}

	var pushed sievePushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushed); err != nil {
		return "", fmt.Errorf("failed to decode job submission response: %w", err)
	}
	if pushed.ID == "" {
		return "", fmt.Errorf("job submission response carried no job id")
	}
	return pushed.ID, nil
}

// awaitJob polls /jobs/{id} until the job reaches a terminal status or the
// job timeout elapses.
func (c *SieveClient) awaitJob(ctx context.Context, jobID string) ([]sieveJobOutput, error) {
	deadline := time.NewTimer(c.jobTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("job %s did not finish within %s", jobID, c.jobTimeout)
		case <-ticker.C:
			job, err := c.getJob(ctx, jobID)
			if err != nil {
				return nil, err
			}
			switch job.Status {
			case jobStatusFinished:
				return job.Outputs, nil
			case jobStatusError, jobStatusCancelled:
				return nil, fmt.Errorf("job %s ended with status %s: %s", jobID, job.Status, job.Error)
			case jobStatusQueued, jobStatusProcessing:
				// Keep polling.
			default:
				return nil, fmt.Errorf("job %s reported unknown status %q", jobID, job.Status)
			}
		}
	}
}

// getJob fetches the current job record.
func (c *SieveClient) getJob(ctx context.Context, jobID string) (*sieveJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build job status request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("job status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("job status request returned status %d: %s", resp.StatusCode, string(body))
	}

	var job sieveJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job status response: %w", err)
	}
	return &job, nil
}

// sieveMomentMetadata is the vendor's wire shape for one moment.
type sieveMomentMetadata struct {
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Score       float64 `json:"score,omitempty"`
	Description string  `json:"description,omitempty"`
}

// sieveClipRef is the first element of a rendered [clip, metadata] pair.
type sieveClipRef struct {
	URL string `json:"url"`
}

// normalizeMomentPayload converts one job output payload to Moment values.
// Three shapes occur in the wild:
//   - a single metadata object: {"start_time": ..., "end_time": ...}
//   - a list of metadata objects
//   - a [clip, metadata] pair when rendering was requested
func normalizeMomentPayload(data json.RawMessage) ([]*model.Moment, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	// The object form is the common case.
	if trimmed[0] == '{' {
		var meta sieveMomentMetadata
		if err := json.Unmarshal(trimmed, &meta); err != nil {
			return nil, err
		}
		return []*model.Moment{momentFromMetadata(meta, "")}, nil
	}

	if trimmed[0] != '[' {
		return nil, fmt.Errorf("payload is neither an object nor an array")
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, nil
	}

	// A two-element array whose head carries a URL is a rendered pair.
	if len(elements) == 2 {
		var clip sieveClipRef
		if err := json.Unmarshal(elements[0], &clip); err == nil && clip.URL != "" {
			var meta sieveMomentMetadata
			if err := json.Unmarshal(elements[1], &meta); err != nil {
				return nil, err
			}
			return []*model.Moment{momentFromMetadata(meta, clip.URL)}, nil
		}
	}

	// Otherwise every element is a metadata object.
	moments := make([]*model.Moment, 0, len(elements))
	for _, element := range elements {
		var meta sieveMomentMetadata
		if err := json.Unmarshal(element, &meta); err != nil {
			return nil, err
		}
		moments = append(moments, momentFromMetadata(meta, ""))
	}
	return moments, nil
}

// momentFromMetadata maps the wire metadata to the internal Moment type.
func momentFromMetadata(meta sieveMomentMetadata, clipURL string) *model.Moment {
	return &model.Moment{
		StartTime:   meta.StartTime,
		EndTime:     meta.EndTime,
		Duration:    meta.EndTime - meta.StartTime,
		ClipURL:     clipURL,
		Description: meta.Description,
	}
}

// normalizeAnswerPayload extracts the answer text from an ask job's
// outputs. The answer arrives either as a JSON string or as an object with
// an "answer" field; anything else is used verbatim.
func normalizeAnswerPayload(outputs []sieveJobOutput) string {
	for _, output := range outputs {
		trimmed := bytes.TrimSpace(output.Data)
		if len(trimmed) == 0 {
			continue
		}
		var text string
		if err := json.Unmarshal(trimmed, &text); err == nil {
			if strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
			continue
		}
		var wrapped struct {
			Answer string `json:"answer"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err == nil && strings.TrimSpace(wrapped.Answer) != "" {
			return strings.TrimSpace(wrapped.Answer)
		}
		return strings.TrimSpace(string(trimmed))
	}
	return ""
}
