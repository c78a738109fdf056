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
// This file implements a wrapper around the script-writing model backends.
// The wrapper uses the Decorator design pattern to add extra functionality
// to an existing object without altering its code. Specifically, it adds
// rate limiting and a retry mechanism to whichever LLM backend is in use.
//
// Why this matters here:
//   - Rate Limiting: LLM providers enforce request quotas. The wrapper keeps
//     the application under those limits instead of burning requests into
//     429 responses.
//   - Retry Logic: completion requests occasionally fail for transient
//     reasons. The wrapper retries a bounded number of times before giving
//     up. The pipeline itself never retries; this is the one place a second
//     attempt happens, and it is scoped to a single vendor call.
//
// Structs:
//   - QuotaAwareScriptModel: A struct that wraps a `ScriptBackend` and adds
//     a rate limiter.
//
// Functions:
//   - NewQuotaAwareModel: A constructor to create a new instance of the wrapped model.
//   - Generate: An overridden method that intercepts calls to the backend
//     to enforce rate limiting and retries.
package vendors

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ScriptBackend is the provider-side contract for script generation. Both
// the OpenAI and Gemini adapters implement it; the quota wrapper decorates
// it.
type ScriptBackend interface {
	// Generate produces one completion for a system instruction plus a user
	// message and returns the raw text.
	Generate(ctx context.Context, system string, user string) (string, error)

	// Close releases any underlying connection resources.
	Close() error
}

// QuotaAwareScriptModel is a decorator struct that wraps a ScriptBackend to
// add rate-limiting capabilities. It satisfies ScriptBackend itself, so
// callers never know whether they hold a raw backend or a wrapped one.
type QuotaAwareScriptModel struct {
	Backend   ScriptBackend // The wrapped LLM adapter.
	ModelName string        // The vendor model name, kept for logging.
	RateLimit rate.Limiter  // A rate limiter from golang.org/x/time to control request frequency.
}

// NewQuotaAwareModel is a constructor function that creates a new
// QuotaAwareScriptModel. It takes the backend and a rate limit (in requests
// per second) and returns the enhanced, quota-aware model.
//
// Inputs:
//   - wrapped: The ScriptBackend to be wrapped.
//   - name: The vendor model name, used for logging.
//   - requestsPerSecond: An integer specifying the maximum number of API calls allowed per second.
//
// Outputs:
//   - *QuotaAwareScriptModel: A pointer to the newly created wrapper.
func NewQuotaAwareModel(wrapped ScriptBackend, name string, requestsPerSecond int) *QuotaAwareScriptModel {
	if requestsPerSecond <= 0 {
		// A zero burst would never admit a request.
		requestsPerSecond = 1
	}
	return &QuotaAwareScriptModel{
		Backend:   wrapped,
		ModelName: name,
		// Creates a new rate limiter that allows a burst of `requestsPerSecond` events
		// and replenishes the "token bucket" at a rate of 1 token per second.
		RateLimit: *rate.NewLimiter(rate.Every(time.Second/1), requestsPerSecond),
	}
}

// Generate intercepts calls to the wrapped backend. This is where the
// rate-limiting and retry logic is implemented.
//
// Logic Flow:
//  1. Check the rate limiter.
//  2. If a request is allowed:
//     a. Call the backend's Generate method.
//     b. If it fails, check the retry count carried on the context.
//     c. If retries are available, wait briefly and recursively try again.
//     d. If no retries are left, return the error.
//  3. If a request is NOT allowed (rate-limited):
//     a. Wait for a short period.
//     b. Recursively call itself to re-queue the request.
//
// Inputs:
//   - ctx: The context for the request. It also carries retry state.
//   - system: The system instruction for the model.
//   - user: The user message for the model.
//
// Outputs:
//   - string: The completion text if successful.
//   - error: An error if the request fails after all retries.
func (q *QuotaAwareScriptModel) Generate(ctx context.Context, system string, user string) (string, error) {
	// The `Allow()` method checks if an event can happen now. It's a non-blocking check.
	if q.RateLimit.Allow() {
		// If allowed, proceed to call the actual backend.
		value, err := q.Backend.Generate(ctx, system, user)
		if err != nil {
			// If an error occurred during the API call, start the retry logic.
			// Get the current retry count from the context. `Value()` returns an
			// interface{}, so we must type-assert it to an `int`.
			retryCount, ok := ctx.Value("retry").(int)
			if !ok {
				// This is the first attempt.
				retryCount = 0
			}
			if retryCount >= MaxRetries {
				// If we have exceeded the maximum number of retries, give up.
				return "", errors.New("failed generation on max retries: " + err.Error())
			}
			// If more retries are allowed, create a new context with an incremented retry count.
			errCtx := context.WithValue(ctx, "retry", retryCount+1)
			// Give the service a moment to recover before retrying.
			time.Sleep(time.Second * 2)
			// Recursively call this function to try again.
			return q.Generate(errCtx, system, user)
		}
		// If the API call was successful, return the completion.
		return value, nil
	}
	// If the rate limiter did not allow the request, wait for a second.
	// This pauses the execution of this specific request, effectively "queueing" it.
	time.Sleep(time.Second * 1)
	// After waiting, recursively call this function to try obtaining a token from the rate limiter again.
	return q.Generate(ctx, system, user)
}

// Close releases the wrapped backend's resources.
func (q *QuotaAwareScriptModel) Close() error {
	return q.Backend.Close()
}
