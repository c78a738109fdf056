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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command that opens the voicenote pipeline: searching a remote media file
// for the moments most relevant to the requested topic.
//
// Logic Flow:
//  1. It receives the caller's pipeline request from the context under the
//     canonical request key.
//  2. It builds the list of search phrases. The literal topic always comes
//     first so that ranking favors it, followed by any configured widening
//     variations of the topic, followed by any extra phrases the caller
//     supplied verbatim.
//  3. It submits one moment-search job for the whole phrase list and waits
//     for the ranked results.
//  4. An empty result set is a valid vendor answer, not a failure. The
//     command records a zero count and produces no output, which makes every
//     later stage skip itself, and the workflow turns the zero count into a
//     not-found result for the caller.
package commands

import (
	goctx "context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/podvox/podvox/internal/core/cor"
	"github.com/podvox/podvox/internal/core/model"
)

// MomentSource is the capability this command needs from a vendor client:
// given a search query, return clip moments ordered by relevance.
// *vendors.SieveClient satisfies it.
type MomentSource interface {
	FindMoments(ctx goctx.Context, query model.MomentQuery) ([]*model.Moment, error)
}

// MomentFinder is the command that performs the ranked moment search.
type MomentFinder struct {
	cor.BaseCommand
	source        MomentSource        // The vendor client that runs the search.
	minClipLength float64             // The minimum usable clip length, in seconds.
	widenQueries  []string            // Format strings, each with one %s verb that receives the topic.
	momentCounter metric.Int64Counter // OTel counter for the number of moments returned.
}

// NewMomentFinder is the constructor for the MomentFinder command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - source: The vendor client used to run the moment search.
//   - minClipLength: The minimum clip length in seconds a moment must have.
//   - widenQueries: Optional format strings used to derive extra search
//     phrases from the topic.
//
// Outputs:
//   - *MomentFinder: A pointer to the newly instantiated command.
func NewMomentFinder(
	name string,
	source MomentSource,
	minClipLength float64,
	widenQueries []string) *MomentFinder {

	out := &MomentFinder{
		BaseCommand:   *cor.NewBaseCommand(name),
		source:        source,
		minClipLength: minClipLength,
		widenQueries:  widenQueries}

	out.momentCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.moments.found", out.GetName()))

	return out
}

// GetPipelineRequestParameterName returns the canonical key under which the
// workflow stores the caller's request in the context. Using a function for
// this ensures consistency across the commands that need request fields.
func GetPipelineRequestParameterName() string {
	return "__PIPELINE_REQUEST__"
}

// GetMomentCountParameterName returns the canonical key under which this
// command records how many moments the search returned. The workflow reads
// it even when the count is zero and no output was produced.
func GetMomentCountParameterName() string {
	return "__MOMENT_COUNT__"
}

// IsExecutable checks that the caller's request is present in the context.
func (c *MomentFinder) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(GetPipelineRequestParameterName()) != nil
}

// Execute runs the moment search and records the ranked results.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *MomentFinder) Execute(context cor.Context) {
	request := context.Get(GetPipelineRequestParameterName()).(*model.PipelineRequest)

	// Assemble the search phrases. Order matters: the vendor ranks results
	// across all phrases, and leading with the literal topic keeps the top
	// result anchored to what the caller actually asked for.
	queries := make([]string, 0, 1+len(c.widenQueries)+len(request.ExtraQueries))
	queries = append(queries, request.Topic)
	for _, widen := range c.widenQueries {
		queries = append(queries, fmt.Sprintf(widen, request.Topic))
	}
	queries = append(queries, request.ExtraQueries...)

	moments, err := c.source.FindMoments(context.GetContext(), model.MomentQuery{
		MediaURL:      request.MediaURL,
		Queries:       queries,
		MinClipLength: c.minClipLength,
	})
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("moment search failed: %w", err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	c.momentCounter.Add(context.GetContext(), int64(len(moments)))

	// Record the count separately from the result list so the workflow can
	// distinguish "vendor returned nothing" from "stage never ran".
	context.Add(GetMomentCountParameterName(), len(moments))

	// With no moments there is nothing for the rest of the pipeline to work
	// on. Producing no output makes the downstream commands skip themselves.
	if len(moments) == 0 {
		return
	}

	context.Add(c.GetOutputParam(), moments)
	context.Add(cor.CtxOut, moments)
}
