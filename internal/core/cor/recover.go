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

// Package cor (Chain of Responsibility) provides the fundamental building blocks
// for creating workflows. This file defines `RecoverableCommand`, a decorator
// that makes one command in a chain optional: if the wrapped command records an
// error, the decorator absorbs it so the chain finishes cleanly, and parks the
// error under a separate context key for the workflow to inspect. A chain
// running with `continueOnFailure` false therefore fails fast on every command
// EXCEPT the ones wrapped here.
package cor

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// RecoverableCommand wraps another Command and converts its failure into a
// non-fatal note on the context. The wrapper is transparent for naming and
// telemetry: spans, counters, and the recorded timing all carry the wrapped
// command's identity.
type RecoverableCommand struct {
	wrapped Command // The command whose failure is tolerated.
	noteKey string  // Context key under which an absorbed error is parked.
}

// NewRecoverableCommand is the constructor for RecoverableCommand.
//
// Inputs:
//   - wrapped: the command whose failure should not fail the chain.
//   - noteKey: the context key where an absorbed error is stored.
//
// Outputs:
//   - *RecoverableCommand: a pointer to the newly instantiated decorator.
func NewRecoverableCommand(wrapped Command, noteKey string) *RecoverableCommand {
	return &RecoverableCommand{wrapped: wrapped, noteKey: noteKey}
}

// Execute runs the wrapped command and then absorbs any error it recorded.
// The chain stops at the first failed command, so an error found under the
// wrapped command's name after Execute can only have come from this run.
//
// Inputs:
//   - context: The shared `Context` for the workflow.
func (c *RecoverableCommand) Execute(context Context) {
	c.wrapped.Execute(context)

	if err, ok := context.GetErrors()[c.wrapped.GetName()]; ok {
		context.RemoveError(c.wrapped.GetName())
		context.Add(c.noteKey, err)
		// The wrapped command produced no output; clear any stale piped value
		// so the next command (if any) does not read the previous stage's.
		context.Remove(CtxOut)
	}
}

// GetName returns the wrapped command's name so traces and timings keep the
// stage's identity.
func (c *RecoverableCommand) GetName() string { return c.wrapped.GetName() }

// GetInputParam delegates to the wrapped command.
func (c *RecoverableCommand) GetInputParam() string { return c.wrapped.GetInputParam() }

// GetOutputParam delegates to the wrapped command.
func (c *RecoverableCommand) GetOutputParam() string { return c.wrapped.GetOutputParam() }

// IsExecutable delegates to the wrapped command.
func (c *RecoverableCommand) IsExecutable(context Context) bool {
	return c.wrapped.IsExecutable(context)
}

// GetTracer delegates to the wrapped command.
func (c *RecoverableCommand) GetTracer() trace.Tracer { return c.wrapped.GetTracer() }

// GetMeter delegates to the wrapped command.
func (c *RecoverableCommand) GetMeter() metric.Meter { return c.wrapped.GetMeter() }

// GetSuccessCounter delegates to the wrapped command.
func (c *RecoverableCommand) GetSuccessCounter() metric.Int64Counter {
	return c.wrapped.GetSuccessCounter()
}

// GetErrorCounter delegates to the wrapped command.
func (c *RecoverableCommand) GetErrorCounter() metric.Int64Counter {
	return c.wrapped.GetErrorCounter()
}
