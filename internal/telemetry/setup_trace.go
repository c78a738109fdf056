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

// Package telemetry provides utilities for setting up and configuring
// application observability, including logging, tracing, and metrics.
// This file initializes the OpenTelemetry SDK. Traces and metrics are
// written through the stdout exporters, which keeps the service free of any
// backend dependency; a collector can be pointed at the stream when one is
// available.
package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/sdk/metric"

	"go.opentelemetry.io/contrib/propagators/autoprop"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/podvox/podvox/internal/vendors"
)

// SetupOpenTelemetry initializes and configures the OpenTelemetry SDK for
// the entire application. It sets up both tracing and metrics and returns a
// `shutdown` function that must be called on application exit to ensure all
// buffered telemetry data is flushed before the application terminates.
//
// Inputs:
//   - ctx: The parent context, used for initialization.
//   - config: The application's configuration struct, which provides the
//     service name and version reported on every span and metric.
//
// Returns:
//   - shutdown: A function that should be deferred by the caller to
//     gracefully shut down all telemetry components.
//   - err: An error if any part of the setup fails.
func SetupOpenTelemetry(ctx context.Context, config *vendors.Config) (shutdown func(context.Context) error, err error) {
	// A slice to hold all the shutdown functions for the various telemetry components.
	var shutdownFuncs []func(context.Context) error

	// The returned shutdown function iterates over the shutdownFuncs slice and calls
	// each one, joining any errors that occur. This provides a single function to
	// cleanly tear down the entire telemetry pipeline.
	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	// --- Resource Detection ---
	// A "resource" represents the entity producing telemetry, described as a
	// set of attributes attached to every span and metric.
	res, err := resource.New(ctx,
		// Includes default attributes about the SDK itself.
		resource.WithTelemetrySDK(),
		// The service name and version are what the backend filters on.
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.Application.Name),
			semconv.ServiceVersionKey.String(config.Application.Version),
		),
	)
	if errors.Is(err, resource.ErrPartialResource) || errors.Is(err, resource.ErrSchemaURLConflict) {
		slog.Warn("partial resource detection", "error", err)
	} else if err != nil {
		slog.Error("resource.New failed", "error", err)
		return nil, err
	}

	// --- Propagator Setup ---
	// A propagator injects and extracts trace context on requests, enabling
	// distributed tracing across services. `autoprop` configures the
	// standard set (W3C Trace Context, B3) automatically.
	otel.SetTextMapPropagator(autoprop.NewTextMapPropagator())

	// --- Trace Exporter and Provider Setup ---
	traceExporter, err := stdouttrace.New()
	if err != nil {
		slog.Error("unable to set up trace exporter", "error", err)
		return nil, err
	}

	// The TracerProvider is the factory for creating Tracers.
	tp := sdktrace.NewTracerProvider(
		// WithBatcher sends spans in batches, which is much more efficient
		// than sending them one by one.
		sdktrace.WithBatcher(traceExporter),
		// Attaches the resource information to all spans.
		sdktrace.WithResource(res),
	)

	shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	otel.SetTracerProvider(tp)

	// --- Metric Exporter and Provider Setup ---
	mExporter, err := stdoutmetric.New()
	if err != nil {
		slog.Error("unable to set up metric exporter", "error", err)
		return nil, err
	}

	// The MeterProvider is the factory for creating Meters.
	mProvider := metric.NewMeterProvider(
		// Configures the provider to read and export metrics periodically.
		metric.WithReader(metric.NewPeriodicReader(mExporter)),
		metric.WithResource(res),
	)

	// Create a named Meter for the application. The namespace keeps command
	// counters from colliding with metrics produced by libraries.
	otel.Meter("github.com/podvox/podvox")

	shutdownFuncs = append(shutdownFuncs, mProvider.Shutdown)
	otel.SetMeterProvider(mProvider)

	return shutdown, nil
}
