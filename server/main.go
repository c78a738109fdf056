// Copyright 2025 The PODVOX Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// *****************************************************************************************************//
// Package main is the entry point for the voicenote generation server.
//
// This application sets up and runs a web server using the Gin framework. It provides a REST API
// for the full voicenote pipeline and for its individual stages. The server is instrumented with
// OpenTelemetry for logging, tracing, and metrics, providing observability into the application's
// performance.
//
// The main function initializes the application's configuration, sets up logging and telemetry,
// and initializes the application state, including the vendor clients for moment search, content
// analysis, script generation, and speech synthesis. It defines API routes for running the
// pipeline, downloading stored voicenotes, and driving each stage on its own.
//
// Functions:
//   - main: The main entry point of the application. It sets up the server, configures routes,
//     initializes services, and handles graceful shutdown.
//   - VoicenoteRouter: Sets up the API routes for the pipeline itself: running a full voicenote
//     generation, listing stored voicenotes, and downloading one by filename.
//   - ComponentRouter: Sets up the API routes that expose single pipeline stages: moment search,
//     content analysis, the analysis-only pipeline, and script generation.
//   - SpeechRouter: Sets up the API routes for the synthesis vendor: text-to-speech, a canned
//     sample, and voice metadata passthrough.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/podvox/podvox/internal/core/model"
	"github.com/podvox/podvox/internal/core/workflow"
	"github.com/podvox/podvox/internal/telemetry"
)

// ErrorResponse is the JSON body returned for every non-2xx response.
type ErrorResponse struct {
	Error     string    `json:"error"`            // Short, stable description of what went wrong.
	Detail    string    `json:"detail,omitempty"` // The underlying error text, when one exists.
	Timestamp time.Time `json:"timestamp"`        // When the error response was produced, UTC.
}

// newErrorResponse builds a timestamped error body.
func newErrorResponse(message string, detail string) ErrorResponse {
	return ErrorResponse{
		Error:     message,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
}

// writePipelineError maps a pipeline error onto its HTTP status. No moments
// is the caller's problem (404), a vendor failure is ours (500).
func writePipelineError(c *gin.Context, err error) {
	switch {
	case workflow.IsNoMomentsFound(err):
		c.JSON(http.StatusNotFound, newErrorResponse("no moments found", err.Error()))
	case workflow.IsUpstreamServiceError(err):
		c.JSON(http.StatusInternalServerError, newErrorResponse("upstream service failure", err.Error()))
	case workflow.IsSynthesisUnavailable(err):
		c.JSON(http.StatusServiceUnavailable, newErrorResponse("speech synthesis unavailable", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, newErrorResponse("internal error", err.Error()))
	}
}

// elapsedSeconds reports the time since start, rounded to two decimals for
// the processing_time response fields.
func elapsedSeconds(start time.Time) float64 {
	return float64(int(time.Since(start).Seconds()*100+0.5)) / 100
}

// validMediaURL reports whether raw parses as an absolute http(s) URL. The
// vendor jobs need a URL they can fetch; anything else fails validation
// before a job is submitted.
func validMediaURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// main is the primary entry point for the application.
// It orchestrates the setup of logging, telemetry, configuration, vendor clients,
// the web server, and API routes. It also handles graceful shutdown of the server
// upon receiving an interrupt signal.
func main() {
	// Initialize structured logging for the application.
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	// Create a new context that can be cancelled. This is the root context for the application.
	ctx, cancel := context.WithCancel(context.Background())
	// Defer the cancel function to be called when main exits, ensuring all child contexts are cancelled.
	defer cancel()

	// Load application configuration from TOML files.
	config := GetConfig()

	// Initialize OpenTelemetry for distributed tracing and metrics.
	otelShutdown, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	// Initialize the application's state, including all necessary vendor clients.
	InitState(ctx)
	slog.Info("Initialized State")

	// Set up the Gin web server with default middleware.
	r := gin.Default()

	// Add OpenTelemetry middleware to the Gin router to trace incoming requests.
	// This will automatically create spans for each request.
	r.Use(otelgin.Middleware("podvox-server"))

	// Configure Cross-Origin Resource Sharing (CORS) middleware.
	// Using cors.Default() provides a permissive configuration suitable for development,
	// allowing requests from any origin.
	r.Use(cors.Default())

	// The banner and healthcheck live at the root, outside the API version.
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": config.Application.Name,
			"version": config.Application.Version,
			"message": "turn podcast moments into personalized outreach voicenotes",
		})
	})
	r.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"version":   config.Application.Version,
		})
	})

	// Group routes under the "/api/v1" prefix.
	apiV1 := r.Group("/api/v1")
	{
		// Register the routes for the pipeline, the stage components, the
		// speech vendor, and the stats dashboard within the API group.
		VoicenoteRouter(apiV1)
		ComponentRouter(apiV1)
		SpeechRouter(apiV1)
		Dashboard(apiV1)
	}

	// Configure the HTTP server with the address and handler.
	port := config.Application.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	// Start the HTTP server in a separate goroutine so it doesn't block the main thread.
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready", "port", port)

	// Set up a channel to listen for OS interrupt signals (e.g., Ctrl+C).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	// Block until a signal is received on the quit channel.
	<-quit
	slog.Info("Shutdown Server ...")

	// Create a context with a timeout for the graceful shutdown.
	// This gives active requests 5 seconds to complete.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Attempt to gracefully shut down the server.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}

	// Stop the retention sweep, release the vendor clients, and flush telemetry.
	state.store.StopRetentionSweep()
	state.clients.Close()
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Error("Telemetry Shutdown Failed:", "error", err)
	}

	log.Println("Server exiting")
}

// VoicenoteRouter sets up the API routes for the voicenote pipeline.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the voicenote routes will be added. This allows
//     nesting routes under a common path prefix (e.g., "/api/v1").
//
// Outputs:
//   - This function does not return any values. It modifies the provided *gin.RouterGroup
//     by adding new route handlers.
//
// This function defines the following endpoints:
//   - POST /voicenotes: Runs the full four-stage pipeline for a media URL and topic.
//   - GET /voicenotes: Lists the voicenote files currently stored on disk.
//   - GET /voicenotes/:filename: Downloads one stored voicenote's audio bytes.
func VoicenoteRouter(r *gin.RouterGroup) {
	// Group all pipeline routes under the "/voicenotes" path.
	voicenotes := r.Group("/voicenotes")
	{
		// Handler for POST /voicenotes
		voicenotes.POST("", func(c *gin.Context) {
			var request model.PipelineRequest
			// Bind and validate the request body. media_url and topic are required.
			if err := c.ShouldBindJSON(&request); err != nil {
				c.JSON(http.StatusBadRequest, newErrorResponse("invalid request", err.Error()))
				return
			}
			if !validMediaURL(request.MediaURL) {
				c.JSON(http.StatusBadRequest, newErrorResponse("invalid request", "media_url must be an absolute http(s) url"))
				return
			}

			// A run costs several vendor calls and minutes of job time, so it
			// finishes even if the caller hangs up. Only cancellation is
			// detached; the request's trace context stays attached.
			result, err := state.voicenotePipeline.Run(context.WithoutCancel(c.Request.Context()), &request)
			if err != nil {
				writePipelineError(c, err)
				return
			}

			// The store knows the filename; only the HTTP layer knows the route.
			if result.Voicenote != nil {
				result.Voicenote.DownloadURL = "/api/v1/voicenotes/" + result.Voicenote.Filename
			}
			c.JSON(http.StatusOK, result)
		})

		// Handler for GET /voicenotes
		voicenotes.GET("", func(c *gin.Context) {
			notes, err := state.store.List()
			if err != nil {
				c.JSON(http.StatusInternalServerError, newErrorResponse("failed to list voicenotes", err.Error()))
				return
			}
			for _, note := range notes {
				note.DownloadURL = "/api/v1/voicenotes/" + note.Filename
			}
			c.JSON(http.StatusOK, gin.H{
				"voicenotes": notes,
				"total":      len(notes),
			})
		})

		// Handler for GET /voicenotes/:filename
		voicenotes.GET("/:filename", func(c *gin.Context) {
			filename := c.Param("filename")
			// Resolve validates the name and rejects anything that could
			// escape the output directory.
			path, err := state.store.Resolve(filename)
			if err != nil {
				if os.IsNotExist(err) {
					c.JSON(http.StatusNotFound, newErrorResponse("voicenote not found", filename))
					return
				}
				c.JSON(http.StatusBadRequest, newErrorResponse("invalid voicenote filename", err.Error()))
				return
			}

			content, err := os.ReadFile(path)
			if err != nil {
				c.JSON(http.StatusInternalServerError, newErrorResponse("failed to read voicenote", err.Error()))
				return
			}

			// The content type comes from the bytes themselves, not the file
			// extension, so a reconfigured output format needs no route change.
			contentType := "application/octet-stream"
			if kind, _ := filetype.Match(content); kind != filetype.Unknown {
				contentType = kind.MIME.Value
			}
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
			c.Data(http.StatusOK, contentType, content)
		})
	}
}

// ComponentRouter sets up the API routes that expose individual pipeline stages.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the component routes will be added.
//
// Outputs:
//   - This function does not return any values. It registers routes on the
//     provided router group.
//
// This function defines the following endpoints:
//   - POST /moments: Runs a raw moments search against the media vendor.
//   - POST /analysis: Asks the content vendor a free-text question about a time range.
//   - POST /analysis/podcast: Runs stages one and two of the pipeline only.
//   - POST /scripts: Generates an outreach script from caller-provided context.
func ComponentRouter(r *gin.RouterGroup) {
	// Handler for POST /moments
	r.POST("/moments", func(c *gin.Context) {
		var query model.MomentQuery
		if err := c.ShouldBindJSON(&query); err != nil {
			c.JSON(http.StatusBadRequest, newErrorResponse("invalid request", err.Error()))
			return
		}
		if query.MediaURL == "" || len(query.Queries) == 0 {
			c.JSON(http.StatusBadRequest, newErrorResponse("invalid request", "media_url and queries are required"))
			return
		}
		// An unset clip length falls back to the pipeline's configured floor.
		if query.MinClipLength == 0 {
			query.MinClipLength = state.config.Pipeline.MinClipLength
		}

		start := time.Now()
		moments, err := state.clients.Sieve.FindMoments(c.Request.Context(), query)
		if err != nil {
			c.JSON(http.StatusInternalServerError, newErrorResponse("moment search failed", err.Error()))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"moments":         moments,
			"total_moments":   len(moments),
			"query":           query.Queries,
			"processing_time": elapsedSeconds(start),
		})
	})

	// Handler for POST /analysis
	r.POST("/analysis", func(c *gin.Context) {
		var query model.AnalysisQuery
		if err := c.ShouldBindJSON(&query); err != nil {
			c.JSON(http.StatusBadRequest, newErrorResponse("invalid request", err.Error()))
			return
		}
		if query.MediaURL == "" || query.Prompt == "" {
			c.JSON(http.StatusBadRequest, newErrorResponse("invalid request", "media_url and prompt are required"))
			return
		}

		start := time.Now()
		analysis, err := state.clients.Sieve.AnalyzeRange(c.Request.Context(), query)
		if err != nil {
			c.JSON(http.StatusInternalServerError, newErrorResponse("content analysis failed", err.Error()))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"answer":             analysis.Answer,
			"context_start_time": analysis.StartTime,
			"context_end_time":   analysis.EndTime,
			"backend_used":       analysis.Backend,
			"processing_time":    elapsedSeconds(start),
		})
	})

	// Handler for POST /analysis/podcast
	// Runs the first two pipeline stages: find the best moment for the topic,
	// then analyze what is said in it. Useful for previewing the context a
	// script would be written from.
	r.POST("/analysis/podcast", func(c *gin.Context) {
		var request model.PipelineRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, newErrorResponse("invalid request", err.Error()))
			return
		}
		if !validMediaURL(request.MediaURL) {
			c.JSON(http.StatusBadRequest, newErrorResponse("invalid request", "media_url must be an absolute http(s) url"))
			return
		}

		start := time.Now()
		// Detached from client cancellation for the same reason as the full
		// pipeline: the vendor jobs should finish once submitted.
		analysis, momentsFound, err := state.analysisPipeline.Run(context.WithoutCancel(c.Request.Context()), &request)
		if err != nil {
			writePipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"answer":             analysis.Answer,
			"context_start_time": analysis.StartTime,
			"context_end_time":   analysis.EndTime,
			"backend_used":       analysis.Backend,
			"moments_found":      momentsFound,
			"processing_time":    elapsedSeconds(start),
		})
	})

	// Handler for POST /scripts
	// Generates an outreach script directly from caller-provided context,
	// skipping the search and analysis stages.
	r.POST("/scripts", func(c *gin.Context) {
		var request struct {
			DisplayName string `json:"display_name" binding:"required"` // Prospect first name for personalization.
			Context     string `json:"context" binding:"required"`      // What the prospect said, in free text.
			PodcastName string `json:"podcast_name"`                    // Podcast title to mention, when known.
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, newErrorResponse("invalid request", err.Error()))
			return
		}

		script, err := state.scriptWriter.Write(c.Request.Context(), request.DisplayName, request.PodcastName, request.Context)
		if err != nil {
			c.JSON(http.StatusInternalServerError, newErrorResponse("script generation failed", err.Error()))
			return
		}
		c.JSON(http.StatusOK, script)
	})
}

// SpeechRouter sets up the API routes for the speech synthesis vendor.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the speech routes will be added.
//
// Outputs:
//   - This function does not return any values. It registers routes on the
//     provided router group.
//
// This function defines the following endpoints:
//   - POST /speech: Synthesizes caller-provided text into a stored voicenote.
//   - POST /speech/sample: Synthesizes a canned outreach message as a smoke test.
//   - GET /voices: Lists the synthesis voices the vendor offers.
//   - GET /voices/:id: Fetches one voice's metadata.
//
// Every route answers 503 when the speech vendor is not configured; the rest
// of the service keeps working without it.
func SpeechRouter(r *gin.RouterGroup) {
	// Handler for POST /speech
	r.POST("/speech", func(c *gin.Context) {
		if state.clients.Speech == nil {
			c.JSON(http.StatusServiceUnavailable, newErrorResponse("speech synthesis unavailable", "no speech synthesizer is configured"))
			return
		}
		var request struct {
			Text    string `json:"text" binding:"required"` // The text to synthesize.
			VoiceID string `json:"voice_id"`                // Overrides the configured voice.
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, newErrorResponse("invalid request", err.Error()))
			return
		}

		script := model.NewScript(request.Text, state.config.Pipeline.Tone, state.config.Pipeline.TargetLengthSeconds)
		voicenote, err := state.voicenoteCreator.Create(c.Request.Context(), script, request.VoiceID, "speech")
		if err != nil {
			c.JSON(http.StatusInternalServerError, newErrorResponse("speech synthesis failed", err.Error()))
			return
		}
		voicenote.DownloadURL = "/api/v1/voicenotes/" + voicenote.Filename
		c.JSON(http.StatusOK, voicenote)
	})

	// Handler for POST /speech/sample
	r.POST("/speech/sample", func(c *gin.Context) {
		if state.clients.Speech == nil {
			c.JSON(http.StatusServiceUnavailable, newErrorResponse("speech synthesis unavailable", "no speech synthesizer is configured"))
			return
		}

		// The canned script is a known-good outreach message, so a failure
		// here points at the vendor, not at generation.
		script := model.GetExampleScript()
		voicenote, err := state.voicenoteCreator.Create(c.Request.Context(), script, "", "sample")
		if err != nil {
			c.JSON(http.StatusInternalServerError, newErrorResponse("speech synthesis failed", err.Error()))
			return
		}
		voicenote.DownloadURL = "/api/v1/voicenotes/" + voicenote.Filename
		c.JSON(http.StatusOK, gin.H{
			"text":      script.Text,
			"voicenote": voicenote,
		})
	})

	// Group the voice metadata passthrough under "/voices".
	voices := r.Group("/voices")
	{
		// Handler for GET /voices
		voices.GET("", func(c *gin.Context) {
			if state.clients.Speech == nil {
				c.JSON(http.StatusServiceUnavailable, newErrorResponse("speech synthesis unavailable", "no speech synthesizer is configured"))
				return
			}
			out, err := state.clients.Speech.ListVoices(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, newErrorResponse("voice listing failed", err.Error()))
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"voices": out,
				"total":  len(out),
			})
		})

		// Handler for GET /voices/:id
		voices.GET("/:id", func(c *gin.Context) {
			if state.clients.Speech == nil {
				c.JSON(http.StatusServiceUnavailable, newErrorResponse("speech synthesis unavailable", "no speech synthesizer is configured"))
				return
			}
			out, err := state.clients.Speech.GetVoice(c.Request.Context(), c.Param("id"))
			if err != nil {
				c.JSON(http.StatusNotFound, newErrorResponse("voice not found", err.Error()))
				return
			}
			c.JSON(http.StatusOK, out)
		})
	}
}
