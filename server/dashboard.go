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

// Package main contains the API route definitions for the server. This file
// defines the statistics endpoint used by operators to eyeball the service's
// state without reading logs.
//
// Functions:
//   - Dashboard: Sets up a route group for statistics-related endpoints. It
//     defines a `/stats` endpoint reporting the stored voicenote inventory
//     and the service's configuration posture.
package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Dashboard configures the API routes for the statistics feature.
// It creates a new route group "/stats" nested under the main API router group.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the new "/stats" route group will be added.
//
// Outputs:
//   - This function does not return any value. It modifies the provided *gin.RouterGroup
//     by adding a new route handler.
//
// The GET endpoint at the root of the "/stats" group (e.g., /api/v1/stats)
// reports how many voicenotes are stored and how much disk they occupy,
// whether speech synthesis is configured, and how long the server has been up.
func Dashboard(r *gin.RouterGroup) {
	// Create a new router group for any statistics-related endpoints, prefixed with "/stats".
	stats := r.Group("/stats")
	{
		// Register a handler for a GET request to the "/stats" endpoint.
		stats.GET("", func(c *gin.Context) {
			notes, err := state.store.List()
			if err != nil {
				c.JSON(http.StatusInternalServerError, newErrorResponse("failed to read voicenote store", err.Error()))
				return
			}
			var totalBytes int64
			for _, note := range notes {
				totalBytes += note.SizeBytes
			}
			c.JSON(http.StatusOK, gin.H{
				"voicenotes_stored":    len(notes),
				"total_audio_bytes":    totalBytes,
				"output_dir":           state.store.OutputDir(),
				"synthesis_configured": state.clients.Speech != nil,
				"script_model":         state.config.Pipeline.Agent,
				"uptime_seconds":       int64(time.Since(state.startTime).Seconds()),
				"retention_hours":      state.config.Storage.RetentionHours,
			})
		})
	}
}
