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

// Package services contains the business logic for interacting with data
// sources. This file defines the VoicenoteStore, the local filesystem store
// for synthesized audio files. It owns filename generation, which is where
// the uniqueness guarantee for concurrent runs lives: two simultaneous
// requests for the same prospect must never collide on disk.
//
// Filenames follow the pattern:
//
//	voicenote_<slug>_<epoch-seconds>_<token>.<ext>
//
// where slug is a filesystem-safe rendering of the prospect's name and
// token is eight hex characters of a fresh random UUID. The timestamp keeps
// listings readable and sortable; the token alone carries the uniqueness.
package services

import (
	goctx "context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/podvox/podvox/internal/core/model"
	"github.com/podvox/podvox/internal/vendors"
)

// voicenoteFilePrefix marks files managed by this store. The retention
// sweep only ever touches files carrying it.
const voicenoteFilePrefix = "voicenote_"

// VoicenoteStore persists synthesized audio under a single output directory
// and serves it back by filename. It also runs the optional retention sweep
// that deletes old files.
type VoicenoteStore struct {
	outputDir     string        // Directory all audio files are written to.
	extension     string        // File extension written, e.g. "mp3".
	retention     time.Duration // Age after which the sweep removes a file. Zero disables sweeping.
	sweepInterval time.Duration // How often the sweep runs when enabled.
	closeTicker   chan struct{} // Signals the sweep goroutine to stop.
}

// NewVoicenoteStore is the constructor for the VoicenoteStore. It creates
// the output directory if needed.
//
// Inputs:
//   - config: The storage section of the application configuration.
//   - extension: The audio file extension, taken from the synthesis vendor's
//     output format. Defaults to "mp3" when empty.
//
// Outputs:
//   - *VoicenoteStore: A pointer to the initialized store.
//   - error: An error when the output directory cannot be created.
func NewVoicenoteStore(config vendors.StorageConfig, extension string) (*VoicenoteStore, error) {
	outputDir := config.OutputDir
	if outputDir == "" {
		outputDir = "voicenotes"
	}
	if extension == "" {
		extension = "mp3"
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create voicenote output directory %q: %w", outputDir, err)
	}

	sweepInterval := time.Duration(config.SweepIntervalMinutes) * time.Minute
	if sweepInterval <= 0 {
		sweepInterval = 60 * time.Minute
	}

	return &VoicenoteStore{
		outputDir:     outputDir,
		extension:     extension,
		retention:     time.Duration(config.RetentionHours) * time.Hour,
		sweepInterval: sweepInterval,
		closeTicker:   make(chan struct{}),
	}, nil
}

// OutputDir returns the directory the store writes to.
func (s *VoicenoteStore) OutputDir() string {
	return s.outputDir
}

// Save writes one synthesized audio payload to disk under a fresh unique
// filename derived from the recipient's name.
//
// Inputs:
//   - audio: The raw audio bytes from the synthesis vendor.
//   - displayName: The recipient's name, slugged into the filename.
//
// Outputs:
//   - filename: The bare filename, usable with Resolve and the download URL.
//   - path: The full filesystem path of the written file.
//   - size: The number of bytes written.
//   - err: Any filesystem error.
func (s *VoicenoteStore) Save(audio []byte, displayName string) (filename string, path string, size int64, err error) {
	// Eight hex characters of a random UUID. This, not the timestamp, is
	// what keeps simultaneous requests for the same name from colliding.
	uid := uuid.New()
	token := fmt.Sprintf("%x", uid[:4])

	filename = fmt.Sprintf("%s%s_%d_%s.%s", voicenoteFilePrefix, slugify(displayName), time.Now().Unix(), token, s.extension)
	path = filepath.Join(s.outputDir, filename)

	if err = os.WriteFile(path, audio, 0o644); err != nil {
		return "", "", 0, fmt.Errorf("failed to write voicenote file %q: %w", path, err)
	}
	return filename, path, int64(len(audio)), nil
}

// Resolve validates a caller-supplied filename and returns the full path of
// the stored file. The filename must be a bare name; anything that could
// escape the output directory is rejected before the filesystem is touched.
//
// Inputs:
//   - filename: The bare filename as returned by Save.
//
// Outputs:
//   - string: The full path of the existing file.
//   - error: An invalid-name error, or the os.Stat error (callers map
//     os.IsNotExist onto their not-found handling).
func (s *VoicenoteStore) Resolve(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid voicenote filename %q", filename)
	}
	path := filepath.Join(s.outputDir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// List returns a descriptor for every voicenote currently on disk, newest
// first.
//
// Outputs:
//   - []*model.Voicenote: One entry per stored file. Only the fields that
//     can be recovered from the filesystem are populated.
//   - error: Any error reading the output directory.
func (s *VoicenoteStore) List() ([]*model.Voicenote, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read voicenote directory %q: %w", s.outputDir, err)
	}

	out := make([]*model.Voicenote, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), voicenoteFilePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		note := model.NewVoicenote(entry.Name(), filepath.Join(s.outputDir, entry.Name()), info.Size(), "", 0)
		note.CreatedAt = info.ModTime().UTC()
		out = append(out, note)
	}

	// Newest first, leaning on the sortable epoch segment in the name.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Sweep removes every stored voicenote older than the retention window and
// reports how many files were deleted. It is a no-op when retention is
// disabled.
//
// Outputs:
//   - int: The number of files removed.
//   - error: Any error reading the output directory.
func (s *VoicenoteStore) Sweep() (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read voicenote directory %q: %w", s.outputDir, err)
	}

	cutoff := time.Now().Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), voicenoteFilePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.outputDir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// StartRetentionSweep kicks off the background cleanup for the store. It
// creates a time.Ticker that fires at the configured interval; on each tick
// it runs one sweep inside a trace span. The goroutine runs until
// StopRetentionSweep is called. When retention is disabled this method does
// nothing, and files stay on disk until an operator removes them.
func (s *VoicenoteStore) StartRetentionSweep() {
	if s.retention <= 0 {
		slog.Info("voicenote retention sweep disabled", "output_dir", s.outputDir)
		return
	}

	tracer := otel.Tracer("voicenote-sweep")
	ticker := time.NewTicker(s.sweepInterval)

	go func(s *VoicenoteStore) {
		for {
			select {
			case <-ticker.C:
				_, span := tracer.Start(goctx.Background(), "voicenote-retention-sweep")
				removed, err := s.Sweep()
				if err != nil {
					span.SetStatus(codes.Error, "failed to sweep voicenote directory")
					slog.Error("voicenote retention sweep failed", "error", err)
				} else {
					span.SetStatus(codes.Ok, "swept voicenote directory")
					if removed > 0 {
						slog.Info("voicenote retention sweep removed files", "count", removed)
					}
				}
				span.End()
			case <-s.closeTicker:
				ticker.Stop()
				return
			}
		}
	}(s)
}

// StopRetentionSweep stops the background cleanup goroutine. Safe to call
// once during shutdown regardless of whether the sweep was started.
func (s *VoicenoteStore) StopRetentionSweep() {
	close(s.closeTicker)
}

// slugify renders a display name safe for use inside a filename: lowercase,
// alphanumerics kept, separators collapsed to underscores, everything else
// dropped.
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '-':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "prospect"
	}
	return b.String()
}
