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

// Package services_test contains the test suite for the services package.
// This file tests the VoicenoteStore: filename generation and its uniqueness
// guarantee, the traversal-safe filename resolution behind the download
// endpoint, directory listing, and the retention sweep.
package services_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/podvox/podvox/internal/core/services"
	"github.com/podvox/podvox/internal/vendors"
	"github.com/zeebo/assert"
)

// newTestStore builds a VoicenoteStore rooted in a throwaway directory with
// the given retention window. The constructor is expected to create the
// output directory itself, so the path handed in does not exist yet.
func newTestStore(t *testing.T, retentionHours int) *services.VoicenoteStore {
	store, err := services.NewVoicenoteStore(vendors.StorageConfig{
		OutputDir:      filepath.Join(t.TempDir(), "voicenotes"),
		RetentionHours: retentionHours,
	}, "mp3")
	assert.NoError(t, err)
	return store
}

// TestVoicenoteStoreSaveAndResolve exercises the full write-then-fetch path
// the download endpoint depends on. It saves a payload for a prospect whose
// name needs slugging, checks the generated filename's shape, and verifies
// that Resolve maps the bare filename back to the exact file on disk.
func TestVoicenoteStoreSaveAndResolve(t *testing.T) {
	store := newTestStore(t, 0)

	// Save a small payload standing in for the synthesized audio bytes.
	audio := []byte("fake-mpeg-bytes")
	filename, path, size, err := store.Save(audio, "Ada Lovelace")
	assert.NoError(t, err)

	// The filename carries the managed prefix, the slugged display name,
	// and the configured extension.
	assert.True(t, strings.HasPrefix(filename, "voicenote_ada_lovelace_"))
	assert.True(t, strings.HasSuffix(filename, ".mp3"))
	// The reported size is the number of bytes handed in.
	assert.Equal(t, int64(len(audio)), size)

	// The file exists at the reported path and holds the exact payload.
	written, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, string(audio), string(written))

	// Resolve accepts the bare filename and returns the same on-disk path.
	resolved, err := store.Resolve(filename)
	assert.NoError(t, err)
	assert.Equal(t, path, resolved)
}

// TestVoicenoteStoreUniqueFilenames verifies the collision guarantee for
// concurrent runs: repeated saves for the same prospect in the same clock
// second must still produce distinct filenames, because uniqueness comes
// from the random token rather than the timestamp.
func TestVoicenoteStoreUniqueFilenames(t *testing.T) {
	store := newTestStore(t, 0)

	// Save several times in a tight loop so every filename shares the same
	// slug and, almost certainly, the same epoch-seconds segment.
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		filename, _, _, err := store.Save([]byte("audio"), "Jordan")
		assert.NoError(t, err)
		// Each name must be new.
		assert.False(t, seen[filename])
		seen[filename] = true
	}
}

// TestVoicenoteStoreResolveRejectsUnsafeNames verifies that the filename
// validation runs before the filesystem is touched. Anything that could
// escape the output directory is rejected with an invalid-name error, while
// a well-formed name that simply is not on disk surfaces the stat error so
// the transport layer can map it onto not-found handling.
func TestVoicenoteStoreResolveRejectsUnsafeNames(t *testing.T) {
	store := newTestStore(t, 0)

	// Every one of these could address a file outside the store.
	unsafe := []string{
		"",
		"../escape.mp3",
		"nested/escape.mp3",
		".hidden.mp3",
	}
	for _, name := range unsafe {
		_, err := store.Resolve(name)
		// The name is rejected outright.
		assert.Error(t, err)
		// The rejection is a validation error, not a not-found, proving the
		// filesystem was never consulted for the hostile path.
		assert.False(t, os.IsNotExist(err))
	}

	// A syntactically valid name for a file that does not exist reports the
	// underlying not-found condition.
	_, err := store.Resolve("voicenote_missing_0_00000000.mp3")
	assert.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

// TestVoicenoteStoreListNewestFirst verifies the directory listing: foreign
// files and subdirectories are ignored, every managed file is reported with
// its size, and the newest note leads the result.
func TestVoicenoteStoreListNewestFirst(t *testing.T) {
	store := newTestStore(t, 0)

	// Save three notes with payloads of distinct sizes. The slugs sort in
	// save order, which keeps the listing order deterministic even when all
	// three writes land in the same clock second.
	alpha, _, _, err := store.Save([]byte("a"), "alpha")
	assert.NoError(t, err)
	beta, _, _, err := store.Save([]byte("bb"), "beta")
	assert.NoError(t, err)
	gamma, _, _, err := store.Save([]byte("ccc"), "gamma")
	assert.NoError(t, err)

	// Drop a foreign file and a subdirectory into the output directory.
	// Neither carries the managed prefix, so the listing must skip both.
	assert.NoError(t, os.WriteFile(filepath.Join(store.OutputDir(), "notes.txt"), []byte("x"), 0o644))
	assert.NoError(t, os.MkdirAll(filepath.Join(store.OutputDir(), "archive"), 0o755))

	listed, err := store.List()
	assert.NoError(t, err)

	// Only the three managed files appear, newest first.
	assert.Equal(t, 3, len(listed))
	assert.Equal(t, gamma, listed[0].Filename)
	assert.Equal(t, beta, listed[1].Filename)
	assert.Equal(t, alpha, listed[2].Filename)

	// Entries are rebuilt from the filesystem: size and timestamp come from
	// the file, the ID is re-derived from the name.
	assert.Equal(t, int64(3), listed[0].SizeBytes)
	assert.True(t, listed[0].ID != "")
	assert.True(t, time.Since(listed[0].CreatedAt) < time.Minute)
}

// TestVoicenoteStoreSweepRemovesExpiredFiles verifies the retention sweep:
// files older than the window are deleted, fresh files survive, and the
// count of removed files is reported.
func TestVoicenoteStoreSweepRemovesExpiredFiles(t *testing.T) {
	// One hour of retention.
	store := newTestStore(t, 1)

	oldName, oldPath, _, err := store.Save([]byte("old"), "old")
	assert.NoError(t, err)
	freshName, _, _, err := store.Save([]byte("fresh"), "fresh")
	assert.NoError(t, err)

	// Age the first file two hours into the past, well beyond retention.
	past := time.Now().Add(-2 * time.Hour)
	assert.NoError(t, os.Chtimes(oldPath, past, past))

	removed, err := store.Sweep()
	assert.NoError(t, err)
	assert.Equal(t, 1, removed)

	// The expired file is gone; the fresh one is untouched.
	_, err = store.Resolve(oldName)
	assert.True(t, os.IsNotExist(err))
	_, err = store.Resolve(freshName)
	assert.NoError(t, err)
}

// TestVoicenoteStoreSweepDisabled verifies that a zero retention window
// turns the sweep into a no-op, leaving even ancient files in place.
func TestVoicenoteStoreSweepDisabled(t *testing.T) {
	// Zero retention disables sweeping entirely.
	store := newTestStore(t, 0)

	name, path, _, err := store.Save([]byte("keep"), "keeper")
	assert.NoError(t, err)

	// Even a file aged far beyond any plausible window stays put.
	past := time.Now().Add(-1000 * time.Hour)
	assert.NoError(t, os.Chtimes(path, past, past))

	removed, err := store.Sweep()
	assert.NoError(t, err)
	assert.Equal(t, 0, removed)

	// The file is still resolvable.
	_, err = store.Resolve(name)
	assert.NoError(t, err)
}
