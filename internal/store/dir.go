// Package store persists room snapshots as one JSON file per room.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lox/cardroom/internal/game"
	"github.com/rs/zerolog"
)

const snapshotExt = ".json"

// Dir stores snapshots in a directory. Writes are atomic, so a reader or
// a crash never observes a partial snapshot.
type Dir struct {
	path   string
	logger zerolog.Logger
}

// NewDir creates the directory if needed.
func NewDir(path string, logger zerolog.Logger) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Dir{
		path:   path,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// Save writes the snapshot for state.ID.
func (d *Dir) Save(state *game.State) error {
	if state.ID == "" || strings.ContainsAny(state.ID, `/\`) {
		return fmt.Errorf("invalid room id %q", state.ID)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", state.ID, err)
	}
	return writeFileAtomic(d.file(state.ID), data, 0o644)
}

// Delete removes a room's snapshot. Missing snapshots are not an error.
func (d *Dir) Delete(id string) error {
	err := os.Remove(d.file(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return nil
}

// Load reads every snapshot in the directory, ordered by room id.
// Unreadable files are logged and skipped.
func (d *Dir) Load() ([]*game.State, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var states []*game.State
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != snapshotExt {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.path, entry.Name()))
		if err != nil {
			d.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable snapshot")
			continue
		}
		var state game.State
		if err := json.Unmarshal(data, &state); err != nil {
			d.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping corrupt snapshot")
			continue
		}
		states = append(states, &state)
	}

	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	return states, nil
}

func (d *Dir) file(id string) string {
	return filepath.Join(d.path, id+snapshotExt)
}

// writeFileAtomic writes to a temp file in the same directory and renames
// it over filename.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(filename)

	tmpFile, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, filename); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
