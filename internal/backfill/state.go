package backfill

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const stateFileName = "scribe-backfill-state.json"

// State tracks progress for resumable backfill runs. Files are keyed by path
// with a content hash, so a file that changed since the last run is picked up
// again while unchanged ones are skipped.
type State struct {
	StartedAt       time.Time         `json:"started_at"`
	LastProcessedAt time.Time         `json:"last_processed_at"`
	FileHashes      map[string]string `json:"file_hashes"`
	FilesProcessed  int               `json:"files_processed"`
	RecordsEmitted  int               `json:"records_emitted"`
	Errors          []string          `json:"errors"`

	path string // not serialized
}

// LoadState loads the backfill state from dataDir, or creates a new one.
func LoadState(dataDir string) (*State, error) {
	p := filepath.Join(dataDir, stateFileName)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{
				StartedAt:  time.Now().UTC(),
				FileHashes: map[string]string{},
				path:       p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if s.FileHashes == nil {
		s.FileHashes = map[string]string{}
	}
	s.path = p
	return &s, nil
}

// Save persists the state to disk.
func (s *State) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

// IsProcessed reports whether a file was already processed with its current
// content.
func (s *State) IsProcessed(path, hash string) bool {
	return s.FileHashes[path] == hash
}

// MarkProcessed records a file's content hash as processed.
func (s *State) MarkProcessed(path, hash string) {
	s.FileHashes[path] = hash
	s.FilesProcessed++
}

// AddError records a processing error.
func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// HashFile returns the hex SHA-256 of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
