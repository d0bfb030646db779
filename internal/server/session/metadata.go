package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MetadataFileName is the session metadata table kept next to the session
// directories under the base storage root.
const MetadataFileName = ".sessions.json"

// Entry records who created a session and when.
type Entry struct {
	OwnerIP   string `json:"ip"`
	CreatedAt int64  `json:"createdAt"` // unix milliseconds
}

// MetadataStore is the small key-value surface behind the session table.
// An implementation with atomic updates can be swapped in without touching
// any other component.
type MetadataStore interface {
	Load() (map[string]Entry, error)
	Save(map[string]Entry) error
}

// FileMetadata persists the session table as a single JSON file.
//
// Known race: Load/mutate/Save cycles from concurrent requests can lose an
// update when two registrations interleave. The table is advisory (quota and
// cleanup decisions only), so this is accepted; serializing writes through a
// single goroutine or a file lock is the production-grade fix.
type FileMetadata struct {
	path string
}

// NewFileMetadata creates a metadata store backed by a JSON file under the
// given base directory.
func NewFileMetadata(baseDir string) *FileMetadata {
	return &FileMetadata{path: filepath.Join(baseDir, MetadataFileName)}
}

// Load reads the session table. A missing file yields an empty table.
func (f *FileMetadata) Load() (map[string]Entry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read session metadata: %w", err)
	}

	sessions := map[string]Entry{}
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse session metadata: %w", err)
	}
	return sessions, nil
}

// Save writes the whole session table back to disk.
func (f *FileMetadata) Save(sessions map[string]Entry) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session metadata: %w", err)
	}

	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session metadata: %w", err)
	}
	return nil
}
