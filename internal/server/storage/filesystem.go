package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store defines the interface for session-scoped file storage.
// This allows swapping the local filesystem for another backend later.
type Store interface {
	EnsureBase() error
	BasePath() string
	Dir(sessionID string) string
	Reset(sessionID string) error
	Resolve(sessionID, filename string) (string, error)
	Stage(sessionID, filename string, data io.Reader) (int64, error)
	Destroy(sessionID string) error
}

// FileSystemStore keeps each session in its own directory under a base root.
// Sessions are disjoint subtrees, so they need no cross-session coordination.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureBase creates the base storage directory if it doesn't exist.
func (fs *FileSystemStore) EnsureBase() error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

// BasePath returns the base storage root.
func (fs *FileSystemStore) BasePath() string {
	return fs.basePath
}

// Dir returns the directory for a session. An empty session ID maps to the
// legacy default bucket, which is the base root itself.
func (fs *FileSystemStore) Dir(sessionID string) string {
	if sessionID == "" {
		return fs.basePath
	}
	return filepath.Join(fs.basePath, sessionID)
}

// Reset ensures an empty directory exists for the session. Existing contents
// are removed one entry at a time so the directory itself is preserved.
// Safe to call before every fetch.
func (fs *FileSystemStore) Reset(sessionID string) error {
	dir := fs.Dir(sessionID)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory %s: %w", dir, err)
	}

	// The legacy bucket shares the base root with every live session and the
	// metadata file; never clear it wholesale.
	if sessionID == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list session directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to clear session directory %s: %w", dir, err)
		}
	}

	return nil
}

// Resolve joins the session directory with a filename. The filename has
// already been validated by the caller; this performs a second
// defense-in-depth check and fails closed on traversal characters.
func (fs *FileSystemStore) Resolve(sessionID, filename string) (string, error) {
	if !SafeFilename(filename) {
		return "", fmt.Errorf("unsafe filename %q", filename)
	}
	return filepath.Join(fs.Dir(sessionID), filename), nil
}

// Stage writes a new asset into the session directory.
// Returns the number of bytes written. Partial files are removed on error.
func (fs *FileSystemStore) Stage(sessionID, filename string, data io.Reader) (int64, error) {
	filePath, err := fs.Resolve(sessionID, filename)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(fs.Dir(sessionID), 0755); err != nil {
		return 0, fmt.Errorf("failed to create session directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", filePath, err)
	}

	n, err := io.Copy(file, data)
	if err != nil {
		file.Close()
		os.Remove(filePath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(filePath)
		return 0, fmt.Errorf("failed to flush file: %w", err)
	}

	return n, nil
}

// Destroy recursively removes the session directory.
// Missing directories are not an error.
func (fs *FileSystemStore) Destroy(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("refusing to destroy the default bucket")
	}
	if err := os.RemoveAll(fs.Dir(sessionID)); err != nil {
		return fmt.Errorf("failed to destroy session directory: %w", err)
	}
	return nil
}

// SafeFilename reports whether a filename is free of path traversal and
// separator characters.
func SafeFilename(filename string) bool {
	if filename == "" {
		return false
	}
	return !strings.Contains(filename, "..") &&
		!strings.Contains(filename, "/") &&
		!strings.Contains(filename, "\\")
}
