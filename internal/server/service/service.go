package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"snapfetch/internal/media"
	"snapfetch/internal/server/config"
	"snapfetch/internal/server/session"
	"snapfetch/internal/server/storage"

	"github.com/google/uuid"
)

// Asset describes one staged media file.
type Asset struct {
	ID          string     `json:"id"`
	SourceURL   string     `json:"sourceUrl"`
	DownloadURL string     `json:"downloadUrl"`
	ContentType string     `json:"contentType"`
	Filename    string     `json:"filename"`
	Provider    string     `json:"provider"`
	Kind        media.Kind `json:"type"`
}

// SubmitResult is returned after a successful fetch.
type SubmitResult struct {
	Assets    []Asset
	SessionID string
}

// Stats holds aggregate server statistics.
type Stats struct {
	ActiveSessions int
	StagedFiles    int
	StorageUsed    int64
}

// MediaService contains the business logic for fetching, bundling, and
// serving staged media.
type MediaService struct {
	dirs      storage.Store
	sessions  *session.Manager
	sweeper   *session.Sweeper
	providers media.Registry
	client    *http.Client
	cfg       *config.Config
}

// NewMediaService creates a new media service.
func NewMediaService(dirs storage.Store, sessions *session.Manager, sweeper *session.Sweeper, providers media.Registry, cfg *config.Config) *MediaService {
	return &MediaService{
		dirs:      dirs,
		sessions:  sessions,
		sweeper:   sweeper,
		providers: providers,
		client:    &http.Client{},
		cfg:       cfg,
	}
}

// Submit handles one post-URL submission: detects a provider, enforces the
// owner's session quota, creates a fresh session, and runs the fetch
// pipeline. The sweep it kicks off is fire-and-forget; its outcome never
// affects this request.
func (s *MediaService) Submit(ctx context.Context, rawURL, owner string) (*SubmitResult, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, ErrInvalidInput
	}

	cleaned := media.CleanURL(rawURL)
	provider := s.providers.Detect(cleaned)
	if provider == nil {
		return nil, fmt.Errorf("%w: please provide a Twitter/X or Instagram link", ErrUnsupportedURL)
	}

	s.sweeper.SweepAsync()
	s.sessions.EnforceQuota(owner)

	sessionID := uuid.NewString()
	s.sessions.Register(sessionID, owner)

	if err := s.dirs.Reset(sessionID); err != nil {
		return nil, fmt.Errorf("failed to prepare session directory: %w", err)
	}

	assets, err := s.fetchMedia(ctx, provider, cleaned, sessionID)
	if err != nil {
		return nil, s.classifyFetchError(provider, err)
	}

	slog.Info("media fetched",
		"provider", provider.Name(),
		"session_id", sessionID,
		"owner", owner,
		"assets", len(assets),
	)

	return &SubmitResult{Assets: assets, SessionID: sessionID}, nil
}

// classifyFetchError translates provider and pipeline failures into service
// sentinels so the API layer can pick a status.
func (s *MediaService) classifyFetchError(provider media.Provider, err error) error {
	switch {
	case errors.Is(err, media.ErrNotConfigured):
		// Twitter is expected to be configured; a missing instagram parser
		// means the feature is simply not available yet.
		if provider.Name() == "instagram" {
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return fmt.Errorf("%w: %v", ErrProviderNotConfigured, err)
	case errors.Is(err, media.ErrNoMedia):
		return ErrNoMedia
	default:
		return err
	}
}

// AssetInfo carries what the retrieval handler needs to serve a staged file.
type AssetInfo struct {
	ContentType string
	Size        int64
	Video       bool
}

var contentTypeByExt = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"zip":  "application/zip",
}

var videoExts = map[string]bool{
	"mp4": true, "mov": true, "avi": true, "webm": true,
}

// OpenAsset validates a retrieval request and resolves the staged file.
// Filenames with traversal characters and malformed session IDs are rejected
// before the file system is touched.
func (s *MediaService) OpenAsset(sessionID, filename string) (string, AssetInfo, error) {
	if !storage.SafeFilename(filename) {
		return "", AssetInfo{}, ErrInvalidFilename
	}
	if sessionID != "" {
		if err := uuid.Validate(sessionID); err != nil {
			return "", AssetInfo{}, ErrInvalidSession
		}
	}

	path, err := s.dirs.Resolve(sessionID, filename)
	if err != nil {
		return "", AssetInfo{}, ErrInvalidFilename
	}

	stat, err := os.Stat(path)
	if err != nil || stat.IsDir() {
		return "", AssetInfo{}, ErrAssetNotFound
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	contentType := contentTypeByExt[ext]
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return path, AssetInfo{
		ContentType: contentType,
		Size:        stat.Size(),
		Video:       videoExts[ext],
	}, nil
}

// Stats returns aggregate statistics: tracked sessions, staged files, and
// bytes on disk under the storage root.
func (s *MediaService) Stats() (*Stats, error) {
	stats := &Stats{ActiveSessions: s.sessions.ActiveCount()}

	err := filepath.WalkDir(s.dirs.BasePath(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // tolerate entries disappearing mid-walk
		}
		if d.IsDir() || d.Name() == session.MetadataFileName {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		stats.StagedFiles++
		stats.StorageUsed += info.Size()
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to walk storage root: %w", err)
	}
	return stats, nil
}

// downloadPath builds the public retrieval path for a staged file.
func downloadPath(filename, sessionID string) string {
	if sessionID != "" {
		return fmt.Sprintf("/api/downloads/%s?session=%s", filename, sessionID)
	}
	return "/api/downloads/" + filename
}

// bundleName generates a collision-resistant filename for a zip bundle.
func bundleName() string {
	return fmt.Sprintf("%d-%s.zip", time.Now().UnixMilli(), uuid.NewString()[:8])
}
