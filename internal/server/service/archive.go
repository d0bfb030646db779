package service

import (
	"archive/zip"
	"compress/flate"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"snapfetch/internal/server/storage"
)

// AssetRef points at a previously staged file by its retrieval path.
type AssetRef struct {
	DownloadURL string `json:"downloadUrl"`
	Filename    string `json:"filename,omitempty"`
}

// ArchiveResult addresses a finished bundle.
type ArchiveResult struct {
	ZipURL    string
	Filename  string
	SessionID string
}

// resolvedAsset is one staged file ready for bundling.
type resolvedAsset struct {
	path        string
	displayName string
	sessionID   string
}

// parseAssetRef extracts the staged filename and optional session ID from a
// retrieval path of the form api/downloads/<filename>[?session=<id>].
func parseAssetRef(ref AssetRef) (filename, sessionID string, err error) {
	if ref.DownloadURL == "" {
		return "", "", fmt.Errorf("%w: missing download URL", ErrBadReference)
	}

	normalized := strings.TrimLeft(ref.DownloadURL, "/")
	rest, ok := strings.CutPrefix(normalized, "api/downloads/")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrBadReference, ref.DownloadURL)
	}

	filename, query, _ := strings.Cut(rest, "?")
	if !storage.SafeFilename(filename) {
		return "", "", fmt.Errorf("%w: %s", ErrBadReference, ref.DownloadURL)
	}

	if query != "" {
		params, perr := url.ParseQuery(query)
		if perr != nil {
			return "", "", fmt.Errorf("%w: %s", ErrBadReference, ref.DownloadURL)
		}
		sessionID = params.Get("session")
	}

	return filename, sessionID, nil
}

// resolveAsset maps a reference onto an existing staged file. The request
// session takes precedence over a session embedded in the reference.
func (s *MediaService) resolveAsset(ref AssetRef, requestSession string) (resolvedAsset, error) {
	filename, embedded, err := parseAssetRef(ref)
	if err != nil {
		return resolvedAsset{}, err
	}

	sessionID := requestSession
	if sessionID == "" {
		sessionID = embedded
	}

	path, err := s.dirs.Resolve(sessionID, filename)
	if err != nil {
		return resolvedAsset{}, fmt.Errorf("%w: %s", ErrBadReference, ref.DownloadURL)
	}
	if _, err := os.Stat(path); err != nil {
		return resolvedAsset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, filename)
	}

	displayName := strings.TrimSpace(ref.Filename)
	if displayName == "" {
		displayName = filepath.Base(path)
	}

	return resolvedAsset{path: path, displayName: displayName, sessionID: sessionID}, nil
}

// BuildArchive streams the referenced staged files into one zip at maximum
// compression, written into the resolving session's directory. The bundle is
// fully flushed before success is reported.
func (s *MediaService) BuildArchive(ctx context.Context, sessionID string, refs []AssetRef) (*ArchiveResult, error) {
	if len(refs) == 0 {
		return nil, ErrNoAssets
	}

	resolved := make([]resolvedAsset, 0, len(refs))
	for _, ref := range refs {
		asset, err := s.resolveAsset(ref, sessionID)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, asset)
	}

	// Bundle lands next to its assets; all references point into the same
	// session in practice.
	bundleSession := sessionID
	if bundleSession == "" {
		bundleSession = resolved[0].sessionID
	}

	name := bundleName()
	zipPath, err := s.dirs.Resolve(bundleSession, name)
	if err != nil {
		return nil, fmt.Errorf("failed to place bundle: %w", err)
	}

	if err := s.writeBundle(ctx, zipPath, resolved); err != nil {
		os.Remove(zipPath)
		return nil, err
	}

	return &ArchiveResult{
		ZipURL:    downloadPath(name, bundleSession),
		Filename:  name,
		SessionID: bundleSession,
	}, nil
}

func (s *MediaService) writeBundle(ctx context.Context, zipPath string, assets []resolvedAsset) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			zw.Close()
			out.Close()
			return err
		}
		if err := addFileToZip(zw, asset.path, asset.displayName); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finalize bundle: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to flush bundle: %w", err)
	}
	return nil
}

func addFileToZip(zw *zip.Writer, srcPath, archiveName string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", srcPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header: %w", err)
	}
	header.Name = archiveName
	header.Method = zip.Deflate

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry: %w", err)
	}

	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("failed to write file to zip: %w", err)
	}

	return nil
}
