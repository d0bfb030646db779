package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"snapfetch/internal/media"
)

func stageFile(t *testing.T, svc *MediaService, sessionID, filename, content string) {
	t.Helper()
	if err := svc.dirs.Reset(sessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.dirs.Stage(sessionID, filename, bytes.NewReader([]byte(content))); err != nil {
		t.Fatal(err)
	}
}

func TestParseAssetRef(t *testing.T) {
	t.Run("plain reference", func(t *testing.T) {
		name, sess, err := parseAssetRef(AssetRef{DownloadURL: "/api/downloads/a.jpg"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if name != "a.jpg" || sess != "" {
			t.Errorf("got (%q, %q)", name, sess)
		}
	})

	t.Run("reference with session", func(t *testing.T) {
		name, sess, err := parseAssetRef(AssetRef{DownloadURL: "api/downloads/b.mp4?session=abc-123"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if name != "b.mp4" || sess != "abc-123" {
			t.Errorf("got (%q, %q)", name, sess)
		}
	})

	t.Run("malformed references", func(t *testing.T) {
		bad := []AssetRef{
			{},
			{DownloadURL: "/etc/passwd"},
			{DownloadURL: "/api/other/a.jpg"},
			{DownloadURL: "/api/downloads/../../escape"},
			{DownloadURL: "/api/downloads/"},
		}
		for _, ref := range bad {
			if _, _, err := parseAssetRef(ref); !errors.Is(err, ErrBadReference) {
				t.Errorf("expected ErrBadReference for %q, got %v", ref.DownloadURL, err)
			}
		}
	})
}

func TestBuildArchive(t *testing.T) {
	t.Run("bundles exactly the referenced files", func(t *testing.T) {
		svc, dirs := newTestService(t, media.Registry{}, testConfig())
		stageFile(t, svc, "sess", "a.jpg", "image content")
		if _, err := svc.dirs.Stage("sess", "b.mp4", bytes.NewReader([]byte("video content"))); err != nil {
			t.Fatal(err)
		}

		result, err := svc.BuildArchive(context.Background(), "sess", []AssetRef{
			{DownloadURL: "/api/downloads/a.jpg?session=sess", Filename: "photo.jpg"},
			{DownloadURL: "/api/downloads/b.mp4?session=sess"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SessionID != "sess" {
			t.Errorf("expected session 'sess', got %q", result.SessionID)
		}
		if !strings.Contains(result.ZipURL, "session=sess") {
			t.Errorf("expected session in zip URL, got %s", result.ZipURL)
		}

		zipPath, err := dirs.Resolve("sess", result.Filename)
		if err != nil {
			t.Fatal(err)
		}
		reader, err := zip.OpenReader(zipPath)
		if err != nil {
			t.Fatalf("failed to open bundle: %v", err)
		}
		defer reader.Close()

		got := map[string]string{}
		for _, f := range reader.File {
			rc, err := f.Open()
			if err != nil {
				t.Fatal(err)
			}
			data, _ := io.ReadAll(rc)
			rc.Close()
			got[f.Name] = string(data)
		}

		want := map[string]string{
			"photo.jpg": "image content",
			"b.mp4":     "video content",
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d entries, got %d", len(want), len(got))
		}
		for name, content := range want {
			if got[name] != content {
				t.Errorf("entry %s: expected %q, got %q", name, content, got[name])
			}
		}
	})

	t.Run("session from reference when request has none", func(t *testing.T) {
		svc, dirs := newTestService(t, media.Registry{}, testConfig())
		stageFile(t, svc, "sess-x", "a.jpg", "x")

		result, err := svc.BuildArchive(context.Background(), "", []AssetRef{
			{DownloadURL: "/api/downloads/a.jpg?session=sess-x"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SessionID != "sess-x" {
			t.Errorf("expected session from reference, got %q", result.SessionID)
		}
		zipPath, _ := dirs.Resolve("sess-x", result.Filename)
		if _, err := os.Stat(zipPath); err != nil {
			t.Errorf("expected bundle in session directory: %v", err)
		}
	})

	t.Run("missing staged file is not found", func(t *testing.T) {
		svc, _ := newTestService(t, media.Registry{}, testConfig())
		stageFile(t, svc, "sess", "a.jpg", "x")

		_, err := svc.BuildArchive(context.Background(), "sess", []AssetRef{
			{DownloadURL: "/api/downloads/nope.jpg"},
		})
		if !errors.Is(err, ErrAssetNotFound) {
			t.Fatalf("expected ErrAssetNotFound, got %v", err)
		}
	})

	t.Run("empty asset list is rejected", func(t *testing.T) {
		svc, _ := newTestService(t, media.Registry{}, testConfig())
		if _, err := svc.BuildArchive(context.Background(), "sess", nil); !errors.Is(err, ErrNoAssets) {
			t.Fatalf("expected ErrNoAssets, got %v", err)
		}
	})

	t.Run("malformed reference is rejected before bundling", func(t *testing.T) {
		svc, _ := newTestService(t, media.Registry{}, testConfig())
		_, err := svc.BuildArchive(context.Background(), "sess", []AssetRef{
			{DownloadURL: "https://evil.example/file"},
		})
		if !errors.Is(err, ErrBadReference) {
			t.Fatalf("expected ErrBadReference, got %v", err)
		}
	})
}

func TestOpenAsset(t *testing.T) {
	svc, _ := newTestService(t, media.Registry{}, testConfig())
	sessionID := "0f8fad5b-d9cb-469f-a165-70867728950e"
	stageFile(t, svc, sessionID, "clip.mp4", "0123456789")

	t.Run("resolves a staged video", func(t *testing.T) {
		path, info, err := svc.OpenAsset(sessionID, "clip.mp4")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.ContentType != "video/mp4" || !info.Video {
			t.Errorf("wrong info: %+v", info)
		}
		if info.Size != 10 {
			t.Errorf("expected size 10, got %d", info.Size)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("returned path does not exist: %v", err)
		}
	})

	t.Run("rejects traversal filenames before touching the filesystem", func(t *testing.T) {
		for _, name := range []string{"../clip.mp4", "a/b.mp4", `a\b.mp4`, "..", ""} {
			if _, _, err := svc.OpenAsset(sessionID, name); !errors.Is(err, ErrInvalidFilename) {
				t.Errorf("expected ErrInvalidFilename for %q, got %v", name, err)
			}
		}
	})

	t.Run("rejects malformed session IDs", func(t *testing.T) {
		if _, _, err := svc.OpenAsset("not-a-uuid", "clip.mp4"); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("expected ErrInvalidSession, got %v", err)
		}
	})

	t.Run("missing file is not found", func(t *testing.T) {
		if _, _, err := svc.OpenAsset(sessionID, "absent.jpg"); !errors.Is(err, ErrAssetNotFound) {
			t.Errorf("expected ErrAssetNotFound, got %v", err)
		}
	})

	t.Run("unknown extension gets a generic type", func(t *testing.T) {
		if _, err := svc.dirs.Stage(sessionID, "blob.bin", bytes.NewReader([]byte("x"))); err != nil {
			t.Fatal(err)
		}
		_, info, err := svc.OpenAsset(sessionID, "blob.bin")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.ContentType != "application/octet-stream" {
			t.Errorf("expected octet-stream, got %s", info.ContentType)
		}
		if info.Video {
			t.Error("bin file should not be video")
		}
	})
}
