package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"snapfetch/internal/server/storage"
)

func newTestSweeper(t *testing.T, ttl time.Duration) (*Sweeper, *Manager, *storage.FileSystemStore) {
	t.Helper()
	base := t.TempDir()
	dirs := storage.NewFileSystemStore(base)
	meta := NewFileMetadata(base)
	manager := NewManager(meta, dirs, 5)
	return NewSweeper(manager, dirs, ttl, time.Hour), manager, dirs
}

func ageDir(t *testing.T, path string, age time.Duration) {
	t.Helper()
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("failed to age directory: %v", err)
	}
}

func TestSweeper_Sweep(t *testing.T) {
	ttl := time.Hour

	t.Run("removes session past the TTL", func(t *testing.T) {
		sweeper, manager, dirs := newTestSweeper(t, ttl)
		makeSession(t, manager, dirs, "expired", "1.1.1.1", time.Now().Add(-2*time.Hour))
		ageDir(t, dirs.Dir("expired"), ttl+time.Second)

		removed := sweeper.Sweep(context.Background())
		if removed != 1 {
			t.Fatalf("expected 1 removal, got %d", removed)
		}
		if _, err := os.Stat(dirs.Dir("expired")); !os.IsNotExist(err) {
			t.Error("expected session directory to be removed")
		}
		sessions, _ := manager.meta.Load()
		if _, ok := sessions["expired"]; ok {
			t.Error("expected metadata entry to be removed")
		}
	})

	t.Run("leaves session inside the TTL", func(t *testing.T) {
		sweeper, manager, dirs := newTestSweeper(t, ttl)
		makeSession(t, manager, dirs, "fresh", "1.1.1.1", time.Now())
		ageDir(t, dirs.Dir("fresh"), ttl-time.Second)

		removed := sweeper.Sweep(context.Background())
		if removed != 0 {
			t.Fatalf("expected no removals, got %d", removed)
		}
		if _, err := os.Stat(dirs.Dir("fresh")); err != nil {
			t.Error("expected session directory to survive")
		}
	})

	t.Run("skips regular files under the base root", func(t *testing.T) {
		sweeper, manager, dirs := newTestSweeper(t, ttl)
		metaPath := filepath.Join(dirs.BasePath(), MetadataFileName)
		makeSession(t, manager, dirs, "keep", "1.1.1.1", time.Now())
		ageDir(t, metaPath, 3*time.Hour)

		sweeper.Sweep(context.Background())

		if _, err := os.Stat(metaPath); err != nil {
			t.Error("expected metadata file to survive the sweep")
		}
	})

	t.Run("missing base root is not an error", func(t *testing.T) {
		dirs := storage.NewFileSystemStore(filepath.Join(t.TempDir(), "nope"))
		meta := NewFileMetadata(dirs.BasePath())
		sweeper := NewSweeper(NewManager(meta, dirs, 5), dirs, ttl, time.Hour)

		if removed := sweeper.Sweep(context.Background()); removed != 0 {
			t.Errorf("expected 0 removals, got %d", removed)
		}
	})

	t.Run("one bad entry does not stop the sweep", func(t *testing.T) {
		sweeper, manager, dirs := newTestSweeper(t, ttl)
		makeSession(t, manager, dirs, "old-a", "1.1.1.1", time.Now().Add(-2*time.Hour))
		makeSession(t, manager, dirs, "old-b", "1.1.1.1", time.Now().Add(-2*time.Hour))
		ageDir(t, dirs.Dir("old-a"), 2*time.Hour)
		ageDir(t, dirs.Dir("old-b"), 2*time.Hour)

		removed := sweeper.Sweep(context.Background())
		if removed != 2 {
			t.Errorf("expected both expired sessions removed, got %d", removed)
		}
	})
}

func TestSweeper_StartStop(t *testing.T) {
	sweeper, _, _ := newTestSweeper(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	sweeper.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		sweeper.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
