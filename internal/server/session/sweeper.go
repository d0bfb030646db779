package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"snapfetch/internal/server/storage"
)

// Sweeper removes session directories older than the TTL, along with their
// metadata entries. It runs periodically and can also be kicked per request,
// detached from the request lifecycle.
type Sweeper struct {
	manager  *Manager
	dirs     storage.Store
	ttl      time.Duration
	interval time.Duration
	done     chan struct{}
}

// NewSweeper creates an expiry sweeper.
func NewSweeper(manager *Manager, dirs storage.Store, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{
		manager:  manager,
		dirs:     dirs,
		ttl:      ttl,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the periodic sweep loop in a background goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("expiry sweeper started", "ttl", s.ttl, "interval", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Run once immediately on start
		s.Sweep(ctx)

		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-ctx.Done():
				slog.Info("expiry sweeper stopping")
				close(s.done)
				return
			}
		}
	}()
}

// Wait blocks until the sweeper has fully stopped.
func (s *Sweeper) Wait() {
	<-s.done
}

// SweepAsync runs a single sweep detached from the caller. Errors and panics
// are contained at this boundary so they can never fail the request that
// triggered the sweep.
func (s *Sweeper) SweepAsync() {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("sweep panicked", "panic", r)
			}
		}()
		s.Sweep(context.Background())
	}()
}

// Sweep removes every session directory whose last modification time is older
// than the TTL. A failure on one session never aborts the sweep of the rest.
// Returns the number of sessions removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := time.Now()
	removed := 0

	entries, err := os.ReadDir(s.dirs.BasePath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		slog.Error("failed to list session directories", "error", err)
		return 0
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed
		}
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			slog.Error("failed to stat session directory", "session_id", entry.Name(), "error", err)
			continue
		}

		age := now.Sub(info.ModTime())
		if age <= s.ttl {
			continue
		}

		if err := os.RemoveAll(filepath.Join(s.dirs.BasePath(), entry.Name())); err != nil {
			slog.Error("failed to remove expired session", "session_id", entry.Name(), "error", err)
			continue
		}
		s.manager.Unregister(entry.Name())
		removed++
		slog.Info("removed expired session",
			"session_id", entry.Name(),
			"age_minutes", int(age.Minutes()),
		)
	}

	if removed > 0 {
		slog.Info("sweep complete", "removed", removed)
	}
	return removed
}
