package session

import (
	"log/slog"
	"os"
	"sort"
	"time"

	"snapfetch/internal/server/storage"
)

// Info describes one live session owned by a client identity.
type Info struct {
	SessionID string
	OwnerIP   string
	CreatedAt time.Time
}

// Manager tracks session ownership and enforces the per-owner quota.
// Metadata failures are logged, never surfaced: the table is advisory and
// must not fail a client's main request.
type Manager struct {
	meta        MetadataStore
	dirs        storage.Store
	maxPerOwner int
}

// NewManager creates a session manager.
func NewManager(meta MetadataStore, dirs storage.Store, maxPerOwner int) *Manager {
	return &Manager{meta: meta, dirs: dirs, maxPerOwner: maxPerOwner}
}

// Register records a session for an owner. Idempotent: re-registering
// overwrites the existing entry.
func (m *Manager) Register(sessionID, owner string) {
	sessions, err := m.meta.Load()
	if err != nil {
		slog.Error("failed to load session metadata", "error", err)
		return
	}

	sessions[sessionID] = Entry{
		OwnerIP:   owner,
		CreatedAt: time.Now().UnixMilli(),
	}

	if err := m.meta.Save(sessions); err != nil {
		slog.Error("failed to save session metadata", "error", err)
	}
}

// Unregister removes a session from the table.
func (m *Manager) Unregister(sessionID string) {
	sessions, err := m.meta.Load()
	if err != nil {
		slog.Error("failed to load session metadata", "error", err)
		return
	}

	delete(sessions, sessionID)

	if err := m.meta.Save(sessions); err != nil {
		slog.Error("failed to save session metadata", "error", err)
	}
}

// OwnerSessions lists live sessions for an owner, oldest first. Entries whose
// directory no longer exists are pruned from the table as a side effect.
func (m *Manager) OwnerSessions(owner string) []Info {
	sessions, err := m.meta.Load()
	if err != nil {
		slog.Error("failed to load session metadata", "error", err)
		return nil
	}

	var live []Info
	pruned := false
	for id, entry := range sessions {
		if entry.OwnerIP != owner {
			continue
		}
		if _, err := os.Stat(m.dirs.Dir(id)); err != nil {
			delete(sessions, id)
			pruned = true
			continue
		}
		live = append(live, Info{
			SessionID: id,
			OwnerIP:   entry.OwnerIP,
			CreatedAt: time.UnixMilli(entry.CreatedAt),
		})
	}

	if pruned {
		if err := m.meta.Save(sessions); err != nil {
			slog.Error("failed to save pruned session metadata", "error", err)
		}
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].CreatedAt.Before(live[j].CreatedAt)
	})
	return live
}

// EnforceQuota deletes an owner's oldest sessions until registering one more
// would leave the owner at or under the limit. Must run before the new
// session is created so the quota holds prospectively.
func (m *Manager) EnforceQuota(owner string) {
	live := m.OwnerSessions(owner)
	if len(live) < m.maxPerOwner {
		return
	}

	evict := live[:len(live)-m.maxPerOwner+1]
	for _, s := range evict {
		if err := m.dirs.Destroy(s.SessionID); err != nil {
			slog.Error("failed to evict session", "session_id", s.SessionID, "owner", owner, "error", err)
			continue
		}
		m.Unregister(s.SessionID)
		slog.Info("evicted old session over quota",
			"session_id", s.SessionID,
			"owner", owner,
			"created_at", s.CreatedAt,
		)
	}
}

// ActiveCount returns the number of tracked sessions whose directory still
// exists, pruning stale entries along the way.
func (m *Manager) ActiveCount() int {
	sessions, err := m.meta.Load()
	if err != nil {
		slog.Error("failed to load session metadata", "error", err)
		return 0
	}

	count := 0
	pruned := false
	for id := range sessions {
		if _, err := os.Stat(m.dirs.Dir(id)); err != nil {
			delete(sessions, id)
			pruned = true
			continue
		}
		count++
	}

	if pruned {
		if err := m.meta.Save(sessions); err != nil {
			slog.Error("failed to save pruned session metadata", "error", err)
		}
	}
	return count
}
