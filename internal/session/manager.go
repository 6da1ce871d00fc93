// Package session owns the live floor map sessions, one Floor per client.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fas-floormap/backend/internal/floor"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/google/uuid"
)

// MaxSessions limits concurrent sessions to bound memory and goroutines
const MaxSessions = 10

// SessionMaxAge is how long an idle session is kept before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Manager handles active floor sessions.
type Manager struct {
	sessions    map[string]*SessionState
	mu          sync.RWMutex
	opts        floor.Options
	journal     floor.Journal
	maxSessions int
	now         func() time.Time
}

// SessionState holds the session metadata and its running floor.
type SessionState struct {
	Session      *models.FloorSession
	Floor        *floor.Floor
	LastAccessed time.Time // Last time the session was accessed (for keep-alive)
	cancel       context.CancelFunc
}

// NewManager creates a session manager building floors with opts. journal
// may be nil.
func NewManager(opts floor.Options, journal floor.Journal) *Manager {
	return &Manager{
		sessions:    make(map[string]*SessionState),
		opts:        opts,
		journal:     journal,
		maxSessions: MaxSessions,
		now:         time.Now,
	}
}

// SetMaxSessions changes the session cap. Values below 1 are ignored.
func (m *Manager) SetMaxSessions(n int) {
	if n < 1 {
		return
	}
	m.mu.Lock()
	m.maxSessions = n
	m.mu.Unlock()
}

// CreateSession starts a floor over the given entities. When the manager is
// full the least recently used session is closed first.
func (m *Manager) CreateSession(entities []models.MapEntity, layoutID string) (*models.FloorSession, error) {
	m.evictIfNeeded()

	id := uuid.New().String()
	f := floor.New(id, entities, m.opts)
	if m.journal != nil {
		f.SetJournal(m.journal)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := f.Run(ctx); err != nil {
			fmt.Printf("[Session %s] Floor exited: %v\n", shortID(id), err)
		}
	}()

	now := m.now()
	sess := &models.FloorSession{
		ID:           id,
		LayoutID:     layoutID,
		CreatedAt:    now,
		LastAccessed: now,
		EntityCount:  len(entities),
		EditMode:     m.opts.EditMode,
	}

	m.mu.Lock()
	m.sessions[id] = &SessionState{
		Session:      sess,
		Floor:        f,
		LastAccessed: now,
		cancel:       cancel,
	}
	m.mu.Unlock()

	fmt.Printf("[Session %s] Created (layout=%q, %d entities)\n", shortID(id), layoutID, len(entities))
	cp := *sess
	return &cp, nil
}

// GetSession returns a copy of the session metadata.
func (m *Manager) GetSession(id string) (*models.FloorSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	cp := *state.Session
	cp.LastAccessed = state.LastAccessed
	return &cp, true
}

// GetFloor returns the session's floor and marks the session as used.
func (m *Manager) GetFloor(id string) (*floor.Floor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	state.LastAccessed = m.now()
	return state.Floor, true
}

// TouchSession updates the LastAccessed timestamp for a session.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = m.now()
	return true
}

// UpdateSession applies fn to the stored session metadata.
func (m *Manager) UpdateSession(id string, fn func(s *models.FloorSession)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	fn(state.Session)
	return true
}

// ListSessions returns all sessions, oldest first.
func (m *Manager) ListSessions() []models.FloorSession {
	m.mu.RLock()
	out := make([]models.FloorSession, 0, len(m.sessions))
	for _, state := range m.sessions {
		cp := *state.Session
		cp.LastAccessed = state.LastAccessed
		out = append(out, cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// DeleteSession stops the session's floor and forgets it.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	stop(state)
	fmt.Printf("[Session %s] Deleted\n", shortID(id))
	return nil
}

// evictIfNeeded closes least recently used sessions until there is room for one more.
func (m *Manager) evictIfNeeded() {
	m.mu.Lock()
	var victims []*SessionState
	for len(m.sessions) >= m.maxSessions {
		var oldestID string
		var oldest *SessionState
		for id, state := range m.sessions {
			if oldest == nil || state.LastAccessed.Before(oldest.LastAccessed) {
				oldestID, oldest = id, state
			}
		}
		delete(m.sessions, oldestID)
		victims = append(victims, oldest)
		fmt.Printf("[Manager] Evicted session %s to stay under %d sessions\n", shortID(oldestID), m.maxSessions)
	}
	m.mu.Unlock()

	for _, state := range victims {
		stop(state)
	}
}

// CleanupOldSessions removes sessions idle for longer than maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	now := m.now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	m.mu.Lock()
	var victims []*SessionState
	for id, state := range m.sessions {
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			victims = append(victims, state)
			fmt.Printf("[Manager] Cleaned up aged session %s (last accessed: %s ago)\n",
				shortID(id), now.Sub(state.LastAccessed).Round(time.Second))
		}
	}
	m.mu.Unlock()

	for _, state := range victims {
		stop(state)
	}
	return len(victims)
}

// Shutdown stops every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	states := make([]*SessionState, 0, len(m.sessions))
	for id, state := range m.sessions {
		states = append(states, state)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, state := range states {
		stop(state)
	}
}

func stop(state *SessionState) {
	if state.cancel != nil {
		state.cancel()
	}
	<-state.Floor.Done()
}

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
