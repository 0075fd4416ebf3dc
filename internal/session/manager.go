package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusConcluded Status = "concluded"
	StatusEnded     Status = "ended"
)

var ErrNotFound = errors.New("interview session not found")

// DefaultSessionID backs callers that never create a session explicitly;
// the whole service then behaves as one shared interview.
const DefaultSessionID = "default"

// Session is one interview conversation.
type Session struct {
	ID             string    `json:"session_id"`
	Status         Status    `json:"status"`
	TurnCount      int       `json:"turn_count"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type entry struct {
	session  *Session
	turnLock *sync.Mutex
}

// Manager tracks interview sessions and serializes turn processing per
// session so concurrent callers cannot interleave into one transcript.
type Manager struct {
	mu                sync.RWMutex
	entries           map[string]*entry
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		entries:           make(map[string]*entry),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.createLocked(uuid.NewString()))
}

// Ensure returns the session with the given id, creating it active if it
// does not exist. Empty ids map to the default session.
func (m *Manager) Ensure(sessionID string) *Session {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[sessionID]; ok {
		return clone(e.session)
	}
	return clone(m.createLocked(sessionID))
}

func (m *Manager) createLocked(id string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             id,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}
	m.entries[id] = &entry{session: s, turnLock: &sync.Mutex{}}
	return s
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e.session), nil
}

// TurnLock returns the per-session mutex guarding the whole
// persist-read-persist window of a turn.
func (m *Manager) TurnLock(sessionID string) (*sync.Mutex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return e.turnLock, nil
}

// RecordTurn bumps activity after a completed turn pair.
func (m *Manager) RecordTurn(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sessionID]
	if !ok {
		return ErrNotFound
	}
	e.session.TurnCount++
	e.session.LastActivityAt = time.Now().UTC()
	return nil
}

// Conclude marks the interview finished after the termination token was
// emitted. The transcript stays readable.
func (m *Manager) Conclude(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sessionID]
	if !ok {
		return ErrNotFound
	}
	e.session.Status = StatusConcluded
	e.session.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	e.session.Status = StatusEnded
	e.session.LastActivityAt = time.Now().UTC()
	return clone(e.session), nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.entries {
		if e.session.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for _, e := range m.entries {
		s := e.session
		if s.Status != StatusActive {
			continue
		}
		// The default session never expires; it is the fallback for
		// callers without session management.
		if s.ID == DefaultSessionID {
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.LastActivityAt = now
		expired = append(expired, clone(s))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
