package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"exmora-backend/internal/model"
)

// memStore is an in-memory SessionStore honoring the same ownership and
// atomicity rules as the MySQL-backed repository.
type memStore struct {
	mu         sync.Mutex
	nextID     uint
	sessions   map[uint]*model.Session
	failAppend bool
	failCreate bool
	created    int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[uint]*model.Session)}
}

func (m *memStore) Create(_ context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return errors.New("store unavailable")
	}
	m.nextID++
	session.ID = m.nextID
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	cp := *session
	m.sessions[session.ID] = &cp
	m.created++
	return nil
}

func (m *memStore) GetByIDAndUserID(_ context.Context, sessionID uint, userID string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) LatestByUserID(_ context.Context, userID string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Session
	for _, s := range m.sessions {
		if s.UserID != userID {
			continue
		}
		if latest == nil || s.UpdatedAt.After(latest.UpdatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memStore) ListByUserID(_ context.Context, userID string) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memStore) AppendExchange(_ context.Context, exchange *model.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend {
		return errors.New("store unavailable")
	}
	s, ok := m.sessions[exchange.SessionID]
	if !ok {
		return errors.New("session vanished")
	}
	s.Exchanges = append(s.Exchanges, *exchange)
	s.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) DeleteByIDAndUserID(_ context.Context, sessionID uint, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return false, nil
	}
	delete(m.sessions, sessionID)
	return true, nil
}

func (m *memStore) exchangeCount(sessionID uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return 0
	}
	return len(s.Exchanges)
}

func (m *memStore) updatedAt(sessionID uint) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID].UpdatedAt
}
