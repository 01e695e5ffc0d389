package auth

import (
	"context"
	"sync"
	"time"

	"github.com/philiporange/torrent-manager/internal/domain"
)

// memStore is a minimal in-memory ports.UserStore + ports.SessionStore,
// grounded on the teacher's storage/memory test doubles, scoped down to
// exactly what Service exercises.
type memStore struct {
	mu            sync.Mutex
	users         map[string]domain.User
	usersByName   map[string]string
	sessions      map[string]domain.Session
	rememberToks  map[string]domain.RememberToken
	apiKeys       map[string]domain.ApiKey
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[string]domain.User{},
		usersByName:  map[string]string{},
		sessions:     map[string]domain.Session{},
		rememberToks: map[string]domain.RememberToken{},
		apiKeys:      map[string]domain.ApiKey{},
	}
}

func (m *memStore) CreateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usersByName[u.Username]; ok {
		return domain.ErrDuplicate
	}
	m.users[u.ID] = u
	m.usersByName[u.Username] = u.ID
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usersByName[username]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return m.users[id], nil
}

func (m *memStore) CountUsers(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.users, id)
	delete(m.usersByName, u.Username)
	return nil
}

func (m *memStore) CreateSession(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *memStore) SlideSession(_ context.Context, id string, lastActivity, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.LastActivity = lastActivity
	s.ExpiresAt = expiresAt
	m.sessions[id] = s
	return nil
}

func (m *memStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memStore) DeleteSessionsForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memStore) CreateRememberToken(_ context.Context, r domain.RememberToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rememberToks[r.ID] = r
	return nil
}

func (m *memStore) GetRememberToken(_ context.Context, id string) (domain.RememberToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rememberToks[id]
	if !ok {
		return domain.RememberToken{}, domain.ErrNotFound
	}
	return r, nil
}

func (m *memStore) RevokeRememberToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rememberToks[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Revoked = true
	m.rememberToks[id] = r
	return nil
}

func (m *memStore) DeleteRememberTokensForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rememberToks {
		if r.UserID == userID {
			delete(m.rememberToks, id)
		}
	}
	return nil
}

func (m *memStore) CreateApiKey(_ context.Context, k domain.ApiKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apiKeys[k.Prefix]; ok {
		return domain.ErrDuplicate
	}
	m.apiKeys[k.Prefix] = k
	return nil
}

func (m *memStore) GetApiKeyByPrefix(_ context.Context, prefix string) (domain.ApiKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.apiKeys[prefix]
	if !ok {
		return domain.ApiKey{}, domain.ErrNotFound
	}
	return k, nil
}

func (m *memStore) ListApiKeys(_ context.Context, userID string) ([]domain.ApiKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ApiKey
	for _, k := range m.apiKeys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memStore) RevokeApiKey(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.apiKeys[prefix]
	if !ok {
		return domain.ErrNotFound
	}
	k.Revoked = true
	m.apiKeys[prefix] = k
	return nil
}

func (m *memStore) TouchApiKeyUsed(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apiKeys[prefix]; !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (m *memStore) DeleteApiKeysForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for prefix, k := range m.apiKeys {
		if k.UserID == userID {
			delete(m.apiKeys, prefix)
		}
	}
	return nil
}
