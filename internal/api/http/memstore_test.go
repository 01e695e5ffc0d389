package apihttp

import (
	"context"
	"sync"
	"time"

	"github.com/philiporange/torrent-manager/internal/domain"
)

// memStore is a minimal in-memory ports.Store + ports.SessionStore,
// grounded on the teacher's storage/memory test doubles (and mirroring
// internal/auth's own fake_store_test.go memStore), scoped to exactly
// what the HTTP adapter's e2e tests exercise.
type memStore struct {
	mu sync.Mutex

	users       map[string]domain.User
	usersByName map[string]string
	sessions    map[string]domain.Session
	remembers   map[string]domain.RememberToken
	apiKeys     map[string]domain.ApiKey

	backends  map[string]domain.Backend
	torrents  map[domain.TorrentKey]domain.Torrent
	statuses  []domain.Status
	actions   []domain.Action
	transfers map[string]domain.TransferJob
	settings  map[string]string
	webhooks  map[string]domain.Webhook
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[string]domain.User{},
		usersByName: map[string]string{},
		sessions:    map[string]domain.Session{},
		remembers:   map[string]domain.RememberToken{},
		apiKeys:     map[string]domain.ApiKey{},
		backends:    map[string]domain.Backend{},
		torrents:    map[domain.TorrentKey]domain.Torrent{},
		transfers:   map[string]domain.TransferJob{},
		settings:    map[string]string{},
		webhooks:    map[string]domain.Webhook{},
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

func (m *memStore) CreateBackend(_ context.Context, b domain.Backend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends[b.ID] = b
	return nil
}

func (m *memStore) UpdateBackend(_ context.Context, b domain.Backend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.backends[b.ID]; !ok {
		return domain.ErrNotFound
	}
	b.Version++
	m.backends[b.ID] = b
	return nil
}

func (m *memStore) GetBackend(_ context.Context, id string) (domain.Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.backends[id]
	if !ok {
		return domain.Backend{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *memStore) ListBackends(_ context.Context, ownerUserID string) ([]domain.Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Backend
	for _, b := range m.backends {
		if b.OwnerUserID == ownerUserID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) ListAllEnabledBackends(_ context.Context) ([]domain.Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Backend
	for _, b := range m.backends {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) DeleteBackend(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.backends[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.backends, id)
	return nil
}

func (m *memStore) TouchBackendHealth(_ context.Context, id string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.backends[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.LastError = lastError
	m.backends[id] = b
	return nil
}

func (m *memStore) UpsertTorrent(_ context.Context, t domain.Torrent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.torrents[t.Key()] = t
	return nil
}

func (m *memStore) GetTorrent(_ context.Context, key domain.TorrentKey) (domain.Torrent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.torrents[key]
	if !ok {
		return domain.Torrent{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memStore) ListTorrents(_ context.Context, filter domain.TorrentFilter) ([]domain.Torrent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Torrent
	for _, t := range m.torrents {
		if filter.OwnerUserID != "" && t.OwnerUserID != filter.OwnerUserID {
			continue
		}
		if filter.BackendID != "" && t.BackendID != filter.BackendID {
			continue
		}
		if filter.InfoHash != "" && t.InfoHash != filter.InfoHash {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) DeleteTorrent(_ context.Context, key domain.TorrentKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.torrents, key)
	return nil
}

func (m *memStore) SetTorrentLabels(_ context.Context, key domain.TorrentKey, labels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.torrents[key]
	if !ok {
		return domain.ErrNotFound
	}
	t.Labels = labels
	m.torrents[key] = t
	return nil
}

func (m *memStore) AppendStatus(_ context.Context, st domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, st)
	return nil
}

func (m *memStore) ListStatuses(_ context.Context, torrentID domain.InfoHash) ([]domain.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Status
	for _, st := range m.statuses {
		if st.TorrentHash == torrentID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *memStore) PruneStatuses(_ context.Context, olderThanDays int) (int64, error) {
	return 0, nil
}

func (m *memStore) AppendAction(_ context.Context, a domain.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
	return nil
}

func (m *memStore) ListActions(_ context.Context, torrentID domain.InfoHash) ([]domain.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Action
	for _, a := range m.actions {
		if a.TorrentHash == torrentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) CreateTransfer(_ context.Context, j domain.TransferJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[j.ID] = j
	return nil
}

func (m *memStore) UpdateTransfer(_ context.Context, j domain.TransferJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transfers[j.ID]; !ok {
		return domain.ErrNotFound
	}
	m.transfers[j.ID] = j
	return nil
}

func (m *memStore) GetTransfer(_ context.Context, id string) (domain.TransferJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.transfers[id]
	if !ok {
		return domain.TransferJob{}, domain.ErrNotFound
	}
	return j, nil
}

func (m *memStore) FindActiveTransfer(_ context.Context, torrentID domain.InfoHash, backendID string) (domain.TransferJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.transfers {
		if j.TorrentID == torrentID && j.BackendID == backendID && j.IsActive() {
			return j, nil
		}
	}
	return domain.TransferJob{}, domain.ErrNotFound
}

func (m *memStore) FindLatestTransfer(_ context.Context, torrentID domain.InfoHash, backendID string) (domain.TransferJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	var latest domain.TransferJob
	for _, j := range m.transfers {
		if j.TorrentID != torrentID || j.BackendID != backendID {
			continue
		}
		if !found || j.StartedAt.After(latest.StartedAt) {
			latest, found = j, true
		}
	}
	if !found {
		return domain.TransferJob{}, domain.ErrNotFound
	}
	return latest, nil
}

func settingKey(torrentID domain.InfoHash, ownerUserID, key string) string {
	return string(torrentID) + "|" + ownerUserID + "|" + key
}

func (m *memStore) GetSetting(_ context.Context, torrentID domain.InfoHash, ownerUserID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[settingKey(torrentID, ownerUserID, key)]
	return v, ok, nil
}

func (m *memStore) SetSetting(_ context.Context, s domain.TorrentSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[settingKey(s.TorrentHash, s.OwnerUserID, s.Key)] = s.Value
	return nil
}

func (m *memStore) CreateWebhook(_ context.Context, w domain.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks[w.ID] = w
	return nil
}

func (m *memStore) ListWebhooks(_ context.Context, ownerUserID string) ([]domain.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Webhook
	for _, w := range m.webhooks {
		if w.OwnerUserID == ownerUserID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memStore) DeleteWebhook(_ context.Context, id, ownerUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.webhooks[id]
	if !ok || w.OwnerUserID != ownerUserID {
		return domain.ErrNotFound
	}
	delete(m.webhooks, id)
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
	m.remembers[r.ID] = r
	return nil
}

func (m *memStore) GetRememberToken(_ context.Context, id string) (domain.RememberToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.remembers[id]
	if !ok {
		return domain.RememberToken{}, domain.ErrNotFound
	}
	return r, nil
}

func (m *memStore) RevokeRememberToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.remembers[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Revoked = true
	m.remembers[id] = r
	return nil
}

func (m *memStore) DeleteRememberTokensForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.remembers {
		if r.UserID == userID {
			delete(m.remembers, id)
		}
	}
	return nil
}

func (m *memStore) CreateApiKey(_ context.Context, k domain.ApiKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	k, ok := m.apiKeys[prefix]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	k.LastUsedAt = &now
	m.apiKeys[prefix] = k
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
