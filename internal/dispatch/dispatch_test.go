package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/philiporange/torrent-manager/internal/backend/fake"
	"github.com/philiporange/torrent-manager/internal/domain"
	"github.com/philiporange/torrent-manager/internal/domain/ports"
)

type stubBackendStore struct {
	mu       sync.Mutex
	backends map[string]domain.Backend
}

func newStubBackendStore(backends ...domain.Backend) *stubBackendStore {
	s := &stubBackendStore{backends: make(map[string]domain.Backend)}
	for _, b := range backends {
		s.backends[b.ID] = b
	}
	return s
}

func (s *stubBackendStore) CreateBackend(ctx context.Context, b domain.Backend) error { return nil }
func (s *stubBackendStore) UpdateBackend(ctx context.Context, b domain.Backend) error { return nil }
func (s *stubBackendStore) GetBackend(ctx context.Context, id string) (domain.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backends[id]
	if !ok {
		return domain.Backend{}, domain.ErrNotFound
	}
	return b, nil
}
func (s *stubBackendStore) ListBackends(ctx context.Context, ownerUserID string) ([]domain.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Backend
	for _, b := range s.backends {
		if b.OwnerUserID == ownerUserID {
			out = append(out, b)
		}
	}
	return out, nil
}
func (s *stubBackendStore) ListAllEnabledBackends(ctx context.Context) ([]domain.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Backend
	for _, b := range s.backends {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out, nil
}
func (s *stubBackendStore) DeleteBackend(ctx context.Context, id string) error { return nil }
func (s *stubBackendStore) TouchBackendHealth(ctx context.Context, id, lastError string) error {
	return nil
}

type stubTorrentStore struct {
	mu      sync.Mutex
	deleted []domain.TorrentKey
}

func (s *stubTorrentStore) UpsertTorrent(ctx context.Context, t domain.Torrent) error { return nil }
func (s *stubTorrentStore) GetTorrent(ctx context.Context, key domain.TorrentKey) (domain.Torrent, error) {
	return domain.Torrent{}, domain.ErrNotFound
}
func (s *stubTorrentStore) ListTorrents(ctx context.Context, filter domain.TorrentFilter) ([]domain.Torrent, error) {
	return nil, nil
}
func (s *stubTorrentStore) DeleteTorrent(ctx context.Context, key domain.TorrentKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	return nil
}
func (s *stubTorrentStore) SetTorrentLabels(ctx context.Context, key domain.TorrentKey, labels []string) error {
	return nil
}

type stubActionStore struct {
	mu      sync.Mutex
	actions []domain.Action
}

func (s *stubActionStore) AppendAction(ctx context.Context, a domain.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, a)
	return nil
}
func (s *stubActionStore) ListActions(ctx context.Context, torrentID domain.InfoHash) ([]domain.Action, error) {
	return nil, nil
}

type stubEventBus struct {
	mu     sync.Mutex
	events []ports.Event
}

func (b *stubEventBus) Publish(event ports.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}
func (b *stubEventBus) Subscribe() (<-chan ports.Event, func()) {
	ch := make(chan ports.Event)
	return ch, func() {}
}

type stubFactory struct {
	mu      sync.Mutex
	clients map[string]*fake.Client
}

func newStubFactory() *stubFactory {
	return &stubFactory{clients: make(map[string]*fake.Client)}
}

func (f *stubFactory) register(backendID string, c *fake.Client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[backendID] = c
}

func (f *stubFactory) Get(ctx context.Context, backend domain.Backend) (ports.BackendClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[backend.ID]
	if !ok {
		return nil, errors.New("stubFactory: no client registered for " + backend.ID)
	}
	return c, nil
}
func (f *stubFactory) Invalidate(backendID string) {}

func TestListAllMergesAndIsolatesByOwner(t *testing.T) {
	backends := newStubBackendStore(
		domain.Backend{ID: "bA", OwnerUserID: "alice", Name: "s1", Enabled: true},
		domain.Backend{ID: "bB", OwnerUserID: "bob", Name: "s2", Enabled: true},
	)
	factory := newStubFactory()
	cA, cB := fake.New(), fake.New()
	cA.Seed(domain.TorrentView{InfoHash: "AAAA"}, nil)
	cB.Seed(domain.TorrentView{InfoHash: "BBBB"}, nil)
	factory.register("bA", cA)
	factory.register("bB", cB)

	d := &Dispatcher{Backends: backends, Factory: factory}
	views, fails, err := d.ListAll(t.Context(), "alice", "")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(fails) != 0 {
		t.Fatalf("expected no failures, got %v", fails)
	}
	if len(views) != 1 || views[0].InfoHash != "AAAA" {
		t.Fatalf("expected only alice's torrent, got %v", views)
	}
}

func TestListAllDegradesOnBackendFailure(t *testing.T) {
	backends := newStubBackendStore(
		domain.Backend{ID: "b1", OwnerUserID: "alice", Enabled: true},
		domain.Backend{ID: "b2", OwnerUserID: "alice", Enabled: true},
	)
	factory := newStubFactory()
	good := fake.New()
	good.Seed(domain.TorrentView{InfoHash: "GOOD"}, nil)
	bad := fake.New()
	bad.SetPingError(errors.New("unreachable")) // not consulted by ListTorrents directly
	factory.register("b1", good)
	// b2 deliberately left unregistered so Factory.Get fails for it.

	d := &Dispatcher{Backends: backends, Factory: factory}
	views, fails, err := d.ListAll(t.Context(), "alice", "")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(views) != 1 || views[0].InfoHash != "GOOD" {
		t.Fatalf("expected torrents from the healthy backend only, got %v", views)
	}
	if len(fails) != 1 || fails[0].BackendID != "b2" {
		t.Fatalf("expected one failure entry for b2, got %v", fails)
	}
}

func TestStartRoutesToDefaultBackendFirst(t *testing.T) {
	backends := newStubBackendStore(
		domain.Backend{ID: "b1", OwnerUserID: "alice", Enabled: true},
		domain.Backend{ID: "b2", OwnerUserID: "alice", Enabled: true, IsDefault: true},
	)
	factory := newStubFactory()
	c1, c2 := fake.New(), fake.New()
	c1.Seed(domain.TorrentView{InfoHash: "HASH1", State: "stopped"}, nil)
	c2.Seed(domain.TorrentView{InfoHash: "HASH1", State: "stopped"}, nil)
	factory.register("b1", c1)
	factory.register("b2", c2)

	actions := &stubActionStore{}
	events := &stubEventBus{}
	d := &Dispatcher{Backends: backends, Actions: actions, Events: events, Factory: factory}

	if err := d.Start(t.Context(), "alice", "HASH1", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	views2, _ := c2.ListTorrents(t.Context(), "HASH1", false)
	if views2[0].State != "downloading" {
		t.Errorf("expected the default backend (b2) to receive the start, got state %q", views2[0].State)
	}
	views1, _ := c1.ListTorrents(t.Context(), "HASH1", false)
	if views1[0].State != "stopped" {
		t.Errorf("expected the non-default backend (b1) untouched, got state %q", views1[0].State)
	}
	if len(actions.actions) != 1 || actions.actions[0].Kind != domain.ActionStart {
		t.Errorf("expected one recorded start action, got %v", actions.actions)
	}
	if len(events.events) != 1 || events.events[0].Type != ports.EventStarted {
		t.Errorf("expected one started event, got %v", events.events)
	}
}

func TestEraseDeletesLocalTorrentRow(t *testing.T) {
	backends := newStubBackendStore(domain.Backend{ID: "b1", OwnerUserID: "alice", Enabled: true})
	factory := newStubFactory()
	c := fake.New()
	c.Seed(domain.TorrentView{InfoHash: "HASH1"}, nil)
	factory.register("b1", c)

	torrents := &stubTorrentStore{}
	d := &Dispatcher{Backends: backends, Torrents: torrents, Factory: factory}

	if err := d.Erase(t.Context(), "alice", "HASH1", "b1", false); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if len(torrents.deleted) != 1 || torrents.deleted[0].InfoHash != "HASH1" {
		t.Errorf("expected the torrent row deleted, got %v", torrents.deleted)
	}
}

func TestAddRequiresBackendID(t *testing.T) {
	d := &Dispatcher{Backends: newStubBackendStore(), Factory: newStubFactory()}
	err := d.AddMagnet(t.Context(), "alice", "", "magnet:?xt=urn:btih:x", true, domain.PriorityNormal)
	if !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("expected ErrBadRequest when backend_id is omitted, got %v", err)
	}
}

func TestWriteByHashNoMatchReturnsNotFound(t *testing.T) {
	backends := newStubBackendStore(domain.Backend{ID: "b1", OwnerUserID: "alice", Enabled: true})
	factory := newStubFactory()
	factory.register("b1", fake.New()) // empty: no torrents seeded

	d := &Dispatcher{Backends: backends, Factory: factory}
	err := d.Start(t.Context(), "alice", "MISSINGHASH", "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
