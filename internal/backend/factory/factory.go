// Package factory resolves a domain.Backend record to a live, pooled
// ports.BackendClient, grounded on the teacher's anacrolix engine's
// map+sync.RWMutex session cache (internal/services/torrent/engine/anacrolix
// /engine.go) applied to backend RPC clients instead of torrent sessions
// (spec.md §4.3).
package factory

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/philiporange/torrent-manager/internal/backend/fake"
	"github.com/philiporange/torrent-manager/internal/backend/rtorrent"
	"github.com/philiporange/torrent-manager/internal/backend/transmission"
	"github.com/philiporange/torrent-manager/internal/domain"
	"github.com/philiporange/torrent-manager/internal/domain/ports"
)

type cacheEntry struct {
	client  ports.BackendClient
	version int
}

// Factory caches one BackendClient per backend ID, invalidating it when the
// backend record changes (Version bump) or a caller reports it unreachable.
type Factory struct {
	mu         sync.RWMutex
	clients    map[string]*cacheEntry
	httpClient *http.Client

	// fakeClients lets test callers preregister a *fake.Client under a
	// backend ID so Get returns the exact instance they seeded.
	fakeClients map[string]*fake.Client
}

// New builds a Factory. httpClient is shared by every rtorrent/transmission
// client it constructs; pass nil to get a sane per-backend default.
func New(httpClient *http.Client) *Factory {
	return &Factory{
		clients:     make(map[string]*cacheEntry),
		fakeClients: make(map[string]*fake.Client),
		httpClient:  httpClient,
	}
}

// RegisterFake installs a fake client for a given backend ID, used by
// dispatcher tests that want to control a backend's in-memory state
// directly instead of going through BackendKind detection.
func (f *Factory) RegisterFake(backendID string, client *fake.Client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fakeClients[backendID] = client
}

func (f *Factory) Get(ctx context.Context, backend domain.Backend) (ports.BackendClient, error) {
	f.mu.RLock()
	entry, ok := f.clients[backend.ID]
	f.mu.RUnlock()
	if ok && entry.version == backend.Version {
		return entry.client, nil
	}

	client, err := f.build(backend)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.clients[backend.ID] = &cacheEntry{client: client, version: backend.Version}
	f.mu.Unlock()
	return client, nil
}

func (f *Factory) build(backend domain.Backend) (ports.BackendClient, error) {
	if backend.Kind == domain.BackendFake {
		f.mu.RLock()
		fc, ok := f.fakeClients[backend.ID]
		f.mu.RUnlock()
		if ok {
			return fc, nil
		}
		return fake.New(), nil
	}

	httpClient := f.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	switch backend.Kind {
	case domain.BackendRTorrent:
		return rtorrent.New(backend, httpClient), nil
	case domain.BackendTransmission:
		return transmission.New(backend, httpClient), nil
	default:
		return nil, fmt.Errorf("factory: unknown backend kind %q", backend.Kind)
	}
}

// Invalidate drops the cached client for backendID, forcing the next Get
// to rebuild it; used after a ping failure so a stale connection (e.g. a
// rotated session cookie) isn't reused (spec.md §4.3, §4.6).
func (f *Factory) Invalidate(backendID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.clients, backendID)
}
