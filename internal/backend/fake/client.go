// Package fake is an in-memory ports.BackendClient double used by
// dispatcher/unit tests and the BackendKind "fake" wire-up, adapted from
// the teacher's mutex-guarded in-memory map pattern (storage/memory's
// Provider) applied to torrent records instead of piece bytes.
package fake

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/philiporange/torrent-manager/internal/domain"
)

// Client is a self-contained fake torrent client: added torrents live in
// memory only. Start moves a record to downloading, or to seeding when it
// is already marked Complete; Stop moves it to stopped. BytesDone never
// advances on its own.
type Client struct {
	mu       sync.Mutex
	torrents map[domain.InfoHash]*record
	pingErr  error
}

type record struct {
	view  domain.TorrentView
	files []domain.FileView
}

// New builds an empty fake client.
func New() *Client {
	return &Client{torrents: make(map[domain.InfoHash]*record)}
}

// SetPingError makes subsequent Ping calls fail, simulating an
// unreachable backend for maintenance/dispatch failure-path tests.
func (c *Client) SetPingError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = err
}

// Seed installs a torrent directly, bypassing Add*, for test setup.
func (c *Client) Seed(v domain.TorrentView, files []domain.FileView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.torrents[v.InfoHash] = &record{view: v, files: files}
}

func (c *Client) ListTorrents(ctx context.Context, infoHash domain.InfoHash, includeFiles bool) ([]domain.TorrentView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if infoHash != "" {
		r, ok := c.torrents[infoHash]
		if !ok {
			return nil, nil
		}
		return []domain.TorrentView{withFiles(r, includeFiles)}, nil
	}

	views := make([]domain.TorrentView, 0, len(c.torrents))
	for _, r := range c.torrents {
		views = append(views, withFiles(r, includeFiles))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].InfoHash < views[j].InfoHash })
	return views, nil
}

func withFiles(r *record, includeFiles bool) domain.TorrentView {
	v := r.view
	if includeFiles {
		v.Files = append([]domain.FileView(nil), r.files...)
	}
	return v
}

func (c *Client) add(hash domain.InfoHash, name string, start bool, priority domain.Priority) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.torrents[hash]; exists {
		return errors.New("fake: torrent already present")
	}
	state := "stopped"
	if start {
		state = "downloading"
	}
	c.torrents[hash] = &record{view: domain.TorrentView{
		InfoHash: hash, Name: name, State: state, IsActive: start,
		Priority: priority, Size: 0, IsMagnetPending: true,
	}}
	return nil
}

// hashOf derives a stable fake info hash from arbitrary payload bytes or a
// magnet/URL string, since this double never parses real bencoded data.
func hashOf(seed string) domain.InfoHash {
	const hexDigits = "0123456789ABCDEF"
	sum := 0
	for _, b := range []byte(seed) {
		sum = sum*31 + int(b)
	}
	if sum < 0 {
		sum = -sum
	}
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteByte(hexDigits[((sum>>(i%28))^i)&0xF])
	}
	return domain.InfoHash(sb.String())
}

func (c *Client) AddTorrentFile(ctx context.Context, data []byte, start bool, priority domain.Priority) error {
	return c.add(hashOf(string(data)), "fake-torrent-file", start, priority)
}

func (c *Client) AddMagnet(ctx context.Context, uri string, start bool, priority domain.Priority) error {
	return c.add(hashOf(uri), "fake-magnet", start, priority)
}

func (c *Client) AddTorrentURL(ctx context.Context, url string, start bool, priority domain.Priority) error {
	return c.add(hashOf(url), "fake-url-torrent", start, priority)
}

func (c *Client) Start(ctx context.Context, infoHash domain.InfoHash) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.torrents[infoHash]
	if !ok {
		return domain.ErrNotFound
	}
	r.view.IsActive = true
	if r.view.Complete {
		r.view.State = "seeding"
	} else {
		r.view.State = "downloading"
	}
	return nil
}

func (c *Client) Stop(ctx context.Context, infoHash domain.InfoHash) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.torrents[infoHash]
	if !ok {
		return domain.ErrNotFound
	}
	r.view.IsActive = false
	r.view.State = "stopped"
	return nil
}

func (c *Client) Erase(ctx context.Context, infoHash domain.InfoHash, deleteData bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.torrents[infoHash]; !ok {
		return domain.ErrNotFound
	}
	delete(c.torrents, infoHash)
	return nil
}

func (c *Client) Files(ctx context.Context, infoHash domain.InfoHash) ([]domain.FileView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.torrents[infoHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]domain.FileView(nil), r.files...), nil
}

func (c *Client) SetPriority(ctx context.Context, infoHash domain.InfoHash, priority domain.Priority) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.torrents[infoHash]
	if !ok {
		return domain.ErrNotFound
	}
	r.view.Priority = priority
	return nil
}

func (c *Client) SetFilePriority(ctx context.Context, infoHash domain.InfoHash, index int, priority domain.Priority) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.torrents[infoHash]
	if !ok {
		return domain.ErrNotFound
	}
	if index < 0 || index >= len(r.files) {
		return domain.ErrNotFound
	}
	r.files[index].Priority = priority
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingErr
}
