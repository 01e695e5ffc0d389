package ports

import (
	"context"

	"github.com/philiporange/torrent-manager/internal/domain"
)

// BackendClient is the one capability set every backend kind (rTorrent,
// Transmission, and test fakes) must implement, normalizing both RPC
// dialects into a single torrent-operation contract (spec.md §4.2).
type BackendClient interface {
	ListTorrents(ctx context.Context, infoHash domain.InfoHash, includeFiles bool) ([]domain.TorrentView, error)
	AddTorrentFile(ctx context.Context, data []byte, start bool, priority domain.Priority) error
	AddMagnet(ctx context.Context, uri string, start bool, priority domain.Priority) error
	AddTorrentURL(ctx context.Context, url string, start bool, priority domain.Priority) error
	Start(ctx context.Context, infoHash domain.InfoHash) error
	Stop(ctx context.Context, infoHash domain.InfoHash) error
	Erase(ctx context.Context, infoHash domain.InfoHash, deleteData bool) error
	Files(ctx context.Context, infoHash domain.InfoHash) ([]domain.FileView, error)
	SetPriority(ctx context.Context, infoHash domain.InfoHash, priority domain.Priority) error
	SetFilePriority(ctx context.Context, infoHash domain.InfoHash, index int, priority domain.Priority) error
	Ping(ctx context.Context) error
}

// ClientFactory resolves a Backend record to a live, pooled BackendClient
// (spec.md §4.3).
type ClientFactory interface {
	Get(ctx context.Context, backend domain.Backend) (BackendClient, error)
	Invalidate(backendID string)
}
