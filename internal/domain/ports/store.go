package ports

import (
	"context"

	"github.com/philiporange/torrent-manager/internal/domain"
)

// UserStore persists User rows and cascades deletion to everything a user
// owns (spec.md §3 Lifecycle).
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	CountUsers(ctx context.Context) (int64, error)
	DeleteUser(ctx context.Context, id string) error
}

// BackendStore persists Backend rows for a user.
type BackendStore interface {
	CreateBackend(ctx context.Context, b domain.Backend) error
	UpdateBackend(ctx context.Context, b domain.Backend) error
	GetBackend(ctx context.Context, id string) (domain.Backend, error)
	ListBackends(ctx context.Context, ownerUserID string) ([]domain.Backend, error)
	// ListAllEnabledBackends returns every enabled Backend across every
	// owner, used by the maintenance scheduler (spec.md §4.6: "for every
	// enabled backend across all users").
	ListAllEnabledBackends(ctx context.Context) ([]domain.Backend, error)
	DeleteBackend(ctx context.Context, id string) error
	TouchBackendHealth(ctx context.Context, id string, lastError string) error
}

// TorrentStore persists the owner's local Torrent rows.
type TorrentStore interface {
	UpsertTorrent(ctx context.Context, t domain.Torrent) error
	GetTorrent(ctx context.Context, key domain.TorrentKey) (domain.Torrent, error)
	ListTorrents(ctx context.Context, filter domain.TorrentFilter) ([]domain.Torrent, error)
	DeleteTorrent(ctx context.Context, key domain.TorrentKey) error
	SetTorrentLabels(ctx context.Context, key domain.TorrentKey, labels []string) error
}

// StatusStore persists append-only Status observations.
type StatusStore interface {
	AppendStatus(ctx context.Context, s domain.Status) error
	ListStatuses(ctx context.Context, torrentID domain.InfoHash) ([]domain.Status, error)
	PruneStatuses(ctx context.Context, olderThanDays int) (int64, error)
}

// ActionStore persists append-only Action audit rows.
type ActionStore interface {
	AppendAction(ctx context.Context, a domain.Action) error
	ListActions(ctx context.Context, torrentID domain.InfoHash) ([]domain.Action, error)
}

// TransferStore persists TransferJob rows.
type TransferStore interface {
	CreateTransfer(ctx context.Context, j domain.TransferJob) error
	UpdateTransfer(ctx context.Context, j domain.TransferJob) error
	GetTransfer(ctx context.Context, id string) (domain.TransferJob, error)
	FindActiveTransfer(ctx context.Context, torrentID domain.InfoHash, backendID string) (domain.TransferJob, error)
	// FindLatestTransfer returns the most recently started job for a
	// (torrent, backend) pair regardless of state, so a caller can poll a
	// job's progress by key instead of by job id (spec.md §6 GET
	// /torrents/{hash}/transfer).
	FindLatestTransfer(ctx context.Context, torrentID domain.InfoHash, backendID string) (domain.TransferJob, error)
}

// SettingStore persists per-user per-torrent TorrentSetting overrides.
type SettingStore interface {
	GetSetting(ctx context.Context, torrentID domain.InfoHash, ownerUserID, key string) (string, bool, error)
	SetSetting(ctx context.Context, s domain.TorrentSetting) error
}

// WebhookStore persists registered event-bus subscribers.
type WebhookStore interface {
	CreateWebhook(ctx context.Context, w domain.Webhook) error
	ListWebhooks(ctx context.Context, ownerUserID string) ([]domain.Webhook, error)
	DeleteWebhook(ctx context.Context, id, ownerUserID string) error
}

// Store is the full persistence surface; internal/store/mongo implements it
// in one Mongo-backed type so cmd/server can wire a single handle.
type Store interface {
	UserStore
	BackendStore
	TorrentStore
	StatusStore
	ActionStore
	TransferStore
	SettingStore
	WebhookStore
}
