// Package transfer implements the transfer job manager (spec.md §4.7): it
// moves a remote-completed torrent's payload to a user's local path when a
// backend's auto_download is enabled, picking a transport from the
// backend's configuration. Grounded on the teacher's usecase.DiskPressure
// background-job shape (internal/usecase/disk_pressure.go) — a long-lived
// struct with injected ports, a Logger, and a per-job goroutine instead of
// disk_pressure's single ticker loop, since each transfer runs on its own
// schedule rather than a shared tick.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/philiporange/torrent-manager/internal/domain"
	"github.com/philiporange/torrent-manager/internal/domain/ports"
	"github.com/philiporange/torrent-manager/internal/metrics"
)

// ErrNoTransport is returned (and recorded on the job as a terminal
// failure) when a backend configures none of mount_path, http_download, or
// ssh (spec.md §4.7).
var ErrNoTransport = errors.New("transfer: no transport configured for backend")

// Manager is the transfer job manager.
type Manager struct {
	Jobs     ports.TransferStore
	Torrents ports.TorrentStore
	Backends ports.BackendStore
	Actions  ports.ActionStore
	Factory  ports.ClientFactory
	Events   ports.EventBus
	Logger   *slog.Logger
	Now      func() time.Time

	// ProgressInterval throttles BytesDone persistence during a transfer;
	// defaults to DefaultProgressInterval.
	ProgressInterval time.Duration

	// LoadSSHKey reads the private key at a backend's SSHConfig.KeyPath and
	// returns a signer; defaults to loadSSHKeyFile (reads the PEM file from
	// disk). Tests that never exercise the ssh transport can leave it nil.
	LoadSSHKey func(keyPath string) (ssh.Signer, error)
}

// DefaultProgressInterval mirrors the teacher's tick-style periodic
// bookkeeping cadence, applied here to progress persistence instead of a
// disk check.
const DefaultProgressInterval = 2 * time.Second

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

// Submit creates (or returns the existing) TransferJob for
// (torrentHash, backendID), per Testable Property 10: a second submission
// while the first is pending|running returns the same job id. The caller
// (the HTTP adapter) is responsible for starting background delivery via
// Run once the job has been persisted.
func (m *Manager) Submit(ctx context.Context, ownerUserID string, torrentHash domain.InfoHash, backendID string) (domain.TransferJob, error) {
	if existing, err := m.Jobs.FindActiveTransfer(ctx, torrentHash, backendID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.TransferJob{}, err
	}

	backend, err := m.Backends.GetBackend(ctx, backendID)
	if err != nil {
		return domain.TransferJob{}, err
	}
	torrent, err := m.Torrents.GetTorrent(ctx, domain.TorrentKey{OwnerUserID: ownerUserID, InfoHash: torrentHash, BackendID: backendID})
	if err != nil {
		return domain.TransferJob{}, err
	}

	localPath := ""
	if backend.AutoDownload != nil {
		localPath = backend.AutoDownload.LocalPath
	}

	job := domain.TransferJob{
		ID:         domain.NewID(),
		TorrentID:  torrentHash,
		BackendID:  backendID,
		SourcePath: filepath.Join(backend.DownloadDir, torrent.BasePath),
		DestPath:   filepath.Join(localPath, torrent.BasePath),
		State:      domain.TransferPending,
		BytesTotal: torrent.Size,
		StartedAt:  m.now(),
	}
	if err := m.Jobs.CreateTransfer(ctx, job); err != nil {
		return domain.TransferJob{}, err
	}
	return job, nil
}

// Run drives one TransferJob to a terminal state: pending -> running ->
// {done, failed}. Intended to be invoked in its own goroutine by the HTTP
// handler right after Submit returns. Submit dedups resubmissions against
// an already-active job, so Run re-checks the persisted state before doing
// any work and is a no-op for a job some other call already started.
func (m *Manager) Run(ctx context.Context, job domain.TransferJob) {
	if current, err := m.Jobs.GetTransfer(ctx, job.ID); err == nil && current.State != domain.TransferPending {
		return
	}

	metrics.TransferJobsActive.Inc()
	defer metrics.TransferJobsActive.Dec()

	backend, err := m.Backends.GetBackend(ctx, job.BackendID)
	if err != nil {
		m.fail(ctx, job, "unknown", err)
		return
	}

	transport, err := m.selectTransport(backend)
	if err != nil {
		m.fail(ctx, job, "unknown", err)
		return
	}

	job.State = domain.TransferRunning
	if err := m.Jobs.UpdateTransfer(ctx, job); err != nil {
		m.logger().Warn("transfer: mark running failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
	m.publish(backend, job, ports.EventTransferStarted)

	interval := m.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	lastFlush := m.now()

	onProgress := func(done, total int64) {
		job.BytesDone = done
		if total > 0 {
			job.BytesTotal = total
		}
		if m.now().Sub(lastFlush) < interval {
			return
		}
		lastFlush = m.now()
		if err := m.Jobs.UpdateTransfer(ctx, job); err != nil {
			m.logger().Warn("transfer: progress update failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
	}

	total, err := transport.Copy(ctx, job.SourcePath, job.DestPath, onProgress)
	if err != nil {
		m.fail(ctx, job, transport.Name(), err)
		return
	}

	job.BytesDone = total
	job.BytesTotal = total
	job.State = domain.TransferDone
	now := m.now()
	job.FinishedAt = &now
	if err := m.Jobs.UpdateTransfer(ctx, job); err != nil {
		m.logger().Warn("transfer: mark done failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}

	metrics.TransferJobsTotal.WithLabelValues(transport.Name(), "done").Inc()
	metrics.TransferBytesTotal.WithLabelValues(transport.Name()).Add(float64(total))

	m.maybeDeleteRemote(ctx, backend, job)
	m.publish(backend, job, ports.EventTransferCompleted)
}

func (m *Manager) fail(ctx context.Context, job domain.TransferJob, transportName string, cause error) {
	job.State = domain.TransferFailed
	job.Error = cause.Error()
	now := m.now()
	job.FinishedAt = &now
	if err := m.Jobs.UpdateTransfer(ctx, job); err != nil {
		m.logger().Warn("transfer: mark failed failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
	m.logger().Warn("transfer: job failed", slog.String("job_id", job.ID), slog.String("error", cause.Error()))
	metrics.TransferJobsTotal.WithLabelValues(transportName, "failed").Inc()
}

// selectTransport implements spec.md §4.7's priority order: mount_path >
// http_download > ssh.
func (m *Manager) selectTransport(backend domain.Backend) (ports.TransferTransport, error) {
	if backend.MountPath != "" {
		return MountTransport{}, nil
	}
	if backend.HTTPDownload != nil && backend.HTTPDownload.Enabled {
		return HTTPTransport{Endpoint: *backend.HTTPDownload}, nil
	}
	if backend.SSH != nil {
		loadKey := m.LoadSSHKey
		if loadKey == nil {
			loadKey = loadSSHKeyFile
		}
		signer, err := loadKey(backend.SSH.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("transfer: load ssh key: %w", err)
		}
		return SSHTransport{Config: *backend.SSH, Signer: signer}, nil
	}
	return nil, ErrNoTransport
}

// maybeDeleteRemote issues erase(delete_data=false) on the source backend
// and appends Action(transfer_done) when auto_download.delete_remote_after
// is set (spec.md §4.7).
func (m *Manager) maybeDeleteRemote(ctx context.Context, backend domain.Backend, job domain.TransferJob) {
	if backend.AutoDownload == nil || !backend.AutoDownload.DeleteRemoteAfter {
		return
	}
	client, err := m.Factory.Get(ctx, backend)
	if err != nil {
		m.logger().Warn("transfer: get client for delete_remote_after failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return
	}
	if err := client.Erase(ctx, job.TorrentID, false); err != nil {
		m.logger().Warn("transfer: delete_remote_after erase failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return
	}
	m.appendAction(ctx, job.TorrentID, domain.ActionTransferDone, "delete_remote_after")
}

func (m *Manager) appendAction(ctx context.Context, infoHash domain.InfoHash, kind domain.ActionKind, detail string) {
	if m.Actions == nil {
		return
	}
	if err := m.Actions.AppendAction(ctx, domain.Action{
		TorrentHash: infoHash,
		Kind:        kind,
		Timestamp:   m.now(),
		Detail:      detail,
	}); err != nil {
		m.logger().Warn("transfer: append action failed", slog.String("error", err.Error()))
	}
}

func (m *Manager) publish(backend domain.Backend, job domain.TransferJob, eventType ports.EventType) {
	if m.Events == nil {
		return
	}
	m.Events.Publish(ports.Event{Type: eventType, OwnerUserID: backend.OwnerUserID, BackendID: backend.ID, Payload: job})
}
