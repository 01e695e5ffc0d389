// Package dispatch is the aggregation/dispatch layer: every public torrent
// operation is issued against a User, never a specific backend client
// directly, and this package resolves which backend(s) actually answer it
// (spec.md §4.4). Grounded on the teacher's internal/usecase/sync_state.go
// fan-out-with-per-item-tolerance shape, promoted from a single ticker loop
// to an on-demand, bounded-concurrency fan-out via golang.org/x/sync/errgroup.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/philiporange/torrent-manager/internal/domain"
	"github.com/philiporange/torrent-manager/internal/domain/ports"
	"github.com/philiporange/torrent-manager/internal/metrics"
)

// DefaultFanOutDeadline bounds each per-backend call in a read-all fan-out
// (spec.md §4.4 "per-call deadline, default 10s").
const DefaultFanOutDeadline = 10 * time.Second

// Dispatcher resolves torrent operations issued against a user to the
// concrete backend(s) that must answer them.
type Dispatcher struct {
	Backends ports.BackendStore
	Torrents ports.TorrentStore
	Actions  ports.ActionStore
	Factory  ports.ClientFactory
	Events   ports.EventBus
	Logger   *slog.Logger

	// FanOutDeadline bounds each backend call in ListAll; zero uses
	// DefaultFanOutDeadline.
	FanOutDeadline time.Duration

	mu                sync.Mutex
	lastUsedByUser    map[string]string // ownerUserID -> most recently used backend ID
}

func (d *Dispatcher) deadline() time.Duration {
	if d.FanOutDeadline > 0 {
		return d.FanOutDeadline
	}
	return DefaultFanOutDeadline
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// ListAll fans out list_torrents concurrently to every enabled backend the
// user owns (or exactly one, if backendID is given), merging results and
// degrading gracefully on a per-backend basis (spec.md §4.4, Testable
// Properties 6/7).
func (d *Dispatcher) ListAll(ctx context.Context, ownerUserID, backendID string) ([]domain.AggregatedTorrentView, []domain.BackendError, error) {
	backends, err := d.resolveBackends(ctx, ownerUserID, backendID)
	if err != nil {
		return nil, nil, err
	}

	type result struct {
		backend domain.Backend
		views   []domain.TorrentView
		err     error
	}
	results := make([]result, len(backends))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range backends {
		i, b := i, b
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, d.deadline())
			defer cancel()

			client, err := d.Factory.Get(callCtx, b)
			if err != nil {
				results[i] = result{backend: b, err: err}
				return nil
			}
			views, err := client.ListTorrents(callCtx, "", true)
			results[i] = result{backend: b, views: views, err: err}
			return nil
		})
	}
	// errgroup.Wait only returns non-nil if a Go func itself returns an
	// error; every branch above returns nil so backend failures never
	// abort the whole fan-out (spec.md §4.4: "no partial failure of one
	// backend ever fails the whole call").
	_ = g.Wait()

	var merged []domain.AggregatedTorrentView
	var failures []domain.BackendError
	for _, r := range results {
		if r.err != nil {
			failures = append(failures, domain.BackendError{BackendID: r.backend.ID, Message: r.err.Error()})
			d.logger().Warn("dispatch: list_torrents failed", slog.String("backend_id", r.backend.ID), slog.String("error", r.err.Error()))
			metrics.DispatchFanoutTotal.WithLabelValues("list_torrents", "error").Inc()
			continue
		}
		metrics.DispatchFanoutTotal.WithLabelValues("list_torrents", "ok").Inc()
		for _, v := range r.views {
			merged = append(merged, domain.AggregatedTorrentView{
				TorrentView: v,
				BackendID:   r.backend.ID,
				BackendName: r.backend.Name,
				BackendKind: r.backend.Kind,
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].InfoHash < merged[j].InfoHash })
	return merged, failures, nil
}

func (d *Dispatcher) resolveBackends(ctx context.Context, ownerUserID, backendID string) ([]domain.Backend, error) {
	if backendID != "" {
		b, err := d.Backends.GetBackend(ctx, backendID)
		if err != nil {
			return nil, err
		}
		if b.OwnerUserID != ownerUserID {
			return nil, domain.ErrForbidden
		}
		return []domain.Backend{b}, nil
	}

	all, err := d.Backends.ListBackends(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	enabled := make([]domain.Backend, 0, len(all))
	for _, b := range all {
		if b.Enabled {
			enabled = append(enabled, b)
		}
	}
	return enabled, nil
}

// ErrNoMatch is returned by a write-by-hash dispatch when no owned, enabled
// backend reports the given info hash.
var ErrNoMatch = errors.New("dispatch: no backend has this torrent")

// resolveWriteTarget implements the write-by-hash routing order: explicit
// backendID always wins; otherwise is_default > most-recently-used >
// remaining-enabled, and the first backend whose list_torrents(info_hash)
// matches wins (spec.md §4.4).
func (d *Dispatcher) resolveWriteTarget(ctx context.Context, ownerUserID string, infoHash domain.InfoHash, backendID string) (domain.Backend, ports.BackendClient, error) {
	if backendID != "" {
		b, err := d.Backends.GetBackend(ctx, backendID)
		if err != nil {
			return domain.Backend{}, nil, err
		}
		if b.OwnerUserID != ownerUserID {
			return domain.Backend{}, nil, domain.ErrForbidden
		}
		client, err := d.Factory.Get(ctx, b)
		if err != nil {
			return domain.Backend{}, nil, fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
		}
		return b, client, nil
	}

	all, err := d.Backends.ListBackends(ctx, ownerUserID)
	if err != nil {
		return domain.Backend{}, nil, err
	}
	ordered := orderByPreference(all, d.mostRecentlyUsed(ownerUserID))

	for _, b := range ordered {
		if !b.Enabled {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, d.deadline())
		client, err := d.Factory.Get(callCtx, b)
		if err != nil {
			cancel()
			continue
		}
		views, err := client.ListTorrents(callCtx, infoHash, false)
		cancel()
		if err != nil || len(views) == 0 {
			continue
		}
		d.setMostRecentlyUsed(ownerUserID, b.ID)
		return b, client, nil
	}
	return domain.Backend{}, nil, fmt.Errorf("%w: %w", domain.ErrNotFound, ErrNoMatch)
}

// orderByPreference sorts backends is_default first, then the
// most-recently-used backend ID (if present in the set), then the rest in
// their existing order.
func orderByPreference(backends []domain.Backend, mruID string) []domain.Backend {
	ordered := make([]domain.Backend, len(backends))
	copy(ordered, backends)
	rank := func(b domain.Backend) int {
		switch {
		case b.IsDefault:
			return 0
		case mruID != "" && b.ID == mruID:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return rank(ordered[i]) < rank(ordered[j]) })
	return ordered
}

func (d *Dispatcher) mostRecentlyUsed(ownerUserID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastUsedByUser == nil {
		return ""
	}
	return d.lastUsedByUser[ownerUserID]
}

func (d *Dispatcher) setMostRecentlyUsed(ownerUserID, backendID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastUsedByUser == nil {
		d.lastUsedByUser = make(map[string]string)
	}
	d.lastUsedByUser[ownerUserID] = backendID
}

// Start routes a start(info_hash) write by the resolution order above.
func (d *Dispatcher) Start(ctx context.Context, ownerUserID string, infoHash domain.InfoHash, backendID string) error {
	b, client, err := d.resolveWriteTarget(ctx, ownerUserID, infoHash, backendID)
	if err != nil {
		return err
	}
	if err := client.Start(ctx, infoHash); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	d.recordAction(ctx, infoHash, domain.ActionStart, "")
	d.publish(ports.EventStarted, ownerUserID, b.ID, infoHash)
	return nil
}

// Stop routes a stop(info_hash) write by the resolution order above.
func (d *Dispatcher) Stop(ctx context.Context, ownerUserID string, infoHash domain.InfoHash, backendID string) error {
	b, client, err := d.resolveWriteTarget(ctx, ownerUserID, infoHash, backendID)
	if err != nil {
		return err
	}
	if err := client.Stop(ctx, infoHash); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	d.recordAction(ctx, infoHash, domain.ActionStop, "")
	d.publish(ports.EventStopped, ownerUserID, b.ID, infoHash)
	return nil
}

// Erase routes an erase(info_hash, delete_data) write by the resolution
// order above and drops the local Torrent row.
func (d *Dispatcher) Erase(ctx context.Context, ownerUserID string, infoHash domain.InfoHash, backendID string, deleteData bool) error {
	b, client, err := d.resolveWriteTarget(ctx, ownerUserID, infoHash, backendID)
	if err != nil {
		return err
	}
	if err := client.Erase(ctx, infoHash, deleteData); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	_ = d.Torrents.DeleteTorrent(ctx, domain.TorrentKey{OwnerUserID: ownerUserID, InfoHash: infoHash, BackendID: b.ID})
	d.recordAction(ctx, infoHash, domain.ActionRemove, "")
	d.publish(ports.EventRemoved, ownerUserID, b.ID, infoHash)
	return nil
}

// Files routes a files(info_hash) read by the resolution order above.
func (d *Dispatcher) Files(ctx context.Context, ownerUserID string, infoHash domain.InfoHash, backendID string) ([]domain.FileView, error) {
	_, client, err := d.resolveWriteTarget(ctx, ownerUserID, infoHash, backendID)
	if err != nil {
		return nil, err
	}
	files, err := client.Files(ctx, infoHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	return files, nil
}

// SetPriority routes a set_priority(info_hash) write by the resolution
// order above.
func (d *Dispatcher) SetPriority(ctx context.Context, ownerUserID string, infoHash domain.InfoHash, backendID string, priority domain.Priority) error {
	_, client, err := d.resolveWriteTarget(ctx, ownerUserID, infoHash, backendID)
	if err != nil {
		return err
	}
	if err := client.SetPriority(ctx, infoHash, priority); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	return nil
}

// SetFilePriority routes a per-file set_priority write by the resolution
// order above.
func (d *Dispatcher) SetFilePriority(ctx context.Context, ownerUserID string, infoHash domain.InfoHash, backendID string, index int, priority domain.Priority) error {
	_, client, err := d.resolveWriteTarget(ctx, ownerUserID, infoHash, backendID)
	if err != nil {
		return err
	}
	if err := client.SetFilePriority(ctx, infoHash, index, priority); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	return nil
}

// AddTorrentFile adds a .torrent payload. backend_id is mandatory here
// (spec.md §4.4 "Add: backend_id is mandatory; unknown or disabled →
// BadRequest").
func (d *Dispatcher) AddTorrentFile(ctx context.Context, ownerUserID string, backendID string, data []byte, start bool, priority domain.Priority) error {
	b, client, err := d.requireEnabledBackend(ctx, ownerUserID, backendID)
	if err != nil {
		return err
	}
	if err := client.AddTorrentFile(ctx, data, start, priority); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	d.publish(ports.EventAdded, ownerUserID, b.ID, "")
	return nil
}

// AddMagnet adds a magnet URI. backend_id is mandatory.
func (d *Dispatcher) AddMagnet(ctx context.Context, ownerUserID string, backendID string, uri string, start bool, priority domain.Priority) error {
	b, client, err := d.requireEnabledBackend(ctx, ownerUserID, backendID)
	if err != nil {
		return err
	}
	if err := client.AddMagnet(ctx, uri, start, priority); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	d.publish(ports.EventAdded, ownerUserID, b.ID, "")
	return nil
}

// AddTorrentURL adds a torrent by remote .torrent URL. backend_id is
// mandatory.
func (d *Dispatcher) AddTorrentURL(ctx context.Context, ownerUserID string, backendID string, url string, start bool, priority domain.Priority) error {
	b, client, err := d.requireEnabledBackend(ctx, ownerUserID, backendID)
	if err != nil {
		return err
	}
	if err := client.AddTorrentURL(ctx, url, start, priority); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	d.publish(ports.EventAdded, ownerUserID, b.ID, "")
	return nil
}

func (d *Dispatcher) requireEnabledBackend(ctx context.Context, ownerUserID, backendID string) (domain.Backend, ports.BackendClient, error) {
	if backendID == "" {
		return domain.Backend{}, nil, fmt.Errorf("%w: backend_id is required", domain.ErrBadRequest)
	}
	b, err := d.Backends.GetBackend(ctx, backendID)
	if err != nil {
		return domain.Backend{}, nil, fmt.Errorf("%w: unknown backend", domain.ErrBadRequest)
	}
	if b.OwnerUserID != ownerUserID {
		return domain.Backend{}, nil, domain.ErrForbidden
	}
	if !b.Enabled {
		return domain.Backend{}, nil, fmt.Errorf("%w: backend disabled", domain.ErrBadRequest)
	}
	client, err := d.Factory.Get(ctx, b)
	if err != nil {
		return domain.Backend{}, nil, fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	return b, client, nil
}

func (d *Dispatcher) recordAction(ctx context.Context, infoHash domain.InfoHash, kind domain.ActionKind, detail string) {
	if d.Actions == nil {
		return
	}
	if err := d.Actions.AppendAction(ctx, domain.Action{TorrentHash: infoHash, Kind: kind, Timestamp: time.Now().UTC(), Detail: detail}); err != nil {
		d.logger().Warn("dispatch: append action failed", slog.String("error", err.Error()))
	}
}

func (d *Dispatcher) publish(eventType ports.EventType, ownerUserID, backendID string, infoHash domain.InfoHash) {
	if d.Events == nil {
		return
	}
	d.Events.Publish(ports.Event{Type: eventType, OwnerUserID: ownerUserID, BackendID: backendID, Payload: infoHash})
}
