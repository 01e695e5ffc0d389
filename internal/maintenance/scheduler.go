// Package maintenance implements the maintenance scheduler (spec.md §4.6):
// one cooperative ticker loop per server process that samples every
// enabled backend's torrents, appends Status rows through the activity
// recorder, and auto-pauses torrents whose seed-duration threshold has
// elapsed. Grounded directly on the teacher's usecase.SyncState.Run
// ticker-loop shape (internal/usecase/sync_state.go), generalized from a
// single in-process torrent engine to N remote backends across every
// owner.
package maintenance

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/philiporange/torrent-manager/internal/activity"
	"github.com/philiporange/torrent-manager/internal/domain"
	"github.com/philiporange/torrent-manager/internal/domain/ports"
	"github.com/philiporange/torrent-manager/internal/metrics"
)

// Defaults mirror spec.md §4.6/§6's literal constants.
const (
	DefaultInterval           = 300 * time.Second
	DefaultPrivateSeedWindow  = 7 * 24 * time.Hour
	DefaultPublicSeedWindow   = 24 * time.Hour
	defaultPerBackendDeadline = 30 * time.Second
)

// Config holds the tunables spec.md §6 names as environment variables.
type Config struct {
	Interval           time.Duration // MAINTENANCE_INTERVAL_SECONDS
	PrivateSeedWindow  time.Duration // PRIVATE_SEED_DURATION
	PublicSeedWindow   time.Duration // PUBLIC_SEED_DURATION
	AutoPauseSeeding   bool          // AUTO_PAUSE_SEEDING
	MaxGap             time.Duration // activity.SeedingDuration's max_gap_seconds
	PerBackendDeadline time.Duration
}

// DefaultConfig mirrors spec.md §4.6's literal defaults.
func DefaultConfig() Config {
	return Config{
		Interval:           DefaultInterval,
		PrivateSeedWindow:  DefaultPrivateSeedWindow,
		PublicSeedWindow:   DefaultPublicSeedWindow,
		AutoPauseSeeding:   true,
		MaxGap:             activity.DefaultMaxGap,
		PerBackendDeadline: defaultPerBackendDeadline,
	}
}

// Scheduler is the background maintenance loop (spec.md §4.6).
type Scheduler struct {
	Backends ports.BackendStore
	Settings ports.SettingStore
	Actions  ports.ActionStore
	Recorder *activity.Recorder
	Factory  ports.ClientFactory
	Events   ports.EventBus
	Config   Config
	Logger   *slog.Logger
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Scheduler) interval() time.Duration {
	if s.Config.Interval > 0 {
		return s.Config.Interval
	}
	return DefaultInterval
}

// Run blocks, ticking every Config.Interval, until ctx is cancelled. A
// non-blocking select guards against overlapping ticks (DESIGN.md Open
// Question #4: a slow tick is allowed to finish; the next is never
// queued or stacked).
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	busy := make(chan struct{}, 1)
	busy <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case <-busy:
				go func() {
					defer func() { busy <- struct{}{} }()
					s.tick(ctx)
				}()
			default:
				s.logger().Warn("maintenance: previous tick still running, skipping this fire")
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer metrics.MaintenanceSweepsTotal.Inc()

	backends, err := s.Backends.ListAllEnabledBackends(ctx)
	if err != nil {
		s.logger().Warn("maintenance: list backends failed", slog.String("error", err.Error()))
		return
	}
	for _, b := range backends {
		s.sampleBackend(ctx, b)
	}
}

// sampleBackend implements steps 1-4 of spec.md §4.6 for one backend;
// errors are logged and swallowed so one bad backend never aborts the
// tick (step 4: "Swallow and log backend errors").
func (s *Scheduler) sampleBackend(ctx context.Context, b domain.Backend) {
	deadline := s.Config.PerBackendDeadline
	if deadline <= 0 {
		deadline = defaultPerBackendDeadline
	}
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	client, err := s.Factory.Get(callCtx, b)
	if err != nil {
		s.logger().Warn("maintenance: get client failed", slog.String("backend_id", b.ID), slog.String("error", err.Error()))
		return
	}

	views, err := client.ListTorrents(callCtx, "", false)
	if err != nil {
		s.logger().Warn("maintenance: list_torrents failed", slog.String("backend_id", b.ID), slog.String("error", err.Error()))
		s.Factory.Invalidate(b.ID)
		return
	}

	for _, v := range views {
		s.recordAndMaybePause(callCtx, client, b, v)
	}
}

func (s *Scheduler) recordAndMaybePause(ctx context.Context, client ports.BackendClient, b domain.Backend, v domain.TorrentView) {
	if err := s.Recorder.Record(ctx, v.InfoHash, b.ID, v.IsActive && v.State == "seeding", v.IsPrivate, v.Progress, v.DownRate, v.UpRate, v.Peers, v.Seeds); err != nil {
		s.logger().Warn("maintenance: record status failed", slog.String("info_hash", string(v.InfoHash)), slog.String("error", err.Error()))
		return
	}

	isSeeding := v.IsActive && v.State == "seeding"
	if !isSeeding || !s.Config.AutoPauseSeeding {
		return
	}

	duration, err := s.Recorder.SeedingDuration(ctx, v.InfoHash, s.Config.MaxGap)
	if err != nil {
		s.logger().Warn("maintenance: seeding_duration failed", slog.String("info_hash", string(v.InfoHash)), slog.String("error", err.Error()))
		return
	}

	threshold := s.threshold(ctx, v.InfoHash, b.OwnerUserID, v.IsPrivate)
	if duration < threshold {
		return
	}

	if err := client.Stop(ctx, v.InfoHash); err != nil {
		s.logger().Warn("maintenance: auto_pause stop failed", slog.String("info_hash", string(v.InfoHash)), slog.String("error", err.Error()))
		return
	}
	s.appendStopAction(ctx, v.InfoHash)
	s.publishStopped(b, v.InfoHash)
	metrics.MaintenanceAutoPausedTotal.WithLabelValues(b.ID).Inc()
}

// threshold applies any per-torrent override stored in TorrentSetting
// before falling back to the private/public defaults (spec.md §4.6 step
// 3; SPEC_FULL.md §3's typed-override addition to TorrentSetting).
func (s *Scheduler) threshold(ctx context.Context, infoHash domain.InfoHash, ownerUserID string, isPrivate bool) time.Duration {
	if s.Settings != nil {
		if raw, ok, err := s.Settings.GetSetting(ctx, infoHash, ownerUserID, domain.SettingSeedDurationOverride); err == nil && ok {
			if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	if isPrivate {
		return s.orDefault(s.Config.PrivateSeedWindow, DefaultPrivateSeedWindow)
	}
	return s.orDefault(s.Config.PublicSeedWindow, DefaultPublicSeedWindow)
}

func (s *Scheduler) orDefault(v, d time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return d
}

func (s *Scheduler) appendStopAction(ctx context.Context, infoHash domain.InfoHash) {
	if s.Actions == nil {
		return
	}
	if err := s.Actions.AppendAction(ctx, domain.Action{
		TorrentHash: infoHash,
		Kind:        domain.ActionStop,
		Timestamp:   time.Now().UTC(),
		Detail:      "auto_pause",
	}); err != nil {
		s.logger().Warn("maintenance: append auto_pause action failed", slog.String("error", err.Error()))
	}
}

func (s *Scheduler) publishStopped(b domain.Backend, infoHash domain.InfoHash) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(ports.Event{Type: ports.EventStopped, OwnerUserID: b.OwnerUserID, BackendID: b.ID, Payload: infoHash})
}
