// Command server wires the gateway's components into one process: store
// connection, auth service, client factory, dispatcher, maintenance
// scheduler, transfer manager, HLS manager, event bus/webhooks, and the
// HTTP adapter. Grounded on the teacher's cmd/server/main.go wiring order
// (config -> logger -> tracer -> mongo connect -> repos -> indexes ->
// use cases -> server options -> background loops -> http.Server with
// signal-based graceful shutdown).
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"github.com/philiporange/torrent-manager/internal/activity"
	apihttp "github.com/philiporange/torrent-manager/internal/api/http"
	"github.com/philiporange/torrent-manager/internal/app"
	"github.com/philiporange/torrent-manager/internal/auth"
	"github.com/philiporange/torrent-manager/internal/backend/factory"
	"github.com/philiporange/torrent-manager/internal/dispatch"
	"github.com/philiporange/torrent-manager/internal/events"
	"github.com/philiporange/torrent-manager/internal/hls"
	"github.com/philiporange/torrent-manager/internal/maintenance"
	"github.com/philiporange/torrent-manager/internal/metrics"
	mongostore "github.com/philiporange/torrent-manager/internal/store/mongo"
	"github.com/philiporange/torrent-manager/internal/telemetry"
	"github.com/philiporange/torrent-manager/internal/transfer"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "torrent-gateway")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "torrent-gateway"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("storeDatabase", cfg.StoreDatabase),
		slog.Bool("autoPauseSeeding", cfg.AutoPauseSeeding),
		slog.String("hlsDir", cfg.HLSDir),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, connectCancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer connectCancel()

	mongoClient, err := mongostore.Connect(connectCtx, cfg.StoreURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Error("store connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongoClient.Ping(connectCtx, readpref.Primary()); err != nil {
		logger.Error("store ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store := mongostore.New(mongoClient, cfg.StoreDatabase)
	if err := store.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("store ensure indexes failed", slog.String("error", err.Error()))
	}

	bus := &events.Bus{}
	webhooks := &events.WebhookDispatcher{Webhooks: store, Logger: logger}
	go webhooks.Run(rootCtx, bus)

	clientFactory := factory.New(&http.Client{Timeout: 30 * time.Second})

	authSvc := &auth.Service{
		Users:    store,
		Sessions: store,
		Config: auth.Config{
			SlidingWindow:   7 * 24 * time.Hour,
			MaxAge:          30 * 24 * time.Hour,
			RememberWindow:  90 * 24 * time.Hour,
			SlideResolution: time.Minute,
			BcryptCost:      cfg.BCryptCost,
		},
	}

	dispatcher := &dispatch.Dispatcher{
		Backends:       store,
		Torrents:       store,
		Actions:        store,
		Factory:        clientFactory,
		Events:         bus,
		Logger:         logger,
		FanOutDeadline: cfg.DispatchDeadlineSeconds,
	}

	transferMgr := &transfer.Manager{
		Jobs:     store,
		Torrents: store,
		Backends: store,
		Actions:  store,
		Factory:  clientFactory,
		Events:   bus,
		Logger:   logger,
	}

	hlsMgr := &hls.Manager{
		Backends: store,
		Config: hls.Config{
			FFmpegPath:  cfg.FFMPEGPath,
			FFprobePath: cfg.FFProbePath,
			BaseDir:     cfg.HLSDir,
			IdleTimeout: cfg.StreamIdleSeconds,
		},
		Logger: logger,
	}
	go hlsMgr.Run(rootCtx)

	scheduler := &maintenance.Scheduler{
		Backends: store,
		Settings: store,
		Actions:  store,
		Recorder: &activity.Recorder{Statuses: store},
		Factory:  clientFactory,
		Events:   bus,
		Config: maintenance.Config{
			Interval:          cfg.MaintenanceIntervalSeconds,
			PrivateSeedWindow: cfg.PrivateSeedDuration,
			PublicSeedWindow:  cfg.PublicSeedDuration,
			AutoPauseSeeding:  cfg.AutoPauseSeeding,
		},
		Logger: logger,
	}
	go scheduler.Run(rootCtx)

	go prunePeriodically(rootCtx, store, cfg.StatusRetentionDays, logger)

	handler := apihttp.NewServer(
		apihttp.WithAuth(authSvc),
		apihttp.WithDispatcher(dispatcher),
		apihttp.WithTransferManager(transferMgr),
		apihttp.WithHLSManager(hlsMgr),
		apihttp.WithEventBus(bus),
		apihttp.WithStore(store),
		apihttp.WithClientFactory(clientFactory),
		apihttp.WithConfig(cfg),
		apihttp.WithLogger(logger),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	hlsMgr.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if err := mongoClient.Disconnect(context.Background()); err != nil {
		logger.Warn("store disconnect error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// prunePeriodically deletes Status rows older than the configured
// retention window once a day, per spec.md §3's STATUS_RETENTION_DAYS.
func prunePeriodically(ctx context.Context, store *mongostore.Store, retentionDays int, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PruneStatuses(ctx, retentionDays)
			if err != nil {
				logger.Warn("status prune failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("pruned statuses", slog.Int64("count", n))
		}
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
