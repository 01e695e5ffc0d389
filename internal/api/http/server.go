// Package apihttp is the gateway's HTTP adapter (spec.md §6): cookie and
// bearer authentication, the REST surface over dispatch/transfer/hls, and
// the WebSocket/metrics/health operator endpoints. Grounded on the
// teacher's internal/api/http/server.go: a functional-options Server
// struct wired to injected use-case ports, manual http.ServeMux routing
// (TrimPrefix + Split, no router library), and the same
// recovery/rate-limit/metrics/cors/logging middleware chain, generalized
// from a single local torrent engine to a multi-tenant, multi-backend
// gateway.
package apihttp

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/philiporange/torrent-manager/internal/app"
	"github.com/philiporange/torrent-manager/internal/auth"
	"github.com/philiporange/torrent-manager/internal/dispatch"
	"github.com/philiporange/torrent-manager/internal/domain/ports"
	"github.com/philiporange/torrent-manager/internal/events"
	"github.com/philiporange/torrent-manager/internal/hls"
	"github.com/philiporange/torrent-manager/internal/transfer"
)

const (
	sessionCookieName  = "session"
	rememberCookieName = "remember_me"
)

// Server is the gateway's HTTP adapter.
type Server struct {
	auth       *auth.Service
	dispatcher *dispatch.Dispatcher
	transfers  *transfer.Manager
	hlsMgr     *hls.Manager
	bus        *events.Bus
	store      ports.Store
	factory    ports.ClientFactory
	cfg        app.Config
	logger     *slog.Logger
	now        func() time.Time

	upgrader websocket.Upgrader
	handler  http.Handler
}

// ServerOption configures a Server; see NewServer.
type ServerOption func(*Server)

func WithAuth(svc *auth.Service) ServerOption         { return func(s *Server) { s.auth = svc } }
func WithDispatcher(d *dispatch.Dispatcher) ServerOption {
	return func(s *Server) { s.dispatcher = d }
}
func WithTransferManager(m *transfer.Manager) ServerOption {
	return func(s *Server) { s.transfers = m }
}
func WithHLSManager(m *hls.Manager) ServerOption { return func(s *Server) { s.hlsMgr = m } }
func WithEventBus(b *events.Bus) ServerOption     { return func(s *Server) { s.bus = b } }
func WithStore(store ports.Store) ServerOption    { return func(s *Server) { s.store = store } }
func WithClientFactory(f ports.ClientFactory) ServerOption {
	return func(s *Server) { s.factory = f }
}
func WithConfig(cfg app.Config) ServerOption { return func(s *Server) { s.cfg = cfg } }
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}
func WithClock(now func() time.Time) ServerOption { return func(s *Server) { s.now = now } }

// NewServer builds the gateway's HTTP handler from its dependencies and
// wires the full middleware chain (spec.md §6/§7).
func NewServer(opts ...ServerOption) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register", s.handleRegister)
	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/logout", s.handleLogout)
	mux.HandleFunc("/auth/me", s.handleMe)
	mux.HandleFunc("/auth/api-keys", s.handleAPIKeys)
	mux.HandleFunc("/auth/api-keys/", s.handleAPIKeyByPrefix)

	mux.HandleFunc("/servers", s.handleServers)
	mux.HandleFunc("/servers/", s.handleServerByID)

	mux.HandleFunc("/torrents", s.handleTorrents)
	mux.HandleFunc("/torrents/upload", s.handleUploadTorrent)
	mux.HandleFunc("/torrents/", s.handleTorrentByHash)

	mux.HandleFunc("/stream", s.handleStartStream)
	mux.HandleFunc("/stream/", s.handleStreamByJobID)

	mux.HandleFunc("/webhooks", s.handleWebhooks)
	mux.HandleFunc("/webhooks/", s.handleWebhookByID)

	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, s.authMiddleware(mux)), "torrent-gateway",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && r.URL.Path != "/healthz"
		}),
	)
	s.handler = recoveryMiddleware(s.logger,
		rateLimitMiddleware(100, 200,
			metricsMiddleware(
				corsMiddleware(s.cfg.CORSAllowedOrigins)(traced),
			),
		),
	)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolvePrincipal implements spec.md §4.1's auth resolution: bearer API
// key takes priority (stateless, cheap to check), then the session/
// remember-me cookie pair via auth.Service.ResolveSession, sliding or
// renewing cookies on the response as resolve_session dictates.
func (s *Server) resolvePrincipal(w http.ResponseWriter, r *http.Request) (principal, bool) {
	if s.auth == nil {
		return principal{}, false
	}

	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		if token != "" {
			user, err := s.auth.AuthenticateApiKey(r.Context(), token)
			if err == nil {
				return principal{User: user, AuthMethod: "api_key"}, true
			}
		}
		return principal{}, false
	}

	var sessionID, rememberID string
	if c, err := r.Cookie(sessionCookieName); err == nil {
		sessionID = c.Value
	}
	if c, err := r.Cookie(rememberCookieName); err == nil {
		rememberID = c.Value
	}
	if sessionID == "" && rememberID == "" {
		return principal{}, false
	}

	user, resolution, sess, remember, err := s.auth.ResolveSession(r.Context(), sessionID, rememberID, clientIP(r), r.UserAgent())
	if err != nil {
		return principal{}, false
	}
	if resolution == auth.ResolvedByRenewed && sess != nil {
		s.setSessionCookie(w, sess.ID, sess.ExpiresAt)
		if remember != nil {
			s.setRememberCookie(w, remember.ID, remember.ExpiresAt)
		}
	}
	return principal{User: user, AuthMethod: "session"}, true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) setRememberCookie(w http.ResponseWriter, value string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     rememberCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	past := time.Unix(0, 0)
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: past, MaxAge: -1, HttpOnly: true, Secure: s.cfg.CookieSecure, SameSite: http.SameSiteLaxMode})
	http.SetCookie(w, &http.Cookie{Name: rememberCookieName, Value: "", Path: "/", Expires: past, MaxAge: -1, HttpOnly: true, Secure: s.cfg.CookieSecure, SameSite: http.SameSiteLaxMode})
}

// handleWS upgrades to a WebSocket and streams ports.Event notifications
// for the caller's own backends (spec.md §6 GET /ws), matching the
// teacher's bounded-buffer-per-client ws_hub pattern but sourced from the
// shared events.Bus instead of an in-process hub of its own.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if s.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream not available")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	events, cancel := s.bus.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.OwnerUserID != "" && ev.OwnerUserID != p.User.ID {
				continue
			}
			if err := conn.WriteJSON(map[string]any{
				"type":       ev.Type,
				"backend_id": ev.BackendID,
				"payload":    ev.Payload,
			}); err != nil {
				return
			}
		}
	}
}
