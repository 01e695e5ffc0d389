package apihttp

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type backendErrorDTO struct {
	BackendID string `json:"backend_id"`
	Message   string `json:"message"`
}

// torrentViewDTO is the HTTP wire shape for an aggregated TorrentView
// (spec.md §6 GET /torrents).
type torrentViewDTO struct {
	InfoHash        string  `json:"info_hash"`
	Name            string  `json:"name"`
	BasePath        string  `json:"base_path"`
	Size            int64   `json:"size"`
	IsMultiFile     bool    `json:"is_multi_file"`
	BytesDone       int64   `json:"bytes_done"`
	State           string  `json:"state"`
	IsActive        bool    `json:"is_active"`
	Complete        bool    `json:"complete"`
	Ratio           float64 `json:"ratio"`
	UpRate          int64   `json:"up_rate"`
	DownRate        int64   `json:"down_rate"`
	Peers           int     `json:"peers"`
	Priority        int     `json:"priority"`
	IsPrivate       bool    `json:"is_private"`
	Progress        float64 `json:"progress"`
	IsMagnetPending bool    `json:"is_magnet_pending"`
	ServerID        string  `json:"server_id"`
	ServerName      string  `json:"server_name"`
	ServerType      string  `json:"server_type"`
	SeedingDuration int64   `json:"seeding_duration"`
	SeedThreshold   int64   `json:"seed_threshold"`
}

func aggregatedToDTO(v domain.AggregatedTorrentView) torrentViewDTO {
	return torrentViewDTO{
		InfoHash: string(v.InfoHash), Name: v.Name, BasePath: v.BasePath, Size: v.Size,
		IsMultiFile: v.IsMultiFile, BytesDone: v.BytesDone, State: v.State, IsActive: v.IsActive,
		Complete: v.Complete, Ratio: v.Ratio, UpRate: v.UpRate, DownRate: v.DownRate, Peers: v.Peers,
		Priority: int(v.Priority), IsPrivate: v.IsPrivate, Progress: v.Progress, IsMagnetPending: v.IsMagnetPending,
		ServerID: v.BackendID, ServerName: v.BackendName, ServerType: string(v.BackendKind),
		SeedingDuration: v.SeedingSeconds, SeedThreshold: v.SeedThreshold,
	}
}

type listTorrentsResponse struct {
	Torrents []torrentViewDTO  `json:"torrents"`
	Errors   []backendErrorDTO `json:"errors"`
}

// handleTorrents implements spec.md §6 GET/POST /torrents.
func (s *Server) handleTorrents(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		serverID := r.URL.Query().Get("server_id")
		views, failures, err := s.dispatcher.ListAll(r.Context(), p.User.ID, serverID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := listTorrentsResponse{Torrents: make([]torrentViewDTO, 0, len(views)), Errors: make([]backendErrorDTO, 0, len(failures))}
		for _, v := range views {
			resp.Torrents = append(resp.Torrents, aggregatedToDTO(v))
		}
		for _, f := range failures {
			resp.Errors = append(resp.Errors, backendErrorDTO{BackendID: f.BackendID, Message: f.Message})
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		s.handleAddTorrent(w, r, p)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type addTorrentRequest struct {
	URI      string `json:"uri"`
	ServerID string `json:"server_id"`
	Start    bool   `json:"start"`
}

func (s *Server) handleAddTorrent(w http.ResponseWriter, r *http.Request, p principal) {
	var req addTorrentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	uri := strings.TrimSpace(req.URI)
	if uri == "" {
		writeError(w, http.StatusBadRequest, "uri is required")
		return
	}

	var err error
	switch {
	case strings.HasPrefix(strings.ToLower(uri), "magnet:"):
		err = s.dispatcher.AddMagnet(r.Context(), p.User.ID, req.ServerID, uri, req.Start, domain.PriorityNormal)
	case strings.HasPrefix(strings.ToLower(uri), "http://") || strings.HasPrefix(strings.ToLower(uri), "https://"):
		err = s.dispatcher.AddTorrentURL(r.Context(), p.User.ID, req.ServerID, uri, req.Start, domain.PriorityNormal)
	default:
		writeError(w, http.StatusBadRequest, "uri must be a magnet link or an http(s) .torrent url")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "torrent added"})
}

// handleUploadTorrent implements spec.md §6 POST /torrents/upload.
func (s *Server) handleUploadTorrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, err := requirePrincipal(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	serverID := r.URL.Query().Get("server_id")
	start := parseBoolQuery(r.URL.Query().Get("start"), false)

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, 256<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	if err := s.dispatcher.AddTorrentFile(r.Context(), p.User.ID, serverID, data, start, domain.PriorityNormal); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "torrent added"})
}

// handleTorrentByHash implements spec.md §6 GET/DELETE /torrents/{hash}
// and POST /torrents/{hash}/start, /torrents/{hash}/stop.
func (s *Server) handleTorrentByHash(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	segments := pathSegments("/torrents/", r.URL.Path)
	if len(segments) == 0 {
		http.NotFound(w, r)
		return
	}
	hash := parseInfoHash(segments[0])
	serverID := r.URL.Query().Get("server_id")

	if len(segments) == 2 {
		switch segments[1] {
		case "start":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if err := s.dispatcher.Start(r.Context(), p.User.ID, hash, serverID); err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"message": "started"})
		case "stop":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if err := s.dispatcher.Stop(r.Context(), p.User.ID, hash, serverID); err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"message": "stopped"})
		case "transfer":
			s.handleTorrentTransfer(w, r, p, hash, serverID)
		default:
			http.NotFound(w, r)
		}
		return
	}
	if len(segments) != 1 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		views, failures, err := s.dispatcher.ListAll(r.Context(), p.User.ID, serverID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		for _, v := range views {
			if v.InfoHash == hash {
				writeJSON(w, http.StatusOK, aggregatedToDTO(v))
				return
			}
		}
		if len(failures) > 0 {
			writeDomainError(w, domain.ErrBackendFailure)
			return
		}
		writeDomainError(w, domain.ErrNotFound)
	case http.MethodDelete:
		deleteData := parseBoolQuery(r.URL.Query().Get("delete_data"), false)
		if err := s.dispatcher.Erase(r.Context(), p.User.ID, hash, serverID, deleteData); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "removed"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// transferJobDTO is the HTTP wire shape for a domain.TransferJob (spec.md
// §3, §6 POST/GET /torrents/{hash}/transfer).
type transferJobDTO struct {
	ID         string     `json:"id"`
	TorrentID  string     `json:"torrent_hash"`
	BackendID  string     `json:"backend_id"`
	SourcePath string     `json:"source_path"`
	DestPath   string     `json:"dest_path"`
	State      string     `json:"state"`
	BytesDone  int64      `json:"bytes_done"`
	BytesTotal int64      `json:"bytes_total"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func transferJobToDTO(j domain.TransferJob) transferJobDTO {
	return transferJobDTO{
		ID: j.ID, TorrentID: string(j.TorrentID), BackendID: j.BackendID,
		SourcePath: j.SourcePath, DestPath: j.DestPath, State: string(j.State),
		BytesDone: j.BytesDone, BytesTotal: j.BytesTotal,
		StartedAt: j.StartedAt, FinishedAt: j.FinishedAt, Error: j.Error,
	}
}

// handleTorrentTransfer implements SPEC_FULL.md §6 POST/GET
// /torrents/{hash}/transfer (spec.md §4.7): submitting a transfer job for
// a remote-completed torrent, and polling the latest job submitted for
// this (hash, server_id) pair.
func (s *Server) handleTorrentTransfer(w http.ResponseWriter, r *http.Request, p principal, hash domain.InfoHash, serverID string) {
	if s.transfers == nil {
		writeError(w, http.StatusServiceUnavailable, "transfers not available")
		return
	}
	if serverID == "" {
		writeError(w, http.StatusBadRequest, "server_id is required")
		return
	}

	switch r.Method {
	case http.MethodPost:
		job, err := s.transfers.Submit(r.Context(), p.User.ID, hash, serverID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		go s.transfers.Run(context.Background(), job)
		writeJSON(w, http.StatusAccepted, transferJobToDTO(job))
	case http.MethodGet:
		backend, err := s.store.GetBackend(r.Context(), serverID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if backend.OwnerUserID != p.User.ID {
			writeDomainError(w, domain.ErrNotFound)
			return
		}
		job, err := s.transfers.Jobs.FindLatestTransfer(r.Context(), hash, serverID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, transferJobToDTO(job))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
