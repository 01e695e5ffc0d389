package apihttp

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/philiporange/torrent-manager/internal/domain"
)

// startStreamRequest is the HTTP wire shape for SPEC_FULL.md §6 POST
// /stream, naming the backend by its gateway-assigned server_id rather
// than the teacher's local torrent_id/file_index pair.
type startStreamRequest struct {
	ServerID string `json:"server_id"`
	FilePath string `json:"file_path"`
}

type startStreamResponse struct {
	JobID           string  `json:"job_id"`
	PlaylistURL     string  `json:"playlist_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	MediaType       string  `json:"media_type,omitempty"`
	Status          string  `json:"status"`
}

type streamStatusResponse struct {
	Status            string  `json:"status"`
	TranscodedSeconds float64 `json:"transcoded_seconds"`
	DurationSeconds   float64 `json:"duration_seconds"`
}

func streamPlaylistURL(jobID string) string {
	return "/stream/" + jobID + "/index.m3u8"
}

func streamJobToStartResponse(job domain.StreamJob) startStreamResponse {
	return startStreamResponse{
		JobID:           job.ID,
		PlaylistURL:     streamPlaylistURL(job.ID),
		DurationSeconds: job.DurationSeconds,
		MediaType:       job.MediaType,
		Status:          string(job.State),
	}
}

// handleStartStream implements SPEC_FULL.md §6 POST /stream: start (or
// join, by the hls.Manager's backend_id+file_path dedup key) an on-demand
// HLS transcode job for a file on one of the caller's backends.
func (s *Server) handleStartStream(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.hlsMgr == nil {
		writeError(w, http.StatusServiceUnavailable, "streaming not available")
		return
	}

	var req startStreamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ServerID == "" || req.FilePath == "" {
		writeError(w, http.StatusBadRequest, "server_id and file_path are required")
		return
	}

	job, err := s.hlsMgr.StartStream(r.Context(), p.User.ID, req.ServerID, req.FilePath)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streamJobToStartResponse(job))
}

// handleStreamByJobID implements SPEC_FULL.md §6 GET /stream/{job_id} and
// GET /stream/{job_id}/*file, the latter serving the job's playlist and
// segment files straight off disk the way the teacher's handleHLS serves
// segments out of a StreamJobManager's working directory.
func (s *Server) handleStreamByJobID(w http.ResponseWriter, r *http.Request) {
	if _, err := requirePrincipal(r); err != nil {
		writeDomainError(w, err)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.hlsMgr == nil {
		writeError(w, http.StatusServiceUnavailable, "streaming not available")
		return
	}

	segments := pathSegments("/stream/", r.URL.Path)
	if len(segments) == 0 {
		http.NotFound(w, r)
		return
	}
	jobID := segments[0]

	if len(segments) == 1 {
		job, err := s.hlsMgr.JobInfo(jobID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, streamStatusResponse{
			Status:            string(job.State),
			TranscodedSeconds: job.TranscodedSeconds,
			DurationSeconds:   job.DurationSeconds,
		})
		return
	}

	dir, err := s.hlsMgr.Dir(jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	file := path.Join(segments[1:]...)
	if file == "" || strings.Contains(file, "..") {
		writeError(w, http.StatusBadRequest, "invalid file path")
		return
	}

	if strings.HasSuffix(file, ".m3u8") {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	} else {
		w.Header().Set("Content-Type", "video/MP2T")
	}
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	http.ServeFile(w, r, filepath.Join(dir, file))
}
