package apihttp

import (
	"context"
	"net/http"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type authDTO struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type httpDownloadDTO struct {
	Host    string   `json:"host"`
	Port    int      `json:"port"`
	Path    string   `json:"path,omitempty"`
	Auth    *authDTO `json:"auth,omitempty"`
	UseSSL  bool     `json:"use_ssl"`
	Enabled bool     `json:"enabled"`
}

type autoDownloadDTO struct {
	Enabled           bool   `json:"enabled"`
	LocalPath         string `json:"local_path,omitempty"`
	DeleteRemoteAfter bool   `json:"delete_remote_after"`
}

type sshDTO struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	User    string `json:"user"`
	KeyPath string `json:"key_path"`
}

// backendDTO is the HTTP wire shape for a Backend (spec.md §3/§6), using
// snake_case and `server_type` where the domain model uses `Kind` — the
// boundary conversion the teacher's handlers do between usecase structs
// and their JSON response shape.
type backendDTO struct {
	ID           string           `json:"id,omitempty"`
	OwnerUserID  string           `json:"owner_user_id,omitempty"`
	Name         string           `json:"name"`
	ServerType   string           `json:"server_type"`
	Host         string           `json:"host"`
	Port         int              `json:"port"`
	RPCPath      string           `json:"rpc_path,omitempty"`
	UseSSL       bool             `json:"use_ssl"`
	Auth         *authDTO         `json:"auth,omitempty"`
	Enabled      bool             `json:"enabled"`
	IsDefault    bool             `json:"is_default"`
	CreatedAt    string           `json:"created_at,omitempty"`
	HTTPDownload *httpDownloadDTO `json:"http_download,omitempty"`
	MountPath    string           `json:"mount_path,omitempty"`
	DownloadDir  string           `json:"download_dir,omitempty"`
	AutoDownload *autoDownloadDTO `json:"auto_download,omitempty"`
	SSH          *sshDTO          `json:"ssh,omitempty"`
	LastError    string           `json:"last_error,omitempty"`
}

func backendToDTO(b domain.Backend) backendDTO {
	dto := backendDTO{
		ID: b.ID, OwnerUserID: b.OwnerUserID, Name: b.Name, ServerType: string(b.Kind),
		Host: b.Host, Port: b.Port, RPCPath: b.RPCPath, UseSSL: b.UseSSL,
		Enabled: b.Enabled, IsDefault: b.IsDefault, CreatedAt: b.CreatedAt.Format(timeRFC3339),
		MountPath: b.MountPath, DownloadDir: b.DownloadDir, LastError: b.LastError,
	}
	if b.Auth != nil {
		dto.Auth = &authDTO{Username: b.Auth.Username}
	}
	if b.HTTPDownload != nil {
		dto.HTTPDownload = &httpDownloadDTO{
			Host: b.HTTPDownload.Host, Port: b.HTTPDownload.Port, Path: b.HTTPDownload.Path,
			UseSSL: b.HTTPDownload.UseSSL, Enabled: b.HTTPDownload.Enabled,
		}
		if b.HTTPDownload.Auth != nil {
			dto.HTTPDownload.Auth = &authDTO{Username: b.HTTPDownload.Auth.Username}
		}
	}
	if b.AutoDownload != nil {
		dto.AutoDownload = &autoDownloadDTO{
			Enabled: b.AutoDownload.Enabled, LocalPath: b.AutoDownload.LocalPath,
			DeleteRemoteAfter: b.AutoDownload.DeleteRemoteAfter,
		}
	}
	if b.SSH != nil {
		dto.SSH = &sshDTO{Host: b.SSH.Host, Port: b.SSH.Port, User: b.SSH.User, KeyPath: b.SSH.KeyPath}
	}
	return dto
}

func (dto backendDTO) toDomain(existing domain.Backend) domain.Backend {
	b := existing
	b.Name = dto.Name
	if dto.ServerType != "" {
		b.Kind = domain.BackendKind(dto.ServerType)
	}
	b.Host = dto.Host
	b.Port = dto.Port
	b.RPCPath = dto.RPCPath
	b.UseSSL = dto.UseSSL
	b.Enabled = dto.Enabled
	b.IsDefault = dto.IsDefault
	b.MountPath = dto.MountPath
	b.DownloadDir = dto.DownloadDir
	if dto.Auth != nil {
		b.Auth = &domain.Auth{Username: dto.Auth.Username, Password: dto.Auth.Password}
	}
	if dto.HTTPDownload != nil {
		hd := &domain.HTTPDownloadEndpoint{
			Host: dto.HTTPDownload.Host, Port: dto.HTTPDownload.Port, Path: dto.HTTPDownload.Path,
			UseSSL: dto.HTTPDownload.UseSSL, Enabled: dto.HTTPDownload.Enabled,
		}
		if dto.HTTPDownload.Auth != nil {
			hd.Auth = &domain.Auth{Username: dto.HTTPDownload.Auth.Username, Password: dto.HTTPDownload.Auth.Password}
		}
		b.HTTPDownload = hd
	}
	if dto.AutoDownload != nil {
		b.AutoDownload = &domain.AutoDownload{
			Enabled: dto.AutoDownload.Enabled, LocalPath: dto.AutoDownload.LocalPath,
			DeleteRemoteAfter: dto.AutoDownload.DeleteRemoteAfter,
		}
	}
	if dto.SSH != nil {
		b.SSH = &domain.SSHConfig{Host: dto.SSH.Host, Port: dto.SSH.Port, User: dto.SSH.User, KeyPath: dto.SSH.KeyPath}
	}
	return b
}

// handleServers implements spec.md §6 POST/GET /servers.
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var dto backendDTO
		if err := decodeJSON(r, &dto); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		b := dto.toDomain(domain.Backend{ID: domain.NewID(), OwnerUserID: p.User.ID, CreatedAt: s.clock()})
		if b.IsDefault {
			if err := s.clearDefaultBackend(r.Context(), p.User.ID); err != nil {
				writeDomainError(w, err)
				return
			}
		}
		if err := s.store.CreateBackend(r.Context(), b); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, backendToDTO(b))
	case http.MethodGet:
		backends, err := s.store.ListBackends(r.Context(), p.User.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out := make([]backendDTO, 0, len(backends))
		for _, b := range backends {
			out = append(out, backendToDTO(b))
		}
		writeJSON(w, http.StatusOK, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// clearDefaultBackend enforces "at most one is_default=true per owner"
// (spec.md §3) before a new/updated backend claims the slot.
func (s *Server) clearDefaultBackend(ctx context.Context, ownerUserID string) error {
	backends, err := s.store.ListBackends(ctx, ownerUserID)
	if err != nil {
		return err
	}
	for _, b := range backends {
		if b.IsDefault {
			b.IsDefault = false
			if err := s.store.UpdateBackend(ctx, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleServerByID implements spec.md §6 GET/PUT/DELETE /servers/{id} and
// POST /servers/{id}/test.
func (s *Server) handleServerByID(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	segments := pathSegments("/servers/", r.URL.Path)
	if len(segments) == 0 {
		http.NotFound(w, r)
		return
	}
	backendID := segments[0]

	b, err := s.store.GetBackend(r.Context(), backendID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if b.OwnerUserID != p.User.ID {
		writeDomainError(w, domain.ErrNotFound)
		return
	}

	if len(segments) == 2 && segments[1] == "test" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleTestBackend(w, r, b)
		return
	}
	if len(segments) != 1 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, backendToDTO(b))
	case http.MethodPut:
		var dto backendDTO
		if err := decodeJSON(r, &dto); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		updated := dto.toDomain(b)
		if updated.IsDefault && !b.IsDefault {
			if err := s.clearDefaultBackend(r.Context(), p.User.ID); err != nil {
				writeDomainError(w, err)
				return
			}
		}
		if err := s.store.UpdateBackend(r.Context(), updated); err != nil {
			writeDomainError(w, err)
			return
		}
		s.factory.Invalidate(updated.ID)
		writeJSON(w, http.StatusOK, backendToDTO(updated))
	case http.MethodDelete:
		if err := s.store.DeleteBackend(r.Context(), backendID); err != nil {
			writeDomainError(w, err)
			return
		}
		s.factory.Invalidate(backendID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "message": "server removed"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type testConnectionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleTestBackend(w http.ResponseWriter, r *http.Request, b domain.Backend) {
	client, err := s.factory.Get(r.Context(), b)
	if err != nil {
		writeJSON(w, http.StatusOK, testConnectionResponse{Status: "failed", Message: err.Error()})
		return
	}
	if err := client.Ping(r.Context()); err != nil {
		_ = s.store.TouchBackendHealth(r.Context(), b.ID, err.Error())
		writeJSON(w, http.StatusOK, testConnectionResponse{Status: "failed", Message: err.Error()})
		return
	}
	_ = s.store.TouchBackendHealth(r.Context(), b.ID, "")
	writeJSON(w, http.StatusOK, testConnectionResponse{Status: "connected", Message: "ok"})
}
