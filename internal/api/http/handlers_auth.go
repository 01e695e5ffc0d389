package apihttp

import (
	"errors"
	"net/http"
	"strings"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// handleRegister implements spec.md §6 POST /auth/register. The first
// account created on a fresh store becomes an admin (spec.md §4.1
// "Lifecycle").
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	count, err := s.store.CountUsers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	register := s.auth.Register
	if count == 0 {
		register = s.auth.RegisterAdmin
	}
	u, err := register(r.Context(), domain.NewID(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			writeError(w, http.StatusConflict, "username already exists")
			return
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{UserID: u.ID, Username: u.Username})
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type loginResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// handleLogin implements spec.md §6 POST /auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sess, remember, err := s.auth.CreateSession(r.Context(), user, clientIP(r), r.UserAgent(), req.RememberMe)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.setSessionCookie(w, sess.ID, sess.ExpiresAt)
	if remember != nil {
		s.setRememberCookie(w, remember.ID, remember.ExpiresAt)
	}

	writeJSON(w, http.StatusOK, loginResponse{UserID: user.ID, Username: user.Username})
}

// handleLogout implements spec.md §6 POST /auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var sessionID, rememberID string
	if c, err := r.Cookie(sessionCookieName); err == nil {
		sessionID = c.Value
	}
	if c, err := r.Cookie(rememberCookieName); err == nil {
		rememberID = c.Value
	}
	if err := s.auth.Logout(r.Context(), sessionID, rememberID); err != nil {
		writeDomainError(w, err)
		return
	}
	s.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type meResponse struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	IsAdmin    bool   `json:"is_admin"`
	AuthMethod string `json:"auth_method"`
}

// handleMe implements spec.md §6 GET /auth/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, err := requirePrincipal(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		UserID:     p.User.ID,
		Username:   p.User.Username,
		IsAdmin:    p.User.IsAdmin,
		AuthMethod: p.AuthMethod,
	})
}

type createAPIKeyRequest struct {
	Name        string `json:"name"`
	ExpiresDays int    `json:"expires_days"`
}

type createAPIKeyResponse struct {
	APIKey    string  `json:"api_key"`
	Prefix    string  `json:"prefix"`
	Name      string  `json:"name"`
	CreatedAt string  `json:"created_at"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

type apiKeyResponse struct {
	Prefix     string  `json:"prefix"`
	Name       string  `json:"name"`
	CreatedAt  string  `json:"created_at"`
	LastUsedAt *string `json:"last_used_at,omitempty"`
	ExpiresAt  *string `json:"expires_at,omitempty"`
	Revoked    bool    `json:"revoked"`
}

// handleAPIKeys implements spec.md §6 POST/GET /auth/api-keys.
func (s *Server) handleAPIKeys(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req createAPIKeyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		full, key, err := s.auth.CreateApiKey(r.Context(), p.User.ID, req.Name, req.ExpiresDays)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := createAPIKeyResponse{
			APIKey:    full,
			Prefix:    key.Prefix,
			Name:      key.Name,
			CreatedAt: key.CreatedAt.Format(timeRFC3339),
		}
		if key.ExpiresAt != nil {
			v := key.ExpiresAt.Format(timeRFC3339)
			resp.ExpiresAt = &v
		}
		writeJSON(w, http.StatusCreated, resp)
	case http.MethodGet:
		keys, err := s.auth.Sessions.ListApiKeys(r.Context(), p.User.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out := make([]apiKeyResponse, 0, len(keys))
		for _, k := range keys {
			item := apiKeyResponse{Prefix: k.Prefix, Name: k.Name, CreatedAt: k.CreatedAt.Format(timeRFC3339), Revoked: k.Revoked}
			if k.LastUsedAt != nil {
				v := k.LastUsedAt.Format(timeRFC3339)
				item.LastUsedAt = &v
			}
			if k.ExpiresAt != nil {
				v := k.ExpiresAt.Format(timeRFC3339)
				item.ExpiresAt = &v
			}
			out = append(out, item)
		}
		writeJSON(w, http.StatusOK, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleAPIKeyByPrefix implements spec.md §6 DELETE /auth/api-keys/{prefix}.
func (s *Server) handleAPIKeyByPrefix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := requirePrincipal(r); err != nil {
		writeDomainError(w, err)
		return
	}
	segments := pathSegments("/auth/api-keys/", r.URL.Path)
	if len(segments) != 1 {
		http.NotFound(w, r)
		return
	}
	if err := s.auth.RevokeApiKey(r.Context(), segments[0]); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "revoked"})
}

const timeRFC3339 = "2006-01-02T15:04:05Z07:00"
