package apihttp

import (
	"net/http"

	"github.com/philiporange/torrent-manager/internal/domain"
)

// webhookDTO is the HTTP wire shape for a Webhook (SPEC_FULL.md §6
// POST/GET /webhooks). The secret is generated server-side and never
// echoed back, matching the API-key "returned exactly once" pattern from
// spec.md §4.1 — here it is never returned at all, since the subscriber
// only needs it to verify the HMAC signature on delivery, not to read it
// back through the API.
type webhookDTO struct {
	ID        string   `json:"id,omitempty"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
	Enabled   bool     `json:"enabled"`
	CreatedAt string   `json:"created_at,omitempty"`
}

func webhookToDTO(w domain.Webhook) webhookDTO {
	return webhookDTO{
		ID:        w.ID,
		URL:       w.URL,
		Events:    w.Events,
		Enabled:   w.Enabled,
		CreatedAt: w.CreatedAt.Format(timeRFC3339),
	}
}

// handleWebhooks implements SPEC_FULL.md §6 POST/GET /webhooks.
func (s *Server) handleWebhooks(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var dto webhookDTO
		if err := decodeJSON(r, &dto); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if dto.URL == "" || len(dto.Events) == 0 {
			writeError(w, http.StatusBadRequest, "url and events are required")
			return
		}
		hook := domain.Webhook{
			ID:          domain.NewID(),
			OwnerUserID: p.User.ID,
			URL:         dto.URL,
			Events:      dto.Events,
			Secret:      domain.NewID() + domain.NewID(),
			Enabled:     true,
			CreatedAt:   s.clock(),
		}
		if err := s.store.CreateWebhook(r.Context(), hook); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, webhookToDTO(hook))
	case http.MethodGet:
		hooks, err := s.store.ListWebhooks(r.Context(), p.User.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out := make([]webhookDTO, 0, len(hooks))
		for _, hook := range hooks {
			out = append(out, webhookToDTO(hook))
		}
		writeJSON(w, http.StatusOK, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleWebhookByID implements SPEC_FULL.md §6 DELETE /webhooks/{id}.
func (s *Server) handleWebhookByID(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	segments := pathSegments("/webhooks/", r.URL.Path)
	if len(segments) != 1 {
		http.NotFound(w, r)
		return
	}
	webhookID := segments[0]

	switch r.Method {
	case http.MethodDelete:
		if err := s.store.DeleteWebhook(r.Context(), webhookID, p.User.ID); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "webhook removed"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
