package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/philiporange/torrent-manager/internal/auth"
	"github.com/philiporange/torrent-manager/internal/domain"
	"github.com/philiporange/torrent-manager/internal/hls"
	"github.com/philiporange/torrent-manager/internal/transfer"
)

// errorBody is the gateway's HTTP error shape (spec.md §7): a single
// human-readable `detail` string, not the teacher's {error:{code,message}}
// envelope — kept flat to match the FastAPI-style surface SPEC_FULL.md §7
// describes.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeDomainError maps the domain.Err* taxonomy (spec.md §7) to its HTTP
// status, falling back to mapped auth/hls/transfer sentinels and finally
// to 500 for anything unrecognized. Mirrors the teacher's
// writeDomainError/writeRepoError/writeUseCaseError chain, collapsed into
// one function since the gateway has a single error taxonomy instead of
// per-layer sentinel sets.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, domain.ErrBackendFailure):
		writeError(w, http.StatusBadGateway, "backend failure")
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "password does not meet policy")
	case errors.Is(err, transfer.ErrNoTransport):
		writeError(w, http.StatusBadRequest, "no transfer transport configured for this server")
	case errors.Is(err, hls.ErrNoSource):
		writeError(w, http.StatusBadRequest, "no readable source configured for this server")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathSegments(prefix, path string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseBoolQuery(value string, fallback bool) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInfoHash(value string) domain.InfoHash {
	return domain.InfoHash(strings.ToUpper(strings.TrimSpace(value)))
}
