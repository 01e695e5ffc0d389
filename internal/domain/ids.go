package domain

import (
	"crypto/rand"
	"encoding/base64"
)

// NewID mints an opaque, URL-safe identifier for entities the HTTP adapter
// creates directly (Backend, TransferJob, Webhook, HLS job). Shorter than
// the 64-char auth tokens in internal/auth since these are not bearer
// credentials, just primary keys (spec.md §3: "opaque strings (URL-safe)").
func NewID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("domain: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// InfoHash is a BitTorrent info-hash, canonically 40 uppercase hex
// characters. Every backend client normalizes to this form before the
// value crosses into the rest of the system.
type InfoHash string

// BackendKind identifies which RPC dialect a Backend speaks.
type BackendKind string

const (
	BackendRTorrent     BackendKind = "rtorrent"
	BackendTransmission BackendKind = "transmission"
	BackendFake         BackendKind = "fake"
)
