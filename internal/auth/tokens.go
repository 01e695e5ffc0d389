package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// opaqueTokenBytes yields a 64-character base64 URL-safe opaque token
// (spec.md §3: Session/RememberToken/ApiKey ids are "64-char opaque").
const opaqueTokenBytes = 48

// apiKeyPrefixChars is the length of the indexed, non-secret prefix of an
// API key (spec.md §4.1: "prefix is the first 8 URL-safe chars").
const apiKeyPrefixChars = 8

func newOpaqueToken() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// newApiKey mints a full bearer key and its prefix; the caller persists
// only a hash of the full value, never the raw secret.
func newApiKey() (full, prefix string, err error) {
	full, err = newOpaqueToken()
	if err != nil {
		return "", "", err
	}
	if len(full) < apiKeyPrefixChars {
		return "", "", errShortToken
	}
	return full, full[:apiKeyPrefixChars], nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
