package domain

import "time"

// Session is a sliding-expiry opaque login session. Invariant:
// LastActivity <= ExpiresAt <= CreatedAt + MAX_AGE.
type Session struct {
	ID           string    `json:"id" bson:"_id"`
	UserID       string    `json:"userId" bson:"userId"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	LastActivity time.Time `json:"lastActivity" bson:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt" bson:"expiresAt"`
	IP           string    `json:"ip,omitempty" bson:"ip,omitempty"`
	UA           string    `json:"ua,omitempty" bson:"ua,omitempty"`
}

// Expired reports whether the session is no longer usable at t.
func (s Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// RememberToken mints a fresh Session for its owner without re-supplying a
// password. It remains valid until its own expiry even after being used to
// renew a session.
type RememberToken struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"userId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
	IP        string    `json:"ip,omitempty" bson:"ip,omitempty"`
	UA        string    `json:"ua,omitempty" bson:"ua,omitempty"`
	Revoked   bool      `json:"revoked" bson:"revoked"`
}

// Valid reports whether the token can still mint a session at t.
func (r RememberToken) Valid(t time.Time) bool {
	return !r.Revoked && t.Before(r.ExpiresAt)
}

// ApiKey is an opaque bearer credential. The full secret is returned to the
// caller exactly once, at creation; thereafter only Prefix is surfaced.
// The store persists SecretHash (SHA-256 of the full key), never the raw
// secret, per spec.md §3's "alternative equivalent design".
type ApiKey struct {
	Prefix     string     `json:"prefix" bson:"_id"`
	SecretHash string     `json:"-" bson:"secretHash"`
	UserID     string     `json:"-" bson:"userId"`
	Name       string     `json:"name" bson:"name"`
	CreatedAt  time.Time  `json:"createdAt" bson:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty" bson:"lastUsedAt,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`
	Revoked    bool       `json:"revoked" bson:"revoked"`
}

// Valid reports whether the key can still authenticate at t.
func (k ApiKey) Valid(t time.Time) bool {
	if k.Revoked {
		return false
	}
	if k.ExpiresAt != nil && !t.Before(*k.ExpiresAt) {
		return false
	}
	return true
}
