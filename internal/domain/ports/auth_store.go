package ports

import (
	"context"
	"time"

	"github.com/philiporange/torrent-manager/internal/domain"
)

// SessionStore persists Session, RememberToken and ApiKey rows for
// internal/auth. Split out from Store because it is the one subsystem
// that needs transactional sliding-window semantics distinct from the
// rest of the persistence surface.
type SessionStore interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	SlideSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsForUser(ctx context.Context, userID string) error

	CreateRememberToken(ctx context.Context, r domain.RememberToken) error
	GetRememberToken(ctx context.Context, id string) (domain.RememberToken, error)
	RevokeRememberToken(ctx context.Context, id string) error
	DeleteRememberTokensForUser(ctx context.Context, userID string) error

	CreateApiKey(ctx context.Context, k domain.ApiKey) error
	GetApiKeyByPrefix(ctx context.Context, prefix string) (domain.ApiKey, error)
	ListApiKeys(ctx context.Context, userID string) ([]domain.ApiKey, error)
	RevokeApiKey(ctx context.Context, prefix string) error
	TouchApiKeyUsed(ctx context.Context, prefix string) error
	DeleteApiKeysForUser(ctx context.Context, userID string) error
}
