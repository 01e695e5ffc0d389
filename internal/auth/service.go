// Package auth implements the credential and session store (spec.md §4.1):
// password hashing, opaque session/remember-token/API-key lifecycle, and
// the sliding-expiry resolution algorithm. Grounded on the usecase
// package's injected-dependency style (Repo/Now fields, an Execute-style
// entry point per operation) and on the refresh-token hash-at-rest
// pattern from other_examples' denisvmedia-inventario models package.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/philiporange/torrent-manager/internal/domain"
	"github.com/philiporange/torrent-manager/internal/domain/ports"
)

// ErrInvalidCredentials is returned by Authenticate without indicating
// whether the username exists, per spec.md §4.1's anti-enumeration policy.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrWeakPassword is the exported alias of the policy-violation error.
var ErrWeakPassword = errWeakPassword

// Resolution identifies which credential satisfied resolve_session.
type Resolution string

const (
	ResolvedBySession  Resolution = "session"
	ResolvedByRemember Resolution = "remember"
	ResolvedByRenewed  Resolution = "renewed"
)

// Config holds the durations and policy knobs spec.md §4.1 names as
// constants; Service takes them as fields so cmd/server can source them
// from app.Config without this package importing it.
type Config struct {
	SlidingWindow   time.Duration // SLIDING_WINDOW_DAYS, default 7d
	MaxAge          time.Duration // MAX_AGE_DAYS, default 30d
	RememberWindow  time.Duration // REMEMBER_DAYS, default 90d
	SlideResolution time.Duration // minimum activity gap before a slide is persisted, default 1m
	BcryptCost      int
}

// DefaultConfig mirrors spec.md §4.1's literal defaults.
func DefaultConfig() Config {
	return Config{
		SlidingWindow:   7 * 24 * time.Hour,
		MaxAge:          30 * 24 * time.Hour,
		RememberWindow:  90 * 24 * time.Hour,
		SlideResolution: time.Minute,
		BcryptCost:      DefaultBcryptCost,
	}
}

// Service implements the credential/session operations spec.md §4.1 names.
// Now defaults to time.Now when nil, following the usecase package's
// injected-clock convention for deterministic tests.
type Service struct {
	Users    ports.UserStore
	Sessions ports.SessionStore
	Config   Config
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) cost() int {
	if s.Config.BcryptCost > 0 {
		return s.Config.BcryptCost
	}
	return DefaultBcryptCost
}

// Register creates a new User, rejecting weak passwords and duplicate
// usernames (spec.md §4.1).
func (s *Service) Register(ctx context.Context, id, username, password string) (domain.User, error) {
	return s.register(ctx, id, username, password, false)
}

// RegisterAdmin creates a new User with IsAdmin set, for spec.md §3's
// "one admin bootstrapped on first-run if empty" rule. The HTTP adapter
// decides whether the bootstrap condition holds (store is empty) before
// calling this instead of Register.
func (s *Service) RegisterAdmin(ctx context.Context, id, username, password string) (domain.User, error) {
	return s.register(ctx, id, username, password, true)
}

func (s *Service) register(ctx context.Context, id, username, password string, isAdmin bool) (domain.User, error) {
	if len(password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}
	hash, err := hashPassword(password, s.cost())
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{ID: id, Username: username, PasswordHash: hash, IsAdmin: isAdmin, CreatedAt: s.now()}
	if err := s.Users.CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Authenticate verifies a username/password pair without revealing
// whether the username exists on failure.
func (s *Service) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	u, err := s.Users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if !checkPassword(u.PasswordHash, password) {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// CreateSession mints a Session and, if remember is set, a RememberToken.
func (s *Service) CreateSession(ctx context.Context, user domain.User, ip, ua string, remember bool) (domain.Session, *domain.RememberToken, error) {
	now := s.now()
	id, err := newOpaqueToken()
	if err != nil {
		return domain.Session{}, nil, err
	}
	sess := domain.Session{
		ID: id, UserID: user.ID, CreatedAt: now, LastActivity: now,
		ExpiresAt: minTime(now.Add(s.Config.SlidingWindow), now.Add(s.Config.MaxAge)),
		IP: ip, UA: ua,
	}
	if err := s.Sessions.CreateSession(ctx, sess); err != nil {
		return domain.Session{}, nil, err
	}

	if !remember {
		return sess, nil, nil
	}

	rid, err := newOpaqueToken()
	if err != nil {
		return sess, nil, err
	}
	rt := domain.RememberToken{
		ID: rid, UserID: user.ID, CreatedAt: now,
		ExpiresAt: now.Add(s.Config.RememberWindow), IP: ip, UA: ua,
	}
	if err := s.Sessions.CreateRememberToken(ctx, rt); err != nil {
		return sess, nil, err
	}
	return sess, &rt, nil
}

// ResolveSession implements resolve_session (spec.md §4.1): slide an
// active session, or renew from a valid remember token, or fail closed.
func (s *Service) ResolveSession(ctx context.Context, sessionID, rememberID, ip, ua string) (domain.User, Resolution, *domain.Session, *domain.RememberToken, error) {
	now := s.now()

	if sessionID != "" {
		sess, err := s.Sessions.GetSession(ctx, sessionID)
		if err == nil && !sess.Expired(now) {
			if now.Sub(sess.LastActivity) >= s.Config.SlideResolution {
				sess.LastActivity = now
				sess.ExpiresAt = minTime(now.Add(s.Config.SlidingWindow), sess.CreatedAt.Add(s.Config.MaxAge))
				if err := s.Sessions.SlideSession(ctx, sess.ID, sess.LastActivity, sess.ExpiresAt); err != nil {
					return domain.User{}, "", nil, nil, err
				}
			}
			u, err := s.Users.GetUser(ctx, sess.UserID)
			if err != nil {
				return domain.User{}, "", nil, nil, err
			}
			return u, ResolvedBySession, &sess, nil, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", nil, nil, err
		}
	}

	if rememberID == "" {
		return domain.User{}, "", nil, nil, domain.ErrNotAuthenticated
	}

	rt, err := s.Sessions.GetRememberToken(ctx, rememberID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", nil, nil, domain.ErrNotAuthenticated
		}
		return domain.User{}, "", nil, nil, err
	}
	if !rt.Valid(now) {
		return domain.User{}, "", nil, nil, domain.ErrNotAuthenticated
	}

	u, err := s.Users.GetUser(ctx, rt.UserID)
	if err != nil {
		return domain.User{}, "", nil, nil, err
	}
	newSess, _, err := s.CreateSession(ctx, u, ip, ua, false)
	if err != nil {
		return domain.User{}, "", nil, nil, err
	}
	return u, ResolvedByRenewed, &newSess, &rt, nil
}

// Logout deletes the session and revokes the presented remember token, if
// any (spec.md §4.1's cancellation rule).
func (s *Service) Logout(ctx context.Context, sessionID, rememberID string) error {
	if sessionID != "" {
		if err := s.Sessions.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	if rememberID != "" {
		if err := s.Sessions.RevokeRememberToken(ctx, rememberID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

// CreateApiKey mints a bearer key; the raw value is returned exactly once.
func (s *Service) CreateApiKey(ctx context.Context, userID, name string, expiresDays int) (string, domain.ApiKey, error) {
	full, prefix, err := newApiKey()
	if err != nil {
		return "", domain.ApiKey{}, err
	}
	k := domain.ApiKey{
		Prefix: prefix, SecretHash: hashToken(full), UserID: userID, Name: name,
		CreatedAt: s.now(),
	}
	if expiresDays > 0 {
		exp := s.now().AddDate(0, 0, expiresDays)
		k.ExpiresAt = &exp
	}
	if err := s.Sessions.CreateApiKey(ctx, k); err != nil {
		return "", domain.ApiKey{}, err
	}
	return full, k, nil
}

// AuthenticateApiKey resolves a bearer token to its owning User.
func (s *Service) AuthenticateApiKey(ctx context.Context, full string) (domain.User, error) {
	if len(full) < apiKeyPrefixChars {
		return domain.User{}, ErrInvalidCredentials
	}
	prefix := full[:apiKeyPrefixChars]
	k, err := s.Sessions.GetApiKeyByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	now := s.now()
	if !k.Valid(now) || k.SecretHash != hashToken(full) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := s.Sessions.TouchApiKeyUsed(ctx, prefix); err != nil {
		return domain.User{}, err
	}
	return s.Users.GetUser(ctx, k.UserID)
}

// RevokeApiKey marks a key revoked; subsequent auth fails.
func (s *Service) RevokeApiKey(ctx context.Context, prefix string) error {
	return s.Sessions.RevokeApiKey(ctx, prefix)
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
