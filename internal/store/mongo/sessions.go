package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type sessionDoc struct {
	ID           string `bson:"_id"`
	UserID       string `bson:"userId"`
	CreatedAt    int64  `bson:"createdAt"`
	LastActivity int64  `bson:"lastActivity"`
	ExpiresAt    int64  `bson:"expiresAt"`
	IP           string `bson:"ip,omitempty"`
	UA           string `bson:"ua,omitempty"`
}

func toSessionDoc(s domain.Session) sessionDoc {
	return sessionDoc{
		ID: s.ID, UserID: s.UserID, CreatedAt: s.CreatedAt.UTC().Unix(),
		LastActivity: s.LastActivity.UTC().Unix(), ExpiresAt: s.ExpiresAt.UTC().Unix(),
		IP: s.IP, UA: s.UA,
	}
}

func fromSessionDoc(d sessionDoc) domain.Session {
	return domain.Session{
		ID: d.ID, UserID: d.UserID, CreatedAt: unixTime(d.CreatedAt),
		LastActivity: unixTime(d.LastActivity), ExpiresAt: unixTime(d.ExpiresAt),
		IP: d.IP, UA: d.UA,
	}
}

func (s *Store) CreateSession(ctx context.Context, sess domain.Session) error {
	_, err := s.sessions.InsertOne(ctx, toSessionDoc(sess))
	return translateWriteErr(err)
}

func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var d sessionDoc
	if err := s.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, err
	}
	return fromSessionDoc(d), nil
}

// SlideSession advances LastActivity/ExpiresAt on every authenticated
// request, implementing the sliding-expiry window (spec.md §4.1).
func (s *Store) SlideSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) error {
	res, err := s.sessions.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"lastActivity": lastActivity.UTC().Unix(),
		"expiresAt":    expiresAt.UTC().Unix(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.sessions.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *Store) DeleteSessionsForUser(ctx context.Context, userID string) error {
	_, err := s.sessions.DeleteMany(ctx, bson.M{"userId": userID})
	return err
}

type rememberTokenDoc struct {
	ID        string `bson:"_id"`
	UserID    string `bson:"userId"`
	CreatedAt int64  `bson:"createdAt"`
	ExpiresAt int64  `bson:"expiresAt"`
	IP        string `bson:"ip,omitempty"`
	UA        string `bson:"ua,omitempty"`
	Revoked   bool   `bson:"revoked"`
}

func toRememberTokenDoc(r domain.RememberToken) rememberTokenDoc {
	return rememberTokenDoc{
		ID: r.ID, UserID: r.UserID, CreatedAt: r.CreatedAt.UTC().Unix(),
		ExpiresAt: r.ExpiresAt.UTC().Unix(), IP: r.IP, UA: r.UA, Revoked: r.Revoked,
	}
}

func fromRememberTokenDoc(d rememberTokenDoc) domain.RememberToken {
	return domain.RememberToken{
		ID: d.ID, UserID: d.UserID, CreatedAt: unixTime(d.CreatedAt),
		ExpiresAt: unixTime(d.ExpiresAt), IP: d.IP, UA: d.UA, Revoked: d.Revoked,
	}
}

func (s *Store) CreateRememberToken(ctx context.Context, r domain.RememberToken) error {
	_, err := s.rememberToks.InsertOne(ctx, toRememberTokenDoc(r))
	return translateWriteErr(err)
}

func (s *Store) GetRememberToken(ctx context.Context, id string) (domain.RememberToken, error) {
	var d rememberTokenDoc
	if err := s.rememberToks.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return domain.RememberToken{}, domain.ErrNotFound
		}
		return domain.RememberToken{}, err
	}
	return fromRememberTokenDoc(d), nil
}

func (s *Store) RevokeRememberToken(ctx context.Context, id string) error {
	res, err := s.rememberToks.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"revoked": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRememberTokensForUser(ctx context.Context, userID string) error {
	_, err := s.rememberToks.DeleteMany(ctx, bson.M{"userId": userID})
	return err
}

type apiKeyDoc struct {
	Prefix     string `bson:"_id"`
	SecretHash string `bson:"secretHash"`
	UserID     string `bson:"userId"`
	Name       string `bson:"name"`
	CreatedAt  int64  `bson:"createdAt"`
	LastUsedAt int64  `bson:"lastUsedAt,omitempty"`
	ExpiresAt  int64  `bson:"expiresAt,omitempty"`
	Revoked    bool   `bson:"revoked"`
}

func toApiKeyDoc(k domain.ApiKey) apiKeyDoc {
	d := apiKeyDoc{
		Prefix: k.Prefix, SecretHash: k.SecretHash, UserID: k.UserID, Name: k.Name,
		CreatedAt: k.CreatedAt.UTC().Unix(), LastUsedAt: unixPtr(k.LastUsedAt),
		Revoked: k.Revoked,
	}
	if k.ExpiresAt != nil {
		d.ExpiresAt = k.ExpiresAt.UTC().Unix()
	}
	return d
}

func fromApiKeyDoc(d apiKeyDoc) domain.ApiKey {
	return domain.ApiKey{
		Prefix: d.Prefix, SecretHash: d.SecretHash, UserID: d.UserID, Name: d.Name,
		CreatedAt: unixTime(d.CreatedAt), LastUsedAt: unixTimePtr(d.LastUsedAt),
		ExpiresAt: unixTimePtr(d.ExpiresAt), Revoked: d.Revoked,
	}
}

func (s *Store) CreateApiKey(ctx context.Context, k domain.ApiKey) error {
	_, err := s.apiKeys.InsertOne(ctx, toApiKeyDoc(k))
	return translateWriteErr(err)
}

func (s *Store) GetApiKeyByPrefix(ctx context.Context, prefix string) (domain.ApiKey, error) {
	var d apiKeyDoc
	if err := s.apiKeys.FindOne(ctx, bson.M{"_id": prefix}).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return domain.ApiKey{}, domain.ErrNotFound
		}
		return domain.ApiKey{}, err
	}
	return fromApiKeyDoc(d), nil
}

func (s *Store) ListApiKeys(ctx context.Context, userID string) ([]domain.ApiKey, error) {
	cur, err := s.apiKeys.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.ApiKey
	for cur.Next(ctx) {
		var d apiKeyDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, fromApiKeyDoc(d))
	}
	return out, cur.Err()
}

func (s *Store) RevokeApiKey(ctx context.Context, prefix string) error {
	res, err := s.apiKeys.UpdateOne(ctx, bson.M{"_id": prefix}, bson.M{"$set": bson.M{"revoked": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) TouchApiKeyUsed(ctx context.Context, prefix string) error {
	_, err := s.apiKeys.UpdateOne(ctx, bson.M{"_id": prefix}, bson.M{"$set": bson.M{"lastUsedAt": time.Now().UTC().Unix()}})
	return err
}

func (s *Store) DeleteApiKeysForUser(ctx context.Context, userID string) error {
	_, err := s.apiKeys.DeleteMany(ctx, bson.M{"userId": userID})
	return err
}
