package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type userDoc struct {
	ID           string `bson:"_id"`
	Username     string `bson:"username"`
	PasswordHash string `bson:"passwordHash"`
	IsAdmin      bool   `bson:"isAdmin"`
	CreatedAt    int64  `bson:"createdAt"`
}

func toUserDoc(u domain.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt.UTC().Unix(),
	}
}

func fromUserDoc(d userDoc) domain.User {
	return domain.User{
		ID:           d.ID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		IsAdmin:      d.IsAdmin,
		CreatedAt:    unixTime(d.CreatedAt),
	}
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.users.InsertOne(ctx, toUserDoc(u))
	return translateWriteErr(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	var d userDoc
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return fromUserDoc(d), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var d userDoc
	if err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return fromUserDoc(d), nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	return s.users.CountDocuments(ctx, bson.M{})
}

// DeleteUser cascades to everything the user owns, resolving DESIGN.md
// Open Question #1 in favor of hard-delete.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.users.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return err
	}
	backends, err := s.ListBackends(ctx, id)
	if err != nil {
		return err
	}
	for _, b := range backends {
		if err := s.DeleteBackend(ctx, b.ID); err != nil {
			return err
		}
	}
	if _, err := s.torrents.DeleteMany(ctx, bson.M{"ownerUserId": id}); err != nil {
		return err
	}
	if _, err := s.settings.DeleteMany(ctx, bson.M{"ownerUserId": id}); err != nil {
		return err
	}
	if _, err := s.webhooks.DeleteMany(ctx, bson.M{"ownerUserId": id}); err != nil {
		return err
	}
	if err := s.DeleteSessionsForUser(ctx, id); err != nil {
		return err
	}
	if err := s.DeleteRememberTokensForUser(ctx, id); err != nil {
		return err
	}
	return s.DeleteApiKeysForUser(ctx, id)
}
