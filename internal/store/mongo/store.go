// Package mongo implements the persistence store (spec.md §3) against
// MongoDB, grounded on the teacher's internal/repository/mongo package:
// one bson doc struct per entity, bson.M filter construction, and
// mongo.IsDuplicateKeyError translated to domain.ErrDuplicate.
package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the Mongo-backed implementation of ports.Store and
// ports.SessionStore, one collection per entity in the same database.
type Store struct {
	db *mongo.Database

	users         *mongo.Collection
	backends      *mongo.Collection
	torrents      *mongo.Collection
	statuses      *mongo.Collection
	actions       *mongo.Collection
	transfers     *mongo.Collection
	settings      *mongo.Collection
	webhooks      *mongo.Collection
	sessions      *mongo.Collection
	rememberToks  *mongo.Collection
	apiKeys       *mongo.Collection
}

// New builds a Store over an already-connected client.
func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		db:           db,
		users:        db.Collection("users"),
		backends:     db.Collection("backends"),
		torrents:     db.Collection("torrents"),
		statuses:     db.Collection("statuses"),
		actions:      db.Collection("actions"),
		transfers:    db.Collection("transfer_jobs"),
		settings:     db.Collection("torrent_settings"),
		webhooks:     db.Collection("webhooks"),
		sessions:     db.Collection("sessions"),
		rememberToks: db.Collection("remember_tokens"),
		apiKeys:      db.Collection("api_keys"),
	}
}

// Connect dials Mongo the same way the teacher's repository package does,
// so otelmongo's monitor option keeps working unchanged.
func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	return mongo.Connect(ctx, opts...)
}

// EnsureIndexes creates every index the store relies on for uniqueness and
// query performance. Safe to call on every startup (CreateMany is
// idempotent for identical index specs).
func (s *Store) EnsureIndexes(ctx context.Context) error {
	type work struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}

	jobs := []work{
		{s.users, []mongo.IndexModel{
			{Keys: bsonD("username", 1), Options: options.Index().SetUnique(true)},
		}},
		{s.backends, []mongo.IndexModel{
			{Keys: bsonD("ownerUserId", 1)},
		}},
		{s.torrents, []mongo.IndexModel{
			{Keys: bsonDMulti("ownerUserId", 1, "infoHash", 1, "backendId", 1), Options: options.Index().SetUnique(true)},
			{Keys: bsonDMulti("ownerUserId", 1, "infoHash", 1)},
		}},
		{s.statuses, []mongo.IndexModel{
			{Keys: bsonDMulti("torrentHash", 1, "timestamp", 1)},
			{Keys: bsonD("timestamp", 1)},
		}},
		{s.actions, []mongo.IndexModel{
			{Keys: bsonDMulti("torrentHash", 1, "timestamp", 1)},
		}},
		{s.transfers, []mongo.IndexModel{
			{Keys: bsonDMulti("torrentHash", 1, "backendId", 1)},
		}},
		{s.settings, []mongo.IndexModel{
			{Keys: bsonDMulti("torrentHash", 1, "ownerUserId", 1, "key", 1), Options: options.Index().SetUnique(true)},
		}},
		{s.webhooks, []mongo.IndexModel{
			{Keys: bsonD("ownerUserId", 1)},
		}},
		{s.sessions, []mongo.IndexModel{
			{Keys: bsonD("userId", 1)},
			{Keys: bsonD("expiresAt", 1)},
		}},
		{s.rememberToks, []mongo.IndexModel{
			{Keys: bsonD("userId", 1)},
		}},
		{s.apiKeys, []mongo.IndexModel{
			{Keys: bsonD("userId", 1)},
		}},
	}

	for _, j := range jobs {
		if _, err := j.coll.Indexes().CreateMany(ctx, j.models); err != nil {
			return err
		}
	}
	return nil
}
