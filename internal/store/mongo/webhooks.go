package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type webhookDoc struct {
	ID          string   `bson:"_id"`
	OwnerUserID string   `bson:"ownerUserId"`
	URL         string   `bson:"url"`
	Events      []string `bson:"events"`
	Secret      string   `bson:"secret"`
	Enabled     bool     `bson:"enabled"`
	CreatedAt   int64    `bson:"createdAt"`
}

func toWebhookDoc(w domain.Webhook) webhookDoc {
	return webhookDoc{
		ID: w.ID, OwnerUserID: w.OwnerUserID, URL: w.URL, Events: w.Events,
		Secret: w.Secret, Enabled: w.Enabled, CreatedAt: w.CreatedAt.UTC().Unix(),
	}
}

func fromWebhookDoc(d webhookDoc) domain.Webhook {
	return domain.Webhook{
		ID: d.ID, OwnerUserID: d.OwnerUserID, URL: d.URL, Events: d.Events,
		Secret: d.Secret, Enabled: d.Enabled, CreatedAt: unixTime(d.CreatedAt),
	}
}

func (s *Store) CreateWebhook(ctx context.Context, w domain.Webhook) error {
	_, err := s.webhooks.InsertOne(ctx, toWebhookDoc(w))
	return translateWriteErr(err)
}

func (s *Store) ListWebhooks(ctx context.Context, ownerUserID string) ([]domain.Webhook, error) {
	cur, err := s.webhooks.Find(ctx, bson.M{"ownerUserId": ownerUserID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Webhook
	for cur.Next(ctx) {
		var d webhookDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, fromWebhookDoc(d))
	}
	return out, cur.Err()
}

func (s *Store) DeleteWebhook(ctx context.Context, id, ownerUserID string) error {
	res, err := s.webhooks.DeleteOne(ctx, bson.M{"_id": id, "ownerUserId": ownerUserID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
