package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type actionDoc struct {
	TorrentHash string `bson:"torrentHash"`
	Kind        string `bson:"kind"`
	Timestamp   int64  `bson:"timestamp"`
	Detail      string `bson:"detail,omitempty"`
}

func toActionDoc(a domain.Action) actionDoc {
	return actionDoc{
		TorrentHash: string(a.TorrentHash),
		Kind:        string(a.Kind),
		Timestamp:   a.Timestamp.UTC().Unix(),
		Detail:      a.Detail,
	}
}

func fromActionDoc(d actionDoc) domain.Action {
	return domain.Action{
		TorrentHash: domain.InfoHash(d.TorrentHash),
		Kind:        domain.ActionKind(d.Kind),
		Timestamp:   unixTime(d.Timestamp),
		Detail:      d.Detail,
	}
}

func (s *Store) AppendAction(ctx context.Context, a domain.Action) error {
	_, err := s.actions.InsertOne(ctx, toActionDoc(a))
	return err
}

func (s *Store) ListActions(ctx context.Context, torrentID domain.InfoHash) ([]domain.Action, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := s.actions.Find(ctx, bson.M{"torrentHash": string(torrentID)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Action
	for cur.Next(ctx) {
		var d actionDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, fromActionDoc(d))
	}
	return out, cur.Err()
}
