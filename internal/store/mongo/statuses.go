package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type statusDoc struct {
	TorrentHash string  `bson:"torrentHash"`
	BackendID   string  `bson:"backendId,omitempty"`
	IsSeeding   bool    `bson:"isSeeding"`
	IsPrivate   bool    `bson:"isPrivate"`
	Progress    float64 `bson:"progress"`
	DownRate    int64   `bson:"downRate"`
	UpRate      int64   `bson:"upRate"`
	Peers       int     `bson:"peers"`
	Seeds       int     `bson:"seeds"`
	Timestamp   int64   `bson:"timestamp"`
}

func toStatusDoc(st domain.Status) statusDoc {
	return statusDoc{
		TorrentHash: string(st.TorrentHash), BackendID: st.BackendID, IsSeeding: st.IsSeeding,
		IsPrivate: st.IsPrivate, Progress: st.Progress, DownRate: st.DownRate, UpRate: st.UpRate,
		Peers: st.Peers, Seeds: st.Seeds, Timestamp: st.Timestamp.UTC().Unix(),
	}
}

func fromStatusDoc(d statusDoc) domain.Status {
	return domain.Status{
		TorrentHash: domain.InfoHash(d.TorrentHash), BackendID: d.BackendID, IsSeeding: d.IsSeeding,
		IsPrivate: d.IsPrivate, Progress: d.Progress, DownRate: d.DownRate, UpRate: d.UpRate,
		Peers: d.Peers, Seeds: d.Seeds, Timestamp: unixTime(d.Timestamp),
	}
}

func (s *Store) AppendStatus(ctx context.Context, st domain.Status) error {
	_, err := s.statuses.InsertOne(ctx, toStatusDoc(st))
	return err
}

func (s *Store) ListStatuses(ctx context.Context, torrentID domain.InfoHash) ([]domain.Status, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := s.statuses.Find(ctx, bson.M{"torrentHash": string(torrentID)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Status
	for cur.Next(ctx) {
		var d statusDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, fromStatusDoc(d))
	}
	return out, cur.Err()
}

// PruneStatuses deletes Statuses older than the retention cutoff
// (spec.md §3, default 30 days).
func (s *Store) PruneStatuses(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays).Unix()
	res, err := s.statuses.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
