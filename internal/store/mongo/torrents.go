package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type torrentDoc struct {
	InfoHash    string   `bson:"infoHash"`
	OwnerUserID string   `bson:"ownerUserId"`
	BackendID   string   `bson:"backendId"`
	Name        string   `bson:"name"`
	Size        int64    `bson:"size"`
	IsPrivate   bool     `bson:"isPrivate"`
	BasePath    string   `bson:"basePath,omitempty"`
	AddedAt     int64    `bson:"addedAt"`
	Labels      []string `bson:"labels,omitempty"`
}

func toTorrentDoc(t domain.Torrent) torrentDoc {
	return torrentDoc{
		InfoHash: string(t.InfoHash), OwnerUserID: t.OwnerUserID, BackendID: t.BackendID,
		Name: t.Name, Size: t.Size, IsPrivate: t.IsPrivate, BasePath: t.BasePath,
		AddedAt: t.AddedAt.UTC().Unix(), Labels: t.Labels,
	}
}

func fromTorrentDoc(d torrentDoc) domain.Torrent {
	return domain.Torrent{
		InfoHash: domain.InfoHash(d.InfoHash), OwnerUserID: d.OwnerUserID, BackendID: d.BackendID,
		Name: d.Name, Size: d.Size, IsPrivate: d.IsPrivate, BasePath: d.BasePath,
		AddedAt: unixTime(d.AddedAt), Labels: d.Labels,
	}
}

func keyFilter(key domain.TorrentKey) bson.M {
	return bson.M{"ownerUserId": key.OwnerUserID, "infoHash": string(key.InfoHash), "backendId": key.BackendID}
}

// UpsertTorrent creates or replaces the row addressed by t.Key().
func (s *Store) UpsertTorrent(ctx context.Context, t domain.Torrent) error {
	_, err := s.torrents.ReplaceOne(ctx, keyFilter(t.Key()), toTorrentDoc(t), upsertOpts())
	return err
}

func (s *Store) GetTorrent(ctx context.Context, key domain.TorrentKey) (domain.Torrent, error) {
	var d torrentDoc
	if err := s.torrents.FindOne(ctx, keyFilter(key)).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return domain.Torrent{}, domain.ErrNotFound
		}
		return domain.Torrent{}, err
	}
	return fromTorrentDoc(d), nil
}

func (s *Store) ListTorrents(ctx context.Context, filter domain.TorrentFilter) ([]domain.Torrent, error) {
	query := bson.M{}
	if filter.OwnerUserID != "" {
		query["ownerUserId"] = filter.OwnerUserID
	}
	if filter.BackendID != "" {
		query["backendId"] = filter.BackendID
	}
	if filter.InfoHash != "" {
		query["infoHash"] = string(filter.InfoHash)
	}

	cur, err := s.torrents.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Torrent
	for cur.Next(ctx) {
		var d torrentDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, fromTorrentDoc(d))
	}
	return out, cur.Err()
}

func (s *Store) DeleteTorrent(ctx context.Context, key domain.TorrentKey) error {
	res, err := s.torrents.DeleteOne(ctx, keyFilter(key))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) SetTorrentLabels(ctx context.Context, key domain.TorrentKey, labels []string) error {
	res, err := s.torrents.UpdateOne(ctx, keyFilter(key), bson.M{"$set": bson.M{"labels": labels}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
