package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type settingDoc struct {
	TorrentHash string `bson:"torrentHash"`
	OwnerUserID string `bson:"ownerUserId"`
	Key         string `bson:"key"`
	Value       string `bson:"value"`
}

func settingFilter(torrentID domain.InfoHash, ownerUserID, key string) bson.M {
	return bson.M{"torrentHash": string(torrentID), "ownerUserId": ownerUserID, "key": key}
}

func (s *Store) GetSetting(ctx context.Context, torrentID domain.InfoHash, ownerUserID, key string) (string, bool, error) {
	var d settingDoc
	err := s.settings.FindOne(ctx, settingFilter(torrentID, ownerUserID, key)).Decode(&d)
	if err != nil {
		if isNoDocuments(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return d.Value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, set domain.TorrentSetting) error {
	doc := settingDoc{
		TorrentHash: string(set.TorrentHash), OwnerUserID: set.OwnerUserID, Key: set.Key, Value: set.Value,
	}
	_, err := s.settings.ReplaceOne(ctx, settingFilter(set.TorrentHash, set.OwnerUserID, set.Key), doc, upsertOpts())
	return err
}
