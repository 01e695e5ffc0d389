package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type transferDoc struct {
	ID         string `bson:"_id"`
	TorrentID  string `bson:"torrentHash"`
	BackendID  string `bson:"backendId"`
	SourcePath string `bson:"sourcePath"`
	DestPath   string `bson:"destPath"`
	State      string `bson:"state"`
	BytesDone  int64  `bson:"bytesDone"`
	BytesTotal int64  `bson:"bytesTotal"`
	StartedAt  int64  `bson:"startedAt"`
	FinishedAt int64  `bson:"finishedAt,omitempty"`
	Error      string `bson:"error,omitempty"`
}

func toTransferDoc(j domain.TransferJob) transferDoc {
	return transferDoc{
		ID: j.ID, TorrentID: string(j.TorrentID), BackendID: j.BackendID,
		SourcePath: j.SourcePath, DestPath: j.DestPath, State: string(j.State),
		BytesDone: j.BytesDone, BytesTotal: j.BytesTotal,
		StartedAt: j.StartedAt.UTC().Unix(), FinishedAt: unixPtr(j.FinishedAt), Error: j.Error,
	}
}

func fromTransferDoc(d transferDoc) domain.TransferJob {
	return domain.TransferJob{
		ID: d.ID, TorrentID: domain.InfoHash(d.TorrentID), BackendID: d.BackendID,
		SourcePath: d.SourcePath, DestPath: d.DestPath, State: domain.TransferState(d.State),
		BytesDone: d.BytesDone, BytesTotal: d.BytesTotal,
		StartedAt: unixTime(d.StartedAt), FinishedAt: unixTimePtr(d.FinishedAt), Error: d.Error,
	}
}

func (s *Store) CreateTransfer(ctx context.Context, j domain.TransferJob) error {
	_, err := s.transfers.InsertOne(ctx, toTransferDoc(j))
	return translateWriteErr(err)
}

func (s *Store) UpdateTransfer(ctx context.Context, j domain.TransferJob) error {
	res, err := s.transfers.ReplaceOne(ctx, bson.M{"_id": j.ID}, toTransferDoc(j))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) GetTransfer(ctx context.Context, id string) (domain.TransferJob, error) {
	var d transferDoc
	if err := s.transfers.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return domain.TransferJob{}, domain.ErrNotFound
		}
		return domain.TransferJob{}, err
	}
	return fromTransferDoc(d), nil
}

// FindActiveTransfer looks up the pending-or-running job for a
// (torrent, backend) pair, used to dedup resubmitted transfer requests.
func (s *Store) FindActiveTransfer(ctx context.Context, torrentID domain.InfoHash, backendID string) (domain.TransferJob, error) {
	filter := bson.M{
		"torrentHash": string(torrentID),
		"backendId":   backendID,
		"state":       bson.M{"$in": []string{string(domain.TransferPending), string(domain.TransferRunning)}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	var d transferDoc
	if err := s.transfers.FindOne(ctx, filter, opts).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return domain.TransferJob{}, domain.ErrNotFound
		}
		return domain.TransferJob{}, err
	}
	return fromTransferDoc(d), nil
}

// FindLatestTransfer looks up the most recently started job for a
// (torrent, backend) pair in any state, used to serve status polls by key.
func (s *Store) FindLatestTransfer(ctx context.Context, torrentID domain.InfoHash, backendID string) (domain.TransferJob, error) {
	filter := bson.M{
		"torrentHash": string(torrentID),
		"backendId":   backendID,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	var d transferDoc
	if err := s.transfers.FindOne(ctx, filter, opts).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return domain.TransferJob{}, domain.ErrNotFound
		}
		return domain.TransferJob{}, err
	}
	return fromTransferDoc(d), nil
}
