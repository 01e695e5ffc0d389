package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type authDoc struct {
	Username string `bson:"username,omitempty"`
	Password string `bson:"password,omitempty"`
}

type httpDownloadDoc struct {
	Host    string   `bson:"host"`
	Port    int      `bson:"port"`
	Path    string   `bson:"path,omitempty"`
	Auth    *authDoc `bson:"auth,omitempty"`
	UseSSL  bool     `bson:"useSsl"`
	Enabled bool     `bson:"enabled"`
}

type autoDownloadDoc struct {
	Enabled           bool   `bson:"enabled"`
	LocalPath         string `bson:"localPath,omitempty"`
	DeleteRemoteAfter bool   `bson:"deleteRemoteAfter"`
}

type sshDoc struct {
	Host    string `bson:"host"`
	Port    int    `bson:"port"`
	User    string `bson:"user"`
	KeyPath string `bson:"keyPath"`
}

type backendDoc struct {
	ID           string           `bson:"_id"`
	OwnerUserID  string           `bson:"ownerUserId"`
	Name         string           `bson:"name"`
	Kind         string           `bson:"kind"`
	Host         string           `bson:"host"`
	Port         int              `bson:"port"`
	RPCPath      string           `bson:"rpcPath,omitempty"`
	UseSSL       bool             `bson:"useSsl"`
	Auth         *authDoc         `bson:"auth,omitempty"`
	Enabled      bool             `bson:"enabled"`
	IsDefault    bool             `bson:"isDefault"`
	CreatedAt    int64            `bson:"createdAt"`
	HTTPDownload *httpDownloadDoc `bson:"httpDownload,omitempty"`
	MountPath    string           `bson:"mountPath,omitempty"`
	DownloadDir  string           `bson:"downloadDir,omitempty"`
	AutoDownload *autoDownloadDoc `bson:"autoDownload,omitempty"`
	SSH          *sshDoc          `bson:"ssh,omitempty"`
	LastSeenAt   int64            `bson:"lastSeenAt,omitempty"`
	LastError    string           `bson:"lastError,omitempty"`
	Version      int              `bson:"version"`
}

func toAuthDoc(a *domain.Auth) *authDoc {
	if a == nil {
		return nil
	}
	return &authDoc{Username: a.Username, Password: a.Password}
}

func fromAuthDoc(d *authDoc) *domain.Auth {
	if d == nil {
		return nil
	}
	return &domain.Auth{Username: d.Username, Password: d.Password}
}

func toBackendDoc(b domain.Backend) backendDoc {
	doc := backendDoc{
		ID:          b.ID,
		OwnerUserID: b.OwnerUserID,
		Name:        b.Name,
		Kind:        string(b.Kind),
		Host:        b.Host,
		Port:        b.Port,
		RPCPath:     b.RPCPath,
		UseSSL:      b.UseSSL,
		Auth:        toAuthDoc(b.Auth),
		Enabled:     b.Enabled,
		IsDefault:   b.IsDefault,
		CreatedAt:   b.CreatedAt.UTC().Unix(),
		MountPath:   b.MountPath,
		DownloadDir: b.DownloadDir,
		LastError:   b.LastError,
		Version:     b.Version,
	}
	if b.HTTPDownload != nil {
		doc.HTTPDownload = &httpDownloadDoc{
			Host: b.HTTPDownload.Host, Port: b.HTTPDownload.Port, Path: b.HTTPDownload.Path,
			Auth: toAuthDoc(b.HTTPDownload.Auth), UseSSL: b.HTTPDownload.UseSSL, Enabled: b.HTTPDownload.Enabled,
		}
	}
	if b.AutoDownload != nil {
		doc.AutoDownload = &autoDownloadDoc{
			Enabled: b.AutoDownload.Enabled, LocalPath: b.AutoDownload.LocalPath,
			DeleteRemoteAfter: b.AutoDownload.DeleteRemoteAfter,
		}
	}
	if b.SSH != nil {
		doc.SSH = &sshDoc{Host: b.SSH.Host, Port: b.SSH.Port, User: b.SSH.User, KeyPath: b.SSH.KeyPath}
	}
	if b.LastSeenAt != nil {
		doc.LastSeenAt = b.LastSeenAt.UTC().Unix()
	}
	return doc
}

func fromBackendDoc(d backendDoc) domain.Backend {
	b := domain.Backend{
		ID: d.ID, OwnerUserID: d.OwnerUserID, Name: d.Name, Kind: domain.BackendKind(d.Kind),
		Host: d.Host, Port: d.Port, RPCPath: d.RPCPath, UseSSL: d.UseSSL, Auth: fromAuthDoc(d.Auth),
		Enabled: d.Enabled, IsDefault: d.IsDefault, CreatedAt: unixTime(d.CreatedAt),
		MountPath: d.MountPath, DownloadDir: d.DownloadDir, LastError: d.LastError, Version: d.Version,
		LastSeenAt: unixTimePtr(d.LastSeenAt),
	}
	if d.HTTPDownload != nil {
		b.HTTPDownload = &domain.HTTPDownloadEndpoint{
			Host: d.HTTPDownload.Host, Port: d.HTTPDownload.Port, Path: d.HTTPDownload.Path,
			Auth: fromAuthDoc(d.HTTPDownload.Auth), UseSSL: d.HTTPDownload.UseSSL, Enabled: d.HTTPDownload.Enabled,
		}
	}
	if d.AutoDownload != nil {
		b.AutoDownload = &domain.AutoDownload{
			Enabled: d.AutoDownload.Enabled, LocalPath: d.AutoDownload.LocalPath,
			DeleteRemoteAfter: d.AutoDownload.DeleteRemoteAfter,
		}
	}
	if d.SSH != nil {
		b.SSH = &domain.SSHConfig{Host: d.SSH.Host, Port: d.SSH.Port, User: d.SSH.User, KeyPath: d.SSH.KeyPath}
	}
	return b
}

// CreateBackend inserts a new backend. The at-most-one-default-per-owner
// invariant (spec.md §3) is enforced by clearing any existing default
// before the insert when the new row sets IsDefault.
func (s *Store) CreateBackend(ctx context.Context, b domain.Backend) error {
	if b.IsDefault {
		if _, err := s.backends.UpdateMany(ctx,
			bson.M{"ownerUserId": b.OwnerUserID, "isDefault": true},
			bson.M{"$set": bson.M{"isDefault": false}}); err != nil {
			return err
		}
	}
	_, err := s.backends.InsertOne(ctx, toBackendDoc(b))
	return translateWriteErr(err)
}

func (s *Store) UpdateBackend(ctx context.Context, b domain.Backend) error {
	if b.IsDefault {
		if _, err := s.backends.UpdateMany(ctx,
			bson.M{"ownerUserId": b.OwnerUserID, "isDefault": true, "_id": bson.M{"$ne": b.ID}},
			bson.M{"$set": bson.M{"isDefault": false}}); err != nil {
			return err
		}
	}
	doc := toBackendDoc(b)
	doc.Version = b.Version + 1
	res, err := s.backends.ReplaceOne(ctx, bson.M{"_id": b.ID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) GetBackend(ctx context.Context, id string) (domain.Backend, error) {
	var d backendDoc
	if err := s.backends.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return domain.Backend{}, domain.ErrNotFound
		}
		return domain.Backend{}, err
	}
	return fromBackendDoc(d), nil
}

func (s *Store) ListBackends(ctx context.Context, ownerUserID string) ([]domain.Backend, error) {
	cur, err := s.backends.Find(ctx, bson.M{"ownerUserId": ownerUserID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Backend
	for cur.Next(ctx) {
		var d backendDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, fromBackendDoc(d))
	}
	return out, cur.Err()
}

// ListAllEnabledBackends returns every enabled Backend across every owner,
// consumed by the maintenance scheduler's per-tick sweep (spec.md §4.6).
func (s *Store) ListAllEnabledBackends(ctx context.Context) ([]domain.Backend, error) {
	cur, err := s.backends.Find(ctx, bson.M{"enabled": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Backend
	for cur.Next(ctx) {
		var d backendDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, fromBackendDoc(d))
	}
	return out, cur.Err()
}

// DeleteBackend cascades to Torrents/Statuses/Actions/TransferJobs rooted
// at this backend (DESIGN.md Open Question #1: cascade, not tombstone).
func (s *Store) DeleteBackend(ctx context.Context, id string) error {
	if _, err := s.backends.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return err
	}
	cur, err := s.torrents.Find(ctx, bson.M{"backendId": id})
	if err != nil {
		return err
	}
	var hashes []string
	for cur.Next(ctx) {
		var d torrentDoc
		if err := cur.Decode(&d); err != nil {
			cur.Close(ctx)
			return err
		}
		hashes = append(hashes, d.InfoHash)
	}
	cur.Close(ctx)
	if err := cur.Err(); err != nil {
		return err
	}

	if _, err := s.torrents.DeleteMany(ctx, bson.M{"backendId": id}); err != nil {
		return err
	}
	if _, err := s.transfers.DeleteMany(ctx, bson.M{"backendId": id}); err != nil {
		return err
	}
	if len(hashes) > 0 {
		if _, err := s.statuses.DeleteMany(ctx, bson.M{"torrentHash": bson.M{"$in": hashes}, "backendId": id}); err != nil {
			return err
		}
		if _, err := s.actions.DeleteMany(ctx, bson.M{"torrentHash": bson.M{"$in": hashes}}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) TouchBackendHealth(ctx context.Context, id string, lastError string) error {
	_, err := s.backends.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"lastSeenAt": time.Now().UTC().Unix(),
		"lastError":  lastError,
	}})
	return err
}
