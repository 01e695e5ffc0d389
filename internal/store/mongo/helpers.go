package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/philiporange/torrent-manager/internal/domain"
)

func upsertOpts() *options.ReplaceOptions {
	return options.Replace().SetUpsert(true)
}

func bsonD(key string, value int) bson.D {
	return bson.D{{Key: key, Value: value}}
}

func bsonDMulti(kv ...any) bson.D {
	d := make(bson.D, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		d = append(d, bson.E{Key: kv[i].(string), Value: kv[i+1]})
	}
	return d
}

// translateWriteErr maps a Mongo duplicate-key error to domain.ErrDuplicate,
// mirroring the teacher's Create/Update error handling; every other error
// is returned unchanged (missing documents are detected separately with
// isNoDocuments).
func translateWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDuplicate
	}
	return err
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
