package profiles

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"wolfgang/internal/core/events"
)

// Block is one stored graph block. The _id mirrors the record path so
// deletes need no lookup.
type Block struct {
	ID        string    `bson:"_id"`
	Author    string    `bson:"author"`
	Subject   string    `bson:"subject"`
	CreatedAt time.Time `bson:"created_at"`
}

// BlockFromCommit converts a graph block commit: insert on create,
// delete on delete. Self-blocks and updates produce nothing.
func BlockFromCommit(commit *events.Commit, now time.Time) (mongo.WriteModel, error) {
	id := commit.Repo + "/" + commit.Collection + "/" + commit.RKey

	switch commit.Operation {
	case events.OpDelete:
		return mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": id}), nil
	case events.OpCreate:
		var rec events.BlockRecord
		if err := json.Unmarshal(commit.Record, &rec); err != nil {
			return nil, fmt.Errorf("decoding block record: %w", err)
		}
		if rec.Subject == "" {
			return nil, fmt.Errorf("block record without subject")
		}
		if rec.Subject == commit.Repo {
			return nil, nil
		}

		created := now.UTC()
		if rec.CreatedAt != "" {
			t, err := events.ParseTime(rec.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("parsing block createdAt: %w", err)
			}
			created = t
		}

		return mongo.NewInsertOneModel().SetDocument(&Block{
			ID:        id,
			Author:    commit.Repo,
			Subject:   rec.Subject,
			CreatedAt: created,
		}), nil
	}
	return nil, nil
}
