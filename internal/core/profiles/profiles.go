// Package profiles turns actor-level firehose events into store write
// models: profile records, account status changes, identity changes,
// and graph blocks.
package profiles

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"wolfgang/internal/core/events"
)

// FromCommit converts an actor profile commit. Creates and updates
// upsert the record body with the media blob refs stripped; deletes
// soft-delete so the handle keeps resolving in old aggregates.
func FromCommit(commit *events.Commit, now time.Time) (mongo.WriteModel, error) {
	if commit.Operation == events.OpDelete {
		return mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": commit.Repo}).
			SetUpdate(bson.M{"$set": bson.M{"deleted": true}}).
			SetUpsert(true), nil
	}

	var record map[string]any
	if err := json.Unmarshal(commit.Record, &record); err != nil {
		return nil, fmt.Errorf("decoding profile record: %w", err)
	}
	delete(record, "avatar")
	delete(record, "banner")
	delete(record, "$type")

	var created any
	if raw, ok := record["createdAt"].(string); ok && raw != "" {
		t, err := events.ParseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing profile createdAt: %w", err)
		}
		created = t
	}
	delete(record, "createdAt")
	record["created_at"] = created
	record["updated_at"] = now.UTC()

	return upsertModel(commit.Repo, record, now), nil
}

// FromAccount records account status flips (deactivations, takedowns).
// A nil status is stored as null, meaning the account is plainly
// active or plainly gone.
func FromAccount(acct *events.Account, now time.Time) mongo.WriteModel {
	return upsertModel(acct.DID, bson.M{
		"active":     acct.Active,
		"status":     acct.Status,
		"updated_at": now.UTC(),
	}, now)
}

// FromIdentity records handle changes. Identity events without a
// handle still bump updated_at so staleness is observable.
func FromIdentity(ident *events.Identity, now time.Time) mongo.WriteModel {
	set := bson.M{"updated_at": now.UTC()}
	if ident.Handle != nil {
		set["handle"] = *ident.Handle
	}
	return upsertModel(ident.DID, set, now)
}

func upsertModel(did string, set bson.M, now time.Time) mongo.WriteModel {
	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"_id": did}).
		SetUpdate(bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"indexed_at": now.UTC()},
		}).
		SetUpsert(true)
}
