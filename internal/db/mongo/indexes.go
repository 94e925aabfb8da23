package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wolfgang/internal/core/events"
	"wolfgang/internal/core/interactions"
)

// Collection names. Record collections are named by the NSID they
// hold; the per-kind interaction collections are derived from
// interactions.Kind.Collection.
const (
	CollPosts       = events.CollectionPost
	CollProfiles    = events.CollectionProfile
	CollBlocks      = events.CollectionBlock
	CollDynamicData = "dynamic_data"
)

// StatsCollections is the fixed set reported by the collection stats
// endpoint.
var StatsCollections = []string{
	interactions.KindLike.Collection(),
	interactions.KindRepost.Collection(),
	interactions.KindPost.Collection(),
	CollPosts,
	CollProfiles,
	CollBlocks,
	CollDynamicData,
}

const (
	interactionTTLSeconds = 15 * 24 * 60 * 60
	postTTLSeconds        = 8 * 24 * 60 * 60
)

// EnsureIndexes creates the query and retention indexes. CreateMany is
// idempotent for identical definitions, so this runs on every indexer
// start.
func (m *Manager) EnsureIndexes(ctx context.Context) error {
	for _, kind := range interactions.Kinds {
		coll := m.db.Collection(kind.Collection())
		_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "a", Value: 1}, {Key: "t", Value: 1}}},
			{Keys: bson.D{{Key: "s", Value: 1}, {Key: "t", Value: 1}}},
			{
				Keys:    bson.D{{Key: "t", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(interactionTTLSeconds),
			},
		})
		if err != nil {
			return fmt.Errorf("creating indexes on %s: %w", kind.Collection(), err)
		}
	}

	_, err := m.db.Collection(CollBlocks).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "author", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "subject", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating indexes on %s: %w", CollBlocks, err)
	}

	_, err = m.db.Collection(CollPosts).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "indexed_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(postTTLSeconds),
	})
	if err != nil {
		return fmt.Errorf("creating indexes on %s: %w", CollPosts, err)
	}

	m.log.Info("indexes ensured")
	return nil
}
