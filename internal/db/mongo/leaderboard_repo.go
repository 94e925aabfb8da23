package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"wolfgang/internal/core/dynamic"
	"wolfgang/internal/core/interactions"
)

// LeaderboardRepository runs the site-wide rankings behind the
// scheduler jobs. Same pipelines as the per-actor aggregation, minus
// the actor match.
type LeaderboardRepository struct {
	db *mongo.Database
}

func NewLeaderboardRepository(db *mongo.Database) dynamic.Repository {
	return &LeaderboardRepository{db: db}
}

func (r *LeaderboardRepository) TopByKind(ctx context.Context, kind interactions.Kind, dir interactions.Direction, since time.Time) ([]interactions.KindCount, error) {
	coll := r.db.Collection(kind.Collection())
	return aggregateCounts(ctx, coll, topByKindPipeline(dir, since))
}

func (r *LeaderboardRepository) TopBlocks(ctx context.Context, dir interactions.Direction, since time.Time) ([]interactions.KindCount, error) {
	coll := r.db.Collection(CollBlocks)
	return aggregateCounts(ctx, coll, topBlocksPipeline(dir, since))
}

// topByKindPipeline ranks the whole window: sent ranks authors, rcvd
// ranks subjects.
func topByKindPipeline(dir interactions.Direction, since time.Time) mongo.Pipeline {
	group := "$s"
	if dir == interactions.DirectionSent {
		group = "$a"
	}
	return countPipeline(bson.M{"t": bson.M{"$gte": since}}, group)
}

// topBlocksPipeline ranks blockers (sent) or block targets (rcvd) over
// the window. Block documents carry no character field, so $sum on c
// contributes zero.
func topBlocksPipeline(dir interactions.Direction, since time.Time) mongo.Pipeline {
	group := "$subject"
	if dir == interactions.DirectionSent {
		group = "$author"
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"created_at": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id": group,
			"n":   bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "n", Value: -1}}}},
		{{Key: "$limit", Value: aggregationLimit}},
	}
}
