package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"wolfgang/internal/core/interactions"
)

// Aggregations return at most this many rows per kind and direction.
const aggregationLimit = 100

// InteractionRepository runs the per-actor aggregation pipelines
// behind the query service.
type InteractionRepository struct {
	db *mongo.Database
}

func NewInteractionRepository(db *mongo.Database) interactions.Repository {
	return &InteractionRepository{db: db}
}

func (r *InteractionRepository) CountByKind(ctx context.Context, kind interactions.Kind, dir interactions.Direction, did string, since time.Time) ([]interactions.KindCount, error) {
	coll := r.db.Collection(kind.Collection())
	return aggregateCounts(ctx, coll, countByKindPipeline(dir, did, since))
}

// countByKindPipeline scopes the window to one actor: sent matches
// authored edges and groups by subject, rcvd the other way around.
func countByKindPipeline(dir interactions.Direction, did string, since time.Time) mongo.Pipeline {
	match := bson.M{"t": bson.M{"$gte": since}}
	group := "$a"
	if dir == interactions.DirectionSent {
		match["a"] = did
		group = "$s"
	} else {
		match["s"] = did
	}
	return countPipeline(match, group)
}

// countPipeline groups matched edges per DID with edge and character
// sums, heaviest first.
func countPipeline(match bson.M, group string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id": group,
			"n":   bson.M{"$sum": 1},
			"c":   bson.M{"$sum": "$c"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "n", Value: -1}}}},
		{{Key: "$limit", Value: aggregationLimit}},
	}
}

func aggregateCounts(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]interactions.KindCount, error) {
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregating %s: %w", coll.Name(), err)
	}
	var rows []interactions.KindCount
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decoding %s aggregation: %w", coll.Name(), err)
	}
	return rows, nil
}
