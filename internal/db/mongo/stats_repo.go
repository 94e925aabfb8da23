package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// StatsRepository reports estimated document counts for the fixed set
// of pipeline collections. Estimated counts read collection metadata,
// not documents, so polling this is cheap.
type StatsRepository struct {
	db *mongo.Database
}

func NewStatsRepository(db *mongo.Database) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) EstimatedCounts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(StatsCollections))
	for _, name := range StatsCollections {
		n, err := r.db.Collection(name).EstimatedDocumentCount(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", name, err)
		}
		out[name] = n
	}
	return out, nil
}
