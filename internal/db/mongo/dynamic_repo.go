package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wolfgang/internal/core/dynamic"
)

// DynamicDataRepository reads and appends dynamic_data documents. The
// collection is append-only; readers always want the newest document
// per name, which insertion-ordered ObjectIDs give us for free.
type DynamicDataRepository struct {
	db *mongo.Database
}

func NewDynamicDataRepository(db *mongo.Database) *DynamicDataRepository {
	return &DynamicDataRepository{db: db}
}

// Append inserts a fresh document under name.
func (r *DynamicDataRepository) Append(ctx context.Context, name string, data any) error {
	_, err := r.db.Collection(CollDynamicData).InsertOne(ctx, bson.M{
		"name":       name,
		"data":       data,
		"created_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("appending dynamic data %s: %w", name, err)
	}
	return nil
}

// Latest returns the newest document with that name, or
// dynamic.ErrNotFound.
func (r *DynamicDataRepository) Latest(ctx context.Context, name string) (*dynamic.Document, error) {
	var doc dynamic.Document
	err := r.db.Collection(CollDynamicData).
		FindOne(ctx, bson.M{"name": name}, options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, dynamic.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading dynamic data %s: %w", name, err)
	}
	return &doc, nil
}
