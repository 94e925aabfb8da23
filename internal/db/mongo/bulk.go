package mongo

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

// Mongo's duplicate key error code. Redelivered batches hit it on
// every insert that already landed.
const duplicateKeyCode = 11000

// Apply writes one batch of models per collection, all collections
// concurrently. Partial write errors inside a collection do not abort
// the others.
func (m *Manager) Apply(ctx context.Context, ops map[string][]mongo.WriteModel) error {
	g, gctx := errgroup.WithContext(ctx)
	for coll, models := range ops {
		if len(models) == 0 {
			continue
		}
		g.Go(func() error {
			return m.bulkWrite(gctx, coll, models)
		})
	}
	return g.Wait()
}

// bulkWrite runs one unordered BulkWrite. Write-level failures are
// logged and swallowed so sibling collections keep writing; anything
// above the write level (connection, write concern) fails the batch.
func (m *Manager) bulkWrite(ctx context.Context, coll string, models []mongo.WriteModel) error {
	_, err := m.db.Collection(coll).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err == nil {
		return nil
	}

	bwe, ok := err.(mongo.BulkWriteException)
	if !ok {
		return fmt.Errorf("bulk write to %s: %w", coll, err)
	}

	duplicates := 0
	for _, we := range bwe.WriteErrors {
		if we.Code == duplicateKeyCode {
			duplicates++
			continue
		}
		m.log.WithFields(log.Fields{
			"collection": coll,
			"code":       we.Code,
		}).WithError(we.WriteError).Error("write failed, dropped")
	}
	if duplicates > 0 {
		m.log.WithFields(log.Fields{
			"collection": coll,
			"count":      duplicates,
		}).Error("duplicate keys")
	}
	if bwe.WriteConcernError != nil {
		return fmt.Errorf("bulk write to %s: write concern: %s", coll, bwe.WriteConcernError.Message)
	}
	return nil
}
