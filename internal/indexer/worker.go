// Package indexer consumes firehose events off the stream in batches
// and turns them into store writes: interaction edges, post tallies,
// profiles, and blocks.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"wolfgang/internal/core/events"
	"wolfgang/internal/core/interactions"
	"wolfgang/internal/core/profiles"
	mongoRepo "wolfgang/internal/db/mongo"
	"wolfgang/internal/queue"
)

// Store applies write models grouped by collection.
type Store interface {
	Apply(ctx context.Context, ops map[string][]mongo.WriteModel) error
}

// Batch writes run on their own context: a shutdown signal stops the
// fetch loop, but the batch already pulled must still land before its
// ack. The timeout stays under the consumer's 60s ack wait so a stuck
// store surfaces as a redelivery, not a wedged shutdown.
const writeTimeout = 30 * time.Second

// Worker turns event batches into store writes. With enabled false it
// drains the consumer without writing, which keeps the stream cursor
// current while the store is worked on.
type Worker struct {
	store   Store
	enabled bool
	log     *log.Entry
}

func New(store Store, enabled bool) *Worker {
	return &Worker{
		store:   store,
		enabled: enabled,
		log:     log.WithField("component", "indexer"),
	}
}

// Handler adapts the worker to the queue's batch callback. The
// consumer acks all-up-to, so acking the last message acks the batch.
func (w *Worker) Handler() queue.BatchHandler {
	return func(msgs []*nats.Msg) {
		w.process(msgs)
		if err := msgs[len(msgs)-1].Ack(); err != nil {
			w.log.WithError(err).Warn("ack failed")
		}
	}
}

// process decodes and applies one batch. Undecodable or unconvertible
// events are logged and dropped. Store failures are logged, never
// retried: redelivered inserts would only collide on _id, and the TTL
// indexes age out anything a lost batch leaves behind.
func (w *Worker) process(msgs []*nats.Msg) {
	if !w.enabled {
		return
	}

	now := time.Now()
	batch := make(map[string][]mongo.WriteModel)
	for _, msg := range msgs {
		evt, err := events.Decode(msg.Data)
		if err != nil {
			w.log.WithError(err).WithField("subject", msg.Subject).Warn("undecodable event dropped")
			continue
		}
		ops, err := eventOps(evt, now)
		if err != nil {
			w.log.WithError(err).WithField("subject", msg.Subject).Warn("event skipped")
			continue
		}
		for coll, models := range ops {
			batch[coll] = append(batch[coll], models...)
		}
	}

	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := w.store.Apply(ctx, batch); err != nil {
		w.log.WithError(err).Error("batch write failed")
	}
}

// eventOps routes one event to its write models, keyed by store
// collection.
func eventOps(evt *events.Event, now time.Time) (map[string][]mongo.WriteModel, error) {
	switch evt.Kind {
	case events.KindAccount:
		return singleOp(mongoRepo.CollProfiles, profiles.FromAccount(evt.Account, now)), nil
	case events.KindIdentity:
		return singleOp(mongoRepo.CollProfiles, profiles.FromIdentity(evt.Identity, now)), nil
	case events.KindCommit:
		return commitOps(evt.Commit, now)
	}
	return nil, fmt.Errorf("unhandled event kind %q", evt.Kind)
}

func commitOps(commit *events.Commit, now time.Time) (map[string][]mongo.WriteModel, error) {
	switch {
	case commit.Collection == events.CollectionProfile:
		model, err := profiles.FromCommit(commit, now)
		if err != nil {
			return nil, err
		}
		return singleOp(mongoRepo.CollProfiles, model), nil

	case commit.Collection == events.CollectionBlock:
		model, err := profiles.BlockFromCommit(commit, now)
		if err != nil {
			return nil, err
		}
		if model == nil {
			return nil, nil
		}
		return singleOp(mongoRepo.CollBlocks, model), nil

	case events.IsInteraction(commit.Collection):
		return interactions.ExtractCommit(commit, now)
	}
	return nil, fmt.Errorf("unhandled collection %q", commit.Collection)
}

func singleOp(coll string, model mongo.WriteModel) map[string][]mongo.WriteModel {
	return map[string][]mongo.WriteModel{coll: {model}}
}
