package main

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"wolfgang/internal/config"
	"wolfgang/internal/db/mongo"
	"wolfgang/internal/indexer"
	"wolfgang/internal/queue"
)

func main() {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.IndexerDB)
	if err != nil {
		log.WithError(err).Fatal("mongo connect failed")
	}
	defer store.Close(context.Background())

	if err := store.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("index setup failed")
	}

	qm, err := queue.Connect(cfg.NATSURI, cfg.NATSStream, "indexer")
	if err != nil {
		log.WithError(err).Fatal("queue connect failed")
	}
	defer qm.Close()

	if err := qm.EnsureConsumer(cfg.IndexerConsumer, cfg.FirehoseSubjectPrefix+".>"); err != nil {
		log.WithError(err).Fatal("consumer setup failed")
	}

	worker := indexer.New(store, cfg.IndexerEnable)

	log.WithFields(log.Fields{
		"consumer": cfg.IndexerConsumer,
		"batch":    cfg.IndexerBatchSize,
		"enabled":  cfg.IndexerEnable,
	}).Info("indexer starting")

	if err := qm.PullSubscribe(ctx, cfg.IndexerConsumer, cfg.IndexerBatchSize, worker.Handler()); err != nil {
		log.WithError(err).Fatal("indexer stopped")
	}
	log.Info("indexer stopped")
}
