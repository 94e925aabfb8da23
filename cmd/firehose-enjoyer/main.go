package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"wolfgang/internal/atproto/firehose"
	"wolfgang/internal/config"
	"wolfgang/internal/metrics"
	"wolfgang/internal/queue"
)

func main() {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Queue: the event stream plus the KV bucket holding the cursor
	qm, err := queue.Connect(cfg.NATSURI, cfg.NATSStream, "firehose-enjoyer")
	if err != nil {
		log.WithError(err).Fatal("queue connect failed")
	}
	defer qm.Close()

	if err := qm.EnsureStream([]string{cfg.FirehoseSubjectPrefix}, cfg.NATSStreamMaxAge, cfg.NATSStreamMaxSize); err != nil {
		log.WithError(err).Fatal("stream setup failed")
	}

	cursors, err := qm.KeyValue(cfg.NATSStream, 0)
	if err != nil {
		log.WithError(err).Fatal("cursor bucket setup failed")
	}

	reg := prometheus.NewRegistry()
	sub := firehose.New(firehose.Config{
		RelayHost:       cfg.RelayHost,
		SubjectPrefix:   cfg.FirehoseSubjectPrefix,
		CheckpointEvery: int64(cfg.FirehoseCheckpoint),
	}, qm, cursors, metrics.NewFirehose(reg))

	log.WithFields(log.Fields{"relay": cfg.RelayHost, "stream": cfg.NATSStream}).Info("firehose-enjoyer starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(gctx, fmt.Sprintf(":%d", cfg.FirehosePort), reg)
	})
	g.Go(func() error {
		return sub.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("firehose-enjoyer stopped")
	}
	log.Info("firehose-enjoyer stopped")
}
