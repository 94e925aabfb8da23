package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"wolfgang/internal/api/handlers"
	"wolfgang/internal/api/routes"
	"wolfgang/internal/atproto/appview"
	"wolfgang/internal/atproto/identity"
	"wolfgang/internal/circles"
	"wolfgang/internal/config"
	"wolfgang/internal/core/interactions"
	mongoRepo "wolfgang/internal/db/mongo"
	"wolfgang/internal/queue"
)

// KV buckets behind the handlers. The TTL bounds how long a crashed
// aggregation keeps an actor locked and how long answers stay warm.
const (
	semaphoreBucket = "interactions_semaphore"
	resultsBucket   = "interactions_data"
	dynamicBucket   = "dynamic_data_cache"
	cacheTTL        = 600 * time.Second
)

func main() {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := mongoRepo.Connect(ctx, cfg.MongoURI, cfg.FARTDB)
	if err != nil {
		log.WithError(err).Fatal("mongo connect failed")
	}
	defer store.Close(context.Background())

	qm, err := queue.Connect(cfg.NATSURI, cfg.NATSStream, "fart")
	if err != nil {
		log.WithError(err).Fatal("queue connect failed")
	}
	defer qm.Close()

	semaphoreKV, err := qm.KeyValue(semaphoreBucket, cacheTTL)
	if err != nil {
		log.WithError(err).Fatal("semaphore bucket setup failed")
	}
	resultsKV, err := qm.KeyValue(resultsBucket, cacheTTL)
	if err != nil {
		log.WithError(err).Fatal("results bucket setup failed")
	}
	dynamicKV, err := qm.KeyValue(dynamicBucket, cacheTTL)
	if err != nil {
		log.WithError(err).Fatal("dynamic data bucket setup failed")
	}

	// Services
	service := interactions.NewService(mongoRepo.NewInteractionRepository(store.Database()))
	resolver := identity.NewResolver(identity.Config{PLCHost: cfg.PLCHost})
	renderer, err := circles.NewRenderer()
	if err != nil {
		log.WithError(err).Fatal("renderer setup failed")
	}

	h := routes.Handlers{
		Interactions: handlers.NewInteractionsHandler(resolver, service, queue.NewCache(semaphoreKV), queue.NewCache(resultsKV)),
		Circles:      handlers.NewCirclesHandler(resolver, service, appview.NewClient(appview.DefaultHost), circles.NewFetcher(), renderer),
		DynamicData:  handlers.NewDynamicDataHandler(mongoRepo.NewDynamicDataRepository(store.Database()), queue.NewCache(dynamicKV)),
		Stats:        handlers.NewStatsHandler(mongoRepo.NewStatsRepository(store.Database())),
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.FARTPort),
		Handler: routes.New(h, cfg.FARTKey),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown failed")
		}
	}()

	log.WithField("port", cfg.FARTPort).Info("fart starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("fart stopped")
	}
	log.Info("fart stopped")
}
