package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"wolfgang/internal/atproto/appview"
	"wolfgang/internal/config"
	"wolfgang/internal/core/dynamic"
	mongoRepo "wolfgang/internal/db/mongo"
)

// defaultSchedule refreshes the boards every three hours.
const defaultSchedule = "0 */3 * * *"

func main() {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := mongoRepo.Connect(ctx, cfg.MongoURI, cfg.FARTDB)
	if err != nil {
		log.WithError(err).Fatal("mongo connect failed")
	}
	defer store.Close(context.Background())

	service := dynamic.NewService(
		mongoRepo.NewLeaderboardRepository(store.Database()),
		mongoRepo.NewDynamicDataRepository(store.Database()),
		appview.NewClient(appview.DefaultHost),
	)

	refresh := func() {
		if err := service.UpdateTopInteractions(ctx); err != nil {
			log.WithError(err).Error("top interactions update failed")
		}
		if err := service.UpdateTopBlocks(ctx); err != nil {
			log.WithError(err).Error("top blocks update failed")
		}
	}

	schedule := cfg.TopInteractionsCron
	if schedule == "" {
		schedule = defaultSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, refresh); err != nil {
		log.WithError(err).WithField("schedule", schedule).Fatal("invalid schedule")
	}

	log.WithField("schedule", schedule).Info("chrono-trigger starting")

	// One refresh up front, then on the schedule.
	refresh()
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("chrono-trigger stopped")
}
