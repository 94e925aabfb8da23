// Package metrics holds the Prometheus instrumentation for the firehose
// subscriber and serves the scrape endpoint.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Firehose counts what the subscriber sees on the wire. Labels stay
// low-cardinality: lang is truncated to two characters, collection is
// limited to the NSIDs the pipeline subscribes to.
type Firehose struct {
	NetworkBytes prometheus.Counter
	Events       prometheus.Counter
	PostLangs    *prometheus.CounterVec
	Accounts     *prometheus.CounterVec
	Identities   prometheus.Counter
	Operations   *prometheus.CounterVec
	Errors       *prometheus.CounterVec
}

// NewFirehose registers the subscriber counters on reg.
func NewFirehose(reg prometheus.Registerer) *Firehose {
	return &Firehose{
		NetworkBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "firehose_network_bytes_total",
			Help: "Bytes read from the relay connection.",
		}),
		Events: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "firehose_events_total",
			Help: "Stream events received, before any filtering.",
		}),
		PostLangs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "firehose_post_langs_total",
			Help: "Posts seen, by declared primary language.",
		}, []string{"lang"}),
		Accounts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "firehose_account_events_total",
			Help: "Account status events, by active flag and status.",
		}, []string{"active", "status"}),
		Identities: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "firehose_identity_events_total",
			Help: "Identity events received.",
		}),
		Operations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "firehose_operations_total",
			Help: "Repo operations published, by operation and collection.",
		}, []string{"operation", "collection"}),
		Errors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "firehose_errors_total",
			Help: "Events dropped or retried, by processing stage.",
		}, []string{"stage"}),
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("metrics server shutdown failed")
		}
	}()

	log.WithField("addr", addr).Info("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
