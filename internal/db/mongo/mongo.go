// Package mongo implements the document store behind the indexer, the
// query service, and the scheduler: interaction edges, post tallies,
// profiles, blocks, and the append-only dynamic_data collection.
package mongo

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Manager owns one client and the database every repository reads
// and writes. One Manager per process, shared by reference.
type Manager struct {
	client *mongo.Client
	db     *mongo.Database
	log    *log.Entry
}

// Connect dials MongoDB and pings the primary so misconfiguration
// fails at startup instead of on the first write.
func Connect(ctx context.Context, uri, database string) (*Manager, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &Manager{
		client: client,
		db:     client.Database(database),
		log:    log.WithField("component", "mongo"),
	}, nil
}

// Close disconnects the client.
func (m *Manager) Close(ctx context.Context) {
	if err := m.client.Disconnect(ctx); err != nil {
		m.log.WithError(err).Warn("mongo disconnect failed")
	}
}

// Database exposes the underlying handle for the repositories.
func (m *Manager) Database() *mongo.Database {
	return m.db
}
