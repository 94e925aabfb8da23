// Package config loads service configuration from environment variables.
// Every knob has a default suitable for the docker-compose deployment;
// FromEnv never fails, it logs a warning and keeps the default when a
// value does not parse.
package config

import (
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Config holds the settings shared by all binaries. Each binary reads
// only the fields it needs.
type Config struct {
	// NATSURI is the queue endpoint.
	NATSURI string
	// NATSStream is the JetStream stream name; also used as the KV
	// bucket holding the firehose cursor.
	NATSStream string
	// NATSStreamMaxAge is the stream retention in days.
	NATSStreamMaxAge int
	// NATSStreamMaxSize is the stream retention in gigabytes.
	NATSStreamMaxSize int

	// MongoURI is the document store endpoint.
	MongoURI string

	// FARTPort is the query service HTTP port.
	FARTPort int
	// FARTDB is the logical database holding all collections.
	FARTDB string
	// FARTKey is the shared API key; empty disables auth.
	FARTKey string

	// RelayHost is the firehose websocket origin.
	RelayHost string
	// PLCHost is the PLC directory used for identity resolution.
	PLCHost string

	// FirehosePort serves the subscriber's Prometheus metrics.
	FirehosePort int
	// FirehoseCheckpoint is the cursor checkpoint stride in events.
	FirehoseCheckpoint int
	// FirehoseSubjectPrefix prefixes every queue subject.
	FirehoseSubjectPrefix string

	// IndexerEnable gates writes; when false the indexer consumes and
	// acks but writes nothing (dry run).
	IndexerEnable bool
	// IndexerConsumer is the durable consumer name.
	IndexerConsumer string
	// IndexerBatchSize is the pull batch size.
	IndexerBatchSize int
	// IndexerDB is the database the indexer writes to.
	IndexerDB string

	// TopInteractionsCron is the scheduler cadence (cron expression);
	// empty means every three hours.
	TopInteractionsCron string
}

// DefaultConfig returns the compose-friendly defaults.
func DefaultConfig() Config {
	return Config{
		NATSURI:               "nats://nats:4222",
		NATSStream:            "bsky",
		NATSStreamMaxAge:      7,
		NATSStreamMaxSize:     5,
		MongoURI:              "mongodb://mongodb:27017",
		FARTPort:              8000,
		FARTDB:                "bsky",
		FARTKey:               "",
		RelayHost:             "wss://bsky.network",
		PLCHost:               "https://plc.directory",
		FirehosePort:          8888,
		FirehoseCheckpoint:    1000,
		FirehoseSubjectPrefix: "firehose",
		IndexerEnable:         false,
		IndexerConsumer:       "indexer",
		IndexerBatchSize:      1000,
		IndexerDB:             "bsky",
		TopInteractionsCron:   "",
	}
}

// FromEnv builds a Config from the environment on top of DefaultConfig.
func FromEnv() Config {
	cfg := DefaultConfig()

	cfg.NATSURI = envString("NATS_URI", cfg.NATSURI)
	cfg.NATSStream = envString("NATS_STREAM", cfg.NATSStream)
	cfg.NATSStreamMaxAge = envInt("NATS_STREAM_MAX_AGE", cfg.NATSStreamMaxAge)
	cfg.NATSStreamMaxSize = envInt("NATS_STREAM_MAX_SIZE", cfg.NATSStreamMaxSize)

	cfg.MongoURI = envString("MONGO_URI", cfg.MongoURI)

	cfg.FARTPort = envInt("FART_PORT", cfg.FARTPort)
	cfg.FARTDB = envString("FART_DB", cfg.FARTDB)
	cfg.FARTKey = envString("FART_KEY", cfg.FARTKey)

	cfg.RelayHost = envString("ATPROTO_RELAY_HOST", cfg.RelayHost)
	cfg.PLCHost = envString("ATPROTO_PLC_HOST", cfg.PLCHost)

	cfg.FirehosePort = envInt("FIREHOSE_ENJOYER_PORT", cfg.FirehosePort)
	cfg.FirehoseCheckpoint = envInt("FIREHOSE_ENJOYER_CHECKPOINT", cfg.FirehoseCheckpoint)
	cfg.FirehoseSubjectPrefix = envString("FIREHOSE_ENJOYER_SUBJECT_PREFIX", cfg.FirehoseSubjectPrefix)

	cfg.IndexerEnable = envBool("INDEXER_ENABLE", cfg.IndexerEnable)
	cfg.IndexerConsumer = envString("INDEXER_CONSUMER", cfg.IndexerConsumer)
	cfg.IndexerBatchSize = envInt("INDEXER_BATCH_SIZE", cfg.IndexerBatchSize)
	cfg.IndexerDB = envString("INDEXER_DB", cfg.IndexerDB)

	cfg.TopInteractionsCron = envString("CHRONO_TRIGGER_TOP_INTERACTIONS_INTERVAL", cfg.TopInteractionsCron)

	return cfg
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": v, "default": def}).Warn("invalid integer in environment, using default")
		return def
	}
	return n
}

// envBool treats "0", "false", "f" and the empty string as false; any
// other set value is true.
func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "0", "false", "f", "":
		return false
	}
	return true
}
