// Package queue wraps the NATS JetStream primitives the pipeline uses:
// a single durable stream for firehose events, pull consumers for the
// indexer, and KV buckets for the cursor and the query-service caches.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Manager owns one NATS connection and its JetStream context. One
// Manager per process, shared by reference.
type Manager struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	stream string
	log    *log.Entry
}

// Connect dials NATS and initializes JetStream. name shows up in server
// monitoring; stream is the stream every other method operates on.
func Connect(uri, stream, name string) (*Manager, error) {
	nc, err := nats.Connect(uri,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", uri, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("initializing jetstream: %w", err)
	}

	return &Manager{
		nc:     nc,
		js:     js,
		stream: stream,
		log:    log.WithField("component", "queue"),
	}, nil
}

// Close drains the connection, falling back to a hard close.
func (m *Manager) Close() {
	if m.nc == nil || m.nc.IsClosed() {
		return
	}
	if err := m.nc.Drain(); err != nil {
		m.log.WithError(err).Warn("drain failed, closing connection")
		m.nc.Close()
	}
}

// streamConfig is the limits-retention stream shape shared by every
// deployment: file-backed, S2-compressed, oldest messages discarded
// first.
func streamConfig(stream string, prefixes []string, maxAgeDays, maxSizeGB int) *nats.StreamConfig {
	subjects := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		subjects = append(subjects, p+".>")
	}
	return &nats.StreamConfig{
		Name:        stream,
		Subjects:    subjects,
		Retention:   nats.LimitsPolicy,
		Discard:     nats.DiscardOld,
		MaxAge:      time.Duration(maxAgeDays) * 24 * time.Hour,
		MaxBytes:    int64(maxSizeGB) << 30,
		Storage:     nats.FileStorage,
		Compression: nats.S2Compression,
	}
}

// consumerConfig is the durable pull consumer shape. Ack-all lets the
// indexer ack a whole batch through its last message; ack-wait covers
// one slow batch write.
func consumerConfig(consumer, filterSubject string) *nats.ConsumerConfig {
	return &nats.ConsumerConfig{
		Durable:       consumer,
		FilterSubject: filterSubject,
		DeliverPolicy: nats.DeliverAllPolicy,
		AckPolicy:     nats.AckAllPolicy,
		AckWait:       60 * time.Second,
		MaxAckPending: -1,
	}
}

// EnsureStream creates or updates the stream covering "<prefix>.>" for
// every prefix.
func (m *Manager) EnsureStream(prefixes []string, maxAgeDays, maxSizeGB int) error {
	cfg := streamConfig(m.stream, prefixes, maxAgeDays, maxSizeGB)

	if _, err := m.js.UpdateStream(cfg); err == nil {
		m.log.WithField("stream", m.stream).Info("stream updated")
		return nil
	}
	if _, err := m.js.AddStream(cfg); err != nil {
		return fmt.Errorf("creating stream %s: %w", m.stream, err)
	}
	m.log.WithField("stream", m.stream).Info("stream created")
	return nil
}

// KeyValue returns the named KV bucket, creating it with the given TTL
// when absent. A zero TTL keeps entries forever.
func (m *Manager) KeyValue(bucket string, ttl time.Duration) (nats.KeyValue, error) {
	kv, err := m.js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, fmt.Errorf("opening kv bucket %s: %w", bucket, err)
	}

	kv, err = m.js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket, TTL: ttl})
	if err != nil {
		return nil, fmt.Errorf("creating kv bucket %s: %w", bucket, err)
	}
	m.log.WithField("bucket", bucket).Info("kv bucket created")
	return kv, nil
}

// EnsureConsumer creates the durable pull consumer when absent.
func (m *Manager) EnsureConsumer(consumer, filterSubject string) error {
	if _, err := m.js.ConsumerInfo(m.stream, consumer); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("looking up consumer %s: %w", consumer, err)
	}

	_, err := m.js.AddConsumer(m.stream, consumerConfig(consumer, filterSubject))
	if err != nil {
		return fmt.Errorf("creating consumer %s: %w", consumer, err)
	}
	m.log.WithField("consumer", consumer).Info("consumer created")
	return nil
}

// Publish appends one message to the stream.
func (m *Manager) Publish(subject string, data []byte) error {
	if _, err := m.js.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// BatchHandler processes one fetched batch. The handler owns acking.
type BatchHandler func(msgs []*nats.Msg)

// PullSubscribe binds to the durable consumer and fetches batches until
// ctx is done. Fetch timeouts are the idle heartbeat of the loop; any
// other fetch error is logged and the loop keeps going, so a NATS
// restart does not kill the worker.
func (m *Manager) PullSubscribe(ctx context.Context, consumer string, batchSize int, handler BatchHandler) error {
	sub, err := m.js.PullSubscribe("", consumer, nats.Bind(m.stream, consumer))
	if err != nil {
		return fmt.Errorf("binding to consumer %s: %w", consumer, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			m.log.WithError(err).Warn("unsubscribe failed")
		}
	}()

	m.log.WithFields(log.Fields{"stream": m.stream, "consumer": consumer}).Info("pull subscription started")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(batchSize, nats.MaxWait(time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) {
				return fmt.Errorf("connection closed while fetching: %w", err)
			}
			m.log.WithError(err).Error("fetch failed")
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		handler(msgs)
	}
}
