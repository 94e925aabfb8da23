// Package firehose subscribes to a relay's com.atproto.sync.subscribeRepos
// stream and republishes the interesting slice of it onto the queue. It is
// the only stateful part of ingestion: the stream cursor lives in a KV
// bucket so a restart resumes where it left off instead of tailing live
// and silently skipping the gap.
package firehose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	atevents "github.com/bluesky-social/indigo/events"
	"github.com/bluesky-social/indigo/events/schedulers/sequential"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"wolfgang/internal/metrics"
)

const (
	cursorKey = "cursor"
	userAgent = "wolfgang/1.0"

	// A session that survives this long counts as healthy and resets
	// the reconnect backoff.
	healthySession = time.Minute
)

// Config carries the subscriber knobs.
type Config struct {
	// RelayHost is the websocket origin, e.g. wss://bsky.network.
	RelayHost string
	// SubjectPrefix prefixes every published queue subject.
	SubjectPrefix string
	// CheckpointEvery is the cursor persistence stride in events;
	// zero or negative disables checkpointing.
	CheckpointEvery int64
}

// Publisher is the queue side the subscriber needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// CursorStore persists the resume cursor between runs. A JetStream KV
// bucket satisfies it.
type CursorStore interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
}

// Subscriber consumes the relay stream and fans events out per
// collection. Event handlers run on a sequential scheduler, so ordering
// within the stream is preserved end to end.
type Subscriber struct {
	cfg     Config
	pub     Publisher
	cursors CursorStore
	metrics *metrics.Firehose
	log     *log.Entry

	mu     sync.Mutex
	cursor int64
}

// New builds a Subscriber. Run starts it.
func New(cfg Config, pub Publisher, cursors CursorStore, m *metrics.Firehose) *Subscriber {
	return &Subscriber{
		cfg:     cfg,
		pub:     pub,
		cursors: cursors,
		metrics: m,
		log:     log.WithField("component", "firehose"),
	}
}

// Run consumes the stream until ctx is cancelled, reconnecting with
// exponential backoff from the last checkpointed cursor.
func (s *Subscriber) Run(ctx context.Context) error {
	cur, err := s.loadCursor()
	if err != nil {
		return err
	}
	s.setCursor(cur)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for {
		started := time.Now()
		err := s.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > healthySession {
			bo.Reset()
		}
		wait := bo.NextBackOff()
		s.metrics.Errors.WithLabelValues("stream").Inc()
		s.log.WithError(err).WithField("retry_in", wait.String()).Warn("relay stream ended, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// stream runs one websocket session. It returns when the connection
// drops, the relay sends an error frame, or ctx is cancelled.
func (s *Subscriber) stream(ctx context.Context) error {
	u := s.streamURL()
	con, _, err := s.dialer().DialContext(ctx, u, http.Header{"User-Agent": []string{userAgent}})
	if err != nil {
		return fmt.Errorf("dialing relay: %w", err)
	}
	s.log.WithField("url", u).Info("connected to relay")

	rsc := &atevents.RepoStreamCallbacks{
		RepoCommit: func(evt *comatproto.SyncSubscribeRepos_Commit) error {
			return s.handleCommit(ctx, evt)
		},
		RepoIdentity: s.handleIdentity,
		RepoAccount:  s.handleAccount,
		Error: func(frame *atevents.ErrorFrame) error {
			return fmt.Errorf("error frame from relay: %s: %s", frame.Error, frame.Message)
		},
	}
	sched := sequential.NewScheduler("wolfgang_firehose", rsc.EventHandler)
	return atevents.HandleRepoStream(ctx, con, sched, slog.Default().With("component", "repo_stream"))
}

// streamURL appends the cursor when one is known; without it the relay
// starts at the live tail.
func (s *Subscriber) streamURL() string {
	u := s.cfg.RelayHost + "/xrpc/com.atproto.sync.subscribeRepos"
	if cur := s.lastCursor(); cur > 0 {
		u += fmt.Sprintf("?cursor=%d", cur)
	}
	return u
}

func (s *Subscriber) dialer() *websocket.Dialer {
	return &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var nd net.Dialer
			conn, err := nd.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &countingConn{Conn: conn, bytes: s.metrics.NetworkBytes}, nil
		},
	}
}

// checkpoint persists seq once per stride. A crash replays at most one
// stride; downstream writes are keyed, so replayed events collapse into
// duplicates the indexer already drops.
func (s *Subscriber) checkpoint(seq int64) {
	if s.cfg.CheckpointEvery <= 0 || seq%s.cfg.CheckpointEvery != 0 {
		return
	}
	if err := s.saveCursor(seq); err != nil {
		s.log.WithError(err).WithField("seq", seq).Warn("cursor save failed")
		return
	}
	s.setCursor(seq)
}

func (s *Subscriber) loadCursor() (int64, error) {
	entry, err := s.cursors.Get(cursorKey)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("loading cursor: %w", err)
	}
	cur, err := strconv.ParseInt(string(entry.Value()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing stored cursor %q: %w", entry.Value(), err)
	}
	return cur, nil
}

func (s *Subscriber) saveCursor(seq int64) error {
	_, err := s.cursors.Put(cursorKey, []byte(strconv.FormatInt(seq, 10)))
	return err
}

func (s *Subscriber) lastCursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Subscriber) setCursor(v int64) {
	s.mu.Lock()
	s.cursor = v
	s.mu.Unlock()
}

// countingConn feeds the network-bytes counter from raw reads. Over a
// wss relay this measures ciphertext, which is what actually crossed
// the wire.
type countingConn struct {
	net.Conn
	bytes prometheus.Counter
}

func (c *countingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.bytes.Add(float64(n))
	}
	return n, err
}
