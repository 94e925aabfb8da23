package firehose

import (
	"errors"
	"testing"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wolfgang/internal/core/events"
	"wolfgang/internal/metrics"
)

// fakeCursors implements the two KV methods the subscriber touches.
type fakeCursors struct {
	data map[string][]byte
	puts int
}

type fakeEntry struct {
	nats.KeyValueEntry
	value []byte
}

func (e fakeEntry) Value() []byte { return e.value }

func newFakeCursors() *fakeCursors {
	return &fakeCursors{data: make(map[string][]byte)}
}

func (f *fakeCursors) Get(key string) (nats.KeyValueEntry, error) {
	v, ok := f.data[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	return fakeEntry{value: v}, nil
}

func (f *fakeCursors) Put(key string, value []byte) (uint64, error) {
	f.data[key] = value
	f.puts++
	return 1, nil
}

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func newTestSubscriber(cfg Config, pub Publisher, cursors CursorStore) *Subscriber {
	return New(cfg, pub, cursors, metrics.NewFirehose(prometheus.NewRegistry()))
}

func TestCursorRoundTrip(t *testing.T) {
	cursors := newFakeCursors()
	s := newTestSubscriber(Config{}, &fakePublisher{}, cursors)

	cur, err := s.loadCursor()
	require.NoError(t, err)
	assert.Zero(t, cur)

	require.NoError(t, s.saveCursor(123456))

	cur, err = s.loadCursor()
	require.NoError(t, err)
	assert.Equal(t, int64(123456), cur)
}

func TestLoadCursorGarbage(t *testing.T) {
	cursors := newFakeCursors()
	cursors.data[cursorKey] = []byte("not a number")
	s := newTestSubscriber(Config{}, &fakePublisher{}, cursors)

	_, err := s.loadCursor()
	require.Error(t, err)
}

func TestCheckpointStride(t *testing.T) {
	cursors := newFakeCursors()
	s := newTestSubscriber(Config{CheckpointEvery: 100}, &fakePublisher{}, cursors)

	s.checkpoint(150)
	assert.Zero(t, cursors.puts, "off-stride seq must not persist")
	assert.Zero(t, s.lastCursor())

	s.checkpoint(200)
	assert.Equal(t, 1, cursors.puts)
	assert.Equal(t, int64(200), s.lastCursor())
	assert.Equal(t, []byte("200"), cursors.data[cursorKey])
}

func TestCheckpointDisabled(t *testing.T) {
	cursors := newFakeCursors()
	s := newTestSubscriber(Config{CheckpointEvery: 0}, &fakePublisher{}, cursors)

	s.checkpoint(100)
	assert.Zero(t, cursors.puts)
}

func TestStreamURL(t *testing.T) {
	s := newTestSubscriber(Config{RelayHost: "wss://relay.test"}, &fakePublisher{}, newFakeCursors())

	assert.Equal(t, "wss://relay.test/xrpc/com.atproto.sync.subscribeRepos", s.streamURL())

	s.setCursor(9000)
	assert.Equal(t, "wss://relay.test/xrpc/com.atproto.sync.subscribeRepos?cursor=9000", s.streamURL())
}

func TestHandleAccountPublishes(t *testing.T) {
	pub := &fakePublisher{}
	s := newTestSubscriber(Config{SubjectPrefix: "firehose", CheckpointEvery: 10}, pub, newFakeCursors())

	status := "takendown"
	err := s.handleAccount(&comatproto.SyncSubscribeRepos_Account{
		Did:    "did:plc:alice",
		Active: false,
		Status: &status,
		Seq:    20,
		Time:   "2025-06-01T00:00:00Z",
	})
	require.NoError(t, err)

	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "firehose.account", pub.subjects[0])

	evt, err := events.Decode(pub.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, events.KindAccount, evt.Kind)
	assert.Equal(t, "did:plc:alice", evt.Account.DID)
	assert.False(t, evt.Account.Active)
	require.NotNil(t, evt.Account.Status)
	assert.Equal(t, "takendown", *evt.Account.Status)

	// seq 20 is on the stride, so the cursor moved
	assert.Equal(t, int64(20), s.lastCursor())
}

func TestHandleIdentityPublishes(t *testing.T) {
	pub := &fakePublisher{}
	s := newTestSubscriber(Config{SubjectPrefix: "firehose"}, pub, newFakeCursors())

	handle := "alice.test"
	err := s.handleIdentity(&comatproto.SyncSubscribeRepos_Identity{
		Did:    "did:plc:alice",
		Handle: &handle,
		Seq:    7,
		Time:   "2025-06-01T00:00:00Z",
	})
	require.NoError(t, err)

	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "firehose.identity", pub.subjects[0])

	evt, err := events.Decode(pub.payloads[0])
	require.NoError(t, err)
	require.NotNil(t, evt.Identity.Handle)
	assert.Equal(t, "alice.test", *evt.Identity.Handle)
}

func TestHandleAccountPublishFailureKeepsStreaming(t *testing.T) {
	pub := &fakePublisher{err: errors.New("queue down")}
	cursors := newFakeCursors()
	s := newTestSubscriber(Config{SubjectPrefix: "firehose", CheckpointEvery: 1}, pub, cursors)

	err := s.handleAccount(&comatproto.SyncSubscribeRepos_Account{Did: "did:plc:alice", Seq: 5})
	require.NoError(t, err, "a dropped publish must not end the session")
	assert.Equal(t, 1, cursors.puts, "checkpointing is independent of publish outcomes")
}

func TestLangLabel(t *testing.T) {
	cases := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{"absent", map[string]any{"text": "hi"}, "none"},
		{"empty list", map[string]any{"langs": []any{}}, "empty"},
		{"empty string", map[string]any{"langs": []any{""}}, "empty"},
		{"plain tag", map[string]any{"langs": []any{"pt"}}, "pt"},
		{"regional tag", map[string]any{"langs": []any{"en-US", "pt"}}, "en"},
		{"uppercase", map[string]any{"langs": []any{"PT-BR"}}, "pt"},
		{"wrong type", map[string]any{"langs": "en"}, "empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, langLabel(tc.record))
		})
	}
}
