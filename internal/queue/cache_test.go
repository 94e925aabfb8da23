package queue

import (
	"testing"

	"github.com/nats-io/nats.go"
)

// fakeKV implements the handful of nats.KeyValue methods Cache touches;
// everything else panics through the embedded nil interface.
type fakeKV struct {
	nats.KeyValue
	data map[string][]byte
}

type fakeEntry struct {
	nats.KeyValueEntry
	value []byte
}

func (e fakeEntry) Value() []byte { return e.value }

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (f *fakeKV) Get(key string) (nats.KeyValueEntry, error) {
	v, ok := f.data[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	return fakeEntry{value: v}, nil
}

func (f *fakeKV) Put(key string, value []byte) (uint64, error) {
	f.data[key] = value
	return 1, nil
}

func (f *fakeKV) Delete(key string, _ ...nats.DeleteOpt) error {
	if _, ok := f.data[key]; !ok {
		return nats.ErrKeyNotFound
	}
	delete(f.data, key)
	return nil
}

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(newFakeKV())

	type payload struct {
		Count int    `json:"count"`
		Name  string `json:"name"`
	}

	if err := c.Put("did:plc:abc123", payload{Count: 3, Name: "x"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	var got payload
	found, err := c.Get("did:plc:abc123", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected cache hit")
	}
	if got.Count != 3 || got.Name != "x" {
		t.Errorf("got %+v", got)
	}
}

func TestCacheMiss(t *testing.T) {
	c := NewCache(newFakeKV())

	var got map[string]any
	found, err := c.Get("did:plc:missing", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Error("expected miss")
	}
}

func TestCacheHasAndDelete(t *testing.T) {
	c := NewCache(newFakeKV())

	if err := c.Put("did:plc:sem", struct{}{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	found, err := c.Has("did:plc:sem")
	if err != nil || !found {
		t.Fatalf("has = %v, %v; want true, nil", found, err)
	}

	if err := c.Delete("did:plc:sem"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	found, err = c.Has("did:plc:sem")
	if err != nil || found {
		t.Fatalf("has after delete = %v, %v; want false, nil", found, err)
	}

	// deleting again is a no-op, not an error
	if err := c.Delete("did:plc:sem"); err != nil {
		t.Errorf("double delete: %v", err)
	}
}

func TestCacheKeySanitizesColons(t *testing.T) {
	kv := newFakeKV()
	c := NewCache(kv)

	if err := c.Put("did:plc:abc", struct{}{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := kv.data["did_plc_abc"]; !ok {
		t.Errorf("expected sanitized key, have %v", keysOf(kv.data))
	}
}

func keysOf(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
