package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// Cache is a small JSON-over-KV layer used by the query service for the
// per-DID semaphore, the aggregation result cache, and the dynamic-data
// cache. Expiry comes from the bucket TTL, so entries age out on their
// own and the semaphore can never wedge permanently.
type Cache struct {
	kv nats.KeyValue
}

// NewCache wraps a KV bucket.
func NewCache(kv nats.KeyValue) *Cache {
	return &Cache{kv: kv}
}

// Get unmarshals the entry for key into v. The second return is false
// when the key is absent.
func (c *Cache) Get(key string, v any) (bool, error) {
	entry, err := c.kv.Get(cacheKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(entry.Value(), v); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Has reports whether key is present.
func (c *Cache) Has(key string) (bool, error) {
	_, err := c.kv.Get(cacheKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache check %s: %w", key, err)
	}
	return true, nil
}

// Put stores v as JSON under key.
func (c *Cache) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if _, err := c.kv.Put(cacheKey(key), data); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}

// Delete removes key; missing keys are not an error.
func (c *Cache) Delete(key string) error {
	err := c.kv.Delete(cacheKey(key))
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// cacheKey maps arbitrary strings onto the KV key alphabet. DIDs carry
// colons, which NATS keys reject; the mapping only has to be stable,
// never reversed.
func cacheKey(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}
