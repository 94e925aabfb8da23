// Package events defines the typed messages flowing from the firehose
// subscriber to the indexer over the internal queue, and the collection
// NSIDs the pipeline cares about.
package events

import (
	"encoding/json"
	"fmt"
)

// Collection NSIDs indexed by the pipeline.
const (
	CollectionLike    = "app.bsky.feed.like"
	CollectionPost    = "app.bsky.feed.post"
	CollectionRepost  = "app.bsky.feed.repost"
	CollectionProfile = "app.bsky.actor.profile"
	CollectionBlock   = "app.bsky.graph.block"
)

// Embed type discriminators found in post records.
const (
	EmbedRecord          = "app.bsky.embed.record"
	EmbedRecordWithMedia = "app.bsky.embed.recordWithMedia"
)

// Event kinds.
const (
	KindAccount  = "account"
	KindIdentity = "identity"
	KindCommit   = "commit"
)

// Commit operations, matching the upstream op actions.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Interested reports whether records of the given collection are
// consumed by the pipeline at all.
func Interested(collection string) bool {
	switch collection {
	case CollectionLike, CollectionPost, CollectionRepost, CollectionProfile, CollectionBlock:
		return true
	}
	return false
}

// IsInteraction reports whether the collection contributes interaction
// edges (and post tallies).
func IsInteraction(collection string) bool {
	switch collection {
	case CollectionLike, CollectionPost, CollectionRepost:
		return true
	}
	return false
}

// Event is the tagged union published to the queue, one JSON document
// per message. Exactly one of the pointer fields is set, selected by
// Kind.
type Event struct {
	Kind     string    `json:"kind"`
	Account  *Account  `json:"account,omitempty"`
	Identity *Identity `json:"identity,omitempty"`
	Commit   *Commit   `json:"commit,omitempty"`
}

// Account mirrors the upstream #account message: an actor's hosting
// state changed.
type Account struct {
	DID    string  `json:"did"`
	Active bool    `json:"active"`
	Status *string `json:"status,omitempty"`
	Seq    int64   `json:"seq"`
	Time   string  `json:"time"`
}

// Identity mirrors the upstream #identity message: an actor's handle or
// signing key changed.
type Identity struct {
	DID    string  `json:"did"`
	Handle *string `json:"handle,omitempty"`
	Seq    int64   `json:"seq"`
	Time   string  `json:"time"`
}

// Commit is one create/update/delete of one record. Record holds the
// JSON encoding of the CBOR record body and is absent for deletes; byte
// fields inside it ride the {"$bytes": ...} envelope so they survive the
// JSON round-trip.
type Commit struct {
	Operation  string          `json:"operation"`
	Repo       string          `json:"repo"`
	Collection string          `json:"collection"`
	RKey       string          `json:"rkey"`
	Record     json.RawMessage `json:"record,omitempty"`
}

// URI returns the AT-URI of the record the commit touches.
func (c *Commit) URI() string {
	return fmt.Sprintf("at://%s/%s/%s", c.Repo, c.Collection, c.RKey)
}

// Subject returns the queue subject an event is published to.
func (e *Event) Subject(prefix string) string {
	switch e.Kind {
	case KindAccount:
		return prefix + ".account"
	case KindIdentity:
		return prefix + ".identity"
	case KindCommit:
		return prefix + "." + e.Commit.Collection
	}
	return prefix + ".unknown"
}

// Decode parses one queue message payload.
func Decode(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	switch evt.Kind {
	case KindAccount:
		if evt.Account == nil {
			return nil, fmt.Errorf("account event without account body")
		}
	case KindIdentity:
		if evt.Identity == nil {
			return nil, fmt.Errorf("identity event without identity body")
		}
	case KindCommit:
		if evt.Commit == nil {
			return nil, fmt.Errorf("commit event without commit body")
		}
	default:
		return nil, fmt.Errorf("unknown event kind %q", evt.Kind)
	}
	return &evt, nil
}
