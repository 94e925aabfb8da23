// Package interactions turns firehose commits into directed interaction
// edges and aggregates them per counterparty. An edge says "author a
// liked/reposted/replied-to/quoted something by subject s at hour t".
package interactions

import (
	"time"

	"wolfgang/internal/core/events"
)

// Kind is one of the three interaction record kinds. Each kind has its
// own store collection so the write and aggregation hot paths never
// scan each other's documents.
type Kind string

const (
	KindLike   Kind = "like"
	KindRepost Kind = "repost"
	KindPost   Kind = "post"
)

// Kinds lists all interaction kinds in aggregation order.
var Kinds = []Kind{KindLike, KindRepost, KindPost}

// Collection returns the store collection holding edges of this kind.
func (k Kind) Collection() string {
	return "interactions." + string(k)
}

// KindForNSID maps a record collection NSID to its interaction kind.
func KindForNSID(collection string) (Kind, bool) {
	switch collection {
	case events.CollectionLike:
		return KindLike, true
	case events.CollectionRepost:
		return KindRepost, true
	case events.CollectionPost:
		return KindPost, true
	}
	return "", false
}

// Direction selects which side of the edge a query pins.
type Direction string

const (
	// DirectionSent matches edges authored by the queried actor.
	DirectionSent Direction = "sent"
	// DirectionRcvd matches edges pointing at the queried actor.
	DirectionRcvd Direction = "rcvd"
)

// Source is the client-facing direction selector of the HTTP API.
type Source string

const (
	SourceFrom Source = "from"
	SourceTo   Source = "to"
	SourceBoth Source = "both"
)

// Valid reports whether s is one of the accepted selector values.
func (s Source) Valid() bool {
	return s == SourceFrom || s == SourceTo || s == SourceBoth
}

// Edge is one stored interaction document. ID is "<author>/<rkey>",
// which makes re-applied commits collide instead of duplicating.
// Characters is set only for the post kind.
type Edge struct {
	ID         string    `bson:"_id"`
	Author     string    `bson:"a"`
	Subject    string    `bson:"s"`
	Time       time.Time `bson:"t"`
	Characters *int      `bson:"c,omitempty"`
}

// KindCount is one row of a per-kind aggregation: how many edges of one
// kind connect the queried actor with DID, plus the summed post
// characters for the post kind.
type KindCount struct {
	DID        string `bson:"_id"`
	Count      int64  `bson:"n"`
	Characters int64  `bson:"c"`
}

// Counterparty is the merged per-actor summary returned to clients.
// Total orders the list; it counts edges of every kind once.
type Counterparty struct {
	DID        string `bson:"_id" json:"_id"`
	Likes      int64  `bson:"l" json:"l"`
	Reposts    int64  `bson:"r" json:"r"`
	Posts      int64  `bson:"p" json:"p"`
	Characters int64  `bson:"c" json:"c"`
	Total      int64  `bson:"t" json:"t"`
}
