package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// StrongRef points at one record by URI and content hash.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// SubjectRecord covers likes and reposts, which share a shape: a
// creation time and a strong reference to the subject post.
type SubjectRecord struct {
	CreatedAt string    `json:"createdAt"`
	Subject   StrongRef `json:"subject"`
}

// ReplyRef is the reply block of a post record.
type ReplyRef struct {
	Parent *StrongRef `json:"parent"`
	Root   *StrongRef `json:"root"`
}

// Embed is the embed block of a post record; Record is decoded lazily
// because its shape depends on Type.
type Embed struct {
	Type   string          `json:"$type"`
	Record json.RawMessage `json:"record"`
}

// PostRecord is the subset of app.bsky.feed.post the pipeline reads.
type PostRecord struct {
	CreatedAt string    `json:"createdAt"`
	Text      string    `json:"text"`
	Langs     []string  `json:"langs"`
	Reply     *ReplyRef `json:"reply"`
	Embed     *Embed    `json:"embed"`
}

// BlockRecord is an app.bsky.graph.block body; Subject is the blocked
// actor's DID.
type BlockRecord struct {
	CreatedAt string `json:"createdAt"`
	Subject   string `json:"subject"`
}

// createdAt layouts seen on the firehose: RFC 3339 with and without
// sub-second precision, and naive timestamps some clients emit.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTime parses a record createdAt value into UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// QuotedURI returns the URI of the post an embed quotes, or "" when the
// embed is not a record embed (images, external links, media-only).
func (e *Embed) QuotedURI() string {
	if e == nil {
		return ""
	}
	switch e.Type {
	case EmbedRecord:
		var ref StrongRef
		if err := json.Unmarshal(e.Record, &ref); err != nil {
			return ""
		}
		return ref.URI
	case EmbedRecordWithMedia:
		var inner struct {
			Type   string     `json:"$type"`
			Record *StrongRef `json:"record"`
		}
		if err := json.Unmarshal(e.Record, &inner); err != nil {
			return ""
		}
		if inner.Type != EmbedRecord || inner.Record == nil {
			return ""
		}
		return inner.Record.URI
	}
	return ""
}
