package events

import (
	"encoding/json"
	"testing"
)

func TestDecodeCommit(t *testing.T) {
	payload := []byte(`{
		"kind": "commit",
		"commit": {
			"operation": "create",
			"repo": "did:plc:abc",
			"collection": "app.bsky.feed.like",
			"rkey": "3k2a",
			"record": {"createdAt": "2025-01-01T12:34:56Z", "subject": {"uri": "at://did:plc:xyz/app.bsky.feed.post/1", "cid": "bafy"}}
		}
	}`)

	evt, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if evt.Kind != KindCommit {
		t.Errorf("kind = %q, want commit", evt.Kind)
	}
	if evt.Commit.Collection != CollectionLike {
		t.Errorf("collection = %q", evt.Commit.Collection)
	}
	if evt.Commit.URI() != "at://did:plc:abc/app.bsky.feed.like/3k2a" {
		t.Errorf("uri = %q", evt.Commit.URI())
	}

	var rec SubjectRecord
	if err := json.Unmarshal(evt.Commit.Record, &rec); err != nil {
		t.Fatalf("record unmarshal: %v", err)
	}
	if rec.Subject.URI != "at://did:plc:xyz/app.bsky.feed.post/1" {
		t.Errorf("subject uri = %q", rec.Subject.URI)
	}
}

func TestDecodeRejectsMismatchedBody(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"unknown kind", `{"kind": "nonsense"}`},
		{"commit without body", `{"kind": "commit"}`},
		{"account without body", `{"kind": "account"}`},
		{"identity without body", `{"kind": "identity"}`},
		{"not json", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.payload)); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestBytesFieldsSurviveRoundTrip(t *testing.T) {
	// CBOR byte fields are carried as {"$bytes": base64} objects inside
	// the record; the envelope must pass through encode/decode untouched.
	in := &Event{
		Kind: KindCommit,
		Commit: &Commit{
			Operation:  OpCreate,
			Repo:       "did:plc:abc",
			Collection: CollectionProfile,
			RKey:       "self",
			Record:     json.RawMessage(`{"displayName":"x","sig":{"$bytes":"3q2+7w"}}`),
		},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal(out.Commit.Record, &rec); err != nil {
		t.Fatalf("record unmarshal: %v", err)
	}
	sig, ok := rec["sig"].(map[string]any)
	if !ok {
		t.Fatalf("sig field lost: %v", rec)
	}
	if sig["$bytes"] != "3q2+7w" {
		t.Errorf("$bytes payload = %v", sig["$bytes"])
	}
}

func TestSubject(t *testing.T) {
	tests := []struct {
		name string
		evt  *Event
		want string
	}{
		{"commit", &Event{Kind: KindCommit, Commit: &Commit{Collection: CollectionPost}}, "firehose.app.bsky.feed.post"},
		{"account", &Event{Kind: KindAccount, Account: &Account{DID: "did:plc:a"}}, "firehose.account"},
		{"identity", &Event{Kind: KindIdentity, Identity: &Identity{DID: "did:plc:a"}}, "firehose.identity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.evt.Subject("firehose"); got != tt.want {
				t.Errorf("subject = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuotedURI(t *testing.T) {
	tests := []struct {
		name  string
		embed string
		want  string
	}{
		{
			"record embed",
			`{"$type": "app.bsky.embed.record", "record": {"uri": "at://did:plc:q/app.bsky.feed.post/1", "cid": "bafy"}}`,
			"at://did:plc:q/app.bsky.feed.post/1",
		},
		{
			"record with media",
			`{"$type": "app.bsky.embed.recordWithMedia", "record": {"$type": "app.bsky.embed.record", "record": {"uri": "at://did:plc:q/app.bsky.feed.post/2", "cid": "bafy"}}}`,
			"at://did:plc:q/app.bsky.feed.post/2",
		},
		{
			"image embed",
			`{"$type": "app.bsky.embed.images", "record": null}`,
			"",
		},
		{
			"media without inner record embed",
			`{"$type": "app.bsky.embed.recordWithMedia", "record": {"$type": "app.bsky.embed.images"}}`,
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Embed
			if err := json.Unmarshal([]byte(tt.embed), &e); err != nil {
				t.Fatalf("embed unmarshal: %v", err)
			}
			if got := e.QuotedURI(); got != tt.want {
				t.Errorf("QuotedURI() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInterestedSets(t *testing.T) {
	for _, c := range []string{CollectionLike, CollectionPost, CollectionRepost, CollectionProfile, CollectionBlock} {
		if !Interested(c) {
			t.Errorf("%s should be interesting", c)
		}
	}
	if Interested("app.bsky.feed.generator") {
		t.Error("feed generators are not indexed")
	}
	if IsInteraction(CollectionProfile) || IsInteraction(CollectionBlock) {
		t.Error("profiles and blocks are not interactions")
	}
}
