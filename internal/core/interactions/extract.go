package interactions

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"wolfgang/internal/core/events"
)

// ExtractCommit turns one like/repost/post commit into store writes,
// keyed by target collection: at most one interaction edge in the
// kind's collection, plus post-document and tally mutations in the post
// collection. An error means the commit could not be interpreted and
// the caller should skip it; an empty map means it was understood and
// contributes nothing.
func ExtractCommit(commit *events.Commit, now time.Time) (map[string][]mongo.WriteModel, error) {
	kind, ok := KindForNSID(commit.Collection)
	if !ok {
		return nil, fmt.Errorf("collection %s is not an interaction kind", commit.Collection)
	}

	ops := make(map[string][]mongo.WriteModel)

	tally, err := tallyOps(commit, now)
	if err != nil {
		return nil, err
	}
	if len(tally) > 0 {
		ops[events.CollectionPost] = tally
	}

	switch commit.Operation {
	case events.OpCreate:
		edge, err := edgeFromCommit(commit, now)
		if err != nil {
			return nil, err
		}
		if edge != nil {
			ops[kind.Collection()] = append(ops[kind.Collection()],
				mongo.NewInsertOneModel().SetDocument(edge))
		}
	case events.OpDelete:
		ops[kind.Collection()] = append(ops[kind.Collection()],
			mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": commit.Repo + "/" + commit.RKey}))
	}

	return ops, nil
}

// edgeFromCommit derives the interaction edge of a create commit, or
// nil when the record implies none (bare post, self-interaction).
func edgeFromCommit(commit *events.Commit, now time.Time) (*Edge, error) {
	switch commit.Collection {
	case events.CollectionLike, events.CollectionRepost:
		var rec events.SubjectRecord
		if err := json.Unmarshal(commit.Record, &rec); err != nil {
			return nil, fmt.Errorf("decoding %s record: %w", commit.Collection, err)
		}
		subject, err := authorityOf(rec.Subject.URI)
		if err != nil {
			return nil, err
		}
		return newEdge(commit.Repo, commit.RKey, subject, rec.CreatedAt, nil, now)

	case events.CollectionPost:
		var rec events.PostRecord
		if err := json.Unmarshal(commit.Record, &rec); err != nil {
			return nil, fmt.Errorf("decoding post record: %w", err)
		}

		target := ""
		if rec.Reply != nil && rec.Reply.Parent != nil {
			target = rec.Reply.Parent.URI
		} else if uri := rec.Embed.QuotedURI(); uri != "" {
			target = uri
		}
		if target == "" {
			return nil, nil
		}

		subject, err := authorityOf(target)
		if err != nil {
			return nil, err
		}
		chars := utf8.RuneCountInString(rec.Text)
		return newEdge(commit.Repo, commit.RKey, subject, rec.CreatedAt, &chars, now)
	}
	return nil, nil
}

// newEdge drops self-interactions and hour-truncates the timestamp.
func newEdge(author, rkey, subject, createdAt string, chars *int, now time.Time) (*Edge, error) {
	if author == subject {
		return nil, nil
	}
	t, err := hourUTC(createdAt, now)
	if err != nil {
		return nil, err
	}
	return &Edge{
		ID:         author + "/" + rkey,
		Author:     author,
		Subject:    subject,
		Time:       t,
		Characters: chars,
	}, nil
}

func hourUTC(createdAt string, now time.Time) (time.Time, error) {
	if createdAt == "" {
		return now.UTC().Truncate(time.Hour), nil
	}
	t, err := events.ParseTime(createdAt)
	if err != nil {
		return time.Time{}, err
	}
	return t.Truncate(time.Hour), nil
}

func authorityOf(uri string) (string, error) {
	parsed, err := syntax.ParseATURI(uri)
	if err != nil {
		return "", fmt.Errorf("parsing subject uri %q: %w", uri, err)
	}
	return parsed.Authority().String(), nil
}

// tallyOps maintains the per-post documents: the post body on create,
// counter increments on child records, removal on delete. Increments
// are plain updates, so they only land on posts that are indexed.
func tallyOps(commit *events.Commit, now time.Time) ([]mongo.WriteModel, error) {
	if commit.Operation == events.OpDelete {
		if commit.Collection != events.CollectionPost {
			return nil, nil
		}
		return []mongo.WriteModel{
			mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": commit.URI()}),
		}, nil
	}
	if commit.Operation != events.OpCreate {
		return nil, nil
	}

	var ops []mongo.WriteModel

	switch commit.Collection {
	case events.CollectionPost:
		var rec events.PostRecord
		if err := json.Unmarshal(commit.Record, &rec); err != nil {
			return nil, fmt.Errorf("decoding post record: %w", err)
		}
		// Missing createdAt falls back to receipt time, same as the
		// edge path.
		created := now.UTC()
		if rec.CreatedAt != "" {
			t, err := events.ParseTime(rec.CreatedAt)
			if err != nil {
				return nil, err
			}
			created = t
		}

		ops = append(ops, mongo.NewInsertOneModel().SetDocument(bson.M{
			"_id":        commit.URI(),
			"author":     commit.Repo,
			"created_at": created,
			"indexed_at": now.UTC(),
			"langs":      rec.Langs,
			"reply":      rec.Reply,
		}))

		if rec.Reply != nil {
			if rec.Reply.Parent != nil {
				ops = append(ops, incTally(commit.Repo, rec.Reply.Parent.URI, "replies"))
			}
			if rec.Reply.Root != nil {
				ops = append(ops, incTally(commit.Repo, rec.Reply.Root.URI, "root_replies"))
			}
		}
		if quoted := rec.Embed.QuotedURI(); quoted != "" {
			ops = append(ops, incTally(commit.Repo, quoted, "quotes"))
		}

	case events.CollectionLike, events.CollectionRepost:
		var rec events.SubjectRecord
		if err := json.Unmarshal(commit.Record, &rec); err != nil {
			return nil, fmt.Errorf("decoding %s record: %w", commit.Collection, err)
		}
		field := "likes"
		if commit.Collection == events.CollectionRepost {
			field = "reposts"
		}
		ops = append(ops, incTally(commit.Repo, rec.Subject.URI, field))
	}

	return ops, nil
}

// incTally bumps one tally counter on the target post. Interactions
// with the author's own content count separately under self_ so they do
// not inflate the public numbers.
func incTally(repo, targetURI, field string) mongo.WriteModel {
	name := "tally." + field
	if strings.Contains(targetURI, repo) {
		name = "tally.self_" + field
	}
	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"_id": targetURI}).
		SetUpdate(bson.M{"$inc": bson.M{name: 1}})
}
