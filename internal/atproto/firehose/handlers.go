package firehose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/atproto/data"
	"github.com/bluesky-social/indigo/repo"
	"github.com/bluesky-social/indigo/repomgr"
	"github.com/ipfs/go-cid"
	log "github.com/sirupsen/logrus"

	"wolfgang/internal/core/events"
)

// handleCommit publishes one event per interesting op in the commit.
// Malformed records and failed publishes are dropped with an error
// counter; on restart the replay from the last checkpoint covers the
// gap.
func (s *Subscriber) handleCommit(ctx context.Context, evt *comatproto.SyncSubscribeRepos_Commit) error {
	s.metrics.Events.Inc()
	if len(evt.Blocks) > 0 {
		s.processCommit(ctx, evt)
	}
	s.checkpoint(evt.Seq)
	return nil
}

func (s *Subscriber) processCommit(ctx context.Context, evt *comatproto.SyncSubscribeRepos_Commit) {
	rr, err := repo.ReadRepoFromCar(ctx, bytes.NewReader(evt.Blocks))
	if err != nil {
		s.metrics.Errors.WithLabelValues("car").Inc()
		s.log.WithError(err).WithFields(log.Fields{"repo": evt.Repo, "seq": evt.Seq}).Warn("unreadable commit dropped")
		return
	}

	for _, op := range evt.Ops {
		collection, rkey, ok := strings.Cut(op.Path, "/")
		if !ok || !events.Interested(collection) {
			continue
		}

		commit := &events.Commit{
			Operation:  op.Action,
			Repo:       evt.Repo,
			Collection: collection,
			RKey:       rkey,
		}

		switch repomgr.EventKind(op.Action) {
		case repomgr.EvtKindCreateRecord, repomgr.EvtKindUpdateRecord:
			record, ok := s.extractRecord(ctx, rr, evt, op)
			if !ok {
				continue
			}
			recJSON, err := json.Marshal(record)
			if err != nil {
				s.metrics.Errors.WithLabelValues("encode").Inc()
				s.log.WithError(err).WithField("path", op.Path).Warn("unencodable record dropped")
				continue
			}
			commit.Record = recJSON
			if collection == events.CollectionPost {
				s.metrics.PostLangs.WithLabelValues(langLabel(record)).Inc()
			}
		case repomgr.EvtKindDeleteRecord:
			// no record travels with a delete
		default:
			continue
		}

		if err := s.publish(&events.Event{Kind: events.KindCommit, Commit: commit}); err != nil {
			s.log.WithError(err).WithField("path", op.Path).Error("publish failed, event dropped")
			continue
		}
		s.metrics.Operations.WithLabelValues(op.Action, collection).Inc()
	}
}

// extractRecord pulls the op's record out of the commit blocks and
// verifies it against the announced CID.
func (s *Subscriber) extractRecord(ctx context.Context, rr *repo.Repo, evt *comatproto.SyncSubscribeRepos_Commit, op *comatproto.SyncSubscribeRepos_RepoOp) (map[string]any, bool) {
	recCid, recB, err := rr.GetRecordBytes(ctx, op.Path)
	if err != nil {
		s.metrics.Errors.WithLabelValues("record").Inc()
		s.log.WithError(err).WithFields(log.Fields{"repo": evt.Repo, "path": op.Path}).Debug("record missing from commit blocks")
		return nil, false
	}
	if op.Cid == nil || !recCid.Equals((cid.Cid)(*op.Cid)) {
		s.metrics.Errors.WithLabelValues("cid_mismatch").Inc()
		s.log.WithFields(log.Fields{"repo": evt.Repo, "path": op.Path}).Warn("record does not match announced cid")
		return nil, false
	}
	record, err := data.UnmarshalCBOR(*recB)
	if err != nil {
		s.metrics.Errors.WithLabelValues("cbor").Inc()
		s.log.WithError(err).WithFields(log.Fields{"repo": evt.Repo, "path": op.Path}).Warn("undecodable record dropped")
		return nil, false
	}
	return record, true
}

func (s *Subscriber) handleAccount(evt *comatproto.SyncSubscribeRepos_Account) error {
	s.metrics.Events.Inc()
	status := "none"
	if evt.Status != nil {
		status = *evt.Status
	}
	s.metrics.Accounts.WithLabelValues(strconv.FormatBool(evt.Active), status).Inc()

	err := s.publish(&events.Event{Kind: events.KindAccount, Account: &events.Account{
		DID:    evt.Did,
		Active: evt.Active,
		Status: evt.Status,
		Seq:    evt.Seq,
		Time:   evt.Time,
	}})
	if err != nil {
		s.log.WithError(err).WithField("did", evt.Did).Error("publish failed, event dropped")
	}
	s.checkpoint(evt.Seq)
	return nil
}

func (s *Subscriber) handleIdentity(evt *comatproto.SyncSubscribeRepos_Identity) error {
	s.metrics.Events.Inc()
	s.metrics.Identities.Inc()

	err := s.publish(&events.Event{Kind: events.KindIdentity, Identity: &events.Identity{
		DID:    evt.Did,
		Handle: evt.Handle,
		Seq:    evt.Seq,
		Time:   evt.Time,
	}})
	if err != nil {
		s.log.WithError(err).WithField("did", evt.Did).Error("publish failed, event dropped")
	}
	s.checkpoint(evt.Seq)
	return nil
}

func (s *Subscriber) publish(evt *events.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := s.pub.Publish(evt.Subject(s.cfg.SubjectPrefix), payload); err != nil {
		s.metrics.Errors.WithLabelValues("publish").Inc()
		return err
	}
	return nil
}

// langLabel buckets a post's declared languages for the lang counter:
// the primary subtag of the first entry, "empty" for a present but
// empty list, "none" when the field is absent.
func langLabel(record map[string]any) string {
	raw, ok := record["langs"]
	if !ok {
		return "none"
	}
	langs, ok := raw.([]any)
	if !ok || len(langs) == 0 {
		return "empty"
	}
	first, ok := langs[0].(string)
	if !ok || first == "" {
		return "empty"
	}
	if len(first) > 2 {
		first = first[:2]
	}
	return strings.ToLower(first)
}
