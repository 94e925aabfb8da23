// Package dynamic computes the site-wide leaderboards the scheduler
// refreshes: the most active and most targeted accounts by interaction
// and by block. Results land as append-only documents in dynamic_data,
// where the query service serves the newest one per name.
package dynamic

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"wolfgang/internal/atproto/appview"
	"wolfgang/internal/core/interactions"
)

// Document names the jobs append under.
const (
	NameTopInteractions = "top_interactions"
	NameTopBlocks       = "top_blocks"
)

// Rankings look back one day and keep the heaviest hundred rows.
const (
	window = 24 * time.Hour
	topK   = 100
)

// Repository is the global aggregation surface behind the jobs.
type Repository interface {
	// TopByKind ranks DIDs by edges of one kind since the given time:
	// direction sent ranks authors, rcvd ranks subjects.
	TopByKind(ctx context.Context, kind interactions.Kind, dir interactions.Direction, since time.Time) ([]interactions.KindCount, error)

	// TopBlocks ranks DIDs by blocks created since the given time,
	// by blocker for sent and by target for rcvd.
	TopBlocks(ctx context.Context, dir interactions.Direction, since time.Time) ([]interactions.KindCount, error)
}

// Store appends finished documents.
type Store interface {
	Append(ctx context.Context, name string, data any) error
}

// ProfileFetcher hydrates ranked DIDs for display.
type ProfileFetcher interface {
	GetProfiles(ctx context.Context, dids []string) (map[string]appview.Profile, error)
}

// Entry is one leaderboard row: the counterparty tallies plus the
// hydrated profile, when the AppView knows the DID.
type Entry struct {
	DID        string           `bson:"_id" json:"_id"`
	Likes      int64            `bson:"l,omitempty" json:"l,omitempty"`
	Reposts    int64            `bson:"r,omitempty" json:"r,omitempty"`
	Posts      int64            `bson:"p,omitempty" json:"p,omitempty"`
	Characters int64            `bson:"c,omitempty" json:"c,omitempty"`
	Total      int64            `bson:"t" json:"t"`
	Profile    *appview.Profile `bson:"profile,omitempty" json:"profile,omitempty"`
}

// Board holds both directions of one leaderboard.
type Board struct {
	Sent []Entry `bson:"sent" json:"sent"`
	Rcvd []Entry `bson:"rcvd" json:"rcvd"`
}

// Service runs the leaderboard jobs.
type Service struct {
	repo     Repository
	store    Store
	profiles ProfileFetcher
	log      *log.Entry
}

func NewService(repo Repository, store Store, profiles ProfileFetcher) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		profiles: profiles,
		log:      log.WithField("component", "dynamic"),
	}
}

// UpdateTopInteractions ranks accounts by interactions sent and
// received over the last day and appends the board.
func (s *Service) UpdateTopInteractions(ctx context.Context) error {
	since := time.Now().UTC().Add(-window)

	var sent, rcvd []interactions.Counterparty
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sent, err = s.topDirection(gctx, interactions.DirectionSent, since)
		return err
	})
	g.Go(func() error {
		var err error
		rcvd, err = s.topDirection(gctx, interactions.DirectionRcvd, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	board, err := s.hydrate(ctx, sent, rcvd)
	if err != nil {
		return err
	}
	if err := s.store.Append(ctx, NameTopInteractions, board); err != nil {
		return fmt.Errorf("appending %s: %w", NameTopInteractions, err)
	}

	s.log.WithFields(log.Fields{"sent": len(board.Sent), "rcvd": len(board.Rcvd)}).
		Info("top interactions updated")
	return nil
}

// UpdateTopBlocks ranks blockers and block targets over the last day
// and appends the board.
func (s *Service) UpdateTopBlocks(ctx context.Context) error {
	since := time.Now().UTC().Add(-window)

	var sent, rcvd []interactions.Counterparty
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sent, err = s.topBlocks(gctx, interactions.DirectionSent, since)
		return err
	})
	g.Go(func() error {
		var err error
		rcvd, err = s.topBlocks(gctx, interactions.DirectionRcvd, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	board, err := s.hydrate(ctx, sent, rcvd)
	if err != nil {
		return err
	}
	if err := s.store.Append(ctx, NameTopBlocks, board); err != nil {
		return fmt.Errorf("appending %s: %w", NameTopBlocks, err)
	}

	s.log.WithFields(log.Fields{"sent": len(board.Sent), "rcvd": len(board.Rcvd)}).
		Info("top blocks updated")
	return nil
}

// topDirection mirrors the per-actor aggregation without the actor:
// three kind pipelines concurrently, merged per DID.
func (s *Service) topDirection(ctx context.Context, dir interactions.Direction, since time.Time) ([]interactions.Counterparty, error) {
	results := make([][]interactions.KindCount, len(interactions.Kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range interactions.Kinds {
		g.Go(func() error {
			rows, err := s.repo.TopByKind(gctx, kind, dir, since)
			if err != nil {
				return fmt.Errorf("ranking %s %s: %w", kind, dir, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := interactions.MergeKinds(results[0], results[1], results[2])
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// topBlocks ranks one direction of the block graph. Block counts ride
// in the Total field; the per-kind fields stay zero.
func (s *Service) topBlocks(ctx context.Context, dir interactions.Direction, since time.Time) ([]interactions.Counterparty, error) {
	rows, err := s.repo.TopBlocks(ctx, dir, since)
	if err != nil {
		return nil, fmt.Errorf("ranking blocks %s: %w", dir, err)
	}

	list := make([]interactions.Counterparty, 0, len(rows))
	for _, row := range rows {
		list = append(list, interactions.Counterparty{DID: row.DID, Total: row.Count})
	}
	if len(list) > topK {
		list = list[:topK]
	}
	return list, nil
}

// hydrate attaches AppView profiles to both directions in one call.
// A failed hydration fails the job, leaving the previous board in
// place rather than publishing bare DIDs.
func (s *Service) hydrate(ctx context.Context, sent, rcvd []interactions.Counterparty) (*Board, error) {
	dids := make([]string, 0, len(sent)+len(rcvd))
	seen := make(map[string]bool, len(sent)+len(rcvd))
	for _, cp := range append(append([]interactions.Counterparty{}, sent...), rcvd...) {
		if !seen[cp.DID] {
			seen[cp.DID] = true
			dids = append(dids, cp.DID)
		}
	}

	profiles, err := s.profiles.GetProfiles(ctx, dids)
	if err != nil {
		return nil, fmt.Errorf("hydrating %d profiles: %w", len(dids), err)
	}

	return &Board{
		Sent: entries(sent, profiles),
		Rcvd: entries(rcvd, profiles),
	}, nil
}

func entries(list []interactions.Counterparty, profiles map[string]appview.Profile) []Entry {
	out := make([]Entry, 0, len(list))
	for _, cp := range list {
		e := Entry{
			DID:        cp.DID,
			Likes:      cp.Likes,
			Reposts:    cp.Reposts,
			Posts:      cp.Posts,
			Characters: cp.Characters,
			Total:      cp.Total,
		}
		if p, ok := profiles[cp.DID]; ok {
			e.Profile = &p
		}
		out = append(out, e)
	}
	return out
}
