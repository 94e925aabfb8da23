package interactions

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Service runs the per-kind aggregations and merges them into
// counterparty summaries.
type Service struct {
	repo Repository
}

// NewService creates a Service on top of a store repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Directional aggregates one direction: the three kind pipelines run
// concurrently, then merge per counterparty, ordered by total edge
// count descending.
func (s *Service) Directional(ctx context.Context, did string, dir Direction, since time.Time) ([]Counterparty, error) {
	results := make([][]KindCount, len(Kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range Kinds {
		g.Go(func() error {
			rows, err := s.repo.CountByKind(gctx, kind, dir, did, since)
			if err != nil {
				return fmt.Errorf("aggregating %s %s: %w", kind, dir, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return MergeKinds(results[0], results[1], results[2]), nil
}

// Both aggregates sent and received concurrently.
func (s *Service) Both(ctx context.Context, did string, since time.Time) (sent, rcvd []Counterparty, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sent, err = s.Directional(gctx, did, DirectionSent, since)
		return err
	})
	g.Go(func() error {
		var err error
		rcvd, err = s.Directional(gctx, did, DirectionRcvd, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sent, rcvd, nil
}

// Query answers the source-selector form of the API: keys "from" and
// "to", filtered to the requested selector.
func (s *Service) Query(ctx context.Context, did string, source Source, since time.Time) (map[string][]Counterparty, error) {
	switch source {
	case SourceFrom:
		sent, err := s.Directional(ctx, did, DirectionSent, since)
		if err != nil {
			return nil, err
		}
		return map[string][]Counterparty{"from": sent}, nil
	case SourceTo:
		rcvd, err := s.Directional(ctx, did, DirectionRcvd, since)
		if err != nil {
			return nil, err
		}
		return map[string][]Counterparty{"to": rcvd}, nil
	case SourceBoth:
		sent, rcvd, err := s.Both(ctx, did, since)
		if err != nil {
			return nil, err
		}
		return map[string][]Counterparty{"from": sent, "to": rcvd}, nil
	}
	return nil, fmt.Errorf("unknown source %q", source)
}

// MergeKinds folds the three per-kind rankings into one counterparty
// list ordered by total edge count. The leaderboard jobs reuse it on
// their global rankings.
func MergeKinds(likes, reposts, posts []KindCount) []Counterparty {
	merged := make(map[string]*Counterparty)
	get := func(did string) *Counterparty {
		cp, ok := merged[did]
		if !ok {
			cp = &Counterparty{DID: did}
			merged[did] = cp
		}
		return cp
	}

	for _, row := range likes {
		get(row.DID).Likes = row.Count
	}
	for _, row := range reposts {
		get(row.DID).Reposts = row.Count
	}
	for _, row := range posts {
		cp := get(row.DID)
		cp.Posts = row.Count
		cp.Characters = row.Characters
	}

	list := make([]Counterparty, 0, len(merged))
	for _, cp := range merged {
		cp.Total = cp.Likes + cp.Reposts + cp.Posts
		list = append(list, *cp)
	}
	sortCounterparties(list)
	return list
}

// MergeTop folds several counterparty lists (typically both directions)
// into one, summing every field, and keeps the topk heaviest. Feeds the
// circles layout.
func MergeTop(lists [][]Counterparty, topk int) []Counterparty {
	merged := make(map[string]*Counterparty)
	for _, list := range lists {
		for _, cp := range list {
			acc, ok := merged[cp.DID]
			if !ok {
				acc = &Counterparty{DID: cp.DID}
				merged[cp.DID] = acc
			}
			acc.Likes += cp.Likes
			acc.Reposts += cp.Reposts
			acc.Posts += cp.Posts
			acc.Characters += cp.Characters
			acc.Total += cp.Total
		}
	}

	out := make([]Counterparty, 0, len(merged))
	for _, cp := range merged {
		out = append(out, *cp)
	}
	sortCounterparties(out)
	if len(out) > topk {
		out = out[:topk]
	}
	return out
}

// sortCounterparties orders by total descending; ties break on DID so
// output is deterministic.
func sortCounterparties(list []Counterparty) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Total != list[j].Total {
			return list[i].Total > list[j].Total
		}
		return list[i].DID < list[j].DID
	})
}
