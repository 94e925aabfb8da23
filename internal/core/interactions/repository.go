package interactions

import (
	"context"
	"time"
)

// Repository is the aggregation surface the store has to provide. The
// Mongo implementation lives in internal/db/mongo.
type Repository interface {
	// CountByKind groups edges of one kind around did over the window
	// starting at since: direction sent groups authored edges by
	// subject, rcvd groups received edges by author. Rows come back
	// sorted by count descending, at most 100.
	CountByKind(ctx context.Context, kind Kind, dir Direction, did string, since time.Time) ([]KindCount, error)
}
