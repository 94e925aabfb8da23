package interactions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo serves canned rows keyed by kind and direction.
type fakeRepo struct {
	rows map[string][]KindCount
	err  error
}

func (f *fakeRepo) CountByKind(_ context.Context, kind Kind, dir Direction, _ string, _ time.Time) ([]KindCount, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[string(kind)+"/"+string(dir)], nil
}

func TestDirectionalMergesKinds(t *testing.T) {
	repo := &fakeRepo{rows: map[string][]KindCount{
		"like/sent":   {{DID: "did:plc:bbb", Count: 3}},
		"repost/sent": {{DID: "did:plc:bbb", Count: 1}, {DID: "did:plc:ccc", Count: 2}},
		"post/sent":   {{DID: "did:plc:ccc", Count: 1, Characters: 42}},
	}}
	svc := NewService(repo)

	list, err := svc.Directional(context.Background(), "did:plc:aaa", DirectionSent, testNow)
	require.NoError(t, err)

	require.Len(t, list, 2)
	assert.Equal(t, Counterparty{DID: "did:plc:bbb", Likes: 3, Reposts: 1, Total: 4}, list[0])
	assert.Equal(t, Counterparty{DID: "did:plc:ccc", Reposts: 2, Posts: 1, Characters: 42, Total: 3}, list[1])
}

func TestDirectionalPropagatesRepoErrors(t *testing.T) {
	svc := NewService(&fakeRepo{err: errors.New("aggregation timed out")})

	_, err := svc.Directional(context.Background(), "did:plc:aaa", DirectionRcvd, testNow)
	assert.Error(t, err)
}

func TestQuerySourceShapes(t *testing.T) {
	repo := &fakeRepo{rows: map[string][]KindCount{
		"like/sent": {{DID: "did:plc:bbb", Count: 1}},
		"like/rcvd": {{DID: "did:plc:ccc", Count: 5}},
	}}
	svc := NewService(repo)

	from, err := svc.Query(context.Background(), "did:plc:aaa", SourceFrom, testNow)
	require.NoError(t, err)
	require.Contains(t, from, "from")
	assert.NotContains(t, from, "to")

	both, err := svc.Query(context.Background(), "did:plc:aaa", SourceBoth, testNow)
	require.NoError(t, err)
	require.Contains(t, both, "from")
	require.Contains(t, both, "to")
	assert.Equal(t, "did:plc:ccc", both["to"][0].DID)

	_, err = svc.Query(context.Background(), "did:plc:aaa", Source("sideways"), testNow)
	assert.Error(t, err)
}

func TestMergeTopSumsAndTruncates(t *testing.T) {
	sent := []Counterparty{
		{DID: "did:plc:bbb", Likes: 2, Total: 2},
		{DID: "did:plc:ccc", Posts: 1, Total: 1},
	}
	rcvd := []Counterparty{
		{DID: "did:plc:bbb", Reposts: 4, Total: 4},
		{DID: "did:plc:ddd", Likes: 1, Total: 1},
	}

	top := MergeTop([][]Counterparty{sent, rcvd}, 2)

	require.Len(t, top, 2)
	assert.Equal(t, Counterparty{DID: "did:plc:bbb", Likes: 2, Reposts: 4, Total: 6}, top[0])
	// ccc and ddd tie on total; the lexically smaller DID wins the cut.
	assert.Equal(t, "did:plc:ccc", top[1].DID)
}

func TestMergeKindsEmptyInput(t *testing.T) {
	assert.Empty(t, MergeKinds(nil, nil, nil))
}
