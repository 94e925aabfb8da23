package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"wolfgang/internal/core/dynamic"
)

type fakeLatestStore struct {
	docs  map[string]*dynamic.Document
	calls int
}

func (f *fakeLatestStore) Latest(_ context.Context, name string) (*dynamic.Document, error) {
	f.calls++
	doc, ok := f.docs[name]
	if !ok {
		return nil, dynamic.ErrNotFound
	}
	return doc, nil
}

func getDynamic(h *DynamicDataHandler, name string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/dd/{name}", h.HandleGet)
	req := httptest.NewRequest(http.MethodGet, "/dd/"+name, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestDynamicDataFromStore(t *testing.T) {
	store := &fakeLatestStore{docs: map[string]*dynamic.Document{
		dynamic.NameTopInteractions: {
			Name: dynamic.NameTopInteractions,
			Data: bson.M{"sent": []any{bson.M{"did": "did:plc:bob", "count": int64(9)}}},
		},
	}}
	cache := newFakeCache()
	h := NewDynamicDataHandler(store, cache)

	rr := getDynamic(h, dynamic.NameTopInteractions)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body, "sent")

	cached, err := cache.Has(dynamic.NameTopInteractions)
	require.NoError(t, err)
	assert.True(t, cached, "store answer must land in the cache")
}

func TestDynamicDataCacheHit(t *testing.T) {
	store := &fakeLatestStore{}
	cache := newFakeCache()
	require.NoError(t, cache.Put(dynamic.NameTopBlocks, bson.M{"blocked": []any{}}))
	h := NewDynamicDataHandler(store, cache)

	rr := getDynamic(h, dynamic.NameTopBlocks)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, store.calls, "cache hit must skip the store")
}

func TestDynamicDataUnknownName(t *testing.T) {
	h := NewDynamicDataHandler(&fakeLatestStore{}, newFakeCache())

	rr := getDynamic(h, "top_secrets")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDynamicDataMissing(t *testing.T) {
	h := NewDynamicDataHandler(&fakeLatestStore{}, newFakeCache())

	rr := getDynamic(h, dynamic.NameTopInteractions)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "no data yet")
}

type fakeCounts struct {
	counts map[string]int64
	err    error
}

func (f *fakeCounts) EstimatedCounts(_ context.Context) (map[string]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.counts, nil
}

func TestCollStats(t *testing.T) {
	h := NewStatsHandler(&fakeCounts{counts: map[string]int64{
		"interactions.like": 120,
		"posts":             45,
	}})

	req := httptest.NewRequest(http.MethodGet, "/collStats", nil)
	rr := httptest.NewRecorder()
	h.HandleGet(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, int64(120), body["interactions.like"])
	assert.Equal(t, int64(45), body["posts"])
}

func TestCollStatsFailure(t *testing.T) {
	h := NewStatsHandler(&fakeCounts{err: assert.AnError})

	req := httptest.NewRequest(http.MethodGet, "/collStats", nil)
	rr := httptest.NewRecorder()
	h.HandleGet(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
