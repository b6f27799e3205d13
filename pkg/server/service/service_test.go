package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tc.com/token-radar/pkg/logging"
	"tc.com/token-radar/pkg/server/cache"
	"tc.com/token-radar/pkg/server/snapshot"
	"tc.com/token-radar/pkg/server/token"
)

func seedService(t *testing.T, records []token.Record) (*TokenService, *snapshot.Store, cache.Cache) {
	t.Helper()
	c := cache.NewMemoryCache(nil)
	store := snapshot.NewStore(c)
	if records != nil {
		require.NoError(t, store.Save(context.Background(), records, time.Minute))
	}
	return NewTokenService(store, c, logging.NewNoopLogger()), store, c
}

func seedRecords() []token.Record {
	return []token.Record{
		{Address: "a1", Name: "Bonk", Ticker: "BONK", VolumeSOL: decimal.NewFromInt(500), Chain: token.Chain},
		{Address: "a2", Name: "Dogwifhat", Ticker: "WIF", VolumeSOL: decimal.NewFromInt(900), Chain: token.Chain},
	}
}

func TestGetTokensPaginated_ServesFromSnapshot(t *testing.T) {
	svc, _, _ := seedService(t, seedRecords())

	resp, err := svc.GetTokensPaginated(context.Background(), token.Query{})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.True(t, resp.Cached, "every read is served from the master cache")
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "a2", resp.Data[0].Address, "default sort is volume descending")
	assert.Equal(t, 2, resp.Pagination.Total)
}

func TestGetTokensPaginated_AbsentSnapshotYieldsEmptySet(t *testing.T) {
	svc, _, _ := seedService(t, nil)

	resp, err := svc.GetTokensPaginated(context.Background(), token.Query{})
	require.NoError(t, err, "a missing snapshot is degradation, not an error")

	assert.True(t, resp.Success)
	assert.Empty(t, resp.Data)
	assert.Equal(t, 0, resp.Pagination.Total)
}

func TestGetTokensPaginated_SecondIdenticalQueryServesCachedPage(t *testing.T) {
	svc, store, _ := seedService(t, seedRecords())
	ctx := context.Background()

	first, err := svc.GetTokensPaginated(ctx, token.Query{})
	require.NoError(t, err)
	require.Len(t, first.Data, 2)

	// A snapshot refresh without page invalidation must not be visible yet:
	// the identical query is answered from the page cache.
	extra := append(seedRecords(), token.Record{
		Address: "a3", Name: "Popcat", Ticker: "POPCAT",
		VolumeSOL: decimal.NewFromInt(50), Chain: token.Chain,
	})
	require.NoError(t, store.Save(ctx, extra, time.Minute))

	second, err := svc.GetTokensPaginated(ctx, token.Query{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Len(t, second.Data, 2)
}

func TestGetTokensPaginated_DifferentQueriesGetDifferentCacheEntries(t *testing.T) {
	svc, _, _ := seedService(t, seedRecords())
	ctx := context.Background()

	min := decimal.NewFromInt(600)
	filtered, err := svc.GetTokensPaginated(ctx, token.Query{Filters: token.Filters{MinVolume: &min}})
	require.NoError(t, err)
	require.Len(t, filtered.Data, 1)

	unfiltered, err := svc.GetTokensPaginated(ctx, token.Query{})
	require.NoError(t, err)
	assert.Len(t, unfiltered.Data, 2, "a different query must not hit the filtered entry")
}

func TestGetTokensPaginated_PageInvalidationDropsCachedEntry(t *testing.T) {
	svc, store, _ := seedService(t, seedRecords())
	ctx := context.Background()

	_, err := svc.GetTokensPaginated(ctx, token.Query{})
	require.NoError(t, err)

	extra := append(seedRecords(), token.Record{
		Address: "a3", Name: "Popcat", Ticker: "POPCAT",
		VolumeSOL: decimal.NewFromInt(50), Chain: token.Chain,
	})
	require.NoError(t, store.Save(ctx, extra, time.Minute))

	n, err := store.InvalidatePages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	resp, err := svc.GetTokensPaginated(ctx, token.Query{})
	require.NoError(t, err)
	assert.Len(t, resp.Data, 3, "invalidation exposes the refreshed snapshot")
}

func TestGetTokensPaginated_EchoesFiltersAndSort(t *testing.T) {
	svc, _, _ := seedService(t, seedRecords())

	min := decimal.NewFromInt(100)
	resp, err := svc.GetTokensPaginated(context.Background(), token.Query{
		Filters: token.Filters{MinVolume: &min, Search: "bonk"},
		Sort:    token.Sort{Metric: token.SortLiquidity, Order: token.OrderAsc},
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Filters)
	assert.Equal(t, "100", resp.Filters.MinVolume)
	assert.Equal(t, "bonk", resp.Filters.Search)
	require.NotNil(t, resp.Sort)
	assert.Equal(t, token.SortLiquidity, resp.Sort.Metric)
	assert.Equal(t, token.OrderAsc, resp.Sort.Order)
}

func TestGetToken(t *testing.T) {
	svc, _, _ := seedService(t, seedRecords())
	ctx := context.Background()

	rec, err := svc.GetToken(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Bonk", rec.Name)

	rec, err = svc.GetToken(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
