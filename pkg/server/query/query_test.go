package query

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tc.com/token-radar/pkg/server/token"
)

func makeRecords() []token.Record {
	mk := func(addr, name, ticker, protocol string, volume, change1h, change24h, mcap, liq float64, txns int64) token.Record {
		return token.Record{
			Address:          addr,
			Name:             name,
			Ticker:           ticker,
			Protocol:         protocol,
			VolumeSOL:        decimal.NewFromFloat(volume),
			PriceChange1h:    decimal.NewFromFloat(change1h),
			PriceChange24h:   decimal.NewFromFloat(change24h),
			MarketCapSOL:     decimal.NewFromFloat(mcap),
			LiquiditySOL:     decimal.NewFromFloat(liq),
			TransactionCount: txns,
			Chain:            token.Chain,
		}
	}
	return []token.Record{
		mk("addr1", "Bonk", "BONK", "Raydium CLMM", 500, 2.5, -1.0, 9000, 300, 120),
		mk("addr2", "Dogwifhat", "WIF", "Orca Whirlpool", 900, -0.5, 4.0, 12000, 700, 310),
		mk("addr3", "Popcat", "POPCAT", "Raydium CLMM", 100, 8.0, 9.0, 4000, 90, 45),
		mk("addr4", "Jupiter", "JUP", "Meteora", 700, 0.2, 0.3, 20000, 1500, 80),
	}
}

func TestApply_NoFiltersDefaultSort(t *testing.T) {
	page := Apply(makeRecords(), token.Query{})

	require.Len(t, page.Records, 4)
	// Default: volume descending.
	assert.Equal(t, "addr2", page.Records[0].Address)
	assert.Equal(t, "addr4", page.Records[1].Address)
	assert.Equal(t, "addr1", page.Records[2].Address)
	assert.Equal(t, "addr3", page.Records[3].Address)
	assert.False(t, page.Pagination.HasMore)
	assert.Empty(t, page.Pagination.NextCursor)
}

func TestApply_MinVolumeFilter(t *testing.T) {
	min := decimal.NewFromInt(600)
	page := Apply(makeRecords(), token.Query{
		Filters: token.Filters{MinVolume: &min},
	})

	require.Len(t, page.Records, 2)
	assert.Equal(t, 2, page.Pagination.Total)
	for _, r := range page.Records {
		assert.True(t, r.VolumeSOL.GreaterThanOrEqual(min))
	}
}

func TestApply_PriceChangeFilterUsesTimePeriod(t *testing.T) {
	min := decimal.NewFromInt(3)

	page1h := Apply(makeRecords(), token.Query{
		Filters: token.Filters{MinPriceChange: &min, TimePeriod: token.Period1h},
	})
	require.Len(t, page1h.Records, 1)
	assert.Equal(t, "addr3", page1h.Records[0].Address)

	page24h := Apply(makeRecords(), token.Query{
		Filters: token.Filters{MinPriceChange: &min, TimePeriod: token.Period24h},
	})
	require.Len(t, page24h.Records, 2)
}

func TestApply_FiltersCombineWithAnd(t *testing.T) {
	minVol := decimal.NewFromInt(400)
	minLiq := decimal.NewFromInt(600)
	page := Apply(makeRecords(), token.Query{
		Filters: token.Filters{MinVolume: &minVol, MinLiquidity: &minLiq},
	})

	require.Len(t, page.Records, 2)
	for _, r := range page.Records {
		assert.True(t, r.VolumeSOL.GreaterThanOrEqual(minVol))
		assert.True(t, r.LiquiditySOL.GreaterThanOrEqual(minLiq))
	}
}

func TestApply_ProtocolSubstringCaseInsensitive(t *testing.T) {
	page := Apply(makeRecords(), token.Query{
		Filters: token.Filters{Protocol: "raydium"},
	})

	require.Len(t, page.Records, 2)
	for _, r := range page.Records {
		assert.Contains(t, r.Protocol, "Raydium")
	}
}

func TestApply_SearchMatchesNameOrTicker(t *testing.T) {
	byName := Apply(makeRecords(), token.Query{Filters: token.Filters{Search: "popc"}})
	require.Len(t, byName.Records, 1)
	assert.Equal(t, "addr3", byName.Records[0].Address)

	byTicker := Apply(makeRecords(), token.Query{Filters: token.Filters{Search: "wif"}})
	require.Len(t, byTicker.Records, 2) // WIF ticker plus Dogwifhat name
}

func TestApply_SortAscending(t *testing.T) {
	page := Apply(makeRecords(), token.Query{
		Sort: token.Sort{Metric: token.SortMarketCap, Order: token.OrderAsc},
	})

	require.Len(t, page.Records, 4)
	assert.Equal(t, "addr3", page.Records[0].Address)
	assert.Equal(t, "addr4", page.Records[3].Address)
}

func TestApply_SortStableForEqualKeys(t *testing.T) {
	records := makeRecords()
	records[0].VolumeSOL = decimal.NewFromInt(100)
	records[2].VolumeSOL = decimal.NewFromInt(100)

	page := Apply(records, token.Query{
		Sort: token.Sort{Metric: token.SortVolume, Order: token.OrderAsc},
	})

	// Equal volumes keep input order: addr1 before addr3.
	require.Len(t, page.Records, 4)
	assert.Equal(t, "addr1", page.Records[0].Address)
	assert.Equal(t, "addr3", page.Records[1].Address)
}

func TestApply_PaginationFullWalk(t *testing.T) {
	records := makeRecords()

	var walked []string
	cursor := ""
	pages := 0
	for {
		page := Apply(records, token.Query{
			Pagination: token.Pagination{Limit: 3, Cursor: cursor},
		})
		pages++
		for _, r := range page.Records {
			walked = append(walked, r.Address)
		}
		if !page.Pagination.HasMore {
			assert.Empty(t, page.Pagination.NextCursor)
			break
		}
		require.NotEmpty(t, page.Pagination.NextCursor)
		cursor = page.Pagination.NextCursor
	}

	assert.Equal(t, 2, pages)
	assert.Equal(t, []string{"addr2", "addr4", "addr1", "addr3"}, walked)
}

func TestApply_StaleCursorRestartsFromTop(t *testing.T) {
	page := Apply(makeRecords(), token.Query{
		Pagination: token.Pagination{Limit: 2, Cursor: "gone-address"},
	})

	require.Len(t, page.Records, 2)
	assert.Equal(t, "addr2", page.Records[0].Address)
	assert.True(t, page.Pagination.HasMore)
}

func TestApply_LimitClamping(t *testing.T) {
	page := Apply(makeRecords(), token.Query{Pagination: token.Pagination{Limit: 0}})
	assert.Equal(t, token.DefaultPageLimit, page.Pagination.Limit)

	page = Apply(makeRecords(), token.Query{Pagination: token.Pagination{Limit: 5000}})
	assert.Equal(t, token.MaxPageLimit, page.Pagination.Limit)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	records := makeRecords()
	first := records[0].Address

	Apply(records, token.Query{
		Sort: token.Sort{Metric: token.SortVolume, Order: token.OrderDesc},
	})

	assert.Equal(t, first, records[0].Address)
}

func TestApply_EmptyInput(t *testing.T) {
	page := Apply(nil, token.Query{})

	assert.Empty(t, page.Records)
	assert.Equal(t, 0, page.Pagination.Total)
	assert.False(t, page.Pagination.HasMore)
}
