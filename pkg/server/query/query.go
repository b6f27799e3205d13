package query

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"tc.com/token-radar/pkg/server/token"
)

// Apply runs filters, sorting and cursor pagination over a snapshot.
// It never mutates the input slice and carries no state of its own,
// so the same query over the same records always yields the same page.
func Apply(records []token.Record, q token.Query) token.Page {
	filtered := applyFilters(records, q.Filters)
	sorted := applySort(filtered, q.Sort)
	return paginate(sorted, q.Pagination)
}

func applyFilters(records []token.Record, f token.Filters) []token.Record {
	out := make([]token.Record, 0, len(records))
	for _, r := range records {
		if matches(r, f) {
			out = append(out, r)
		}
	}
	return out
}

// matches applies every present filter; conditions combine with AND.
func matches(r token.Record, f token.Filters) bool {
	if f.MinVolume != nil && r.VolumeSOL.LessThan(*f.MinVolume) {
		return false
	}
	if f.MinPriceChange != nil && r.PriceChange(f.TimePeriod).LessThan(*f.MinPriceChange) {
		return false
	}
	if f.MinMarketCap != nil && r.MarketCapSOL.LessThan(*f.MinMarketCap) {
		return false
	}
	if f.MinLiquidity != nil && r.LiquiditySOL.LessThan(*f.MinLiquidity) {
		return false
	}
	if f.Protocol != "" && !strings.Contains(strings.ToLower(r.Protocol), strings.ToLower(f.Protocol)) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.Name), needle) &&
			!strings.Contains(strings.ToLower(r.Ticker), needle) {
			return false
		}
	}
	return true
}

func applySort(records []token.Record, s token.Sort) []token.Record {
	out := make([]token.Record, len(records))
	copy(out, records)

	metric := s.Metric
	if metric == "" {
		metric = token.SortVolume
	}

	// Stable sort keeps equal-key records in snapshot order, so cursors
	// stay meaningful across identical queries.
	sort.SliceStable(out, func(i, j int) bool {
		a := sortKey(out[i], metric, s.TimePeriod)
		b := sortKey(out[j], metric, s.TimePeriod)
		if s.Order == token.OrderAsc {
			return a.LessThan(b)
		}
		return a.GreaterThan(b)
	})
	return out
}

func sortKey(r token.Record, metric token.SortMetric, period token.TimePeriod) decimal.Decimal {
	switch metric {
	case token.SortPriceChange:
		return r.PriceChange(period)
	case token.SortMarketCap:
		return r.MarketCapSOL
	case token.SortLiquidity:
		return r.LiquiditySOL
	case token.SortTransactions:
		return decimal.NewFromInt(r.TransactionCount)
	default:
		return r.VolumeSOL
	}
}

func paginate(records []token.Record, p token.Pagination) token.Page {
	limit := p.Limit
	if limit <= 0 {
		limit = token.DefaultPageLimit
	}
	if limit > token.MaxPageLimit {
		limit = token.MaxPageLimit
	}

	// A cursor names the last address of the previous page. An unknown
	// cursor means the snapshot rotated underneath the client; restart
	// from the top rather than erroring.
	start := 0
	if p.Cursor != "" {
		for i, r := range records {
			if r.Address == p.Cursor {
				start = i + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(records) {
		end = len(records)
	}

	page := make([]token.Record, end-start)
	copy(page, records[start:end])

	info := token.PageInfo{
		Total:   len(records),
		Limit:   limit,
		HasMore: end < len(records),
	}
	if info.HasMore && len(page) > 0 {
		info.NextCursor = page[len(page)-1].Address
	}

	return token.Page{Records: page, Pagination: info}
}
