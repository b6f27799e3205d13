// Package token defines the canonical token record shared by all pipeline stages.
package token

import (
	"time"

	"github.com/shopspring/decimal"
)

// Chain is the chain tag stamped on every record.
const Chain = "solana"

// Provenance values for the Source field.
const (
	SourceMerged = "merged"
)

// Record is the canonical per-token data row, provider-agnostic.
// Numeric fields are always present; a provider that omits a field yields
// decimal zero, never a missing state, so downstream arithmetic is total.
type Record struct {
	Address          string          `json:"token_address"`
	Name             string          `json:"token_name"`
	Ticker           string          `json:"token_ticker"`
	PriceSOL         decimal.Decimal `json:"price_sol"`
	MarketCapSOL     decimal.Decimal `json:"market_cap_sol"`
	VolumeSOL        decimal.Decimal `json:"volume_sol"`
	Volume1hSOL      decimal.Decimal `json:"volume_1hr_sol"`
	LiquiditySOL     decimal.Decimal `json:"liquidity_sol"`
	TransactionCount int64           `json:"transaction_count"`
	PriceChange1h    decimal.Decimal `json:"price_1hr_change"`
	PriceChange24h   decimal.Decimal `json:"price_24hr_change"`
	Protocol         string          `json:"protocol"`
	Source           string          `json:"source"`
	LastUpdated      time.Time       `json:"last_updated"`
	Chain            string          `json:"chain"`
}

// TimePeriod selects which price-change window filters and sorts operate on.
type TimePeriod string

const (
	Period1h  TimePeriod = "1h"
	Period24h TimePeriod = "24h"
)

// PriceChange returns the price-change field for the given window.
// An unknown or empty period defaults to the 1h window.
func (r Record) PriceChange(period TimePeriod) decimal.Decimal {
	if period == Period24h {
		return r.PriceChange24h
	}
	return r.PriceChange1h
}

// SortMetric enumerates sortable record fields.
type SortMetric string

const (
	SortVolume       SortMetric = "volume"
	SortPriceChange  SortMetric = "price_change"
	SortMarketCap    SortMetric = "market_cap"
	SortLiquidity    SortMetric = "liquidity"
	SortTransactions SortMetric = "transactions"
)

// SortOrder is the sort direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Filters narrows the record set; every active predicate is ANDed.
// Nil minimums are inactive predicates.
type Filters struct {
	TimePeriod     TimePeriod
	MinVolume      *decimal.Decimal
	MinPriceChange *decimal.Decimal
	MinMarketCap   *decimal.Decimal
	MinLiquidity   *decimal.Decimal
	Protocol       string
	Search         string
}

// Sort selects the comparison field and direction.
type Sort struct {
	Metric     SortMetric
	Order      SortOrder
	TimePeriod TimePeriod
}

// Page size bounds applied by the query engine.
const (
	DefaultPageLimit = 30
	MaxPageLimit     = 100
)

// Pagination is cursor-based: Cursor is the address of the last record of the
// previous page, or empty for the first page.
type Pagination struct {
	Limit  int
	Cursor string
}

// Query bundles the full read-path parameters.
type Query struct {
	Filters    Filters
	Sort       Sort
	Pagination Pagination
}

// PageInfo describes the position of a returned page within the filtered set.
type PageInfo struct {
	Total      int    `json:"total"`
	Limit      int    `json:"limit"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// Page is one page of records plus its position.
type Page struct {
	Records    []Record
	Pagination PageInfo
}
