// Package reconcile merges same-address token records from multiple sources
// into one canonical record per address.
package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/token-radar/pkg/logging"
	"tc.com/token-radar/pkg/server/token"
)

// Merger deduplicates and merges token records across sources.
type Merger interface {
	// Merge returns exactly one record per distinct address. Records missing
	// an address are dropped. The result is deterministic for a fixed input.
	Merge(records []token.Record) []token.Record
}

// VWAPMerger combines duplicate records using volume-weighted averaging for
// price-like fields: the source with more actual trading activity is the
// more trustworthy price, so each record contributes price x volume.
type VWAPMerger struct {
	logger *logging.Logger
}

var _ Merger = (*VWAPMerger)(nil)

// NewVWAPMerger creates a new volume-weighted merger.
func NewVWAPMerger(logger *logging.Logger) *VWAPMerger {
	return &VWAPMerger{logger: logger}
}

// Merge groups records by address and merges each group. A singleton group
// passes through unchanged. Output preserves first-appearance order of
// addresses in the input.
func (m *VWAPMerger) Merge(records []token.Record) []token.Record {
	groups := make(map[string][]token.Record)
	order := make([]string, 0, len(records))
	dropped := 0

	for _, rec := range records {
		if rec.Address == "" {
			dropped++
			continue
		}
		if _, seen := groups[rec.Address]; !seen {
			order = append(order, rec.Address)
		}
		groups[rec.Address] = append(groups[rec.Address], rec)
	}

	if dropped > 0 {
		m.logger.Warn("Dropped records without address before merge", "count", dropped)
	}

	merged := make([]token.Record, 0, len(order))
	for _, addr := range order {
		group := groups[addr]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}
		merged = append(merged, mergeGroup(group))
	}

	m.logger.Debug("Merged token records", "in", len(records), "out", len(merged))
	return merged
}

// mergeGroup merges two or more records sharing one address. Static fields
// come from the first record, summable fields are summed, price-like fields
// are volume-weighted, protocols are unioned.
func mergeGroup(group []token.Record) token.Record {
	base := group[0]

	totalVolume := decimal.Zero
	totalVolume1h := decimal.Zero
	totalLiquidity := decimal.Zero
	totalMarketCap := decimal.Zero
	var totalTxns int64

	priceVolSum := decimal.Zero
	change1hVolSum := decimal.Zero
	change24hVolSum := decimal.Zero

	lastUpdated := time.Time{}
	protocols := make([]string, 0, len(group))
	seenProtocols := make(map[string]bool)

	for _, rec := range group {
		vol := rec.VolumeSOL

		totalVolume = totalVolume.Add(vol)
		totalVolume1h = totalVolume1h.Add(rec.Volume1hSOL)
		totalLiquidity = totalLiquidity.Add(rec.LiquiditySOL)
		totalMarketCap = totalMarketCap.Add(rec.MarketCapSOL)
		totalTxns += rec.TransactionCount

		priceVolSum = priceVolSum.Add(rec.PriceSOL.Mul(vol))
		change1hVolSum = change1hVolSum.Add(rec.PriceChange1h.Mul(vol))
		change24hVolSum = change24hVolSum.Add(rec.PriceChange24h.Mul(vol))

		if rec.LastUpdated.After(lastUpdated) {
			lastUpdated = rec.LastUpdated
		}

		for _, p := range strings.Split(rec.Protocol, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			key := strings.ToLower(p)
			if !seenProtocols[key] {
				seenProtocols[key] = true
				protocols = append(protocols, key)
			}
		}
	}
	sort.Strings(protocols)

	// Total volume zero means no activity anywhere; the weighted quotient is
	// undefined, so price-like fields collapse to zero.
	price := decimal.Zero
	change1h := decimal.Zero
	change24h := decimal.Zero
	if !totalVolume.IsZero() {
		price = priceVolSum.Div(totalVolume)
		change1h = change1hVolSum.Div(totalVolume)
		change24h = change24hVolSum.Div(totalVolume)
	}

	return token.Record{
		Address:          base.Address,
		Name:             base.Name,
		Ticker:           base.Ticker,
		PriceSOL:         price,
		MarketCapSOL:     totalMarketCap,
		VolumeSOL:        totalVolume,
		Volume1hSOL:      totalVolume1h,
		LiquiditySOL:     totalLiquidity,
		TransactionCount: totalTxns,
		PriceChange1h:    change1h,
		PriceChange24h:   change24h,
		Protocol:         strings.Join(protocols, ", "),
		Source:           token.SourceMerged,
		LastUpdated:      lastUpdated,
		Chain:            token.Chain,
	}
}
