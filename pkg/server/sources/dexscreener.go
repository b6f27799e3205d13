package sources

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/token-radar/pkg/metrics"
	"tc.com/token-radar/pkg/server/ratelimit"
	"tc.com/token-radar/pkg/server/token"
)

const (
	dexscreenerName        = "dexscreener"
	dexscreenerBaseURL     = "https://api.dexscreener.com/latest/dex"
	dexscreenerRateLimit   = 300 // calls per minute
	dexscreenerDefaultTopN = 50
)

// dexscreenerDefaultQueries are the search terms used to discover actively
// traded tokens; DexScreener has no trending endpoint, so discovery goes
// through repeated searches.
var dexscreenerDefaultQueries = []string{"SOL", "BONK", "WIF", "POPCAT", "USDC", "USDT"}

// DexScreenerSource fetches Solana pairs from the DexScreener REST API.
type DexScreenerSource struct {
	baseSource

	baseURL     string
	queries     []string
	topN        int
	solPriceUSD decimal.Decimal
}

// dexScreenerResponse mirrors the provider schema. Numeric pair fields are
// floats except priceNative/priceUsd, which arrive as strings.
type dexScreenerResponse struct {
	SchemaVersion string            `json:"schemaVersion"`
	Pairs         []dexScreenerPair `json:"pairs"`
}

type dexScreenerPair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceNative string `json:"priceNative"`
	PriceUsd    string `json:"priceUsd"`
	Volume      struct {
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity struct {
		USD   float64 `json:"usd"`
		Base  float64 `json:"base"`
		Quote float64 `json:"quote"`
	} `json:"liquidity"`
	MarketCap float64 `json:"marketCap"`
	Txns      struct {
		H24 struct {
			Buys  int64 `json:"buys"`
			Sells int64 `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
}

// NewDexScreenerSource creates a DexScreener source from config.
func NewDexScreenerSource(config map[string]interface{}) (Source, error) {
	logger := GetLoggerFromConfig(config)
	clock := GetClockFromConfig(config)

	rate := GetIntFromConfig(config, "rate_limit", dexscreenerRateLimit)
	limiter, err := ratelimit.New(rate, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	queries := GetStringSliceFromConfig(config, "queries")
	if len(queries) == 0 {
		queries = dexscreenerDefaultQueries
	}

	timeout := time.Duration(GetIntFromConfig(config, "timeout_seconds", 10)) * time.Second
	maxAttempts := GetIntFromConfig(config, "max_attempts", defaultMaxAttempts)

	s := &DexScreenerSource{
		baseURL:     GetStringFromConfig(config, "base_url", dexscreenerBaseURL),
		queries:     queries,
		topN:        GetIntFromConfig(config, "top_n", dexscreenerDefaultTopN),
		solPriceUSD: decimal.NewFromFloat(GetFloatFromConfig(config, "sol_price_usd", 100)),
	}
	s.init(dexscreenerName, NewClient(dexscreenerName, limiter, clock, timeout, maxAttempts, logger), logger)
	return s, nil
}

// Fetch runs one rate-limited search per configured query, keeps the highest
// volume row per address, and returns the top pairs by volume. A query that
// fails is logged and skipped; the fetch only counts as failed when every
// query failed.
func (s *DexScreenerSource) Fetch(ctx context.Context) Result {
	start := time.Now()
	byAddress := make(map[string]token.Record)
	var lastErr error
	failures := 0

	for _, query := range s.queries {
		u := fmt.Sprintf("%s/search?q=%s", s.baseURL, url.QueryEscape(query))

		var resp dexScreenerResponse
		if err := s.client.GetJSON(ctx, u, &resp); err != nil {
			s.logger.Warn("DexScreener search failed",
				"query", query,
				"error", err)
			lastErr = err
			failures++
			continue
		}

		for _, pair := range resp.Pairs {
			if pair.ChainID != token.Chain {
				continue
			}
			rec := s.normalize(pair)
			if rec.Address == "" {
				continue
			}
			if existing, ok := byAddress[rec.Address]; !ok || rec.VolumeSOL.GreaterThan(existing.VolumeSOL) {
				byAddress[rec.Address] = rec
			}
		}
	}

	records := make([]token.Record, 0, len(byAddress))
	for _, rec := range byAddress {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].VolumeSOL.GreaterThan(records[j].VolumeSOL)
	})
	if len(records) > s.topN {
		records = records[:s.topN]
	}

	result := s.finish(records, lastErr, failures == len(s.queries))
	metrics.RecordFetch(s.Name(), fetchStatus(result), time.Since(start))
	return result
}

// normalize maps a provider pair onto the canonical record. Volumes and
// market cap arrive in USD and are converted to SOL; liquidity prefers the
// quote-side figure, which is already SOL-denominated.
func (s *DexScreenerSource) normalize(pair dexScreenerPair) token.Record {
	liquidity := decimal.NewFromFloat(pair.Liquidity.Quote)
	if liquidity.IsZero() {
		liquidity = s.usdToSOL(decimal.NewFromFloat(pair.Liquidity.USD))
	}

	return token.Record{
		Address:          pair.BaseToken.Address,
		Name:             pair.BaseToken.Name,
		Ticker:           pair.BaseToken.Symbol,
		PriceSOL:         parseDecimal(pair.PriceNative),
		MarketCapSOL:     s.usdToSOL(decimal.NewFromFloat(pair.MarketCap)),
		VolumeSOL:        s.usdToSOL(decimal.NewFromFloat(pair.Volume.H24)),
		Volume1hSOL:      s.usdToSOL(decimal.NewFromFloat(pair.Volume.H1)),
		LiquiditySOL:     liquidity,
		TransactionCount: pair.Txns.H24.Buys + pair.Txns.H24.Sells,
		PriceChange1h:    decimal.NewFromFloat(pair.PriceChange.H1),
		PriceChange24h:   decimal.NewFromFloat(pair.PriceChange.H24),
		Protocol:         ProtocolLabel(pair.DexID, pair.ChainID),
		Source:           dexscreenerName,
		LastUpdated:      time.Now(),
		Chain:            token.Chain,
	}
}

func (s *DexScreenerSource) usdToSOL(usd decimal.Decimal) decimal.Decimal {
	if s.solPriceUSD.IsZero() {
		return decimal.Zero
	}
	return usd.Div(s.solPriceUSD)
}

func init() {
	Register(dexscreenerName, NewDexScreenerSource)
}
