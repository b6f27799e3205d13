package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/token-radar/pkg/metrics"
	"tc.com/token-radar/pkg/server/ratelimit"
	"tc.com/token-radar/pkg/server/token"
)

const (
	geckoterminalName      = "geckoterminal"
	geckoterminalBaseURL   = "https://api.geckoterminal.com/api/v2"
	geckoterminalRateLimit = 30 // calls per minute
)

// GeckoTerminalSource fetches trending Solana pools from GeckoTerminal.
// Unlike DexScreener, most numeric attributes arrive as JSON strings.
type GeckoTerminalSource struct {
	baseSource

	baseURL     string
	network     string
	solPriceUSD decimal.Decimal
}

type geckoTerminalResponse struct {
	Data []geckoTerminalPool `json:"data"`
}

type geckoTerminalPool struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Address              string `json:"address"`
		Name                 string `json:"name"`
		BaseTokenAddress     string `json:"base_token_address"`
		BaseTokenSymbol      string `json:"base_token_symbol"`
		BaseTokenName        string `json:"base_token_name"`
		BaseTokenPriceNative string `json:"base_token_price_native_currency"`
		BaseTokenPriceUSD    string `json:"base_token_price_usd"`
		VolumeUSD            struct {
			H1  string `json:"h1"`
			H24 string `json:"h24"`
		} `json:"volume_usd"`
		PriceChangePercentage struct {
			H1  string `json:"h1"`
			H24 string `json:"h24"`
		} `json:"price_change_percentage"`
		ReserveInUSD string `json:"reserve_in_usd"`
		MarketCapUSD string `json:"market_cap_usd"`
		Transactions struct {
			H24 struct {
				Buys  int64 `json:"buys"`
				Sells int64 `json:"sells"`
			} `json:"h24"`
		} `json:"transactions"`
	} `json:"attributes"`
}

// NewGeckoTerminalSource creates a GeckoTerminal source from config.
func NewGeckoTerminalSource(config map[string]interface{}) (Source, error) {
	logger := GetLoggerFromConfig(config)
	clock := GetClockFromConfig(config)

	rate := GetIntFromConfig(config, "rate_limit", geckoterminalRateLimit)
	limiter, err := ratelimit.New(rate, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	timeout := time.Duration(GetIntFromConfig(config, "timeout_seconds", 10)) * time.Second
	maxAttempts := GetIntFromConfig(config, "max_attempts", defaultMaxAttempts)

	s := &GeckoTerminalSource{
		baseURL:     GetStringFromConfig(config, "base_url", geckoterminalBaseURL),
		network:     GetStringFromConfig(config, "network", token.Chain),
		solPriceUSD: decimal.NewFromFloat(GetFloatFromConfig(config, "sol_price_usd", 100)),
	}
	s.init(geckoterminalName, NewClient(geckoterminalName, limiter, clock, timeout, maxAttempts, logger), logger)
	return s, nil
}

// Fetch retrieves the provider's trending pools in a single rate-limited call.
func (s *GeckoTerminalSource) Fetch(ctx context.Context) Result {
	start := time.Now()
	u := fmt.Sprintf("%s/networks/%s/trending_pools", s.baseURL, s.network)

	var resp geckoTerminalResponse
	if err := s.client.GetJSON(ctx, u, &resp); err != nil {
		result := s.finish(nil, err, true)
		metrics.RecordFetch(s.Name(), fetchStatus(result), time.Since(start))
		return result
	}

	records := make([]token.Record, 0, len(resp.Data))
	for _, pool := range resp.Data {
		rec := s.normalize(pool)
		if rec.Address == "" {
			continue
		}
		records = append(records, rec)
	}

	result := s.finish(records, nil, false)
	metrics.RecordFetch(s.Name(), fetchStatus(result), time.Since(start))
	return result
}

// normalize maps one pool onto the canonical record. String fields parse to
// zero on malformed input, keeping numeric fields total.
func (s *GeckoTerminalSource) normalize(pool geckoTerminalPool) token.Record {
	attr := pool.Attributes

	name := attr.BaseTokenName
	if name == "" {
		name = attr.Name
	}

	return token.Record{
		Address:          attr.BaseTokenAddress,
		Name:             name,
		Ticker:           attr.BaseTokenSymbol,
		PriceSOL:         parseDecimal(attr.BaseTokenPriceNative),
		MarketCapSOL:     s.usdToSOL(parseDecimal(attr.MarketCapUSD)),
		VolumeSOL:        s.usdToSOL(parseDecimal(attr.VolumeUSD.H24)),
		Volume1hSOL:      s.usdToSOL(parseDecimal(attr.VolumeUSD.H1)),
		LiquiditySOL:     s.usdToSOL(parseDecimal(attr.ReserveInUSD)),
		TransactionCount: attr.Transactions.H24.Buys + attr.Transactions.H24.Sells,
		PriceChange1h:    parseDecimal(attr.PriceChangePercentage.H1),
		PriceChange24h:   parseDecimal(attr.PriceChangePercentage.H24),
		Protocol:         ProtocolLabelFromPool(attr.Name),
		Source:           geckoterminalName,
		LastUpdated:      time.Now(),
		Chain:            token.Chain,
	}
}

func (s *GeckoTerminalSource) usdToSOL(usd decimal.Decimal) decimal.Decimal {
	if s.solPriceUSD.IsZero() {
		return decimal.Zero
	}
	return usd.Div(s.solPriceUSD)
}

func init() {
	Register(geckoterminalName, NewGeckoTerminalSource)
}
