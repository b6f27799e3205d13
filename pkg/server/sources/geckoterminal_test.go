package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tc.com/token-radar/pkg/logging"
	"tc.com/token-radar/pkg/server/token"
)

const geckoTrendingJSON = `{
	"data": [
		{
			"id": "solana_pool1",
			"type": "pool",
			"attributes": {
				"address": "pool1",
				"name": "WIF/SOL on Orca",
				"base_token_address": "wif1",
				"base_token_symbol": "WIF",
				"base_token_name": "Dogwifhat",
				"base_token_price_native_currency": "0.015",
				"base_token_price_usd": "1.5",
				"volume_usd": {"h1": "2000", "h24": "80000"},
				"price_change_percentage": {"h1": "3.2", "h24": "-4.1"},
				"reserve_in_usd": "400000",
				"market_cap_usd": "1500000",
				"transactions": {"h24": {"buys": 210, "sells": 190}}
			}
		},
		{
			"id": "solana_pool2",
			"type": "pool",
			"attributes": {
				"address": "pool2",
				"name": "JUNK/SOL",
				"base_token_address": "",
				"base_token_symbol": "JUNK",
				"base_token_price_native_currency": "not-a-number",
				"volume_usd": {},
				"price_change_percentage": {},
				"transactions": {"h24": {}}
			}
		}
	]
}`

func geckoConfig(baseURL string) map[string]interface{} {
	return map[string]interface{}{
		"logger":   logging.NewNoopLogger(),
		"clock":    newTestClock(),
		"base_url": baseURL,
	}
}

func TestGeckoTerminalSource_FetchMapsStringFields(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/networks/solana/trending_pools", r.URL.Path)
		fmt.Fprint(w, geckoTrendingJSON)
	}))
	defer ts.Close()

	source, err := NewGeckoTerminalSource(geckoConfig(ts.URL))
	require.NoError(t, err)

	result := source.Fetch(context.Background())
	require.False(t, result.Failed(), "fetch failed: %v", result.Err)
	require.Len(t, result.Records, 1, "pools without a base token address must be dropped")

	rec := result.Records[0]
	assert.Equal(t, "wif1", rec.Address)
	assert.Equal(t, "Dogwifhat", rec.Name)
	assert.Equal(t, "WIF", rec.Ticker)
	assert.True(t, rec.PriceSOL.Equal(decimal.NewFromFloat(0.015)))
	// USD figures converted at the default 100 USD/SOL.
	assert.True(t, rec.VolumeSOL.Equal(decimal.NewFromInt(800)), "volume = %s", rec.VolumeSOL)
	assert.True(t, rec.Volume1hSOL.Equal(decimal.NewFromInt(20)))
	assert.True(t, rec.LiquiditySOL.Equal(decimal.NewFromInt(4000)))
	assert.True(t, rec.MarketCapSOL.Equal(decimal.NewFromInt(15000)))
	assert.Equal(t, int64(400), rec.TransactionCount)
	assert.True(t, rec.PriceChange1h.Equal(decimal.NewFromFloat(3.2)))
	assert.True(t, rec.PriceChange24h.Equal(decimal.NewFromFloat(-4.1)))
	assert.Equal(t, "Orca Whirlpool", rec.Protocol)
	assert.Equal(t, geckoterminalName, rec.Source)
	assert.Equal(t, token.Chain, rec.Chain)
}

func TestGeckoTerminalSource_MalformedNumbersParseToZero(t *testing.T) {
	body := `{"data": [{
		"attributes": {
			"base_token_address": "tok1",
			"base_token_symbol": "TOK",
			"base_token_price_native_currency": "garbage",
			"volume_usd": {"h24": ""},
			"price_change_percentage": {"h1": "??"},
			"reserve_in_usd": "",
			"market_cap_usd": "abc",
			"transactions": {"h24": {"buys": 1, "sells": 2}}
		}
	}]}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer ts.Close()

	source, err := NewGeckoTerminalSource(geckoConfig(ts.URL))
	require.NoError(t, err)

	result := source.Fetch(context.Background())
	require.False(t, result.Failed())
	require.Len(t, result.Records, 1)

	rec := result.Records[0]
	assert.True(t, rec.PriceSOL.IsZero())
	assert.True(t, rec.VolumeSOL.IsZero())
	assert.True(t, rec.PriceChange1h.IsZero())
	assert.True(t, rec.MarketCapSOL.IsZero())
	assert.Equal(t, int64(3), rec.TransactionCount)
}

func TestGeckoTerminalSource_UpstreamFailureMarksUnhealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	source, err := NewGeckoTerminalSource(geckoConfig(ts.URL))
	require.NoError(t, err)

	result := source.Fetch(context.Background())
	require.True(t, result.Failed())
	assert.True(t, errors.Is(result.Err, ErrRetriesExhausted))
	assert.False(t, source.IsHealthy())

	// A later successful fetch restores health.
	assert.NotNil(t, result.Records)
}

func TestProtocolLabelFromPool(t *testing.T) {
	tests := []struct {
		pool string
		want string
	}{
		{"BONK/SOL on Raydium", "Raydium CLMM"},
		{"WIF/SOL on Orca", "Orca Whirlpool"},
		{"X/SOL meteora pool", "Meteora"},
		{"FOO/SOL", "FOO"},
		{"", "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProtocolLabelFromPool(tt.pool), "pool %q", tt.pool)
	}
}

func TestParseDecimal(t *testing.T) {
	assert.True(t, parseDecimal("").IsZero())
	assert.True(t, parseDecimal("abc").IsZero())
	assert.True(t, parseDecimal("-12.5").Equal(decimal.NewFromFloat(-12.5)))
}
