package sources

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// isRetryable reports whether a fetch error is worth another attempt.
// Only 429 and server-side failures qualify; everything else is permanent.
func isRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamStatus)
}

// parseDecimal converts a provider numeric string to decimal, yielding zero
// for empty or malformed input. Several providers deliver numbers as JSON
// strings, and the canonical record guarantees zero-filled numeric fields.
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// protocolLabels maps venue identifiers to human-readable protocol names.
var protocolLabels = map[string]string{
	"raydium":  "Raydium CLMM",
	"orca":     "Orca Whirlpool",
	"serum":    "Serum",
	"meteora":  "Meteora",
	"lifinity": "Lifinity",
}

// ProtocolLabel derives a display label from a venue identifier, falling
// back to "<dexId> <chainId>" for unknown venues.
func ProtocolLabel(dexID, chainID string) string {
	if label, ok := protocolLabels[strings.ToLower(dexID)]; ok {
		return label
	}
	return dexID + " " + chainID
}

// ProtocolLabelFromPool derives a label from a pool display name such as
// "BONK/SOL on Raydium".
func ProtocolLabelFromPool(poolName string) string {
	lower := strings.ToLower(poolName)
	for venue, label := range protocolLabels {
		if strings.Contains(lower, venue) {
			return label
		}
	}
	if base := strings.Split(poolName, "/")[0]; base != "" {
		return strings.TrimSpace(base)
	}
	return "Unknown"
}
