// Package sources provides upstream token data source implementations.
package sources

import (
	"context"

	"tc.com/token-radar/pkg/server/token"
)

// Result is the outcome of one fetch. Records may be empty either because
// the upstream legitimately returned nothing or because the fetch failed;
// Err distinguishes the two so observability survives the degradation.
type Result struct {
	Source  string
	Records []token.Record
	Err     error
}

// Failed reports whether the fetch terminated with an error.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Source is one upstream provider of token records.
type Source interface {
	// Name returns the unique name of this source
	Name() string

	// Fetch retrieves and normalizes the provider's current token list.
	// It never panics and never propagates upstream failure to the caller:
	// all failure modes are absorbed into the returned Result.
	Fetch(ctx context.Context) Result

	// IsHealthy reports whether the most recent fetch succeeded
	IsHealthy() bool
}

// Factory is a function that creates a new Source instance.
type Factory func(config map[string]interface{}) (Source, error)
