package sources

import (
	"sync/atomic"

	"tc.com/token-radar/pkg/logging"
	"tc.com/token-radar/pkg/metrics"
	"tc.com/token-radar/pkg/server/token"
)

// baseSource carries the state shared by all source implementations: the
// rate-limited fetch client and a health flag reflecting the last fetch.
type baseSource struct {
	name    string
	client  *Client
	logger  *logging.Logger
	healthy atomic.Bool
}

func (b *baseSource) init(name string, client *Client, logger *logging.Logger) {
	b.name = name
	b.client = client
	b.logger = logger
}

// Name returns the source name.
func (b *baseSource) Name() string {
	return b.name
}

// IsHealthy reports whether the most recent fetch succeeded.
func (b *baseSource) IsHealthy() bool {
	return b.healthy.Load()
}

// LimiterStats exposes the rate limiter window for the health endpoint.
func (b *baseSource) LimiterStats() interface{} {
	return b.client.LimiterStats()
}

// finish builds the fetch Result and updates health. A fetch is failed only
// when it produced nothing and at least one terminal error occurred; partial
// results keep the source healthy.
func (b *baseSource) finish(records []token.Record, lastErr error, failed bool) Result {
	if failed && lastErr != nil {
		b.healthy.Store(false)
		metrics.RecordSourceHealth(b.name, false)
		b.logger.Error("Source fetch failed", "source", b.name, "error", lastErr)
		return Result{Source: b.name, Records: []token.Record{}, Err: lastErr}
	}

	b.healthy.Store(true)
	metrics.RecordSourceHealth(b.name, true)
	b.logger.Debug("Source fetch complete", "source", b.name, "records", len(records))
	return Result{Source: b.name, Records: records}
}

func fetchStatus(r Result) string {
	if r.Failed() {
		return "error"
	}
	return "ok"
}
