// Package replenish drives the periodic fetch-merge-store-broadcast cycle.
package replenish

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/token-radar/pkg/logging"
	"tc.com/token-radar/pkg/metrics"
	"tc.com/token-radar/pkg/server/reconcile"
	"tc.com/token-radar/pkg/server/snapshot"
	"tc.com/token-radar/pkg/server/sources"
	"tc.com/token-radar/pkg/server/token"
)

// Delta change thresholds, in percent.
var (
	priceDeltaThreshold  = decimal.NewFromInt(1)
	volumeSpikeThreshold = decimal.NewFromInt(50)
)

// Delta kinds reported in broadcast metrics.
const (
	DeltaPrice  = "price"
	DeltaVolume = "volume"
)

// Broadcaster receives the full records of tokens whose deltas crossed a
// threshold this cycle. Implementations must not block the loop.
type Broadcaster interface {
	Broadcast(records []token.Record)
}

// Loop owns the replenishment schedule. Exactly one loop runs per process;
// all of its collaborators are injected so cycles can be driven synchronously
// in tests via RunCycle.
type Loop struct {
	sources     []sources.Source
	merger      reconcile.Merger
	store       *snapshot.Store
	broadcaster Broadcaster
	interval    time.Duration
	ttl         time.Duration
	logger      *logging.Logger

	// prev maps address to the record of the previous completed cycle.
	// Only the loop goroutine touches it.
	prev map[string]token.Record

	running atomic.Bool
}

// New creates a replenishment loop. The snapshot TTL equals the interval so
// a stalled loop lets the snapshot expire rather than serve stale data
// indefinitely.
func New(srcs []sources.Source, merger reconcile.Merger, store *snapshot.Store, b Broadcaster, interval time.Duration, logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Loop{
		sources:     srcs,
		merger:      merger,
		store:       store,
		broadcaster: b,
		interval:    interval,
		ttl:         interval,
		logger:      logger,
		prev:        make(map[string]token.Record),
	}
}

// Run executes one cycle immediately, then one per interval until the
// context is cancelled. A tick that arrives while the previous cycle is
// still in flight is skipped, never queued.
func (l *Loop) Run(ctx context.Context) {
	l.tick(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("replenishment loop stopped")
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		l.logger.Warn("previous cycle still running, skipping tick")
		return
	}
	defer l.running.Store(false)

	l.RunCycle(ctx)
}

// RunCycle performs one full replenishment pass: concurrent source fan-out,
// reconciliation, snapshot write, page invalidation and delta broadcast.
// It returns the reconciled list and is exported so tests can drive cycles
// without a ticker.
func (l *Loop) RunCycle(ctx context.Context) []token.Record {
	start := time.Now()

	results := l.fetchAll(ctx)

	var collected []token.Record
	failures := 0
	for _, res := range results {
		if res.Failed() {
			failures++
			l.logger.Error("source fetch failed", "source", res.Source, "error", res.Err)
			continue
		}
		collected = append(collected, res.Records...)
	}

	merged := l.merger.Merge(collected)

	// The snapshot is written even when empty: an empty result from healthy
	// sources is authoritative and must replace stale data.
	stored := true
	if err := l.store.Save(ctx, merged, l.ttl); err != nil {
		stored = false
		l.logger.Error("snapshot write failed, broadcasting from memory", "error", err)
	}

	if n, err := l.store.InvalidatePages(ctx); err != nil {
		l.logger.Warn("page cache invalidation failed", "error", err)
	} else if n > 0 {
		l.logger.Debug("invalidated cached pages", "count", n)
	}

	changed := l.detectDeltas(merged)
	if len(changed) > 0 && l.broadcaster != nil {
		l.broadcaster.Broadcast(changed)
	}

	metrics.RecordCycle(time.Since(start), len(merged))
	l.logger.Info("replenishment cycle complete",
		"tokens", len(merged),
		"source_failures", failures,
		"deltas", len(changed),
		"stored", stored,
		"duration", time.Since(start).String())
	return merged
}

// fetchAll queries every source concurrently and waits for all of them.
// A panicking or erroring source yields a failed Result, never a missing one.
func (l *Loop) fetchAll(ctx context.Context) []sources.Result {
	results := make([]sources.Result, len(l.sources))
	var wg sync.WaitGroup
	for i, src := range l.sources {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			results[i] = src.Fetch(ctx)
		}(i, src)
	}
	wg.Wait()
	return results
}

// detectDeltas compares the merged set against the previous cycle and
// returns the full records of every token that crossed a change threshold.
// Baselines are overwritten per address and never removed: a token that
// drops out of one cycle keeps its last-seen state, so an empty cycle
// (all sources failing) does not reset every comparison to a cold start.
func (l *Loop) detectDeltas(merged []token.Record) []token.Record {
	var changed []token.Record

	coldStart := len(l.prev) == 0

	for _, rec := range merged {
		old, ok := l.prev[rec.Address]
		l.prev[rec.Address] = rec
		if coldStart || !ok {
			// First sighting: nothing to compare against yet.
			continue
		}

		fired := false
		if priceChanged(old.PriceSOL, rec.PriceSOL) {
			metrics.RecordDelta(DeltaPrice)
			fired = true
		}
		if volumeSpiked(old.VolumeSOL, rec.VolumeSOL) {
			metrics.RecordDelta(DeltaVolume)
			fired = true
		}
		if fired {
			changed = append(changed, rec)
		}
	}

	return changed
}

// priceChanged reports whether |new-old|/old moved at least 1%.
// A zero baseline never fires; the percentage is undefined there.
func priceChanged(old, new decimal.Decimal) bool {
	if old.IsZero() {
		return false
	}
	pct := new.Sub(old).Abs().Div(old).Mul(decimal.NewFromInt(100))
	return pct.GreaterThanOrEqual(priceDeltaThreshold)
}

// volumeSpiked reports whether volume grew at least 50% over the baseline.
// Only growth counts; volume falling is not a spike.
func volumeSpiked(old, new decimal.Decimal) bool {
	if old.IsZero() {
		return false
	}
	pct := new.Sub(old).Div(old).Mul(decimal.NewFromInt(100))
	return pct.GreaterThanOrEqual(volumeSpikeThreshold)
}
