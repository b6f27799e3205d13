// Package snapshot holds the single authoritative reconciled token list.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tc.com/token-radar/pkg/server/cache"
	"tc.com/token-radar/pkg/server/token"
)

// MasterKey is the well-known cache key for the current snapshot.
const MasterKey = "tokens:master"

// PageKeyPrefix is the key prefix for cached paginated query responses.
// Every snapshot write invalidates this prefix.
const PageKeyPrefix = "tokens:page:"

// Snapshot is an ordered list of reconciled records plus its write time.
// At most one snapshot is current at a time; readers never observe a
// partially written one because the cache replaces the key atomically.
type Snapshot struct {
	Records   []token.Record `json:"records"`
	WrittenAt time.Time      `json:"written_at"`
}

// Store reads and writes the master snapshot through the generic cache.
type Store struct {
	cache cache.Cache
}

// NewStore creates a snapshot store on top of the given cache.
func NewStore(c cache.Cache) *Store {
	return &Store{cache: c}
}

// Load returns the current snapshot, or nil when none exists (expired or
// never written). A store read failure is returned to the caller, which per
// the pipeline's degradation rules treats it the same as an absent snapshot.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.cache.Get(ctx, MasterKey)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Save replaces the current snapshot with the given record list under the
// configured TTL. The write is a single key replace, so concurrent readers
// see either the previous snapshot or this one, never a mix.
func (s *Store) Save(ctx context.Context, records []token.Record, ttl time.Duration) error {
	snap := Snapshot{
		Records:   records,
		WrittenAt: time.Now(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, MasterKey, data, ttl); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// InvalidatePages drops all cached paginated responses derived from a
// previous snapshot. Returns the number of keys removed.
func (s *Store) InvalidatePages(ctx context.Context) (int, error) {
	return s.cache.DeletePattern(ctx, PageKeyPrefix)
}
