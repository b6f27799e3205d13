// Package service implements the read path over the authoritative snapshot.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tc.com/token-radar/pkg/logging"
	"tc.com/token-radar/pkg/server/cache"
	"tc.com/token-radar/pkg/server/query"
	"tc.com/token-radar/pkg/server/snapshot"
	"tc.com/token-radar/pkg/server/token"
)

// pageCacheTTL bounds how long an identical query is served from cache.
// Page entries are also invalidated wholesale on every snapshot write.
const pageCacheTTL = 10 * time.Second

// Response is the wire shape of a paginated token query.
type Response struct {
	Success    bool            `json:"success"`
	Data       []token.Record  `json:"data"`
	Pagination token.PageInfo  `json:"pagination"`
	Filters    *FiltersApplied `json:"filters_applied,omitempty"`
	Sort       *SortApplied    `json:"sort_applied,omitempty"`
	Cached     bool            `json:"cached"`
	Timestamp  time.Time       `json:"timestamp"`
}

// FiltersApplied echoes the active filters back to the caller.
type FiltersApplied struct {
	TimePeriod     token.TimePeriod `json:"time_period,omitempty"`
	MinVolume      string           `json:"min_volume,omitempty"`
	MinPriceChange string           `json:"min_price_change,omitempty"`
	MinMarketCap   string           `json:"min_market_cap,omitempty"`
	MinLiquidity   string           `json:"min_liquidity,omitempty"`
	Protocol       string           `json:"protocol,omitempty"`
	Search         string           `json:"search,omitempty"`
}

// SortApplied echoes the active sort back to the caller.
type SortApplied struct {
	Metric token.SortMetric `json:"metric"`
	Order  token.SortOrder  `json:"order"`
}

// TokenService answers paginated token queries from the snapshot store,
// short-circuiting identical queries through the page cache.
type TokenService struct {
	store  *snapshot.Store
	cache  cache.Cache
	logger *logging.Logger
}

// NewTokenService creates a token read service.
func NewTokenService(store *snapshot.Store, c cache.Cache, logger *logging.Logger) *TokenService {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &TokenService{store: store, cache: c, logger: logger}
}

// GetTokensPaginated evaluates q against the current snapshot. An absent or
// unreadable snapshot degrades to an empty result set, never an error: the
// pipeline will repopulate it within one replenishment interval.
func (s *TokenService) GetTokensPaginated(ctx context.Context, q token.Query) (*Response, error) {
	key := pageKey(q)

	if data, err := s.cache.Get(ctx, key); err == nil && data != nil {
		var resp Response
		if err := json.Unmarshal(data, &resp); err == nil {
			return &resp, nil
		}
		s.logger.Warn("discarding undecodable cached page", "key", key)
	}

	snap, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Error("snapshot load failed, serving empty set", "error", err)
		snap = nil
	}

	var records []token.Record
	if snap != nil {
		records = snap.Records
	}

	page := query.Apply(records, q)

	resp := &Response{
		Success:    true,
		Data:       page.Records,
		Pagination: page.Pagination,
		Filters:    filtersApplied(q.Filters),
		Sort:       sortApplied(q.Sort),
		Cached:     true,
		Timestamp:  time.Now().UTC(),
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := s.cache.Set(ctx, key, data, pageCacheTTL); err != nil {
			s.logger.Warn("page cache write failed", "key", key, "error", err)
		}
	}

	return resp, nil
}

// GetToken returns a single record by address from the current snapshot.
func (s *TokenService) GetToken(ctx context.Context, address string) (*token.Record, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	for i := range snap.Records {
		if snap.Records[i].Address == address {
			return &snap.Records[i], nil
		}
	}
	return nil, nil
}

// pageKey derives a deterministic cache key from every query parameter.
func pageKey(q token.Query) string {
	var b strings.Builder
	b.WriteString(snapshot.PageKeyPrefix)
	fmt.Fprintf(&b, "l=%d:c=%s:m=%s:o=%s:tp=%s", q.Pagination.Limit, q.Pagination.Cursor, q.Sort.Metric, q.Sort.Order, q.Filters.TimePeriod)
	if q.Filters.MinVolume != nil {
		fmt.Fprintf(&b, ":mv=%s", q.Filters.MinVolume.String())
	}
	if q.Filters.MinPriceChange != nil {
		fmt.Fprintf(&b, ":mpc=%s", q.Filters.MinPriceChange.String())
	}
	if q.Filters.MinMarketCap != nil {
		fmt.Fprintf(&b, ":mmc=%s", q.Filters.MinMarketCap.String())
	}
	if q.Filters.MinLiquidity != nil {
		fmt.Fprintf(&b, ":ml=%s", q.Filters.MinLiquidity.String())
	}
	if q.Filters.Protocol != "" {
		fmt.Fprintf(&b, ":p=%s", strings.ToLower(q.Filters.Protocol))
	}
	if q.Filters.Search != "" {
		fmt.Fprintf(&b, ":s=%s", strings.ToLower(q.Filters.Search))
	}
	return b.String()
}

func filtersApplied(f token.Filters) *FiltersApplied {
	out := &FiltersApplied{
		TimePeriod: f.TimePeriod,
		Protocol:   f.Protocol,
		Search:     f.Search,
	}
	active := f.TimePeriod != "" || f.Protocol != "" || f.Search != ""
	if f.MinVolume != nil {
		out.MinVolume = f.MinVolume.String()
		active = true
	}
	if f.MinPriceChange != nil {
		out.MinPriceChange = f.MinPriceChange.String()
		active = true
	}
	if f.MinMarketCap != nil {
		out.MinMarketCap = f.MinMarketCap.String()
		active = true
	}
	if f.MinLiquidity != nil {
		out.MinLiquidity = f.MinLiquidity.String()
		active = true
	}
	if !active {
		return nil
	}
	return out
}

func sortApplied(s token.Sort) *SortApplied {
	metric := s.Metric
	if metric == "" {
		metric = token.SortVolume
	}
	order := s.Order
	if order == "" {
		order = token.OrderDesc
	}
	return &SortApplied{Metric: metric, Order: order}
}
