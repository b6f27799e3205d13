// Package api provides the HTTP and WebSocket endpoints of the token server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/token-radar/pkg/logging"
	"tc.com/token-radar/pkg/metrics"
	"tc.com/token-radar/pkg/server/cache"
	"tc.com/token-radar/pkg/server/service"
	"tc.com/token-radar/pkg/server/sources"
	"tc.com/token-radar/pkg/server/token"
)

// Server is the HTTP API server.
type Server struct {
	addr    string
	tokens  *service.TokenService
	sources []sources.Source
	cache   cache.Cache
	server  *http.Server
	logger  *logging.Logger
}

// NewServer creates an HTTP API server.
func NewServer(addr string, tokens *service.TokenService, srcs []sources.Source, c cache.Cache, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Server{
		addr:    addr,
		tokens:  tokens,
		sources: srcs,
		cache:   c,
		logger:  logger,
	}
}

// Start starts the HTTP server and blocks until it shuts down.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/tokens", s.handleTokens)
	mux.HandleFunc("/v1/tokens/", s.handleToken)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

type healthSource struct {
	Name    string      `json:"name"`
	Healthy bool        `json:"healthy"`
	Limiter interface{} `json:"limiter,omitempty"`
}

type healthResponse struct {
	Status  string         `json:"status"`
	Cache   string         `json:"cache"`
	Sources []healthSource `json:"sources"`
}

// handleHealth reports cache reachability and per-source health.
// Degraded sources do not fail the endpoint; an unreachable cache does.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest("/health", status, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Cache: "ok"}
	if err := s.cache.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Cache = err.Error()
	}

	for _, src := range s.sources {
		hs := healthSource{Name: src.Name(), Healthy: src.IsHealthy()}
		if ls, ok := src.(interface{ LimiterStats() interface{} }); ok {
			hs.Limiter = ls.LimiterStats()
		}
		resp.Sources = append(resp.Sources, hs)
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
		status = "503"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleTokens handles GET /v1/tokens with filter, sort and cursor params.
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest("/v1/tokens", status, time.Since(start))
	}()

	if r.Method != http.MethodGet {
		status = "405"
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q, err := parseQuery(r)
	if err != nil {
		status = "400"
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.tokens.GetTokensPaginated(r.Context(), q)
	if err != nil {
		status = "500"
		s.logger.Error("token query failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.sendJSON(w, resp)
}

// handleToken handles GET /v1/tokens/{address}.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest("/v1/tokens/{address}", status, time.Since(start))
	}()

	address := strings.TrimPrefix(r.URL.Path, "/v1/tokens/")
	if address == "" || strings.Contains(address, "/") {
		status = "404"
		s.sendError(w, http.StatusNotFound, "not found")
		return
	}

	rec, err := s.tokens.GetToken(r.Context(), address)
	if err != nil {
		status = "500"
		s.logger.Error("token lookup failed", "address", address, "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rec == nil {
		status = "404"
		s.sendError(w, http.StatusNotFound, "token not found")
		return
	}

	s.sendJSON(w, map[string]interface{}{"success": true, "data": rec})
}

// parseQuery maps URL query parameters onto a token query.
// Unknown enum values and malformed numbers are rejected, not coerced.
func parseQuery(r *http.Request) (token.Query, error) {
	var q token.Query
	values := r.URL.Query()

	switch tp := values.Get("time_period"); tp {
	case "", string(token.Period1h):
		q.Filters.TimePeriod = token.Period1h
	case string(token.Period24h):
		q.Filters.TimePeriod = token.Period24h
	default:
		return q, fmt.Errorf("invalid time_period %q", tp)
	}
	q.Sort.TimePeriod = q.Filters.TimePeriod

	for param, dst := range map[string]**decimal.Decimal{
		"min_volume":       &q.Filters.MinVolume,
		"min_price_change": &q.Filters.MinPriceChange,
		"min_market_cap":   &q.Filters.MinMarketCap,
		"min_liquidity":    &q.Filters.MinLiquidity,
	} {
		raw := values.Get(param)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return q, fmt.Errorf("invalid %s %q", param, raw)
		}
		*dst = &d
	}

	q.Filters.Protocol = values.Get("protocol")
	q.Filters.Search = values.Get("search")

	switch sb := values.Get("sort_by"); sb {
	case "":
		q.Sort.Metric = token.SortVolume
	case string(token.SortVolume), string(token.SortPriceChange), string(token.SortMarketCap), string(token.SortLiquidity), string(token.SortTransactions):
		q.Sort.Metric = token.SortMetric(sb)
	default:
		return q, fmt.Errorf("invalid sort_by %q", sb)
	}

	switch so := values.Get("sort_order"); so {
	case "":
		q.Sort.Order = token.OrderDesc
	case string(token.OrderAsc), string(token.OrderDesc):
		q.Sort.Order = token.SortOrder(so)
	default:
		return q, fmt.Errorf("invalid sort_order %q", so)
	}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return q, fmt.Errorf("invalid limit %q", raw)
		}
		q.Pagination.Limit = n
	}
	q.Pagination.Cursor = values.Get("cursor")

	return q, nil
}

func (s *Server) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": msg})
}
