package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"tc.com/token-radar/pkg/logging"
	"tc.com/token-radar/pkg/metrics"
	"tc.com/token-radar/pkg/server/service"
	"tc.com/token-radar/pkg/server/token"
)

// initialDataLimit is how many top-volume tokens a client receives on connect.
const initialDataLimit = 30

// WebSocketServer streams token updates to connected clients.
type WebSocketServer struct {
	addr     string
	tokens   *service.TokenService
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*WebSocketClient]bool

	updates chan []token.Record

	ctx    context.Context
	cancel context.CancelFunc
}

// WebSocketClient is one connected client and its active filter state.
type WebSocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *WebSocketServer

	mu    sync.RWMutex
	query token.Query
}

// clientMessage is what clients send us.
type clientMessage struct {
	Type    string        `json:"type"` // "filter", "ping"
	Filters filterPayload `json:"filters"`
}

type filterPayload struct {
	TimePeriod     string `json:"time_period,omitempty"`
	MinVolume      string `json:"min_volume,omitempty"`
	MinPriceChange string `json:"min_price_change,omitempty"`
	MinMarketCap   string `json:"min_market_cap,omitempty"`
	MinLiquidity   string `json:"min_liquidity,omitempty"`
	Protocol       string `json:"protocol,omitempty"`
	Search         string `json:"search,omitempty"`
	SortBy         string `json:"sort_by,omitempty"`
	SortOrder      string `json:"sort_order,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// serverMessage is what we send to clients.
type serverMessage struct {
	Type      string         `json:"type"` // "initial_data", "filter_update", "token_update", "pong"
	Timestamp string         `json:"timestamp"`
	Tokens    []token.Record `json:"tokens,omitempty"`
}

// NewWebSocketServer creates a WebSocket streaming server.
func NewWebSocketServer(addr string, tokens *service.TokenService, logger *logging.Logger) *WebSocketServer {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketServer{
		addr:   addr,
		tokens: tokens,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
		updates: make(chan []token.Record, 100),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the WebSocket server and blocks until Stop is called.
func (s *WebSocketServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.broadcastUpdates()

	s.logger.Info("Starting WebSocket server", "addr", s.addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server error", "error", err)
		}
	}()

	<-s.ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Stop stops the WebSocket server.
func (s *WebSocketServer) Stop() {
	s.cancel()
}

// Broadcast queues changed token records for delivery to all clients.
// It never blocks the caller; a saturated queue drops the update.
func (s *WebSocketServer) Broadcast(records []token.Record) {
	select {
	case s.updates <- records:
	case <-time.After(100 * time.Millisecond):
		s.logger.Warn("Update channel full, dropping token update")
	}
}

// handleWebSocket upgrades a connection and sends the initial data set.
func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &WebSocketClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
		query: token.Query{
			Sort:       token.Sort{Metric: token.SortVolume, Order: token.OrderDesc},
			Pagination: token.Pagination{Limit: initialDataLimit},
		},
	}

	s.registerClient(client)

	go client.writePump()
	go client.readPump()

	client.sendSnapshot("initial_data")

	s.logger.Info("New WebSocket client connected", "remote", conn.RemoteAddr())
}

func (s *WebSocketServer) registerClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
	metrics.WebSocketClients.Set(float64(len(s.clients)))
}

func (s *WebSocketServer) unregisterClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
	metrics.WebSocketClients.Set(float64(len(s.clients)))
}

func (s *WebSocketServer) broadcastUpdates() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case records := <-s.updates:
			s.broadcast(records)
		}
	}
}

// broadcast delivers a token_update message carrying the full records of
// every changed token to each client.
func (s *WebSocketServer) broadcast(records []token.Record) {
	if len(records) == 0 {
		return
	}

	message := serverMessage{
		Type:      "token_update",
		Timestamp: time.Now().Format(time.RFC3339),
		Tokens:    records,
	}

	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal token update", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			s.logger.Warn("Client send buffer full, skipping update")
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.server.logger.Warn("Invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "filter":
		c.applyFilter(msg.Filters)
	case "ping":
		c.sendPong()
	default:
		c.server.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

// applyFilter replaces the client's query and answers with a filter_update
// carrying the matching records.
func (c *WebSocketClient) applyFilter(p filterPayload) {
	q, err := p.toQuery()
	if err != nil {
		c.server.logger.Warn("Invalid filter payload", "error", err)
		return
	}

	c.mu.Lock()
	c.query = q
	c.mu.Unlock()

	c.sendSnapshot("filter_update")
}

// sendSnapshot evaluates the client's current query and sends the result
// under the given message type.
func (c *WebSocketClient) sendSnapshot(msgType string) {
	c.mu.RLock()
	q := c.query
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(c.server.ctx, 5*time.Second)
	defer cancel()

	resp, err := c.server.tokens.GetTokensPaginated(ctx, q)
	if err != nil {
		c.server.logger.Error("Snapshot query for client failed", "error", err)
		return
	}

	message := serverMessage{
		Type:      msgType,
		Timestamp: time.Now().Format(time.RFC3339),
		Tokens:    resp.Data,
	}
	data, err := json.Marshal(message)
	if err != nil {
		c.server.logger.Error("Failed to marshal snapshot message", "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		c.server.logger.Warn("Client send buffer full, dropping snapshot")
	}
}

func (c *WebSocketClient) sendPong() {
	pong := map[string]string{"type": "pong"}
	data, _ := json.Marshal(pong)
	select {
	case c.send <- data:
	default:
	}
}

// toQuery converts a filter payload into a validated token query.
func (p filterPayload) toQuery() (token.Query, error) {
	q := token.Query{
		Sort:       token.Sort{Metric: token.SortVolume, Order: token.OrderDesc},
		Pagination: token.Pagination{Limit: initialDataLimit},
	}

	switch p.TimePeriod {
	case "", string(token.Period1h):
		q.Filters.TimePeriod = token.Period1h
	case string(token.Period24h):
		q.Filters.TimePeriod = token.Period24h
	default:
		return q, errInvalidFilter("time_period", p.TimePeriod)
	}
	q.Sort.TimePeriod = q.Filters.TimePeriod

	for _, f := range []struct {
		name string
		raw  string
		dst  **decimal.Decimal
	}{
		{"min_volume", p.MinVolume, &q.Filters.MinVolume},
		{"min_price_change", p.MinPriceChange, &q.Filters.MinPriceChange},
		{"min_market_cap", p.MinMarketCap, &q.Filters.MinMarketCap},
		{"min_liquidity", p.MinLiquidity, &q.Filters.MinLiquidity},
	} {
		if f.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return q, errInvalidFilter(f.name, f.raw)
		}
		*f.dst = &d
	}

	q.Filters.Protocol = p.Protocol
	q.Filters.Search = p.Search

	if p.SortBy != "" {
		switch p.SortBy {
		case string(token.SortVolume), string(token.SortPriceChange), string(token.SortMarketCap), string(token.SortLiquidity), string(token.SortTransactions):
			q.Sort.Metric = token.SortMetric(p.SortBy)
		default:
			return q, errInvalidFilter("sort_by", p.SortBy)
		}
	}
	if p.SortOrder != "" {
		switch p.SortOrder {
		case string(token.OrderAsc), string(token.OrderDesc):
			q.Sort.Order = token.SortOrder(p.SortOrder)
		default:
			return q, errInvalidFilter("sort_order", p.SortOrder)
		}
	}
	if p.Limit > 0 {
		q.Pagination.Limit = p.Limit
	}

	return q, nil
}

func errInvalidFilter(field, value string) error {
	return fmt.Errorf("invalid %s %q", field, value)
}
