// Package realtime streams completed analyses to WebSocket subscribers.
//
// Clients connect to /ws and receive a compact summary of every analysis
// as it finishes. A client may narrow the feed by sending a Subscription
// message at any time; each message replaces the previous filter.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rcollins22/rugchekr/internal/analysis"
	"github.com/rcollins22/rugchekr/internal/metrics"
	"github.com/rcollins22/rugchekr/internal/risk"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4 << 10
	sendBuffer     = 64
	eventBuffer    = 256

	// MaxSubscribers caps concurrent WebSocket connections.
	MaxSubscribers = 10000
)

// EventType names a feed event.
type EventType string

const (
	EventAnalysisCompleted EventType = "analysis.completed"
	// EventHighRisk follows the completed event for HIGH RISK results.
	EventHighRisk EventType = "analysis.high_risk"
)

// Summary is the feed payload for one analysis.
type Summary struct {
	ID             string   `json:"id"`
	Address        string   `json:"address"`
	Name           string   `json:"name,omitempty"`
	Symbol         string   `json:"symbol,omitempty"`
	RiskScore      int      `json:"riskScore"`
	AuditScore     int      `json:"auditScore"`
	RiskLevel      string   `json:"riskLevel"`
	HoneypotStatus string   `json:"honeypotStatus"`
	FailedSources  []string `json:"failedSources,omitempty"`
}

// Event is one feed message.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      Summary   `json:"data"`
}

// Subscription filters the feed for a client. Filters combine with AND;
// an empty subscription matches everything.
type Subscription struct {
	AllEvents    bool        `json:"allEvents"`
	EventTypes   []EventType `json:"eventTypes"`
	Addresses    []string    `json:"addresses"`    // watch specific tokens
	MinRiskScore int         `json:"minRiskScore"` // only results at or above this score
}

// Matches reports whether e passes every filter in s.
func (s *Subscription) Matches(e *Event) bool {
	if s == nil || s.AllEvents {
		return true
	}
	if len(s.EventTypes) > 0 && !slices.Contains(s.EventTypes, e.Type) {
		return false
	}
	if len(s.Addresses) > 0 && !slices.ContainsFunc(s.Addresses, func(a string) bool {
		return strings.EqualFold(a, e.Data.Address)
	}) {
		return false
	}
	return e.Data.RiskScore >= s.MinRiskScore
}

// Stats describes feed activity since start.
type Stats struct {
	Subscribers      int   `json:"subscribers"`
	PeakSubscribers  int64 `json:"peakSubscribers"`
	TotalConnections int64 `json:"totalConnections"`
	EventsPublished  int64 `json:"eventsPublished"`
	EventsDropped    int64 `json:"eventsDropped"`
}

// subscriber is one WebSocket connection.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	sub  atomic.Pointer[Subscription]
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	s.sub.Store(&Subscription{AllEvents: true})
	return s
}

// Hub fans finished analyses out to subscribers. Run owns the subscriber
// set; other goroutines reach it only through channels, except Stats and
// the connection cap which take the read lock.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	maxSubs  int

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	events chan *Event
	joins  chan *subscriber
	leaves chan *subscriber
	done   chan struct{} // closed when Run exits

	published   atomic.Int64
	dropped     atomic.Int64
	connections atomic.Int64
	peak        atomic.Int64
}

var _ analysis.Publisher = (*Hub)(nil)

// NewHub creates a hub. Browser connections are accepted from the
// server's own origin and from allowedOrigins ("*" allows any).
func NewHub(logger *slog.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{
		logger:  logger,
		maxSubs: MaxSubscribers,
		subs:    make(map[*subscriber]struct{}),
		events:  make(chan *Event, eventBuffer),
		joins:   make(chan *subscriber),
		leaves:  make(chan *subscriber),
		done:    make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser clients
		}
		if origin == "http://"+r.Host || origin == "https://"+r.Host {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// Run owns the subscriber set until ctx ends, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("realtime hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.subs {
				h.remove(s)
			}
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(0)
			h.logger.Info("realtime hub stopped")
			return

		case s := <-h.joins:
			h.mu.Lock()
			h.subs[s] = struct{}{}
			n := len(h.subs)
			h.mu.Unlock()
			h.connections.Add(1)
			if int64(n) > h.peak.Load() {
				h.peak.Store(int64(n))
			}
			metrics.ActiveWebSocketClients.Set(float64(n))
			h.logger.Debug("subscriber joined", "subscribers", n)

		case s := <-h.leaves:
			h.mu.Lock()
			h.remove(s)
			n := len(h.subs)
			h.mu.Unlock()
			metrics.ActiveWebSocketClients.Set(float64(n))
			h.logger.Debug("subscriber left", "subscribers", n)

		case e := <-h.events:
			h.fanOut(e)
		}
	}
}

// remove closes s's queue once. The caller holds the write lock.
func (h *Hub) remove(s *subscriber) {
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
}

// fanOut encodes e once and queues it for every matching subscriber.
// Subscribers whose queue is full are disconnected.
func (h *Hub) fanOut(e *Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("encode event", "error", err)
		return
	}
	h.published.Add(1)

	var slow []*subscriber
	h.mu.RLock()
	for s := range h.subs {
		if !s.sub.Load().Matches(e) {
			continue
		}
		select {
		case s.send <- msg:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, s := range slow {
		h.remove(s)
	}
	h.mu.Unlock()
	h.logger.Warn("disconnected slow subscribers", "count", len(slow))
}

// publish queues e without blocking the analysis that produced it.
func (h *Hub) publish(e *Event) {
	select {
	case h.events <- e:
	default:
		h.dropped.Add(1)
		h.logger.Warn("event queue full, dropping event", "type", e.Type, "address", e.Data.Address)
	}
}

// PublishAnalysis announces a finished analysis.
func (h *Hub) PublishAnalysis(a *analysis.ContractAnalysis) {
	s := Summarize(a)
	now := time.Now().UTC()
	h.publish(&Event{Type: EventAnalysisCompleted, Timestamp: now, Data: s})
	if a.RiskLevel == risk.LevelHigh {
		h.publish(&Event{Type: EventHighRisk, Timestamp: now, Data: s})
	}
}

// Summarize reduces a record to its feed payload.
func Summarize(a *analysis.ContractAnalysis) Summary {
	return Summary{
		ID:             a.ID,
		Address:        a.Address,
		Name:           a.Token.Name,
		Symbol:         a.Token.Symbol,
		RiskScore:      a.RiskScore,
		AuditScore:     a.AuditScore,
		RiskLevel:      a.RiskLevel.Label,
		HoneypotStatus: string(a.HoneypotStatus),
		FailedSources:  a.FailedSources(),
	}
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	n := len(h.subs)
	h.mu.RUnlock()
	return Stats{
		Subscribers:      n,
		PeakSubscribers:  h.peak.Load(),
		TotalConnections: h.connections.Load(),
		EventsPublished:  h.published.Load(),
		EventsDropped:    h.dropped.Load(),
	}
}

// HandleWebSocket upgrades the request and attaches a subscriber that
// receives every event until it sends a narrower Subscription.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	h.mu.RLock()
	full := len(h.subs) >= h.maxSubs
	h.mu.RUnlock()
	if full {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := newSubscriber(conn)
	select {
	case h.joins <- s:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writeLoop(s)
	go h.readLoop(s)
}

// readLoop applies subscription updates until the connection drops.
func (h *Hub) readLoop(s *subscriber) {
	defer func() {
		select {
		case h.leaves <- s:
		case <-h.done:
		}
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		var sub Subscription
		if err := json.Unmarshal(msg, &sub); err != nil {
			h.logger.Debug("ignoring malformed subscription", "error", err)
			continue
		}
		s.sub.Store(&sub)
	}
}

// writeLoop drains s.send and keeps the connection alive with pings.
func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
