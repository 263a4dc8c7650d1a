// Package ws manages live typing connections and their metric streams.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/typetrack/typetrack/internal/domain/model"
	"github.com/typetrack/typetrack/internal/domain/typing"
	"github.com/typetrack/typetrack/pkg/logger"
	"github.com/typetrack/typetrack/pkg/metrics"
)

// defaultSendBuffer sizes each connection's outbound queue. Sends beyond it
// are dropped, never blocked on: broadcasts are fire-and-forget.
const defaultSendBuffer = 64

// Event type names on the wire.
const (
	eventConnected         = "connected"
	eventMetricsUpdate     = "metrics_update"
	eventLeaderboardUpdate = "leaderboard_update"
	eventError             = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browsers connect from arbitrary dev origins; the API carries no
		// cookie-based auth so cross-origin upgrades are harmless.
		return true
	},
}

// message is the envelope for every event sent to a client.
type message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// progressPayload is the inbound live-typing progress message.
type progressPayload struct {
	Input     string `json:"input"`
	Prompt    string `json:"prompt"`
	StartTime string `json:"start_time"`
}

// leaderboardPayload is the global fan-out sent on session completion.
type leaderboardPayload struct {
	User      string    `json:"user"`
	WPM       float64   `json:"wpm"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// wireConn is the slice of *websocket.Conn the hub uses, so tests can
// substitute a fake connection.
type wireConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// Hub owns the registry of live connections and routes events to them.
// Every connection failure stays contained to that connection.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*client

	sendBuffer int
	now        func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithSendBuffer sizes each connection's outbound message buffer.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithClock overrides the time source used for elapsed-time computation.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		conns:      make(map[string]*client),
		sendBuffer: defaultSendBuffer,
		now:        time.Now,
		logger:     logger.Get().Named("hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleWS upgrades the request and serves the connection until it closes.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := h.attach(conn)
	h.logger.Info(r.Context(), "client connected", logger.String("connID", c.id))

	c.send(message{Type: eventConnected, Data: map[string]any{
		"message":   "Connected",
		"timestamp": h.now().UTC(),
	}})

	// readPump blocks until the peer goes away.
	c.readPump()

	h.detach(c)
	h.logger.Info(r.Context(), "client disconnected", logger.String("connID", c.id))
}

// attach registers a new connection and starts its write pump.
func (h *Hub) attach(conn wireConn) *client {
	c := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		out:  make(chan message, h.sendBuffer),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	metrics.IncLiveConnections()

	go c.writePump()
	return c
}

// detach removes the connection and stops further sends to it. In-flight
// results for the connection are discarded with it.
func (h *Hub) detach(c *client) {
	h.mu.Lock()
	_, present := h.conns[c.id]
	delete(h.conns, c.id)
	h.mu.Unlock()

	if present {
		c.closeOnce.Do(func() { close(c.out) })
		metrics.DecLiveConnections()
	}
	_ = c.conn.Close()
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// BroadcastLeaderboardUpdate fans a completed session out to every live
// connection. Fire-and-forget: slow consumers lose messages rather than
// stalling the hub.
func (h *Hub) BroadcastLeaderboardUpdate(_ context.Context, e model.SessionRecorded) {
	payload := message{Type: eventLeaderboardUpdate, Data: leaderboardPayload{
		User:      e.Username,
		WPM:       e.WPM,
		Accuracy:  e.Accuracy,
		Timestamp: e.Timestamp,
	}}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.send(payload)
	}
	metrics.RecordBroadcast(eventLeaderboardUpdate)
}

// handleProgress feeds one raw progress event through the calculator and
// answers the originating connection only.
func (h *Hub) handleProgress(c *client, p progressPayload) {
	metrics.RecordProgressEvent()

	// Missing prompt or start time is not worth a reply; ignore silently.
	if p.Prompt == "" || p.StartTime == "" {
		return
	}
	start, ok := parseStartTime(p.StartTime)
	if !ok {
		return
	}

	update, ok, fault := h.compute(typing.Input{
		Prompt:  p.Prompt,
		Typed:   p.Input,
		Elapsed: h.now().UTC().Sub(start).Seconds(),
	})
	if fault != nil {
		// A fault stays contained to this connection; the hub keeps serving.
		h.logger.Error(context.Background(), "metrics computation failed",
			logger.String("connID", c.id), logger.Error(fault))
		c.send(message{Type: eventError, Data: map[string]string{
			"message": "Failed to update metrics",
		}})
		return
	}
	if !ok {
		return
	}

	c.send(message{Type: eventMetricsUpdate, Data: update})
	metrics.RecordMetricsUpdate()
	metrics.RecordBroadcast(eventMetricsUpdate)
}

// parseStartTime accepts ISO-8601 start times. Browsers often emit them
// without a zone offset, which RFC 3339 rejects; zone-less values are read
// as UTC.
func parseStartTime(v string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02T15:04:05", v); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// compute isolates calculator panics so one bad event cannot take down the
// reader goroutine.
func (h *Hub) compute(in typing.Input) (update typing.Update, ok bool, fault error) {
	defer func() {
		if r := recover(); r != nil {
			update, ok = typing.Update{}, false
			fault = &calcFault{value: r}
		}
	}()
	update, ok = typing.Compute(in)
	return update, ok, nil
}
