package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/typetrack/typetrack/pkg/logger"
	"github.com/typetrack/typetrack/pkg/metrics"
)

// client is one live connection. Reads happen on the caller's goroutine,
// writes are serialized through the out channel by writePump.
type client struct {
	id   string
	hub  *Hub
	conn wireConn

	out       chan message
	closeOnce sync.Once
}

// send queues a message without blocking. A full buffer means the peer is
// not keeping up; the message is dropped and counted.
func (c *client) send(m message) {
	defer func() {
		// The out channel closes on detach; a racing send is a drop.
		if recover() != nil {
			metrics.RecordDroppedSend()
		}
	}()

	select {
	case c.out <- m:
	default:
		metrics.RecordDroppedSend()
	}
}

// readPump consumes progress events until the connection fails or closes.
// Malformed payloads are skipped, not fatal.
func (c *client) readPump() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var p progressPayload
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		c.hub.handleProgress(c, p)
	}
}

// writePump drains the out channel onto the wire until it closes.
func (c *client) writePump() {
	for m := range c.out {
		if err := c.conn.WriteJSON(m); err != nil {
			c.hub.logger.Debug(context.Background(), "write failed",
				logger.String("connID", c.id), logger.Error(err))
			return
		}
	}
}

// calcFault wraps a recovered calculator panic as an error.
type calcFault struct {
	value any
}

func (f *calcFault) Error() string {
	return fmt.Sprintf("calculator panic: %v", f.value)
}
