package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"

	"github.com/SWM-FIRE/modoco-backend-sub000/modules/fanout"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/registry"
)

// wsWriter is the write side of a websocket connection.
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// client owns the outbound side of one connection: frames are queued and
// written by a single goroutine so handlers never block on the socket.
type client struct {
	conn    *registry.Connection
	ws      wsWriter
	send    chan []byte
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	logger  types.Logger
}

func newClient(conn *registry.Connection, ws wsWriter, queueSize int, logger types.Logger) *client {
	return &client{
		conn:    conn,
		ws:      ws,
		send:    make(chan []byte, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Deliver queues a bus envelope for the client. User-addressed direct
// messages reach every connection of the user; only chat connections keep them.
func (c *client) Deliver(env fanout.Envelope) {
	if env.Event == "" {
		return
	}
	if env.Event == string(EventDirectMessage) && c.conn.Namespace != NamespaceChat {
		return
	}
	c.enqueue(encodeFrame(env.Event, env.Data))
}

// emit queues an event with payload.
func (c *client) emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("Failed to encode frame", "event", event, "error", err)
		return
	}
	c.enqueue(encodeFrame(event, data))
}

func (c *client) exception(message string) {
	c.emit(EventException, Exception{Message: message})
}

func (c *client) enqueue(frame []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		c.logger.Warn("Send queue full, closing slow connection", "sid", c.conn.ID)
		c.close()
	}
}

// close tells the write pump to flush and close the socket. Safe to call
// more than once.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// wait blocks until the write pump has exited.
func (c *client) wait() {
	<-c.stopped
}

// writePump drains the send queue until the client is closed, then closes
// the socket.
func (c *client) writePump(writeTimeout, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.stopped)
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("Write failed", "sid", c.conn.ID, "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.flush(writeTimeout)
			return
		}
	}
}

// flush writes whatever is still queued, best effort.
func (c *client) flush(writeTimeout time.Duration) {
	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
