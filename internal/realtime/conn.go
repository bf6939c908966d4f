package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConnState is one stage of a connection's lifecycle.
type ConnState string

// Connection lifecycle states. A connection moves
// Connecting -> Authenticated -> Active and ends in Idle or Disconnected.
const (
	StateConnecting    ConnState = "connecting"
	StateAuthenticated ConnState = "authenticated"
	StateActive        ConnState = "active"
	StateIdle          ConnState = "idle"
	StateDisconnected  ConnState = "disconnected"
)

// Sender abstracts the transport write side so the protocol logic can be
// tested without a live socket.
type Sender interface {
	Send(msg OutboundMessage) error
	Close() error
}

// Connection is one live client connection, processed by a dedicated actor
// goroutine draining the inbox channel.
type Connection struct {
	ID       string
	PlayerID string

	hub    *Hub
	sender Sender
	inbox  chan InboundMessage
	done   chan struct{}
	once   sync.Once

	mu            sync.Mutex
	state         ConnState
	lastPing      time.Time
	lastHeartbeat time.Time
	ackedVersion  int64
	staleFlagged  bool
}

func newConnection(hub *Hub, playerID string, sender Sender, now time.Time) *Connection {
	return &Connection{
		ID:            uuid.New().String(),
		PlayerID:      playerID,
		hub:           hub,
		sender:        sender,
		inbox:         make(chan InboundMessage, 16),
		done:          make(chan struct{}),
		state:         StateConnecting,
		lastPing:      now,
		lastHeartbeat: now,
	}
}

// Deliver places one inbound message on the connection's inbox. It reports
// false when the connection is shut down or the inbox is full; a full inbox
// means the client is flooding faster than the actor drains.
func (c *Connection) Deliver(msg InboundMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.inbox <- msg:
		return true
	default:
		return false
	}
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AckedVersion returns the last document version the client acknowledged.
func (c *Connection) AckedVersion() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ackedVersion
}

// StaleFlagged reports whether the sweep marked this connection as having
// stale heartbeats despite fresh pings.
func (c *Connection) StaleFlagged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staleFlagged
}

// run is the connection actor. All per-connection protocol handling happens
// on this single goroutine.
func (c *Connection) run() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.inbox:
			c.hub.handleMessage(c, msg)
		}
	}
}

// shutdown transitions the connection to Disconnected and closes the
// transport. Safe to call more than once.
func (c *Connection) shutdown() {
	c.once.Do(func() {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()

		close(c.done)
		_ = c.sender.Close()
	})
}

func (c *Connection) send(msg OutboundMessage) error {
	return c.sender.Send(msg)
}

func (c *Connection) touchPing(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPing = now
}

func (c *Connection) touchHeartbeat(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPing = now
	c.lastHeartbeat = now
	c.staleFlagged = false
	if c.state == StateAuthenticated || c.state == StateIdle {
		c.state = StateActive
	}
}

func (c *Connection) setAcked(version int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ackedVersion = version
}
