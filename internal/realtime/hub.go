package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/store"
)

// Sweep thresholds. A connection whose lastPing is older than pingStaleAfter
// is dead and removed. One whose lastHeartbeat is older than
// heartbeatStaleAfter while pings stay fresh is only flagged, since that
// pattern means message loss rather than a dead socket.
const (
	defaultPingStaleAfter      = 90 * time.Second
	defaultHeartbeatStaleAfter = 30 * time.Second
	defaultSweepInterval       = 15 * time.Second
)

// QueueAccess is the document access the hub needs: reads for version
// comparison and the metadata-only sync stamp.
type QueueAccess interface {
	Get(ctx context.Context, playerID string) (*domain.QueueDocument, error)
	MarkSynced(ctx context.Context, playerID string, at time.Time) error
}

// HubConfig tunes connection staleness handling.
type HubConfig struct {
	PingStaleAfter      time.Duration
	HeartbeatStaleAfter time.Duration
	SweepInterval       time.Duration
}

func (c *HubConfig) applyDefaults() {
	if c.PingStaleAfter <= 0 {
		c.PingStaleAfter = defaultPingStaleAfter
	}
	if c.HeartbeatStaleAfter <= 0 {
		c.HeartbeatStaleAfter = defaultHeartbeatStaleAfter
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
}

// Hub owns every live connection and drives the delta-sync protocol
// against the authoritative queue store.
type Hub struct {
	queues QueueAccess
	logger *slog.Logger
	config HubConfig

	mu       sync.Mutex
	conns    map[string]*Connection            // connection ID -> connection
	byPlayer map[string]map[string]*Connection // player ID -> connection IDs
	timeFunc func() time.Time                  // Injectable for testing

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates a hub over the given queue access.
func NewHub(queues QueueAccess, logger *slog.Logger, config HubConfig) *Hub {
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		queues:   queues,
		logger:   logger.With(slog.String("component", "realtime_hub")),
		config:   config,
		conns:    make(map[string]*Connection),
		byPlayer: make(map[string]map[string]*Connection),
		timeFunc: time.Now,
	}
}

// SetTimeFunc overrides the hub's clock for tests.
func (h *Hub) SetTimeFunc(fn func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timeFunc = fn
}

// Connect registers an authenticated connection for a player and starts its
// actor goroutine. A player may hold multiple concurrent connections.
func (h *Hub) Connect(playerID string, sender Sender) *Connection {
	h.mu.Lock()
	now := h.timeFunc()
	conn := newConnection(h, playerID, sender, now)
	conn.state = StateAuthenticated

	h.conns[conn.ID] = conn
	if h.byPlayer[playerID] == nil {
		h.byPlayer[playerID] = make(map[string]*Connection)
	}
	h.byPlayer[playerID][conn.ID] = conn
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		conn.run()
	}()

	h.logger.Info("connection registered",
		slog.String("connection_id", conn.ID),
		slog.String("player_id", playerID))

	return conn
}

// Disconnect removes one connection and shuts its actor down.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
		if peers, ok := h.byPlayer[conn.PlayerID]; ok {
			delete(peers, connID)
			if len(peers) == 0 {
				delete(h.byPlayer, conn.PlayerID)
			}
		}
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	conn.shutdown()

	h.logger.Info("connection removed",
		slog.String("connection_id", connID),
		slog.String("player_id", conn.PlayerID))
}

// ConnectionCount reports the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// HandleMessage routes one raw client message onto the connection's inbox.
func (h *Hub) HandleMessage(connID string, raw []byte) error {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return errors.New("malformed message")
	}

	h.mu.Lock()
	conn, ok := h.conns[connID]
	h.mu.Unlock()
	if !ok {
		return errors.New("unknown connection")
	}

	if !conn.Deliver(msg) {
		return errors.New("connection inbox unavailable")
	}
	return nil
}

// handleMessage runs on the connection's actor goroutine.
func (h *Hub) handleMessage(conn *Connection, msg InboundMessage) {
	h.mu.Lock()
	now := h.timeFunc()
	h.mu.Unlock()

	switch msg.Type {
	case MsgPing:
		conn.touchPing(now)
		h.reply(conn, OutboundMessage{
			Type:       MsgPong,
			ServerTime: now.UnixMilli(),
			EchoSentAt: msg.SentAt,
		})

	case MsgHeartbeat:
		conn.touchHeartbeat(now)
		h.syncConnection(conn, msg.QueueVersion, nil, now)

	case MsgSyncRequest:
		conn.touchPing(now)
		h.syncConnection(conn, msg.QueueVersion, nil, now)

	case MsgDeltaUpdate:
		// Client-pushed local changes never mutate server state here; they
		// only trigger version reconciliation. Real mutations re-enter
		// through the atomic operation path.
		conn.touchPing(now)
		h.syncConnection(conn, msg.QueueVersion, msg.Delta, now)

	case MsgConflictResolution:
		conn.touchPing(now)
		h.logger.Debug("conflict acknowledged",
			slog.String("connection_id", conn.ID),
			slog.String("conflict_id", msg.ConflictID))

	default:
		h.reply(conn, OutboundMessage{
			Type:       MsgError,
			ServerTime: now.UnixMilli(),
			Error:      "unsupported message type",
		})
	}
}

// syncConnection compares the client-reported version against the
// authoritative document and pushes whatever the client needs to converge.
func (h *Hub) syncConnection(conn *Connection, clientVersion int64, clientDelta json.RawMessage, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc, err := h.queues.Get(ctx, conn.PlayerID)
	if err != nil {
		if errors.Is(err, store.ErrQueueNotFound) {
			// No document yet; nothing to reconcile against.
			conn.setAcked(0)
			h.reply(conn, OutboundMessage{
				Type:       MsgHeartbeatAck,
				ServerTime: now.UnixMilli(),
				Version:    0,
			})
			return
		}
		h.logger.Error("failed to load document for sync",
			slog.String("player_id", conn.PlayerID),
			slog.String("error", err.Error()))
		return
	}

	var delivered bool
	switch {
	case clientVersion == doc.Version && clientDelta == nil:
		conn.setAcked(doc.Version)
		delivered = h.reply(conn, OutboundMessage{
			Type:       MsgHeartbeatAck,
			ServerTime: now.UnixMilli(),
			Version:    doc.Version,
		})

	case clientVersion > doc.Version:
		// The client claims a version the server never issued.
		delivered = h.pushConflict(conn, doc, clientVersion, ConflictVersionAhead, clientDelta, now)

	case clientDelta != nil:
		// A local mutation based on any stale or even current version is
		// discarded; the persisted state wins.
		delivered = h.pushConflict(conn, doc, clientVersion, ConflictDivergentDelta, clientDelta, now)

	case doc.Version-clientVersion == 1:
		delivered = h.reply(conn, OutboundMessage{
			Type:       MsgDelta,
			ServerTime: now.UnixMilli(),
			Version:    doc.Version,
			Delta:      NewQueueDelta(doc, clientVersion),
		})
		conn.setAcked(doc.Version)

	default:
		delivered = h.pushSnapshot(conn, doc, now)
	}

	if delivered {
		h.markSynced(ctx, conn.PlayerID, now)
	}
}

// markSynced stamps the document's last-synced time after the client
// completed an exchange. Best effort: a failed stamp never disturbs the
// connection.
func (h *Hub) markSynced(ctx context.Context, playerID string, now time.Time) {
	if err := h.queues.MarkSynced(ctx, playerID, now); err != nil {
		h.logger.Warn("failed to stamp sync time",
			slog.String("player_id", playerID),
			slog.String("error", err.Error()))
	}
}

func (h *Hub) pushSnapshot(conn *Connection, doc *domain.QueueDocument, now time.Time) bool {
	body, err := json.Marshal(doc)
	if err != nil {
		h.logger.Error("failed to marshal snapshot",
			slog.String("player_id", conn.PlayerID),
			slog.String("error", err.Error()))
		return false
	}

	delivered := h.reply(conn, OutboundMessage{
		Type:       MsgFullSync,
		ServerTime: now.UnixMilli(),
		Version:    doc.Version,
		Snapshot:   body,
	})
	conn.setAcked(doc.Version)
	return delivered
}

func (h *Hub) pushConflict(conn *Connection, doc *domain.QueueDocument, clientVersion int64, conflictType string, clientValue json.RawMessage, now time.Time) bool {
	serverValue, err := json.Marshal(doc)
	if err != nil {
		h.logger.Error("failed to marshal conflict state",
			slog.String("player_id", conn.PlayerID),
			slog.String("error", err.Error()))
		return false
	}

	record := &ConflictRecord{
		ConflictID:    uuid.New(),
		Type:          conflictType,
		ServerVersion: doc.Version,
		ClientVersion: clientVersion,
		ServerValue:   serverValue,
		ClientValue:   clientValue,
		DetectedAt:    now,
	}

	h.logger.Warn("sync conflict detected",
		slog.String("connection_id", conn.ID),
		slog.String("player_id", conn.PlayerID),
		slog.String("conflict_type", conflictType),
		slog.Int64("server_version", doc.Version),
		slog.Int64("client_version", clientVersion))

	// The losing client discards its local delta and resyncs from the
	// snapshot embedded in the conflict message.
	delivered := h.reply(conn, OutboundMessage{
		Type:       MsgConflict,
		ServerTime: now.UnixMilli(),
		Version:    doc.Version,
		Snapshot:   serverValue,
		Conflict:   record,
	})
	conn.setAcked(doc.Version)
	return delivered
}

// NotifyQueueChanged pushes the new document state to every live connection
// for the player. Callers invoke it after a successful atomic mutation.
func (h *Hub) NotifyQueueChanged(doc *domain.QueueDocument) {
	h.mu.Lock()
	now := h.timeFunc()
	peers := make([]*Connection, 0, len(h.byPlayer[doc.PlayerID]))
	for _, conn := range h.byPlayer[doc.PlayerID] {
		peers = append(peers, conn)
	}
	h.mu.Unlock()

	for _, conn := range peers {
		acked := conn.AckedVersion()
		switch {
		case acked == doc.Version:
			continue
		case doc.Version-acked == 1:
			h.reply(conn, OutboundMessage{
				Type:       MsgDelta,
				ServerTime: now.UnixMilli(),
				Version:    doc.Version,
				Delta:      NewQueueDelta(doc, acked),
			})
			conn.setAcked(doc.Version)
		default:
			h.pushSnapshot(conn, doc, now)
		}
	}
}

func (h *Hub) reply(conn *Connection, msg OutboundMessage) bool {
	if err := conn.send(msg); err != nil {
		h.logger.Warn("failed to send message, dropping connection",
			slog.String("connection_id", conn.ID),
			slog.String("player_id", conn.PlayerID),
			slog.String("error", err.Error()))
		h.Disconnect(conn.ID)
		return false
	}
	return true
}

// Sweep removes connections with stale pings and flags connections whose
// heartbeats stopped while pings continue.
func (h *Hub) Sweep() {
	h.mu.Lock()
	now := h.timeFunc()
	var toDrop []*Connection
	var toFlag []*Connection
	for _, conn := range h.conns {
		conn.mu.Lock()
		pingAge := now.Sub(conn.lastPing)
		heartbeatAge := now.Sub(conn.lastHeartbeat)
		conn.mu.Unlock()

		switch {
		case pingAge > h.config.PingStaleAfter:
			toDrop = append(toDrop, conn)
		case heartbeatAge > h.config.HeartbeatStaleAfter:
			toFlag = append(toFlag, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range toDrop {
		h.logger.Info("dropping stale connection",
			slog.String("connection_id", conn.ID),
			slog.String("player_id", conn.PlayerID))
		h.Disconnect(conn.ID)
	}

	for _, conn := range toFlag {
		conn.mu.Lock()
		conn.staleFlagged = true
		if conn.state == StateActive {
			conn.state = StateIdle
		}
		conn.mu.Unlock()

		h.logger.Debug("flagging heartbeat-stale connection",
			slog.String("connection_id", conn.ID),
			slog.String("player_id", conn.PlayerID))
	}
}

// Start launches the background staleness sweeper.
func (h *Hub) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ticker := time.NewTicker(h.config.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Sweep()
			}
		}
	}()
}

// Stop halts the sweeper and shuts down every live connection.
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
	}

	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		h.Disconnect(conn.ID)
	}
	h.wg.Wait()
}
