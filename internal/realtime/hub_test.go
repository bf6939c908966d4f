package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/platform/logger"
	"github.com/veldtman/grind-api/internal/platform/memstore"
	"github.com/veldtman/grind-api/internal/store"
)

// recordingSender captures outbound messages for assertions.
type recordingSender struct {
	mu     sync.Mutex
	msgs   []OutboundMessage
	closed bool
}

func (s *recordingSender) Send(msg OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSender) messages() []OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OutboundMessage, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *recordingSender) last(t *testing.T) OutboundMessage {
	t.Helper()
	msgs := s.messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

// fixedQueueReader serves one document regardless of context and records
// sync stamps.
type fixedQueueReader struct {
	mu         sync.Mutex
	doc        *domain.QueueDocument
	syncStamps []time.Time
}

func (r *fixedQueueReader) Get(ctx context.Context, playerID string) (*domain.QueueDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil || r.doc.PlayerID != playerID {
		return nil, store.ErrQueueNotFound
	}
	return r.doc.Clone(), nil
}

func (r *fixedQueueReader) MarkSynced(ctx context.Context, playerID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil || r.doc.PlayerID != playerID {
		return store.ErrQueueNotFound
	}
	r.doc.LastSynced = at
	r.syncStamps = append(r.syncStamps, at)
	return nil
}

func (r *fixedQueueReader) stampCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.syncStamps)
}

func docAtVersion(t *testing.T, version int64) *domain.QueueDocument {
	t.Helper()

	doc, err := domain.NewQueueDocument("player-1")
	require.NoError(t, err)
	doc.Version = version
	doc.CurrentTask = &domain.Task{
		ID:       "task-current",
		Type:     domain.TaskTypeHarvesting,
		Duration: time.Minute,
	}
	doc.QueuedTasks = []domain.Task{
		{ID: "task-next", Type: domain.TaskTypeCrafting, Duration: time.Minute},
	}
	return doc
}

func newTestHub(t *testing.T, doc *domain.QueueDocument) *Hub {
	t.Helper()

	hub := NewHub(&fixedQueueReader{doc: doc}, logger.Setup("error"), HubConfig{})
	t.Cleanup(hub.Stop)
	return hub
}

func TestHub_HeartbeatEqualVersion(t *testing.T) {
	doc := docAtVersion(t, 5)
	hub := newTestHub(t, doc)

	sender := &recordingSender{}
	conn := hub.Connect("player-1", sender)
	assert.Equal(t, StateAuthenticated, conn.State())

	hub.handleMessage(conn, InboundMessage{Type: MsgHeartbeat, QueueVersion: 5})

	msg := sender.last(t)
	assert.Equal(t, MsgHeartbeatAck, msg.Type)
	assert.Equal(t, int64(5), msg.Version)
	assert.Equal(t, int64(5), conn.AckedVersion())
	assert.Equal(t, StateActive, conn.State())
}

func TestHub_ClientOneBehindGetsDelta(t *testing.T) {
	doc := docAtVersion(t, 5)
	hub := newTestHub(t, doc)

	sender := &recordingSender{}
	conn := hub.Connect("player-1", sender)

	hub.handleMessage(conn, InboundMessage{Type: MsgHeartbeat, QueueVersion: 4})

	msg := sender.last(t)
	assert.Equal(t, MsgDelta, msg.Type)
	require.NotNil(t, msg.Delta)
	assert.Equal(t, int64(4), msg.Delta.FromVersion)
	assert.Equal(t, int64(5), msg.Delta.ToVersion)
	require.NotNil(t, msg.Delta.CurrentTask)
	assert.Equal(t, "task-current", msg.Delta.CurrentTask.ID)
	assert.Equal(t, []string{"task-next"}, msg.Delta.QueuedTasks)
	assert.Equal(t, int64(5), conn.AckedVersion())
}

func TestHub_ClientFarBehindGetsSnapshot(t *testing.T) {
	doc := docAtVersion(t, 5)
	hub := newTestHub(t, doc)

	sender := &recordingSender{}
	conn := hub.Connect("player-1", sender)

	hub.handleMessage(conn, InboundMessage{Type: MsgSyncRequest, QueueVersion: 3})

	msg := sender.last(t)
	assert.Equal(t, MsgFullSync, msg.Type)
	assert.Equal(t, int64(5), msg.Version)
	assert.NotEmpty(t, msg.Snapshot)
	assert.Equal(t, int64(5), conn.AckedVersion())
}

func TestHub_ClientAheadIsConflict(t *testing.T) {
	doc := docAtVersion(t, 5)
	hub := newTestHub(t, doc)

	sender := &recordingSender{}
	conn := hub.Connect("player-1", sender)

	hub.handleMessage(conn, InboundMessage{Type: MsgHeartbeat, QueueVersion: 9})

	msg := sender.last(t)
	assert.Equal(t, MsgConflict, msg.Type)
	require.NotNil(t, msg.Conflict)
	assert.Equal(t, ConflictVersionAhead, msg.Conflict.Type)
	assert.Equal(t, int64(5), msg.Conflict.ServerVersion)
	assert.Equal(t, int64(9), msg.Conflict.ClientVersion)
	assert.NotEmpty(t, msg.Snapshot)

	// The losing client converges to the server's version.
	assert.Equal(t, int64(5), conn.AckedVersion())
}

func TestHub_DivergentDeltasServerWins(t *testing.T) {
	doc := docAtVersion(t, 5)
	hub := newTestHub(t, doc)

	first := &recordingSender{}
	second := &recordingSender{}
	connA := hub.Connect("player-1", first)
	connB := hub.Connect("player-1", second)

	hub.handleMessage(connA, InboundMessage{
		Type: MsgDeltaUpdate, QueueVersion: 4,
		Delta: []byte(`{"queued_tasks":["local-a"]}`),
	})
	hub.handleMessage(connB, InboundMessage{
		Type: MsgDeltaUpdate, QueueVersion: 4,
		Delta: []byte(`{"queued_tasks":["local-b"]}`),
	})

	for _, sender := range []*recordingSender{first, second} {
		msg := sender.last(t)
		assert.Equal(t, MsgConflict, msg.Type)
		require.NotNil(t, msg.Conflict)
		assert.Equal(t, ConflictDivergentDelta, msg.Conflict.Type)
		assert.NotEmpty(t, msg.Snapshot)
	}

	// Both connections converge on the persisted state.
	assert.Equal(t, int64(5), connA.AckedVersion())
	assert.Equal(t, int64(5), connB.AckedVersion())
}

func TestHub_PingPong(t *testing.T) {
	hub := newTestHub(t, docAtVersion(t, 1))

	sender := &recordingSender{}
	conn := hub.Connect("player-1", sender)

	hub.handleMessage(conn, InboundMessage{Type: MsgPing, SentAt: 123456})

	msg := sender.last(t)
	assert.Equal(t, MsgPong, msg.Type)
	assert.Equal(t, int64(123456), msg.EchoSentAt)
}

func TestHub_UnknownPlayerHeartbeat(t *testing.T) {
	hub := newTestHub(t, nil)

	sender := &recordingSender{}
	conn := hub.Connect("player-9", sender)

	hub.handleMessage(conn, InboundMessage{Type: MsgHeartbeat, QueueVersion: 0})

	msg := sender.last(t)
	assert.Equal(t, MsgHeartbeatAck, msg.Type)
	assert.Equal(t, int64(0), msg.Version)
}

func TestHub_StampsLastSyncedOnExchange(t *testing.T) {
	queues := memstore.NewQueueStore()
	doc, err := domain.NewQueueDocument("player-1")
	require.NoError(t, err)
	doc.QueuedTasks = []domain.Task{
		{ID: "task-next", Type: domain.TaskTypeCrafting, Duration: time.Minute},
	}
	require.NoError(t, queues.Create(context.Background(), doc))

	hub := NewHub(queues, logger.Setup("error"), HubConfig{})
	t.Cleanup(hub.Stop)

	syncedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hub.SetTimeFunc(func() time.Time { return syncedAt })

	sender := &recordingSender{}
	conn := hub.Connect("player-1", sender)

	stored, err := queues.Get(context.Background(), "player-1")
	require.NoError(t, err)
	require.True(t, stored.LastSynced.IsZero())

	hub.handleMessage(conn, InboundMessage{Type: MsgHeartbeat, QueueVersion: 0})
	require.Equal(t, int64(1), conn.AckedVersion())

	stored, err = queues.Get(context.Background(), "player-1")
	require.NoError(t, err)
	assert.Equal(t, syncedAt, stored.LastSynced)
	// Version is untouched by the sync stamp.
	assert.Equal(t, int64(1), stored.Version)
}

func TestHub_SyncStampCoversAllExchangeOutcomes(t *testing.T) {
	doc := docAtVersion(t, 5)
	reader := &fixedQueueReader{doc: doc}
	hub := NewHub(reader, logger.Setup("error"), HubConfig{})
	t.Cleanup(hub.Stop)

	sender := &recordingSender{}
	conn := hub.Connect("player-1", sender)

	hub.handleMessage(conn, InboundMessage{Type: MsgHeartbeat, QueueVersion: 5})
	assert.Equal(t, 1, reader.stampCount())

	hub.handleMessage(conn, InboundMessage{Type: MsgSyncRequest, QueueVersion: 1})
	assert.Equal(t, 2, reader.stampCount())

	hub.handleMessage(conn, InboundMessage{
		Type: MsgDeltaUpdate, QueueVersion: 4,
		Delta: []byte(`{"queued_tasks":["local"]}`),
	})
	assert.Equal(t, 3, reader.stampCount())

	// A ping carries no queue state, so it never counts as an exchange.
	hub.handleMessage(conn, InboundMessage{Type: MsgPing})
	assert.Equal(t, 3, reader.stampCount())
}

func TestHub_NotifyQueueChanged(t *testing.T) {
	doc := docAtVersion(t, 5)
	hub := newTestHub(t, doc)

	caughtUp := &recordingSender{}
	oneBehind := &recordingSender{}
	farBehind := &recordingSender{}

	connCaughtUp := hub.Connect("player-1", caughtUp)
	connOneBehind := hub.Connect("player-1", oneBehind)
	connFarBehind := hub.Connect("player-1", farBehind)
	connCaughtUp.setAcked(5)
	connOneBehind.setAcked(4)
	connFarBehind.setAcked(1)

	hub.NotifyQueueChanged(doc)

	assert.Empty(t, caughtUp.messages())
	assert.Equal(t, MsgDelta, oneBehind.last(t).Type)
	assert.Equal(t, MsgFullSync, farBehind.last(t).Type)
	assert.Equal(t, int64(5), connOneBehind.AckedVersion())
	assert.Equal(t, int64(5), connFarBehind.AckedVersion())
}

func TestHub_HandleMessageRouting(t *testing.T) {
	hub := newTestHub(t, docAtVersion(t, 1))

	sender := &recordingSender{}
	conn := hub.Connect("player-1", sender)

	require.Error(t, hub.HandleMessage(conn.ID, []byte("{not json")))
	require.Error(t, hub.HandleMessage("no-such-connection", []byte(`{"type":"ping"}`)))

	require.NoError(t, hub.HandleMessage(conn.ID, []byte(`{"type":"ping","sent_at":42}`)))

	// The actor processes the inbox asynchronously.
	require.Eventually(t, func() bool {
		return len(sender.messages()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, MsgPong, sender.last(t).Type)
}

func TestHub_SweepDropsAndFlags(t *testing.T) {
	doc := docAtVersion(t, 1)
	hub := NewHub(&fixedQueueReader{doc: doc}, logger.Setup("error"), HubConfig{
		PingStaleAfter:      90 * time.Second,
		HeartbeatStaleAfter: 30 * time.Second,
	})
	t.Cleanup(hub.Stop)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	hub.SetTimeFunc(func() time.Time { return now })

	dead := &recordingSender{}
	lossy := &recordingSender{}
	healthy := &recordingSender{}

	deadConn := hub.Connect("player-1", dead)
	lossyConn := hub.Connect("player-1", lossy)
	healthyConn := hub.Connect("player-1", healthy)

	// The lossy connection keeps pinging but stops heartbeating; the
	// healthy one does both; the dead one goes silent entirely.
	now = base.Add(80 * time.Second)
	hub.handleMessage(lossyConn, InboundMessage{Type: MsgPing})
	hub.handleMessage(healthyConn, InboundMessage{Type: MsgHeartbeat, QueueVersion: 1})

	now = base.Add(100 * time.Second)
	hub.Sweep()

	assert.Equal(t, StateDisconnected, deadConn.State())
	assert.True(t, dead.closed)

	assert.True(t, lossyConn.StaleFlagged())
	assert.NotEqual(t, StateDisconnected, lossyConn.State())

	assert.False(t, healthyConn.StaleFlagged())
	assert.Equal(t, StateActive, healthyConn.State())

	assert.Equal(t, 2, hub.ConnectionCount())
}

func TestHub_DisconnectRemovesConnection(t *testing.T) {
	hub := newTestHub(t, docAtVersion(t, 1))

	sender := &recordingSender{}
	conn := hub.Connect("player-1", sender)
	require.Equal(t, 1, hub.ConnectionCount())

	hub.Disconnect(conn.ID)

	assert.Zero(t, hub.ConnectionCount())
	assert.Equal(t, StateDisconnected, conn.State())
	assert.True(t, sender.closed)

	// Disconnecting twice is a no-op.
	hub.Disconnect(conn.ID)
}
