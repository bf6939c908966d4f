package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veldtman/grind-api/internal/api/shared"
	"github.com/veldtman/grind-api/internal/platform/logger"
	"github.com/veldtman/grind-api/internal/realtime"
	"github.com/veldtman/grind-api/internal/security"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 8 * 1024
)

// WSHandler upgrades HTTP requests to WebSocket connections and bridges
// them into the realtime hub.
type WSHandler struct {
	hub      *realtime.Hub
	tokens   *security.TokenManager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *realtime.Hub, tokens *security.TokenManager, log *slog.Logger) *WSHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for WSHandler")
	}

	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log.With(slog.String("component", "ws_handler")),
	}
}

// Serve handles GET /ws. The session token arrives as a query parameter
// because browsers cannot set headers on WebSocket upgrade requests.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	token := r.URL.Query().Get("token")
	if token == "" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Session token required")
		return
	}

	result := h.tokens.Validate(token, security.PermQueueRead)
	if !result.Valid {
		status := http.StatusUnauthorized
		if result.Reason == security.ReasonInsufficient {
			status = http.StatusForbidden
		}
		shared.RespondWithError(w, r, status, "Invalid token: "+result.Reason)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed",
			slog.String("player_id", result.PlayerID),
			slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(wsMaxMessageSize)

	live := h.hub.Connect(result.PlayerID, &wsSender{conn: conn})

	log.Info("websocket connected",
		slog.String("player_id", result.PlayerID),
		slog.String("connection_id", live.ID))

	go h.readLoop(live, conn)
}

// readLoop pumps inbound frames into the hub until the socket dies.
func (h *WSHandler) readLoop(live *realtime.Connection, conn *websocket.Conn) {
	defer h.hub.Disconnect(live.ID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed",
					slog.String("connection_id", live.ID),
					slog.String("error", err.Error()))
			}
			return
		}

		if err := h.hub.HandleMessage(live.ID, raw); err != nil {
			h.logger.Debug("dropping message",
				slog.String("connection_id", live.ID),
				slog.String("error", err.Error()))
		}
	}
}

// wsSender adapts a gorilla connection to the hub's Sender. A mutex guards
// writes; the hub and the connection actor may both send.
type wsSender struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSender) Send(msg realtime.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

func (s *wsSender) Close() error {
	return s.conn.Close()
}
