package ws

import (
	"context"
	"encoding/json"
	"log"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"ft-transcendence/server"
	"ft-transcendence/server/logging"
	netlog "ft-transcendence/server/logging/network"
)

type HandlerConfig struct {
	Logger    *log.Logger
	Publisher logging.Publisher
}

// Handler upgrades HTTP requests to WebSocket sessions and runs the read
// pump. All match mutations go through the hub; the pump only decodes intent
// and funnels the eventual read error into Disconnect.
type Handler struct {
	hub       *server.Hub
	logger    *log.Logger
	publisher logging.Publisher
	upgrader  websocket.Upgrader
}

func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:       hub,
		logger:    logger,
		publisher: publisher,
		upgrader:  upgrader,
	}
}

// identity resolves the caller's player id. The gateway forwards the
// authenticated user in X-User-ID; the playerId query parameter is the
// fallback for direct connections.
func identity(r *nethttp.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("playerId")
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	matchID := r.URL.Query().Get("matchId")
	if matchID == "" {
		nethttp.Error(w, "missing matchId", nethttp.StatusBadRequest)
		return
	}
	playerID := identity(r)
	if playerID == "" {
		nethttp.Error(w, "missing player identity", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", playerID, err)
		return
	}

	connID, err := h.hub.Join(matchID, playerID, conn)
	if err != nil {
		// Join already sent the error event and closed the socket.
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(matchID, playerID, connID)
			return
		}

		var msg server.ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", playerID, err)
			netlog.MalformedMessage(context.Background(), h.publisher, playerID)
			continue
		}

		switch msg.Type {
		case server.TypePaddleInput:
			h.hub.HandlePaddleInput(matchID, playerID, msg.Up, msg.Down)
		case server.TypeReady:
			h.hub.HandleReady(matchID, playerID)
		case server.TypePause:
			h.hub.RequestPause(matchID, playerID)
		case server.TypeResume:
			h.hub.RequestResume(matchID, playerID)
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, playerID)
		}
	}
}
