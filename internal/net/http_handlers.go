package net

import (
	"encoding/json"
	"errors"
	"log"
	nethttp "net/http"
	"time"

	"ft-transcendence/server"
	"ft-transcendence/server/internal/net/ws"
	"ft-transcendence/server/logging"
)

type HTTPHandlerConfig struct {
	Logger    *log.Logger
	Publisher logging.Publisher
}

// NewHTTPHandler wires the hub's HTTP surface: health and diagnostics for
// ops, match seeding and listing for the gateway, and the WebSocket
// endpoint for participants.
func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string `json:"status"`
			ServerTime int64  `json:"serverTime"`
			TickRate   int    `json:"tickRate"`
			Matches    any    `json:"matches"`
			Telemetry  any    `json:"telemetry"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   server.TickRate(),
			Matches:    hub.DiagnosticsSnapshot(),
			Telemetry:  hub.TelemetrySnapshot(),
		}
		writeJSON(w, payload, logger)
	})

	mux.HandleFunc("/matches", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodGet:
			payload := struct {
				Matches []server.MatchDiagnostics `json:"matches"`
			}{Matches: hub.DiagnosticsSnapshot()}
			writeJSON(w, payload, logger)

		case nethttp.MethodPost:
			var req struct {
				MatchID   string `json:"matchId"`
				Player1ID string `json:"player1Id"`
				Player2ID string `json:"player2Id"`
			}
			if r.Body == nil {
				httpError(w, "missing payload", nethttp.StatusBadRequest)
				return
			}
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
			if err := hub.EnsureMatch(req.MatchID, req.Player1ID, req.Player2ID); err != nil {
				if errors.Is(err, server.ErrInvalidSeed) {
					httpError(w, err.Error(), nethttp.StatusBadRequest)
					return
				}
				httpError(w, "failed to create match", nethttp.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(nethttp.StatusCreated)
			json.NewEncoder(w).Encode(struct {
				Status  string `json:"status"`
				MatchID string `json:"matchId"`
			}{Status: "ok", MatchID: req.MatchID})

		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		}
	})

	wsHandler := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger, Publisher: cfg.Publisher})
	mux.HandleFunc("/ws", wsHandler.Handle)

	return mux
}

func writeJSON(w nethttp.ResponseWriter, payload any, logger *log.Logger) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
