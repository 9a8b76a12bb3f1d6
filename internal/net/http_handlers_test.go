package net_test

import (
	"encoding/json"
	"io"
	"log"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	server "ft-transcendence/server"
	servernet "ft-transcendence/server/internal/net"
)

func newHandler(t *testing.T) (*server.Hub, nethttp.Handler) {
	t.Helper()
	cfg := server.DefaultHubConfig()
	cfg.Logger = log.New(io.Discard, "", 0)
	hub := server.NewHubWithConfig(cfg, nil)
	t.Cleanup(hub.Stop)
	return hub, servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{Logger: cfg.Logger})
}

func TestHealthEndpoint(t *testing.T) {
	_, handler := newHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/health", nil))

	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "ok" {
		t.Fatalf("body = %q, want ok", body)
	}
}

func TestDiagnosticsEndpoint(t *testing.T) {
	hub, handler := newHandler(t)
	hub.EnsureMatch("m1", "alice", "bob")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/diagnostics", nil))

	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		Status   string                    `json:"status"`
		TickRate int                       `json:"tickRate"`
		Matches  []server.MatchDiagnostics `json:"matches"`
		Telemetry struct {
			LiveMatches int64 `json:"liveMatches"`
		} `json:"telemetry"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if payload.Status != "ok" || payload.TickRate != server.TickRate() {
		t.Fatalf("payload = %+v", payload)
	}
	if len(payload.Matches) != 1 || payload.Matches[0].ID != "m1" {
		t.Fatalf("matches = %+v", payload.Matches)
	}
	if payload.Telemetry.LiveMatches != 1 {
		t.Fatalf("liveMatches = %d, want 1", payload.Telemetry.LiveMatches)
	}
}

func TestCreateMatchEndpoint(t *testing.T) {
	hub, handler := newHandler(t)

	body := strings.NewReader(`{"matchId":"m1","player1Id":"alice","player2Id":"bob"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodPost, "/matches", body))

	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	summaries := hub.DiagnosticsSnapshot()
	if len(summaries) != 1 || summaries[0].ID != "m1" || summaries[0].Status != server.StatusWaiting {
		t.Fatalf("summaries = %+v", summaries)
	}
}

func TestCreateMatchRejectsBadSeeds(t *testing.T) {
	_, handler := newHandler(t)

	for _, body := range []string{
		`{"matchId":"","player1Id":"alice","player2Id":"bob"}`,
		`{"matchId":"m1","player1Id":"alice","player2Id":"alice"}`,
		`not json`,
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodPost, "/matches", strings.NewReader(body)))
		if rec.Code != nethttp.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestListMatchesEndpoint(t *testing.T) {
	hub, handler := newHandler(t)
	hub.EnsureMatch("m1", "alice", "bob")
	hub.EnsureMatch("m2", "carol", "dave")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/matches", nil))

	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		Matches []server.MatchDiagnostics `json:"matches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(payload.Matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(payload.Matches))
	}
}

func TestMatchesMethodNotAllowed(t *testing.T) {
	_, handler := newHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodDelete, "/matches", nil))
	if rec.Code != nethttp.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
