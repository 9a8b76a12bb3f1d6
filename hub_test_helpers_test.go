package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Transport that records every frame.
type fakeConn struct {
	mu         sync.Mutex
	frames     [][]byte
	closed     bool
	failWrites bool
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("write failed")
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) messageTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, 0, len(c.frames))
	for _, frame := range c.frames {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(frame, &envelope); err == nil {
			types = append(types, envelope.Type)
		}
	}
	return types
}

func (c *fakeConn) countOfType(messageType string) int {
	count := 0
	for _, t := range c.messageTypes() {
		if t == messageType {
			count++
		}
	}
	return count
}

// lastOfType decodes the newest frame of the given type into out.
func (c *fakeConn) lastOfType(t *testing.T, messageType string, out any) bool {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(c.frames[i], &envelope); err != nil {
			continue
		}
		if envelope.Type != messageType {
			continue
		}
		if err := json.Unmarshal(c.frames[i], out); err != nil {
			t.Fatalf("failed to decode %s frame: %v", messageType, err)
		}
		return true
	}
	return false
}

// manualClock is an adjustable time source shared by hub and test.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// capturedTimer records an armed callback instead of scheduling it.
type capturedTimer struct {
	delay time.Duration
	fn    func()
}

type timerRecorder struct {
	mu     sync.Mutex
	timers []capturedTimer
}

func (r *timerRecorder) afterFunc(d time.Duration, fn func()) *time.Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers = append(r.timers, capturedTimer{delay: d, fn: fn})
	return time.NewTimer(time.Hour)
}

func (r *timerRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *timerRecorder) last(t *testing.T) capturedTimer {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.timers) == 0 {
		t.Fatal("no timer was armed")
	}
	return r.timers[len(r.timers)-1]
}

// fireLast runs the newest armed callback.
func (r *timerRecorder) fireLast(t *testing.T) {
	r.last(t).fn()
}

type resultCapture struct {
	mu      sync.Mutex
	results []MatchResult
}

func (c *resultCapture) record(result MatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

func (c *resultCapture) all() []MatchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MatchResult, len(c.results))
	copy(out, c.results)
	return out
}

func newTestHub(t *testing.T) (*Hub, *manualClock, *timerRecorder, *resultCapture) {
	t.Helper()
	clock := newManualClock()
	timers := &timerRecorder{}
	results := &resultCapture{}

	cfg := DefaultHubConfig()
	cfg.Clock = clock
	cfg.Logger = log.New(io.Discard, "", 0)
	cfg.Reporter = results.record

	hub := NewHubWithConfig(cfg, nil)
	hub.afterFunc = timers.afterFunc
	hub.tickInterval = time.Hour // ticks are driven explicitly via advanceAll
	t.Cleanup(hub.Stop)

	return hub, clock, timers, results
}

// joinPair seeds nothing and joins two players lazily, returning their conns
// and connection ids with the match already active.
func joinPair(t *testing.T, hub *Hub, matchID string) (c1, c2 *fakeConn, id1, id2 uint64) {
	t.Helper()
	c1 = &fakeConn{}
	c2 = &fakeConn{}
	id1, err := hub.Join(matchID, "alice", c1)
	if err != nil {
		t.Fatalf("alice join failed: %v", err)
	}
	id2, err = hub.Join(matchID, "bob", c2)
	if err != nil {
		t.Fatalf("bob join failed: %v", err)
	}
	return c1, c2, id1, id2
}
