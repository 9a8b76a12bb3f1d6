package server

import (
	"testing"
	"time"
)

func TestAdvanceBroadcastsGameUpdate(t *testing.T) {
	hub, clock, _, _ := newTestHub(t)
	c1, c2, _, _ := joinPair(t, hub, "m1")

	hub.advanceAll(clock.Advance(16 * time.Millisecond))

	for name, conn := range map[string]*fakeConn{"alice": c1, "bob": c2} {
		var update GameUpdateMessage
		if !conn.lastOfType(t, TypeGameUpdate, &update) {
			t.Fatalf("%s got no gameUpdate", name)
		}
		if update.State.Status != StatusActive {
			t.Fatalf("%s update status = %v", name, update.State.Status)
		}
		if update.ServerTime != clock.Now().UnixMilli() {
			t.Fatalf("%s serverTime = %d, want %d", name, update.ServerTime, clock.Now().UnixMilli())
		}
	}
}

func TestAdvanceSkipsPausedMatches(t *testing.T) {
	hub, clock, _, _ := newTestHub(t)
	c1, _, _, _ := joinPair(t, hub, "m1")
	hub.RequestPause("m1", "alice")

	before := c1.countOfType(TypeGameUpdate)
	hub.advanceAll(clock.Advance(16 * time.Millisecond))

	if got := c1.countOfType(TypeGameUpdate); got != before {
		t.Fatalf("gameUpdate count went %d -> %d while paused", before, got)
	}
}

func TestScoringTickBroadcastsAndArmsServe(t *testing.T) {
	hub, clock, timers, _ := newTestHub(t)
	c1, _, _, _ := joinPair(t, hub, "m1")

	m, _ := hub.store.get("m1")
	m.mu.Lock()
	m.ball.X = -20
	m.ball.VX = -100
	m.ball.VY = 0
	m.mu.Unlock()

	hub.advanceAll(clock.Advance(16 * time.Millisecond))

	var scored ScoredMessage
	if !c1.lastOfType(t, TypeScored, &scored) {
		t.Fatal("no scored frame")
	}
	if scored.ScoringSide != SideRight || scored.Scores.Right != 1 {
		t.Fatalf("scored frame = %+v", scored)
	}

	serve := timers.last(t)
	if serve.delay != defaultServeDelay {
		t.Fatalf("serve delay = %v, want %v", serve.delay, defaultServeDelay)
	}

	// Until the serve fires the ball keeps flying but cannot score again.
	hub.advanceAll(clock.Advance(16 * time.Millisecond))
	if c1.countOfType(TypeScored) != 1 {
		t.Fatal("scored again while serve pending")
	}

	serve.fn()
	m.mu.Lock()
	x, y := m.ball.X, m.ball.Y
	pending := m.pendingServe
	m.mu.Unlock()
	if x != arenaWidth/2 || y != arenaHeight/2 {
		t.Fatalf("ball not recentered after serve: (%v, %v)", x, y)
	}
	if pending {
		t.Fatal("pendingServe still set after serve")
	}
}

func TestStaleServeTimerIsIgnored(t *testing.T) {
	hub, clock, timers, _ := newTestHub(t)
	joinPair(t, hub, "m1")

	m, _ := hub.store.get("m1")
	m.mu.Lock()
	m.ball.X = -20
	m.ball.VY = 0
	m.mu.Unlock()
	hub.advanceAll(clock.Advance(16 * time.Millisecond))
	firstServe := timers.last(t)

	// The serve fires and the next rally immediately concedes another goal,
	// arming a second serve.
	firstServe.fn()
	m.mu.Lock()
	m.ball.X = -20
	m.ball.VX = -100
	m.ball.VY = 0
	m.mu.Unlock()
	hub.advanceAll(clock.Advance(16 * time.Millisecond))

	m.mu.Lock()
	m.ball.X = 123
	m.mu.Unlock()

	// Replaying the first, stale serve timer must not recenter the ball.
	firstServe.fn()
	m.mu.Lock()
	x := m.ball.X
	m.mu.Unlock()
	if x != 123 {
		t.Fatalf("stale serve timer moved the ball to %v", x)
	}
}

func TestWinningTickEndsAndTearsDown(t *testing.T) {
	hub, clock, timers, results := newTestHub(t)
	c1, c2, _, _ := joinPair(t, hub, "m1")

	m, _ := hub.store.get("m1")
	m.mu.Lock()
	m.scores.Left = winScore - 1
	m.ball.X = arenaWidth + 20
	m.ball.VX = 100
	m.ball.VY = 0
	m.mu.Unlock()

	hub.advanceAll(clock.Advance(16 * time.Millisecond))

	var ended MatchEndedMessage
	if !c2.lastOfType(t, TypeMatchEnded, &ended) {
		t.Fatal("no matchEnded frame")
	}
	if ended.Winner != SideLeft || ended.WinnerID != "alice" || ended.FinalScores.Left != winScore {
		t.Fatalf("ended frame = %+v", ended)
	}

	reports := results.all()
	if len(reports) != 1 {
		t.Fatalf("reporter calls = %d, want 1", len(reports))
	}
	if reports[0].Forfeit || reports[0].WinnerID != "alice" || reports[0].LoserID != "bob" {
		t.Fatalf("result = %+v", reports[0])
	}

	teardown := timers.last(t)
	if teardown.delay != defaultTeardownDelay {
		t.Fatalf("teardown delay = %v, want %v", teardown.delay, defaultTeardownDelay)
	}

	// Finished matches stop advancing while teardown is pending.
	before := c1.countOfType(TypeGameUpdate)
	hub.advanceAll(clock.Advance(16 * time.Millisecond))
	if c1.countOfType(TypeGameUpdate) != before {
		t.Fatal("finished match kept broadcasting updates")
	}

	teardown.fn()
	if _, ok := hub.store.get("m1"); ok {
		t.Fatal("match not removed after teardown")
	}
	if !c1.isClosed() || !c2.isClosed() {
		t.Fatal("transports left open after teardown")
	}
}

func TestSendFailureClosesOnlyThatTransport(t *testing.T) {
	hub, clock, _, _ := newTestHub(t)
	c1, c2, _, _ := joinPair(t, hub, "m1")
	c2.failWrites = true

	hub.advanceAll(clock.Advance(16 * time.Millisecond))

	if !c2.isClosed() {
		t.Fatal("failing transport was not closed")
	}
	if c1.isClosed() {
		t.Fatal("healthy transport was closed")
	}
	if c1.countOfType(TypeGameUpdate) != 1 {
		t.Fatal("healthy transport missed the update")
	}

	// Removal happens through the read pump's Disconnect, never inside the
	// tick itself.
	m, _ := hub.store.get("m1")
	m.mu.Lock()
	connected := len(m.connected)
	m.mu.Unlock()
	if connected != 2 {
		t.Fatalf("connected = %d right after send failure, want 2", connected)
	}

	snap := hub.TelemetrySnapshot()
	if snap.SendFailures != 1 {
		t.Fatalf("sendFailures = %d, want 1", snap.SendFailures)
	}
}

func TestPanicInOneMatchDoesNotStopOthers(t *testing.T) {
	hub, clock, _, _ := newTestHub(t)
	joinPair(t, hub, "m1")

	c3 := &fakeConn{}
	c4 := &fakeConn{}
	if _, err := hub.Join("m2", "carol", c3); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := hub.Join("m2", "dave", c4); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	// Poison m1 so its broadcast dereferences a nil subscriber.
	m, _ := hub.store.get("m1")
	m.mu.Lock()
	m.connected["alice"] = nil
	m.mu.Unlock()

	hub.advanceAll(clock.Advance(16 * time.Millisecond))

	if c4.countOfType(TypeGameUpdate) != 1 {
		t.Fatal("healthy match missed its tick after sibling panic")
	}
}

func TestPerMatchTimeIsIndependent(t *testing.T) {
	hub, clock, _, _ := newTestHub(t)
	joinPair(t, hub, "m1")

	m, _ := hub.store.get("m1")
	m.mu.Lock()
	m.ball.VX = 100
	m.ball.VY = 0
	m.ball.X = 300
	m.mu.Unlock()

	// The second match joins half a second later; its first tick must only
	// integrate its own elapsed time.
	clock.Advance(500 * time.Millisecond)
	c3 := &fakeConn{}
	c4 := &fakeConn{}
	hub.Join("m2", "carol", c3)
	hub.Join("m2", "dave", c4)

	m2, _ := hub.store.get("m2")
	m2.mu.Lock()
	m2.ball.VX = 100
	m2.ball.VY = 0
	m2.ball.X = 300
	m2.mu.Unlock()

	hub.advanceAll(clock.Advance(100 * time.Millisecond))

	m.mu.Lock()
	x1 := m.ball.X
	m.mu.Unlock()
	m2.mu.Lock()
	x2 := m2.ball.X
	m2.mu.Unlock()

	if x1 != 360 { // 600ms at 100px/s
		t.Fatalf("m1 ball.X = %v, want 360", x1)
	}
	if x2 != 310 { // 100ms at 100px/s
		t.Fatalf("m2 ball.X = %v, want 310", x2)
	}
}
