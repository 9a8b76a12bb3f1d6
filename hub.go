package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ft-transcendence/server/logging"
	matchlog "ft-transcendence/server/logging/match"
	netlog "ft-transcendence/server/logging/network"
)

var (
	ErrNotParticipant = errors.New("identity is not a bound participant of this match")
	ErrMatchFinished  = errors.New("match already finished")
	ErrInvalidSeed    = errors.New("match seed requires a match id and two distinct players")
)

// MatchResult is pushed to the external collaborator exactly once per
// terminal outcome so the match record can be persisted.
type MatchResult struct {
	MatchID  string
	WinnerID string
	LoserID  string
	Scores   Scores
	Forfeit  bool
}

type ResultReporter func(MatchResult)

type HubConfig struct {
	ForfeitGrace  time.Duration
	ServeDelay    time.Duration
	TeardownDelay time.Duration
	Clock         logging.Clock
	Logger        *log.Logger
	Reporter      ResultReporter
	Store         *MatchStore
	Registry      *ConnectionRegistry
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		ForfeitGrace:  defaultForfeitGrace,
		ServeDelay:    defaultServeDelay,
		TeardownDelay: defaultTeardownDelay,
	}
}

// Hub owns every live match, the transports of their participants, and the
// shared tick loop that advances all active simulations.
type Hub struct {
	store      *MatchStore
	registry   *ConnectionRegistry
	clock      logging.Clock
	logger     *log.Logger
	publisher  logging.Publisher
	telemetry  *telemetryCounters
	reporter   ResultReporter
	nextConnID atomic.Uint64

	forfeitGrace  time.Duration
	serveDelay    time.Duration
	teardownDelay time.Duration

	// afterFunc arms the deferred forfeit/serve/teardown callbacks; swapped
	// out in tests so timers fire on demand.
	afterFunc func(time.Duration, func()) *time.Timer
	// tickInterval paces the shared loop; tests stretch it and drive ticks
	// through advanceAll directly.
	tickInterval time.Duration

	// mu guards the loop handle only; per-match state has its own mutex.
	mu       sync.Mutex
	loopStop chan struct{}
}

func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig(), nil)
}

func NewHubWithConfig(cfg HubConfig, publisher logging.Publisher) *Hub {
	if cfg.ForfeitGrace <= 0 {
		cfg.ForfeitGrace = defaultForfeitGrace
	}
	if cfg.ServeDelay <= 0 {
		cfg.ServeDelay = defaultServeDelay
	}
	if cfg.TeardownDelay <= 0 {
		cfg.TeardownDelay = defaultTeardownDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = logging.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Store == nil {
		cfg.Store = NewMatchStore()
	}
	if cfg.Registry == nil {
		cfg.Registry = NewConnectionRegistry()
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}

	return &Hub{
		store:         cfg.Store,
		registry:      cfg.Registry,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		publisher:     publisher,
		telemetry:     newTelemetryCounters(),
		reporter:      cfg.Reporter,
		forfeitGrace:  cfg.ForfeitGrace,
		serveDelay:    cfg.ServeDelay,
		teardownDelay: cfg.TeardownDelay,
		afterFunc:     time.AfterFunc,
		tickInterval:  time.Second / tickRate,
	}
}

// EnsureMatch pre-seeds a match from an external match record, binding
// player1 to the left side and player2 to the right. Idempotent: an existing
// match is left untouched.
func (h *Hub) EnsureMatch(matchID, player1ID, player2ID string) error {
	if matchID == "" || player1ID == "" || player2ID == "" || player1ID == player2ID {
		return ErrInvalidSeed
	}
	if _, created := h.store.getOrCreate(matchID, player1ID, player2ID, h.clock.Now()); created {
		h.telemetry.MatchCreated()
	}
	return nil
}

// Join admits a participant transport into a match. The identity must be one
// of the two bound participants; under lazy creation the first joiner binds
// the left slot and a later distinct identity claims the vacant right slot.
// On rejection the transport receives an error event and is closed without
// mutating match state. The returned id tags this connection for Disconnect.
func (h *Hub) Join(matchID, playerID string, conn Transport) (uint64, error) {
	now := h.clock.Now()

	if matchID == "" || playerID == "" {
		h.rejectJoin(conn, matchID, playerID, "Not authorized to join this match")
		return 0, ErrNotParticipant
	}

	m, created := h.store.getOrCreate(matchID, playerID, "", now)
	if created {
		h.telemetry.MatchCreated()
	}

	m.mu.Lock()
	if m.status == StatusFinished {
		m.mu.Unlock()
		h.rejectJoin(conn, matchID, playerID, "Match already finished")
		return 0, ErrMatchFinished
	}

	side, ok := m.sideOfLocked(playerID)
	if !ok && m.rightID == "" && m.status == StatusWaiting {
		m.rightID = playerID
		side, ok = SideRight, true
	}
	if !ok {
		m.mu.Unlock()
		h.rejectJoin(conn, matchID, playerID, "Not authorized to join this match")
		return 0, ErrNotParticipant
	}

	sub := &subscriber{id: h.nextConnID.Add(1), playerID: playerID, conn: conn}
	if existing, replaced := m.connected[playerID]; replaced {
		existing.Close()
	}
	m.connected[playerID] = sub
	h.registry.register(playerID, sub)

	started := false
	resumed := false
	if len(m.connected) == 2 {
		switch {
		case m.status == StatusWaiting:
			m.status = StatusActive
			m.startedAt = now
			m.lastUpdate = now
			m.resetServeLocked()
			started = true
		case m.status == StatusPaused && !m.disconnectedAt.IsZero():
			// Opponent returned within the grace period.
			m.status = StatusActive
			m.disconnectedAt = time.Time{}
			m.pausedAt = time.Time{}
			m.lastUpdate = now
			resumed = true
		}
	}
	snapshot := m.snapshotLocked(now)
	subs := m.subscribersLocked()
	leftID, rightID := m.leftID, m.rightID
	m.mu.Unlock()

	h.sendTo(matchID, sub, MatchJoinedMessage{
		Ver:        ProtocolVersion,
		Type:       TypeMatchJoined,
		MatchID:    matchID,
		PlayerSide: side,
		State:      snapshot,
	})

	if started {
		h.broadcast(matchID, subs, MatchStartedMessage{Ver: ProtocolVersion, Type: TypeMatchStarted, State: snapshot})
		matchlog.Started(context.Background(), h.publisher, matchID, []logging.EntityRef{
			logging.PlayerRef(leftID),
			logging.PlayerRef(rightID),
		})
		h.telemetry.MatchStarted()
		h.ensureLoop()
	}
	if resumed {
		h.broadcast(matchID, subs, MatchResumedMessage{Ver: ProtocolVersion, Type: TypeMatchResumed, State: snapshot})
		matchlog.Resumed(context.Background(), h.publisher, matchID)
		h.ensureLoop()
	}

	h.logger.Printf("player %s joined match %s as %s", playerID, matchID, side)
	return sub.id, nil
}

func (h *Hub) rejectJoin(conn Transport, matchID, playerID, message string) {
	if conn != nil {
		if data, err := json.Marshal(ErrorMessage{Ver: ProtocolVersion, Type: TypeError, Message: message}); err == nil {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.TextMessage, data)
		}
		conn.Close()
	}
	netlog.JoinRejected(context.Background(), h.publisher, matchID, playerID, message)
	h.logger.Printf("rejected join for %s on match %s: %s", playerID, matchID, message)
}

// Disconnect removes one participant transport. connID must be the id Join
// returned for that transport; a stale pump observing its own closed socket
// after a reconnect cannot clobber the newer registration.
func (h *Hub) Disconnect(matchID, playerID string, connID uint64) {
	m, ok := h.store.get(matchID)
	if !ok {
		h.logger.Printf("disconnect ignored for unknown match %s", matchID)
		return
	}
	now := h.clock.Now()

	m.mu.Lock()
	sub, had := m.connected[playerID]
	if !had || sub.id != connID {
		m.mu.Unlock()
		return
	}
	delete(m.connected, playerID)
	h.registry.unregisterIf(playerID, sub)

	paused := false
	var armedAt time.Time
	if m.status == StatusActive {
		m.status = StatusPaused
		m.disconnectedAt = now
		m.pausedAt = now
		armedAt = now
		paused = true
	}
	subs := m.subscribersLocked()
	m.mu.Unlock()

	sub.Close()

	if paused {
		h.broadcast(matchID, subs, MatchPausedMessage{
			Ver:           ProtocolVersion,
			Type:          TypeMatchPaused,
			Reason:        PauseReasonDisconnect,
			TimeRemaining: h.forfeitGrace.Seconds(),
		})
		matchlog.Paused(context.Background(), h.publisher, matchID, matchlog.PausePayload{
			Reason:       PauseReasonDisconnect,
			GraceSeconds: h.forfeitGrace.Seconds(),
		})
		h.afterFunc(h.forfeitGrace, func() {
			h.forfeit(matchID, playerID, armedAt, true)
		})
	}

	h.logger.Printf("player %s disconnected from match %s", playerID, matchID)
}

// Forfeit awards the match to the opponent of disconnectedID immediately.
func (h *Hub) Forfeit(matchID, disconnectedID string) {
	h.forfeit(matchID, disconnectedID, time.Time{}, false)
}

// forfeit ends the match in favor of the remaining participant. Timer-fired
// forfeits carry the disconnect timestamp they were armed for and become
// no-ops when the match recovered or finished in the meantime.
func (h *Hub) forfeit(matchID, disconnectedID string, armedAt time.Time, fromTimer bool) {
	m, ok := h.store.get(matchID)
	if !ok {
		return
	}

	m.mu.Lock()
	if m.status == StatusFinished {
		m.mu.Unlock()
		return
	}
	if fromTimer && (m.status != StatusPaused || !m.disconnectedAt.Equal(armedAt)) {
		m.mu.Unlock()
		return
	}
	winnerID := m.opponentOfLocked(disconnectedID)
	m.status = StatusFinished
	var result *MatchResult
	if !m.reported {
		m.reported = true
		result = &MatchResult{
			MatchID:  matchID,
			WinnerID: winnerID,
			LoserID:  disconnectedID,
			Scores:   m.scores,
			Forfeit:  true,
		}
	}
	scores := m.scores
	subs := m.subscribersLocked()
	m.mu.Unlock()

	h.broadcast(matchID, subs, MatchForfeitedMessage{
		Ver:                ProtocolVersion,
		Type:               TypeMatchForfeited,
		DisconnectedPlayer: disconnectedID,
		Winner:             winnerID,
	})
	matchlog.Forfeited(context.Background(), h.publisher, matchID, matchlog.OutcomePayload{
		Winner:  winnerID,
		Left:    scores.Left,
		Right:   scores.Right,
		Forfeit: true,
	})
	h.telemetry.MatchCompleted(true)
	h.report(result)
	h.Cleanup(matchID)
}

// RequestPause honors an explicit pause from a bound participant while the
// match is active; anything else is silently dropped.
func (h *Hub) RequestPause(matchID, playerID string) {
	m, ok := h.store.get(matchID)
	if !ok {
		h.logger.Printf("pause ignored for unknown match %s", matchID)
		return
	}
	now := h.clock.Now()

	m.mu.Lock()
	if _, bound := m.sideOfLocked(playerID); !bound || m.status != StatusActive {
		m.mu.Unlock()
		return
	}
	m.status = StatusPaused
	m.pausedAt = now
	subs := m.subscribersLocked()
	m.mu.Unlock()

	h.broadcast(matchID, subs, MatchPausedMessage{
		Ver:      ProtocolVersion,
		Type:     TypeMatchPaused,
		Reason:   PauseReasonRequest,
		PausedBy: playerID,
	})
	matchlog.Paused(context.Background(), h.publisher, matchID, matchlog.PausePayload{
		Reason:   PauseReasonRequest,
		PausedBy: playerID,
	})
}

// RequestResume resumes a paused match, but only while both participants are
// connected; otherwise it is a silent no-op.
func (h *Hub) RequestResume(matchID, playerID string) {
	m, ok := h.store.get(matchID)
	if !ok {
		h.logger.Printf("resume ignored for unknown match %s", matchID)
		return
	}
	now := h.clock.Now()

	m.mu.Lock()
	if _, bound := m.sideOfLocked(playerID); !bound || m.status != StatusPaused || len(m.connected) != 2 {
		m.mu.Unlock()
		return
	}
	m.status = StatusActive
	m.disconnectedAt = time.Time{}
	m.pausedAt = time.Time{}
	m.lastUpdate = now
	snapshot := m.snapshotLocked(now)
	subs := m.subscribersLocked()
	m.mu.Unlock()

	h.broadcast(matchID, subs, MatchResumedMessage{Ver: ProtocolVersion, Type: TypeMatchResumed, State: snapshot})
	matchlog.Resumed(context.Background(), h.publisher, matchID)
	h.ensureLoop()
}

// HandlePaddleInput applies the latest client intent as paddle velocity.
// Intents arriving while the match is not active are dropped silently.
func (h *Hub) HandlePaddleInput(matchID, playerID string, up, down bool) {
	m, ok := h.store.get(matchID)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusActive {
		return
	}
	side, bound := m.sideOfLocked(playerID)
	if !bound {
		return
	}
	paddle := m.paddleForLocked(side)
	switch {
	case up && !down:
		paddle.VY = -paddleSpeed
	case down && !up:
		paddle.VY = paddleSpeed
	default:
		paddle.VY = 0
	}
}

// HandleReady is the pre-match readiness hook. Matches start as soon as both
// participants connect, so readiness currently carries no state.
func (h *Hub) HandleReady(matchID, playerID string) {
	if _, ok := h.store.get(matchID); !ok {
		h.logger.Printf("ready ignored for unknown match %s", matchID)
	}
}

// Cleanup closes any still-open transports and removes the match from the
// store. Unknown ids are a no-op, which makes deferred teardowns idempotent.
func (h *Hub) Cleanup(matchID string) {
	m, ok := h.store.get(matchID)
	if !ok {
		return
	}

	m.mu.Lock()
	subs := m.subscribersLocked()
	m.connected = make(map[string]*subscriber, 2)
	m.mu.Unlock()

	for _, sub := range subs {
		h.registry.unregisterIf(sub.playerID, sub)
		sub.Close()
	}
	h.store.remove(matchID)
	h.telemetry.MatchRemoved()
	matchlog.CleanedUp(context.Background(), h.publisher, matchID)
	h.logger.Printf("match %s cleaned up", matchID)
	h.maybeStopLoop()
}

// Stop tears down every live match and halts the tick loop.
func (h *Hub) Stop() {
	for _, m := range h.store.snapshot() {
		h.Cleanup(m.id)
	}
	h.mu.Lock()
	if h.loopStop != nil {
		close(h.loopStop)
		h.loopStop = nil
	}
	h.mu.Unlock()
}

func (h *Hub) ensureLoop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loopStop != nil {
		return
	}
	stop := make(chan struct{})
	h.loopStop = stop
	go h.runLoop(stop)
}

// maybeStopLoop parks the scheduler once the store is empty; the next
// transition to active restarts it lazily.
func (h *Hub) maybeStopLoop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loopStop != nil && h.store.len() == 0 {
		close(h.loopStop)
		h.loopStop = nil
	}
}

func (h *Hub) loopRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loopStop != nil
}

func (h *Hub) runLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.advanceAll(h.clock.Now())
		}
	}
}

// advanceAll runs one tick over a snapshot of the match set so concurrent
// joins and cleanups cannot corrupt iteration.
func (h *Hub) advanceAll(now time.Time) {
	start := time.Now()
	for _, m := range h.store.snapshot() {
		h.advanceMatch(m, now)
	}
	h.telemetry.RecordTickDuration(time.Since(start))
}

// advanceMatch integrates one active match with its own elapsed time and
// broadcasts the resulting snapshot. A panic inside one match's step is
// logged and isolated; the tick proceeds to the next match.
func (h *Hub) advanceMatch(m *matchState, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Printf("tick failed for match %s: %v", m.id, r)
		}
	}()

	m.mu.Lock()
	if m.status != StatusActive {
		m.mu.Unlock()
		return
	}
	event := m.stepLocked(now)
	snapshot := m.snapshotLocked(now)
	subs := m.subscribersLocked()
	var result *MatchResult
	if event != nil && event.finished && !m.reported {
		m.reported = true
		result = &MatchResult{
			MatchID:  m.id,
			WinnerID: event.winnerID,
			LoserID:  m.opponentOfLocked(event.winnerID),
			Scores:   event.scores,
		}
	}
	m.mu.Unlock()

	h.broadcast(m.id, subs, GameUpdateMessage{
		Ver:        ProtocolVersion,
		Type:       TypeGameUpdate,
		State:      snapshot,
		ServerTime: now.UnixMilli(),
	})

	if event == nil {
		return
	}

	h.broadcast(m.id, subs, ScoredMessage{
		Ver:         ProtocolVersion,
		Type:        TypeScored,
		ScoringSide: event.side,
		Scores:      event.scores,
	})
	matchlog.Scored(context.Background(), h.publisher, m.id, matchlog.ScorePayload{
		Side:  string(event.side),
		Left:  event.scores.Left,
		Right: event.scores.Right,
	})

	if event.finished {
		h.broadcast(m.id, subs, MatchEndedMessage{
			Ver:         ProtocolVersion,
			Type:        TypeMatchEnded,
			Winner:      event.winner,
			WinnerID:    event.winnerID,
			FinalScores: event.scores,
		})
		matchlog.Ended(context.Background(), h.publisher, m.id, matchlog.OutcomePayload{
			Winner: event.winnerID,
			Left:   event.scores.Left,
			Right:  event.scores.Right,
		})
		h.telemetry.MatchCompleted(false)
		h.report(result)
		matchID := m.id
		h.afterFunc(h.teardownDelay, func() {
			h.Cleanup(matchID)
		})
		return
	}

	matchID := m.id
	gen := event.serveGen
	h.afterFunc(h.serveDelay, func() {
		h.serveIfCurrent(matchID, gen)
	})
}

// serveIfCurrent deals the delayed serve unless the timer went stale.
func (h *Hub) serveIfCurrent(matchID string, gen uint64) {
	m, ok := h.store.get(matchID)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusFinished || m.serveGen != gen {
		return
	}
	m.resetServeLocked()
}

func (h *Hub) report(result *MatchResult) {
	if result == nil || h.reporter == nil {
		return
	}
	h.reporter(*result)
}

// broadcast marshals once and sends best-effort to every transport. A failed
// send closes that transport; the read pump observes the close and funnels
// it through Disconnect, never synchronously inside the tick.
func (h *Hub) broadcast(matchID string, subs []*subscriber, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("failed to marshal broadcast for match %s: %v", matchID, err)
		return
	}
	for _, sub := range subs {
		h.sendBytes(matchID, sub, data)
	}
}

func (h *Hub) sendTo(matchID string, sub *subscriber, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("failed to marshal message for match %s: %v", matchID, err)
		return
	}
	h.sendBytes(matchID, sub, data)
}

func (h *Hub) sendBytes(matchID string, sub *subscriber, data []byte) {
	if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Printf("failed to send to %s on match %s: %v", sub.playerID, matchID, err)
		h.telemetry.RecordSendFailure()
		netlog.SendFailed(context.Background(), h.publisher, matchID, sub.playerID)
		sub.Close()
		return
	}
	h.telemetry.RecordSend(len(data))
}

// MatchDiagnostics summarizes one live match for the ops surface.
type MatchDiagnostics struct {
	ID               string      `json:"id"`
	Status           MatchStatus `json:"status"`
	ConnectedPlayers int         `json:"connectedPlayers"`
	Scores           Scores      `json:"scores"`
}

func (h *Hub) DiagnosticsSnapshot() []MatchDiagnostics {
	matches := h.store.snapshot()
	out := make([]MatchDiagnostics, 0, len(matches))
	for _, m := range matches {
		m.mu.Lock()
		out = append(out, MatchDiagnostics{
			ID:               m.id,
			Status:           m.status,
			ConnectedPlayers: len(m.connected),
			Scores:           m.scores,
		})
		m.mu.Unlock()
	}
	return out
}

func (h *Hub) TelemetrySnapshot() telemetrySnapshot {
	return h.telemetry.Snapshot()
}
