package server

import (
	"math/rand"
	"sync"
	"time"
)

// MatchStatus tracks the lifecycle of a live match.
type MatchStatus string

const (
	StatusWaiting  MatchStatus = "waiting"
	StatusActive   MatchStatus = "active"
	StatusPaused   MatchStatus = "paused"
	StatusFinished MatchStatus = "finished"
)

// Side is the fixed geometric assignment of a participant within a match.
// It is bound when the identity is bound and never renegotiated.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

func (s Side) opposite() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// Ball carries the continuous ball state in arena coordinates.
type Ball struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Radius float64 `json:"radius"`
}

// Paddle carries one paddle's position and velocity-controlled motion.
type Paddle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	VY     float64 `json:"vy"`
}

// Scores is the integer score pair, monotonically non-decreasing until match end.
type Scores struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

func (s Scores) forSide(side Side) int {
	if side == SideLeft {
		return s.Left
	}
	return s.Right
}

// PaddlePair groups both paddles for the wire snapshot.
type PaddlePair struct {
	Left  Paddle `json:"left"`
	Right Paddle `json:"right"`
}

// GameState is the full per-tick snapshot sent to both participants.
type GameState struct {
	MatchID          string      `json:"matchId"`
	Status           MatchStatus `json:"status"`
	Ball             Ball        `json:"ball"`
	Paddles          PaddlePair  `json:"paddles"`
	Scores           Scores      `json:"scores"`
	ConnectedPlayers int         `json:"connectedPlayers"`
	ServerTime       int64       `json:"serverTime"`
}

// matchState is the authoritative simulation state for one live match.
// The hub owns it exclusively; every field below the mutex is guarded by it.
type matchState struct {
	mu sync.Mutex

	id string

	// leftID/rightID are the two bound participant identities. A slot may be
	// empty while the match was created lazily and the opponent has not bound
	// yet. Sides are never re-derived from connection order.
	leftID  string
	rightID string

	status MatchStatus

	ball        Ball
	leftPaddle  Paddle
	rightPaddle Paddle
	scores      Scores

	// connected holds the open transports of the bound participants, keyed by
	// identity. Size is 0, 1 or 2.
	connected map[string]*subscriber

	lastUpdate     time.Time
	startedAt      time.Time
	disconnectedAt time.Time // zero unless a disconnect pause is outstanding
	pausedAt       time.Time

	// pendingServe parks scoring while the ball is out of bounds between a
	// goal and the delayed serve.
	pendingServe bool
	// serveGen invalidates stale serve timers; bumped on every arm.
	serveGen uint64

	reported bool // terminal outcome already pushed to the result reporter
}

func newMatchState(id, leftID, rightID string, now time.Time) *matchState {
	m := &matchState{
		id:      id,
		leftID:  leftID,
		rightID: rightID,
		status:  StatusWaiting,
		ball: Ball{
			X:      arenaWidth / 2,
			Y:      arenaHeight / 2,
			VX:     ballServeSpeed,
			VY:     150,
			Radius: ballRadius,
		},
		leftPaddle: Paddle{
			X:      paddleOffsetX,
			Y:      (arenaHeight - paddleHeight) / 2,
			Width:  paddleWidth,
			Height: paddleHeight,
		},
		rightPaddle: Paddle{
			X:      arenaWidth - paddleOffsetX - paddleWidth,
			Y:      (arenaHeight - paddleHeight) / 2,
			Width:  paddleWidth,
			Height: paddleHeight,
		},
		connected:  make(map[string]*subscriber, 2),
		lastUpdate: now,
	}
	return m
}

func (m *matchState) sideOfLocked(playerID string) (Side, bool) {
	switch {
	case playerID == "":
		return "", false
	case playerID == m.leftID:
		return SideLeft, true
	case playerID == m.rightID:
		return SideRight, true
	}
	return "", false
}

func (m *matchState) playerForLocked(side Side) string {
	if side == SideLeft {
		return m.leftID
	}
	return m.rightID
}

func (m *matchState) opponentOfLocked(playerID string) string {
	if playerID == m.leftID {
		return m.rightID
	}
	return m.leftID
}

func (m *matchState) paddleForLocked(side Side) *Paddle {
	if side == SideLeft {
		return &m.leftPaddle
	}
	return &m.rightPaddle
}

// snapshotLocked builds the client-facing state while holding the mutex.
func (m *matchState) snapshotLocked(now time.Time) GameState {
	return GameState{
		MatchID:          m.id,
		Status:           m.status,
		Ball:             m.ball,
		Paddles:          PaddlePair{Left: m.leftPaddle, Right: m.rightPaddle},
		Scores:           m.scores,
		ConnectedPlayers: len(m.connected),
		ServerTime:       now.UnixMilli(),
	}
}

// subscribersLocked copies the current transports so sends can happen after
// the mutex is released.
func (m *matchState) subscribersLocked() []*subscriber {
	subs := make([]*subscriber, 0, len(m.connected))
	for _, sub := range m.connected {
		subs = append(subs, sub)
	}
	return subs
}

// resetServeLocked recenters the ball and deals a randomized serve. Serve
// direction and angle use a uniform source; reproducibility is not required.
func (m *matchState) resetServeLocked() {
	m.ball.X = arenaWidth / 2
	m.ball.Y = arenaHeight / 2

	direction := 1.0
	if rand.Float64() > 0.5 {
		direction = -1.0
	}
	m.ball.VX = ballServeSpeed * direction
	m.ball.VY = (rand.Float64() - 0.5) * ballServeSpreadY
	m.pendingServe = false
}
