package server

import (
	"math"
	"time"
)

// scoreEvent reports the outcome of a scoring tick so the hub can broadcast
// and schedule follow-up work outside the match lock.
type scoreEvent struct {
	side   Side
	scores Scores

	finished bool
	winner   Side
	winnerID string

	// serveGen tags the delayed serve this event armed; zero when the match
	// ended instead.
	serveGen uint64
}

// stepLocked advances the simulation by the wall-clock time elapsed since the
// match's own last update. Pure state transform; caller holds m.mu.
func (m *matchState) stepLocked(now time.Time) *scoreEvent {
	dt := now.Sub(m.lastUpdate).Seconds()
	m.lastUpdate = now
	if dt <= 0 {
		dt = 1.0 / float64(tickRate)
	}

	m.integratePaddlesLocked(dt)
	m.integrateBallLocked(dt)
	m.collidePaddlesLocked()
	return m.checkScoringLocked()
}

// integratePaddlesLocked applies velocity-controlled paddle motion and clamps
// both paddles to the arena.
func (m *matchState) integratePaddlesLocked(dt float64) {
	for _, p := range []*Paddle{&m.leftPaddle, &m.rightPaddle} {
		p.Y += p.VY * dt
		p.Y = math.Max(0, math.Min(arenaHeight-p.Height, p.Y))
	}
}

// integrateBallLocked moves the ball and reflects it off the horizontal
// walls, clamping position so low tick rates cannot tunnel it out of bounds.
func (m *matchState) integrateBallLocked(dt float64) {
	ball := &m.ball
	ball.X += ball.VX * dt
	ball.Y += ball.VY * dt

	if ball.Y <= ball.Radius || ball.Y >= arenaHeight-ball.Radius {
		ball.VY = -ball.VY
		ball.Y = math.Max(ball.Radius, math.Min(arenaHeight-ball.Radius, ball.Y))
	}
}

// collidePaddlesLocked resolves circle-vs-paddle contact. Each hit reflects
// and amplifies the horizontal velocity, repositions the ball flush against
// the paddle face so one tick cannot double-hit, and adds vertical spin
// proportional to the contact offset from paddle center.
func (m *matchState) collidePaddlesLocked() {
	ball := &m.ball
	left := &m.leftPaddle
	right := &m.rightPaddle

	if ball.X-ball.Radius <= left.X+left.Width &&
		ball.Y >= left.Y && ball.Y <= left.Y+left.Height &&
		ball.VX < 0 {
		ball.VX = -ball.VX * paddleBounceGain
		ball.X = left.X + left.Width + ball.Radius
		hit := (ball.Y - (left.Y + left.Height/2)) / (left.Height / 2)
		ball.VY += hit * paddleSpinScale
	}

	if ball.X+ball.Radius >= right.X &&
		ball.Y >= right.Y && ball.Y <= right.Y+right.Height &&
		ball.VX > 0 {
		ball.VX = -ball.VX * paddleBounceGain
		ball.X = right.X - ball.Radius
		hit := (ball.Y - (right.Y + right.Height/2)) / (right.Height / 2)
		ball.VY += hit * paddleSpinScale
	}

	speed := math.Hypot(ball.VX, ball.VY)
	if speed > ballMaxSpeed {
		ball.VX = ball.VX / speed * ballMaxSpeed
		ball.VY = ball.VY / speed * ballMaxSpeed
	}
}

// checkScoringLocked awards a point when the ball leaves the arena on either
// side. While a serve is pending the ball keeps flying so clients can see the
// goal, but it cannot score again.
func (m *matchState) checkScoringLocked() *scoreEvent {
	if m.pendingServe {
		return nil
	}

	var side Side
	switch {
	case m.ball.X < 0:
		side = SideRight
	case m.ball.X > arenaWidth:
		side = SideLeft
	default:
		return nil
	}

	if side == SideLeft {
		m.scores.Left++
	} else {
		m.scores.Right++
	}

	event := &scoreEvent{side: side, scores: m.scores}
	if m.scores.forSide(side) >= winScore {
		m.status = StatusFinished
		event.finished = true
		event.winner = side
		event.winnerID = m.playerForLocked(side)
		return event
	}

	m.pendingServe = true
	m.serveGen++
	event.serveGen = m.serveGen
	return event
}
