package server

import "time"

const (
	ProtocolVersion = 1
	writeWait       = 10 * time.Second
	tickRate        = 60 // simulation ticks per second

	arenaWidth  = 800.0
	arenaHeight = 400.0

	paddleWidth   = 20.0
	paddleHeight  = 80.0
	paddleOffsetX = 20.0
	paddleSpeed   = 400.0 // pixels per second

	ballRadius       = 8.0
	ballServeSpeed   = 250.0 // horizontal serve velocity
	ballServeSpreadY = 200.0 // vertical serve velocity spread, centered on zero
	ballMaxSpeed     = 500.0
	paddleBounceGain = 1.05 // every paddle hit accelerates the rally
	paddleSpinScale  = 200.0

	winScore = 5

	defaultForfeitGrace  = 30 * time.Second
	defaultServeDelay    = 2 * time.Second
	defaultTeardownDelay = 10 * time.Second
)

// TickRate exposes the simulation rate for the diagnostics endpoint.
func TickRate() int { return tickRate }
