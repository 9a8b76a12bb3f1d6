package server

//go:generate go run ./cmd/schema --out docs/protocol.schema.json

// Server → client event types.
const (
	TypeMatchJoined    = "matchJoined"
	TypeMatchStarted   = "matchStarted"
	TypeGameUpdate     = "gameUpdate"
	TypeScored         = "scored"
	TypeMatchPaused    = "matchPaused"
	TypeMatchResumed   = "matchResumed"
	TypeMatchEnded     = "matchEnded"
	TypeMatchForfeited = "matchForfeited"
	TypeError          = "error"
)

// Client → server message types.
const (
	TypePaddleInput = "paddleInput"
	TypeReady       = "ready"
	TypePause       = "pause"
	TypeResume      = "resume"
)

// Pause reasons carried by MatchPausedMessage.
const (
	PauseReasonDisconnect = "playerDisconnected"
	PauseReasonRequest    = "playerRequest"
)

type MatchJoinedMessage struct {
	Ver        int       `json:"ver"`
	Type       string    `json:"type"`
	MatchID    string    `json:"matchId"`
	PlayerSide Side      `json:"playerSide"`
	State      GameState `json:"state"`
}

type MatchStartedMessage struct {
	Ver   int       `json:"ver"`
	Type  string    `json:"type"`
	State GameState `json:"state"`
}

type GameUpdateMessage struct {
	Ver        int       `json:"ver"`
	Type       string    `json:"type"`
	State      GameState `json:"state"`
	ServerTime int64     `json:"serverTime"`
}

type ScoredMessage struct {
	Ver         int    `json:"ver"`
	Type        string `json:"type"`
	ScoringSide Side   `json:"scoringSide"`
	Scores      Scores `json:"scores"`
}

type MatchPausedMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
	// TimeRemaining is the forfeit grace in seconds; only set for
	// disconnect pauses.
	TimeRemaining float64 `json:"timeRemaining,omitempty"`
	// PausedBy identifies the requester; only set for explicit pauses.
	PausedBy string `json:"pausedBy,omitempty"`
}

type MatchResumedMessage struct {
	Ver   int       `json:"ver"`
	Type  string    `json:"type"`
	State GameState `json:"state"`
}

type MatchEndedMessage struct {
	Ver         int    `json:"ver"`
	Type        string `json:"type"`
	Winner      Side   `json:"winner"`
	WinnerID    string `json:"winnerId"`
	FinalScores Scores `json:"finalScores"`
}

type MatchForfeitedMessage struct {
	Ver                int    `json:"ver"`
	Type               string `json:"type"`
	DisconnectedPlayer string `json:"disconnectedPlayer"`
	Winner             string `json:"winner"`
}

type ErrorMessage struct {
	Ver     int    `json:"ver"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClientMessage is the inbound envelope. Unknown types are logged and
// dropped; malformed payloads never close the connection.
type ClientMessage struct {
	Type string `json:"type"`
	Up   bool   `json:"up"`
	Down bool   `json:"down"`
}

// ProtocolDocument enumerates every wire payload. The schema generator under
// cmd/schema reflects it into docs/protocol.schema.json for client tooling.
type ProtocolDocument struct {
	MatchJoined    MatchJoinedMessage    `json:"matchJoined" jsonschema:"description=Initial snapshot plus the joining player's fixed side"`
	MatchStarted   MatchStartedMessage   `json:"matchStarted" jsonschema:"description=Both participants connected and the simulation is running"`
	GameUpdate     GameUpdateMessage     `json:"gameUpdate" jsonschema:"description=Authoritative per-tick state broadcast"`
	Scored         ScoredMessage         `json:"scored" jsonschema:"description=A side scored; ball reset follows unless the match ended"`
	MatchPaused    MatchPausedMessage    `json:"matchPaused" jsonschema:"description=Simulation paused by disconnect or request"`
	MatchResumed   MatchResumedMessage   `json:"matchResumed" jsonschema:"description=Simulation resumed with a fresh snapshot"`
	MatchEnded     MatchEndedMessage     `json:"matchEnded" jsonschema:"description=Win-score threshold reached"`
	MatchForfeited MatchForfeitedMessage `json:"matchForfeited" jsonschema:"description=Disconnect grace elapsed; remaining player wins"`
	Error          ErrorMessage          `json:"error" jsonschema:"description=Sent before rejecting a connection"`
	ClientInput    ClientMessage         `json:"clientInput" jsonschema:"description=Inbound paddle intent and lifecycle requests"`
}
