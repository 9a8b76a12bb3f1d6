package match

import (
	"context"

	"ft-transcendence/server/logging"
)

const (
	// EventStarted is emitted when both participants are connected and the
	// simulation begins advancing.
	EventStarted logging.EventType = "match.started"
	// EventScored is emitted on every score increment.
	EventScored logging.EventType = "match.scored"
	// EventPaused is emitted on disconnect- or request-driven pauses.
	EventPaused logging.EventType = "match.paused"
	// EventResumed is emitted when a paused match becomes active again.
	EventResumed logging.EventType = "match.resumed"
	// EventEnded is emitted when a side reaches the win score.
	EventEnded logging.EventType = "match.ended"
	// EventForfeited is emitted when the disconnect grace elapses.
	EventForfeited logging.EventType = "match.forfeited"
	// EventCleanedUp is emitted when a match is torn down and removed.
	EventCleanedUp logging.EventType = "match.cleaned_up"
)

// ScorePayload captures a score transition.
type ScorePayload struct {
	Side  string `json:"side"`
	Left  int    `json:"left"`
	Right int    `json:"right"`
}

// PausePayload captures why a match stopped advancing.
type PausePayload struct {
	Reason       string  `json:"reason"`
	GraceSeconds float64 `json:"graceSeconds,omitempty"`
	PausedBy     string  `json:"pausedBy,omitempty"`
}

// OutcomePayload captures a terminal result.
type OutcomePayload struct {
	Winner  string `json:"winner"`
	Left    int    `json:"left"`
	Right   int    `json:"right"`
	Forfeit bool   `json:"forfeit,omitempty"`
}

func Started(ctx context.Context, pub logging.Publisher, matchID string, players []logging.EntityRef) {
	publish(ctx, pub, logging.Event{
		Type:     EventStarted,
		Actor:    logging.MatchRef(matchID),
		Targets:  players,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatch,
	})
}

func Scored(ctx context.Context, pub logging.Publisher, matchID string, payload ScorePayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventScored,
		Actor:    logging.MatchRef(matchID),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryMatch,
		Payload:  payload,
	})
}

func Paused(ctx context.Context, pub logging.Publisher, matchID string, payload PausePayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPaused,
		Actor:    logging.MatchRef(matchID),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatch,
		Payload:  payload,
	})
}

func Resumed(ctx context.Context, pub logging.Publisher, matchID string) {
	publish(ctx, pub, logging.Event{
		Type:     EventResumed,
		Actor:    logging.MatchRef(matchID),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatch,
	})
}

func Ended(ctx context.Context, pub logging.Publisher, matchID string, payload OutcomePayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventEnded,
		Actor:    logging.MatchRef(matchID),
		Targets:  []logging.EntityRef{logging.PlayerRef(payload.Winner)},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatch,
		Payload:  payload,
	})
}

func Forfeited(ctx context.Context, pub logging.Publisher, matchID string, payload OutcomePayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventForfeited,
		Actor:    logging.MatchRef(matchID),
		Targets:  []logging.EntityRef{logging.PlayerRef(payload.Winner)},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryMatch,
		Payload:  payload,
	})
}

func CleanedUp(ctx context.Context, pub logging.Publisher, matchID string) {
	publish(ctx, pub, logging.Event{
		Type:     EventCleanedUp,
		Actor:    logging.MatchRef(matchID),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryMatch,
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event)
}
