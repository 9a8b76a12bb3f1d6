package network

import (
	"context"

	"ft-transcendence/server/logging"
)

const (
	// EventJoinRejected is emitted when a connection is refused for a match.
	EventJoinRejected logging.EventType = "network.join_rejected"
	// EventMalformedMessage is emitted when an inbound payload cannot be parsed.
	EventMalformedMessage logging.EventType = "network.malformed_message"
	// EventSendFailed is emitted when a broadcast write to a client fails.
	EventSendFailed logging.EventType = "network.send_failed"
)

// RejectPayload explains why a join was refused.
type RejectPayload struct {
	Reason string `json:"reason"`
}

func JoinRejected(ctx context.Context, pub logging.Publisher, matchID, playerID, reason string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventJoinRejected,
		Actor:    logging.PlayerRef(playerID),
		Targets:  []logging.EntityRef{logging.MatchRef(matchID)},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  RejectPayload{Reason: reason},
	})
}

func MalformedMessage(ctx context.Context, pub logging.Publisher, playerID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMalformedMessage,
		Actor:    logging.PlayerRef(playerID),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
	})
}

func SendFailed(ctx context.Context, pub logging.Publisher, matchID, playerID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSendFailed,
		Actor:    logging.PlayerRef(playerID),
		Targets:  []logging.EntityRef{logging.MatchRef(matchID)},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
	})
}
