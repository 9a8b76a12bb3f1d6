package server

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

type telemetryCounters struct {
	bytesSent          atomic.Uint64
	messagesSent       atomic.Uint64
	sendFailures       atomic.Uint64
	tickDurationMillis atomic.Int64
	liveMatches        atomic.Int64
	matchesStarted     atomic.Uint64
	matchesCompleted   atomic.Uint64
	forfeits           atomic.Uint64
	debug              bool
}

type telemetrySnapshot struct {
	BytesSent        uint64 `json:"bytesSent"`
	MessagesSent     uint64 `json:"messagesSent"`
	SendFailures     uint64 `json:"sendFailures"`
	TickDuration     int64  `json:"tickDurationMillis"`
	LiveMatches      int64  `json:"liveMatches"`
	MatchesStarted   uint64 `json:"matchesStarted"`
	MatchesCompleted uint64 `json:"matchesCompleted"`
	Forfeits         uint64 `json:"forfeits"`
}

func newTelemetryCounters() *telemetryCounters {
	t := &telemetryCounters{}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *telemetryCounters) RecordSend(bytes int) {
	if bytes < 0 {
		bytes = 0
	}
	t.bytesSent.Add(uint64(bytes))
	t.messagesSent.Add(1)
}

func (t *telemetryCounters) RecordSendFailure() {
	t.sendFailures.Add(1)
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.tickDurationMillis.Store(millis)
	if t.debug {
		fmt.Printf(
			"[telemetry] tick=%dms matches=%d bytes=%d messages=%d\n",
			millis,
			t.liveMatches.Load(),
			t.bytesSent.Load(),
			t.messagesSent.Load(),
		)
	}
}

func (t *telemetryCounters) MatchCreated() {
	t.liveMatches.Add(1)
}

func (t *telemetryCounters) MatchRemoved() {
	t.liveMatches.Add(-1)
}

func (t *telemetryCounters) MatchStarted() {
	t.matchesStarted.Add(1)
}

func (t *telemetryCounters) MatchCompleted(forfeit bool) {
	t.matchesCompleted.Add(1)
	if forfeit {
		t.forfeits.Add(1)
	}
}

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	return telemetrySnapshot{
		BytesSent:        t.bytesSent.Load(),
		MessagesSent:     t.messagesSent.Load(),
		SendFailures:     t.sendFailures.Load(),
		TickDuration:     t.tickDurationMillis.Load(),
		LiveMatches:      t.liveMatches.Load(),
		MatchesStarted:   t.matchesStarted.Load(),
		MatchesCompleted: t.matchesCompleted.Load(),
		Forfeits:         t.forfeits.Load(),
	}
}
