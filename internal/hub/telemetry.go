package hub

import (
	"sync/atomic"
	"time"
)

// Telemetry is a set of process-lifetime counters served at /telemetry.
// Counters are atomic so the tick loop and connection goroutines record
// without coordination.
type Telemetry struct {
	ticks           atomic.Uint64
	messagesSent    atomic.Uint64
	bytesSent       atomic.Uint64
	deltaEntries    atomic.Uint64
	movesSuppressed atomic.Uint64
	sessionsReaped  atomic.Uint64
	lastTickMicros  atomic.Int64
}

func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

// RecordSend accounts one outbound frame.
func (t *Telemetry) RecordSend(bytes int) {
	t.messagesSent.Add(1)
	if bytes > 0 {
		t.bytesSent.Add(uint64(bytes))
	}
}

// RecordTick accounts one scheduler pass.
func (t *Telemetry) RecordTick(duration time.Duration, entries int) {
	t.ticks.Add(1)
	if entries > 0 {
		t.deltaEntries.Add(uint64(entries))
	}
	t.lastTickMicros.Store(duration.Microseconds())
}

// RecordSuppressedMove accounts a move discarded below threshold.
func (t *Telemetry) RecordSuppressedMove() {
	t.movesSuppressed.Add(1)
}

// RecordReap accounts a session dropped for heartbeat silence.
func (t *Telemetry) RecordReap() {
	t.sessionsReaped.Add(1)
}

// TelemetrySnapshot is the JSON view of the counters.
type TelemetrySnapshot struct {
	Ticks           uint64 `json:"ticks"`
	MessagesSent    uint64 `json:"messagesSent"`
	BytesSent       uint64 `json:"bytesSent"`
	DeltaEntries    uint64 `json:"deltaEntries"`
	MovesSuppressed uint64 `json:"movesSuppressed"`
	SessionsReaped  uint64 `json:"sessionsReaped"`
	LastTickMicros  int64  `json:"lastTickMicros"`
}

// Snapshot returns a consistent-enough copy for the HTTP endpoint.
func (t *Telemetry) Snapshot() TelemetrySnapshot {
	return TelemetrySnapshot{
		Ticks:           t.ticks.Load(),
		MessagesSent:    t.messagesSent.Load(),
		BytesSent:       t.bytesSent.Load(),
		DeltaEntries:    t.deltaEntries.Load(),
		MovesSuppressed: t.movesSuppressed.Load(),
		SessionsReaped:  t.sessionsReaped.Load(),
		LastTickMicros:  t.lastTickMicros.Load(),
	}
}
