package hub

import (
	"context"
	"time"

	"github.com/ZapChainDev/Strangerthings/internal/game"
	"github.com/ZapChainDev/Strangerthings/internal/protocol"
)

// DefaultTickRate is the broadcast frequency in ticks per second: fast
// enough for perceived smoothness, slow enough to bound outbound volume to
// tickRate x activeSessions instead of inputRate x activeSessions.
const DefaultTickRate = 20

var partitions = []game.WorldState{game.WorldNormal, game.WorldUpsideDown}

// Scheduler drives the fixed-rate delta broadcast. Each tick it scans
// every room's partitions independently, drains dirty sessions into a
// batch, and fans the batch out within that partition only. The
// partitioning is enforced here, at the source: movement in one world
// state is never serialized into a frame destined for the other.
type Scheduler struct {
	hub      *Hub
	interval time.Duration
}

func NewScheduler(h *Hub, tickRate int) *Scheduler {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	return &Scheduler{
		hub:      h,
		interval: time.Second / time.Duration(tickRate),
	}
}

// Run loops until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Tick runs one full scheduler pass: reap silent sessions, then flush and
// broadcast each partition of each room.
func (s *Scheduler) Tick(now time.Time) {
	start := time.Now()
	entries := 0
	for _, room := range s.hub.Rooms() {
		for _, id := range room.StaleSessions(now) {
			s.hub.logger.Infow("reaping silent session", "session", id, "room", room.ID())
			if s.hub.DisconnectSession(id) {
				s.hub.telemetry.RecordReap()
			}
		}
		for _, state := range partitions {
			entries += s.flushPartition(room, state)
		}
	}
	s.hub.telemetry.RecordTick(time.Since(start), entries)
}

func (s *Scheduler) flushPartition(room *game.Room, state game.WorldState) int {
	batch, recipients := room.FlushPartition(state)
	if len(batch) == 0 {
		// Silence is the default: an idle partition costs nothing.
		return 0
	}

	for _, recipient := range recipients {
		deltas := withoutOwnEntry(batch, recipient)
		if len(deltas) == 0 {
			// The only mover was the recipient itself; a player never
			// receives its own echo.
			continue
		}
		msg := protocol.PlayersUpdateMessage{
			Ver:     protocol.Version,
			Type:    protocol.EventPlayersUpdate,
			Players: deltas,
		}
		if err := s.hub.SendTo(recipient, msg); err != nil {
			s.hub.logger.Debugw("tick update dropped", "session", recipient, "error", err)
		}
	}
	return len(batch)
}

func withoutOwnEntry(batch []game.Delta, recipient string) []game.Delta {
	deltas := make([]game.Delta, 0, len(batch))
	for _, delta := range batch {
		if delta.ID == recipient {
			continue
		}
		deltas = append(deltas, delta)
	}
	return deltas
}
