package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ZapChainDev/Strangerthings/internal/game"
	"github.com/ZapChainDev/Strangerthings/internal/protocol"
)

func decodeUpdate(t *testing.T, frame json.RawMessage) protocol.PlayersUpdateMessage {
	t.Helper()
	var msg protocol.PlayersUpdateMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		t.Fatalf("decode players:update: %v", err)
	}
	return msg
}

func TestTickCoalescesMovesIntoOneDelta(t *testing.T) {
	h := New(nil)
	room, _ := h.CreateRoom("hawkins-1", 0)
	scheduler := NewScheduler(h, 20)

	mover, moverConn := readyPlayer(t, h, room, "mover", "mike")
	_, watcherConn := readyPlayer(t, h, room, "watcher", "eleven")
	moverConn.reset()
	watcherConn.reset()

	// Several moves between two ticks must collapse to one entry holding
	// only the final state.
	for i := 1; i <= 5; i++ {
		pos := game.Vec3{X: float64(i), Y: 0, Z: float64(-i)}
		if _, err := room.ApplyMove(mover.ID, &pos, nil, ""); err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
	}
	scheduler.Tick(time.Now())

	updates := watcherConn.framesOfType(t, protocol.EventPlayersUpdate)
	if len(updates) != 1 {
		t.Fatalf("watcher got %d updates, want 1", len(updates))
	}
	msg := decodeUpdate(t, updates[0])
	if len(msg.Players) != 1 {
		t.Fatalf("update carries %d entries, want 1", len(msg.Players))
	}
	delta := msg.Players[0]
	if delta.ID != mover.ID {
		t.Fatalf("delta for %q, want %q", delta.ID, mover.ID)
	}
	if delta.Position.X != 5 || delta.Position.Z != -5 {
		t.Fatalf("delta holds intermediate state: %+v", delta.Position)
	}

	// The mover never receives its own echo.
	if frames := moverConn.framesOfType(t, protocol.EventPlayersUpdate); len(frames) != 0 {
		t.Fatalf("mover got %d self-echoes", len(frames))
	}
}

func TestQuietTickEmitsNothing(t *testing.T) {
	h := New(nil)
	room, _ := h.CreateRoom("hawkins-1", 0)
	scheduler := NewScheduler(h, 20)

	_, connA := readyPlayer(t, h, room, "a", "mike")
	_, connB := readyPlayer(t, h, room, "b", "eleven")
	connA.reset()
	connB.reset()

	scheduler.Tick(time.Now())
	scheduler.Tick(time.Now())

	for name, conn := range map[string]*recordingConn{"a": connA, "b": connB} {
		if frames := conn.framesOfType(t, protocol.EventPlayersUpdate); len(frames) != 0 {
			t.Fatalf("%s received %d updates during silence", name, len(frames))
		}
	}
}

func TestTickIsolatesPartitions(t *testing.T) {
	h := New(nil)
	room, _ := h.CreateRoom("hawkins-1", 0)
	scheduler := NewScheduler(h, 20)

	mover, _ := readyPlayer(t, h, room, "mover", "mike")
	_, normalConn := readyPlayer(t, h, room, "normal-peer", "eleven")
	inverted, invertedConn := readyPlayer(t, h, room, "inverted-peer", "dustin")
	if _, changed, err := room.SwitchWorld(inverted.ID, game.WorldUpsideDown); err != nil || !changed {
		t.Fatalf("switch: changed=%v err=%v", changed, err)
	}
	normalConn.reset()
	invertedConn.reset()

	pos := game.Vec3{X: 20, Y: 0, Z: 20}
	if _, err := room.ApplyMove(mover.ID, &pos, nil, ""); err != nil {
		t.Fatalf("move: %v", err)
	}
	scheduler.Tick(time.Now())

	if frames := normalConn.framesOfType(t, protocol.EventPlayersUpdate); len(frames) != 1 {
		t.Fatalf("normal peer got %d updates, want 1", len(frames))
	}
	if frames := invertedConn.framesOfType(t, protocol.EventPlayersUpdate); len(frames) != 0 {
		t.Fatalf("inverted peer got %d normal-world updates", len(frames))
	}
}

func TestTickSkipsLoneMover(t *testing.T) {
	h := New(nil)
	room, _ := h.CreateRoom("hawkins-1", 0)
	scheduler := NewScheduler(h, 20)

	mover, moverConn := readyPlayer(t, h, room, "mover", "mike")
	moverConn.reset()

	pos := game.Vec3{X: 7, Y: 0, Z: 7}
	if _, err := room.ApplyMove(mover.ID, &pos, nil, ""); err != nil {
		t.Fatalf("move: %v", err)
	}
	scheduler.Tick(time.Now())

	if frames := moverConn.framesOfType(t, protocol.EventPlayersUpdate); len(frames) != 0 {
		t.Fatalf("lone mover got %d updates", len(frames))
	}

	// The dirty flag is still consumed: the next tick stays quiet.
	_, watcherConn := readyPlayer(t, h, room, "watcher", "eleven")
	watcherConn.reset()
	scheduler.Tick(time.Now())
	if frames := watcherConn.framesOfType(t, protocol.EventPlayersUpdate); len(frames) != 0 {
		t.Fatalf("stale delta resurfaced: %d updates", len(frames))
	}
}

func TestTickReapsSilentSessions(t *testing.T) {
	h := New(nil)
	room, _ := h.CreateRoom("hawkins-1", 0)
	scheduler := NewScheduler(h, 20)

	silent, _ := readyPlayer(t, h, room, "silent", "mike")
	_, peerConn := readyPlayer(t, h, room, "peer", "eleven")
	peerConn.reset()

	// Keep the peer alive past the cutoff, leave the other session mute.
	future := time.Now().Add(game.DisconnectAfter + time.Second)
	peer := room.SessionsInWorldState(game.WorldNormal)
	for _, p := range peer {
		if p.ID != silent.ID {
			if _, err := room.Heartbeat(p.ID, future, 0); err != nil {
				t.Fatalf("heartbeat: %v", err)
			}
		}
	}

	scheduler.Tick(future)

	if _, ok := h.lookup(silent.ID); ok {
		t.Fatal("silent session survived the reaper")
	}
	if frames := peerConn.framesOfType(t, protocol.EventPlayerLeft); len(frames) != 1 {
		t.Fatalf("peer got %d player:left frames, want 1", len(frames))
	}
	if got := h.Telemetry().Snapshot().SessionsReaped; got != 1 {
		t.Fatalf("reap counter = %d, want 1", got)
	}
}
