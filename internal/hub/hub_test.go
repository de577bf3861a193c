package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZapChainDev/Strangerthings/internal/game"
	"github.com/ZapChainDev/Strangerthings/internal/protocol"
)

// recordingConn captures every frame written to it.
type recordingConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("forced write failure")
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	c.frames = append(c.frames, frame)
	return nil
}

func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// framesOfType decodes the captured frames and keeps those whose type
// field matches.
func (c *recordingConn) framesOfType(t *testing.T, eventType string) []json.RawMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var matches []json.RawMessage
	for _, frame := range c.frames {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(frame, &envelope); err != nil {
			t.Fatalf("unparseable frame %q: %v", frame, err)
		}
		if envelope.Type == eventType {
			matches = append(matches, json.RawMessage(frame))
		}
	}
	return matches
}

// readyPlayer joins, selects, and readies one session in the given room
// and attaches a recording connection for it.
func readyPlayer(t *testing.T, h *Hub, room *game.Room, name, character string) (game.Player, *recordingConn) {
	t.Helper()

	self, _, _, err := room.Join(name, 0)
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	conn := &recordingConn{}
	h.Attach(self.ID, room, NewSubscriber(conn))

	if _, err := room.SelectCharacter(self.ID, character); err != nil {
		t.Fatalf("select %s: %v", character, err)
	}
	promoted, _, _, err := room.Ready(self.ID)
	if err != nil {
		t.Fatalf("ready %s: %v", name, err)
	}
	return promoted, conn
}

func TestDisconnectNotifiesPartitionAndRoom(t *testing.T) {
	h := New(nil)
	room, _ := h.CreateRoom("hawkins-1", 0)

	leaver, leaverConn := readyPlayer(t, h, room, "leaver", "mike")
	_, peerConn := readyPlayer(t, h, room, "peer", "eleven")

	other, otherConn := readyPlayer(t, h, room, "other", "dustin")
	if _, changed, err := room.SwitchWorld(other.ID, game.WorldUpsideDown); err != nil || !changed {
		t.Fatalf("switch: changed=%v err=%v", changed, err)
	}
	peerConn.reset()
	otherConn.reset()

	if !h.DisconnectSession(leaver.ID) {
		t.Fatal("disconnect reported nothing removed")
	}

	// Same-partition peer sees the departure.
	lefts := peerConn.framesOfType(t, protocol.EventPlayerLeft)
	if len(lefts) != 1 {
		t.Fatalf("peer got %d player:left frames, want 1", len(lefts))
	}
	var left protocol.PlayerLeftMessage
	if err := json.Unmarshal(lefts[0], &left); err != nil {
		t.Fatalf("decode left: %v", err)
	}
	if left.ID != leaver.ID {
		t.Fatalf("left.ID = %q, want %q", left.ID, leaver.ID)
	}

	// The other partition never hears about the departure itself...
	if frames := otherConn.framesOfType(t, protocol.EventPlayerLeft); len(frames) != 0 {
		t.Fatalf("cross-partition player:left leaked: %d frames", len(frames))
	}
	// ...but character availability is room-global.
	if frames := otherConn.framesOfType(t, protocol.EventCharacterChanged); len(frames) != 1 {
		t.Fatalf("other partition got %d character frames, want 1", len(frames))
	}

	if !leaverConn.closed {
		t.Fatal("leaver connection not closed")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := New(nil)
	room, _ := h.CreateRoom("hawkins-1", 0)

	leaver, _ := readyPlayer(t, h, room, "leaver", "mike")
	_, peerConn := readyPlayer(t, h, room, "peer", "eleven")
	peerConn.reset()

	if !h.DisconnectSession(leaver.ID) {
		t.Fatal("first disconnect failed")
	}
	if h.DisconnectSession(leaver.ID) {
		t.Fatal("second disconnect removed something")
	}

	if frames := peerConn.framesOfType(t, protocol.EventPlayerLeft); len(frames) != 1 {
		t.Fatalf("peer got %d player:left frames, want exactly 1", len(frames))
	}
}

func TestSendToUnknownSession(t *testing.T) {
	h := New(nil)
	err := h.SendTo("ghost", protocol.PlayerLeftMessage{})
	if !errors.Is(err, game.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestWriteFailureTearsSessionDown(t *testing.T) {
	h := New(nil)
	room, _ := h.CreateRoom("hawkins-1", 0)

	victim, victimConn := readyPlayer(t, h, room, "victim", "mike")
	victimConn.fail = true

	if err := h.SendTo(victim.ID, protocol.PlayerLeftMessage{Ver: protocol.Version}); err == nil {
		t.Fatal("expected write error")
	}

	// The disconnect runs asynchronously; wait for the registry to drop
	// the session.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := h.lookup(victim.ID); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session still attached after write failure")
}

func TestCreateRoomIsIdempotent(t *testing.T) {
	h := New(nil)
	first, created := h.CreateRoom("hawkins-1", 4)
	if !created {
		t.Fatal("first create reported existing")
	}
	second, created := h.CreateRoom("hawkins-1", 99)
	if created {
		t.Fatal("second create made a new room")
	}
	if first != second || second.Capacity() != 4 {
		t.Fatal("room identity or capacity changed on re-create")
	}
}

func TestListings(t *testing.T) {
	h := New(nil)
	room, _ := h.CreateRoom("hawkins-1", 3)
	readyPlayer(t, h, room, "a", "mike")
	if _, _, _, err := room.Join("pending", 0); err != nil {
		t.Fatalf("join: %v", err)
	}

	listings := h.Listings()
	if len(listings) != 1 {
		t.Fatalf("got %d listings, want 1", len(listings))
	}
	l := listings[0]
	if l.ID != "hawkins-1" || l.Capacity != 3 || l.Ready != 1 || l.Pending != 1 {
		t.Fatalf("unexpected listing %+v", l)
	}
}
