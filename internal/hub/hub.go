// Package hub owns the room registry, the per-session outbound
// connections, and the fixed-rate broadcast scheduler.
package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ZapChainDev/Strangerthings/internal/game"
	"github.com/ZapChainDev/Strangerthings/internal/protocol"
)

const writeWait = 10 * time.Second

// Conn is the slice of a websocket connection the hub writes to. Tests
// substitute recording doubles.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Subscriber serializes writes to one connection. The per-subscriber
// mutex keeps tick broadcasts and synchronous replies from interleaving
// mid-frame.
type Subscriber struct {
	mu   sync.Mutex
	conn Conn
}

func NewSubscriber(conn Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// Send marshals and writes one frame under the write deadline.
func (s *Subscriber) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection.
func (s *Subscriber) Close() error {
	return s.conn.Close()
}

type client struct {
	sub  *Subscriber
	room *game.Room
}

// Hub is the registry of rooms and live connections. Room state is guarded
// by each room's own lock; the hub lock covers only the registry maps.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]*game.Room
	clients map[string]*client

	logger    *zap.SugaredLogger
	telemetry *Telemetry
}

func New(logger *zap.SugaredLogger) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		rooms:     make(map[string]*game.Room),
		clients:   make(map[string]*client),
		logger:    logger,
		telemetry: NewTelemetry(),
	}
}

// Telemetry exposes the hub's counters.
func (h *Hub) Telemetry() *Telemetry { return h.telemetry }

// CreateRoom registers a room id, returning the existing room when the id
// is already taken. Rooms are never destroyed.
func (h *Hub) CreateRoom(id string, capacity int) (*game.Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[id]; ok {
		return room, false
	}
	room := game.NewRoom(id, capacity)
	h.rooms[id] = room
	h.logger.Infow("room created", "room", id, "capacity", room.Capacity())
	return room, true
}

// Room looks up a room by id. Unknown ids are a join-time error, never an
// implicit create.
func (h *Hub) Room(id string) (*game.Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[id]
	return room, ok
}

// Rooms snapshots the registered rooms.
func (h *Hub) Rooms() []*game.Room {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]*game.Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Attach binds a session id to its outbound connection and owning room.
func (h *Hub) Attach(sessionID string, room *game.Room, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[sessionID] = &client{sub: sub, room: room}
}

func (h *Hub) lookup(sessionID string) (*client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[sessionID]
	return c, ok
}

// SendTo marshals payload and writes it to one session. A write failure
// tears that session down through the regular disconnect path; it never
// propagates to other recipients.
func (h *Hub) SendTo(sessionID string, payload any) error {
	c, ok := h.lookup(sessionID)
	if !ok {
		return fmt.Errorf("send to %s: %w", sessionID, game.ErrPlayerNotFound)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal for %s: %w", sessionID, err)
	}
	if err := c.sub.Send(data); err != nil {
		h.logger.Warnw("write failed, dropping session", "session", sessionID, "error", err)
		go h.DisconnectSession(sessionID)
		return fmt.Errorf("write to %s: %w", sessionID, err)
	}
	h.telemetry.RecordSend(len(data))
	return nil
}

// Fanout sends payload to every listed session, aggregating individual
// failures instead of stopping at the first one.
func (h *Hub) Fanout(sessionIDs []string, payload any) error {
	var errs error
	for _, id := range sessionIDs {
		if err := h.SendTo(id, payload); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// DisconnectSession removes a session from its room and notifies the
// peers that can still see it: the session's partition gets player:left,
// and when a character slot was freed the whole room gets the updated
// snapshot. Safe to call twice; the second call is a no-op.
func (h *Hub) DisconnectSession(sessionID string) bool {
	h.mu.Lock()
	c, ok := h.clients[sessionID]
	if ok {
		delete(h.clients, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}

	report, removed := c.room.Remove(sessionID)
	if removed {
		if report.WasReady {
			left := protocol.PlayerLeftMessage{
				Ver:  protocol.Version,
				Type: protocol.EventPlayerLeft,
				ID:   sessionID,
			}
			if err := h.Fanout(c.room.PartitionPeerIDs(report.Player.World, sessionID), left); err != nil {
				h.logger.Debugw("left fan-out incomplete", "session", sessionID, "error", err)
			}
		}
		if report.ReleasedCharacter != "" {
			changed := protocol.CharacterChangedMessage{
				Ver:        protocol.Version,
				Type:       protocol.EventCharacterChanged,
				Characters: c.room.CharacterSnapshot(),
			}
			if err := h.Fanout(c.room.SessionIDs(sessionID), changed); err != nil {
				h.logger.Debugw("character fan-out incomplete", "session", sessionID, "error", err)
			}
		}
		h.logger.Infow("session removed",
			"session", sessionID,
			"room", c.room.ID(),
			"character", report.ReleasedCharacter,
			"wasReady", report.WasReady,
		)
	}

	c.sub.Close()
	return removed
}

// RoomListing is the low-frequency discovery view served at /rooms.
type RoomListing struct {
	ID       string `json:"id"`
	Capacity int    `json:"capacity"`
	Ready    int    `json:"ready"`
	Pending  int    `json:"pending"`
}

// Listings snapshots occupancy for every room.
func (h *Hub) Listings() []RoomListing {
	rooms := h.Rooms()
	listings := make([]RoomListing, 0, len(rooms))
	for _, room := range rooms {
		ready, pending := room.Occupancy()
		listings = append(listings, RoomListing{
			ID:       room.ID(),
			Capacity: room.Capacity(),
			Ready:    ready,
			Pending:  pending,
		})
	}
	return listings
}

// Diagnostics snapshots per-room session liveness.
func (h *Hub) Diagnostics() map[string][]game.SessionDiagnostic {
	rooms := h.Rooms()
	out := make(map[string][]game.SessionDiagnostic, len(rooms))
	for _, room := range rooms {
		out[room.ID()] = room.Diagnostics()
	}
	return out
}
