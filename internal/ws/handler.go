// Package ws is the per-socket protocol gateway: it validates inbound
// frames and routes them into room mutations. It holds no authoritative
// state of its own: the room owns the sessions, the hub owns the
// connections.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ZapChainDev/Strangerthings/internal/game"
	"github.com/ZapChainDev/Strangerthings/internal/hub"
	"github.com/ZapChainDev/Strangerthings/internal/profile"
	"github.com/ZapChainDev/Strangerthings/internal/protocol"
)

const readLimit = 1 << 16

type Handler struct {
	hub      *hub.Hub
	profiles profile.Store
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
}

func NewHandler(h *hub.Hub, profiles profile.Store, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		hub:      h,
		profiles: profiles,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// connection is the gateway's per-socket view: a lookup reference into the
// room, never an authoritative copy of session state.
type connection struct {
	sub         *hub.Subscriber
	sessionID   string
	room        *game.Room
	identityKey uint64
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(readLimit)

	c := &connection{sub: hub.NewSubscriber(conn)}
	defer func() {
		if c.sessionID != "" {
			h.hub.DisconnectSession(c.sessionID)
		} else {
			c.sub.Close()
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg protocol.ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Debugw("discarding malformed frame", "remote", r.RemoteAddr, "error", err)
			continue
		}

		if msg.Type == protocol.TypeJoin {
			h.handleJoin(c, msg)
			continue
		}
		if c.sessionID == "" {
			// Everything except join requires a registered session.
			h.reply(c, protocol.NewError(game.ErrPlayerNotFound))
			continue
		}

		switch msg.Type {
		case protocol.TypeSelectCharacter:
			h.handleSelect(c, msg)
		case protocol.TypeReady:
			h.handleReady(c)
		case protocol.TypeMove:
			h.handleMove(c, msg)
		case protocol.TypeWorldChange:
			h.handleWorldChange(c, msg)
		case protocol.TypeChat:
			h.handleChat(c, msg)
		case protocol.TypeHeartbeat:
			h.handleHeartbeat(c, msg)
		default:
			h.logger.Debugw("unknown message type", "type", msg.Type, "session", c.sessionID)
		}
	}
}

// reply writes to the caller only. Errors here surface through the hub's
// disconnect path once the session is attached; before that the next read
// fails and the connection unwinds.
func (h *Handler) reply(c *connection, payload any) {
	if c.sessionID != "" {
		if err := h.hub.SendTo(c.sessionID, payload); err != nil {
			h.logger.Debugw("reply dropped", "session", c.sessionID, "error", err)
		}
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warnw("marshal reply failed", "error", err)
		return
	}
	if err := c.sub.Send(data); err != nil {
		h.logger.Debugw("pre-join reply dropped", "error", err)
	}
}

func (h *Handler) handleJoin(c *connection, msg protocol.ClientMessage) {
	if c.sessionID != "" {
		h.reply(c, protocol.ErrorMessage{
			Ver:     protocol.Version,
			Type:    protocol.EventError,
			Code:    protocol.CodeBadRequest,
			Message: "already joined",
		})
		return
	}

	room, ok := h.hub.Room(msg.Room)
	if !ok {
		h.reply(c, protocol.NewError(game.ErrRoomNotFound))
		return
	}

	var identityKey uint64
	if msg.Identity != "" {
		identityKey = xxhash.Sum64String(msg.Identity)
	}

	self, slots, duplicate, err := room.Join(msg.Name, identityKey)
	if err != nil {
		h.reply(c, protocol.NewError(err))
		return
	}
	if duplicate != "" {
		// Suspected reconnect: the stale session is left alone and falls
		// to its own disconnect or the heartbeat reaper.
		h.logger.Warnw("identity already registered",
			"identityKey", identityKey,
			"existing", duplicate,
			"new", self.ID,
		)
	}

	c.sessionID = self.ID
	c.room = room
	c.identityKey = identityKey
	h.hub.Attach(self.ID, room, c.sub)

	h.logger.Infow("session joined", "session", self.ID, "room", room.ID(), "name", self.Name)
	h.reply(c, protocol.SelectScreenMessage{
		Ver:        protocol.Version,
		Type:       protocol.EventSelectScreen,
		SessionID:  self.ID,
		Characters: slots,
	})
}

func (h *Handler) handleSelect(c *connection, msg protocol.ClientMessage) {
	slots, err := c.room.SelectCharacter(c.sessionID, msg.Character)
	if err != nil {
		h.reply(c, protocol.CharacterFailedMessage{
			Ver:        protocol.Version,
			Type:       protocol.EventCharacterFailed,
			Error:      protocol.ErrorCode(err),
			Characters: slots,
		})
		return
	}

	h.reply(c, protocol.CharacterSelectedMessage{
		Ver:        protocol.Version,
		Type:       protocol.EventCharacterPicked,
		Character:  msg.Character,
		Characters: slots,
	})

	// Character availability is room-global, so the snapshot crosses both
	// partitions.
	changed := protocol.CharacterChangedMessage{
		Ver:        protocol.Version,
		Type:       protocol.EventCharacterChanged,
		Characters: slots,
	}
	if err := h.hub.Fanout(c.room.SessionIDs(c.sessionID), changed); err != nil {
		h.logger.Debugw("character fan-out incomplete", "session", c.sessionID, "error", err)
	}
}

func (h *Handler) handleReady(c *connection) {
	self, roster, spawned, err := c.room.Ready(c.sessionID)
	if err != nil {
		h.reply(c, protocol.NewError(err))
		return
	}

	h.reply(c, protocol.PlayerJoinedMessage{
		Ver:     protocol.Version,
		Type:    protocol.EventPlayerJoined,
		Self:    self,
		Players: roster,
	})
	if !spawned {
		return
	}

	spawnedMsg := protocol.PlayerSpawnedMessage{
		Ver:    protocol.Version,
		Type:   protocol.EventPlayerSpawned,
		Player: self,
	}
	if err := h.hub.Fanout(c.room.PartitionPeerIDs(self.World, c.sessionID), spawnedMsg); err != nil {
		h.logger.Debugw("spawn fan-out incomplete", "session", c.sessionID, "error", err)
	}

	if h.profiles != nil && c.identityKey != 0 {
		// Fire-and-forget: the side store never blocks the protocol path.
		p := profile.Profile{IdentityKey: c.identityKey, Name: self.Name, LastSeen: time.Now()}
		go func() {
			if err := h.profiles.Save(context.Background(), p); err != nil {
				h.logger.Warnw("profile save failed", "identityKey", p.IdentityKey, "error", err)
			}
		}()
	}
}

func (h *Handler) handleMove(c *connection, msg protocol.ClientMessage) {
	changed, err := c.room.ApplyMove(c.sessionID, msg.Position, msg.Yaw, msg.Animation)
	if err != nil {
		h.reply(c, protocol.NewError(err))
		return
	}
	if !changed {
		h.hub.Telemetry().RecordSuppressedMove()
	}
	// No reply and no broadcast: visibility is the scheduler's job.
}

func (h *Handler) handleWorldChange(c *connection, msg protocol.ClientMessage) {
	target, ok := game.ParseWorldState(msg.World)
	if !ok {
		// Not a reportable client error; indistinguishable from success.
		return
	}

	report, changed, err := c.room.SwitchWorld(c.sessionID, target)
	if err != nil {
		h.reply(c, protocol.NewError(err))
		return
	}
	if !changed {
		return
	}

	// Visibility flips are rare and latency-sensitive, so they bypass the
	// tick batch and go out immediately.
	if report.WasReady {
		left := protocol.PlayerLeftMessage{
			Ver:  protocol.Version,
			Type: protocol.EventPlayerLeft,
			ID:   c.sessionID,
		}
		if err := h.hub.Fanout(c.room.PartitionPeerIDs(report.From, c.sessionID), left); err != nil {
			h.logger.Debugw("world-change left fan-out incomplete", "session", c.sessionID, "error", err)
		}
		spawned := protocol.PlayerSpawnedMessage{
			Ver:    protocol.Version,
			Type:   protocol.EventPlayerSpawned,
			Player: report.Player,
		}
		if err := h.hub.Fanout(c.room.PartitionPeerIDs(report.To, c.sessionID), spawned); err != nil {
			h.logger.Debugw("world-change spawn fan-out incomplete", "session", c.sessionID, "error", err)
		}
	}

	h.reply(c, protocol.WorldChangedMessage{
		Ver:     protocol.Version,
		Type:    protocol.EventWorldChanged,
		World:   report.To,
		Players: report.Roster,
	})
}

func (h *Handler) handleChat(c *connection, msg protocol.ClientMessage) {
	if msg.Text == "" {
		return
	}
	sender, text, err := c.room.Chat(c.sessionID, msg.Text)
	if err != nil {
		h.reply(c, protocol.NewError(err))
		return
	}

	chat := protocol.ChatMessage{
		Ver:  protocol.Version,
		Type: protocol.EventChat,
		ID:   sender.ID,
		Name: sender.Name,
		Text: text,
	}
	if err := h.hub.Fanout(c.room.PartitionPeerIDs(sender.World, c.sessionID), chat); err != nil {
		h.logger.Debugw("chat fan-out incomplete", "session", c.sessionID, "error", err)
	}
}

func (h *Handler) handleHeartbeat(c *connection, msg protocol.ClientMessage) {
	now := time.Now()
	rtt, err := c.room.Heartbeat(c.sessionID, now, msg.SentAt)
	if err != nil {
		return
	}
	h.reply(c, protocol.HeartbeatAckMessage{
		Ver:        protocol.Version,
		Type:       protocol.EventHeartbeat,
		ServerTime: now.UnixMilli(),
		ClientTime: msg.SentAt,
		RTTMillis:  rtt.Milliseconds(),
	})
}
