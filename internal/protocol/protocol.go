// Package protocol defines the JSON message catalogue exchanged over the
// websocket. Every frame is a single typed object; inbound frames share
// one envelope struct with optional fields, outbound frames are one struct
// per event.
package protocol

import (
	"errors"

	"github.com/ZapChainDev/Strangerthings/internal/game"
)

// Version is bumped on any wire-incompatible change.
const Version = 1

// Inbound message types.
const (
	TypeJoin            = "join"
	TypeSelectCharacter = "selectCharacter"
	TypeReady           = "ready"
	TypeMove            = "move"
	TypeWorldChange     = "worldChange"
	TypeChat            = "chat"
	TypeHeartbeat       = "heartbeat"
)

// Outbound event names.
const (
	EventSelectScreen     = "selectCharacterScreen"
	EventCharacterPicked  = "character:selected"
	EventCharacterFailed  = "character:selectFailed"
	EventCharacterChanged = "character:stateChanged"
	EventPlayerJoined     = "player:joined"
	EventPlayerSpawned    = "player:spawned"
	EventPlayerLeft       = "player:left"
	EventPlayersUpdate    = "players:update"
	EventWorldChanged     = "player:worldChanged"
	EventChat             = "player:chat"
	EventHeartbeat        = "heartbeat"
	EventError            = "error"
)

// ClientMessage is the single inbound envelope. Which fields are read
// depends on Type; unknown fields are ignored.
type ClientMessage struct {
	Type      string     `json:"type"`
	Name      string     `json:"name,omitempty"`
	Identity  string     `json:"identity,omitempty"`
	Room      string     `json:"room,omitempty"`
	Character string     `json:"character,omitempty"`
	Position  *game.Vec3 `json:"position,omitempty"`
	Yaw       *float64   `json:"yaw,omitempty"`
	Animation string     `json:"animation,omitempty"`
	World     string     `json:"world,omitempty"`
	Text      string     `json:"text,omitempty"`
	SentAt    int64      `json:"sentAt,omitempty"`
}

// SelectScreenMessage answers a successful join: the session's id plus the
// current slot snapshot, sent to the joining session only.
type SelectScreenMessage struct {
	Ver        int                  `json:"ver"`
	Type       string               `json:"type"`
	SessionID  string               `json:"sessionId"`
	Characters []game.CharacterSlot `json:"characters"`
}

// CharacterSelectedMessage confirms a selection to the caller.
type CharacterSelectedMessage struct {
	Ver        int                  `json:"ver"`
	Type       string               `json:"type"`
	Character  string               `json:"character"`
	Characters []game.CharacterSlot `json:"characters"`
}

// CharacterFailedMessage reports a failed selection, carrying the fresh
// snapshot so the client never retries against a stale view.
type CharacterFailedMessage struct {
	Ver        int                  `json:"ver"`
	Type       string               `json:"type"`
	Error      string               `json:"error"`
	Characters []game.CharacterSlot `json:"characters"`
}

// CharacterChangedMessage fans the updated slot snapshot out to the rest
// of the room. Character availability is room-global, so this crosses
// partitions.
type CharacterChangedMessage struct {
	Ver        int                  `json:"ver"`
	Type       string               `json:"type"`
	Characters []game.CharacterSlot `json:"characters"`
}

// PlayerJoinedMessage answers a successful ready: the caller's own state
// plus the roster of active peers in its partition.
type PlayerJoinedMessage struct {
	Ver     int           `json:"ver"`
	Type    string        `json:"type"`
	Self    game.Player   `json:"self"`
	Players []game.Player `json:"players"`
}

// PlayerSpawnedMessage announces a newly active session to its partition.
type PlayerSpawnedMessage struct {
	Ver    int         `json:"ver"`
	Type   string      `json:"type"`
	Player game.Player `json:"player"`
}

// PlayerLeftMessage announces that a session disappeared from the
// recipient's partition, by disconnect or by world switch.
type PlayerLeftMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PlayersUpdateMessage is the batched tick delta. The recipient's own
// entry is always filtered out before send.
type PlayersUpdateMessage struct {
	Ver     int          `json:"ver"`
	Type    string       `json:"type"`
	Players []game.Delta `json:"players"`
}

// WorldChangedMessage answers a world switch with the roster of the new
// partition.
type WorldChangedMessage struct {
	Ver     int             `json:"ver"`
	Type    string          `json:"type"`
	World   game.WorldState `json:"world"`
	Players []game.Player   `json:"players"`
}

// ChatMessage carries a (truncated) chat line to the sender's partition.
type ChatMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
}

// HeartbeatAckMessage echoes a heartbeat with server time and the measured
// round trip.
type HeartbeatAckMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// ErrorMessage reports a rejected inbound message to its sender. Errors
// are never broadcast and never fatal to the connection.
type ErrorMessage struct {
	Ver     int    `json:"ver"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried by ErrorMessage and CharacterFailedMessage.
const (
	CodeRoomNotFound   = "RoomNotFound"
	CodeRoomFull       = "RoomFull"
	CodeInvalidChar    = "InvalidCharacter"
	CodeAlreadyTaken   = "AlreadyTaken"
	CodeNoCharacter    = "NoCharacterSelected"
	CodePlayerNotFound = "PlayerNotFound"
	CodeBadRequest     = "BadRequest"
)

// ErrorCode maps a game error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, game.ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, game.ErrInvalidCharacter):
		return CodeInvalidChar
	case errors.Is(err, game.ErrCharacterTaken):
		return CodeAlreadyTaken
	case errors.Is(err, game.ErrNoCharacter):
		return CodeNoCharacter
	case errors.Is(err, game.ErrPlayerNotFound):
		return CodePlayerNotFound
	default:
		return CodeBadRequest
	}
}

// NewError builds an ErrorMessage for the given failure.
func NewError(err error) ErrorMessage {
	return ErrorMessage{
		Ver:     Version,
		Type:    EventError,
		Code:    ErrorCode(err),
		Message: err.Error(),
	}
}
