package protocol

// Catalogue groups every wire message into one reflectable root so the
// schema generator (cmd/schema) can emit a single machine-readable
// document for client tooling.
type Catalogue struct {
	Client           ClientMessage            `json:"client" jsonschema:"description=Inbound envelope sent by clients; the type field selects which optional fields are read"`
	SelectScreen     SelectScreenMessage      `json:"selectCharacterScreen" jsonschema:"description=Join reply with session id and slot snapshot"`
	CharacterPicked  CharacterSelectedMessage `json:"characterSelected" jsonschema:"description=Selection confirmation to the caller"`
	CharacterFailed  CharacterFailedMessage   `json:"characterSelectFailed" jsonschema:"description=Selection failure with fresh slot snapshot"`
	CharacterChanged CharacterChangedMessage  `json:"characterStateChanged" jsonschema:"description=Room-wide slot snapshot update"`
	PlayerJoined     PlayerJoinedMessage      `json:"playerJoined" jsonschema:"description=Ready reply with own state and partition roster"`
	PlayerSpawned    PlayerSpawnedMessage     `json:"playerSpawned" jsonschema:"description=New active session announced to its partition"`
	PlayerLeft       PlayerLeftMessage        `json:"playerLeft" jsonschema:"description=Session disappeared from the recipient's partition"`
	PlayersUpdate    PlayersUpdateMessage     `json:"playersUpdate" jsonschema:"description=Batched per-tick delta update"`
	WorldChanged     WorldChangedMessage      `json:"playerWorldChanged" jsonschema:"description=World switch reply with the new partition roster"`
	Chat             ChatMessage              `json:"playerChat" jsonschema:"description=Partition-scoped chat line"`
	HeartbeatAck     HeartbeatAckMessage      `json:"heartbeatAck" jsonschema:"description=Heartbeat echo with measured round trip"`
	Error            ErrorMessage             `json:"error" jsonschema:"description=Rejection reply to the originating caller"`
}
