package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Room is one isolated game instance. It exclusively owns its sessions and
// its character arbiter; every mutation runs under the room lock, so the
// gateway handlers and the broadcast scheduler each see mutations as
// atomic, whole operations.
type Room struct {
	id       string
	capacity int

	mu       sync.Mutex
	sessions map[string]*Session
	arbiter  *CharacterArbiter
}

// NewRoom creates an empty room. A capacity of zero or less falls back to
// the character-roster size.
func NewRoom(id string, capacity int) *Room {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Room{
		id:       id,
		capacity: capacity,
		sessions: make(map[string]*Session),
		arbiter:  NewCharacterArbiter(),
	}
}

func (r *Room) ID() string    { return r.id }
func (r *Room) Capacity() int { return r.capacity }

func (r *Room) readyCountLocked() int {
	count := 0
	for _, s := range r.sessions {
		if s.ready {
			count++
		}
	}
	return count
}

// IsFull reports whether the room has reached capacity. Only ready
// sessions count: players still on the selection screen do not block the
// lobby.
func (r *Room) IsFull() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readyCountLocked() >= r.capacity
}

// Join registers a new pending session at a randomized spawn position and
// returns its public state plus the current selection-screen snapshot.
// When the identity key matches another live session, that session's id is
// returned so the caller can log the suspected reconnect; the old session
// is left to its own disconnect.
func (r *Room) Join(name string, identityKey uint64) (Player, []CharacterSlot, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.readyCountLocked() >= r.capacity {
		return Player{}, nil, "", ErrRoomFull
	}

	duplicate := ""
	if identityKey != 0 {
		for id, s := range r.sessions {
			if s.identityKey == identityKey {
				duplicate = id
				break
			}
		}
	}

	spawn := Vec3{
		X: -SpawnExtent + rand.Float64()*2*SpawnExtent,
		Y: 0,
		Z: -SpawnExtent + rand.Float64()*2*SpawnExtent,
	}
	session := NewSession(uuid.NewString(), name, identityKey, spawn)
	r.sessions[session.ID] = session

	return session.Snapshot(), r.arbiter.Snapshot(), duplicate, nil
}

// SelectCharacter delegates to the arbiter and records the result on the
// session. The returned snapshot reflects the post-attempt slot state on
// success and failure alike, so callers never act on a stale view.
func (r *Room) SelectCharacter(sessionID, characterID string) ([]CharacterSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return r.arbiter.Snapshot(), ErrPlayerNotFound
	}
	if err := r.arbiter.Select(sessionID, characterID); err != nil {
		return r.arbiter.Snapshot(), err
	}
	session.Character = characterID
	return r.arbiter.Snapshot(), nil
}

// Ready promotes a pending session to active, making it visible to its
// partition and counted toward capacity. The returned roster holds the
// already-active peers of the session's partition. spawned is false when
// the session was already ready (repeat ready is a no-op).
func (r *Room) Ready(sessionID string) (self Player, roster []Player, spawned bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return Player{}, nil, false, ErrPlayerNotFound
	}
	if session.Character == "" {
		return Player{}, nil, false, ErrNoCharacter
	}
	if session.ready {
		return session.Snapshot(), r.partitionRosterLocked(session.World, sessionID), false, nil
	}
	if r.readyCountLocked() >= r.capacity {
		return Player{}, nil, false, ErrRoomFull
	}

	session.ready = true
	return session.Snapshot(), r.partitionRosterLocked(session.World, sessionID), true, nil
}

// RemovalReport describes what a Remove actually tore down.
type RemovalReport struct {
	Player            Player
	ReleasedCharacter string
	WasReady          bool
}

// Remove deregisters a session and releases its character slot atomically.
// A second call for the same id reports ok=false and changes nothing.
func (r *Room) Remove(sessionID string) (RemovalReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return RemovalReport{}, false
	}
	delete(r.sessions, sessionID)
	released := r.arbiter.Release(sessionID)
	return RemovalReport{
		Player:            session.Snapshot(),
		ReleasedCharacter: released,
		WasReady:          session.ready,
	}, true
}

// ApplyMove clamps the candidate transform into world bounds, then applies
// it only when it crosses the significance thresholds. Sub-threshold input
// leaves the session untouched and undirtied, so idle jitter never costs
// broadcast bandwidth.
func (r *Room) ApplyMove(sessionID string, position *Vec3, yaw *float64, animation string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return false, ErrPlayerNotFound
	}

	changed := false

	nextPos := session.Position
	if position != nil {
		candidate := ClampPosition(*position)
		if session.HasMovedBeyond(candidate, PositionEpsilon) {
			nextPos = candidate
			changed = true
		}
	}

	nextYaw := session.Yaw
	if yaw != nil && session.HasRotatedBeyond(*yaw, YawEpsilon) {
		nextYaw = *yaw
		changed = true
	}

	if animation != "" {
		if next := ParseAnimation(animation, session.Animation); next != session.Animation {
			session.Animation = next
			changed = true
		}
	}

	if !changed {
		return false, nil
	}

	session.UpdateTransform(nextPos, nextYaw)
	session.MarkDirty()
	return true, nil
}

// SwitchReport describes a completed world transition.
type SwitchReport struct {
	Player   Player
	From     WorldState
	To       WorldState
	WasReady bool
	Roster   []Player
}

// SwitchWorld flips a session into the target partition. Switching to the
// current state is a no-op (Changed=false); the character is retained
// across the transition.
func (r *Room) SwitchWorld(sessionID string, target WorldState) (SwitchReport, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return SwitchReport{}, false, ErrPlayerNotFound
	}
	if session.World == target {
		return SwitchReport{}, false, nil
	}

	from := session.World
	session.World = target
	return SwitchReport{
		Player:   session.Snapshot(),
		From:     from,
		To:       target,
		WasReady: session.ready,
		Roster:   r.partitionRosterLocked(target, sessionID),
	}, true, nil
}

// Chat validates the sender and truncates the text. Fan-out targets come
// from PartitionPeerIDs; chat is scoped to the sender's partition.
func (r *Room) Chat(sessionID, text string) (Player, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return Player{}, "", ErrPlayerNotFound
	}
	if runes := []rune(text); len(runes) > ChatMaxLength {
		text = string(runes[:ChatMaxLength])
	}
	return session.Snapshot(), text, nil
}

// SessionsInWorldState returns the public state of every ready session in
// the given partition. This is the single visibility query in the system:
// two sessions with different world states never appear in the same
// result, and no broadcast or join-time snapshot is assembled any other
// way.
func (r *Room) SessionsInWorldState(state WorldState) []Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.partitionRosterLocked(state, "")
}

func (r *Room) partitionRosterLocked(state WorldState, excludeID string) []Player {
	roster := make([]Player, 0, len(r.sessions))
	for id, s := range r.sessions {
		if !s.ready || s.World != state || id == excludeID {
			continue
		}
		roster = append(roster, s.Snapshot())
	}
	return roster
}

// PartitionPeerIDs returns the ids of ready sessions in the partition,
// minus the excluded one. Used as the recipient set for partition-scoped
// fan-out.
func (r *Room) PartitionPeerIDs(state WorldState, excludeID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.sessions))
	for id, s := range r.sessions {
		if !s.ready || s.World != state || id == excludeID {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// SessionIDs returns every registered session id, pending included. Used
// for room-global fan-out such as character-slot changes.
func (r *Room) SessionIDs(excludeID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		if id == excludeID {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// CharacterSnapshot returns the current selection-screen view.
func (r *Room) CharacterSnapshot() []CharacterSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.arbiter.Snapshot()
}

// FlushPartition collects the dirty sessions of one partition into a delta
// batch, clears their dirty flags, and returns the batch together with the
// partition's ready recipients. Called once per partition per tick by the
// broadcast scheduler, the only caller allowed to consume dirty flags.
func (r *Room) FlushPartition(state WorldState) ([]Delta, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var batch []Delta
	recipients := make([]string, 0, len(r.sessions))
	for id, s := range r.sessions {
		if !s.ready || s.World != state {
			continue
		}
		recipients = append(recipients, id)
		if s.ConsumeDirty() {
			batch = append(batch, s.Delta())
		}
	}
	return batch, recipients
}

// Heartbeat records liveness for a session and returns the updated RTT.
func (r *Room) Heartbeat(sessionID string, receivedAt time.Time, clientSent int64) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return 0, ErrPlayerNotFound
	}
	return session.Heartbeat(receivedAt, clientSent), nil
}

// StaleSessions returns sessions silent for longer than DisconnectAfter.
// The tick loop routes them through the regular disconnect path.
func (r *Room) StaleSessions(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []string
	for id, s := range r.sessions {
		if now.Sub(s.lastHeartbeat) > DisconnectAfter {
			stale = append(stale, id)
		}
	}
	return stale
}

// SessionDiagnostic is the liveness view exposed by the diagnostics
// endpoint.
type SessionDiagnostic struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	World         WorldState `json:"world"`
	Ready         bool       `json:"ready"`
	LastHeartbeat int64      `json:"lastHeartbeat"`
	RTTMillis     int64      `json:"rttMillis"`
}

// Diagnostics snapshots per-session liveness data.
func (r *Room) Diagnostics() []SessionDiagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SessionDiagnostic, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, SessionDiagnostic{
			ID:            s.ID,
			Name:          s.Name,
			World:         s.World,
			Ready:         s.ready,
			LastHeartbeat: s.lastHeartbeat.UnixMilli(),
			RTTMillis:     s.lastRTT.Milliseconds(),
		})
	}
	return out
}

// Occupancy returns the ready and pending session counts.
func (r *Room) Occupancy() (ready, pending int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.ready {
			ready++
		} else {
			pending++
		}
	}
	return ready, pending
}
