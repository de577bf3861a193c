package game

import (
	"math"
	"time"
)

// Vec3 is a position in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// WorldState partitions a room into mutually invisible halves. It is a
// visibility filter, not a separate physical world: sessions in different
// states share coordinates but never see each other.
type WorldState string

const (
	WorldNormal     WorldState = "normal"
	WorldUpsideDown WorldState = "upsideDown"
)

// ParseWorldState validates a world state received from the client.
func ParseWorldState(value string) (WorldState, bool) {
	switch WorldState(value) {
	case WorldNormal, WorldUpsideDown:
		return WorldState(value), true
	default:
		return "", false
	}
}

// Opposite returns the other half of the partition.
func (w WorldState) Opposite() WorldState {
	if w == WorldUpsideDown {
		return WorldNormal
	}
	return WorldUpsideDown
}

type Animation string

const (
	AnimationIdle Animation = "idle"
	AnimationWalk Animation = "walk"
	AnimationRun  Animation = "run"
)

// ParseAnimation validates an animation tag, falling back to the previous
// value when the client sends something unknown or empty.
func ParseAnimation(value string, fallback Animation) Animation {
	switch Animation(value) {
	case AnimationIdle, AnimationWalk, AnimationRun:
		return Animation(value)
	default:
		return fallback
	}
}

// Player is the public session state sent over the wire.
type Player struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Character string     `json:"character,omitempty"`
	Position  Vec3       `json:"position"`
	Yaw       float64    `json:"yaw"`
	World     WorldState `json:"world"`
	Animation Animation  `json:"animation"`
}

// Delta is the per-session entry of a batched tick update.
type Delta struct {
	ID        string    `json:"id"`
	Position  Vec3      `json:"position"`
	Yaw       float64   `json:"yaw"`
	Animation Animation `json:"animation"`
}

// Session is the authoritative server-side state for one connected
// participant. It is owned exclusively by the Room that registered it and
// must only be mutated through Room methods, which serialize access.
type Session struct {
	Player

	// identityKey is the folded external identity token, used only to
	// spot "same player, new connection". Zero means anonymous.
	identityKey uint64

	ready bool
	dirty bool

	lastHeartbeat time.Time
	lastRTT       time.Duration
}

// NewSession creates a pending session at the given spawn transform.
func NewSession(id, name string, identityKey uint64, spawn Vec3) *Session {
	return &Session{
		Player: Player{
			ID:        id,
			Name:      name,
			Position:  spawn,
			World:     WorldNormal,
			Animation: AnimationIdle,
		},
		identityKey:   identityKey,
		lastHeartbeat: time.Now(),
	}
}

// Ready reports whether the session has completed the join handshake and
// is visible to its world-state partition.
func (s *Session) Ready() bool { return s.ready }

// IdentityKey exposes the folded identity token for reconnect detection.
func (s *Session) IdentityKey() uint64 { return s.identityKey }

// UpdateTransform replaces the stored transform unconditionally. Callers
// are responsible for clamping and threshold checks beforehand.
func (s *Session) UpdateTransform(position Vec3, yaw float64) {
	s.Position = position
	s.Yaw = NormalizeYaw(yaw)
}

// HasMovedBeyond reports whether the candidate position differs from the
// stored one by more than epsilon on any single axis.
func (s *Session) HasMovedBeyond(candidate Vec3, epsilon float64) bool {
	return math.Abs(candidate.X-s.Position.X) > epsilon ||
		math.Abs(candidate.Y-s.Position.Y) > epsilon ||
		math.Abs(candidate.Z-s.Position.Z) > epsilon
}

// HasRotatedBeyond reports whether the candidate yaw differs from the
// stored one by more than epsilon, accounting for wrap-around.
func (s *Session) HasRotatedBeyond(candidate float64, epsilon float64) bool {
	diff := math.Abs(NormalizeYaw(candidate) - s.Yaw)
	if diff > math.Pi {
		diff = 2*math.Pi - diff
	}
	return diff > epsilon
}

// MarkDirty flags the session as having unbroadcast state. Set by the
// gateway on any accepted mutation.
func (s *Session) MarkDirty() { s.dirty = true }

// ConsumeDirty clears and returns the dirty flag. Only the broadcast
// scheduler may call this; anything else would silently drop updates.
func (s *Session) ConsumeDirty() bool {
	was := s.dirty
	s.dirty = false
	return was
}

// Snapshot returns the public view of the session.
func (s *Session) Snapshot() Player { return s.Player }

// Delta returns the session's entry for a batched tick update.
func (s *Session) Delta() Delta {
	return Delta{ID: s.ID, Position: s.Position, Yaw: s.Yaw, Animation: s.Animation}
}

// Heartbeat records liveness and, when the client included its send time,
// derives a round-trip estimate.
func (s *Session) Heartbeat(receivedAt time.Time, clientSent int64) time.Duration {
	s.lastHeartbeat = receivedAt
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			s.lastRTT = rtt
		}
	}
	return s.lastRTT
}

// LastHeartbeat returns when the session was last heard from.
func (s *Session) LastHeartbeat() time.Time { return s.lastHeartbeat }

// LastRTT returns the most recent round-trip estimate.
func (s *Session) LastRTT() time.Duration { return s.lastRTT }

// NormalizeYaw wraps an angle into (-pi, pi].
func NormalizeYaw(yaw float64) float64 {
	wrapped := math.Mod(yaw+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// ClampPosition forces a position into the world bounds.
func ClampPosition(p Vec3) Vec3 {
	p.X = math.Max(WorldMinX, math.Min(WorldMaxX, p.X))
	p.Y = math.Max(WorldMinY, math.Min(WorldMaxY, p.Y))
	p.Z = math.Max(WorldMinZ, math.Min(WorldMaxZ, p.Z))
	return p
}
