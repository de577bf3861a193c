package game

import "time"

const (
	// World bounds form a rectangular box. Movement is clamped here on the
	// server regardless of what the client reports.
	WorldMinX = -50.0
	WorldMaxX = 50.0
	WorldMinY = 0.0
	WorldMaxY = 30.0
	WorldMinZ = -50.0
	WorldMaxZ = 50.0

	// New sessions spawn somewhere inside a small square around the origin
	// so players do not materialize on top of each other at one point.
	SpawnExtent = 8.0

	// Componentwise thresholds below which a move message is treated as
	// jitter and discarded without touching session state.
	PositionEpsilon = 0.01
	YawEpsilon      = 0.01

	// ChatMaxLength is the hard cap applied to inbound chat text.
	ChatMaxLength = 240

	// DefaultCapacity matches the size of the character roster: a full
	// room means every character is on the board.
	DefaultCapacity = 6

	heartbeatInterval = 2 * time.Second

	// DisconnectAfter is how long a session may stay silent before the
	// tick loop reaps it.
	DisconnectAfter = 3 * heartbeatInterval
)
