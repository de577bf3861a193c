package game

import "errors"

// Protocol-visible failures. Every one of these is terminal only for the
// message that caused it; the connection and the room carry on.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room full")
	ErrInvalidCharacter = errors.New("invalid character")
	ErrCharacterTaken   = errors.New("character already taken")
	ErrNoCharacter      = errors.New("no character selected")
	ErrPlayerNotFound   = errors.New("player not found")
)
