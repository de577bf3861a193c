package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ZapChainDev/Strangerthings/internal/game"
)

func TestErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{game.ErrRoomNotFound, CodeRoomNotFound},
		{game.ErrRoomFull, CodeRoomFull},
		{game.ErrInvalidCharacter, CodeInvalidChar},
		{game.ErrCharacterTaken, CodeAlreadyTaken},
		{game.ErrNoCharacter, CodeNoCharacter},
		{game.ErrPlayerNotFound, CodePlayerNotFound},
		{errors.New("something else"), CodeBadRequest},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Fatalf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestClientMessageOptionalFields(t *testing.T) {
	raw := []byte(`{"type":"move","yaw":1.5}`)
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Position != nil {
		t.Fatal("absent position decoded as non-nil")
	}
	if msg.Yaw == nil || *msg.Yaw != 1.5 {
		t.Fatalf("yaw = %v, want 1.5", msg.Yaw)
	}
}

func TestNewErrorCarriesVersionAndType(t *testing.T) {
	msg := NewError(game.ErrRoomFull)
	if msg.Ver != Version || msg.Type != EventError {
		t.Fatalf("malformed error message %+v", msg)
	}
	if msg.Code != CodeRoomFull {
		t.Fatalf("code = %q", msg.Code)
	}
}
