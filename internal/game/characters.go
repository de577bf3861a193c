package game

// Characters is the fixed roster. Order is stable so snapshots render the
// selection screen deterministically.
var Characters = []string{"mike", "eleven", "dustin", "lucas", "will", "max"}

// CharacterSlot is one entry of the selection-screen snapshot.
type CharacterSlot struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
	HeldBy    string `json:"heldBy,omitempty"`
}

// CharacterArbiter hands out exclusive ownership of the fixed character
// set: a character belongs to at most one session, a session holds at most
// one character. It is owned by a Room and relies on the room lock for
// serialization, so it carries no locking of its own.
type CharacterArbiter struct {
	holders map[string]string // characterID -> sessionID
}

func NewCharacterArbiter() *CharacterArbiter {
	return &CharacterArbiter{holders: make(map[string]string, len(Characters))}
}

func validCharacter(characterID string) bool {
	for _, id := range Characters {
		if id == characterID {
			return true
		}
	}
	return false
}

// Select assigns characterID to sessionID. A session that already holds a
// different character gets it released first, so reassignment is atomic:
// no caller ever observes the session holding zero or two characters.
// Reselecting the held character is a no-op success.
func (a *CharacterArbiter) Select(sessionID, characterID string) error {
	if !validCharacter(characterID) {
		return ErrInvalidCharacter
	}
	if holder, ok := a.holders[characterID]; ok {
		if holder == sessionID {
			return nil
		}
		return ErrCharacterTaken
	}
	a.Release(sessionID)
	a.holders[characterID] = sessionID
	return nil
}

// Release frees whatever the session holds and returns the released
// character id, or "" when the session held nothing.
func (a *CharacterArbiter) Release(sessionID string) string {
	for characterID, holder := range a.holders {
		if holder == sessionID {
			delete(a.holders, characterID)
			return characterID
		}
	}
	return ""
}

// Held returns the character currently owned by the session, if any.
func (a *CharacterArbiter) Held(sessionID string) string {
	for characterID, holder := range a.holders {
		if holder == sessionID {
			return characterID
		}
	}
	return ""
}

// Snapshot returns the full slot view used to render the selection screen.
func (a *CharacterArbiter) Snapshot() []CharacterSlot {
	slots := make([]CharacterSlot, 0, len(Characters))
	for _, id := range Characters {
		holder, taken := a.holders[id]
		slots = append(slots, CharacterSlot{ID: id, Available: !taken, HeldBy: holder})
	}
	return slots
}
