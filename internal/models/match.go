package models

import (
	"time"

	"github.com/google/uuid"
)

// Match is a mutual like between two users. A conversation can only exist for a match.
type Match struct {
	ID        uuid.UUID `json:"id"`
	User1ID   uuid.UUID `json:"user1_id"`
	User2ID   uuid.UUID `json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Includes reports whether userID is one of the two matched users.
func (m Match) Includes(userID uuid.UUID) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// Other returns the matched user that is not userID.
func (m Match) Other(userID uuid.UUID) uuid.UUID {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}
