package models

import (
	"time"

	"github.com/google/uuid"
)

// LastMessage is the denormalized snapshot of a conversation's newest message.
type LastMessage struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	SenderID  uuid.UUID `json:"sender_id"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotOf returns the last-message snapshot for msg.
func SnapshotOf(msg Message) *LastMessage {
	return &LastMessage{
		ID:        msg.ID,
		Content:   msg.Content,
		SenderID:  msg.SenderID,
		IsRead:    msg.IsRead,
		CreatedAt: msg.CreatedAt,
	}
}

// Conversation is a message thread between the two users of a match.
type Conversation struct {
	ID            uuid.UUID    `json:"id"`
	MatchID       uuid.UUID    `json:"match_id"`
	User1ID       uuid.UUID    `json:"user1_id"`
	User2ID       uuid.UUID    `json:"user2_id"`
	LastMessageAt time.Time    `json:"last_message_at"`
	LastMessage   *LastMessage `json:"last_message,omitempty"`
	UnreadCount   int          `json:"unread_count"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Clone returns a copy that shares no pointers with c.
func (c Conversation) Clone() Conversation {
	if c.LastMessage != nil {
		lm := *c.LastMessage
		c.LastMessage = &lm
	}
	return c
}

// Includes reports whether userID is one of the conversation's two users.
func (c Conversation) Includes(userID uuid.UUID) bool {
	return c.User1ID == userID || c.User2ID == userID
}
