package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageType tags the kind of content a message carries.
type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeImage       MessageType = "image"
	MessageTypeVideo       MessageType = "video"
	MessageTypeAudio       MessageType = "audio"
	MessageTypePromptReply MessageType = "prompt_reply" // reply to a profile prompt
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio, MessageTypePromptReply:
		return true
	}
	return false
}

// Message represents a single chat message inside a conversation.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	Content        string      `json:"content"`
	ImageURL       string      `json:"image_url,omitempty"`
	Type           MessageType `json:"message_type"`
	IsRead         bool        `json:"is_read"`
	CreatedAt      time.Time   `json:"created_at"`
}

// MessagePatch is a partial update applied to a cached message.
// Nil fields are left untouched.
type MessagePatch struct {
	IsRead  *bool   `json:"is_read,omitempty"`
	Content *string `json:"content,omitempty"`
}

// PatchFrom builds the patch that carries msg's mutable fields.
func PatchFrom(msg Message) MessagePatch {
	read := msg.IsRead
	content := msg.Content
	return MessagePatch{IsRead: &read, Content: &content}
}

// Apply writes the non-nil fields of p onto msg.
func (p MessagePatch) Apply(msg *Message) {
	if p.IsRead != nil {
		msg.IsRead = *p.IsRead
	}
	if p.Content != nil {
		msg.Content = *p.Content
	}
}

// Draft is the user-supplied part of a message about to be sent.
type Draft struct {
	Content  string      `json:"content"`
	ImageURL string      `json:"image_url,omitempty"`
	Type     MessageType `json:"message_type,omitempty"`
}
