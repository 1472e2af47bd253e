package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/manyajain27/dating-app-sub000/internal/models"
)

// DataStore defines the remote data source for matches, conversations and messages.
// Both PostgresStore and SQLiteStore implement this interface.
// Lookups that find nothing return (nil, nil).
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Match operations
	CreateMatch(ctx context.Context, user1ID, user2ID uuid.UUID) (*models.Match, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error)
	ListMatches(ctx context.Context, userID uuid.UUID) ([]models.Match, error)

	// Conversation operations
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetConversationByMatch(ctx context.Context, matchID uuid.UUID) (*models.Conversation, error)
	CreateConversation(ctx context.Context, match models.Match) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	TouchConversation(ctx context.Context, id uuid.UUID, at time.Time) error

	// Message operations
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg models.Message) (*models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) ([]models.Message, error)
}

// normalizeMessage fills the defaults every stored message must carry.
func normalizeMessage(msg *models.Message, newID func() uuid.UUID) {
	if msg.ID == uuid.Nil {
		msg.ID = newID()
	}
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
}

// orderedPair returns the two user ids in a stable order so a pair is stored once.
func orderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
