package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manyajain27/dating-app-sub000/internal/ids"
	"github.com/manyajain27/dating-app-sub000/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateMatch creates a match between two users, or returns the existing one.
func (s *PostgresStore) CreateMatch(ctx context.Context, user1ID, user2ID uuid.UUID) (*models.Match, error) {
	a, b := orderedPair(user1ID, user2ID)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO matches (id, user1_id, user2_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user1_id, user2_id) DO NOTHING
	`, ids.NewUUIDv7(), a, b)
	if err != nil {
		return nil, err
	}

	match := &models.Match{}
	err = s.pool.QueryRow(ctx, `
		SELECT id, user1_id, user2_id, created_at
		FROM matches WHERE user1_id = $1 AND user2_id = $2
	`, a, b).Scan(&match.ID, &match.User1ID, &match.User2ID, &match.CreatedAt)
	if err != nil {
		return nil, err
	}
	return match, nil
}

// GetMatch retrieves a match by ID.
func (s *PostgresStore) GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	match := &models.Match{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user1_id, user2_id, created_at
		FROM matches WHERE id = $1
	`, id).Scan(&match.ID, &match.User1ID, &match.User2ID, &match.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return match, nil
}

// ListMatches retrieves every match the user is part of, newest first.
func (s *PostgresStore) ListMatches(ctx context.Context, userID uuid.UUID) ([]models.Match, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user1_id, user2_id, created_at
		FROM matches
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.User1ID, &m.User2ID, &m.CreatedAt); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// conversationSelect joins the newest message and the unread count for reader $1.
const conversationSelect = `
	SELECT c.id, c.match_id, c.user1_id, c.user2_id, c.last_message_at, c.created_at,
		lm.id, lm.content, lm.sender_id, lm.is_read, lm.created_at,
		(SELECT COUNT(*) FROM messages u
			WHERE u.conversation_id = c.id AND u.sender_id <> $1 AND NOT u.is_read)
	FROM conversations c
	LEFT JOIN LATERAL (
		SELECT m.id, m.content, m.sender_id, m.is_read, m.created_at
		FROM messages m
		WHERE m.conversation_id = c.id
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT 1
	) lm ON TRUE`

func scanPostgresConversation(row pgx.Row) (*models.Conversation, error) {
	var (
		conv      models.Conversation
		lmID      *uuid.UUID
		lmContent *string
		lmFrom    *uuid.UUID
		lmRead    *bool
		lmCreated *time.Time
		unread    int64
	)
	err := row.Scan(
		&conv.ID, &conv.MatchID, &conv.User1ID, &conv.User2ID, &conv.LastMessageAt, &conv.CreatedAt,
		&lmID, &lmContent, &lmFrom, &lmRead, &lmCreated,
		&unread,
	)
	if err != nil {
		return nil, err
	}
	conv.UnreadCount = int(unread)
	if lmID != nil {
		conv.LastMessage = &models.LastMessage{
			ID:        *lmID,
			Content:   *lmContent,
			SenderID:  *lmFrom,
			IsRead:    *lmRead,
			CreatedAt: *lmCreated,
		}
	}
	return &conv, nil
}

// GetConversation retrieves a conversation by ID. Unread count is left at zero.
func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	conv, err := scanPostgresConversation(s.pool.QueryRow(ctx,
		conversationSelect+` WHERE c.id = $2`, uuid.Nil, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	conv.UnreadCount = 0
	return conv, nil
}

// GetConversationByMatch retrieves the conversation bound to a match.
func (s *PostgresStore) GetConversationByMatch(ctx context.Context, matchID uuid.UUID) (*models.Conversation, error) {
	conv, err := scanPostgresConversation(s.pool.QueryRow(ctx,
		conversationSelect+` WHERE c.match_id = $2`, uuid.Nil, matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	conv.UnreadCount = 0
	return conv, nil
}

// CreateConversation creates the conversation for a match.
// The unique match_id constraint makes concurrent creations converge on one row.
func (s *PostgresStore) CreateConversation(ctx context.Context, match models.Match) (*models.Conversation, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, match_id, user1_id, user2_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (match_id) DO NOTHING
	`, ids.NewUUIDv7(), match.ID, match.User1ID, match.User2ID)
	if err != nil {
		return nil, err
	}
	return s.GetConversationByMatch(ctx, match.ID)
}

// ListConversations retrieves the user's conversations with last message and unread count joined.
func (s *PostgresStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx, conversationSelect+`
		WHERE c.user1_id = $1 OR c.user2_id = $1
		ORDER BY c.last_message_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		conv, err := scanPostgresConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

// TouchConversation sets last_message_at.
func (s *PostgresStore) TouchConversation(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations SET last_message_at = $2 WHERE id = $1
	`, id, at)
	return err
}

const messageColumns = `id, conversation_id, sender_id, content, image_url, message_type, is_read, created_at`

func scanPostgresMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	var msgType string
	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Content,
		&msg.ImageURL,
		&msgType,
		&msg.IsRead,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.Type = models.MessageType(msgType)
	return &msg, nil
}

// ListMessages retrieves a conversation's messages in ascending time order.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanPostgresMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// InsertMessage stores a new message and returns the stored row.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	normalizeMessage(&msg, ids.NewUUIDv7)

	return scanPostgresMessage(s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, image_url, message_type, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+messageColumns,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.Content,
		msg.ImageURL,
		string(msg.Type),
		msg.IsRead,
		msg.CreatedAt,
	))
}

// MarkConversationRead marks every unread message not sent by readerID as read.
// It returns the rows that changed.
func (s *PostgresStore) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND NOT is_read
		RETURNING `+messageColumns,
		conversationID, readerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updated []models.Message
	for rows.Next() {
		msg, err := scanPostgresMessage(rows)
		if err != nil {
			return nil, err
		}
		updated = append(updated, *msg)
	}
	return updated, rows.Err()
}
