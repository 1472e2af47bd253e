package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/manyajain27/dating-app-sub000/internal/ids"
	"github.com/manyajain27/dating-app-sub000/internal/models"
)

// SQLiteStore handles SQLite database operations.
// Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		user1_id TEXT NOT NULL,
		user2_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (user1_id, user2_id)
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		match_id TEXT NOT NULL UNIQUE REFERENCES matches(id) ON DELETE CASCADE,
		user1_id TEXT NOT NULL,
		user2_id TEXT NOT NULL,
		last_message_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		message_type TEXT NOT NULL DEFAULT 'text',
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_matches_user1 ON matches(user1_id);
	CREATE INDEX IF NOT EXISTS idx_matches_user2 ON matches(user2_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_user1 ON conversations(user1_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_user2 ON conversations(user2_id);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// CreateMatch creates a match between two users, or returns the existing one.
func (s *SQLiteStore) CreateMatch(ctx context.Context, user1ID, user2ID uuid.UUID) (*models.Match, error) {
	a, b := orderedPair(user1ID, user2ID)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (id, user1_id, user2_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user1_id, user2_id) DO NOTHING
	`, ids.NewUUIDv7().String(), a.String(), b.String(), toMillis(time.Now()))
	if err != nil {
		return nil, err
	}

	return s.scanMatch(s.db.QueryRowContext(ctx, `
		SELECT id, user1_id, user2_id, created_at
		FROM matches WHERE user1_id = ? AND user2_id = ?
	`, a.String(), b.String()))
}

// GetMatch retrieves a match by ID.
func (s *SQLiteStore) GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	return s.scanMatch(s.db.QueryRowContext(ctx, `
		SELECT id, user1_id, user2_id, created_at
		FROM matches WHERE id = ?
	`, id.String()))
}

func (s *SQLiteStore) scanMatch(row *sql.Row) (*models.Match, error) {
	var idStr, u1, u2 string
	var createdAt int64
	if err := row.Scan(&idStr, &u1, &u2, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &models.Match{
		ID:        uuid.MustParse(idStr),
		User1ID:   uuid.MustParse(u1),
		User2ID:   uuid.MustParse(u2),
		CreatedAt: fromMillis(createdAt),
	}, nil
}

// ListMatches retrieves every match the user is part of, newest first.
func (s *SQLiteStore) ListMatches(ctx context.Context, userID uuid.UUID) ([]models.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user1_id, user2_id, created_at
		FROM matches
		WHERE user1_id = ? OR user2_id = ?
		ORDER BY created_at DESC
	`, userID.String(), userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		var idStr, u1, u2 string
		var createdAt int64
		if err := rows.Scan(&idStr, &u1, &u2, &createdAt); err != nil {
			return nil, err
		}
		matches = append(matches, models.Match{
			ID:        uuid.MustParse(idStr),
			User1ID:   uuid.MustParse(u1),
			User2ID:   uuid.MustParse(u2),
			CreatedAt: fromMillis(createdAt),
		})
	}
	return matches, rows.Err()
}

const sqliteConversationColumns = `
	c.id, c.match_id, c.user1_id, c.user2_id, c.last_message_at, c.created_at,
	lm.id, lm.content, lm.sender_id, lm.is_read, lm.created_at,
	(SELECT COUNT(*) FROM messages u
		WHERE u.conversation_id = c.id AND u.sender_id <> ? AND u.is_read = 0)
	FROM conversations c
	LEFT JOIN messages lm ON lm.id = (
		SELECT m.id FROM messages m
		WHERE m.conversation_id = c.id
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT 1
	)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteConversation(row rowScanner) (*models.Conversation, error) {
	var (
		idStr, matchStr, u1, u2 string
		lastAt, createdAt       int64
		lmID, lmContent, lmFrom sql.NullString
		lmRead                  sql.NullBool
		lmCreated               sql.NullInt64
		unread                  int
	)
	err := row.Scan(
		&idStr, &matchStr, &u1, &u2, &lastAt, &createdAt,
		&lmID, &lmContent, &lmFrom, &lmRead, &lmCreated,
		&unread,
	)
	if err != nil {
		return nil, err
	}

	conv := &models.Conversation{
		ID:            uuid.MustParse(idStr),
		MatchID:       uuid.MustParse(matchStr),
		User1ID:       uuid.MustParse(u1),
		User2ID:       uuid.MustParse(u2),
		LastMessageAt: fromMillis(lastAt),
		UnreadCount:   unread,
		CreatedAt:     fromMillis(createdAt),
	}
	if lmID.Valid {
		conv.LastMessage = &models.LastMessage{
			ID:        uuid.MustParse(lmID.String),
			Content:   lmContent.String,
			SenderID:  uuid.MustParse(lmFrom.String),
			IsRead:    lmRead.Bool,
			CreatedAt: fromMillis(lmCreated.Int64),
		}
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID. Unread count is left at zero.
func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	conv, err := scanSQLiteConversation(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteConversationColumns+` WHERE c.id = ?`,
		uuid.Nil.String(), id.String(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	conv.UnreadCount = 0
	return conv, nil
}

// GetConversationByMatch retrieves the conversation bound to a match.
func (s *SQLiteStore) GetConversationByMatch(ctx context.Context, matchID uuid.UUID) (*models.Conversation, error) {
	conv, err := scanSQLiteConversation(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteConversationColumns+` WHERE c.match_id = ?`,
		uuid.Nil.String(), matchID.String(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	conv.UnreadCount = 0
	return conv, nil
}

// CreateConversation creates the conversation for a match.
// A concurrent creation for the same match converges on a single row.
func (s *SQLiteStore) CreateConversation(ctx context.Context, match models.Match) (*models.Conversation, error) {
	now := toMillis(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, match_id, user1_id, user2_id, last_message_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id) DO NOTHING
	`, ids.NewUUIDv7().String(), match.ID.String(), match.User1ID.String(), match.User2ID.String(), now, now)
	if err != nil {
		return nil, err
	}
	return s.GetConversationByMatch(ctx, match.ID)
}

// ListConversations retrieves the user's conversations with last message and unread count joined.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	uid := userID.String()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteConversationColumns+`
		WHERE c.user1_id = ? OR c.user2_id = ?
		ORDER BY c.last_message_at DESC`,
		uid, uid, uid,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := make([]models.Conversation, 0)
	for rows.Next() {
		conv, err := scanSQLiteConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

// TouchConversation sets last_message_at.
func (s *SQLiteStore) TouchConversation(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET last_message_at = ? WHERE id = ?
	`, toMillis(at), id.String())
	return err
}

const sqliteMessageColumns = `id, conversation_id, sender_id, content, image_url, message_type, is_read, created_at`

func scanSQLiteMessage(row rowScanner) (*models.Message, error) {
	var (
		idStr, convStr, senderStr string
		msg                       models.Message
		msgType                   string
		createdAt                 int64
	)
	err := row.Scan(&idStr, &convStr, &senderStr, &msg.Content, &msg.ImageURL, &msgType, &msg.IsRead, &createdAt)
	if err != nil {
		return nil, err
	}
	msg.ID = uuid.MustParse(idStr)
	msg.ConversationID = uuid.MustParse(convStr)
	msg.SenderID = uuid.MustParse(senderStr)
	msg.Type = models.MessageType(msgType)
	msg.CreatedAt = fromMillis(createdAt)
	return &msg, nil
}

// ListMessages retrieves a conversation's messages in ascending time order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteMessageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// InsertMessage stores a new message and returns the stored row.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	normalizeMessage(&msg, ids.NewUUIDv7)

	return scanSQLiteMessage(s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, image_url, message_type, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+sqliteMessageColumns,
		msg.ID.String(),
		msg.ConversationID.String(),
		msg.SenderID.String(),
		msg.Content,
		msg.ImageURL,
		string(msg.Type),
		msg.IsRead,
		toMillis(msg.CreatedAt),
	))
}

// MarkConversationRead marks every unread message not sent by readerID as read.
// It returns the rows that changed.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE messages SET is_read = 1
		WHERE conversation_id = ? AND sender_id <> ? AND is_read = 0
		RETURNING `+sqliteMessageColumns,
		conversationID.String(), readerID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updated := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		updated = append(updated, *msg)
	}
	return updated, rows.Err()
}
