package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/manyajain27/dating-app-sub000/internal/models"
)

// ErrMalformedEvent is returned by Decode for payloads that fail validation.
var ErrMalformedEvent = errors.New("malformed change event")

// wireEvent is the JSON envelope sent over the channel.
type wireEvent struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Table           string          `json:"table"`
	CommitTimestamp int64           `json:"commit_timestamp"` // unix ms
	Record          json.RawMessage `json:"record"`
}

// messageRecord is a messages row as it appears on the wire.
// Fields are loosely typed and coerced in toMessage.
type messageRecord struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id"`
	Content        string          `json:"content"`
	ImageURL       string          `json:"image_url"`
	MessageType    string          `json:"message_type"`
	IsRead         json.RawMessage `json:"is_read"`
	CreatedAt      string          `json:"created_at"`
}

// Encode serializes a change event for the wire.
func Encode(ev models.ChangeEvent) ([]byte, error) {
	rec := messageRecord{
		ID:             ev.Record.ID.String(),
		ConversationID: ev.Record.ConversationID.String(),
		SenderID:       ev.Record.SenderID.String(),
		Content:        ev.Record.Content,
		ImageURL:       ev.Record.ImageURL,
		MessageType:    string(ev.Record.Type),
		IsRead:         json.RawMessage(strconv.FormatBool(ev.Record.IsRead)),
		CreatedAt:      ev.Record.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	var commit int64
	if !ev.CommitTime.IsZero() {
		commit = ev.CommitTime.UnixMilli()
	}

	return json.Marshal(wireEvent{
		ID:              ev.ID,
		Type:            string(ev.Type),
		Table:           ev.Table,
		CommitTimestamp: commit,
		Record:          recJSON,
	})
}

// Decode parses and validates a change event received from the wire.
func Decode(data []byte) (models.ChangeEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	evType := models.EventType(w.Type)
	if evType != models.EventInsert && evType != models.EventUpdate {
		return models.ChangeEvent{}, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, w.Type)
	}
	if w.Table != models.TableMessages {
		return models.ChangeEvent{}, fmt.Errorf("%w: unexpected table %q", ErrMalformedEvent, w.Table)
	}
	if len(w.Record) == 0 {
		return models.ChangeEvent{}, fmt.Errorf("%w: missing record", ErrMalformedEvent)
	}

	var rec messageRecord
	if err := json.Unmarshal(w.Record, &rec); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("%w: record: %v", ErrMalformedEvent, err)
	}
	msg, err := rec.toMessage()
	if err != nil {
		return models.ChangeEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	ev := models.ChangeEvent{
		ID:     w.ID,
		Type:   evType,
		Table:  w.Table,
		Record: msg,
	}
	if w.CommitTimestamp > 0 {
		ev.CommitTime = time.UnixMilli(w.CommitTimestamp).UTC()
	}
	return ev, nil
}

func (r messageRecord) toMessage() (models.Message, error) {
	var msg models.Message
	var err error

	if msg.ID, err = uuid.Parse(r.ID); err != nil {
		return msg, fmt.Errorf("id: %w", err)
	}
	if msg.ConversationID, err = uuid.Parse(r.ConversationID); err != nil {
		return msg, fmt.Errorf("conversation_id: %w", err)
	}
	if msg.SenderID, err = uuid.Parse(r.SenderID); err != nil {
		return msg, fmt.Errorf("sender_id: %w", err)
	}

	msg.Content = r.Content
	msg.ImageURL = r.ImageURL

	msg.Type = models.MessageType(r.MessageType)
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}
	if !msg.Type.Valid() {
		return msg, fmt.Errorf("message_type %q", r.MessageType)
	}

	if msg.IsRead, err = coerceBool(r.IsRead); err != nil {
		return msg, fmt.Errorf("is_read: %w", err)
	}

	if r.CreatedAt != "" {
		if msg.CreatedAt, err = time.Parse(time.RFC3339Nano, r.CreatedAt); err != nil {
			return msg, fmt.Errorf("created_at: %w", err)
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
	}

	return msg, nil
}

// coerceBool accepts JSON booleans, 0/1 and their string forms. Absent means false.
func coerceBool(raw json.RawMessage) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	s := string(raw)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	return strconv.ParseBool(s)
}
