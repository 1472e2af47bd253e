package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/manyajain27/dating-app-sub000/internal/ids"
	"github.com/manyajain27/dating-app-sub000/internal/models"
	"github.com/manyajain27/dating-app-sub000/internal/store"
)

// EmittingStore wraps a DataStore and publishes a change event for every
// messages row it writes, the way the hosted database streams row changes.
// Publish failures are logged; the write itself has already committed.
type EmittingStore struct {
	store.DataStore
	pub    Publisher
	logger zerolog.Logger
}

// NewEmittingStore wraps ds so that message writes are published on pub.
func NewEmittingStore(ds store.DataStore, pub Publisher, logger zerolog.Logger) *EmittingStore {
	return &EmittingStore{DataStore: ds, pub: pub, logger: logger}
}

// InsertMessage stores msg and publishes an INSERT event.
func (s *EmittingStore) InsertMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	stored, err := s.DataStore.InsertMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, models.EventInsert, *stored)
	return stored, nil
}

// MarkConversationRead marks messages read and publishes an UPDATE per changed row.
func (s *EmittingStore) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) ([]models.Message, error) {
	updated, err := s.DataStore.MarkConversationRead(ctx, conversationID, readerID)
	if err != nil {
		return nil, err
	}
	for _, msg := range updated {
		s.emit(ctx, models.EventUpdate, msg)
	}
	return updated, nil
}

func (s *EmittingStore) emit(ctx context.Context, evType models.EventType, msg models.Message) {
	ev := models.ChangeEvent{
		ID:         ids.NewEventID(),
		Type:       evType,
		Table:      models.TableMessages,
		Record:     msg,
		CommitTime: time.Now().UTC(),
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.logger.Warn().
			Err(err).
			Str("event_id", ev.ID).
			Str("type", string(evType)).
			Str("message_id", msg.ID.String()).
			Msg("change event publish failed")
	}
}
