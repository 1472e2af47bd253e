// Package chat keeps the signed-in user's conversations and messages in memory,
// in step with the remote data source and its realtime change channel.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/manyajain27/dating-app-sub000/internal/metrics"
	"github.com/manyajain27/dating-app-sub000/internal/models"
	"github.com/manyajain27/dating-app-sub000/internal/realtime"
)

var (
	ErrMatchNotFound        = errors.New("match not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("user is not part of this match")
	ErrEmptyMessage         = errors.New("message has no content")
	ErrInvalidMessageType   = errors.New("invalid message type")
	ErrSubscriptionClosed   = errors.New("realtime subscription closed")
)

// Remote is the part of the data source the synchronizer depends on.
type Remote interface {
	GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetConversationByMatch(ctx context.Context, matchID uuid.UUID) (*models.Conversation, error)
	CreateConversation(ctx context.Context, match models.Match) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	TouchConversation(ctx context.Context, id uuid.UUID, at time.Time) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg models.Message) (*models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) ([]models.Message, error)
}

// Synchronizer owns the conversation and message caches for one user.
// Commands go to the remote source; cache contents follow the realtime channel.
// Sends are not inserted locally: the sender sees a message once its echo arrives.
type Synchronizer struct {
	remote Remote
	feed   realtime.Subscriber
	userID uuid.UUID
	logger zerolog.Logger

	conversations *ConversationCache
	messages      *MessageCache
	changed       *notifier

	mu     sync.Mutex
	active uuid.UUID // open conversation, uuid.Nil when none
}

// New creates a synchronizer for userID.
func New(remote Remote, feed realtime.Subscriber, userID uuid.UUID, logger zerolog.Logger) *Synchronizer {
	n := newNotifier()
	return &Synchronizer{
		remote:        remote,
		feed:          feed,
		userID:        userID,
		logger:        logger.With().Str("component", "synchronizer").Str("user_id", userID.String()).Logger(),
		conversations: newConversationCache(n),
		messages:      newMessageCache(n),
		changed:       n,
	}
}

// UserID returns the user this synchronizer works for.
func (s *Synchronizer) UserID() uuid.UUID {
	return s.userID
}

// Run applies realtime events to the caches until ctx is done.
func (s *Synchronizer) Run(ctx context.Context) error {
	sub, err := s.feed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	s.logger.Info().Msg("listening for message changes")

	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSubscriptionClosed
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Synchronizer) handle(ctx context.Context, ev models.ChangeEvent) {
	if ev.Table != models.TableMessages {
		metrics.RealtimeEvents.WithLabelValues(string(ev.Type), "ignored").Inc()
		return
	}

	switch ev.Type {
	case models.EventInsert:
		if err := s.OnRemoteInsert(ctx, ev.Record); err != nil {
			s.logger.Warn().
				Err(err).
				Str("event_id", ev.ID).
				Str("conversation_id", ev.Record.ConversationID.String()).
				Msg("applying insert")
		}
	case models.EventUpdate:
		s.OnRemoteUpdate(ev.Record)
	default:
		metrics.RealtimeEvents.WithLabelValues(string(ev.Type), "ignored").Inc()
	}
}

// OnRemoteInsert applies a message inserted on the remote source.
// An unknown conversation triggers a full conversation refetch; if it is still
// unknown afterwards the message belongs to someone else and is ignored.
func (s *Synchronizer) OnRemoteInsert(ctx context.Context, msg models.Message) error {
	convID := msg.ConversationID
	if msg.ID == uuid.Nil || convID == uuid.Nil {
		metrics.RealtimeEvents.WithLabelValues(string(models.EventInsert), "ignored").Inc()
		return nil
	}

	if _, ok := s.conversations.Get(convID); !ok {
		metrics.ConversationRefetches.Inc()
		if err := s.FetchConversations(ctx); err != nil {
			return fmt.Errorf("refetch conversations: %w", err)
		}
		if _, ok := s.conversations.Get(convID); !ok {
			metrics.RealtimeEvents.WithLabelValues(string(models.EventInsert), "ignored").Inc()
			return nil
		}
		// The refetched row already counts this message.
		s.appendIfLoaded(msg)
		metrics.RealtimeEvents.WithLabelValues(string(models.EventInsert), "applied").Inc()
		if msg.SenderID != s.userID && s.isActive(convID) {
			if _, err := s.markReadRemote(ctx, convID); err != nil {
				return fmt.Errorf("mark arrival read: %w", err)
			}
			s.conversations.ResetUnread(convID)
		}
		return nil
	}

	s.appendIfLoaded(msg)
	s.conversations.SetLastMessage(convID, msg)
	metrics.RealtimeEvents.WithLabelValues(string(models.EventInsert), "applied").Inc()

	if msg.SenderID == s.userID {
		return nil
	}
	if s.isActive(convID) {
		// Open conversation: the arrival is read as it lands.
		if _, err := s.markReadRemote(ctx, convID); err != nil {
			return fmt.Errorf("mark arrival read: %w", err)
		}
		return nil
	}
	s.conversations.IncrementUnread(convID)
	return nil
}

// appendIfLoaded appends msg when the conversation's messages are cached.
// A message already present (fetched before its echo) is not appended twice.
// During a fetch the message is held until the snapshot lands.
func (s *Synchronizer) appendIfLoaded(msg models.Message) {
	if s.messages.Hold(msg.ConversationID, msg) {
		return
	}
	if !s.messages.Loaded(msg.ConversationID) {
		return
	}
	if s.messages.Contains(msg.ConversationID, msg.ID) {
		s.messages.UpdateMessage(msg.ConversationID, msg.ID, models.PatchFrom(msg))
		return
	}
	s.messages.Append(msg.ConversationID, msg)
}

// OnRemoteUpdate propagates read flag and content changes for a known message.
func (s *Synchronizer) OnRemoteUpdate(msg models.Message) {
	patch := models.PatchFrom(msg)
	inMessages := s.messages.UpdateMessage(msg.ConversationID, msg.ID, patch)
	inConversations := s.conversations.UpdateLastMessage(msg.ConversationID, msg.ID, patch)

	outcome := "ignored"
	if inMessages || inConversations {
		outcome = "applied"
	}
	metrics.RealtimeEvents.WithLabelValues(string(models.EventUpdate), outcome).Inc()
}

// Send writes a message to the remote source and bumps the conversation timestamp.
// The cache is not touched; the realtime echo populates it.
// If the timestamp bump fails the stored message is returned with the error.
func (s *Synchronizer) Send(ctx context.Context, conversationID uuid.UUID, draft models.Draft) (*models.Message, error) {
	content := strings.TrimSpace(draft.Content)
	if content == "" && draft.ImageURL == "" {
		return nil, ErrEmptyMessage
	}
	msgType := draft.Type
	if msgType == "" {
		msgType = models.MessageTypeText
		if draft.ImageURL != "" {
			msgType = models.MessageTypeImage
		}
	}
	if !msgType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMessageType, draft.Type)
	}
	if err := s.ensureConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	done := observe("insert_message")
	stored, err := s.remote.InsertMessage(ctx, models.Message{
		ConversationID: conversationID,
		SenderID:       s.userID,
		Content:        content,
		ImageURL:       draft.ImageURL,
		Type:           msgType,
		CreatedAt:      time.Now().UTC(),
	})
	done()
	if err != nil {
		metrics.MessagesSent.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("send message: %w", err)
	}
	metrics.MessagesSent.WithLabelValues("ok").Inc()

	done = observe("touch_conversation")
	err = s.remote.TouchConversation(ctx, conversationID, stored.CreatedAt)
	done()
	if err != nil {
		return stored, fmt.Errorf("update conversation timestamp: %w", err)
	}
	return stored, nil
}

// CreateConversation returns the conversation for a match, creating it if needed.
func (s *Synchronizer) CreateConversation(ctx context.Context, matchID uuid.UUID) (uuid.UUID, error) {
	done := observe("get_match")
	match, err := s.remote.GetMatch(ctx, matchID)
	done()
	if err != nil {
		metrics.ConversationsCreated.WithLabelValues("error").Inc()
		return uuid.Nil, fmt.Errorf("get match: %w", err)
	}
	if match == nil {
		return uuid.Nil, ErrMatchNotFound
	}
	if !match.Includes(s.userID) {
		return uuid.Nil, ErrNotParticipant
	}

	done = observe("get_conversation_by_match")
	existing, err := s.remote.GetConversationByMatch(ctx, matchID)
	done()
	if err != nil {
		metrics.ConversationsCreated.WithLabelValues("error").Inc()
		return uuid.Nil, fmt.Errorf("find conversation: %w", err)
	}
	if existing != nil {
		s.cacheIfAbsent(*existing)
		metrics.ConversationsCreated.WithLabelValues("existing").Inc()
		return existing.ID, nil
	}

	done = observe("create_conversation")
	conv, err := s.remote.CreateConversation(ctx, *match)
	done()
	if err != nil {
		metrics.ConversationsCreated.WithLabelValues("error").Inc()
		return uuid.Nil, fmt.Errorf("create conversation: %w", err)
	}
	if conv == nil {
		metrics.ConversationsCreated.WithLabelValues("error").Inc()
		return uuid.Nil, errors.New("create conversation: no row returned")
	}

	s.cacheIfAbsent(*conv)
	metrics.ConversationsCreated.WithLabelValues("created").Inc()
	return conv.ID, nil
}

// cacheIfAbsent adds conv without overwriting a cached entry's unread count.
func (s *Synchronizer) cacheIfAbsent(conv models.Conversation) {
	if _, ok := s.conversations.Get(conv.ID); ok {
		return
	}
	s.conversations.Upsert(conv)
}

// ensureConversation checks that the user takes part in conversationID and
// caches it when it is not cached yet.
func (s *Synchronizer) ensureConversation(ctx context.Context, conversationID uuid.UUID) error {
	if _, ok := s.conversations.Get(conversationID); ok {
		return nil
	}

	done := observe("get_conversation")
	conv, err := s.remote.GetConversation(ctx, conversationID)
	done()
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return ErrConversationNotFound
	}
	if !conv.Includes(s.userID) {
		return ErrNotParticipant
	}

	// The list query carries the last message and unread count.
	if err := s.FetchConversations(ctx); err != nil {
		return err
	}
	s.cacheIfAbsent(*conv)
	return nil
}

// MarkRead marks the other user's messages read remotely, then resets the local unread count.
func (s *Synchronizer) MarkRead(ctx context.Context, conversationID uuid.UUID) error {
	if _, err := s.markReadRemote(ctx, conversationID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	s.conversations.ResetUnread(conversationID)
	metrics.MarkReads.Inc()
	return nil
}

func (s *Synchronizer) markReadRemote(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	defer observe("mark_conversation_read")()
	return s.remote.MarkConversationRead(ctx, conversationID, s.userID)
}

// FetchConversations reloads the conversation list from the remote source.
func (s *Synchronizer) FetchConversations(ctx context.Context) error {
	done := observe("list_conversations")
	convs, err := s.remote.ListConversations(ctx, s.userID)
	done()
	if err != nil {
		return fmt.Errorf("fetch conversations: %w", err)
	}
	s.conversations.ReplaceAll(convs)
	return nil
}

// FetchMessages reloads one conversation's messages from the remote source.
// Messages that arrive while the fetch is in flight survive the older snapshot.
func (s *Synchronizer) FetchMessages(ctx context.Context, conversationID uuid.UUID) error {
	s.messages.BeginLoad(conversationID)

	done := observe("list_messages")
	msgs, err := s.remote.ListMessages(ctx, conversationID)
	done()
	if err != nil {
		s.messages.AbortLoad(conversationID)
		return fmt.Errorf("fetch messages: %w", err)
	}
	s.messages.CompleteLoad(conversationID, msgs)
	return nil
}

// Open marks conversationID as the one on screen, loads its messages and marks them read.
// While open, arrivals from the other user do not count as unread.
func (s *Synchronizer) Open(ctx context.Context, conversationID uuid.UUID) error {
	if err := s.ensureConversation(ctx, conversationID); err != nil {
		return err
	}

	s.mu.Lock()
	s.active = conversationID
	s.mu.Unlock()

	if err := s.FetchMessages(ctx, conversationID); err != nil {
		return err
	}
	return s.MarkRead(ctx, conversationID)
}

// Close leaves conversationID. It does not cancel fetches already in flight.
func (s *Synchronizer) Close(conversationID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == conversationID {
		s.active = uuid.Nil
	}
}

// Active returns the open conversation, uuid.Nil when none.
func (s *Synchronizer) Active() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Synchronizer) isActive(conversationID uuid.UUID) bool {
	return s.Active() == conversationID
}

// Conversations returns the cached conversations, newest first.
func (s *Synchronizer) Conversations() []models.Conversation {
	return s.conversations.Snapshot()
}

// Conversation returns one cached conversation.
func (s *Synchronizer) Conversation(id uuid.UUID) (models.Conversation, bool) {
	return s.conversations.Get(id)
}

// Messages returns the cached messages of one conversation.
func (s *Synchronizer) Messages(conversationID uuid.UUID) []models.Message {
	return s.messages.Messages(conversationID)
}

// MessagesLoaded reports whether a conversation's messages are cached.
func (s *Synchronizer) MessagesLoaded(conversationID uuid.UUID) bool {
	return s.messages.Loaded(conversationID)
}

// UnreadCount returns the cached unread count for a conversation.
func (s *Synchronizer) UnreadCount(conversationID uuid.UUID) int {
	return s.conversations.UnreadCount(conversationID)
}

// Watch returns a channel that receives a signal after cache mutations.
// Signals coalesce; the channel is closed when ctx is done.
func (s *Synchronizer) Watch(ctx context.Context) <-chan struct{} {
	return s.changed.watch(ctx)
}

func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
