package chat

import (
	"bytes"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manyajain27/dating-app-sub000/internal/models"
)

// ConversationCache holds the current user's conversations ordered by recency.
type ConversationCache struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.Conversation
	order   []uuid.UUID
	changed *notifier
}

// NewConversationCache creates an empty cache.
func NewConversationCache() *ConversationCache {
	return newConversationCache(nil)
}

func newConversationCache(n *notifier) *ConversationCache {
	return &ConversationCache{
		byID:    make(map[uuid.UUID]*models.Conversation),
		changed: n,
	}
}

// Upsert inserts or replaces conv by id and re-sorts. A conversation without an id is ignored.
func (c *ConversationCache) Upsert(conv models.Conversation) {
	if conv.ID == uuid.Nil {
		return
	}

	c.mu.Lock()
	c.put(conv)
	c.sortLocked()
	c.mu.Unlock()

	c.changed.notify()
}

// ReplaceAll discards the cached conversations and loads convs.
func (c *ConversationCache) ReplaceAll(convs []models.Conversation) {
	c.mu.Lock()
	c.byID = make(map[uuid.UUID]*models.Conversation, len(convs))
	c.order = c.order[:0]
	for _, conv := range convs {
		if conv.ID == uuid.Nil {
			continue
		}
		c.put(conv)
	}
	c.sortLocked()
	c.mu.Unlock()

	c.changed.notify()
}

// IncrementUnread adds one to the unread count. No-op if absent.
func (c *ConversationCache) IncrementUnread(id uuid.UUID) {
	c.mu.Lock()
	conv, ok := c.byID[id]
	if ok {
		conv.UnreadCount++
	}
	c.mu.Unlock()

	if ok {
		c.changed.notify()
	}
}

// ResetUnread sets the unread count to zero. No-op if absent.
func (c *ConversationCache) ResetUnread(id uuid.UUID) {
	c.mu.Lock()
	conv, ok := c.byID[id]
	if ok {
		conv.UnreadCount = 0
	}
	c.mu.Unlock()

	if ok {
		c.changed.notify()
	}
}

// SetLastMessage records msg as the conversation's newest message and re-sorts.
// Returns false if the conversation is not cached.
func (c *ConversationCache) SetLastMessage(id uuid.UUID, msg models.Message) bool {
	c.mu.Lock()
	conv, ok := c.byID[id]
	if ok {
		conv.LastMessage = models.SnapshotOf(msg)
		conv.LastMessageAt = msg.CreatedAt
		if conv.LastMessageAt.IsZero() {
			conv.LastMessageAt = time.Now().UTC()
		}
		c.sortLocked()
	}
	c.mu.Unlock()

	if ok {
		c.changed.notify()
	}
	return ok
}

// UpdateLastMessage applies patch to the last-message snapshot if it is msgID.
func (c *ConversationCache) UpdateLastMessage(id, msgID uuid.UUID, patch models.MessagePatch) bool {
	c.mu.Lock()
	conv, ok := c.byID[id]
	ok = ok && conv.LastMessage != nil && conv.LastMessage.ID == msgID
	if ok {
		if patch.IsRead != nil {
			conv.LastMessage.IsRead = *patch.IsRead
		}
		if patch.Content != nil {
			conv.LastMessage.Content = *patch.Content
		}
	}
	c.mu.Unlock()

	if ok {
		c.changed.notify()
	}
	return ok
}

// Get returns a copy of one conversation.
func (c *ConversationCache) Get(id uuid.UUID) (models.Conversation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conv, ok := c.byID[id]
	if !ok {
		return models.Conversation{}, false
	}
	return conv.Clone(), true
}

// UnreadCount returns the unread count, zero if absent.
func (c *ConversationCache) UnreadCount(id uuid.UUID) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if conv, ok := c.byID[id]; ok {
		return conv.UnreadCount
	}
	return 0
}

// Snapshot returns the conversations newest first.
func (c *ConversationCache) Snapshot() []models.Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Conversation, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].Clone())
	}
	return out
}

// Len returns the number of cached conversations.
func (c *ConversationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// put stores a private copy of conv. Caller holds mu.
func (c *ConversationCache) put(conv models.Conversation) {
	conv = conv.Clone()
	if conv.UnreadCount < 0 {
		conv.UnreadCount = 0
	}
	if _, exists := c.byID[conv.ID]; !exists {
		c.order = append(c.order, conv.ID)
	}
	c.byID[conv.ID] = &conv
}

// sortLocked orders by last message time, newest first; ties by id. Caller holds mu.
func (c *ConversationCache) sortLocked() {
	slices.SortFunc(c.order, func(a, b uuid.UUID) int {
		ta, tb := c.byID[a].LastMessageAt, c.byID[b].LastMessageAt
		if cmp := tb.Compare(ta); cmp != 0 {
			return cmp
		}
		return bytes.Compare(a[:], b[:])
	})
}
