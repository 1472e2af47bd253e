package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/manyajain27/dating-app-sub000/internal/models"
)

// MessageCache holds, per conversation, messages in the order they arrived.
// There is no lookup across conversations.
type MessageCache struct {
	mu      sync.RWMutex
	byConv  map[uuid.UUID][]models.Message
	loads   map[uuid.UUID]int              // snapshot fetches in flight
	held    map[uuid.UUID][]models.Message // arrivals during those fetches
	changed *notifier
}

// NewMessageCache creates an empty cache.
func NewMessageCache() *MessageCache {
	return newMessageCache(nil)
}

func newMessageCache(n *notifier) *MessageCache {
	return &MessageCache{
		byConv:  make(map[uuid.UUID][]models.Message),
		loads:   make(map[uuid.UUID]int),
		held:    make(map[uuid.UUID][]models.Message),
		changed: n,
	}
}

// Append adds msg to the end of the conversation's sequence, creating it if absent.
func (c *MessageCache) Append(conversationID uuid.UUID, msg models.Message) {
	c.mu.Lock()
	c.byConv[conversationID] = append(c.byConv[conversationID], msg)
	c.mu.Unlock()

	c.changed.notify()
}

// ReplaceConversation replaces the conversation's sequence with msgs.
func (c *MessageCache) ReplaceConversation(conversationID uuid.UUID, msgs []models.Message) {
	seq := make([]models.Message, len(msgs))
	copy(seq, msgs)

	c.mu.Lock()
	c.byConv[conversationID] = seq
	c.mu.Unlock()

	c.changed.notify()
}

// BeginLoad marks a snapshot fetch for the conversation as in flight.
// Until CompleteLoad or AbortLoad, Hold buffers arrivals for it.
func (c *MessageCache) BeginLoad(conversationID uuid.UUID) {
	c.mu.Lock()
	c.loads[conversationID]++
	c.mu.Unlock()
}

// Hold buffers msg while a fetch for its conversation is in flight.
// It reports false, holding nothing, when no fetch is.
func (c *MessageCache) Hold(conversationID uuid.UUID, msg models.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loads[conversationID] == 0 {
		return false
	}
	c.held[conversationID] = append(c.held[conversationID], msg)
	return true
}

// CompleteLoad installs snapshot as the conversation's sequence. Messages cached
// before, or held during the fetch, that the snapshot lacks are appended after it.
func (c *MessageCache) CompleteLoad(conversationID uuid.UUID, snapshot []models.Message) {
	seq := make([]models.Message, len(snapshot))
	copy(seq, snapshot)

	c.mu.Lock()
	held := c.endLoadLocked(conversationID)
	for _, msg := range c.byConv[conversationID] {
		if indexOf(seq, msg.ID) < 0 {
			seq = append(seq, msg)
		}
	}
	c.byConv[conversationID] = applyArrivals(seq, held)
	c.mu.Unlock()

	c.changed.notify()
}

// AbortLoad ends a failed fetch. Held messages go into an already cached
// sequence and are dropped otherwise.
func (c *MessageCache) AbortLoad(conversationID uuid.UUID) {
	c.mu.Lock()
	held := c.endLoadLocked(conversationID)
	seq, ok := c.byConv[conversationID]
	if ok && len(held) > 0 {
		c.byConv[conversationID] = applyArrivals(seq, held)
	}
	c.mu.Unlock()

	if ok && len(held) > 0 {
		c.changed.notify()
	}
}

func (c *MessageCache) endLoadLocked(conversationID uuid.UUID) []models.Message {
	held := c.held[conversationID]
	delete(c.held, conversationID)
	if c.loads[conversationID]--; c.loads[conversationID] <= 0 {
		delete(c.loads, conversationID)
	}
	return held
}

// applyArrivals patches messages seq already holds and appends the rest.
func applyArrivals(seq, arrivals []models.Message) []models.Message {
	for _, msg := range arrivals {
		if i := indexOf(seq, msg.ID); i >= 0 {
			models.PatchFrom(msg).Apply(&seq[i])
			continue
		}
		seq = append(seq, msg)
	}
	return seq
}

func indexOf(seq []models.Message, id uuid.UUID) int {
	for i := range seq {
		if seq[i].ID == id {
			return i
		}
	}
	return -1
}

// UpdateMessage applies patch to the message with msgID. Returns false if not found.
func (c *MessageCache) UpdateMessage(conversationID, msgID uuid.UUID, patch models.MessagePatch) bool {
	c.mu.Lock()
	seq := c.byConv[conversationID]
	found := false
	for i := range seq {
		if seq[i].ID == msgID {
			patch.Apply(&seq[i])
			found = true
			break
		}
	}
	c.mu.Unlock()

	if found {
		c.changed.notify()
	}
	return found
}

// Contains reports whether the conversation's sequence holds msgID.
func (c *MessageCache) Contains(conversationID, msgID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, msg := range c.byConv[conversationID] {
		if msg.ID == msgID {
			return true
		}
	}
	return false
}

// Loaded reports whether the conversation has a sequence in the cache.
func (c *MessageCache) Loaded(conversationID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byConv[conversationID]
	return ok
}

// Messages returns a copy of the conversation's sequence.
func (c *MessageCache) Messages(conversationID uuid.UUID) []models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seq := c.byConv[conversationID]
	out := make([]models.Message, len(seq))
	copy(out, seq)
	return out
}

// Len returns the number of cached messages for the conversation.
func (c *MessageCache) Len(conversationID uuid.UUID) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byConv[conversationID])
}
