package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/manyajain27/dating-app-sub000/internal/models"
)

func convAt(t time.Time) models.Conversation {
	return models.Conversation{
		ID:            uuid.New(),
		MatchID:       uuid.New(),
		User1ID:       uuid.New(),
		User2ID:       uuid.New(),
		LastMessageAt: t,
	}
}

func TestConversationCacheUpsertSortsByRecency(t *testing.T) {
	cache := NewConversationCache()
	base := time.Now()

	old := convAt(base.Add(-time.Hour))
	mid := convAt(base.Add(-time.Minute))
	fresh := convAt(base)

	cache.Upsert(mid)
	cache.Upsert(old)
	cache.Upsert(fresh)

	got := cache.Snapshot()
	if len(got) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(got))
	}
	if got[0].ID != fresh.ID || got[1].ID != mid.ID || got[2].ID != old.ID {
		t.Fatalf("conversations not ordered newest first")
	}

	// Replacing an entry moves it.
	old.LastMessageAt = base.Add(time.Minute)
	cache.Upsert(old)
	got = cache.Snapshot()
	if got[0].ID != old.ID {
		t.Fatalf("expected updated conversation first, got %s", got[0].ID)
	}
	if cache.Len() != 3 {
		t.Fatalf("upsert of existing id must not grow the cache, len=%d", cache.Len())
	}
}

func TestConversationCacheIgnoresMalformed(t *testing.T) {
	cache := NewConversationCache()
	cache.Upsert(models.Conversation{})
	if cache.Len() != 0 {
		t.Fatalf("conversation without id should be ignored")
	}

	cache.ReplaceAll([]models.Conversation{{}, convAt(time.Now())})
	if cache.Len() != 1 {
		t.Fatalf("expected malformed entry dropped on ReplaceAll, len=%d", cache.Len())
	}
}

func TestConversationCacheUnread(t *testing.T) {
	cache := NewConversationCache()
	conv := convAt(time.Now())
	cache.Upsert(conv)

	cache.IncrementUnread(conv.ID)
	cache.IncrementUnread(conv.ID)
	if n := cache.UnreadCount(conv.ID); n != 2 {
		t.Fatalf("expected unread 2, got %d", n)
	}

	cache.ResetUnread(conv.ID)
	if n := cache.UnreadCount(conv.ID); n != 0 {
		t.Fatalf("expected unread 0 after reset, got %d", n)
	}

	missing := uuid.New()
	cache.IncrementUnread(missing)
	cache.ResetUnread(missing)
	if cache.Len() != 1 {
		t.Fatalf("unread operations on a missing id must not create entries")
	}
}

func TestConversationCacheNegativeUnreadClamped(t *testing.T) {
	cache := NewConversationCache()
	conv := convAt(time.Now())
	conv.UnreadCount = -4
	cache.Upsert(conv)
	if n := cache.UnreadCount(conv.ID); n != 0 {
		t.Fatalf("expected clamped unread 0, got %d", n)
	}
}

func TestConversationCacheReplaceAllDiscards(t *testing.T) {
	cache := NewConversationCache()
	first := convAt(time.Now())
	cache.Upsert(first)

	second := convAt(time.Now())
	cache.ReplaceAll([]models.Conversation{second})

	if _, ok := cache.Get(first.ID); ok {
		t.Fatalf("ReplaceAll should discard prior contents")
	}
	if _, ok := cache.Get(second.ID); !ok {
		t.Fatalf("ReplaceAll should load new contents")
	}
}

func TestConversationCacheLastMessage(t *testing.T) {
	cache := NewConversationCache()
	base := time.Now()
	a := convAt(base)
	b := convAt(base.Add(-time.Hour))
	cache.Upsert(a)
	cache.Upsert(b)

	msg := models.Message{
		ID:             uuid.New(),
		ConversationID: b.ID,
		SenderID:       b.User1ID,
		Content:        "hey",
		CreatedAt:      base.Add(time.Second),
	}
	if !cache.SetLastMessage(b.ID, msg) {
		t.Fatalf("SetLastMessage on cached conversation returned false")
	}

	got := cache.Snapshot()
	if got[0].ID != b.ID {
		t.Fatalf("conversation with newest message should sort first")
	}
	if got[0].LastMessage == nil || got[0].LastMessage.ID != msg.ID {
		t.Fatalf("last message snapshot not updated")
	}

	read := true
	if cache.UpdateLastMessage(b.ID, uuid.New(), models.MessagePatch{IsRead: &read}) {
		t.Fatalf("patch for a different message must not apply")
	}
	if !cache.UpdateLastMessage(b.ID, msg.ID, models.MessagePatch{IsRead: &read}) {
		t.Fatalf("patch for last message should apply")
	}
	conv, _ := cache.Get(b.ID)
	if !conv.LastMessage.IsRead {
		t.Fatalf("expected last message marked read")
	}
}

func TestConversationCacheSnapshotIsCopy(t *testing.T) {
	cache := NewConversationCache()
	conv := convAt(time.Now())
	conv.LastMessage = &models.LastMessage{ID: uuid.New(), Content: "original"}
	cache.Upsert(conv)

	snap := cache.Snapshot()
	snap[0].LastMessage.Content = "mutated"
	snap[0].UnreadCount = 99

	got, _ := cache.Get(conv.ID)
	if got.LastMessage.Content != "original" || got.UnreadCount != 0 {
		t.Fatalf("snapshot mutation leaked into the cache")
	}
}

func TestConversationCacheNotifiesWatchers(t *testing.T) {
	n := newNotifier()
	cache := newConversationCache(n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := n.watch(ctx)

	cache.Upsert(convAt(time.Now()))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("expected change notification after upsert")
	}
}
