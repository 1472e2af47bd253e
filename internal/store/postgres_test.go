package store

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/manyajain27/dating-app-sub000/internal/models"
)

// newTestPostgresStore connects to TEST_DATABASE_URL and migrates it.
// Rows use fresh UUIDs, so tests share the database without cleanup.
func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	if err := RunMigrations(url); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	s, err := NewPostgresStore(context.Background(), url)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestPostgresRunMigrationsTwice(t *testing.T) {
	s := newTestPostgresStore(t)
	if err := RunMigrations(os.Getenv("TEST_DATABASE_URL")); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestPostgresMatchAndConversationLookups(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	first, err := s.CreateMatch(ctx, a, b)
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	second, err := s.CreateMatch(ctx, b, a)
	if err != nil {
		t.Fatalf("CreateMatch reversed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same match for either order, got %s and %s", first.ID, second.ID)
	}

	if missing, err := s.GetMatch(ctx, uuid.New()); err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for unknown match, got %v, %v", missing, err)
	}
	if missing, err := s.GetConversation(ctx, uuid.New()); err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for unknown conversation, got %v, %v", missing, err)
	}

	var wg sync.WaitGroup
	convIDs := make([]uuid.UUID, 4)
	errs := make([]error, 4)
	for i := range convIDs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := s.CreateConversation(ctx, *first)
			if err == nil && conv != nil {
				convIDs[i] = conv.ID
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for i := range convIDs {
		if errs[i] != nil {
			t.Fatalf("CreateConversation %d: %v", i, errs[i])
		}
		if convIDs[i] != convIDs[0] {
			t.Fatalf("concurrent creates produced %s and %s", convIDs[0], convIDs[i])
		}
	}

	got, err := s.GetConversation(ctx, convIDs[0])
	if err != nil || got == nil || got.MatchID != first.ID {
		t.Fatalf("GetConversation: %+v, %v", got, err)
	}
}

func TestPostgresMessagesAndUnread(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()
	match, conv := seedConversation(t, s)
	me, them := match.User1ID, match.User2ID
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, sender := range []uuid.UUID{them, me, them} {
		_, err := s.InsertMessage(ctx, models.Message{
			ConversationID: conv.ID,
			SenderID:       sender,
			Content:        []string{"one", "two", "three"}[i],
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	msgs, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Content != "one" || msgs[2].Content != "three" {
		t.Fatalf("unexpected message order %+v", msgs)
	}
	if msgs[0].Type != models.MessageTypeText {
		t.Fatalf("expected default type text, got %q", msgs[0].Type)
	}

	convs, err := s.ListConversations(ctx, me)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 || convs[0].UnreadCount != 2 {
		t.Fatalf("expected one conversation with 2 unread, got %+v", convs)
	}
	if convs[0].LastMessage == nil || convs[0].LastMessage.Content != "three" {
		t.Fatalf("expected newest message joined, got %+v", convs[0].LastMessage)
	}

	updated, err := s.MarkConversationRead(ctx, conv.ID, me)
	if err != nil {
		t.Fatalf("MarkConversationRead: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 rows marked read, got %d", len(updated))
	}
	again, err := s.MarkConversationRead(ctx, conv.ID, me)
	if err != nil || len(again) != 0 {
		t.Fatalf("second mark-read: %d rows, %v", len(again), err)
	}

	at := base.Add(time.Hour)
	if err := s.TouchConversation(ctx, conv.ID, at); err != nil {
		t.Fatalf("TouchConversation: %v", err)
	}
	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil || got == nil || !got.LastMessageAt.Equal(at) {
		t.Fatalf("last_message_at not updated: %+v, %v", got, err)
	}

	if _, err := s.InsertMessage(ctx, models.Message{ConversationID: uuid.New(), SenderID: me, Content: "x"}); err == nil {
		t.Fatalf("insert into unknown conversation should fail")
	}
}
