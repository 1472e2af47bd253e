package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/manyajain27/dating-app-sub000/internal/models"
)

func receive(t *testing.T, sub Subscription) models.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatalf("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return models.ChangeEvent{}
}

func TestMemoryFeedFansOutInOrder(t *testing.T) {
	feed := NewMemoryFeed(8)
	ctx := context.Background()

	first, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	second, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := feed.Publish(ctx, models.ChangeEvent{ID: id, Type: models.EventInsert, Table: models.TableMessages}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	for _, sub := range []Subscription{first, second} {
		for _, want := range []string{"a", "b", "c"} {
			if got := receive(t, sub).ID; got != want {
				t.Fatalf("expected event %s, got %s", want, got)
			}
		}
	}
}

func TestMemoryFeedDropsForSlowSubscriber(t *testing.T) {
	feed := NewMemoryFeed(1)
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// The second publish finds the buffer full and must not block.
	done := make(chan struct{})
	go func() {
		feed.Publish(ctx, models.ChangeEvent{ID: "kept"})
		feed.Publish(ctx, models.ChangeEvent{ID: "dropped"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}

	if got := receive(t, sub).ID; got != "kept" {
		t.Fatalf("expected first event kept, got %s", got)
	}
}

func TestMemoryFeedSubscriptionEndsWithContext(t *testing.T) {
	feed := NewMemoryFeed(0)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription not closed after cancel")
	}
	if n := feed.Subscribers(); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestMemoryFeedClose(t *testing.T) {
	feed := NewMemoryFeed(0)
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	feed.Close()

	if _, ok := <-sub.Events(); ok {
		t.Fatalf("expected subscription closed with the feed")
	}
	if err := feed.Publish(ctx, models.ChangeEvent{}); !errors.Is(err, ErrFeedClosed) {
		t.Fatalf("expected ErrFeedClosed on publish, got %v", err)
	}
	if _, err := feed.Subscribe(ctx); !errors.Is(err, ErrFeedClosed) {
		t.Fatalf("expected ErrFeedClosed on subscribe, got %v", err)
	}
}
