package realtime

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestRedisFeed(t *testing.T) (*RedisFeed, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisFeed(client, zerolog.Nop()), client
}

func TestRedisFeedDeliversPublishedEvents(t *testing.T) {
	feed, _ := newTestRedisFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	ev := sampleEvent()
	if err := feed.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got := receive(t, sub)
	if got.ID != ev.ID || got.Record.ID != ev.Record.ID || got.Record.Content != ev.Record.Content {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestRedisFeedSkipsMalformedPayloads(t *testing.T) {
	feed, client := newTestRedisFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if err := client.Publish(ctx, MessagesChannel, "not an event").Err(); err != nil {
		t.Fatalf("raw publish: %v", err)
	}
	ev := sampleEvent()
	if err := feed.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if got := receive(t, sub); got.ID != ev.ID {
		t.Fatalf("expected the valid event after the malformed one, got %+v", got)
	}
}

func TestRedisFeedClosesOnCancel(t *testing.T) {
	feed, _ := newTestRedisFeed(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	for range sub.Events() {
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close after cancel: %v", err)
	}
}
