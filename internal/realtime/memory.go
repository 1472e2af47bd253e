package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/manyajain27/dating-app-sub000/internal/metrics"
	"github.com/manyajain27/dating-app-sub000/internal/models"
)

// ErrFeedClosed is returned when publishing to or subscribing on a closed feed.
var ErrFeedClosed = errors.New("realtime feed closed")

const defaultBuffer = 256

// MemoryFeed is an in-process fan-out channel. Each subscriber gets its own
// buffer; a subscriber whose buffer is full misses the event instead of
// stalling the publisher.
type MemoryFeed struct {
	mu     sync.Mutex
	subs   map[*memorySubscription]struct{}
	buffer int
	closed bool
}

// NewMemoryFeed creates a feed with the given per-subscriber buffer size.
func NewMemoryFeed(buffer int) *MemoryFeed {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &MemoryFeed{
		subs:   make(map[*memorySubscription]struct{}),
		buffer: buffer,
	}
}

// Publish delivers ev to every current subscriber.
func (f *MemoryFeed) Publish(ctx context.Context, ev models.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFeedClosed
	}

	for sub := range f.subs {
		select {
		case sub.ch <- ev:
		default:
			metrics.RealtimeDropped.WithLabelValues("slow_subscriber").Inc()
		}
	}
	metrics.RealtimePublished.Inc()
	return nil
}

// Subscribe joins the feed. The subscription ends when ctx is done or Close is called.
func (f *MemoryFeed) Subscribe(ctx context.Context) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFeedClosed
	}

	sub := &memorySubscription{
		feed: f,
		ch:   make(chan models.ChangeEvent, f.buffer),
		done: make(chan struct{}),
	}
	f.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Subscribers returns the number of live subscriptions.
func (f *MemoryFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close ends every subscription and rejects further use.
func (f *MemoryFeed) Close() {
	f.mu.Lock()
	subs := make([]*memorySubscription, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.closed = true
	f.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (f *MemoryFeed) remove(sub *memorySubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(sub.ch)
	}
}

type memorySubscription struct {
	feed *MemoryFeed
	ch   chan models.ChangeEvent
	done chan struct{}
	once sync.Once
}

func (s *memorySubscription) Events() <-chan models.ChangeEvent {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.feed.remove(s)
	})
	return nil
}
