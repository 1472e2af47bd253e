package realtime

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/manyajain27/dating-app-sub000/internal/metrics"
	"github.com/manyajain27/dating-app-sub000/internal/models"
)

// MessagesChannel is the pub/sub channel carrying messages-table changes.
const MessagesChannel = "realtime:messages"

// RedisFeed carries change events over Redis pub/sub.
type RedisFeed struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisFeed creates a feed on top of an existing Redis client.
func NewRedisFeed(client *redis.Client, logger zerolog.Logger) *RedisFeed {
	return &RedisFeed{client: client, logger: logger}
}

// Publish encodes ev and publishes it on MessagesChannel.
func (f *RedisFeed) Publish(ctx context.Context, ev models.ChangeEvent) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, MessagesChannel, payload).Err(); err != nil {
		return err
	}
	metrics.RealtimePublished.Inc()
	return nil
}

// Subscribe joins MessagesChannel. The subscription is confirmed before returning,
// so events published afterwards are delivered.
func (f *RedisFeed) Subscribe(ctx context.Context) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, MessagesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan models.ChangeEvent, defaultBuffer),
		done:   make(chan struct{}),
	}
	go sub.pump(ctx, f.logger)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan models.ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) pump(ctx context.Context, logger zerolog.Logger) {
	defer close(s.ch)

	msgs := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			ev, err := Decode([]byte(m.Payload))
			if err != nil {
				metrics.RealtimeDropped.WithLabelValues("malformed").Inc()
				logger.Warn().Err(err).Str("channel", m.Channel).Msg("dropping change event")
				continue
			}
			select {
			case s.ch <- ev:
			case <-s.done:
				return
			case <-ctx.Done():
				s.Close()
				return
			}
		}
	}
}

func (s *redisSubscription) Events() <-chan models.ChangeEvent {
	return s.ch
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
