// Package realtime carries row-level change events for the messages table
// from the remote data source to every subscribed client.
package realtime

import (
	"context"

	"github.com/manyajain27/dating-app-sub000/internal/models"
)

// Publisher pushes change events onto the channel.
type Publisher interface {
	Publish(ctx context.Context, ev models.ChangeEvent) error
}

// Subscriber joins the channel.
type Subscriber interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription delivers events in channel order until closed.
type Subscription interface {
	Events() <-chan models.ChangeEvent
	Close() error
}

// Feed is both ends of the channel.
type Feed interface {
	Publisher
	Subscriber
}
