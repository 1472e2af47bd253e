package chat

import (
	"context"
	"sync"
)

// notifier fans a "something changed" signal out to watchers.
// Signals coalesce: a watcher that has not drained its channel sees one pending signal.
type notifier struct {
	mu       sync.Mutex
	watchers map[chan struct{}]struct{}
}

func newNotifier() *notifier {
	return &notifier{watchers: make(map[chan struct{}]struct{})}
}

func (n *notifier) watch(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	n.watchers[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.watchers, ch)
		n.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (n *notifier) notify() {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
