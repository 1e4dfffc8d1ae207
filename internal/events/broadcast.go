package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"backtester/internal/domain"
)

// Compile-time interface checks.
var (
	_ Publisher = (*Broadcaster)(nil)
	_ Publisher = Multi(nil)
)

// Broadcaster fans completed runs out to in-process subscribers, such as
// streaming API clients. A subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan domain.Run
	closed bool
	log    *slog.Logger
}

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[int]chan domain.Run),
		log:  slog.Default().With("component", "broadcast"),
	}
}

// PublishRun delivers run to every subscriber without blocking.
func (b *Broadcaster) PublishRun(_ context.Context, run domain.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- run:
		default:
			// Slow consumer.
			b.log.Warn("dropping run event", "subscriber", id, "run_id", run.ID)
		}
	}
	return nil
}

// Subscribe registers a subscriber with the given buffer size.
func (b *Broadcaster) Subscribe(bufSize int) (id int, ch <-chan domain.Run) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := make(chan domain.Run, bufSize)
	if b.closed {
		close(c)
		return -1, c
	}
	id = b.nextID
	b.nextID++
	b.subs[id] = c
	return id, c
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	b.closed = true
	return nil
}

// Multi publishes to several publishers in order. Every publisher is tried;
// failures are joined.
type Multi []Publisher

func (m Multi) PublishRun(ctx context.Context, run domain.Run) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishRun(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
