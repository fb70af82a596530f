package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/taldoflemis/trattoria/cassa"
)

// LiveFeed fans placed orders out to the staff screens connected over SSE.
// A subscriber that cannot keep up misses events rather than slowing intake.
type LiveFeed struct {
	mu          sync.Mutex
	subscribers map[chan cassa.OrderPlaced]struct{}
	bufferSize  int
}

var _ cassa.OrderPublisher = (*LiveFeed)(nil)

func NewLiveFeed(bufferSize int) *LiveFeed {
	return &LiveFeed{
		subscribers: make(map[chan cassa.OrderPlaced]struct{}),
		bufferSize:  bufferSize,
	}
}

// PublishPlaced implements cassa.OrderPublisher.
func (f *LiveFeed) PublishPlaced(ctx context.Context, event cassa.OrderPlaced) error {
	ctx, span := tracer.Start(ctx, "LiveFeed.PublishPlaced")
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			slog.WarnContext(ctx, "live feed subscriber lagging, dropping event", slog.Int64("order-id", event.OrderID))
		}
	}
	return nil
}

// Subscribe registers a new listener. Call the returned function to leave.
func (f *LiveFeed) Subscribe(ctx context.Context) (<-chan cassa.OrderPlaced, func()) {
	slog.InfoContext(ctx, "subscribing to live orders")

	ch := make(chan cassa.OrderPlaced, f.bufferSize)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			slog.InfoContext(ctx, "unsubscribing from live orders")
			f.mu.Lock()
			delete(f.subscribers, ch)
			f.mu.Unlock()
		})
	}
}

func (f *LiveFeed) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

// teePublisher sends each event to the broker and then to the local feed.
// The feed always hears about the order even when the broker is down.
type teePublisher struct {
	broker cassa.OrderPublisher
	feed   *LiveFeed
}

var _ cassa.OrderPublisher = (*teePublisher)(nil)

func (t teePublisher) PublishPlaced(ctx context.Context, event cassa.OrderPlaced) error {
	err := t.broker.PublishPlaced(ctx, event)
	_ = t.feed.PublishPlaced(ctx, event)
	return err
}
