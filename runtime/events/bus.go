package events

import (
	"context"
	"sync"

	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

type (
	// Bus fans lifecycle events out to registered subscribers. Delivery is
	// synchronous in the publisher's goroutine and stops at the first
	// subscriber error; runners log that error and keep the request alive.
	Bus interface {
		// Publish delivers the event to every registered subscriber in
		// registration snapshot order.
		Publish(ctx context.Context, event Event) error

		// Subscribe adds a subscriber and returns its subscription handle.
		Subscribe(sub Subscriber) (Subscription, error)
	}

	// Subscriber reacts to published events. HandleEvent should return an
	// error only when the failure must stop the request; transient
	// subscriber trouble belongs in the subscriber's own logs.
	Subscriber interface {
		HandleEvent(ctx context.Context, event Event) error
	}

	// SubscriberFunc adapts a plain function to Subscriber.
	SubscriberFunc func(ctx context.Context, event Event) error

	// Subscription is an active registration. Close removes the subscriber
	// and is safe to call more than once.
	Subscription interface {
		Close() error
	}

	bus struct {
		mu          sync.RWMutex
		subscribers map[*subscription]Subscriber
	}

	subscription struct {
		bus  *bus
		once sync.Once
	}
)

// HandleEvent invokes the wrapped function.
func (f SubscriberFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// NewBus constructs an empty in-memory event bus.
func NewBus() Bus {
	return &bus{subscribers: make(map[*subscription]Subscriber)}
}

// Publish delivers the event to a snapshot of the current subscribers.
// Registrations made during a publish do not receive the in-flight event.
func (b *bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()
	for _, sub := range subs {
		if err := sub.HandleEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers sub until the returned subscription is closed.
func (b *bus) Subscribe(sub Subscriber) (Subscription, error) {
	if sub == nil {
		return nil, sdkerrors.NewUsageError("subscriber is required")
	}
	s := &subscription{bus: b}
	b.mu.Lock()
	b.subscribers[s] = sub
	b.mu.Unlock()
	return s, nil
}

// Close removes the subscriber. Idempotent; always returns nil.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subscribers, s)
		s.bus.mu.Unlock()
	})
	return nil
}
