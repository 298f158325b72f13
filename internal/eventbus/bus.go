package eventbus

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"messhall-cloud/internal/observability/metrics"
)

// Kind identifies an event family on the bus.
type Kind string

// Event is anything that can be published on the bus.
type Event interface {
	EventKind() Kind
}

// Handler handles a published event.
type Handler func(ctx context.Context, event Event) error

// Token identifies a single subscription for later removal.
type Token string

// ErrNilEvent is returned when a nil event is published.
var ErrNilEvent = errors.New("eventbus: nil event")

type subscription struct {
	token   Token
	handler Handler
}

// Bus is an in-process publish/subscribe broker. Handler lists are
// copy-on-write: Publish iterates a snapshot, so unsubscribing during an
// in-flight delivery never disturbs that delivery and removed handlers are
// gone from the next one.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Kind][]subscription
	byToken map[Token]Kind
	logger  *log.Logger
}

// New constructs a Bus.
func New(logger *log.Logger) *Bus {
	return &Bus{
		subs:    make(map[Kind][]subscription),
		byToken: make(map[Token]Kind),
		logger:  logger,
	}
}

// Subscribe registers a handler for an event kind and returns its token.
func (b *Bus) Subscribe(kind Kind, handler Handler) Token {
	if kind == "" || handler == nil {
		return ""
	}
	token := Token(uuid.NewString())
	b.mu.Lock()
	next := make([]subscription, len(b.subs[kind]), len(b.subs[kind])+1)
	copy(next, b.subs[kind])
	b.subs[kind] = append(next, subscription{token: token, handler: handler})
	b.byToken[token] = kind
	b.mu.Unlock()
	return token
}

// Unsubscribe removes the subscription for token. Idempotent.
func (b *Bus) Unsubscribe(token Token) {
	if token == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	kind, ok := b.byToken[token]
	if !ok {
		return
	}
	delete(b.byToken, token)
	current := b.subs[kind]
	next := make([]subscription, 0, len(current))
	for _, sub := range current {
		if sub.token != token {
			next = append(next, sub)
		}
	}
	if len(next) == 0 {
		delete(b.subs, kind)
		return
	}
	b.subs[kind] = next
}

// Publish delivers event to every handler registered for its kind, in
// registration order. A handler error or panic is logged and never stops
// delivery to the remaining handlers.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return ErrNilEvent
	}
	kind := event.EventKind()

	b.mu.RLock()
	handlers := b.subs[kind]
	b.mu.RUnlock()

	for _, sub := range handlers {
		b.deliver(ctx, kind, sub.handler, event)
	}
	metrics.ObservePublish(string(kind), len(handlers))
	return nil
}

func (b *Bus) deliver(ctx context.Context, kind Kind, handler Handler, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.ObserveSubscriberFault(string(kind))
			if b.logger != nil {
				b.logger.Printf("eventbus: handler panic kind=%s: %v", kind, rec)
			}
		}
	}()
	if err := handler(ctx, event); err != nil {
		metrics.ObserveSubscriberFault(string(kind))
		if b.logger != nil {
			b.logger.Printf("eventbus: handler error kind=%s: %v", kind, err)
		}
	}
}

// SubscriberCount reports the number of handlers registered for kind.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}
