// Package eventbus is a typed publish/subscribe registry keyed by event kind.
//
// Handlers run synchronously on the publishing goroutine, in subscription
// order. A handler that panics is recovered and reported; the remaining
// handlers still run and the publisher never sees the panic. Publishing from
// inside a handler is allowed.
package eventbus

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-ui/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Handler func(events.Event)

// SubscriptionID identifies one registration of a handler.
type SubscriptionID uint64

// Subscription is returned by Subscribe and SubscribeOnce.
type Subscription struct {
	ID   SubscriptionID
	Kind events.Kind
	bus  *Bus
}

// Unsubscribe removes the registration. It is safe to call more than once.
func (s Subscription) Unsubscribe() {
	if s.bus != nil {
		s.bus.Unsubscribe(s.Kind, s.ID)
	}
}

type subscription struct {
	id      SubscriptionID
	handler Handler
	once    bool
	removed atomic.Bool
}

type Option func(*Bus)

// WithPanicHandler registers a hook called with every recovered handler
// panic, after it has been logged.
func WithPanicHandler(hook func(kind events.Kind, recovered any)) Option {
	return func(b *Bus) { b.onPanic = hook }
}

// WithDebug enables debug records for recovered panics.
func WithDebug(debug bool) Option {
	return func(b *Bus) { b.debug = debug }
}

type Bus struct {
	mu            sync.Mutex
	subscriptions map[events.Kind][]*subscription
	nextID        SubscriptionID

	onPanic     func(kind events.Kind, recovered any)
	debug       bool
	panicsCount metric.Int64Counter
}

func New(opts ...Option) *Bus {
	b := &Bus{subscriptions: map[events.Kind][]*subscription{}}
	for _, opt := range opts {
		opt(b)
	}

	counter, err := meter.Int64Counter("ema_ui.listener.panics",
		metric.WithDescription("Event handlers that panicked and were recovered"))
	if err == nil {
		b.panicsCount = counter
	}
	return b
}

func (b *Bus) Subscribe(kind events.Kind, handler Handler) Subscription {
	return b.add(kind, handler, false)
}

// SubscribeOnce registers a handler that is removed right before its first
// invocation, so it runs exactly once even if it publishes the same kind.
func (b *Bus) SubscribeOnce(kind events.Kind, handler Handler) Subscription {
	return b.add(kind, handler, true)
}

func (b *Bus) Unsubscribe(kind events.Kind, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscriptions := b.subscriptions[kind]
	idx := slices.IndexFunc(subscriptions, func(s *subscription) bool { return s.id == id })
	if idx == -1 {
		return
	}
	subscriptions[idx].removed.Store(true)
	b.subscriptions[kind] = slices.Delete(slices.Clone(subscriptions), idx, idx+1)
	if len(b.subscriptions[kind]) == 0 {
		delete(b.subscriptions, kind)
	}
}

// Publish delivers event to every handler subscribed to its kind at the time
// of the call. Handlers removed during delivery are skipped.
func (b *Bus) Publish(event events.Event) {
	kind := event.Kind()

	b.mu.Lock()
	subscriptions := b.subscriptions[kind]
	b.mu.Unlock()

	for _, s := range subscriptions {
		if s.once {
			if !s.removed.CompareAndSwap(false, true) {
				continue
			}
			b.Unsubscribe(kind, s.id)
		} else if s.removed.Load() {
			continue
		}

		b.invoke(kind, s.handler, event)
	}
}

// Len returns the number of handlers subscribed to kind.
func (b *Bus) Len(kind events.Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscriptions[kind])
}

// Clear removes every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subscriptions := range b.subscriptions {
		for _, s := range subscriptions {
			s.removed.Store(true)
		}
	}
	b.subscriptions = map[events.Kind][]*subscription{}
}

func (b *Bus) add(kind events.Kind, handler Handler, once bool) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := &subscription{id: b.nextID, handler: handler, once: once}
	// Publish iterates over the slice it read, so appends must not write
	// into a shared backing array.
	b.subscriptions[kind] = append(slices.Clip(b.subscriptions[kind]), s)
	return Subscription{ID: s.id, Kind: kind, bus: b}
}

func (b *Bus) invoke(kind events.Kind, handler Handler, event events.Event) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}

		ctx := context.Background()
		if b.panicsCount != nil {
			b.panicsCount.Add(ctx, 1, metric.WithAttributes(attribute.String("event.kind", string(kind))))
		}
		logger.ErrorContext(ctx, "event handler panicked", "kind", kind, "panic", fmt.Sprint(recovered))
		if b.debug {
			logger.DebugContext(ctx, "recovered event handler", "kind", kind, "event", fmt.Sprintf("%#v", event))
		}
		if b.onPanic != nil {
			b.onPanic(kind, recovered)
		}
	}()

	handler(event)
}
