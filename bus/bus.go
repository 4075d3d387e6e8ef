// Package bus provides the in-process publish/subscribe primitive that
// connects discovery, policy automation and access reviews. Delivery is
// synchronous and best-effort: there is no backlog and no persistence.
package bus

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wardlabs/ward/telemetry"
	"github.com/wardlabs/ward/types"
)

// Handler processes one delivered event. Errors are logged per handler and
// never propagate to the publisher or to sibling subscribers.
type Handler func(ctx context.Context, evt types.Event) error

type subscription struct {
	name    string
	handler Handler
}

// Bus delivers events to subscribers in subscription order, per topic.
type Bus struct {
	mu     sync.RWMutex
	subs   map[types.Topic][]subscription
	logger *telemetry.Logger
	tracer trace.Tracer
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subs:   make(map[types.Topic][]subscription),
		logger: telemetry.NewLogger("event-bus"),
		tracer: otel.Tracer("event-bus"),
	}
}

// Subscribe registers a handler for future events on a topic. There is no
// replay: events published before the subscription are gone.
func (b *Bus) Subscribe(topic types.Topic, name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[topic] = append(b.subs[topic], subscription{name: name, handler: handler})

	b.logger.Debug().
		Str("topic", string(topic)).
		Str("subscriber", name).
		Int("subscriber_count", len(b.subs[topic])).
		Msg("subscriber registered")
}

// Publish delivers the event to every current subscriber of its topic, in
// subscription order, and returns how many handlers were invoked. A failing
// or panicking handler never blocks delivery to the others.
func (b *Bus) Publish(ctx context.Context, evt types.Event) int {
	ctx, span := b.tracer.Start(ctx, "bus.publish",
		trace.WithAttributes(
			attribute.String("event.topic", string(evt.Topic)),
			attribute.String("tenant.id", evt.TenantID)))
	defer span.End()

	if err := evt.Validate(); err != nil {
		b.logger.LogEventDropped(ctx, string(evt.Topic), err.Error())
		if telemetry.EventsDropped != nil {
			telemetry.EventsDropped.Add(ctx, 1,
				metric.WithAttributes(attribute.String("topic", string(evt.Topic))))
		}
		return 0
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[evt.Topic]))
	copy(subs, b.subs[evt.Topic])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(ctx, sub, evt)
	}

	b.logger.LogEventPublished(ctx, string(evt.Topic), evt.TenantID, len(subs))
	if telemetry.EventsPublished != nil {
		telemetry.EventsPublished.Add(ctx, 1,
			metric.WithAttributes(attribute.String("topic", string(evt.Topic))))
	}

	return len(subs)
}

// deliver runs one handler, isolating its failures.
func (b *Bus) deliver(ctx context.Context, sub subscription, evt types.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithContext(ctx).Error().
				Str("topic", string(evt.Topic)).
				Str("subscriber", sub.name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("subscriber panicked")
		}
	}()

	if err := sub.handler(ctx, evt); err != nil {
		b.logger.WithContext(ctx).Error().
			Err(err).
			Str("topic", string(evt.Topic)).
			Str("subscriber", sub.name).
			Msg("subscriber failed")
	}
}

// SubscriberCount returns how many handlers are registered for a topic.
func (b *Bus) SubscriberCount(topic types.Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
