package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/asperus/agenda/internal/observability/metrics"
	"github.com/asperus/agenda/pkg/logging"
)

// RedisBroker publishes events on a Redis pub/sub channel so every API
// instance sees changes committed by any other.
type RedisBroker struct {
	client  *redis.Client
	channel string
	logger  *logging.Logger
	metrics *metrics.BookingMetrics

	mu     sync.Mutex
	subs   map[*Subscription]*redis.PubSub
	closed bool
}

func NewRedisBroker(client *redis.Client, channel string, logger *logging.Logger) *RedisBroker {
	if client == nil {
		panic("changefeed: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if channel == "" {
		channel = "agenda:reservations:changed"
	}
	return &RedisBroker{
		client:  client,
		channel: channel,
		logger:  logger,
		subs:    make(map[*Subscription]*redis.PubSub),
	}
}

func (b *RedisBroker) WithMetrics(m *metrics.BookingMetrics) *RedisBroker {
	b.metrics = m
	return b
}

func (b *RedisBroker) Publish(ctx context.Context, evt Event) error {
	evt = stamp(evt)
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("changefeed: marshal event: %w", err)
	}
	err = b.client.Publish(ctx, b.channel, data).Err()
	b.metrics.ObservePublish(evt.Kind, err)
	if err != nil {
		return fmt.Errorf("changefeed: publish: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so no event
// published after it returns is missed.
func (b *RedisBroker) Subscribe(ctx context.Context) (*Subscription, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("changefeed: subscribe: %w", err)
	}

	sub := newSubscription()
	sub.release = func() error {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		return ps.Close()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = ps.Close()
		return nil, ErrClosed
	}
	b.subs[sub] = ps
	b.mu.Unlock()
	b.metrics.SubscriberOpened()

	go b.pump(ps.Channel(), sub)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

func (b *RedisBroker) pump(ch <-chan *redis.Message, sub *Subscription) {
	defer func() {
		close(sub.events)
		b.metrics.SubscriberClosed()
	}()
	for msg := range ch {
		var evt Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			b.logger.Warn("changefeed: unreadable event payload", "error", err)
			evt = stamp(Event{})
		}
		sub.offer(evt)
	}
}

// Close ends every subscription. The Redis client is owned by the caller.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}
