package changefeed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asperus/agenda/internal/observability/metrics"
	"github.com/asperus/agenda/pkg/logging"
)

// Hub is an in-process broker.
type Hub struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	closed  bool
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{subs: make(map[*Subscription]struct{}), logger: logger}
}

func (h *Hub) WithMetrics(m *metrics.BookingMetrics) *Hub {
	h.metrics = m
	return h
}

// Publish delivers evt to every current subscriber without blocking.
func (h *Hub) Publish(ctx context.Context, evt Event) error {
	evt = stamp(evt)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	for sub := range h.subs {
		sub.offer(evt)
	}
	n := len(h.subs)
	h.mu.Unlock()
	h.metrics.ObservePublish(evt.Kind, nil)
	h.logger.Debug("change published", "kind", evt.Kind, "store_id", evt.StoreID, "day", evt.Day, "subscribers", n)
	return nil
}

// Subscribe registers a new subscription. It is released by Close or when
// ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	sub := newSubscription()
	sub.release = func() error {
		h.remove(sub)
		return nil
	}
	h.subs[sub] = struct{}{}
	h.metrics.SubscriberOpened()

	if ctx != nil && ctx.Done() != nil {
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

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.events)
		h.metrics.SubscriberClosed()
	}
}

// Len reports the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription and rejects further use.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.events)
		sub.stop()
		h.metrics.SubscriberClosed()
	}
	return nil
}

func stamp(evt Event) Event {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.Kind == "" {
		evt.Kind = KindReservationChanged
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	return evt
}
