// Package changefeed fans reservation ledger changes out to live subscribers.
package changefeed

import (
	"context"
	"errors"
	"sync"
	"time"
)

const KindReservationChanged = "reservation.changed"

// ErrClosed is returned when publishing to or subscribing on a closed broker.
var ErrClosed = errors.New("changefeed: broker closed")

// Event announces that the ledger changed. Subscribers treat it as a signal
// to re-read availability; the fields are informational.
type Event struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	StoreID string    `json:"store_id,omitempty"`
	Day     string    `json:"day,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher announces ledger changes.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Broker fans events out to every open subscription.
type Broker interface {
	Publisher
	Subscribe(ctx context.Context) (*Subscription, error)
	Close() error
}

// Subscription receives events until closed. Delivery is coalescing: a slow
// reader sees at least one event after any burst, not necessarily all.
type Subscription struct {
	events   chan Event
	done     chan struct{}
	once     sync.Once
	stopOnce sync.Once
	release  func() error
	err      error
}

func newSubscription() *Subscription {
	return &Subscription{events: make(chan Event, 1), done: make(chan struct{})}
}

// Events is closed after Close or when the broker shuts down.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		s.stop()
		if s.release != nil {
			s.err = s.release()
		}
	})
	return s.err
}

// stop wakes the context watcher. The broker calls it directly when it shuts
// the subscription down itself.
func (s *Subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// offer delivers evt without blocking. When the buffer is full the pending
// event already signals a change, so evt is dropped.
func (s *Subscription) offer(evt Event) {
	select {
	case s.events <- evt:
	default:
	}
}
