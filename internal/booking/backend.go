// Package booking is the customer-side coordination core: it caches the store
// directory, keeps a six-day slot map fresh, tracks the selected slot, commits
// reservations and follows the change feed.
package booking

import (
	"context"

	"github.com/asperus/agenda/internal/availability"
	"github.com/asperus/agenda/internal/changefeed"
	"github.com/asperus/agenda/internal/reservations"
	"github.com/asperus/agenda/internal/stores"
)

// Identity is what a session is looking at. The feed is subscribed per identity.
type Identity struct {
	StoreID      string
	Professional string
	Window       availability.Window
}

// Feed is a live subscription to reservation changes.
type Feed interface {
	Events() <-chan changefeed.Event
	Close() error
}

// Backend is everything the session needs from the booking services.
type Backend interface {
	ListStores(ctx context.Context) ([]stores.Store, error)
	QuerySlots(ctx context.Context, storeID, day, professional string) ([]string, error)
	Reserve(ctx context.Context, req reservations.Request) (*reservations.Reservation, error)
	Subscribe(ctx context.Context, id Identity) (Feed, error)
}

// StoreLister lists the store directory.
type StoreLister interface {
	List(ctx context.Context) ([]stores.Store, error)
}

// SlotQuerier answers one day's slot query.
type SlotQuerier interface {
	QuerySlots(ctx context.Context, storeID, day, professional string) ([]string, error)
}

// Booker commits reservations.
type Booker interface {
	Book(ctx context.Context, req reservations.Request) (*reservations.Reservation, error)
}

// LocalBackend calls the in-process services directly.
type LocalBackend struct {
	stores StoreLister
	slots  SlotQuerier
	booker Booker
	broker changefeed.Broker
}

// NewLocalBackend wires the session to in-process services. broker may be nil,
// in which case Subscribe fails with ErrFeedUnavailable.
func NewLocalBackend(storeList StoreLister, slots SlotQuerier, booker Booker, broker changefeed.Broker) *LocalBackend {
	return &LocalBackend{stores: storeList, slots: slots, booker: booker, broker: broker}
}

func (b *LocalBackend) ListStores(ctx context.Context) ([]stores.Store, error) {
	return b.stores.List(ctx)
}

func (b *LocalBackend) QuerySlots(ctx context.Context, storeID, day, professional string) ([]string, error) {
	return b.slots.QuerySlots(ctx, storeID, day, professional)
}

func (b *LocalBackend) Reserve(ctx context.Context, req reservations.Request) (*reservations.Reservation, error) {
	return b.booker.Book(ctx, req)
}

// Subscribe ignores the identity; every change reaches every viewer.
func (b *LocalBackend) Subscribe(ctx context.Context, _ Identity) (Feed, error) {
	if b.broker == nil {
		return nil, ErrFeedUnavailable
	}
	sub, err := b.broker.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
