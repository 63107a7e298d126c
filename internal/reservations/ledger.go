package reservations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asperus/agenda/internal/availability"
)

// Ledger stores committed reservations and enforces slot uniqueness.
type Ledger interface {
	// Insert commits res, filling ID and CreatedAt. It returns ErrSlotTaken
	// when the slot key is already held.
	Insert(ctx context.Context, res *Reservation) error
	Booked(ctx context.Context, storeID, day string) ([]availability.BookedSlot, error)
	ListByDay(ctx context.Context, storeID, day string) ([]Reservation, error)
}

// InMemoryLedger is a mutex guarded ledger for local runs and tests.
type InMemoryLedger struct {
	mu    sync.Mutex
	byKey map[string]Reservation
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{byKey: make(map[string]Reservation)}
}

func (l *InMemoryLedger) Insert(ctx context.Context, res *Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := res.Key()
	if _, exists := l.byKey[key]; exists {
		return ErrSlotTaken
	}
	res.ID = uuid.New().String()
	res.CreatedAt = time.Now().UTC()
	l.byKey[key] = *res
	return nil
}

func (l *InMemoryLedger) Booked(ctx context.Context, storeID, day string) ([]availability.BookedSlot, error) {
	list, _ := l.ListByDay(ctx, storeID, day)
	out := make([]availability.BookedSlot, 0, len(list))
	for _, r := range list {
		out = append(out, availability.BookedSlot{Time: r.Time, Professional: r.Professional})
	}
	return out, nil
}

func (l *InMemoryLedger) ListByDay(ctx context.Context, storeID, day string) ([]Reservation, error) {
	l.mu.Lock()
	out := make([]Reservation, 0)
	for _, r := range l.byKey {
		if r.StoreID == storeID && r.Day == day {
			out = append(out, r)
		}
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Professional < out[j].Professional
	})
	return out, nil
}
