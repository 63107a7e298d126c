package availability

import (
	"fmt"

	"github.com/asperus/agenda/internal/stores"
)

// Generate lists every candidate start time for a store's working day, from
// opening time stepping by the slot interval. A slot must start before
// closing time.
func Generate(store stores.Store) ([]string, error) {
	opening, closing, interval, err := store.Hours()
	if err != nil {
		return nil, fmt.Errorf("availability: store %s hours: %w", store.ID, err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("availability: store %s has non-positive slot interval", store.ID)
	}
	if closing <= opening {
		return nil, fmt.Errorf("availability: store %s closes at or before opening: %w", store.ID, stores.ErrInvalidStore)
	}
	out := make([]string, 0, (closing-opening)/interval+1)
	for t := opening; t < closing; t += interval {
		out = append(out, stores.FormatClock(t))
	}
	return out, nil
}

// IsCandidate reports whether clock is one of the generated slots of store.
func IsCandidate(store stores.Store, clock string) bool {
	slots, err := Generate(store)
	if err != nil {
		return false
	}
	for _, s := range slots {
		if s == clock {
			return true
		}
	}
	return false
}
