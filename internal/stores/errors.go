package stores

import "errors"

var (
	// ErrStoreNotFound is returned when no store matches the identifier
	ErrStoreNotFound = errors.New("store not found")

	// ErrInvalidStore is returned when a store profile fails validation
	ErrInvalidStore = errors.New("invalid store")

	// ErrInvalidClock is returned for times that are not HH:MM
	ErrInvalidClock = errors.New("time must be HH:MM")
)
