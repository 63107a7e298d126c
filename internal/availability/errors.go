package availability

import "errors"

var (
	// ErrInvalidDay is returned when a day is not a YYYY-MM-DD calendar date
	ErrInvalidDay = errors.New("day must be YYYY-MM-DD")

	// ErrStoreRequired is returned when a query has no store id
	ErrStoreRequired = errors.New("store id is required")
)
