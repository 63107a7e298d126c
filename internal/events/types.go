package events

import "time"

// Event is a versioned domain event stored in the outbox.
type Event interface {
	EventType() string
}

const TypeReservationChanged = "reservation.changed"

// ReservationChangedV1 is written whenever the reservation ledger changes.
type ReservationChangedV1 struct {
	ReservationID string    `json:"reservation_id"`
	StoreID       string    `json:"store_id"`
	Day           string    `json:"day"`
	Time          string    `json:"time"`
	Professional  string    `json:"professional,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (ReservationChangedV1) EventType() string { return TypeReservationChanged }
