package booking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asperus/agenda/internal/reservations"
)

var (
	// ErrDirectoryUnavailable means the store list could not be fetched. The
	// cached list is left as it was.
	ErrDirectoryUnavailable = errors.New("booking: store directory unavailable")
	// ErrSlotQueryFailed marks one day's slot query failure. That day degrades to empty.
	ErrSlotQueryFailed = errors.New("booking: slot query failed")
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("booking: validation failed")
	// ErrSlotConflict means the reservation lost a race for its slot.
	ErrSlotConflict = errors.New("booking: slot no longer available")
	// ErrReservationFailed is wrapped by every ReservationError.
	ErrReservationFailed = errors.New("booking: reservation failed")
	// ErrSlotUnavailable rejects a selection that is not in the current slot map.
	ErrSlotUnavailable = errors.New("booking: slot is not open")
	ErrNoStore         = errors.New("booking: no store selected")
	ErrFeedUnavailable = errors.New("booking: change feed unavailable")
	ErrClosed          = errors.New("booking: session closed")
)

// Fields reported by ValidationError, in the order they are checked.
const (
	FieldName         = "name"
	FieldContact      = "contact"
	FieldProfessional = "professional"
	FieldService      = "service"
	FieldSlot         = "slot"
)

// ValidationError reports the first unmet booking precondition.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: %s is required", e.Field)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// SlotQueryError is logged when a single day of the window fails to load.
type SlotQueryError struct {
	Day string
	Err error
}

func (e *SlotQueryError) Error() string {
	return fmt.Sprintf("booking: slot query failed for %s: %v", e.Day, e.Err)
}

func (e *SlotQueryError) Unwrap() []error { return []error{ErrSlotQueryFailed, e.Err} }

// ReservationError carries the backend's message verbatim.
type ReservationError struct {
	Message string
	Err     error
}

func (e *ReservationError) Error() string {
	if e.Message == "" {
		return ErrReservationFailed.Error()
	}
	return e.Message
}

func (e *ReservationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrReservationFailed}
	}
	return []error{ErrReservationFailed, e.Err}
}

// isConflict reports whether a reserve failure is a uniqueness violation.
// Remote backends only give a message, so "duplicate" in the text counts as
// well.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, reservations.ErrSlotTaken) || errors.Is(err, ErrSlotConflict) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate")
}

// Notice turns a session error into the text shown to the customer.
func Notice(err error) string {
	if err == nil {
		return ""
	}
	var validation *ValidationError
	var reservation *ReservationError
	switch {
	case errors.As(err, &validation):
		switch validation.Field {
		case FieldName, FieldContact:
			return "Please fill in your name and contact."
		case FieldProfessional:
			return "Please choose a professional."
		case FieldService:
			return "Please choose a service."
		default:
			return "Please choose a day and time."
		}
	case errors.Is(err, ErrSlotConflict):
		return "This slot is no longer available. Please choose another time."
	case errors.As(err, &reservation):
		return reservation.Error()
	case errors.Is(err, ErrDirectoryUnavailable):
		return "Could not load stores right now. Please try again."
	case errors.Is(err, ErrSlotUnavailable):
		return "That time is not available."
	case errors.Is(err, ErrNoStore):
		return "Please choose a store."
	default:
		return "Something went wrong. Please try again."
	}
}
