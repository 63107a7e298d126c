package reservations

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotTaken is returned when (store, day, time, professional) is already
	// reserved. The message keeps the "duplicate key" wording remote clients
	// classify conflicts by.
	ErrSlotTaken = errors.New("duplicate key: slot already reserved")

	ErrInvalidRequest       = errors.New("invalid reservation request")
	ErrProfessionalNotFound = errors.New("professional does not work at this store")
	ErrServiceNotOffered    = errors.New("service is not offered at this store")
	ErrSlotNotOffered       = errors.New("time is not a bookable slot")
	ErrSlotInPast           = errors.New("slot is in the past")
)

// FieldError names the request field that failed validation.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s is required", ErrInvalidRequest, e.Field)
}

func (e *FieldError) Unwrap() error { return ErrInvalidRequest }
