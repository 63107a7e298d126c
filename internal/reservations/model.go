// Package reservations commits bookings, at most one per store, day, time and professional.
package reservations

import (
	"strings"
	"time"

	"github.com/asperus/agenda/internal/availability"
	"github.com/asperus/agenda/internal/stores"
)

// Reservation is a committed booking. The upper-case keys are the
// confirmation fields clients echo back to the customer.
type Reservation struct {
	ID           string    `json:"id"`
	StoreID      string    `json:"store_id"`
	Day          string    `json:"DATE"`
	Time         string    `json:"TIME"`
	Professional string    `json:"PROFESSIONAL,omitempty"`
	Service      string    `json:"SERVICE"`
	Name         string    `json:"NAME"`
	Contact      string    `json:"CONTACT"`
	CreatedAt    time.Time `json:"created_at"`
}

// Key identifies the slot the reservation occupies.
func (r Reservation) Key() string {
	return r.StoreID + "|" + r.Day + "|" + r.Time + "|" + r.Professional
}

// Request is the body of POST /functions/book_slot. loja_id is accepted as an
// alias of store_id.
type Request struct {
	StoreID      string `json:"store_id"`
	LojaID       string `json:"loja_id,omitempty"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Name         string `json:"name"`
	Contact      string `json:"contact"`
	Professional string `json:"professional"`
	Service      string `json:"service"`
}

// Normalize trims every field, resolves the store alias and strips seconds
// from the time.
func (r *Request) Normalize() {
	r.StoreID = strings.TrimSpace(r.StoreID)
	if r.StoreID == "" {
		r.StoreID = strings.TrimSpace(r.LojaID)
	}
	r.LojaID = ""
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	if clock, err := stores.NormalizeClock(r.Time); err == nil {
		r.Time = clock
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Contact = strings.TrimSpace(r.Contact)
	r.Professional = strings.TrimSpace(r.Professional)
	r.Service = strings.TrimSpace(r.Service)
}

// Validate checks required fields and formats. Call Normalize first.
func (r Request) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"store_id", r.StoreID},
		{"date", r.Date},
		{"time", r.Time},
		{"name", r.Name},
		{"contact", r.Contact},
		{"professional", r.Professional},
		{"service", r.Service},
	}
	for _, f := range required {
		if f.value == "" {
			return &FieldError{Field: f.field}
		}
	}
	if _, err := availability.ParseDay(r.Date, time.UTC); err != nil {
		return err
	}
	if _, err := stores.ParseClock(r.Time); err != nil {
		return err
	}
	return nil
}

func (r Request) reservation() Reservation {
	return Reservation{
		StoreID:      r.StoreID,
		Day:          r.Date,
		Time:         r.Time,
		Professional: r.Professional,
		Service:      r.Service,
		Name:         r.Name,
		Contact:      r.Contact,
	}
}
