// Package stores holds the store directory: profiles, roster parsing and storage.
package stores

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	DefaultOpeningTime  = "09:00"
	DefaultClosingTime  = "18:00"
	DefaultSlotInterval = 30
)

// Store is a bookable location. Professionals and Services keep the raw
// free-text fields exactly as entered; use Roster to get parsed lists.
type Store struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Address             string    `json:"address,omitempty"`
	Phone               string    `json:"phone,omitempty"`
	MapsURL             string    `json:"maps_url,omitempty"`
	OpeningTime         string    `json:"opening_time,omitempty"`
	ClosingTime         string    `json:"closing_time,omitempty"`
	SlotIntervalMinutes int       `json:"slot_interval_minutes,omitempty"`
	Professionals       string    `json:"professionals,omitempty"`
	Services            string    `json:"services,omitempty"`
	Instructions        string    `json:"instructions,omitempty"`
	UpdatedAt           time.Time `json:"updated_at,omitempty"`
}

// Roster parses the professional and service fields.
func (s Store) Roster() Roster {
	return Roster{
		Professionals: ParseNames(s.Professionals),
		Services:      ParseNames(s.Services),
	}
}

// Hours returns opening and closing minutes after midnight and the slot
// granularity, applying defaults for blank fields.
func (s Store) Hours() (opening, closing, interval int, err error) {
	openText := s.OpeningTime
	if strings.TrimSpace(openText) == "" {
		openText = DefaultOpeningTime
	}
	closeText := s.ClosingTime
	if strings.TrimSpace(closeText) == "" {
		closeText = DefaultClosingTime
	}
	if opening, err = ParseClock(openText); err != nil {
		return 0, 0, 0, fmt.Errorf("opening_time: %w", err)
	}
	if closing, err = ParseClock(closeText); err != nil {
		return 0, 0, 0, fmt.Errorf("closing_time: %w", err)
	}
	interval = s.SlotIntervalMinutes
	if interval == 0 {
		interval = DefaultSlotInterval
	}
	return opening, closing, interval, nil
}

// Validate checks the profile before it is stored.
func (s *Store) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidStore)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidStore)
	}
	if s.SlotIntervalMinutes < 0 {
		return fmt.Errorf("%w: slot_interval_minutes must be positive", ErrInvalidStore)
	}
	opening, closing, _, err := s.Hours()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStore, err)
	}
	if opening >= closing {
		return fmt.Errorf("%w: opening_time must be before closing_time", ErrInvalidStore)
	}
	return nil
}

// SortStores orders stores by display name, case-insensitively, then by id.
// The directory always returns this order, so "first store" is stable.
func SortStores(list []Store) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := strings.ToLower(list[i].Name), strings.ToLower(list[j].Name)
		if a != b {
			return a < b
		}
		return list[i].ID < list[j].ID
	})
}

// Find returns the store with the given id from list.
func Find(list []Store, id string) (Store, bool) {
	for _, s := range list {
		if s.ID == id {
			return s, true
		}
	}
	return Store{}, false
}
