package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/asperus/agenda/internal/observability/metrics"
	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

var tracer = otel.Tracer("agenda.internal.availability")

// BookedSlot is one committed (time, professional) pair on a day.
type BookedSlot struct {
	Time         string
	Professional string
}

// Ledger reports what is already reserved.
type Ledger interface {
	Booked(ctx context.Context, storeID, day string) ([]BookedSlot, error)
}

// StoreGetter loads a single store profile.
type StoreGetter interface {
	Get(ctx context.Context, id string) (*stores.Store, error)
}

// Service answers slot queries.
type Service struct {
	stores  StoreGetter
	ledger  Ledger
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

// NewService creates a slot query service.
func NewService(storeRepo StoreGetter, ledger Ledger, logger *logging.Logger) *Service {
	if storeRepo == nil || ledger == nil {
		panic("availability: store repository and ledger required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{stores: storeRepo, ledger: ledger, now: time.Now, logger: logger}
}

// WithClock overrides the clock used to prune past slots.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) WithMetrics(m *metrics.BookingMetrics) *Service {
	s.metrics = m
	return s
}

// Now exposes the service clock.
func (s *Service) Now() time.Time { return s.now() }

// QuerySlots returns the still bookable HH:MM slots of storeID on day. With a
// professional, only that professional's free times are returned and a name
// outside the roster yields nothing. Without one, a time is open while at
// least one roster professional is free.
func (s *Service) QuerySlots(ctx context.Context, storeID, day, professional string) (slots []string, err error) {
	ctx, span := tracer.Start(ctx, "availability.query_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("agenda.store_id", storeID),
		attribute.String("agenda.day", day),
		attribute.String("agenda.professional", professional),
	)
	started := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
		}
		s.metrics.ObserveSlotQuery(status, time.Since(started))
	}()

	storeID = strings.TrimSpace(storeID)
	professional = strings.TrimSpace(professional)
	if storeID == "" {
		return nil, ErrStoreRequired
	}
	now := s.now()
	dayTime, err := ParseDay(day, now.Location())
	if err != nil {
		return nil, err
	}
	store, err := s.stores.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}

	today := now.Format(DayLayout)
	day = dayTime.Format(DayLayout)
	if day < today {
		return []string{}, nil
	}

	roster := store.Roster().Professionals
	if professional != "" && !roster.Contains(professional) {
		return []string{}, nil
	}

	candidates, err := Generate(*store)
	if err != nil {
		return nil, err
	}
	booked, err := s.ledger.Booked(ctx, storeID, day)
	if err != nil {
		return nil, fmt.Errorf("availability: load reservations: %w", err)
	}

	nowMinutes := -1
	if day == today {
		nowMinutes = now.Hour()*60 + now.Minute()
	}
	taken := indexBooked(booked)

	out := make([]string, 0, len(candidates))
	for _, clock := range candidates {
		if nowMinutes >= 0 {
			if minutes, err := stores.ParseClock(clock); err == nil && minutes <= nowMinutes {
				continue
			}
		}
		if isOpen(clock, professional, roster, taken) {
			out = append(out, clock)
		}
	}
	return out, nil
}

// QueryWindow runs QuerySlots for every day of the window concurrently.
func (s *Service) QueryWindow(ctx context.Context, storeID string, window Window, professional string) (map[string][]string, error) {
	results := make([][]string, len(window))
	g, gctx := errgroup.WithContext(ctx)
	for i, day := range window {
		g.Go(func() error {
			slots, err := s.QuerySlots(gctx, storeID, day, professional)
			if err != nil {
				return err
			}
			results[i] = slots
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(window))
	for i, day := range window {
		out[day] = results[i]
	}
	return out, nil
}

// takenIndex maps a clock time to the professionals holding it.
type takenIndex map[string]map[string]struct{}

func indexBooked(booked []BookedSlot) takenIndex {
	idx := make(takenIndex, len(booked))
	for _, b := range booked {
		clock, err := stores.NormalizeClock(b.Time)
		if err != nil {
			continue
		}
		if idx[clock] == nil {
			idx[clock] = make(map[string]struct{})
		}
		idx[clock][b.Professional] = struct{}{}
	}
	return idx
}

func isOpen(clock, professional string, roster stores.Names, taken takenIndex) bool {
	holders := taken[clock]
	if professional != "" {
		_, busy := holders[professional]
		return !busy
	}
	if len(roster) == 0 {
		return len(holders) == 0
	}
	for _, name := range roster {
		if _, busy := holders[name]; !busy {
			return true
		}
	}
	return false
}
