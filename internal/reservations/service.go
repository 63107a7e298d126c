package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/asperus/agenda/internal/availability"
	"github.com/asperus/agenda/internal/changefeed"
	"github.com/asperus/agenda/internal/observability/metrics"
	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

var tracer = otel.Tracer("agenda.internal.reservations")

// StoreGetter loads a single store profile.
type StoreGetter interface {
	Get(ctx context.Context, id string) (*stores.Store, error)
}

// ConfirmationNotifier is told about every committed reservation.
type ConfirmationNotifier interface {
	ReservationConfirmed(ctx context.Context, store stores.Store, res Reservation)
}

// Service commits reservations.
type Service struct {
	stores    StoreGetter
	ledger    Ledger
	publisher changefeed.Publisher
	notifier  ConfirmationNotifier
	now       func() time.Time
	logger    *logging.Logger
	metrics   *metrics.BookingMetrics
}

func NewService(storeRepo StoreGetter, ledger Ledger, logger *logging.Logger) *Service {
	if storeRepo == nil || ledger == nil {
		panic("reservations: store repository and ledger required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{stores: storeRepo, ledger: ledger, now: time.Now, logger: logger}
}

// WithPublisher announces each commit directly. Leave unset when the ledger
// writes to the outbox instead.
func (s *Service) WithPublisher(p changefeed.Publisher) *Service {
	s.publisher = p
	return s
}

func (s *Service) WithNotifier(n ConfirmationNotifier) *Service {
	s.notifier = n
	return s
}

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

// Book validates req against the store and commits it. Exactly one of any
// number of concurrent calls for the same slot succeeds; the rest get
// ErrSlotTaken.
func (s *Service) Book(ctx context.Context, req Request) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservations.book")
	defer span.End()

	req.Normalize()
	span.SetAttributes(
		attribute.String("agenda.store_id", req.StoreID),
		attribute.String("agenda.day", req.Date),
		attribute.String("agenda.time", req.Time),
		attribute.String("agenda.professional", req.Professional),
	)

	res, err := s.book(ctx, req)
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrSlotTaken):
		outcome = "conflict"
	case isInvalid(err):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	s.metrics.ObserveReservation(outcome)
	if err != nil {
		span.RecordError(err)
		if outcome == "error" {
			s.logger.Error("reservation failed", "error", err, "store_id", req.StoreID, "day", req.Date)
		} else {
			s.logger.Info("reservation rejected", "reason", err.Error(), "store_id", req.StoreID, "day", req.Date, "time", req.Time)
		}
		return nil, err
	}
	return res, nil
}

func (s *Service) book(ctx context.Context, req Request) (*Reservation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	store, err := s.stores.Get(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}

	roster := store.Roster()
	if !roster.Professionals.Contains(req.Professional) {
		return nil, fmt.Errorf("%w: %s", ErrProfessionalNotFound, req.Professional)
	}
	if len(roster.Services) > 0 && !roster.Services.Contains(req.Service) {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotOffered, req.Service)
	}
	if !availability.IsCandidate(*store, req.Time) {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotOffered, req.Time)
	}
	if s.inPast(req.Date, req.Time) {
		return nil, ErrSlotInPast
	}

	res := req.reservation()
	if err := s.ledger.Insert(ctx, &res); err != nil {
		return nil, err
	}
	s.logger.Info("reservation committed", "reservation_id", res.ID, "store_id", res.StoreID, "day", res.Day, "time", res.Time, "professional", res.Professional)

	if s.publisher != nil {
		evt := changefeed.Event{ID: res.ID, Kind: changefeed.KindReservationChanged, StoreID: res.StoreID, Day: res.Day}
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("reservation change not published", "error", err, "reservation_id", res.ID)
		}
	}
	if s.notifier != nil {
		s.notifier.ReservationConfirmed(ctx, *store, res)
	}
	return &res, nil
}

func (s *Service) inPast(day, clock string) bool {
	now := s.now()
	today := now.Format(availability.DayLayout)
	if day != today {
		return day < today
	}
	minutes, err := stores.ParseClock(clock)
	if err != nil {
		return false
	}
	return minutes <= now.Hour()*60+now.Minute()
}

// ListByDay returns the reservations of a store on day.
func (s *Service) ListByDay(ctx context.Context, storeID, day string) ([]Reservation, error) {
	if _, err := availability.ParseDay(day, time.UTC); err != nil {
		return nil, err
	}
	return s.ledger.ListByDay(ctx, storeID, day)
}

func isInvalid(err error) bool {
	for _, target := range []error{
		ErrInvalidRequest,
		availability.ErrInvalidDay,
		stores.ErrInvalidClock,
		stores.ErrStoreNotFound,
		ErrProfessionalNotFound,
		ErrServiceNotOffered,
		ErrSlotNotOffered,
		ErrSlotInPast,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
