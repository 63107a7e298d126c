package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asperus/agenda/internal/availability"
	"github.com/asperus/agenda/internal/events"
)

const uniqueViolation = "23505"

type ledgerDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresLedger stores reservations in Postgres. The reservations table has
// a unique constraint on (store_id, day, slot_time, professional); each insert
// writes a reservation.changed outbox row in the same transaction.
type PostgresLedger struct {
	db ledgerDB
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	if pool == nil {
		panic("reservations: pgx pool required")
	}
	return &PostgresLedger{db: pool}
}

func newPostgresLedgerWithDB(db ledgerDB) *PostgresLedger {
	if db == nil {
		panic("reservations: db required")
	}
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Insert(ctx context.Context, res *Reservation) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reservations: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New()
	query := `
		INSERT INTO reservations (id, store_id, day, slot_time, professional, service, customer_name, customer_contact)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := tx.QueryRow(ctx, query,
		id,
		res.StoreID,
		res.Day,
		res.Time,
		res.Professional,
		res.Service,
		res.Name,
		res.Contact,
	).Scan(&createdAt); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("reservations: insert: %w", err)
	}

	if _, err := events.Append(ctx, tx, res.StoreID, events.ReservationChangedV1{
		ReservationID: id.String(),
		StoreID:       res.StoreID,
		Day:           res.Day,
		Time:          res.Time,
		Professional:  res.Professional,
		OccurredAt:    createdAt,
	}); err != nil {
		return fmt.Errorf("reservations: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("reservations: commit: %w", err)
	}
	res.ID = id.String()
	res.CreatedAt = createdAt
	return nil
}

func (l *PostgresLedger) Booked(ctx context.Context, storeID, day string) ([]availability.BookedSlot, error) {
	query := `
		SELECT slot_time, professional
		FROM reservations
		WHERE store_id = $1 AND day = $2
		ORDER BY slot_time, professional
	`
	rows, err := l.db.Query(ctx, query, storeID, day)
	if err != nil {
		return nil, fmt.Errorf("reservations: booked: %w", err)
	}
	defer rows.Close()

	out := make([]availability.BookedSlot, 0)
	for rows.Next() {
		var b availability.BookedSlot
		if err := rows.Scan(&b.Time, &b.Professional); err != nil {
			return nil, fmt.Errorf("reservations: scan booked: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (l *PostgresLedger) ListByDay(ctx context.Context, storeID, day string) ([]Reservation, error) {
	query := `
		SELECT id, store_id, day, slot_time, professional, service, customer_name, customer_contact, created_at
		FROM reservations
		WHERE store_id = $1 AND day = $2
		ORDER BY slot_time, professional
	`
	rows, err := l.db.Query(ctx, query, storeID, day)
	if err != nil {
		return nil, fmt.Errorf("reservations: list: %w", err)
	}
	defer rows.Close()

	out := make([]Reservation, 0)
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.StoreID, &r.Day, &r.Time, &r.Professional, &r.Service, &r.Name, &r.Contact, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("reservations: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
