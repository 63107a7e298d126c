package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores the directory in the stores table.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("stores: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(db querier) *PostgresRepository {
	if db == nil {
		panic("stores: querier required")
	}
	return &PostgresRepository{db: db}
}

const storeColumns = `id, name, address, phone, maps_url, opening_time, closing_time,
		slot_interval_minutes, professionals, services, instructions, updated_at`

func (r *PostgresRepository) List(ctx context.Context) ([]Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores ORDER BY lower(name), id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("stores: list: %w", err)
	}
	defer rows.Close()

	out := make([]Store, 0)
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stores: list rows: %w", err)
	}
	// collation may differ from Go's byte order
	SortStores(out)
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE id = $1`
	s, err := scanStore(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, store *Store) error {
	if err := store.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO stores (id, name, address, phone, maps_url, opening_time, closing_time,
			slot_interval_minutes, professionals, services, instructions, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			maps_url = EXCLUDED.maps_url,
			opening_time = EXCLUDED.opening_time,
			closing_time = EXCLUDED.closing_time,
			slot_interval_minutes = EXCLUDED.slot_interval_minutes,
			professionals = EXCLUDED.professionals,
			services = EXCLUDED.services,
			instructions = EXCLUDED.instructions,
			updated_at = now()
		RETURNING updated_at
	`
	var updatedAt time.Time
	if err := r.db.QueryRow(ctx, query,
		store.ID,
		store.Name,
		store.Address,
		store.Phone,
		store.MapsURL,
		store.OpeningTime,
		store.ClosingTime,
		store.SlotIntervalMinutes,
		store.Professionals,
		store.Services,
		store.Instructions,
	).Scan(&updatedAt); err != nil {
		return fmt.Errorf("stores: upsert: %w", err)
	}
	store.UpdatedAt = updatedAt
	return nil
}

func scanStore(row pgx.Row) (Store, error) {
	var s Store
	if err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Address,
		&s.Phone,
		&s.MapsURL,
		&s.OpeningTime,
		&s.ClosingTime,
		&s.SlotIntervalMinutes,
		&s.Professionals,
		&s.Services,
		&s.Instructions,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Store{}, err
		}
		return Store{}, fmt.Errorf("stores: scan: %w", err)
	}
	return s, nil
}
