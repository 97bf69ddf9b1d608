package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Sentinel errors shared by all store files. Services wrap these into
// the user-facing taxonomy.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStatusConflict    = errors.New("order status conflict")
	ErrDuplicateTxHash   = errors.New("transaction hash already used")
)

type Store struct {
	db *sqlx.DB
}

// NewStore connects to Postgres and bootstraps the schema.
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trainers (
			id BIGSERIAL PRIMARY KEY,
			wallet_address VARCHAR(64) NOT NULL UNIQUE,
			username VARCHAR(64) NOT NULL,
			display_name VARCHAR(16),
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			last_catch_at TIMESTAMPTZ,
			last_login_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS cards (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(200) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price_eth DECIMAL(20, 8) NOT NULL CHECK (price_eth >= 0),
			image_url TEXT NOT NULL DEFAULT '',
			rarity VARCHAR(30) NOT NULL DEFAULT '',
			set_name VARCHAR(100) NOT NULL DEFAULT '',
			card_number VARCHAR(30) NOT NULL DEFAULT '',
			condition VARCHAR(30) NOT NULL DEFAULT '',
			stock_quantity INT NOT NULL DEFAULT 1 CHECK (stock_quantity >= 0),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			trainer_id BIGINT NOT NULL REFERENCES trainers(id),
			card_id BIGINT NOT NULL REFERENCES cards(id),
			quantity INT NOT NULL CHECK (quantity >= 1),
			total_price_eth DECIMAL(20, 8) NOT NULL CHECK (total_price_eth >= 0),
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			tx_hash VARCHAR(80),
			buyer_wallet VARCHAR(64) NOT NULL,
			shipping_info JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Sparse uniqueness: a payment can back at most one order.
		`CREATE UNIQUE INDEX IF NOT EXISTS orders_tx_hash_uniq
			ON orders (tx_hash) WHERE tx_hash IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS caught_entries (
			id BIGSERIAL PRIMARY KEY,
			trainer_id BIGINT NOT NULL REFERENCES trainers(id) ON DELETE CASCADE,
			species_id INT NOT NULL,
			species_name VARCHAR(64) NOT NULL,
			sprite_url TEXT NOT NULL DEFAULT '',
			caught_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (trainer_id, species_id)
		)`,

		`CREATE TABLE IF NOT EXISTS badges (
			trainer_id BIGINT NOT NULL REFERENCES trainers(id) ON DELETE CASCADE,
			badge_id VARCHAR(40) NOT NULL,
			unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (trainer_id, badge_id)
		)`,

		`CREATE TABLE IF NOT EXISTS processed_events (
			event_id VARCHAR(64) PRIMARY KEY,
			event_type VARCHAR(40) NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	var errs []error
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// failure, optionally on a specific constraint name.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
