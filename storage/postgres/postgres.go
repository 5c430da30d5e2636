// Package postgres provides a PostgreSQL implementation of the
// subscription.Store interface. Uniqueness of billing customers and tier
// prices is enforced by constraints rather than application-level locking:
// conflicting inserts surface as ErrCustomerExists or a lost price claim,
// and the service layer re-reads the winning row.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/subscription"
)

// Store implements subscription.Store using PostgreSQL
type Store struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL store configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL store adapter
func New(ctx context.Context, config Config) (*Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, config: config}, nil
}

// NewWithPool creates a store on an existing pool. The caller keeps
// ownership of the pool.
func NewWithPool(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InitSchema creates the tables and constraints the store relies on.
// The unique primary keys on billing_customers.user_id and tiers.id are
// load-bearing: get-or-create correctness depends on them.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS billing_customers (
			user_id              TEXT PRIMARY KEY,
			external_customer_id TEXT NOT NULL,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS tiers (
			id                TEXT PRIMARY KEY,
			creator_id        TEXT NOT NULL,
			title             TEXT NOT NULL,
			price             NUMERIC(10,2) NOT NULL,
			external_price_id TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS subscriptions (
			id                       TEXT PRIMARY KEY,
			user_id                  TEXT NOT NULL,
			creator_id               TEXT NOT NULL,
			tier_id                  TEXT NOT NULL,
			status                   TEXT NOT NULL,
			external_subscription_id TEXT NOT NULL DEFAULT '',
			created_at               TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_subscriptions_user_creator
			ON subscriptions (user_id, creator_id) WHERE status IN ('pending', 'active');
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// GetBillingCustomer implements subscription.Store
func (s *Store) GetBillingCustomer(ctx context.Context, userID string) (*subscription.BillingCustomer, error) {
	var customer subscription.BillingCustomer

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, external_customer_id, created_at
			FROM billing_customers WHERE user_id = $1`,
		userID).Scan(
		&customer.UserID,
		&customer.ExternalCustomerID,
		&customer.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subscription.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get billing customer: %w", err)
	}

	return &customer, nil
}

// CreateBillingCustomer implements subscription.Store
func (s *Store) CreateBillingCustomer(ctx context.Context, customer *subscription.BillingCustomer) error {
	if customer == nil || customer.UserID == "" {
		return fmt.Errorf("invalid billing customer")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO billing_customers (user_id, external_customer_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO NOTHING`,
		customer.UserID, customer.ExternalCustomerID, customer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create billing customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrCustomerExists
	}
	return nil
}

// GetTier implements subscription.Store
func (s *Store) GetTier(ctx context.Context, tierID string) (*subscription.Tier, error) {
	var tier subscription.Tier

	err := s.pool.QueryRow(ctx,
		`SELECT id, creator_id, title, price, external_price_id
			FROM tiers WHERE id = $1`,
		tierID).Scan(
		&tier.ID,
		&tier.CreatorID,
		&tier.Title,
		&tier.Price,
		&tier.ExternalPriceID,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subscription.ErrTierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}

	return &tier, nil
}

// ClaimTierPrice implements subscription.Store. The claim only lands on a
// tier with no price yet; either way the winning id is read back in the same
// round trip.
func (s *Store) ClaimTierPrice(ctx context.Context, tierID, externalPriceID string) (string, error) {
	var winner string

	err := s.pool.QueryRow(ctx,
		`UPDATE tiers
			SET external_price_id = CASE
				WHEN external_price_id = '' THEN $2
				ELSE external_price_id
			END
			WHERE id = $1
			RETURNING external_price_id`,
		tierID, externalPriceID).Scan(&winner)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", subscription.ErrTierNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to claim tier price: %w", err)
	}

	return winner, nil
}

// CreateSubscription implements subscription.Store
func (s *Store) CreateSubscription(ctx context.Context, record *subscription.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("invalid subscription record")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions
			(id, user_id, creator_id, tier_id, status, external_subscription_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.UserID, record.CreatorID, record.TierID,
		string(record.Status), record.ExternalSubscriptionID, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetSubscription implements subscription.Store
func (s *Store) GetSubscription(ctx context.Context, id string) (*subscription.Record, error) {
	record, err := s.scanRecord(s.pool.QueryRow(ctx,
		`SELECT id, user_id, creator_id, tier_id, status, external_subscription_id, created_at
			FROM subscriptions WHERE id = $1`,
		id))
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetActiveSubscription implements subscription.Store
func (s *Store) GetActiveSubscription(ctx context.Context, userID, creatorID string) (*subscription.Record, error) {
	record, err := s.scanRecord(s.pool.QueryRow(ctx,
		`SELECT id, user_id, creator_id, tier_id, status, external_subscription_id, created_at
			FROM subscriptions
			WHERE user_id = $1 AND creator_id = $2 AND status IN ('pending', 'active')
			ORDER BY created_at DESC
			LIMIT 1`,
		userID, creatorID))
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListActiveSubscriptions implements subscription.Store
func (s *Store) ListActiveSubscriptions(ctx context.Context, userID string) ([]*subscription.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, creator_id, tier_id, status, external_subscription_id, created_at
			FROM subscriptions
			WHERE user_id = $1 AND status IN ('pending', 'active')
			ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var records []*subscription.Record
	for rows.Next() {
		record, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpdateSubscriptionStatus implements subscription.Store
func (s *Store) UpdateSubscriptionStatus(ctx context.Context, id string, status subscription.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrSubscriptionNotFound
	}
	return nil
}

// SeedTier inserts or updates a tier row; price metadata comes from the
// creator-facing side of the platform.
func (s *Store) SeedTier(ctx context.Context, tier *subscription.Tier) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tiers (id, creator_id, title, price, external_price_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				creator_id = EXCLUDED.creator_id,
				title = EXCLUDED.title,
				price = EXCLUDED.price`,
		tier.ID, tier.CreatorID, tier.Title, tier.Price, tier.ExternalPriceID,
	)
	if err != nil {
		return fmt.Errorf("failed to seed tier: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRecord(row rowScanner) (*subscription.Record, error) {
	var record subscription.Record
	var status string

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.CreatorID,
		&record.TierID,
		&status,
		&record.ExternalSubscriptionID,
		&record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}

	record.Status = subscription.Status(status)
	return &record, nil
}
