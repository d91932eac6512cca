// Package ledger persists which books and reviews have already been indexed.
// It is the debounce layer: Pub/Sub delivers at least once, and the scrapers
// re-announce items they have seen before, so every write here is idempotent
// on the item's natural key.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dfennessey/book-recommender-indexer/internal/push"
)

// Config controls the Postgres connection pool behind the ledger.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the slice of pgxpool.Pool the store needs; pgxmock satisfies it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// Store reads and writes the debounce ledger.
type Store struct {
	pool pool
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(p pool) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("ledger is not configured")
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping ledger: %w", err)
	}
	return nil
}

// MarkBookIndexed records a book and reports whether it was previously
// unknown. A conflict on book_id means a duplicate delivery.
func (s *Store) MarkBookIndexed(ctx context.Context, book push.BookV1) (bool, error) {
	query := `
INSERT INTO indexed_books (book_id, book_title, indexed_at)
VALUES ($1, $2, $3)
ON CONFLICT (book_id) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, book.BookID, book.BookTitle, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("insert indexed book %d: %w", book.BookID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// FilterKnownBooks returns the subset of ids already present in the ledger.
func (s *Store) FilterKnownBooks(ctx context.Context, bookIDs []int64) (map[int64]bool, error) {
	known := make(map[int64]bool, len(bookIDs))
	if len(bookIDs) == 0 {
		return known, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT book_id FROM indexed_books WHERE book_id = ANY($1)`, bookIDs)
	if err != nil {
		return nil, fmt.Errorf("select known books: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan known book: %w", err)
		}
		known[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate known books: %w", err)
	}
	return known, nil
}

// BooksReadByUser returns the book IDs this user already has reviews for.
func (s *Store) BooksReadByUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT book_id FROM indexed_reviews WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("select user %d reviews: %w", userID, err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user review: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user reviews: %w", err)
	}
	return ids, nil
}

// MarkReviewsIndexed records a batch of reviews; duplicates are ignored.
func (s *Store) MarkReviewsIndexed(ctx context.Context, reviews []push.UserReviewV1) error {
	query := `
INSERT INTO indexed_reviews (user_id, book_id, user_rating, date_read, indexed_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, book_id) DO NOTHING`
	now := time.Now().UTC()
	for _, review := range reviews {
		if _, err := s.pool.Exec(ctx, query,
			review.UserID, review.BookID, review.UserRating, review.DateRead.Time, now,
		); err != nil {
			return fmt.Errorf("insert review user=%d book=%d: %w",
				review.UserID, review.BookID, err)
		}
	}
	return nil
}
