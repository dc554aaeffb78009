package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/cases"

	"github.com/clientportal/portal/internal/platform/db"
	"github.com/clientportal/portal/internal/shared"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the portal's SQL against a pool or a transaction.
type Queries struct {
	db DBTX
}

// NewQueries wraps any DBTX.
func NewQueries(conn DBTX) *Queries {
	return &Queries{db: conn}
}

// Store is the pool-backed entry point that can also open transactions.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

// New constructs a Store over pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Queries: NewQueries(pool), pool: pool}
}

// WithTx runs fn inside a single RepeatableRead transaction. Any error from fn
// rolls the whole unit back.
func (s *Store) WithTx(ctx context.Context, fn func(*Queries) error) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(NewQueries(tx))
	})
	if retryable(err) {
		return fmt.Errorf("%w: concurrent update, retry", shared.ErrConflict)
	}
	return err
}

// NormalizeEmail trims and case-folds an address for storage and lookup.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// mapError translates driver errors into the shared taxonomy.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s already exists", shared.ErrConflict, what)
		case "23503":
			return fmt.Errorf("%w: %s references a missing record", shared.ErrValidation, what)
		case "23514", "22P02":
			return fmt.Errorf("%w: invalid %s", shared.ErrValidation, what)
		}
	}
	if retryable(err) {
		return fmt.Errorf("%w: concurrent update of %s, retry", shared.ErrConflict, what)
	}
	return fmt.Errorf("store: %s: %w", what, err)
}

// retryable reports serialization failures and deadlocks. Both abort the
// transaction under RepeatableRead when two writers race on the same rows.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
