package users

import (
	"context"

	"github.com/clientportal/portal/internal/store"
)

// Repository adapts the PostgreSQL store to RepositoryPort.
type Repository struct {
	*store.Store
}

// NewRepository constructs a repository.
func NewRepository(st *store.Store) *Repository {
	return &Repository{Store: st}
}

// WithTx runs fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.Store.WithTx(ctx, func(q *store.Queries) error {
		return fn(ctx, q)
	})
}
