package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientportal/portal/internal/shared"
)

// fakeDB records every statement and answers from canned results.
type fakeDB struct {
	execs, queries, rows []string
	args                 [][]any
	scan                 func(dest ...any) error
	queryErr             error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, sql)
	f.args = append(f.args, args)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &emptyRows{}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.rows = append(f.rows, sql)
	f.args = append(f.args, args)
	return fakeRow{scan: f.scan}
}

type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type emptyRows struct{ closed bool }

func (r *emptyRows) Close()                                       { r.closed = true }
func (r *emptyRows) Err() error                                   { return nil }
func (r *emptyRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *emptyRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *emptyRows) Next() bool                                   { return false }
func (r *emptyRows) Scan(...any) error                            { return errors.New("no row") }
func (r *emptyRows) Values() ([]any, error)                       { return nil, nil }
func (r *emptyRows) RawValues() [][]byte                          { return nil }
func (r *emptyRows) Conn() *pgx.Conn                              { return nil }

func TestMapError(t *testing.T) {
	driverErr := errors.New("connection reset")
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, shared.ErrNotFound},
		{"wrapped no rows", errors.Join(errors.New("scan"), pgx.ErrNoRows), shared.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, shared.ErrConflict},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, shared.ErrValidation},
		{"check violation", &pgconn.PgError{Code: "23514"}, shared.ErrValidation},
		{"bad text representation", &pgconn.PgError{Code: "22P02"}, shared.ErrValidation},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, shared.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, shared.ErrConflict},
		{"commit failure", errors.Join(errors.New("platform/db: commit tx"), &pgconn.PgError{Code: "40001"}), shared.ErrConflict},
		{"other driver error", driverErr, driverErr},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError(tc.err, "project")
			require.Error(t, got)
			assert.ErrorIs(t, got, tc.want)
			assert.Contains(t, got.Error(), "project")
		})
	}

	assert.NoError(t, mapError(nil, "project"))
}

func TestMapErrorLeavesUnknownSQLStatesInternal(t *testing.T) {
	err := mapError(&pgconn.PgError{Code: "57014"}, "users")
	for _, sentinel := range []error{shared.ErrNotFound, shared.ErrConflict, shared.ErrValidation, shared.ErrForbidden} {
		assert.NotErrorIs(t, err, sentinel)
	}
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "57014", pgErr.Code)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, retryable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, retryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, retryable(errors.New("40001")))
	assert.False(t, retryable(nil))
}

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"  Ada@Agency.Test ": "ada@agency.test",
		"ADA@AGENCY.TEST":    "ada@agency.test",
		"ada@agency.test":    "ada@agency.test",
		"\tBea@B.test\n":     "bea@b.test",
		"":                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeEmail(in), "%q", in)
	}
}
