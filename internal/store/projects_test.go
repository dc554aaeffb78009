package store

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientportal/portal/internal/shared"
)

func TestHasProjectGrantIsOneExistsQuery(t *testing.T) {
	db := &fakeDB{scan: func(dest ...any) error {
		require.Len(t, dest, 1)
		*dest[0].(*bool) = true
		return nil
	}}

	ok, err := NewQueries(db).HasProjectGrant(context.Background(), "p1", "u1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, db.rows, 1)
	assert.Empty(t, db.queries)
	assert.Empty(t, db.execs)
	assert.Contains(t, db.rows[0], "SELECT EXISTS")
	assert.Contains(t, db.rows[0], "user_id = $2 OR company_id = $3")
	assert.Equal(t, []any{"p1", "u1", "c1"}, db.args[0])
}

func TestHasProjectGrantMapsSerializationFailure(t *testing.T) {
	db := &fakeDB{scan: func(...any) error { return &pgconn.PgError{Code: "40001"} }}

	ok, err := NewQueries(db).HasProjectGrant(context.Background(), "p1", "u1", "c1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestListGrantedProjectsDedupesInSQL(t *testing.T) {
	db := &fakeDB{}

	got, err := NewQueries(db).ListGrantedProjects(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.Len(t, db.queries, 1)
	sql := db.queries[0]
	assert.Contains(t, sql, "DISTINCT ON (p.id)")
	assert.Contains(t, sql, "pa.user_id = $1 OR pa.company_id = $2")
	assert.Less(t, strings.Index(sql, "DISTINCT ON"), strings.LastIndex(sql, "ORDER BY p.created_at DESC"),
		"newest-first ordering is applied after the dedupe")
	assert.Equal(t, []any{"u1", "c1"}, db.args[0])
}

func TestListGrantedProjectsMapsDriverErrors(t *testing.T) {
	db := &fakeDB{queryErr: &pgconn.PgError{Code: "40P01"}}

	_, err := NewQueries(db).ListGrantedProjects(context.Background(), "u1", "c1")
	assert.ErrorIs(t, err, shared.ErrConflict)
}
