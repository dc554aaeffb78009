package migrate

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientportal/portal/migrations"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"0001_a.up.sql":   {Data: []byte("CREATE TABLE a (id INT);")},
		"0001_a.down.sql": {Data: []byte("DROP TABLE a;")},
		"0002_b.up.sql":   {Data: []byte("CREATE TABLE b (note TEXT DEFAULT 'x;y');\nCREATE INDEX b_idx ON b (note);")},
		"0002_b.down.sql": {Data: []byte("DROP TABLE b;")},
		"README.md":       {Data: []byte("ignored")},
	}
}

func newManager(t *testing.T, files fstest.MapFS) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	m := NewManager(db, files)
	m.now = func() time.Time { return fixedNow }
	return m, mock
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	m, mock := newManager(t, testFS())
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (note TEXT DEFAULT 'x;y');")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX b_idx ON b (note);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
		WithArgs("0002_b.up.sql", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_b.up.sql"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpRollsBackFailedFile(t *testing.T) {
	m, mock := newManager(t, testFS())

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM")).WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a")).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	applied, err := m.Up(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "0001_a.up.sql")
	assert.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownRevertsLatest(t *testing.T) {
	m, mock := newManager(t, testFS())

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql").AddRow("0002_b.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE b;")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schema_migrations WHERE name = $1")).
		WithArgs("0002_b.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	name, err := m.Down(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0002_b.up.sql", name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownWithNothingApplied(t *testing.T) {
	m, mock := newManager(t, testFS())

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM")).WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err := m.Down(context.Background())
	assert.ErrorIs(t, err, ErrNothingApplied)
}

func TestStatusUsesCustomTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	m := NewManager(db, testFS(), WithTable("portal_migrations"))

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS portal_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM portal_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))

	got, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.up.sql"}, got)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	m := NewManager(nil, migrations.FS)
	ups, err := m.collect(".up.sql")
	require.NoError(t, err)
	downs, err := m.collect(".down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))
	for i, up := range ups {
		assert.Equal(t, up[:len(up)-len(".up.sql")]+".down.sql", downs[i])
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE t (v TEXT DEFAULT 'a;b');\n\nINSERT INTO t VALUES ('c');\n")
	require.Len(t, got, 2)
	assert.Equal(t, "CREATE TABLE t (v TEXT DEFAULT 'a;b');", got[0])
}
