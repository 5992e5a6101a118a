package database

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN("shop", "s3cret", "db", "3306", "storefront")
	require.True(t, strings.HasPrefix(dsn, "shop:s3cret@tcp(db:3306)/storefront?"))
	require.Contains(t, dsn, "parseTime=true")
	require.Contains(t, dsn, "charset=utf8mb4")
}

func TestSplitStatements(t *testing.T) {
	script := `-- header
CREATE TABLE a (
  id INT
);

CREATE TABLE b (id INT);
`
	stmts := SplitStatements(script)
	require.Len(t, stmts, 2)
	require.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE a"))
	require.Equal(t, "CREATE TABLE b (id INT)", stmts[1])
}

func TestEmbeddedMigrationParses(t *testing.T) {
	script, err := migrationFiles.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	require.Len(t, SplitStatements(string(script)), 6)
}

func TestMigrateSkipsAppliedVersions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schema_migrations WHERE version = ?")).
		WithArgs("001_init.sql").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}
