package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "tx.db")+"?_txlock=immediate")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = sqlDB.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	return NewDB(sqlDB, zap.NewNop())
}

func countItems(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
	return n
}

func TestWithTransaction_Commit(t *testing.T) {
	db := setupDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		_, isTx := db.Executor(ctx).(*sql.Tx)
		assert.True(t, isTx)
		_, err := db.Executor(ctx).ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countItems(t, db))
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := setupDB(t)
	boom := errors.New("boom")

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := db.Executor(ctx).ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countItems(t, db))
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	db := setupDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		outer := db.Executor(ctx)
		return db.WithTransaction(ctx, func(inner context.Context) error {
			assert.Same(t, outer, db.Executor(inner))
			_, err := db.Executor(inner).ExecContext(inner, "INSERT INTO items (name) VALUES ('a')")
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countItems(t, db))
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	assert.Panics(t, func() {
		_ = db.WithTransaction(context.Background(), func(ctx context.Context) error {
			_, _ = db.Executor(ctx).ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')")
			panic("boom")
		})
	})
	assert.Equal(t, 0, countItems(t, db))
}

func TestExecutorFor_WithoutTransaction(t *testing.T) {
	db := setupDB(t)
	assert.Same(t, db.DB, ExecutorFor(context.Background(), db.DB))
}
