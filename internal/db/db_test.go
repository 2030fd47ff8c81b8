package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notemate/internal/config"
)

func TestOpenAndMigrateTwice(t *testing.T) {
	conn, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "sub", "test.db")})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, ApplyMigrations(conn))
	require.NoError(t, ApplyMigrations(conn))

	var count int
	row := conn.QueryRowContext(context.Background(), "SELECT COUNT(1) FROM documents WHERE id = ?", "missing")
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 0, count)
}

func TestWithTxRollsBack(t *testing.T) {
	conn, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, ApplyMigrations(conn))

	ctx := context.Background()
	boom := errors.New("boom")
	err = conn.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO documents (id, filename, file_key, ctime, mtime) VALUES (?, ?, ?, ?, ?)", "d1", "a.pdf", "d1.pdf", 1, 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(1) FROM documents").Scan(&count))
	require.Equal(t, 0, count)
}
