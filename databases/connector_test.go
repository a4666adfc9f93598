package databases

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestNewConnector(t *testing.T) {
	_, err := NewConnector("oracle", "x")
	require.ErrorContains(t, err, "unsupported database type: oracle")

	_, err = NewConnector("mysql", "not a dsn")
	require.ErrorContains(t, err, "failed to parse connection string")

	path := filepath.Join(t.TempDir(), "t.db")
	seed, err := sqlx.Open("sqlite3", path)
	require.NoError(t, err)
	seed.MustExec(`CREATE TABLE cities (name TEXT, state TEXT)`)
	require.NoError(t, seed.Close())

	db, err := NewConnector("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	cols, err := Columns(context.Background(), db, "cities")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	require.Equal(t, "state", cols[1].Name)

	_, err = Columns(context.Background(), db, "towns")
	require.ErrorContains(t, err, "table towns not found")
}
