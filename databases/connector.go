package databases

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/databases/mysql"
	"github.com/melkeydev/mcp-tablegen/databases/postgres"
	"github.com/melkeydev/mcp-tablegen/databases/sqlite"
	"github.com/melkeydev/mcp-tablegen/types"
)

// Database is a read-only view of a relational database used as a source of
// rows for table generation.
type Database interface {
	Ping(ctx context.Context) error
	Scan(ctx context.Context, tableList []string) ([]types.Table, error)
	Query(ctx context.Context, sql string) ([]map[string]any, error)
	Sample(ctx context.Context, table string, limit int) ([]map[string]any, error)
	// ReadTable returns every row of table.
	ReadTable(ctx context.Context, table string) ([]map[string]any, error)
	Close() error
}

func NewConnector(dbType, connectionString string) (Database, error) {
	switch dbType {
	case "sqlite":
		return sqlite.NewSQLiteConnector(connectionString)
	case "postgres":
		return postgres.NewPostgresConnector(connectionString)
	case "mysql":
		return mysql.NewMySQLConnector(connectionString)
	default:
		return nil, errors.Newf("unsupported database type: %s", dbType)
	}
}

// Columns returns the column list of one table.
func Columns(ctx context.Context, db Database, table string) ([]types.Column, error) {
	tables, err := db.Scan(ctx, []string{table})
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, errors.Newf("table %s not found", table)
	}
	return tables[0].Columns, nil
}
