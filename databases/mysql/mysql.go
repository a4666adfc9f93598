package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/melkeydev/mcp-tablegen/types"
)

type MySQLConnector struct {
	db *sqlx.DB
}

func NewMySQLConnector(connectionString string) (*MySQLConnector, error) {
	if _, err := mysql.ParseDSN(connectionString); err != nil {
		return nil, errors.Wrap(err, "failed to parse connection string")
	}

	db, err := sqlx.Open("mysql", connectionString)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	connector := &MySQLConnector{db: db}
	if err := connector.Ping(context.Background()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return connector, nil
}

func (c *MySQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Scan lists the base tables of the current database.
func (c *MySQLConnector) Scan(ctx context.Context, tablesList []string) ([]types.Table, error) {
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Commit()

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		AND table_schema = DATABASE()`
	args := make([]any, len(tablesList))
	if len(tablesList) > 0 {
		placeholders := make([]string, len(tablesList))
		for i, table := range tablesList {
			placeholders[i] = "?"
			args[i] = table
		}
		query += fmt.Sprintf(" AND table_name IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY table_name"

	var names []string
	if err := tx.SelectContext(ctx, &names, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to query tables")
	}

	tables := make([]types.Table, 0, len(names))
	for _, name := range names {
		columns, err := c.loadColumns(ctx, tx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load columns for table %s", name)
		}
		tables = append(tables, types.Table{Name: name, Columns: columns})
	}
	return tables, nil
}

// Query runs sqlQuery in a read-only transaction. Text values, which the
// driver returns as bytes, are converted to strings.
func (c *MySQLConnector) Query(ctx context.Context, sqlQuery string) ([]map[string]any, error) {
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "BeginTx failed")
	}
	defer tx.Commit()

	rows, err := tx.QueryxContext(ctx, sqlQuery)
	if err != nil {
		return nil, errors.Wrap(err, "unable to query db")
	}
	defer rows.Close()

	var results []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, errors.Wrap(err, "unable to scan row")
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (c *MySQLConnector) Sample(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 10
	}
	return c.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quote(table), limit))
}

func (c *MySQLConnector) ReadTable(ctx context.Context, table string) ([]map[string]any, error) {
	return c.Query(ctx, "SELECT * FROM "+quote(table))
}

func (c *MySQLConnector) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *MySQLConnector) loadColumns(ctx context.Context, tx *sqlx.Tx, tableName string) ([]types.Column, error) {
	query := `
		SELECT column_name, column_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = ? AND table_schema = DATABASE()
		ORDER BY ordinal_position`

	rows, err := tx.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query columns")
	}
	defer rows.Close()

	var columns []types.Column
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, errors.Wrap(err, "failed to scan column")
		}
		columns = append(columns, types.Column{Name: name, Type: dataType, Nullable: isNullable == "YES"})
	}
	return columns, rows.Err()
}

func quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}
