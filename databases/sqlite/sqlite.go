package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/melkeydev/mcp-tablegen/types"
)

type SQLiteConnector struct {
	db *sqlx.DB
}

func NewSQLiteConnector(connectionString string) (*SQLiteConnector, error) {
	db, err := sqlx.Open("sqlite3", connectionString)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	connector := &SQLiteConnector{db: db}
	if err := connector.Ping(context.Background()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return connector, nil
}

func (c *SQLiteConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Scan lists the user tables, restricted to tablesList when given, with their
// columns.
func (c *SQLiteConnector) Scan(ctx context.Context, tablesList []string) ([]types.Table, error) {
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Commit()

	query := `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`
	args := make([]any, len(tablesList))
	if len(tablesList) > 0 {
		placeholders := make([]string, len(tablesList))
		for i, table := range tablesList {
			placeholders[i] = "?"
			args[i] = table
		}
		query += fmt.Sprintf(" AND name IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY name"

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

func (c *SQLiteConnector) Query(ctx context.Context, sqlQuery string) ([]map[string]any, error) {
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

func (c *SQLiteConnector) Sample(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 10
	}
	return c.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quote(table), limit))
}

func (c *SQLiteConnector) ReadTable(ctx context.Context, table string) ([]map[string]any, error) {
	return c.Query(ctx, "SELECT * FROM "+quote(table))
}

func (c *SQLiteConnector) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *SQLiteConnector) loadColumns(ctx context.Context, tx *sqlx.Tx, tableName string) ([]types.Column, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name, type, "notnull" FROM pragma_table_info(?) ORDER BY cid`, tableName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query columns")
	}
	defer rows.Close()

	var columns []types.Column
	for rows.Next() {
		var name, dataType string
		var notNull int
		if err := rows.Scan(&name, &dataType, &notNull); err != nil {
			return nil, errors.Wrap(err, "failed to scan column")
		}
		columns = append(columns, types.Column{Name: name, Type: dataType, Nullable: notNull == 0})
	}
	return columns, rows.Err()
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
