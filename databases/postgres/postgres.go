package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/melkeydev/mcp-tablegen/types"
)

type PostgresConnector struct {
	db *sqlx.DB
}

func NewPostgresConnector(connectionString string) (*PostgresConnector, error) {
	config, err := pgx.ParseConfig(connectionString)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse connection string")
	}
	config.PreferSimpleProtocol = true

	db := sqlx.NewDb(stdlib.OpenDB(*config), "pgx")
	connector := &PostgresConnector{db: db}
	if err := connector.Ping(context.Background()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return connector, nil
}

func (c *PostgresConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Scan lists base tables outside the system schemas. Table names are
// qualified as schema.table.
func (c *PostgresConnector) Scan(ctx context.Context, tablesList []string) ([]types.Table, error) {
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Commit()

	query := `
		SELECT table_name, table_schema
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		AND table_schema NOT IN ('pg_catalog', 'information_schema')`
	var args []any
	if len(tablesList) > 0 {
		placeholders := make([]string, len(tablesList))
		for i, table := range tablesList {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, unqualified(table))
		}
		query += fmt.Sprintf(" AND table_name IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY table_schema, table_name"

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tables")
	}
	type ref struct{ name, schema string }
	var refs []ref
	for rows.Next() {
		var r ref
		if err := rows.Scan(&r.name, &r.schema); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan table")
		}
		refs = append(refs, r)
	}
	rows.Close()

	tables := make([]types.Table, 0, len(refs))
	for _, r := range refs {
		columns, err := c.loadColumns(ctx, tx, r.name, r.schema)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load columns for table %s", r.name)
		}
		tables = append(tables, types.Table{Name: r.schema + "." + r.name, Columns: columns})
	}
	return tables, nil
}

func (c *PostgresConnector) Query(ctx context.Context, sqlQuery string) ([]map[string]any, error) {
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
		results = append(results, row)
	}
	return results, rows.Err()
}

func (c *PostgresConnector) Sample(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 10
	}
	return c.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quote(table), limit))
}

func (c *PostgresConnector) ReadTable(ctx context.Context, table string) ([]map[string]any, error) {
	return c.Query(ctx, "SELECT * FROM "+quote(table))
}

func (c *PostgresConnector) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *PostgresConnector) loadColumns(ctx context.Context, tx *sqlx.Tx, tableName, tableSchema string) ([]types.Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = $1 AND table_schema = $2
		ORDER BY ordinal_position`

	rows, err := tx.QueryContext(ctx, query, tableName, tableSchema)
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

// quote quotes every dot-separated part of a possibly qualified name.
func quote(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pgx.Identifier{p}.Sanitize()
	}
	return strings.Join(parts, ".")
}

func unqualified(table string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[i+1:]
	}
	return table
}
