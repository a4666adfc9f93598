// Package table holds the in-memory columnar table that every operator
// produces and consumes.
package table

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/schema"
)

// Table is a columnar table. Values are stored per column and are always one
// of string, int64, float64, bool or nil. Tables are never mutated after
// construction, so slices may share backing arrays.
type Table struct {
	schema  schema.Schema
	columns [][]any
}

// Empty returns a table with the given schema and no rows.
func Empty(s schema.Schema) *Table {
	return &Table{schema: s, columns: make([][]any, s.Len())}
}

// FromColumns builds a table from column-major data, casting every value to
// the schema. The column set must equal the schema's attribute set and all
// columns must have the same length.
func FromColumns(s schema.Schema, data map[string][]any) (*Table, error) {
	if len(data) != s.Len() {
		return nil, castErrorf("got columns %v, schema declares %v", sortedKeys(data), s.Names())
	}
	columns := make([][]any, s.Len())
	rows := -1
	for i, attr := range s.Attributes() {
		values, ok := data[attr.Name]
		if !ok {
			return nil, castErrorf("column %q missing, got columns %v", attr.Name, sortedKeys(data))
		}
		if rows >= 0 && len(values) != rows {
			return nil, castErrorf("column %q has %d values, expected %d", attr.Name, len(values), rows)
		}
		rows = len(values)
		col, err := castColumn(values, attr)
		if err != nil {
			return nil, err
		}
		columns[i] = col
	}
	return &Table{schema: s, columns: columns}, nil
}

// FromRows builds a table from positional rows, casting every value.
func FromRows(s schema.Schema, rows [][]any) (*Table, error) {
	columns := make([][]any, s.Len())
	for i := range columns {
		columns[i] = make([]any, len(rows))
	}
	for r, row := range rows {
		if len(row) != s.Len() {
			return nil, castErrorf("row %d has %d values, schema declares %d", r, len(row), s.Len())
		}
		for c, v := range row {
			cv, err := CastValue(v, s.Attribute(c).Type)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d column %q", r, s.Attribute(c).Name)
			}
			columns[c][r] = cv
		}
	}
	return &Table{schema: s, columns: columns}, nil
}

// FromRecords builds a table from row maps such as database scan results. A
// key missing from a record is a null.
func FromRecords(s schema.Schema, records []map[string]any) (*Table, error) {
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, s.Len())
		for c, name := range s.Names() {
			row[c] = rec[name]
		}
		rows[i] = row
	}
	return FromRows(s, rows)
}

func (t *Table) Schema() schema.Schema { return t.schema }

func (t *Table) NumCols() int { return t.schema.Len() }

func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0])
}

// Column returns the values of the named column. The slice must not be modified.
func (t *Table) Column(name string) ([]any, bool) {
	i := t.schema.Index(name)
	if i < 0 {
		return nil, false
	}
	return t.columns[i], true
}

func (t *Table) Value(row, col int) any { return t.columns[col][row] }

// Row returns a copy of row i in schema order.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.columns))
	for c := range t.columns {
		row[c] = t.columns[c][i]
	}
	return row
}

// Rows returns every row in schema order.
func (t *Table) Rows() [][]any {
	rows := make([][]any, t.NumRows())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// Records returns every row as a name to value map.
func (t *Table) Records() []map[string]any {
	names := t.schema.Names()
	out := make([]map[string]any, t.NumRows())
	for i := range out {
		rec := make(map[string]any, len(names))
		for c, n := range names {
			rec[n] = t.columns[c][i]
		}
		out[i] = rec
	}
	return out
}

// Slice returns rows [offset, offset+length), clamped to the table bounds.
func (t *Table) Slice(offset, length int) *Table {
	n := t.NumRows()
	if offset > n {
		offset = n
	}
	end := offset + length
	if end > n {
		end = n
	}
	columns := make([][]any, len(t.columns))
	for c, col := range t.columns {
		columns[c] = col[offset:end:end]
	}
	return &Table{schema: t.schema, columns: columns}
}

// Select projects the table onto the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	s, err := t.schema.Select(names...)
	if err != nil {
		return nil, err
	}
	columns := make([][]any, len(names))
	for i, n := range names {
		columns[i] = t.columns[t.schema.Index(n)]
	}
	return &Table{schema: s, columns: columns}, nil
}

// Cast converts the table to the target schema: columns are reordered to the
// target's order and every value is converted to the target type. The column
// sets must be equal.
func (t *Table) Cast(target schema.Schema) (*Table, error) {
	if !target.SameNames(t.schema.Names()) {
		return nil, castErrorf("cannot cast columns %v to %v", t.schema.Names(), target.Names())
	}
	if target.Equal(t.schema) {
		return t, nil
	}
	columns := make([][]any, target.Len())
	for i, attr := range target.Attributes() {
		col, err := castColumn(t.columns[t.schema.Index(attr.Name)], attr)
		if err != nil {
			return nil, err
		}
		columns[i] = col
	}
	return &Table{schema: target, columns: columns}, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	columns := make([][]any, len(t.columns))
	for c, col := range t.columns {
		columns[c] = append([]any(nil), col...)
	}
	return &Table{schema: t.schema, columns: columns}
}

// Equal reports whether both tables have the same schema and values.
func (t *Table) Equal(o *Table) bool {
	if !t.schema.Equal(o.schema) || t.NumRows() != o.NumRows() {
		return false
	}
	for c := range t.columns {
		for r := range t.columns[c] {
			if t.columns[c][r] != o.columns[c][r] {
				return false
			}
		}
	}
	return true
}

// Concat appends tables that share an identical schema.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, errors.New("concat requires at least one table")
	}
	first := tables[0]
	total := 0
	for i, t := range tables {
		if !t.schema.Equal(first.schema) {
			return nil, castErrorf("table %d has schema [%s], expected [%s]", i, t.schema, first.schema)
		}
		total += t.NumRows()
	}
	columns := make([][]any, first.NumCols())
	for c := range columns {
		col := make([]any, 0, total)
		for _, t := range tables {
			col = append(col, t.columns[c]...)
		}
		columns[c] = col
	}
	return &Table{schema: first.schema, columns: columns}, nil
}

// MarshalJSON renders the table as an array of row objects whose keys keep
// the schema order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	names := t.schema.Names()
	buf.WriteByte('[')
	for r := 0; r < t.NumRows(); r++ {
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for c, n := range names {
			if c > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(n)
			if err != nil {
				return nil, err
			}
			v, err := json.Marshal(t.columns[c][r])
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// StringRows formats every value for display. Nulls render as NULL.
func (t *Table) StringRows() [][]string {
	out := make([][]string, t.NumRows())
	for r := range out {
		row := make([]string, t.NumCols())
		for c := range row {
			if v := t.columns[c][r]; v != nil {
				row[c] = fmt.Sprint(v)
			} else {
				row[c] = "NULL"
			}
		}
		out[r] = row
	}
	return out
}

func castColumn(values []any, attr schema.Attribute) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		cv, err := CastValue(v, attr.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q row %d", attr.Name, i)
		}
		out[i] = cv
	}
	return out, nil
}
