package engine

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/melkeydev/mcp-tablegen/table"
	"github.com/melkeydev/mcp-tablegen/types"
)

// TypeFromSQL maps a database column type to the closest schema type.
// Unknown types are read as strings.
func TypeFromSQL(dbType string) schema.Type {
	t := strings.ToLower(strings.TrimSpace(dbType))
	switch {
	case strings.HasPrefix(t, "bool"), t == "tinyint(1)", t == "bit":
		return schema.Bool
	case strings.Contains(t, "int"), t == "serial", t == "bigserial":
		return schema.Int
	case strings.Contains(t, "real"), strings.Contains(t, "floa"), strings.Contains(t, "doub"),
		strings.HasPrefix(t, "numeric"), strings.HasPrefix(t, "decimal"):
		return schema.Float
	default:
		return schema.String
	}
}

func schemaFromColumns(columns []types.Column) (schema.Schema, error) {
	attrs := make([]schema.Attribute, len(columns))
	for i, c := range columns {
		attrs[i] = schema.Attribute{Name: c.Name, Type: TypeFromSQL(c.Type)}
	}
	return schema.New(attrs...)
}

// tableFromRecords converts scanned rows, which carry driver types, to s.
func tableFromRecords(s schema.Schema, records []map[string]any) (*table.Table, error) {
	normalized := make([]map[string]any, len(records))
	for i, rec := range records {
		out := make(map[string]any, len(rec))
		for _, attr := range s.Attributes() {
			v, err := dbValue(rec[attr.Name], attr.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d column %q", i, attr.Name)
			}
			out[attr.Name] = v
		}
		normalized[i] = out
	}
	return table.FromRecords(s, normalized)
}

func dbValue(v any, t schema.Type) (any, error) {
	switch x := v.(type) {
	case []byte:
		return table.ParseValue(string(x), t)
	case string:
		if t != schema.String {
			return table.ParseValue(x, t)
		}
	case time.Time:
		return x.Format(time.RFC3339), nil
	case int64:
		if t == schema.Bool {
			return x != 0, nil
		}
	}
	return v, nil
}
