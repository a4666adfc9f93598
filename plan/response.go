package plan

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/melkeydev/mcp-tablegen/schema"
)

// ParseResponse decodes a model answer into column-major data. Row answers
// are zipped against the schema's attribute order. Numbers are kept as
// json.Number so integer columns do not go through float64.
func ParseResponse(text string, layout Layout, s schema.Schema) (map[string][]any, error) {
	var payload map[string]json.RawMessage
	if err := decode(text, &payload); err != nil {
		return nil, parseErrorf("response is not a JSON object: %v", err)
	}

	if layout == Column {
		raw, ok := payload["columns"]
		if !ok {
			return nil, parseErrorf("response has no \"columns\" key, got keys %v", keys(payload))
		}
		var columns map[string][]any
		if err := decode(string(raw), &columns); err != nil {
			return nil, parseErrorf("\"columns\" is not a map of lists: %v", err)
		}
		if columns == nil {
			return nil, parseErrorf("\"columns\" is null")
		}
		return columns, nil
	}

	raw, ok := payload["rows"]
	if !ok {
		return nil, parseErrorf("response has no \"rows\" key, got keys %v", keys(payload))
	}
	var rows [][]any
	if err := decode(string(raw), &rows); err != nil {
		return nil, parseErrorf("\"rows\" is not a list of lists: %v", err)
	}
	columns := make(map[string][]any, s.Len())
	names := s.Names()
	for _, n := range names {
		columns[n] = make([]any, 0, len(rows))
	}
	for i, row := range rows {
		if len(row) != len(names) {
			return nil, parseErrorf("row %d has %d values, expected %d (%s)", i, len(row), len(names), strings.Join(names, ", "))
		}
		for c, n := range names {
			columns[n] = append(columns[n], row[c])
		}
	}
	return columns, nil
}

func decode(text string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(text))))
	dec.UseNumber()
	return dec.Decode(v)
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
