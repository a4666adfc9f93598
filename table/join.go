package table

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/schema"
)

// InnerJoin joins left and right on equal values of the key columns. Rows
// without a match on the other side are dropped and null keys never match.
//
// The output holds the left columns followed by the right columns not present
// on the left. A non-key column present on both sides takes the right value.
// Output rows follow left row order, then right row order within a key.
func InnerJoin(left, right *Table, keys []string) (*Table, error) {
	if len(keys) == 0 {
		return nil, errors.New("inner join requires at least one key column")
	}
	leftKeys := make([]int, len(keys))
	rightKeys := make([]int, len(keys))
	for i, k := range keys {
		if leftKeys[i] = left.schema.Index(k); leftKeys[i] < 0 {
			return nil, errors.Newf("join key %q missing from left columns %v", k, left.schema.Names())
		}
		if rightKeys[i] = right.schema.Index(k); rightKeys[i] < 0 {
			return nil, errors.Newf("join key %q missing from right columns %v", k, right.schema.Names())
		}
		lt, rt := left.schema.Attribute(leftKeys[i]).Type, right.schema.Attribute(rightKeys[i]).Type
		if lt != rt {
			return nil, castErrorf("join key %q has type %s on the left and %s on the right", k, lt, rt)
		}
	}

	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}

	// Output layout: every left column, then right-only columns. sources
	// records, per output column, which side and column index feeds it.
	type source struct {
		right bool
		col   int
	}
	var attrs []schema.Attribute
	var sources []source
	for i, a := range left.schema.Attributes() {
		if j := right.schema.Index(a.Name); j >= 0 && !isKey[a.Name] {
			attrs = append(attrs, right.schema.Attribute(j))
			sources = append(sources, source{right: true, col: j})
			continue
		}
		attrs = append(attrs, a)
		sources = append(sources, source{col: i})
	}
	for j, a := range right.schema.Attributes() {
		if left.schema.Index(a.Name) < 0 {
			attrs = append(attrs, a)
			sources = append(sources, source{right: true, col: j})
		}
	}
	out, err := schema.New(attrs...)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]int, right.NumRows())
	for r := 0; r < right.NumRows(); r++ {
		if k, ok := joinKey(right, r, rightKeys); ok {
			index[k] = append(index[k], r)
		}
	}

	columns := make([][]any, len(attrs))
	for l := 0; l < left.NumRows(); l++ {
		k, ok := joinKey(left, l, leftKeys)
		if !ok {
			continue
		}
		for _, r := range index[k] {
			for c, src := range sources {
				if src.right {
					columns[c] = append(columns[c], right.columns[src.col][r])
				} else {
					columns[c] = append(columns[c], left.columns[src.col][l])
				}
			}
		}
	}
	return &Table{schema: out, columns: columns}, nil
}

// joinKey encodes the key values of row r. Values of different Go types never
// compare equal. A null in any key column yields ok=false.
func joinKey(t *Table, r int, cols []int) (string, bool) {
	var sb strings.Builder
	for i, c := range cols {
		v := t.columns[c][r]
		if v == nil {
			return "", false
		}
		if i > 0 {
			sb.WriteByte(0)
		}
		fmt.Fprintf(&sb, "%T:%v", v, v)
	}
	return sb.String(), true
}
