package table

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/stretchr/testify/require"
)

func idTable(t *testing.T, attrs []schema.Attribute, rows [][]any) *Table {
	t.Helper()
	tbl, err := FromRows(schema.MustNew(attrs...), rows)
	require.NoError(t, err)
	return tbl
}

func TestInnerJoinKeepsOnlyMatches(t *testing.T) {
	generated := idTable(t,
		[]schema.Attribute{{Name: "id", Type: schema.Int}, {Name: "label", Type: schema.String}},
		[][]any{{1, "one"}, {2, "two"}, {3, "three"}},
	)
	input := idTable(t,
		[]schema.Attribute{{Name: "id", Type: schema.Int}},
		[][]any{{2}, {3}, {4}},
	)

	out, err := InnerJoin(input, generated, []string{"id"})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "label"}, out.Schema().Names())
	require.Equal(t, [][]any{{int64(2), "two"}, {int64(3), "three"}}, out.Rows())
}

func TestInnerJoinRightWinsOnSharedColumns(t *testing.T) {
	input := idTable(t,
		[]schema.Attribute{{Name: "state", Type: schema.String}, {Name: "capital", Type: schema.String}, {Name: "note", Type: schema.String}},
		[][]any{{"Ohio", "stale", "n1"}},
	)
	generated := idTable(t,
		[]schema.Attribute{{Name: "state", Type: schema.String}, {Name: "capital", Type: schema.String}, {Name: "population", Type: schema.Int}},
		[][]any{{"Ohio", "Columbus", 11}},
	)

	out, err := InnerJoin(input, generated, []string{"state"})
	require.NoError(t, err)
	require.Equal(t, []string{"state", "capital", "note", "population"}, out.Schema().Names())
	require.Equal(t, []any{"Ohio", "Columbus", "n1", int64(11)}, out.Row(0))
}

func TestInnerJoinDuplicatesAndNulls(t *testing.T) {
	left := idTable(t,
		[]schema.Attribute{{Name: "k", Type: schema.String}},
		[][]any{{"a"}, {nil}, {"b"}},
	)
	right := idTable(t,
		[]schema.Attribute{{Name: "k", Type: schema.String}, {Name: "v", Type: schema.Int}},
		[][]any{{"a", 1}, {"a", 2}, {nil, 3}},
	)

	out, err := InnerJoin(left, right, []string{"k"})
	require.NoError(t, err)
	require.Equal(t, [][]any{{"a", int64(1)}, {"a", int64(2)}}, out.Rows())
}

func TestInnerJoinCompositeKeyAndTypeStrictness(t *testing.T) {
	left := idTable(t,
		[]schema.Attribute{{Name: "a", Type: schema.String}, {Name: "b", Type: schema.Int}},
		[][]any{{"x", 1}, {"x", 2}},
	)
	right := idTable(t,
		[]schema.Attribute{{Name: "a", Type: schema.String}, {Name: "b", Type: schema.Int}, {Name: "v", Type: schema.Bool}},
		[][]any{{"x", 2, true}},
	)
	out, err := InnerJoin(left, right, []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, [][]any{{"x", int64(2), true}}, out.Rows())

	stringKeys := idTable(t,
		[]schema.Attribute{{Name: "b", Type: schema.String}},
		[][]any{{"2"}},
	)
	_, err = InnerJoin(stringKeys, right, []string{"b"})
	require.True(t, errors.Is(err, ErrCast), "%v", err)
	require.Contains(t, err.Error(), `join key "b" has type string on the left and int on the right`)
}

func TestInnerJoinMissingKey(t *testing.T) {
	left := Empty(schema.MustNew(schema.Attribute{Name: "a", Type: schema.String}))
	right := Empty(schema.MustNew(schema.Attribute{Name: "b", Type: schema.String}))
	_, err := InnerJoin(left, right, []string{"a"})
	require.Error(t, err)
	_, err = InnerJoin(left, right, nil)
	require.Error(t, err)
}
