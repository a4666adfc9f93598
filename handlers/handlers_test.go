package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/melkeydev/mcp-tablegen/config"
	"github.com/melkeydev/mcp-tablegen/engine"
	"github.com/melkeydev/mcp-tablegen/llm"
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/melkeydev/mcp-tablegen/session"
	"github.com/melkeydev/mcp-tablegen/table"
	"github.com/melkeydev/mcp-tablegen/types"
	"github.com/stretchr/testify/require"
)

type countingLLM struct {
	llm.Counters
	answer string
}

func (c *countingLLM) Call(_ context.Context, p string) (string, error) {
	c.Add(int64(len(p)), int64(len(c.answer)))
	return c.answer, nil
}

func request(args map[string]any) mcp.CallToolRequest {
	var r mcp.CallToolRequest
	r.Params.Arguments = args
	return r
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func newSession(t *testing.T, answer string) *session.Session {
	t.Helper()
	registry := engine.NewRegistry()
	cities, err := table.FromRows(schema.MustNew(
		schema.Attribute{Name: "city", Type: schema.String},
		schema.Attribute{Name: "rank", Type: schema.Int},
	), [][]any{{"Tokyo", 1}, {"Delhi", 2}, {"Shanghai", 3}})
	require.NoError(t, err)
	require.NoError(t, registry.RegisterTable("cities", cities))

	s, err := session.New(&countingLLM{answer: answer}, session.WithRegistry(registry))
	require.NoError(t, err)
	return s
}

func TestGenerateHandler(t *testing.T) {
	s := newSession(t, `{"rows": [["Tokyo", "Japan"], ["Delhi", "India"]]}`)
	h := GenerateHandler(s, config.Default().Generation)

	res, err := h(context.Background(), request(map[string]any{
		"name":    "cities",
		"content": "largest cities",
		"schema":  "city, country",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var out types.GeneratedTable
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	require.Equal(t, "cities", out.Name)
	require.Len(t, out.Rows, 2)
	require.Equal(t, "India", out.Rows[1]["country"])
	require.Equal(t, int64(1), out.Usage.Calls)
	require.Equal(t, "LLMTable[schema=[city country]]\n", out.Plan)
	require.NotEmpty(t, out.ID)
}

func TestGenerateHandlerErrors(t *testing.T) {
	s := newSession(t, `not json`)
	h := GenerateHandler(s, config.Default().Generation)

	res, err := h(context.Background(), request(map[string]any{"content": "x"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, text(t, res), "Invalid table description")

	res, err = h(context.Background(), request(map[string]any{"content": "x", "schema": "a", "mode": "sql"}))
	require.NoError(t, err)
	require.True(t, res.IsError)

	res, err = h(context.Background(), request(map[string]any{"content": "x", "schema": "a"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, text(t, res), "Generation failed")
}

func TestExplainHandler(t *testing.T) {
	s := newSession(t, `{"rows": []}`)
	h := ExplainHandler(s, config.Default().Generation)

	res, err := h(context.Background(), request(map[string]any{
		"content":      "city populations",
		"schema":       "city string, population int",
		"base_columns": []any{"city"},
		"data_source":  "cities",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	require.Equal(t, "LLMTable[schema=[city population]]\n--CustomTable[schema=[city rank]]\n", text(t, res))
}

func TestListAndSampleSources(t *testing.T) {
	s := newSession(t, "")

	res, err := ListSourcesHandler(s.Registry())(context.Background(), request(nil))
	require.NoError(t, err)
	var sources []types.Source
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &sources))
	require.Len(t, sources, 1)
	require.Equal(t, "cities", sources[0].Name)
	require.Equal(t, "int", sources[0].Columns[1].Type)

	res, err = SampleHandler(s.Registry(), nil)(context.Background(), request(map[string]any{"table": "cities", "limit": 2}))
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &rows))
	require.Len(t, rows, 2)

	res, err = SampleHandler(s.Registry(), nil)(context.Background(), request(map[string]any{"table": "towns"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.True(t, strings.Contains(text(t, res), "not registered"))
}

func TestStringList(t *testing.T) {
	r := request(map[string]any{
		"a": []any{"x", " y ", 3, ""},
		"b": "llm_table, search_engine_table,",
	})
	require.Equal(t, []string{"x", "y"}, stringList(r, "a"))
	require.Equal(t, []string{"llm_table", "search_engine_table"}, stringList(r, "b"))
	require.Nil(t, stringList(r, "c"))
}
