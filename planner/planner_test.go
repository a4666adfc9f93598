package planner

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/llm"
	"github.com/melkeydev/mcp-tablegen/plan"
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/melkeydev/mcp-tablegen/search"
	"github.com/stretchr/testify/require"
)

type noSearch struct{}

func (noSearch) Search(context.Context, string) (*search.Results, error) {
	return &search.Results{}, nil
}

func logical(t *testing.T) *plan.LogicalTable {
	t.Helper()
	lt, err := plan.NewLogicalTable("states", "US states", schema.MustNew(
		schema.Attribute{Name: "name", Type: schema.String},
		schema.Attribute{Name: "capital", Type: schema.String},
	))
	require.NoError(t, err)
	return lt
}

func answer(s string) llm.Client {
	return llm.Func(func(context.Context, string) (string, error) { return s, nil })
}

func TestChainOrder(t *testing.T) {
	deps := Deps{LLM: answer(`{"rows": []}`), Searcher: noSearch{}, Documents: []string{"a.txt"}}
	root, err := Chain(logical(t), nil, []string{plan.LLMOperator, plan.DocumentOperator, plan.SearchOperator}, deps, plan.Options{})
	require.NoError(t, err)
	require.Equal(t,
		"SearchEngineTable[schema=[name capital]]\n"+
			"--DocumentTable[schema=[name capital]]\n"+
			"----LLMTable[schema=[name capital]]\n",
		root.ExplainString())
}

func TestChainErrors(t *testing.T) {
	deps := Deps{LLM: answer("")}
	for name, ops := range map[string][]string{
		"empty":     nil,
		"duplicate": {plan.LLMOperator, plan.LLMOperator},
		"unknown":   {"magic_table"},
		"custom":    {plan.CustomOperator},
		"no images": {plan.ImageOperator},
		"no search": {plan.SearchOperator},
	} {
		_, err := Chain(logical(t), nil, ops, deps, plan.Options{})
		require.True(t, errors.Is(err, plan.ErrConfig), "%s: %v", name, err)
	}
}

func TestAvailable(t *testing.T) {
	require.Equal(t, []string{plan.LLMOperator}, Deps{}.Available())
	require.Equal(t,
		[]string{plan.LLMOperator, plan.SearchOperator, plan.ImageOperator},
		Deps{Search: plan.SearchConfig{Links: []string{"https://example.com"}}, Images: []string{"a.png"}}.Available())
}

func TestParseOperators(t *testing.T) {
	available := []string{plan.LLMOperator, plan.SearchOperator}
	require.Equal(t, []string{plan.LLMOperator, plan.SearchOperator},
		ParseOperators("<think>hmm</think> llm_table, `search_engine_table`, llm_table, teleport_table", available))
	require.Equal(t, []string{plan.SearchOperator},
		ParseOperators("- Search_Engine_Table\n- document_table", available))
	require.Empty(t, ParseOperators("nothing useful", available))
}

func TestPlan(t *testing.T) {
	var planPrompt string
	client := llm.Func(func(_ context.Context, p string) (string, error) {
		if strings.Contains(p, "Available operators") {
			planPrompt = p
			return "llm_table, search_engine_table", nil
		}
		return `{"rows": []}`, nil
	})
	p := New(client)
	deps := Deps{LLM: client, Searcher: noSearch{}}
	opts := plan.Options{BaseColumns: []string{"name"}}

	root, err := p.Plan(context.Background(), logical(t), nil, []string{"capitals: name string, capital string"}, deps, opts)
	require.NoError(t, err)
	require.Equal(t, plan.SearchOperator, root.OperatorName())
	require.Equal(t, plan.LLMOperator, root.Child().OperatorName())
	require.Contains(t, planPrompt, "Base columns: name")
	require.Contains(t, planPrompt, "- capitals: name string, capital string")
	require.Contains(t, planPrompt, "- search_engine_table")

	_, err = p.Plan(context.Background(), logical(t), nil, nil, deps, plan.Options{})
	require.True(t, errors.Is(err, plan.ErrConfig))

	_, err = New(answer("no idea")).Plan(context.Background(), logical(t), nil, nil, deps, opts)
	require.True(t, errors.Is(err, plan.ErrParse))
}
