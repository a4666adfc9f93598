// Package planner turns an operator list, given by the caller or chosen by
// the model, into an operator chain.
package planner

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/llm"
	"github.com/melkeydev/mcp-tablegen/plan"
	"github.com/melkeydev/mcp-tablegen/prompt"
	"github.com/melkeydev/mcp-tablegen/search"
)

// Deps are the collaborators and inputs operators of a chain may need.
type Deps struct {
	LLM       llm.Client
	Searcher  search.Searcher
	Search    plan.SearchConfig
	Documents []string
	Images    []string
}

func configErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), plan.ErrConfig)
}

// Available returns the operators deps can support, in a fixed order.
func (d Deps) Available() []string {
	ops := []string{plan.LLMOperator}
	if d.Searcher != nil || len(d.Search.Links) > 0 {
		ops = append(ops, plan.SearchOperator)
	}
	if len(d.Documents) > 0 {
		ops = append(ops, plan.DocumentOperator)
	}
	if len(d.Images) > 0 {
		ops = append(ops, plan.ImageOperator)
	}
	return ops
}

// Chain builds operators in execution order: the first one consumes child and
// the last one is the returned root. Every operator produces the full logical
// table.
func Chain(logical *plan.LogicalTable, child *plan.PhysicalTable, operators []string, deps Deps, opts plan.Options) (*plan.PhysicalTable, error) {
	if len(operators) == 0 {
		return nil, configErrorf("at least one operator is required")
	}
	seen := make(map[string]bool, len(operators))
	for _, op := range operators {
		if seen[op] {
			return nil, configErrorf("duplicate operator %q: each operator may appear only once", op)
		}
		seen[op] = true
	}

	node := child
	for _, op := range operators {
		var err error
		switch op {
		case plan.LLMOperator:
			node, err = plan.NewLLMTable(logical, node, deps.LLM, opts)
		case plan.SearchOperator:
			node, err = plan.NewSearchTable(logical, node, deps.LLM, deps.Searcher, deps.Search, opts)
		case plan.DocumentOperator:
			node, err = plan.NewDocumentTable(logical, node, deps.LLM, deps.Documents, opts)
		case plan.ImageOperator:
			node, err = plan.NewImageTable(logical, node, deps.LLM, deps.Images, opts)
		default:
			return nil, configErrorf("unknown operator %q", op)
		}
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

// Planner asks the model which operators to run.
type Planner struct {
	client llm.Client
}

func New(client llm.Client) *Planner {
	return &Planner{client: client}
}

// Choose returns the operators picked by the model among available. Names
// the model invents are ignored; an answer without any known operator is a
// parse error.
func (p *Planner) Choose(ctx context.Context, logical *plan.LogicalTable, baseColumns, tables, available []string) ([]string, error) {
	if len(baseColumns) == 0 {
		return nil, configErrorf("base columns must be specified in planner mode")
	}
	text, err := prompt.RenderPlan(prompt.Plan{
		Description: logical.Prompt,
		Columns:     logical.Schema.Names(),
		BaseColumns: baseColumns,
		Tables:      tables,
		Operators:   available,
	})
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Call(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, "planning operators")
	}
	ops := ParseOperators(resp, available)
	if len(ops) == 0 {
		return nil, errors.Mark(errors.Newf("no known operator in planner answer %q", resp), plan.ErrParse)
	}
	slog.Info("planned operators", "table", logical.Name, "operators", ops)
	return ops, nil
}

// ParseOperators splits a comma or newline separated answer, keeping the
// first occurrence of every name in available.
func ParseOperators(answer string, available []string) []string {
	known := make(map[string]bool, len(available))
	for _, a := range available {
		known[a] = true
	}
	fields := strings.FieldsFunc(llm.CleanResponse(answer), func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
	var ops []string
	seen := map[string]bool{}
	for _, f := range fields {
		name := strings.ToLower(strings.Trim(strings.TrimSpace(f), "`'\"-*. "))
		if known[name] && !seen[name] {
			seen[name] = true
			ops = append(ops, name)
		}
	}
	return ops
}

// Plan chooses the operators and chains them.
func (p *Planner) Plan(ctx context.Context, logical *plan.LogicalTable, child *plan.PhysicalTable, tables []string, deps Deps, opts plan.Options) (*plan.PhysicalTable, error) {
	ops, err := p.Choose(ctx, logical, opts.BaseColumns, tables, deps.Available())
	if err != nil {
		return nil, err
	}
	return Chain(logical, child, ops, deps, opts)
}
