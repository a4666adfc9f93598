// Package plan implements the operator chain that materializes a generated
// table: the physical operators, partitioning, prompting, response parsing
// and the merge of partition results.
package plan

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/schema"
)

var (
	// ErrConfig marks errors in how an operator chain was configured.
	ErrConfig = errors.New("configuration error")
	// ErrParse marks model responses that are not the expected JSON shape.
	ErrParse = errors.New("malformed model response")
	// ErrSchemaMismatch marks parallel partitions whose columns differ from
	// the logical schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

func configErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfig)
}

func parseErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrParse)
}

// LogicalTable describes the table the caller wants, independent of how it is
// produced. It is shared by every operator of a chain.
type LogicalTable struct {
	Name   string
	Prompt string
	Schema schema.Schema
}

func NewLogicalTable(name, prompt string, s schema.Schema) (*LogicalTable, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, configErrorf("table content prompt must be set")
	}
	if s.Empty() {
		return nil, configErrorf("table schema must be set")
	}
	return &LogicalTable{Name: name, Prompt: prompt, Schema: s}, nil
}

// Layout is the shape the model is asked to answer in.
type Layout int

const (
	// Row answers are {"rows": [[v1, v2, ...], ...]} in schema order.
	Row Layout = iota
	// Column answers are {"columns": {"name": [...], ...}}.
	Column
)

func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "row", "rows":
		return Row, nil
	case "column", "columns":
		return Column, nil
	default:
		return Row, configErrorf("unknown layout %q", s)
	}
}

func (l Layout) String() string {
	if l == Column {
		return "column"
	}
	return "row"
}
