package session

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/plan"
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/melkeydev/mcp-tablegen/table"
)

// Mode selects how the root operator is produced.
type Mode string

const (
	ModeLLM       Mode = "llm"
	ModeSearch    Mode = "search"
	ModeDocument  Mode = "document"
	ModeImage     Mode = "image"
	ModeDataset   Mode = "dataset"
	ModeOperators Mode = "operators"
	ModePlanner   Mode = "planner"
)

var modes = []Mode{ModeLLM, ModeSearch, ModeDocument, ModeImage, ModeDataset, ModeOperators, ModePlanner}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return ModeLLM, nil
	}
	for _, known := range modes {
		if m == known {
			return m, nil
		}
	}
	return "", configErrorf("unknown mode %q", s)
}

func configErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), plan.ErrConfig)
}

// Meta is the validated description of one table build. Builders hand out
// copies; a Meta never changes once built.
type Meta struct {
	TableName   string
	Content     string
	Schema      schema.Schema
	BaseColumns []string
	Mode        Mode
	Operators   []string
	// Data and DataSource are mutually exclusive external inputs.
	Data         *table.Table
	DataSource   string
	ChunkSize    int
	Layout       plan.Layout
	Links        []string
	Images       []string
	Documents    []string
	SearchAPIKey string
	Crawl        bool
}

func (m Meta) clone() Meta {
	m.BaseColumns = append([]string(nil), m.BaseColumns...)
	m.Operators = append([]string(nil), m.Operators...)
	m.Links = append([]string(nil), m.Links...)
	m.Images = append([]string(nil), m.Images...)
	m.Documents = append([]string(nil), m.Documents...)
	if m.Data != nil {
		m.Data = m.Data.Clone()
	}
	return m
}

func (m Meta) options(parallelism int) plan.Options {
	return plan.Options{
		Layout:      m.Layout,
		BaseColumns: m.BaseColumns,
		ChunkSize:   m.ChunkSize,
		Parallelism: parallelism,
	}
}

// validate checks the invariants that depend on the mode.
func (m Meta) validate() error {
	if strings.TrimSpace(m.Content) == "" {
		return configErrorf("content must be set")
	}
	if m.Schema.Empty() {
		return configErrorf("schema must be set")
	}
	if m.ChunkSize <= 0 {
		return configErrorf("chunk size must be positive, got %d", m.ChunkSize)
	}
	for _, c := range m.BaseColumns {
		if _, ok := m.Schema.Lookup(c); !ok {
			return configErrorf("base column %q is not in the schema %s", c, m.Schema)
		}
	}
	switch m.Mode {
	case ModePlanner:
		if len(m.BaseColumns) == 0 {
			return configErrorf("base columns must be specified in planner mode")
		}
	case ModeOperators:
		if len(m.Operators) == 0 {
			return configErrorf("a list of operators must be provided in operators mode")
		}
	case ModeImage:
		if len(m.Images) == 0 {
			return configErrorf("image paths must be specified in image mode")
		}
	case ModeDataset:
		if m.Data == nil && m.DataSource == "" {
			return configErrorf("data or a data source must be set in dataset mode")
		}
	case ModeLLM, ModeSearch, ModeDocument:
	default:
		return configErrorf("unknown mode %q", m.Mode)
	}
	return nil
}
