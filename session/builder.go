package session

import (
	"context"
	"log/slog"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/plan"
	"github.com/melkeydev/mcp-tablegen/planner"
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/melkeydev/mcp-tablegen/table"
)

type fileSource struct {
	name, path string
}

// TableBuilder collects the description of one table. The first invalid
// setting is remembered and returned by Build; later calls are ignored.
type TableBuilder struct {
	s          *Session
	meta       Meta
	child      *plan.PhysicalTable
	csv        []fileSource
	parquet    []fileSource
	dbTables   []fileSource
	registered bool
	err        error
}

func newTableBuilder(s *Session) *TableBuilder {
	return &TableBuilder{
		s: s,
		meta: Meta{
			Mode:      ModeLLM,
			ChunkSize: plan.DefaultChunkSize,
			Layout:    plan.Row,
			Crawl:     s.crawl,
		},
	}
}

func (b *TableBuilder) fail(err error) *TableBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *TableBuilder) SetTableName(name string) *TableBuilder {
	b.meta.TableName = name
	return b
}

func (b *TableBuilder) SetContent(content string) *TableBuilder {
	b.meta.Content = content
	return b
}

// SetSchema parses a schema such as "name string, population int".
func (b *TableBuilder) SetSchema(spec string) *TableBuilder {
	s, err := schema.FromString(spec)
	if err != nil {
		return b.fail(errors.Mark(errors.Wrap(err, "invalid schema"), plan.ErrConfig))
	}
	b.meta.Schema = s
	return b
}

func (b *TableBuilder) SetSchemaValue(s schema.Schema) *TableBuilder {
	b.meta.Schema = s
	return b
}

func (b *TableBuilder) SetBaseColumns(columns ...string) *TableBuilder {
	b.meta.BaseColumns = append([]string(nil), columns...)
	return b
}

func (b *TableBuilder) SetMode(m Mode) *TableBuilder {
	b.meta.Mode = m
	return b
}

// SetOperators sets the operators of OPERATORS mode, in execution order.
func (b *TableBuilder) SetOperators(operators ...string) *TableBuilder {
	seen := make(map[string]bool, len(operators))
	for _, op := range operators {
		if seen[op] {
			return b.fail(configErrorf("duplicate operator %q: each operator may appear only once", op))
		}
		seen[op] = true
	}
	b.meta.Operators = append([]string(nil), operators...)
	return b
}

// SetData supplies rows the first operator consumes. It conflicts with a
// child table.
func (b *TableBuilder) SetData(t *table.Table) *TableBuilder {
	switch {
	case t == nil:
		return b.fail(configErrorf("data is nil"))
	case b.child != nil:
		return b.fail(configErrorf("cannot set data when a child table is already set"))
	case b.meta.DataSource != "":
		return b.fail(configErrorf("cannot set data when data source %q is already set", b.meta.DataSource))
	}
	b.meta.Data = t.Clone()
	return b
}

// SetDataSource uses a registered source as the input data.
func (b *TableBuilder) SetDataSource(name string) *TableBuilder {
	switch {
	case b.child != nil:
		return b.fail(configErrorf("cannot set a data source when a child table is already set"))
	case b.meta.Data != nil:
		return b.fail(configErrorf("cannot set a data source when data is already set"))
	}
	b.meta.DataSource = name
	return b
}

func (b *TableBuilder) SetChildTable(child *plan.PhysicalTable) *TableBuilder {
	if b.meta.Data != nil || b.meta.DataSource != "" {
		return b.fail(configErrorf("cannot set a child table when data is already set"))
	}
	b.child = child
	return b
}

func (b *TableBuilder) SetChunkSize(n int) *TableBuilder {
	if n <= 0 {
		return b.fail(configErrorf("chunk size must be positive, got %d", n))
	}
	b.meta.ChunkSize = n
	return b
}

func (b *TableBuilder) SetLayout(l plan.Layout) *TableBuilder {
	b.meta.Layout = l
	return b
}

func (b *TableBuilder) AddLink(link string) *TableBuilder {
	if !slices.Contains(b.meta.Links, link) {
		b.meta.Links = append(b.meta.Links, link)
	}
	return b
}

// AddImages adds image files or directories of images.
func (b *TableBuilder) AddImages(paths ...string) *TableBuilder {
	for _, p := range paths {
		if !slices.Contains(b.meta.Images, p) {
			b.meta.Images = append(b.meta.Images, p)
		}
	}
	return b
}

func (b *TableBuilder) AddDocuments(paths ...string) *TableBuilder {
	for _, p := range paths {
		if !slices.Contains(b.meta.Documents, p) {
			b.meta.Documents = append(b.meta.Documents, p)
		}
	}
	return b
}

func (b *TableBuilder) SetSearchAPIKey(key string) *TableBuilder {
	b.meta.SearchAPIKey = key
	return b
}

func (b *TableBuilder) SetCrawl(crawl bool) *TableBuilder {
	b.meta.Crawl = crawl
	return b
}

// AddCSVFile registers a CSV file under name when the table is built.
func (b *TableBuilder) AddCSVFile(name, path string) *TableBuilder {
	b.csv = append(b.csv, fileSource{name, path})
	return b
}

func (b *TableBuilder) AddParquetFile(name, path string) *TableBuilder {
	b.parquet = append(b.parquet, fileSource{name, path})
	return b
}

// AddDatabaseTable registers a table of the session database under name.
func (b *TableBuilder) AddDatabaseTable(name, tableName string) *TableBuilder {
	b.dbTables = append(b.dbTables, fileSource{name, tableName})
	return b
}

// Meta returns a copy of the current description.
func (b *TableBuilder) Meta() Meta {
	return b.meta.clone()
}

func (b *TableBuilder) registerSources(ctx context.Context) error {
	if b.registered {
		return nil
	}
	r := b.s.registry
	for _, f := range b.csv {
		if err := r.RegisterCSV(f.name, f.path); err != nil {
			return err
		}
	}
	for _, f := range b.parquet {
		if err := r.RegisterParquet(ctx, f.name, f.path); err != nil {
			return err
		}
	}
	for _, f := range b.dbTables {
		if b.s.db == nil {
			return configErrorf("source %q: no database is configured", f.name)
		}
		if err := r.RegisterDatabase(ctx, f.name, b.s.db, f.path); err != nil {
			return err
		}
	}
	b.registered = true
	return nil
}

// Build validates the description, registers the added sources and returns
// the root of the operator chain.
func (b *TableBuilder) Build(ctx context.Context) (*plan.PhysicalTable, error) {
	if b.err != nil {
		return nil, b.err
	}
	meta := b.meta.clone()
	if err := meta.validate(); err != nil {
		return nil, err
	}
	if err := b.registerSources(ctx); err != nil {
		return nil, err
	}

	logical, err := plan.NewLogicalTable(meta.TableName, meta.Content, meta.Schema)
	if err != nil {
		return nil, err
	}
	opts := meta.options(b.s.parallelism)

	child := b.child
	switch {
	case meta.Data != nil:
		child, err = plan.NewCustomTable("data", meta.Data, opts)
	case meta.DataSource != "":
		child, err = plan.NewSourceTable(meta.DataSource, b.s.registry, opts)
	}
	if err != nil {
		return nil, err
	}

	deps := planner.Deps{
		LLM:      b.s.llm,
		Searcher: b.s.searcherFor(meta),
		Search: plan.SearchConfig{
			Links:      meta.Links,
			Crawl:      meta.Crawl,
			HTTPClient: b.s.http,
		},
		Documents: meta.Documents,
		Images:    meta.Images,
	}

	var root *plan.PhysicalTable
	switch meta.Mode {
	case ModeLLM:
		root, err = planner.Chain(logical, child, []string{plan.LLMOperator}, deps, opts)
	case ModeSearch:
		root, err = planner.Chain(logical, child, []string{plan.SearchOperator}, deps, opts)
	case ModeDocument:
		root, err = planner.Chain(logical, child, []string{plan.DocumentOperator}, deps, opts)
	case ModeImage:
		root, err = planner.Chain(logical, child, []string{plan.ImageOperator}, deps, opts)
	case ModeOperators:
		root, err = planner.Chain(logical, child, meta.Operators, deps, opts)
	case ModePlanner:
		root, err = b.s.planner.Plan(ctx, logical, child, b.s.registry.Tables(), deps, opts)
	case ModeDataset:
		root = child
	}
	if err != nil {
		return nil, err
	}
	slog.Info("built table plan", "table", meta.TableName, "mode", meta.Mode, "operators", root.Depth())
	return root, nil
}
