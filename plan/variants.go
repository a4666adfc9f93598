package plan

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/llm"
	"github.com/melkeydev/mcp-tablegen/loader"
	"github.com/melkeydev/mcp-tablegen/prompt"
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/melkeydev/mcp-tablegen/search"
	"github.com/melkeydev/mcp-tablegen/table"
)

// Operator identifiers.
const (
	LLMOperator      = "llm_table"
	SearchOperator   = "search_engine_table"
	DocumentOperator = "document_table"
	ImageOperator    = "image_table"
	CustomOperator   = "custom_table"
)

// NewLLMTable builds an operator that asks the model to produce the table from
// its own knowledge, given the child partition if any.
func NewLLMTable(logical *LogicalTable, child *PhysicalTable, client llm.Client, opts Options) (*PhysicalTable, error) {
	return newPhysicalTable(llmVariant{}, logical, child, client, opts)
}

type llmVariant struct{}

func (llmVariant) name() string  { return LLMOperator }
func (llmVariant) label() string { return "LLMTable" }

func (llmVariant) prompts(_ context.Context, t *PhysicalTable, partition *table.Table) ([]string, error) {
	data, err := serialize(partition, nil)
	if err != nil {
		return nil, err
	}
	if data != "" {
		data = "Original data: " + data
	}
	p, err := t.renderTable(data)
	if err != nil {
		return nil, err
	}
	return []string{p}, nil
}

// SearchConfig configures the search engine operator.
type SearchConfig struct {
	// Links skips the search step and crawls these pages instead.
	Links []string
	// Crawl fetches every result page and prompts on the page text, one
	// prompt per text chunk, instead of on the result snippets.
	Crawl      bool
	HTTPClient *http.Client
}

// NewSearchTable builds an operator that grounds generation on web search
// results.
func NewSearchTable(logical *LogicalTable, child *PhysicalTable, client llm.Client, searcher search.Searcher, cfg SearchConfig, opts Options) (*PhysicalTable, error) {
	if searcher == nil && len(cfg.Links) == 0 {
		return nil, configErrorf("%s: a searcher or a list of links is required", SearchOperator)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	v := &searchVariant{
		searcher: searcher,
		links:    append([]string(nil), cfg.Links...),
		crawl:    cfg.Crawl,
		http:     cfg.HTTPClient,
		splitter: loader.NewSplitter(),
	}
	return newPhysicalTable(v, logical, child, client, opts)
}

type searchVariant struct {
	searcher search.Searcher
	links    []string
	crawl    bool
	http     *http.Client
	splitter loader.Splitter
}

func (*searchVariant) name() string  { return SearchOperator }
func (*searchVariant) label() string { return "SearchEngineTable" }

func (v *searchVariant) prompts(ctx context.Context, t *PhysicalTable, partition *table.Table) ([]string, error) {
	data, err := serialize(partition, t.baseColumns)
	if err != nil {
		return nil, err
	}

	links := append([]string(nil), v.links...)
	crawl := v.crawl || len(links) > 0
	var results strings.Builder
	if len(links) == 0 {
		queries, err := v.queries(ctx, t, data)
		if err != nil {
			return nil, err
		}
		for _, q := range queries {
			slog.Info("issuing search query", "operator", SearchOperator, "query", q)
			res, err := v.searcher.Search(ctx, q)
			if err != nil {
				return nil, errors.Wrapf(err, "search query %q", q)
			}
			b, err := json.Marshal(res.Organic)
			if err != nil {
				return nil, err
			}
			results.WriteString("\n")
			results.Write(b)
			links = append(links, res.Links()...)
		}
	}

	if !crawl {
		p, err := t.renderTable("Original data: " + data + "\nSearch results: " + results.String())
		if err != nil {
			return nil, err
		}
		return []string{p}, nil
	}

	var pages strings.Builder
	for _, link := range links {
		slog.Info("crawling link", "operator", SearchOperator, "link", link)
		text, err := search.Crawl(ctx, v.http, link)
		if err != nil {
			slog.Error("failed to crawl link", "link", link, "error", err.Error())
			continue
		}
		pages.WriteString("\n")
		pages.WriteString(text)
	}
	var prompts []string
	for _, chunk := range v.splitter.Split(pages.String()) {
		p, err := t.renderTable("Original data: " + data + "\nSearch results: " + chunk)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, nil
}

// queries asks the model for search engine queries, one per line.
func (v *searchVariant) queries(ctx context.Context, t *PhysicalTable, data string) ([]string, error) {
	p, err := prompt.RenderSearchQueries(prompt.SearchQueries{
		Description: t.logical.Prompt,
		Columns:     t.logical.Schema.Names(),
		Data:        data,
	})
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Call(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "generating search queries")
	}
	var queries []string
	for _, line := range strings.Split(resp, "\n") {
		line = strings.Trim(strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*")), `"`)
		if line != "" {
			queries = append(queries, line)
		}
	}
	slog.Info("generated search queries", "operator", SearchOperator, "queries", queries)
	return queries, nil
}

// NewDocumentTable builds an operator that extracts the table from local
// documents.
func NewDocumentTable(logical *LogicalTable, child *PhysicalTable, client llm.Client, paths []string, opts Options) (*PhysicalTable, error) {
	v := &documentVariant{paths: append([]string(nil), paths...), splitter: loader.NewSplitter()}
	return newPhysicalTable(v, logical, child, client, opts)
}

type documentVariant struct {
	paths    []string
	splitter loader.Splitter
}

func (*documentVariant) name() string  { return DocumentOperator }
func (*documentVariant) label() string { return "DocumentTable" }

func (v *documentVariant) prompts(_ context.Context, t *PhysicalTable, partition *table.Table) ([]string, error) {
	if len(v.paths) == 0 {
		slog.Warn("no document paths provided", "operator", DocumentOperator)
		return nil, nil
	}
	var all strings.Builder
	for _, path := range v.paths {
		text, err := loader.LoadDocument(path)
		if err != nil {
			slog.Error("failed to load document", "path", path, "error", err.Error())
			continue
		}
		all.WriteString("\n\n--- Document: " + path + " ---\n")
		all.WriteString(text)
	}
	if all.Len() == 0 {
		slog.Warn("no document content extracted", "operator", DocumentOperator)
		return nil, nil
	}

	data, err := serialize(partition, t.baseColumns)
	if err != nil {
		return nil, err
	}
	var prompts []string
	for _, chunk := range v.splitter.Split(all.String()) {
		source := "Document content:\n" + chunk
		if data != "" {
			source = "Original data: " + data + "\n" + source
		}
		p, err := t.renderTable(source)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, nil
}

// NewImageTable builds an operator that extracts one answer per image. Paths
// may name image files or directories of images.
func NewImageTable(logical *LogicalTable, child *PhysicalTable, client llm.Client, paths []string, opts Options) (*PhysicalTable, error) {
	if len(paths) == 0 {
		return nil, configErrorf("%s: image paths are required", ImageOperator)
	}
	return newPhysicalTable(&imageVariant{paths: append([]string(nil), paths...)}, logical, child, client, opts)
}

type imageVariant struct {
	paths []string
}

func (*imageVariant) name() string  { return ImageOperator }
func (*imageVariant) label() string { return "ImageTable" }

func (v *imageVariant) prompts(_ context.Context, t *PhysicalTable, partition *table.Table) ([]string, error) {
	data, err := serialize(partition, t.baseColumns)
	if err != nil {
		return nil, err
	}
	var prompts []string
	for _, path := range loader.ExpandImages(v.paths) {
		url, err := loader.LoadImage(path)
		if err != nil {
			slog.Warn("skipping image", "path", path, "error", err.Error())
			continue
		}
		source := "Image file: " + filepath.Base(path) + "\nImage path: " + path + "\nImage data: " + url
		if data != "" {
			source = "Original data: " + data + "\n" + source
		}
		p, err := t.renderTable(source)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	if len(prompts) == 0 {
		slog.Warn("no image prompts generated", "operator", ImageOperator)
	}
	return prompts, nil
}

// NewCustomTable wraps externally supplied rows. Materializing it returns a
// copy of data.
func NewCustomTable(name string, data *table.Table, opts Options) (*PhysicalTable, error) {
	if data == nil {
		return nil, configErrorf("%s: data is required", CustomOperator)
	}
	logical := &LogicalTable{Name: name, Prompt: "externally supplied data", Schema: data.Schema()}
	return newPhysicalTable(&customVariant{rows: data.Clone()}, logical, nil, nil, opts)
}

// Source resolves registered external tables by name.
type Source interface {
	Schema(name string) (schema.Schema, error)
	Scan(ctx context.Context, name string) (*table.Table, error)
}

// NewSourceTable wraps a table registered in src. The table is scanned when
// the operator is materialized.
func NewSourceTable(name string, src Source, opts Options) (*PhysicalTable, error) {
	s, err := src.Schema(name)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s: source %q", CustomOperator, name), ErrConfig)
	}
	logical := &LogicalTable{Name: name, Prompt: "registered source " + name, Schema: s}
	return newPhysicalTable(&customVariant{source: src, sourceName: name}, logical, nil, nil, opts)
}

type customVariant struct {
	rows       *table.Table
	source     Source
	sourceName string
}

func (*customVariant) name() string  { return CustomOperator }
func (*customVariant) label() string { return "CustomTable" }

func (*customVariant) prompts(context.Context, *PhysicalTable, *table.Table) ([]string, error) {
	return nil, nil
}

func (v *customVariant) data(ctx context.Context) (*table.Table, error) {
	if v.source == nil {
		return v.rows.Clone(), nil
	}
	t, err := v.source.Scan(ctx, v.sourceName)
	if err != nil {
		return nil, errors.Wrapf(err, "scanning source %q", v.sourceName)
	}
	return t, nil
}

func (t *PhysicalTable) renderTable(data string) (string, error) {
	return prompt.RenderTable(prompt.Table{
		Description: t.logical.Prompt,
		Columns:     t.logical.Schema.Names(),
		Data:        data,
		Layout:      t.layout.String(),
	})
}

// serialize renders a partition as JSON rows, projected onto columns when
// they are all present. A nil partition renders as "".
func serialize(partition *table.Table, columns []string) (string, error) {
	if partition == nil {
		return "", nil
	}
	if len(columns) > 0 {
		if projected, err := partition.Select(columns...); err == nil {
			partition = projected
		}
	}
	b, err := json.Marshal(partition)
	if err != nil {
		return "", errors.Wrap(err, "serializing partition")
	}
	return string(b), nil
}
