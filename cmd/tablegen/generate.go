package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/melkeydev/mcp-tablegen/engine"
	"github.com/melkeydev/mcp-tablegen/plan"
	"github.com/melkeydev/mcp-tablegen/session"
	"github.com/melkeydev/mcp-tablegen/table"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// tableFlags describes one table on the command line.
type tableFlags struct {
	name        string
	content     string
	schema      string
	mode        string
	layout      string
	chunkSize   int
	baseColumns []string
	operators   []string
	dataSource  string
	links       []string
	images      []string
	documents   []string
	csv         []string
	parquet     []string
	dbTables    []string
	crawl       bool
}

func (f *tableFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "generated", "table name")
	fs.StringVar(&f.content, "content", "", "natural language description of the table")
	fs.StringVar(&f.schema, "schema", "", `columns and types, e.g. "name string, population int"`)
	fs.StringVar(&f.mode, "mode", "llm", "generation mode: llm, search, document, image, dataset, operators or planner")
	fs.StringVar(&f.layout, "layout", "", "answer layout requested from the model: row or column")
	fs.IntVar(&f.chunkSize, "chunk-size", 0, "input rows per partition")
	fs.StringSliceVar(&f.baseColumns, "base-columns", nil, "columns joining generated rows to the input rows")
	fs.StringSliceVar(&f.operators, "operators", nil, "operators of operators mode, in execution order")
	fs.StringVar(&f.dataSource, "data-source", "", "registered source used as input data")
	fs.StringSliceVar(&f.links, "links", nil, "pages to crawl instead of searching")
	fs.StringSliceVar(&f.images, "images", nil, "image files or directories")
	fs.StringSliceVar(&f.documents, "documents", nil, "document paths (.txt, .md, .html, .pdf)")
	fs.StringArrayVar(&f.csv, "csv", nil, "register a CSV file as name=path")
	fs.StringArrayVar(&f.parquet, "parquet", nil, "register a Parquet file as name=path")
	fs.StringArrayVar(&f.dbTables, "db-table", nil, "register a database table as name=table")
	fs.BoolVar(&f.crawl, "crawl", false, "fetch search result pages instead of using snippets")
	_ = cobra.MarkFlagRequired(fs, "content")
	_ = cobra.MarkFlagRequired(fs, "schema")
}

// builder applies the flags to a new table builder. Unset flags keep the
// configured defaults.
func (f *tableFlags) builder(cmd *cobra.Command, s *session.Session) (*session.TableBuilder, error) {
	mode, err := session.ParseMode(f.mode)
	if err != nil {
		return nil, err
	}
	layoutName := f.layout
	if layoutName == "" {
		layoutName = cfg.Generation.Layout
	}
	layout, err := plan.ParseLayout(layoutName)
	if err != nil {
		return nil, err
	}
	chunkSize := f.chunkSize
	if chunkSize == 0 {
		chunkSize = cfg.Generation.ChunkSize
	}

	b := s.TableBuilder().
		SetTableName(f.name).
		SetContent(f.content).
		SetSchema(f.schema).
		SetMode(mode).
		SetLayout(layout).
		SetChunkSize(chunkSize).
		AddImages(f.images...).
		AddDocuments(f.documents...)
	if cmd.Flags().Changed("crawl") {
		b.SetCrawl(f.crawl)
	}
	if len(f.baseColumns) > 0 {
		b.SetBaseColumns(f.baseColumns...)
	}
	if len(f.operators) > 0 {
		b.SetOperators(f.operators...)
	}
	if f.dataSource != "" {
		b.SetDataSource(f.dataSource)
	}
	for _, link := range f.links {
		b.AddLink(link)
	}

	for _, spec := range f.csv {
		name, path, err := parseNamed(spec)
		if err != nil {
			return nil, err
		}
		b.AddCSVFile(name, path)
	}
	for _, spec := range f.parquet {
		name, path, err := parseNamed(spec)
		if err != nil {
			return nil, err
		}
		b.AddParquetFile(name, path)
	}
	for _, spec := range f.dbTables {
		name, tableName, err := parseNamed(spec)
		if err != nil {
			return nil, err
		}
		b.AddDatabaseTable(name, tableName)
	}
	return b, nil
}

// parseNamed splits a name=value flag.
func parseNamed(spec string) (string, string, error) {
	name, value, ok := strings.Cut(spec, "=")
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	if !ok || name == "" || value == "" {
		return "", "", errors.Newf("invalid source %q: expected name=value", spec)
	}
	return name, value, nil
}

var (
	generateFlags tableFlags
	parallel      bool
	outPath       string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "generate a table and print it",
	Long: `
Builds the operator chain for the described table, runs it and prints the
result. With --out the table is also written to a .csv or .parquet file.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, closeDB, err := session.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = closeDB() }()

		b, err := generateFlags.builder(cmd, s)
		if err != nil {
			return err
		}
		root, err := b.Build(ctx)
		if err != nil {
			return err
		}

		start := time.Now()
		before := s.Usage()
		out, err := s.Materialize(ctx, root, parallel)
		if err != nil {
			return err
		}
		after := s.Usage()

		renderTable(cmd.OutOrStdout(), out)
		fmt.Fprintf(cmd.OutOrStdout(), "%s rows in %s (%s LLM calls, %s input tokens, %s output tokens)\n",
			humanize.Comma(int64(out.NumRows())),
			time.Since(start).Round(time.Millisecond),
			humanize.Comma(after.Calls-before.Calls),
			humanize.Comma(after.InputTokens-before.InputTokens),
			humanize.Comma(after.OutputTokens-before.OutputTokens),
		)

		if outPath == "" {
			return nil
		}
		if err := writeTable(outPath, out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outPath)
		return nil
	},
}

var explainFlags tableFlags

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "print the operator chain of a table without running it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, closeDB, err := session.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = closeDB() }()

		b, err := explainFlags.builder(cmd, s)
		if err != nil {
			return err
		}
		root, err := b.Build(ctx)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), root.ExplainString())
		return nil
	},
}

func init() {
	generateFlags.register(generateCmd.Flags())
	generateCmd.Flags().BoolVar(&parallel, "parallel", false, "process input partitions concurrently, dropping failed ones")
	generateCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the result to a .csv or .parquet file")
	explainFlags.register(explainCmd.Flags())
}

func renderTable(w io.Writer, t *table.Table) {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeader(t.Schema().Names())
	tw.AppendBulk(t.StringRows())
	tw.Render()
}

// writeTable exports t in the format named by the file extension.
func writeTable(path string, t *table.Table) (err error) {
	var write func(io.Writer, *table.Table) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		write = engine.WriteCSV
	case ".parquet":
		write = engine.WriteParquet
	default:
		return errors.Newf("unsupported output format %q: use .csv or .parquet", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, t)
}
