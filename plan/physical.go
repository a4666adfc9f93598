package plan

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/melkeydev/mcp-tablegen/llm"
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/melkeydev/mcp-tablegen/table"
)

const DefaultChunkSize = 20

// Options are fixed when an operator is built and flow down the chain.
type Options struct {
	Layout Layout
	// BaseColumns is the join key used to merge generated rows back onto
	// the rows of the child partition.
	BaseColumns []string
	// ChunkSize is the number of child rows per partition.
	ChunkSize int
	// Parallelism bounds the concurrent partitions of MaterializeParallel.
	// Zero means GOMAXPROCS.
	Parallelism int
}

// variant is one generation strategy. The set is closed: every variant is
// declared in this package.
type variant interface {
	// name is the operator identifier, e.g. "llm_table".
	name() string
	// label is the name shown by Explain, e.g. "LLMTable".
	label() string
	prompts(ctx context.Context, t *PhysicalTable, partition *table.Table) ([]string, error)
}

// dataVariant is a variant that supplies rows directly instead of prompting.
type dataVariant interface {
	variant
	data(ctx context.Context) (*table.Table, error)
}

// PhysicalTable is one operator of a chain. It owns its child exclusively and
// never changes after construction.
type PhysicalTable struct {
	variant     variant
	logical     *LogicalTable
	child       *PhysicalTable
	client      llm.Client
	layout      Layout
	baseColumns []string
	chunkSize   int
	parallelism int
}

func newPhysicalTable(v variant, logical *LogicalTable, child *PhysicalTable, client llm.Client, opts Options) (*PhysicalTable, error) {
	if logical == nil {
		return nil, configErrorf("%s: logical table is required", v.name())
	}
	if _, isData := v.(dataVariant); !isData && client == nil {
		return nil, configErrorf("%s: llm client is required", v.name())
	}
	if opts.ChunkSize < 0 {
		return nil, configErrorf("%s: chunk size must be positive, got %d", v.name(), opts.ChunkSize)
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Layout != Row && opts.Layout != Column {
		return nil, configErrorf("%s: unknown layout %d", v.name(), opts.Layout)
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}
	return &PhysicalTable{
		variant:     v,
		logical:     logical,
		child:       child,
		client:      client,
		layout:      opts.Layout,
		baseColumns: append([]string(nil), opts.BaseColumns...),
		chunkSize:   opts.ChunkSize,
		parallelism: opts.Parallelism,
	}, nil
}

// OperatorName returns the strategy identifier, e.g. "search_engine_table".
func (t *PhysicalTable) OperatorName() string { return t.variant.name() }

func (t *PhysicalTable) Logical() *LogicalTable { return t.logical }

func (t *PhysicalTable) Schema() schema.Schema { return t.logical.Schema }

func (t *PhysicalTable) Child() *PhysicalTable { return t.child }

func (t *PhysicalTable) Layout() Layout { return t.layout }

func (t *PhysicalTable) ChunkSize() int { return t.chunkSize }

func (t *PhysicalTable) BaseColumns() []string {
	return append([]string(nil), t.baseColumns...)
}

// Prompts renders the prompts this operator sends for one child partition.
// A nil partition means there is no input data.
func (t *PhysicalTable) Prompts(ctx context.Context, partition *table.Table) ([]string, error) {
	return t.variant.prompts(ctx, t, partition)
}

func (t *PhysicalTable) String() string {
	return fmt.Sprintf("%s[schema=%v]", t.variant.label(), t.logical.Schema.Names())
}

// Explain writes the chain from root to leaf, one operator per line, each
// level prefixed with "--".
func (t *PhysicalTable) Explain(w io.Writer) error {
	depth := 0
	for n := t; n != nil; n = n.child {
		if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat("--", depth), n); err != nil {
			return err
		}
		depth++
	}
	return nil
}

func (t *PhysicalTable) ExplainString() string {
	var sb strings.Builder
	_ = t.Explain(&sb)
	return sb.String()
}

// Depth returns the number of operators in the chain rooted at t.
func (t *PhysicalTable) Depth() int {
	n := 0
	for c := t; c != nil; c = c.child {
		n++
	}
	return n
}
