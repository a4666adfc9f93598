package plan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/melkeydev/mcp-tablegen/table"
	"golang.org/x/sync/errgroup"
)

// Partitions materializes t and cuts the result into contiguous slices of at
// most ChunkSize rows, in row order. An empty table has no partitions.
func (t *PhysicalTable) Partitions(ctx context.Context) ([]*table.Table, error) {
	data, err := t.Materialize(ctx, 1)
	if err != nil {
		return nil, err
	}
	n := (data.NumRows() + t.chunkSize - 1) / t.chunkSize
	partitions := make([]*table.Table, 0, n)
	for offset := 0; offset < data.NumRows(); offset += t.chunkSize {
		partitions = append(partitions, data.Slice(offset, t.chunkSize))
	}
	return partitions, nil
}

// Materialize produces the table of t. Partitions of the child are processed
// one after another, in order; an operator without a child generates
// requested partitions from scratch. The first error aborts the whole call.
func (t *PhysicalTable) Materialize(ctx context.Context, requested int) (*table.Table, error) {
	if dv, ok := t.variant.(dataVariant); ok {
		return dv.data(ctx)
	}

	partitions, err := t.inputPartitions(ctx, requested)
	if err != nil {
		return nil, err
	}

	run := uuid.NewString()
	start := time.Now()
	var fragments []*table.Table
	for i, partition := range partitions {
		slog.Info("processing partition",
			"run", run,
			"operator", t.OperatorName(),
			"partition", i+1,
			"partitions", len(partitions),
		)
		generated, err := t.generate(ctx, partition, false)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: partition %d/%d", t.OperatorName(), i+1, len(partitions))
		}
		for _, g := range generated {
			result, err := t.merge(partition, g)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: partition %d/%d", t.OperatorName(), i+1, len(partitions))
			}
			if len(fragments) > 0 {
				if result, err = result.Cast(fragments[0].Schema()); err != nil {
					return nil, errors.Wrapf(err, "%s: partition %d/%d", t.OperatorName(), i+1, len(partitions))
				}
			}
			fragments = append(fragments, result)
		}
	}

	if len(fragments) == 0 {
		return table.Empty(t.logical.Schema), nil
	}
	out, err := table.Concat(fragments...)
	if err != nil {
		return nil, err
	}
	slog.Info("materialized table",
		"run", run,
		"operator", t.OperatorName(),
		"rows", out.NumRows(),
		"elapsed", time.Since(start).String(),
	)
	return out, nil
}

// MaterializeParallel processes every child partition concurrently. A
// partition whose generation fails, or whose answer does not carry exactly
// the schema's columns, is dropped and only logged. Surviving fragments are
// concatenated in completion order, not partition order.
func (t *PhysicalTable) MaterializeParallel(ctx context.Context) (*table.Table, error) {
	if t.child == nil {
		return nil, configErrorf("%s: parallel materialization requires a child operator", t.OperatorName())
	}
	partitions, err := t.child.Partitions(ctx)
	if err != nil {
		return nil, err
	}

	run := uuid.NewString()
	var mu sync.Mutex
	var survivors []*table.Table
	dropped := 0

	var g errgroup.Group
	g.SetLimit(t.parallelism)
	for i, partition := range partitions {
		g.Go(func() error {
			slog.Info("processing partition",
				"run", run,
				"operator", t.OperatorName(),
				"partition", i+1,
				"partitions", len(partitions),
			)
			generated, err := t.generate(ctx, partition, true)
			var fragment *table.Table
			if err == nil {
				fragment, err = concatGenerated(t, generated)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				dropped++
				slog.Warn("dropping partition",
					"run", run,
					"operator", t.OperatorName(),
					"partition", i+1,
					"partitions", len(partitions),
					"error", err.Error(),
				)
				return nil
			}
			survivors = append(survivors, fragment)
			slog.Info("finished partition",
				"run", run,
				"partition", i+1,
				"partitions", len(partitions),
				"input_rows", partition.NumRows(),
				"output_rows", fragment.NumRows(),
			)
			return nil
		})
	}
	_ = g.Wait()

	if dropped > 0 {
		slog.Warn("parallel materialization dropped partitions",
			"run", run,
			"operator", t.OperatorName(),
			"dropped", dropped,
			"partitions", len(partitions),
		)
	}
	if len(survivors) == 0 {
		return table.Empty(t.logical.Schema), nil
	}
	for i := range survivors {
		if survivors[i], err = survivors[i].Cast(survivors[0].Schema()); err != nil {
			return nil, err
		}
	}
	out, err := table.Concat(survivors...)
	if err != nil {
		return nil, err
	}
	slog.Info("done", "run", run, "rows", out.NumRows())
	return out, nil
}

func (t *PhysicalTable) inputPartitions(ctx context.Context, requested int) ([]*table.Table, error) {
	if t.child != nil {
		return t.child.Partitions(ctx)
	}
	if requested < 1 {
		requested = 1
	}
	return make([]*table.Table, requested), nil
}

// generate prompts the model for one partition and casts every answer to the
// logical schema. With checkColumns set, an answer whose column names differ
// from the schema is reported as ErrSchemaMismatch before casting.
func (t *PhysicalTable) generate(ctx context.Context, partition *table.Table, checkColumns bool) ([]*table.Table, error) {
	prompts, err := t.Prompts(ctx, partition)
	if err != nil {
		return nil, err
	}
	out := make([]*table.Table, 0, len(prompts))
	for i, p := range prompts {
		resp, err := t.client.Call(ctx, p)
		if err != nil {
			return nil, errors.Wrapf(err, "llm call %d/%d", i+1, len(prompts))
		}
		slog.Debug("llm response", "operator", t.OperatorName(), "prompt_bytes", len(p), "response_bytes", len(resp))

		columns, err := ParseResponse(resp, t.layout, t.logical.Schema)
		if err != nil {
			return nil, err
		}
		if checkColumns {
			names := make([]string, 0, len(columns))
			for n := range columns {
				names = append(names, n)
			}
			if !t.logical.Schema.SameNames(names) {
				return nil, errors.Mark(
					errors.Newf("different schema: %v != %v", names, t.logical.Schema.Names()),
					ErrSchemaMismatch,
				)
			}
		}
		fragment, err := table.FromColumns(t.logical.Schema, columns)
		if err != nil {
			return nil, err
		}
		out = append(out, fragment)
	}
	return out, nil
}

// merge joins a generated fragment onto its input partition when base
// columns are set, keeping the logical schema.
func (t *PhysicalTable) merge(partition, generated *table.Table) (*table.Table, error) {
	if partition == nil || len(t.baseColumns) == 0 {
		return generated, nil
	}
	joined, err := table.InnerJoin(partition, generated, t.baseColumns)
	if err != nil {
		return nil, err
	}
	projected, err := joined.Select(t.logical.Schema.Names()...)
	if err != nil {
		return nil, err
	}
	return projected.Cast(t.logical.Schema)
}

func concatGenerated(t *PhysicalTable, generated []*table.Table) (*table.Table, error) {
	if len(generated) == 0 {
		return table.Empty(t.logical.Schema), nil
	}
	return table.Concat(generated...)
}
