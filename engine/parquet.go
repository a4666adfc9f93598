package engine

import (
	"context"
	"io"
	"os"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"
	"github.com/apache/arrow/go/v11/parquet"
	"github.com/apache/arrow/go/v11/parquet/pqarrow"
	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/melkeydev/mcp-tablegen/table"
)

// ReadParquetFile reads every row group of a Parquet file. Integer and
// floating point columns of any width are widened to int and float.
func ReadParquetFile(ctx context.Context, path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	mem := memory.DefaultAllocator
	at, err := pqarrow.ReadTable(ctx, f, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, errors.Wrapf(err, "reading parquet %s", path)
	}
	defer at.Release()

	s, err := schema.FromArrow(at.Schema())
	if err != nil {
		return nil, errors.Wrapf(err, "parquet %s", path)
	}
	columns := make(map[string][]any, s.Len())
	for i, attr := range s.Attributes() {
		values := make([]any, 0, at.NumRows())
		for _, chunk := range at.Column(i).Data().Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				v, err := arrowValue(chunk, j)
				if err != nil {
					return nil, errors.Wrapf(err, "column %q", attr.Name)
				}
				values = append(values, v)
			}
		}
		columns[attr.Name] = values
	}
	return table.FromColumns(s, columns)
}

func arrowValue(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Boolean:
		return a.Value(i), nil
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Uint8:
		return int64(a.Value(i)), nil
	case *array.Uint16:
		return int64(a.Value(i)), nil
	case *array.Uint32:
		return int64(a.Value(i)), nil
	case *array.Uint64:
		return int64(a.Value(i)), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.Float64:
		return a.Value(i), nil
	default:
		return nil, errors.Newf("unsupported arrow array %s", arr.DataType())
	}
}

// WriteParquet writes t as a single row group.
func WriteParquet(w io.Writer, t *table.Table) error {
	as := t.Schema().ToArrow()
	b := array.NewRecordBuilder(memory.DefaultAllocator, as)
	defer b.Release()

	for c, attr := range t.Schema().Attributes() {
		values, _ := t.Column(attr.Name)
		for _, v := range values {
			if v == nil {
				b.Field(c).AppendNull()
				continue
			}
			switch fb := b.Field(c).(type) {
			case *array.Int64Builder:
				fb.Append(v.(int64))
			case *array.Float64Builder:
				fb.Append(v.(float64))
			case *array.BooleanBuilder:
				fb.Append(v.(bool))
			case *array.StringBuilder:
				fb.Append(v.(string))
			default:
				return errors.Newf("column %q: unsupported builder %T", attr.Name, fb)
			}
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	fw, err := pqarrow.NewFileWriter(as, w, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		return errors.Wrap(err, "creating parquet writer")
	}
	if err := fw.Write(rec); err != nil {
		return errors.Wrap(err, "writing parquet record")
	}
	return fw.Close()
}
