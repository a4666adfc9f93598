package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/melkeydev/mcp-tablegen/table"
)

func ReadCSVFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads a header row followed by records. Each column gets the
// narrowest type holding all of its values; empty fields are nulls.
func ReadCSV(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	if len(records) == 0 {
		return nil, errors.New("csv has no header row")
	}

	header := records[0]
	body := records[1:]
	attrs := make([]schema.Attribute, len(header))
	for c, name := range header {
		values := make([]string, len(body))
		for r, rec := range body {
			values[r] = rec[c]
		}
		attrs[c] = schema.Attribute{Name: strings.TrimSpace(name), Type: table.InferType(values)}
	}
	s, err := schema.New(attrs...)
	if err != nil {
		return nil, errors.Wrap(err, "csv header")
	}

	rows := make([][]any, len(body))
	for r, rec := range body {
		row := make([]any, len(rec))
		for c, field := range rec {
			if row[c], err = table.ParseValue(field, attrs[c].Type); err != nil {
				return nil, errors.Wrapf(err, "csv line %d", r+2)
			}
		}
		rows[r] = row
	}
	return table.FromRows(s, rows)
}

// WriteCSV writes t with a header row. Nulls are written as empty fields.
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Schema().Names()); err != nil {
		return err
	}
	record := make([]string, t.NumCols())
	for r := 0; r < t.NumRows(); r++ {
		for c := range record {
			record[c] = ""
			if v := t.Value(r, c); v != nil {
				record[c] = fmt.Sprint(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
