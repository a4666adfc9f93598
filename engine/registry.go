// Package engine registers external data sources by name so that operator
// chains can scan them, and exports result tables.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/databases"
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/melkeydev/mcp-tablegen/table"
	"github.com/melkeydev/mcp-tablegen/types"
)

// ErrUnknownSource is returned for a name that was never registered.
var ErrUnknownSource = errors.New("unknown source")

type Kind string

const (
	KindCSV      Kind = "csv"
	KindParquet  Kind = "parquet"
	KindDatabase Kind = "database"
	KindTable    Kind = "table"
)

type source struct {
	name   string
	kind   Kind
	origin string
	schema schema.Schema
	// data holds file and in-memory sources, loaded at registration.
	data *table.Table
	// db and dbTable are scanned on every Scan.
	db      databases.Database
	dbTable string
}

// Registry holds the registered sources. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*source)}
}

func (r *Registry) add(s *source) error {
	if s.name == "" {
		return errors.New("source name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[s.name]; ok {
		return errors.Newf("source %q is already registered", s.name)
	}
	r.sources[s.name] = s
	slog.Info("registered source", "name", s.name, "kind", s.kind, "origin", s.origin, "schema", s.schema.String())
	return nil
}

func (r *Registry) get(name string) (*source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	if !ok {
		return nil, errors.Mark(errors.Newf("source %q is not registered", name), ErrUnknownSource)
	}
	return s, nil
}

// RegisterTable registers an in-memory table. The table is copied.
func (r *Registry) RegisterTable(name string, t *table.Table) error {
	if t == nil {
		return errors.Newf("source %q: table is nil", name)
	}
	return r.add(&source{name: name, kind: KindTable, origin: "memory", schema: t.Schema(), data: t.Clone()})
}

// RegisterCSV loads a CSV file with a header row. Column types are inferred
// from the values.
func (r *Registry) RegisterCSV(name, path string) error {
	t, err := ReadCSVFile(path)
	if err != nil {
		return errors.Wrapf(err, "source %q", name)
	}
	return r.add(&source{name: name, kind: KindCSV, origin: path, schema: t.Schema(), data: t})
}

func (r *Registry) RegisterParquet(ctx context.Context, name, path string) error {
	t, err := ReadParquetFile(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "source %q", name)
	}
	return r.add(&source{name: name, kind: KindParquet, origin: path, schema: t.Schema(), data: t})
}

// RegisterDatabase registers a database table. Its schema is read now, its
// rows on every Scan.
func (r *Registry) RegisterDatabase(ctx context.Context, name string, db databases.Database, tableName string) error {
	columns, err := databases.Columns(ctx, db, tableName)
	if err != nil {
		return errors.Wrapf(err, "source %q", name)
	}
	s, err := schemaFromColumns(columns)
	if err != nil {
		return errors.Wrapf(err, "source %q", name)
	}
	return r.add(&source{name: name, kind: KindDatabase, origin: tableName, schema: s, db: db, dbTable: tableName})
}

func (r *Registry) Schema(name string) (schema.Schema, error) {
	s, err := r.get(name)
	if err != nil {
		return schema.Schema{}, err
	}
	return s.schema, nil
}

// Scan returns the rows of a registered source. The returned table is never
// shared with the registry.
func (r *Registry) Scan(ctx context.Context, name string) (*table.Table, error) {
	s, err := r.get(name)
	if err != nil {
		return nil, err
	}
	if s.db == nil {
		return s.data.Clone(), nil
	}
	records, err := s.db.ReadTable(ctx, s.dbTable)
	if err != nil {
		return nil, errors.Wrapf(err, "reading table %s", s.dbTable)
	}
	return tableFromRecords(s.schema, records)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// Sources describes every registered source, sorted by name.
func (r *Registry) Sources() []types.Source {
	names := r.Names()
	out := make([]types.Source, 0, len(names))
	for _, n := range names {
		s, err := r.get(n)
		if err != nil {
			continue
		}
		src := types.Source{Name: s.name, Kind: string(s.kind), Origin: s.origin}
		for _, a := range s.schema.Attributes() {
			src.Columns = append(src.Columns, types.Column{Name: a.Name, Type: string(a.Type), Nullable: true})
		}
		out = append(out, src)
	}
	return out
}

// Tables lists the sources as "name: schema" lines for prompts.
func (r *Registry) Tables() []string {
	names := r.Names()
	out := make([]string, 0, len(names))
	for _, n := range names {
		if s, err := r.get(n); err == nil {
			out = append(out, n+": "+s.schema.String())
		}
	}
	return out
}
