// Package session is the entry point for building and materializing
// generated tables.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/melkeydev/mcp-tablegen/config"
	"github.com/melkeydev/mcp-tablegen/databases"
	"github.com/melkeydev/mcp-tablegen/engine"
	"github.com/melkeydev/mcp-tablegen/llm"
	"github.com/melkeydev/mcp-tablegen/plan"
	"github.com/melkeydev/mcp-tablegen/planner"
	"github.com/melkeydev/mcp-tablegen/search"
	"github.com/melkeydev/mcp-tablegen/table"
)

// Session holds the collaborators shared by every table it builds.
type Session struct {
	llm         llm.Client
	searcher    search.Searcher
	registry    *engine.Registry
	db          databases.Database
	creds       *config.Credentials
	http        *http.Client
	parallelism int
	searchRPS   float64
	crawl       bool
	planner     *planner.Planner
}

type Option func(*Session)

// WithSearcher sets the search backend. Without it a Serper client is built
// from the resolved API key when a table needs one.
func WithSearcher(s search.Searcher) Option {
	return func(ss *Session) { ss.searcher = s }
}

func WithRegistry(r *engine.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithDatabase sets the database that AddDatabaseTable reads from.
func WithDatabase(db databases.Database) Option {
	return func(s *Session) { s.db = db }
}

func WithCredentials(c *config.Credentials) Option {
	return func(s *Session) { s.creds = c }
}

// WithHTTPClient sets the client used to crawl pages and query Serper.
func WithHTTPClient(h *http.Client) Option {
	return func(s *Session) { s.http = h }
}

func WithParallelism(n int) Option {
	return func(s *Session) { s.parallelism = n }
}

func WithSearchRequestsPerSecond(rps float64) Option {
	return func(s *Session) { s.searchRPS = rps }
}

// WithCrawl sets the crawl default of new table builders.
func WithCrawl(crawl bool) Option {
	return func(s *Session) { s.crawl = crawl }
}

func New(client llm.Client, opts ...Option) (*Session, error) {
	if client == nil {
		return nil, configErrorf("llm client is required")
	}
	s := &Session{
		llm:         client,
		parallelism: runtime.GOMAXPROCS(0),
		planner:     planner.New(client),
	}
	for _, o := range opts {
		o(s)
	}
	if s.registry == nil {
		s.registry = engine.NewRegistry()
	}
	if s.http == nil {
		s.http = &http.Client{Timeout: 30 * time.Second}
	}
	return s, nil
}

func (s *Session) Registry() *engine.Registry { return s.registry }

func (s *Session) LLM() llm.Client { return s.llm }

// Database returns the configured database, or nil.
func (s *Session) Database() databases.Database { return s.db }

// Usage reports the token counters of the session's client, when it keeps
// any.
func (s *Session) Usage() llm.Usage {
	if r, ok := s.llm.(llm.UsageReporter); ok {
		return r.Usage()
	}
	return llm.Usage{}
}

func (s *Session) TableBuilder() *TableBuilder {
	return newTableBuilder(s)
}

// Materialize runs the chain rooted at root, concurrently per partition when
// parallel is set.
func (s *Session) Materialize(ctx context.Context, root *plan.PhysicalTable, parallel bool) (*table.Table, error) {
	start := time.Now()
	before := s.Usage()
	var (
		out *table.Table
		err error
	)
	if parallel {
		out, err = root.MaterializeParallel(ctx)
	} else {
		out, err = root.Materialize(ctx, 1)
	}
	if err != nil {
		return nil, err
	}
	after := s.Usage()
	slog.Info("table generated",
		"table", root.Logical().Name,
		"rows", out.NumRows(),
		"llm_calls", after.Calls-before.Calls,
		"input_tokens", humanize.Comma(after.InputTokens-before.InputTokens),
		"output_tokens", humanize.Comma(after.OutputTokens-before.OutputTokens),
		"elapsed", time.Since(start).String(),
	)
	return out, nil
}

// searcherFor picks the search backend of one build. An API key set on the
// builder wins over the session searcher, which wins over the key found in
// the environment or the credentials file.
func (s *Session) searcherFor(meta Meta) search.Searcher {
	key := meta.SearchAPIKey
	if key == "" && s.searcher != nil {
		return s.searcher
	}
	key = s.creds.Resolve(key, config.SerperAPIKey)
	if key == "" {
		return nil
	}
	c, err := search.NewSerperClient(key,
		search.WithHTTPClient(s.http),
		search.WithRequestsPerSecond(s.searchRPS),
	)
	if err != nil {
		slog.Error("failed to create search client", "error", err.Error())
		return nil
	}
	return c
}
