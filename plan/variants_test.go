package plan

import (
	"bytes"
	"context"
	"log/slog"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/schema"
	"github.com/melkeydev/mcp-tablegen/search"
	"github.com/melkeydev/mcp-tablegen/table"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	mu      sync.Mutex
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, q string) (*search.Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	n := len(s.queries)
	return &search.Results{Organic: []search.Result{
		{Title: "result " + q, Link: fmt.Sprintf("https://example.com/%d", n), Snippet: "snippet for " + q, Position: 1},
	}}, nil
}

func TestParallelDropsMismatchedPartitions(t *testing.T) {
	child := customChild(t, "a int", [][]any{{1}, {2}, {3}, {4}, {5}, {6}}, 2)
	fake := newFake(func(p string) (string, error) {
		switch {
		case strings.Contains(p, `"a":1`):
			return `{"columns": {"a": [1, 2], "b": ["x", "y"], "c": ["p", "q"]}}`, nil
		case strings.Contains(p, `"a":3`):
			return `{"columns": {"a": [3, 4], "b": ["z", "w"]}}`, nil
		default:
			return "", errors.New("model unavailable")
		}
	})
	root, err := NewLLMTable(mustLogical(t, "letters", "a int, b string, c string"), child, fake,
		Options{Layout: Column, Parallelism: 2})
	require.NoError(t, err)

	out, err := root.MaterializeParallel(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, out.NumRows())
	require.Equal(t, []string{"a", "b", "c"}, out.Schema().Names())
	require.Equal(t, []any{int64(1), "x", "p"}, out.Row(0))
	require.Equal(t, int64(3), fake.Usage().Calls)
}

func TestParallelRowCountIsSumOfSurvivors(t *testing.T) {
	rows := make([][]any, 10)
	for i := range rows {
		rows[i] = []any{i}
	}
	child := customChild(t, "id int", rows, 3)
	// Every partition answers with one row per input row.
	fake := newFake(func(p string) (string, error) {
		var out []string
		for i := 0; i < 10; i++ {
			if strings.Contains(p, fmt.Sprintf(`{"id":%d}`, i)) {
				out = append(out, fmt.Sprintf(`[%d, "v%d"]`, i, i))
			}
		}
		return `{"rows": [` + strings.Join(out, ",") + `]}`, nil
	})
	root, err := NewLLMTable(mustLogical(t, "ids", "id int, value string"), child, fake, Options{Parallelism: 4})
	require.NoError(t, err)

	out, err := root.MaterializeParallel(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, out.NumRows())
	require.Equal(t, int64(4), fake.Usage().Calls)

	seen := map[int64]bool{}
	for _, r := range out.Rows() {
		seen[r[0].(int64)] = true
	}
	require.Len(t, seen, 10)
}

func TestParallelAllDroppedYieldsEmptyTable(t *testing.T) {
	child := customChild(t, "id int", [][]any{{1}, {2}}, 1)
	lt := mustLogical(t, "ids", "id int, value string")
	root, err := NewLLMTable(lt, child, newFake(func(string) (string, error) {
		return "not json", nil
	}), Options{})
	require.NoError(t, err)

	out, err := root.MaterializeParallel(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, out.NumRows())
	require.True(t, lt.Schema.Equal(out.Schema()))
}

func TestSequentialAbortsOnFirstError(t *testing.T) {
	child := customChild(t, "id int", [][]any{{1}, {2}, {3}}, 1)
	lt := mustLogical(t, "ids", "id int, value string")

	for name, tc := range map[string]struct {
		respond func(string) (string, error)
		target  error
	}{
		"parse": {
			respond: func(p string) (string, error) {
				if strings.Contains(p, `"id":2`) {
					return `{"items": []}`, nil
				}
				return `{"rows": [[1, "a"]]}`, nil
			},
			target: ErrParse,
		},
		"cast": {
			respond: func(string) (string, error) { return `{"rows": [["one", "a"]]}`, nil },
			target:  table.ErrCast,
		},
		"width": {
			respond: func(string) (string, error) { return `{"rows": [[1]]}`, nil },
			target:  ErrParse,
		},
	} {
		t.Run(name, func(t *testing.T) {
			root, err := NewLLMTable(lt, child, newFake(tc.respond), Options{})
			require.NoError(t, err)
			out, err := root.Materialize(context.Background(), 1)
			require.Error(t, err)
			require.Nil(t, out)
			require.True(t, errors.Is(err, tc.target), "got %v", err)
		})
	}

	transport := errors.New("connection refused")
	root, err := NewLLMTable(lt, child, newFake(func(string) (string, error) { return "", transport }), Options{})
	require.NoError(t, err)
	_, err = root.Materialize(context.Background(), 1)
	require.ErrorIs(t, err, transport)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestImagePrompts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.png", "a.png", "b.jpg"} {
		writeFile(t, filepath.Join(dir, "shots", name), "fake image "+name)
	}
	writeFile(t, filepath.Join(dir, "shots", "notes.txt"), "ignored")
	lt := mustLogical(t, "receipts", "store string, total float")
	fake := newFake(func(string) (string, error) { return `{"rows": [["shop", 9.5]]}`, nil })

	all, err := NewImageTable(lt, nil, fake, []string{filepath.Join(dir, "shots")}, Options{})
	require.NoError(t, err)
	prompts, err := all.Prompts(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, prompts, 3)
	require.Contains(t, prompts[0], "Image file: a.png")
	require.Contains(t, prompts[1], "Image data: data:image/jpeg;base64,")
	require.Contains(t, prompts[2], "Image file: c.png")

	partial, err := NewImageTable(lt, nil, fake, []string{
		filepath.Join(dir, "shots", "a.png"),
		filepath.Join(dir, "shots", "missing.png"),
		filepath.Join(dir, "shots", "c.png"),
	}, Options{})
	require.NoError(t, err)
	prompts, err = partial.Prompts(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, prompts, 2)

	out, err := partial.Materialize(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, out.NumRows())
	require.Equal(t, int64(2), fake.Usage().Calls)
}

func TestDocumentPrompts(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.md")
	writeFile(t, small, "# Planets\nMercury is the first planet.")
	lt := mustLogical(t, "planets", "name string")

	doc, err := NewDocumentTable(lt, nil, newFake(capitalsFor), []string{small, filepath.Join(dir, "missing.txt")}, Options{})
	require.NoError(t, err)
	prompts, err := doc.Prompts(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	require.Contains(t, prompts[0], "--- Document: "+small+" ---")
	require.Contains(t, prompts[0], "Mercury is the first planet.")

	none, err := NewDocumentTable(lt, nil, newFake(capitalsFor), nil, Options{})
	require.NoError(t, err)
	out, err := none.Materialize(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, out.NumRows())
}

func TestDocumentChunksAreConcatenated(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.txt")
	writeFile(t, big, strings.Repeat("alpha ", 1500)+"\n\n"+strings.Repeat("beta ", 100))

	// Chunks produce different row counts depending on their content.
	respond := func(p string) (string, error) {
		var rows []string
		if strings.Contains(p, "alpha") {
			rows = append(rows, `["alpha"]`)
		}
		if strings.Contains(p, "beta") {
			rows = append(rows, `["beta"]`, `["beta"]`)
		}
		return `{"rows": [` + strings.Join(rows, ",") + `]}`, nil
	}
	doc, err := NewDocumentTable(mustLogical(t, "words", "word string"), nil, newFake(respond), []string{big}, Options{})
	require.NoError(t, err)

	prompts, err := doc.Prompts(context.Background(), nil)
	require.NoError(t, err)
	require.Greater(t, len(prompts), 1)
	want := 0
	for _, p := range prompts {
		if strings.Contains(p, "alpha") {
			want++
		}
		if strings.Contains(p, "beta") {
			want += 2
		}
	}

	out, err := doc.Materialize(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, want, out.NumRows())
}

func TestSearchPromptsFromGeneratedQueries(t *testing.T) {
	searcher := &stubSearcher{}
	var mu sync.Mutex
	var tablePrompts []string
	fake := newFake(func(p string) (string, error) {
		if strings.Contains(p, "one query per line") {
			return "- capitals of US states\n\n\"state populations\"\n", nil
		}
		mu.Lock()
		tablePrompts = append(tablePrompts, p)
		mu.Unlock()
		return `{"rows": [["Alaska", "Juneau"]]}`, nil
	})
	root, err := NewSearchTable(mustLogical(t, "US states", "name string, capital string"), nil, fake,
		searcher, SearchConfig{}, Options{})
	require.NoError(t, err)

	out, err := root.Materialize(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, out.NumRows())
	require.Equal(t, []string{"capitals of US states", "state populations"}, searcher.queries)
	require.Len(t, tablePrompts, 1)
	require.Contains(t, tablePrompts[0], "Search results:")
	require.Contains(t, tablePrompts[0], "https://example.com/1")
	require.Contains(t, tablePrompts[0], "snippet for state populations")
}

func TestSearchCrawlsPresetLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/juneau":
			_, _ = w.Write([]byte(`<html><head><title>x</title></head><body><p>Juneau is the capital of Alaska.</p><script>skip()</script></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	calls := 0
	fake := newFake(func(p string) (string, error) {
		calls++
		require.NotContains(t, p, "one query per line")
		return `{"rows": [["Alaska", "Juneau"]]}`, nil
	})
	root, err := NewSearchTable(mustLogical(t, "US states", "name string, capital string"), nil, fake, nil,
		SearchConfig{Links: []string{srv.URL + "/juneau", srv.URL + "/gone"}, HTTPClient: srv.Client()}, Options{})
	require.NoError(t, err)

	prompts, err := root.Prompts(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	require.Contains(t, prompts[0], "Juneau is the capital of Alaska.")
	require.NotContains(t, prompts[0], "skip()")
	require.Equal(t, 0, calls)
}

type memorySource struct {
	tables map[string]*table.Table
}

func (m memorySource) Schema(name string) (schema.Schema, error) {
	t, ok := m.tables[name]
	if !ok {
		return schema.Schema{}, errors.Newf("unknown source %q", name)
	}
	return t.Schema(), nil
}

func (m memorySource) Scan(_ context.Context, name string) (*table.Table, error) {
	if _, err := m.Schema(name); err != nil {
		return nil, err
	}
	return m.tables[name].Clone(), nil
}

func TestSourceTableFeedsChain(t *testing.T) {
	states, err := table.FromRows(mustSchema(t, "name string"), [][]any{{"Alaska"}, {"Arizona"}})
	require.NoError(t, err)
	src := memorySource{tables: map[string]*table.Table{"states": states}}

	_, err = NewSourceTable("nope", src, Options{})
	require.ErrorIs(t, err, ErrConfig)

	leaf, err := NewSourceTable("states", src, Options{ChunkSize: 1})
	require.NoError(t, err)
	require.Equal(t, CustomOperator, leaf.OperatorName())
	root, err := NewLLMTable(mustLogical(t, "US states", "name string, capital string"), leaf,
		newFake(capitalsFor), Options{BaseColumns: []string{"name"}})
	require.NoError(t, err)

	out, err := root.Materialize(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, [][]any{{"Alaska", "Juneau"}, {"Arizona", "Phoenix"}}, out.Rows())
}

func TestParseResponse(t *testing.T) {
	s := mustSchema(t, "name string, n int")

	cols, err := ParseResponse("  {\"rows\": [[\"a\", 1], [\"b\", 2]]}\n", Row, s)
	require.NoError(t, err)
	require.Len(t, cols["name"], 2)
	require.Equal(t, "2", fmt.Sprint(cols["n"][1]))

	cols, err = ParseResponse(`{"rows": []}`, Row, s)
	require.NoError(t, err)
	require.Empty(t, cols["name"])
	require.Contains(t, cols, "n")

	cols, err = ParseResponse(`{"columns": {"name": ["a"], "n": [1], "extra": [true]}}`, Column, s)
	require.NoError(t, err)
	require.Len(t, cols, 3)

	for _, bad := range []struct {
		text   string
		layout Layout
	}{
		{"", Row},
		{"[1, 2]", Row},
		{`{"columns": {}}`, Row},
		{`{"rows": [["a", 1]]}`, Column},
		{`{"rows": "x"}`, Row},
		{`{"columns": null}`, Column},
		{`{"rows": [["a", 1, 2]]}`, Row},
	} {
		_, err := ParseResponse(bad.text, bad.layout, s)
		require.ErrorIs(t, err, ErrParse, "text %q", bad.text)
	}
}

func TestBaseColumnTypeMismatchIsCastError(t *testing.T) {
	child := customChild(t, "id int", [][]any{{1}, {2}}, 10)
	fake := newFake(func(string) (string, error) {
		return `{"rows": [["1", "A"], ["2", "B"]]}`, nil
	})
	root, err := NewLLMTable(mustLogical(t, "letters", "id string, letter string"), child, fake,
		Options{BaseColumns: []string{"id"}})
	require.NoError(t, err)

	_, err = root.Materialize(context.Background(), 1)
	require.True(t, errors.Is(err, table.ErrCast), "%v", err)
	require.Contains(t, err.Error(), `join key "id"`)
}

func TestDroppedPartitionLogIsOneLine(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	child := customChild(t, "a int", [][]any{{1}}, 1)
	root, err := NewLLMTable(mustLogical(t, "letters", "a int"), child, newFake(func(string) (string, error) {
		return "", errors.New("model unavailable")
	}), Options{})
	require.NoError(t, err)

	out, err := root.MaterializeParallel(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, out.NumRows())

	logged := buf.String()
	require.Contains(t, logged, "model unavailable")
	require.NotContains(t, logged, "Error types:")
	for _, line := range strings.Split(strings.TrimSpace(logged), "\n") {
		require.True(t, strings.HasPrefix(line, "time="), "unexpected continuation line %q", line)
	}
}
