package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestSplitterShortTextIsOneChunk(t *testing.T) {
	require.Equal(t, []string{"hello world"}, NewSplitter().Split("hello world"))
	require.Empty(t, NewSplitter().Split("   "))
}

func TestSplitterOverlap(t *testing.T) {
	s := Splitter{ChunkSize: 20, Overlap: 5}
	chunks := s.Split("aaaa bbbb cccc dddd eeee ffff")
	require.Equal(t, []string{"aaaa bbbb cccc dddd", "dddd eeee ffff"}, chunks)
}

func TestSplitterPrefersParagraphs(t *testing.T) {
	s := Splitter{ChunkSize: 30, Overlap: 0}
	text := strings.Repeat("x", 20) + "\n\n" + strings.Repeat("y", 20)
	require.Equal(t, []string{strings.Repeat("x", 20), strings.Repeat("y", 20)}, s.Split(text))
}

func TestSplitterHardSplitsLongWords(t *testing.T) {
	s := Splitter{ChunkSize: 10, Overlap: 0}
	chunks := s.Split(strings.Repeat("z", 25))
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), 10)
	}
	require.Equal(t, strings.Repeat("z", 25), strings.Join(chunks, ""))
}

func TestSplitterDefaultsOverlapChunks(t *testing.T) {
	words := make([]string, 1000)
	for i := range words {
		words[i] = fmt.Sprintf("word%04d", i)
	}
	chunks := NewSplitter().Split(strings.Join(words, " "))
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		require.LessOrEqual(t, len(c), DefaultChunkSize)
		if i > 0 {
			first := strings.Fields(c)[0]
			require.Contains(t, chunks[i-1], first)
		}
	}
	require.True(t, strings.HasPrefix(chunks[0], "word0000 "))
	require.True(t, strings.HasSuffix(chunks[2], "word0999"))
}

func TestHTMLTextDropsBoilerplate(t *testing.T) {
	page := `<html><head><title>t</title><style>p{}</style></head><body>
<nav>Home | About</nav>
<h1>States</h1><p>Ohio   is a   state.</p><script>alert(1)</script>
<footer>copyright</footer></body></html>`
	text, err := HTMLText(strings.NewReader(page))
	require.NoError(t, err)
	require.Equal(t, "States\nOhio is a state.", text)
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(txt, []byte("# Notes\nOhio"), 0o644))
	page := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(page, []byte("<p>Iowa</p>"), 0o644))
	bin := filepath.Join(dir, "data.xlsx")
	require.NoError(t, os.WriteFile(bin, []byte("x"), 0o644))

	text, err := LoadDocument(txt)
	require.NoError(t, err)
	require.Equal(t, "# Notes\nOhio", text)

	text, err = LoadDocument(page)
	require.NoError(t, err)
	require.Equal(t, "Iowa", text)

	_, err = LoadDocument(bin)
	require.True(t, errors.Is(err, ErrUnsupported))

	_, err = LoadDocument(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}

func TestExpandAndLoadImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.PNG", "a.jpg", "c.webp", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0o755))

	paths := ExpandImages([]string{dir, "/does/not/exist.png"})
	require.Equal(t, []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.PNG"),
		filepath.Join(dir, "c.webp"),
		"/does/not/exist.png",
	}, paths)

	url, err := LoadImage(paths[0])
	require.NoError(t, err)
	require.Equal(t, "data:image/jpeg;base64,aW1n", url)

	url, err = LoadImage(paths[1])
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	_, err = LoadImage(paths[3])
	require.Error(t, err)
}
