package loader

import (
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 4000
	DefaultChunkOverlap = 50
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts long text into chunks of at most ChunkSize characters,
// preferring paragraph, then line, then word boundaries. Consecutive chunks
// share up to Overlap characters of context.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter() Splitter {
	return Splitter{ChunkSize: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

func (s Splitter) Split(text string) []string {
	if s.ChunkSize <= 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.Overlap < 0 || s.Overlap >= s.ChunkSize {
		s.Overlap = 0
	}
	rc := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(s.ChunkSize),
		textsplitter.WithChunkOverlap(s.Overlap),
		textsplitter.WithSeparators(defaultSeparators),
	)
	chunks, err := rc.SplitText(text)
	if err != nil {
		slog.Warn("failed to split text, keeping it whole", "error", err.Error())
		chunks = []string{text}
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
