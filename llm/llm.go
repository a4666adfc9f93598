// Package llm contains the language model collaborator used by every
// generating operator.
package llm

import (
	"context"
	"strings"
	"sync/atomic"
)

// Client turns a prompt into response text. Implementations must be safe for
// concurrent use.
type Client interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to a Client.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Call(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

// Usage is a snapshot of token counters.
type Usage struct {
	Calls        int64 `json:"calls"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// UsageReporter is implemented by clients that count tokens.
type UsageReporter interface {
	Usage() Usage
}

// Counters accumulates usage from concurrent calls.
type Counters struct {
	calls  atomic.Int64
	input  atomic.Int64
	output atomic.Int64
}

func (c *Counters) Add(input, output int64) {
	c.calls.Add(1)
	c.input.Add(input)
	c.output.Add(output)
}

func (c *Counters) Usage() Usage {
	return Usage{
		Calls:        c.calls.Load(),
		InputTokens:  c.input.Load(),
		OutputTokens: c.output.Load(),
	}
}

// CleanResponse strips the wrapping models put around JSON answers: anything
// up to a closing </think> tag and a fenced ```json block.
func CleanResponse(r string) string {
	if i := strings.LastIndex(r, "</think>"); i >= 0 {
		r = r[i+len("</think>"):]
	}
	if _, after, ok := strings.Cut(r, "```json"); ok {
		r, _, _ = strings.Cut(after, "```")
	} else if _, after, ok := strings.Cut(r, "```"); ok {
		r, _, _ = strings.Cut(after, "```")
	}
	return strings.TrimSpace(r)
}

const imageMarker = "Image data: "

// SplitImagePrompt extracts an inline image data URL from a prompt. ok is
// false when the prompt carries no valid data:image URL.
func SplitImagePrompt(prompt string) (text, dataURL string, ok bool) {
	start := strings.Index(prompt, imageMarker)
	if start < 0 {
		return prompt, "", false
	}
	rest := prompt[start+len(imageMarker):]
	end := strings.IndexByte(rest, '\n')
	if end < 0 {
		end = len(rest)
	}
	url := strings.TrimSpace(rest[:end])
	if !strings.HasPrefix(url, "data:image/") || !strings.Contains(url, ";base64,") {
		return prompt, "", false
	}
	text = prompt[:start] + strings.TrimSpace(rest[end:])
	return text, url, true
}
