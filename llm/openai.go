package llm

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	defaultOllamaURL = "http://localhost:11434/v1"
)

type Options struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	// RequestsPerSecond paces calls; zero or less disables pacing.
	RequestsPerSecond float64
}

// ChatClient talks to an OpenAI compatible chat completion endpoint. Ollama is
// served through its OpenAI compatible API.
type ChatClient struct {
	client  *openai.Client
	opts    Options
	limiter *rate.Limiter
	Counters
}

var _ Client = (*ChatClient)(nil)
var _ UsageReporter = (*ChatClient)(nil)

func NewChatClient(opts Options) (*ChatClient, error) {
	if opts.Model == "" {
		return nil, errors.New("llm model is required")
	}
	var cfg openai.ClientConfig
	switch opts.Provider {
	case "", ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, errors.New("OpenAI API key is required")
		}
		cfg = openai.DefaultConfig(opts.APIKey)
	case ProviderOllama:
		cfg = openai.DefaultConfig("ollama")
		if opts.BaseURL == "" {
			opts.BaseURL = defaultOllamaURL
		}
	default:
		return nil, errors.Newf("unsupported llm provider: %s", opts.Provider)
	}
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &ChatClient{
		client:  openai.NewClientWithConfig(cfg),
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

func (c *ChatClient) Call(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "waiting for llm rate limiter")
	}

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt}
	if text, url, ok := SplitImagePrompt(prompt); ok {
		msg = openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: text},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: url}},
			},
		}
	}

	slog.Debug("calling llm",
		"provider", c.opts.Provider,
		"model", c.opts.Model,
		"prompt_size", humanize.Bytes(uint64(len(prompt))),
		"multimodal", msg.MultiContent != nil,
	)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
		Messages:    []openai.ChatCompletionMessage{msg},
	})
	if err != nil {
		return "", errors.Wrapf(err, "chat completion with model %s", c.opts.Model)
	}
	c.Add(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return "", errors.Newf("model %s returned no choices", c.opts.Model)
	}
	return CleanResponse(resp.Choices[0].Message.Content), nil
}
