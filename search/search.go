// Package search is the web search collaborator of the search engine
// operator.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/melkeydev/mcp-tablegen/loader"
	"golang.org/x/time/rate"
)

type Result struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet,omitempty"`
	Position int    `json:"position,omitempty"`
}

type Results struct {
	Organic []Result `json:"organic"`
}

// Links returns the organic result links in rank order.
func (r *Results) Links() []string {
	links := make([]string, 0, len(r.Organic))
	for _, o := range r.Organic {
		links = append(links, o.Link)
	}
	return links
}

type Searcher interface {
	Search(ctx context.Context, query string) (*Results, error)
}

const DefaultSerperURL = "https://google.serper.dev/search"

// SerperClient queries the Serper Google search API.
type SerperClient struct {
	apiKey   string
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
}

type SerperOption func(*SerperClient)

func WithEndpoint(url string) SerperOption {
	return func(c *SerperClient) { c.endpoint = url }
}

func WithHTTPClient(h *http.Client) SerperOption {
	return func(c *SerperClient) { c.http = h }
}

// WithRequestsPerSecond paces queries; zero or less disables pacing.
func WithRequestsPerSecond(rps float64) SerperOption {
	return func(c *SerperClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func NewSerperClient(apiKey string, opts ...SerperOption) (*SerperClient, error) {
	if apiKey == "" {
		return nil, errors.New("Serper API key is required")
	}
	c := &SerperClient{
		apiKey:   apiKey,
		endpoint: DefaultSerperURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Inf, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *SerperClient) Search(ctx context.Context, query string) (*Results, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "waiting for search rate limiter")
	}

	body, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building search request")
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "searching %q", query)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("search for %q failed with status %d: %s", query, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var results Results
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, errors.Wrap(err, "decoding search results")
	}
	slog.Debug("search finished", "query", query, "results", len(results.Organic))
	return &results, nil
}

// Crawl fetches a page and returns its visible text.
func Crawl(ctx context.Context, h *http.Client, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", errors.Wrapf(err, "building request for %s", link)
	}
	resp, err := h.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "fetching %s", link)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("failed to fetch content from %s, status code: %d", link, resp.StatusCode)
	}
	return loader.HTMLText(resp.Body)
}
