package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerperSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"searchParameters": map[string]any{"q": body["q"]},
			"organic": []map[string]any{
				{"title": "Ohio", "link": "https://example.com/ohio", "position": 1},
				{"title": "Iowa", "link": "https://example.com/iowa", "position": 2},
			},
		})
	}))
	defer srv.Close()

	c, err := NewSerperClient("secret", WithEndpoint(srv.URL), WithRequestsPerSecond(100))
	require.NoError(t, err)
	res, err := c.Search(context.Background(), "us states")
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/ohio", "https://example.com/iowa"}, res.Links())
	require.Equal(t, "Ohio", res.Organic[0].Title)

	bad, err := NewSerperClient("wrong", WithEndpoint(srv.URL))
	require.NoError(t, err)
	_, err = bad.Search(context.Background(), "us states")
	require.ErrorContains(t, err, "status 401")

	_, err = NewSerperClient("")
	require.Error(t, err)
}

func TestCrawl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><body><script>x()</script><p>Columbus is the capital.</p></body></html>`))
	}))
	defer srv.Close()

	text, err := Crawl(context.Background(), srv.Client(), srv.URL+"/ohio")
	require.NoError(t, err)
	require.Equal(t, "Columbus is the capital.", text)

	_, err = Crawl(context.Background(), srv.Client(), srv.URL+"/missing")
	require.ErrorContains(t, err, "status code: 404")
}
