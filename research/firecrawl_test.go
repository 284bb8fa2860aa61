package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFirecrawlClient(t *testing.T) {
	ctx := context.Background()

	t.Run("search maps hits and prefers markdown", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/search", r.URL.Path)
			require.Equal(t, "Bearer fc-test", r.Header.Get("Authorization"))

			var body firecrawlSearchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "go profiling", body.Query)
			require.Equal(t, 3, body.Limit)

			_, _ = w.Write([]byte(`{"success": true, "data": [
				{"title": "A", "url": "http://a", "description": "desc a", "markdown": "full text a"},
				{"title": "B", "url": "http://b", "description": "desc b", "markdown": ""}
			]}`))
		}))
		defer server.Close()

		client, err := NewFirecrawlClient("fc-test", server.Client())
		require.NoError(t, err)
		client.baseURL = server.URL

		results, err := client.Search(ctx, "go profiling", 3)
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.Equal(t, "full text a", results[0].Content)
		require.Equal(t, "desc b", results[1].Content)
	})

	t.Run("scrape returns the page markdown", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/scrape", r.URL.Path)
			_, _ = w.Write([]byte(`{"success": true, "data": {"markdown": "# Page"}}`))
		}))
		defer server.Close()

		client, err := NewFirecrawlClient("fc-test", server.Client())
		require.NoError(t, err)
		client.baseURL = server.URL

		content, err := client.Scrape(ctx, "http://example.com")
		require.NoError(t, err)
		require.Equal(t, "# Page", content)
	})

	t.Run("unsuccessful response surfaces the service error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": false, "error": "rate limited"}`))
		}))
		defer server.Close()

		client, err := NewFirecrawlClient("fc-test", server.Client())
		require.NoError(t, err)
		client.baseURL = server.URL

		_, err = client.Search(ctx, "q", 1)
		require.Error(t, err)
		require.Contains(t, err.Error(), "rate limited")
	})

	t.Run("non-200 status is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		defer server.Close()

		client, err := NewFirecrawlClient("fc-test", server.Client())
		require.NoError(t, err)
		client.baseURL = server.URL

		_, err = client.Scrape(ctx, "http://example.com")
		require.Error(t, err)
		require.Contains(t, err.Error(), "401")
	})

	t.Run("api key is required", func(t *testing.T) {
		_, err := NewFirecrawlClient("", nil)
		require.Error(t, err)
	})
}
