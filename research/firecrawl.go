package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/inkwell-ai/inkwell"
)

const firecrawlBaseURL = "https://api.firecrawl.dev/v1"

// FirecrawlClient talks to the Firecrawl search and scrape endpoints. It
// serves both the web and social origins and page scraping for style
// analysis.
type FirecrawlClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var (
	_ WebSearcher = (*FirecrawlClient)(nil)
	_ Scraper     = (*FirecrawlClient)(nil)
)

// NewFirecrawlClient wires an HTTP client; a nil client gets a 30s timeout.
func NewFirecrawlClient(apiKey string, client *http.Client) (*FirecrawlClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("firecrawl api key is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &FirecrawlClient{apiKey: apiKey, baseURL: firecrawlBaseURL, client: client}, nil
}

type firecrawlSearchRequest struct {
	Query         string                 `json:"query"`
	Limit         int                    `json:"limit"`
	ScrapeOptions map[string]interface{} `json:"scrapeOptions,omitempty"`
}

type firecrawlSearchResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Markdown    string `json:"markdown"`
	} `json:"data"`
	Error string `json:"error"`
}

// Search runs a web search, scraping each hit to markdown.
func (f *FirecrawlClient) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	body := firecrawlSearchRequest{
		Query:         query,
		Limit:         limit,
		ScrapeOptions: map[string]interface{}{"formats": []string{"markdown"}},
	}
	var parsed firecrawlSearchResponse
	if err := f.post(ctx, "/search", body, &parsed); err != nil {
		return nil, err
	}
	if !parsed.Success {
		return nil, fmt.Errorf("firecrawl search: %s", parsed.Error)
	}

	results := make([]SearchResult, 0, len(parsed.Data))
	for _, hit := range parsed.Data {
		content := hit.Markdown
		if content == "" {
			content = hit.Description
		}
		results = append(results, SearchResult{
			Title:   hit.Title,
			URL:     hit.URL,
			Content: content,
		})
	}
	return results, nil
}

type firecrawlScrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
	Error string `json:"error"`
}

// Scrape fetches a single page as markdown.
func (f *FirecrawlClient) Scrape(ctx context.Context, url string) (string, error) {
	body := map[string]interface{}{
		"url":     url,
		"formats": []string{"markdown"},
	}
	var parsed firecrawlScrapeResponse
	if err := f.post(ctx, "/scrape", body, &parsed); err != nil {
		return "", err
	}
	if !parsed.Success {
		return "", fmt.Errorf("firecrawl scrape: %s", parsed.Error)
	}
	return parsed.Data.Markdown, nil
}

func (f *FirecrawlClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("firecrawl request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("firecrawl returned %s: %s", resp.Status, inkwell.Clip(string(raw), 200))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
