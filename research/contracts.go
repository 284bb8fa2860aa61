// Package research implements the research coordination stage: search-query
// generation, parallel fan-out across source origins, deterministic merging,
// and a bounded reflection loop that decides whether to gather more.
//
// The concrete search services are external collaborators; this package only
// consumes their call contracts.
package research

import "context"

// SearchResult is one hit from a query-capable web or social search service.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// WebSearcher is the contract for a general web search service.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// PaperResult is one hit from an academic-paper search service.
type PaperResult struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Summary string   `json:"summary"`
	Authors []string `json:"authors,omitempty"`
}

// AcademicSearcher is the contract for an academic-paper search service.
type AcademicSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]PaperResult, error)
}

// VectorMatch is one scored content match from a vector-similarity search.
type VectorMatch struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// VectorIndex is the contract for a vector-similarity search service; the
// namespace selects a knowledge bin.
type VectorIndex interface {
	Query(ctx context.Context, namespace, query string, topK int) ([]VectorMatch, error)
}

// Scraper fetches a page's readable content, used by the style analyst.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}
