package research

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const arxivQueryURL = "https://export.arxiv.org/api/query"

// ArxivSearcher queries the arXiv Atom API and extracts paper metadata.
type ArxivSearcher struct {
	client  *http.Client
	baseURL string
}

var _ AcademicSearcher = (*ArxivSearcher)(nil)

// NewArxivSearcher wires an HTTP client; a nil client gets a 10s timeout.
func NewArxivSearcher(client *http.Client) *ArxivSearcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ArxivSearcher{client: client, baseURL: arxivQueryURL}
}

// Search returns up to limit papers sorted by relevance.
func (a *ArxivSearcher) Search(ctx context.Context, query string, limit int) ([]PaperResult, error) {
	if limit <= 0 {
		limit = 5
	}
	doc, err := a.fetchFeed(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return extractPapers(doc), nil
}

func (a *ArxivSearcher) fetchFeed(ctx context.Context, query string, limit int) (*goquery.Document, error) {
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "inkwell/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return doc, nil
}

func extractPapers(doc *goquery.Document) []PaperResult {
	var papers []PaperResult
	doc.Find("entry").Each(func(i int, entry *goquery.Selection) {
		title := collapseWhitespace(entry.Find("title").First().Text())
		summary := collapseWhitespace(entry.Find("summary").First().Text())
		link := strings.TrimSpace(entry.Find("id").First().Text())

		var authors []string
		entry.Find("author > name").Each(func(_ int, name *goquery.Selection) {
			if text := strings.TrimSpace(name.Text()); text != "" {
				authors = append(authors, text)
			}
		})

		if title == "" && link == "" {
			return
		}
		papers = append(papers, PaperResult{
			Title:   title,
			URL:     link,
			Summary: summary,
			Authors: authors,
		})
	})
	return papers
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
