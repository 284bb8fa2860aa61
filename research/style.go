package research

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/inkwell-ai/inkwell"
	"github.com/inkwell-ai/inkwell/llm"
)

// maxSampleLen caps how much of each scraped page feeds the analysis.
const maxSampleLen = 5000

// StyleAnalyst derives a style profile from reference URLs by scraping them
// and asking the model for a structured description of the writing.
type StyleAnalyst struct {
	client  llm.Client
	scraper Scraper
	logger  *slog.Logger
}

var _ inkwell.StyleAnalyst = (*StyleAnalyst)(nil)

// NewStyleAnalyst returns a StyleAnalyst. Client and scraper are required.
func NewStyleAnalyst(client llm.Client, scraper Scraper, logger *slog.Logger) (*StyleAnalyst, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if scraper == nil {
		return nil, fmt.Errorf("scraper is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &StyleAnalyst{client: client, scraper: scraper, logger: logger}, nil
}

// Analyze scrapes each URL and distills a style profile from the samples.
// Scrape failures are skipped; if nothing usable remains, the neutral default
// profile is returned rather than an error.
func (s *StyleAnalyst) Analyze(ctx context.Context, urls []string) (inkwell.StyleProfile, error) {
	if len(urls) == 0 {
		return inkwell.DefaultStyleProfile(), nil
	}

	var samples []string
	for _, target := range urls {
		content, err := s.scraper.Scrape(ctx, target)
		if err != nil {
			s.logger.Warn("style sample scrape failed", "url", target, "error", err)
			continue
		}
		if content = strings.TrimSpace(content); content == "" {
			continue
		}
		samples = append(samples, inkwell.Clip(content, maxSampleLen))
	}
	if len(samples) == 0 {
		s.logger.Warn("no usable style samples, using default profile")
		return inkwell.DefaultStyleProfile(), nil
	}

	prompt := fmt.Sprintf(
		"Analyze the following text samples and extract a style profile for "+
			"imitating the author.\n\nText samples:\n%s\n\n"+
			`Respond as JSON: {"tone": "...", "vocabulary": "...", `+
			`"sentence_structure": "...", "formatting": "...", "forbidden_words": ["..."]}`,
		strings.Join(samples, "\n\n---\n\n"))

	var profile inkwell.StyleProfile
	if err := s.client.CompleteJSON(ctx, llm.Request{Prompt: prompt}, &profile); err != nil {
		s.logger.Warn("style analysis failed, using default profile", "error", err)
		return inkwell.DefaultStyleProfile(), nil
	}
	if profile.IsZero() {
		return inkwell.DefaultStyleProfile(), nil
	}
	return profile, nil
}
