// Package publish assembles the final document, resolves citation markers
// against the research set, and renders an HTML preview.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/inkwell-ai/inkwell"
	"github.com/yuin/goldmark"
)

// citationExpr matches bracketed citation markers like [web_1] or
// [int_docs_2].
var citationExpr = regexp.MustCompile(`\[([a-z]+_[A-Za-z0-9_]+)\]`)

// Publisher performs deterministic final assembly. It never fails for content
// reasons: missing drafts render as empty sections and unknown citation
// markers are ignored.
type Publisher struct {
	logger *slog.Logger
}

var _ inkwell.Publisher = (*Publisher)(nil)

// NewPublisher returns a Publisher.
func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{logger: logger}
}

// Publish concatenates the topic heading and each section in outline order,
// appends a References section for every cited source, and renders the
// markdown to HTML. Identical state yields byte-identical output.
func (p *Publisher) Publish(ctx context.Context, state *inkwell.WorkflowState) (*inkwell.Publication, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc strings.Builder
	fmt.Fprintf(&doc, "# %s\n\n", state.Topic)
	for _, section := range state.Outline {
		fmt.Fprintf(&doc, "## %s\n\n", section.Title)
		doc.WriteString(state.Drafts[section.ID])
		doc.WriteString("\n\n")
	}

	used := citedSources(doc.String(), state)
	if len(used) > 0 {
		doc.WriteString("## References\n\n")
		for _, item := range used {
			if item.URL != "" && item.URL != "Internal Knowledge Base" {
				fmt.Fprintf(&doc, "- [%s] [%s](%s)\n", item.SourceID, item.Title, item.URL)
			} else {
				fmt.Fprintf(&doc, "- [%s] %s (internal document)\n", item.SourceID, item.Title)
			}
		}
	}

	markdown := doc.String()
	html, err := renderHTML(markdown)
	if err != nil {
		// The markdown document is still the deliverable.
		p.logger.Warn("html rendering failed", "error", err)
		html = ""
	}

	ids := make([]string, 0, len(used))
	for _, item := range used {
		ids = append(ids, item.SourceID)
	}
	return &inkwell.Publication{Markdown: markdown, HTML: html, UsedSources: ids}, nil
}

// citedSources scans the assembled document for citation markers that match
// known source ids, skipping markdown-link brackets, and returns each used
// source once, sorted by id.
func citedSources(doc string, state *inkwell.WorkflowState) []inkwell.ResearchItem {
	seen := map[string]bool{}
	var used []inkwell.ResearchItem
	for _, match := range citationExpr.FindAllStringSubmatchIndex(doc, -1) {
		// A marker directly followed by "(" is a markdown link, not a
		// citation.
		end := match[1]
		if end < len(doc) && doc[end] == '(' {
			continue
		}
		id := doc[match[2]:match[3]]
		if seen[id] {
			continue
		}
		item, ok := state.SourceByID(id)
		if !ok {
			continue
		}
		seen[id] = true
		used = append(used, item)
	}
	sort.Slice(used, func(i, j int) bool { return used[i].SourceID < used[j].SourceID })
	return used
}

func renderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
