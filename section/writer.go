// Package section implements the per-section draft, critique, revise, and
// illustrate loop.
package section

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/inkwell-ai/inkwell"
	"github.com/inkwell-ai/inkwell/llm"
)

const (
	// previousTailLen is how much of the prior section's draft the writer
	// sees for transitional continuity.
	previousTailLen = 400

	// fallbackSourceCount is how many overall research items back a
	// section with no assigned sources.
	fallbackSourceCount = 3

	// contextPerSource caps how much of each source feeds the prompt.
	contextPerSource = 800
)

// Writer drafts one section at a time against its word budget and assigned
// sources. A non-zero retry count for the section turns the call into a
// revision pass that incorporates critique feedback.
type Writer struct {
	client llm.Client
	logger *slog.Logger
}

var _ inkwell.SectionWriter = (*Writer)(nil)

// NewWriter returns a Writer. The llm client is required.
func NewWriter(client llm.Client, logger *slog.Logger) (*Writer, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{client: client, logger: logger}, nil
}

// Draft produces markdown content for the section at index. The draft must
// land within 10% of the section's word budget and cite only assigned
// sources.
func (w *Writer) Draft(ctx context.Context, state *inkwell.WorkflowState, index int) (string, error) {
	if index < 0 || index >= len(state.Outline) {
		return "", fmt.Errorf("section index %d out of range (outline has %d sections)", index, len(state.Outline))
	}
	section := state.Outline[index]
	budget := state.Budgets[section.ID]

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Write one section of a blog post about %q.\n\n", state.Topic)
	fmt.Fprintf(&prompt, "Section title: %s\nIntent: %s\n", section.Title, section.Intent)
	if budget > 0 {
		low := budget - budget/10
		high := budget + budget/10
		fmt.Fprintf(&prompt, "Word budget: %d words. Stay between %d and %d words.\n", budget, low, high)
	}
	if state.Audience != "" {
		fmt.Fprintf(&prompt, "Target audience: %s\n", state.Audience)
	}
	writeStyle(&prompt, state.Style)

	sources := assignedSources(state, section)
	if len(sources) > 0 {
		prompt.WriteString("\nSources (cite with bracketed markers like [web_1]):\n")
		for _, item := range sources {
			fmt.Fprintf(&prompt, "[%s] %s\n%s\n\n",
				item.SourceID, item.Title, inkwell.Clip(item.Content, contextPerSource))
		}
		prompt.WriteString("Prefer internal sources (ids starting with \"int_\") when they cover the same ground.\n")
	}

	if tail := previousTail(state, index); tail != "" {
		fmt.Fprintf(&prompt, "\nThe previous section ends with:\n...%s\n"+
			"Open with a smooth transition from it.\n", tail)
	}

	if state.Retries[section.ID] > 0 {
		if feedback := state.Critiques[section.ID]; feedback != "" {
			fmt.Fprintf(&prompt, "\nThis is a revision pass. Previous draft:\n%s\n\n"+
				"Reviewer feedback to incorporate:\n%s\n", state.Drafts[section.ID], feedback)
		}
	}

	prompt.WriteString("\nWrite only the section content, in markdown. Do not repeat the section title as a heading.")

	draft, err := w.client.Complete(ctx, llm.Request{Prompt: prompt.String(), Model: state.Model})
	if err != nil {
		return "", fmt.Errorf("draft section %s: %w", section.ID, err)
	}
	return strings.TrimSpace(draft), nil
}

// assignedSources resolves the section's source ids against the research set,
// internal-origin items first. With no assignments it falls back to the first
// few research items overall.
func assignedSources(state *inkwell.WorkflowState, section inkwell.Section) []inkwell.ResearchItem {
	var sources []inkwell.ResearchItem
	for _, id := range section.SourceIDs {
		if item, ok := state.SourceByID(id); ok {
			sources = append(sources, item)
		}
	}
	if len(sources) == 0 {
		n := fallbackSourceCount
		if n > len(state.Research) {
			n = len(state.Research)
		}
		sources = append(sources, state.Research[:n]...)
	}
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Origin == inkwell.OriginInternal && sources[j].Origin != inkwell.OriginInternal
	})
	return sources
}

func previousTail(state *inkwell.WorkflowState, index int) string {
	if index == 0 {
		return ""
	}
	prev := state.Outline[index-1]
	draft := inkwell.ClipTail(state.Drafts[prev.ID], previousTailLen)
	return strings.TrimSpace(draft)
}

func writeStyle(b *strings.Builder, style inkwell.StyleProfile) {
	if style.IsZero() {
		return
	}
	fmt.Fprintf(b, "Style: tone=%s", style.Tone)
	if style.Vocabulary != "" {
		fmt.Fprintf(b, ", vocabulary=%s", style.Vocabulary)
	}
	if style.SentenceStructure != "" {
		fmt.Fprintf(b, ", sentence structure=%s", style.SentenceStructure)
	}
	if style.Formatting != "" {
		fmt.Fprintf(b, ", formatting=%s", style.Formatting)
	}
	b.WriteString("\n")
	if len(style.ForbiddenWords) > 0 {
		fmt.Fprintf(b, "Never use these words or phrases: %s\n", strings.Join(style.ForbiddenWords, ", "))
	}
}
