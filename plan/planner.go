// Package plan turns merged research into an approved-ready outline with
// per-section word budgets.
package plan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/inkwell-ai/inkwell"
	"github.com/inkwell-ai/inkwell/llm"
)

// contextPerSource caps how much of each research item feeds the outline
// prompt.
const contextPerSource = 500

// Planner produces the outline and word budgets in two model passes, each
// with a deterministic fallback so the pipeline can always proceed.
type Planner struct {
	client llm.Client
	logger *slog.Logger
}

var _ inkwell.Planner = (*Planner)(nil)

// NewPlanner returns a Planner. The llm client is required.
func NewPlanner(client llm.Client, logger *slog.Logger) (*Planner, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Planner{client: client, logger: logger}, nil
}

// Plan runs the outline pass then the budget pass. It never returns an error
// for model failures; both passes degrade to fallbacks.
func (p *Planner) Plan(ctx context.Context, state *inkwell.WorkflowState) (*inkwell.PlanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := state.TargetWords
	if target <= 0 {
		target = state.BlogSize.TargetWords()
	}
	minSections, maxSections := state.BlogSize.SectionRange()

	outline := p.generateOutline(ctx, state)
	if len(outline) > maxSections {
		p.logger.Warn("outline overshot section range, truncating",
			"got", len(outline), "max", maxSections)
		outline = outline[:maxSections]
	}
	if len(outline) < minSections {
		// Never pad with synthetic sections; a short outline still ships.
		p.logger.Warn("outline under section range, proceeding",
			"got", len(outline), "min", minSections)
	}

	budgets := p.allocateBudgets(ctx, state, outline, target)
	return &inkwell.PlanResult{Outline: outline, Budgets: budgets}, nil
}

type outlineResponse struct {
	Sections []struct {
		ID        string   `json:"id"`
		Title     string   `json:"title"`
		Intent    string   `json:"intent"`
		SourceIDs []string `json:"source_ids"`
	} `json:"sections"`
}

func (p *Planner) generateOutline(ctx context.Context, state *inkwell.WorkflowState) []inkwell.Section {
	minSections, maxSections := state.BlogSize.SectionRange()

	var research strings.Builder
	for _, item := range state.Research {
		fmt.Fprintf(&research, "Source ID: %s\nTitle: %s\nContent: %s\n\n",
			item.SourceID, item.Title, inkwell.Clip(item.Content, contextPerSource))
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You are a content strategist. Create a blog post outline for the topic: %q.\n", state.Topic)
	if state.Audience != "" {
		fmt.Fprintf(&prompt, "Target audience: %s\n", state.Audience)
	}
	if len(state.Guidelines) > 0 {
		fmt.Fprintf(&prompt, "Guidelines:\n- %s\n", strings.Join(state.Guidelines, "\n- "))
	}
	if !state.Style.IsZero() {
		fmt.Fprintf(&prompt, "Style profile: tone=%s, formatting=%s\n", state.Style.Tone, state.Style.Formatting)
	}
	if state.ExtraContext != "" {
		fmt.Fprintf(&prompt, "Additional context: %s\n", state.ExtraContext)
	}
	fmt.Fprintf(&prompt, "\nAvailable research:\n%s\n", research.String())
	fmt.Fprintf(&prompt, "Produce between %d and %d sections. Each section gets a unique id "+
		"(sec_1, sec_2, ...), a title, a one-sentence intent, and the source ids it should "+
		"cite, matching the ids above exactly.\n", minSections, maxSections)
	prompt.WriteString("IMPORTANT: Prefer internal sources (ids starting with \"int_\") over web sources where possible.\n")
	prompt.WriteString(`Respond as JSON: {"sections": [{"id": "sec_1", "title": "...", "intent": "...", "source_ids": ["..."]}]}`)

	var out outlineResponse
	if err := p.client.CompleteJSON(ctx, llm.Request{Prompt: prompt.String(), Model: state.Model}, &out); err != nil {
		p.logger.Warn("outline generation failed, using skeleton outline", "error", err)
		return skeletonOutline()
	}

	sections := make([]inkwell.Section, 0, len(out.Sections))
	for i, s := range out.Sections {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			id = fmt.Sprintf("sec_%d", i+1)
		}
		title := strings.TrimSpace(s.Title)
		if title == "" {
			continue
		}
		sections = append(sections, inkwell.Section{
			ID:        id,
			Title:     title,
			Intent:    strings.TrimSpace(s.Intent),
			SourceIDs: s.SourceIDs,
		})
	}
	if len(sections) == 0 {
		p.logger.Warn("outline generation returned no usable sections, using skeleton outline")
		return skeletonOutline()
	}
	return sections
}

// skeletonOutline is the fixed fallback that guarantees the pipeline can
// always proceed past planning.
func skeletonOutline() []inkwell.Section {
	return []inkwell.Section{
		{ID: "sec_1", Title: "Introduction", Intent: "Introduce topic", SourceIDs: []string{}},
		{ID: "sec_2", Title: "Main Point", Intent: "Discuss main point", SourceIDs: []string{}},
		{ID: "sec_3", Title: "Conclusion", Intent: "Summarize", SourceIDs: []string{}},
	}
}

func (p *Planner) allocateBudgets(ctx context.Context, state *inkwell.WorkflowState, outline []inkwell.Section, target int) map[string]int {
	if len(outline) == 0 {
		return map[string]int{}
	}

	var titles strings.Builder
	for _, section := range outline {
		fmt.Fprintf(&titles, "- %s: %s\n", section.ID, section.Title)
	}
	prompt := fmt.Sprintf(
		"Allocate a total budget of %d words across the following blog sections. "+
			"Opening and closing sections should be shorter, body sections larger. "+
			"The allocations must sum to the total.\n\nSections:\n%s\n"+
			`Respond as JSON: {"budgets": {"sec_1": 200, "sec_2": 400}}`,
		target, titles.String())

	var out struct {
		Budgets map[string]int `json:"budgets"`
	}
	if err := p.client.CompleteJSON(ctx, llm.Request{Prompt: prompt, Model: state.Model}, &out); err != nil {
		p.logger.Warn("budget allocation failed, dividing evenly", "error", err)
		return inkwell.EvenBudgets(outline, target)
	}
	if !budgetsValid(outline, out.Budgets, target) {
		p.logger.Warn("budget allocation off target, dividing evenly")
		return inkwell.EvenBudgets(outline, target)
	}
	return out.Budgets
}

// budgetsValid requires a positive budget for every section and a sum within
// 10% of the target.
func budgetsValid(outline []inkwell.Section, budgets map[string]int, target int) bool {
	sum := 0
	for _, section := range outline {
		words, ok := budgets[section.ID]
		if !ok || words <= 0 {
			return false
		}
		sum += words
	}
	tolerance := target / 10
	return sum >= target-tolerance && sum <= target+tolerance
}
