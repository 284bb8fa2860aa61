package section

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/inkwell-ai/inkwell"
	"github.com/inkwell-ai/inkwell/llm"
)

// bannedPhrases are stock fillers the critic flags regardless of the style
// profile.
var bannedPhrases = []string{
	"In the ever-evolving landscape",
	"In today's fast-paced world",
	"delve into",
	"It's important to note",
	"game-changer",
	"unlock the potential",
}

// Critic reviews a draft against its budget, intent, and phrasing rules. It
// always produces feedback for one revision pass; there is no pass/fail
// verdict.
type Critic struct {
	client llm.Client
	logger *slog.Logger
}

var _ inkwell.Critic = (*Critic)(nil)

// NewCritic returns a Critic. The llm client is required.
func NewCritic(client llm.Client, logger *slog.Logger) (*Critic, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Critic{client: client, logger: logger}, nil
}

type critiqueResponse struct {
	BudgetCompliance string   `json:"budget_compliance"`
	IntentAdherence  string   `json:"intent_adherence"`
	BannedPhrases    []string `json:"banned_phrases"`
	Citations        string   `json:"citations"`
	Conciseness      string   `json:"conciseness"`
}

// Critique returns structured feedback for the section at index, rendered as
// text the writer incorporates on its revision pass.
func (c *Critic) Critique(ctx context.Context, state *inkwell.WorkflowState, index int) (string, error) {
	if index < 0 || index >= len(state.Outline) {
		return "", fmt.Errorf("section index %d out of range (outline has %d sections)", index, len(state.Outline))
	}
	section := state.Outline[index]
	draft := state.Drafts[section.ID]
	budget := state.Budgets[section.ID]

	banned := append([]string{}, bannedPhrases...)
	banned = append(banned, state.Style.ForbiddenWords...)

	var prompt strings.Builder
	prompt.WriteString("Critique the following blog section draft. Give concrete, actionable feedback on every point; do not give a pass/fail verdict.\n\n")
	fmt.Fprintf(&prompt, "Draft:\n%s\n\n", draft)
	fmt.Fprintf(&prompt, "Evaluate:\n")
	fmt.Fprintf(&prompt, "1. Word budget: target %d words, draft has %d.\n", budget, countWords(draft))
	fmt.Fprintf(&prompt, "2. Adherence to intent: %s\n", section.Intent)
	fmt.Fprintf(&prompt, "3. Banned phrases and filler (list any found verbatim): %s\n", strings.Join(banned, "; "))
	prompt.WriteString("4. Citation markers: are bracketed source ids like [web_1] present where claims need them?\n")
	prompt.WriteString("5. Conciseness and passive voice.\n")
	prompt.WriteString(`Respond as JSON: {"budget_compliance": "...", "intent_adherence": "...", ` +
		`"banned_phrases": ["..."], "citations": "...", "conciseness": "..."}`)

	var out critiqueResponse
	if err := c.client.CompleteJSON(ctx, llm.Request{Prompt: prompt.String(), Model: state.Model}, &out); err != nil {
		return "", fmt.Errorf("critique section %s: %w", section.ID, err)
	}
	return renderCritique(out), nil
}

func renderCritique(c critiqueResponse) string {
	var b strings.Builder
	writeLine := func(label, text string) {
		if text = strings.TrimSpace(text); text != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, text)
		}
	}
	writeLine("Budget", c.BudgetCompliance)
	writeLine("Intent", c.IntentAdherence)
	if len(c.BannedPhrases) > 0 {
		fmt.Fprintf(&b, "Banned phrases found: %s\n", strings.Join(c.BannedPhrases, "; "))
	}
	writeLine("Citations", c.Citations)
	writeLine("Conciseness", c.Conciseness)
	return strings.TrimSpace(b.String())
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
