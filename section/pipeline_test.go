package section

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell"
	"github.com/inkwell-ai/inkwell/llm"
)

func sectionState() *inkwell.WorkflowState {
	state := inkwell.NewWorkflowState("Profiling Go programs")
	state.Outline = []inkwell.Section{
		{ID: "sec_1", Title: "Why profile", Intent: "motivate profiling", SourceIDs: []string{"web_1"}},
		{ID: "sec_2", Title: "Using pprof", Intent: "walk through pprof", SourceIDs: []string{"int_docs_1"}},
	}
	state.Budgets = map[string]int{"sec_1": 200, "sec_2": 400}
	state.MergeResearch([]inkwell.ResearchItem{
		{Origin: inkwell.OriginWeb, Title: "Profiling Guide", URL: "http://example.com", Content: "guide text"},
		{Origin: inkwell.OriginInternal, Bin: "docs", Title: "Team Runbook", Content: "runbook text"},
		{Origin: inkwell.OriginAcademic, Title: "Paper", URL: "http://arxiv.org/abs/1", Content: "paper text"},
	})
	return state
}

func TestWriterDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("prompt carries budget band, sources and intent", func(t *testing.T) {
		client := llm.NewMockClient().QueueText("drafted content [web_1]")
		writer, err := NewWriter(client, nil)
		require.NoError(t, err)

		state := sectionState()
		draft, err := writer.Draft(ctx, state, 0)
		require.NoError(t, err)
		require.Equal(t, "drafted content [web_1]", draft)

		prompt := client.Requests[0].Prompt
		require.Contains(t, prompt, "Word budget: 200 words")
		require.Contains(t, prompt, "between 180 and 220 words")
		require.Contains(t, prompt, "motivate profiling")
		require.Contains(t, prompt, "[web_1] Profiling Guide")
		require.NotContains(t, prompt, "revision pass")
	})

	t.Run("second section sees the previous draft tail", func(t *testing.T) {
		client := llm.NewMockClient().QueueText("second section")
		writer, err := NewWriter(client, nil)
		require.NoError(t, err)

		state := sectionState()
		state.Drafts["sec_1"] = strings.Repeat("x", 500) + " closing words of section one"
		state.Cursor = 1
		_, err = writer.Draft(ctx, state, 1)
		require.NoError(t, err)

		prompt := client.Requests[0].Prompt
		require.Contains(t, prompt, "closing words of section one")
		require.NotContains(t, prompt, strings.Repeat("x", 450))
	})

	t.Run("revision pass includes critique feedback", func(t *testing.T) {
		client := llm.NewMockClient().QueueText("revised")
		writer, err := NewWriter(client, nil)
		require.NoError(t, err)

		state := sectionState()
		state.Drafts["sec_1"] = "first attempt"
		state.Critiques["sec_1"] = "cut the filler"
		state.Retries["sec_1"] = 1
		_, err = writer.Draft(ctx, state, 0)
		require.NoError(t, err)

		prompt := client.Requests[0].Prompt
		require.Contains(t, prompt, "revision pass")
		require.Contains(t, prompt, "first attempt")
		require.Contains(t, prompt, "cut the filler")
	})

	t.Run("internal sources come first in fallback", func(t *testing.T) {
		client := llm.NewMockClient().QueueText("draft")
		writer, err := NewWriter(client, nil)
		require.NoError(t, err)

		state := sectionState()
		state.Outline[0].SourceIDs = nil
		_, err = writer.Draft(ctx, state, 0)
		require.NoError(t, err)

		prompt := client.Requests[0].Prompt
		internalPos := strings.Index(prompt, "[int_docs_1]")
		webPos := strings.Index(prompt, "[web_1]")
		require.Greater(t, internalPos, -1)
		require.Greater(t, webPos, -1)
		require.Less(t, internalPos, webPos)
	})

	t.Run("index out of range is an error", func(t *testing.T) {
		writer, err := NewWriter(llm.NewMockClient(), nil)
		require.NoError(t, err)
		_, err = writer.Draft(ctx, sectionState(), 5)
		require.Error(t, err)
	})
}

func TestCriticCritique(t *testing.T) {
	ctx := context.Background()

	t.Run("renders structured feedback", func(t *testing.T) {
		client := llm.NewMockClient().QueueJSON(map[string]any{
			"budget_compliance": "draft runs 40 words short",
			"intent_adherence":  "on point",
			"banned_phrases":    []string{"delve into"},
			"citations":         "no markers in second paragraph",
			"conciseness":       "two passive sentences",
		})
		critic, err := NewCritic(client, nil)
		require.NoError(t, err)

		state := sectionState()
		state.Drafts["sec_1"] = "the draft"
		feedback, err := critic.Critique(ctx, state, 0)
		require.NoError(t, err)
		require.Contains(t, feedback, "Budget: draft runs 40 words short")
		require.Contains(t, feedback, "Banned phrases found: delve into")
		require.Contains(t, feedback, "Citations: no markers in second paragraph")
	})

	t.Run("prompt carries banned phrases and style forbidden words", func(t *testing.T) {
		client := llm.NewMockClient().QueueJSON(map[string]any{})
		critic, err := NewCritic(client, nil)
		require.NoError(t, err)

		state := sectionState()
		state.Style.ForbiddenWords = []string{"synergy"}
		state.Drafts["sec_1"] = "the draft"
		_, err = critic.Critique(ctx, state, 0)
		require.NoError(t, err)

		prompt := client.Requests[0].Prompt
		require.Contains(t, prompt, "In the ever-evolving landscape")
		require.Contains(t, prompt, "synergy")
		require.Contains(t, prompt, "pass/fail")
	})

	t.Run("model failure propagates", func(t *testing.T) {
		critic, err := NewCritic(llm.NewMockClient(), nil)
		require.NoError(t, err)
		_, err = critic.Critique(ctx, sectionState(), 0)
		require.Error(t, err)
	})
}

func TestIllustratorIllustrate(t *testing.T) {
	ctx := context.Background()

	t.Run("appends a validated diagram", func(t *testing.T) {
		client := llm.NewMockClient().QueueJSON(map[string]any{
			"needs_diagram": true,
			"mermaid":       "flowchart TD\n    A[Collect Profile] --> B[Analyze]",
		})
		illustrator, err := NewIllustrator(client, nil)
		require.NoError(t, err)

		state := sectionState()
		state.Drafts["sec_1"] = "section body"
		draft, err := illustrator.Illustrate(ctx, state, 0)
		require.NoError(t, err)
		require.Contains(t, draft, "section body")
		require.Contains(t, draft, "```mermaid\nflowchart TD")
	})

	t.Run("invalid diagram is silently discarded", func(t *testing.T) {
		client := llm.NewMockClient().QueueJSON(map[string]any{
			"needs_diagram": true,
			"mermaid":       "flowchart TD\n    A[Broken --> B[Fine]",
		})
		illustrator, err := NewIllustrator(client, nil)
		require.NoError(t, err)

		state := sectionState()
		state.Drafts["sec_1"] = "section body"
		draft, err := illustrator.Illustrate(ctx, state, 0)
		require.NoError(t, err)
		require.Equal(t, "section body", draft)
	})

	t.Run("no diagram needed keeps the draft", func(t *testing.T) {
		client := llm.NewMockClient().QueueJSON(map[string]any{"needs_diagram": false})
		illustrator, err := NewIllustrator(client, nil)
		require.NoError(t, err)

		state := sectionState()
		state.Drafts["sec_1"] = "section body"
		draft, err := illustrator.Illustrate(ctx, state, 0)
		require.NoError(t, err)
		require.Equal(t, "section body", draft)
	})

	t.Run("model failure keeps the draft", func(t *testing.T) {
		illustrator, err := NewIllustrator(llm.NewMockClient(), nil)
		require.NoError(t, err)

		state := sectionState()
		state.Drafts["sec_1"] = "section body"
		draft, err := illustrator.Illustrate(ctx, state, 0)
		require.NoError(t, err)
		require.Equal(t, "section body", draft)
	})
}
