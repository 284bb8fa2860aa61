package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell"
	"github.com/inkwell-ai/inkwell/llm"
)

func planningState(size inkwell.BlogSize) *inkwell.WorkflowState {
	state := inkwell.NewWorkflowState("Observability in Go services")
	state.BlogSize = size
	state.TargetWords = size.TargetWords()
	state.MergeResearch([]inkwell.ResearchItem{
		{Origin: inkwell.OriginWeb, Title: "Metrics", Content: "metrics content"},
		{Origin: inkwell.OriginInternal, Bin: "docs", Title: "Runbook", Content: "internal content"},
	})
	return state
}

func outlineJSON(count int) map[string]any {
	sections := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		sections = append(sections, map[string]any{
			"id":         sectionID(i),
			"title":      "Section",
			"intent":     "explain",
			"source_ids": []string{"web_1"},
		})
	}
	return map[string]any{"sections": sections}
}

func sectionID(i int) string {
	return "sec_" + string(rune('1'+i))
}

func TestPlannerPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("outline and budgets from the model", func(t *testing.T) {
		client := llm.NewMockClient().
			QueueJSON(outlineJSON(3)).
			QueueJSON(map[string]any{"budgets": map[string]int{
				"sec_1": 150, "sec_2": 450, "sec_3": 200,
			}})
		planner, err := NewPlanner(client, nil)
		require.NoError(t, err)

		result, err := planner.Plan(ctx, planningState(inkwell.BlogSizeSmall))
		require.NoError(t, err)
		require.Len(t, result.Outline, 3)
		require.Equal(t, "sec_1", result.Outline[0].ID)
		require.Equal(t, []string{"web_1"}, result.Outline[0].SourceIDs)
		require.Equal(t, 150, result.Budgets["sec_1"])
	})

	t.Run("overshoot is truncated to the size range", func(t *testing.T) {
		client := llm.NewMockClient().
			QueueJSON(outlineJSON(8)).
			QueueJSON(map[string]any{"budgets": map[string]int{
				"sec_1": 160, "sec_2": 160, "sec_3": 160, "sec_4": 160, "sec_5": 160,
			}})
		planner, err := NewPlanner(client, nil)
		require.NoError(t, err)

		result, err := planner.Plan(ctx, planningState(inkwell.BlogSizeSmall))
		require.NoError(t, err)
		require.Len(t, result.Outline, 5)
	})

	t.Run("undershoot proceeds without padding", func(t *testing.T) {
		client := llm.NewMockClient().QueueJSON(outlineJSON(2))
		planner, err := NewPlanner(client, nil)
		require.NoError(t, err)

		// Budget call has no queued response, so even division kicks in too.
		result, err := planner.Plan(ctx, planningState(inkwell.BlogSizeSmall))
		require.NoError(t, err)
		require.Len(t, result.Outline, 2)
		require.Equal(t, 400, result.Budgets["sec_1"])
		require.Equal(t, 400, result.Budgets["sec_2"])
	})

	t.Run("outline failure falls back to the three-section skeleton", func(t *testing.T) {
		planner, err := NewPlanner(llm.NewMockClient(), nil)
		require.NoError(t, err)

		result, err := planner.Plan(ctx, planningState(inkwell.BlogSizeSmall))
		require.NoError(t, err)
		require.Len(t, result.Outline, 3)
		require.Equal(t, "Introduction", result.Outline[0].Title)
		require.Equal(t, "Main Point", result.Outline[1].Title)
		require.Equal(t, "Conclusion", result.Outline[2].Title)
		require.Empty(t, result.Outline[0].SourceIDs)
	})

	t.Run("budgets off target fall back to even division", func(t *testing.T) {
		client := llm.NewMockClient().
			QueueJSON(outlineJSON(4)).
			QueueJSON(map[string]any{"budgets": map[string]int{
				"sec_1": 10, "sec_2": 10, "sec_3": 10, "sec_4": 10,
			}})
		planner, err := NewPlanner(client, nil)
		require.NoError(t, err)

		result, err := planner.Plan(ctx, planningState(inkwell.BlogSizeSmall))
		require.NoError(t, err)
		require.Equal(t, 200, result.Budgets["sec_1"])
		require.Equal(t, 200, result.Budgets["sec_4"])
	})

	t.Run("missing section ids are filled in", func(t *testing.T) {
		client := llm.NewMockClient().
			QueueJSON(map[string]any{"sections": []map[string]any{
				{"id": "", "title": "Untagged", "intent": "x"},
				{"id": "named", "title": "Named", "intent": "y"},
				{"id": "blank", "title": "", "intent": "dropped"},
			}})
		planner, err := NewPlanner(client, nil)
		require.NoError(t, err)

		result, err := planner.Plan(ctx, planningState(inkwell.BlogSizeSmall))
		require.NoError(t, err)
		require.Len(t, result.Outline, 2)
		require.Equal(t, "sec_1", result.Outline[0].ID)
		require.Equal(t, "named", result.Outline[1].ID)
	})
}
