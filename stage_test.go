package inkwell

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func stateWithOutline(sectionCount, cursor int) *WorkflowState {
	state := NewWorkflowState("test topic")
	for i := 0; i < sectionCount; i++ {
		state.Outline = append(state.Outline, Section{
			ID:    testSectionID(i),
			Title: "Section",
		})
	}
	state.Cursor = cursor
	return state
}

func testSectionID(i int) string {
	return "sec_" + string(rune('a'+i))
}

func TestNextStage(t *testing.T) {
	t.Run("researching advances to planning", func(t *testing.T) {
		next, err := nextStage(StageResearching, NewWorkflowState("t"))
		require.NoError(t, err)
		require.Equal(t, StagePlanning, next)
	})

	t.Run("planning advances to approval gate", func(t *testing.T) {
		next, err := nextStage(StagePlanning, stateWithOutline(3, 0))
		require.NoError(t, err)
		require.Equal(t, StageAwaitingApproval, next)
	})

	t.Run("stale cursor routes research and planning to publishing", func(t *testing.T) {
		for _, stage := range []Stage{StageResearching, StagePlanning} {
			next, err := nextStage(stage, stateWithOutline(2, 2))
			require.NoError(t, err)
			require.Equal(t, StagePublishing, next)
		}
	})

	t.Run("first draft goes to critique", func(t *testing.T) {
		next, err := nextStage(StageWriting, stateWithOutline(2, 0))
		require.NoError(t, err)
		require.Equal(t, StageCritiquing, next)
	})

	t.Run("writing with retries skips critique", func(t *testing.T) {
		state := stateWithOutline(2, 0)
		state.Retries[state.Outline[0].ID] = 1
		next, err := nextStage(StageWriting, state)
		require.NoError(t, err)
		require.Equal(t, StageIllustrating, next)
	})

	t.Run("critique always requests one revision", func(t *testing.T) {
		next, err := nextStage(StageCritiquing, stateWithOutline(2, 0))
		require.NoError(t, err)
		require.Equal(t, StageRevising, next)
	})

	t.Run("revision goes to illustration", func(t *testing.T) {
		next, err := nextStage(StageRevising, stateWithOutline(2, 0))
		require.NoError(t, err)
		require.Equal(t, StageIllustrating, next)
	})

	t.Run("illustration advances to next section or publishing", func(t *testing.T) {
		// The illustrator has already advanced the cursor when this runs.
		next, err := nextStage(StageIllustrating, stateWithOutline(2, 1))
		require.NoError(t, err)
		require.Equal(t, StageWriting, next)

		next, err = nextStage(StageIllustrating, stateWithOutline(2, 2))
		require.NoError(t, err)
		require.Equal(t, StagePublishing, next)
	})

	t.Run("publishing completes the thread", func(t *testing.T) {
		next, err := nextStage(StagePublishing, stateWithOutline(2, 2))
		require.NoError(t, err)
		require.Equal(t, StageDone, next)
	})

	t.Run("section stages with exhausted cursor route to publishing", func(t *testing.T) {
		for _, stage := range []Stage{StageWriting, StageCritiquing, StageRevising} {
			next, err := nextStage(stage, stateWithOutline(2, 2))
			require.NoError(t, err)
			require.Equal(t, StagePublishing, next)
		}
	})

	t.Run("approval gate cannot advance without a decision", func(t *testing.T) {
		_, err := nextStage(StageAwaitingApproval, stateWithOutline(2, 0))
		require.Error(t, err)
		require.Contains(t, err.Error(), "approval decision")
	})

	t.Run("terminal stages have no transition", func(t *testing.T) {
		for _, stage := range []Stage{StageDone, StageFailed} {
			_, err := nextStage(stage, NewWorkflowState("t"))
			require.Error(t, err)
		}
	})
}

func TestResolveApproval(t *testing.T) {
	t.Run("empty decision routes back to planning", func(t *testing.T) {
		state := stateWithOutline(3, 0)
		require.Equal(t, StagePlanning, resolveApproval(state, nil))
		require.Len(t, state.Outline, 3)
	})

	t.Run("approved outline replaces pending and resets section work", func(t *testing.T) {
		state := stateWithOutline(3, 2)
		state.Drafts["sec_a"] = "old draft"
		state.Critiques["sec_a"] = "old feedback"
		state.Retries["sec_a"] = 1

		approved := []Section{
			{ID: "new_1", Title: "Edited Intro"},
			{ID: "new_2", Title: "Edited Body"},
		}
		next := resolveApproval(state, approved)
		require.Equal(t, StageWriting, next)
		require.Equal(t, approved, state.Outline)
		require.Zero(t, state.Cursor)
		require.Empty(t, state.Drafts)
		require.Empty(t, state.Critiques)
		require.Empty(t, state.Retries)
	})

	t.Run("approved outline is copied, not aliased", func(t *testing.T) {
		state := stateWithOutline(1, 0)
		approved := []Section{{ID: "x", Title: "X"}}
		resolveApproval(state, approved)
		approved[0].Title = "mutated"
		require.Equal(t, "X", state.Outline[0].Title)
	})

	t.Run("edited section ids get re-derived budgets", func(t *testing.T) {
		state := stateWithOutline(2, 0)
		state.TargetWords = 800
		state.Budgets = map[string]int{"sec_a": 500, "sec_b": 300}

		approved := []Section{
			{ID: "new_1", Title: "Edited Intro"},
			{ID: "new_2", Title: "Edited Body"},
		}
		require.Equal(t, StageWriting, resolveApproval(state, approved))
		require.Equal(t, map[string]int{"new_1": 400, "new_2": 400}, state.Budgets)
	})

	t.Run("re-derived budgets fall back to the size class target", func(t *testing.T) {
		state := stateWithOutline(1, 0)
		state.BlogSize = BlogSizeSmall
		require.Equal(t, StageWriting, resolveApproval(state, []Section{{ID: "solo"}}))
		require.Equal(t, BlogSizeSmall.TargetWords(), state.Budgets["solo"])
	})

	t.Run("unchanged section ids keep the planner's budgets", func(t *testing.T) {
		state := stateWithOutline(2, 0)
		state.TargetWords = 800
		state.Budgets = map[string]int{"sec_a": 500, "sec_b": 300}

		approved := []Section{
			{ID: "sec_b", Title: "Reordered"},
			{ID: "sec_a", Title: "Still Here"},
		}
		resolveApproval(state, approved)
		require.Equal(t, map[string]int{"sec_a": 500, "sec_b": 300}, state.Budgets)
	})
}

func TestEvenBudgets(t *testing.T) {
	t.Run("sum equals target for any section count", func(t *testing.T) {
		for sections := 1; sections <= 12; sections++ {
			for _, target := range []int{800, 1500, 2500, 1001} {
				outline := make([]Section, sections)
				for i := range outline {
					outline[i] = Section{ID: testSectionID(i)}
				}
				budgets := EvenBudgets(outline, target)
				sum := 0
				for _, words := range budgets {
					sum += words
				}
				require.Equal(t, target, sum, "%d sections at %d words", sections, target)
			}
		}
	})

	t.Run("allocations differ by at most one word", func(t *testing.T) {
		outline := []Section{{ID: "a"}, {ID: "b"}, {ID: "c"}}
		budgets := EvenBudgets(outline, 800)
		require.Equal(t, 267, budgets["a"])
		require.Equal(t, 267, budgets["b"])
		require.Equal(t, 266, budgets["c"])
	})

	t.Run("empty outline yields empty budgets", func(t *testing.T) {
		require.Empty(t, EvenBudgets(nil, 800))
	})
}

func TestStageHelpers(t *testing.T) {
	require.True(t, StageDone.Terminal())
	require.True(t, StageFailed.Terminal())
	require.False(t, StageWriting.Terminal())

	require.True(t, StageWriting.SectionScoped())
	require.True(t, StageRevising.SectionScoped())
	require.False(t, StagePublishing.SectionScoped())

	require.Equal(t, StepWrite, StageRevising.EventStep())
	require.Equal(t, StepPlan, StageAwaitingApproval.EventStep())
	require.Equal(t, StepPublish, StagePublishing.EventStep())
}
