package inkwell

import "fmt"

// Stage enumerates the states of the generation workflow machine.
type Stage string

const (
	StageResearching      Stage = "RESEARCHING"
	StagePlanning         Stage = "PLANNING"
	StageAwaitingApproval Stage = "AWAITING_APPROVAL"
	StageWriting          Stage = "WRITING"
	StageCritiquing       Stage = "CRITIQUING"
	StageRevising         Stage = "REVISING"
	StageIllustrating     Stage = "ILLUSTRATING"
	StagePublishing       Stage = "PUBLISHING"
	StageDone             Stage = "DONE"
	StageFailed           Stage = "FAILED"
)

// Terminal reports whether the stage ends the thread.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// SectionScoped reports whether the stage operates on the section under the
// state's cursor.
func (s Stage) SectionScoped() bool {
	switch s {
	case StageWriting, StageCritiquing, StageRevising, StageIllustrating:
		return true
	}
	return false
}

// Step names the pipeline step a stage belongs to, as used in the event
// stream contract.
type Step string

const (
	StepResearch   Step = "research"
	StepPlan       Step = "plan"
	StepWrite      Step = "write"
	StepCritique   Step = "critique"
	StepIllustrate Step = "illustrate"
	StepPublish    Step = "publish"
)

// EventStep maps a stage to its event-stream step name.
func (s Stage) EventStep() Step {
	switch s {
	case StageResearching:
		return StepResearch
	case StagePlanning, StageAwaitingApproval:
		return StepPlan
	case StageWriting, StageRevising:
		return StepWrite
	case StageCritiquing:
		return StepCritique
	case StageIllustrating:
		return StepIllustrate
	default:
		return StepPublish
	}
}

// nextStage is the enumerated transition table: the next state is a pure
// function of the current stage and the state produced by executing it.
// There is no other routing mechanism; every edge the engine can take is
// spelled out here.
func nextStage(current Stage, state *WorkflowState) (Stage, error) {
	switch current {
	case StageResearching:
		// Safety valve: a stale cursor beyond the outline means writing is
		// already finished and research was re-entered erroneously.
		if len(state.Outline) > 0 && state.Cursor >= len(state.Outline) {
			return StagePublishing, nil
		}
		return StagePlanning, nil

	case StagePlanning:
		if len(state.Outline) > 0 && state.Cursor >= len(state.Outline) {
			return StagePublishing, nil
		}
		return StageAwaitingApproval, nil

	case StageWriting:
		section, ok := state.CurrentSection()
		if !ok {
			return StagePublishing, nil
		}
		// A retry count above zero marks the revision pass; the critique
		// stage runs exactly once per section and is skipped from here on.
		if state.Retries[section.ID] > 0 {
			return StageIllustrating, nil
		}
		return StageCritiquing, nil

	case StageCritiquing:
		if _, ok := state.CurrentSection(); !ok {
			return StagePublishing, nil
		}
		// The critic always requests one revision cycle; there is no
		// approved-on-first-pass exit.
		return StageRevising, nil

	case StageRevising:
		if _, ok := state.CurrentSection(); !ok {
			return StagePublishing, nil
		}
		return StageIllustrating, nil

	case StageIllustrating:
		// The illustrator advances the cursor; either more sections remain
		// or assembly begins.
		if state.Cursor < len(state.Outline) {
			return StageWriting, nil
		}
		return StagePublishing, nil

	case StagePublishing:
		return StageDone, nil

	case StageAwaitingApproval:
		// Leaving the approval gate requires a resume decision; see
		// resolveApproval. Reaching this without one is a programming error.
		return "", fmt.Errorf("stage %s requires an approval decision to advance", current)

	default:
		return "", fmt.Errorf("no transition defined from stage %q", current)
	}
}

// resolveApproval applies the reviewer's resume decision at the approval
// gate. A non-empty outline replaces the pending one and writing starts from
// section zero with all prior drafts discarded; an empty decision routes back
// to planning for re-generation. An edited outline may rename or add section
// ids the planner never budgeted, so budgets are re-derived whenever the
// approved ids are no longer fully covered.
func resolveApproval(state *WorkflowState, approved []Section) Stage {
	if len(approved) == 0 {
		return StagePlanning
	}
	state.Outline = make([]Section, len(approved))
	copy(state.Outline, approved)
	state.ClearSectionWork()
	if !budgetsCover(state.Outline, state.Budgets) {
		target := state.TargetWords
		if target <= 0 {
			target = state.BlogSize.TargetWords()
		}
		state.Budgets = EvenBudgets(state.Outline, target)
	}
	return StageWriting
}

// budgetsCover reports whether every section has a positive word budget.
func budgetsCover(outline []Section, budgets map[string]int) bool {
	for _, section := range outline {
		if budgets[section.ID] <= 0 {
			return false
		}
	}
	return true
}

// EvenBudgets divides target evenly across sections; the first target mod n
// sections take the remainder word each, so the sum equals the target exactly.
func EvenBudgets(outline []Section, target int) map[string]int {
	budgets := make(map[string]int, len(outline))
	n := len(outline)
	if n == 0 {
		return budgets
	}
	base := target / n
	extra := target % n
	for i, section := range outline {
		words := base
		if i < extra {
			words++
		}
		budgets[section.ID] = words
	}
	return budgets
}
