package inkwell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.jetify.com/typeid"
)

// NewThreadID returns a new prefixed id for thread identification.
func NewThreadID() string {
	id, err := typeid.WithPrefix("thread")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Researcher gathers sources for the thread. Implementations run the bounded
// query/fan-out/reflection loop and merge results into the state via its
// append-only reducer; per-task failures are absorbed, never returned.
type Researcher interface {
	Research(ctx context.Context, state *WorkflowState) error
}

// PlanResult is the planner's product: an ordered outline plus per-section
// word budgets summing approximately to the state's target word count.
type PlanResult struct {
	Outline []Section      `json:"outline"`
	Budgets map[string]int `json:"budgets"`
}

// Planner produces the outline and word budgets. Generation failures are
// absorbed internally via fallbacks, so a returned error is always fatal.
type Planner interface {
	Plan(ctx context.Context, state *WorkflowState) (*PlanResult, error)
}

// SectionWriter drafts the section under the state's cursor. On the revision
// pass (retry count > 0) it must incorporate the stored critique feedback.
type SectionWriter interface {
	Draft(ctx context.Context, state *WorkflowState, index int) (string, error)
}

// Critic evaluates the draft for the section under the cursor and returns
// structured feedback. It never returns a pass/fail verdict; every section
// gets exactly one feedback-incorporating rewrite.
type Critic interface {
	Critique(ctx context.Context, state *WorkflowState, index int) (string, error)
}

// Illustrator optionally appends a validated diagram to the section's final
// draft. Invalid or failed diagram generation is absorbed: the returned draft
// is then simply the input draft.
type Illustrator interface {
	Illustrate(ctx context.Context, state *WorkflowState, index int) (string, error)
}

// Publication is the assembled final document.
type Publication struct {
	Markdown    string   `json:"markdown"`
	HTML        string   `json:"html,omitempty"`
	UsedSources []string `json:"used_sources,omitempty"`
}

// Publisher assembles the final document and resolves citations.
type Publisher interface {
	Publish(ctx context.Context, state *WorkflowState) (*Publication, error)
}

// StyleAnalyst derives a style profile from style-source urls. Optional; when
// absent or failing, the default neutral profile is used.
type StyleAnalyst interface {
	Analyze(ctx context.Context, urls []string) (StyleProfile, error)
}

// EngineOptions configures a workflow engine.
type EngineOptions struct {
	Store        CheckpointStore
	Researcher   Researcher
	Planner      Planner
	Writer       SectionWriter
	Critic       Critic
	Illustrator  Illustrator
	Publisher    Publisher
	StyleAnalyst StyleAnalyst
	StepLogger   StepLogger
	Events       EventHandler
	Logger       *slog.Logger
}

// Engine drives a generation thread through the stage machine: research,
// plan, approval gate, per-section write/critique/revise/illustrate, publish.
// It checkpoints after computing every stage transition, before executing the
// next stage, so a crash only loses in-flight work for the current stage.
type Engine struct {
	store        CheckpointStore
	researcher   Researcher
	planner      Planner
	writer       SectionWriter
	critic       Critic
	illustrator  Illustrator
	publisher    Publisher
	styleAnalyst StyleAnalyst
	stepLogger   StepLogger
	events       EventHandler
	logger       *slog.Logger
}

// NewEngine returns a new Engine configured with the given options.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Planner == nil {
		return nil, fmt.Errorf("planner is required")
	}
	if opts.Writer == nil {
		return nil, fmt.Errorf("section writer is required")
	}
	if opts.Critic == nil {
		return nil, fmt.Errorf("critic is required")
	}
	if opts.Illustrator == nil {
		return nil, fmt.Errorf("illustrator is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if opts.Store == nil {
		opts.Store = NewMemoryCheckpointStore()
	}
	if opts.StepLogger == nil {
		opts.StepLogger = NewNullStepLogger()
	}
	if opts.Events == nil {
		opts.Events = NullEventHandler{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		store:        opts.Store,
		researcher:   opts.Researcher,
		planner:      opts.Planner,
		writer:       opts.Writer,
		critic:       opts.Critic,
		illustrator:  opts.Illustrator,
		publisher:    opts.Publisher,
		styleAnalyst: opts.StyleAnalyst,
		stepLogger:   opts.StepLogger,
		events:       opts.Events,
		logger:       opts.Logger,
	}, nil
}

// StartRequest carries everything needed to begin a new thread.
type StartRequest struct {
	Topic         string        `json:"topic"`
	Audience      string        `json:"audience,omitempty"`
	Guidelines    []string      `json:"guidelines,omitempty"`
	ExtraContext  string        `json:"extra_context,omitempty"`
	StyleProfile  *StyleProfile `json:"style_profile,omitempty"`
	StyleURLs     []string      `json:"style_urls,omitempty"`
	TargetDomain  string        `json:"target_domain,omitempty"`
	KnowledgeBins []string      `json:"knowledge_bins,omitempty"`
	Origins       []Origin      `json:"origins,omitempty"`
	DeepResearch  bool          `json:"deep_research,omitempty"`
	BlogSize      BlogSize      `json:"blog_size,omitempty"`
	Model         string        `json:"model,omitempty"`
	ThreadID      string        `json:"thread_id,omitempty"`
}

// RunResult reports where a thread ended up: a terminal document, a terminal
// failure, or paused at the approval gate with a pending outline.
type RunResult struct {
	ThreadID       string         `json:"thread_id"`
	Stage          Stage          `json:"stage"`
	Paused         bool           `json:"paused,omitempty"`
	PendingOutline []Section      `json:"pending_outline,omitempty"`
	Publication    *Publication   `json:"publication,omitempty"`
	State          *WorkflowState `json:"state,omitempty"`
}

// Run starts a new thread and drives it until it completes, fails, or pauses
// at the approval gate.
func (e *Engine) Run(ctx context.Context, req StartRequest) (*RunResult, error) {
	if req.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	for _, origin := range req.Origins {
		if !ValidOrigin(origin) {
			return nil, fmt.Errorf("unknown research origin %q", origin)
		}
	}
	if len(req.Origins) > 0 && e.researcher == nil {
		return nil, fmt.Errorf("researcher is required when research origins are enabled")
	}
	if req.BlogSize == "" {
		req.BlogSize = BlogSizeMedium
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = NewThreadID()
	}

	state := NewWorkflowState(req.Topic)
	state.Audience = req.Audience
	state.Guidelines = req.Guidelines
	state.ExtraContext = req.ExtraContext
	state.StyleURLs = req.StyleURLs
	state.TargetDomain = req.TargetDomain
	state.KnowledgeBins = req.KnowledgeBins
	state.Origins = req.Origins
	state.DeepResearch = req.DeepResearch
	state.BlogSize = req.BlogSize
	state.TargetWords = req.BlogSize.TargetWords()
	state.Model = req.Model
	if req.StyleProfile != nil {
		state.Style = *req.StyleProfile
	}

	// Research is skipped entirely when no origins are enabled.
	stage := StageResearching
	if len(req.Origins) == 0 {
		stage = StagePlanning
	}

	if err := e.store.Acquire(ctx, threadID); err != nil {
		return nil, err
	}
	defer e.release(threadID)

	e.logger.Info("starting thread",
		"thread_id", threadID,
		"topic", req.Topic,
		"blog_size", string(req.BlogSize),
		"initial_stage", string(stage))

	// Durable record of the starting position, so a crash before the first
	// stage completes still leaves a resumable thread.
	if err := e.checkpoint(ctx, threadID, 1, stage, state); err != nil {
		return nil, err
	}
	return e.runLoop(ctx, threadID, stage, state, 1)
}

// Resume continues a suspended or interrupted thread from its latest durable
// checkpoint. At the approval gate a non-empty outline approves (possibly
// edited) sections and advances to writing; an empty outline requests a
// re-plan. For threads checkpointed mid-run (crash recovery) the outline is
// ignored and execution picks up at the checkpointed stage.
func (e *Engine) Resume(ctx context.Context, threadID string, approved []Section) (*RunResult, error) {
	if err := e.store.Acquire(ctx, threadID); err != nil {
		return nil, err
	}
	defer e.release(threadID)

	record, err := e.store.LoadLatest(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if record == nil {
		return nil, ErrThreadNotFound
	}

	state := record.State
	stage := record.Stage
	version := record.Version

	switch stage {
	case StageDone:
		e.logger.Info("thread already completed", "thread_id", threadID)
		return e.terminalResult(threadID, stage, state), nil
	case StageFailed:
		return e.terminalResult(threadID, stage, state), fmt.Errorf("thread %s is failed and not resumable: %s", threadID, state.Failure)
	case StageAwaitingApproval:
		stage = resolveApproval(state, approved)
		version++
		if err := e.checkpoint(ctx, threadID, version, stage, state); err != nil {
			return nil, err
		}
		e.logger.Info("resuming from approval gate",
			"thread_id", threadID,
			"approved", len(approved) > 0,
			"next_stage", string(stage))
	default:
		e.logger.Info("recovering thread from checkpoint",
			"thread_id", threadID,
			"stage", string(stage),
			"version", version)
	}

	return e.runLoop(ctx, threadID, stage, state, version)
}

// Inspect returns the latest checkpoint for a thread without taking the
// lease. Partial progress stays retrievable even for failed threads.
func (e *Engine) Inspect(ctx context.Context, threadID string) (*CheckpointRecord, error) {
	record, err := e.store.LoadLatest(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrThreadNotFound
	}
	return record, nil
}

// Discard removes a thread and all its checkpoints.
func (e *Engine) Discard(ctx context.Context, threadID string) error {
	return e.store.Delete(ctx, threadID)
}

// runLoop executes stages until a terminal or paused state is reached. Each
// iteration executes the current stage against the live state, computes the
// next stage from the enumerated transition table, and persists a checkpoint
// before the next stage runs.
func (e *Engine) runLoop(ctx context.Context, threadID string, stage Stage, state *WorkflowState, version int) (*RunResult, error) {
	for {
		switch stage {
		case StageAwaitingApproval:
			// The pause point. The checkpoint for this stage is already
			// durable; control returns to the caller until Resume.
			e.emit(ctx, &Event{
				ThreadID: threadID,
				Type:     EventInterrupt,
				Step:     StepPlan,
				Stage:    stage,
				Payload:  map[string]any{"outline": state.Outline},
			})
			return &RunResult{
				ThreadID:       threadID,
				Stage:          stage,
				Paused:         true,
				PendingOutline: append([]Section(nil), state.Outline...),
				State:          state,
			}, nil

		case StageDone:
			result := e.terminalResult(threadID, stage, state)
			e.emit(ctx, &Event{
				ThreadID: threadID,
				Type:     EventEnd,
				Stage:    stage,
				Output:   state.FinalDocument,
			})
			return result, nil

		case StageFailed:
			return e.terminalResult(threadID, stage, state), errors.New(state.Failure)
		}

		e.emit(ctx, &Event{
			ThreadID: threadID,
			Type:     EventStepStart,
			Step:     stage.EventStep(),
			Stage:    stage,
		})

		startTime := time.Now()
		output, execErr := e.executeStage(ctx, stage, state)
		logEntry := &StepLogEntry{
			ThreadID:  threadID,
			Stage:     stage,
			Cursor:    state.Cursor,
			StartTime: startTime,
			Duration:  time.Since(startTime).Seconds(),
		}
		if execErr != nil {
			logEntry.Error = execErr.Error()
		}
		if logErr := e.stepLogger.LogStep(ctx, logEntry); logErr != nil {
			e.logger.Error("failed to log step", "error", logErr)
		}

		if execErr != nil {
			// Timeouts and caller cancellations never become terminal
			// failures: the thread stays at its last durable checkpoint,
			// resumable.
			if MatchesErrorType(execErr, ErrorTypeTimeout) {
				return nil, execErr
			}
			return e.fail(ctx, threadID, stage, state, version, execErr)
		}

		e.emit(ctx, &Event{
			ThreadID: threadID,
			Type:     EventStepComplete,
			Step:     stage.EventStep(),
			Stage:    stage,
			Output:   output,
		})

		next, err := nextStage(stage, state)
		if err != nil {
			return e.fail(ctx, threadID, stage, state, version, err)
		}
		version++
		if err := e.checkpoint(ctx, threadID, version, next, state); err != nil {
			// A checkpoint write failure is unrecoverable by definition: the
			// engine never runs ahead of its durable state.
			return nil, err
		}
		stage = next
	}
}

// executeStage runs the component bound to a stage against the state and
// returns a small output summary for the event stream.
func (e *Engine) executeStage(ctx context.Context, stage Stage, state *WorkflowState) (any, error) {
	switch stage {
	case StageResearching:
		e.resolveStyle(ctx, state)
		before := len(state.Research)
		if err := e.researcher.Research(ctx, state); err != nil {
			return nil, err
		}
		return map[string]any{
			"items":  len(state.Research) - before,
			"total":  len(state.Research),
			"rounds": state.ResearchLoops,
		}, nil

	case StagePlanning:
		if state.Style.IsZero() {
			state.Style = DefaultStyleProfile()
		}
		plan, err := e.planner.Plan(ctx, state)
		if err != nil {
			return nil, err
		}
		state.Outline = plan.Outline
		state.Budgets = plan.Budgets
		state.ClearSectionWork()
		return map[string]any{"outline": state.Outline, "budgets": state.Budgets}, nil

	case StageWriting, StageRevising:
		section, ok := state.CurrentSection()
		if !ok {
			return nil, nil
		}
		if stage == StageRevising {
			state.Retries[section.ID]++
		}
		draft, err := e.writer.Draft(ctx, state, state.Cursor)
		if err != nil {
			return nil, err
		}
		state.Drafts[section.ID] = draft
		return map[string]any{"section_id": section.ID, "words": countWords(draft)}, nil

	case StageCritiquing:
		section, ok := state.CurrentSection()
		if !ok {
			return nil, nil
		}
		feedback, err := e.critic.Critique(ctx, state, state.Cursor)
		if err != nil {
			return nil, err
		}
		state.Critiques[section.ID] = feedback
		return map[string]any{"section_id": section.ID}, nil

	case StageIllustrating:
		section, ok := state.CurrentSection()
		if ok {
			draft, err := e.illustrator.Illustrate(ctx, state, state.Cursor)
			if err != nil {
				return nil, err
			}
			state.Drafts[section.ID] = draft
		}
		state.Cursor++
		return map[string]any{"section_id": section.ID, "cursor": state.Cursor}, nil

	case StagePublishing:
		publication, err := e.publisher.Publish(ctx, state)
		if err != nil {
			return nil, err
		}
		state.FinalDocument = publication.Markdown
		state.FinalHTML = publication.HTML
		return map[string]any{"sources": publication.UsedSources}, nil

	default:
		return nil, fmt.Errorf("stage %q is not executable", stage)
	}
}

// resolveStyle fills in the style profile before research begins: a supplied
// profile wins, then style-url analysis, then the neutral default.
func (e *Engine) resolveStyle(ctx context.Context, state *WorkflowState) {
	if !state.Style.IsZero() {
		return
	}
	if e.styleAnalyst != nil && len(state.StyleURLs) > 0 {
		profile, err := e.styleAnalyst.Analyze(ctx, state.StyleURLs)
		if err != nil {
			e.logger.Warn("style analysis failed, using default profile", "error", err)
		} else {
			state.Style = profile
			return
		}
	}
	state.Style = DefaultStyleProfile()
}

// fail records a terminal failure: the state keeps all partial progress and
// the FAILED checkpoint carries a human-readable message.
func (e *Engine) fail(ctx context.Context, threadID string, stage Stage, state *WorkflowState, version int, cause error) (*RunResult, error) {
	state.Failure = fmt.Sprintf("stage %s failed: %s", stage, cause.Error())
	e.logger.Error("thread failed",
		"thread_id", threadID,
		"stage", string(stage),
		"kind", ClassifyError(cause).Type,
		"error", cause)
	e.emit(ctx, &Event{
		ThreadID: threadID,
		Type:     EventError,
		Step:     stage.EventStep(),
		Stage:    StageFailed,
		Message:  state.Failure,
	})
	if err := e.checkpoint(ctx, threadID, version+1, StageFailed, state); err != nil {
		e.logger.Error("failed to checkpoint terminal failure", "thread_id", threadID, "error", err)
	}
	return e.terminalResult(threadID, StageFailed, state), cause
}

func (e *Engine) checkpoint(ctx context.Context, threadID string, version int, stage Stage, state *WorkflowState) error {
	record := &CheckpointRecord{
		ThreadID:  threadID,
		Version:   version,
		Stage:     stage,
		State:     state.Clone(),
		CreatedAt: time.Now(),
	}
	if err := e.store.Save(ctx, record); err != nil {
		return NewFatalError(fmt.Errorf("failed to save checkpoint: %w", err))
	}
	return nil
}

func (e *Engine) terminalResult(threadID string, stage Stage, state *WorkflowState) *RunResult {
	result := &RunResult{ThreadID: threadID, Stage: stage, State: state}
	if stage == StageDone && state.FinalDocument != "" {
		result.Publication = &Publication{
			Markdown: state.FinalDocument,
			HTML:     state.FinalHTML,
		}
	}
	return result
}

func (e *Engine) emit(ctx context.Context, event *Event) {
	event.Time = time.Now()
	e.events.HandleEvent(ctx, event)
}

func (e *Engine) release(threadID string) {
	if err := e.store.Release(context.Background(), threadID); err != nil {
		e.logger.Error("failed to release thread lease", "thread_id", threadID, "error", err)
	}
}
