package research

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/inkwell-ai/inkwell"
	"github.com/inkwell-ai/inkwell/llm"
)

const (
	// maxReflectionLoops bounds the gather/reflect cycle.
	maxReflectionLoops = 3

	// perQueryLimit caps results requested per search call.
	perQueryLimit = 3

	// maxInternalQueries caps how many generated queries hit the vector
	// index, per bin, to keep fan-out bounded.
	maxInternalQueries = 2

	socialSiteFilter = "site:reddit.com OR site:x.com OR site:twitter.com"
)

// CoordinatorOptions configures a research Coordinator. Client is required;
// search adapters are optional and origins without one are skipped with a
// warning rather than failing the stage.
type CoordinatorOptions struct {
	Client   llm.Client
	Web      WebSearcher
	Social   WebSearcher
	Academic AcademicSearcher
	Vector   VectorIndex
	Logger   *slog.Logger
}

// Coordinator runs the research stage: it generates queries, fans out one
// task per enabled origin, joins the results, merges them into the workflow
// state, and repeats while a reflection call finds the set insufficient.
type Coordinator struct {
	client   llm.Client
	web      WebSearcher
	social   WebSearcher
	academic AcademicSearcher
	vector   VectorIndex
	logger   *slog.Logger
}

var _ inkwell.Researcher = (*Coordinator)(nil)

// NewCoordinator returns a Coordinator configured with the given options.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		client:   opts.Client,
		web:      opts.Web,
		social:   opts.Social,
		academic: opts.Academic,
		vector:   opts.Vector,
		logger:   opts.Logger,
	}, nil
}

// Research executes the bounded research loop against the workflow state.
// Individual task failures yield zero results for their origin and never
// abort the join; a returned error is therefore always fatal (context
// cancellation or similar).
func (c *Coordinator) Research(ctx context.Context, state *inkwell.WorkflowState) error {
	loops := maxReflectionLoops
	if !state.DeepResearch {
		loops = 1
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		queries := c.generateQueries(ctx, state)
		items := c.fanOut(ctx, state, queries)
		state.MergeResearch(items)
		state.ResearchLoops++

		c.logger.Info("research round complete",
			"round", state.ResearchLoops,
			"new_items", len(items),
			"total_items", len(state.Research))

		if state.ResearchLoops >= loops {
			return nil
		}
		verdict := c.reflect(ctx, state)
		if verdict.Sufficient {
			c.logger.Info("research judged sufficient", "rationale", verdict.Rationale)
			return nil
		}
		c.logger.Info("research judged insufficient, iterating", "rationale", verdict.Rationale)
	}
}

// generateQueries asks the model for 3-5 search-optimized queries. On any
// failure the topic itself is the single query; the stage never blocks here.
func (c *Coordinator) generateQueries(ctx context.Context, state *inkwell.WorkflowState) []string {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You are a research planner.\nTopic: %s\n", state.Topic)
	if state.Audience != "" {
		fmt.Fprintf(&prompt, "Target audience: %s\n", state.Audience)
	}
	if len(state.Guidelines) > 0 {
		fmt.Fprintf(&prompt, "Guidelines:\n- %s\n", strings.Join(state.Guidelines, "\n- "))
	}
	fmt.Fprintf(&prompt, "Current research round: %d\n", state.ResearchLoops)
	prompt.WriteString("Break the topic into 3 to 5 specific, search-optimized queries. " +
		"If this is a follow-up round, focus on missing details.\n" +
		`Respond as JSON: {"queries": ["..."]}`)

	var out struct {
		Queries []string `json:"queries"`
	}
	if err := c.client.CompleteJSON(ctx, llm.Request{Prompt: prompt.String(), Model: state.Model}, &out); err != nil {
		c.logger.Warn("query generation failed, falling back to topic", "error", err)
		return []string{state.Topic}
	}
	queries := make([]string, 0, 5)
	for _, q := range out.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
		if len(queries) == 5 {
			break
		}
	}
	if len(queries) == 0 {
		return []string{state.Topic}
	}
	return queries
}

type fanTask struct {
	label string
	run   func(ctx context.Context) ([]inkwell.ResearchItem, error)
}

// fanOut dispatches one task per enabled origin and joins them. Results come
// back in task-dispatch order so source-id assignment by the merge reducer is
// deterministic; ordering across origins carries no meaning beyond that.
func (c *Coordinator) fanOut(ctx context.Context, state *inkwell.WorkflowState, queries []string) []inkwell.ResearchItem {
	tasks := c.buildTasks(state, queries)
	if len(tasks) == 0 {
		return nil
	}

	results := make([][]inkwell.ResearchItem, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task fanTask) {
			defer wg.Done()
			items, err := task.run(ctx)
			if err != nil {
				// Absorbed: a failed task contributes nothing.
				c.logger.Warn("research task failed",
					"task", task.label,
					"kind", inkwell.ClassifyError(err).Type,
					"error", err)
				return
			}
			results[i] = items
		}(i, task)
	}
	wg.Wait()

	var merged []inkwell.ResearchItem
	for _, items := range results {
		merged = append(merged, items...)
	}
	return merged
}

func (c *Coordinator) buildTasks(state *inkwell.WorkflowState, queries []string) []fanTask {
	var tasks []fanTask

	if state.OriginEnabled(inkwell.OriginWeb) {
		if c.web == nil {
			c.logger.Warn("web origin enabled but no web searcher configured")
		} else {
			for _, query := range queries {
				query := query
				tasks = append(tasks, fanTask{
					label: "web:" + query,
					run: func(ctx context.Context) ([]inkwell.ResearchItem, error) {
						return c.searchWeb(ctx, c.web, query, inkwell.OriginWeb)
					},
				})
			}
		}
	}

	// Social and academic search only the first query, to respect the
	// stricter rate limits of those services.
	if state.OriginEnabled(inkwell.OriginSocial) {
		searcher := c.social
		query := queries[0]
		if searcher == nil && c.web != nil {
			searcher = c.web
			query = fmt.Sprintf("%s %s", strings.Trim(query, `"'`), socialSiteFilter)
		}
		if searcher == nil {
			c.logger.Warn("social origin enabled but no searcher configured")
		} else {
			tasks = append(tasks, fanTask{
				label: "social:" + query,
				run: func(ctx context.Context) ([]inkwell.ResearchItem, error) {
					return c.searchWeb(ctx, searcher, query, inkwell.OriginSocial)
				},
			})
		}
	}

	if state.OriginEnabled(inkwell.OriginAcademic) {
		if c.academic == nil {
			c.logger.Warn("academic origin enabled but no academic searcher configured")
		} else {
			query := queries[0]
			tasks = append(tasks, fanTask{
				label: "academic:" + query,
				run: func(ctx context.Context) ([]inkwell.ResearchItem, error) {
					return c.searchAcademic(ctx, query)
				},
			})
		}
	}

	if state.OriginEnabled(inkwell.OriginInternal) {
		if c.vector == nil {
			c.logger.Warn("internal origin enabled but no vector index configured")
		} else {
			internalQueries := queries
			if len(internalQueries) > maxInternalQueries {
				internalQueries = internalQueries[:maxInternalQueries]
			}
			for _, query := range internalQueries {
				for _, bin := range state.KnowledgeBins {
					query, bin := query, bin
					tasks = append(tasks, fanTask{
						label: fmt.Sprintf("internal:%s:%s", bin, query),
						run: func(ctx context.Context) ([]inkwell.ResearchItem, error) {
							return c.searchInternal(ctx, bin, query)
						},
					})
				}
			}
		}
	}

	return tasks
}

func (c *Coordinator) searchWeb(ctx context.Context, searcher WebSearcher, query string, origin inkwell.Origin) ([]inkwell.ResearchItem, error) {
	results, err := searcher.Search(ctx, query, perQueryLimit)
	if err != nil {
		return nil, err
	}
	items := make([]inkwell.ResearchItem, 0, len(results))
	for _, result := range results {
		items = append(items, inkwell.ResearchItem{
			Origin:  origin,
			Title:   result.Title,
			URL:     result.URL,
			Content: inkwell.Clip(result.Content, 2000),
		})
	}
	return items, nil
}

func (c *Coordinator) searchAcademic(ctx context.Context, query string) ([]inkwell.ResearchItem, error) {
	papers, err := c.academic.Search(ctx, query, perQueryLimit)
	if err != nil {
		return nil, err
	}
	items := make([]inkwell.ResearchItem, 0, len(papers))
	for _, paper := range papers {
		content := paper.Summary
		if len(paper.Authors) > 0 {
			content = fmt.Sprintf("%s\nAuthors: %s", content, strings.Join(paper.Authors, ", "))
		}
		items = append(items, inkwell.ResearchItem{
			Origin:  inkwell.OriginAcademic,
			Title:   paper.Title,
			URL:     paper.URL,
			Content: inkwell.Clip(content, 2000),
		})
	}
	return items, nil
}

func (c *Coordinator) searchInternal(ctx context.Context, bin, query string) ([]inkwell.ResearchItem, error) {
	matches, err := c.vector.Query(ctx, bin, query, perQueryLimit)
	if err != nil {
		return nil, err
	}
	items := make([]inkwell.ResearchItem, 0, len(matches))
	for _, match := range matches {
		title := match.Title
		if title == "" {
			title = "Internal Doc"
		}
		items = append(items, inkwell.ResearchItem{
			Origin:  inkwell.OriginInternal,
			Bin:     bin,
			Title:   title,
			URL:     "Internal Knowledge Base",
			Content: match.Content,
			Score:   match.Score,
		})
	}
	return items, nil
}

// reflect runs one reflection call over the accumulated set. Any failure is
// read as "sufficient" so the loop can only terminate, never wedge.
func (c *Coordinator) reflect(ctx context.Context, state *inkwell.WorkflowState) inkwell.ReflectionVerdict {
	var findings strings.Builder
	for _, item := range state.Research {
		fmt.Fprintf(&findings, "[%s] %s\n%s\n\n", item.SourceID, item.Title, inkwell.Clip(item.Content, 300))
	}

	prompt := fmt.Sprintf(
		"Review the current research findings for the topic: %q\n\nFindings:\n%s\n"+
			"Are these findings sufficient to write a comprehensive post? "+
			"If not, explain what is missing.\n"+
			`Respond as JSON: {"sufficient": true|false, "rationale": "..."}`,
		state.Topic, findings.String())

	var verdict inkwell.ReflectionVerdict
	if err := c.client.CompleteJSON(ctx, llm.Request{Prompt: prompt, Model: state.Model}, &verdict); err != nil {
		c.logger.Warn("reflection call failed, stopping research loop", "error", err)
		return inkwell.ReflectionVerdict{Sufficient: true, Rationale: "reflection unavailable"}
	}
	return verdict
}
