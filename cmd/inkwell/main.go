package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/inkwell-ai/inkwell"
	"github.com/inkwell-ai/inkwell/llm"
	"github.com/inkwell-ai/inkwell/plan"
	"github.com/inkwell-ai/inkwell/postgres"
	"github.com/inkwell-ai/inkwell/publish"
	"github.com/inkwell-ai/inkwell/research"
	"github.com/inkwell-ai/inkwell/section"
)

// CLI configuration
type Config struct {
	BriefFile   string
	ResumeID    string
	OutlineFile string
	StateID     string
	DiscardID   string
	List        bool
	DataDir     string
	PostgresDSN string
	LogsDir     string
	OutputFile  string
	Timeout     time.Duration
	Verbose     bool
	JSON        bool
}

// Brief is the YAML run description supplied with -brief.
type Brief struct {
	Topic         string                `yaml:"topic"`
	Audience      string                `yaml:"audience"`
	Guidelines    []string              `yaml:"guidelines"`
	ExtraContext  string                `yaml:"extra_context"`
	StyleURLs     []string              `yaml:"style_urls"`
	StyleProfile  *inkwell.StyleProfile `yaml:"style_profile"`
	TargetDomain  string                `yaml:"target_domain"`
	KnowledgeBins []string              `yaml:"knowledge_bins"`
	Origins       []string              `yaml:"origins"`
	DeepResearch  bool                  `yaml:"deep_research"`
	BlogSize      string                `yaml:"blog_size"`
	Model         string                `yaml:"model"`
	PostgresDSN   string                `yaml:"postgres_dsn"`
}

func main() {
	config := parseFlags()

	switch {
	case config.BriefFile != "":
		runThread(config)
	case config.ResumeID != "":
		resumeThread(config)
	case config.List:
		listThreads(config)
	case config.StateID != "":
		showState(config)
	case config.DiscardID != "":
		discardThread(config)
	default:
		color.Red("Error: one of -brief, -resume, -list, -state, or -discard is required")
		flag.Usage()
		os.Exit(1)
	}
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.BriefFile, "brief", "", "Path to a YAML brief describing the post to generate")
	flag.StringVar(&config.BriefFile, "b", "", "Path to a YAML brief (shorthand)")

	flag.StringVar(&config.ResumeID, "resume", "", "Resume the given thread id")
	flag.StringVar(&config.OutlineFile, "outline", "", "Approved outline JSON for -resume (omit to request a re-plan)")

	flag.BoolVar(&config.List, "list", false, "List known threads")
	flag.StringVar(&config.StateID, "state", "", "Print the latest checkpointed state for a thread id")
	flag.StringVar(&config.DiscardID, "discard", "", "Discard a thread and all its checkpoints")

	flag.StringVar(&config.DataDir, "data", "", "Directory for thread checkpoints (default ~/.inkwell/threads)")
	flag.StringVar(&config.PostgresDSN, "postgres", "", "Postgres DSN for checkpoints (needed to resume threads started on postgres)")
	flag.StringVar(&config.LogsDir, "logs", "", "Directory for per-thread step logs (optional)")
	flag.StringVar(&config.OutputFile, "o", "", "Write the final markdown document to this file")

	flag.DurationVar(&config.Timeout, "timeout", 0, "Run timeout (e.g. 30s, 5m, 1h)")
	flag.BoolVar(&config.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&config.Verbose, "v", false, "Enable verbose logging (shorthand)")
	flag.BoolVar(&config.JSON, "json", false, "Output results in JSON format")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `inkwell - long-form content generation

Usage: %s [options]

Examples:
  # Start a new thread from a brief; pauses for outline approval
  %s -brief post.yaml

  # Approve (optionally after editing) the pending outline and finish
  %s -resume thread_01h4x... -outline approved.json

  # Ask for a fresh outline instead
  %s -resume thread_01h4x...

  # Inspect progress
  %s -list
  %s -state thread_01h4x...

Environment:
  OPENAI_API_KEY      required for generation
  FIRECRAWL_API_KEY   enables web/social research and style-url analysis

Options:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()
	return config
}

func runThread(config *Config) {
	brief, err := loadBrief(config.BriefFile)
	if err != nil {
		log.Fatalf("Failed to load brief: %v", err)
	}
	if brief.Topic == "" {
		color.Red("Error: brief must set a topic")
		os.Exit(1)
	}

	engine, cleanup := buildEngine(config, brief)
	defer cleanup()

	origins := make([]inkwell.Origin, 0, len(brief.Origins))
	for _, origin := range brief.Origins {
		origins = append(origins, inkwell.Origin(origin))
	}

	ctx, cancel := runContext(config)
	defer cancel()

	color.Blue("Topic: %s", brief.Topic)
	result, err := engine.Run(ctx, inkwell.StartRequest{
		Topic:         brief.Topic,
		Audience:      brief.Audience,
		Guidelines:    brief.Guidelines,
		ExtraContext:  brief.ExtraContext,
		StyleProfile:  brief.StyleProfile,
		StyleURLs:     brief.StyleURLs,
		TargetDomain:  brief.TargetDomain,
		KnowledgeBins: brief.KnowledgeBins,
		Origins:       origins,
		DeepResearch:  brief.DeepResearch,
		BlogSize:      inkwell.BlogSize(brief.BlogSize),
		Model:         brief.Model,
	})
	showResult(config, result, err)
}

func resumeThread(config *Config) {
	var approved []inkwell.Section
	if config.OutlineFile != "" {
		data, err := os.ReadFile(config.OutlineFile)
		if err != nil {
			log.Fatalf("Failed to read outline: %v", err)
		}
		if err := json.Unmarshal(data, &approved); err != nil {
			log.Fatalf("Failed to parse outline: %v", err)
		}
	}

	engine, cleanup := buildEngine(config, &Brief{})
	defer cleanup()

	ctx, cancel := runContext(config)
	defer cancel()

	if len(approved) > 0 {
		color.Blue("Resuming %s with approved outline (%d sections)", config.ResumeID, len(approved))
	} else {
		color.Blue("Resuming %s", config.ResumeID)
	}
	result, err := engine.Resume(ctx, config.ResumeID, approved)
	showResult(config, result, err)
}

func listThreads(config *Config) {
	store, cleanup := openStore(config, "")
	defer cleanup()
	summaries, err := store.(inkwell.ThreadLister).ListThreads(context.Background())
	if err != nil {
		log.Fatalf("Failed to list threads: %v", err)
	}
	if len(summaries) == 0 {
		color.Blue("No threads found")
		return
	}
	for _, summary := range summaries {
		fmt.Printf("%s  v%-3d %-18s %s  %s\n",
			summary.ThreadID,
			summary.Version,
			summary.Stage,
			summary.UpdatedAt.Format(time.RFC3339),
			summary.Topic)
	}
}

func showState(config *Config) {
	store, cleanup := openStore(config, "")
	defer cleanup()
	record, err := store.LoadLatest(context.Background(), config.StateID)
	if err != nil {
		log.Fatalf("Failed to load thread: %v", err)
	}
	if record == nil {
		color.Red("Thread %s not found", config.StateID)
		os.Exit(1)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		log.Fatalf("Failed to format state: %v", err)
	}
	fmt.Println(string(data))
}

func discardThread(config *Config) {
	store, cleanup := openStore(config, "")
	defer cleanup()
	if err := store.Delete(context.Background(), config.DiscardID); err != nil {
		log.Fatalf("Failed to discard thread: %v", err)
	}
	color.Green("Discarded %s", config.DiscardID)
}

func buildEngine(config *Config, brief *Brief) (*inkwell.Engine, func()) {
	logger := inkwell.NewLogger()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		color.Red("Error: OPENAI_API_KEY is not set")
		os.Exit(1)
	}
	client, err := llm.NewOpenAIClient(llm.Settings{APIKey: apiKey, Model: brief.Model})
	if err != nil {
		log.Fatalf("Failed to create model client: %v", err)
	}

	store, cleanup := openStore(config, brief.PostgresDSN)

	var (
		web     research.WebSearcher
		scraper research.Scraper
	)
	if firecrawlKey := os.Getenv("FIRECRAWL_API_KEY"); firecrawlKey != "" {
		firecrawl, err := research.NewFirecrawlClient(firecrawlKey, nil)
		if err != nil {
			log.Fatalf("Failed to create firecrawl client: %v", err)
		}
		web = firecrawl
		scraper = firecrawl
	}

	coordinator, err := research.NewCoordinator(research.CoordinatorOptions{
		Client:   client,
		Web:      web,
		Academic: research.NewArxivSearcher(&http.Client{Timeout: 20 * time.Second}),
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("Failed to create research coordinator: %v", err)
	}

	planner, err := plan.NewPlanner(client, logger)
	if err != nil {
		log.Fatalf("Failed to create planner: %v", err)
	}
	writer, err := section.NewWriter(client, logger)
	if err != nil {
		log.Fatalf("Failed to create writer: %v", err)
	}
	critic, err := section.NewCritic(client, logger)
	if err != nil {
		log.Fatalf("Failed to create critic: %v", err)
	}
	illustrator, err := section.NewIllustrator(client, logger)
	if err != nil {
		log.Fatalf("Failed to create illustrator: %v", err)
	}

	var styleAnalyst inkwell.StyleAnalyst
	if scraper != nil {
		styleAnalyst, err = research.NewStyleAnalyst(client, scraper, logger)
		if err != nil {
			log.Fatalf("Failed to create style analyst: %v", err)
		}
	}

	var stepLogger inkwell.StepLogger = inkwell.NewNullStepLogger()
	if config.LogsDir != "" {
		stepLogger = inkwell.NewFileStepLogger(config.LogsDir)
		color.Blue("Step logs: %s", config.LogsDir)
	}

	events := []inkwell.EventHandler{progressHandler()}
	if config.Verbose {
		events = append(events, inkwell.NewLogEventHandler(logger))
	}

	engine, err := inkwell.NewEngine(inkwell.EngineOptions{
		Store:        store,
		Researcher:   coordinator,
		Planner:      planner,
		Writer:       writer,
		Critic:       critic,
		Illustrator:  illustrator,
		Publisher:    publish.NewPublisher(logger),
		StyleAnalyst: styleAnalyst,
		StepLogger:   stepLogger,
		Events:       inkwell.NewEventChain(events...),
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	return engine, cleanup
}

func progressHandler() inkwell.EventHandler {
	return inkwell.EventHandlerFunc(func(ctx context.Context, event *inkwell.Event) {
		switch event.Type {
		case inkwell.EventStepStart:
			color.Cyan("→ %s", event.Step)
		case inkwell.EventError:
			color.Red("✗ %s", event.Message)
		}
	})
}

// openStore picks the checkpoint store: the -postgres flag wins, then the
// brief's DSN, then the file store. Every subcommand goes through this so a
// thread started on postgres can be resumed, listed, and discarded there.
func openStore(config *Config, briefDSN string) (inkwell.CheckpointStore, func()) {
	dsn := config.PostgresDSN
	if dsn == "" {
		dsn = briefDSN
	}
	if dsn != "" {
		pgStore, err := postgres.Open(context.Background(), dsn)
		if err != nil {
			log.Fatalf("Failed to open postgres store: %v", err)
		}
		return pgStore, func() { pgStore.Close() }
	}
	store, err := inkwell.NewFileCheckpointStore(config.DataDir)
	if err != nil {
		log.Fatalf("Failed to open checkpoint store: %v", err)
	}
	return store, func() {}
}

func runContext(config *Config) (context.Context, context.CancelFunc) {
	if config.Timeout > 0 {
		color.Yellow("Timeout: %v", config.Timeout)
		return context.WithTimeout(context.Background(), config.Timeout)
	}
	return context.WithCancel(context.Background())
}

func loadBrief(path string) (*Brief, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var brief Brief
	if err := yaml.Unmarshal(data, &brief); err != nil {
		return nil, err
	}
	return &brief, nil
}

func showResult(config *Config, result *inkwell.RunResult, err error) {
	if err != nil {
		color.Red("Error: %v", err)
		if result == nil {
			os.Exit(1)
		}
	}
	if result == nil {
		return
	}

	if config.JSON {
		data, jsonErr := json.MarshalIndent(result, "", "  ")
		if jsonErr != nil {
			log.Fatalf("Failed to format result: %v", jsonErr)
		}
		fmt.Println(string(data))
		if err != nil {
			os.Exit(1)
		}
		return
	}

	switch {
	case result.Paused:
		color.Yellow("Paused for outline approval (thread %s)", result.ThreadID)
		fmt.Println()
		for i, sec := range result.PendingOutline {
			budget := 0
			if result.State != nil {
				budget = result.State.Budgets[sec.ID]
			}
			fmt.Printf("  %d. %s (%s, ~%d words)\n     %s\n", i+1, sec.Title, sec.ID, budget, sec.Intent)
		}
		fmt.Println()
		color.White("Save the outline as JSON, edit as needed, then:")
		color.White("  %s -resume %s -outline approved.json", os.Args[0], result.ThreadID)

	case result.Stage == inkwell.StageDone:
		color.Green("Done (thread %s)", result.ThreadID)
		if result.Publication != nil {
			if config.OutputFile != "" {
				if writeErr := os.WriteFile(config.OutputFile, []byte(result.Publication.Markdown), 0o644); writeErr != nil {
					log.Fatalf("Failed to write output: %v", writeErr)
				}
				color.Blue("Wrote %s", config.OutputFile)
				if result.Publication.HTML != "" {
					htmlPath := config.OutputFile[:len(config.OutputFile)-len(filepath.Ext(config.OutputFile))] + ".html"
					if writeErr := os.WriteFile(htmlPath, []byte(result.Publication.HTML), 0o644); writeErr == nil {
						color.Blue("Wrote %s", htmlPath)
					}
				}
			} else {
				fmt.Println(result.Publication.Markdown)
			}
		}

	case result.Stage == inkwell.StageFailed:
		if result.State != nil && result.State.Failure != "" {
			color.Red("Thread failed: %s", result.State.Failure)
		}
		color.White("Partial progress remains inspectable: %s -state %s", os.Args[0], result.ThreadID)
		os.Exit(1)
	}
}
