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

// Illustrator decides whether a finished section warrants a diagram and, if
// so, appends validated Mermaid source to the draft. It never fails the
// pipeline: model errors and invalid diagram syntax both leave the draft
// unchanged.
type Illustrator struct {
	client llm.Client
	logger *slog.Logger
}

var _ inkwell.Illustrator = (*Illustrator)(nil)

// NewIllustrator returns an Illustrator. The llm client is required.
func NewIllustrator(client llm.Client, logger *slog.Logger) (*Illustrator, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Illustrator{client: client, logger: logger}, nil
}

type diagramResponse struct {
	NeedsDiagram bool   `json:"needs_diagram"`
	Mermaid      string `json:"mermaid"`
}

// Illustrate returns the final draft for the section at index, with a fenced
// mermaid block appended when the model proposed one that validates.
func (il *Illustrator) Illustrate(ctx context.Context, state *inkwell.WorkflowState, index int) (string, error) {
	if index < 0 || index >= len(state.Outline) {
		return "", fmt.Errorf("section index %d out of range (outline has %d sections)", index, len(state.Outline))
	}
	sectionID := state.Outline[index].ID
	draft := state.Drafts[sectionID]

	prompt := fmt.Sprintf(
		"Analyze the following blog section.\n\nContent:\n%s\n\n"+
			"Does this section explain a process, workflow, or hierarchy that would "+
			"benefit from a diagram? If yes, generate a SIMPLE Mermaid flowchart:\n"+
			"- start with \"flowchart TD\" or \"flowchart LR\"\n"+
			"- nodes as nodeId[Short Text], connections as A --> B\n"+
			"- simple alphanumeric node ids, node text max 4 words\n"+
			"- optional trailing style lines like: style A fill:#e8f5e9,stroke:#333,stroke-width:2px,color:#000\n"+
			"If no diagram is needed, set needs_diagram to false.\n"+
			`Respond as JSON: {"needs_diagram": true|false, "mermaid": "..."}`,
		draft)

	var out diagramResponse
	if err := il.client.CompleteJSON(ctx, llm.Request{Prompt: prompt, Model: state.Model}, &out); err != nil {
		il.logger.Warn("diagram proposal failed, keeping draft as is",
			"section", sectionID, "error", err)
		return draft, nil
	}
	if !out.NeedsDiagram || strings.TrimSpace(out.Mermaid) == "" {
		return draft, nil
	}
	if err := ValidateMermaid(out.Mermaid); err != nil {
		il.logger.Warn("discarding invalid diagram", "section", sectionID, "error", err)
		return draft, nil
	}
	return fmt.Sprintf("%s\n\n```mermaid\n%s\n```\n", draft, strings.TrimSpace(out.Mermaid)), nil
}
