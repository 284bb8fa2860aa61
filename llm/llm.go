// Package llm defines the text-generation call contract consumed by the
// workflow components, plus an OpenAI-backed implementation.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Request describes one generation call. Model overrides the client default
// when set; JSON responses are requested via CompleteJSON.
type Request struct {
	System string
	Prompt string
	Model  string
}

// Client abstracts the text-generation service so components stay testable.
type Client interface {
	// Complete returns the model's plain-text response.
	Complete(ctx context.Context, req Request) (string, error)

	// CompleteJSON asks the model for a JSON object and unmarshals it into
	// out, which must be a pointer to the expected schema struct.
	CompleteJSON(ctx context.Context, req Request, out any) error
}

// Settings provides the base configuration for concrete clients.
type Settings struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

// decodeJSONResponse tolerates models that wrap JSON output in a markdown
// code fence.
func decodeJSONResponse(raw string, out any) error {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("failed to decode model JSON response: %w", err)
	}
	return nil
}
