package llm

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// DefaultModel is used when neither the settings nor the request name one.
const DefaultModel = "gpt-4o-mini"

// OpenAIClient implements Client using the official openai-go SDK (chat
// completions).
type OpenAIClient struct {
	model string
	opts  []option.RequestOption
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from settings. The API key is required; an
// empty model falls back to DefaultModel (per-request models still override).
func NewOpenAIClient(settings Settings) (*OpenAIClient, error) {
	if settings.APIKey == "" {
		return nil, errors.New("openai api key missing")
	}
	if settings.Model == "" {
		settings.Model = DefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(settings.APIKey)}
	if settings.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(settings.BaseURL))
	}
	return &OpenAIClient{model: settings.Model, opts: opts}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	return c.complete(ctx, req, false)
}

func (c *OpenAIClient) CompleteJSON(ctx context.Context, req Request, out any) error {
	raw, err := c.complete(ctx, req, true)
	if err != nil {
		return err
	}
	return decodeJSONResponse(raw, out)
}

func (c *OpenAIClient) complete(ctx context.Context, req Request, jsonMode bool) (string, error) {
	client := openai.NewClient(c.opts...)

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	model := req.Model
	if model == "" {
		model = c.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
