package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Invoker using the official openai-go SDK
// (chat completions). Selected via the "openai" provider in config.
type OpenAIClient struct {
	client openai.Client
	model  string
	guards *guards
}

// NewOpenAIClient creates an OpenAI-backed Invoker.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for the openai provider")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		guards: newGuards(cfg.Retry, cfg.RequestsPerSecond),
	}, nil
}

// Invoke implements Invoker.
func (c *OpenAIClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}

	var response *openai.ChatCompletion
	err := c.guards.do(ctx, req.Operation, func(attemptCtx context.Context) error {
		resp, apiErr := c.client.Chat.Completions.New(attemptCtx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(req.Prompt),
			},
			// Groups every call from one analysis run on the provider side
			User: openai.String(req.Session.RunID),
		})
		if apiErr != nil {
			return apiErr
		}
		if len(resp.Choices) == 0 {
			return errors.New("openai: empty choices")
		}
		response = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("openai API call failed: %w", err)
	}

	duration := time.Since(startTime)
	fmt.Printf("model %s call [%s]: input=%d tokens, output=%d tokens, duration=%v\n",
		req.Operation, req.Session.Path,
		response.Usage.PromptTokens, response.Usage.CompletionTokens, duration)

	return &Response{
		Content: response.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  response.Usage.PromptTokens,
			OutputTokens: response.Usage.CompletionTokens,
		},
	}, nil
}
