package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient is the primary Invoker backend, wrapping the Anthropic
// Messages API with the shared client-side guards.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	guards *guards
}

// NewAnthropicClient creates an Anthropic-backed Invoker.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel()
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicClient{
		client: &client,
		model:  model,
		guards: newGuards(cfg.Retry, cfg.RequestsPerSecond),
	}, nil
}

// Invoke implements Invoker.
func (c *AnthropicClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	var response *anthropic.Message
	err := c.guards.do(ctx, req.Operation, func(attemptCtx context.Context) error {
		resp, apiErr := c.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
			},
			// The run ID groups every call from one analysis run on the
			// provider side
			Metadata: anthropic.MetadataParam{
				UserID: anthropic.String(req.Session.RunID),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var content string
	for _, block := range response.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	duration := time.Since(startTime)
	fmt.Printf("model %s call [%s]: input=%d tokens, output=%d tokens, duration=%v\n",
		req.Operation, req.Session.Path,
		response.Usage.InputTokens, response.Usage.OutputTokens, duration)

	return &Response{
		Content: content,
		Usage: Usage{
			InputTokens:  response.Usage.InputTokens,
			OutputTokens: response.Usage.OutputTokens,
		},
	}, nil
}
