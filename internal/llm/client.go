// Package llm provides the narrow model-invocation interface the analysis
// core consumes, plus Anthropic and OpenAI backends carrying retry,
// circuit breaking, and concurrency limits.
//
// The core treats a model as a pure async function: text and instructions
// in, structured JSON and token usage out. Prompting strategy belongs to
// the plugins; transport policy (API keys, billing, server-side retries)
// belongs to the providers.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/steveyegge/docaudit/internal/session"
)

// Model tiers. Detectors use the default model for extraction and
// investigation; cheap bulk operations can opt into the simple-task model.
//
// Environment variable overrides:
// - DOCAUDIT_MODEL_DEFAULT: override the default model
// - DOCAUDIT_MODEL_SIMPLE: override the model for simple tasks
const (
	// ModelSonnet is the high-end model for verification and reasoning
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelHaiku is the cost-efficient model for bulk extraction
	ModelHaiku = "claude-3-5-haiku-20241022"
)

// GetDefaultModel returns the default model, checking DOCAUDIT_MODEL_DEFAULT first.
func GetDefaultModel() string {
	if model := os.Getenv("DOCAUDIT_MODEL_DEFAULT"); model != "" {
		return model
	}
	return ModelSonnet
}

// GetSimpleTaskModel returns the model for simple tasks, checking DOCAUDIT_MODEL_SIMPLE first.
func GetSimpleTaskModel() string {
	if model := os.Getenv("DOCAUDIT_MODEL_SIMPLE"); model != "" {
		return model
	}
	return ModelHaiku
}

// Usage reports token consumption of one call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Response is the result of one model invocation.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Request describes one model invocation. Session is the caller-supplied
// run context; backends propagate it to the provider so all calls from one
// run are traceable together.
type Request struct {
	// Prompt is the full instruction + content text
	Prompt string

	// MaxTokens caps the response length (0 uses the backend default)
	MaxTokens int

	// Model overrides the backend's configured model for this call.
	// Detectors use this to route bulk extraction to the cheap tier.
	Model string

	// Operation tags the call for logs and session paths, e.g. "math/extract"
	Operation string

	// Session is the run context threaded through every stage
	Session session.Context
}

// Invoker is the model capability consumed by every plugin stage.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// Config holds backend configuration shared by the Anthropic and OpenAI clients.
type Config struct {
	// APIKey overrides the provider's environment variable lookup
	APIKey string

	// Model to use (empty selects GetDefaultModel for Anthropic backends)
	Model string

	// BaseURL overrides the provider endpoint (OpenAI-compatible proxies)
	BaseURL string

	// Retry configures retry, circuit breaker, and concurrency limits
	Retry RetryConfig

	// RequestsPerSecond rate-limits outgoing calls (0 = unlimited)
	RequestsPerSecond float64
}

// New constructs a backend for the named provider ("anthropic" or "openai").
func New(provider string, cfg Config) (Invoker, error) {
	switch provider {
	case "", "anthropic":
		return NewAnthropicClient(cfg)
	case "openai":
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q (supported: anthropic, openai)", provider)
	}
}
