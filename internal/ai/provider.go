// Package ai is the semantic action resolver. It shows a model the page
// map (and, when thinking deeply, a screenshot), asks it which element
// the description refers to, and acts on the answer with the executor
// primitives.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/v0xg/formpilot/internal/config"
)

// ErrNoProvider is returned by NewProvider for the "none" provider
var ErrNoProvider = errors.New("no AI provider configured")

// Request is one completion call
type Request struct {
	System string
	Prompt string
	// Image is an optional JPEG shown alongside the prompt.
	Image []byte
	// Deep selects the deep-think model when one is configured.
	Deep      bool
	MaxTokens int
}

// Provider completes a prompt with a language model
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f
func (f ProviderFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// NewProvider creates a new AI provider based on the provider name
func NewProvider(cfg config.AIConfig) (Provider, error) {
	switch cfg.Provider {
	case "claude", "anthropic":
		return NewClaudeProvider(cfg.AnthropicKey, cfg.Model, cfg.DeepModel)
	case "openai", "gpt":
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.Model, cfg.DeepModel)
	case "", config.ProviderNone:
		return nil, ErrNoProvider
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai, none)", cfg.Provider)
	}
}
