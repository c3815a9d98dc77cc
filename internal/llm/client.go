package llm

import (
	"context"
	"fmt"
	"strings"
)

// Message is one prompt message in a completion request.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client produces chat completions.
type Client interface {
	Complete(ctx context.Context, messages []Message, temperature float32) (string, error)
	Name() string
}

// Config selects and parameterizes a completion backend.
type Config struct {
	Mode    string // auto | openai | mock
	APIKey  string
	BaseURL string
	Model   string
}

// NewClient builds a completion client from cfg. Mode "auto" uses the
// OpenAI-protocol backend when an API key is configured and the mock
// otherwise, which keeps local development keyless.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "auto":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return NewMockClient(), nil
		}
		return NewOpenAIClient(cfg), nil
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("llm mode openai requires an API key")
		}
		return NewOpenAIClient(cfg), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported llm mode %q", cfg.Mode)
	}
}
