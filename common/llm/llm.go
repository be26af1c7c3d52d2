package llm

import (
	"context"
	"fmt"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Config holds LLM client configuration.
type Config struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string // Required: API key for the provider
	BaseURL   string // Optional: custom API endpoint
	Model     string
	MaxTokens int
}

// ChatClient produces free-form text replies for a conversation.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Model() string
}

type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

// Message represents a conversation message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

type ChatResponse struct {
	Content          string
	FinishReason     string // "stop", "length"
	PromptTokens     int
	CompletionTokens int
}

// NewChatClient selects the provider named in cfg.Provider. Defaults to OpenAI.
func NewChatClient(cfg Config) (ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	case ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
