package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Provider constants for LLM provider selection.
const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Finish reasons normalized across providers.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

// ErrMissingAPIKey is returned when a client is built without credentials.
var ErrMissingAPIKey = errors.New("API key is required")

// CredentialError names the environment variable that should have carried a
// provider credential. It matches ErrMissingAPIKey.
type CredentialError struct {
	Env string
}

func (e *CredentialError) Error() string {
	if e.Env == "" {
		return ErrMissingAPIKey.Error()
	}
	return e.Env + " is not configured"
}

func (e *CredentialError) Is(target error) bool {
	return target == ErrMissingAPIKey
}

// Config holds LLM client configuration.
type Config struct {
	Provider string // "bedrock", "anthropic" or "openai"
	APIKey   string // API key, or the Bedrock bearer token
	BaseURL  string // Optional: custom API endpoint
	Model    string
	Region   string // Bedrock only
}

// AgentClient supports tool-calling conversations for agent loops.
type AgentClient interface {
	ChatWithTools(ctx context.Context, req AgentRequest) (*AgentResponse, error)
	Model() string
}

// AgentRequest contains the messages and tools for an agent turn.
type AgentRequest struct {
	Messages    []Message
	Tools       []Tool
	MaxTokens   int
	Temperature *float64
}

// Message represents a conversation message.
type Message struct {
	Role       string     // "system", "user", "assistant", "tool"
	Content    string     // Text content
	ToolCalls  []ToolCall // For assistant messages that request tool calls
	ToolCallID string     // For tool result messages (references the tool call)
	IsError    bool       // For tool result messages
}

// Tool defines a function the LLM can call.
type Tool struct {
	Name        string
	Description string
	Parameters  any // JSON Schema for parameters
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID        string // Unique ID for this call
	Name      string // Tool name
	Arguments string // JSON-encoded arguments
}

// AgentResponse contains the LLM's response.
type AgentResponse struct {
	Content          string     // All text blocks joined
	TextBlocks       []string   // Text blocks in the order the provider returned them
	ToolCalls        []ToolCall // Tool calls to execute
	FinishReason     string     // "stop", "tool_calls", "length"
	PromptTokens     int
	CompletionTokens int
}

// LastText returns the last text block of the response, or "" if there is none.
func (r *AgentResponse) LastText() string {
	if r == nil || len(r.TextBlocks) == 0 {
		return ""
	}
	return r.TextBlocks[len(r.TextBlocks)-1]
}

// NewAgentClient creates an AgentClient for tool-calling conversations.
// Defaults to Bedrock if no provider is specified.
func NewAgentClient(ctx context.Context, cfg Config) (AgentClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderBedrock
	}

	switch provider {
	case ProviderBedrock:
		return NewBedrockClient(ctx, cfg)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg)
	case ProviderOpenAI:
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// ParseToolArguments unmarshals tool arguments into the target struct.
func ParseToolArguments[T any](arguments string) (T, error) {
	var result T
	if arguments == "" {
		arguments = "{}"
	}
	if err := json.Unmarshal([]byte(arguments), &result); err != nil {
		return result, fmt.Errorf("parse tool arguments: %w", err)
	}
	return result, nil
}

// GenerateSchemaFrom generates a JSON schema from an instance value.
func GenerateSchemaFrom(v any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

// schemaParts splits a tool schema into its properties and required list.
// Providers that want the object schema broken apart (Anthropic) use this.
func schemaParts(schema any) (map[string]any, []string) {
	if schema == nil {
		return nil, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, nil
	}
	var parsed struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, nil
	}
	return parsed.Properties, parsed.Required
}
