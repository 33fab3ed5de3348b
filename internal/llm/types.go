package llm

import "context"

type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type ChatResponse struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
	Usage      *Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// DeltaFunc receives incremental text as the provider produces it. Tool calls
// are accumulated inside the provider and surfaced on the final ChatResponse.
type DeltaFunc func(text string)

type LLM interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error)
	ChatWithTools(ctx context.Context, systemPrompt string, messages []Message, tools []Tool) (*ChatResponse, error)
	StreamChat(ctx context.Context, systemPrompt string, messages []Message, tools []Tool, onDelta DeltaFunc) (*ChatResponse, error)
}
