package tools

import (
	"context"

	"github.com/bowerhall/mira/internal/llm"
)

// Outcome is what a tool reports back into the conversation. Transfer set
// means the call should be bridged to a human operator instead of continuing
// the generated turn.
type Outcome struct {
	Text     string
	Transfer bool
}

type Handler func(ctx context.Context, args string) (Outcome, error)

type Registry struct {
	tools    []llm.Tool
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

func (r *Registry) Register(tool llm.Tool, handler Handler) {
	r.tools = append(r.tools, tool)
	r.handlers[tool.Name] = handler
}

func (r *Registry) Tools() []llm.Tool {
	return r.tools
}

func (r *Registry) Execute(ctx context.Context, name, args string) (Outcome, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return Outcome{Text: "Function not implemented."}, nil
	}
	return handler(ctx, args)
}

type contextKey string

// CallerKey carries the caller's phone number through tool execution so tools
// addressing "the person on the line" know where to send things.
const CallerKey contextKey = "caller"

func WithCaller(ctx context.Context, phone string) context.Context {
	return context.WithValue(ctx, CallerKey, phone)
}

func CallerFromContext(ctx context.Context) string {
	phone, _ := ctx.Value(CallerKey).(string)
	return phone
}
