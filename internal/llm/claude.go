package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

const maxRetries = 3
const baseDelay = 2 * time.Second

// validToolIDPattern matches Claude's required pattern for tool IDs
var validToolIDPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

type claude struct {
	client anthropic.Client
	model  string
}

func newClaude(apiKey, model string) LLM {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &claude{client: client, model: model}
}

func (c *claude) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	resp, err := c.ChatWithTools(ctx, systemPrompt, messages, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *claude) ChatWithTools(ctx context.Context, systemPrompt string, messages []Message, tools []Tool) (*ChatResponse, error) {
	params := c.buildParams(systemPrompt, messages, tools)

	var resp *anthropic.Message
	var err error
	for attempt := range maxRetries {
		resp, err = c.client.Messages.New(ctx, params)
		if err == nil {
			break
		}
		if !isRetryableError(err) {
			return nil, err
		}
		if attempt < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<attempt)
			time.Sleep(delay)
		}
	}
	if err != nil {
		return nil, err
	}

	return c.parseResponse(resp), nil
}

func (c *claude) StreamChat(ctx context.Context, systemPrompt string, messages []Message, tools []Tool, onDelta DeltaFunc) (*ChatResponse, error) {
	params := c.buildParams(systemPrompt, messages, tools)

	var lastErr error
	for attempt := range maxRetries {
		resp, emitted, err := c.streamOnce(ctx, params, onDelta)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		// once deltas have reached the caller, a retry would duplicate speech
		if emitted || !isRetryableError(err) {
			return nil, err
		}
		if attempt < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<attempt)
			time.Sleep(delay)
		}
	}
	return nil, lastErr
}

func (c *claude) streamOnce(ctx context.Context, params anthropic.MessageNewParams, onDelta DeltaFunc) (*ChatResponse, bool, error) {
	stream := c.client.Messages.NewStreaming(ctx, params)

	acc := anthropic.Message{}
	emitted := false

	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, emitted, err
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				emitted = true
				if onDelta != nil {
					onDelta(delta.Text)
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, emitted, err
	}

	return c.parseResponse(&acc), emitted, nil
}

func (c *claude) buildParams(systemPrompt string, messages []Message, tools []Tool) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 4096,
		Messages:  c.convertMessages(messages),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	if len(tools) > 0 {
		params.Tools = c.convertTools(tools)
	}

	return params
}

func isRetryableError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "529") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "Overloaded") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "502")
}

func (c *claude) convertMessages(messages []Message) []anthropic.MessageParam {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				var blocks []anthropic.ContentBlockParamUnion
				if msg.Content != "" {
					blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
				}
				for _, tc := range msg.ToolCalls {
					var input map[string]any
					json.Unmarshal([]byte(tc.Arguments), &input)
					blocks = append(blocks, anthropic.NewToolUseBlock(sanitizeToolID(tc.ID), input, tc.Name))
				}
				result = append(result, anthropic.NewAssistantMessage(blocks...))
			} else {
				result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			}
		case "tool":
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(sanitizeToolID(msg.ToolCallID), msg.Content, false),
			))
		default:
			if msg.Content != "" {
				result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}

	return result
}

// sanitizeToolID ensures tool IDs match Claude's pattern ^[a-zA-Z0-9_-]+$
func sanitizeToolID(id string) string {
	return validToolIDPattern.ReplaceAllString(id, "_")
}

func (c *claude) convertTools(tools []Tool) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		schema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if props, ok := tool.Parameters["properties"]; ok {
			schema.Properties = props
		}
		if r, ok := tool.Parameters["required"].([]string); ok {
			schema.Required = r
		} else if r, ok := tool.Parameters["required"].([]any); ok {
			var required []string
			for _, v := range r {
				if s, ok := v.(string); ok {
					required = append(required, s)
				}
			}
			schema.Required = required
		}

		result[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: schema,
			},
		}
	}

	return result
}

func (c *claude) parseResponse(resp *anthropic.Message) *ChatResponse {
	result := &ChatResponse{
		StopReason: string(resp.StopReason),
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			args, _ := json.Marshal(tu.Input)
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: string(args),
			})
		}
	}
	result.Content = text.String()

	result.Usage = &Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	return result
}
