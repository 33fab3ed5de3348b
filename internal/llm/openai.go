package llm

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openaiCompatible struct {
	client openai.Client
	model  string
}

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// so complete calls can be reconstructed once the stream finishes.
type aggCall struct{ id, name, args string }

func newOpenAICompatible(apiKey, baseURL, model string) LLM {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return &openaiCompatible{client: client, model: model}
}

func (o *openaiCompatible) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	resp, err := o.ChatWithTools(ctx, systemPrompt, messages, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (o *openaiCompatible) ChatWithTools(ctx context.Context, systemPrompt string, messages []Message, tools []Tool) (*ChatResponse, error) {
	params := o.buildParams(systemPrompt, messages, tools)

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return &ChatResponse{}, nil
	}

	choice := resp.Choices[0]
	result := &ChatResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	result.Usage = &Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}

	return result, nil
}

func (o *openaiCompatible) StreamChat(ctx context.Context, systemPrompt string, messages []Message, tools []Tool, onDelta DeltaFunc) (*ChatResponse, error) {
	params := o.buildParams(systemPrompt, messages, tools)

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)

	var text strings.Builder
	toolAgg := map[int64]*aggCall{}
	order := []int64{}
	stopReason := ""

	for stream.Next() {
		ck := stream.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				text.WriteString(ch.Delta.Content)
				if onDelta != nil {
					onDelta(ch.Delta.Content)
				}
			}
			for _, tc := range ch.Delta.ToolCalls {
				ac, ok := toolAgg[tc.Index]
				if !ok {
					ac = &aggCall{}
					toolAgg[tc.Index] = ac
					order = append(order, tc.Index)
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					ac.args += tc.Function.Arguments
				}
			}
			if ch.FinishReason != "" {
				stopReason = ch.FinishReason
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	result := &ChatResponse{
		Content:    text.String(),
		StopReason: stopReason,
	}
	for _, idx := range order {
		ac := toolAgg[idx]
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        ac.id,
			Name:      ac.name,
			Arguments: ac.args,
		})
	}

	return result, nil
}

func (o *openaiCompatible) buildParams(systemPrompt string, messages []Message, tools []Tool) openai.ChatCompletionNewParams {
	var oaiMessages []openai.ChatCompletionMessageParamUnion

	if systemPrompt != "" {
		oaiMessages = append(oaiMessages, openai.SystemMessage(systemPrompt))
	}

	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			if len(msg.ToolCalls) == 0 {
				oaiMessages = append(oaiMessages, openai.AssistantMessage(msg.Content))
				continue
			}
			var calls []openai.ChatCompletionMessageToolCallParam
			for _, tc := range msg.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: calls,
			}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			oaiMessages = append(oaiMessages, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case "tool":
			oaiMessages = append(oaiMessages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			oaiMessages = append(oaiMessages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    o.model,
		Messages: oaiMessages,
	}

	if len(tools) > 0 {
		oaiTools := make([]openai.ChatCompletionToolParam, len(tools))
		for i, tool := range tools {
			oaiTools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  tool.Parameters,
				},
			}
		}
		params.Tools = oaiTools
	}

	return params
}
