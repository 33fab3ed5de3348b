package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bowerhall/mira/internal/behavior"
	"github.com/bowerhall/mira/internal/llm"
	"github.com/bowerhall/mira/internal/retrieval"
	"github.com/bowerhall/mira/internal/session"
	"github.com/bowerhall/mira/internal/task"
	"github.com/bowerhall/mira/internal/tools"
)

// scriptedTurn is one provider response: deltas streamed first, then the
// final ChatResponse.
type scriptedTurn struct {
	deltas []string
	resp   *llm.ChatResponse
	err    error
}

type fakeLLM struct {
	turns       []scriptedTurn
	streamCalls int
	lastSystem  string
	lastHistory []llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, system string, messages []llm.Message) (string, error) {
	resp, err := f.ChatWithTools(ctx, system, messages, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (f *fakeLLM) ChatWithTools(ctx context.Context, system string, messages []llm.Message, _ []llm.Tool) (*llm.ChatResponse, error) {
	return f.StreamChat(ctx, system, messages, nil, func(string) {})
}

func (f *fakeLLM) StreamChat(ctx context.Context, system string, messages []llm.Message, _ []llm.Tool, onDelta llm.DeltaFunc) (*llm.ChatResponse, error) {
	f.lastSystem = system
	f.lastHistory = messages

	turn := f.turns[f.streamCalls]
	f.streamCalls++

	if turn.err != nil {
		return nil, turn.err
	}
	for _, d := range turn.deltas {
		onDelta(d)
	}
	return turn.resp, nil
}

type fakeRetriever struct {
	calls int
}

func (f *fakeRetriever) InferDomain(query string) string { return "" }

func (f *fakeRetriever) ContextForPrompt(ctx context.Context, query string, k int, domain string) (string, error) {
	f.calls++
	return "Sea Ray: 450 per hour.", nil
}

func newTestEngine(t *testing.T, provider llm.LLM, retriever Retriever) (*Engine, *tools.Registry) {
	t.Helper()

	persona, err := behavior.Load("")
	require.NoError(t, err)

	registry := tools.NewRegistry()
	return New(Config{
		Provider:  provider,
		Sessions:  session.NewStore(),
		Tasks:     task.NewRegistry(),
		Retriever: retriever,
		Registry:  registry,
		Behavior:  persona,
	}), registry
}

// drain polls until the terminal result, collecting chunks along the way.
func drain(t *testing.T, reg *task.Registry, id string) ([]string, *task.Result) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)

	var chunks []string
	for {
		res := reg.Poll(id)
		switch res.State {
		case task.PollChunk:
			chunks = append(chunks, res.Chunk)
		case task.PollDone:
			return chunks, res.Result
		case task.PollPending:
			if time.Now().After(deadline) {
				t.Fatal("task never completed")
			}
			time.Sleep(5 * time.Millisecond)
		default:
			t.Fatal("task vanished before its result was observed")
		}
	}
}

func TestDispatchStreamsAndCommitsHistory(t *testing.T) {
	provider := &fakeLLM{turns: []scriptedTurn{{
		deltas: []string{"Yes, ", "the Sea Ray is free ", "on Friday."},
		resp:   &llm.ChatResponse{Content: "Yes, the Sea Ray is free on Friday."},
	}}}
	retriever := &fakeRetriever{}
	eng, _ := newTestEngine(t, provider, retriever)

	_, err := eng.Dispatch(context.Background(), "CA123", session.ChannelVoice, "is the Sea Ray free on Friday?", "+15550100")
	require.NoError(t, err)

	chunks, result := drain(t, eng.Tasks(), "CA123")
	assert.Equal(t, []string{"Yes,", "the Sea Ray is free on Friday."}, chunks)
	assert.Equal(t, "Yes, the Sea Ray is free on Friday.", result.Text)
	assert.False(t, result.RequiresToolCall)

	history := eng.Sessions().Get("CA123", session.ChannelVoice).History()
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "is the Sea Ray free on Friday?", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)

	assert.Equal(t, 1, retriever.calls)
	assert.Contains(t, provider.lastSystem, "Sea Ray: 450 per hour.")
}

func TestDispatchRejectsOverlap(t *testing.T) {
	provider := &fakeLLM{turns: []scriptedTurn{
		{resp: &llm.ChatResponse{Content: "first"}},
		{resp: &llm.ChatResponse{Content: "second"}},
	}}
	eng, _ := newTestEngine(t, provider, &fakeRetriever{})

	_, err := eng.Dispatch(context.Background(), "CA123", session.ChannelVoice, "hello", "")
	require.NoError(t, err)

	_, err = eng.Dispatch(context.Background(), "CA123", session.ChannelVoice, "hello again", "")
	assert.Error(t, err)
}

func TestDispatchToolCallBuffersPending(t *testing.T) {
	calls := []llm.ToolCall{{ID: "call_1", Name: "check_availability", Arguments: `{"date":"2026-07-17"}`}}
	provider := &fakeLLM{turns: []scriptedTurn{{
		deltas: []string{"Let me check."},
		resp:   &llm.ChatResponse{Content: "Let me check.", ToolCalls: calls},
	}}}
	eng, _ := newTestEngine(t, provider, &fakeRetriever{})

	_, err := eng.Dispatch(context.Background(), "CA123", session.ChannelVoice, "anything free Friday?", "")
	require.NoError(t, err)

	_, result := drain(t, eng.Tasks(), "CA123")
	require.True(t, result.RequiresToolCall)
	assert.Equal(t, calls, result.ToolCalls)

	sess := eng.Sessions().Get("CA123", session.ChannelVoice)
	assert.Empty(t, sess.History(), "tool turns commit nothing until execution")

	pending := sess.TakeAndClearPendingToolCalls()
	require.NotNil(t, pending)
	assert.Equal(t, calls, pending.Calls)
	assert.Equal(t, "anything free Friday?", pending.Utterance)
}

func TestDispatchErrorSurfaces(t *testing.T) {
	provider := &fakeLLM{turns: []scriptedTurn{{err: errors.New("overloaded")}}}
	eng, _ := newTestEngine(t, provider, &fakeRetriever{})

	_, err := eng.Dispatch(context.Background(), "CA123", session.ChannelVoice, "hello", "")
	require.NoError(t, err)

	_, result := drain(t, eng.Tasks(), "CA123")
	require.Error(t, result.Err)

	assert.Empty(t, eng.Sessions().Get("CA123", session.ChannelVoice).History())
}

func TestDispatchInfersGender(t *testing.T) {
	provider := &fakeLLM{turns: []scriptedTurn{{
		deltas: []string{"Of course, madam. [GENDER: female] "},
		resp:   &llm.ChatResponse{Content: "Of course, madam. [GENDER: female]"},
	}}}
	eng, _ := newTestEngine(t, provider, &fakeRetriever{})

	_, err := eng.Dispatch(context.Background(), "CA123", session.ChannelVoice, "hello", "")
	require.NoError(t, err)

	chunks, _ := drain(t, eng.Tasks(), "CA123")
	for _, c := range chunks {
		assert.NotContains(t, c, "GENDER")
	}

	sess := eng.Sessions().Get("CA123", session.ChannelVoice)
	assert.Equal(t, "female", sess.Gender())

	history := sess.History()
	require.Len(t, history, 2)
	assert.NotContains(t, history[1].Content, "GENDER")
}

func TestExecuteToolsCommitsOrdering(t *testing.T) {
	eng, registry := newTestEngine(t, &fakeLLM{}, &fakeRetriever{})

	registry.Register(llm.Tool{Name: "check_availability"}, func(ctx context.Context, args string) (tools.Outcome, error) {
		return tools.Outcome{Text: "Free slots: between 8 and 12"}, nil
	})

	pending := &session.PendingToolCalls{
		Calls:     []llm.ToolCall{{ID: "call_1", Name: "check_availability", Arguments: "{}"}},
		Utterance: "anything free Friday?",
		Context:   "Let me check the calendar.",
	}

	transfer := eng.ExecuteTools(context.Background(), "CA123", pending, "+15550100")
	assert.False(t, transfer)

	history := eng.Sessions().Get("CA123", session.ChannelVoice).History()
	require.Len(t, history, 3)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "Let me check the calendar.", history[1].Content)
	require.Len(t, history[1].ToolCalls, 1)
	assert.Equal(t, "tool", history[2].Role)
	assert.Equal(t, "Free slots: between 8 and 12", history[2].Content)
	assert.Equal(t, "call_1", history[2].ToolCallID)
}

func TestExecuteToolsFailureDoesNotAbort(t *testing.T) {
	eng, registry := newTestEngine(t, &fakeLLM{}, &fakeRetriever{})

	registry.Register(llm.Tool{Name: "send_whatsapp_message"}, func(ctx context.Context, args string) (tools.Outcome, error) {
		return tools.Outcome{}, errors.New("delivery failed")
	})

	pending := &session.PendingToolCalls{
		Calls: []llm.ToolCall{{ID: "call_1", Name: "send_whatsapp_message", Arguments: "{}"}},
	}
	eng.ExecuteTools(context.Background(), "CA123", pending, "")

	history := eng.Sessions().Get("CA123", session.ChannelVoice).History()
	require.Len(t, history, 2)
	assert.Equal(t, "Tool execution failed.", history[1].Content)
}

func TestExecuteToolsTransferSignal(t *testing.T) {
	eng, registry := newTestEngine(t, &fakeLLM{}, &fakeRetriever{})
	tools.RegisterTransferTool(registry)

	pending := &session.PendingToolCalls{
		Calls: []llm.ToolCall{{ID: "call_1", Name: "transfer_to_operator", Arguments: "{}"}},
	}

	assert.True(t, eng.ExecuteTools(context.Background(), "CA123", pending, ""))
}

func TestExecuteToolsAssignsMissingIDs(t *testing.T) {
	eng, registry := newTestEngine(t, &fakeLLM{}, &fakeRetriever{})
	registry.Register(llm.Tool{Name: "check_availability"}, func(ctx context.Context, args string) (tools.Outcome, error) {
		return tools.Outcome{Text: "ok"}, nil
	})

	pending := &session.PendingToolCalls{
		Calls: []llm.ToolCall{{Name: "check_availability", Arguments: "{}"}},
	}
	eng.ExecuteTools(context.Background(), "CA123", pending, "")

	history := eng.Sessions().Get("CA123", session.ChannelVoice).History()
	require.Len(t, history, 2)
	assert.NotEmpty(t, history[1].ToolCallID)
	assert.Equal(t, history[1].ToolCallID, history[0].ToolCalls[0].ID)
}

func TestContinueSkipsRetrieval(t *testing.T) {
	provider := &fakeLLM{turns: []scriptedTurn{{
		deltas: []string{"Friday morning is free."},
		resp:   &llm.ChatResponse{Content: "Friday morning is free."},
	}}}
	retriever := &fakeRetriever{}
	eng, _ := newTestEngine(t, provider, retriever)

	sess := eng.Sessions().Get("CA123", session.ChannelVoice)
	sess.AppendTurn("user", "anything free Friday?")
	sess.AppendToolInteraction(
		llm.ToolCall{ID: "call_1", Name: "check_availability", Arguments: "{}"},
		"",
		"Free slots: between 8 and 12",
	)

	_, err := eng.Continue(context.Background(), "CA123", "")
	require.NoError(t, err)

	_, result := drain(t, eng.Tasks(), "CA123")
	assert.Equal(t, "Friday morning is free.", result.Text)
	assert.Equal(t, 0, retriever.calls)

	history := sess.History()
	require.Len(t, history, 4)
	assert.Equal(t, "assistant", history[3].Role)
	assert.Equal(t, "Friday morning is free.", history[3].Content)
}

func TestRetrievalDomainSticksToSession(t *testing.T) {
	provider := &fakeLLM{turns: []scriptedTurn{
		{resp: &llm.ChatResponse{Content: "450 per hour."}},
		{resp: &llm.ChatResponse{Content: "Still 450 per hour."}},
	}}
	retriever := retrieval.New([]retrieval.Document{
		{Name: "yachts.md", Domain: "Yachts", Content: "charter price is 450 per hour"},
		{Name: "terminals.md", Domain: "Terminals", Content: "charter price is 10 per month"},
	})
	eng, _ := newTestEngine(t, provider, retriever)

	_, err := eng.Dispatch(context.Background(), "CA123", session.ChannelVoice, "yacht charter price", "")
	require.NoError(t, err)
	drain(t, eng.Tasks(), "CA123")

	assert.Contains(t, provider.lastSystem, "450 per hour")
	assert.NotContains(t, provider.lastSystem, "10 per month")

	// the follow-up names no domain; it must search the pinned one, not
	// the whole base
	_, err = eng.Dispatch(context.Background(), "CA123", session.ChannelVoice, "what is the charter price", "")
	require.NoError(t, err)
	drain(t, eng.Tasks(), "CA123")

	assert.Contains(t, provider.lastSystem, "450 per hour")
	assert.NotContains(t, provider.lastSystem, "10 per month")
}

func TestRespondErrorLeavesNoHistory(t *testing.T) {
	provider := &fakeLLM{turns: []scriptedTurn{{err: errors.New("overloaded")}}}
	eng, _ := newTestEngine(t, provider, &fakeRetriever{})

	_, err := eng.Respond(context.Background(), "wa123", session.ChannelWhatsApp, "hello", "+15550100")
	require.Error(t, err)

	assert.Empty(t, eng.Sessions().Get("wa123", session.ChannelWhatsApp).History(),
		"a turn that dies at the provider commits nothing")
}

func TestRespondRunsToolLoop(t *testing.T) {
	calls := []llm.ToolCall{{ID: "call_1", Name: "check_availability", Arguments: "{}"}}
	provider := &fakeLLM{turns: []scriptedTurn{
		{resp: &llm.ChatResponse{ToolCalls: calls}},
		{resp: &llm.ChatResponse{Content: "Friday morning is free."}},
	}}
	eng, registry := newTestEngine(t, provider, &fakeRetriever{})
	registry.Register(llm.Tool{Name: "check_availability"}, func(ctx context.Context, args string) (tools.Outcome, error) {
		return tools.Outcome{Text: "Free slots: between 8 and 12"}, nil
	})

	text, err := eng.Respond(context.Background(), "wa123", session.ChannelWhatsApp, "anything free Friday?", "+15550100")
	require.NoError(t, err)
	assert.Equal(t, "Friday morning is free.", text)

	history := eng.Sessions().Get("wa123", session.ChannelWhatsApp).History()
	require.Len(t, history, 4)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "tool", history[2].Role)
	assert.Equal(t, "assistant", history[3].Role)
}
