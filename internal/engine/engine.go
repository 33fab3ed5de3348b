// Package engine orchestrates conversation turns: it resolves context,
// streams generation into speakable chunks, hands tool calls off for
// execution and keeps session history consistent. Voice turns run as
// background tasks drained through the task registry; messaging turns run
// synchronously.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bowerhall/mira/internal/behavior"
	"github.com/bowerhall/mira/internal/crm"
	"github.com/bowerhall/mira/internal/llm"
	"github.com/bowerhall/mira/internal/logger"
	"github.com/bowerhall/mira/internal/session"
	"github.com/bowerhall/mira/internal/task"
	"github.com/bowerhall/mira/internal/tools"
)

const maxToolIterations = 10
const retrievalDocs = 3

// Retriever resolves knowledge-base context for a query.
type Retriever interface {
	InferDomain(query string) string
	ContextForPrompt(ctx context.Context, query string, k int, domain string) (string, error)
}

type Engine struct {
	provider  llm.LLM
	sessions  *session.Store
	tasks     *task.Registry
	retriever Retriever
	crm       crm.Lookup
	registry  *tools.Registry
	behavior  *behavior.Behavior
	loc       *time.Location
	wordLimit int
}

type Config struct {
	Provider  llm.LLM
	Sessions  *session.Store
	Tasks     *task.Registry
	Retriever Retriever
	CRM       crm.Lookup // optional
	Registry  *tools.Registry
	Behavior  *behavior.Behavior
	Location  *time.Location
	WordLimit int
}

func New(cfg Config) *Engine {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		provider:  cfg.Provider,
		sessions:  cfg.Sessions,
		tasks:     cfg.Tasks,
		retriever: cfg.Retriever,
		crm:       cfg.CRM,
		registry:  cfg.Registry,
		behavior:  cfg.Behavior,
		loc:       loc,
		wordLimit: cfg.WordLimit,
	}
}

func (e *Engine) Sessions() *session.Store { return e.sessions }
func (e *Engine) Tasks() *task.Registry    { return e.tasks }

// Dispatch accepts a user utterance and spawns background generation for it.
// It returns the live task immediately; the control response must not wait on
// it. Rejected when a task is already in flight for the id.
func (e *Engine) Dispatch(ctx context.Context, id, channel, utterance, caller string) (*task.Task, error) {
	sess := e.sessions.Get(id, channel)

	t, err := e.tasks.Begin(id)
	if err != nil {
		return nil, err
	}

	go e.run(ctx, t, sess, id, utterance, caller)
	return t, nil
}

// Continue dispatches a continuation turn after tool execution: seeded from
// history alone, no new utterance, no fresh retrieval.
func (e *Engine) Continue(ctx context.Context, id, caller string) (*task.Task, error) {
	sess := e.sessions.Get(id, session.ChannelVoice)

	t, err := e.tasks.Begin(id)
	if err != nil {
		return nil, err
	}

	go e.run(ctx, t, sess, id, "", caller)
	return t, nil
}

func (e *Engine) run(ctx context.Context, t *task.Task, sess *session.Session, id, utterance, caller string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("generation panicked", "id", id, "panic", r)
			t.Complete(&task.Result{Err: errPanic})
		}
	}()

	knowledge := e.resolveContext(ctx, sess, utterance, caller)

	system := e.systemPrompt(knowledge, sess.Gender(), caller)

	messages := sess.History()
	if utterance != "" {
		messages = append(messages, llm.Message{Role: "user", Content: utterance})
	}

	inferred := ""
	seg := newSegmenter(e.wordLimit, t.PushChunk, func(g string) { inferred = g })

	resp, err := e.provider.StreamChat(ctx, system, messages, e.registry.Tools(), seg.Write)
	if err != nil {
		logger.Error("generation failed", "id", id, "error", err)
		t.Complete(&task.Result{Err: err})
		return
	}
	seg.Flush()

	text, tagGender := stripGenderTags(resp.Content)
	if tagGender != "" {
		inferred = tagGender
	}
	if inferred != "" && sess.Gender() == "" {
		sess.SetGender(inferred)
	}

	if len(resp.ToolCalls) > 0 {
		// history is written by the tool handoff, after execution; the
		// utterance rides along so the handoff can commit it first
		sess.SetPendingToolCalls(&session.PendingToolCalls{
			Calls:     resp.ToolCalls,
			Utterance: utterance,
			Context:   text,
		})
		t.Complete(&task.Result{
			Text:             text,
			RequiresToolCall: true,
			ToolCalls:        resp.ToolCalls,
		})
		return
	}

	if utterance != "" {
		sess.AppendTurn("user", utterance)
	}
	sess.AppendTurn("assistant", text)
	t.Complete(&task.Result{Text: text})
}

// resolveContext runs retrieval and the CRM attribute lookup concurrently.
// Continuations (empty utterance) skip both: their context is already in
// history. The retrieval domain sticks to the session: a query that names a
// domain pins it, and a keyword-free follow-up searches the pinned one
// instead of the whole base.
func (e *Engine) resolveContext(ctx context.Context, sess *session.Session, utterance, caller string) string {
	if utterance == "" {
		return ""
	}

	domain := e.retriever.InferDomain(utterance)
	if domain != "" {
		sess.SetDomain(domain)
	} else {
		domain = sess.Domain()
	}

	var knowledge string
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		k, err := e.retriever.ContextForPrompt(ctx, utterance, retrievalDocs, domain)
		if err != nil {
			logger.Warn("retrieval failed", "error", err)
			return
		}
		knowledge = k
	}()

	if e.crm != nil && sess.Gender() == "" && caller != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attrs, err := e.crm.Customer(ctx, caller)
			if err != nil {
				logger.Warn("crm lookup failed", "error", err)
				return
			}
			if attrs != nil {
				sess.SetGender(attrs.Gender)
			}
		}()
	}

	wg.Wait()
	return knowledge
}

func (e *Engine) systemPrompt(knowledge, gender, caller string) string {
	now := time.Now().In(e.loc).Format("Monday, 2 January 2006 15:04")
	return e.behavior.BuildSystemPrompt(knowledge, gender, now, caller)
}

// ExecuteTools runs the buffered tool calls against their collaborators and
// commits the turn's history: the user utterance, then one invocation+result
// pair per call. A failing tool yields a failed result but never aborts the
// turn; the continuation generation lets the model recover verbally. The
// returned flag reports an operator-transfer signal.
func (e *Engine) ExecuteTools(ctx context.Context, id string, pending *session.PendingToolCalls, caller string) bool {
	sess := e.sessions.Get(id, session.ChannelVoice)
	ctx = tools.WithCaller(ctx, caller)

	if pending.Utterance != "" {
		sess.AppendTurn("user", pending.Utterance)
	}

	transfer := false
	for i, call := range pending.Calls {
		if call.ID == "" {
			call.ID = uuid.NewString()
		}

		outcome, err := e.registry.Execute(ctx, call.Name, call.Arguments)
		result := outcome.Text
		if err != nil {
			logger.Error("tool failed", "tool", call.Name, "error", err)
			result = "Tool execution failed."
		}

		// the assistant text that rode along with the calls goes on
		// the first invocation entry
		text := ""
		if i == 0 {
			text = pending.Context
		}
		sess.AppendToolInteraction(call, text, result)
		if outcome.Transfer {
			transfer = true
		}
	}

	return transfer
}

// Respond is the blocking variant for messaging channels: the webhook can
// wait, so tool calls are executed inline and the final text returned.
func (e *Engine) Respond(ctx context.Context, id, channel, userMessage, caller string) (string, error) {
	sess := e.sessions.Get(id, channel)
	ctx = tools.WithCaller(ctx, caller)

	knowledge := e.resolveContext(ctx, sess, userMessage, caller)
	system := e.systemPrompt(knowledge, sess.Gender(), caller)

	// the turn is staged locally and committed whole on success; a turn
	// that dies at the provider leaves no dangling user entry
	turn := []llm.Message{{Role: "user", Content: userMessage}}

	for range maxToolIterations {
		resp, err := e.provider.ChatWithTools(ctx, system, append(sess.History(), turn...), e.registry.Tools())
		if err != nil {
			return "", err
		}

		text, gender := stripGenderTags(resp.Content)
		if gender != "" && sess.Gender() == "" {
			sess.SetGender(gender)
		}

		if len(resp.ToolCalls) == 0 {
			turn = append(turn, llm.Message{Role: "assistant", Content: text})
			sess.AppendMessages(turn...)
			return text, nil
		}

		for i, call := range resp.ToolCalls {
			if call.ID == "" {
				call.ID = uuid.NewString()
			}
			outcome, err := e.registry.Execute(ctx, call.Name, call.Arguments)
			result := outcome.Text
			if err != nil {
				logger.Error("tool failed", "tool", call.Name, "error", err)
				result = "Tool execution failed."
			}
			content := ""
			if i == 0 {
				content = text
			}
			turn = append(turn,
				llm.Message{Role: "assistant", Content: content, ToolCalls: []llm.ToolCall{call}},
				llm.Message{Role: "tool", Content: result, ToolCallID: call.ID},
			)
		}
	}

	return "", errToolLoop
}
