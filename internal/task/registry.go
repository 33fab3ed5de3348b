// Package task tracks in-flight generation work per conversation. Each
// conversation id has at most one live task; the producer (the generation
// goroutine) appends speakable chunks and eventually a terminal result, while
// control-request polls drain the queue and consume the result exactly once.
package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/bowerhall/mira/internal/llm"
	"github.com/bowerhall/mira/internal/logger"
)

type Status int

const (
	StatusProcessing Status = iota
	StatusCompleted
	StatusError
)

// Result is the terminal outcome of a generation task.
type Result struct {
	Text             string
	RequiresToolCall bool
	ToolCalls        []llm.ToolCall
	Err              error
}

type Task struct {
	mu          sync.Mutex
	status      Status
	chunks      []string
	result      *Result
	interrupted bool
	started     time.Time
	ready       chan struct{}
	readyOnce   sync.Once
}

func newTask() *Task {
	return &Task{
		started: time.Now(),
		ready:   make(chan struct{}),
	}
}

func (t *Task) Started() time.Time {
	return t.started
}

// Ready is closed when the first chunk is buffered or the task reaches a
// terminal state, whichever happens first.
func (t *Task) Ready() <-chan struct{} {
	return t.ready
}

func (t *Task) signalReady() {
	t.readyOnce.Do(func() { close(t.ready) })
}

// PushChunk appends one speakable chunk to the queue (producer side).
func (t *Task) PushChunk(text string) {
	t.mu.Lock()
	t.chunks = append(t.chunks, text)
	t.mu.Unlock()
	t.signalReady()
}

// Complete moves the task to its terminal state. Chunks already buffered stay
// drainable; the result is surfaced once the queue is empty.
func (t *Task) Complete(r *Result) {
	t.mu.Lock()
	t.result = r
	if r.Err != nil {
		t.status = StatusError
	} else {
		t.status = StatusCompleted
	}
	t.mu.Unlock()
	t.signalReady()
}

// MarkInterrupted flips the one-shot interruption guard. It returns true only
// for the first caller; the interruption controller must not issue a second
// pre-emption for the same task.
func (t *Task) MarkInterrupted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.interrupted {
		return false
	}
	t.interrupted = true
	return true
}

type PollState int

const (
	PollNoTask PollState = iota
	PollChunk
	PollPending
	PollDone
)

// PollResult is what one control-request poll observes.
type PollResult struct {
	State  PollState
	Chunk  string
	Result *Result
}

type Registry struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Begin registers a new task for id. Dispatching while a previous task is
// still live is a caller defect and is rejected.
func (r *Registry) Begin(id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[id]; exists {
		return nil, fmt.Errorf("task already in flight for %s", id)
	}

	t := newTask()
	r.tasks[id] = t
	return t, nil
}

// Get returns the live task for id, or nil.
func (r *Registry) Get(id string) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[id]
}

// Poll advances the consumer side by one observation. Buffered chunks are
// popped FIFO. The terminal result is returned exactly once: observing it
// evicts the task, and any later poll for the same id sees PollNoTask.
func (r *Registry) Poll(id string) PollResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return PollResult{State: PollNoTask}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.chunks) > 0 {
		chunk := t.chunks[0]
		t.chunks = t.chunks[1:]
		return PollResult{State: PollChunk, Chunk: chunk}
	}

	if t.status == StatusProcessing {
		return PollResult{State: PollPending}
	}

	delete(r.tasks, id)
	logger.Debug("task drained and evicted", "id", id, "took", time.Since(t.started))
	return PollResult{State: PollDone, Result: t.result}
}

// Sweep evicts tasks that reached a terminal state longer than maxIdle ago but
// were never drained (the caller hung up and polls stopped arriving).
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, t := range r.tasks {
		t.mu.Lock()
		stale := t.status != StatusProcessing && t.started.Before(cutoff)
		t.mu.Unlock()
		if stale {
			delete(r.tasks, id)
			evicted++
		}
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
