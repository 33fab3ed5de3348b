package interrupt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bowerhall/mira/internal/task"
)

type recordingUpdater struct {
	mu      sync.Mutex
	updates []string
}

func (r *recordingUpdater) UpdateCall(callSID, markup string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, callSID)
	return nil
}

func (r *recordingUpdater) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func TestWatchRedirectsWhenReady(t *testing.T) {
	updater := &recordingUpdater{}
	c := NewController(updater, time.Millisecond)

	reg := task.NewRegistry()
	tk, _ := reg.Begin("CA123")

	done := make(chan struct{})
	go func() {
		c.Watch(context.Background(), tk, "CA123", "<Response/>")
		close(done)
	}()

	tk.PushChunk("hello")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher never fired")
	}

	if updater.count() != 1 {
		t.Fatalf("expected one redirect, got %d", updater.count())
	}
}

func TestWatchWaitsForHoldFloor(t *testing.T) {
	updater := &recordingUpdater{}
	c := NewController(updater, 50*time.Millisecond)

	reg := task.NewRegistry()
	tk, _ := reg.Begin("CA123")
	tk.PushChunk("instant chunk")

	start := time.Now()
	c.Watch(context.Background(), tk, "CA123", "<Response/>")

	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("redirect fired before the hold floor: %v", elapsed)
	}
	if updater.count() != 1 {
		t.Fatalf("expected one redirect, got %d", updater.count())
	}
}

func TestWatchAtMostOnce(t *testing.T) {
	updater := &recordingUpdater{}
	c := NewController(updater, time.Millisecond)

	reg := task.NewRegistry()
	tk, _ := reg.Begin("CA123")
	tk.PushChunk("hello")

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Watch(context.Background(), tk, "CA123", "<Response/>")
		}()
	}
	wg.Wait()

	if updater.count() != 1 {
		t.Fatalf("expected exactly one redirect across racing watchers, got %d", updater.count())
	}
}

func TestWatchStandsDownWhenAlreadyConsumed(t *testing.T) {
	updater := &recordingUpdater{}
	c := NewController(updater, time.Millisecond)

	reg := task.NewRegistry()
	tk, _ := reg.Begin("CA123")
	tk.PushChunk("hello")

	// the natural poll cycle got here first
	if !tk.MarkInterrupted() {
		t.Fatal("setup: first mark must succeed")
	}

	c.Watch(context.Background(), tk, "CA123", "<Response/>")

	if updater.count() != 0 {
		t.Fatalf("expected no redirect, got %d", updater.count())
	}
}

func TestWatchCancelled(t *testing.T) {
	updater := &recordingUpdater{}
	c := NewController(updater, time.Millisecond)

	reg := task.NewRegistry()
	tk, _ := reg.Begin("CA123")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Watch(ctx, tk, "CA123", "<Response/>")
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher must exit on cancellation")
	}
	if updater.count() != 0 {
		t.Fatalf("expected no redirect, got %d", updater.count())
	}
}
