// Package interrupt pre-empts the caller's hold loop as soon as generation has
// something to say. While the caller listens to hold music the platform will
// not poll again until the loop finishes, so the controller pushes a live-call
// redirect the moment the task turns ready.
package interrupt

import (
	"context"
	"time"

	"github.com/bowerhall/mira/internal/logger"
	"github.com/bowerhall/mira/internal/task"
)

const DefaultMinHold = 2 * time.Second

// CallUpdater issues a live-call control update. Satisfied by notify.Twilio.
type CallUpdater interface {
	UpdateCall(callSID, markup string) error
}

type Controller struct {
	updater CallUpdater
	minHold time.Duration
}

func NewController(updater CallUpdater, minHold time.Duration) *Controller {
	if minHold <= 0 {
		minHold = DefaultMinHold
	}
	return &Controller{updater: updater, minHold: minHold}
}

// Watch waits for the task to turn ready, then redirects the live call to
// markup. A minimum hold floor keeps very fast generations from clipping the
// filler phrase mid-word. At most one redirect is ever issued per task; if the
// natural poll cycle got to the task first, MarkInterrupted loses the race and
// the watcher stands down silently.
//
// Runs in its own goroutine; the watcher outlives the control request that
// spawned it, so the caller passes a detached context.
func (c *Controller) Watch(ctx context.Context, t *task.Task, callSID, markup string) {
	floor := time.Until(t.Started().Add(c.minHold))
	if floor > 0 {
		select {
		case <-time.After(floor):
		case <-ctx.Done():
			return
		}
	}

	select {
	case <-t.Ready():
	case <-ctx.Done():
		return
	}

	if !t.MarkInterrupted() {
		return
	}

	if err := c.updater.UpdateCall(callSID, markup); err != nil {
		// The call may have moved on or hung up; the poll loop still
		// drains the task either way.
		logger.Debug("live call redirect skipped", "call", callSID, "error", err)
	}
}
