// control.go defines SessionControl, which separates Temporal coordination
// from SessionState. Update handlers set its flags; the loop waits on them.
package workflow

import (
	"time"

	"go.temporal.io/sdk/workflow"
)

// SessionControl owns the pause and cancel flags shared between the update
// handlers and the loop. It is never serialized.
type SessionControl struct {
	paused          bool
	cancelRequested bool
}

// Pause requests that the loop stop at the next iteration boundary.
func (ctrl *SessionControl) Pause() { ctrl.paused = true }

// Resume clears a pause request.
func (ctrl *SessionControl) Resume() { ctrl.paused = false }

// Cancel requests cancellation. It also releases a paused loop so it can
// observe the request.
func (ctrl *SessionControl) Cancel() {
	ctrl.cancelRequested = true
	ctrl.paused = false
}

// IsPaused reports whether a pause is in effect.
func (ctrl *SessionControl) IsPaused() bool { return ctrl.paused }

// IsCancelled reports whether cancellation was requested.
func (ctrl *SessionControl) IsCancelled() bool { return ctrl.cancelRequested }

// WaitWhilePaused blocks until the session is resumed or cancelled. It
// returns immediately when not paused.
func (ctrl *SessionControl) WaitWhilePaused(ctx workflow.Context) error {
	if !ctrl.paused {
		return nil
	}
	return workflow.Await(ctx, func() bool {
		return !ctrl.paused || ctrl.cancelRequested
	})
}

// Sleep waits for d, returning early on cancellation. A pause requested
// during the wait is honoured afterwards by WaitWhilePaused.
func (ctrl *SessionControl) Sleep(ctx workflow.Context, d time.Duration) error {
	if d <= 0 || ctrl.cancelRequested {
		return nil
	}
	_, err := workflow.AwaitWithTimeout(ctx, d, func() bool {
		return ctrl.cancelRequested
	})
	return err
}
