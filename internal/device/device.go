// Package device talks to the desktop hosting the mirrored phone window:
// it finds and captures the window and synthesizes pointer and key input.
package device

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// ErrWindowNotFound is returned when no window matches the target title.
var ErrWindowNotFound = errors.New("target window not found")

// WindowHandle identifies a desktop window.
type WindowHandle struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Frame is one captured bitmap of a window together with the window's
// screen rectangle at capture time.
type Frame struct {
	Image image.Image
	Rect  models.Rect
}

// CaptureProvider locates and captures the mirrored window.
type CaptureProvider interface {
	FindTargetWindow(ctx context.Context, title string) (WindowHandle, error)
	Capture(ctx context.Context, window WindowHandle) (Frame, error)
}

// WindowActivator is implemented by providers that can raise a window.
type WindowActivator interface {
	Activate(ctx context.Context, window WindowHandle) error
}

// Button is a pointer button number.
type Button int

const (
	ButtonLeft  Button = 1
	ButtonRight Button = 3
)

// Modifier is a keyboard modifier name.
type Modifier string

const (
	ModSuper Modifier = "super"
	ModCtrl  Modifier = "ctrl"
	ModShift Modifier = "shift"
	ModAlt   Modifier = "alt"
)

// InputSynthesizer emits pointer and keyboard events at screen coordinates.
type InputSynthesizer interface {
	WarpPointer(ctx context.Context, p models.Point) error
	Press(ctx context.Context, p models.Point, button Button) error
	Release(ctx context.Context, p models.Point, button Button) error
	KeyPress(ctx context.Context, key string, mods []Modifier) error
	KeyRelease(ctx context.Context, key string, mods []Modifier) error
}

// EventGap is the pause between the parts of a synthesized gesture.
const EventGap = 50 * time.Millisecond

// Click warps to p and performs a full left click there.
func Click(ctx context.Context, in InputSynthesizer, p models.Point) error {
	if err := in.WarpPointer(ctx, p); err != nil {
		return err
	}
	if err := sleep(ctx, EventGap); err != nil {
		return err
	}
	if err := in.Press(ctx, p, ButtonLeft); err != nil {
		return err
	}
	if err := sleep(ctx, EventGap); err != nil {
		return err
	}
	return in.Release(ctx, p, ButtonLeft)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
