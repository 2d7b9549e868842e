package device

import (
	"context"
	"fmt"
	"time"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// Gesture timings.
const (
	ActivationDelay = 200 * time.Millisecond
	clickHold       = 10 * time.Millisecond
	swipeStepGap    = 5 * time.Millisecond
)

// Swipe defaults.
const (
	DefaultSwipeIntensity  = 100
	DefaultSwipeMultiplier = 4
)

// SwipeOptions describes a drag across the window centre. Intensity is the
// distance in screen pixels from the centre to each end of the drag;
// Multiplier scales the number of intermediate steps (10 per unit). Zero
// values take the defaults.
type SwipeOptions struct {
	Direction  models.Direction
	Intensity  int
	Multiplier int
}

func (o SwipeOptions) withDefaults() SwipeOptions {
	if o.Intensity <= 0 {
		o.Intensity = DefaultSwipeIntensity
	}
	if o.Multiplier <= 0 {
		o.Multiplier = DefaultSwipeMultiplier
	}
	return o
}

// SwipePath returns the start and end points of a swipe over window. A swipe
// "up" drags from below the centre to above it, scrolling content upward.
func SwipePath(window models.Rect, opts SwipeOptions) (start, end models.Point, err error) {
	if !opts.Direction.Valid() {
		return models.Point{}, models.Point{}, fmt.Errorf("invalid swipe direction %q: must be one of up, down, left, right", opts.Direction)
	}
	opts = opts.withDefaults()
	c := window.Center()
	half := opts.Direction.Offset(opts.Intensity)
	return models.Point{X: c.X - half.X, Y: c.Y - half.Y}, c.Add(half), nil
}

// Swipe presses the left button at the start of the path, drags to the end
// in small steps, and releases there.
func Swipe(ctx context.Context, in InputSynthesizer, window models.Rect, opts SwipeOptions) error {
	start, end, err := SwipePath(window, opts)
	if err != nil {
		return err
	}
	opts = opts.withDefaults()

	if err := in.WarpPointer(ctx, start); err != nil {
		return err
	}
	if err := sleep(ctx, EventGap); err != nil {
		return err
	}
	if err := in.Press(ctx, start, ButtonLeft); err != nil {
		return err
	}

	steps := 10 * opts.Multiplier
	for i := 1; i <= steps; i++ {
		p := models.Point{
			X: start.X + (end.X-start.X)*i/steps,
			Y: start.Y + (end.Y-start.Y)*i/steps,
		}
		if err := in.WarpPointer(ctx, p); err != nil {
			_ = in.Release(context.Background(), p, ButtonLeft)
			return err
		}
		if err := sleep(ctx, swipeStepGap); err != nil {
			_ = in.Release(context.Background(), p, ButtonLeft)
			return err
		}
	}
	return in.Release(ctx, end, ButtonLeft)
}

// DoubleClick warps to p and clicks twice in quick succession.
func DoubleClick(ctx context.Context, in InputSynthesizer, p models.Point) error {
	if err := in.WarpPointer(ctx, p); err != nil {
		return err
	}
	if err := sleep(ctx, EventGap); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		if i > 0 {
			if err := sleep(ctx, EventGap); err != nil {
				return err
			}
		}
		if err := in.Press(ctx, p, ButtonLeft); err != nil {
			return err
		}
		if err := sleep(ctx, clickHold); err != nil {
			return err
		}
		if err := in.Release(ctx, p, ButtonLeft); err != nil {
			return err
		}
	}
	return nil
}

// FocusWindow finds the target window, raises it when the provider can, and
// waits for the window manager to settle. It returns the window's current
// frame so callers can place gestures relative to it.
func FocusWindow(ctx context.Context, capture CaptureProvider, title string) (WindowHandle, Frame, error) {
	window, err := capture.FindTargetWindow(ctx, title)
	if err != nil {
		return WindowHandle{}, Frame{}, err
	}
	if activator, ok := capture.(WindowActivator); ok {
		if err := activator.Activate(ctx, window); err != nil {
			return WindowHandle{}, Frame{}, fmt.Errorf("activate window: %w", err)
		}
		if err := sleep(ctx, ActivationDelay); err != nil {
			return WindowHandle{}, Frame{}, err
		}
	}
	frame, err := capture.Capture(ctx, window)
	if err != nil {
		return WindowHandle{}, Frame{}, err
	}
	return window, frame, nil
}
