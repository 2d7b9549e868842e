package device

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

func TestSwipePath(t *testing.T) {
	window := models.Rect{X: 100, Y: 200, Width: 300, Height: 600}

	tests := []struct {
		dir        models.Direction
		start, end models.Point
	}{
		{models.DirectionUp, models.Point{X: 250, Y: 600}, models.Point{X: 250, Y: 400}},
		{models.DirectionDown, models.Point{X: 250, Y: 400}, models.Point{X: 250, Y: 600}},
		{models.DirectionLeft, models.Point{X: 350, Y: 500}, models.Point{X: 150, Y: 500}},
		{models.DirectionRight, models.Point{X: 150, Y: 500}, models.Point{X: 350, Y: 500}},
	}
	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			start, end, err := SwipePath(window, SwipeOptions{Direction: tt.dir})
			require.NoError(t, err)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}

	_, _, err := SwipePath(window, SwipeOptions{Direction: "diagonal"})
	assert.Error(t, err)
}

func TestSwipe_DragsInSteps(t *testing.T) {
	rec := NewRecorder(nil)
	window := models.Rect{Width: 200, Height: 400}

	err := Swipe(context.Background(), rec, window, SwipeOptions{Direction: models.DirectionUp, Intensity: 50, Multiplier: 1})
	require.NoError(t, err)

	events := rec.Events()
	require.Len(t, events, 13, "warp, press, ten drag steps, release")
	assert.Equal(t, EventWarp, events[0].Kind)
	assert.Equal(t, models.Point{X: 100, Y: 250}, events[0].Point)
	assert.Equal(t, EventPress, events[1].Kind)
	assert.Equal(t, models.Point{X: 100, Y: 240}, events[2].Point)
	assert.Equal(t, models.Point{X: 100, Y: 150}, events[11].Point)
	assert.Equal(t, EventRelease, events[12].Kind)
	assert.Equal(t, models.Point{X: 100, Y: 150}, events[12].Point)
}

func TestSwipe_InvalidDirectionEmitsNothing(t *testing.T) {
	rec := NewRecorder(nil)
	err := Swipe(context.Background(), rec, models.Rect{Width: 10, Height: 10}, SwipeOptions{Direction: "north"})
	assert.Error(t, err)
	assert.Empty(t, rec.Events())
}

func TestDoubleClick(t *testing.T) {
	rec := NewRecorder(nil)
	p := models.Point{X: 30, Y: 40}
	require.NoError(t, DoubleClick(context.Background(), rec, p))

	var kinds []EventKind
	for _, e := range rec.Events() {
		kinds = append(kinds, e.Kind)
		assert.Equal(t, p, e.Point)
	}
	assert.Equal(t, []EventKind{EventWarp, EventPress, EventRelease, EventPress, EventRelease}, kinds)
}

func TestFocusWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 40, 80), 0o644))

	window, frame, err := FocusWindow(context.Background(), &FileCapture{Path: path}, "iPhone Mirroring")
	require.NoError(t, err)
	assert.Equal(t, "iPhone Mirroring", window.Title)
	assert.Equal(t, models.Rect{Width: 40, Height: 80}, frame.Rect)

	_, _, err = FocusWindow(context.Background(), &FileCapture{Path: filepath.Join(t.TempDir(), "nope.png")}, "x")
	assert.ErrorIs(t, err, ErrWindowNotFound)
}

func TestFocusWindow_ActivatesX11Window(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["xdotool search"] = []byte("4194307\n")
	runner.outputs["xdotool getwindowgeometry"] = []byte("WINDOW=4194307\nX=10\nY=20\nWIDTH=40\nHEIGHT=80\nSCREEN=0\n")
	runner.outputs["import"] = pngBytes(t, 40, 80)

	_, frame, err := FocusWindow(context.Background(), NewX11(runner, nil), "iPhone Mirroring")
	require.NoError(t, err)
	assert.Equal(t, models.Rect{X: 10, Y: 20, Width: 40, Height: 80}, frame.Rect)
	assert.Contains(t, runner.calls, "xdotool windowactivate --sync 4194307")
}
