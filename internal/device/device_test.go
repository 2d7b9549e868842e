package device

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

type fakeRunner struct {
	calls   []string
	outputs map[string][]byte
	errs    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string][]byte{}, errs: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, line)
	for prefix, err := range f.errs {
		if strings.HasPrefix(line, prefix) {
			return f.outputs[prefix], err
		}
	}
	for prefix, out := range f.outputs {
		if strings.HasPrefix(line, prefix) {
			return out, nil
		}
	}
	return nil, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestX11_FindTargetWindow(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["xdotool search"] = []byte("41943047\n41943050\n")
	x := NewX11(runner, nil)

	h, err := x.FindTargetWindow(context.Background(), "iPhone Mirroring")
	require.NoError(t, err)
	assert.Equal(t, "41943047", h.ID)
	assert.Equal(t, []string{"xdotool search --onlyvisible --name iPhone Mirroring"}, runner.calls)
}

func TestX11_FindTargetWindowMissing(t *testing.T) {
	runner := newFakeRunner()
	runner.errs["xdotool search"] = errors.New("exit status 1")
	x := NewX11(runner, nil)

	_, err := x.FindTargetWindow(context.Background(), "iPhone Mirroring")
	assert.ErrorIs(t, err, ErrWindowNotFound)
}

func TestX11_Capture(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["xdotool getwindowgeometry"] = []byte("WINDOW=7\nX=100\nY=50\nWIDTH=320\nHEIGHT=640\nSCREEN=0\n")
	runner.outputs["import"] = pngBytes(t, 32, 64)
	x := NewX11(runner, nil)

	frame, err := x.Capture(context.Background(), WindowHandle{ID: "7"})
	require.NoError(t, err)
	assert.Equal(t, models.Rect{X: 100, Y: 50, Width: 320, Height: 640}, frame.Rect)
	assert.Equal(t, 32, frame.Image.Bounds().Dx())
	assert.Contains(t, runner.calls, "import -silent -window 7 png:-")
}

func TestParseShellGeometry_Incomplete(t *testing.T) {
	_, err := parseShellGeometry([]byte("X=1\nY=2\n"))
	assert.Error(t, err)
}

func TestX11_InputCommands(t *testing.T) {
	runner := newFakeRunner()
	x := NewX11(runner, nil)
	ctx := context.Background()

	require.NoError(t, x.WarpPointer(ctx, models.Point{X: 10, Y: 20}))
	require.NoError(t, x.Press(ctx, models.Point{X: 10, Y: 20}, ButtonLeft))
	require.NoError(t, x.Release(ctx, models.Point{X: 10, Y: 20}, ButtonLeft))
	require.NoError(t, x.KeyPress(ctx, "1", []Modifier{ModSuper}))
	require.NoError(t, x.KeyRelease(ctx, "Return", nil))

	assert.Equal(t, []string{
		"xdotool mousemove 10 20",
		"xdotool mousemove 10 20 mousedown 1",
		"xdotool mousemove 10 20 mouseup 1",
		"xdotool keydown super+1",
		"xdotool keyup Return",
	}, runner.calls)
}

func TestClick(t *testing.T) {
	rec := NewRecorder(nil)
	p := models.Point{X: 5, Y: 6}
	require.NoError(t, Click(context.Background(), rec, p))

	events := rec.Events()
	require.Len(t, events, 3)
	assert.Equal(t, EventWarp, events[0].Kind)
	assert.Equal(t, EventPress, events[1].Kind)
	assert.Equal(t, EventRelease, events[2].Kind)
	for _, e := range events {
		assert.Equal(t, p, e.Point)
	}
}

func TestPressShortcut(t *testing.T) {
	rec := NewRecorder(nil)
	require.NoError(t, PressShortcut(context.Background(), rec, "home"))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventKeyPress, events[0].Kind)
	assert.Equal(t, "1", events[0].Key)
	assert.Equal(t, []Modifier{ModSuper}, events[0].Modifiers)
	assert.Equal(t, EventKeyRelease, events[1].Kind)

	assert.Error(t, PressShortcut(context.Background(), rec, "volume_up"))
	assert.Equal(t, []string{"app_switcher", "home", "return", "spotlight"}, ShortcutNames())
}

func TestFileCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 40, 80), 0o644))

	fc := &FileCapture{Path: path}
	h, err := fc.FindTargetWindow(context.Background(), "any")
	require.NoError(t, err)

	frame, err := fc.Capture(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, models.Rect{Width: 40, Height: 80}, frame.Rect)

	missing := &FileCapture{Path: filepath.Join(t.TempDir(), "nope.png")}
	_, err = missing.FindTargetWindow(context.Background(), "any")
	assert.ErrorIs(t, err, ErrWindowNotFound)
}

func TestBellNotifier(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, BellNotifier{W: &buf}.Signal(context.Background(), "starting"))
	assert.Equal(t, "\astarting\n", buf.String())
}
