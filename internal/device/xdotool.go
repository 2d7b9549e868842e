package device

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// X11 drives an X11 desktop with xdotool and captures windows with
// ImageMagick's import. It implements CaptureProvider, WindowActivator and
// InputSynthesizer.
type X11 struct {
	runner Runner
	logger *zap.Logger
}

// NewX11 creates an X11 device. A nil runner uses ExecRunner.
func NewX11(runner Runner, logger *zap.Logger) *X11 {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &X11{runner: runner, logger: logger}
}

// FindTargetWindow returns the first visible window whose name contains title.
func (x *X11) FindTargetWindow(ctx context.Context, title string) (WindowHandle, error) {
	out, err := x.runner.Run(ctx, "xdotool", "search", "--onlyvisible", "--name", title)
	if err != nil {
		// xdotool exits 1 when nothing matches.
		if len(bytes.TrimSpace(out)) == 0 {
			return WindowHandle{}, fmt.Errorf("%w: %q", ErrWindowNotFound, title)
		}
		return WindowHandle{}, err
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			x.logger.Debug("found target window", zap.String("id", id), zap.String("title", title))
			return WindowHandle{ID: id, Title: title}, nil
		}
	}
	return WindowHandle{}, fmt.Errorf("%w: %q", ErrWindowNotFound, title)
}

// Capture grabs the window contents and its current geometry.
func (x *X11) Capture(ctx context.Context, window WindowHandle) (Frame, error) {
	rect, err := x.geometry(ctx, window)
	if err != nil {
		return Frame{}, err
	}
	data, err := x.runner.Run(ctx, "import", "-silent", "-window", window.ID, "png:-")
	if err != nil {
		return Frame{}, fmt.Errorf("capture window %s: %w", window.ID, err)
	}
	img, err := decodeFrame(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Image: img, Rect: rect}, nil
}

func (x *X11) geometry(ctx context.Context, window WindowHandle) (models.Rect, error) {
	out, err := x.runner.Run(ctx, "xdotool", "getwindowgeometry", "--shell", window.ID)
	if err != nil {
		return models.Rect{}, fmt.Errorf("window geometry: %w", err)
	}
	return parseShellGeometry(out)
}

// parseShellGeometry parses `xdotool getwindowgeometry --shell` output.
func parseShellGeometry(out []byte) (models.Rect, error) {
	var rect models.Rect
	seen := 0
	for _, line := range strings.Split(string(out), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "X":
			rect.X = n
		case "Y":
			rect.Y = n
		case "WIDTH":
			rect.Width = n
		case "HEIGHT":
			rect.Height = n
		default:
			continue
		}
		seen++
	}
	if seen < 4 || rect.Empty() {
		return models.Rect{}, fmt.Errorf("incomplete window geometry: %q", strings.TrimSpace(string(out)))
	}
	return rect, nil
}

// Activate raises and focuses the window.
func (x *X11) Activate(ctx context.Context, window WindowHandle) error {
	_, err := x.runner.Run(ctx, "xdotool", "windowactivate", "--sync", window.ID)
	return err
}

// WarpPointer moves the pointer to p.
func (x *X11) WarpPointer(ctx context.Context, p models.Point) error {
	_, err := x.runner.Run(ctx, "xdotool", "mousemove", strconv.Itoa(p.X), strconv.Itoa(p.Y))
	return err
}

// Press presses button at p.
func (x *X11) Press(ctx context.Context, p models.Point, button Button) error {
	_, err := x.runner.Run(ctx, "xdotool", "mousemove", strconv.Itoa(p.X), strconv.Itoa(p.Y),
		"mousedown", strconv.Itoa(int(button)))
	return err
}

// Release releases button at p.
func (x *X11) Release(ctx context.Context, p models.Point, button Button) error {
	_, err := x.runner.Run(ctx, "xdotool", "mousemove", strconv.Itoa(p.X), strconv.Itoa(p.Y),
		"mouseup", strconv.Itoa(int(button)))
	return err
}

// KeyPress presses key with modifiers held.
func (x *X11) KeyPress(ctx context.Context, key string, mods []Modifier) error {
	_, err := x.runner.Run(ctx, "xdotool", "keydown", chord(key, mods))
	return err
}

// KeyRelease releases key and modifiers.
func (x *X11) KeyRelease(ctx context.Context, key string, mods []Modifier) error {
	_, err := x.runner.Run(ctx, "xdotool", "keyup", chord(key, mods))
	return err
}

func chord(key string, mods []Modifier) string {
	parts := make([]string, 0, len(mods)+1)
	for _, m := range mods {
		parts = append(parts, string(m))
	}
	return strings.Join(append(parts, key), "+")
}
