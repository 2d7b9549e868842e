package device

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/mfateev/temporal-mirror-agent/internal/imaging"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// FileCapture serves a fixed screenshot from disk. It is used for dry runs
// and for replaying a recorded screen without a desktop.
type FileCapture struct {
	Path string
	// Rect is the screen rectangle reported for the window. When empty, the
	// image bounds at the origin are used.
	Rect models.Rect
}

// FindTargetWindow succeeds whenever the file exists.
func (f *FileCapture) FindTargetWindow(_ context.Context, title string) (WindowHandle, error) {
	if _, err := os.Stat(f.Path); err != nil {
		return WindowHandle{}, fmt.Errorf("%w: %v", ErrWindowNotFound, err)
	}
	return WindowHandle{ID: f.Path, Title: title}, nil
}

// Capture reads and decodes the file.
func (f *FileCapture) Capture(_ context.Context, _ WindowHandle) (Frame, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Frame{}, fmt.Errorf("read screenshot: %w", err)
	}
	img, err := decodeFrame(data)
	if err != nil {
		return Frame{}, err
	}
	rect := f.Rect
	if rect.Empty() {
		b := img.Bounds()
		rect = models.Rect{Width: b.Dx(), Height: b.Dy()}
	}
	return Frame{Image: img, Rect: rect}, nil
}

func decodeFrame(data []byte) (image.Image, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return img, nil
}
