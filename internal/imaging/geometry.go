package imaging

import (
	"image"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// ScreenToImage converts a screen-space point into pixel space of a bitmap
// captured from window. Both spaces have their origin at the top-left with Y
// growing downward; the bitmap may be scaled relative to the window (for
// example on HiDPI displays). The result is relative to the bitmap's
// top-left corner regardless of bounds.Min, matching Overlay. This is the
// only place the two coordinate systems meet.
func ScreenToImage(p models.Point, window models.Rect, bounds image.Rectangle) image.Point {
	if window.Empty() {
		return image.Pt(p.X, p.Y)
	}
	x := (p.X - window.X) * bounds.Dx() / window.Width
	y := (p.Y - window.Y) * bounds.Dy() / window.Height
	return image.Pt(x, y)
}
