// Package imaging renders the cursor overlay onto screenshots and compresses
// them for transport to the model.
package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Overlay geometry. The marker is drawn identically on every screenshot so
// the model can learn one convention.
const (
	CircleRadius    = 20
	CrosshairLength = 30
	StrokeWidth     = 3
)

// AccentColor is the marker colour.
var AccentColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}

// Overlay returns a copy of src with a circle and crosshair centred on pt.
// pt is in image pixel space with the origin at the image's top-left corner
// and Y growing downward. src is never modified.
func Overlay(src image.Image, pt image.Point) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	drawCircle(dst, pt, CircleRadius, StrokeWidth, AccentColor)

	half := CrosshairLength / 2
	fillRect(dst, image.Rect(pt.X-half, pt.Y-StrokeWidth/2, pt.X+half+1, pt.Y+StrokeWidth/2+1), AccentColor)
	fillRect(dst, image.Rect(pt.X-StrokeWidth/2, pt.Y-half, pt.X+StrokeWidth/2+1, pt.Y+half+1), AccentColor)
	return dst
}

func drawCircle(dst *image.RGBA, c image.Point, radius, width int, col color.RGBA) {
	outer := float64(radius) + float64(width)/2
	inner := float64(radius) - float64(width)/2
	r := int(math.Ceil(outer))
	clip := dst.Bounds()
	for y := c.Y - r; y <= c.Y+r; y++ {
		for x := c.X - r; x <= c.X+r; x++ {
			if !image.Pt(x, y).In(clip) {
				continue
			}
			d := math.Hypot(float64(x-c.X), float64(y-c.Y))
			if d >= inner && d <= outer {
				dst.SetRGBA(x, y, col)
			}
		}
	}
}

func fillRect(dst *image.RGBA, r image.Rectangle, col color.RGBA) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), &image.Uniform{C: col}, image.Point{}, draw.Src)
}
