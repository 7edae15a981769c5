// Package overlay renders detection geometry onto a transparent canvas that
// is laid over the camera picture in the browser.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

var (
	boxColor      = color.RGBA{0, 0, 255, 255}
	landmarkColor = color.RGBA{0, 255, 0, 255}
)

// Render draws the face box and landmark points on a transparent canvas of
// width x height. Geometry outside the canvas is clipped.
func Render(width, height int, box image.Rectangle, landmarks []image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1)))

	if !box.Empty() {
		for w := 0; w < 2; w++ {
			drawHLine(dst, box.Min.X, box.Max.X, box.Min.Y+w, boxColor)
			drawHLine(dst, box.Min.X, box.Max.X, box.Max.Y-w, boxColor)
			drawVLine(dst, box.Min.Y, box.Max.Y, box.Min.X+w, boxColor)
			drawVLine(dst, box.Min.Y, box.Max.Y, box.Max.X-w, boxColor)
		}
	}

	for _, p := range landmarks {
		drawDot(dst, p, 1, landmarkColor)
	}

	return dst
}

// EncodePNG renders the overlay and encodes it as PNG.
func EncodePNG(width, height int, box image.Rectangle, landmarks []image.Point) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Render(width, height, box, landmarks)); err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}
	return buf.Bytes(), nil
}

// drawHLine and drawVLine clamp their span to the canvas first, so the
// work is bounded by the canvas size whatever the coordinates are.
func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	b := dst.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for x := max(x1, b.Min.X); x <= min(x2, b.Max.X-1); x++ {
		dst.SetRGBA(x, y, c)
	}
}

func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	b := dst.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	for y := max(y1, b.Min.Y); y <= min(y2, b.Max.Y-1); y++ {
		dst.SetRGBA(x, y, c)
	}
}

// drawDot fills a square of side 2*radius+1 centered on p.
func drawDot(dst *image.RGBA, p image.Point, radius int, c color.RGBA) {
	for y := p.Y - radius; y <= p.Y+radius; y++ {
		drawHLine(dst, p.X-radius, p.X+radius, y, c)
	}
}
