package recording

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// MarkerRadius is the radius of the ring drawn around an acted-on element.
const MarkerRadius = 14

var (
	markerOK     = color.RGBA{R: 46, G: 160, B: 67, A: 255}
	markerFailed = color.RGBA{R: 218, G: 54, B: 51, A: 255}
	markerClick  = color.RGBA{R: 66, G: 133, B: 244, A: 255}
)

// mark returns a copy of frame with a marker at p. A failed action gets a
// red ring with a cross, a successful one a green ring; clicks add an
// outer ripple.
func mark(frame image.Image, p image.Point, ok, click bool) *image.RGBA {
	bounds := frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame, bounds.Min, draw.Src)

	c := markerOK
	if !ok {
		c = markerFailed
	}
	drawRing(out, p, MarkerRadius, c)
	drawRing(out, p, MarkerRadius-1, c)
	if !ok {
		d := MarkerRadius / 2
		drawLine(out, p.X-d, p.Y-d, p.X+d, p.Y+d, c)
		drawLine(out, p.X-d, p.Y+d, p.X+d, p.Y-d, c)
	}
	if click {
		drawRing(out, p, MarkerRadius+6, markerClick)
	}
	return out
}

// banner paints a solid strip along the bottom edge so the final frame of
// a recording shows the verdict at a glance.
func banner(frame image.Image, c color.RGBA) *image.RGBA {
	bounds := frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame, bounds.Min, draw.Src)

	h := max(bounds.Dy()/20, 4)
	strip := image.Rect(bounds.Min.X, bounds.Max.Y-h, bounds.Max.X, bounds.Max.Y)
	draw.Draw(out, strip, &image.Uniform{C: c}, image.Point{}, draw.Src)
	return out
}

func drawRing(img *image.RGBA, center image.Point, radius int, c color.RGBA) {
	// one point per degree is dense enough for the radii used here
	for deg := 0; deg < 360; deg++ {
		rad := float64(deg) * math.Pi / 180
		x := center.X + int(math.Round(float64(radius)*math.Cos(rad)))
		y := center.Y + int(math.Round(float64(radius)*math.Sin(rad)))
		setPixel(img, x, y, c)
	}
}

// drawLine is Bresenham's line algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	e := dx - dy
	for {
		setPixel(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * e
		if e2 > -dy {
			e -= dy
			x1 += sx
		}
		if e2 < dx {
			e += dx
			y1 += sy
		}
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
