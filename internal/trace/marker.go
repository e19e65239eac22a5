package trace

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

var (
	okColor       = color.RGBA{52, 168, 83, 255}
	failColor     = color.RGBA{234, 67, 53, 255}
	cursorOutline = color.RGBA{0, 0, 0, 255}
	cursorFill    = color.RGBA{255, 255, 255, 255}
)

// markerRadius is the ripple radius drawn around an acted-on element
const markerRadius = 15

// annotate copies frame and draws a ripple plus cursor at every mark.
// The ripple is green when the step succeeded and red otherwise.
func annotate(frame image.Image, marks []Mark, ok bool) *image.RGBA {
	bounds := frame.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, frame, bounds.Min, draw.Src)

	ring := okColor
	if !ok {
		ring = failColor
	}
	for _, m := range marks {
		x := bounds.Min.X + int(m.X)
		y := bounds.Min.Y + int(m.Y)
		drawRipple(result, x, y, ring)
		drawCursor(result, x, y)
	}
	return result
}

// drawCursor draws a simple arrow cursor with its tip at x, y
func drawCursor(img *image.RGBA, x, y int) {
	outline := []image.Point{{0, 0}, {0, 16}, {4, 12}, {7, 18}, {10, 17}, {7, 11}, {12, 11}}

	for dy := 0; dy < 18; dy++ {
		for dx := 0; dx < 13; dx++ {
			if insideCursor(dx, dy) {
				setPixelSafe(img, x+dx, y+dy, cursorFill)
			}
		}
	}
	for i := range outline {
		p1, p2 := outline[i], outline[(i+1)%len(outline)]
		drawLine(img, x+p1.X, y+p1.Y, x+p2.X, y+p2.Y, cursorOutline)
	}
}

// insideCursor approximates the arrow as a triangle plus a shaft
func insideCursor(dx, dy int) bool {
	if dx < 0 || dy < 0 || dy > 16 {
		return false
	}
	if dy <= 11 {
		return dx <= dy*12/16
	}
	return dx <= 4
}

// drawLine draws a line between two points using Bresenham's algorithm
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawRipple draws a two-pixel circle around x, y
func drawRipple(img *image.RGBA, x, y int, c color.RGBA) {
	for angle := 0.0; angle < 360; angle++ {
		rad := angle * math.Pi / 180
		px := x + int(markerRadius*math.Cos(rad))
		py := y + int(markerRadius*math.Sin(rad))
		setPixelSafe(img, px, py, c)
		setPixelSafe(img, px+1, py, c)
		setPixelSafe(img, px, py+1, c)
	}
}

func setPixelSafe(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{x, y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
