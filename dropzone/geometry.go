package dropzone

// Point is a pointer position as reported by the drag source.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned zone rectangle in logical (CSS) pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return r.Left <= p.X && p.X <= r.Right && r.Top <= p.Y && p.Y <= r.Bottom
}

// Scale divides p by ratio. Native drag positions may be in physical pixels
// while zone rectangles are logical.
func (p Point) Scale(ratio float64) Point {
	if ratio <= 0 {
		return p
	}
	return Point{X: p.X / ratio, Y: p.Y / ratio}
}
