package vision

// Region is an axis-aligned box in frame pixel coordinates.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point is a position in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Region) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

func (r Region) Center() Point {
	return Point{
		X: float64(r.X) + float64(r.Width)/2,
		Y: float64(r.Y) + float64(r.Height)/2,
	}
}

// Intersect returns the shared part of r and o; the result is Empty when they
// do not overlap.
func (r Region) Intersect(o Region) Region {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Region{}
	}
	return Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Union returns the bounding box of r and o.
func (r Region) Union(o Region) Region {
	x1 := min(r.X, o.X)
	y1 := min(r.Y, o.Y)
	x2 := max(r.X+r.Width, o.X+o.Width)
	y2 := max(r.Y+r.Height, o.Y+o.Height)
	return Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Clip restricts r to a width x height frame.
func (r Region) Clip(width, height int) Region {
	return r.Intersect(Region{Width: width, Height: height})
}

// OverlapRatio is the intersection area divided by the smaller of the two areas.
func OverlapRatio(a, b Region) float64 {
	smaller := min(a.Area(), b.Area())
	if smaller == 0 {
		return 0
	}
	return float64(a.Intersect(b).Area()) / float64(smaller)
}
