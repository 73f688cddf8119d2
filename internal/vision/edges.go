package vision

import "math"

// EdgeParams tune the Sobel-based face detector.
type EdgeParams struct {
	// MinMagnitude is the gradient magnitude above which a pixel counts as an edge.
	MinMagnitude float64
	// BandFraction selects rows/columns whose edge count reaches this fraction of
	// the busiest row/column.
	BandFraction float64
	MinPixels    int
	MinAspect    float64
	MaxAspect    float64
}

func DefaultEdgeParams() EdgeParams {
	return EdgeParams{
		MinMagnitude: 100,
		BandFraction: 0.3,
		MinPixels:    500,
		MinAspect:    0.8,
		MaxAspect:    1.5,
	}
}

// SobelMagnitude returns the gradient magnitude of the luma plane, row-major.
// Border pixels are left at zero.
func SobelMagnitude(f *Frame) []float64 {
	w, h := f.Width, f.Height
	gray := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gray[y*w+x] = f.luma(x, y)
		}
	}

	mag := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			tl, tc, tr := gray[(y-1)*w+x-1], gray[(y-1)*w+x], gray[(y-1)*w+x+1]
			ml, mr := gray[y*w+x-1], gray[y*w+x+1]
			bl, bc, br := gray[(y+1)*w+x-1], gray[(y+1)*w+x], gray[(y+1)*w+x+1]

			gx := -tl + tr - 2*ml + 2*mr - bl + br
			gy := -tl - 2*tc - tr + bl + 2*bc + br
			mag[y*w+x] = math.Sqrt(gx*gx + gy*gy)
		}
	}
	return mag
}

// EdgeRegion locates the densest band of strong edges in both axes and returns
// it when it has a face-like aspect ratio.
func EdgeRegion(f *Frame, p EdgeParams) (Region, bool) {
	w, h := f.Width, f.Height
	if w < 3 || h < 3 {
		return Region{}, false
	}
	mag := SobelMagnitude(f)

	cols := make([]int, w)
	rows := make([]int, h)
	total := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mag[y*w+x] > p.MinMagnitude {
				cols[x]++
				rows[y]++
				total++
			}
		}
	}
	if total < p.MinPixels {
		return Region{}, false
	}

	x0, x1, okX := band(cols, p.BandFraction)
	y0, y1, okY := band(rows, p.BandFraction)
	if !okX || !okY || x1 <= x0 || y1 <= y0 {
		return Region{}, false
	}
	box := Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
	if !aspectOK(box, p.MinAspect, p.MaxAspect) {
		return Region{}, false
	}
	return box, true
}

// band returns the first and last index whose count reaches fraction of the peak.
func band(counts []int, fraction float64) (lo, hi int, ok bool) {
	peak := 0
	for _, c := range counts {
		peak = max(peak, c)
	}
	if peak == 0 {
		return 0, 0, false
	}
	limit := float64(peak) * fraction
	lo, hi = -1, -1
	for i, c := range counts {
		if float64(c) >= limit {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	return lo, hi, lo >= 0
}
