package vision

import "math"

const (
	// NeutralOpenness is returned for regions with no readable pixels.
	NeutralOpenness = 0.5

	darkPixelLevel = 80

	brightnessWeight = 0.4
	varianceWeight   = 0.4
	darknessWeight   = 0.2
)

// Openness estimates how open the eye inside region is, from 0 (closed) to 1
// (open). Three statistics are blended: mean brightness, a row profile weighted
// towards the vertical center, and the share of pixels that are not dark.
func Openness(f *Frame, region Region) float64 {
	if region.Empty() {
		return NeutralOpenness
	}
	clipped := region.Clip(f.Width, f.Height)
	if clipped.Empty() {
		return NeutralOpenness
	}

	centerY := float64(region.Y) + float64(region.Height)/2
	halfHeight := float64(region.Height) / 2

	var total, profile float64
	var dark, count int
	for y := clipped.Y; y < clipped.Y+clipped.Height; y++ {
		var rowSum float64
		rowCount := 0
		for x := clipped.X; x < clipped.X+clipped.Width; x++ {
			r, g, b := f.rgb(x, y)
			v := (r + g + b) / 3
			rowSum += v
			rowCount++
			if v < darkPixelLevel {
				dark++
			}
		}
		total += rowSum
		count += rowCount

		weight := 1 - math.Abs(float64(y)-centerY)/halfHeight
		profile += rowSum / float64(rowCount) * weight
	}

	brightness := total / float64(count) / 255
	variance := profile / float64(count) / 100
	darkness := 1 - float64(dark)/float64(count)

	score := brightnessWeight*brightness + varianceWeight*variance + darknessWeight*darkness
	return clamp(score, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
