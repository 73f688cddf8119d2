package vision

import "math"

// Facial proportions used to place the eye boxes inside a face box.
const (
	eyeBandTop    = 0.35
	eyeBandHeight = 0.15
	eyeWidth      = 0.15
	leftEyeLeft   = 0.25
	rightEyeLeft  = 0.60
)

// EyeRegions derives the left and right eye boxes from a face box. The boxes may
// extend past the frame; callers clip before reading pixels.
func EyeRegions(face Region) (left, right Region) {
	fw, fh := float64(face.Width), float64(face.Height)
	y := face.Y + floor(fh*eyeBandTop)
	h := floor(fh * eyeBandHeight)
	w := floor(fw * eyeWidth)

	left = Region{X: face.X + floor(fw*leftEyeLeft), Y: y, Width: w, Height: h}
	right = Region{X: face.X + floor(fw*rightEyeLeft), Y: y, Width: w, Height: h}
	return left, right
}

func floor(v float64) int {
	return int(math.Floor(v))
}
