package vision

const (
	averageFaceWidthCm = 14.0
	focalLengthFactor  = 0.8

	// DefaultDistanceCm is reported when the face is too small to measure.
	DefaultDistanceCm = 60.0
	MinDistanceCm     = 25.0
	MaxDistanceCm     = 150.0

	minFaceWidthPx = 20.0
)

// EstimateDistance converts an apparent face width into an approximate
// face-to-camera distance in centimeters using a pinhole model, with a
// correction at very small and very large apparent sizes.
func EstimateDistance(faceWidthPx, frameWidthPx float64) float64 {
	if faceWidthPx <= minFaceWidthPx || frameWidthPx <= 0 {
		return DefaultDistanceCm
	}

	focal := frameWidthPx * focalLengthFactor
	distance := averageFaceWidthCm * focal / faceWidthPx

	switch ratio := faceWidthPx / frameWidthPx; {
	case ratio < 0.1:
		distance *= 1.2
	case ratio > 0.4:
		distance *= 0.8
	}
	return clamp(distance, MinDistanceCm, MaxDistanceCm)
}
