package vision

import (
	"errors"
	"fmt"
	"time"
)

// BytesPerPixel is the RGBA sample layout every frame uses.
const BytesPerPixel = 4

var ErrInvalidFrame = errors.New("invalid frame")

// Frame is a caller-owned RGBA pixel buffer. The pipeline reads it during a single
// analysis call and never keeps a reference to Pix afterwards.
type Frame struct {
	Width     int
	Height    int
	Pix       []byte
	Timestamp time.Time
}

func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if want := f.Width * f.Height * BytesPerPixel; len(f.Pix) != want {
		return fmt.Errorf("%w: buffer has %d bytes, want %d for %dx%d RGBA",
			ErrInvalidFrame, len(f.Pix), want, f.Width, f.Height)
	}
	if f.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing capture timestamp", ErrInvalidFrame)
	}
	return nil
}

// rgb returns the color channels of the pixel at (x, y). Callers bounds-check.
func (f *Frame) rgb(x, y int) (r, g, b float64) {
	i := (y*f.Width + x) * BytesPerPixel
	return float64(f.Pix[i]), float64(f.Pix[i+1]), float64(f.Pix[i+2])
}

// luma is the broadcast-video (BT.601) brightness of the pixel at (x, y).
func (f *Frame) luma(x, y int) float64 {
	r, g, b := f.rgb(x, y)
	return 0.299*r + 0.587*g + 0.114*b
}
