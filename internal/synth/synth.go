// Package synth renders synthetic RGBA frames with a skin-toned face patch.
// The frames drive the tests and the load client without a camera.
package synth

import (
	"time"

	"eyemonitor/go-backend/internal/vision"
)

var (
	SkinTone   = [3]byte{224, 172, 140}
	Background = [3]byte{200, 200, 200}
	Pupil      = [3]byte{0, 0, 0}
)

// DefaultFace fits a 320x240 frame.
var DefaultFace = vision.Region{X: 100, Y: 60, Width: 100, Height: 120}

// Frame renders a w x h frame. When face is non-empty a skin patch is painted
// there; closed eyes are painted dark over the regions the eye mapper derives
// for that face.
func Frame(w, h int, face vision.Region, eyesOpen bool, ts time.Time) *vision.Frame {
	f := &vision.Frame{
		Width:     w,
		Height:    h,
		Pix:       make([]byte, w*h*vision.BytesPerPixel),
		Timestamp: ts,
	}
	Paint(f, vision.Region{Width: w, Height: h}, Background)
	if face.Empty() {
		return f
	}
	Paint(f, face, SkinTone)
	if !eyesOpen {
		// The classifier box spans first to last skin pixel.
		detected := vision.Region{X: face.X, Y: face.Y, Width: face.Width - 1, Height: face.Height - 1}
		left, right := vision.EyeRegions(detected)
		Paint(f, grow(left), Pupil)
		Paint(f, grow(right), Pupil)
	}
	return f
}

// Blink returns the frames of one blink at interval spacing: open, closed for
// closedFrames, open again.
func Blink(start time.Time, interval time.Duration, closedFrames int) []*vision.Frame {
	var out []*vision.Frame
	at := start
	next := func(open bool) {
		out = append(out, Frame(320, 240, DefaultFace, open, at))
		at = at.Add(interval)
	}
	next(true)
	for i := 0; i < closedFrames; i++ {
		next(false)
	}
	next(true)
	return out
}

func Paint(f *vision.Frame, r vision.Region, c [3]byte) {
	r = r.Clip(f.Width, f.Height)
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			i := (y*f.Width + x) * vision.BytesPerPixel
			f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3] = c[0], c[1], c[2], 255
		}
	}
}

func grow(r vision.Region) vision.Region {
	return vision.Region{X: r.X - 1, Y: r.Y - 1, Width: r.Width + 2, Height: r.Height + 2}
}
