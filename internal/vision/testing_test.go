package vision

import "time"

var (
	skinTone = [3]byte{224, 172, 140}
	gray     = [3]byte{200, 200, 200}
	white    = [3]byte{255, 255, 255}
	black    = [3]byte{0, 0, 0}
)

func newFrame(w, h int, fill [3]byte) *Frame {
	f := &Frame{
		Width:     w,
		Height:    h,
		Pix:       make([]byte, w*h*BytesPerPixel),
		Timestamp: time.UnixMilli(1_700_000_000_000),
	}
	paint(f, Region{Width: w, Height: h}, fill)
	return f
}

func paint(f *Frame, r Region, c [3]byte) {
	r = r.Clip(f.Width, f.Height)
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			i := (y*f.Width + x) * BytesPerPixel
			f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3] = c[0], c[1], c[2], 255
		}
	}
}
