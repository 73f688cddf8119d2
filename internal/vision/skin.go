package vision

// SkinParams are the empirical YCbCr bands and shape gates of the skin classifier.
type SkinParams struct {
	MinLuma   float64
	CbMin     float64
	CbMax     float64
	CrMin     float64
	CrMax     float64
	MinPixels int
	MinAspect float64
	MaxAspect float64
}

func DefaultSkinParams() SkinParams {
	return SkinParams{
		MinLuma:   80,
		CbMin:     85,
		CbMax:     135,
		CrMin:     135,
		CrMax:     180,
		MinPixels: 2000,
		MinAspect: 0.8,
		MaxAspect: 1.5,
	}
}

// IsSkin reports whether an RGB color falls inside the skin bands.
func (p SkinParams) IsSkin(r, g, b float64) bool {
	y := 0.299*r + 0.587*g + 0.114*b
	if y <= p.MinLuma {
		return false
	}
	cb := -0.169*r - 0.331*g + 0.5*b + 128
	cr := 0.5*r - 0.419*g - 0.081*b + 128
	return cb >= p.CbMin && cb <= p.CbMax && cr >= p.CrMin && cr <= p.CrMax
}

// SkinRegion scans every pixel once and returns the bounding box of skin-like
// pixels. It reports false when too few pixels match or the box is not roughly
// face shaped (height/width outside [MinAspect, MaxAspect]).
func SkinRegion(f *Frame, p SkinParams) (Region, bool) {
	minX, minY := f.Width, f.Height
	maxX, maxY := 0, 0
	count := 0

	for y := 0; y < f.Height; y++ {
		row := y * f.Width * BytesPerPixel
		for x := 0; x < f.Width; x++ {
			i := row + x*BytesPerPixel
			if !p.IsSkin(float64(f.Pix[i]), float64(f.Pix[i+1]), float64(f.Pix[i+2])) {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
			count++
		}
	}

	if count < p.MinPixels || maxX <= minX || maxY <= minY {
		return Region{}, false
	}
	box := Region{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
	if !aspectOK(box, p.MinAspect, p.MaxAspect) {
		return Region{}, false
	}
	return box, true
}

func aspectOK(r Region, lo, hi float64) bool {
	aspect := float64(r.Height) / float64(r.Width)
	return aspect >= lo && aspect <= hi
}
