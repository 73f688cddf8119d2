package vision

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameValidate(t *testing.T) {
	good := newFrame(4, 4, gray)
	require.NoError(t, good.Validate())

	cases := map[string]*Frame{
		"nil":          nil,
		"zero width":   {Width: 0, Height: 4, Pix: nil, Timestamp: good.Timestamp},
		"short buffer": {Width: 4, Height: 4, Pix: make([]byte, 10), Timestamp: good.Timestamp},
		"no timestamp": {Width: 4, Height: 4, Pix: make([]byte, 64)},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			err := f.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidFrame))
		})
	}
}

func TestRegionGeometry(t *testing.T) {
	a := Region{X: 0, Y: 0, Width: 10, Height: 10}
	b := Region{X: 5, Y: 5, Width: 10, Height: 10}

	assert.Equal(t, Region{X: 5, Y: 5, Width: 5, Height: 5}, a.Intersect(b))
	assert.Equal(t, Region{X: 0, Y: 0, Width: 15, Height: 15}, a.Union(b))
	assert.InDelta(t, 0.25, OverlapRatio(a, b), 1e-9)
	assert.True(t, a.Intersect(Region{X: 20, Y: 20, Width: 1, Height: 1}).Empty())
	assert.Equal(t, Region{X: 5, Y: 5, Width: 3, Height: 3}, b.Clip(8, 8))
	assert.Equal(t, Point{X: 5, Y: 5}, a.Center())
}

func TestSkinRegion(t *testing.T) {
	p := DefaultSkinParams()

	t.Run("face sized patch", func(t *testing.T) {
		f := newFrame(200, 200, gray)
		paint(f, Region{X: 50, Y: 40, Width: 60, Height: 70}, skinTone)

		r, ok := SkinRegion(f, p)
		require.True(t, ok)
		assert.Equal(t, Region{X: 50, Y: 40, Width: 59, Height: 69}, r)
	})

	t.Run("too few pixels", func(t *testing.T) {
		f := newFrame(200, 200, gray)
		paint(f, Region{X: 50, Y: 40, Width: 30, Height: 30}, skinTone)

		_, ok := SkinRegion(f, p)
		assert.False(t, ok)
	})

	t.Run("too wide", func(t *testing.T) {
		f := newFrame(200, 200, gray)
		paint(f, Region{X: 10, Y: 40, Width: 100, Height: 40}, skinTone)

		_, ok := SkinRegion(f, p)
		assert.False(t, ok)
	})

	t.Run("no skin", func(t *testing.T) {
		_, ok := SkinRegion(newFrame(64, 64, white), p)
		assert.False(t, ok)
	})
}

func TestEdgeRegion(t *testing.T) {
	f := newFrame(240, 240, white)
	paint(f, Region{X: 60, Y: 50, Width: 100, Height: 120}, black)

	r, ok := EdgeRegion(f, DefaultEdgeParams())
	require.True(t, ok)
	assert.InDelta(t, 59, r.X, 2)
	assert.InDelta(t, 49, r.Y, 2)
	assert.InDelta(t, 101, r.Width, 3)
	assert.InDelta(t, 121, r.Height, 3)

	_, ok = EdgeRegion(newFrame(240, 240, white), DefaultEdgeParams())
	assert.False(t, ok)
}

func TestLocatorMergePolicy(t *testing.T) {
	fixed := func(r Region) Detector {
		return func(*Frame) (Region, bool) { return r, true }
	}
	miss := func(*Frame) (Region, bool) { return Region{}, false }
	f := newFrame(8, 8, gray)

	skin := Region{X: 0, Y: 0, Width: 100, Height: 100}
	near := Region{X: 10, Y: 10, Width: 50, Height: 50}
	far := Region{X: 300, Y: 300, Width: 120, Height: 120}

	tests := []struct {
		name string
		l    Locator
		want Region
		ok   bool
	}{
		{"overlapping signals merge", Locator{Skin: fixed(skin), Edge: fixed(near), MergeOverlap: 0.3}, skin.Union(near), true},
		{"disjoint picks larger", Locator{Skin: fixed(skin), Edge: fixed(far), MergeOverlap: 0.3}, far, true},
		{"skin only", Locator{Skin: fixed(skin), Edge: miss, MergeOverlap: 0.3}, skin, true},
		{"no edge detector", Locator{Skin: fixed(skin)}, skin, true},
		{"edge only", Locator{Skin: miss, Edge: fixed(far)}, far, true},
		{"neither", Locator{Skin: miss, Edge: miss}, Region{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.l.Locate(f)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEyeRegions(t *testing.T) {
	left, right := EyeRegions(Region{X: 100, Y: 100, Width: 200, Height: 200})

	assert.Equal(t, Region{X: 150, Y: 170, Width: 30, Height: 30}, left)
	assert.Equal(t, Region{X: 220, Y: 170, Width: 30, Height: 30}, right)
}

func TestOpenness(t *testing.T) {
	eye := Region{X: 5, Y: 5, Width: 10, Height: 10}

	open := newFrame(32, 32, white)
	assert.InDelta(t, 0.651, Openness(open, eye), 1e-6)

	closed := newFrame(32, 32, black)
	assert.InDelta(t, 0, Openness(closed, eye), 1e-9)

	assert.Equal(t, NeutralOpenness, Openness(open, Region{}))
	assert.Equal(t, NeutralOpenness, Openness(open, Region{X: 100, Y: 100, Width: 10, Height: 10}))

	partial := Openness(open, Region{X: 28, Y: 28, Width: 10, Height: 10})
	assert.GreaterOrEqual(t, partial, 0.0)
	assert.LessOrEqual(t, partial, 1.0)
}

func TestEstimateDistance(t *testing.T) {
	assert.Equal(t, DefaultDistanceCm, EstimateDistance(20, 640))
	assert.Equal(t, DefaultDistanceCm, EstimateDistance(5, 640))
	assert.InDelta(t, 71.68, EstimateDistance(100, 640), 1e-9)
	assert.Equal(t, MaxDistanceCm, EstimateDistance(50, 640))
	assert.Equal(t, MinDistanceCm, EstimateDistance(300, 640))

	for face := 1.0; face <= 2000; face += 7 {
		for _, frame := range []float64{1, 160, 640, 1920} {
			d := EstimateDistance(face, frame)
			assert.GreaterOrEqual(t, d, MinDistanceCm)
			assert.LessOrEqual(t, d, MaxDistanceCm)
		}
	}
}
