package vision

// Detector reports a candidate face region for a frame.
type Detector func(f *Frame) (Region, bool)

// DefaultMergeOverlap is the overlap ratio above which two candidates are merged.
const DefaultMergeOverlap = 0.3

// Locator combines two independent face signals. Skin is the primary signal and
// is sufficient on its own; Edge may be nil.
type Locator struct {
	Skin         Detector
	Edge         Detector
	MergeOverlap float64
}

// NewLocator builds the default locator. The edge signal is only attached when
// withEdges is set.
func NewLocator(skin SkinParams, edges EdgeParams, withEdges bool) Locator {
	l := Locator{
		Skin:         func(f *Frame) (Region, bool) { return SkinRegion(f, skin) },
		MergeOverlap: DefaultMergeOverlap,
	}
	if withEdges {
		l.Edge = func(f *Frame) (Region, bool) { return EdgeRegion(f, edges) }
	}
	return l
}

func (l Locator) Locate(f *Frame) (Region, bool) {
	skin, okSkin := run(l.Skin, f)
	edge, okEdge := run(l.Edge, f)

	switch {
	case okSkin && okEdge:
		if OverlapRatio(skin, edge) > l.MergeOverlap {
			return skin.Union(edge), true
		}
		if skin.Area() > edge.Area() {
			return skin, true
		}
		return edge, true
	case okSkin:
		return skin, true
	case okEdge:
		return edge, true
	default:
		return Region{}, false
	}
}

func run(d Detector, f *Frame) (Region, bool) {
	if d == nil {
		return Region{}, false
	}
	return d(f)
}
