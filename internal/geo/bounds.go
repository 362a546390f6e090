package geo

import "github.com/twpayne/go-geom"

// Extent returns the bounding box of all non-nil geometries, or nil when there are none.
func Extent(gs ...geom.T) *geom.Bounds {
	var b *geom.Bounds
	for _, g := range gs {
		if g == nil || len(g.FlatCoords()) == 0 {
			continue
		}
		if b == nil {
			b = geom.NewBounds(geom.XY)
		}
		b.Extend(g)
	}
	return b
}

// MeanMinCorner averages the lower-left corners of the given boxes. It is the
// initial map center used for choropleths. ok is false when no box is given.
func MeanMinCorner(boxes []*geom.Bounds) (x, y float64, ok bool) {
	var n int
	for _, b := range boxes {
		if b == nil || b.IsEmpty() {
			continue
		}
		x += b.Min(0)
		y += b.Min(1)
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	return x / float64(n), y / float64(n), true
}
