// Package geo converts geometries between go-shp shapes, go-geom values and EWKB,
// and computes extents for map rendering.
package geo

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// SRID is WGS84, stamped on every geometry this package produces.
const SRID = 4326

// FromShape converts a shapefile shape to a go-geom geometry with SRID 4326.
// Polygons become MultiPolygons and polylines MultiLineStrings.
// Returns nil for nil or unsupported shapes.
func FromShape(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		if s == nil {
			return nil
		}
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(SRID)
	case *shp.PolyLine:
		if s == nil {
			return nil
		}
		return fromPolyLine(s)
	case *shp.Polygon:
		if s == nil {
			return nil
		}
		return fromPolygon(s)
	default:
		return nil
	}
}

// MultiPolygonFromShape is FromShape restricted to polygons.
func MultiPolygonFromShape(shape shp.Shape) *geom.MultiPolygon {
	mp, _ := FromShape(shape).(*geom.MultiPolygon)
	return mp
}

func fromPolyLine(pl *shp.PolyLine) geom.T {
	mls := geom.NewMultiLineString(geom.XY).SetSRID(SRID)
	for i, part := range partPoints(pl.NumParts, pl.Parts, pl.Points) {
		if len(part) < 2 {
			continue
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat(part))); err != nil {
			zap.L().Debug("geo: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// fromPolygon groups rings into polygons: shapefile outer rings are clockwise and
// holes counter-clockwise, each hole following its shell.
func fromPolygon(p *shp.Polygon) geom.T {
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(SRID)

	var cur *geom.Polygon
	flush := func() {
		if cur == nil {
			return
		}
		if err := mp.Push(cur); err != nil {
			zap.L().Debug("geo: skipping malformed polygon", zap.Error(err))
		}
		cur = nil
	}

	for i, part := range partPoints(p.NumParts, p.Parts, p.Points) {
		if len(part) < 3 {
			continue
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat(part))
		if signedArea(part) <= 0 || cur == nil {
			flush()
			cur = geom.NewPolygon(geom.XY)
		}
		if err := cur.Push(ring); err != nil {
			zap.L().Debug("geo: skipping malformed ring", zap.Int("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// ToShape converts a go-geom geometry to a shapefile shape. Supported types are
// Point, Polygon and MultiPolygon; others return nil.
func ToShape(g geom.T) shp.Shape {
	switch t := g.(type) {
	case *geom.Point:
		if t == nil || len(t.FlatCoords()) < 2 {
			return nil
		}
		return &shp.Point{X: t.X(), Y: t.Y()}
	case *geom.Polygon:
		if t == nil {
			return nil
		}
		mp := geom.NewMultiPolygon(geom.XY)
		if err := mp.Push(t); err != nil {
			return nil
		}
		return polygonShape(mp)
	case *geom.MultiPolygon:
		if t == nil {
			return nil
		}
		return polygonShape(t)
	default:
		return nil
	}
}

func polygonShape(mp *geom.MultiPolygon) shp.Shape {
	var parts [][]shp.Point
	for i := range mp.NumPolygons() {
		poly := mp.Polygon(i)
		for j := range poly.NumLinearRings() {
			pts := ringPoints(poly.LinearRing(j))
			if len(pts) < 3 {
				continue
			}
			// Shells clockwise, holes counter-clockwise.
			clockwise := signedArea(pts) < 0
			if (j == 0) != clockwise {
				reverse(pts)
			}
			parts = append(parts, pts)
		}
	}
	if len(parts) == 0 {
		return nil
	}

	out := &shp.Polygon{NumParts: int32(len(parts))}
	for _, part := range parts {
		out.Parts = append(out.Parts, int32(len(out.Points)))
		out.Points = append(out.Points, part...)
	}
	out.NumPoints = int32(len(out.Points))
	out.Box = boxOf(out.Points)
	return out
}

func ringPoints(r *geom.LinearRing) []shp.Point {
	coords := r.FlatCoords()
	stride := r.Stride()
	pts := make([]shp.Point, 0, len(coords)/stride)
	for i := 0; i+1 < len(coords); i += stride {
		pts = append(pts, shp.Point{X: coords[i], Y: coords[i+1]})
	}
	return pts
}

func partPoints(numParts int32, parts []int32, points []shp.Point) [][]shp.Point {
	out := make([][]shp.Point, 0, numParts)
	for i := int32(0); i < numParts && int(i) < len(parts); i++ {
		start := parts[i]
		end := int32(len(points))
		if i+1 < numParts && int(i+1) < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		out = append(out, points[start:end])
	}
	return out
}

// signedArea is positive for counter-clockwise rings.
func signedArea(pts []shp.Point) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return a / 2
}

func reverse(pts []shp.Point) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

func flat(pts []shp.Point) []float64 {
	out := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		out = append(out, p.X, p.Y)
	}
	return out
}

func boxOf(pts []shp.Point) shp.Box {
	if len(pts) == 0 {
		return shp.Box{}
	}
	b := shp.Box{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = min(b.MinX, p.X)
		b.MinY = min(b.MinY, p.Y)
		b.MaxX = max(b.MaxX, p.X)
		b.MaxY = max(b.MaxY, p.Y)
	}
	return b
}
