package geo

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// square returns a closed ring, clockwise when cw is true.
func square(x, y, size float64, cw bool) []shp.Point {
	pts := []shp.Point{{X: x, Y: y}, {X: x + size, Y: y}, {X: x + size, Y: y + size}, {X: x, Y: y + size}, {X: x, Y: y}}
	if cw {
		reverse(pts)
	}
	return pts
}

func polygonOf(rings ...[]shp.Point) *shp.Polygon {
	p := &shp.Polygon{NumParts: int32(len(rings))}
	for _, r := range rings {
		p.Parts = append(p.Parts, int32(len(p.Points)))
		p.Points = append(p.Points, r...)
	}
	p.NumPoints = int32(len(p.Points))
	return p
}

func TestFromShape_Point(t *testing.T) {
	g := FromShape(&shp.Point{X: -80.19, Y: 25.77})
	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, SRID, pt.SRID())
	assert.InDelta(t, -80.19, pt.X(), 1e-9)
}

func TestFromShape_PolygonWithHole(t *testing.T) {
	shell := square(0, 0, 10, true)
	hole := square(2, 2, 2, false)
	second := square(20, 20, 1, true)

	mp := MultiPolygonFromShape(polygonOf(shell, hole, second))
	require.NotNil(t, mp)
	assert.Equal(t, SRID, mp.SRID())
	require.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())
	assert.Equal(t, 1, mp.Polygon(1).NumLinearRings())
}

func TestFromShape_PolyLine(t *testing.T) {
	pl := &shp.PolyLine{
		NumParts: 2,
		Parts:    []int32{0, 3},
		Points: []shp.Point{
			{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2},
			{X: 5, Y: 5}, {X: 6, Y: 6},
		},
	}
	mls, ok := FromShape(pl).(*geom.MultiLineString)
	require.True(t, ok)
	assert.Equal(t, 2, mls.NumLineStrings())
}

func TestFromShape_Unsupported(t *testing.T) {
	assert.Nil(t, FromShape(nil))
	assert.Nil(t, FromShape(&shp.Null{}))
	assert.Nil(t, FromShape(&shp.Polygon{}))
	assert.Nil(t, MultiPolygonFromShape(&shp.Point{}))
}

func TestToShape_RoundTripOrientation(t *testing.T) {
	// Counter-clockwise shell and clockwise hole: ToShape must flip both.
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
		2, 2, 2, 4, 4, 4, 4, 2, 2, 2,
	}, []int{10, 20})

	s, ok := ToShape(poly).(*shp.Polygon)
	require.True(t, ok)
	assert.Equal(t, int32(2), s.NumParts)
	assert.Equal(t, []int32{0, 5}, s.Parts)
	assert.Less(t, signedArea(s.Points[:5]), 0.0)
	assert.Greater(t, signedArea(s.Points[5:]), 0.0)
	assert.Equal(t, shp.Box{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, s.Box)

	back := MultiPolygonFromShape(s)
	require.NotNil(t, back)
	assert.Equal(t, 1, back.NumPolygons())
	assert.Equal(t, 2, back.Polygon(0).NumLinearRings())
}

func TestToShape_Point(t *testing.T) {
	s, ok := ToShape(geom.NewPointFlat(geom.XY, []float64{1.5, 2.5})).(*shp.Point)
	require.True(t, ok)
	assert.Equal(t, shp.Point{X: 1.5, Y: 2.5}, *s)

	assert.Nil(t, ToShape(geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})))
}

func TestEWKB_RoundTrip(t *testing.T) {
	pt := geom.NewPointFlat(geom.XY, []float64{-88.24, 40.11})
	data, err := EncodeEWKB(pt)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	g, err := DecodeEWKB(data)
	require.NoError(t, err)
	back, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, SRID, back.SRID())
	assert.InDelta(t, -88.24, back.X(), 1e-9)

	data, err = EncodeEWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	g, err = DecodeEWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, g)

	_, err = DecodeEWKB([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestExtentAndMeanMinCorner(t *testing.T) {
	a := geom.NewPointFlat(geom.XY, []float64{1, 2})
	b := geom.NewPointFlat(geom.XY, []float64{5, -3})

	ext := Extent(a, nil, b)
	require.NotNil(t, ext)
	assert.InDelta(t, 1.0, ext.Min(0), 1e-9)
	assert.InDelta(t, -3.0, ext.Min(1), 1e-9)
	assert.InDelta(t, 5.0, ext.Max(0), 1e-9)
	assert.InDelta(t, 2.0, ext.Max(1), 1e-9)

	assert.Nil(t, Extent())

	x, y, ok := MeanMinCorner([]*geom.Bounds{
		geom.NewBounds(geom.XY).Set(0, 0, 2, 2),
		geom.NewBounds(geom.XY).Set(4, 6, 8, 8),
		nil,
	})
	require.True(t, ok)
	assert.InDelta(t, 2.0, x, 1e-9)
	assert.InDelta(t, 3.0, y, 1e-9)

	_, _, ok = MeanMinCorner(nil)
	assert.False(t, ok)
}
