// Package nsi fetches building points from the USACE National Structure Inventory
// and merges per-county results into one WGS84 collection.
package nsi

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/incore-data/internal/hazus"
)

// SRID is the spatial reference of every merged geometry (WGS84).
const SRID = 4326

// Structure is one NSI building point.
type Structure struct {
	FdID       string         `json:"fd_id"`
	OccType    string         `json:"occtype"`
	YearBuilt  int            `json:"med_yr_blt"`
	Stories    int            `json:"num_story"`
	BldgType   string         `json:"bldgtype"`
	FoundType  string         `json:"found_type"`
	ValStruct  float64        `json:"val_struct"`
	ValCont    float64        `json:"val_cont"`
	SqFt       float64        `json:"sqft"`
	CBFIPS     string         `json:"cbfips"`
	SourceFIPS string         `json:"-"` // county the structure was fetched for
	Point      *geom.Point    `json:"-"`
	Properties map[string]any `json:"-"`
}

// Lon returns the point's longitude, or 0 without a geometry.
func (s Structure) Lon() float64 {
	if s.Point == nil {
		return 0
	}
	return s.Point.X()
}

// Lat returns the point's latitude, or 0 without a geometry.
func (s Structure) Lat() float64 {
	if s.Point == nil {
		return 0
	}
	return s.Point.Y()
}

// CountyFIPS returns the 5-digit county code taken from the census block FIPS.
func (s Structure) CountyFIPS() string {
	if len(s.CBFIPS) < 5 {
		return ""
	}
	return s.CBFIPS[:5]
}

// ClassifierInput converts the structure into a classifier record.
func (s Structure) ClassifierInput() hazus.Input {
	return hazus.Input{
		ID:            s.FdID,
		OccupancyType: s.OccType,
		YearBuilt:     s.YearBuilt,
		Stories:       s.Stories,
	}
}

type rawFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

// Decode parses an NSI GeoJSON FeatureCollection.
func Decode(r io.Reader) ([]Structure, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var fc rawCollection
	if err := dec.Decode(&fc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "nsi: decode feature collection")
	}
	if fc.Type != "" && fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("nsi: expected FeatureCollection, got %q", fc.Type)
	}

	out := make([]Structure, 0, len(fc.Features))
	for i, f := range fc.Features {
		s, err := structureFromFeature(f)
		if err != nil {
			return nil, eris.Wrapf(err, "nsi: feature %d", i)
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadGeoJSON reads NSI structures from a local GeoJSON file.
func LoadGeoJSON(path string) ([]Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "nsi: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return Decode(f)
}

func structureFromFeature(f rawFeature) (Structure, error) {
	p := f.Properties
	s := Structure{
		FdID:       propString(p, "fd_id"),
		OccType:    propString(p, "occtype"),
		YearBuilt:  propInt(p, "med_yr_blt"),
		Stories:    propInt(p, "num_story"),
		BldgType:   propString(p, "bldgtype"),
		FoundType:  propString(p, "found_type"),
		ValStruct:  propFloat(p, "val_struct"),
		ValCont:    propFloat(p, "val_cont"),
		SqFt:       propFloat(p, "sqft"),
		CBFIPS:     propString(p, "cbfips"),
		Properties: p,
	}

	pt, err := pointFromGeometry(f.Geometry)
	if err != nil {
		return Structure{}, err
	}
	if pt == nil {
		if _, ok := p["x"]; ok {
			pt = geom.NewPointFlat(geom.XY, []float64{propFloat(p, "x"), propFloat(p, "y")})
		}
	}
	if pt != nil {
		pt.SetSRID(SRID)
	}
	s.Point = pt
	return s, nil
}

func pointFromGeometry(raw json.RawMessage) (*geom.Point, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "decode geometry")
	}
	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(geom.XY, t.FlatCoords()[:2]), nil
	case *geom.MultiPoint:
		if t.NumPoints() == 0 {
			return nil, nil
		}
		return geom.NewPointFlat(geom.XY, t.Point(0).FlatCoords()[:2]), nil
	default:
		return nil, eris.Errorf("unsupported geometry %T", g)
	}
}

func propString(p map[string]any, key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func propFloat(p map[string]any, key string) float64 {
	switch v := p[key].(type) {
	case json.Number:
		f, _ := v.Float64()
		return f
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	default:
		return 0
	}
}

func propInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		f, _ := v.Float64()
		return int(f)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	default:
		return 0
	}
}
