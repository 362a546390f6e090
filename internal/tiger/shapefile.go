// Package tiger downloads Census TIGER/Line block-group shapefiles and reads them
// into attribute rows with WGS84 multipolygon geometry.
package tiger

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/geo"
)

// Feature is one shapefile record.
type Feature struct {
	Attrs    map[string]string
	Geometry *geom.MultiPolygon
	Bounds   *geom.Bounds
}

// Attr returns an attribute by case-insensitive field name.
func (f Feature) Attr(name string) string {
	if v, ok := f.Attrs[strings.ToUpper(name)]; ok {
		return v
	}
	return ""
}

// Layer is the content of one shapefile.
type Layer struct {
	Fields   []string
	Features []Feature
}

// Index returns the features keyed by the given attribute. Later duplicates are ignored.
func (l *Layer) Index(field string) map[string]Feature {
	out := make(map[string]Feature, len(l.Features))
	for _, f := range l.Features {
		key := f.Attr(field)
		if key == "" {
			continue
		}
		if _, dup := out[key]; !dup {
			out[key] = f
		}
	}
	return out
}

// ParseShapefile reads a polygon shapefile. Field names are upper-cased and values trimmed.
// Records with a missing or non-polygon shape keep their attributes with a nil geometry.
// Geometries are stamped with SRID 4326.
func ParseShapefile(shpPath string) (*Layer, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	layer := &Layer{Fields: make([]string, len(fields))}
	for i, f := range fields {
		layer.Fields[i] = strings.ToUpper(strings.TrimRight(f.String(), "\x00"))
	}

	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		attrs := make(map[string]string, len(fields))
		for i, name := range layer.Fields {
			val := strings.TrimRight(reader.Attribute(i), "\x00")
			attrs[name] = strings.TrimSpace(val)
		}

		feat := Feature{Attrs: attrs}
		if mp := geo.MultiPolygonFromShape(shape); mp != nil {
			feat.Geometry = mp
			feat.Bounds = mp.Bounds()
		} else {
			skipped++
		}
		layer.Features = append(layer.Features, feat)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "tiger: read shapefile %s", shpPath)
	}

	if skipped > 0 {
		zap.L().Debug("tiger: records without polygon geometry",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return layer, nil
}
