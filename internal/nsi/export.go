package nsi

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/incore-data/internal/export"
)

// Features returns the merged structures as GeoJSON features carrying their
// original NSI properties.
func Features(structures []Structure) []export.Feature {
	out := make([]export.Feature, len(structures))
	for i, s := range structures {
		var g geom.T
		if s.Point != nil {
			g = s.Point
		}
		out[i] = export.Feature{ID: s.FdID, Geometry: g, Properties: s.Properties}
	}
	return out
}
