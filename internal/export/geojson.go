package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Feature is a geometry with properties.
type Feature struct {
	ID         string
	Geometry   geom.T
	Properties map[string]any
}

// FeatureCollection converts features into a go-geom GeoJSON collection.
func FeatureCollection(features []Feature) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(features))}
	for _, f := range features {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.ID,
			Geometry:   f.Geometry,
			Properties: f.Properties,
		})
	}
	return fc
}

// WriteGeoJSON writes features as a GeoJSON FeatureCollection.
func WriteGeoJSON(path string, features []Feature) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if err := json.NewEncoder(f).Encode(FeatureCollection(features)); err != nil {
		return eris.Wrap(err, "export: encode GeoJSON")
	}
	return nil
}
