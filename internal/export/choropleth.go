package export

import (
	"bytes"
	"encoding/json"
	"html/template"
	"io"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/incore-data/internal/geo"
)

// YlGnBu is the six-class ColorBrewer Yellow-Green-Blue ramp.
var YlGnBu = []string{"#ffffcc", "#c7e9b4", "#7fcdbb", "#41b6c4", "#2c7fb8", "#253494"}

// ChoroLayer is one toggleable map layer colored by a value column.
type ChoroLayer struct {
	Name   string             // legend caption, e.g. "Percent Hispanic"
	Values map[string]float64 // feature ID -> value, see ChoroData
}

// ChoroFeature is one area on the map.
type ChoroFeature struct {
	ID       string
	Geometry geom.T
	Bounds   *geom.Bounds
}

// Map describes a choropleth page.
type Map struct {
	Title    string
	Zoom     int
	Features []ChoroFeature
	Layers   []ChoroLayer
}

// ChoroData maps each id to its value with NaN replaced by 0.
func ChoroData(ids []string, values []float64) map[string]float64 {
	out := make(map[string]float64, len(ids))
	for i, id := range ids {
		v := 0.0
		if i < len(values) && !math.IsNaN(values[i]) {
			v = values[i]
		}
		out[id] = v
	}
	return out
}

// Center returns the map center as (lat, lon): the mean of the features'
// minimum y and minimum x.
func (m Map) Center() (lat, lon float64) {
	boxes := make([]*geom.Bounds, 0, len(m.Features))
	for _, f := range m.Features {
		b := f.Bounds
		if b == nil && f.Geometry != nil {
			b = geo.Extent(f.Geometry)
		}
		boxes = append(boxes, b)
	}
	x, y, _ := geo.MeanMinCorner(boxes)
	return y, x
}

type layerView struct {
	Name   string             `json:"name"`
	Breaks []float64          `json:"breaks"`
	Values map[string]float64 `json:"values"`
}

type pageView struct {
	Title  string
	Lat    float64
	Lon    float64
	Zoom   int
	Colors template.JS
	Data   template.JS
	Layers template.JS
}

// Breaks splits [min, max] of the values into len(YlGnBu) equal-width classes and
// returns the class upper bounds.
func Breaks(values map[string]float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	n := len(YlGnBu)
	out := make([]float64, n)
	step := (hi - lo) / float64(n)
	for i := range out {
		out[i] = lo + step*float64(i+1)
	}
	out[n-1] = hi
	return out
}

// RenderChoropleth writes the Leaflet page for m.
func RenderChoropleth(w io.Writer, m Map) error {
	if len(m.Layers) == 0 {
		return eris.New("export: choropleth needs at least one layer")
	}
	zoom := m.Zoom
	if zoom == 0 {
		zoom = 10
	}

	feats := make([]Feature, 0, len(m.Features))
	for _, f := range m.Features {
		if f.Geometry == nil {
			continue
		}
		feats = append(feats, Feature{ID: f.ID, Geometry: f.Geometry, Properties: map[string]any{"id": f.ID}})
	}
	data, err := json.Marshal(FeatureCollection(feats))
	if err != nil {
		return eris.Wrap(err, "export: encode choropleth features")
	}

	layers := make([]layerView, len(m.Layers))
	for i, l := range m.Layers {
		layers[i] = layerView{Name: l.Name, Breaks: Breaks(l.Values), Values: l.Values}
	}
	layerJSON, err := json.Marshal(layers)
	if err != nil {
		return eris.Wrap(err, "export: encode choropleth layers")
	}
	colors, err := json.Marshal(YlGnBu)
	if err != nil {
		return eris.Wrap(err, "export: encode colors")
	}

	lat, lon := m.Center()
	view := pageView{
		Title:  m.Title,
		Lat:    lat,
		Lon:    lon,
		Zoom:   zoom,
		Colors: template.JS(colors),
		Data:   template.JS(data),
		Layers: template.JS(layerJSON),
	}
	return eris.Wrap(choroplethTmpl.Execute(w, view), "export: render choropleth")
}

// WriteChoropleth renders m to an HTML file.
func WriteChoropleth(path string, m Map) error {
	var buf bytes.Buffer
	if err := RenderChoropleth(&buf, m); err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	return eris.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "export: write %s", path)
}

var choroplethTmpl = template.Must(template.New("choropleth").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
html, body, #map { height: 100%; margin: 0; }
.legend { background: #fff; padding: 6px 8px; line-height: 18px; }
.legend i { width: 18px; height: 18px; float: left; margin-right: 6px; opacity: 0.7; }
</style>
</head>
<body>
<div id="map"></div>
<script>
var colors = {{.Colors}};
var data = {{.Data}};
var layers = {{.Layers}};

var map = L.map('map').setView([{{.Lat}}, {{.Lon}}], {{.Zoom}});
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);

function colorFor(breaks, v) {
  for (var i = 0; i < breaks.length; i++) {
    if (v <= breaks[i]) { return colors[i]; }
  }
  return colors[colors.length - 1];
}

var overlays = {};
layers.forEach(function (layer, idx) {
  var g = L.geoJSON(data, {
    style: function (f) {
      var v = layer.values[f.properties.id] || 0;
      return { fillColor: colorFor(layer.breaks, v), fillOpacity: 0.7, color: '#555', weight: 0.3 };
    },
    onEachFeature: function (f, l) {
      var v = layer.values[f.properties.id] || 0;
      l.bindTooltip(f.properties.id + ': ' + v.toFixed(2));
    }
  });
  overlays[layer.name] = g;
  if (idx === 0) { g.addTo(map); }

  var legend = L.control({ position: 'bottomright' });
  legend.onAdd = function () {
    var div = L.DomUtil.create('div', 'legend');
    div.innerHTML = '<b>' + layer.name + '</b><br>';
    layer.breaks.forEach(function (b, i) {
      div.innerHTML += '<i style="background:' + colors[i] + '"></i>&le; ' + b.toFixed(1) + '<br>';
    });
    return div;
  };
  legend.addTo(map);
});
L.control.layers(null, overlays, { collapsed: false }).addTo(map);
</script>
</body>
</html>
`))
