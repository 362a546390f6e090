package export

import (
	"math"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/geo"
)

// maxFieldName is the dBASE limit on attribute names.
const maxFieldName = 10

// ColumnKind is the dBASE type of an attribute column.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInt
	KindFloat
)

// Column describes one attribute column. Decimals applies to KindFloat.
type Column struct {
	Name     string
	Kind     ColumnKind
	Decimals int
}

// Record is one geometry with values in column order. Values may be string,
// int, float64 or bool.
type Record struct {
	Geometry geom.T
	Values   []any
}

// WritePointShapefile writes point records to path (.shp with .shx and .dbf siblings).
func WritePointShapefile(path string, cols []Column, recs []Record) error {
	return writeShapefile(path, shp.POINT, cols, recs)
}

// WritePolygonShapefile writes polygon or multipolygon records.
func WritePolygonShapefile(path string, cols []Column, recs []Record) error {
	return writeShapefile(path, shp.POLYGON, cols, recs)
}

func writeShapefile(path string, kind shp.ShapeType, cols []Column, recs []Record) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	shapes := make([]shp.Shape, 0, len(recs))
	rows := make([][]string, 0, len(recs))
	var skipped int
	for i, r := range recs {
		if len(r.Values) != len(cols) {
			return eris.Errorf("export: record %d has %d values, expected %d", i, len(r.Values), len(cols))
		}
		s := geo.ToShape(r.Geometry)
		if s == nil || !shapeMatches(s, kind) {
			skipped++
			continue
		}
		row := make([]string, len(cols))
		for j, v := range r.Values {
			row[j] = formatValue(v, cols[j])
		}
		shapes = append(shapes, s)
		rows = append(rows, row)
	}
	if skipped > 0 {
		zap.L().Warn("export: records without usable geometry left out of shapefile",
			zap.String("path", path), zap.Int("skipped", skipped))
	}

	fields, err := dbfFields(cols, rows)
	if err != nil {
		return err
	}

	w, err := shp.Create(path, kind)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields(fields); err != nil {
		return eris.Wrap(err, "export: set shapefile fields")
	}
	for i, s := range shapes {
		n := int(w.Write(s))
		for j, v := range rows[i] {
			if err := w.WriteAttribute(n, j, v); err != nil {
				return eris.Wrapf(err, "export: write attribute %s of record %d", cols[j].Name, i)
			}
		}
	}
	return nil
}

func shapeMatches(s shp.Shape, kind shp.ShapeType) bool {
	switch s.(type) {
	case *shp.Point:
		return kind == shp.POINT
	case *shp.Polygon:
		return kind == shp.POLYGON
	default:
		return false
	}
}

// FieldName truncates a column name to the dBASE limit.
func FieldName(name string) string {
	if len(name) > maxFieldName {
		return name[:maxFieldName]
	}
	return name
}

func dbfFields(cols []Column, rows [][]string) ([]shp.Field, error) {
	seen := make(map[string]bool, len(cols))
	fields := make([]shp.Field, len(cols))
	for j, c := range cols {
		name := FieldName(c.Name)
		key := strings.ToUpper(name)
		if seen[key] {
			return nil, eris.Errorf("export: field name %q collides after truncation", name)
		}
		seen[key] = true

		width := 1
		for _, r := range rows {
			width = max(width, len(r[j]))
		}
		width = min(width, 254)

		switch c.Kind {
		case KindInt:
			fields[j] = shp.NumberField(name, uint8(width))
		case KindFloat:
			fields[j] = shp.FloatField(name, uint8(width), uint8(c.Decimals))
		default:
			fields[j] = shp.StringField(name, uint8(width))
		}
	}
	return fields, nil
}

func formatValue(v any, c Column) string {
	var s string
	switch t := v.(type) {
	case nil:
		s = ""
	case string:
		s = t
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			s = ""
		} else {
			s = strconv.FormatFloat(t, 'f', c.Decimals, 64)
		}
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = ""
	}
	if len(s) > 254 {
		s = s[:254]
	}
	return s
}
