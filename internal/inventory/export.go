package inventory

import (
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/incore-data/internal/export"
	"github.com/sells-group/incore-data/internal/hazus"
	"github.com/sells-group/incore-data/internal/model"
)

// shapefileColumns mirrors model.BuildingColumns with dBASE types.
var shapefileColumns = []export.Column{
	{Name: "guid"},
	{Name: "fd_id"},
	{Name: "occtype"},
	{Name: "struct_typ"},
	{Name: "no_stories", Kind: export.KindInt},
	{Name: "year_built", Kind: export.KindInt},
	{Name: "dgn_lvl"},
	{Name: "exact_matc"},
	{Name: "sheet"},
	{Name: "lon", Kind: export.KindFloat, Decimals: 7},
	{Name: "lat", Kind: export.KindFloat, Decimals: 7},
}

// Records returns the buildings as rows in model.BuildingColumns order.
func (inv *Inventory) Records() [][]string {
	out := make([][]string, len(inv.Buildings))
	for i, b := range inv.Buildings {
		out[i] = b.Record()
	}
	return out
}

// WriteCSV writes the inventory table.
func (inv *Inventory) WriteCSV(path string) error {
	return export.WriteCSV(path, model.BuildingColumns, inv.Records())
}

// WriteShapefile writes the inventory as a point shapefile. Buildings without a
// location are left out.
func (inv *Inventory) WriteShapefile(path string) error {
	recs := make([]export.Record, len(inv.Buildings))
	for i, b := range inv.Buildings {
		recs[i] = export.Record{
			Geometry: pointOrNil(b.Point),
			Values: []any{
				b.GUID, b.FdID, b.OccType, b.StructType, b.Stories, b.YearBuilt,
				b.DesignLevel, b.ExactMatch, b.Sheet, b.Lon, b.Lat,
			},
		}
	}
	return export.WritePointShapefile(path, shapefileColumns, recs)
}

// Features returns the buildings as GeoJSON features keyed by GUID.
func (inv *Inventory) Features() []export.Feature {
	out := make([]export.Feature, len(inv.Buildings))
	for i, b := range inv.Buildings {
		props := map[string]any{
			"guid":        b.GUID,
			"fd_id":       b.FdID,
			"occtype":     b.OccType,
			"no_stories":  b.Stories,
			"year_built":  b.YearBuilt,
			"exact_match": b.ExactMatch,
			"sheet":       nilIfEmpty(b.Sheet),
			"struct_typ":  nilIfEmpty(b.StructType),
			"dgn_lvl":     nilIfEmpty(b.DesignLevel),
		}
		out[i] = export.Feature{ID: b.GUID, Geometry: pointOrNil(b.Point), Properties: props}
	}
	return out
}

// WriteGeoJSON writes the inventory as a FeatureCollection.
func (inv *Inventory) WriteGeoJSON(path string) error {
	return export.WriteGeoJSON(path, inv.Features())
}

// Summary is the YAML run summary.
type Summary struct {
	GeneratedAt   time.Time      `json:"generated_at" yaml:"generated_at"`
	Source        string         `json:"source" yaml:"source"`
	FIPS          []string       `json:"fips,omitempty" yaml:"fips,omitempty"`
	Region        hazus.Region   `json:"region" yaml:"region"`
	Regions       []hazus.Region `json:"regions,omitempty" yaml:"regions,omitempty"`
	Buildings     int            `json:"buildings" yaml:"buildings"`
	Report        hazus.Report   `json:"report" yaml:"report"`
	StructTypes   map[string]int `json:"struct_types" yaml:"struct_types"`
	DesignLevels  map[string]int `json:"design_levels" yaml:"design_levels"`
	Sheets        []string       `json:"sheets" yaml:"sheets"`
	UnmatchedOccs []string       `json:"unmatched_occupancies,omitempty" yaml:"unmatched_occupancies,omitempty"`
}

// Summarize counts buildings per structural type, design level and winning sheet.
func (inv *Inventory) Summarize() Summary {
	s := Summary{
		GeneratedAt:  time.Now().UTC(),
		Source:       inv.Source,
		FIPS:         inv.FIPS,
		Region:       inv.Region,
		Regions:      inv.Regions,
		Buildings:    len(inv.Buildings),
		Report:       inv.Report,
		StructTypes:  map[string]int{},
		DesignLevels: map[string]int{},
	}
	sheets := map[string]bool{}
	unmatched := map[string]bool{}
	for _, b := range inv.Buildings {
		if !b.Matched() {
			unmatched[hazus.NormalizeOccupancy(b.OccType)] = true
			continue
		}
		s.StructTypes[b.StructType]++
		s.DesignLevels[b.DesignLevel]++
		if b.Sheet != "" {
			sheets[b.Sheet] = true
		}
	}
	s.Sheets = sortedKeys(sheets)
	s.UnmatchedOccs = sortedKeys(unmatched)
	return s
}

// WriteSummary writes Summarize as YAML.
func (inv *Inventory) WriteSummary(path string) error {
	data, err := yaml.Marshal(inv.Summarize())
	if err != nil {
		return eris.Wrap(err, "inventory: marshal summary")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "inventory: write summary %s", path)
}

func pointOrNil(p *geom.Point) geom.T {
	if p == nil {
		return nil
	}
	return p
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
