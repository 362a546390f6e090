package census

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/export"
	"github.com/sells-group/incore-data/internal/fetcher"
	"github.com/sells-group/incore-data/internal/fips"
	"github.com/sells-group/incore-data/internal/tiger"
)

// joinField is the TIGER 2010 block-group id matched against bgid.
const joinField = "GEOID10"

// DislocationOptions configures one dislocation dataset build.
type DislocationOptions struct {
	StateCounties []string // 5-digit state+county codes
	Vintage       string
	Dataset       string

	OutCSV       bool
	OutShapefile bool
	OutHTML      bool
	GeoName      string // file name suffix
	ProgramName  string // output directory and file name prefix
	OutputDir    string // parent of the program directory

	TigerBaseURL string
	TigerYear    int
	TempDir      string // shapefile download dir, removed when the run ends
}

func (o *DislocationOptions) defaults() {
	if o.Vintage == "" {
		o.Vintage = "2010"
	}
	if o.Dataset == "" {
		o.Dataset = "dec/sf1"
	}
	if o.GeoName == "" {
		o.GeoName = "geo_name"
	}
	if o.ProgramName == "" {
		o.ProgramName = "program_name"
	}
	if o.OutputDir == "" {
		o.OutputDir = "."
	}
	if o.TigerBaseURL == "" {
		o.TigerBaseURL = "https://www2.census.gov/geo/tiger"
	}
	if o.TigerYear == 0 {
		o.TigerYear = 2010
	}
	if o.TempDir == "" {
		o.TempDir = filepath.Join(o.OutputDir, "shapefiletemp")
	}
}

// MergedBlockGroup is a TIGER block group with its census row, if any.
type MergedBlockGroup struct {
	GEOID    string
	Attrs    map[string]string
	Geometry *geom.MultiPolygon
	Bounds   *geom.Bounds
	Census   *BlockGroup
}

// DislocationResult is the output of a dislocation build.
type DislocationResult struct {
	BlockGroups []BlockGroup
	Merged      []MergedBlockGroup
	Map         export.Map
	Outputs     []string
}

// Saved returns the census rows restricted to SaveColumns.
func (r *DislocationResult) Saved() [][]string {
	out := make([][]string, len(r.BlockGroups))
	for i, bg := range r.BlockGroups {
		out[i] = bg.SavedRecord()
	}
	return out
}

// Dislocation joins Census block-group counts to TIGER/Line boundaries.
type Dislocation struct {
	client *Client
	f      fetcher.Fetcher
}

// NewDislocation creates a Dislocation that downloads shapefiles with f.
func NewDislocation(client *Client, f fetcher.Fetcher) *Dislocation {
	return &Dislocation{client: client, f: f}
}

// Run fetches census rows and block-group shapes for every county, left-joins the
// shapes to the rows, and writes the requested outputs under OutputDir/ProgramName.
// The shapefile download dir is always removed; the program dir is only created
// once an output is written.
func (d *Dislocation) Run(ctx context.Context, opts DislocationOptions) (res *DislocationResult, err error) {
	opts.defaults()
	if len(opts.StateCounties) == 0 {
		return nil, eris.New("census: no state+county codes given")
	}
	for _, sc := range opts.StateCounties {
		if _, _, err := fips.Split(sc); err != nil {
			return nil, eris.Wrap(err, "census: dislocation")
		}
	}

	log := zap.L().With(zap.String("component", "census.dislocation"), zap.String("program", opts.ProgramName))

	if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "census: create shapefile dir")
	}
	defer func() {
		if rmErr := os.RemoveAll(opts.TempDir); rmErr != nil && err == nil {
			err = eris.Wrapf(rmErr, "census: failed to remove %s", opts.TempDir)
		}
	}()

	rows, err := d.client.BlockGroups(ctx, opts.StateCounties, opts.Vintage, opts.Dataset)
	if err != nil {
		return nil, err
	}

	var features []tiger.Feature
	for _, sc := range opts.StateCounties {
		u := tiger.BlockGroupURL(opts.TigerBaseURL, opts.TigerYear, sc)
		log.Info("downloading block-group shapefile", zap.String("state_county", sc), zap.String("url", u))
		shpPath, err := tiger.Download(ctx, d.f, u, opts.TempDir)
		if err != nil {
			return nil, eris.Wrapf(err, "census: shapefile for %s", sc)
		}
		layer, err := tiger.ParseShapefile(shpPath)
		if err != nil {
			return nil, err
		}
		features = append(features, layer.Features...)
	}

	res = &DislocationResult{BlockGroups: rows, Merged: Merge(features, rows)}
	res.Map = DislocationMap(opts.ProgramName+" "+opts.GeoName, res.Merged)

	// The exporters create programDir on first write. It is removed again when
	// a write fails before anything landed in it.
	programDir := filepath.Join(opts.OutputDir, opts.ProgramName)
	_, statErr := os.Stat(programDir)
	existed := statErr == nil
	defer func() {
		if err != nil && !existed {
			_ = os.Remove(programDir)
		}
	}()

	savefile := filepath.Join(programDir, opts.ProgramName+"_"+opts.GeoName)
	if opts.OutHTML {
		path := savefile + "_map.html"
		if err := export.WriteChoropleth(path, res.Map); err != nil {
			return nil, err
		}
		log.Info("dynamic HTML map saved", zap.String("path", path))
		res.Outputs = append(res.Outputs, path)
	}
	if opts.OutCSV {
		path := savefile + ".csv"
		if err := export.WriteCSV(path, SaveColumns, res.Saved()); err != nil {
			return nil, err
		}
		log.Info("CSV data file saved", zap.String("path", path))
		res.Outputs = append(res.Outputs, path)
	}
	if opts.OutShapefile {
		path := savefile + ".shp"
		cols, recs := shapefileRecords(res.Merged)
		if err := export.WritePolygonShapefile(path, cols, recs); err != nil {
			return nil, err
		}
		log.Info("shapefile saved", zap.String("path", path))
		res.Outputs = append(res.Outputs, path)
	}

	return res, nil
}

// Merge left-joins shapes (GEOID10) to census rows (bgid), keeping shape order.
func Merge(features []tiger.Feature, rows []BlockGroup) []MergedBlockGroup {
	byID := make(map[string]int, len(rows))
	for i, r := range rows {
		if _, dup := byID[r.BGID]; !dup {
			byID[r.BGID] = i
		}
	}

	out := make([]MergedBlockGroup, 0, len(features))
	var unmatched int
	for _, f := range features {
		m := MergedBlockGroup{
			GEOID:    f.Attr(joinField),
			Attrs:    f.Attrs,
			Geometry: f.Geometry,
			Bounds:   f.Bounds,
		}
		if i, ok := byID[m.GEOID]; ok {
			m.Census = &rows[i]
		} else {
			unmatched++
		}
		out = append(out, m)
	}
	if unmatched > 0 {
		zap.L().Warn("census: block groups without census rows", zap.Int("count", unmatched))
	}
	return out
}

// DislocationMap builds the "Percent Hispanic" and "Percent Black" choropleth.
// Features are keyed by their position; block groups without census data map to 0.
func DislocationMap(title string, merged []MergedBlockGroup) export.Map {
	ids := make([]string, len(merged))
	hisp := make([]float64, len(merged))
	black := make([]float64, len(merged))
	feats := make([]export.ChoroFeature, 0, len(merged))

	for i, m := range merged {
		ids[i] = strconv.Itoa(i)
		hisp[i], black[i] = math.NaN(), math.NaN()
		if m.Census != nil {
			hisp[i] = m.Census.PHisp
			black[i] = m.Census.PBlack
		}
		cf := export.ChoroFeature{ID: ids[i], Bounds: m.Bounds}
		if m.Geometry != nil {
			cf.Geometry = m.Geometry
		}
		feats = append(feats, cf)
	}

	return export.Map{
		Title:    title,
		Zoom:     10,
		Features: feats,
		Layers: []export.ChoroLayer{
			{Name: "Percent Hispanic", Values: export.ChoroData(ids, hisp)},
			{Name: "Percent Black", Values: export.ChoroData(ids, black)},
		},
	}
}

// shapefileRecords lays out the merged block groups as TIGER attributes
// followed by the census columns.
func shapefileRecords(merged []MergedBlockGroup) ([]export.Column, []export.Record) {
	var tigerFields []string
	seen := map[string]bool{}
	for _, m := range merged {
		for k := range m.Attrs {
			if !seen[k] {
				seen[k] = true
				tigerFields = append(tigerFields, k)
			}
		}
	}
	slices.Sort(tigerFields)

	var cols []export.Column
	for _, f := range tigerFields {
		cols = append(cols, export.Column{Name: f})
	}
	var censusCols []string
	for _, f := range (BlockGroup{}).Fields() {
		if seen[strings.ToUpper(export.FieldName(f.Name))] {
			continue
		}
		censusCols = append(censusCols, f.Name)
		c := export.Column{Name: f.Name}
		switch f.Value.(type) {
		case int:
			c.Kind = export.KindInt
		case float64:
			c.Kind, c.Decimals = export.KindFloat, 6
		}
		cols = append(cols, c)
	}

	recs := make([]export.Record, 0, len(merged))
	for _, m := range merged {
		vals := make([]any, 0, len(cols))
		for _, f := range tigerFields {
			vals = append(vals, m.Attrs[f])
		}
		var censusVals map[string]any
		if m.Census != nil {
			censusVals = make(map[string]any, len(censusCols))
			for _, f := range m.Census.Fields() {
				censusVals[f.Name] = f.Value
			}
		}
		for _, name := range censusCols {
			vals = append(vals, censusVals[name])
		}
		var g geom.T
		if m.Geometry != nil {
			g = m.Geometry
		}
		recs = append(recs, export.Record{Geometry: g, Values: vals})
	}
	return cols, recs
}
