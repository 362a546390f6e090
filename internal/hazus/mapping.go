package hazus

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/fetcher"
)

// classColumn is the header of the occupancy-class column in every table.
const classColumn = "OccClass"

// cleaner removes the non-breaking spaces that leak in from the source workbook.
var cleaner = strings.NewReplacer("\u00a0", "")

// Row is one occupancy class's structural-type distribution. Gap cells are omitted.
type Row struct {
	Types    []string  `json:"types"`
	Percents []float64 `json:"percents"`
}

// Empty reports whether the row has no usable weight.
func (r Row) Empty() bool {
	var sum float64
	for _, p := range r.Percents {
		sum += p
	}
	return sum <= 0
}

// Table is one named sheet: occupancy class to distribution.
type Table struct {
	Name  string
	Types []string
	rows  map[string]Row
	order []string
}

// Lookup returns the row for an occupancy class.
func (t *Table) Lookup(class string) (Row, bool) {
	r, ok := t.rows[strings.ToUpper(class)]
	return r, ok
}

// Classes returns occupancy classes in file order.
func (t *Table) Classes() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of occupancy classes.
func (t *Table) Len() int { return len(t.order) }

// EmptyRows counts classes whose row has no usable weight.
func (t *Table) EmptyRows() int {
	n := 0
	for _, c := range t.order {
		if t.rows[c].Empty() {
			n++
		}
	}
	return n
}

// Mapping holds every loaded table, keyed by region and sheet name.
// It is read-only once loaded.
type Mapping struct {
	tables map[Region]map[string]*Table
}

// NewMapping returns an empty Mapping.
func NewMapping() *Mapping {
	return &Mapping{tables: make(map[Region]map[string]*Table)}
}

// Add registers a table for a region, replacing any table of the same name.
func (m *Mapping) Add(region Region, t *Table) {
	if m.tables[region] == nil {
		m.tables[region] = make(map[string]*Table)
	}
	m.tables[region][t.Name] = t
}

// Table returns a region's sheet.
func (m *Mapping) Table(region Region, sheet string) (*Table, bool) {
	t, ok := m.tables[region][sheet]
	return t, ok
}

// HasRegion reports whether any table was loaded for the region.
func (m *Mapping) HasRegion(region Region) bool {
	return len(m.tables[region]) > 0
}

// Regions returns the regions with loaded tables, in canonical order.
func (m *Mapping) Regions() []Region {
	var out []Region
	for _, r := range Regions {
		if m.HasRegion(r) {
			out = append(out, r)
		}
	}
	return out
}

// Sheets returns a region's sheet names, sorted.
func (m *Mapping) Sheets(region Region) []string {
	names := make([]string, 0, len(m.tables[region]))
	for name := range m.tables[region] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseTable builds a Table from a header row and data rows. The first column
// must be OccClass; the rest are structural-type percentages. Blank and NaN cells
// are gaps. Class names are upper-cased.
func ParseTable(name string, header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 || !strings.EqualFold(cleanCell(header[0]), classColumn) {
		return nil, eris.Errorf("hazus: sheet %q: first column must be %s", name, classColumn)
	}

	types := make([]string, len(header)-1)
	for i, h := range header[1:] {
		types[i] = cleanCell(h)
	}

	t := &Table{Name: name, Types: types, rows: make(map[string]Row, len(rows))}
	for n, rec := range rows {
		if len(rec) == 0 {
			continue
		}
		class := strings.ToUpper(cleanCell(rec[0]))
		if class == "" {
			continue
		}
		if _, dup := t.rows[class]; dup {
			continue
		}

		var row Row
		for j, cell := range rec[1:] {
			if j >= len(types) || types[j] == "" {
				break
			}
			v := strings.TrimSuffix(cleanCell(cell), "%")
			if v == "" {
				continue
			}
			pct, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "hazus: sheet %q row %d (%s) column %s", name, n+2, class, types[j])
			}
			if math.IsNaN(pct) {
				continue
			}
			row.Types = append(row.Types, types[j])
			row.Percents = append(row.Percents, pct)
		}
		t.rows[class] = row
		t.order = append(t.order, class)
	}
	return t, nil
}

// LoadDir reads CSV tables laid out as root/<region>/<Sheet>.csv, where <region>
// is the lower-cased region name. CSV files directly under root are treated as
// WestCoast tables.
func LoadDir(ctx context.Context, root string) (*Mapping, error) {
	m := NewMapping()

	if err := loadCSVDir(ctx, m, WestCoast, root); err != nil {
		return nil, err
	}
	for _, r := range Regions {
		dir := filepath.Join(root, r.dirName())
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := loadCSVDir(ctx, m, r, dir); err != nil {
			return nil, err
		}
	}

	if len(m.Regions()) == 0 {
		return nil, eris.Errorf("hazus: no mapping tables under %s", root)
	}
	logLoaded(m, root)
	return m, nil
}

func loadCSVDir(ctx context.Context, m *Mapping, region Region, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return eris.Wrapf(err, "hazus: read mapping dir %s", dir)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		t, err := loadCSVTable(ctx, path)
		if err != nil {
			return err
		}
		m.Add(region, t)
	}
	return nil
}

func loadCSVTable(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "hazus: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	header, rows, err := fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{LazyQuotes: true})
	if err != nil {
		return nil, eris.Wrapf(err, "hazus: read %s", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseTable(name, header, rows)
}

// LoadWorkbook reads one region's tables from an XLSX workbook whose sheet
// names are the table names. Leading title rows above the OccClass header are skipped.
func LoadWorkbook(path string, region Region) (*Mapping, error) {
	wb, err := fetcher.OpenXLSX(path)
	if err != nil {
		return nil, eris.Wrap(err, "hazus: open mapping workbook")
	}

	m := NewMapping()
	for _, name := range wb.SheetNames() {
		rows, err := wb.Rows(fetcher.XLSXOptions{SheetName: name})
		if err != nil {
			return nil, eris.Wrapf(err, "hazus: read sheet %q", name)
		}
		h := headerIndex(rows)
		if h < 0 {
			zap.L().Debug("skipping sheet without OccClass header",
				zap.String("component", "hazus"),
				zap.String("sheet", name),
			)
			continue
		}
		t, err := ParseTable(strings.TrimSpace(name), rows[h], rows[h+1:])
		if err != nil {
			return nil, err
		}
		m.Add(region, t)
	}

	if !m.HasRegion(region) {
		return nil, eris.Errorf("hazus: workbook %s has no %s tables", path, classColumn)
	}
	logLoaded(m, path)
	return m, nil
}

func headerIndex(rows [][]string) int {
	for i, r := range rows {
		if len(r) > 0 && strings.EqualFold(cleanCell(r[0]), classColumn) {
			return i
		}
	}
	return -1
}

func cleanCell(s string) string {
	return strings.TrimSpace(cleaner.Replace(s))
}

func logLoaded(m *Mapping, src string) {
	for _, r := range m.Regions() {
		zap.L().Debug("loaded mapping tables",
			zap.String("component", "hazus"),
			zap.String("source", src),
			zap.String("region", string(r)),
			zap.Int("sheets", len(m.tables[r])),
		)
	}
}
