// Package export writes tabular and spatial results as CSV, ESRI shapefiles,
// GeoJSON and Leaflet choropleth pages.
package export

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// WriteCSV writes a header and rows to path, creating parent directories.
func WriteCSV(path string, header []string, rows [][]string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write CSV header")
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return eris.Errorf("export: row %d has %d columns, header has %d", i, len(row), len(header))
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write CSV row %d", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush CSV")
	}
	return eris.Wrap(f.Sync(), "export: sync CSV")
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return eris.Wrapf(os.MkdirAll(dir, 0o755), "export: create dir %s", dir)
}
