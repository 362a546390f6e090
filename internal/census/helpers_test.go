package census

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

func sprintfTable(state, county string) string {
	return fmt.Sprintf(countyTable, state+county, state, county)
}

// blockGroupZip builds a TIGER-style zip holding one square block group per geoid.
func blockGroupZip(t *testing.T, name string, geoids []string, x, y float64) []byte {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name+".shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("GEOID10", 12),
		shp.StringField("MTFCC10", 5),
	}))
	for i, id := range geoids {
		ox := x + float64(i)
		ring := []shp.Point{{X: ox, Y: y}, {X: ox, Y: y + 1}, {X: ox + 1, Y: y + 1}, {X: ox + 1, Y: y}, {X: ox, Y: y}}
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
		row := int(w.Write(&poly))
		require.NoError(t, w.WriteAttribute(row, 0, id))
		require.NoError(t, w.WriteAttribute(row, 1, "G5030"))
	}
	w.Close()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		data, err := os.ReadFile(filepath.Join(dir, name+ext))
		require.NoError(t, err)
		fw, err := zw.Create(name + ext)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
