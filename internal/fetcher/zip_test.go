package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP_Shapefile(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"tl_2010_17019_bg10.shp": "shp",
		"tl_2010_17019_bg10.shx": "shx",
		"tl_2010_17019_bg10.dbf": "dbf",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	data, err := os.ReadFile(filepath.Join(destDir, "tl_2010_17019_bg10.dbf"))
	require.NoError(t, err)
	assert.Equal(t, "dbf", string(data))

	shp, err := FindFileByExt(extracted, ".shp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "tl_2010_17019_bg10.shp"), shp)
}

func TestExtractZIP_Subdirectory(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"bg/a.txt": "nested",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	require.Len(t, extracted, 1)

	data, err := os.ReadFile(filepath.Join(destDir, "bg", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested", string(data))
}

func TestExtractZIP_ZipSlip(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"../escape.txt": "bad",
	})

	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIP_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip: open archive")
}

func TestFindFileByExt(t *testing.T) {
	paths := []string{"/tmp/a.dbf", "/tmp/a.SHP", "/tmp/a.prj"}

	got, err := FindFileByExt(paths, ".shp")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.SHP", got)

	_, err = FindFileByExt(paths, ".csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .csv file")
}
