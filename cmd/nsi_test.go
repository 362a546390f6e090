package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/incore-data/internal/config"
	"github.com/sells-group/incore-data/internal/hazus"
	"github.com/sells-group/incore-data/internal/inventory"
	"github.com/sells-group/incore-data/internal/model"
	"github.com/sells-group/incore-data/internal/nsi"
	"github.com/sells-group/incore-data/internal/store"
)

func testInventory() *inventory.Inventory {
	pt := geom.NewPointFlat(geom.XY, []float64{-88.24, 40.11}).SetSRID(4326)
	return &inventory.Inventory{
		Region: hazus.MidWest,
		Source: "nsi",
		FIPS:   []string{"17019"},
		Buildings: []model.Building{
			{GUID: "g-1", FdID: "1", OccType: "COM1", StructType: "C2L", Stories: 1, YearBuilt: 1990,
				DesignLevel: hazus.DesignModerateCode, Sheet: "LowRise", ExactMatch: true, Lon: -88.24, Lat: 40.11, Point: pt},
			{GUID: "g-2", FdID: "2", OccType: "IND6", Stories: 1, YearBuilt: 1990},
		},
		Report: hazus.Report{Region: hazus.MidWest, Total: 2, Exact: 1, Unmatched: 1, UnmatchedPct: 50},
	}
}

func TestNormalizeCodes(t *testing.T) {
	got, err := normalizeCodes([]string{"17019", " 06001 "})
	require.NoError(t, err)
	assert.Equal(t, []string{"17019", "06001"}, got)

	_, err = normalizeCodes(nil)
	assert.Error(t, err)

	_, err = normalizeCodes([]string{"1701"})
	assert.Error(t, err)
}

func TestInventoryName(t *testing.T) {
	assert.Equal(t, "17019_inventory", inventoryName([]string{"17019"}, ""))
	assert.Equal(t, "17019_17113_inventory", inventoryName([]string{"17019", "17113"}, ""))
	assert.Equal(t, "01001_plus3_inventory", inventoryName([]string{"01001", "01003", "01005", "01007"}, ""))
	assert.Equal(t, "champaign_inventory", inventoryName(nil, "/data/champaign.geojson"))
}

func TestInventoryOutputs_Write(t *testing.T) {
	dir := t.TempDir()
	outs := inventoryOutputs{Dir: dir, Name: "test", CSV: true, GeoJSON: true, Summary: true}

	written, err := outs.write(testInventory())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "test.csv"),
		filepath.Join(dir, "test.geojson"),
		filepath.Join(dir, "test_summary.yaml"),
	}, written)

	csv, err := os.ReadFile(filepath.Join(dir, "test.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(csv), "guid,fd_id,occtype,struct_typ")

	summary, err := os.ReadFile(filepath.Join(dir, "test_summary.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "region: MidWest")

	_, err = os.Stat(filepath.Join(dir, "test.shp"))
	assert.True(t, os.IsNotExist(err))
}

func TestInventoryOutputs_Shapefile(t *testing.T) {
	dir := t.TempDir()
	written, err := inventoryOutputs{Dir: dir, Name: "pts", Shapefile: true}.write(testInventory())
	require.NoError(t, err)
	require.Len(t, written, 1)
	_, err = os.Stat(filepath.Join(dir, "pts.dbf"))
	assert.NoError(t, err)
}

func TestRunTracked_NoSave(t *testing.T) {
	var gotID string
	var gotStore store.Store
	err := runTracked(context.Background(), false, model.RunKindInventory, model.RunParams{},
		func(_ context.Context, runID string, st store.Store) (*model.RunResult, error) {
			gotID, gotStore = runID, st
			return &model.RunResult{Records: 1}, nil
		})
	require.NoError(t, err)
	assert.Empty(t, gotID)
	assert.Nil(t, gotStore)
}

func withStoreConfig(t *testing.T) string {
	t.Helper()
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	path := filepath.Join(t.TempDir(), "cli.db")
	cfg = &config.Config{
		Fetch: config.FetchConfig{Concurrency: 1},
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: path},
	}
	return path
}

func TestRunTracked_SaveRecordsRun(t *testing.T) {
	path := withStoreConfig(t)
	ctx := context.Background()

	inv := testInventory()
	err := runTracked(ctx, true, model.RunKindInventory, model.RunParams{FIPS: inv.FIPS},
		func(ctx context.Context, runID string, st store.Store) (*model.RunResult, error) {
			require.NotEmpty(t, runID)
			if _, err := st.SaveBuildings(ctx, runID, inv.Buildings); err != nil {
				return nil, err
			}
			rep := inv.Report
			return &model.RunResult{Records: len(inv.Buildings), Report: &rep}, nil
		})
	require.NoError(t, err)

	st, err := store.NewSQLite(path)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, []string{"17019"}, runs[0].Params.FIPS)

	buildings, err := st.ListBuildings(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, buildings, 2)
}

func TestRunTracked_SaveRecordsFailure(t *testing.T) {
	path := withStoreConfig(t)
	ctx := context.Background()

	err := runTracked(ctx, true, model.RunKindDislocation, model.RunParams{FIPS: []string{"17019"}},
		func(context.Context, string, store.Store) (*model.RunResult, error) {
			return nil, errors.New("census: failed to download the data from Census API")
		})
	require.Error(t, err)

	st, err := store.NewSQLite(path)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Result.Error, "Census API")
}

func TestRunTracked_InvalidStoreConfig(t *testing.T) {
	withStoreConfig(t)
	cfg.Store.Driver = "mysql"

	called := false
	err := runTracked(context.Background(), true, model.RunKindInventory, model.RunParams{},
		func(context.Context, string, store.Store) (*model.RunResult, error) {
			called = true
			return nil, nil
		})
	require.Error(t, err)
	assert.False(t, called)
}

func TestFormatSummary(t *testing.T) {
	var buf bytes.Buffer
	formatSummary(&buf, testInventory().Summarize())

	output := buf.String()
	assert.Contains(t, output, "MidWest inventory (nsi)")
	assert.Contains(t, output, "C2L")
	assert.Contains(t, output, "unmatched 1 (50.00%)")
	assert.Contains(t, output, "unmatched occupancies: IND6")
}

func TestFormatOccupancies(t *testing.T) {
	var buf bytes.Buffer
	formatOccupancies(&buf, []nsi.Structure{{OccType: "RES1"}, {OccType: "COM1"}, {OccType: "RES1"}})

	output := buf.String()
	assert.Contains(t, output, "RES1")
	assert.Contains(t, output, "COM1")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("COM1")), bytes.Index(buf.Bytes(), []byte("RES1")))
}
