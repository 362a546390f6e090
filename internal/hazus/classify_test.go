package hazus

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTable(t *testing.T, name string, header []string, rows ...[]string) *Table {
	t.Helper()
	tbl, err := ParseTable(name, header, rows)
	require.NoError(t, err)
	return tbl
}

// testMapping builds a small WestCoast + MidWest mapping:
//   - COM1 is only in the LowRise tables
//   - COM4 is in every WestCoast Post1970 table
//   - EDU1 has an empty row in MidRise and no row in LowRise
func testMapping(t *testing.T) *Mapping {
	t.Helper()
	m := NewMapping()
	h := []string{"OccClass", "W1", "S2L", "C2L"}

	m.Add(WestCoast, mustTable(t, "LowRise-Post1970", h,
		[]string{"COM1", "20", "50", "30"},
		[]string{"COM4", "40", "", "60"},
	))
	m.Add(WestCoast, mustTable(t, "MidRise-Post1970", h,
		[]string{"COM4", "", "70", "30"},
		[]string{"EDU1", "", "", ""},
	))
	m.Add(WestCoast, mustTable(t, "HighRise-Post1970", h,
		[]string{"COM4", "", "", "100"},
	))
	m.Add(WestCoast, mustTable(t, "LowRise-Pre1950", h,
		[]string{"COM1", "50", "50", ""},
	))

	m.Add(MidWest, mustTable(t, "LowRise", h,
		[]string{"COM1", "10", "", "90"},
	))
	return m
}

func TestClassify_SpecialCases(t *testing.T) {
	c := NewClassifier(testMapping(t), Options{})
	batch := []Input{
		{ID: "1", OccupancyType: "RES1-1SNB", YearBuilt: 1960, Stories: 1},
		{ID: "2", OccupancyType: "RES2", YearBuilt: 1990, Stories: 1},
	}

	got, rep, err := c.Classify(batch, WestCoast)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "W1", got[0].StructType)
	assert.Equal(t, DesignPreCode, got[0].DesignLevel)
	assert.True(t, got[0].ExactMatch)
	assert.Empty(t, got[0].Sheet)
	assert.Equal(t, "RES1", got[0].Occupancy)

	assert.Equal(t, "MH", got[1].StructType)
	assert.Equal(t, DesignLowCode, got[1].DesignLevel)

	assert.Equal(t, 2, rep.Special)
	assert.Equal(t, 2, rep.Total)
	assert.Zero(t, rep.Unmatched)
}

func TestClassify_ExactMatch(t *testing.T) {
	c := NewClassifier(testMapping(t), Options{})

	got, rep, err := c.Classify([]Input{{ID: "a", OccupancyType: "COM1", YearBuilt: 1990, Stories: 2}}, WestCoast)
	require.NoError(t, err)
	assert.Equal(t, "S2L", got[0].StructType)
	assert.Equal(t, "LowRise-Post1970", got[0].Sheet)
	assert.True(t, got[0].ExactMatch)
	assert.Equal(t, DesignLowCode, got[0].DesignLevel)
	assert.Equal(t, 1, rep.Exact)
	assert.Zero(t, rep.Fallbacks)
}

func TestClassify_TiePicksFirstColumn(t *testing.T) {
	c := NewClassifier(testMapping(t), Options{})

	got, _, err := c.Classify([]Input{{ID: "a", OccupancyType: "COM1", YearBuilt: 1900, Stories: 1}}, WestCoast)
	require.NoError(t, err)
	assert.Equal(t, "W1", got[0].StructType)
}

func TestClassify_FallbackChain(t *testing.T) {
	c := NewClassifier(testMapping(t), Options{})
	batch := []Input{
		// HighRise misses COM1, MidRise misses it, LowRise has it.
		{ID: "h", OccupancyType: "COM1", YearBuilt: 2005, Stories: 12},
		// MidRise has COM4 directly.
		{ID: "m", OccupancyType: "COM4", YearBuilt: 2005, Stories: 5},
	}

	got, rep, err := c.Classify(batch, WestCoast)
	require.NoError(t, err)

	assert.Equal(t, "S2L", got[0].StructType)
	assert.Equal(t, "LowRise-Post1970", got[0].Sheet)
	assert.False(t, got[0].ExactMatch)
	assert.Equal(t, DesignHighCode, got[0].DesignLevel)

	assert.Equal(t, "S2L", got[1].StructType)
	assert.True(t, got[1].ExactMatch)

	assert.Equal(t, 1, rep.Fallbacks)
	assert.Equal(t, 1, rep.Exact)
}

func TestClassify_UnmatchedAndEmptyRows(t *testing.T) {
	c := NewClassifier(testMapping(t), Options{})
	batch := []Input{
		{ID: "e", OccupancyType: "EDU1", YearBuilt: 1999, Stories: 5},
		{ID: "x", OccupancyType: "IND6", YearBuilt: 1999, Stories: 1},
		{ID: "ok", OccupancyType: "COM1", YearBuilt: 1999, Stories: 1},
		{ID: "r", OccupancyType: "RES1", YearBuilt: 1999, Stories: 1},
	}

	got, rep, err := c.Classify(batch, WestCoast)
	require.NoError(t, err)
	require.Len(t, got, 4)

	for _, a := range got[:2] {
		assert.False(t, a.Matched(), a.ID)
		assert.Empty(t, a.DesignLevel, a.ID)
		assert.Empty(t, a.Sheet, a.ID)
		assert.NotEmpty(t, a.GUID, a.ID)
	}
	assert.True(t, got[2].Matched())

	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, 2, rep.Unmatched)
	assert.Equal(t, 1, rep.EmptyRows)
	assert.InDelta(t, 50.0, rep.UnmatchedPct, 0.0001)
}

func TestClassify_RES3Variants(t *testing.T) {
	m := testMapping(t)
	m.Add(MidWest, mustTable(t, "MidRise", []string{"OccClass", "C2M", "RM1M"}, []string{"RES3", "30", "70"}))
	c := NewClassifier(m, Options{})

	got, _, err := c.Classify([]Input{
		{ID: "1", OccupancyType: "RES3A", YearBuilt: 2010, Stories: 4},
		{ID: "2", OccupancyType: "res3f-ws", YearBuilt: 2010, Stories: 6},
	}, MidWest)
	require.NoError(t, err)
	for _, a := range got {
		assert.Equal(t, "RES3", a.Occupancy)
		assert.Equal(t, "RM1M", a.StructType)
		assert.Equal(t, "MidRise", a.Sheet)
	}
}

func TestClassify_MidWestFlatSheets(t *testing.T) {
	c := NewClassifier(testMapping(t), Options{})

	got, rep, err := c.Classify([]Input{{ID: "1", OccupancyType: "COM1", YearBuilt: 1920, Stories: 9}}, MidWest)
	require.NoError(t, err)
	assert.Equal(t, "C2L", got[0].StructType)
	assert.Equal(t, "LowRise", got[0].Sheet)
	assert.False(t, got[0].ExactMatch)
	assert.Equal(t, MidWest, rep.Region)
}

func TestClassify_UnknownRegionUsesDefault(t *testing.T) {
	c := NewClassifier(testMapping(t), Options{DefaultRegion: MidWest})

	_, rep, err := c.Classify([]Input{{ID: "1", OccupancyType: "COM1", YearBuilt: 1920, Stories: 1}}, Unknown)
	require.NoError(t, err)
	assert.Equal(t, MidWest, rep.Region)

	// EastCoast has no tables loaded.
	_, rep, err = c.Classify([]Input{{ID: "1", OccupancyType: "COM1", YearBuilt: 1920, Stories: 1}}, EastCoast)
	require.NoError(t, err)
	assert.Equal(t, MidWest, rep.Region)
}

func TestClassify_DefaultRegionMissing(t *testing.T) {
	m := NewMapping()
	m.Add(MidWest, mustTable(t, "LowRise", []string{"OccClass", "W1"}, []string{"COM1", "100"}))
	c := NewClassifier(m, Options{})

	_, _, err := c.Classify([]Input{{ID: "1", OccupancyType: "COM1"}}, Unknown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no mapping tables loaded for region WestCoast")
}

func TestClassify_MissingOccupancyAborts(t *testing.T) {
	c := NewClassifier(testMapping(t), Options{})

	got, _, err := c.Classify([]Input{
		{ID: "1", OccupancyType: "COM1", Stories: 1, YearBuilt: 2000},
		{ID: "2", OccupancyType: " ", Stories: 1, YearBuilt: 2000},
	}, WestCoast)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), `record 1 (fd_id "2") has no occupancy type`)
}

func TestClassify_RandomIsReproducible(t *testing.T) {
	batch := make([]Input, 200)
	for i := range batch {
		batch[i] = Input{ID: uuid.NewString(), OccupancyType: "COM1", YearBuilt: 1990, Stories: 1}
	}

	run := func() []string {
		c := NewClassifier(testMapping(t), Options{Random: true})
		got, _, err := c.Classify(batch, WestCoast)
		require.NoError(t, err)
		out := make([]string, len(got))
		for i, a := range got {
			out[i] = a.StructType
		}
		return out
	}

	first, second := run(), run()
	assert.Equal(t, first, second)

	seen := map[string]int{}
	for _, s := range first {
		seen[s]++
	}
	// COM1 LowRise-Post1970 is 20/50/30 over W1/S2L/C2L.
	assert.Len(t, seen, 3)
	assert.Greater(t, seen["S2L"], seen["W1"])
}

func TestClassify_RandomSkipsGaps(t *testing.T) {
	c := NewClassifier(testMapping(t), Options{Random: true, Seed: 7})

	batch := make([]Input, 50)
	for i := range batch {
		batch[i] = Input{ID: "x", OccupancyType: "COM4", YearBuilt: 2000, Stories: 2}
	}
	got, _, err := c.Classify(batch, WestCoast)
	require.NoError(t, err)
	for _, a := range got {
		assert.Contains(t, []string{"W1", "C2L"}, a.StructType)
	}
}

func TestNormalizeOccupancy(t *testing.T) {
	assert.Equal(t, "COM1", NormalizeOccupancy("COM1-PC"))
	assert.Equal(t, "RES3", NormalizeOccupancy("RES3B-WB"))
	assert.Equal(t, "IND2", NormalizeOccupancy(" ind2 "))
	assert.Equal(t, "", NormalizeOccupancy("-X"))
}

func TestGUID(t *testing.T) {
	a := GUID("497218213")
	assert.Equal(t, a, GUID("497218213"))
	assert.NotEqual(t, a, GUID("497218214"))

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())

	r := GUID("")
	parsed, err = uuid.Parse(r)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
}

func TestReportMerge(t *testing.T) {
	r := Report{Region: WestCoast, Total: 4, Unmatched: 1}
	r.Merge(Report{Total: 6, Unmatched: 1, Fallbacks: 2})
	assert.Equal(t, 10, r.Total)
	assert.Equal(t, 2, r.Fallbacks)
	assert.InDelta(t, 20.0, r.UnmatchedPct, 0.0001)
}
