package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/incore-data/internal/hazus"
)

func TestRunStatusValues(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status RunStatus
		want   string
		done   bool
	}{
		{RunStatusQueued, "queued", false},
		{RunStatusRunning, "running", false},
		{RunStatusComplete, "complete", true},
		{RunStatusFailed, "failed", true},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
			assert.Equal(t, tt.done, tt.status.Done())
		})
	}
}

func TestNewBuilding(t *testing.T) {
	t.Parallel()
	a := hazus.Assignment{
		GUID:        "g-1",
		ID:          "42",
		Occupancy:   "COM1",
		StructType:  "S2L",
		Stories:     2,
		YearBuilt:   1985,
		DesignLevel: hazus.DesignLowCode,
		ExactMatch:  true,
		Sheet:       "LowRise-Post1970",
	}
	b := NewBuilding(a, "COM1-PC", geom.NewPointFlat(geom.XY, []float64{-88.25, 40.1}), "17019")

	assert.True(t, b.Matched())
	assert.Equal(t, "17019", b.CountyFIPS)
	assert.Equal(t, []string{
		"g-1", "42", "COM1-PC", "S2L", "2", "1985", "Low - Code", "true", "LowRise-Post1970", "-88.25", "40.1",
	}, b.Record())
	assert.Len(t, b.Record(), len(BuildingColumns))
}

func TestBuilding_Unmatched(t *testing.T) {
	t.Parallel()
	b := NewBuilding(hazus.Assignment{GUID: "g", ID: "1"}, "IND6", nil, "")
	assert.False(t, b.Matched())
	assert.Nil(t, b.Point)
	assert.Zero(t, b.Lon)
	assert.Equal(t, "false", b.Record()[7])
}
