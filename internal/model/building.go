package model

import (
	"strconv"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/incore-data/internal/hazus"
)

// Building is one classified NSI structure.
type Building struct {
	GUID        string  `json:"guid" yaml:"guid"`
	FdID        string  `json:"fd_id" yaml:"fd_id"`
	OccType     string  `json:"occtype" yaml:"occtype"`
	StructType  string  `json:"struct_typ" yaml:"struct_typ"`
	Stories     int     `json:"no_stories" yaml:"no_stories"`
	YearBuilt   int     `json:"year_built" yaml:"year_built"`
	DesignLevel string  `json:"dgn_lvl" yaml:"dgn_lvl"`
	ExactMatch  bool    `json:"exact_match" yaml:"exact_match"`
	Sheet       string  `json:"sheet" yaml:"sheet"`
	Lon         float64 `json:"lon" yaml:"lon"`
	Lat         float64 `json:"lat" yaml:"lat"`
	CountyFIPS  string  `json:"county_fips,omitempty" yaml:"county_fips,omitempty"`

	Point *geom.Point `json:"-" yaml:"-"`
}

// BuildingColumns is the export column order.
var BuildingColumns = []string{
	"guid", "fd_id", "occtype", "struct_typ", "no_stories", "year_built",
	"dgn_lvl", "exact_match", "sheet", "lon", "lat",
}

// NewBuilding combines a classifier assignment with the source attributes.
// pt may be nil for records without a location.
func NewBuilding(a hazus.Assignment, occType string, pt *geom.Point, countyFIPS string) Building {
	b := Building{
		GUID:        a.GUID,
		FdID:        a.ID,
		OccType:     occType,
		StructType:  a.StructType,
		Stories:     a.Stories,
		YearBuilt:   a.YearBuilt,
		DesignLevel: a.DesignLevel,
		ExactMatch:  a.ExactMatch,
		Sheet:       a.Sheet,
		CountyFIPS:  countyFIPS,
	}
	b.SetPoint(pt)
	return b
}

// SetPoint sets the location and the lon/lat columns.
func (b *Building) SetPoint(pt *geom.Point) {
	b.Point = pt
	b.Lon, b.Lat = 0, 0
	if pt != nil {
		b.Lon, b.Lat = pt.X(), pt.Y()
	}
}

// Matched reports whether a structural type was assigned.
func (b Building) Matched() bool { return b.StructType != "" }

// Record returns the building as strings in BuildingColumns order.
func (b Building) Record() []string {
	return []string{
		b.GUID,
		b.FdID,
		b.OccType,
		b.StructType,
		strconv.Itoa(b.Stories),
		strconv.Itoa(b.YearBuilt),
		b.DesignLevel,
		strconv.FormatBool(b.ExactMatch),
		b.Sheet,
		strconv.FormatFloat(b.Lon, 'f', -1, 64),
		strconv.FormatFloat(b.Lat, 'f', -1, 64),
	}
}
