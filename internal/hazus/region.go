// Package hazus assigns HAZUS structural types and seismic design levels to
// building records using region-specific occupancy mapping tables.
package hazus

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/fips"
)

// Region selects which family of mapping tables applies.
type Region string

// Regions.
const (
	WestCoast Region = "WestCoast"
	MidWest   Region = "MidWest"
	EastCoast Region = "EastCoast"
	Unknown   Region = "Unknown"
)

// Regions lists the regions that have mapping tables.
var Regions = []Region{WestCoast, MidWest, EastCoast}

// westCoastStates are the Pacific states covered by the era-split tables.
var westCoastStates = map[string]bool{
	"02": true, // AK
	"06": true, // CA
	"15": true, // HI
	"41": true, // OR
	"53": true, // WA
}

// eastCoastStates are the Atlantic seaboard states.
var eastCoastStates = map[string]bool{
	"09": true, "10": true, "11": true, "12": true, "13": true,
	"23": true, "24": true, "25": true, "33": true, "34": true,
	"36": true, "37": true, "42": true, "44": true, "45": true,
	"50": true, "51": true,
}

// ParseRegion parses a region name case-insensitively. Unknown names log a
// warning and resolve to def.
func ParseRegion(s string, def Region) Region {
	key := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s))
	for _, r := range Regions {
		if strings.ToLower(string(r)) == key {
			return r
		}
	}
	zap.L().Warn("unknown region, using default",
		zap.String("component", "hazus"),
		zap.String("region", s),
		zap.String("default", string(def)),
	)
	return def
}

// RegionForFIPS maps a state, county, or block-group FIPS code to its region.
// Territories and unrecognized codes map to Unknown.
func RegionForFIPS(code string) Region {
	st, ok := fips.StateByFIPS(fips.StatePart(code))
	if !ok || st.Territory {
		return Unknown
	}
	switch {
	case westCoastStates[st.FIPS]:
		return WestCoast
	case eastCoastStates[st.FIPS]:
		return EastCoast
	default:
		return MidWest
	}
}

// dirName is the mapping directory name for the region.
func (r Region) dirName() string {
	return strings.ToLower(string(r))
}
