package hazus

// Seismic design levels.
const (
	DesignPreCode      = "Pre - Code"
	DesignLowCode      = "Low - Code"
	DesignModerateCode = "Moderate - Code"
	DesignHighCode     = "High - Code"
)

// Code adoption years (exclusive upper bounds).
const (
	lowCodeFrom      = 1979
	moderateCodeFrom = 1995
	highCodeFrom     = 2003
)

// DesignLevelForYear returns the design level for a construction year.
//   - Pre - Code: year < 1979
//   - Low - Code: 1979 <= year < 1995
//   - Moderate - Code: 1995 <= year < 2003
//   - High - Code: year >= 2003
func DesignLevelForYear(year int) string {
	switch {
	case year < lowCodeFrom:
		return DesignPreCode
	case year < moderateCodeFrom:
		return DesignLowCode
	case year < highCodeFrom:
		return DesignModerateCode
	default:
		return DesignHighCode
	}
}
