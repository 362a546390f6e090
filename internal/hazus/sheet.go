package hazus

// Story-height and construction-era thresholds (inclusive upper bounds).
const (
	lowRiseMaxStories = 3
	midRiseMaxStories = 7
	pre1950MaxYear    = 1950
	midEraMaxYear     = 1970
)

// Height tiers.
const (
	tierLow  = "LowRise"
	tierMid  = "MidRise"
	tierHigh = "HighRise"
)

// Construction eras used by the WestCoast tables.
const (
	eraPre1950  = "Pre1950"
	era19501970 = "1950-1970"
	eraPost1970 = "Post1970"
)

// fallbacks lists, per region, the sheets to try after a primary sheet misses.
// Every chain ends at a LowRise sheet; LowRise sheets have no fallback.
var fallbacks = map[Region]map[string][]string{
	WestCoast: {
		"HighRise-Pre1950":   {"MidRise-Pre1950", "LowRise-Pre1950"},
		"MidRise-Pre1950":    {"LowRise-Pre1950"},
		"HighRise-1950-1970": {"MidRise-1950-1970", "LowRise-1950-1970"},
		"MidRise-1950-1970":  {"LowRise-1950-1970"},
		"HighRise-Post1970":  {"MidRise-Post1970", "LowRise-Post1970"},
		"MidRise-Post1970":   {"LowRise-Post1970"},
	},
	MidWest: {
		"HighRise": {"MidRise", "LowRise"},
		"MidRise":  {"LowRise"},
	},
	EastCoast: {
		"HighRise": {"MidRise", "LowRise"},
		"MidRise":  {"LowRise"},
	},
}

// SelectSheet returns the primary sheet for a building.
// Stories: <=3 LowRise, <=7 MidRise, otherwise HighRise.
// WestCoast adds an era suffix: <=1950 Pre1950, <=1970 1950-1970, otherwise Post1970.
func SelectSheet(region Region, stories, year int) string {
	var tier string
	switch {
	case stories <= lowRiseMaxStories:
		tier = tierLow
	case stories <= midRiseMaxStories:
		tier = tierMid
	default:
		tier = tierHigh
	}

	if region != WestCoast {
		return tier
	}

	var era string
	switch {
	case year <= pre1950MaxYear:
		era = eraPre1950
	case year <= midEraMaxYear:
		era = era19501970
	default:
		era = eraPost1970
	}
	return tier + "-" + era
}

// Candidates returns the primary sheet followed by its fallback chain.
func Candidates(region Region, primary string) []string {
	chain := fallbacks[region][primary]
	out := make([]string, 0, 1+len(chain))
	out = append(out, primary)
	return append(out, chain...)
}

// SheetNames lists every sheet a region's tables are expected to provide.
func SheetNames(region Region) []string {
	tiers := []string{tierLow, tierMid, tierHigh}
	if region != WestCoast {
		return tiers
	}
	var names []string
	for _, era := range []string{eraPre1950, era19501970, eraPost1970} {
		for _, tier := range tiers {
			names = append(names, tier+"-"+era)
		}
	}
	return names
}
