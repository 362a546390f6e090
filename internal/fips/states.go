// Package fips resolves US state and county names to FIPS codes using a static
// state table and the Census Data API for county listings.
package fips

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// State is one row of the static state table.
type State struct {
	Name      string `json:"name" yaml:"name"`
	Abbr      string `json:"abbr" yaml:"abbr"`
	FIPS      string `json:"fips" yaml:"fips"`
	Territory bool   `json:"territory,omitempty" yaml:"territory,omitempty"`
}

// ErrUnknownState is returned when a state name, abbreviation, or code is not in the table.
var ErrUnknownState = eris.New("fips: unknown state")

// states covers the 50 states, DC, and the inhabited territories.
var states = []State{
	{"Alabama", "AL", "01", false},
	{"Alaska", "AK", "02", false},
	{"Arizona", "AZ", "04", false},
	{"Arkansas", "AR", "05", false},
	{"California", "CA", "06", false},
	{"Colorado", "CO", "08", false},
	{"Connecticut", "CT", "09", false},
	{"Delaware", "DE", "10", false},
	{"District of Columbia", "DC", "11", false},
	{"Florida", "FL", "12", false},
	{"Georgia", "GA", "13", false},
	{"Hawaii", "HI", "15", false},
	{"Idaho", "ID", "16", false},
	{"Illinois", "IL", "17", false},
	{"Indiana", "IN", "18", false},
	{"Iowa", "IA", "19", false},
	{"Kansas", "KS", "20", false},
	{"Kentucky", "KY", "21", false},
	{"Louisiana", "LA", "22", false},
	{"Maine", "ME", "23", false},
	{"Maryland", "MD", "24", false},
	{"Massachusetts", "MA", "25", false},
	{"Michigan", "MI", "26", false},
	{"Minnesota", "MN", "27", false},
	{"Mississippi", "MS", "28", false},
	{"Missouri", "MO", "29", false},
	{"Montana", "MT", "30", false},
	{"Nebraska", "NE", "31", false},
	{"Nevada", "NV", "32", false},
	{"New Hampshire", "NH", "33", false},
	{"New Jersey", "NJ", "34", false},
	{"New Mexico", "NM", "35", false},
	{"New York", "NY", "36", false},
	{"North Carolina", "NC", "37", false},
	{"North Dakota", "ND", "38", false},
	{"Ohio", "OH", "39", false},
	{"Oklahoma", "OK", "40", false},
	{"Oregon", "OR", "41", false},
	{"Pennsylvania", "PA", "42", false},
	{"Rhode Island", "RI", "44", false},
	{"South Carolina", "SC", "45", false},
	{"South Dakota", "SD", "46", false},
	{"Tennessee", "TN", "47", false},
	{"Texas", "TX", "48", false},
	{"Utah", "UT", "49", false},
	{"Vermont", "VT", "50", false},
	{"Virginia", "VA", "51", false},
	{"Washington", "WA", "53", false},
	{"West Virginia", "WV", "54", false},
	{"Wisconsin", "WI", "55", false},
	{"Wyoming", "WY", "56", false},
	{"American Samoa", "AS", "60", true},
	{"Guam", "GU", "66", true},
	{"Northern Mariana Islands", "MP", "69", true},
	{"Puerto Rico", "PR", "72", true},
	{"U.S. Virgin Islands", "VI", "78", true},
}

var (
	fold     = cases.Fold()
	byKey    map[string]State
	byFIPS   map[string]State
	sortedBy []State
)

func init() {
	byKey = make(map[string]State, len(states)*2)
	byFIPS = make(map[string]State, len(states))
	for _, s := range states {
		byKey[fold.String(s.Name)] = s
		byKey[fold.String(s.Abbr)] = s
		byFIPS[s.FIPS] = s
	}
	sortedBy = append([]State(nil), states...)
	sort.Slice(sortedBy, func(i, j int) bool { return sortedBy[i].FIPS < sortedBy[j].FIPS })
}

// LookupState finds a state by full name, USPS abbreviation, or FIPS code.
// Names match case-insensitively and ignore surrounding whitespace.
func LookupState(s string) (State, error) {
	key := strings.Join(strings.Fields(s), " ")
	if key == "" {
		return State{}, eris.Wrap(ErrUnknownState, "empty state")
	}
	if st, ok := byKey[fold.String(key)]; ok {
		return st, nil
	}
	if st, ok := byFIPS[NormalizeState(key)]; ok {
		return st, nil
	}
	return State{}, eris.Wrapf(ErrUnknownState, "%q", s)
}

// StateFIPS returns the 2-digit FIPS code for a state name or abbreviation.
func StateFIPS(nameOrAbbr string) (string, error) {
	st, err := LookupState(nameOrAbbr)
	if err != nil {
		return "", err
	}
	return st.FIPS, nil
}

// StateByFIPS returns the state for a 2-digit code.
func StateByFIPS(code string) (State, bool) {
	st, ok := byFIPS[NormalizeState(code)]
	return st, ok
}

// States returns the table ordered by FIPS code. Territories are included only when asked.
func States(withTerritories bool) []State {
	out := make([]State, 0, len(sortedBy))
	for _, s := range sortedBy {
		if s.Territory && !withTerritories {
			continue
		}
		out = append(out, s)
	}
	return out
}

// TitleName renders a user-supplied place name in title case ("new york" -> "New York").
func TitleName(s string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}
