// Package census builds the block-group demographic dataset used for population
// dislocation analysis: Census Data API counts joined to TIGER/Line boundaries.
package census

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Variables requested per block group from the decennial P5 table:
// total, non-Hispanic white alone, non-Hispanic Black alone, Hispanic or Latino.
var Variables = []string{"GEO_ID", "NAME", "P005001", "P005003", "P005004", "P005010"}

// SaveColumns are the columns written to the dislocation CSV.
var SaveColumns = []string{"bgid", "bgidstr", "Survey", "pblackbg", "phispbg"}

// BlockGroup is one Census block-group row with its derived columns.
type BlockGroup struct {
	GeoID      string `json:"GEO_ID"`
	Name       string `json:"NAME"`
	State      string `json:"state"`
	County     string `json:"county"`
	Tract      string `json:"tract"`
	BlockGroup string `json:"block_group"`

	Total    int `json:"P005001"`
	WhiteNH  int `json:"P005003"`
	BlackNH  int `json:"P005004"`
	Hispanic int `json:"P005010"`

	Survey  string  `json:"Survey"`
	BGID    string  `json:"bgid"`
	BGIDStr string  `json:"bgidstr"`
	PWhite  float64 `json:"pwhitebg"`
	PBlack  float64 `json:"pblackbg"`
	PHisp   float64 `json:"phispbg"`
}

// Derive fills Survey, bgid, bgidstr and the percentage columns.
// Percentages are 0 when the block group has no population.
func (b *BlockGroup) Derive(vintage, dataset string) {
	b.Survey = vintage + " " + dataset
	b.BGID = b.State + b.County + b.Tract + b.BlockGroup
	b.BGIDStr = BGIDString(b.BGID)
	b.PWhite = percent(b.WhiteNH, b.Total)
	b.PBlack = percent(b.BlackNH, b.Total)
	b.PHisp = percent(b.Hispanic, b.Total)
}

// SavedRecord returns the row in SaveColumns order.
func (b BlockGroup) SavedRecord() []string {
	return []string{b.BGID, b.BGIDStr, b.Survey, formatPct(b.PBlack), formatPct(b.PHisp)}
}

// BGIDString prefixes the id with "BG" and left-pads it with zeros to 12 digits.
func BGIDString(bgid string) string {
	if len(bgid) < 12 {
		bgid = strings.Repeat("0", 12-len(bgid)) + bgid
	}
	return "BG" + bgid
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var requiredColumns = []string{"P005001", "P005003", "P005004", "P005010", "state", "county", "tract", "block group"}

// ParseRows converts a Census API table into block groups and derives their columns.
func ParseRows(header []string, rows [][]string, vintage, dataset string) ([]BlockGroup, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, eris.Errorf("census: response missing column %q, got %v", c, header)
		}
	}

	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]BlockGroup, 0, len(rows))
	for n, row := range rows {
		bg := BlockGroup{
			GeoID:      get(row, "GEO_ID"),
			Name:       get(row, "NAME"),
			State:      get(row, "state"),
			County:     get(row, "county"),
			Tract:      get(row, "tract"),
			BlockGroup: get(row, "block group"),
		}
		counts := []*int{&bg.Total, &bg.WhiteNH, &bg.BlackNH, &bg.Hispanic}
		for i, col := range requiredColumns[:4] {
			v, err := strconv.Atoi(get(row, col))
			if err != nil {
				return nil, eris.Wrapf(err, "census: row %d column %s", n, col)
			}
			*counts[i] = v
		}
		bg.Derive(vintage, dataset)
		out = append(out, bg)
	}
	return out, nil
}

// Fields returns the census columns in output order.
func (b BlockGroup) Fields() []Field {
	return []Field{
		{"GEO_ID", b.GeoID},
		{"NAME", b.Name},
		{"P005001", b.Total},
		{"P005003", b.WhiteNH},
		{"P005004", b.BlackNH},
		{"P005010", b.Hispanic},
		{"Survey", b.Survey},
		{"bgid", b.BGID},
		{"bgidstr", b.BGIDStr},
		{"pwhitebg", b.PWhite},
		{"pblackbg", b.PBlack},
		{"phispbg", b.PHisp},
	}
}

// Field is a named attribute value.
type Field struct {
	Name  string
	Value any
}
