package store

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/incore-data/internal/census"
	"github.com/sells-group/incore-data/internal/geo"
	"github.com/sells-group/incore-data/internal/model"
)

var buildingColumns = []string{
	"run_id", "guid", "fd_id", "occtype", "struct_typ", "no_stories", "year_built",
	"dgn_lvl", "exact_match", "sheet", "lon", "lat", "county_fips", "geom",
}

var (
	buildingColumnList = strings.Join(buildingColumns, ", ")
	buildingSelectList = strings.Join(buildingColumns[1:], ", ")
)

var blockGroupColumns = []string{
	"bgid", "survey", "bgidstr", "name", "total", "white_nh", "black_nh", "hispanic",
	"pwhitebg", "pblackbg", "phispbg", "run_id",
}

var blockGroupColumnList = strings.Join(blockGroupColumns, ", ")

// buildingRows flattens buildings in buildingColumns order with the point as EWKB.
func buildingRows(runID string, buildings []model.Building) ([][]any, error) {
	rows := make([][]any, len(buildings))
	for i, b := range buildings {
		var g any
		if b.Point != nil {
			data, err := geo.EncodeEWKB(b.Point)
			if err != nil {
				return nil, eris.Wrapf(err, "store: building %s", b.GUID)
			}
			g = data
		}
		rows[i] = []any{
			runID, b.GUID, b.FdID, b.OccType, b.StructType, b.Stories, b.YearBuilt,
			b.DesignLevel, b.ExactMatch, b.Sheet, b.Lon, b.Lat, b.CountyFIPS, g,
		}
	}
	return rows, nil
}

func scanBuilding(row scannable) (model.Building, error) {
	var b model.Building
	var wkb []byte
	err := row.Scan(&b.GUID, &b.FdID, &b.OccType, &b.StructType, &b.Stories, &b.YearBuilt,
		&b.DesignLevel, &b.ExactMatch, &b.Sheet, &b.Lon, &b.Lat, &b.CountyFIPS, &wkb)
	if err != nil {
		return b, eris.Wrap(err, "store: scan building")
	}

	g, err := geo.DecodeEWKB(wkb)
	if err != nil {
		return b, eris.Wrapf(err, "store: building %s", b.GUID)
	}
	if pt, ok := g.(*geom.Point); ok {
		b.Point = pt
	}
	return b, nil
}

// blockGroupRows flattens block groups in blockGroupColumns order.
func blockGroupRows(runID string, groups []census.BlockGroup) [][]any {
	rows := make([][]any, len(groups))
	for i, g := range groups {
		rows[i] = []any{
			g.BGID, g.Survey, g.BGIDStr, g.Name, g.Total, g.WhiteNH, g.BlackNH, g.Hispanic,
			g.PWhite, g.PBlack, g.PHisp, runID,
		}
	}
	return rows
}

func decodeRunJSON(r *model.Run, params []byte, hasResult bool, result []byte) error {
	if err := json.Unmarshal(params, &r.Params); err != nil {
		return eris.Wrap(err, "unmarshal params")
	}
	if hasResult {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(result, r.Result); err != nil {
			return eris.Wrap(err, "unmarshal result")
		}
	}
	return nil
}
