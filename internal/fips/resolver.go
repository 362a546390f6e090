package fips

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/fetcher"
)

// ErrUnknownCounty is returned when no county in the state matches the requested name.
var ErrUnknownCounty = eris.New("fips: unknown county")

// County is one county-equivalent returned by the Census county listing.
type County struct {
	Name       string `json:"name"`
	StateFIPS  string `json:"state_fips"`
	CountyFIPS string `json:"county_fips"`
	GEOID      string `json:"geoid"`
}

// countySuffixes are stripped when matching bare county names.
// Longer suffixes come first.
var countySuffixes = []string{
	" city and borough", " census area", " municipality", " municipio",
	" county", " parish", " borough", " city",
}

// Resolver looks up county codes through the Census Data API.
type Resolver struct {
	f       fetcher.Fetcher
	baseURL string
	vintage string
	apiKey  string
}

// NewResolver creates a Resolver. baseURL is the Census data root, e.g. https://api.census.gov/data.
func NewResolver(f fetcher.Fetcher, baseURL, vintage, apiKey string) *Resolver {
	if vintage == "" {
		vintage = "2010"
	}
	return &Resolver{
		f:       f,
		baseURL: strings.TrimRight(baseURL, "/"),
		vintage: vintage,
		apiKey:  apiKey,
	}
}

// CountiesURL returns the county listing URL for a 2-digit state code.
func (r *Resolver) CountiesURL(stateFIPS string) string {
	q := "get=NAME&for=county:*&in=state:" + stateFIPS
	if r.apiKey != "" {
		q += "&key=" + url.QueryEscape(r.apiKey)
	}
	return r.baseURL + "/" + r.vintage + "/dec/sf1?" + q
}

// Counties lists every county in a state (name, abbreviation, or FIPS code), ordered by county code.
func (r *Resolver) Counties(ctx context.Context, state string) ([]County, error) {
	st, err := LookupState(state)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "fips"), zap.String("state", st.Abbr))
	log.Debug("listing counties", zap.String("url", r.CountiesURL(st.FIPS)))

	body, err := r.f.Download(ctx, r.CountiesURL(st.FIPS))
	if err != nil {
		return nil, eris.Wrapf(err, "fips: list counties for %s", st.Name)
	}
	defer body.Close() //nolint:errcheck

	header, rows, err := fetcher.DecodeTable(body)
	if err != nil {
		return nil, eris.Wrapf(err, "fips: decode counties for %s", st.Name)
	}

	idx := columnIndex(header)
	iName, okName := idx["NAME"]
	iState, okState := idx["state"]
	iCounty, okCounty := idx["county"]
	if !okName || !okState || !okCounty {
		return nil, eris.Errorf("fips: county listing missing columns, got %v", header)
	}

	counties := make([]County, 0, len(rows))
	for _, row := range rows {
		if len(row) <= max(iName, iState, iCounty) {
			continue
		}
		sc := NormalizeState(row[iState])
		cc := NormalizeCounty(row[iCounty])
		counties = append(counties, County{
			Name:       countyName(row[iName]),
			StateFIPS:  sc,
			CountyFIPS: cc,
			GEOID:      sc + cc,
		})
	}
	sort.Slice(counties, func(i, j int) bool { return counties[i].GEOID < counties[j].GEOID })

	log.Debug("listed counties", zap.Int("count", len(counties)))
	return counties, nil
}

// CountyFIPS resolves a state and county name to a 5-digit code, e.g. ("illinois", "champaign") -> "17019".
// The county may be given with or without its "County"/"Parish"/"Borough" suffix.
func (r *Resolver) CountyFIPS(ctx context.Context, state, county string) (string, error) {
	counties, err := r.Counties(ctx, state)
	if err != nil {
		return "", err
	}

	want := fold.String(strings.Join(strings.Fields(county), " "))
	for _, c := range counties {
		if fold.String(c.Name) == want {
			return c.GEOID, nil
		}
	}
	bare := trimCountySuffix(want)
	for _, c := range counties {
		if trimCountySuffix(fold.String(c.Name)) == bare {
			return c.GEOID, nil
		}
	}
	return "", eris.Wrapf(ErrUnknownCounty, "%q in %s", county, state)
}

// CountyFIPSList returns only the 5-digit codes of every county in the state.
func (r *Resolver) CountyFIPSList(ctx context.Context, state string) ([]string, error) {
	counties, err := r.Counties(ctx, state)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(counties))
	for i, c := range counties {
		out[i] = c.GEOID
	}
	return out, nil
}

// countyName drops the ", State" tail the Census API appends to NAME.
func countyName(full string) string {
	if i := strings.LastIndex(full, ","); i >= 0 {
		return strings.TrimSpace(full[:i])
	}
	return strings.TrimSpace(full)
}

func trimCountySuffix(folded string) string {
	for _, suf := range countySuffixes {
		if strings.HasSuffix(folded, suf) {
			return strings.TrimSuffix(folded, suf)
		}
	}
	return folded
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	return idx
}
