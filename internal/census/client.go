package census

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/fetcher"
	"github.com/sells-group/incore-data/internal/fips"
	"github.com/sells-group/incore-data/internal/monitoring"
)

// Client queries the Census Data API for block-group counts.
type Client struct {
	f       fetcher.Fetcher
	baseURL string
	apiKey  string
	metrics *monitoring.Metrics
}

// NewClient creates a Client. baseURL is the API root, e.g. https://api.census.gov/data.
func NewClient(f fetcher.Fetcher, baseURL, apiKey string, m *monitoring.Metrics) *Client {
	return &Client{
		f:       f,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		metrics: m,
	}
}

// BlockGroupsURL returns the query for every block group in one county.
func (c *Client) BlockGroupsURL(vintage, dataset, state, county string) string {
	u := c.baseURL + "/" + vintage + "/" + dataset +
		"?get=" + strings.Join(Variables, ",") +
		"&in=state:" + state + "&in=county:" + county + "&for=block%20group:*"
	if c.apiKey != "" {
		u += "&key=" + url.QueryEscape(c.apiKey)
	}
	return u
}

// FetchCounty fetches the block groups of one 5-digit state+county code.
func (c *Client) FetchCounty(ctx context.Context, stateCounty, vintage, dataset string) ([]BlockGroup, error) {
	state, county, err := fips.Split(stateCounty)
	if err != nil {
		return nil, eris.Wrap(err, "census: fetch county")
	}

	zap.L().Debug("census: fetching block groups",
		zap.String("state", state), zap.String("county", county))

	start := time.Now()
	rows, err := c.fetch(ctx, c.BlockGroupsURL(vintage, dataset, state, county), vintage, dataset)
	c.metrics.ObserveFetch("census", time.Since(start), err)
	if err != nil {
		return nil, eris.Wrapf(err, "census: county %s", stateCounty)
	}
	c.metrics.AddBlockGroups(len(rows))
	return rows, nil
}

func (c *Client) fetch(ctx context.Context, u, vintage, dataset string) ([]BlockGroup, error) {
	body, err := c.f.Download(ctx, u)
	if err != nil {
		return nil, eris.Wrap(err, "failed to download the data from Census API")
	}
	defer body.Close() //nolint:errcheck

	header, rows, err := fetcher.DecodeTable(body)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, nil
	}
	return ParseRows(header, rows, vintage, dataset)
}

// BlockGroups fetches every county in order and concatenates the rows.
func (c *Client) BlockGroups(ctx context.Context, stateCounties []string, vintage, dataset string) ([]BlockGroup, error) {
	var all []BlockGroup
	for _, sc := range stateCounties {
		rows, err := c.FetchCounty(ctx, sc, vintage, dataset)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	zap.L().Info("census: block groups fetched",
		zap.Int("counties", len(stateCounties)), zap.Int("block_groups", len(all)))
	return all, nil
}
