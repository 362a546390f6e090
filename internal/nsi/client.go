package nsi

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/incore-data/internal/fetcher"
	"github.com/sells-group/incore-data/internal/fips"
	"github.com/sells-group/incore-data/internal/monitoring"
)

// Client fetches structures from the NSI API.
type Client struct {
	f           fetcher.Fetcher
	baseURL     string
	concurrency int
	metrics     *monitoring.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithConcurrency sets how many counties are fetched at once. Values below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		c.concurrency = n
	}
}

// WithMetrics records fetch outcomes.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Client. baseURL is the API root, e.g. https://nsi.sec.usace.army.mil/nsiapi.
func NewClient(f fetcher.Fetcher, baseURL string, opts ...Option) *Client {
	c := &Client{
		f:           f,
		baseURL:     strings.TrimRight(baseURL, "/"),
		concurrency: 1,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// StructuresURL returns the county query URL.
func (c *Client) StructuresURL(countyFIPS string) string {
	return c.baseURL + "/structures?fips=" + url.QueryEscape(countyFIPS)
}

// FetchCounty fetches every structure in one 5-digit county.
func (c *Client) FetchCounty(ctx context.Context, countyFIPS string) ([]Structure, error) {
	if _, _, err := fips.Split(countyFIPS); err != nil {
		return nil, eris.Wrap(err, "nsi: fetch county")
	}

	start := time.Now()
	structures, err := c.fetch(ctx, countyFIPS)
	c.metrics.ObserveFetch("nsi", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	c.metrics.AddStructures(len(structures))
	return structures, nil
}

func (c *Client) fetch(ctx context.Context, countyFIPS string) ([]Structure, error) {
	body, err := c.f.Download(ctx, c.StructuresURL(countyFIPS))
	if err != nil {
		return nil, eris.Wrapf(err, "nsi: fetch county %s", countyFIPS)
	}
	defer body.Close() //nolint:errcheck

	structures, err := Decode(body)
	if err != nil {
		return nil, eris.Wrapf(err, "nsi: county %s", countyFIPS)
	}
	for i := range structures {
		structures[i].SourceFIPS = countyFIPS
	}
	return structures, nil
}

// FetchCounties fetches each county and concatenates the results in input order.
// Any county failure aborts the batch.
func (c *Client) FetchCounties(ctx context.Context, countyFIPS []string) ([]Structure, error) {
	log := zap.L().With(zap.String("component", "nsi"))
	results := make([][]Structure, len(countyFIPS))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, code := range countyFIPS {
		g.Go(func() error {
			log.Info("processing FIPS", zap.String("fips", code), zap.Int("index", i+1), zap.Int("of", len(countyFIPS)))
			s, err := c.FetchCounty(gctx, code)
			if err != nil {
				return err
			}
			if len(s) == 0 {
				log.Warn("no structures returned", zap.String("fips", code))
			}
			results[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]Structure, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}

	log.Info("merged NSI structures", zap.Int("counties", len(countyFIPS)), zap.Int("structures", len(merged)))
	return merged, nil
}
