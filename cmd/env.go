package main

import (
	"context"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/census"
	"github.com/sells-group/incore-data/internal/config"
	"github.com/sells-group/incore-data/internal/fetcher"
	"github.com/sells-group/incore-data/internal/fips"
	"github.com/sells-group/incore-data/internal/hazus"
	"github.com/sells-group/incore-data/internal/inventory"
	"github.com/sells-group/incore-data/internal/monitoring"
	"github.com/sells-group/incore-data/internal/nsi"
	"github.com/sells-group/incore-data/internal/store"
)

// newFetcher builds the shared HTTP fetcher from the fetch section.
func newFetcher(c config.FetchConfig) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.UserAgent,
		Timeout:    time.Duration(c.TimeoutSecs) * time.Second,
		MaxRetries: c.MaxRetries,
		RatePerSec: c.RatePerSec,
		Breaker: fetcher.BreakerOptions{
			FailureThreshold: c.BreakerThreshold,
			ResetTimeout:     time.Duration(c.BreakerResetSecs) * time.Second,
		},
	})
}

func newResolver(f fetcher.Fetcher) *fips.Resolver {
	return fips.NewResolver(f, cfg.Census.BaseURL, cfg.Census.Vintage, cfg.Census.APIKey)
}

func newNSIClient(f fetcher.Fetcher, m *monitoring.Metrics) *nsi.Client {
	return nsi.NewClient(f, cfg.NSI.BaseURL, nsi.WithConcurrency(cfg.Fetch.Concurrency), nsi.WithMetrics(m))
}

func newDislocation(f fetcher.Fetcher, m *monitoring.Metrics) *census.Dislocation {
	return census.NewDislocation(census.NewClient(f, cfg.Census.BaseURL, cfg.Census.APIKey, m), f)
}

func defaultRegion() hazus.Region {
	return hazus.ParseRegion(cfg.Classify.DefaultRegion, hazus.WestCoast)
}

// loadMapping reads the lookup tables. A workbook holds one region; it is
// loaded as the configured default region.
func loadMapping(ctx context.Context, c config.MappingConfig, region hazus.Region) (*hazus.Mapping, error) {
	if c.Workbook != "" {
		return hazus.LoadWorkbook(c.Workbook, region)
	}
	if c.Dir == "" {
		return nil, eris.New("mapping.dir or mapping.workbook is required")
	}
	return hazus.LoadDir(ctx, c.Dir)
}

// newInventoryBuilder wires the NSI client and the mapping tables.
func newInventoryBuilder(ctx context.Context, f fetcher.Fetcher, m *monitoring.Metrics) (*inventory.Builder, error) {
	if err := cfg.Validate("inventory"); err != nil {
		return nil, err
	}
	region := defaultRegion()
	mapping, err := loadMapping(ctx, cfg.Mapping, region)
	if err != nil {
		return nil, err
	}
	return inventory.NewBuilder(newNSIClient(f, m), mapping, region, m), nil
}

// initStore opens and migrates the configured run store.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	zap.L().Debug("store ready", zap.String("driver", cfg.Store.Driver))
	return st, nil
}

// newTable returns a rounded go-pretty table writing to out.
func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}
