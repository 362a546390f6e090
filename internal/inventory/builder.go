// Package inventory turns NSI structures into a HAZUS building inventory:
// every structure gets a GUID, structural type and seismic design level.
package inventory

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/hazus"
	"github.com/sells-group/incore-data/internal/model"
	"github.com/sells-group/incore-data/internal/monitoring"
	"github.com/sells-group/incore-data/internal/nsi"
)

// Options configures one inventory build.
type Options struct {
	Region string // forces the mapping region; empty derives it per structure
	Random bool
	Seed   uint64
}

// MixedRegion marks an inventory whose buildings were classified with more than one region.
const MixedRegion hazus.Region = "Mixed"

// Inventory is a classified set of buildings.
type Inventory struct {
	Region    hazus.Region   // the single region used, or MixedRegion
	Regions   []hazus.Region // every region used, in first-seen order
	Source    string
	FIPS      []string
	Buildings []model.Building
	Report    hazus.Report
}

// Builder fetches or loads NSI structures and classifies them.
type Builder struct {
	client        *nsi.Client
	mapping       *hazus.Mapping
	defaultRegion hazus.Region
	metrics       *monitoring.Metrics
}

// NewBuilder creates a Builder. client may be nil when only FromFile is used.
func NewBuilder(client *nsi.Client, mapping *hazus.Mapping, defaultRegion hazus.Region, m *monitoring.Metrics) *Builder {
	if defaultRegion == "" || defaultRegion == hazus.Unknown {
		defaultRegion = hazus.WestCoast
	}
	return &Builder{client: client, mapping: mapping, defaultRegion: defaultRegion, metrics: m}
}

// FromFIPS fetches every county from the NSI API and classifies the merged structures.
func (b *Builder) FromFIPS(ctx context.Context, fipsList []string, opts Options) (*Inventory, error) {
	if len(fipsList) == 0 {
		return nil, eris.New("inventory: no FIPS codes given")
	}
	if b.client == nil {
		return nil, eris.New("inventory: no NSI client configured")
	}

	structures, err := b.client.FetchCounties(ctx, fipsList)
	if err != nil {
		return nil, eris.Wrap(err, "inventory: fetch structures")
	}

	inv, err := b.Build(structures, "", opts)
	if err != nil {
		return nil, err
	}
	inv.Source = "nsi"
	inv.FIPS = fipsList
	return inv, nil
}

// FromFile loads structures from a local NSI GeoJSON file and classifies them.
// Structures without a census block FIPS code take the region of the first one that has it.
func (b *Builder) FromFile(path string, opts Options) (*Inventory, error) {
	structures, err := nsi.LoadGeoJSON(path)
	if err != nil {
		return nil, eris.Wrap(err, "inventory: load structures")
	}

	var hint string
	for _, s := range structures {
		if s.CBFIPS != "" {
			hint = s.CBFIPS
			break
		}
	}

	inv, err := b.Build(structures, hint, opts)
	if err != nil {
		return nil, err
	}
	inv.Source = path
	return inv, nil
}

// Build classifies structures. Unless opts.Region is set, each structure is
// classified with the region of its census block FIPS code, then of the county
// it was fetched for, then of regionHint, then the default region. Buildings
// keep input order and the per-region reports are merged.
func (b *Builder) Build(structures []nsi.Structure, regionHint string, opts Options) (*Inventory, error) {
	var forced hazus.Region
	if opts.Region != "" {
		forced = hazus.ParseRegion(opts.Region, b.defaultRegion)
	}

	groups := map[hazus.Region][]int{}
	var order []hazus.Region
	defaulted := 0
	for i, s := range structures {
		r := forced
		if r == "" {
			r = structureRegion(s, regionHint)
		}
		if r == hazus.Unknown {
			r = b.defaultRegion
			defaulted++
		}
		if _, ok := groups[r]; !ok {
			order = append(order, r)
		}
		groups[r] = append(groups[r], i)
	}
	if defaulted > 0 {
		zap.L().Warn("inventory: cannot derive region, using default",
			zap.Int("structures", defaulted), zap.String("default", string(b.defaultRegion)))
	}
	if len(order) == 0 {
		order = append(order, b.region(regionHint, opts))
	}

	c := hazus.NewClassifier(b.mapping, hazus.Options{
		Random:        opts.Random,
		Seed:          opts.Seed,
		DefaultRegion: b.defaultRegion,
	})

	buildings := make([]model.Building, len(structures))
	var rep hazus.Report
	var used []hazus.Region
	for _, r := range order {
		idx := groups[r]
		batch := make([]hazus.Input, len(idx))
		for j, i := range idx {
			batch[j] = structures[i].ClassifierInput()
		}

		assignments, groupRep, err := c.Classify(batch, r)
		if err != nil {
			return nil, eris.Wrapf(err, "inventory: classify %s", r)
		}
		groupRep.Log()
		b.metrics.ObserveReport(groupRep)

		for j, a := range assignments {
			s := structures[idx[j]]
			buildings[idx[j]] = model.NewBuilding(a, s.OccType, s.Point, s.CountyFIPS())
		}
		rep.Merge(groupRep)
		if !slices.Contains(used, groupRep.Region) {
			used = append(used, groupRep.Region)
		}
	}

	rep.Region = used[0]
	if len(used) > 1 {
		rep.Region = MixedRegion
	}
	return &Inventory{
		Region:    rep.Region,
		Regions:   used,
		Buildings: buildings,
		Report:    rep,
	}, nil
}

// structureRegion returns the first region derivable from the structure's own
// codes or the hint, or Unknown.
func structureRegion(s nsi.Structure, hint string) hazus.Region {
	for _, code := range []string{s.CBFIPS, s.SourceFIPS, hint} {
		if code == "" {
			continue
		}
		if r := hazus.RegionForFIPS(code); r != hazus.Unknown {
			return r
		}
	}
	return hazus.Unknown
}

func (b *Builder) region(hint string, opts Options) hazus.Region {
	if opts.Region != "" {
		return hazus.ParseRegion(opts.Region, b.defaultRegion)
	}
	if r := hazus.RegionForFIPS(hint); r != hazus.Unknown {
		return r
	}
	return b.defaultRegion
}
