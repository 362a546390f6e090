package hazus

import (
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultSeed seeds random structural-type sampling.
const DefaultSeed uint64 = 1337

// Structural types assigned without a table lookup.
const (
	occSingleFamily = "RES1"
	occMobileHome   = "RES2"
	occMultiFamily  = "RES3"

	structWoodLight  = "W1"
	structMobileHome = "MH"
)

// guidNamespace scopes record GUIDs so the same NSI fd_id always yields the same GUID.
var guidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://nsi.sec.usace.army.mil/nsiapi/structures"))

// Input is one building record to classify.
type Input struct {
	ID            string
	OccupancyType string
	YearBuilt     int
	Stories       int
}

// Assignment is the classification result for one Input. StructType and
// DesignLevel are empty when no table maps the occupancy class.
type Assignment struct {
	GUID        string `json:"guid"`
	ID          string `json:"fd_id"`
	Occupancy   string `json:"occupancy"`
	StructType  string `json:"struct_typ,omitempty"`
	Stories     int    `json:"no_stories"`
	YearBuilt   int    `json:"year_built"`
	DesignLevel string `json:"dgn_lvl,omitempty"`
	ExactMatch  bool   `json:"exact_match"`
	Sheet       string `json:"sheet,omitempty"`
}

// Matched reports whether a structural type was assigned.
func (a Assignment) Matched() bool { return a.StructType != "" }

// Report summarizes a classified batch.
type Report struct {
	Region       Region  `json:"region" yaml:"region"`
	Total        int     `json:"total" yaml:"total"`
	Special      int     `json:"special" yaml:"special"`
	Exact        int     `json:"exact" yaml:"exact"`
	Fallbacks    int     `json:"fallbacks" yaml:"fallbacks"`
	Unmatched    int     `json:"unmatched" yaml:"unmatched"`
	EmptyRows    int     `json:"empty_rows" yaml:"empty_rows"`
	UnmatchedPct float64 `json:"unmatched_pct" yaml:"unmatched_pct"`
}

// Merge adds another batch's counters to r and recomputes UnmatchedPct.
func (r *Report) Merge(o Report) {
	r.Total += o.Total
	r.Special += o.Special
	r.Exact += o.Exact
	r.Fallbacks += o.Fallbacks
	r.Unmatched += o.Unmatched
	r.EmptyRows += o.EmptyRows
	r.finish()
}

func (r *Report) finish() {
	r.UnmatchedPct = 0
	if r.Total > 0 {
		r.UnmatchedPct = float64(r.Unmatched) / float64(r.Total) * 100
	}
}

// Log writes the report through the global logger.
func (r Report) Log() {
	log := zap.L().With(zap.String("component", "hazus"), zap.String("region", string(r.Region)))
	log.Info("classification complete",
		zap.Int("total", r.Total),
		zap.Int("special", r.Special),
		zap.Int("exact", r.Exact),
		zap.Int("fallbacks", r.Fallbacks),
		zap.Int("unmatched", r.Unmatched),
		zap.Int("empty_rows", r.EmptyRows),
		zap.Float64("unmatched_pct", r.UnmatchedPct),
	)
	if r.Unmatched > 0 {
		log.Warn("buildings left without a structural type",
			zap.Int("unmatched", r.Unmatched),
			zap.Float64("unmatched_pct", r.UnmatchedPct),
		)
	}
}

// Options configures a Classifier.
type Options struct {
	Random        bool   // sample by weight instead of taking the most likely type
	Seed          uint64 // sampling seed; zero means DefaultSeed
	DefaultRegion Region // used when a batch arrives with Unknown or unloaded region
}

// Classifier assigns structural types using a loaded Mapping.
type Classifier struct {
	mapping *Mapping
	opts    Options
}

// NewClassifier creates a Classifier.
func NewClassifier(m *Mapping, opts Options) *Classifier {
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	if opts.DefaultRegion == "" || opts.DefaultRegion == Unknown {
		opts.DefaultRegion = WestCoast
	}
	return &Classifier{mapping: m, opts: opts}
}

// Mapping returns the classifier's tables.
func (c *Classifier) Mapping() *Mapping { return c.mapping }

// Classify assigns a structural type and design level to every record in the batch.
// Assignments are returned in input order. A record without an occupancy type
// aborts the batch.
func (c *Classifier) Classify(batch []Input, region Region) ([]Assignment, Report, error) {
	region = c.resolveRegion(region)
	if !c.mapping.HasRegion(region) {
		return nil, Report{}, eris.Errorf("hazus: no mapping tables loaded for region %s", region)
	}

	var rng *rand.Rand
	if c.opts.Random {
		rng = rand.New(rand.NewPCG(c.opts.Seed, c.opts.Seed))
	}

	rep := Report{Region: region, Total: len(batch)}
	out := make([]Assignment, 0, len(batch))
	for i, in := range batch {
		occ := NormalizeOccupancy(in.OccupancyType)
		if occ == "" {
			return nil, Report{}, eris.Errorf("hazus: record %d (fd_id %q) has no occupancy type", i, in.ID)
		}

		a := Assignment{
			GUID:      GUID(in.ID),
			ID:        in.ID,
			Occupancy: occ,
			Stories:   in.Stories,
			YearBuilt: in.YearBuilt,
		}

		if st, ok := specialType(occ); ok {
			a.StructType = st
			a.DesignLevel = DesignLevelForYear(in.YearBuilt)
			a.ExactMatch = true
			rep.Special++
			out = append(out, a)
			continue
		}

		primary := SelectSheet(region, in.Stories, in.YearBuilt)
		sheet, row, sawEmpty := c.resolve(region, primary, occ)
		if sheet == "" {
			rep.Unmatched++
			if sawEmpty {
				rep.EmptyRows++
			}
			zap.L().Debug("no mapping for occupancy",
				zap.String("component", "hazus"),
				zap.String("fd_id", in.ID),
				zap.String("occupancy", occ),
				zap.String("sheet", primary),
			)
			out = append(out, a)
			continue
		}

		a.Sheet = sheet
		a.ExactMatch = sheet == primary
		if a.ExactMatch {
			rep.Exact++
		} else {
			rep.Fallbacks++
		}
		a.StructType = pick(row, rng)
		a.DesignLevel = DesignLevelForYear(in.YearBuilt)
		out = append(out, a)
	}

	rep.finish()
	return out, rep, nil
}

// resolve walks the candidate sheets and returns the first with a usable row.
func (c *Classifier) resolve(region Region, primary, occ string) (string, Row, bool) {
	sawEmpty := false
	for _, name := range Candidates(region, primary) {
		t, ok := c.mapping.Table(region, name)
		if !ok {
			continue
		}
		row, ok := t.Lookup(occ)
		if !ok {
			continue
		}
		if row.Empty() {
			sawEmpty = true
			continue
		}
		return name, row, sawEmpty
	}
	return "", Row{}, sawEmpty
}

func (c *Classifier) resolveRegion(r Region) Region {
	if r != Unknown && r != "" && c.mapping.HasRegion(r) {
		return r
	}
	zap.L().Warn("region unavailable, using default",
		zap.String("component", "hazus"),
		zap.String("region", string(r)),
		zap.String("default", string(c.opts.DefaultRegion)),
	)
	return c.opts.DefaultRegion
}

// pick returns the most likely type, or a weighted sample when rng is set.
// Ties go to the first column.
func pick(row Row, rng *rand.Rand) string {
	var total float64
	best := 0
	for i, p := range row.Percents {
		total += p
		if p > row.Percents[best] {
			best = i
		}
	}
	if rng == nil {
		return row.Types[best]
	}

	target := rng.Float64() * total
	var acc float64
	for i, p := range row.Percents {
		if p <= 0 {
			continue
		}
		acc += p
		if target < acc {
			return row.Types[i]
		}
	}
	return row.Types[best]
}

// NormalizeOccupancy strips the subtype suffix ("COM1-PC" -> "COM1") and folds
// every RES3 variant ("RES3A", "RES3F") to RES3.
func NormalizeOccupancy(occ string) string {
	occ = strings.ToUpper(cleanCell(occ))
	occ, _, _ = strings.Cut(occ, "-")
	occ = strings.TrimSpace(occ)
	if strings.Contains(occ, occMultiFamily) {
		return occMultiFamily
	}
	return occ
}

func specialType(occ string) (string, bool) {
	switch occ {
	case occSingleFamily:
		return structWoodLight, true
	case occMobileHome:
		return structMobileHome, true
	}
	return "", false
}

// GUID derives a stable record GUID from an NSI fd_id, or a random one when id is empty.
func GUID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(guidNamespace, []byte(id)).String()
}
