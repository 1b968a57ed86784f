package match

import (
	"math"
	"sort"
	"strings"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

// Weights control the blend of ranking criteria. They should sum to
// 1.0; trust dominates by default.
type Weights struct {
	Trust          float64
	Location       float64
	Specialization float64
	Budget         float64
}

// DefaultWeights returns the production ranking blend.
func DefaultWeights() Weights {
	return Weights{
		Trust:          0.5,
		Location:       0.2,
		Specialization: 0.2,
		Budget:         0.1,
	}
}

// budgetRange is an inclusive price band in IDR.
type budgetRange struct {
	min, max float64
}

// Named budget bands. 50M sits in both low and medium; whichever band
// the caller names wins.
var budgetRanges = map[string]budgetRange{
	"low":    {0, 50_000_000},
	"medium": {50_000_000, 150_000_000},
	"high":   {150_000_000, math.Inf(1)},
}

// RankOptions describes a requester's project for ranking purposes.
type RankOptions struct {
	ProjectType   string
	Location      string
	MinTrustScore int     // workers below are filtered out; missing scores count as 0
	BudgetRange   string  // "low", "medium", "high" or "" for no preference
	MaxResults    int
	Weights       Weights
}

// NewRankOptions returns options with the production defaults: trust
// floor 40, top 10 results, default weight blend.
func NewRankOptions(projectType, location string) RankOptions {
	return RankOptions{
		ProjectType:   projectType,
		Location:      location,
		MinTrustScore: 40,
		MaxResults:    10,
		Weights:       DefaultWeights(),
	}
}

// Rank filters workers by minimum trust, scores each on the weighted
// trust/location/specialization/budget blend, attaches the 0-100 score
// as RankingScore, and returns the top MaxResults sorted descending.
// Equal scores keep their input order.
//
// Rank writes RankingScore onto the records it is given; callers
// sharing a worker slice across goroutines must pass each invocation
// its own copy.
func (t *Tables) Rank(workers []*worker.Record, opts RankOptions) []*worker.Record {
	required := t.MapProjectType(opts.ProjectType)

	filtered := make([]*worker.Record, 0, len(workers))
	for _, w := range workers {
		if w.TrustScoreValue() >= opts.MinTrustScore {
			filtered = append(filtered, w)
		}
	}

	for _, w := range filtered {
		score := t.score(w, required, opts)
		w.RankingScore = &score
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return *filtered[i].RankingScore > *filtered[j].RankingScore
	})

	if opts.MaxResults > 0 && len(filtered) > opts.MaxResults {
		filtered = filtered[:opts.MaxResults]
	}
	return filtered
}

// score computes the 0-100 weighted ranking score for one worker.
func (t *Tables) score(w *worker.Record, requiredSpecialization string, opts RankOptions) float64 {
	trust := float64(w.TrustScoreValue()) / 100.0
	location := t.LocationRelevance(w.Location, opts.Location)
	specialization := specializationMatch(w, requiredSpecialization)
	budget := budgetRelevance(w.Price(), opts.BudgetRange)

	overall := trust*opts.Weights.Trust +
		location*opts.Weights.Location +
		specialization*opts.Weights.Specialization +
		budget*opts.Weights.Budget

	return overall * 100.0
}

// specializationMatch scores how well the worker's tags cover the
// required specialization: exact tag 1.0, a general contractor 0.7,
// otherwise 0.
func specializationMatch(w *worker.Record, required string) float64 {
	if len(w.Specializations) == 0 {
		return 0.0
	}
	if w.HasSpecialization(required) {
		return 1.0
	}
	if w.HasSpecialization(GeneralSpecialization) {
		return 0.7
	}
	return 0.0
}

// budgetRelevance scores the worker's price against the named band:
// inside 1.0, outside 0.3, and a neutral 0.5 when either side of the
// comparison is missing.
func budgetRelevance(price *int64, band string) float64 {
	if band == "" || price == nil {
		return 0.5
	}
	r, ok := budgetRanges[strings.ToLower(band)]
	if !ok {
		r = budgetRange{0, math.Inf(1)}
	}
	p := float64(*price)
	if p >= r.min && p <= r.max {
		return 1.0
	}
	return 0.3
}

// FilterByTrustLevel keeps workers whose trust badge is at least
// minLevel on the VERIFIED > HIGH > MEDIUM > LOW ordering. Missing or
// unrecognized levels never pass.
func FilterByTrustLevel(workers []*worker.Record, minLevel worker.TrustLevel) []*worker.Record {
	minOrdinal := minLevel.Ordinal()
	out := make([]*worker.Record, 0, len(workers))
	for _, w := range workers {
		if w.TrustLevel.Ordinal() >= minOrdinal {
			out = append(out, w)
		}
	}
	return out
}
