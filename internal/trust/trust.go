// Package trust computes composite trust scores for worker profiles.
//
// The score is a 0-100 blend of five components: provenance tier, rating,
// review volume, contact completeness and scrape freshness. Each component
// is reported separately in the breakdown so the API can show buyers why a
// contractor scored the way it did.
package trust

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

// Component point caps. They sum to 100.
const (
	maxTierPoints      = 25.0
	maxRatingPoints    = 25.0
	maxReviewPoints    = 20.0
	maxContactPoints   = 15.0
	maxFreshnessPoints = 15.0
)

// Level cut-offs on the composite score.
const (
	verifiedCutoff = 80
	highCutoff     = 60
	mediumCutoff   = 40
)

// reviewSaturation is the review count at which the review component maxes out.
const reviewSaturation = 100

// Result holds a computed trust score with its per-component breakdown.
type Result struct {
	Score     int                `json:"score"`
	Level     worker.TrustLevel  `json:"level"`
	Breakdown map[string]float64 `json:"breakdown"`
}

// Scorer computes trust scores. Now is injectable for freshness tests.
type Scorer struct {
	Now func() time.Time
}

// NewScorer returns a Scorer using wall-clock time.
func NewScorer() *Scorer {
	return &Scorer{Now: time.Now}
}

// Score computes the composite trust score for a single worker record.
func (s *Scorer) Score(rec *worker.Record) Result {
	breakdown := map[string]float64{
		"source_tier": tierPoints(rec.SourceTier),
		"rating":      ratingPoints(rec),
		"reviews":     reviewPoints(rec),
		"contact":     contactPoints(rec),
		"freshness":   s.freshnessPoints(rec),
	}

	var total float64
	for _, pts := range breakdown {
		total += pts
	}

	score := int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Result{
		Score:     score,
		Level:     levelFor(score),
		Breakdown: breakdown,
	}
}

// Apply scores rec and writes the trust fields back onto it.
func (s *Scorer) Apply(rec *worker.Record) Result {
	res := s.Score(rec)
	now := s.Now().UTC()

	rec.TrustScore = &res.Score
	rec.TrustLevel = res.Level
	rec.TrustBreakdown = res.Breakdown
	rec.LastScoredAt = &now

	zap.L().Debug("trust score applied",
		zap.String("business_name", rec.BusinessName),
		zap.Int("score", res.Score),
		zap.String("level", string(res.Level)),
	)
	return res
}

func levelFor(score int) worker.TrustLevel {
	switch {
	case score >= verifiedCutoff:
		return worker.TrustVerified
	case score >= highCutoff:
		return worker.TrustHigh
	case score >= mediumCutoff:
		return worker.TrustMedium
	default:
		return worker.TrustLow
	}
}

func tierPoints(tier worker.SourceTier) float64 {
	switch tier {
	case worker.TierPlatform:
		return maxTierPoints
	case worker.TierManualCurated:
		return 22
	case worker.TierGoogleMaps:
		return 15
	case worker.TierOLX:
		return 8
	default:
		return 0
	}
}

func ratingPoints(rec *worker.Record) float64 {
	rating := 0.0
	switch {
	case rec.GmapsRating != nil:
		rating = *rec.GmapsRating
	case rec.OLXRating != nil:
		rating = *rec.OLXRating
	}
	if rating <= 0 {
		return 0
	}
	if rating > 5 {
		rating = 5
	}
	return rating / 5 * maxRatingPoints
}

func reviewPoints(rec *worker.Record) float64 {
	count := rec.GmapsReviewCount + rec.OLXReviewCount
	if count <= 0 {
		return 0
	}
	if count > reviewSaturation {
		count = reviewSaturation
	}
	return float64(count) / reviewSaturation * maxReviewPoints
}

func contactPoints(rec *worker.Record) float64 {
	var pts float64
	if rec.Phone != "" {
		pts += 6
	}
	if rec.WhatsApp != "" {
		pts += 3
	}
	if rec.Email != "" {
		pts += 3
	}
	if rec.Website != "" {
		pts += 3
	}
	return pts
}

func (s *Scorer) freshnessPoints(rec *worker.Record) float64 {
	if rec.LastScrapedAt == nil {
		return 0
	}
	age := s.Now().Sub(*rec.LastScrapedAt)
	switch {
	case age <= 7*24*time.Hour:
		return maxFreshnessPoints
	case age <= 30*24*time.Hour:
		return 10
	case age <= 90*24*time.Hour:
		return 5
	default:
		return 0
	}
}

// MaskName produces the locked-preview form of a business name:
// the first word stays, the second word is cut to its initial, the
// rest is dropped ("Bali Pool Service" becomes "Bali P****").
func MaskName(name string) string {
	words := strings.Fields(name)
	switch len(words) {
	case 0:
		return "Unknown"
	case 1:
		runes := []rune(words[0])
		return string(runes[0]) + "****"
	default:
		initial := []rune(words[1])[0]
		return words[0] + " " + string(initial) + "****"
	}
}
