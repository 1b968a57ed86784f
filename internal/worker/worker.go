// Package worker defines the contractor record type shared by the
// scraping, deduplication, trust and ranking layers.
package worker

import (
	"time"
)

// SourceTier identifies where a record originated. Higher tiers win
// field conflicts during merge.
type SourceTier string

// Known source tiers.
const (
	TierPlatform      SourceTier = "platform"
	TierManualCurated SourceTier = "manual_curated"
	TierGoogleMaps    SourceTier = "google_maps"
	TierOLX           SourceTier = "olx"
)

// Priority returns the merge precedence for the tier. Unknown tiers
// rank below everything.
func (t SourceTier) Priority() int {
	switch t {
	case TierPlatform:
		return 4
	case TierManualCurated:
		return 3
	case TierGoogleMaps:
		return 2
	case TierOLX:
		return 1
	default:
		return 0
	}
}

// TrustLevel is the badge derived from the 0-100 trust score.
type TrustLevel string

// Trust levels, strongest first.
const (
	TrustVerified TrustLevel = "VERIFIED"
	TrustHigh     TrustLevel = "HIGH"
	TrustMedium   TrustLevel = "MEDIUM"
	TrustLow      TrustLevel = "LOW"
)

// Ordinal returns the comparable rank of a trust level. Missing or
// unrecognized levels rank below LOW and never pass a level filter.
func (l TrustLevel) Ordinal() int {
	switch l {
	case TrustVerified:
		return 4
	case TrustHigh:
		return 3
	case TrustMedium:
		return 2
	case TrustLow:
		return 1
	default:
		return 0
	}
}

// Record is a single contractor listing. Fields the pipeline reads are
// named; provenance-specific extras live in Extra. Optional numerics are
// pointers so "absent" and "zero" stay distinct through merging.
type Record struct {
	ID string `json:"id,omitempty" db:"id"`

	// Identity / contact
	BusinessName string `json:"business_name" db:"business_name"`
	Phone        string `json:"phone,omitempty" db:"phone"`
	WhatsApp     string `json:"whatsapp,omitempty" db:"whatsapp"`
	Email        string `json:"email,omitempty" db:"email"`
	Website      string `json:"website,omitempty" db:"website"`
	GmapsPlaceID string `json:"gmaps_place_id,omitempty" db:"gmaps_place_id"`

	// Location
	Location  string   `json:"location,omitempty" db:"location"`
	Address   string   `json:"address,omitempty" db:"address"`
	Latitude  *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64 `json:"longitude,omitempty" db:"longitude"`

	// Reputation
	GmapsRating      *float64 `json:"gmaps_rating,omitempty" db:"gmaps_rating"`
	GmapsReviewCount int      `json:"gmaps_review_count,omitempty" db:"gmaps_review_count"`
	OLXRating        *float64 `json:"olx_rating,omitempty" db:"olx_rating"`
	OLXReviewCount   int      `json:"olx_review_count,omitempty" db:"olx_review_count"`
	GmapsPhotosCount int      `json:"gmaps_photos_count,omitempty" db:"gmaps_photos_count"`
	GmapsURL         string   `json:"gmaps_url,omitempty" db:"gmaps_url"`
	GmapsCategories  []string `json:"gmaps_categories,omitempty" db:"gmaps_categories"`
	PreviewReview    string   `json:"preview_review,omitempty" db:"preview_review"`

	// Classification
	Specializations []string   `json:"specializations,omitempty" db:"specializations"`
	SourceTier      SourceTier `json:"source_tier,omitempty" db:"source_tier"`

	// Pricing (IDR). First non-nil wins when read.
	DailyRateIDR   *int64 `json:"daily_rate_idr,omitempty" db:"daily_rate_idr"`
	PriceIDRPerDay *int64 `json:"price_idr_per_day,omitempty" db:"price_idr_per_day"`
	OLXPriceIDR    *int64 `json:"olx_price_idr,omitempty" db:"olx_price_idr"`

	// Trust (written by the trust scorer after merge)
	TrustScore     *int               `json:"trust_score,omitempty" db:"trust_score"`
	TrustLevel     TrustLevel         `json:"trust_level,omitempty" db:"trust_level"`
	TrustBreakdown map[string]float64 `json:"trust_breakdown,omitempty" db:"trust_breakdown"`
	LastScoredAt   *time.Time         `json:"last_score_calculated_at,omitempty" db:"last_score_calculated_at"`

	// Merge metadata. Only present on records produced by a merge.
	IsMerged      bool         `json:"is_merged,omitempty" db:"is_merged"`
	SourceCount   int          `json:"source_count,omitempty" db:"source_count"`
	MergedSources []SourceTier `json:"merged_sources,omitempty" db:"merged_sources"`

	// Transient ranking annotation, never persisted.
	RankingScore *float64 `json:"ranking_score,omitempty" db:"-"`

	// Lifecycle
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty" db:"last_scraped_at"`
	IsActive      bool       `json:"is_active" db:"is_active"`

	// Extra carries provenance-specific values with no named field.
	Extra map[string]any `json:"extra,omitempty" db:"-"`
}

// Price resolves the record's day rate, checking daily_rate_idr,
// price_idr_per_day and olx_price_idr in that order.
func (r *Record) Price() *int64 {
	if r.DailyRateIDR != nil {
		return r.DailyRateIDR
	}
	if r.PriceIDRPerDay != nil {
		return r.PriceIDRPerDay
	}
	return r.OLXPriceIDR
}

// TrustScoreValue returns the trust score, treating missing as 0.
func (r *Record) TrustScoreValue() int {
	if r.TrustScore == nil {
		return 0
	}
	return *r.TrustScore
}

// HasSpecialization reports whether the tag is in the record's set.
func (r *Record) HasSpecialization(tag string) bool {
	for _, s := range r.Specializations {
		if s == tag {
			return true
		}
	}
	return false
}

// AddSpecialization appends a tag, preserving set semantics.
func (r *Record) AddSpecialization(tag string) {
	if tag == "" || r.HasSpecialization(tag) {
		return
	}
	r.Specializations = append(r.Specializations, tag)
}

// Clone returns a copy of the record with its own slices and maps, so
// merge and ranking never alias the caller's data.
func (r *Record) Clone() *Record {
	c := *r
	if r.Specializations != nil {
		c.Specializations = append([]string(nil), r.Specializations...)
	}
	if r.GmapsCategories != nil {
		c.GmapsCategories = append([]string(nil), r.GmapsCategories...)
	}
	if r.MergedSources != nil {
		c.MergedSources = append([]SourceTier(nil), r.MergedSources...)
	}
	if r.TrustBreakdown != nil {
		c.TrustBreakdown = make(map[string]float64, len(r.TrustBreakdown))
		for k, v := range r.TrustBreakdown {
			c.TrustBreakdown[k] = v
		}
	}
	if r.Extra != nil {
		c.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}
