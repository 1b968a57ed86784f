package dedup

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

// Merge collapses duplicate records into one profile. The highest
// priority source becomes the base; lower priority sources only fill
// fields the base left empty, never overwrite. Specializations and
// categories are unioned, the best rating and the summed review count
// are taken across all inputs, and merge metadata is stamped on the
// result. A single record passes through untouched, with no metadata.
//
// Merging an empty slice is a programming error.
func Merge(records []*worker.Record) (*worker.Record, error) {
	if len(records) == 0 {
		return nil, eris.New("dedup: merge requires at least one record")
	}
	if len(records) == 1 {
		return records[0], nil
	}

	sorted := append([]*worker.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SourceTier.Priority() > sorted[j].SourceTier.Priority()
	})

	merged := sorted[0].Clone()
	for _, rec := range sorted[1:] {
		fillMissing(merged, rec)
	}

	// Aggregates computed across all inputs override whatever gap-fill
	// produced for these fields.
	var specs, categories []string
	maxRating := 0.0
	totalReviews := 0
	for _, rec := range sorted {
		specs = unionInto(specs, rec.Specializations)
		categories = unionInto(categories, rec.GmapsCategories)

		rating := 0.0
		if rec.GmapsRating != nil {
			rating = *rec.GmapsRating
		} else if rec.OLXRating != nil {
			rating = *rec.OLXRating
		}
		if rating > maxRating {
			maxRating = rating
		}

		totalReviews += rec.GmapsReviewCount + rec.OLXReviewCount
	}

	merged.Specializations = specs
	if len(categories) > 0 {
		merged.GmapsCategories = categories
	}
	if maxRating > 0 {
		merged.GmapsRating = &maxRating
	}
	if totalReviews > 0 {
		merged.GmapsReviewCount = totalReviews
	}

	merged.IsMerged = true
	merged.SourceCount = len(records)
	// Provenance keeps the caller's order, not merge priority.
	merged.MergedSources = make([]worker.SourceTier, 0, len(records))
	for _, rec := range records {
		merged.MergedSources = append(merged.MergedSources, rec.SourceTier)
	}

	return merged, nil
}

// fillMissing copies fields src supplies that dst is still missing.
func fillMissing(dst, src *worker.Record) {
	if dst.BusinessName == "" {
		dst.BusinessName = src.BusinessName
	}
	if dst.Phone == "" {
		dst.Phone = src.Phone
	}
	if dst.WhatsApp == "" {
		dst.WhatsApp = src.WhatsApp
	}
	if dst.Email == "" {
		dst.Email = src.Email
	}
	if dst.Website == "" {
		dst.Website = src.Website
	}
	if dst.GmapsPlaceID == "" {
		dst.GmapsPlaceID = src.GmapsPlaceID
	}
	if dst.Location == "" {
		dst.Location = src.Location
	}
	if dst.Address == "" {
		dst.Address = src.Address
	}
	if dst.Latitude == nil {
		dst.Latitude = src.Latitude
	}
	if dst.Longitude == nil {
		dst.Longitude = src.Longitude
	}
	if dst.GmapsRating == nil {
		dst.GmapsRating = src.GmapsRating
	}
	if dst.OLXRating == nil {
		dst.OLXRating = src.OLXRating
	}
	if dst.GmapsURL == "" {
		dst.GmapsURL = src.GmapsURL
	}
	if dst.PreviewReview == "" {
		dst.PreviewReview = src.PreviewReview
	}
	if dst.DailyRateIDR == nil {
		dst.DailyRateIDR = src.DailyRateIDR
	}
	if dst.PriceIDRPerDay == nil {
		dst.PriceIDRPerDay = src.PriceIDRPerDay
	}
	if dst.OLXPriceIDR == nil {
		dst.OLXPriceIDR = src.OLXPriceIDR
	}
	if dst.TrustScore == nil {
		dst.TrustScore = src.TrustScore
	}
	if dst.TrustLevel == "" {
		dst.TrustLevel = src.TrustLevel
	}
	if dst.LastScrapedAt == nil {
		dst.LastScrapedAt = src.LastScrapedAt
	}
	for k, v := range src.Extra {
		if v == nil {
			continue
		}
		if existing, ok := dst.Extra[k]; !ok || existing == nil {
			if dst.Extra == nil {
				dst.Extra = make(map[string]any)
			}
			dst.Extra[k] = v
		}
	}
}

// unionInto appends unseen values, keeping first-seen order.
func unionInto(dst, src []string) []string {
	for _, v := range src {
		if v == "" {
			continue
		}
		seen := false
		for _, existing := range dst {
			if existing == v {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, v)
		}
	}
	return dst
}
