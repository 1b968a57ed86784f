package dedup

import (
	"strings"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

// DetectorConfig tunes pairwise duplicate detection.
type DetectorConfig struct {
	// NameThreshold is the minimum name similarity for a name+location
	// match. Default: 0.85.
	NameThreshold float64

	// PhoneMatchRequired treats a mismatch between two present phone
	// numbers as proof of distinctness, short-circuiting every weaker
	// signal. Default: true.
	PhoneMatchRequired bool
}

// DefaultDetectorConfig returns the production detection thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		NameThreshold:      0.85,
		PhoneMatchRequired: true,
	}
}

// AreDuplicates decides whether two records describe the same business.
// Signals are checked in priority order; phone evidence dominates:
//
//  1. Equal normalized phones -> duplicate.
//  2. Differing normalized phones (when required) -> not duplicate.
//  3. Equal Google Maps place IDs -> duplicate.
//  4. Name similarity >= threshold and one location contains the
//     other -> duplicate.
func AreDuplicates(a, b *worker.Record, cfg DetectorConfig) bool {
	phoneA := NormalizePhone(a.Phone)
	phoneB := NormalizePhone(b.Phone)

	if phoneA != "" && phoneB != "" {
		if phoneA == phoneB {
			return true
		}
		if cfg.PhoneMatchRequired {
			return false
		}
	}

	if a.GmapsPlaceID != "" && b.GmapsPlaceID != "" && a.GmapsPlaceID == b.GmapsPlaceID {
		return true
	}

	if NameSimilarity(a.BusinessName, b.BusinessName) >= cfg.NameThreshold {
		locA := strings.ToLower(a.Location)
		locB := strings.ToLower(b.Location)
		if locA != "" && locB != "" &&
			(strings.Contains(locA, locB) || strings.Contains(locB, locA)) {
			return true
		}
	}

	return false
}
