package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

func fixedScorer(now time.Time) *Scorer {
	return &Scorer{Now: func() time.Time { return now }}
}

func floatPtr(f float64) *float64 { return &f }

func TestScore_FullProfile(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	scraped := now.Add(-24 * time.Hour)

	rec := &worker.Record{
		BusinessName:     "Bali Pool Service",
		Phone:            "+628123456789",
		WhatsApp:         "+628123456789",
		Email:            "info@balipool.co.id",
		Website:          "https://balipool.co.id",
		GmapsRating:      floatPtr(5.0),
		GmapsReviewCount: 150,
		SourceTier:       worker.TierPlatform,
		LastScrapedAt:    &scraped,
	}

	res := fixedScorer(now).Score(rec)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, worker.TrustVerified, res.Level)
	assert.Equal(t, 25.0, res.Breakdown["source_tier"])
	assert.Equal(t, 25.0, res.Breakdown["rating"])
	assert.Equal(t, 20.0, res.Breakdown["reviews"])
	assert.Equal(t, 15.0, res.Breakdown["contact"])
	assert.Equal(t, 15.0, res.Breakdown["freshness"])
}

func TestScore_EmptyProfile(t *testing.T) {
	rec := &worker.Record{BusinessName: "Unknown Builder", SourceTier: "mystery"}

	res := NewScorer().Score(rec)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, worker.TrustLow, res.Level)
}

func TestScore_Components(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		rec       *worker.Record
		component string
		want      float64
	}{
		{
			name:      "olx tier",
			rec:       &worker.Record{SourceTier: worker.TierOLX},
			component: "source_tier",
			want:      8,
		},
		{
			name:      "curated tier",
			rec:       &worker.Record{SourceTier: worker.TierManualCurated},
			component: "source_tier",
			want:      22,
		},
		{
			name:      "half rating",
			rec:       &worker.Record{GmapsRating: floatPtr(2.5)},
			component: "rating",
			want:      12.5,
		},
		{
			name:      "olx rating fallback",
			rec:       &worker.Record{OLXRating: floatPtr(5.0)},
			component: "rating",
			want:      25,
		},
		{
			name:      "rating clamped to five",
			rec:       &worker.Record{GmapsRating: floatPtr(9.9)},
			component: "rating",
			want:      25,
		},
		{
			name:      "half review saturation",
			rec:       &worker.Record{GmapsReviewCount: 40, OLXReviewCount: 10},
			component: "reviews",
			want:      10,
		},
		{
			name:      "phone only",
			rec:       &worker.Record{Phone: "+628123456789"},
			component: "contact",
			want:      6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := fixedScorer(now).Score(tt.rec)
			assert.InDelta(t, tt.want, res.Breakdown[tt.component], 1e-9)
		})
	}
}

func TestScore_FreshnessDecay(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"one day", 24 * time.Hour, 15},
		{"two weeks", 14 * 24 * time.Hour, 10},
		{"two months", 60 * 24 * time.Hour, 5},
		{"half a year", 180 * 24 * time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scraped := now.Add(-tt.age)
			rec := &worker.Record{LastScrapedAt: &scraped}
			assert.Equal(t, tt.want, s.Score(rec).Breakdown["freshness"])
		})
	}

	t.Run("never scraped", func(t *testing.T) {
		assert.Equal(t, 0.0, s.Score(&worker.Record{}).Breakdown["freshness"])
	})
}

func TestLevelCutoffs(t *testing.T) {
	tests := []struct {
		score int
		want  worker.TrustLevel
	}{
		{100, worker.TrustVerified},
		{80, worker.TrustVerified},
		{79, worker.TrustHigh},
		{60, worker.TrustHigh},
		{59, worker.TrustMedium},
		{40, worker.TrustMedium},
		{39, worker.TrustLow},
		{0, worker.TrustLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levelFor(tt.score), "score %d", tt.score)
	}
}

func TestApply_WritesTrustFields(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := &worker.Record{
		BusinessName: "CV Mandiri",
		Phone:        "+628123456789",
		SourceTier:   worker.TierGoogleMaps,
	}

	res := fixedScorer(now).Apply(rec)

	require.NotNil(t, rec.TrustScore)
	assert.Equal(t, res.Score, *rec.TrustScore)
	assert.Equal(t, res.Level, rec.TrustLevel)
	assert.Equal(t, res.Breakdown, rec.TrustBreakdown)
	require.NotNil(t, rec.LastScoredAt)
	assert.Equal(t, now, *rec.LastScoredAt)
}

func TestMaskName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"two words", "Ahmad Suparman", "Ahmad S****"},
		{"three words", "Bali Pool Service", "Bali P****"},
		{"single word", "Mandiri", "M****"},
		{"empty", "", "Unknown"},
		{"whitespace only", "   ", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskName(tt.in))
		})
	}
}
