package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

func f64(v float64) *float64 { return &v }

func i64(v int64) *int64 { return &v }

func TestMerge_EmptyInput(t *testing.T) {
	_, err := Merge(nil)
	assert.Error(t, err)
}

func TestMerge_SingleRecordPassthrough(t *testing.T) {
	rec := &worker.Record{BusinessName: "Bali Pool", SourceTier: worker.TierGoogleMaps}
	merged, err := Merge([]*worker.Record{rec})
	require.NoError(t, err)
	assert.Same(t, rec, merged)
	assert.False(t, merged.IsMerged)
	assert.Zero(t, merged.SourceCount)
	assert.Nil(t, merged.MergedSources)
}

func TestMerge_SourcePriority(t *testing.T) {
	olx := &worker.Record{
		BusinessName: "Bali Pool (OLX)",
		SourceTier:   worker.TierOLX,
		OLXPriceIDR:  i64(500_000),
	}
	gmaps := &worker.Record{
		BusinessName: "Bali Pool Service",
		SourceTier:   worker.TierGoogleMaps,
	}

	// Input order must not matter; priority does.
	merged, err := Merge([]*worker.Record{olx, gmaps})
	require.NoError(t, err)

	assert.Equal(t, "Bali Pool Service", merged.BusinessName)
	assert.Equal(t, worker.TierGoogleMaps, merged.SourceTier)
	// Field present only on the lower-priority record is retained.
	require.NotNil(t, merged.OLXPriceIDR)
	assert.Equal(t, int64(500_000), *merged.OLXPriceIDR)
}

func TestMerge_GapFillNeverOverwrites(t *testing.T) {
	high := &worker.Record{
		BusinessName: "Bali Pool Service",
		Phone:        "+62812345678",
		SourceTier:   worker.TierManualCurated,
	}
	low := &worker.Record{
		BusinessName: "Bali Pool",
		Phone:        "+62898765432",
		Website:      "https://balipool.example",
		SourceTier:   worker.TierOLX,
	}

	merged, err := Merge([]*worker.Record{low, high})
	require.NoError(t, err)

	assert.Equal(t, "+62812345678", merged.Phone, "higher tier value kept")
	assert.Equal(t, "https://balipool.example", merged.Website, "gap filled from lower tier")
}

func TestMerge_Aggregates(t *testing.T) {
	a := &worker.Record{
		BusinessName:     "Bali Pool Service",
		SourceTier:       worker.TierGoogleMaps,
		GmapsRating:      f64(4.2),
		GmapsReviewCount: 30,
		Specializations:  []string{"pool"},
		GmapsCategories:  []string{"Swimming Pool Contractor"},
	}
	b := &worker.Record{
		BusinessName:    "Bali Pool",
		SourceTier:      worker.TierOLX,
		OLXRating:       f64(4.8),
		OLXReviewCount:  12,
		Specializations: []string{"pool", "general"},
	}

	merged, err := Merge([]*worker.Record{a, b})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"pool", "general"}, merged.Specializations)
	assert.Equal(t, []string{"Swimming Pool Contractor"}, merged.GmapsCategories)
	require.NotNil(t, merged.GmapsRating)
	assert.InDelta(t, 4.8, *merged.GmapsRating, 1e-9, "max rating across sources")
	assert.Equal(t, 42, merged.GmapsReviewCount, "review counts summed")
}

func TestMerge_Metadata(t *testing.T) {
	records := []*worker.Record{
		{BusinessName: "A", SourceTier: worker.TierOLX},
		{BusinessName: "B", SourceTier: worker.TierPlatform},
		{BusinessName: "C", SourceTier: worker.TierGoogleMaps},
	}

	merged, err := Merge(records)
	require.NoError(t, err)

	assert.True(t, merged.IsMerged)
	assert.Equal(t, 3, merged.SourceCount)
	assert.Equal(t,
		[]worker.SourceTier{worker.TierOLX, worker.TierPlatform, worker.TierGoogleMaps},
		merged.MergedSources, "one entry per input, in input order")
}

func TestMerge_UnknownTierRanksLast(t *testing.T) {
	known := &worker.Record{BusinessName: "Known", SourceTier: worker.TierOLX}
	unknown := &worker.Record{BusinessName: "Mystery", SourceTier: worker.SourceTier("craigslist")}

	merged, err := Merge([]*worker.Record{unknown, known})
	require.NoError(t, err)
	assert.Equal(t, "Known", merged.BusinessName)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	a := &worker.Record{
		BusinessName:    "Bali Pool Service",
		SourceTier:      worker.TierGoogleMaps,
		Specializations: []string{"pool"},
	}
	b := &worker.Record{
		BusinessName:    "Bali Pool",
		SourceTier:      worker.TierOLX,
		Specializations: []string{"general"},
	}

	_, err := Merge([]*worker.Record{a, b})
	require.NoError(t, err)

	assert.Equal(t, []string{"pool"}, a.Specializations)
	assert.False(t, a.IsMerged)
	assert.Equal(t, []string{"general"}, b.Specializations)
}
