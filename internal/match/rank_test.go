package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

func intp(v int) *int { return &v }

func i64p(v int64) *int64 { return &v }

func TestMapProjectType(t *testing.T) {
	tables := DefaultTables()

	tests := []struct {
		input    string
		expected string
	}{
		{"pool_construction", "pool"},
		{"POOL_RENOVATION", "pool"},
		{"bathroom_remodel", "bathroom"},
		{"kitchen_upgrade", "kitchen"},
		{"villa_construction", "general"},
		{"never_heard_of_it", "general"},
		{"", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, tables.MapProjectType(tt.input))
		})
	}
}

func TestRank_OrdersByTrust(t *testing.T) {
	tables := DefaultTables()
	workers := []*worker.Record{
		poolWorker("B", 65),
		poolWorker("C", 45),
		poolWorker("A", 90),
	}

	ranked := tables.Rank(workers, NewRankOptions("pool_construction", "Canggu"))
	require.Len(t, ranked, 3)
	assert.Equal(t, "A", ranked[0].BusinessName)
	assert.Equal(t, "B", ranked[1].BusinessName)
	assert.Equal(t, "C", ranked[2].BusinessName)
}

func TestRank_TrustFloor(t *testing.T) {
	tables := DefaultTables()
	workers := []*worker.Record{
		poolWorker("A", 90),
		poolWorker("B", 65),
		poolWorker("C", 45),
	}

	opts := NewRankOptions("pool_construction", "Canggu")
	opts.MinTrustScore = 50
	ranked := tables.Rank(workers, opts)

	require.Len(t, ranked, 2)
	for _, w := range ranked {
		assert.GreaterOrEqual(t, w.TrustScoreValue(), 50)
	}
}

func TestRank_MissingTrustFilteredOut(t *testing.T) {
	tables := DefaultTables()
	noScore := &worker.Record{BusinessName: "Unknown", Specializations: []string{"pool"}}

	ranked := tables.Rank([]*worker.Record{noScore}, NewRankOptions("pool_construction", "Canggu"))
	assert.Empty(t, ranked)

	opts := NewRankOptions("pool_construction", "Canggu")
	opts.MinTrustScore = 0
	ranked = tables.Rank([]*worker.Record{noScore}, opts)
	assert.Len(t, ranked, 1, "threshold 0 admits scoreless workers")
}

func TestRank_MaxResults(t *testing.T) {
	tables := DefaultTables()
	workers := []*worker.Record{
		poolWorker("A", 90),
		poolWorker("B", 80),
		poolWorker("C", 70),
	}

	opts := NewRankOptions("pool_construction", "Canggu")
	opts.MaxResults = 1
	ranked := tables.Rank(workers, opts)

	require.Len(t, ranked, 1)
	assert.Equal(t, "A", ranked[0].BusinessName)
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	tables := DefaultTables()
	workers := []*worker.Record{
		poolWorker("First", 80),
		poolWorker("Second", 80),
		poolWorker("Third", 80),
	}

	ranked := tables.Rank(workers, NewRankOptions("pool_construction", "Canggu"))
	require.Len(t, ranked, 3)
	assert.Equal(t, "First", ranked[0].BusinessName)
	assert.Equal(t, "Second", ranked[1].BusinessName)
	assert.Equal(t, "Third", ranked[2].BusinessName)
}

func TestRank_AttachesScore(t *testing.T) {
	tables := DefaultTables()
	w := poolWorker("A", 90)
	w.Location = "Canggu"

	ranked := tables.Rank([]*worker.Record{w}, NewRankOptions("pool_construction", "Canggu"))
	require.Len(t, ranked, 1)
	require.NotNil(t, ranked[0].RankingScore)

	// trust 0.9*0.5 + location 1.0*0.2 + spec 1.0*0.2 + budget 0.5*0.1 = 0.90
	assert.InDelta(t, 90.0, *ranked[0].RankingScore, 1e-9)
}

func TestRank_SpecializationComponent(t *testing.T) {
	tables := DefaultTables()

	exact := poolWorker("Exact", 80)
	general := &worker.Record{
		BusinessName:    "General",
		Location:        "Canggu",
		TrustScore:      intp(80),
		Specializations: []string{"general"},
	}
	unrelated := &worker.Record{
		BusinessName:    "Unrelated",
		Location:        "Canggu",
		TrustScore:      intp(80),
		Specializations: []string{"bathroom"},
	}

	ranked := tables.Rank(
		[]*worker.Record{unrelated, general, exact},
		NewRankOptions("pool_construction", "Canggu"),
	)

	require.Len(t, ranked, 3)
	assert.Equal(t, "Exact", ranked[0].BusinessName)
	assert.Equal(t, "General", ranked[1].BusinessName)
	assert.Equal(t, "Unrelated", ranked[2].BusinessName)
}

func TestBudgetRelevance(t *testing.T) {
	tests := []struct {
		name     string
		price    *int64
		band     string
		expected float64
	}{
		{"no band", i64p(40_000_000), "", 0.5},
		{"no price", nil, "medium", 0.5},
		{"inside low", i64p(40_000_000), "low", 1.0},
		{"outside low", i64p(100_000_000), "low", 0.3},
		{"inside medium", i64p(100_000_000), "medium", 1.0},
		{"inside high", i64p(200_000_000), "high", 1.0},
		{"boundary price in low", i64p(50_000_000), "low", 1.0},
		{"boundary price in medium", i64p(50_000_000), "medium", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, budgetRelevance(tt.price, tt.band), 1e-9)
		})
	}
}

func TestRank_PriceFieldPrecedence(t *testing.T) {
	w := &worker.Record{
		PriceIDRPerDay: i64p(200_000_000),
		OLXPriceIDR:    i64p(10_000_000),
	}
	require.NotNil(t, w.Price())
	assert.Equal(t, int64(200_000_000), *w.Price(), "price_idr_per_day beats olx_price_idr")

	w.DailyRateIDR = i64p(40_000_000)
	assert.Equal(t, int64(40_000_000), *w.Price(), "daily_rate_idr wins outright")
}

func TestFilterByTrustLevel(t *testing.T) {
	workers := []*worker.Record{
		{BusinessName: "A", TrustLevel: worker.TrustVerified},
		{BusinessName: "B", TrustLevel: worker.TrustHigh},
		{BusinessName: "C", TrustLevel: worker.TrustMedium},
		{BusinessName: "D", TrustLevel: worker.TrustLow},
		{BusinessName: "E"},
		{BusinessName: "F", TrustLevel: worker.TrustLevel("SUSPICIOUS")},
	}

	high := FilterByTrustLevel(workers, worker.TrustHigh)
	require.Len(t, high, 2)
	assert.Equal(t, "A", high[0].BusinessName)
	assert.Equal(t, "B", high[1].BusinessName)

	low := FilterByTrustLevel(workers, worker.TrustLow)
	assert.Len(t, low, 4, "missing or unknown levels never pass")
}

func poolWorker(name string, trust int) *worker.Record {
	return &worker.Record{
		BusinessName:    name,
		Location:        "Canggu",
		TrustScore:      intp(trust),
		Specializations: []string{"pool"},
	}
}
