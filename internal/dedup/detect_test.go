package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

func TestAreDuplicates_PhoneDominates(t *testing.T) {
	cfg := DefaultDetectorConfig()

	t.Run("equal phones beat different names", func(t *testing.T) {
		a := &worker.Record{BusinessName: "Bali Pool Service", Phone: "+62812345678"}
		b := &worker.Record{BusinessName: "Totally Different Name", Phone: "0812345678"}
		assert.True(t, AreDuplicates(a, b, cfg))
	})

	t.Run("different phones beat identical names", func(t *testing.T) {
		a := &worker.Record{BusinessName: "Bali Pool Service", Phone: "+62812345678", Location: "Canggu"}
		b := &worker.Record{BusinessName: "Bali Pool Service", Phone: "+62898765432", Location: "Canggu"}
		assert.False(t, AreDuplicates(a, b, cfg))
	})

	t.Run("phone mismatch tolerated when not required", func(t *testing.T) {
		relaxed := cfg
		relaxed.PhoneMatchRequired = false
		a := &worker.Record{BusinessName: "Bali Pool Service", Phone: "+62812345678", Location: "Canggu"}
		b := &worker.Record{BusinessName: "Bali Pool Service", Phone: "+62898765432", Location: "Canggu"}
		assert.True(t, AreDuplicates(a, b, relaxed))
	})
}

func TestAreDuplicates_PlaceID(t *testing.T) {
	cfg := DefaultDetectorConfig()

	a := &worker.Record{BusinessName: "Bali Pool", GmapsPlaceID: "ChIJabc123"}
	b := &worker.Record{BusinessName: "Unrelated Name", GmapsPlaceID: "ChIJabc123"}
	assert.True(t, AreDuplicates(a, b, cfg))

	c := &worker.Record{BusinessName: "Unrelated Name", GmapsPlaceID: "ChIJxyz789"}
	assert.False(t, AreDuplicates(a, c, cfg))
}

func TestAreDuplicates_NamePlusLocation(t *testing.T) {
	cfg := DefaultDetectorConfig()

	tests := []struct {
		name     string
		a, b     *worker.Record
		expected bool
	}{
		{
			"similar name, containing locations",
			&worker.Record{BusinessName: "Bali Pool Service", Location: "Canggu"},
			&worker.Record{BusinessName: "Bali Pool Services", Location: "Canggu, Bali"},
			true,
		},
		{
			"similar name, missing location",
			&worker.Record{BusinessName: "Bali Pool Service", Location: "Canggu"},
			&worker.Record{BusinessName: "Bali Pool Services"},
			false,
		},
		{
			"similar name, disjoint locations",
			&worker.Record{BusinessName: "Bali Pool Service", Location: "Canggu"},
			&worker.Record{BusinessName: "Bali Pool Services", Location: "Ubud"},
			false,
		},
		{
			"dissimilar names, same location",
			&worker.Record{BusinessName: "Bali Pool Service", Location: "Canggu"},
			&worker.Record{BusinessName: "Ubud Kitchen Works", Location: "Canggu"},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AreDuplicates(tt.a, tt.b, cfg))
		})
	}
}

func TestAreDuplicates_OnePhoneMissing(t *testing.T) {
	// A single present phone is not evidence either way; weaker
	// signals still apply.
	cfg := DefaultDetectorConfig()
	a := &worker.Record{BusinessName: "Bali Pool Service", Phone: "+62812345678", Location: "Canggu"}
	b := &worker.Record{BusinessName: "Bali Pool Services", Location: "Canggu"}
	assert.True(t, AreDuplicates(a, b, cfg))
}
