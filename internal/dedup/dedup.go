package dedup

import (
	"go.uber.org/zap"

	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
)

// Deduplicate clusters a raw listing batch into duplicate groups and
// merges each group. Clustering is a single pass: each unclaimed record
// seeds a group and claims every later unclaimed record that matches
// the seed. Members are compared against the seed only, not against
// each other, so chained-but-not-pairwise-similar records can land in
// separate groups; callers depend on this star-shaped behavior.
//
// Output group order follows the first-seen order of each group's seed.
// Running Deduplicate on its own output is a fixed point.
func Deduplicate(records []*worker.Record, cfg DetectorConfig) []*worker.Record {
	if len(records) == 0 {
		return []*worker.Record{}
	}

	claimed := make([]bool, len(records))
	var groups [][]*worker.Record
	for i, seed := range records {
		if claimed[i] {
			continue
		}
		claimed[i] = true
		group := []*worker.Record{seed}

		for j := i + 1; j < len(records); j++ {
			if claimed[j] {
				continue
			}
			if AreDuplicates(seed, records[j], cfg) {
				group = append(group, records[j])
				claimed[j] = true
			}
		}
		groups = append(groups, group)
	}

	out := make([]*worker.Record, 0, len(groups))
	for _, group := range groups {
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		merged, err := Merge(group)
		if err != nil {
			// Unreachable: groups are never empty. Keep the seed rather
			// than drop the whole batch.
			zap.L().Warn("dedup: merge failed, keeping seed",
				zap.String("business_name", group[0].BusinessName),
				zap.Error(err),
			)
			out = append(out, group[0])
			continue
		}
		out = append(out, merged)
	}

	if len(out) < len(records) {
		zap.L().Debug("dedup: collapsed duplicates",
			zap.Int("input", len(records)),
			zap.Int("output", len(out)),
		)
	}
	return out
}
