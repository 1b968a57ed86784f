package match

import (
	"sort"
	"strings"
)

// Location relevance tiers.
const (
	locExact     = 1.0
	locSameGroup = 0.8
	locSameIsle  = 0.5
	locNoSignal  = 0.3
)

// LocationRelevance scores how close a worker's area is to the
// requested area. Exact or containing matches score 1.0, areas in the
// same region group 0.8, anywhere else on the island 0.5. Missing data
// on either side scores 0.3: insufficient signal, not a failure.
func (t *Tables) LocationRelevance(workerLocation, requestedLocation string) float64 {
	if strings.TrimSpace(workerLocation) == "" || strings.TrimSpace(requestedLocation) == "" {
		return locNoSignal
	}

	workerLoc := strings.ToLower(strings.TrimSpace(workerLocation))
	requestedLoc := strings.ToLower(strings.TrimSpace(requestedLocation))

	if workerLoc == requestedLoc ||
		strings.Contains(requestedLoc, workerLoc) ||
		strings.Contains(workerLoc, requestedLoc) {
		return locExact
	}

	workerGroup := t.groupFor(workerLoc)
	requestedGroup := t.groupFor(requestedLoc)
	if workerGroup != "" && workerGroup == requestedGroup {
		return locSameGroup
	}

	return locSameIsle
}

// groupFor resolves a lowercased location string to its region group
// by substring containment of known area names. Group names are tried
// in sorted order so a string mentioning areas from two groups always
// resolves the same way. Returns "" when no area matches.
func (t *Tables) groupFor(location string) string {
	groups := make([]string, 0, len(t.AreaGroups))
	for group := range t.AreaGroups {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	for _, group := range groups {
		for _, area := range t.AreaGroups[group] {
			if strings.Contains(location, area) {
				return group
			}
		}
	}
	return ""
}
