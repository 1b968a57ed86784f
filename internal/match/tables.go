// Package match ranks deduplicated contractors for a requester's
// project: project-type mapping, location relevance, and weighted
// multi-criteria scoring.
package match

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Tables holds the lookup data the ranking engine consults: the Bali
// area hierarchy and the user-facing project-type vocabulary. Defaults
// are compiled in; ops can override them from a YAML file.
type Tables struct {
	// AreaGroups maps a region group name to the area names it covers.
	AreaGroups map[string][]string `yaml:"area_groups"`

	// ProjectTypes maps a user-facing project type to the worker
	// specialization it requires.
	ProjectTypes map[string]string `yaml:"project_types"`
}

// DefaultTables returns the built-in Bali area hierarchy and
// project-type vocabulary.
func DefaultTables() *Tables {
	return &Tables{
		AreaGroups: map[string][]string{
			"south":   {"canggu", "seminyak", "kuta", "legian", "jimbaran", "uluwatu", "pecatu"},
			"central": {"denpasar", "sanur", "renon"},
			"east":    {"ubud", "gianyar", "sidemen"},
			"north":   {"lovina", "singaraja"},
		},
		ProjectTypes: map[string]string{
			// Pool
			"pool_construction": "pool",
			"pool_renovation":   "pool",
			"pool_installation": "pool",
			"pool_repair":       "pool",
			"pool_maintenance":  "pool",
			"swimming_pool":     "pool",
			// Bathroom
			"bathroom_renovation":   "bathroom",
			"bathroom_remodel":      "bathroom",
			"bathroom_installation": "bathroom",
			"bathroom_repair":       "bathroom",
			"bathroom_upgrade":      "bathroom",
			// Kitchen
			"kitchen_renovation":   "kitchen",
			"kitchen_remodel":      "kitchen",
			"kitchen_installation": "kitchen",
			"kitchen_upgrade":      "kitchen",
			"kitchen_repair":       "kitchen",
			// General construction
			"general_construction": "general",
			"home_renovation":      "general",
			"villa_construction":   "general",
			"building_renovation":  "general",
			"house_construction":   "general",
			"renovation":           "general",
			"construction":         "general",
		},
	}
}

// LoadTables reads ranking tables from a YAML file. Sections missing
// from the file fall back to the defaults.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "match: read tables %s", path)
	}

	var wrapper struct {
		Matching Tables `yaml:"matching"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "match: parse tables")
	}

	tables := DefaultTables()
	if len(wrapper.Matching.AreaGroups) > 0 {
		tables.AreaGroups = wrapper.Matching.AreaGroups
	}
	if len(wrapper.Matching.ProjectTypes) > 0 {
		tables.ProjectTypes = wrapper.Matching.ProjectTypes
	}
	return tables, nil
}
