package match

import (
	"strings"
)

// GeneralSpecialization is the fallback tag for project types outside
// the known vocabulary and for workers who do a bit of everything.
const GeneralSpecialization = "general"

// MapProjectType converts a user-facing project type to the worker
// specialization it requires. Lookup is case-insensitive; anything
// unmapped falls back to "general".
func (t *Tables) MapProjectType(projectType string) string {
	if spec, ok := t.ProjectTypes[strings.ToLower(projectType)]; ok {
		return spec
	}
	return GeneralSpecialization
}
