package schema

import (
	"strings"

	stringpool "github.com/ajitpratap0/tabula/pkg/strings"
)

// Describe returns a human readable description for a field name: a fixed
// description when the name is known, otherwise one derived from the name.
func (r *Rules) Describe(name string) string {
	lower := strings.ToLower(name)
	if desc, ok := r.FieldDescriptions[lower]; ok {
		return desc
	}

	switch {
	case strings.Contains(lower, "count"):
		base := strings.ReplaceAll(strings.ReplaceAll(lower, "_count", ""), "count", "")
		return "Number of " + base
	case strings.HasPrefix(lower, "is_"):
		return "Whether the item " + lower[len("is_"):]
	case strings.HasPrefix(lower, "has_"):
		return "Whether the item has " + lower[len("has_"):]
	default:
		return stringpool.TitleWords(name)
	}
}
